package model

import "time"

// CheckStatus is the processing state of a Check.
type CheckStatus string

const (
	CheckPending    CheckStatus = "PENDING"
	CheckProcessing CheckStatus = "PROCESSING"
	CheckCompleted  CheckStatus = "COMPLETED"
	CheckFailed     CheckStatus = "FAILED"
)

// Terminal reports whether no further transition is allowed out of the status.
func (s CheckStatus) Terminal() bool {
	return s == CheckCompleted || s == CheckFailed
}

// Check is one fingerprint-and-possibly-reconcile attempt for a bar's menu.
type Check struct {
	ID               int64       `gorm:"primaryKey" json:"id"`
	BarID            int64       `gorm:"index;not null" json:"barId"`
	MenuHash         string      `gorm:"size:64" json:"menuHash"`
	ContentType      string      `gorm:"size:128" json:"contentType"`
	MenuContent      []byte      `json:"-"`
	MenuObjectKey    string      `gorm:"size:512" json:"-"`
	HasChanges       bool        `gorm:"not null" json:"hasChanges"`
	Forced           bool        `gorm:"not null;default:false" json:"forced"`
	ProcessingStatus CheckStatus `gorm:"size:16;not null;index" json:"processingStatus"`
	ProcessDuration  int64       `gorm:"not null" json:"processDurationMs"`
	ErrorMessage     string      `gorm:"type:text" json:"errorMessage,omitempty"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`

	// Associations
	Bar          Bar    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	BeersAdded   []Beer `gorm:"many2many:check_beers_added;" json:"beersAdded"`
	BeersRemoved []Beer `gorm:"many2many:check_beers_removed;" json:"beersRemoved"`
}
