package model

import "time"

// Bar represents a bar whose drink menu is periodically checked.
type Bar struct {
	ID             int64  `gorm:"primaryKey" json:"id"`
	Name           string `gorm:"size:256;not null" json:"name"`
	Location       string `gorm:"size:256" json:"location"`
	MenuURL        string `gorm:"size:1024" json:"menuUrl"`
	MenuSelector   string `gorm:"size:512" json:"menuSelector"`
	ProcessAsText  bool   `gorm:"not null;default:false" json:"processAsText"`
	AIInstructions string `gorm:"type:text" json:"aiInstructions"`
	IsApproved     bool   `gorm:"not null;default:false;index" json:"isApproved"`

	// Fingerprint of the last fetched menu, empty until the first check.
	LastMenuHash  string     `gorm:"size:64" json:"lastMenuHash"`
	LastCheckedAt *time.Time `gorm:"index" json:"lastCheckedAt"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Associations
	TrackedBy []User `gorm:"many2many:user_tracked_bars;" json:"-"`
}

// Key returns the identity used when bars are collected into sets.
func (b Bar) Key() int64 { return b.ID }
