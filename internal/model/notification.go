package model

import "time"

// NotificationType classifies why a notification was raised.
type NotificationType string

const (
	NotificationBeerAvailable NotificationType = "BEER_AVAILABLE"
	NotificationMenuChanged   NotificationType = "MENU_CHANGED"
	NotificationSystem        NotificationType = "SYSTEM"
)

// Notification is a message raised for one user.
type Notification struct {
	ID        int64            `gorm:"primaryKey" json:"id"`
	UserID    int64            `gorm:"index;not null" json:"userId"`
	BarID     *int64           `gorm:"index" json:"barId"`
	BeerID    *int64           `gorm:"index" json:"beerId"`
	Title     string           `gorm:"size:256;not null" json:"title"`
	Message   string           `gorm:"type:text;not null" json:"message"`
	Type      NotificationType `gorm:"size:32;not null" json:"type"`
	IsRead    bool             `gorm:"not null;default:false" json:"isRead"`
	IsSent    bool             `gorm:"not null;default:false;index" json:"isSent"`
	SentAt    *time.Time       `json:"sentAt"`
	CreatedAt time.Time        `json:"createdAt"`

	// Associations
	User User `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
