package model

import "time"

// User is a person who tracks bars and beers. Accounts are managed elsewhere.
type User struct {
	ID                  int64     `gorm:"primaryKey" json:"id"`
	Email               string    `gorm:"size:256;uniqueIndex" json:"email"`
	Name                string    `gorm:"size:256" json:"name"`
	NotificationEnabled bool      `gorm:"not null;default:false" json:"notificationEnabled"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`

	// Associations
	TrackedBars []Bar `gorm:"many2many:user_tracked_bars;" json:"-"`
}

// BeerTracking is a user's interest in a beer, at one bar or at any bar when BarID is nil.
type BeerTracking struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	UserID    int64     `gorm:"index;not null" json:"userId"`
	BeerID    int64     `gorm:"index;not null" json:"beerId"`
	BarID     *int64    `gorm:"index" json:"barId"`
	CreatedAt time.Time `json:"createdAt"`
}
