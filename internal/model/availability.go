package model

import "time"

// CurrentAvailability records that a beer is believed to be on a bar's menu right now (hot table).
type CurrentAvailability struct {
	BarID          int64     `gorm:"primaryKey;autoIncrement:false" json:"barId"`
	BeerID         int64     `gorm:"primaryKey;autoIncrement:false;index" json:"beerId"`
	AddedAt        time.Time `gorm:"not null" json:"addedAt"`
	LastVerifiedAt time.Time `gorm:"not null" json:"lastVerifiedAt"`

	// Associations
	Beer Beer `gorm:"constraint:OnDelete:CASCADE" json:"beer"`
}

// HistoricalAvailability is one closed availability window of a beer at a bar (cold table).
// RemovedAt is only nil for a window that was never closed, which reconciliation repairs.
type HistoricalAvailability struct {
	ID        int64      `gorm:"primaryKey" json:"id"`
	BarID     int64      `gorm:"not null;index:idx_history_bar_beer" json:"barId"`
	BeerID    int64      `gorm:"not null;index:idx_history_bar_beer" json:"beerId"`
	AddedAt   time.Time  `gorm:"not null" json:"addedAt"`
	RemovedAt *time.Time `gorm:"index" json:"removedAt"`

	// Associations
	Beer Beer `gorm:"constraint:OnDelete:CASCADE" json:"beer"`
}
