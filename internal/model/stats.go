package model

import "time"

// ScraperStats holds running counters of checks for one bar.
type ScraperStats struct {
	BarID                int64     `gorm:"primaryKey;autoIncrement:false" json:"barId"`
	TotalChecks          int64     `gorm:"not null" json:"totalChecks"`
	SuccessfulChecks     int64     `gorm:"not null" json:"successfulChecks"`
	FailedChecks         int64     `gorm:"not null" json:"failedChecks"`
	TotalChangesDetected int64     `gorm:"not null" json:"totalChangesDetected"`
	LastCheckTime        time.Time `json:"lastCheckTime"`
	LastCheckDurationMs  int64     `gorm:"not null" json:"lastCheckDurationMs"`
}

func (ScraperStats) TableName() string {
	return "scraper_stats"
}
