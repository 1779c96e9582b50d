package model

import (
	"strings"
	"time"
)

// Beer is the canonical identity of a beer across all bars.
type Beer struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:256;not null;uniqueIndex:idx_beer_name_brewery" json:"name"`
	Brewery     string    `gorm:"size:256;not null;default:'';uniqueIndex:idx_beer_name_brewery" json:"brewery"`
	Type        string    `gorm:"size:128" json:"type"`
	ABV         *float64  `json:"abv"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	// Associations
	Aliases []BeerAlias `gorm:"foreignKey:BeerID;constraint:OnDelete:CASCADE" json:"aliases,omitempty"`
}

// Key returns the identity used when beers are collected into sets.
func (b Beer) Key() int64 { return b.ID }

// BeerAlias is an alternate (name, brewery) pair that resolves to a Beer.
// NameKey and BreweryKey hold the case-folded pair and are unique across all beers.
type BeerAlias struct {
	ID         int64     `gorm:"primaryKey" json:"id"`
	BeerID     int64     `gorm:"index;not null" json:"beerId"`
	Name       string    `gorm:"size:256;not null" json:"name"`
	Brewery    string    `gorm:"size:256;not null;default:''" json:"brewery"`
	NameKey    string    `gorm:"size:256;not null;uniqueIndex:idx_alias_key" json:"-"`
	BreweryKey string    `gorm:"size:256;not null;default:'';uniqueIndex:idx_alias_key" json:"-"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// AliasKey folds a (name, brewery) pair the way aliases are matched.
func AliasKey(name, brewery string) (string, string) {
	return strings.ToLower(strings.TrimSpace(name)), strings.ToLower(strings.TrimSpace(brewery))
}
