package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrSelfMerge is returned when a beer is merged into itself.
	ErrSelfMerge = errors.New("cannot merge a beer with itself")
	// ErrBeerExists is returned when a rename collides with another beer.
	ErrBeerExists = errors.New("a beer with this name and brewery already exists")
	// ErrBlankName is returned for candidates without a usable name.
	ErrBlankName = errors.New("beer name is blank")
)

// DuplicateAliasError reports an alias already owned by a different beer.
type DuplicateAliasError struct {
	Name    string
	Brewery string
	BeerID  int64
}

func (e *DuplicateAliasError) Error() string {
	return fmt.Sprintf("alias %q / %q already belongs to beer %d", e.Name, e.Brewery, e.BeerID)
}

// InvalidBeerTypeError reports a style missing from the vocabulary.
type InvalidBeerTypeError struct {
	Type string
}

func (e *InvalidBeerTypeError) Error() string {
	return fmt.Sprintf("unknown beer type %q", e.Type)
}
