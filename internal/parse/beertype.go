package parse

import (
	"slices"
	"strings"
)

var knownTypes = []string{
	"Lager",
	"Pilsner",
	"German Pilsner",
	"Bohemian Pilsner",
	"American Lager",
	"Light Lager",
	"Dark Lager",
	"Bock",
	"Doppelbock",
	"Eisbock",
	"Maibock",
	"Helles Bock",
	"Traditional Bock",
	"Dunkel",
	"Schwarzbier",
	"Marzen",
	"Oktoberfest",
	"Rauchbier",
	"Vienna Lager",
	"Kellerbier",
	"Zwickelbier",
	"Ale",
	"Pale Ale",
	"APA",
	"American Pale Ale",
	"English Bitter",
	"ESB",
	"Extra Special Bitter",
	"IPA",
	"India Pale Ale",
	"American IPA",
	"English IPA",
	"DIPA",
	"Double IPA",
	"Imperial IPA",
	"Triple IPA",
	"NEIPA",
	"New England IPA",
	"Hazy IPA",
	"West Coast IPA",
	"Session IPA",
	"Black IPA",
	"Belgian IPA",
	"Brut IPA",
	"Milkshake IPA",
	"Brown Ale",
	"American Brown Ale",
	"English Brown Ale",
	"Mild Ale",
	"Porter",
	"American Porter",
	"English Porter",
	"Baltic Porter",
	"Robust Porter",
	"Stout",
	"American Stout",
	"Irish Stout",
	"Dry Stout",
	"Milk Stout",
	"Sweet Stout",
	"Oatmeal Stout",
	"RIS",
	"Russian Imperial Stout",
	"Imperial Stout",
	"Pastry Stout",
	"Oyster Stout",
	"FES",
	"Foreign Extra Stout",
	"Belgian Ale",
	"Belgian Blond Ale",
	"Belgian Dubbel",
	"Belgian Tripel",
	"Belgian Quadrupel",
	"BDSA",
	"Belgian Dark Strong Ale",
	"Saison",
	"Farmhouse Ale",
	"Bière de Garde",
	"Witbier",
	"Belgian White",
	"Flanders Red Ale",
	"Oud Bruin",
	"Lambic",
	"Gueuze",
	"Fruit Lambic",
	"Faro",
	"Cherry Lambic",
	"Kriek",
	"Raspberry Lambic",
	"Framboise",
	"German Ale",
	"Kölsch",
	"Altbier",
	"Hefeweizen",
	"Dunkelweizen",
	"Weizenbock",
	"Kristallweizen",
	"Berliner Weisse",
	"Gose",
	"Scottish Ale",
	"Scotch Ale",
	"Wee Heavy",
	"Irish Red Ale",
	"Barleywine",
	"American Barleywine",
	"English Barleywine",
	"Wheat Ale",
	"American Wheat Ale",
	"Cream Ale",
	"Blonde Ale",
	"California Common",
	"Steam Beer",
	"Rye Beer",
	"Smoked Beer",
	"Fruit Beer",
	"Herb and Spice Beer",
	"Pumpkin Ale",
	"Chile Beer",
	"Christmas/Winter Specialty Spiced Beer",
	"Honey Beer",
	"Coffee Beer",
	"Chocolate Beer",
	"Sour Ale (General)",
	"Wild Ale (General)",
	"Brett Beer",
	"NA",
	"Non-Alcoholic Beer",
	"Low-Alcohol",
}

// abbreviations maps each short style name to the long forms it stands for.
var abbreviations = [][]string{
	{"APA", "American Pale Ale"},
	{"ESB", "Extra Special Bitter"},
	{"IPA", "India Pale Ale"},
	{"DIPA", "Double IPA"},
	{"NEIPA", "New England IPA"},
	{"RIS", "Russian Imperial Stout"},
	{"FES", "Foreign Extra Stout"},
	{"BDSA", "Belgian Dark Strong Ale"},
	{"NA", "Non-Alcoholic Beer", "Low-Alcohol"},
}

// Vocabulary validates beer styles and folds long style names into their abbreviation.
type Vocabulary struct {
	names []string
	types map[string]struct{}
	short map[string]string
}

// DefaultVocabulary returns the built-in list of beer styles.
func DefaultVocabulary() *Vocabulary {
	return NewVocabulary(knownTypes, abbreviations)
}

// NewVocabulary builds a vocabulary. Each abbreviation row starts with the
// short form followed by the names it replaces.
func NewVocabulary(types []string, abbrevs [][]string) *Vocabulary {
	v := &Vocabulary{
		names: slices.Sorted(slices.Values(types)),
		types: make(map[string]struct{}, len(types)),
		short: make(map[string]string),
	}
	for _, t := range types {
		v.types[strings.ToLower(t)] = struct{}{}
	}
	for _, row := range abbrevs {
		if len(row) == 0 {
			continue
		}
		for _, name := range row {
			v.short[strings.ToLower(name)] = row[0]
		}
	}
	return v
}

// Valid reports whether t is a known style, ignoring case.
func (v *Vocabulary) Valid(t string) bool {
	_, ok := v.types[strings.ToLower(strings.TrimSpace(t))]
	return ok
}

// Types returns the known styles in alphabetical order.
func (v *Vocabulary) Types() []string {
	return slices.Clone(v.names)
}

// Abbreviate returns the short form of a style, or the style unchanged when it has none.
func (v *Vocabulary) Abbreviate(t string) string {
	t = strings.TrimSpace(t)
	if s, ok := v.short[strings.ToLower(t)]; ok {
		return s
	}
	return t
}
