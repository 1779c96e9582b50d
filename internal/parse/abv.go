package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var abvRe = regexp.MustCompile(`^(\d+(?:[.,]\d+)?)\s*%?(?:\s*(?:abv|vol\.?|alc\.?))?$`)

// ParseABV reads an alcohol-by-volume figure such as "5.3", "5,3 %" or "6% ABV".
// An empty string yields nil.
func ParseABV(raw string) (*float64, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return nil, nil
	}

	m := abvRe.FindStringSubmatch(s)
	if m == nil {
		return nil, fmt.Errorf("unable to parse abv: %q", raw)
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil {
		return nil, fmt.Errorf("unable to parse abv: %q: %w", raw, err)
	}
	if v > 100 {
		return nil, fmt.Errorf("abv out of range: %q", raw)
	}
	return &v, nil
}
