package parse

import (
	"regexp"
	"strings"
)

var spaceRe = regexp.MustCompile(`\s+`)

// CleanName trims a beer or brewery name and collapses inner whitespace.
func CleanName(raw string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(raw, " "))
}
