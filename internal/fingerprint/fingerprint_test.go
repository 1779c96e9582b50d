package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOf(t *testing.T) {
	a := Of([]byte("IPA One - Acme"))
	assert.Len(t, a, 64)
	assert.Equal(t, a, Of([]byte("IPA One - Acme")))
	assert.NotEqual(t, a, Of([]byte("IPA One - Acme ")))
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Of(nil))
}

func TestHasChanges(t *testing.T) {
	testCases := []struct {
		name     string
		last     string
		hash     string
		forced   bool
		expected bool
	}{
		{name: "Same hash", last: "h1", hash: "h1", expected: false},
		{name: "Different hash", last: "h1", hash: "h2", expected: true},
		{name: "No previous hash", last: "", hash: "h1", expected: true},
		{name: "Forced same hash", last: "h1", hash: "h1", forced: true, expected: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, HasChanges(tc.last, tc.hash, tc.forced))
		})
	}
}
