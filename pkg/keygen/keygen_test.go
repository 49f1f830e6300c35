package keygen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReferralCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code := ReferralCode()
		assert.Len(t, code, referralCodeLength)
		for _, r := range code {
			assert.True(t, strings.ContainsRune(upperAlphaNumeric, r), "unexpected character %q", r)
		}
		seen[code] = true
	}
	// 100 draws from a 32^8 space colliding would mean a broken generator
	assert.Len(t, seen, 100)
}
