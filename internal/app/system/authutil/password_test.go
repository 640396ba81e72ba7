package authutil

import (
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockedListSorted(t *testing.T) {
	assert.True(t, slices.IsSorted(blocked), "blocked must stay sorted for BinarySearch")
}

func TestValidatePassword(t *testing.T) {
	cases := map[string]struct {
		in   string
		want error
	}{
		"ok":                 {"sheet-wrangler", nil},
		"ok at minimum":      {"x1y2z3", nil},
		"ok at maximum":      {strings.Repeat("k", MaxPasswordLength), nil},
		"multibyte counted":  {"ééééé", ErrPasswordTooShort},
		"empty":              {"", ErrPasswordTooShort},
		"over maximum":       {strings.Repeat("k", MaxPasswordLength+1), ErrPasswordTooLong},
		"wide runes":         {strings.Repeat("日", 30), ErrPasswordTooBig},
		"common":             {"password", ErrPasswordCommon},
		"common mixed case":  {"SpreadSheet", ErrPasswordCommon},
		"common numeric":     {"123456789", ErrPasswordCommon},
		"near miss accepted": {"password2", nil},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, ValidatePassword(tc.in))
		})
	}
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("quarterly numbers")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$2"))

	again, err := HashPassword("quarterly numbers")
	require.NoError(t, err)
	assert.NotEqual(t, hash, again, "salted hashes must differ")

	assert.True(t, CheckPassword("quarterly numbers", &hash))
	assert.False(t, CheckPassword("quarterly number", &hash))
	assert.False(t, CheckPassword("", &hash))

	bogus := "not-a-hash"
	empty := ""
	assert.False(t, CheckPassword("quarterly numbers", &bogus))
	assert.False(t, CheckPassword("quarterly numbers", &empty))
	assert.False(t, CheckPassword("quarterly numbers", nil))
}

func TestPasswordRulesMentionLimits(t *testing.T) {
	rules := PasswordRules()
	assert.Contains(t, rules, "6")
	assert.Contains(t, rules, "72")
}

func TestBurnCompare(t *testing.T) {
	assert.NotPanics(t, func() { BurnCompare("anything") })
}
