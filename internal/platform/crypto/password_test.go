package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePasswordStrength(t *testing.T) {
	cases := []struct {
		password string
		want     error
	}{
		{"Test123!@#", nil},
		{"Str0ng#Pass", nil},
		{"Pass1", ErrPasswordTooShort},
		{"test123!@#", ErrPasswordNoUpper},
		{"TEST123!@#", ErrPasswordNoLower},
		{"TestPass!@#", ErrPasswordNoNumber},
		{"TestPass123", ErrPasswordNoSpecialChar},
	}

	for _, tc := range cases {
		t.Run(tc.password, func(t *testing.T) {
			assert.Equal(t, tc.want, ValidatePasswordStrength(tc.password))
		})
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("Pikachu#25")
	assert.NoError(t, err)
	assert.NotEqual(t, "Pikachu#25", hash)

	assert.True(t, VerifyPassword(hash, "Pikachu#25"))
	assert.False(t, VerifyPassword(hash, "pikachu#25"))
}
