package httpx

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type testStruct struct {
	Email    string `validate:"required,email"`
	Username string `validate:"required,min=3,max=50"`
	Password string `validate:"required,password_strength"`
	Pokemon  string `validate:"omitempty,pokemon_name"`
}

func TestValidateStruct_ValidInput(t *testing.T) {
	s := testStruct{
		Email:    "ash@example.com",
		Username: "ash",
		Password: "Pikachu#25",
		Pokemon:  "mr-mime",
	}
	assert.Empty(t, ValidateStruct(s))
}

func TestValidateStruct_RequiredFields(t *testing.T) {
	details := ValidateStruct(testStruct{})

	fields := map[string]string{}
	for _, d := range details {
		fields[d.Field] = d.Message
	}
	assert.Contains(t, fields["email"], "required")
	assert.Contains(t, fields["username"], "required")
	assert.Contains(t, fields["password"], "required")
}

func TestValidateStruct_EmailFormat(t *testing.T) {
	details := ValidateStruct(testStruct{Email: "invalid-email", Username: "ash", Password: "Pikachu#25"})
	assert.Len(t, details, 1)
	assert.Equal(t, "email", details[0].Field)
	assert.True(t, strings.Contains(details[0].Message, "valid email"))
}

func TestValidateStruct_PasswordStrength(t *testing.T) {
	cases := []struct {
		password string
		valid    bool
	}{
		{"Pikachu#25", true},
		{"weak", false},
		{"nouppercase1!", false},
		{"NoSpecial123", false},
	}
	for _, tc := range cases {
		details := ValidateStruct(testStruct{Email: "a@b.co", Username: "ash", Password: tc.password})
		assert.Equal(t, tc.valid, len(details) == 0, tc.password)
	}
}

func TestValidateStruct_PokemonName(t *testing.T) {
	cases := map[string]bool{
		"pikachu":   true,
		"mr-mime":   true,
		"porygon2":  true,
		"Pikachu":   false,
		"mr mime":   false,
		"-pikachu":  false,
		"pika--chu": false,
		"../etc":    false,
	}
	for name, valid := range cases {
		details := ValidateStruct(testStruct{Email: "a@b.co", Username: "ash", Password: "Pikachu#25", Pokemon: name})
		assert.Equal(t, valid, len(details) == 0, name)
	}
}
