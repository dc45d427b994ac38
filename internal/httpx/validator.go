package httpx

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"pokedex/internal/platform/crypto"
)

var validate *validator.Validate

// PokeAPI resource names: lowercase letters, digits and hyphens.
var pokemonNamePattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

func init() {
	validate = validator.New()

	validate.RegisterValidation("pokemon_name", validatePokemonName)
	validate.RegisterValidation("password_strength", validatePasswordStrength)
}

func validatePokemonName(fl validator.FieldLevel) bool {
	return pokemonNamePattern.MatchString(fl.Field().String())
}

func validatePasswordStrength(fl validator.FieldLevel) bool {
	return crypto.ValidatePasswordStrength(fl.Field().String()) == nil
}

// ValidateStruct runs the struct tags of s and returns one detail per failed field.
func ValidateStruct(s interface{}) []ErrorDetail {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []ErrorDetail{{Field: "", Message: err.Error()}}
	}

	var details []ErrorDetail
	for _, fe := range validationErrors {
		field := fe.Field()
		tag := fe.Tag()
		param := fe.Param()

		var message string
		switch tag {
		case "required":
			message = fmt.Sprintf("%s is required", field)
		case "email":
			message = fmt.Sprintf("%s must be a valid email address", field)
		case "min":
			message = fmt.Sprintf("%s must be at least %s characters", field, param)
		case "max":
			message = fmt.Sprintf("%s must be at most %s characters", field, param)
		case "pokemon_name":
			message = fmt.Sprintf("%s must be a lowercase pokemon name", field)
		case "password_strength":
			message = fmt.Sprintf("%s must be at least 8 characters with uppercase, lowercase, number, and special character", field)
		default:
			message = fmt.Sprintf("%s is invalid", field)
		}

		fieldName := strings.ToLower(field[:1]) + field[1:]
		details = append(details, ErrorDetail{
			Field:   fieldName,
			Message: message,
		})
	}

	return details
}
