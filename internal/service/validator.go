package service

import (
	"regexp"
	"strings"

	"github.com/cribnosh/verify-api/internal/config"
	"github.com/cribnosh/verify-api/internal/model"
	"github.com/cribnosh/verify-api/pkg/apperr"
	"github.com/go-playground/validator/v10"
)

const codeLength = 6

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	codePattern  = regexp.MustCompile(`^\d{6}$`)

	// phone separators users commonly type
	phoneStripper = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")

	validate = validator.New()
)

// ParseIdentifier normalizes the raw phone/email pair into a single identifier.
// Exactly one of them must be present.
func ParseIdentifier(op, phone, email string) (model.Identifier, error) {
	phone = phoneStripper.Replace(strings.TrimSpace(phone))
	email = strings.ToLower(strings.TrimSpace(email))

	switch {
	case phone == "" && email == "":
		return model.Identifier{}, apperr.Validation(op, "Either phone or email must be provided")
	case phone != "" && email != "":
		return model.Identifier{}, apperr.Validation(op, "Provide either phone or email, not both")
	case email != "":
		if !emailPattern.MatchString(email) {
			return model.Identifier{}, apperr.Validation(op, "Invalid email format").With("field", "email")
		}
		return model.Identifier{Kind: model.IdentifierEmail, Value: email}, nil
	default:
		if err := validate.Var(phone, "e164"); err != nil {
			return model.Identifier{}, apperr.Validation(op, "Invalid phone number format, use E.164 (e.g. +447700900123)").With("field", "phone")
		}
		return model.Identifier{Kind: model.IdentifierPhone, Value: phone}, nil
	}
}

// ValidateCode requires exactly six ASCII digits.
func ValidateCode(op, code string) error {
	if !codePattern.MatchString(code) {
		return apperr.Validation(op, "Verification code must be exactly 6 digits").With("field", "code")
	}
	return nil
}

// ResolveMaxAttempts applies the default ceiling and rejects out-of-range values.
func ResolveMaxAttempts(op string, requested *int, fallback int) (int, error) {
	if requested == nil {
		return fallback, nil
	}
	n := *requested
	if n < config.MinMaxAttempts || n > config.MaxMaxAttempts {
		return 0, apperr.Validation(op, "max_attempts must be between 1 and 10").With("max_attempts", n)
	}
	return n, nil
}
