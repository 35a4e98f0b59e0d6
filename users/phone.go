package users

import (
	"errors"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultPhoneRegion is used for numbers entered without a country code
const DefaultPhoneRegion = "US"

var ErrInvalidPhone = errors.New("must be a valid phone number")

// NormalizePhone parses raw and returns it in E.164 form
func NormalizePhone(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidPhone
	}
	num, err := phonenumbers.Parse(raw, DefaultPhoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", ErrInvalidPhone
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// PhoneRule is a validation rule func for ozzo-validation; empty values pass so it can be
// combined with validation.Required.
func PhoneRule(value interface{}) error {
	s, _ := value.(string)
	if strings.TrimSpace(s) == "" {
		return nil
	}
	_, err := NormalizePhone(s)
	return err
}

// PasswordRule adapts ValidatePasswordStrength for ozzo-validation
func PasswordRule(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	return ValidatePasswordStrength(s)
}
