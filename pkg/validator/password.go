package validator

import (
	"errors"
	"unicode"
	"unicode/utf8"
)

var (
	ErrPasswordTooShort = errors.New("password must be at least 8 characters long")
	ErrPasswordTooLong  = errors.New("password must be at most 72 bytes long")
	ErrPasswordTooWeak  = errors.New("password must contain at least one digit and one letter")
)

type Validator interface {
	ValidatePassword(password string) error
}

type passwordValidator struct{}

func NewValidator() Validator {
	return &passwordValidator{}
}

// ValidatePassword enforces the bcrypt input limit as well as a minimal strength rule.
func (v *passwordValidator) ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < 8 {
		return ErrPasswordTooShort
	}
	if len(password) > 72 {
		return ErrPasswordTooLong
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	if !hasLetter || !hasDigit {
		return ErrPasswordTooWeak
	}

	return nil
}
