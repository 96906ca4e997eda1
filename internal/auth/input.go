package auth

import (
	"net/mail"
	"unicode"

	"message-board/internal/failure"
)

const weakPassword = "Password must be at least 8 characters long and contain at least 1 lowercase, 1 uppercase, 1 number, and 1 symbol"

type SignUpInput struct {
	Email    string
	Password string
}

func (in SignUpInput) Validate() error {
	if err := validateEmail(in.Email); err != nil {
		return err
	}
	if !strongPassword(in.Password) {
		return failure.Validation(weakPassword)
	}
	return nil
}

type SignInInput struct {
	Email    string
	Password string
}

func (in SignInInput) Validate() error {
	if err := validateEmail(in.Email); err != nil {
		return err
	}
	if in.Password == "" {
		return failure.Validation("password should not be empty")
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return failure.Validation("email should not be empty")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return failure.Validation("email must be an email")
	}
	return nil
}

func strongPassword(p string) bool {
	var n, lower, upper, digit, symbol int
	for _, r := range p {
		n++
		switch {
		case unicode.IsLower(r):
			lower++
		case unicode.IsUpper(r):
			upper++
		case unicode.IsDigit(r):
			digit++
		case !unicode.IsLetter(r):
			symbol++
		}
	}
	return n >= 8 && lower > 0 && upper > 0 && digit > 0 && symbol > 0
}
