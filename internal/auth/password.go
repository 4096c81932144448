package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/rendis/procdoc/pkg/schema"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", schema.NewErrorf(schema.ErrCodeValidation,
			"password must be at least %d characters", MinPasswordLength).WithField("password")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", schema.NewError(schema.ErrCodeValidation, "password is too long").WithField("password")
		}
		return "", err
	}
	return string(h), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
