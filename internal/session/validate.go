// ABOUTME: Input validation for signup and login, applied before any network call

package session

import (
	"regexp"
	"strings"

	"github.com/arham771790/Chat-Frontend/internal/api"
)

// MinPasswordLength is the shortest password signup accepts.
const MinPasswordLength = 6

var emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// ValidationError is user input rejected before reaching the backend.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ValidateSignup checks a signup form.
func ValidateSignup(req api.SignupRequest) error {
	switch {
	case strings.TrimSpace(req.FullName) == "":
		return &ValidationError{Field: "fullName", Message: "Full name is required"}
	case strings.TrimSpace(req.Email) == "":
		return &ValidationError{Field: "email", Message: "Email is required"}
	case !emailPattern.MatchString(strings.TrimSpace(req.Email)):
		return &ValidationError{Field: "email", Message: "Invalid email format"}
	case req.Password == "":
		return &ValidationError{Field: "password", Message: "Password is required"}
	case len(req.Password) < MinPasswordLength:
		return &ValidationError{Field: "password", Message: "Password must be at least 6 characters"}
	}
	return nil
}

// ValidateCredentials checks a login form.
func ValidateCredentials(creds api.Credentials) error {
	switch {
	case strings.TrimSpace(creds.Email) == "":
		return &ValidationError{Field: "email", Message: "Email is required"}
	case creds.Password == "":
		return &ValidationError{Field: "password", Message: "Password is required"}
	}
	return nil
}
