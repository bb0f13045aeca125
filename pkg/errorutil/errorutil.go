package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Error codes shared by the rule engine and any layer that translates them.
const (
	CodeInvalidTicket = "INVALID_TICKET"
	CodeUnknownUser   = "UNKNOWN_USER"
	CodeNotFound      = "NOT_FOUND"
	CodeInternal      = "INTERNAL_ERROR"
)

// Sentinels for errors.Is. They match any DomainError carrying the same code.
var (
	ErrInvalidTicket = &DomainError{Code: CodeInvalidTicket, Message: "invalid ticket", HTTPStatus: http.StatusBadRequest}
	ErrUnknownUser   = &DomainError{Code: CodeUnknownUser, Message: "unknown user", HTTPStatus: http.StatusUnprocessableEntity}
	ErrNotFound      = &DomainError{Code: CodeNotFound, Message: "not found", HTTPStatus: http.StatusNotFound}
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches on Code so callers can compare against the package sentinels.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

// NewInvalidTicket reports missing or malformed ticket input.
func NewInvalidTicket(message string, details map[string]any) error {
	return NewDomainError(CodeInvalidTicket, message, http.StatusBadRequest, details)
}

// NewUnknownUser reports a username that does not resolve to a user.
func NewUnknownUser(username string) error {
	message := "user not found"
	if username != "" {
		message = fmt.Sprintf("user %q not found", username)
	}
	return NewDomainError(CodeUnknownUser, message, http.StatusUnprocessableEntity, map[string]any{"username": username})
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return NewNotFound("resource", nil).(*DomainError)
	}
	return NewInternalError(err).(*DomainError)
}
