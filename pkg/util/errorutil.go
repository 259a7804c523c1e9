package util

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Error codes surfaced to API callers.
const (
	CodeEmailConflict          = "EMAIL_CONFLICT"
	CodeCategorySectorMismatch = "CATEGORY_SECTOR_MISMATCH"
	CodeAlreadyProfessional    = "ALREADY_PROFESSIONAL"
	CodeSelfDemotionForbidden  = "SELF_DEMOTION_FORBIDDEN"
	CodeIdentityCreationFailed = "IDENTITY_CREATION_FAILED"
	CodeProfileWriteFailed     = "PROFILE_WRITE_FAILED"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeForbidden              = "FORBIDDEN"
	CodeValidationFailed       = "VALIDATION_FAILED"
	CodeNotFound               = "NOT_FOUND"
	CodeRateLimited            = "RATE_LIMITED"
	CodeInternal               = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    any
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

// FieldViolation describes one rejected input field.
type FieldViolation struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, fields []FieldViolation) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, fields)
}

func NewEmailConflict() error {
	return NewDomainError(CodeEmailConflict, "this email is already in use", http.StatusConflict, nil)
}

func NewCategorySectorMismatch() error {
	return NewDomainError(CodeCategorySectorMismatch, "invalid selection", http.StatusBadRequest, nil)
}

func NewAlreadyProfessional() error {
	return NewDomainError(CodeAlreadyProfessional, "account is already professional", http.StatusConflict, nil)
}

func NewSelfDemotionForbidden() error {
	return NewDomainError(CodeSelfDemotionForbidden, "you cannot change your own administrator role", http.StatusBadRequest, nil)
}

// NewIdentityCreationFailed keeps the provider cause for logging only.
func NewIdentityCreationFailed(cause error) error {
	return &DomainError{
		Code:       CodeIdentityCreationFailed,
		Message:    "could not create account",
		HTTPStatus: http.StatusInternalServerError,
		Err:        cause,
	}
}

func NewProfileWriteFailed(cause error) error {
	return &DomainError{
		Code:       CodeProfileWriteFailed,
		Message:    "could not finish creating your account",
		HTTPStatus: http.StatusInternalServerError,
		Err:        cause,
	}
}

func NewNotFound(resource string) error {
	return NewDomainError(CodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound, nil)
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewTooManyRequests(message string) error {
	return NewDomainError(CodeRateLimited, message, http.StatusTooManyRequests, nil)
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
	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
		return &DomainError{
			Code:       CodeNotFound,
			Message:    "resource not found",
			HTTPStatus: http.StatusNotFound,
			Err:        err,
		}
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// MapError converts generic errors to DomainError.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}

// HasCode reports whether err carries the given domain code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == code
}
