package auth

import (
	"database/sql"
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

const (
	TextCodeValidationFailed = "VALIDATION_FAILED"
	TextCodeForbidden        = "FORBIDDEN"
	TextCodeUnauthorized     = "UNAUTHORIZED"
	TextCodeNotFound         = "NOT_FOUND"
	TextCodeInvalidEmail     = "INVALID_EMAIL"
	TextCodeInvalidPassword  = "INVALID_PASSWORD"
	TextCodeInvalidArgument  = "INVALID_ARGUMENT"
	TextCodeTokenInvalid     = "TOKEN_INVALID"
	TextCodeEmailTaken       = "EMAIL_TAKEN"
	TextCodeAlreadyMember    = "ALREADY_MEMBER"
	TextCodeRateLimited      = "RATE_LIMITED"
)

// ErrForbidden is returned for every authorization failure. It never says
// which check failed.
var ErrForbidden = goerrors.New("forbidden", goerrors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(goerrors.CodeForbidden)

// ErrUnauthorized is returned when a protected operation has no identity.
var ErrUnauthorized = goerrors.New("authentication required", goerrors.CategoryAuth).
	WithTextCode(TextCodeUnauthorized).
	WithCode(goerrors.CodeUnauthorized)

// ErrNotFound is returned when a referenced entity does not exist.
var ErrNotFound = goerrors.New("not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeNotFound).
	WithCode(goerrors.CodeNotFound)

var ErrInvalidEmail = goerrors.New("invalid email", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidEmail).
	WithCode(goerrors.CodeBadRequest)

var ErrInvalidPassword = goerrors.New("invalid password", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidArgument is returned for programming errors such as issuing a
// token that expires before it is issued.
var ErrInvalidArgument = goerrors.New("invalid argument", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidArgument).
	WithCode(goerrors.CodeBadRequest)

// ErrTokenInvalid is the uniform answer for any token that does not verify.
var ErrTokenInvalid = goerrors.New("invalid or expired token", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenInvalid).
	WithCode(goerrors.CodeUnauthorized)

var ErrEmailTaken = goerrors.New("email already in use", goerrors.CategoryConflict).
	WithTextCode(TextCodeEmailTaken).
	WithCode(goerrors.CodeConflict)

var ErrAlreadyMember = goerrors.New("already a member", goerrors.CategoryConflict).
	WithTextCode(TextCodeAlreadyMember).
	WithCode(goerrors.CodeConflict)

var ErrRateLimited = goerrors.New("too many requests, try again later", goerrors.CategoryRateLimit).
	WithTextCode(TextCodeRateLimited).
	WithCode(429)

// errTokenVerification never leaves the token providers.
var errTokenVerification = errors.New("could not verify token")

// validationError turns ozzo validation errors into a rich error whose
// metadata carries one message per field.
func validationError(err error) error {
	if err == nil {
		return nil
	}

	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "validation failed").
			WithTextCode(TextCodeValidationFailed).
			WithCode(goerrors.CodeBadRequest)
	}

	return goerrors.New("validation failed", goerrors.CategoryValidation).
		WithTextCode(TextCodeValidationFailed).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(map[string]any{
			"fields": ValidationFields(verrs),
		})
}

// ValidationFields flattens ozzo errors into field name to message.
func ValidationFields(verrs validation.Errors) map[string]string {
	fields := make(map[string]string, len(verrs))
	for field, err := range verrs {
		if err == nil {
			continue
		}
		fields[field] = err.Error()
	}
	return fields
}

// IsNotFound reports whether err means a record is missing.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, sql.ErrNoRows) {
		return true
	}
	if repository.IsRecordNotFound(err) {
		return true
	}
	return goerrors.IsNotFound(err)
}
