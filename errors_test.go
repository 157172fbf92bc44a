package auth_test

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-orgauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "sentinel", err: auth.ErrNotFound, expected: true},
		{name: "wrapped sentinel", err: fmt.Errorf("load: %w", auth.ErrNotFound), expected: true},
		{name: "no rows", err: sql.ErrNoRows, expected: true},
		{name: "rich not found", err: goerrors.New("gone", goerrors.CategoryNotFound), expected: true},
		{name: "forbidden", err: auth.ErrForbidden, expected: false},
		{name: "plain error", err: errors.New("boom"), expected: false},
		{name: "nil", err: nil, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, auth.IsNotFound(tt.err))
		})
	}
}

func TestSentinelErrorProperties(t *testing.T) {
	tests := []struct {
		err      error
		textCode string
		status   int
	}{
		{auth.ErrForbidden, auth.TextCodeForbidden, http.StatusForbidden},
		{auth.ErrUnauthorized, auth.TextCodeUnauthorized, http.StatusUnauthorized},
		{auth.ErrNotFound, auth.TextCodeNotFound, http.StatusNotFound},
		{auth.ErrInvalidEmail, auth.TextCodeInvalidEmail, http.StatusBadRequest},
		{auth.ErrInvalidPassword, auth.TextCodeInvalidPassword, http.StatusBadRequest},
		{auth.ErrInvalidArgument, auth.TextCodeInvalidArgument, http.StatusBadRequest},
		{auth.ErrTokenInvalid, auth.TextCodeTokenInvalid, http.StatusUnauthorized},
		{auth.ErrEmailTaken, auth.TextCodeEmailTaken, http.StatusConflict},
		{auth.ErrAlreadyMember, auth.TextCodeAlreadyMember, http.StatusConflict},
		{auth.ErrRateLimited, auth.TextCodeRateLimited, http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.textCode, func(t *testing.T) {
			var richErr *goerrors.Error
			require.True(t, goerrors.As(tt.err, &richErr))
			assert.Equal(t, tt.textCode, richErr.TextCode)
			assert.Equal(t, tt.status, richErr.Code)
			assert.Equal(t, tt.status, auth.HTTPStatus(tt.err))
		})
	}
}

func TestValidationFields(t *testing.T) {
	fields := auth.ValidationFields(validation.Errors{
		"name":  errors.New("cannot be blank"),
		"phone": nil,
	})
	assert.Equal(t, map[string]string{"name": "cannot be blank"}, fields)
}

func TestValidationErrorCarriesFields(t *testing.T) {
	_, err := auth.NormalizePhone("12")
	require.Error(t, err)

	err = auth.SignupMessage{Email: "a@example.com", Password: testPassword, Phone: "12"}.Validate()
	requireTextCode(t, err, auth.TextCodeValidationFailed)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	fields, ok := richErr.Metadata["fields"].(map[string]string)
	require.True(t, ok)
	assert.Contains(t, fields, "phone")
}
