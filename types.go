package auth

import (
	"context"
	"fmt"
	"time"
)

// Logger is the logging contract used across the package.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// TokenConfig holds the issuer and the per kind secrets used to build
// the token providers.
type TokenConfig interface {
	GetIssuer() string
	GetAuthenticationTokenSecretKey() []byte
	GetPasswordRecoveryTokenSecretKey() []byte
	GetPrimaryEmailChangeTokenSecretKey() []byte
	GetPrimaryEmailConfirmationTokenSecretKey() []byte
	GetOrganizationInviteTokenSecretKey() []byte
}

// CacheStore is the key value store backing the TimeoutGate.
// A zero ttl means the key does not expire.
type CacheStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	KeyExists(ctx context.Context, key string) (bool, error)
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	PutIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
}

// Mailer delivers fully rendered messages.
type Mailer interface {
	SendMail(ctx context.Context, title, body, contentType string, recipients ...string) error
	SendMailAsync(ctx context.Context, title, body, contentType string, recipients ...string) <-chan error
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] ORGAUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] ORGAUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] ORGAUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] ORGAUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
