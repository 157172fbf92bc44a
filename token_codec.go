package auth

import (
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/golang-jwt/jwt/v5"
)

var reservedClaims = map[string]struct{}{
	"iss": {}, "sub": {}, "iat": {}, "exp": {}, "nbf": {}, "aud": {}, "jti": {},
}

// ClaimSet is the verified claim map returned by TokenCodec.Verify.
type ClaimSet map[string]any

// String returns a string claim.
func (c ClaimSet) String(name string) (string, bool) {
	v, ok := c[name].(string)
	return v, ok
}

// Strings returns a list claim. JSON decoding yields []any so both shapes
// are accepted.
func (c ClaimSet) Strings(name string) ([]string, bool) {
	switch v := c[name].(type) {
	case []string:
		return append([]string{}, v...), true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

// IssuedAt returns the iat claim in UTC.
func (c ClaimSet) IssuedAt() time.Time {
	return numericDate(jwt.MapClaims(c).GetIssuedAt())
}

// ExpiresAt returns the exp claim in UTC.
func (c ClaimSet) ExpiresAt() time.Time {
	return numericDate(jwt.MapClaims(c).GetExpirationTime())
}

func numericDate(d *jwt.NumericDate, err error) time.Time {
	if err != nil || d == nil {
		return time.Time{}
	}
	return d.Time.UTC()
}

// CodecOption configures a TokenCodec
type CodecOption func(*TokenCodec)

// WithCodecClock sets the clock used for expiry checks.
func WithCodecClock(now func() time.Time) CodecOption {
	return func(c *TokenCodec) {
		if now != nil {
			c.now = now
		}
	}
}

// WithCodecLogger sets the logger used to record verification failures.
func WithCodecLogger(logger Logger) CodecOption {
	return func(c *TokenCodec) {
		c.logger = normalizeLogger(logger)
	}
}

// TokenCodec signs and verifies HS512 JWTs.
type TokenCodec struct {
	now    func() time.Time
	logger Logger
}

// NewTokenCodec returns a codec using the wall clock.
func NewTokenCodec(opts ...CodecOption) *TokenCodec {
	c := &TokenCodec{
		now:    time.Now,
		logger: defLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Now returns the codec clock reading.
func (c *TokenCodec) Now() time.Time {
	return c.now()
}

// Issue signs the registered claims plus the given claims. Claim values
// must be string or []string.
func (c *TokenCodec) Issue(secret []byte, issuer, subject string, issuedAt, expiresAt time.Time, claims map[string]any) (string, error) {
	if len(secret) == 0 {
		return "", invalidArgument("empty signing secret")
	}

	if issuedAt.After(expiresAt) {
		return "", invalidArgument("issuedAt is after expiresAt")
	}

	mc := jwt.MapClaims{
		"iss": issuer,
		"sub": subject,
		"iat": jwt.NewNumericDate(issuedAt.Truncate(time.Second)),
		"exp": jwt.NewNumericDate(expiresAt.Truncate(time.Second)),
	}

	for name, value := range claims {
		if _, reserved := reservedClaims[name]; reserved {
			return "", invalidArgument(fmt.Sprintf("claim %q is reserved", name))
		}
		switch v := value.(type) {
		case string:
			mc[name] = v
		case []string:
			mc[name] = append([]string{}, v...)
		default:
			return "", invalidArgument(fmt.Sprintf("claim %q must be a string or a list of strings", name))
		}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, mc)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign token")
	}
	return signed, nil
}

// Verify checks signature, issuer, subject, expiry and the presence of
// every required claim. All failures return the same error.
func (c *TokenCodec) Verify(secret []byte, issuer, subject string, required []string, token string) (ClaimSet, error) {
	if len(secret) == 0 || token == "" {
		return nil, errTokenVerification
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithSubject(subject),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)

	claims := jwt.MapClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		c.logger.Debug("token verification failed: subject=%s err=%v", subject, err)
		return nil, errTokenVerification
	}

	if !parsed.Valid {
		return nil, errTokenVerification
	}

	for _, name := range required {
		if _, ok := claims[name]; !ok {
			c.logger.Debug("token verification failed: subject=%s missing claim %s", subject, name)
			return nil, errTokenVerification
		}
	}

	return ClaimSet(claims), nil
}

func invalidArgument(msg string) *goerrors.Error {
	return ErrInvalidArgument.Clone().WithMetadata(map[string]any{
		"reason": msg,
	})
}
