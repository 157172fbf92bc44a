package auth

import (
	"time"
)

// TokenPayload is what a token kind embeds in and recovers from a token.
type TokenPayload[P any] struct {
	IssuedAt  time.Time
	ExpiresAt time.Time
	Claims    P
}

// ClaimSchema describes how a payload maps onto named claims.
type ClaimSchema[P any] struct {
	Required []string
	Encode   func(P) map[string]any
	Decode   func(ClaimSet) (P, error)
}

// TokenKindConfig configures a TokenKind.
type TokenKindConfig struct {
	Issuer  string
	Subject string
	Secret  []byte
	// BindsCode mixes a caller supplied code into the signing secret.
	BindsCode bool
}

// TokenKind is a named token namespace: one subject, one secret, one
// claim schema.
type TokenKind[P any] struct {
	codec     *TokenCodec
	issuer    string
	subject   string
	secret    []byte
	bindsCode bool
	schema    ClaimSchema[P]
}

// NewTokenKind validates the config and returns a token kind.
func NewTokenKind[P any](codec *TokenCodec, cfg TokenKindConfig, schema ClaimSchema[P]) (*TokenKind[P], error) {
	if codec == nil {
		codec = NewTokenCodec()
	}

	if len(cfg.Secret) == 0 {
		return nil, invalidArgument("token kind " + cfg.Subject + " has no secret")
	}

	if cfg.Subject == "" || cfg.Issuer == "" {
		return nil, invalidArgument("token kind requires issuer and subject")
	}

	if schema.Encode == nil || schema.Decode == nil {
		return nil, invalidArgument("token kind " + cfg.Subject + " has an incomplete claim schema")
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)

	return &TokenKind[P]{
		codec:     codec,
		issuer:    cfg.Issuer,
		subject:   cfg.Subject,
		secret:    secret,
		bindsCode: cfg.BindsCode,
		schema:    schema,
	}, nil
}

// Subject returns the namespace of this kind.
func (k *TokenKind[P]) Subject() string {
	return k.subject
}

// Issue signs claims valid from issuedAt until expiresAt. code is only
// accepted, and then required, by kinds that bind a code.
func (k *TokenKind[P]) Issue(claims P, code string, issuedAt, expiresAt time.Time) (string, TokenPayload[P], error) {
	secret, ok := k.signingSecret(code)
	if !ok {
		return "", TokenPayload[P]{}, invalidArgument("code binding mismatch for token kind " + k.subject)
	}

	token, err := k.codec.Issue(secret, k.issuer, k.subject, issuedAt, expiresAt, k.schema.Encode(claims))
	if err != nil {
		return "", TokenPayload[P]{}, err
	}

	return token, TokenPayload[P]{
		IssuedAt:  issuedAt.Truncate(time.Second).UTC(),
		ExpiresAt: expiresAt.Truncate(time.Second).UTC(),
		Claims:    claims,
	}, nil
}

// ValidateAndDecode returns false for any token that does not verify or
// whose claims do not decode.
func (k *TokenKind[P]) ValidateAndDecode(token, code string) (TokenPayload[P], bool) {
	secret, ok := k.signingSecret(code)
	if !ok {
		return TokenPayload[P]{}, false
	}

	set, err := k.codec.Verify(secret, k.issuer, k.subject, k.schema.Required, token)
	if err != nil {
		return TokenPayload[P]{}, false
	}

	claims, err := k.schema.Decode(set)
	if err != nil {
		k.codec.logger.Debug("token claims did not decode: subject=%s err=%v", k.subject, err)
		return TokenPayload[P]{}, false
	}

	return TokenPayload[P]{
		IssuedAt:  set.IssuedAt(),
		ExpiresAt: set.ExpiresAt(),
		Claims:    claims,
	}, true
}

func (k *TokenKind[P]) signingSecret(code string) ([]byte, bool) {
	if !k.bindsCode {
		return k.secret, code == ""
	}

	if code == "" {
		return nil, false
	}

	secret := make([]byte, 0, len(k.secret)+len(code))
	secret = append(secret, k.secret...)
	secret = append(secret, code...)
	return secret, true
}
