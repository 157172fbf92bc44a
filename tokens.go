package auth

import (
	"fmt"
	"time"
)

// Token subjects. All kinds share the configured issuer.
const (
	SubjectAuthentication           = "authentication"
	SubjectPasswordRecovery         = "password-recovery"
	SubjectPrimaryEmailChange       = "primary-email-change"
	SubjectPrimaryEmailConfirmation = "primary-email-confirmation"
	SubjectOrganizationInvite       = "organization-invite"
)

// Wire claim names.
const (
	ClaimUserIdentifier         = "userIdentifier"
	ClaimClientIdentifier       = "clientIdentifier"
	ClaimOrganizationIdentifier = "organizationIdentifier"
	ClaimRoles                  = "roles"
	ClaimNewPrimaryEmail        = "newPrimaryEmail"
	ClaimRecipientEmail         = "recipientEmail"
)

// DefaultIssuer is used when the config leaves the issuer empty.
const DefaultIssuer = "orgauth"

// SessionClaims is the payload of a session token.
type SessionClaims struct {
	UserID   string
	ClientID string
	// OrganizationID is empty when no organization was selected at login.
	OrganizationID string
	Roles          []string
}

// PasswordRecoveryClaims is the payload of a password recovery token.
type PasswordRecoveryClaims struct {
	UserID string
}

// PrimaryEmailChangeClaims is the payload of a primary email change token.
type PrimaryEmailChangeClaims struct {
	UserID          string
	NewPrimaryEmail string
}

// PrimaryEmailConfirmationClaims is the payload of an email confirmation token.
type PrimaryEmailConfirmationClaims struct {
	UserID string
}

// OrganizationInviteClaims is the payload of an organization invite token.
type OrganizationInviteClaims struct {
	OrganizationID string
	RecipientEmail string
}

type (
	SessionPayload                  = TokenPayload[SessionClaims]
	PasswordRecoveryPayload         = TokenPayload[PasswordRecoveryClaims]
	PrimaryEmailChangePayload       = TokenPayload[PrimaryEmailChangeClaims]
	PrimaryEmailConfirmationPayload = TokenPayload[PrimaryEmailConfirmationClaims]
	OrganizationInvitePayload       = TokenPayload[OrganizationInviteClaims]
)

var sessionSchema = ClaimSchema[SessionClaims]{
	Required: []string{ClaimUserIdentifier, ClaimClientIdentifier, ClaimRoles},
	Encode: func(c SessionClaims) map[string]any {
		roles := c.Roles
		if roles == nil {
			roles = []string{}
		}
		out := map[string]any{
			ClaimUserIdentifier:   c.UserID,
			ClaimClientIdentifier: c.ClientID,
			ClaimRoles:            roles,
		}
		if c.OrganizationID != "" {
			out[ClaimOrganizationIdentifier] = c.OrganizationID
		}
		return out
	},
	Decode: func(set ClaimSet) (SessionClaims, error) {
		var c SessionClaims
		var err error
		if c.UserID, err = requireString(set, ClaimUserIdentifier); err != nil {
			return c, err
		}
		if c.ClientID, err = requireString(set, ClaimClientIdentifier); err != nil {
			return c, err
		}
		roles, ok := set.Strings(ClaimRoles)
		if !ok {
			return c, fmt.Errorf("claim %s is not a list of strings", ClaimRoles)
		}
		c.Roles = roles
		if _, present := set[ClaimOrganizationIdentifier]; present {
			if c.OrganizationID, err = requireString(set, ClaimOrganizationIdentifier); err != nil {
				return c, err
			}
		}
		return c, nil
	},
}

var passwordRecoverySchema = ClaimSchema[PasswordRecoveryClaims]{
	Required: []string{ClaimUserIdentifier},
	Encode: func(c PasswordRecoveryClaims) map[string]any {
		return map[string]any{ClaimUserIdentifier: c.UserID}
	},
	Decode: func(set ClaimSet) (PasswordRecoveryClaims, error) {
		id, err := requireString(set, ClaimUserIdentifier)
		return PasswordRecoveryClaims{UserID: id}, err
	},
}

var primaryEmailChangeSchema = ClaimSchema[PrimaryEmailChangeClaims]{
	Required: []string{ClaimUserIdentifier, ClaimNewPrimaryEmail},
	Encode: func(c PrimaryEmailChangeClaims) map[string]any {
		return map[string]any{
			ClaimUserIdentifier:  c.UserID,
			ClaimNewPrimaryEmail: c.NewPrimaryEmail,
		}
	},
	Decode: func(set ClaimSet) (PrimaryEmailChangeClaims, error) {
		var c PrimaryEmailChangeClaims
		var err error
		if c.UserID, err = requireString(set, ClaimUserIdentifier); err != nil {
			return c, err
		}
		c.NewPrimaryEmail, err = requireString(set, ClaimNewPrimaryEmail)
		return c, err
	},
}

var primaryEmailConfirmationSchema = ClaimSchema[PrimaryEmailConfirmationClaims]{
	Required: []string{ClaimUserIdentifier},
	Encode: func(c PrimaryEmailConfirmationClaims) map[string]any {
		return map[string]any{ClaimUserIdentifier: c.UserID}
	},
	Decode: func(set ClaimSet) (PrimaryEmailConfirmationClaims, error) {
		id, err := requireString(set, ClaimUserIdentifier)
		return PrimaryEmailConfirmationClaims{UserID: id}, err
	},
}

var organizationInviteSchema = ClaimSchema[OrganizationInviteClaims]{
	Required: []string{ClaimOrganizationIdentifier, ClaimRecipientEmail},
	Encode: func(c OrganizationInviteClaims) map[string]any {
		return map[string]any{
			ClaimOrganizationIdentifier: c.OrganizationID,
			ClaimRecipientEmail:         c.RecipientEmail,
		}
	},
	Decode: func(set ClaimSet) (OrganizationInviteClaims, error) {
		var c OrganizationInviteClaims
		var err error
		if c.OrganizationID, err = requireString(set, ClaimOrganizationIdentifier); err != nil {
			return c, err
		}
		c.RecipientEmail, err = requireString(set, ClaimRecipientEmail)
		return c, err
	},
}

func requireString(set ClaimSet, name string) (string, error) {
	v, ok := set.String(name)
	if !ok || v == "" {
		return "", fmt.Errorf("claim %s is not a non empty string", name)
	}
	return v, nil
}

// SessionTokenProvider issues the bearer tokens read by the AuthenticationGate.
type SessionTokenProvider struct {
	kind *TokenKind[SessionClaims]
}

func (p *SessionTokenProvider) Issue(claims SessionClaims, expiresAt time.Time) (string, SessionPayload, error) {
	return p.IssueAt(claims, p.kind.codec.Now(), expiresAt)
}

func (p *SessionTokenProvider) IssueAt(claims SessionClaims, issuedAt, expiresAt time.Time) (string, SessionPayload, error) {
	if claims.Roles == nil {
		claims.Roles = []string{}
	}
	return p.kind.Issue(claims, "", issuedAt, expiresAt)
}

func (p *SessionTokenProvider) ValidateAndDecode(token string) (SessionPayload, bool) {
	return p.kind.ValidateAndDecode(token, "")
}

// PasswordRecoveryTokenProvider issues the links mailed by password recovery.
type PasswordRecoveryTokenProvider struct {
	kind *TokenKind[PasswordRecoveryClaims]
}

func (p *PasswordRecoveryTokenProvider) Issue(claims PasswordRecoveryClaims, expiresAt time.Time) (string, PasswordRecoveryPayload, error) {
	return p.IssueAt(claims, p.kind.codec.Now(), expiresAt)
}

func (p *PasswordRecoveryTokenProvider) IssueAt(claims PasswordRecoveryClaims, issuedAt, expiresAt time.Time) (string, PasswordRecoveryPayload, error) {
	return p.kind.Issue(claims, "", issuedAt, expiresAt)
}

func (p *PasswordRecoveryTokenProvider) ValidateAndDecode(token string) (PasswordRecoveryPayload, bool) {
	return p.kind.ValidateAndDecode(token, "")
}

// PrimaryEmailChangeTokenProvider signs with the base secret followed by the
// confirmation code, so a token only redeems together with its code.
type PrimaryEmailChangeTokenProvider struct {
	kind *TokenKind[PrimaryEmailChangeClaims]
}

func (p *PrimaryEmailChangeTokenProvider) Issue(claims PrimaryEmailChangeClaims, code string, expiresAt time.Time) (string, PrimaryEmailChangePayload, error) {
	return p.IssueAt(claims, code, p.kind.codec.Now(), expiresAt)
}

func (p *PrimaryEmailChangeTokenProvider) IssueAt(claims PrimaryEmailChangeClaims, code string, issuedAt, expiresAt time.Time) (string, PrimaryEmailChangePayload, error) {
	if code == "" {
		return "", PrimaryEmailChangePayload{}, invalidArgument("confirmation code is required")
	}
	return p.kind.Issue(claims, code, issuedAt, expiresAt)
}

func (p *PrimaryEmailChangeTokenProvider) ValidateAndDecode(token, code string) (PrimaryEmailChangePayload, bool) {
	return p.kind.ValidateAndDecode(token, code)
}

// PrimaryEmailConfirmationTokenProvider issues email ownership links.
type PrimaryEmailConfirmationTokenProvider struct {
	kind *TokenKind[PrimaryEmailConfirmationClaims]
}

func (p *PrimaryEmailConfirmationTokenProvider) Issue(claims PrimaryEmailConfirmationClaims, expiresAt time.Time) (string, PrimaryEmailConfirmationPayload, error) {
	return p.IssueAt(claims, p.kind.codec.Now(), expiresAt)
}

func (p *PrimaryEmailConfirmationTokenProvider) IssueAt(claims PrimaryEmailConfirmationClaims, issuedAt, expiresAt time.Time) (string, PrimaryEmailConfirmationPayload, error) {
	return p.kind.Issue(claims, "", issuedAt, expiresAt)
}

func (p *PrimaryEmailConfirmationTokenProvider) ValidateAndDecode(token string) (PrimaryEmailConfirmationPayload, bool) {
	return p.kind.ValidateAndDecode(token, "")
}

// OrganizationInviteTokenProvider issues invitation links.
type OrganizationInviteTokenProvider struct {
	kind *TokenKind[OrganizationInviteClaims]
}

func (p *OrganizationInviteTokenProvider) Issue(claims OrganizationInviteClaims, expiresAt time.Time) (string, OrganizationInvitePayload, error) {
	return p.IssueAt(claims, p.kind.codec.Now(), expiresAt)
}

func (p *OrganizationInviteTokenProvider) IssueAt(claims OrganizationInviteClaims, issuedAt, expiresAt time.Time) (string, OrganizationInvitePayload, error) {
	return p.kind.Issue(claims, "", issuedAt, expiresAt)
}

func (p *OrganizationInviteTokenProvider) ValidateAndDecode(token string) (OrganizationInvitePayload, bool) {
	return p.kind.ValidateAndDecode(token, "")
}

// TokenProviders groups the five token kinds built from one config.
type TokenProviders struct {
	Session                  *SessionTokenProvider
	PasswordRecovery         *PasswordRecoveryTokenProvider
	PrimaryEmailChange       *PrimaryEmailChangeTokenProvider
	PrimaryEmailConfirmation *PrimaryEmailConfirmationTokenProvider
	OrganizationInvite       *OrganizationInviteTokenProvider
}

// NewTokenProviders builds every provider with the shared issuer and its
// own secret.
func NewTokenProviders(cfg TokenConfig, opts ...CodecOption) (*TokenProviders, error) {
	codec := NewTokenCodec(opts...)

	issuer := cfg.GetIssuer()
	if issuer == "" {
		issuer = DefaultIssuer
	}

	kindConfig := func(subject string, secret []byte, bindsCode bool) TokenKindConfig {
		return TokenKindConfig{Issuer: issuer, Subject: subject, Secret: secret, BindsCode: bindsCode}
	}

	session, err := NewTokenKind(codec, kindConfig(SubjectAuthentication, cfg.GetAuthenticationTokenSecretKey(), false), sessionSchema)
	if err != nil {
		return nil, err
	}

	recovery, err := NewTokenKind(codec, kindConfig(SubjectPasswordRecovery, cfg.GetPasswordRecoveryTokenSecretKey(), false), passwordRecoverySchema)
	if err != nil {
		return nil, err
	}

	change, err := NewTokenKind(codec, kindConfig(SubjectPrimaryEmailChange, cfg.GetPrimaryEmailChangeTokenSecretKey(), true), primaryEmailChangeSchema)
	if err != nil {
		return nil, err
	}

	confirmation, err := NewTokenKind(codec, kindConfig(SubjectPrimaryEmailConfirmation, cfg.GetPrimaryEmailConfirmationTokenSecretKey(), false), primaryEmailConfirmationSchema)
	if err != nil {
		return nil, err
	}

	invite, err := NewTokenKind(codec, kindConfig(SubjectOrganizationInvite, cfg.GetOrganizationInviteTokenSecretKey(), false), organizationInviteSchema)
	if err != nil {
		return nil, err
	}

	return &TokenProviders{
		Session:                  &SessionTokenProvider{kind: session},
		PasswordRecovery:         &PasswordRecoveryTokenProvider{kind: recovery},
		PrimaryEmailChange:       &PrimaryEmailChangeTokenProvider{kind: change},
		PrimaryEmailConfirmation: &PrimaryEmailConfirmationTokenProvider{kind: confirmation},
		OrganizationInvite:       &OrganizationInviteTokenProvider{kind: invite},
	}, nil
}

// StaticTokenConfig is a TokenConfig backed by plain fields.
type StaticTokenConfig struct {
	Issuer                   string
	Authentication           []byte
	PasswordRecovery         []byte
	PrimaryEmailChange       []byte
	PrimaryEmailConfirmation []byte
	OrganizationInvite       []byte
}

func (c StaticTokenConfig) GetIssuer() string { return c.Issuer }

func (c StaticTokenConfig) GetAuthenticationTokenSecretKey() []byte { return c.Authentication }

func (c StaticTokenConfig) GetPasswordRecoveryTokenSecretKey() []byte { return c.PasswordRecovery }

func (c StaticTokenConfig) GetPrimaryEmailChangeTokenSecretKey() []byte { return c.PrimaryEmailChange }

func (c StaticTokenConfig) GetPrimaryEmailConfirmationTokenSecretKey() []byte {
	return c.PrimaryEmailConfirmation
}

func (c StaticTokenConfig) GetOrganizationInviteTokenSecretKey() []byte { return c.OrganizationInvite }
