package auth_test

import (
	"testing"
	"time"

	"github.com/goliatone/go-orgauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTokenConfig() auth.StaticTokenConfig {
	return auth.StaticTokenConfig{
		Issuer:                   "orgauth-test",
		Authentication:           []byte("authentication-secret"),
		PasswordRecovery:         []byte("password-recovery-secret"),
		PrimaryEmailChange:       []byte("primary-email-change-secret"),
		PrimaryEmailConfirmation: []byte("primary-email-confirmation-secret"),
		OrganizationInvite:       []byte("organization-invite-secret"),
	}
}

func newTestProviders(t *testing.T, now time.Time) *auth.TokenProviders {
	t.Helper()
	providers, err := auth.NewTokenProviders(testTokenConfig(), auth.WithCodecClock(fixedClock(now)))
	require.NoError(t, err)
	return providers
}

func TestTokenProvidersRoundTrip(t *testing.T) {
	now := codecNow
	p := newTestProviders(t, now)
	exp := now.Add(time.Hour)

	t.Run("session", func(t *testing.T) {
		claims := auth.SessionClaims{UserID: "u1", ClientID: "1.2.3.4", OrganizationID: "org-1", Roles: []string{"ORG_ADMINISTRATOR"}}
		token, issued, err := p.Session.Issue(claims, exp)
		require.NoError(t, err)

		decoded, ok := p.Session.ValidateAndDecode(token)
		require.True(t, ok)
		assert.Equal(t, issued, decoded)
		assert.Equal(t, claims, decoded.Claims)
		assert.Equal(t, now, decoded.IssuedAt)
		assert.Equal(t, exp, decoded.ExpiresAt)
	})

	t.Run("session without organization", func(t *testing.T) {
		claims := auth.SessionClaims{UserID: "u1", ClientID: "1.2.3.4", Roles: []string{}}
		token, issued, err := p.Session.Issue(claims, exp)
		require.NoError(t, err)

		decoded, ok := p.Session.ValidateAndDecode(token)
		require.True(t, ok)
		assert.Equal(t, issued, decoded)
		assert.Empty(t, decoded.Claims.OrganizationID)
	})

	t.Run("password recovery", func(t *testing.T) {
		token, issued, err := p.PasswordRecovery.Issue(auth.PasswordRecoveryClaims{UserID: "u1"}, exp)
		require.NoError(t, err)
		decoded, ok := p.PasswordRecovery.ValidateAndDecode(token)
		require.True(t, ok)
		assert.Equal(t, issued, decoded)
	})

	t.Run("primary email change", func(t *testing.T) {
		claims := auth.PrimaryEmailChangeClaims{UserID: "u1", NewPrimaryEmail: "new@example.com"}
		token, issued, err := p.PrimaryEmailChange.Issue(claims, "123456", exp)
		require.NoError(t, err)
		decoded, ok := p.PrimaryEmailChange.ValidateAndDecode(token, "123456")
		require.True(t, ok)
		assert.Equal(t, issued, decoded)
	})

	t.Run("primary email confirmation", func(t *testing.T) {
		token, issued, err := p.PrimaryEmailConfirmation.Issue(auth.PrimaryEmailConfirmationClaims{UserID: "u1"}, exp)
		require.NoError(t, err)
		decoded, ok := p.PrimaryEmailConfirmation.ValidateAndDecode(token)
		require.True(t, ok)
		assert.Equal(t, issued, decoded)
	})

	t.Run("organization invite", func(t *testing.T) {
		claims := auth.OrganizationInviteClaims{OrganizationID: "org-1", RecipientEmail: "bob@example.com"}
		token, issued, err := p.OrganizationInvite.Issue(claims, exp)
		require.NoError(t, err)
		decoded, ok := p.OrganizationInvite.ValidateAndDecode(token)
		require.True(t, ok)
		assert.Equal(t, issued, decoded)
	})
}

func TestTokenProvidersAreIsolated(t *testing.T) {
	p := newTestProviders(t, codecNow)
	exp := codecNow.Add(time.Hour)

	recovery, _, err := p.PasswordRecovery.Issue(auth.PasswordRecoveryClaims{UserID: "u1"}, exp)
	require.NoError(t, err)

	confirmation, _, err := p.PrimaryEmailConfirmation.Issue(auth.PrimaryEmailConfirmationClaims{UserID: "u1"}, exp)
	require.NoError(t, err)

	_, ok := p.PrimaryEmailConfirmation.ValidateAndDecode(recovery)
	assert.False(t, ok, "recovery token accepted as confirmation")

	_, ok = p.PasswordRecovery.ValidateAndDecode(confirmation)
	assert.False(t, ok, "confirmation token accepted as recovery")

	_, ok = p.Session.ValidateAndDecode(recovery)
	assert.False(t, ok, "recovery token accepted as session")
}

func TestTokenProvidersSharedSecretStillSeparatedBySubject(t *testing.T) {
	cfg := testTokenConfig()
	cfg.PasswordRecovery = cfg.PrimaryEmailConfirmation
	p, err := auth.NewTokenProviders(cfg, auth.WithCodecClock(fixedClock(codecNow)))
	require.NoError(t, err)

	token, _, err := p.PasswordRecovery.Issue(auth.PasswordRecoveryClaims{UserID: "u1"}, codecNow.Add(time.Hour))
	require.NoError(t, err)

	_, ok := p.PrimaryEmailConfirmation.ValidateAndDecode(token)
	assert.False(t, ok)
}

func TestPrimaryEmailChangeRequiresMatchingCode(t *testing.T) {
	p := newTestProviders(t, codecNow)
	claims := auth.PrimaryEmailChangeClaims{UserID: "u1", NewPrimaryEmail: "new@example.com"}

	token, _, err := p.PrimaryEmailChange.Issue(claims, "123456", codecNow.Add(time.Hour))
	require.NoError(t, err)

	_, ok := p.PrimaryEmailChange.ValidateAndDecode(token, "654321")
	assert.False(t, ok)

	_, ok = p.PrimaryEmailChange.ValidateAndDecode(token, "")
	assert.False(t, ok)

	decoded, ok := p.PrimaryEmailChange.ValidateAndDecode(token, "123456")
	require.True(t, ok)
	assert.Equal(t, claims, decoded.Claims)

	_, _, err = p.PrimaryEmailChange.Issue(claims, "", codecNow.Add(time.Hour))
	requireTextCode(t, err, auth.TextCodeInvalidArgument)
}

func TestTokenProvidersExpiry(t *testing.T) {
	issuer := newTestProviders(t, codecNow)
	claims := auth.SessionClaims{UserID: "u1", ClientID: "c", Roles: []string{}}

	expired, _, err := issuer.Session.IssueAt(claims, codecNow.Add(-time.Hour), codecNow.Add(-time.Second))
	require.NoError(t, err)
	_, ok := issuer.Session.ValidateAndDecode(expired)
	assert.False(t, ok)

	valid, _, err := issuer.Session.Issue(claims, codecNow.Add(time.Hour))
	require.NoError(t, err)
	_, ok = issuer.Session.ValidateAndDecode(valid)
	assert.True(t, ok)

	_, _, err = issuer.Session.IssueAt(claims, codecNow.Add(time.Second), codecNow)
	requireTextCode(t, err, auth.TextCodeInvalidArgument)
}

func TestTokenProvidersRejectTamperedSessions(t *testing.T) {
	p := newTestProviders(t, codecNow)
	token, _, err := p.Session.Issue(auth.SessionClaims{UserID: "u1", ClientID: "c", Roles: []string{"X"}}, codecNow.Add(time.Hour))
	require.NoError(t, err)

	tampered := []byte(token)
	mid := len(tampered) / 2
	if tampered[mid] == 'a' {
		tampered[mid] = 'b'
	} else {
		tampered[mid] = 'a'
	}

	payload, ok := p.Session.ValidateAndDecode(string(tampered))
	assert.False(t, ok)
	assert.Equal(t, auth.SessionPayload{}, payload)
}

func TestNewTokenProvidersRequiresSecrets(t *testing.T) {
	cfg := testTokenConfig()
	cfg.OrganizationInvite = nil
	_, err := auth.NewTokenProviders(cfg)
	requireTextCode(t, err, auth.TextCodeInvalidArgument)
}
