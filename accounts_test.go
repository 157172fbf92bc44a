package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-orgauth"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, err := env.accounts.Signup(ctx, auth.SignupMessage{
		FirstName: "  Ada ",
		LastName:  "Lovelace",
		Email:     "Ada@Example.com ",
		Phone:     "(415) 555-2671",
		Password:  testPassword,
	})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, "Ada", user.FirstName)
	assert.Equal(t, "+14155552671", user.Phone)
	assert.False(t, user.EmailConfirmed)
	assert.NotEqual(t, testPassword, user.PasswordHash)

	stored, err := env.repo.Users().GetByEmail(ctx, "ADA@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, stored.ID)

	msg, ok := env.mailer.Last("ada@example.com")
	require.True(t, ok)
	assert.Equal(t, auth.ContentTypeText, msg.ContentType)
	assert.Contains(t, msg.Body, "Hello Ada Lovelace")
	assert.Contains(t, msg.Body, "https://app.example.com/confirm-email?token=")

	assert.Contains(t, env.activity.Types(), auth.ActivityEventSignup)
}

func TestSignupRejections(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "taken@example.com")

	tests := []struct {
		name string
		msg  auth.SignupMessage
		code string
	}{
		{
			name: "malformed email",
			msg:  auth.SignupMessage{Email: "not-an-email", Password: testPassword},
			code: auth.TextCodeInvalidEmail,
		},
		{
			name: "display name email",
			msg:  auth.SignupMessage{Email: "Ada <ada@example.com>", Password: testPassword},
			code: auth.TextCodeInvalidEmail,
		},
		{
			name: "short password",
			msg:  auth.SignupMessage{Email: "a@example.com", Password: "abc1"},
			code: auth.TextCodeInvalidPassword,
		},
		{
			name: "password without digits",
			msg:  auth.SignupMessage{Email: "a@example.com", Password: "onlyletters"},
			code: auth.TextCodeInvalidPassword,
		},
		{
			name: "bad phone",
			msg:  auth.SignupMessage{Email: "a@example.com", Password: testPassword, Phone: "12"},
			code: auth.TextCodeValidationFailed,
		},
		{
			name: "email taken ignoring case",
			msg:  auth.SignupMessage{Email: "TAKEN@example.com", Password: testPassword},
			code: auth.TextCodeEmailTaken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.accounts.Signup(context.Background(), tt.msg)
			requireTextCode(t, err, tt.code)
		})
	}
}

func TestSignupWithDerivedUserIDs(t *testing.T) {
	env := newTestEnv(t)
	accounts, err := auth.NewAccounts(env.deps, auth.WithDerivedUserIDs(true))
	require.NoError(t, err)

	user, err := accounts.Signup(context.Background(), auth.SignupMessage{
		Email:    "derived@example.com",
		Password: testPassword,
	})
	require.NoError(t, err)

	expected, err := hashid.NewUUID("derived@example.com")
	require.NoError(t, err)
	assert.Equal(t, expected, user.ID)
}

func TestConfirmPrimaryEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.signup(t, "confirm@example.com")

	err := env.accounts.ConfirmPrimaryEmail(ctx, auth.ConfirmPrimaryEmailMessage{Token: "garbage"})
	requireTextCode(t, err, auth.TextCodeTokenInvalid)

	token := env.mailedToken(t, "confirm@example.com")
	require.NoError(t, env.accounts.ConfirmPrimaryEmail(ctx, auth.ConfirmPrimaryEmailMessage{Token: token}))

	stored, err := env.repo.Users().GetByID(ctx, user.ID.String())
	require.NoError(t, err)
	assert.True(t, stored.EmailConfirmed)

	identity := env.login(t, "confirm@example.com", "")
	sent := len(env.mailer.Outbox())
	env.clock.Advance(time.Hour)
	require.NoError(t, env.accounts.RequestPrimaryEmailConfirmation(ctx, auth.RequestPrimaryEmailConfirmationMessage{Identity: identity}))
	assert.Len(t, env.mailer.Outbox(), sent, "confirmed addresses get no new mail")
}

func TestRequestPrimaryEmailConfirmationIsGated(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.signup(t, "gated@example.com")
	identity := env.login(t, "gated@example.com", "")

	sent := len(env.mailer.Outbox())
	require.NoError(t, env.accounts.RequestPrimaryEmailConfirmation(ctx, auth.RequestPrimaryEmailConfirmationMessage{Identity: identity}))
	assert.Len(t, env.mailer.Outbox(), sent, "signup mail still inside the window")

	env.clock.Advance(auth.PrimaryEmailConfirmationWindow + time.Second)
	require.NoError(t, env.accounts.RequestPrimaryEmailConfirmation(ctx, auth.RequestPrimaryEmailConfirmationMessage{Identity: identity}))
	assert.Len(t, env.mailer.Outbox(), sent+1)

	err := env.accounts.RequestPrimaryEmailConfirmation(ctx, auth.RequestPrimaryEmailConfirmationMessage{})
	assert.ErrorIs(t, err, auth.ErrUnauthorized)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.signup(t, "login@example.com")

	t.Run("unknown email", func(t *testing.T) {
		_, err := env.accounts.Login(ctx, auth.LoginMessage{Email: "nobody@example.com", Password: testPassword})
		assert.ErrorIs(t, err, auth.ErrInvalidEmail)
	})

	t.Run("wrong password is tracked", func(t *testing.T) {
		_, err := env.accounts.Login(ctx, auth.LoginMessage{Email: "login@example.com", Password: "wrong-pass-1"})
		assert.ErrorIs(t, err, auth.ErrInvalidPassword)

		stored, err := env.repo.Users().GetByID(ctx, user.ID.String())
		require.NoError(t, err)
		assert.Equal(t, 1, stored.LoginAttempts)
		assert.Contains(t, env.activity.Types(), auth.ActivityEventLoginFailure)
	})

	t.Run("success", func(t *testing.T) {
		res, err := env.accounts.Login(ctx, auth.LoginMessage{
			Email:    "LOGIN@example.com",
			Password: testPassword,
			ClientID: "10.0.0.1",
		})
		require.NoError(t, err)
		assert.Empty(t, res.OrganizationID)
		assert.Empty(t, res.Roles)
		assert.Equal(t, env.clock.Now().Add(auth.DefaultTokenTTLs.Session), res.ExpiresAt)

		payload, ok := env.providers.Session.ValidateAndDecode(res.Token)
		require.True(t, ok)
		assert.Equal(t, user.ID.String(), payload.Claims.UserID)
		assert.Equal(t, "10.0.0.1", payload.Claims.ClientID)

		stored, err := env.repo.Users().GetByID(ctx, user.ID.String())
		require.NoError(t, err)
		assert.NotNil(t, stored.LoggedInAt)
		assert.Contains(t, env.activity.Types(), auth.ActivityEventLoginSuccess)
	})

	t.Run("missing client id", func(t *testing.T) {
		res, err := env.accounts.Login(ctx, auth.LoginMessage{Email: "login@example.com", Password: testPassword})
		requireTextCode(t, err, auth.TextCodeInvalidArgument)
		assert.Nil(t, res)

		_, err = env.accounts.Login(ctx, auth.LoginMessage{Email: "login@example.com", Password: testPassword, ClientID: "  "})
		requireTextCode(t, err, auth.TextCodeInvalidArgument)
	})
}

func TestLoginIntoOrganization(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.signup(t, "owner@example.com")
	env.signup(t, "outsider@example.com")

	owner := env.login(t, "owner@example.com", "")
	org, err := env.orgs.CreateOrganization(ctx, owner, auth.CreateOrganizationMessage{Name: "Acme"})
	require.NoError(t, err)

	res, err := env.accounts.Login(ctx, auth.LoginMessage{
		Email:          "owner@example.com",
		Password:       testPassword,
		OrganizationID: org.ID.String(),
		ClientID:       "10.0.0.1",
	})
	require.NoError(t, err)
	assert.Equal(t, org.ID.String(), res.OrganizationID)
	assert.Contains(t, res.Roles, auth.RoleOrgOwner)

	identity := env.login(t, "owner@example.com", org.ID.String())
	assert.Equal(t, org.ID.String(), identity.OrganizationID)
	assert.True(t, identity.HasRole(auth.RoleOrgOwner))

	_, err = env.accounts.Login(ctx, auth.LoginMessage{
		Email:          "outsider@example.com",
		Password:       testPassword,
		OrganizationID: org.ID.String(),
	})
	assert.ErrorIs(t, err, auth.ErrForbidden)

	_, err = env.accounts.Login(ctx, auth.LoginMessage{
		Email:          "owner@example.com",
		Password:       testPassword,
		OrganizationID: "not-a-uuid",
	})
	assert.ErrorIs(t, err, auth.ErrForbidden)
}

func TestPasswordRecovery(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.signup(t, "recover@example.com")

	sent := len(env.mailer.Outbox())
	require.NoError(t, env.accounts.RequestPasswordRecovery(ctx, auth.RequestPasswordRecoveryMessage{Email: "nobody@example.com"}))
	assert.Len(t, env.mailer.Outbox(), sent, "unknown emails succeed silently")

	require.NoError(t, env.accounts.RequestPasswordRecovery(ctx, auth.RequestPasswordRecoveryMessage{Email: "recover@example.com"}))
	assert.Len(t, env.mailer.Outbox(), sent+1)
	token := env.mailedToken(t, "recover@example.com")

	require.NoError(t, env.accounts.RequestPasswordRecovery(ctx, auth.RequestPasswordRecoveryMessage{Email: "recover@example.com"}))
	assert.Len(t, env.mailer.Outbox(), sent+1, "second request inside the window is dropped")

	err := env.accounts.FinalizePasswordRecovery(ctx, auth.FinalizePasswordRecoveryMessage{Token: token, Password: "short"})
	requireTextCode(t, err, auth.TextCodeInvalidPassword)

	err = env.accounts.FinalizePasswordRecovery(ctx, auth.FinalizePasswordRecoveryMessage{Token: "not-a-token", Password: "brand-new-pass-2"})
	assert.ErrorIs(t, err, auth.ErrTokenInvalid)

	require.NoError(t, env.accounts.FinalizePasswordRecovery(ctx, auth.FinalizePasswordRecoveryMessage{Token: token, Password: "brand-new-pass-2"}))

	_, err = env.accounts.Login(ctx, auth.LoginMessage{Email: "recover@example.com", Password: testPassword})
	assert.ErrorIs(t, err, auth.ErrInvalidPassword)

	_, err = env.accounts.Login(ctx, auth.LoginMessage{Email: "recover@example.com", Password: "brand-new-pass-2", ClientID: "10.0.0.1"})
	require.NoError(t, err)
	assert.Contains(t, env.activity.Types(), auth.ActivityEventPasswordRecovered)
}

func TestPasswordRecoveryTokenExpires(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.signup(t, "late@example.com")

	require.NoError(t, env.accounts.RequestPasswordRecovery(ctx, auth.RequestPasswordRecoveryMessage{Email: "late@example.com"}))
	token := env.mailedToken(t, "late@example.com")

	env.clock.Advance(auth.DefaultTokenTTLs.PasswordRecovery + time.Second)
	err := env.accounts.FinalizePasswordRecovery(ctx, auth.FinalizePasswordRecoveryMessage{Token: token, Password: "brand-new-pass-2"})
	assert.ErrorIs(t, err, auth.ErrTokenInvalid)
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.signup(t, "change@example.com")
	identity := env.login(t, "change@example.com", "")

	err := env.accounts.ChangePassword(ctx, auth.ChangePasswordMessage{
		Identity:        identity,
		CurrentPassword: "wrong-pass-1",
		NewPassword:     "another-pass-3",
	})
	assert.ErrorIs(t, err, auth.ErrInvalidPassword)

	require.NoError(t, env.accounts.ChangePassword(ctx, auth.ChangePasswordMessage{
		Identity:        identity,
		CurrentPassword: testPassword,
		NewPassword:     "another-pass-3",
	}))

	_, err = env.accounts.Login(ctx, auth.LoginMessage{Email: "change@example.com", Password: "another-pass-3", ClientID: "10.0.0.1"})
	require.NoError(t, err)

	env.clock.Advance(2 * time.Hour)
	stale := env.gate.Authenticate("Bearer "+identity.Credentials, "10.0.0.1").Identity
	require.NotNil(t, stale)

	err = env.accounts.ChangePassword(ctx, auth.ChangePasswordMessage{
		Identity:        stale,
		CurrentPassword: "another-pass-3",
		NewPassword:     "yet-another-pass-4",
	})
	assert.ErrorIs(t, err, auth.ErrForbidden)
}

func TestPrimaryEmailChange(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.signup(t, "old@example.com")
	env.signup(t, "busy@example.com")
	identity := env.login(t, "old@example.com", "")

	_, err := env.accounts.RequestPrimaryEmailChange(ctx, auth.RequestPrimaryEmailChangeMessage{Identity: identity, NewEmail: "old@example.com"})
	assert.ErrorIs(t, err, auth.ErrEmailTaken)

	_, err = env.accounts.RequestPrimaryEmailChange(ctx, auth.RequestPrimaryEmailChangeMessage{Identity: identity, NewEmail: "busy@example.com"})
	assert.ErrorIs(t, err, auth.ErrEmailTaken)

	code, err := env.accounts.RequestPrimaryEmailChange(ctx, auth.RequestPrimaryEmailChangeMessage{Identity: identity, NewEmail: "New@example.com"})
	require.NoError(t, err)
	assert.Len(t, code, auth.EmailChangeCodeDigits)

	_, err = env.accounts.RequestPrimaryEmailChange(ctx, auth.RequestPrimaryEmailChangeMessage{Identity: identity, NewEmail: "other@example.com"})
	assert.ErrorIs(t, err, auth.ErrRateLimited)

	token := env.mailedToken(t, "new@example.com")

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	err = env.accounts.ConfirmPrimaryEmailChange(ctx, auth.ConfirmPrimaryEmailChangeMessage{Identity: identity, Token: token, Code: wrong})
	assert.ErrorIs(t, err, auth.ErrTokenInvalid)

	err = env.accounts.ConfirmPrimaryEmailChange(ctx, auth.ConfirmPrimaryEmailChangeMessage{Identity: identity, Token: token})
	assert.ErrorIs(t, err, auth.ErrTokenInvalid)

	require.NoError(t, env.accounts.ConfirmPrimaryEmailChange(ctx, auth.ConfirmPrimaryEmailChangeMessage{Identity: identity, Token: token, Code: code}))

	profile, err := env.accounts.GetProfile(ctx, identity)
	require.NoError(t, err)
	assert.Equal(t, user.ID, profile.ID)
	assert.Equal(t, "new@example.com", profile.Email)
	assert.True(t, profile.EmailConfirmed)
}

func TestPrimaryEmailChangeOtherUserToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.signup(t, "first@example.com")
	env.signup(t, "second@example.com")
	first := env.login(t, "first@example.com", "")
	second := env.login(t, "second@example.com", "")

	code, err := env.accounts.RequestPrimaryEmailChange(ctx, auth.RequestPrimaryEmailChangeMessage{Identity: first, NewEmail: "fresh@example.com"})
	require.NoError(t, err)
	token := env.mailedToken(t, "fresh@example.com")

	err = env.accounts.ConfirmPrimaryEmailChange(ctx, auth.ConfirmPrimaryEmailChangeMessage{Identity: second, Token: token, Code: code})
	assert.ErrorIs(t, err, auth.ErrForbidden)
}

func TestPrimaryEmailChangeNeedsRecentLogin(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "slow@example.com")
	identity := env.login(t, "slow@example.com", "")

	env.clock.Advance(2 * time.Hour)
	stale := env.gate.Authenticate("Bearer "+identity.Credentials, "10.0.0.1").Identity
	require.NotNil(t, stale)

	_, err := env.accounts.RequestPrimaryEmailChange(context.Background(), auth.RequestPrimaryEmailChangeMessage{Identity: stale, NewEmail: "fast@example.com"})
	assert.ErrorIs(t, err, auth.ErrForbidden)
}
