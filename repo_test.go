package auth_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-orgauth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func TestMigrateIsIdempotent(t *testing.T) {
	db := newTestDB(t)

	applied, err := auth.Migrate(context.Background(), db)
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestUsersRepository(t *testing.T) {
	ctx := context.Background()
	repo := auth.NewRepositoryManager(newTestDB(t))
	require.NoError(t, repo.Validate())

	user, err := repo.Users().Register(ctx, &auth.User{
		Email:        " Mixed@Example.COM ",
		PasswordHash: "hash",
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.Equal(t, "mixed@example.com", user.Email)
	assert.NotNil(t, user.CreatedAt)

	found, err := repo.Users().GetByEmail(ctx, "MIXED@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	_, err = repo.Users().GetByEmail(ctx, "missing@example.com")
	assert.True(t, auth.IsNotFound(err))

	exists, err := repo.Users().EmailExists(ctx, "mixed@EXAMPLE.com")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, repo.Users().ResetPassword(ctx, user.ID, "new-hash"))
	assert.True(t, auth.IsNotFound(repo.Users().ResetPassword(ctx, uuid.New(), "x")))

	require.NoError(t, repo.Users().TrackAttemptedLogin(ctx, user))
	require.NoError(t, repo.Users().TrackAttemptedLogin(ctx, user))
	require.NoError(t, repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return repo.Users().ChangeEmailTx(ctx, tx, user.ID, "Next@example.com")
	}))

	stored, err := repo.Users().GetByID(ctx, user.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "new-hash", stored.PasswordHash)
	assert.Equal(t, 2, stored.LoginAttempts)
	assert.Equal(t, "next@example.com", stored.Email)
	assert.True(t, stored.EmailConfirmed)

	require.NoError(t, repo.Users().TrackSuccessfulLogin(ctx, stored))
	stored, err = repo.Users().GetByID(ctx, user.ID.String())
	require.NoError(t, err)
	assert.Zero(t, stored.LoginAttempts)
	assert.NotNil(t, stored.LoggedInAt)
}

func TestMembersRepository(t *testing.T) {
	ctx := context.Background()
	repo := auth.NewRepositoryManager(newTestDB(t))

	user, err := repo.Users().Register(ctx, &auth.User{Email: "member@example.com", PasswordHash: "hash"})
	require.NoError(t, err)

	var org *auth.Organization
	require.NoError(t, repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		org, err = repo.Organizations().AddTx(ctx, tx, &auth.Organization{Name: "Acme"})
		if err != nil {
			return err
		}
		_, err = repo.OrganizationMembers().AddTx(ctx, tx, &auth.OrganizationMember{
			OrganizationID: org.ID,
			UserID:         user.ID,
			Roles:          []string{"ORG_ADMINISTRATOR", "ORG_ADMINISTRATOR"},
		})
		return err
	}))

	member, err := repo.OrganizationMembers().FindMembership(ctx, org.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{auth.RoleOrgAdministrator}, member.Roles)
	assert.False(t, member.Owner)

	_, err = repo.OrganizationMembers().FindMembership(ctx, org.ID, uuid.New())
	assert.ErrorIs(t, err, auth.ErrNotFound)

	require.NoError(t, repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		member, err = repo.OrganizationMembers().UpdateRolesTx(ctx, tx, org.ID, user.ID, []string{auth.RoleOrgProjectCreator})
		return err
	}))
	assert.Equal(t, []string{auth.RoleOrgProjectCreator}, member.Roles)

	orgs, total, err := repo.Organizations().ListForUser(ctx, user.ID, auth.Page{}.Normalize())
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, orgs, 1)
	assert.Equal(t, "Acme", orgs[0].Name)

	members, err := repo.OrganizationMembers().ListByEntity(ctx, org.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, []string{auth.RoleOrgProjectCreator}, members[0].Roles)
}
