package auth_test

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-orgauth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMembership struct {
	owner bool
	roles auth.RoleSet
}

func (m stubMembership) IsOwner() bool { return m.owner }

func (m stubMembership) GrantedRoles() auth.RoleSet { return m.roles }

type stubFinder struct {
	memberships map[uuid.UUID]stubMembership
	err         error
}

func (f stubFinder) FindMembership(_ context.Context, entityID, userID uuid.UUID) (stubMembership, error) {
	if f.err != nil {
		return stubMembership{}, f.err
	}
	m, ok := f.memberships[userID]
	if !ok {
		return stubMembership{}, auth.ErrNotFound
	}
	return m, nil
}

func TestAssertHasRoleOrForbidden(t *testing.T) {
	identity := &auth.RequestIdentity{Roles: auth.NewRoleSet("STL_SECURE")}

	assert.NoError(t, auth.AssertHasRoleOrForbidden(identity, auth.RoleSTLSecure))
	assert.ErrorIs(t, auth.AssertHasRoleOrForbidden(identity, auth.RoleSTLMostSecure), auth.ErrForbidden)
	assert.ErrorIs(t, auth.AssertHasRoleOrForbidden(nil, auth.RoleUser), auth.ErrForbidden)
}

func TestAssertIsOwnerOrHasRole(t *testing.T) {
	tests := []struct {
		name       string
		membership stubMembership
		role       string
		allowed    bool
	}{
		{name: "owner without roles", membership: stubMembership{owner: true, roles: auth.NewRoleSet()}, role: auth.RoleOrgAdministrator, allowed: true},
		{name: "owner any role", membership: stubMembership{owner: true}, role: "ROLE_ANYTHING", allowed: true},
		{name: "granted role", membership: stubMembership{roles: auth.NewRoleSet("ORG_ADMINISTRATOR")}, role: auth.RoleOrgAdministrator, allowed: true},
		{name: "missing role", membership: stubMembership{roles: auth.NewRoleSet("ORG_PROJECT_CREATOR")}, role: auth.RoleOrgAdministrator, allowed: false},
		{name: "no roles", membership: stubMembership{}, role: auth.RoleOrgAdministrator, allowed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := auth.AssertIsOwnerOrHasRole(tt.membership, tt.role)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, auth.ErrForbidden)
			}
		})
	}
}

func TestFindMembershipOrForbidden(t *testing.T) {
	ctx := context.Background()
	member := uuid.New()
	stranger := uuid.New()
	finder := stubFinder{memberships: map[uuid.UUID]stubMembership{member: {owner: true}}}

	m, err := auth.FindMembershipOrForbidden[stubMembership](ctx, finder, uuid.New(), member)
	require.NoError(t, err)
	assert.True(t, m.IsOwner())

	_, err = auth.FindMembershipOrForbidden[stubMembership](ctx, finder, uuid.New(), stranger)
	assert.ErrorIs(t, err, auth.ErrForbidden)

	broken := stubFinder{err: errors.New("connection reset")}
	_, err = auth.FindMembershipOrForbidden[stubMembership](ctx, broken, uuid.New(), member)
	require.Error(t, err)
	assert.NotErrorIs(t, err, auth.ErrForbidden)
}

func TestAuthorizeMember(t *testing.T) {
	ctx := context.Background()
	admin := uuid.New()
	plain := uuid.New()
	finder := stubFinder{memberships: map[uuid.UUID]stubMembership{
		admin: {roles: auth.NewRoleSet("ORG_ADMINISTRATOR")},
		plain: {roles: auth.NewRoleSet()},
	}}

	identity := func(id uuid.UUID) *auth.RequestIdentity {
		return &auth.RequestIdentity{UserID: id.String()}
	}

	_, err := auth.AuthorizeMember[stubMembership](ctx, finder, uuid.New(), identity(admin), auth.RoleOrgAdministrator)
	assert.NoError(t, err)

	_, err = auth.AuthorizeMember[stubMembership](ctx, finder, uuid.New(), identity(plain), auth.RoleOrgAdministrator)
	assert.ErrorIs(t, err, auth.ErrForbidden)

	_, err = auth.AuthorizeMember[stubMembership](ctx, finder, uuid.New(), identity(plain), "")
	assert.NoError(t, err)

	_, err = auth.AuthorizeMember[stubMembership](ctx, finder, uuid.New(), nil, "")
	assert.ErrorIs(t, err, auth.ErrUnauthorized)

	_, err = auth.AuthorizeMember[stubMembership](ctx, finder, uuid.New(), &auth.RequestIdentity{UserID: "not-a-uuid"}, "")
	assert.ErrorIs(t, err, auth.ErrForbidden)
}
