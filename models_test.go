package auth_test

import (
	"testing"

	"github.com/goliatone/go-orgauth"
	"github.com/stretchr/testify/assert"
)

func TestPageNormalize(t *testing.T) {
	tests := []struct {
		name   string
		in     auth.Page
		want   auth.Page
		offset int
	}{
		{name: "zero value", in: auth.Page{}, want: auth.Page{Number: 1, Size: auth.DefaultPageSize}, offset: 0},
		{name: "negative", in: auth.Page{Number: -3, Size: -1}, want: auth.Page{Number: 1, Size: auth.DefaultPageSize}, offset: 0},
		{name: "clamped size", in: auth.Page{Number: 2, Size: 500}, want: auth.Page{Number: 2, Size: auth.MaxPageSize}, offset: auth.MaxPageSize},
		{name: "kept", in: auth.Page{Number: 3, Size: 10}, want: auth.Page{Number: 3, Size: 10}, offset: 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Normalize()
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.offset, got.Offset())
		})
	}
}

func TestMembershipRoles(t *testing.T) {
	var nilMember *auth.OrganizationMember
	assert.False(t, nilMember.IsOwner())
	assert.Empty(t, nilMember.GrantedRoles())

	member := &auth.OrganizationMember{Owner: true, Roles: []string{"ORG_PROJECT_CREATOR"}}
	assert.True(t, member.IsOwner())
	assert.True(t, member.GrantedRoles().Has(auth.RoleOrgProjectCreator))

	project := &auth.ProjectMember{Roles: []string{auth.RoleProjectAdministrator}}
	assert.False(t, project.IsOwner())
	assert.True(t, project.GrantedRoles().Has("PROJECT_ADMINISTRATOR"))
}
