package auth_test

import (
	"testing"

	"github.com/goliatone/go-orgauth"
	"github.com/stretchr/testify/assert"
)

func TestRoleSetPrefixesAndDeduplicates(t *testing.T) {
	roles := auth.NewRoleSet("ORG_ADMINISTRATOR", "ROLE_ORG_ADMINISTRATOR", " PROJECT_ADMINISTRATOR ", "")
	roles.Add("ORG_ADMINISTRATOR")

	assert.Equal(t, []string{"ROLE_ORG_ADMINISTRATOR", "ROLE_PROJECT_ADMINISTRATOR"}, roles.Slice())
	assert.True(t, roles.Has("ORG_ADMINISTRATOR"))
	assert.True(t, roles.Has("ROLE_ORG_ADMINISTRATOR"))
	assert.False(t, roles.Has("ORG_PROJECT_CREATOR"))
}

func TestRoleSetClone(t *testing.T) {
	roles := auth.NewRoleSet("A")
	clone := roles.Clone()
	clone.Add("B")

	assert.False(t, roles.Has("B"))
	assert.True(t, clone.Has("A"))
}

func TestRoleSetContainsAll(t *testing.T) {
	assert.True(t, auth.OrganizationRoles.ContainsAll(auth.NewRoleSet("ORG_ADMINISTRATOR")))
	assert.False(t, auth.OrganizationRoles.ContainsAll(auth.NewRoleSet("PROJECT_ADMINISTRATOR")))
}
