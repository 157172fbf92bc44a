package auth

import (
	"sort"
	"strings"
)

// RolePrefix is carried by every role name.
const RolePrefix = "ROLE_"

const (
	// RoleUser is granted to every authenticated identity.
	RoleUser = "ROLE_USER"

	RoleSTLSameSession = "ROLE_STL_SAME_SESSION"
	RoleSTLSecure      = "ROLE_STL_SECURE"
	RoleSTLMostSecure  = "ROLE_STL_MOST_SECURE"

	RoleOrgOwner          = "ROLE_ORG_OWNER"
	RoleOrgAdministrator  = "ROLE_ORG_ADMINISTRATOR"
	RoleOrgProjectCreator = "ROLE_ORG_PROJECT_CREATOR"

	RoleProjectAdministrator      = "ROLE_PROJECT_ADMINISTRATOR"
	RoleProjectDeliverableManager = "ROLE_PROJECT_DELIVERABLE_MANAGER"
)

// OrganizationRoles lists the roles that can be granted on an organization membership.
var OrganizationRoles = NewRoleSet(RoleOrgAdministrator, RoleOrgProjectCreator)

// ProjectRoles lists the roles that can be granted on a project membership.
var ProjectRoles = NewRoleSet(RoleProjectAdministrator, RoleProjectDeliverableManager)

// NormalizeRole trims the name and adds the role prefix when missing.
func NormalizeRole(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if strings.HasPrefix(name, RolePrefix) {
		return name
	}
	return RolePrefix + name
}

// RoleSet is a flat set of prefixed role names.
type RoleSet map[string]struct{}

// NewRoleSet builds a set from raw or prefixed names.
func NewRoleSet(roles ...string) RoleSet {
	s := make(RoleSet, len(roles))
	s.Add(roles...)
	return s
}

// Add inserts the roles, prefixing raw names. Duplicates are no-ops.
func (s RoleSet) Add(roles ...string) {
	for _, role := range roles {
		if role = NormalizeRole(role); role != "" {
			s[role] = struct{}{}
		}
	}
}

// Has reports whether the role, raw or prefixed, is in the set.
func (s RoleSet) Has(role string) bool {
	_, ok := s[NormalizeRole(role)]
	return ok
}

// ContainsAll reports whether every role in other is in s.
func (s RoleSet) ContainsAll(other RoleSet) bool {
	for role := range other {
		if _, ok := s[role]; !ok {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (s RoleSet) Clone() RoleSet {
	out := make(RoleSet, len(s))
	for role := range s {
		out[role] = struct{}{}
	}
	return out
}

// Slice returns the roles sorted.
func (s RoleSet) Slice() []string {
	out := make([]string, 0, len(s))
	for role := range s {
		out = append(out, role)
	}
	sort.Strings(out)
	return out
}
