package auth_test

import (
	"testing"
	"time"

	"github.com/goliatone/go-orgauth"
	"github.com/stretchr/testify/assert"
)

func stlRoles(identity auth.RequestIdentity) []string {
	var out []string
	for _, role := range []string{auth.RoleSTLSameSession, auth.RoleSTLSecure, auth.RoleSTLMostSecure} {
		if identity.Roles.Has(role) {
			out = append(out, role)
		}
	}
	return out
}

func TestDeriveTrustTiersDecay(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		age      time.Duration
		expected []string
	}{
		{name: "fresh", age: 0, expected: []string{auth.RoleSTLSameSession, auth.RoleSTLSecure, auth.RoleSTLMostSecure}},
		{name: "just under five minutes", age: 5*time.Minute - time.Second, expected: []string{auth.RoleSTLSameSession, auth.RoleSTLSecure, auth.RoleSTLMostSecure}},
		{name: "exactly five minutes", age: 5 * time.Minute, expected: []string{auth.RoleSTLSameSession, auth.RoleSTLSecure}},
		{name: "ten minutes", age: 10 * time.Minute, expected: []string{auth.RoleSTLSameSession, auth.RoleSTLSecure}},
		{name: "two hours", age: 2 * time.Hour, expected: []string{auth.RoleSTLSameSession}},
		{name: "thirteen hours", age: 13 * time.Hour, expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := auth.RequestIdentity{
				UserID:           "u1",
				CurrentClientID:  "1.2.3.4",
				OriginalClientID: "1.2.3.4",
				Roles:            auth.NewRoleSet("ORG_MEMBER"),
				SessionStartedAt: now.Add(-tt.age),
			}

			derived := auth.DeriveTrustTiers(base, now)
			assert.Equal(t, tt.expected, stlRoles(derived))
			assert.True(t, derived.Roles.Has("ROLE_ORG_MEMBER"))

			mismatch := base
			mismatch.CurrentClientID = "9.9.9.9"
			assert.Empty(t, stlRoles(auth.DeriveTrustTiers(mismatch, now)))
		})
	}
}

func TestDeriveTrustTiersIsPureAndIdempotent(t *testing.T) {
	now := time.Now()
	base := auth.RequestIdentity{
		CurrentClientID:  "c",
		OriginalClientID: "c",
		Roles:            auth.NewRoleSet(auth.RoleUser),
		SessionStartedAt: now,
	}

	once := auth.DeriveTrustTiers(base, now)
	twice := auth.DeriveTrustTiers(once, now)

	assert.Equal(t, []string{auth.RoleUser}, base.Roles.Slice(), "input identity was modified")
	assert.Equal(t, once.Roles.Slice(), twice.Roles.Slice())
	assert.Len(t, twice.Roles, 4)
}

func TestTrustTiersCustomThresholds(t *testing.T) {
	now := time.Now()
	tiers := auth.TrustTiers{SameSession: time.Hour, Secure: 10 * time.Minute, MostSecure: time.Minute}
	identity := auth.RequestIdentity{
		CurrentClientID:  "c",
		OriginalClientID: "c",
		SessionStartedAt: now.Add(-30 * time.Minute),
	}

	derived := tiers.Derive(identity, now)
	assert.Equal(t, []string{auth.RoleSTLSameSession}, stlRoles(derived))
}
