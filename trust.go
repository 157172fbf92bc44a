package auth

import "time"

// TrustTiers holds the session age thresholds for the same session trust
// level roles. A tier is granted while the session age is strictly below
// its threshold.
type TrustTiers struct {
	SameSession time.Duration
	Secure      time.Duration
	MostSecure  time.Duration
}

// DefaultTrustTiers are 12h, 1h and 5m.
var DefaultTrustTiers = TrustTiers{
	SameSession: 12 * time.Hour,
	Secure:      time.Hour,
	MostSecure:  5 * time.Minute,
}

// DeriveTrustTiers applies DefaultTrustTiers.
func DeriveTrustTiers(identity RequestIdentity, now time.Time) RequestIdentity {
	return DefaultTrustTiers.Derive(identity, now)
}

// Derive returns a copy of identity with the STL roles its session
// qualifies for. A client other than the one that started the session
// gets none. The input is not modified.
func (t TrustTiers) Derive(identity RequestIdentity, now time.Time) RequestIdentity {
	out := identity.Clone()
	if out.Roles == nil {
		out.Roles = NewRoleSet()
	}

	if !identity.SameClient() {
		return out
	}

	age := now.Sub(identity.SessionStartedAt)
	if age < t.SameSession {
		out.Roles.Add(RoleSTLSameSession)
	}
	if age < t.Secure {
		out.Roles.Add(RoleSTLSecure)
	}
	if age < t.MostSecure {
		out.Roles.Add(RoleSTLMostSecure)
	}

	return out
}
