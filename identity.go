package auth

import (
	"time"
)

// RequestIdentity is the authenticated caller of a single request.
type RequestIdentity struct {
	UserID           string
	CurrentClientID  string
	OriginalClientID string
	// OrganizationID is empty when the session has no selected organization.
	OrganizationID   string
	Roles            RoleSet
	Credentials      string
	SessionStartedAt time.Time
	SessionExpiresAt time.Time
}

// NewRequestIdentity builds the base identity from a verified session
// payload. Trust tiers are not derived here, see DeriveTrustTiers.
func NewRequestIdentity(payload SessionPayload, credentials, currentClientID string) RequestIdentity {
	roles := NewRoleSet(payload.Claims.Roles...)
	roles.Add(RoleUser)

	return RequestIdentity{
		UserID:           payload.Claims.UserID,
		CurrentClientID:  currentClientID,
		OriginalClientID: payload.Claims.ClientID,
		OrganizationID:   payload.Claims.OrganizationID,
		Roles:            roles,
		Credentials:      credentials,
		SessionStartedAt: payload.IssuedAt,
		SessionExpiresAt: payload.ExpiresAt,
	}
}

// HasRole reports whether the identity carries role.
func (i *RequestIdentity) HasRole(role string) bool {
	if i == nil {
		return false
	}
	return i.Roles.Has(role)
}

// SameClient reports whether the session is presented by the client that
// created it.
func (i RequestIdentity) SameClient() bool {
	return i.CurrentClientID == i.OriginalClientID
}

// Clone returns a copy with its own role set.
func (i RequestIdentity) Clone() RequestIdentity {
	out := i
	out.Roles = i.Roles.Clone()
	return out
}
