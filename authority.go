package auth

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// Membership is a user's relationship to an organization or a project.
type Membership interface {
	IsOwner() bool
	GrantedRoles() RoleSet
}

// MembershipFinder looks up the membership of a user in an entity. A
// missing membership is reported with an error IsNotFound recognizes.
type MembershipFinder[M Membership] interface {
	FindMembership(ctx context.Context, entityID, userID uuid.UUID) (M, error)
}

// AssertHasRoleOrForbidden fails with ErrForbidden unless the identity
// carries role.
func AssertHasRoleOrForbidden(identity *RequestIdentity, role string) error {
	if identity == nil || !identity.HasRole(role) {
		return ErrForbidden
	}
	return nil
}

// FindMembershipOrForbidden returns the membership of userID in entityID.
// A missing membership is ErrForbidden so callers cannot probe which
// entities exist.
func FindMembershipOrForbidden[M Membership](ctx context.Context, finder MembershipFinder[M], entityID, userID uuid.UUID) (M, error) {
	membership, err := finder.FindMembership(ctx, entityID, userID)
	if err != nil {
		var zero M
		if IsNotFound(err) {
			return zero, ErrForbidden
		}
		return zero, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load membership")
	}
	return membership, nil
}

// AssertIsOwnerOrHasRole passes for owners regardless of their grants and
// otherwise requires role.
func AssertIsOwnerOrHasRole(membership Membership, role string) error {
	if membership == nil {
		return ErrForbidden
	}
	if membership.IsOwner() {
		return nil
	}
	if membership.GrantedRoles().Has(role) {
		return nil
	}
	return ErrForbidden
}

// AuthorizeMember runs the membership lookup and the owner or role check
// for the identity. An empty role only requires membership.
func AuthorizeMember[M Membership](ctx context.Context, finder MembershipFinder[M], entityID uuid.UUID, identity *RequestIdentity, role string) (M, error) {
	var zero M

	userID, err := identityUserID(identity)
	if err != nil {
		return zero, err
	}

	membership, err := FindMembershipOrForbidden(ctx, finder, entityID, userID)
	if err != nil {
		return zero, err
	}

	if role == "" {
		return membership, nil
	}

	if err := AssertIsOwnerOrHasRole(membership, role); err != nil {
		return zero, err
	}

	return membership, nil
}

func identityUserID(identity *RequestIdentity) (uuid.UUID, error) {
	if identity == nil {
		return uuid.Nil, ErrUnauthorized
	}
	id, err := uuid.Parse(identity.UserID)
	if err != nil {
		return uuid.Nil, ErrForbidden
	}
	return id, nil
}
