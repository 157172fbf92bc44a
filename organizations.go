package auth

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type CreateOrganizationMessage struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (m CreateOrganizationMessage) normalized() CreateOrganizationMessage {
	m.Name = strings.TrimSpace(m.Name)
	m.Description = strings.TrimSpace(m.Description)
	return m
}

func (m CreateOrganizationMessage) Validate() error {
	m = m.normalized()
	return validationError(validation.ValidateStruct(&m,
		validation.Field(&m.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&m.Description, validation.Length(0, 2000)),
	))
}

// OrganizationPage is one page of organizations.
type OrganizationPage struct {
	Items []*Organization `json:"items"`
	Total int             `json:"total"`
	Page  Page            `json:"page"`
}

// OrganizationService manages organizations and their members. Every
// operation authorizes the caller before touching anything.
type OrganizationService struct {
	deps Deps
}

func NewOrganizationService(deps Deps) (*OrganizationService, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	return &OrganizationService{deps: deps.withDefaults()}, nil
}

// CreateOrganization stores the organization with the caller as owner.
func (s *OrganizationService) CreateOrganization(ctx context.Context, identity *RequestIdentity, msg CreateOrganizationMessage) (*Organization, error) {
	userID, err := identityUserID(identity)
	if err != nil {
		return nil, err
	}

	if err := msg.Validate(); err != nil {
		return nil, err
	}
	msg = msg.normalized()

	org := &Organization{
		Name:        msg.Name,
		Description: msg.Description,
	}

	err = s.deps.Repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if org, err = s.deps.Repo.Organizations().AddTx(ctx, tx, org); err != nil {
			return err
		}
		_, err = s.deps.Repo.OrganizationMembers().AddTx(ctx, tx, &OrganizationMember{
			OrganizationID: org.ID,
			UserID:         userID,
			Owner:          true,
		})
		return err
	})
	if err != nil {
		return nil, internalError(err, "failed to create organization")
	}

	s.deps.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventOrganizationCreated,
		ActorID:   userID.String(),
		EntityID:  org.ID.String(),
	})
	return org, nil
}

// ListOrganizations pages through the organizations the caller belongs to.
func (s *OrganizationService) ListOrganizations(ctx context.Context, identity *RequestIdentity, page Page) (*OrganizationPage, error) {
	userID, err := identityUserID(identity)
	if err != nil {
		return nil, err
	}

	page = page.Normalize()
	items, total, err := s.deps.Repo.Organizations().ListForUser(ctx, userID, page)
	if err != nil {
		return nil, internalError(err, "failed to list organizations")
	}
	if items == nil {
		items = []*Organization{}
	}
	return &OrganizationPage{Items: items, Total: total, Page: page}, nil
}

// GetOrganization returns the organization to any of its members.
func (s *OrganizationService) GetOrganization(ctx context.Context, identity *RequestIdentity, organizationID string) (*Organization, error) {
	orgID, err := parseEntityID(organizationID)
	if err != nil {
		return nil, err
	}

	if _, err := AuthorizeMember[*OrganizationMember](ctx, s.deps.Repo.OrganizationMembers(), orgID, identity, ""); err != nil {
		return nil, err
	}

	return s.organization(ctx, orgID)
}

// ListMembers returns the memberships of an organization to any member.
func (s *OrganizationService) ListMembers(ctx context.Context, identity *RequestIdentity, organizationID string) ([]*OrganizationMember, error) {
	orgID, err := parseEntityID(organizationID)
	if err != nil {
		return nil, err
	}

	if _, err := AuthorizeMember[*OrganizationMember](ctx, s.deps.Repo.OrganizationMembers(), orgID, identity, ""); err != nil {
		return nil, err
	}

	members, err := s.deps.Repo.OrganizationMembers().ListByEntity(ctx, orgID)
	if err != nil {
		return nil, internalError(err, "failed to list members")
	}
	if members == nil {
		members = []*OrganizationMember{}
	}
	return members, nil
}

type InviteMemberMessage struct {
	Email string `json:"email"`
}

// InviteMember mails an invitation token to email. Repeated invites to the
// same address inside the invite window are dropped.
func (s *OrganizationService) InviteMember(ctx context.Context, identity *RequestIdentity, organizationID string, msg InviteMemberMessage) error {
	orgID, err := parseEntityID(organizationID)
	if err != nil {
		return err
	}

	if _, err := AuthorizeMember[*OrganizationMember](ctx, s.deps.Repo.OrganizationMembers(), orgID, identity, RoleOrgAdministrator); err != nil {
		return err
	}

	if err := CheckEmail(msg.Email); err != nil {
		return err
	}
	email := NormalizeEmail(msg.Email)

	org, err := s.organization(ctx, orgID)
	if err != nil {
		return err
	}

	inviter := email
	if userID, err := identityUserID(identity); err == nil {
		if user, err := s.deps.Repo.Users().GetByID(ctx, userID.String()); err == nil {
			inviter = displayName(user)
		}
	}

	key := GateKey(GateKindOrganizationInvite, orgID.String(), email)

	return s.deps.Gate.ExecuteOnTimeout(ctx, key, s.deps.Windows.OrganizationInvite, func(ctx context.Context) error {
		now := s.deps.Now()
		token, payload, err := s.deps.Tokens.OrganizationInvite.IssueAt(
			OrganizationInviteClaims{OrganizationID: orgID.String(), RecipientEmail: email},
			now,
			now.Add(s.deps.TTLs.OrganizationInvite),
		)
		if err != nil {
			return err
		}

		return s.deps.sendMail(ctx, "You are invited to "+org.Name, MailOrganizationInvite, fiber.Map{
			"inviter":      inviter,
			"organization": org.Name,
			"email":        email,
			"link":         s.deps.Templates.Link(LinkPathOrganizationInvite, token),
			"expires":      formatExpiry(payload.ExpiresAt),
		}, email)
	})
}

type AcceptInviteMessage struct {
	Token string `json:"token"`
}

// AcceptInvite joins the caller to the organization of the invite. The
// caller's email must be the invited address.
func (s *OrganizationService) AcceptInvite(ctx context.Context, identity *RequestIdentity, msg AcceptInviteMessage) (*OrganizationMember, error) {
	userID, err := identityUserID(identity)
	if err != nil {
		return nil, err
	}

	payload, ok := s.deps.Tokens.OrganizationInvite.ValidateAndDecode(msg.Token)
	if !ok {
		return nil, ErrTokenInvalid
	}

	orgID, err := uuid.Parse(payload.Claims.OrganizationID)
	if err != nil {
		return nil, ErrTokenInvalid
	}

	user, err := s.deps.Repo.Users().GetByID(ctx, userID.String())
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrForbidden
		}
		return nil, internalError(err, "failed to load user")
	}

	if NormalizeEmail(user.Email) != NormalizeEmail(payload.Claims.RecipientEmail) {
		return nil, ErrForbidden
	}

	var member *OrganizationMember
	err = s.deps.Repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := getByUUID[Organization](ctx, tx, orgID); err != nil {
			return err
		}

		_, err := s.deps.Repo.OrganizationMembers().FindMembershipTx(ctx, tx, orgID, userID)
		switch {
		case err == nil:
			return ErrAlreadyMember
		case !IsNotFound(err):
			return err
		}

		member, err = s.deps.Repo.OrganizationMembers().AddTx(ctx, tx, &OrganizationMember{
			OrganizationID: orgID,
			UserID:         userID,
		})
		return err
	})
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrTokenInvalid
		}
		return nil, internalError(err, "failed to accept invite")
	}

	s.deps.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventOrganizationMemberJoined,
		ActorID:   userID.String(),
		UserID:    userID.String(),
		EntityID:  orgID.String(),
	})
	return member, nil
}

type UpdateMemberRolesMessage struct {
	Roles []string `json:"roles"`
}

// UpdateMemberRoles replaces the organization roles granted to a member.
func (s *OrganizationService) UpdateMemberRoles(ctx context.Context, identity *RequestIdentity, organizationID, memberUserID string, msg UpdateMemberRolesMessage) (*OrganizationMember, error) {
	orgID, err := parseEntityID(organizationID)
	if err != nil {
		return nil, err
	}

	if _, err := AuthorizeMember[*OrganizationMember](ctx, s.deps.Repo.OrganizationMembers(), orgID, identity, RoleOrgAdministrator); err != nil {
		return nil, err
	}

	targetID, err := ParseID(memberUserID)
	if err != nil {
		return nil, err
	}

	roles, err := restrictRoles(msg.Roles, OrganizationRoles)
	if err != nil {
		return nil, err
	}

	var member *OrganizationMember
	err = s.deps.Repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		member, err = s.deps.Repo.OrganizationMembers().UpdateRolesTx(ctx, tx, orgID, targetID, roles)
		return err
	})
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, internalError(err, "failed to update member roles")
	}

	s.deps.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventOrganizationRolesChanged,
		ActorID:   identity.UserID,
		UserID:    targetID.String(),
		EntityID:  orgID.String(),
		Metadata:  map[string]any{"roles": roles},
	})
	return member, nil
}

// DeleteOrganization removes the organization and everything in it. Only
// the owner can do it, and only right after logging in.
func (s *OrganizationService) DeleteOrganization(ctx context.Context, identity *RequestIdentity, organizationID string) error {
	if err := AssertHasRoleOrForbidden(identity, RoleSTLMostSecure); err != nil {
		return err
	}

	orgID, err := parseEntityID(organizationID)
	if err != nil {
		return err
	}

	membership, err := AuthorizeMember[*OrganizationMember](ctx, s.deps.Repo.OrganizationMembers(), orgID, identity, "")
	if err != nil {
		return err
	}
	if !membership.IsOwner() {
		return ErrForbidden
	}

	err = s.deps.Repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return s.deps.Repo.Organizations().DeleteCascadeTx(ctx, tx, orgID)
	})
	if err != nil {
		return internalError(err, "failed to delete organization")
	}

	s.deps.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventOrganizationDeleted,
		ActorID:   identity.UserID,
		EntityID:  orgID.String(),
	})
	return nil
}

func (s *OrganizationService) organization(ctx context.Context, id uuid.UUID) (*Organization, error) {
	org, err := s.deps.Repo.Organizations().GetByUUID(ctx, id)
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, internalError(err, "failed to load organization")
	}
	return org, nil
}

// restrictRoles normalizes roles and rejects any outside allowed.
func restrictRoles(roles []string, allowed RoleSet) ([]string, error) {
	set := NewRoleSet(roles...)
	if !allowed.ContainsAll(set) {
		return nil, invalidArgument("unknown role").WithMetadata(map[string]any{
			"allowed": allowed.Slice(),
		})
	}
	return set.Slice(), nil
}
