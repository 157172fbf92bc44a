package auth

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type LoginMessage struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	OrganizationID string `json:"organization_id,omitempty"`
	ClientID       string `json:"-"`
}

// LoginResponse is the session issued by a successful login.
type LoginResponse struct {
	Token          string    `json:"token"`
	ExpiresAt      time.Time `json:"expires_at"`
	OrganizationID string    `json:"organization_id,omitempty"`
	Roles          []string  `json:"roles"`
	User           *User     `json:"user"`
}

type ChangePasswordMessage struct {
	Identity        *RequestIdentity `json:"-"`
	CurrentPassword string           `json:"current_password"`
	NewPassword     string           `json:"new_password"`
}

// AccountOption configures Accounts
type AccountOption func(*Accounts)

// WithDerivedUserIDs derives new user ids from their email with hashid
// instead of generating random ones.
func WithDerivedUserIDs(enabled bool) AccountOption {
	return func(a *Accounts) {
		a.signup.derivedIDs = enabled
	}
}

// Accounts runs the account commands: signup, login, password and email
// management.
type Accounts struct {
	deps Deps

	signup                   *SignupHandler
	passwordRecovery         *RequestPasswordRecoveryHandler
	finalizePasswordRecovery *FinalizePasswordRecoveryHandler
	emailChange              *RequestPrimaryEmailChangeHandler
	confirmEmailChange       *ConfirmPrimaryEmailChangeHandler
	emailConfirmation        *RequestPrimaryEmailConfirmationHandler
	confirmEmail             *ConfirmPrimaryEmailHandler
}

func NewAccounts(deps Deps, opts ...AccountOption) (*Accounts, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	deps = deps.withDefaults()

	a := &Accounts{
		deps:                     deps,
		signup:                   &SignupHandler{deps: deps},
		passwordRecovery:         &RequestPasswordRecoveryHandler{deps: deps},
		finalizePasswordRecovery: &FinalizePasswordRecoveryHandler{deps: deps},
		emailChange:              &RequestPrimaryEmailChangeHandler{deps: deps},
		confirmEmailChange:       &ConfirmPrimaryEmailChangeHandler{deps: deps},
		emailConfirmation:        &RequestPrimaryEmailConfirmationHandler{deps: deps},
		confirmEmail:             &ConfirmPrimaryEmailHandler{deps: deps},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	return a, nil
}

func (a *Accounts) Signup(ctx context.Context, msg SignupMessage) (*User, error) {
	var user *User
	msg.OnResponse = func(u *User) { user = u }
	if err := a.signup.Execute(ctx, msg); err != nil {
		return nil, err
	}
	return user, nil
}

// Login checks the credentials and issues a session token. With an
// organization the session carries the membership roles.
func (a *Accounts) Login(ctx context.Context, msg LoginMessage) (*LoginResponse, error) {
	if err := CheckEmail(msg.Email); err != nil {
		return nil, err
	}

	user, err := a.deps.Repo.Users().GetByEmail(ctx, msg.Email)
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrInvalidEmail
		}
		return nil, internalError(err, "failed to load user")
	}

	if err := a.deps.Passwords.ComparePasswordAndHash(msg.Password, user.PasswordHash); err != nil {
		if trackErr := a.deps.Repo.Users().TrackAttemptedLogin(ctx, user); trackErr != nil {
			a.deps.Logger.Error("failed to track login attempt: %v", trackErr)
		}
		a.deps.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventLoginFailure,
			UserID:    user.ID.String(),
		})
		if goerrors.IsInternal(err) {
			return nil, err
		}
		return nil, ErrInvalidPassword
	}

	roles := []string{}
	orgID := strings.TrimSpace(msg.OrganizationID)
	if orgID != "" {
		id, err := parseEntityID(orgID)
		if err != nil {
			return nil, err
		}

		membership, err := FindMembershipOrForbidden[*OrganizationMember](ctx, a.deps.Repo.OrganizationMembers(), id, user.ID)
		if err != nil {
			return nil, err
		}

		granted := membership.GrantedRoles()
		if membership.IsOwner() {
			granted.Add(RoleOrgOwner)
		}
		roles = granted.Slice()
		orgID = id.String()
	}

	// sessions without a client never decode
	if strings.TrimSpace(msg.ClientID) == "" {
		return nil, invalidArgument("client id is required")
	}

	now := a.deps.Now()
	token, payload, err := a.deps.Tokens.Session.IssueAt(SessionClaims{
		UserID:         user.ID.String(),
		ClientID:       msg.ClientID,
		OrganizationID: orgID,
		Roles:          roles,
	}, now, now.Add(a.deps.TTLs.Session))
	if err != nil {
		return nil, err
	}

	if err := a.deps.Repo.Users().TrackSuccessfulLogin(ctx, user); err != nil {
		a.deps.Logger.Error("failed to track login: %v", err)
	}

	a.deps.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		ActorID:   user.ID.String(),
		UserID:    user.ID.String(),
		EntityID:  orgID,
	})

	return &LoginResponse{
		Token:          token,
		ExpiresAt:      payload.ExpiresAt,
		OrganizationID: orgID,
		Roles:          roles,
		User:           user,
	}, nil
}

// ChangePassword needs a recent login and the current password.
func (a *Accounts) ChangePassword(ctx context.Context, msg ChangePasswordMessage) error {
	if err := AssertHasRoleOrForbidden(msg.Identity, RoleSTLSecure); err != nil {
		return err
	}

	userID, err := identityUserID(msg.Identity)
	if err != nil {
		return err
	}

	if err := CheckPasswordPolicy(msg.NewPassword); err != nil {
		return err
	}

	user, err := a.profile(ctx, userID)
	if err != nil {
		return err
	}

	if err := a.deps.Passwords.ComparePasswordAndHash(msg.CurrentPassword, user.PasswordHash); err != nil {
		return err
	}

	hash, err := a.deps.Passwords.HashPassword(msg.NewPassword)
	if err != nil {
		return internalError(err, "failed to hash password")
	}

	err = a.deps.Repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return a.deps.Repo.Users().ResetPasswordTx(ctx, tx, userID, hash)
	})
	if err != nil {
		return internalError(err, "failed to change password")
	}

	a.deps.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventPasswordChanged,
		ActorID:   userID.String(),
		UserID:    userID.String(),
	})
	return nil
}

// GetProfile returns the user behind identity.
func (a *Accounts) GetProfile(ctx context.Context, identity *RequestIdentity) (*User, error) {
	userID, err := identityUserID(identity)
	if err != nil {
		return nil, err
	}
	return a.profile(ctx, userID)
}

func (a *Accounts) profile(ctx context.Context, userID uuid.UUID) (*User, error) {
	user, err := a.deps.Repo.Users().GetByID(ctx, userID.String())
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrForbidden
		}
		return nil, internalError(err, "failed to load user")
	}
	return user, nil
}

func (a *Accounts) RequestPasswordRecovery(ctx context.Context, msg RequestPasswordRecoveryMessage) error {
	return a.passwordRecovery.Execute(ctx, msg)
}

func (a *Accounts) FinalizePasswordRecovery(ctx context.Context, msg FinalizePasswordRecoveryMessage) error {
	return a.finalizePasswordRecovery.Execute(ctx, msg)
}

// RequestPrimaryEmailChange returns the code that must accompany the
// mailed token.
func (a *Accounts) RequestPrimaryEmailChange(ctx context.Context, msg RequestPrimaryEmailChangeMessage) (string, error) {
	var code string
	msg.OnResponse = func(c string) { code = c }
	if err := a.emailChange.Execute(ctx, msg); err != nil {
		return "", err
	}
	return code, nil
}

func (a *Accounts) ConfirmPrimaryEmailChange(ctx context.Context, msg ConfirmPrimaryEmailChangeMessage) error {
	return a.confirmEmailChange.Execute(ctx, msg)
}

func (a *Accounts) RequestPrimaryEmailConfirmation(ctx context.Context, msg RequestPrimaryEmailConfirmationMessage) error {
	return a.emailConfirmation.Execute(ctx, msg)
}

func (a *Accounts) ConfirmPrimaryEmail(ctx context.Context, msg ConfirmPrimaryEmailMessage) error {
	return a.confirmEmail.Execute(ctx, msg)
}
