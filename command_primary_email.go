package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// EmailChangeCodeDigits is the length of the code bound to an email change
// token.
const EmailChangeCodeDigits = 6

type RequestPrimaryEmailChangeMessage struct {
	Identity   *RequestIdentity `json:"-"`
	NewEmail   string           `json:"new_email"`
	OnResponse func(code string) `json:"-"`
}

// RequestPrimaryEmailChangeHandler mails a token to the new address and
// hands the matching code to the caller. Both are needed to confirm.
type RequestPrimaryEmailChangeHandler struct {
	deps Deps
}

func (h *RequestPrimaryEmailChangeHandler) Execute(ctx context.Context, event RequestPrimaryEmailChangeMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during email change request")
	default:
		return h.execute(ctx, event)
	}
}

func (h *RequestPrimaryEmailChangeHandler) execute(ctx context.Context, event RequestPrimaryEmailChangeMessage) error {
	if err := AssertHasRoleOrForbidden(event.Identity, RoleSTLSecure); err != nil {
		return err
	}

	userID, err := identityUserID(event.Identity)
	if err != nil {
		return err
	}

	if err := CheckEmail(event.NewEmail); err != nil {
		return err
	}
	newEmail := NormalizeEmail(event.NewEmail)

	key := GateKey(GateKindPrimaryEmailChange, userID.String())
	if h.deps.Gate.IsArmed(ctx, key) {
		return ErrRateLimited
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.deps.Repo.Users().GetByID(ctx, userID.String())
	if err != nil {
		if IsNotFound(err) {
			return ErrForbidden
		}
		return internalError(err, "failed to load user")
	}

	if user.Email == newEmail {
		return ErrEmailTaken
	}

	taken, err := h.deps.Repo.Users().EmailExists(ctx, newEmail)
	if err != nil {
		return internalError(err, "failed to check email")
	}
	if taken {
		return ErrEmailTaken
	}

	code, err := newNumericCode(EmailChangeCodeDigits)
	if err != nil {
		return internalError(err, "failed to generate code")
	}

	now := h.deps.Now()
	token, payload, err := h.deps.Tokens.PrimaryEmailChange.IssueAt(
		PrimaryEmailChangeClaims{UserID: userID.String(), NewPrimaryEmail: newEmail},
		code,
		now,
		now.Add(h.deps.TTLs.PrimaryEmailChange),
	)
	if err != nil {
		return err
	}

	if err := h.deps.sendMail(ctx, "Confirm your new email address", MailPrimaryEmailChange, fiber.Map{
		"name":    displayName(user),
		"email":   newEmail,
		"link":    h.deps.Templates.Link(LinkPathPrimaryEmailChange, token),
		"expires": formatExpiry(payload.ExpiresAt),
	}, newEmail); err != nil {
		return err
	}

	if err := h.deps.Gate.Arm(ctx, key, h.deps.Windows.PrimaryEmailChange); err != nil {
		h.deps.Logger.Warn("failed to arm %s: %v", key, err)
	}

	if event.OnResponse != nil {
		event.OnResponse(code)
	}
	return nil
}

type ConfirmPrimaryEmailChangeMessage struct {
	Identity *RequestIdentity `json:"-"`
	Token    string           `json:"token"`
	Code     string           `json:"code"`
}

type ConfirmPrimaryEmailChangeHandler struct {
	deps Deps
}

func (h *ConfirmPrimaryEmailChangeHandler) Execute(ctx context.Context, event ConfirmPrimaryEmailChangeMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during email change confirmation")
	default:
		return h.execute(ctx, event)
	}
}

func (h *ConfirmPrimaryEmailChangeHandler) execute(ctx context.Context, event ConfirmPrimaryEmailChangeMessage) error {
	userID, err := identityUserID(event.Identity)
	if err != nil {
		return err
	}

	if event.Code == "" {
		return ErrTokenInvalid
	}

	payload, ok := h.deps.Tokens.PrimaryEmailChange.ValidateAndDecode(event.Token, event.Code)
	if !ok {
		return ErrTokenInvalid
	}

	if payload.Claims.UserID != userID.String() {
		return ErrForbidden
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err = h.deps.Repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		taken, err := h.deps.Repo.Users().EmailExistsTx(ctx, tx, payload.Claims.NewPrimaryEmail)
		if err != nil {
			return err
		}
		if taken {
			return ErrEmailTaken
		}
		return h.deps.Repo.Users().ChangeEmailTx(ctx, tx, userID, payload.Claims.NewPrimaryEmail)
	})
	if err != nil {
		if IsNotFound(err) {
			return ErrForbidden
		}
		return internalError(err, "failed to change primary email")
	}

	h.deps.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventPrimaryEmailChanged,
		ActorID:   userID.String(),
		UserID:    userID.String(),
	})
	return nil
}

type RequestPrimaryEmailConfirmationMessage struct {
	Identity *RequestIdentity `json:"-"`
}

type RequestPrimaryEmailConfirmationHandler struct {
	deps Deps
}

func (h *RequestPrimaryEmailConfirmationHandler) Execute(ctx context.Context, event RequestPrimaryEmailConfirmationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during email confirmation request")
	default:
		return h.execute(ctx, event)
	}
}

func (h *RequestPrimaryEmailConfirmationHandler) execute(ctx context.Context, event RequestPrimaryEmailConfirmationMessage) error {
	userID, err := identityUserID(event.Identity)
	if err != nil {
		return err
	}

	user, err := h.deps.Repo.Users().GetByID(ctx, userID.String())
	if err != nil {
		if IsNotFound(err) {
			return ErrForbidden
		}
		return internalError(err, "failed to load user")
	}

	if user.EmailConfirmed {
		return nil
	}

	return sendPrimaryEmailConfirmation(ctx, h.deps, user)
}

type ConfirmPrimaryEmailMessage struct {
	Token string `json:"token"`
}

type ConfirmPrimaryEmailHandler struct {
	deps Deps
}

func (h *ConfirmPrimaryEmailHandler) Execute(ctx context.Context, event ConfirmPrimaryEmailMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during email confirmation")
	default:
		return h.execute(ctx, event)
	}
}

func (h *ConfirmPrimaryEmailHandler) execute(ctx context.Context, event ConfirmPrimaryEmailMessage) error {
	payload, ok := h.deps.Tokens.PrimaryEmailConfirmation.ValidateAndDecode(event.Token)
	if !ok {
		return ErrTokenInvalid
	}

	userID, err := uuid.Parse(payload.Claims.UserID)
	if err != nil {
		return ErrTokenInvalid
	}

	err = h.deps.Repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return h.deps.Repo.Users().MarkEmailConfirmedTx(ctx, tx, userID)
	})
	if err != nil {
		if IsNotFound(err) {
			return ErrTokenInvalid
		}
		return internalError(err, "failed to confirm email")
	}

	h.deps.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventPrimaryEmailConfirmed,
		ActorID:   userID.String(),
		UserID:    userID.String(),
	})
	return nil
}

func newNumericCode(digits int) (string, error) {
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}
