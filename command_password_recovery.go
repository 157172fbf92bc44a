package auth

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type RequestPasswordRecoveryMessage struct {
	Email string `json:"email" example:"pepe.rone@example.com" doc:"Account email."`
}

// RequestPasswordRecoveryHandler mails a recovery link. Unknown emails
// succeed without sending anything.
type RequestPasswordRecoveryHandler struct {
	deps Deps
}

func (h *RequestPasswordRecoveryHandler) Execute(ctx context.Context, event RequestPasswordRecoveryMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password recovery request",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RequestPasswordRecoveryHandler) execute(ctx context.Context, event RequestPasswordRecoveryMessage) error {
	if err := CheckEmail(event.Email); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.deps.Repo.Users().GetByEmail(ctx, event.Email)
	if err != nil {
		if IsNotFound(err) {
			h.deps.Logger.Debug("password recovery requested for unknown email")
			return nil
		}
		return internalError(err, "failed to retrieve user for password recovery")
	}

	key := GateKey(GateKindPasswordRecovery, user.ID.String())

	return h.deps.Gate.ExecuteOnTimeout(ctx, key, h.deps.Windows.PasswordRecovery, func(ctx context.Context) error {
		now := h.deps.Now()
		token, payload, err := h.deps.Tokens.PasswordRecovery.IssueAt(
			PasswordRecoveryClaims{UserID: user.ID.String()},
			now,
			now.Add(h.deps.TTLs.PasswordRecovery),
		)
		if err != nil {
			return err
		}

		return h.deps.sendMail(ctx, "Reset your password", MailPasswordRecovery, fiber.Map{
			"name":    displayName(user),
			"link":    h.deps.Templates.Link(LinkPathPasswordRecovery, token),
			"expires": formatExpiry(payload.ExpiresAt),
		}, user.Email)
	})
}

type FinalizePasswordRecoveryMessage struct {
	Token    string `json:"token" doc:"Password recovery token"`
	Password string `json:"password" example:"some_secret_word1" doc:"New password"`
}

type FinalizePasswordRecoveryHandler struct {
	deps Deps
}

func (h *FinalizePasswordRecoveryHandler) Execute(ctx context.Context, event FinalizePasswordRecoveryMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password recovery finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordRecoveryHandler) execute(ctx context.Context, event FinalizePasswordRecoveryMessage) error {
	payload, ok := h.deps.Tokens.PasswordRecovery.ValidateAndDecode(event.Token)
	if !ok {
		return ErrTokenInvalid
	}

	userID, err := uuid.Parse(payload.Claims.UserID)
	if err != nil {
		return ErrTokenInvalid
	}

	if err := CheckPasswordPolicy(event.Password); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	passwordHash, err := h.deps.Passwords.HashPassword(event.Password)
	if err != nil {
		return internalError(err, "failed to hash password")
	}

	err = h.deps.Repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return h.deps.Repo.Users().ResetPasswordTx(ctx, tx, userID, passwordHash)
	})
	if err != nil {
		if IsNotFound(err) {
			return ErrTokenInvalid
		}
		return internalError(err, "failed to finalize password recovery")
	}

	h.deps.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventPasswordRecovered,
		ActorID:   userID.String(),
		UserID:    userID.String(),
	})

	return nil
}
