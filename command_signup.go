package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/nyaruka/phonenumbers"
	"github.com/uptrace/bun"
)

// DefaultPhoneRegion is used for phone numbers without a country prefix.
const DefaultPhoneRegion = "US"

type SignupMessage struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Password   string `json:"password"`
	OnResponse func(user *User) `json:"-"`
}

func (e SignupMessage) Validate() error {
	if err := CheckEmail(e.Email); err != nil {
		return err
	}

	if err := CheckPasswordPolicy(e.Password); err != nil {
		return err
	}

	return validationError(validation.ValidateStruct(&e,
		validation.Field(&e.FirstName, validation.Length(0, 200)),
		validation.Field(&e.LastName, validation.Length(0, 200)),
		validation.Field(&e.Phone, validation.By(validPhone)),
	))
}

type SignupHandler struct {
	deps       Deps
	derivedIDs bool
}

func (h *SignupHandler) Execute(ctx context.Context, event SignupMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during signup",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *SignupHandler) execute(ctx context.Context, event SignupMessage) error {
	if err := event.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	hash, err := h.deps.Passwords.HashPassword(event.Password)
	if err != nil {
		return internalError(err, "failed to hash password")
	}

	phone, _ := NormalizePhone(event.Phone)

	user := &User{
		FirstName:    strings.TrimSpace(event.FirstName),
		LastName:     strings.TrimSpace(event.LastName),
		Email:        NormalizeEmail(event.Email),
		Phone:        phone,
		PasswordHash: hash,
	}

	if h.derivedIDs {
		if id, err := hashid.NewUUID(user.Email); err == nil {
			user.ID = id
		}
	}

	err = h.deps.Repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		taken, err := h.deps.Repo.Users().EmailExistsTx(ctx, tx, user.Email)
		if err != nil {
			return err
		}
		if taken {
			return ErrEmailTaken
		}

		user, err = h.deps.Repo.Users().RegisterTx(ctx, tx, user)
		return err
	})
	if err != nil {
		return internalError(err, "user registration transaction failed")
	}

	h.deps.Logger.Info("user %s signed up", user.ID)
	h.deps.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventSignup,
		ActorID:   user.ID.String(),
		UserID:    user.ID.String(),
	})

	if err := sendPrimaryEmailConfirmation(ctx, h.deps, user); err != nil {
		h.deps.Logger.Error("failed to send confirmation mail to %s: %v", user.ID, err)
	}

	if event.OnResponse != nil {
		event.OnResponse(user)
	}

	return nil
}

// CheckEmail returns ErrInvalidEmail unless email is a bare address.
func CheckEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" || len(email) > 254 {
		return ErrInvalidEmail
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrInvalidEmail
	}

	at := strings.LastIndex(email, "@")
	if at < 1 || !strings.Contains(email[at+1:], ".") {
		return ErrInvalidEmail
	}
	return nil
}

var errInvalidPhone = errors.New("must be a valid phone number")

// NormalizePhone formats phone as E.164. An empty phone stays empty.
func NormalizePhone(phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", nil
	}

	num, err := phonenumbers.Parse(phone, DefaultPhoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", errInvalidPhone
	}

	return phonenumbers.Format(num, phonenumbers.E164), nil
}

func validPhone(value any) error {
	s, _ := value.(string)
	_, err := NormalizePhone(s)
	return err
}

// sendPrimaryEmailConfirmation mails a confirmation link unless one was
// sent to the user within the confirmation window.
func sendPrimaryEmailConfirmation(ctx context.Context, deps Deps, user *User) error {
	key := GateKey(GateKindPrimaryEmailConfirmation, user.ID.String())

	return deps.Gate.ExecuteOnTimeout(ctx, key, deps.Windows.PrimaryEmailConfirmation, func(ctx context.Context) error {
		now := deps.Now()
		token, payload, err := deps.Tokens.PrimaryEmailConfirmation.IssueAt(
			PrimaryEmailConfirmationClaims{UserID: user.ID.String()},
			now,
			now.Add(deps.TTLs.PrimaryEmailConfirmation),
		)
		if err != nil {
			return err
		}

		return deps.sendMail(ctx, "Confirm your email address", MailPrimaryEmailConfirmation, fiber.Map{
			"name":    displayName(user),
			"link":    deps.Templates.Link(LinkPathPrimaryEmailConfirmation, token),
			"expires": formatExpiry(payload.ExpiresAt),
		}, user.Email)
	})
}
