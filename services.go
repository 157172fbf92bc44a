package auth

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// TokenTTLs is how long each token kind stays valid after issue.
type TokenTTLs struct {
	Session                  time.Duration
	PasswordRecovery         time.Duration
	PrimaryEmailChange       time.Duration
	PrimaryEmailConfirmation time.Duration
	OrganizationInvite       time.Duration
}

var DefaultTokenTTLs = TokenTTLs{
	Session:                  24 * time.Hour,
	PasswordRecovery:         time.Hour,
	PrimaryEmailChange:       time.Hour,
	PrimaryEmailConfirmation: 24 * time.Hour,
	OrganizationInvite:       7 * 24 * time.Hour,
}

func (t TokenTTLs) withDefaults() TokenTTLs {
	if t.Session <= 0 {
		t.Session = DefaultTokenTTLs.Session
	}
	if t.PasswordRecovery <= 0 {
		t.PasswordRecovery = DefaultTokenTTLs.PasswordRecovery
	}
	if t.PrimaryEmailChange <= 0 {
		t.PrimaryEmailChange = DefaultTokenTTLs.PrimaryEmailChange
	}
	if t.PrimaryEmailConfirmation <= 0 {
		t.PrimaryEmailConfirmation = DefaultTokenTTLs.PrimaryEmailConfirmation
	}
	if t.OrganizationInvite <= 0 {
		t.OrganizationInvite = DefaultTokenTTLs.OrganizationInvite
	}
	return t
}

// GateWindows is the cooldown of each timeout gated side effect.
type GateWindows struct {
	PasswordRecovery         time.Duration
	PrimaryEmailConfirmation time.Duration
	OrganizationInvite       time.Duration
	PrimaryEmailChange       time.Duration
}

var DefaultGateWindows = GateWindows{
	PasswordRecovery:         PasswordRecoveryWindow,
	PrimaryEmailConfirmation: PrimaryEmailConfirmationWindow,
	OrganizationInvite:       OrganizationInviteWindow,
	PrimaryEmailChange:       PrimaryEmailChangeWindow,
}

func (w GateWindows) withDefaults() GateWindows {
	if w.PasswordRecovery <= 0 {
		w.PasswordRecovery = DefaultGateWindows.PasswordRecovery
	}
	if w.PrimaryEmailConfirmation <= 0 {
		w.PrimaryEmailConfirmation = DefaultGateWindows.PrimaryEmailConfirmation
	}
	if w.OrganizationInvite <= 0 {
		w.OrganizationInvite = DefaultGateWindows.OrganizationInvite
	}
	if w.PrimaryEmailChange <= 0 {
		w.PrimaryEmailChange = DefaultGateWindows.PrimaryEmailChange
	}
	return w
}

// Deps are the collaborators shared by the account, organization and
// project services.
type Deps struct {
	Repo      RepositoryManager
	Tokens    *TokenProviders
	Gate      *TimeoutGate
	Mailer    Mailer
	Templates *MailTemplates
	Passwords PasswordAuthenticator
	Activity  ActivitySink
	Logger    Logger
	TTLs      TokenTTLs
	Windows   GateWindows
	Now       func() time.Time
}

func (d Deps) validate() error {
	switch {
	case d.Repo == nil:
		return invalidArgument("repository manager is required")
	case d.Tokens == nil:
		return invalidArgument("token providers are required")
	case d.Gate == nil:
		return invalidArgument("timeout gate is required")
	case d.Mailer == nil:
		return invalidArgument("mailer is required")
	case d.Templates == nil:
		return invalidArgument("mail templates are required")
	}
	return nil
}

func (d Deps) withDefaults() Deps {
	if d.Passwords == nil {
		d.Passwords = BcryptAuthenticator{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	d.Logger = normalizeLogger(d.Logger)
	d.Activity = normalizeActivitySink(d.Activity)
	d.TTLs = d.TTLs.withDefaults()
	d.Windows = d.Windows.withDefaults()
	return d
}

// sendMail renders template and sends it to recipient.
func (d Deps) sendMail(ctx context.Context, title, template string, data fiber.Map, recipient string) error {
	body, err := d.Templates.Render(template, data)
	if err != nil {
		return err
	}
	if err := d.Mailer.SendMail(ctx, title, body, ContentTypeText, recipient); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryExternal, "failed to send mail").
			WithMetadata(map[string]any{"template": template})
	}
	return nil
}

// BcryptAuthenticator hashes with bcrypt. A zero Cost uses the build
// default.
type BcryptAuthenticator struct {
	Cost int
}

var _ PasswordAuthenticator = BcryptAuthenticator{}

func (b BcryptAuthenticator) HashPassword(password string) (string, error) {
	if b.Cost == 0 {
		return HashPassword(password)
	}
	return HashPasswordWithCost(password, b.Cost)
}

func (b BcryptAuthenticator) ComparePasswordAndHash(password, hash string) error {
	return ComparePasswordAndHash(password, hash)
}

// FastBcryptAuthenticator uses the minimum bcrypt cost.
var FastBcryptAuthenticator = BcryptAuthenticator{Cost: bcrypt.MinCost}

// ParseID parses an entity identifier. Malformed ids can never match an
// entity so they read as not found.
func ParseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, ErrNotFound
	}
	return id, nil
}

// parseEntityID parses the id of an entity the caller must be a member
// of. Malformed ids fail the membership check like unknown ones.
func parseEntityID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, ErrForbidden
	}
	return id, nil
}

func displayName(u *User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

// internalError wraps err unless it already is a rich error.
func internalError(err error, msg string) error {
	if err == nil {
		return nil
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return err
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg).
		WithCode(goerrors.CodeInternal)
}
