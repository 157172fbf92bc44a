package auth

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/django/v3"
	goerrors "github.com/goliatone/go-errors"
)

const ContentTypeText = "text/plain; charset=utf-8"

// Mail template names under data/mail.
const (
	MailPrimaryEmailConfirmation = "primary_email_confirmation"
	MailPasswordRecovery         = "password_recovery"
	MailPrimaryEmailChange       = "primary_email_change"
	MailOrganizationInvite       = "organization_invite"
)

// Link paths appended to the mail base URL.
const (
	LinkPathPrimaryEmailConfirmation = "/confirm-email"
	LinkPathPasswordRecovery         = "/password-recovery"
	LinkPathPrimaryEmailChange       = "/confirm-email-change"
	LinkPathOrganizationInvite       = "/invites/accept"
)

// SentMail is a message recorded by LoggingMailer.
type SentMail struct {
	From        string
	Title       string
	Body        string
	ContentType string
	Recipients  []string
	SentAt      time.Time
}

// DefaultOutboxLimit is how many messages LoggingMailer keeps by default.
const DefaultOutboxLimit = 100

// LoggingMailerOption configures a LoggingMailer
type LoggingMailerOption func(*LoggingMailer)

// WithOutboxLimit keeps only the latest limit messages. Zero disables the
// outbox.
func WithOutboxLimit(limit int) LoggingMailerOption {
	return func(m *LoggingMailer) {
		if limit >= 0 {
			m.outboxLimit = limit
		}
	}
}

// WithMailBodyLogging logs message bodies at debug level. Bodies carry live
// token links.
func WithMailBodyLogging(enabled bool) LoggingMailerOption {
	return func(m *LoggingMailer) {
		m.logBodies = enabled
	}
}

// LoggingMailer logs every message instead of delivering it and keeps the
// latest ones in an outbox.
type LoggingMailer struct {
	// From is the sender recorded on every message.
	From string

	logger      Logger
	logBodies   bool
	outboxLimit int

	mu     sync.Mutex
	outbox []SentMail
}

var _ Mailer = (*LoggingMailer)(nil)

func NewLoggingMailer(logger Logger, opts ...LoggingMailerOption) *LoggingMailer {
	m := &LoggingMailer{
		logger:      normalizeLogger(logger),
		outboxLimit: DefaultOutboxLimit,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

func (m *LoggingMailer) SendMail(ctx context.Context, title, body, contentType string, recipients ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(recipients) == 0 {
		return invalidArgument("mail without recipients")
	}

	if m.outboxLimit > 0 {
		m.mu.Lock()
		m.outbox = append(m.outbox, SentMail{
			From:        m.From,
			Title:       title,
			Body:        body,
			ContentType: contentType,
			Recipients:  append([]string(nil), recipients...),
			SentAt:      time.Now().UTC(),
		})
		if over := len(m.outbox) - m.outboxLimit; over > 0 {
			m.outbox = append(m.outbox[:0:0], m.outbox[over:]...)
		}
		m.mu.Unlock()
	}

	m.logger.Info("mail from=%s to=%s title=%q", m.From, strings.Join(recipients, ","), title)
	if m.logBodies {
		m.logger.Debug("mail body title=%q\n%s", title, body)
	}
	return nil
}

func (m *LoggingMailer) SendMailAsync(ctx context.Context, title, body, contentType string, recipients ...string) <-chan error {
	out := make(chan error, 1)
	go func() {
		defer close(out)
		out <- m.SendMail(ctx, title, body, contentType, recipients...)
	}()
	return out
}

// Outbox returns a copy of the messages sent so far.
func (m *LoggingMailer) Outbox() []SentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMail(nil), m.outbox...)
}

// Last returns the most recent message sent to recipient.
func (m *LoggingMailer) Last(recipient string) (SentMail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.outbox) - 1; i >= 0; i-- {
		for _, r := range m.outbox[i].Recipients {
			if strings.EqualFold(r, recipient) {
				return m.outbox[i], true
			}
		}
	}
	return SentMail{}, false
}

// MailTemplates renders the embedded mail bodies and builds token links.
type MailTemplates struct {
	engine  *django.Engine
	baseURL *url.URL
}

// NewMailTemplates loads the embedded templates. Links are built against
// baseURL.
func NewMailTemplates(baseURL string) (*MailTemplates, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, invalidArgument("mail base url must be absolute")
	}

	engine := django.NewFileSystem(http.FS(GetMailFS()), ".txt")
	if err := engine.Load(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load mail templates")
	}

	return &MailTemplates{engine: engine, baseURL: base}, nil
}

// Render executes template name with data.
func (t *MailTemplates) Render(name string, data fiber.Map) (string, error) {
	var buf bytes.Buffer
	if err := t.engine.Render(&buf, name, data); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render mail").
			WithMetadata(map[string]any{"template": name})
	}
	return buf.String(), nil
}

// Link returns base URL + path with the token as query parameter.
func (t *MailTemplates) Link(path, token string) string {
	u := *t.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = url.Values{"token": []string{token}}.Encode()
	return u.String()
}

func formatExpiry(at time.Time) string {
	return at.UTC().Format(time.RFC1123)
}
