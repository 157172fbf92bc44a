package auth

import (
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-router"
)

// AuthStatus is the outcome of authenticating one request.
type AuthStatus int

const (
	StatusAuthenticated      AuthStatus = 0
	StatusAnonymous          AuthStatus = 101
	StatusInvalidCredentials AuthStatus = 102
)

func (s AuthStatus) String() string {
	switch s {
	case StatusAuthenticated:
		return "AUTHENTICATED"
	case StatusAnonymous:
		return "ANONYMOUS"
	case StatusInvalidCredentials:
		return "INVALID_CREDENTIALS"
	default:
		return "UNKNOWN"
	}
}

const (
	HeaderAuthorization  = "Authorization"
	HeaderAuthStatus     = "X-Auth-Status"
	HeaderAuthStatusCode = "X-Auth-Status-Code"

	bearerScheme = "Bearer"
)

// SessionDecoder verifies session tokens.
type SessionDecoder interface {
	ValidateAndDecode(token string) (SessionPayload, bool)
}

// AuthResult is the outcome and, when authenticated, the identity.
type AuthResult struct {
	Status   AuthStatus
	Identity *RequestIdentity
}

// GateOption configures an AuthenticationGate
type GateOption func(*AuthenticationGate)

// WithGateClock sets the clock used to derive trust tiers.
func WithGateClock(now func() time.Time) GateOption {
	return func(g *AuthenticationGate) {
		if now != nil {
			g.now = now
		}
	}
}

// WithTrustTiers overrides DefaultTrustTiers.
func WithTrustTiers(tiers TrustTiers) GateOption {
	return func(g *AuthenticationGate) {
		g.tiers = tiers
	}
}

// WithGateMetrics records outcomes in m.
func WithGateMetrics(m *Metrics) GateOption {
	return func(g *AuthenticationGate) {
		g.metrics = m
	}
}

// WithGateLogger sets the logger.
func WithGateLogger(logger Logger) GateOption {
	return func(g *AuthenticationGate) {
		g.logger = normalizeLogger(logger)
	}
}

// ClientIdentifier names the client behind a request. Login must use the
// same identifier as the gate or sessions never reach a trust tier.
type ClientIdentifier func(router.Context) string

// RequestIP identifies clients by their IP address.
func RequestIP(ctx router.Context) string {
	return ctx.IP()
}

// WithClientIdentifier sets how the current client is identified. The
// default is RequestIP.
func WithClientIdentifier(fn ClientIdentifier) GateOption {
	return func(g *AuthenticationGate) {
		if fn != nil {
			g.clientID = fn
		}
	}
}

// AuthenticationGate turns the bearer token of a request into an identity.
// It never rejects a request.
type AuthenticationGate struct {
	sessions SessionDecoder
	tiers    TrustTiers
	now      func() time.Time
	clientID ClientIdentifier
	metrics  *Metrics
	logger   Logger
}

// NewAuthenticationGate returns a gate reading sessions from decoder.
func NewAuthenticationGate(sessions SessionDecoder, opts ...GateOption) *AuthenticationGate {
	g := &AuthenticationGate{
		sessions: sessions,
		tiers:    DefaultTrustTiers,
		now:      time.Now,
		clientID: RequestIP,
		logger:   defLogger{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ClientID identifies the client of ctx the way the gate does.
func (g *AuthenticationGate) ClientID(ctx router.Context) string {
	return g.clientID(ctx)
}

// Authenticate resolves the Authorization header value presented by
// clientID.
func (g *AuthenticationGate) Authenticate(authorization, clientID string) AuthResult {
	result := g.authenticate(authorization, clientID)
	g.metrics.observeOutcome(result.Status)
	return result
}

func (g *AuthenticationGate) authenticate(authorization, clientID string) AuthResult {
	token, ok := ExtractBearerToken(authorization)
	if !ok {
		return AuthResult{Status: StatusAnonymous}
	}

	payload, ok := g.sessions.ValidateAndDecode(token)
	if !ok {
		return AuthResult{Status: StatusInvalidCredentials}
	}

	identity := g.tiers.Derive(NewRequestIdentity(payload, token, clientID), g.now())
	return AuthResult{Status: StatusAuthenticated, Identity: &identity}
}

// Middleware authenticates every request, reports the outcome in the
// status headers and stores the identity for downstream handlers.
func (g *AuthenticationGate) Middleware() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			result := g.Authenticate(ctx.GetString(HeaderAuthorization, ""), g.clientID(ctx))

			ctx.SetHeader(HeaderAuthStatus, result.Status.String())
			ctx.SetHeader(HeaderAuthStatusCode, strconv.Itoa(int(result.Status)))

			stdCtx := WithAuthStatus(ctx.Context(), result.Status)
			if result.Identity != nil {
				ctx.Locals(IdentityLocalsKey, result.Identity)
				stdCtx = WithIdentity(stdCtx, result.Identity)
			}
			ctx.SetContext(stdCtx)

			return next(ctx)
		}
	}
}

// RequireAuthenticated rejects requests that reached it without an identity.
func RequireAuthenticated() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if _, ok := IdentityFromRouter(ctx); !ok {
				return ctx.JSON(router.StatusUnauthorized, errorBody(ErrUnauthorized))
			}
			return next(ctx)
		}
	}
}

// ExtractBearerToken returns the token of a "Bearer <token>" header. Any
// other shape means no token.
func ExtractBearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	l := len(bearerScheme)
	if len(header) <= l+1 || !strings.EqualFold(header[:l], bearerScheme) || header[l] != ' ' {
		return "", false
	}
	token := strings.TrimSpace(header[l+1:])
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	return token, true
}
