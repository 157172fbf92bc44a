package auth

import (
	"context"
	"strings"
	"time"
)

// Gate kinds and their cooldown windows.
const (
	GateKindPasswordRecovery         = "password-recovery"
	GateKindPrimaryEmailConfirmation = "primary-email-confirmation"
	GateKindOrganizationInvite       = "organization-invite"
	GateKindPrimaryEmailChange       = "primary-email-change"

	PasswordRecoveryWindow         = 5 * time.Minute
	PrimaryEmailConfirmationWindow = 3 * time.Minute
	OrganizationInviteWindow       = 5 * time.Minute
	PrimaryEmailChangeWindow       = time.Minute
)

const gateKeyPrefix = "gate"

// GateKey joins the kind and the subject parts into a gate key.
func GateKey(kind string, parts ...string) string {
	all := make([]string, 0, len(parts)+2)
	all = append(all, gateKeyPrefix, kind)
	all = append(all, parts...)
	return strings.Join(all, ":")
}

// ArmPolicy decides whether a failed action still starts the cooldown.
type ArmPolicy int

const (
	// ArmAlways writes the key after the action whatever its result.
	ArmAlways ArmPolicy = iota
	// ArmOnSuccess writes the key only when the action returns nil.
	ArmOnSuccess
)

// ParseArmPolicy maps "always" and "on_success" to a policy.
func ParseArmPolicy(s string) ArmPolicy {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on_success", "on-success", "success":
		return ArmOnSuccess
	default:
		return ArmAlways
	}
}

// TimeoutGateOption configures a TimeoutGate
type TimeoutGateOption func(*TimeoutGate)

// WithArmPolicy sets the arm policy. The default is ArmAlways.
func WithArmPolicy(policy ArmPolicy) TimeoutGateOption {
	return func(g *TimeoutGate) {
		g.policy = policy
	}
}

// WithAtomicReservation reserves the key with PutIfAbsent before running
// the action, so concurrent callers cannot both run it.
func WithAtomicReservation(enabled bool) TimeoutGateOption {
	return func(g *TimeoutGate) {
		g.atomic = enabled
	}
}

// WithTimeoutGateMetrics records decisions in m.
func WithTimeoutGateMetrics(m *Metrics) TimeoutGateOption {
	return func(g *TimeoutGate) {
		g.metrics = m
	}
}

// WithTimeoutGateLogger sets the logger.
func WithTimeoutGateLogger(logger Logger) TimeoutGateOption {
	return func(g *TimeoutGate) {
		g.logger = normalizeLogger(logger)
	}
}

// TimeoutGate suppresses repeats of a side effect for the same key within
// a cooldown window. Store failures fail open: the action runs.
type TimeoutGate struct {
	store   CacheStore
	policy  ArmPolicy
	atomic  bool
	metrics *Metrics
	logger  Logger
}

// NewTimeoutGate returns a best effort gate over store.
func NewTimeoutGate(store CacheStore, opts ...TimeoutGateOption) *TimeoutGate {
	g := &TimeoutGate{
		store:  store,
		policy: ArmAlways,
		logger: defLogger{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ExecuteOnTimeout runs action unless key is armed. A skipped call returns
// nil. The action's error is returned as is.
func (g *TimeoutGate) ExecuteOnTimeout(ctx context.Context, key string, ttl time.Duration, action func(context.Context) error) error {
	if g.atomic {
		return g.executeReserved(ctx, key, ttl, action)
	}

	exists, err := g.store.KeyExists(ctx, key)
	if err != nil {
		g.logger.Warn("timeout gate: store check failed for %s, running action: %v", key, err)
		g.metrics.observeDecision(GateDecisionStoreError)
	} else if exists {
		g.metrics.observeDecision(GateDecisionSkipped)
		return nil
	}

	g.metrics.observeDecision(GateDecisionExecuted)
	actionErr := action(ctx)

	if actionErr == nil || g.policy == ArmAlways {
		if err := g.store.Put(ctx, key, "1", ttl); err != nil {
			g.logger.Warn("timeout gate: failed to arm %s: %v", key, err)
		}
	}

	return actionErr
}

func (g *TimeoutGate) executeReserved(ctx context.Context, key string, ttl time.Duration, action func(context.Context) error) error {
	reserved, err := g.store.PutIfAbsent(ctx, key, "1", ttl)
	if err != nil {
		g.logger.Warn("timeout gate: reservation failed for %s, running action: %v", key, err)
		g.metrics.observeDecision(GateDecisionStoreError)
		g.metrics.observeDecision(GateDecisionExecuted)
		return action(ctx)
	}

	if !reserved {
		g.metrics.observeDecision(GateDecisionSkipped)
		return nil
	}

	g.metrics.observeDecision(GateDecisionExecuted)
	actionErr := action(ctx)

	if actionErr != nil && g.policy == ArmOnSuccess {
		if err := g.store.Delete(ctx, key); err != nil {
			g.logger.Warn("timeout gate: failed to release %s: %v", key, err)
		}
	}

	return actionErr
}

// IsArmed reports whether key is in its cooldown window. A store failure
// reads as not armed.
func (g *TimeoutGate) IsArmed(ctx context.Context, key string) bool {
	exists, err := g.store.KeyExists(ctx, key)
	if err != nil {
		g.logger.Warn("timeout gate: store check failed for %s: %v", key, err)
		g.metrics.observeDecision(GateDecisionStoreError)
		return false
	}
	return exists
}

// Arm starts the cooldown window for key without running anything.
func (g *TimeoutGate) Arm(ctx context.Context, key string, ttl time.Duration) error {
	return g.store.Put(ctx, key, "1", ttl)
}
