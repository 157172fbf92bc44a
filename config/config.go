package config

import (
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-orgauth"
	"github.com/goliatone/go-orgauth/cache"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, so tokens.issuer
// reads ORGAUTH_TOKENS_ISSUER.
const EnvPrefix = "ORGAUTH"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Tokens   TokensConfig   `mapstructure:"tokens"`
	Trust    TrustConfig    `mapstructure:"trust"`
	Gates    GatesConfig    `mapstructure:"gates"`
	Mail     MailConfig     `mapstructure:"mail"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	// DerivedUserIDs derives user ids from the signup email.
	DerivedUserIDs bool `mapstructure:"derived_user_ids"`
}

type DatabaseConfig struct {
	DSN   string `mapstructure:"dsn"`
	Debug bool   `mapstructure:"debug"`
}

// RedisConfig selects the Redis gate store. When disabled the gates keep
// their keys in process memory.
type RedisConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Addrs     []string `mapstructure:"addrs"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	DB        int      `mapstructure:"db"`
	KeyPrefix string   `mapstructure:"key_prefix"`
}

type TokensConfig struct {
	Issuer                         string    `mapstructure:"issuer"`
	AuthenticationSecret           string    `mapstructure:"authentication_secret"`
	PasswordRecoverySecret         string    `mapstructure:"password_recovery_secret"`
	PrimaryEmailChangeSecret       string    `mapstructure:"primary_email_change_secret"`
	PrimaryEmailConfirmationSecret string    `mapstructure:"primary_email_confirmation_secret"`
	OrganizationInviteSecret       string    `mapstructure:"organization_invite_secret"`
	TTL                            TTLConfig `mapstructure:"ttl"`
}

type TTLConfig struct {
	Session                  time.Duration `mapstructure:"session"`
	PasswordRecovery         time.Duration `mapstructure:"password_recovery"`
	PrimaryEmailChange       time.Duration `mapstructure:"primary_email_change"`
	PrimaryEmailConfirmation time.Duration `mapstructure:"primary_email_confirmation"`
	OrganizationInvite       time.Duration `mapstructure:"organization_invite"`
}

// TrustConfig holds the session age thresholds of the trust roles.
type TrustConfig struct {
	SameSession time.Duration `mapstructure:"same_session"`
	Secure      time.Duration `mapstructure:"secure"`
	MostSecure  time.Duration `mapstructure:"most_secure"`
}

type GatesConfig struct {
	// ArmPolicy is "always" or "on_success".
	ArmPolicy string        `mapstructure:"arm_policy"`
	Atomic    bool          `mapstructure:"atomic"`
	Windows   WindowsConfig `mapstructure:"windows"`
}

type WindowsConfig struct {
	PasswordRecovery         time.Duration `mapstructure:"password_recovery"`
	PrimaryEmailConfirmation time.Duration `mapstructure:"primary_email_confirmation"`
	OrganizationInvite       time.Duration `mapstructure:"organization_invite"`
	PrimaryEmailChange       time.Duration `mapstructure:"primary_email_change"`
}

type MailConfig struct {
	From string `mapstructure:"from"`
	// BaseURL prefixes the links placed in mails.
	BaseURL string `mapstructure:"base_url"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SetDefaults registers a default for every key. Keys without a default
// are invisible to environment lookups when unmarshaling.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.derived_user_ids", false)

	v.SetDefault("database.dsn", "file:orgauth.db?cache=shared")
	v.SetDefault("database.debug", false)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addrs", []string{"localhost:6379"})
	v.SetDefault("redis.username", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", cache.DefaultKeyPrefix)

	v.SetDefault("tokens.issuer", auth.DefaultIssuer)
	v.SetDefault("tokens.authentication_secret", "")
	v.SetDefault("tokens.password_recovery_secret", "")
	v.SetDefault("tokens.primary_email_change_secret", "")
	v.SetDefault("tokens.primary_email_confirmation_secret", "")
	v.SetDefault("tokens.organization_invite_secret", "")
	v.SetDefault("tokens.ttl.session", auth.DefaultTokenTTLs.Session)
	v.SetDefault("tokens.ttl.password_recovery", auth.DefaultTokenTTLs.PasswordRecovery)
	v.SetDefault("tokens.ttl.primary_email_change", auth.DefaultTokenTTLs.PrimaryEmailChange)
	v.SetDefault("tokens.ttl.primary_email_confirmation", auth.DefaultTokenTTLs.PrimaryEmailConfirmation)
	v.SetDefault("tokens.ttl.organization_invite", auth.DefaultTokenTTLs.OrganizationInvite)

	v.SetDefault("trust.same_session", auth.DefaultTrustTiers.SameSession)
	v.SetDefault("trust.secure", auth.DefaultTrustTiers.Secure)
	v.SetDefault("trust.most_secure", auth.DefaultTrustTiers.MostSecure)

	v.SetDefault("gates.arm_policy", "always")
	v.SetDefault("gates.atomic", false)
	v.SetDefault("gates.windows.password_recovery", auth.DefaultGateWindows.PasswordRecovery)
	v.SetDefault("gates.windows.primary_email_confirmation", auth.DefaultGateWindows.PrimaryEmailConfirmation)
	v.SetDefault("gates.windows.organization_invite", auth.DefaultGateWindows.OrganizationInvite)
	v.SetDefault("gates.windows.primary_email_change", auth.DefaultGateWindows.PrimaryEmailChange)

	v.SetDefault("mail.from", "no-reply@localhost")
	v.SetDefault("mail.base_url", "http://localhost:8080")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", ":9090")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional YAML file at path, overlays the environment and
// validates the result.
func Load(path string) (*Config, error) {
	v := New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to read config file").
				WithMetadata(map[string]any{"path": path})
		}
	}
	return FromViper(v)
}

func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once. The error carries a
// "fields" metadata map keyed by section and field name.
func (c *Config) Validate() error {
	fields := map[string]string{}
	collect := func(section string, err error) {
		var verrs validation.Errors
		switch {
		case err == nil:
		case errors.As(err, &verrs):
			for name, msg := range auth.ValidationFields(verrs) {
				fields[section+"."+name] = msg
			}
		default:
			fields[section] = err.Error()
		}
	}

	secret := []validation.Rule{validation.Required, validation.Length(32, 0)}
	collect("tokens", validation.ValidateStruct(&c.Tokens,
		validation.Field(&c.Tokens.Issuer, validation.Required),
		validation.Field(&c.Tokens.AuthenticationSecret, secret...),
		validation.Field(&c.Tokens.PasswordRecoverySecret, secret...),
		validation.Field(&c.Tokens.PrimaryEmailChangeSecret, secret...),
		validation.Field(&c.Tokens.PrimaryEmailConfirmationSecret, secret...),
		validation.Field(&c.Tokens.OrganizationInviteSecret, secret...),
	))

	seen := map[string]bool{}
	for _, s := range []string{
		c.Tokens.AuthenticationSecret,
		c.Tokens.PasswordRecoverySecret,
		c.Tokens.PrimaryEmailChangeSecret,
		c.Tokens.PrimaryEmailConfirmationSecret,
		c.Tokens.OrganizationInviteSecret,
	} {
		if s != "" && seen[s] {
			fields["tokens"] = "every token kind needs its own secret"
			break
		}
		seen[s] = true
	}

	if c.Trust.MostSecure > c.Trust.Secure || c.Trust.Secure > c.Trust.SameSession {
		fields["trust"] = "thresholds must satisfy most_secure <= secure <= same_session"
	}

	collect("mail", validation.ValidateStruct(&c.Mail,
		validation.Field(&c.Mail.From, validation.Required),
		validation.Field(&c.Mail.BaseURL, validation.Required),
	))

	if len(fields) == 0 {
		return nil
	}

	return goerrors.New("invalid configuration", goerrors.CategoryValidation).
		WithTextCode(auth.TextCodeValidationFailed).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(map[string]any{
			"fields": fields,
		})
}

func (c *Config) GetIssuer() string { return c.Tokens.Issuer }

func (c *Config) GetAuthenticationTokenSecretKey() []byte {
	return []byte(c.Tokens.AuthenticationSecret)
}

func (c *Config) GetPasswordRecoveryTokenSecretKey() []byte {
	return []byte(c.Tokens.PasswordRecoverySecret)
}

func (c *Config) GetPrimaryEmailChangeTokenSecretKey() []byte {
	return []byte(c.Tokens.PrimaryEmailChangeSecret)
}

func (c *Config) GetPrimaryEmailConfirmationTokenSecretKey() []byte {
	return []byte(c.Tokens.PrimaryEmailConfirmationSecret)
}

func (c *Config) GetOrganizationInviteTokenSecretKey() []byte {
	return []byte(c.Tokens.OrganizationInviteSecret)
}

func (c *Config) TokenTTLs() auth.TokenTTLs {
	return auth.TokenTTLs{
		Session:                  c.Tokens.TTL.Session,
		PasswordRecovery:         c.Tokens.TTL.PasswordRecovery,
		PrimaryEmailChange:       c.Tokens.TTL.PrimaryEmailChange,
		PrimaryEmailConfirmation: c.Tokens.TTL.PrimaryEmailConfirmation,
		OrganizationInvite:       c.Tokens.TTL.OrganizationInvite,
	}
}

func (c *Config) TrustTiers() auth.TrustTiers {
	return auth.TrustTiers{
		SameSession: c.Trust.SameSession,
		Secure:      c.Trust.Secure,
		MostSecure:  c.Trust.MostSecure,
	}
}

func (c *Config) GateWindows() auth.GateWindows {
	return auth.GateWindows{
		PasswordRecovery:         c.Gates.Windows.PasswordRecovery,
		PrimaryEmailConfirmation: c.Gates.Windows.PrimaryEmailConfirmation,
		OrganizationInvite:       c.Gates.Windows.OrganizationInvite,
		PrimaryEmailChange:       c.Gates.Windows.PrimaryEmailChange,
	}
}

// TimeoutGateOptions maps the gates section onto gate options.
func (c *Config) TimeoutGateOptions() []auth.TimeoutGateOption {
	return []auth.TimeoutGateOption{
		auth.WithArmPolicy(auth.ParseArmPolicy(c.Gates.ArmPolicy)),
		auth.WithAtomicReservation(c.Gates.Atomic),
	}
}

func (c *Config) RedisStoreConfig() cache.RedisConfig {
	return cache.RedisConfig{
		Addrs:     c.Redis.Addrs,
		Username:  c.Redis.Username,
		Password:  c.Redis.Password,
		DB:        c.Redis.DB,
		KeyPrefix: c.Redis.KeyPrefix,
	}
}

var _ auth.TokenConfig = (*Config)(nil)
