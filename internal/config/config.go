package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all configuration required by the API process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Billing   BillingConfig
	Pipeline  PipelineConfig
	Breaker   BreakerConfig
	Providers ProvidersConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode is kept explicit for AWS-ready posture.
	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// BillingConfig controls the platform markup applied on top of pass-through
// provider cost, and the ledger currency.
type BillingConfig struct {
	// PlatformMarginRate is a fraction (0.25 == 25% markup).
	PlatformMarginRate decimal.Decimal
	Currency           string
}

// PipelineConfig controls the per-call audio pipeline.
type PipelineConfig struct {
	// ChunkFlushCount is how many buffered audio chunks trigger one
	// transcribe -> generate -> synthesize pass.
	ChunkFlushCount int

	// HistoryWindow caps how many conversation turns are replayed into each
	// LLM prompt. Full history is always retained on the call context.
	HistoryWindow int

	// SessionTTL bounds how long an idle call context survives in the
	// session store before expiry.
	SessionTTL time.Duration

	// MaxActiveCallsPerUser caps concurrent calls per user (default 5).
	MaxActiveCallsPerUser int
}

// BreakerConfig holds circuit-breaker tuning shared by all provider breakers.
type BreakerConfig struct {
	FailureThreshold int
	SuccessThreshold int
	RecoveryTimeout  time.Duration
	MonitoringWindow time.Duration
	CallTimeout      time.Duration
}

// ProvidersConfig carries external provider credentials and endpoints.
// Empty keys disable the vendor; the registry fails fast if a configured
// fallback chain references a disabled vendor.
type ProvidersConfig struct {
	DeepgramAPIKey   string
	OpenAIAPIKey     string
	AnthropicAPIKey  string
	ElevenLabsAPIKey string

	DeepgramEndpoint   string
	OpenAIEndpoint     string
	AnthropicEndpoint  string
	ElevenLabsEndpoint string
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied after parsing.
	c.Auth.AccessTokenTTL = optionalDuration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = optionalDuration("JWT_REFRESH_TTL")

	{
		d, err := optionalDecimal("BILLING_MARGIN_RATE")
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		c.Billing.PlatformMarginRate = d
	}
	c.Billing.Currency = strings.TrimSpace(os.Getenv("BILLING_CURRENCY"))

	c.Pipeline.ChunkFlushCount = optionalInt("PIPELINE_CHUNK_FLUSH_COUNT")
	c.Pipeline.HistoryWindow = optionalInt("PIPELINE_HISTORY_WINDOW")
	c.Pipeline.SessionTTL = optionalDuration("PIPELINE_SESSION_TTL")
	c.Pipeline.MaxActiveCallsPerUser = optionalInt("PIPELINE_MAX_ACTIVE_CALLS_PER_USER")

	c.Breaker.FailureThreshold = optionalInt("BREAKER_FAILURE_THRESHOLD")
	c.Breaker.SuccessThreshold = optionalInt("BREAKER_SUCCESS_THRESHOLD")
	c.Breaker.RecoveryTimeout = optionalDuration("BREAKER_RECOVERY_TIMEOUT")
	c.Breaker.MonitoringWindow = optionalDuration("BREAKER_MONITORING_WINDOW")
	c.Breaker.CallTimeout = optionalDuration("BREAKER_CALL_TIMEOUT")

	c.Providers.DeepgramAPIKey = os.Getenv("DEEPGRAM_API_KEY")
	c.Providers.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	c.Providers.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	c.Providers.ElevenLabsAPIKey = os.Getenv("ELEVENLABS_API_KEY")
	c.Providers.DeepgramEndpoint = strings.TrimSpace(os.Getenv("DEEPGRAM_ENDPOINT"))
	c.Providers.OpenAIEndpoint = strings.TrimSpace(os.Getenv("OPENAI_ENDPOINT"))
	c.Providers.AnthropicEndpoint = strings.TrimSpace(os.Getenv("ANTHROPIC_ENDPOINT"))
	c.Providers.ElevenLabsEndpoint = strings.TrimSpace(os.Getenv("ELEVENLABS_ENDPOINT"))

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Billing.Currency == "" {
		c.Billing.Currency = "USD"
	}
	if c.Pipeline.ChunkFlushCount <= 0 {
		c.Pipeline.ChunkFlushCount = 5
	}
	if c.Pipeline.HistoryWindow <= 0 {
		c.Pipeline.HistoryWindow = 20
	}
	if c.Pipeline.SessionTTL <= 0 {
		c.Pipeline.SessionTTL = 2 * time.Hour
	}
	if c.Breaker.FailureThreshold <= 0 {
		c.Breaker.FailureThreshold = 5
	}
	if c.Breaker.SuccessThreshold <= 0 {
		c.Breaker.SuccessThreshold = 3
	}
	if c.Breaker.RecoveryTimeout <= 0 {
		c.Breaker.RecoveryTimeout = 60 * time.Second
	}
	if c.Breaker.MonitoringWindow <= 0 {
		c.Breaker.MonitoringWindow = 5 * time.Minute
	}
	if c.Breaker.CallTimeout <= 0 {
		c.Breaker.CallTimeout = 30 * time.Second
	}
}

func (c Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		}
	} else if !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.Billing.PlatformMarginRate.IsNegative() {
		errs = append(errs, fmt.Errorf("BILLING_MARGIN_RATE must be >= 0, got %s", c.Billing.PlatformMarginRate))
	}
	if c.Billing.PlatformMarginRate.GreaterThan(decimal.NewFromInt(10)) {
		errs = append(errs, fmt.Errorf("BILLING_MARGIN_RATE is a fraction, not a percentage; got %s", c.Billing.PlatformMarginRate))
	}
	if !isValidCurrency(c.Billing.Currency) {
		errs = append(errs, fmt.Errorf("BILLING_CURRENCY must be a 3-letter ISO code, got %q", c.Billing.Currency))
	}

	if c.Breaker.RecoveryTimeout >= c.Breaker.MonitoringWindow {
		errs = append(errs, errors.New("BREAKER_RECOVERY_TIMEOUT must be shorter than BREAKER_MONITORING_WINDOW"))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	sslMode := c.DB.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		sslMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalInt(key string) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func optionalDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func optionalDecimal(key string) (decimal.Decimal, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s must be a decimal, got %q", key, v)
	}
	return d, nil
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func isValidCurrency(v string) bool {
	if len(v) != 3 {
		return false
	}
	for _, r := range v {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
