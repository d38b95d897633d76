package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Provider string

const (
	ProviderMock      Provider = "mock"
	ProviderGemini    Provider = "gemini"
	ProviderVertex    Provider = "vertex"
	ProviderAnthropic Provider = "anthropic"
)

type StorageBackend string

const (
	StorageMemory    StorageBackend = "memory"
	StorageSQLite    StorageBackend = "sqlite"
	StoragePostgres  StorageBackend = "postgres"
	StorageMySQL     StorageBackend = "mysql"
	StorageFirestore StorageBackend = "firestore"
)

const (
	DefaultGeminiModel    = "gemini-2.5-flash"
	DefaultAnthropicModel = "claude-sonnet-4-5"
	DefaultSystemPrompt   = "You are a helpful, concise assistant. Answer in the same language as the user."
)

type Config struct {
	Port string

	LogLevel  string
	LogFormat string

	AIProvider      Provider
	AIModel         string
	AITimeout       time.Duration
	SystemPrompt    string
	MaxOutputTokens int

	GeminiAPIKey    string
	GCPProjectID    string
	GCPLocation     string
	AnthropicAPIKey string

	StorageBackend StorageBackend
	StorageDSN     string

	SessionTTL           time.Duration
	SessionSweepInterval time.Duration
	SessionMaxTurns      int
	SessionSecret        string
	SessionCookieName    string
	SessionCookieSecure  bool

	CORSOrigin   string
	OTelEndpoint string
}

// New returns a viper instance with defaults and env bindings applied.
// Every key is reachable as RELAY_<KEY> with dots replaced by underscores.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("ai.provider", string(ProviderMock))
	v.SetDefault("ai.model", "")
	v.SetDefault("ai.timeout", 30*time.Second)
	v.SetDefault("ai.system_prompt", DefaultSystemPrompt)
	v.SetDefault("ai.max_output_tokens", 8192)

	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gcp.project", "")
	v.SetDefault("gcp.location", "us-central1")
	v.SetDefault("anthropic.api_key", "")

	v.SetDefault("storage.backend", string(StorageMemory))
	v.SetDefault("storage.dsn", "")

	v.SetDefault("session.ttl", 24*time.Hour)
	v.SetDefault("session.sweep_interval", 10*time.Minute)
	v.SetDefault("session.max_turns", 40)
	v.SetDefault("session.secret", "")
	v.SetDefault("session.cookie_name", "relay_session")
	v.SetDefault("session.cookie_secure", false)

	v.SetDefault("http.cors_origin", "")
	v.SetDefault("otel.endpoint", "")

	// conventional names used by the SDKs
	_ = v.BindEnv("gemini.api_key", "RELAY_GEMINI_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("anthropic.api_key", "RELAY_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("port", "RELAY_PORT", "PORT")

	return v
}

// Load reads all keys from v and validates the result.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port: v.GetString("port"),

		LogLevel:  v.GetString("log.level"),
		LogFormat: v.GetString("log.format"),

		AIProvider:      Provider(strings.ToLower(v.GetString("ai.provider"))),
		AIModel:         v.GetString("ai.model"),
		AITimeout:       v.GetDuration("ai.timeout"),
		SystemPrompt:    v.GetString("ai.system_prompt"),
		MaxOutputTokens: v.GetInt("ai.max_output_tokens"),

		GeminiAPIKey:    v.GetString("gemini.api_key"),
		GCPProjectID:    v.GetString("gcp.project"),
		GCPLocation:     v.GetString("gcp.location"),
		AnthropicAPIKey: v.GetString("anthropic.api_key"),

		StorageBackend: StorageBackend(strings.ToLower(v.GetString("storage.backend"))),
		StorageDSN:     v.GetString("storage.dsn"),

		SessionTTL:           v.GetDuration("session.ttl"),
		SessionSweepInterval: v.GetDuration("session.sweep_interval"),
		SessionMaxTurns:      v.GetInt("session.max_turns"),
		SessionSecret:        v.GetString("session.secret"),
		SessionCookieName:    v.GetString("session.cookie_name"),
		SessionCookieSecure:  v.GetBool("session.cookie_secure"),

		CORSOrigin:   v.GetString("http.cors_origin"),
		OTelEndpoint: v.GetString("otel.endpoint"),
	}

	if cfg.AIModel == "" {
		switch cfg.AIProvider {
		case ProviderAnthropic:
			cfg.AIModel = DefaultAnthropicModel
		default:
			cfg.AIModel = DefaultGeminiModel
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error

	switch c.AIProvider {
	case ProviderMock:
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("gemini.api_key (GEMINI_API_KEY) is required for the gemini provider"))
		}
	case ProviderVertex:
		if c.GCPProjectID == "" || c.GCPLocation == "" {
			errs = append(errs, errors.New("gcp.project and gcp.location are required for the vertex provider"))
		}
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			errs = append(errs, errors.New("anthropic.api_key (ANTHROPIC_API_KEY) is required for the anthropic provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ai.provider %q", c.AIProvider))
	}

	switch c.StorageBackend {
	case StorageMemory:
	case StorageSQLite, StoragePostgres, StorageMySQL:
		if c.StorageDSN == "" {
			errs = append(errs, fmt.Errorf("storage.dsn is required for the %s backend", c.StorageBackend))
		}
	case StorageFirestore:
		if c.GCPProjectID == "" {
			errs = append(errs, errors.New("gcp.project is required for the firestore backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.backend %q", c.StorageBackend))
	}

	if c.AITimeout <= 0 {
		errs = append(errs, errors.New("ai.timeout must be positive"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("session.ttl must be positive"))
	}
	if c.SessionSweepInterval <= 0 {
		errs = append(errs, errors.New("session.sweep_interval must be positive"))
	}
	if c.SessionMaxTurns < 0 {
		errs = append(errs, errors.New("session.max_turns must not be negative"))
	} else if c.SessionMaxTurns%2 != 0 {
		errs = append(errs, errors.New("session.max_turns must be even (whole user/assistant pairs)"))
	}
	if c.SessionCookieName == "" {
		errs = append(errs, errors.New("session.cookie_name must not be empty"))
	}

	return errors.Join(errs...)
}
