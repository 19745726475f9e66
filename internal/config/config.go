package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Portal    PortalConfig    `yaml:"portal" mapstructure:"portal"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Reference ReferenceConfig `yaml:"reference" mapstructure:"reference"`
	Lead      LeadConfig      `yaml:"lead" mapstructure:"lead"`
	Resolve   ResolveConfig   `yaml:"resolve" mapstructure:"resolve"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// PortalConfig configures the remote affiliation portal.
type PortalConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	// BreakerThreshold consecutive failures stop portal calls for
	// BreakerResetSecs. Zero disables the breaker.
	BreakerThreshold int `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// StoreConfig configures the profile store backend.
type StoreConfig struct {
	Driver          string `yaml:"driver" mapstructure:"driver"`
	ProfilesPath    string `yaml:"profiles_path" mapstructure:"profiles_path"`
	DatabaseURL     string `yaml:"database_url" mapstructure:"database_url"`
	LockTimeoutSecs int    `yaml:"lock_timeout_secs" mapstructure:"lock_timeout_secs"`
}

// ReferenceConfig locates the lead assignment and engagement round tables.
type ReferenceConfig struct {
	LeadsPath  string `yaml:"leads_path" mapstructure:"leads_path"`
	RoundsPath string `yaml:"rounds_path" mapstructure:"rounds_path"`
}

// LeadConfig configures relationship enrichment.
type LeadConfig struct {
	CooldownDays int  `yaml:"cooldown_days" mapstructure:"cooldown_days"`
	MarkUnique   bool `yaml:"mark_unique" mapstructure:"mark_unique"`
}

// ResolveConfig configures the reconciler.
type ResolveConfig struct {
	TreatEmptyAsMissing bool `yaml:"treat_empty_as_missing" mapstructure:"treat_empty_as_missing"`
	Concurrency         int  `yaml:"concurrency" mapstructure:"concurrency"`
}

// ServerConfig configures the lookup API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SCHOOL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("portal.base_url", "https://saras.cbse.gov.in")
	v.SetDefault("portal.timeout_secs", 10)
	v.SetDefault("portal.user_agent", "school-cli/1.0")
	v.SetDefault("portal.rate_per_sec", 5)
	v.SetDefault("portal.breaker_threshold", 5)
	v.SetDefault("portal.breaker_reset_secs", 30)
	v.SetDefault("store.driver", "csv")
	v.SetDefault("store.profiles_path", "schools.csv")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.lock_timeout_secs", 5)
	v.SetDefault("reference.leads_path", "matched_schools.csv")
	v.SetDefault("reference.rounds_path", "v2_data.csv")
	v.SetDefault("lead.cooldown_days", 90)
	v.SetDefault("lead.mark_unique", true)
	v.SetDefault("resolve.treat_empty_as_missing", false)
	v.SetDefault("resolve.concurrency", 4)
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on and reports every
// problem at once. Modes: "lookup", "serve", "migrate", "roster".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "lookup", "serve":
		errs = append(errs, c.validateStore()...)
		if c.Portal.TimeoutSecs <= 0 {
			errs = append(errs, "portal.timeout_secs must be > 0")
		}
		if c.Lead.CooldownDays < 0 {
			errs = append(errs, "lead.cooldown_days must be >= 0")
		}
		if c.Resolve.Concurrency < 1 || c.Resolve.Concurrency > 32 {
			errs = append(errs, "resolve.concurrency must be between 1 and 32")
		}
		if mode == "serve" && c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "migrate":
		errs = append(errs, c.validateStore()...)
	case "roster":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateStore() []string {
	switch c.Store.Driver {
	case "csv":
		if c.Store.ProfilesPath == "" {
			return []string{"store.profiles_path is required for the csv driver"}
		}
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			return []string{"store.database_url is required for the " + c.Store.Driver + " driver"}
		}
	default:
		return []string{"store.driver must be one of csv, sqlite, postgres"}
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
