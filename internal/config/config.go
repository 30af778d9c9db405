package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type Config struct {
	ServerPort     string           `mapstructure:"server_port"`
	JWTSecret      string           `mapstructure:"jwt_secret"`
	LogLevel       string           `mapstructure:"log_level"`
	AllowedOrigins []string         `mapstructure:"allowed_origins"`
	StateStore     StateStoreConfig `mapstructure:"state_store"`
	Pipeline       PipelineConfig   `mapstructure:"pipeline"`
	Sources        []SourceConfig   `mapstructure:"sources"`
}

type StateStoreConfig struct {
	Driver        string `mapstructure:"driver"`
	DatabaseURL   string `mapstructure:"database_url"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
}

type PipelineConfig struct {
	Name            string        `mapstructure:"name"`
	ProviderTimeout time.Duration `mapstructure:"provider_timeout"`
	MaxConcurrency  int           `mapstructure:"max_concurrency"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	CacheMaxEntries int           `mapstructure:"cache_max_entries"`
	// HideDurationHours of -1 disables hiding.
	HideDurationHours int          `mapstructure:"hide_duration_hours"`
	Sort              string       `mapstructure:"sort"`
	Filters           FilterConfig `mapstructure:"filters"`
}

type FilterConfig struct {
	MinimumPriority       int    `mapstructure:"minimum_priority"`
	MaximumPriority       int    `mapstructure:"maximum_priority"`
	TitleRegex            string `mapstructure:"title_regex"`
	BodyRegex             string `mapstructure:"body_regex"`
	RequiredRoleAttribute string `mapstructure:"required_role_attribute"`
	DropExpired           bool   `mapstructure:"drop_expired"`
}

// SourceConfig describes one leaf provider. Which fields apply depends on Type.
type SourceConfig struct {
	Name     string            `mapstructure:"name"`
	Type     string            `mapstructure:"type"`
	URLs     []string          `mapstructure:"urls"`
	Username string            `mapstructure:"username"`
	Password string            `mapstructure:"password"`
	Timeout  time.Duration     `mapstructure:"timeout"`
	Params   map[string]string `mapstructure:"params"`

	// resource
	Directory string   `mapstructure:"directory"`
	Files     []string `mapstructure:"files"`

	// sql
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	Query    string `mapstructure:"query"`
	Category string `mapstructure:"category"`

	// mongo
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
	Limit      int64  `mapstructure:"limit"`
}

const (
	StateStorePostgres = "postgres"
	StateStoreRedis    = "redis"
	StateStoreMemory   = "memory"
)

// Load reads configuration from a YAML file and the environment. When path
// is empty, config.yaml is looked up in . and ./config and may be absent.
// Environment variables use the NOTICEBOARD_ prefix, e.g.
// NOTICEBOARD_STATE_STORE_DRIVER.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.AddConfigPath("./config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("NOTICEBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "error reading config file")
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "error unmarshalling config")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server_port", "8080")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("state_store.driver", StateStoreMemory)
	v.SetDefault("state_store.database_url", "")
	v.SetDefault("state_store.redis_addr", "localhost:6379")
	v.SetDefault("state_store.redis_password", "")
	v.SetDefault("state_store.redis_db", 0)
	v.SetDefault("pipeline.name", "notifications")
	v.SetDefault("pipeline.provider_timeout", 10*time.Second)
	v.SetDefault("pipeline.max_concurrency", 0)
	v.SetDefault("pipeline.cache_ttl", 5*time.Minute)
	v.SetDefault("pipeline.cache_max_entries", 1000)
	v.SetDefault("pipeline.hide_duration_hours", 365*24)
	v.SetDefault("pipeline.sort", "")
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("jwt_secret must be set")
	}

	switch c.StateStore.Driver {
	case StateStoreMemory, StateStoreRedis:
	case StateStorePostgres:
		if c.StateStore.DatabaseURL == "" {
			return errors.New("state_store.database_url is required for the postgres driver")
		}
	default:
		return errors.Errorf("unknown state_store.driver %q", c.StateStore.Driver)
	}

	switch c.Pipeline.Sort {
	case "", "priority", "due_date":
	default:
		return errors.Errorf("unknown pipeline.sort %q", c.Pipeline.Sort)
	}

	seen := make(map[string]struct{}, len(c.Sources))
	for i, s := range c.Sources {
		if strings.TrimSpace(s.Name) == "" {
			return errors.Errorf("sources[%d]: name is required", i)
		}
		if _, dup := seen[s.Name]; dup {
			return errors.Errorf("sources[%d]: duplicate name %q", i, s.Name)
		}
		seen[s.Name] = struct{}{}
	}
	return nil
}

// HideDuration converts HideDurationHours; negative values disable hiding.
func (p PipelineConfig) HideDuration() time.Duration {
	if p.HideDurationHours < 0 {
		return -1
	}
	return time.Duration(p.HideDurationHours) * time.Hour
}
