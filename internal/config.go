package internal

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server" envconfig:"HTTP_SERVER"`
	Database      DatabaseConfig      `mapstructure:"database" envconfig:"DATABASE"`
	Security      SecurityConfig      `mapstructure:"security" envconfig:"SECURITY" validate:"required"`
	Authz         AuthzConfig         `mapstructure:"authz" envconfig:"AUTHZ"`
	RateLimit     RateLimitConfig     `mapstructure:"rate_limit" envconfig:"RATE_LIMIT"`
	Observability ObservabilityConfig `mapstructure:"observability" envconfig:"OBSERVABILITY"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port" envconfig:"PORT" default:"8080" validate:"min=1,max=65535"`
	BaseURL           string        `mapstructure:"base_url" envconfig:"BASE_URL"`
	AllowedOrigins    string        `mapstructure:"allowed_origins" envconfig:"ALLOWED_ORIGINS" default:"*"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" envconfig:"READ_HEADER_TIMEOUT" default:"5s"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" envconfig:"MAX_OPEN_CONNS" default:"25" validate:"required,min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" envconfig:"MAX_IDLE_CONNS" default:"5" validate:"required,min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" envconfig:"CONN_MAX_LIFETIME" default:"30m" validate:"required,min=1m"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" envconfig:"CONN_MAX_IDLE_TIME" default:"5m" validate:"required,min=1m"`
	Source          string        `mapstructure:"source" envconfig:"SOURCE" validate:"required"`
}

type SecurityConfig struct {
	JWTAccessSecret      string        `mapstructure:"jwt_access_secret" envconfig:"JWT_ACCESS_SECRET" validate:"required,min=32"`
	JWTRefreshSecret     string        `mapstructure:"jwt_refresh_secret" envconfig:"JWT_REFRESH_SECRET" validate:"required,min=32"`
	AccessTokenDuration  time.Duration `mapstructure:"access_token_duration" envconfig:"ACCESS_TOKEN_DURATION" default:"15m" validate:"required,min=1m,max=1h"`
	RefreshTokenDuration time.Duration `mapstructure:"refresh_token_duration" envconfig:"REFRESH_TOKEN_DURATION" default:"168h" validate:"required,min=1h"`
	BCryptCost           int           `mapstructure:"bcrypt_cost" envconfig:"BCRYPT_COST" default:"12" validate:"required,min=10,max=15"`
}

// AuthzConfig tunes the capability cache in front of the permission store.
type AuthzConfig struct {
	CacheSize int           `mapstructure:"cache_size" envconfig:"CACHE_SIZE" default:"256" validate:"min=0"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl" envconfig:"CACHE_TTL" default:"5m"`
}

type RateLimitConfig struct {
	BatchRequests int           `mapstructure:"batch_requests" envconfig:"BATCH_REQUESTS" default:"30" validate:"min=0"`
	BatchWindow   time.Duration `mapstructure:"batch_window" envconfig:"BATCH_WINDOW" default:"1m"`
}

type ObservabilityConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics" envconfig:"METRICS"`
	Logging LoggingConfig `mapstructure:"logging" envconfig:"LOGGING"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" envconfig:"ENABLED" default:"true"`
	Path    string `mapstructure:"path" envconfig:"PATH" default:"/metrics" validate:"required_if=Enabled true"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" envconfig:"LEVEL" default:"info" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" envconfig:"FORMAT" default:"json" validate:"required,oneof=json text"`
}

// LoadConfigFromEnv reads the APP_ prefixed environment, e.g.
// APP_DATABASE_SOURCE or APP_SECURITY_JWT_ACCESS_SECRET.
func LoadConfigFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("APP", &cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}
	return &cfg, nil
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := validator.New().Struct(c); err != nil {
		errs = append(errs, err.Error())
	}

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *SecurityConfig) Validate() error {
	if c.JWTAccessSecret != "" && c.JWTAccessSecret == c.JWTRefreshSecret {
		return errors.New("access and refresh secrets must differ")
	}
	if c.RefreshTokenDuration <= c.AccessTokenDuration {
		return errors.New("refresh_token_duration must exceed access_token_duration")
	}
	return nil
}
