package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "POS"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	App     AppConfig
	DB      DBConfig
	Redis   RedisConfig
	JWT     JWTConfig
	Session SessionConfig
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if _, err := cfg.App.Location(); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env       string `envconfig:"POS_APP_ENV" default:"development"`
	Name      string `envconfig:"POS_APP_NAME" default:"POS Cart Engine v1.0"`
	Port      string `envconfig:"POS_APP_PORT" default:"3000"`
	LogLevel  string `envconfig:"POS_LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"POS_LOG_FORMAT" default:"json"`
	Timezone  string `envconfig:"POS_TIMEZONE" default:"Asia/Jakarta"`
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, "production")
}

// Location resolves the store time zone used for transaction numbers.
func (a AppConfig) Location() (*time.Location, error) {
	if a.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", a.Timezone, err)
	}
	return loc, nil
}

type DBConfig struct {
	Driver   string `envconfig:"POS_DB_DRIVER" default:"postgres"`
	DSN      string `envconfig:"POS_DB_DSN"`
	Host     string `envconfig:"POS_DB_HOST"`
	Port     int    `envconfig:"POS_DB_PORT" default:"5432"`
	User     string `envconfig:"POS_DB_USER"`
	Password string `envconfig:"POS_DB_PASSWORD"`
	Name     string `envconfig:"POS_DB_NAME"`
	SSLMode  string `envconfig:"POS_DB_SSLMODE" default:"disable"`
	LogLevel string `envconfig:"POS_DB_LOG_LEVEL" default:"warn"`

	MaxOpenConns    int           `envconfig:"POS_DB_MAX_OPEN_CONNS" default:"100"`
	MaxIdleConns    int           `envconfig:"POS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"POS_DB_CONN_MAX_LIFETIME" default:"1h"`
}

func (db *DBConfig) ensureDSN() error {
	switch db.Driver {
	case DriverPostgres:
	case DriverSQLite:
		if db.DSN == "" {
			db.DSN = "file:pos.db?cache=shared"
		}
		return nil
	default:
		return fmt.Errorf("unsupported database driver %q", db.Driver)
	}

	if db.DSN != "" {
		return nil
	}
	missing := []string{}
	if db.Host == "" {
		missing = append(missing, "POS_DB_HOST")
	}
	if db.User == "" {
		missing = append(missing, "POS_DB_USER")
	}
	if db.Name == "" {
		missing = append(missing, "POS_DB_NAME")
	}
	if len(missing) > 0 {
		return fmt.Errorf("database configuration missing: set POS_DB_DSN or %s", strings.Join(missing, ", "))
	}
	db.DSN = fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		db.Host, db.User, db.Password, db.Name, db.Port, db.SSLMode,
	)
	return nil
}

type RedisConfig struct {
	URL              string        `envconfig:"POS_REDIS_URL"`
	ChannelPrefix    string        `envconfig:"POS_REDIS_CHANNEL_PREFIX" default:"pos"`
	SettingsCacheTTL time.Duration `envconfig:"POS_REDIS_SETTINGS_TTL" default:"30s"`
}

func (r RedisConfig) Enabled() bool {
	return r.URL != ""
}

type JWTConfig struct {
	Secret string        `envconfig:"POS_JWT_SECRET" default:"change-me"`
	TTL    time.Duration `envconfig:"POS_JWT_TTL" default:"12h"`
}

type SessionConfig struct {
	InboxSize        int           `envconfig:"POS_SESSION_INBOX_SIZE" default:"16"`
	OperationTimeout time.Duration `envconfig:"POS_SESSION_OP_TIMEOUT" default:"10s"`
}
