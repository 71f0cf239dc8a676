// Package config loads service configuration from an optional YAML file and
// the environment.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Env       string    `yaml:"env" env:"APP_ENV" env-default:"local"`
	HTTP      HTTP      `yaml:"http"`
	GRPC      GRPC      `yaml:"grpc"`
	Auth      Auth      `yaml:"auth"`
	Store     Store     `yaml:"store"`
	Redis     Redis     `yaml:"redis"`
	Postgres  Postgres  `yaml:"postgres"`
	AMQP      AMQP      `yaml:"amqp"`
	Advisory  Advisory  `yaml:"advisory"`
	Workflow  Workflow  `yaml:"workflow"`
	Mail      Mail      `yaml:"mail"`
	Scheduler Scheduler `yaml:"scheduler"`
}

type HTTP struct {
	Addr            string        `yaml:"addr" env:"HTTP_ADDR" env-default:":8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"60s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"10s"`
	RatePerSecond   float64       `yaml:"rate_per_second" env:"HTTP_RATE_PER_SECOND" env-default:"10"`
	RateBurst       int           `yaml:"rate_burst" env:"HTTP_RATE_BURST" env-default:"20"`
	CORSOrigin      string        `yaml:"cors_origin" env:"HTTP_CORS_ORIGIN" env-default:"*"`
}

type GRPC struct {
	Addr string `yaml:"addr" env:"GRPC_ADDR" env-default:":9090"`
}

type Auth struct {
	Secret   string        `yaml:"secret" env:"THITTAM_SESSION_SECRET"`
	TokenTTL time.Duration `yaml:"token_ttl" env:"AUTH_TOKEN_TTL" env-default:"12h"`
}

const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

type Store struct {
	Driver string `yaml:"driver" env:"STORE_DRIVER" env-default:"memory"`
}

type Redis struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	Prefix   string `yaml:"prefix" env:"REDIS_PREFIX"`
}

type Postgres struct {
	DSN            string `yaml:"dsn" env:"PG_DSN"`
	MigrateOnStart bool   `yaml:"migrate_on_start" env:"PG_MIGRATE_ON_START" env-default:"false"`
}

type AMQP struct {
	URL   string `yaml:"url" env:"AMQP_URL"`
	Queue string `yaml:"queue" env:"AMQP_QUEUE" env-default:"citizen.notifications"`
}

type Advisory struct {
	BaseURL  string        `yaml:"base_url" env:"ADVISORY_BASE_URL"`
	APIKey   string        `yaml:"api_key" env:"ADVISORY_API_KEY"`
	Model    string        `yaml:"model" env:"ADVISORY_MODEL"`
	ProModel string        `yaml:"pro_model" env:"ADVISORY_PRO_MODEL"`
	Timeout  time.Duration `yaml:"timeout" env:"ADVISORY_TIMEOUT" env-default:"30s"`
	Rate     float64       `yaml:"rate" env:"ADVISORY_RATE" env-default:"5"`
	Burst    int           `yaml:"burst" env:"ADVISORY_BURST" env-default:"10"`
	CacheTTL time.Duration `yaml:"cache_ttl" env:"ADVISORY_CACHE_TTL" env-default:"1h"`
}

type Workflow struct {
	ApplyingPad    time.Duration `yaml:"applying_pad" env:"WORKFLOW_APPLYING_PAD" env-default:"3500ms"`
	GrievancePad   time.Duration `yaml:"grievance_pad" env:"WORKFLOW_GRIEVANCE_PAD" env-default:"2s"`
	ReminderDedupe bool          `yaml:"reminder_dedupe" env:"WORKFLOW_REMINDER_DEDUPE" env-default:"false"`
}

type Mail struct {
	SendGridKey string `yaml:"sendgrid_key" env:"SENDGRID_API_KEY"`
	SendGridURL string `yaml:"sendgrid_url" env:"SENDGRID_HOST"`
	FromName    string `yaml:"from_name" env:"MAIL_FROM_NAME" env-default:"Thittam"`
	FromAddress string `yaml:"from_address" env:"MAIL_FROM_ADDRESS" env-default:"noreply@thittam.org"`
}

type Scheduler struct {
	Enabled     bool   `yaml:"enabled" env:"RENEWAL_SWEEP_ENABLED" env-default:"true"`
	RenewalSpec string `yaml:"renewal_spec" env:"RENEWAL_SWEEP_SPEC" env-default:"0 9 * * *"`
}

// Load reads path when it is non-empty, then the environment. A .env file in
// the working directory is loaded into the environment first when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MustLoad loads the configuration named by the -config flag or CONFIG_PATH.
// It panics, so use it only at start-up.
func MustLoad() *Config {
	cfg, err := Load(fetchConfigPath())
	if err != nil {
		panic("config: " + err.Error())
	}
	return cfg
}

// fetchConfigPath prefers the -config flag over CONFIG_PATH.
func fetchConfigPath() string {
	var res string
	if flag.Lookup("config") == nil {
		flag.StringVar(&res, "config", "", "path to config file")
	}
	if !flag.Parsed() {
		flag.Parse()
	}
	if f := flag.Lookup("config"); f != nil && f.Value.String() != "" {
		return f.Value.String()
	}
	return os.Getenv("CONFIG_PATH")
}

// Validate checks the combinations cleanenv cannot express.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case DriverMemory:
	case DriverRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for the redis store"))
		}
	case DriverPostgres:
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("PG_DSN is required for the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	if c.HTTP.RateBurst < 0 || c.HTTP.RatePerSecond < 0 {
		errs = append(errs, errors.New("rate limit values must not be negative"))
	}
	if c.Workflow.ApplyingPad < 0 || c.Workflow.GrievancePad < 0 {
		errs = append(errs, errors.New("workflow pads must not be negative"))
	}
	return errors.Join(errs...)
}
