package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/zzy10151020/MBTI-System-sub000/internal/utils"
)

// Config is assembled in layers: defaults, an optional YAML file, a .env file, then
// MBTI_* environment variables. Later layers override earlier ones.
type Config struct {
	Server struct {
		Addr        string   `yaml:"addr"`
		CORSOrigins []string `yaml:"cors_origins"`
	} `yaml:"server"`

	Database struct {
		Driver     string `yaml:"driver"`     // sqlite3, sqlite or postgres
		DSN        string `yaml:"dsn"`        // empty uses the driver's default
		Migrations string `yaml:"migrations"` // empty uses the embedded set
	} `yaml:"database"`

	Auth struct {
		JWTSecret string        `yaml:"jwt_secret"`
		TokenTTL  time.Duration `yaml:"token_ttl"`
	} `yaml:"auth"`

	Admin struct {
		Username string `yaml:"username"`
		Email    string `yaml:"email"`
		Password string `yaml:"password"`
	} `yaml:"admin"`

	Seed bool `yaml:"seed"`

	Redis struct {
		Addr     string        `yaml:"addr"` // empty disables the statistics cache
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		StatsTTL time.Duration `yaml:"stats_ttl"`
	} `yaml:"redis"`

	AMQP struct {
		URL      string `yaml:"url"` // empty disables event publishing
		Exchange string `yaml:"exchange"`
	} `yaml:"amqp"`

	Commit    string `yaml:"-"`
	BuildTime string `yaml:"-"`
}

const devJWTSecret = "mbti-dev-secret"

func Defaults() *Config {
	c := &Config{}
	c.Server.Addr = ":8080"
	c.Server.CORSOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	c.Database.Driver = "sqlite3"
	c.Auth.JWTSecret = devJWTSecret
	c.Auth.TokenTTL = 7 * 24 * time.Hour
	c.Admin.Username = "admin"
	c.Admin.Email = "admin@example.com"
	c.Redis.StatsTTL = 5 * time.Minute
	c.AMQP.Exchange = "mbti.events"
	return c
}

// Load builds the configuration. path may be empty, in which case MBTI_CONFIG is consulted.
// A missing .env file is not an error.
func Load(path string) (*Config, error) {
	c := Defaults()

	if path == "" {
		path = os.Getenv("MBTI_CONFIG")
	}
	if path != "" {
		if err := c.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	c.applyEnv()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	if err := yaml.NewDecoder(f).Decode(c); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Addr = utils.SafeEnv("MBTI_ADDR", c.Server.Addr)
	c.Server.CORSOrigins = utils.EnvList("MBTI_CORS_ORIGINS", c.Server.CORSOrigins)

	c.Database.Driver = utils.SafeEnv("MBTI_DB_DRIVER", c.Database.Driver)
	c.Database.DSN = utils.SafeEnv("MBTI_DB_DSN", c.Database.DSN)
	c.Database.Migrations = utils.SafeEnv("MBTI_MIGRATIONS_DIR", c.Database.Migrations)

	c.Auth.JWTSecret = utils.SafeEnv("MBTI_JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.TokenTTL = utils.EnvDuration("MBTI_TOKEN_TTL", c.Auth.TokenTTL)

	c.Admin.Username = utils.SafeEnv("MBTI_ADMIN_USERNAME", c.Admin.Username)
	c.Admin.Email = utils.SafeEnv("MBTI_ADMIN_EMAIL", c.Admin.Email)
	c.Admin.Password = utils.SafeEnv("MBTI_ADMIN_PASSWORD", c.Admin.Password)
	c.Seed = utils.EnvBool("MBTI_SEED", c.Seed)

	c.Redis.Addr = utils.SafeEnv("MBTI_REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = utils.SafeEnv("MBTI_REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = utils.EnvInt("MBTI_REDIS_DB", c.Redis.DB)
	c.Redis.StatsTTL = utils.EnvDuration("MBTI_STATS_TTL", c.Redis.StatsTTL)

	c.AMQP.URL = utils.SafeEnv("MBTI_AMQP_URL", c.AMQP.URL)
	c.AMQP.Exchange = utils.SafeEnv("MBTI_AMQP_EXCHANGE", c.AMQP.Exchange)

	c.Commit = utils.SafeEnv("MBTI_COMMIT", c.Commit)
	c.BuildTime = utils.SafeEnv("MBTI_BUILD_TIME", c.BuildTime)
}

func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server addr required")
	}
	switch c.Database.Driver {
	case "sqlite3", "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported db driver %q", c.Database.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("jwt secret required")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("token ttl must be positive")
	}
	if c.Redis.StatsTTL < 0 {
		return errors.New("stats ttl must not be negative")
	}
	return nil
}

// UsingDevSecret reports whether tokens are signed with the built in development secret.
func (c *Config) UsingDevSecret() bool { return c.Auth.JWTSecret == devJWTSecret }
