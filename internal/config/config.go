// Package config loads client and server configuration from YAML and environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// PathEnv names the variable holding the YAML file path.
const PathEnv = "BOOKSHELF_CONFIG"

// LogConfig selects the logger.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"console"`
}

// IdPConfig locates the identity provider.
type IdPConfig struct {
	URL      string `yaml:"url"       env:"IDP_URL"       env-default:"http://localhost:8080"`
	Realm    string `yaml:"realm"     env:"IDP_REALM"     env-default:"catalog"`
	ClientID string `yaml:"client_id" env:"IDP_CLIENT_ID" env-default:"shelf-cli"`
}

// Client is the configuration of the shelf CLI.
type Client struct {
	APIURL        string        `yaml:"api_url"         env:"API_URL"         env-default:"http://localhost:8080"`
	IdP           IdPConfig     `yaml:"idp"`
	Timeout       time.Duration `yaml:"timeout"         env:"HTTP_TIMEOUT"    env-default:"15s"`
	RatePerSecond float64       `yaml:"rate_per_second" env:"RATE_PER_SECOND" env-default:"20"`
	SessionDir    string        `yaml:"session_dir"     env:"SESSION_DIR"`
	Log           LogConfig     `yaml:"log"`
}

// Validate checks value ranges.
func (c *Client) Validate() error {
	var errs []error
	if err := checkURL("api_url", c.APIURL); err != nil {
		errs = append(errs, err)
	}
	if err := checkURL("idp.url", c.IdP.URL); err != nil {
		errs = append(errs, err)
	}
	if c.IdP.Realm == "" || c.IdP.ClientID == "" {
		errs = append(errs, errors.New("idp.realm and idp.client_id are required"))
	}
	if c.Timeout <= 0 {
		errs = append(errs, errors.New("timeout must be positive"))
	}
	if c.RatePerSecond < 0 {
		errs = append(errs, errors.New("rate_per_second must not be negative"))
	}
	return errors.Join(errs...)
}

// Server is the configuration of the reference backend.
type Server struct {
	Addr            string        `yaml:"addr"             env:"SERVER_ADDR"             env-default:":8080"`
	Storage         string        `yaml:"storage"          env:"STORAGE"                 env-default:"memory"`
	DSN             string        `yaml:"dsn"              env:"DATABASE_DSN"`
	JWTKey          string        `yaml:"jwt_key"          env:"JWT_KEY"`
	AccessTTL       time.Duration `yaml:"access_ttl"       env:"ACCESS_TTL"              env-default:"15m"`
	Realm           string        `yaml:"realm"            env:"REALM"                   env-default:"catalog"`
	ClientID        string        `yaml:"client_id"        env:"CLIENT_ID"               env-default:"shelf-cli"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"5s"`
	LoginWindow     time.Duration `yaml:"login_window"     env:"LOGIN_WINDOW"            env-default:"15m"`
	LoginMaxFails   int           `yaml:"login_max_fails"  env:"LOGIN_MAX_FAILS"         env-default:"5"`
	LoginBlockFor   time.Duration `yaml:"login_block_for"  env:"LOGIN_BLOCK_FOR"         env-default:"15m"`
	SeedAdmin       string        `yaml:"seed_admin"       env:"SEED_ADMIN"` // "user:password", created on start when set
	Log             LogConfig     `yaml:"log"`
}

// Validate checks value ranges.
func (s *Server) Validate() error {
	var errs []error
	if s.JWTKey == "" {
		errs = append(errs, errors.New("jwt_key is required"))
	}
	switch s.Storage {
	case "memory":
	case "postgres":
		if s.DSN == "" {
			errs = append(errs, errors.New("dsn is required for postgres storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage %q: want memory or postgres", s.Storage))
	}
	if s.AccessTTL <= 0 {
		errs = append(errs, errors.New("access_ttl must be positive"))
	}
	if s.LoginMaxFails <= 0 {
		errs = append(errs, errors.New("login_max_fails must be positive"))
	}
	return errors.Join(errs...)
}

type validator interface{ Validate() error }

// LoadClient reads the client configuration.
func LoadClient(path string) (*Client, error) {
	var c Client
	if err := load(path, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadServer reads the server configuration.
func LoadServer(path string) (*Server, error) {
	var s Server
	if err := load(path, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// load reads path (or $BOOKSHELF_CONFIG) when given, otherwise ENV and defaults only.
// Priority: ENV > YAML > defaults.
func load(path string, cfg validator) error {
	if path == "" {
		path = os.Getenv(PathEnv)
	}
	if path != "" {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return fmt.Errorf("config: read env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: validate: %w", err)
	}
	return nil
}

func checkURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s: %q is not an http(s) URL", field, raw)
	}
	return nil
}
