// internal/config/config.go
//
// Server and puzzle configuration.
// Sources, lowest precedence first:
//   1. Defaults.
//   2. An optional YAML file (RINGS_CONFIG or --config).
//   3. Environment variables (a .env file is loaded by main via godotenv).
//
// The result is validated with go-playground/validator before use.

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/robalobadob/rings/internal/grid"
	"github.com/robalobadob/rings/internal/scheduler"
)

// Solver configures the solver gateway and the built-in solver endpoint.
type Solver struct {
	// URL of a remote solver service; empty means solve in-process.
	URL      string        `yaml:"url" validate:"omitempty,url"`
	MaxMoves int           `yaml:"maxMoves" validate:"min=0,max=6"`
	Timeout  time.Duration `yaml:"timeout" validate:"gt=0"`
	// RPS and Burst rate-limit POST /solver/solve.
	RPS   float64 `yaml:"rps" validate:"gt=0"`
	Burst int     `yaml:"burst" validate:"min=1"`
}

// Daily configures the daily puzzle.
type Daily struct {
	Salt    string `yaml:"salt" validate:"required"`
	Markers int    `yaml:"markers" validate:"min=1"`
}

// Config is the full server configuration.
type Config struct {
	Port          string           `yaml:"port" validate:"required,numeric"`
	LogLevel      string           `yaml:"logLevel" validate:"oneof=trace debug info warn error fatal panic disabled"`
	DBPath        string           `yaml:"dbPath" validate:"required"`
	JWTSecret     string           `yaml:"-" validate:"required"`
	JWTExpiry     time.Duration    `yaml:"jwtExpiry" validate:"gt=0"`
	CookieName    string           `yaml:"cookieName" validate:"required"`
	Production    bool             `yaml:"production"`
	ClientOrigin  string           `yaml:"clientOrigin" validate:"required"`
	Dims          grid.Dims        `yaml:"dims"`
	FrameInterval time.Duration    `yaml:"frameInterval" validate:"gt=0"`
	Speeds        scheduler.Speeds `yaml:"speeds"`
	SessionTTL    time.Duration    `yaml:"sessionTTL" validate:"gt=0"`
	Solver        Solver           `yaml:"solver"`
	Daily         Daily            `yaml:"daily"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:          "5175",
		LogLevel:      "info",
		DBPath:        "./data/rings.db",
		JWTSecret:     "dev_secret_change_me",
		JWTExpiry:     14 * 24 * time.Hour,
		CookieName:    "rings_token",
		ClientOrigin:  "http://localhost:5173",
		Dims:          grid.Dims{Rings: 4, Angles: 12},
		FrameInterval: time.Second / 60,
		Speeds:        scheduler.DefaultSpeeds(),
		SessionTTL:    2 * time.Hour,
		Solver: Solver{
			MaxMoves: 3,
			Timeout:  10 * time.Second,
			RPS:      2,
			Burst:    4,
		},
		Daily: Daily{Salt: "local_dev_salt", Markers: 6},
	}
}

var validate = validator.New()

// Load builds the configuration from defaults, the YAML file at path (if
// not empty) and the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("RINGS_CONFIG")
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks field constraints and the puzzle shape.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := c.Dims.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Port = getEnv("PORT", c.Port)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.DBPath = getEnv("DB_PATH", c.DBPath)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.ClientOrigin = getEnv("CLIENT_ORIGIN", c.ClientOrigin)
	c.CookieName = getEnv("COOKIE_NAME", c.CookieName)
	c.Solver.URL = getEnv("SOLVER_URL", c.Solver.URL)
	if v := os.Getenv("NODE_ENV"); v != "" {
		c.Production = v == "production"
	}
	c.Daily.Salt = getEnv("DAILY_SALT", c.Daily.Salt)

	ints := map[string]*int{
		"RINGS":            &c.Dims.Rings,
		"ANGLES":           &c.Dims.Angles,
		"SOLVER_MAX_MOVES": &c.Solver.MaxMoves,
		"SOLVER_BURST":     &c.Solver.Burst,
		"DAILY_MARKERS":    &c.Daily.Markers,
	}
	if v := os.Getenv("JWT_EXPIRES_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("JWT_EXPIRES_DAYS: %w", err)
		}
		c.JWTExpiry = time.Duration(n) * 24 * time.Hour
	}
	for k, p := range ints {
		if v := os.Getenv(k); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
			*p = n
		}
	}

	durations := map[string]*time.Duration{
		"FRAME_INTERVAL": &c.FrameInterval,
		"SOLVER_TIMEOUT": &c.Solver.Timeout,
		"SESSION_TTL":    &c.SessionTTL,
	}
	for k, p := range durations {
		if v := os.Getenv(k); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
			*p = d
		}
	}

	if v := os.Getenv("SOLVER_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("SOLVER_RPS: %w", err)
		}
		c.Solver.RPS = f
	}
	return nil
}

// getEnv returns the value of k or def if unset/empty.
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
