// Package config loads rankcast settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	DB       string `env:"DB" envDefault:"rankcast.db"`
	Mode     string `env:"MODE" envDefault:"memory"`
	APIBase  string `env:"API_BASE" envDefault:"https://osu.ppy.sh/api/v2"`
	TokenURL string `env:"TOKEN_URL" envDefault:"https://osu.ppy.sh/oauth/token"`
	// ClientID and ClientSecret enable client-credentials auth. AccessToken
	// is used as a static bearer token when they are empty.
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	AccessToken  string `env:"ACCESS_TOKEN"`
	RulesFile    string `env:"RULES_FILE"`

	PollInterval      time.Duration `env:"POLL_INTERVAL" envDefault:"5m"`
	BurstInterval     time.Duration `env:"BURST_INTERVAL" envDefault:"5s"`
	BurstHorizon      time.Duration `env:"BURST_HORIZON" envDefault:"10m"`
	BurstBase         time.Duration `env:"BURST_BASE" envDefault:"8m"`
	BurstPerItem      time.Duration `env:"BURST_PER_ITEM" envDefault:"2m"`
	BurstMax          time.Duration `env:"BURST_MAX" envDefault:"12m"`
	IssueRefreshEvery time.Duration `env:"ISSUE_REFRESH_EVERY" envDefault:"1h"`
	CheckpointEvery   time.Duration `env:"CHECKPOINT_EVERY" envDefault:"12h"`
	Retention         time.Duration `env:"RETENTION" envDefault:"168h"`

	EventPageSize    int           `env:"EVENT_PAGE_SIZE" envDefault:"5"`
	CallsBeforePause int           `env:"CALLS_BEFORE_PAUSE" envDefault:"30"`
	CallPause        time.Duration `env:"CALL_PAUSE" envDefault:"60s"`
	RequestInterval  time.Duration `env:"REQUEST_INTERVAL" envDefault:"1s"`

	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat    string `env:"LOG_FORMAT"`
	OTelEndpoint string `env:"OTEL_ENDPOINT"`
}

const envPrefix = "RANKCAST_"

// Load parses the RANKCAST_* environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.DB == "" {
		errs = append(errs, errors.New("DB must be set"))
	}
	if c.Mode != "memory" && c.Mode != "stateless" {
		errs = append(errs, fmt.Errorf("MODE %q must be memory or stateless", c.Mode))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("POLL_INTERVAL must be positive"))
	}
	if c.EventPageSize <= 0 {
		errs = append(errs, errors.New("EVENT_PAGE_SIZE must be positive"))
	}
	if c.BurstMax < c.BurstBase {
		errs = append(errs, errors.New("BURST_MAX must not be below BURST_BASE"))
	}
	if (c.ClientID == "") != (c.ClientSecret == "") {
		errs = append(errs, errors.New("CLIENT_ID and CLIENT_SECRET must be set together"))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT %q must be text or json", c.LogFormat))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	return l, nil
}
