// Package config loads service configuration from the environment, with an
// optional .env file in the working directory.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
)

// Gateway configures the companion gateway server.
type Gateway struct {
	Port           string        `env:"PORT" envDefault:"5801"`
	AppURL         string        `env:"APP_URL" envDefault:"/"`
	BackendURL     string        `env:"BACKEND_URL" envDefault:"http://localhost:5802"`
	BackendTimeout time.Duration `env:"BACKEND_TIMEOUT" envDefault:"60s"`
	StateDBPath    string        `env:"STATE_DB_PATH"`
	TokenSecret    string        `env:"SESSION_TOKEN_SECRET"`
	CookieSecure   bool          `env:"COOKIE_SECURE" envDefault:"false"`

	VirtualSIM VirtualSIM `envPrefix:"VIRTUAL_SIM_"`
}

// VirtualSIM configures the virtual number provider.
type VirtualSIM struct {
	BaseURL     string        `env:"BASE_URL"`
	APIKey      string        `env:"API_KEY"`
	Timeout     time.Duration `env:"TIMEOUT" envDefault:"10s"`
	MaxAttempts int           `env:"MAX_ATTEMPTS" envDefault:"3"`
	BaseDelay   time.Duration `env:"BASE_DELAY" envDefault:"1s"`
}

// Backend configures the reference backend.
type Backend struct {
	Port         string        `env:"PORT" envDefault:"5802"`
	OpenAIAPIKey string        `env:"OPENAI_API_KEY"`
	ChatModel    string        `env:"CHAT_MODEL" envDefault:"gpt-4o"`
	GatewayURL   string        `env:"GATEWAY_URL" envDefault:"http://localhost:5801"`
	TokenSecret  string        `env:"SESSION_TOKEN_SECRET"`
	TokenTTL     time.Duration `env:"SESSION_TOKEN_TTL" envDefault:"720h"`
	ChatCost     int           `env:"CHAT_COST" envDefault:"1"`
	ImageCost    int           `env:"IMAGE_COST" envDefault:"10"`
}

// LoadGateway reads Gateway configuration.
func LoadGateway() (Gateway, error) {
	var cfg Gateway
	if err := parse(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// LoadBackend reads Backend configuration.
func LoadBackend() (Backend, error) {
	var cfg Backend
	if err := parse(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func parse(target any) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func (c Gateway) Validate() error {
	var result *multierror.Error
	if c.Port == "" {
		result = multierror.Append(result, errors.New("PORT is required"))
	}
	if err := validURL("BACKEND_URL", c.BackendURL); err != nil {
		result = multierror.Append(result, err)
	}
	if c.BackendTimeout <= 0 {
		result = multierror.Append(result, errors.New("BACKEND_TIMEOUT must be positive"))
	}
	if c.VirtualSIM.BaseURL != "" {
		if err := validURL("VIRTUAL_SIM_BASE_URL", c.VirtualSIM.BaseURL); err != nil {
			result = multierror.Append(result, err)
		}
		if c.VirtualSIM.APIKey == "" {
			result = multierror.Append(result, errors.New("VIRTUAL_SIM_API_KEY is required with VIRTUAL_SIM_BASE_URL"))
		}
	}
	if c.VirtualSIM.MaxAttempts < 1 {
		result = multierror.Append(result, errors.New("VIRTUAL_SIM_MAX_ATTEMPTS must be at least 1"))
	}
	if c.VirtualSIM.Timeout <= 0 {
		result = multierror.Append(result, errors.New("VIRTUAL_SIM_TIMEOUT must be positive"))
	}
	if c.VirtualSIM.BaseDelay < 0 {
		result = multierror.Append(result, errors.New("VIRTUAL_SIM_BASE_DELAY must not be negative"))
	}
	return result.ErrorOrNil()
}

func (c Backend) Validate() error {
	var result *multierror.Error
	if c.OpenAIAPIKey == "" {
		result = multierror.Append(result, errors.New("OPENAI_API_KEY is required"))
	}
	if c.TokenSecret == "" {
		result = multierror.Append(result, errors.New("SESSION_TOKEN_SECRET is required"))
	}
	if err := validURL("GATEWAY_URL", c.GatewayURL); err != nil {
		result = multierror.Append(result, err)
	}
	if c.ChatCost < 0 || c.ImageCost < 0 {
		result = multierror.Append(result, errors.New("CHAT_COST and IMAGE_COST must not be negative"))
	}
	return result.ErrorOrNil()
}

func validURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got %q", name, raw)
	}
	return nil
}
