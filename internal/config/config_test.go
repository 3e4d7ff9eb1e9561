package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadGatewayDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("BACKEND_URL", "")
	t.Setenv("VIRTUAL_SIM_BASE_URL", "")

	cfg, err := LoadGateway()
	if err != nil {
		t.Fatalf("LoadGateway: %v", err)
	}
	if cfg.Port != "5801" {
		t.Fatalf("Port = %q, want 5801", cfg.Port)
	}
	if cfg.BackendURL != "http://localhost:5802" {
		t.Fatalf("BackendURL = %q", cfg.BackendURL)
	}
	if cfg.VirtualSIM.MaxAttempts != 3 || cfg.VirtualSIM.BaseDelay != time.Second || cfg.VirtualSIM.Timeout != 10*time.Second {
		t.Fatalf("VirtualSIM = %+v", cfg.VirtualSIM)
	}
}

func TestLoadGatewayFromEnv(t *testing.T) {
	t.Setenv("BACKEND_URL", "https://api.example.com")
	t.Setenv("VIRTUAL_SIM_BASE_URL", "https://sim.example.com/api")
	t.Setenv("VIRTUAL_SIM_API_KEY", "k")
	t.Setenv("VIRTUAL_SIM_MAX_ATTEMPTS", "5")
	t.Setenv("VIRTUAL_SIM_BASE_DELAY", "250ms")

	cfg, err := LoadGateway()
	if err != nil {
		t.Fatalf("LoadGateway: %v", err)
	}
	if cfg.VirtualSIM.APIKey != "k" || cfg.VirtualSIM.MaxAttempts != 5 || cfg.VirtualSIM.BaseDelay != 250*time.Millisecond {
		t.Fatalf("VirtualSIM = %+v", cfg.VirtualSIM)
	}
}

func TestGatewayValidateCollectsErrors(t *testing.T) {
	t.Parallel()

	cfg := Gateway{
		Port:           "",
		BackendURL:     "not a url",
		BackendTimeout: time.Second,
		VirtualSIM: VirtualSIM{
			BaseURL:     "https://sim.example.com",
			MaxAttempts: 0,
			Timeout:     time.Second,
		},
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"PORT", "BACKEND_URL", "VIRTUAL_SIM_API_KEY", "VIRTUAL_SIM_MAX_ATTEMPTS"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err.Error(), want)
		}
	}
}

func TestBackendValidate(t *testing.T) {
	t.Parallel()

	cfg := Backend{GatewayURL: "http://localhost:5801"}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "OPENAI_API_KEY") || !strings.Contains(err.Error(), "SESSION_TOKEN_SECRET") {
		t.Fatalf("err = %v", err)
	}

	cfg.OpenAIAPIKey = "sk"
	cfg.TokenSecret = "s"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}
