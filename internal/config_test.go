package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/starford/ledger/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestAuthConfig_NegativeMaxAge(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", SignatureMaxAge: -time.Second}
	if err := cfg.Validate(); err == nil {
		t.Fatal("negative signature max age should fail")
	}
}

func TestLedgerConfig_DefaultsWithinLimits(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Ledger.Validate(); err != nil {
		t.Fatalf("default ledger config should pass: %v", err)
	}

	cfg.Ledger.Limits.MaxDataLength = 100
	if err := cfg.Ledger.Validate(); err == nil {
		t.Fatal("defaults above limits should fail")
	}

	cfg = NewDefaultConfig()
	cfg.Ledger.Defaults.MaxRecords = 0
	if err := cfg.Ledger.Validate(); err == nil {
		t.Fatal("zero default capacity should fail")
	}
}

func TestLoadYAML(t *testing.T) {
	t.Setenv("LEDGER_TEST_TOKEN", "from-env")
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `app:
  log_level: debug
  http:
    port: 9090
storage:
  path: /tmp/regions
sqlite:
  path: /tmp/ledger.db
auth:
  mode: token
  token: ${LEDGER_TEST_TOKEN}
  signature_max_age: 2m
ledger:
  defaults:
    max_records: 10
    max_data_length: 20
  limits:
    max_records: 100
    max_data_length: 200
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.HTTP.Port != 9090 || cfg.Auth.Token != "from-env" || cfg.Auth.SignatureMaxAge != 2*time.Minute {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Ledger.Defaults.MaxRecords != 10 || cfg.Ledger.Limits.MaxDataLength != 200 {
		t.Errorf("ledger = %+v", cfg.Ledger)
	}
}
