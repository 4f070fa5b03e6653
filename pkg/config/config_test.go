package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type testConfig struct {
	Name  string `yaml:"name"`
	Port  int    `yaml:"port"`
	valid bool
}

func (c *testConfig) Validate() error {
	if c.Port <= 0 {
		return errors.New("port must be positive")
	}
	c.valid = true
	return nil
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadExpandsEnvAndKeepsDefaults(t *testing.T) {
	t.Setenv("CONFIG_TEST_NAME", "ledger")
	path := writeFile(t, "name: ${CONFIG_TEST_NAME}\n")

	cfg := testConfig{Port: 8080}
	if err := Load(path, &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "ledger" || cfg.Port != 8080 || !cfg.valid {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeFile(t, "name: x\nprot: 1\n")
	cfg := testConfig{Port: 1}
	err := Load(path, &cfg)
	if err == nil || !strings.Contains(err.Error(), "prot") {
		t.Errorf("err = %v, want unknown field error", err)
	}
}

func TestLoadRunsValidation(t *testing.T) {
	path := writeFile(t, "port: -1\n")
	var cfg testConfig
	if err := Load(path, &cfg); err == nil || !strings.Contains(err.Error(), "validation") {
		t.Errorf("err = %v, want validation error", err)
	}
}

func TestLoadWithDefaults(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	cfg := testConfig{Port: 1}
	if err := LoadWithDefaults(missing, false, &cfg); err != nil {
		t.Fatalf("optional missing file: %v", err)
	}
	if !cfg.valid {
		t.Error("defaults were not validated")
	}

	if err := LoadWithDefaults(missing, true, &cfg); err == nil {
		t.Error("required missing file should fail")
	}
}
