package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type envTestConfig struct {
	Port int    `env:"SHAREDCART_TEST_PORT" envDefault:"123"`
	Name string `env:"SHAREDCART_TEST_NAME" envDefault:"cart"`
}

func TestParseEnvDefaults(t *testing.T) {
	t.Setenv(DotEnvPathVar, filepath.Join(t.TempDir(), "missing.env"))
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 123 {
		t.Fatalf("expected default port 123, got %d", cfg.Port)
	}
}

func TestParseEnvError(t *testing.T) {
	t.Setenv(DotEnvPathVar, filepath.Join(t.TempDir(), "missing.env"))
	var cfg envTestConfig
	t.Setenv("SHAREDCART_TEST_PORT", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestParseEnvReadsDotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("SHAREDCART_TEST_NAME=from-file\n"), 0o600); err != nil {
		t.Fatalf("write dotenv: %v", err)
	}
	t.Setenv(DotEnvPathVar, path)
	// Register for cleanup so the value loaded from the file does not leak.
	t.Setenv("SHAREDCART_TEST_NAME", "")
	if err := os.Unsetenv("SHAREDCART_TEST_NAME"); err != nil {
		t.Fatalf("unset env: %v", err)
	}

	var cfg envTestConfig
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Name != "from-file" {
		t.Fatalf("name = %q, want %q", cfg.Name, "from-file")
	}
}

func TestParseEnvProcessEnvWinsOverDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("SHAREDCART_TEST_NAME=from-file\n"), 0o600); err != nil {
		t.Fatalf("write dotenv: %v", err)
	}
	t.Setenv(DotEnvPathVar, path)
	t.Setenv("SHAREDCART_TEST_NAME", "from-env")

	var cfg envTestConfig
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Name != "from-env" {
		t.Fatalf("name = %q, want %q", cfg.Name, "from-env")
	}
}
