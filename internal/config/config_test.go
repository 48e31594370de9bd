package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Dev.Port != DefaultDevPort || cfg.Dev.Host != DefaultDevHost {
		t.Errorf("unexpected dev defaults: %+v", cfg.Dev)
	}
	if cfg.Storage.Bucket != DefaultStorageBucket {
		t.Errorf("unexpected bucket default: %q", cfg.Storage.Bucket)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	data := `{
		"platformUrl": "https://proj.example.co",
		"anonKey": "anon",
		"dev": {"port": 9999}
	}`
	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PlatformURL != "https://proj.example.co" {
		t.Errorf("platformUrl not loaded: %q", cfg.PlatformURL)
	}
	if cfg.Dev.Port != 9999 {
		t.Errorf("dev.port not loaded: %d", cfg.Dev.Port)
	}
	// Fields absent from the file keep their defaults.
	if cfg.Dev.Host != DefaultDevHost {
		t.Errorf("dev.host lost its default: %q", cfg.Dev.Host)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ATELIER_PLATFORM_URL", "https://env.example.co")
	t.Setenv("ATELIER_ANON_KEY", "envkey")

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PlatformURL != "https://env.example.co" || cfg.AnonKey != "envkey" {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation failure without platformUrl")
	}

	cfg.PlatformURL = "https://proj.example.co"
	cfg.AnonKey = "anon"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}

	cfg.Dev.Port = -1
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation failure for bad port")
	}
}

func TestLoadMalformed(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("{nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Error("expected parse error")
	}
}
