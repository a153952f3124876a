package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_JSONDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-env")
	path := writeConfig(t, "config.json", `{"server": {"port": "8001"}}`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Server.Port != "8001" {
		t.Errorf("expected port 8001, got %q", cfg.Server.Port)
	}
	if cfg.Server.StaticDir != "" {
		t.Errorf("expected static files disabled by default, got %q", cfg.Server.StaticDir)
	}
	if cfg.Database.Driver != "sqlite" || cfg.DatabaseDSN() != "food_nutrition.db" {
		t.Errorf("unexpected database defaults %+v", cfg.Database)
	}
	if cfg.ML.Type != "local" || cfg.Storage.Type != "local" || cfg.Storage.Dir != "./images" {
		t.Errorf("unexpected defaults ml=%+v storage=%+v", cfg.ML, cfg.Storage)
	}
	if cfg.Lookup.TimeoutSeconds != 10 || cfg.Log.Level != "info" || cfg.Log.Format != "console" {
		t.Errorf("unexpected defaults lookup=%+v log=%+v", cfg.Lookup, cfg.Log)
	}
	if cfg.Auth.JWTSecret != "from-env" {
		t.Errorf("expected JWT secret from environment, got %q", cfg.Auth.JWTSecret)
	}
}

func TestLoadConfig_TOML(t *testing.T) {
	path := writeConfig(t, "config.toml", `
[server]
port = "9000"
debug = true
static_dir = "./web/dist"

[database]
driver = "postgres"
dsn = "postgres://smartplate@localhost/smartplate"

[storage]
type = "s3"
bucket = "fridge-images"
region = "eu-west-1"

[enrichment]
max_concurrency = 4
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Server.Port != "9000" || !cfg.Server.Debug || cfg.Server.StaticDir != "./web/dist" {
		t.Errorf("unexpected server config %+v", cfg.Server)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected debug log level when server.debug is set, got %q", cfg.Log.Level)
	}
	if cfg.DatabaseDSN() != "postgres://smartplate@localhost/smartplate" {
		t.Errorf("unexpected dsn %q", cfg.DatabaseDSN())
	}
	if cfg.Storage.Bucket != "fridge-images" || cfg.Storage.Region != "eu-west-1" {
		t.Errorf("unexpected storage config %+v", cfg.Storage)
	}
	if cfg.Enrichment.MaxConcurrency != 4 {
		t.Errorf("expected max concurrency 4, got %d", cfg.Enrichment.MaxConcurrency)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("S3_BUCKET", "")

	tests := []struct {
		name    string
		file    string
		content string
		want    string
	}{
		{"missing port", "c.json", `{}`, "port"},
		{"bad json", "c.json", `{"server":`, "parse"},
		{"postgres without dsn", "c.json", `{"server": {"port": "1"}, "database": {"driver": "postgres"}}`, "dsn"},
		{"s3 without bucket", "c.json", `{"server": {"port": "1"}, "storage": {"type": "s3"}}`, "bucket"},
		{"unknown storage", "c.json", `{"server": {"port": "1"}, "storage": {"type": "ftp"}}`, "storage type"},
		{"negative concurrency", "c.json", `{"server": {"port": "1"}, "enrichment": {"max_concurrency": -1}}`, "max_concurrency"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.file, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadConfig_PortFromEnv(t *testing.T) {
	t.Setenv("PORT", "7777")
	cfg, err := LoadConfig(writeConfig(t, "c.json", `{}`))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Server.Port != "7777" {
		t.Errorf("expected port from environment, got %q", cfg.Server.Port)
	}
}

func TestGetConfigPath_Env(t *testing.T) {
	t.Setenv("SMARTPLATE_CONFIG", "/etc/smartplate/config.toml")
	if got := GetConfigPath(); got != "/etc/smartplate/config.toml" {
		t.Errorf("expected path from environment, got %q", got)
	}
}
