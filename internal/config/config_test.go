package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	if cfg.Storage.Driver != "sqlite" {
		t.Errorf("Storage.Driver = %q, want sqlite", cfg.Storage.Driver)
	}
	if cfg.Search.StemmingLanguage != "english" {
		t.Errorf("Search.StemmingLanguage = %q, want english", cfg.Search.StemmingLanguage)
	}
	if cfg.Storage.KeyPrefix != "haystack:" {
		t.Errorf("Storage.KeyPrefix = %q, want haystack:", cfg.Storage.KeyPrefix)
	}
	if cfg.Index.PKField != "id" {
		t.Errorf("Index.PKField = %q, want id", cfg.Index.PKField)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		var cfg Config
		cfg.HTTP.Port = 8080
		cfg.Storage.Driver = "sqlite"
		cfg.Storage.Path = "/tmp/index.db"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad port", func(c *Config) { c.HTTP.Port = 0 }, "http.port"},
		{"sqlite without path", func(c *Config) { c.Storage.Path = "" }, "storage.path"},
		{"redis without addrs", func(c *Config) { c.Storage.Driver = "redis" }, "storage.addrs"},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "bolt" }, "storage.driver"},
		{"unknown field type", func(c *Config) {
			c.Index.Fields = []FieldConfig{{Name: "x", Type: "decimal"}}
		}, "unknown type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("HAYSTACK_TEST_PATH", "/data/idx.db")

	got := string(expandEnvVars([]byte("path: ${HAYSTACK_TEST_PATH}")))
	if got != "path: /data/idx.db" {
		t.Errorf("expanded = %q", got)
	}

	got = string(expandEnvVars([]byte("lang: ${HAYSTACK_UNSET_VAR:-english}")))
	if got != "lang: english" {
		t.Errorf("expanded with default = %q", got)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "config"), 0o755); err != nil {
		t.Fatal(err)
	}
	yaml := `
http:
  port: 9090
storage:
  driver: sqlite
  path: ${HAYSTACK_TEST_DB:-/tmp/test.db}
index:
  fields:
    - name: text
      type: text
      document: true
    - name: status
      type: long
`
	if err := os.WriteFile(filepath.Join(dir, "config", "unit.yaml"), []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load("unit")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("HTTP.Port = %d, want 9090", cfg.HTTP.Port)
	}
	if cfg.Storage.Path != "/tmp/test.db" {
		t.Errorf("Storage.Path = %q", cfg.Storage.Path)
	}
	if len(cfg.Index.Fields) != 2 {
		t.Errorf("Index.Fields = %d, want 2", len(cfg.Index.Fields))
	}
}
