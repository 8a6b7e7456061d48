package config

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// chdirTemp 切换到临时目录，避免读取开发机上的配置
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("HOME", dir)
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Type != "sqlite" || cfg.Database.DSN != "iafleet.db" {
		t.Errorf("database defaults: got %+v", cfg.Database)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("server.port: got %d, want 8080", cfg.Server.Port)
	}
	if cfg.Events.BufferSize != 256 {
		t.Errorf("events.buffer_size: got %d", cfg.Events.BufferSize)
	}
	if cfg.Source() != "" {
		t.Errorf("expected no source file, got %q", cfg.Source())
	}
}

func TestLoad_LocalFileAndEnv(t *testing.T) {
	dir := chdirTemp(t)

	local := "server:\n  port: 9001\nlog:\n  level: debug\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(local), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("IAFLEET_LOG_FORMAT", "console")
	t.Setenv("SECRET_KEY", "legacy-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9001 {
		t.Errorf("server.port: got %d, want 9001", cfg.Server.Port)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "console" {
		t.Errorf("log: got %+v", cfg.Log)
	}
	if cfg.Vault.SecretKey != "legacy-secret" {
		t.Errorf("vault.secret_key: got %q", cfg.Vault.SecretKey)
	}
	if filepath.Base(cfg.Source()) != "config.yaml" {
		t.Errorf("source: got %q", cfg.Source())
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := chdirTemp(t)

	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("IAFLEET_VAULT_SECRET_KEY=from-dotenv\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	// godotenv 写入进程环境，测试结束后清理
	t.Cleanup(func() { _ = os.Unsetenv("IAFLEET_VAULT_SECRET_KEY") })

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Vault.SecretKey != "from-dotenv" {
		t.Errorf("vault.secret_key: got %q", cfg.Vault.SecretKey)
	}
}

func TestLoad_DatabaseURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		wantType string
		wantDSN  string
	}{
		{"postgres", "postgres://u:p@localhost:5432/fleet", "postgres", "postgres://u:p@localhost:5432/fleet"},
		{"postgresql", "postgresql://localhost/fleet", "postgres", "postgresql://localhost/fleet"},
		{"sqlalchemy sqlite", "sqlite:///data/fleet.db", "sqlite", "data/fleet.db"},
		{"plain path", "other.db", "sqlite", "other.db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdirTemp(t)
			t.Setenv("DATABASE_URL", tt.url)

			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.Database.Type != tt.wantType || cfg.Database.DSN != tt.wantDSN {
				t.Errorf("got %s %q, want %s %q", cfg.Database.Type, cfg.Database.DSN, tt.wantType, tt.wantDSN)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected missing secret to fail validation")
	}

	cfg.Vault.SecretKey = "s3cret"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	cfg.Database.Type = "mysql"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected unsupported database type to fail validation")
	}
}

func TestBootstrap_WritesOnce(t *testing.T) {
	root := filepath.Join(t.TempDir(), ".iafleet")
	logger := zap.NewNop()

	if err := bootstrapAt(root, logger); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	path := filepath.Join(root, "config.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("default config is not valid YAML: %v", err)
	}
	if parsed.Server.Port != 8080 || parsed.Database.Type != "sqlite" {
		t.Errorf("unexpected rendered defaults: %+v", parsed)
	}

	// 用户修改后不会被覆盖
	if err := os.WriteFile(path, []byte("log:\n  level: warn\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := bootstrapAt(root, logger); err != nil {
		t.Fatalf("second bootstrap: %v", err)
	}
	again, _ := os.ReadFile(path)
	if string(again) != "log:\n  level: warn\n" {
		t.Errorf("bootstrap overwrote user edits: %q", again)
	}
}
