package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	os.Setenv("MYSQL_DSN", "user:pass@tcp(localhost:3306)/test")
	os.Setenv("JWT_SECRET", "test-secret")
	defer func() {
		os.Unsetenv("MYSQL_DSN")
		os.Unsetenv("JWT_SECRET")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.MySQL.DSN == "" {
		t.Error("MySQL DSN should not be empty")
	}

	if cfg.HTTPAddr != ":8080" {
		t.Errorf("Expected HTTPAddr :8080, got %s", cfg.HTTPAddr)
	}

	if !cfg.Sweeper.Enabled {
		t.Error("Sweeper should be enabled by default")
	}
}

func TestLoad_MissingMySQLDSN(t *testing.T) {
	os.Unsetenv("MYSQL_DSN")
	os.Setenv("JWT_SECRET", "test-secret")
	defer os.Unsetenv("JWT_SECRET")

	_, err := Load()
	if err == nil {
		t.Error("Expected error when MYSQL_DSN is missing")
	}
}

func TestLoad_MissingJWTSecret(t *testing.T) {
	os.Setenv("MYSQL_DSN", "user:pass@tcp(localhost:3306)/test")
	os.Unsetenv("JWT_SECRET")
	defer os.Unsetenv("MYSQL_DSN")

	_, err := Load()
	if err == nil {
		t.Error("Expected error when JWT_SECRET is missing")
	}
}

func TestLoadFromINI(t *testing.T) {
	iniContent := `[mysql]
dsn = ini:dsn@tcp(localhost:3306)/ini

[jwt]
secret = ini-secret

[http]
addr = :9191

[sweeper]
enabled = 0
interval_sec = 15
`
	iniPath := filepath.Join(t.TempDir(), "server.ini")
	if err := os.WriteFile(iniPath, []byte(iniContent), 0644); err != nil {
		t.Fatalf("failed to write INI file: %v", err)
	}

	os.Unsetenv("MYSQL_DSN")
	os.Unsetenv("JWT_SECRET")

	cfg, err := LoadFromINI(iniPath)
	if err != nil {
		t.Fatalf("LoadFromINI() failed: %v", err)
	}

	if cfg.MySQL.DSN != "ini:dsn@tcp(localhost:3306)/ini" {
		t.Errorf("Expected INI DSN, got %s", cfg.MySQL.DSN)
	}
	if cfg.HTTPAddr != ":9191" {
		t.Errorf("Expected HTTPAddr :9191, got %s", cfg.HTTPAddr)
	}
	if cfg.Sweeper.Enabled {
		t.Error("Sweeper should be disabled via INI")
	}
	if cfg.Sweeper.IntervalSec != 15 {
		t.Errorf("Expected sweeper interval 15, got %d", cfg.Sweeper.IntervalSec)
	}
}

func TestLoadFromINI_EnvOverride(t *testing.T) {
	iniContent := `[mysql]
dsn = ini:dsn@tcp(localhost:3306)/ini

[jwt]
secret = ini-secret
`
	iniPath := filepath.Join(t.TempDir(), "server.ini")
	if err := os.WriteFile(iniPath, []byte(iniContent), 0644); err != nil {
		t.Fatalf("failed to write INI file: %v", err)
	}

	os.Setenv("MYSQL_DSN", "env:dsn@tcp(localhost:3306)/env")
	defer os.Unsetenv("MYSQL_DSN")

	cfg, err := LoadFromINI(iniPath)
	if err != nil {
		t.Fatalf("LoadFromINI() failed: %v", err)
	}

	if cfg.MySQL.DSN != "env:dsn@tcp(localhost:3306)/env" {
		t.Errorf("Environment should override INI, got %s", cfg.MySQL.DSN)
	}
}
