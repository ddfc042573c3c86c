package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const minimalYAML = `
credentials:
  username: curator
  secret: hunter2
twitch:
  client_id: abc
  client_secret: def
channels:
  - somechannel
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_defaults(t *testing.T) {
	path := writeConfig(t, minimalYAML)

	cfg, resolved, notes, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if resolved != path {
		t.Errorf("expected resolved path %s, got %s", path, resolved)
	}
	if len(notes) != 0 {
		t.Errorf("expected no notes, got %v", notes)
	}
	if cfg.DefaultPriority != 50 || cfg.StabilityBonus != 30 || cfg.DiversityBonus != 25 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.SlotCount != 4 {
		t.Errorf("expected slot count 4, got %d", cfg.SlotCount)
	}
	if cfg.QuadStream.BaseURL != "https://quadstream.tv" {
		t.Errorf("unexpected quadstream base url: %s", cfg.QuadStream.BaseURL)
	}
	if cfg.Webhook.Timeout != 10 {
		t.Errorf("expected webhook timeout default 10, got %d", cfg.Webhook.Timeout)
	}
}

func TestLoad_missing_file(t *testing.T) {
	if _, _, _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoad_missing_credentials(t *testing.T) {
	path := writeConfig(t, `
twitch:
  client_id: abc
  client_secret: def
channels: [x]
`)
	_, _, _, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "credentials") {
		t.Fatalf("expected credentials error, got %v", err)
	}
}

func TestLoad_credentials_file(t *testing.T) {
	credPath := filepath.Join(t.TempDir(), "creds")
	if err := os.WriteFile(credPath, []byte("fileuser:filesecret\n"), 0o600); err != nil {
		t.Fatalf("write creds: %v", err)
	}

	path := writeConfig(t, `
credentials:
  file: `+credPath+`
twitch:
  client_id: abc
  client_secret: def
channels: [x]
`)
	cfg, _, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Credentials.Username != "fileuser" || cfg.Credentials.Secret != "filesecret" {
		t.Errorf("credentials file not resolved: %+v", cfg.Credentials)
	}
}

func TestLoad_credentials_file_secret_only(t *testing.T) {
	credPath := filepath.Join(t.TempDir(), "creds")
	if err := os.WriteFile(credPath, []byte("just-a-secret\n"), 0o600); err != nil {
		t.Fatalf("write creds: %v", err)
	}

	path := writeConfig(t, `
credentials:
  username: inlineuser
  file: `+credPath+`
twitch:
  client_id: abc
  client_secret: def
channels: [x]
`)
	cfg, _, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Credentials.Username != "inlineuser" || cfg.Credentials.Secret != "just-a-secret" {
		t.Errorf("secret-only file not resolved: %+v", cfg.Credentials)
	}
}

func TestLoad_stability_bonus_oscillation_guard(t *testing.T) {
	path := writeConfig(t, minimalYAML+`
stability_bonus: 10
diversity_bonus: 25
`)
	cfg, _, notes, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StabilityBonus != 26 {
		t.Errorf("expected stability raised to 26, got %d", cfg.StabilityBonus)
	}
	if len(notes) != 1 {
		t.Errorf("expected one normalization note, got %v", notes)
	}
}

func TestLoad_rejects_wrong_slot_count(t *testing.T) {
	path := writeConfig(t, minimalYAML+"slot_count: 6\n")
	if _, _, _, err := Load(path); err == nil {
		t.Fatal("expected error for slot_count != 4")
	}
}

func TestLoad_rejects_non_positive_bonus(t *testing.T) {
	path := writeConfig(t, minimalYAML+"diversity_bonus: 0\n")
	if _, _, _, err := Load(path); err == nil {
		t.Fatal("expected error for non-positive diversity_bonus")
	}
}

func TestLoad_rejects_empty_channels(t *testing.T) {
	path := writeConfig(t, `
credentials: {username: u, secret: s}
twitch: {client_id: a, client_secret: b}
channels: []
`)
	if _, _, _, err := Load(path); err == nil {
		t.Fatal("expected error for empty channels")
	}
}

func TestLoad_rejects_webhook_enabled_without_url(t *testing.T) {
	path := writeConfig(t, minimalYAML+`
webhook:
  enabled: true
`)
	if _, _, _, err := Load(path); err == nil {
		t.Fatal("expected error for webhook enabled without url")
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("QL_TEST_KEY", "value")
	if got := GetEnv("QL_TEST_KEY", "fallback"); got != "value" {
		t.Errorf("expected value, got %s", got)
	}
	if got := GetEnv("QL_TEST_MISSING", "fallback"); got != "fallback" {
		t.Errorf("expected fallback, got %s", got)
	}
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("QL_TEST_INT", "42")
	if got := GetEnvInt("QL_TEST_INT", 7); got != 42 {
		t.Errorf("expected 42, got %d", got)
	}
	t.Setenv("QL_TEST_INT", "not-a-number")
	if got := GetEnvInt("QL_TEST_INT", 7); got != 7 {
		t.Errorf("expected fallback 7, got %d", got)
	}
}
