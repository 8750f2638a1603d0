package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tazhate/tasksync/internal/domain"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"DATABASE_PATH", "TIMEZONE", "POLL_SPEC", "CLIENT_ID", "HTTP_TIMEOUT", "TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID", "LOG_FILE", "SERVER_PORT", "API_USERNAME", "API_PASSWORD"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DatabasePath != "./data/tasksync.db" {
		t.Errorf("DatabasePath = %q", cfg.DatabasePath)
	}
	if cfg.Timezone != time.UTC {
		t.Errorf("Timezone = %v", cfg.Timezone)
	}
	if cfg.PollSpec != "*/5 * * * *" {
		t.Errorf("PollSpec = %q", cfg.PollSpec)
	}
	if cfg.ClientID != "TaskSync" || cfg.HTTPTimeout != 30*time.Second {
		t.Errorf("ClientID/HTTPTimeout = %q/%v", cfg.ClientID, cfg.HTTPTimeout)
	}
	if cfg.TelegramEnabled() {
		t.Error("telegram enabled without token")
	}
	if cfg.ServerPort != "8080" || cfg.APIUsername != "" {
		t.Errorf("ServerPort/APIUsername = %q/%q", cfg.ServerPort, cfg.APIUsername)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_PATH", "/tmp/x.db")
	t.Setenv("TIMEZONE", "Europe/Berlin")
	t.Setenv("POLL_SPEC", "*/1 * * * *")
	t.Setenv("HTTP_TIMEOUT", "5s")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "-100200")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Timezone.String() != "Europe/Berlin" || cfg.HTTPTimeout != 5*time.Second {
		t.Errorf("cfg = %+v", cfg)
	}
	if !cfg.TelegramEnabled() || cfg.TelegramChatID != -100200 {
		t.Errorf("telegram = %q/%d", cfg.TelegramToken, cfg.TelegramChatID)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := map[string]map[string]string{
		"bad timezone":     {"TIMEZONE": "Mars/Olympus"},
		"bad timeout":      {"HTTP_TIMEOUT": "soon"},
		"missing chat id":  {"TELEGRAM_BOT_TOKEN": "123:abc", "TELEGRAM_CHAT_ID": ""},
		"negative timeout": {"HTTP_TIMEOUT": "-1s"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "providers.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoadProviders(t *testing.T) {
	t.Setenv("TEST_CALDAV_PASSWORD", "s3cret")
	path := writeFile(t, `
providers:
  - id: work
    url: https://cal.example.com/dav/
    resource: tasks
    username: alice
    password: ${TEST_CALDAV_PASSWORD}
    category_filter: work
    transition: true
  - id: meetings
    enabled: false
    url: https://cal.example.com/dav/
    resource: Meetings
    component: vevent
    auth: Bearer
    bearer_token: tok
    write_back: true
`)

	providers, err := LoadProviders(path)
	if err != nil {
		t.Fatalf("LoadProviders: %v", err)
	}
	if len(providers) != 2 {
		t.Fatalf("providers = %d, want 2", len(providers))
	}

	work := providers[0]
	if !work.Enabled {
		t.Error("enabled must default to true")
	}
	if work.ComponentType != domain.ComponentTodo || work.AuthType != domain.AuthBasic {
		t.Errorf("work defaults = %s/%s", work.ComponentType, work.AuthType)
	}
	if work.Password != "s3cret" {
		t.Errorf("password not expanded: %q", work.Password)
	}
	if !work.TransitionEnabled || work.CategoryFilter != "work" {
		t.Errorf("work = %+v", work)
	}
	if err := work.Validate(); err != nil {
		t.Errorf("work invalid: %v", err)
	}

	meetings := providers[1]
	if meetings.Enabled {
		t.Error("explicit enabled: false ignored")
	}
	if meetings.ComponentType != domain.ComponentEvent || meetings.AuthType != domain.AuthBearer {
		t.Errorf("meetings = %s/%s", meetings.ComponentType, meetings.AuthType)
	}
	if !meetings.WriteBack || meetings.BearerToken != "tok" {
		t.Errorf("meetings = %+v", meetings)
	}
}

func TestLoadProvidersErrors(t *testing.T) {
	tests := map[string]string{
		"missing id":        "providers:\n  - url: https://x\n",
		"duplicate id":      "providers:\n  - id: a\n  - id: a\n",
		"unknown component": "providers:\n  - id: a\n    component: VJOURNAL\n",
		"unknown auth":      "providers:\n  - id: a\n    auth: digest\n",
		"not yaml":          "providers: [",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadProviders(writeFile(t, content)); err == nil {
				t.Error("expected error")
			}
		})
	}

	if _, err := LoadProviders(filepath.Join(t.TempDir(), "missing.yaml")); err == nil || !strings.Contains(err.Error(), "read providers") {
		t.Errorf("missing file err = %v", err)
	}
}
