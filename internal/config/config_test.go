package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFromEnv(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name: "complete",
			env:  map[string]string{EnvToken: "123:abc", EnvDatabase: "./bot.db", EnvAdminID: "555"},
		},
		{
			name:    "all missing",
			env:     map[string]string{},
			wantErr: "BOT_TOKEN, DATABASE_PATH, ADMIN_ID",
		},
		{
			name:    "token missing",
			env:     map[string]string{EnvDatabase: "./bot.db", EnvAdminID: "555"},
			wantErr: "BOT_TOKEN",
		},
		{
			name:    "zero admin id counts as missing",
			env:     map[string]string{EnvToken: "123:abc", EnvDatabase: "./bot.db", EnvAdminID: "0"},
			wantErr: "ADMIN_ID",
		},
		{
			name:    "non-numeric admin id",
			env:     map[string]string{EnvToken: "123:abc", EnvDatabase: "./bot.db", EnvAdminID: "bob"},
			wantErr: "not an integer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{EnvToken, EnvDatabase, EnvAdminID} {
				t.Setenv(k, tt.env[k])
			}

			cfg, err := FromEnv()
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("FromEnv() err = %v, want it to mention %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("FromEnv(): %v", err)
			}
			if cfg.AdminID != 555 || cfg.Token != "123:abc" {
				t.Fatalf("cfg = %+v", cfg)
			}
		})
	}
}

func TestManagerLoadMissingFileUsesDefaults(t *testing.T) {
	t.Parallel()
	m := NewManager(filepath.Join(t.TempDir(), "absent.yaml"))

	tun, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tun.Broadcast.Workers != 4 || !tun.Logging.ConsoleEnabled() {
		t.Fatalf("defaults = %+v", tun)
	}
	if m.Get() != tun {
		t.Fatal("Load did not commit the snapshot")
	}
}

func TestManagerParseYAML(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "tunables.yaml")
	body := "logging:\n  level: debug\nbroadcast:\n  workers: 8\n  rate_per_sec: 50\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	m := NewManager(path)
	tun, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tun.Logging.Level != "debug" || tun.Broadcast.Workers != 8 || tun.Broadcast.RatePerSec != 50 {
		t.Fatalf("tunables = %+v", tun)
	}
}

func TestManagerParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "tunables.yaml")
	if err := os.WriteFile(path, []byte("nonsense: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("Parse accepted a file with unknown fields")
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	d, err := ParseDurationField("x", "", 10*time.Second)
	if err != nil || d != 10*time.Second {
		t.Fatalf("empty: d = %v err = %v", d, err)
	}
	d, err = ParseDurationField("x", "1m", 0)
	if err != nil || d != time.Minute {
		t.Fatalf("1m: d = %v err = %v", d, err)
	}
	if _, err = ParseDurationField("x", "soon", 0); err == nil {
		t.Fatal("accepted junk duration")
	}
	if _, err = ParseDurationField("x", "-5s", 0); err == nil {
		t.Fatal("accepted negative duration")
	}
}
