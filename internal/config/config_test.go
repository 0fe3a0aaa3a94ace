package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/seckatie/opinionwatch/internal/core"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"EMAIL_FROM", "EMAIL_TO", "EMAIL_PASSWORD", "SMTP_SERVER", "SMTP_PORT"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := Load(New())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"smtp server", cfg.SMTPServer, "smtp.gmail.com"},
		{"smtp port", cfg.SMTPPort, 587},
		{"source url", cfg.SourceURL, core.DefaultSourceURL},
		{"store", cfg.Store, "json"},
		{"state file", cfg.StateFile, "seen_opinions.json"},
		{"download dir", cfg.DownloadDir, "downloads"},
		{"settle delay", cfg.SettleDelay, 5 * time.Second},
		{"fetch timeout", cfg.FetchTimeout, 30 * time.Second},
		{"headful", cfg.Headful, false},
		{"renderer", cfg.Renderer, "chrome"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("EMAIL_FROM", "watcher@example.com")
	t.Setenv("EMAIL_TO", "clerk@example.com")
	t.Setenv("EMAIL_PASSWORD", "app-password")
	t.Setenv("SMTP_SERVER", "mail.example.com")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("FETCH_TIMEOUT", "10s")

	cfg, err := Load(New())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.EmailFrom != "watcher@example.com" || cfg.EmailTo != "clerk@example.com" {
		t.Errorf("unexpected addresses: %q -> %q", cfg.EmailFrom, cfg.EmailTo)
	}
	if cfg.EmailPassword != "app-password" {
		t.Errorf("EmailPassword = %q", cfg.EmailPassword)
	}
	if cfg.SMTPServer != "mail.example.com" || cfg.SMTPPort != 2525 {
		t.Errorf("SMTP = %s:%d", cfg.SMTPServer, cfg.SMTPPort)
	}
	if cfg.FetchTimeout != 10*time.Second {
		t.Errorf("FetchTimeout = %v", cfg.FetchTimeout)
	}

	mail := cfg.MailOptions()
	if mail.From != cfg.EmailFrom || mail.Port != 2525 || mail.Server != "mail.example.com" {
		t.Errorf("MailOptions() = %+v", mail)
	}
}

func TestReadConfigFile(t *testing.T) {
	t.Run("explicit file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "opinionwatch.yaml")
		content := "store: sqlite\nstate_file: seen.db\nsettle_delay: 2s\nheadful: true\n"
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}

		v := New()
		if err := ReadConfigFile(v, path); err != nil {
			t.Fatalf("ReadConfigFile failed: %v", err)
		}
		cfg, err := Load(v)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.Store != "sqlite" || cfg.StateFile != "seen.db" {
			t.Errorf("store = %s at %s", cfg.Store, cfg.StateFile)
		}
		if cfg.SettleDelay != 2*time.Second {
			t.Errorf("SettleDelay = %v", cfg.SettleDelay)
		}
		if cfg.ChromeOptions().Headless {
			t.Error("headful config should disable headless mode")
		}
	})

	t.Run("missing explicit file is an error", func(t *testing.T) {
		v := New()
		if err := ReadConfigFile(v, filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Error("expected error for missing explicit config file")
		}
	})

	t.Run("missing default file is ignored", func(t *testing.T) {
		wd, err := os.Getwd()
		if err != nil {
			t.Fatal(err)
		}
		if err := os.Chdir(t.TempDir()); err != nil {
			t.Fatal(err)
		}
		defer os.Chdir(wd)
		t.Setenv("HOME", t.TempDir())

		if err := ReadConfigFile(New(), ""); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})
}

func TestLoadEnvFiles(t *testing.T) {
	t.Run("explicit file", func(t *testing.T) {
		os.Unsetenv("OPINIONWATCH_TEST_VALUE")
		path := filepath.Join(t.TempDir(), "test.env")
		if err := os.WriteFile(path, []byte("OPINIONWATCH_TEST_VALUE=from-file\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { os.Unsetenv("OPINIONWATCH_TEST_VALUE") })

		if err := LoadEnvFiles(path); err != nil {
			t.Fatalf("LoadEnvFiles failed: %v", err)
		}
		if got := os.Getenv("OPINIONWATCH_TEST_VALUE"); got != "from-file" {
			t.Errorf("OPINIONWATCH_TEST_VALUE = %q", got)
		}
	})

	t.Run("does not override environment", func(t *testing.T) {
		t.Setenv("OPINIONWATCH_TEST_KEEP", "from-env")
		path := filepath.Join(t.TempDir(), "test.env")
		if err := os.WriteFile(path, []byte("OPINIONWATCH_TEST_KEEP=from-file\n"), 0o644); err != nil {
			t.Fatal(err)
		}

		if err := LoadEnvFiles(path); err != nil {
			t.Fatalf("LoadEnvFiles failed: %v", err)
		}
		if got := os.Getenv("OPINIONWATCH_TEST_KEEP"); got != "from-env" {
			t.Errorf("OPINIONWATCH_TEST_KEEP = %q, want from-env", got)
		}
	})

	t.Run("missing explicit file is an error", func(t *testing.T) {
		if err := LoadEnvFiles(filepath.Join(t.TempDir(), "missing.env")); err == nil {
			t.Error("expected error")
		}
	})
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			SMTPServer:  "smtp.gmail.com",
			SMTPPort:    587,
			SourceURL:   core.DefaultSourceURL,
			Store:       "json",
			StateFile:   "seen_opinions.json",
			DownloadDir: "downloads",
			Renderer:    "chrome",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"sqlite store", func(c *Config) { c.Store = "sqlite" }, false},
		{"missing credentials allowed", func(c *Config) { c.EmailFrom, c.EmailTo = "", "" }, false},
		{"bad source url", func(c *Config) { c.SourceURL = "courts.delaware.gov" }, true},
		{"empty smtp server", func(c *Config) { c.SMTPServer = "" }, true},
		{"port zero", func(c *Config) { c.SMTPPort = 0 }, true},
		{"port too large", func(c *Config) { c.SMTPPort = 70000 }, true},
		{"unknown store", func(c *Config) { c.Store = "redis" }, true},
		{"static renderer", func(c *Config) { c.Renderer = "static" }, false},
		{"unknown renderer", func(c *Config) { c.Renderer = "firefox" }, true},
		{"empty state file", func(c *Config) { c.StateFile = "" }, true},
		{"empty download dir", func(c *Config) { c.DownloadDir = "" }, true},
		{"negative timeout", func(c *Config) { c.FetchTimeout = -time.Second }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestNewRenderer(t *testing.T) {
	cfg := Config{Renderer: RendererStatic, RenderTimeout: 5 * time.Second}
	if _, ok := cfg.NewRenderer().(*core.StaticRenderer); !ok {
		t.Errorf("expected *core.StaticRenderer, got %T", cfg.NewRenderer())
	}

	cfg.Renderer = RendererChrome
	r, ok := cfg.NewRenderer().(*core.ChromeRenderer)
	if !ok {
		t.Fatalf("expected *core.ChromeRenderer, got %T", cfg.NewRenderer())
	}
	if !r.Options.Headless {
		t.Error("expected headless Chrome by default")
	}
}
