// Package config loads opinionwatch settings from defaults, an optional YAML
// config file, .env files, the environment and command-line flags.
//
// Keys are flat so the original environment names work unchanged:
// EMAIL_FROM, EMAIL_TO, EMAIL_PASSWORD, SMTP_SERVER and SMTP_PORT.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/seckatie/opinionwatch/internal/core"
	"github.com/seckatie/opinionwatch/internal/core/db"
	"github.com/spf13/viper"
)

// Config keys.
const (
	KeyEmailFrom     = "email_from"
	KeyEmailTo       = "email_to"
	KeyEmailPassword = "email_password"
	KeySMTPServer    = "smtp_server"
	KeySMTPPort      = "smtp_port"
	KeySourceURL     = "source_url"
	KeyStore         = "store"
	KeyStateFile     = "state_file"
	KeyDownloadDir   = "download_dir"
	KeyChromePath    = "chrome_path"
	KeyHeadful       = "headful"
	KeySettleDelay   = "settle_delay"
	KeyRenderTimeout = "render_timeout"
	KeyFetchTimeout  = "fetch_timeout"
	KeySMTPTimeout   = "smtp_timeout"
	KeyRenderer      = "renderer"
)

// Renderer kinds.
const (
	RendererChrome = "chrome"
	RendererStatic = "static"
)

// ErrInvalidConfig is returned when a loaded configuration is unusable.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the full set of settings for a check run.
type Config struct {
	EmailFrom     string        `mapstructure:"email_from"`
	EmailTo       string        `mapstructure:"email_to"`
	EmailPassword string        `mapstructure:"email_password"`
	SMTPServer    string        `mapstructure:"smtp_server"`
	SMTPPort      int           `mapstructure:"smtp_port"`
	SourceURL     string        `mapstructure:"source_url"`
	Store         string        `mapstructure:"store"`
	StateFile     string        `mapstructure:"state_file"`
	DownloadDir   string        `mapstructure:"download_dir"`
	ChromePath    string        `mapstructure:"chrome_path"`
	Headful       bool          `mapstructure:"headful"`
	SettleDelay   time.Duration `mapstructure:"settle_delay"`
	RenderTimeout time.Duration `mapstructure:"render_timeout"`
	FetchTimeout  time.Duration `mapstructure:"fetch_timeout"`
	SMTPTimeout   time.Duration `mapstructure:"smtp_timeout"`
	// Renderer is "chrome" for pages filled in by script, or "static" to
	// read the served HTML without a browser.
	Renderer      string        `mapstructure:"renderer"`
}

// New returns a viper instance with defaults set and environment lookup
// enabled.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.AutomaticEnv()
	return v
}

// SetDefaults registers the documented default for every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyEmailFrom, "")
	v.SetDefault(KeyEmailTo, "")
	v.SetDefault(KeyEmailPassword, "")
	v.SetDefault(KeySMTPServer, "smtp.gmail.com")
	v.SetDefault(KeySMTPPort, 587)
	v.SetDefault(KeySourceURL, core.DefaultSourceURL)
	v.SetDefault(KeyStore, db.StoreJSON)
	v.SetDefault(KeyStateFile, core.DefaultStateFile)
	v.SetDefault(KeyDownloadDir, core.DefaultDownloadDir)
	v.SetDefault(KeyChromePath, "")
	v.SetDefault(KeyHeadful, false)
	v.SetDefault(KeySettleDelay, core.DefaultSettleDelay)
	v.SetDefault(KeyRenderTimeout, core.DefaultRenderTimeout)
	v.SetDefault(KeyFetchTimeout, core.DefaultFetchTimeout)
	v.SetDefault(KeySMTPTimeout, core.DefaultSMTPTimeout)
	v.SetDefault(KeyRenderer, RendererChrome)
}

// ReadConfigFile reads cfgFile, or looks for opinionwatch.yaml in the
// working directory and ~/.config/opinionwatch when cfgFile is empty.
// A missing default file is not an error; a missing explicit file is.
func ReadConfigFile(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("opinionwatch")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "opinionwatch"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// LoadEnvFiles loads envFile when given, otherwise .env.local then .env.
// Variables already present in the environment are never overwritten, and
// missing default files are ignored.
func LoadEnvFiles(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}

	for _, name := range []string{".env.local", ".env"} {
		if err := godotenv.Load(name); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", name, err)
		}
	}
	return nil
}

// Load decodes v into a Config and validates it.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings that would otherwise fail deep inside a run.
// Missing email credentials are allowed: the run still scrapes and the
// notification failure leaves the opinions unrecorded.
func (c Config) Validate() error {
	if err := db.ValidateOpinionURL(c.SourceURL); err != nil {
		return fmt.Errorf("%w: source_url: %v", ErrInvalidConfig, err)
	}
	if c.SMTPServer == "" {
		return fmt.Errorf("%w: smtp_server is empty", ErrInvalidConfig)
	}
	if c.SMTPPort < 1 || c.SMTPPort > 65535 {
		return fmt.Errorf("%w: smtp_port %d out of range", ErrInvalidConfig, c.SMTPPort)
	}
	switch c.Store {
	case db.StoreJSON, db.StoreSQLite:
	default:
		return fmt.Errorf("%w: store must be %q or %q, got %q", ErrInvalidConfig, db.StoreJSON, db.StoreSQLite, c.Store)
	}
	switch c.Renderer {
	case RendererChrome, RendererStatic:
	default:
		return fmt.Errorf("%w: renderer must be %q or %q, got %q", ErrInvalidConfig, RendererChrome, RendererStatic, c.Renderer)
	}
	if c.StateFile == "" {
		return fmt.Errorf("%w: state_file is empty", ErrInvalidConfig)
	}
	if c.DownloadDir == "" {
		return fmt.Errorf("%w: download_dir is empty", ErrInvalidConfig)
	}
	if c.SettleDelay < 0 || c.RenderTimeout < 0 || c.FetchTimeout < 0 || c.SMTPTimeout < 0 {
		return fmt.Errorf("%w: durations must not be negative", ErrInvalidConfig)
	}
	return nil
}

// ChromeOptions returns the browser settings for the page renderer.
func (c Config) ChromeOptions() core.ChromeOptions {
	return core.ChromeOptions{
		ChromePath:  c.ChromePath,
		Headless:    !c.Headful,
		Timeout:     c.RenderTimeout,
		SettleDelay: c.SettleDelay,
	}
}

// NewRenderer returns the page renderer selected by c.Renderer.
func (c Config) NewRenderer() core.Renderer {
	if c.Renderer == RendererStatic {
		return core.NewStaticRenderer(c.RenderTimeout)
	}
	return core.NewChromeRenderer(c.ChromeOptions())
}

// MailOptions returns the SMTP settings for the notifier.
func (c Config) MailOptions() core.MailOptions {
	return core.MailOptions{
		From:     c.EmailFrom,
		To:       c.EmailTo,
		Password: c.EmailPassword,
		Server:   c.SMTPServer,
		Port:     c.SMTPPort,
		Timeout:  c.SMTPTimeout,
	}
}
