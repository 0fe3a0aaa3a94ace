/*
Copyright © 2025 Katie Mulliken <katie@mulliken.net>
*/
package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/seckatie/opinionwatch/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// settings holds defaults, config file values, environment and bound flags.
var settings = config.New()

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "opinionwatch",
	Short: "Email newly published Court of Chancery opinions",
	Long: `opinionwatch checks the Delaware Court of Chancery opinions page for PDF
opinions it has not seen before, downloads them, and emails them with a
summary. Opinions are recorded as seen only after the email is sent, so a
failed delivery is retried on the next check.

Run it from cron for a single check per invocation, or use the watch
command to keep it running on a schedule. Email settings are read from
EMAIL_FROM, EMAIL_TO, EMAIL_PASSWORD, SMTP_SERVER and SMTP_PORT.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd, settings)
	},
	Run: func(cmd *cobra.Command, args []string) {
		if err := runCheck(cmd); err != nil {
			log.Fatalf("Check failed: %v", err)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Config file (default: ./opinionwatch.yaml or ~/.config/opinionwatch/opinionwatch.yaml)")
	flags.String("env-file", "", "Env file to load (default: .env.local and .env if present)")
	flags.StringP("state", "s", "seen_opinions.json", "Path to the seen-opinions state file")
	flags.String("store", "json", "Seen-set store backend: json or sqlite")
	flags.StringP("download-dir", "o", "downloads", "Directory downloaded PDFs are written to")
	flags.String("source-url", "", "Opinions page to check (default: Court of Chancery listing)")
	flags.String("chrome-path", "", "Path to Chrome/Chromium executable")
	flags.Bool("headful", false, "Run Chrome with a visible window (not headless)")
	flags.Duration("settle-delay", 0, "Wait after page load before reading links (default 5s)")
	flags.Duration("render-timeout", 0, "Deadline for loading the opinions page (default 60s)")
	flags.Duration("fetch-timeout", 0, "Per-document download timeout (default 30s)")
	flags.String("renderer", "chrome", "Page renderer: chrome (runs page scripts) or static (plain HTTP)")

	bindFlags(settings, flags, map[string]string{
		config.KeyStateFile:     "state",
		config.KeyStore:         "store",
		config.KeyDownloadDir:   "download-dir",
		config.KeySourceURL:     "source-url",
		config.KeyChromePath:    "chrome-path",
		config.KeyHeadful:       "headful",
		config.KeySettleDelay:   "settle-delay",
		config.KeyRenderTimeout: "render-timeout",
		config.KeyFetchTimeout:  "fetch-timeout",
		config.KeyRenderer:      "renderer",
	})
}

// bindFlags binds each config key to its flag. A bound flag only overrides
// the config file and environment when it was set on the command line.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			log.Fatalf("Failed to bind flag %s: %v", name, err)
		}
	}
}

func initConfig(cmd *cobra.Command, v *viper.Viper) error {
	envFile, err := cmd.Flags().GetString("env-file")
	if err != nil {
		return fmt.Errorf("failed to read --env-file: %w", err)
	}
	if err := config.LoadEnvFiles(envFile); err != nil {
		return err
	}

	cfgFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to read --config: %w", err)
	}
	if err := config.ReadConfigFile(v, cfgFile); err != nil {
		return err
	}
	if used := v.ConfigFileUsed(); used != "" {
		log.Printf("Using config file: %s", used)
	}
	return nil
}
