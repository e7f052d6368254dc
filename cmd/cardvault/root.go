package main

import (
	"errors"
	"os"
	"strings"

	"github.com/jonanatree/cardvault/cardservice"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/exp/slog"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cardvault",
		Short: "Credit card registry with number generation and business-rule validation.",
		Long: `cardvault stores Visa, Mastercard and Amex cards per user behind a JWT
protected REST API. Every card passes the validation pipeline (uniqueness,
format, Luhn, expiration window, amounts, per-user ceilings, network prefix,
blacklist) before it is stored.`,
		SilenceUsage: true,
	}
	cmd.Version = version

	cmd.PersistentFlags().String("config", "", "config file (default ./cardvault.yaml)")
	cmd.PersistentFlags().String("db-type", "", "database type: mem, sqlite, postgres, mysql")
	cmd.PersistentFlags().String("db-dsn", "", "database connection string")
	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	cmd.AddCommand(
		newServeCmd(),
		newGenerateCmd(),
		newValidateCmd(),
		newMigrateCmd(),
		newConfigCmd(),
	)
	return cmd
}

// flagKeys maps CLI flags onto configuration keys.
var flagKeys = map[string]string{
	"db-type":          "db.type",
	"db-dsn":           "db.dsn",
	"http-addr":        "http_addr",
	"max-active":       "rules.max_active",
	"max-total":        "rules.max_total",
	"max-expiry-years": "rules.max_expiry_years",
}

// loadConfig resolves configuration from defaults, the config file,
// CARDVAULT_* environment variables and flags, in increasing precedence.
func loadConfig(cmd *cobra.Command) (*cardservice.Config, error) {
	v := viper.New()
	for key, value := range cardservice.Defaults() {
		v.SetDefault(key, value)
	}

	v.SetConfigName("cardvault")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		v.SetConfigFile(path)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	v.SetEnvPrefix("cardvault")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for flag, key := range flagKeys {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return nil, err
		}
	}

	cfg := &cardservice.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
