// Package cmd wires the CLI: flag and config handling plus the serve entry
// point.
package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ard14n/AJETE/internal/config"
	"github.com/ard14n/AJETE/internal/observability"
)

var (
	cfgFile string
	v       = viper.New()
)

var rootCmd = &cobra.Command{
	Use:   "ajete",
	Short: "Autonomous journey agent for the web",
	Long: "AJETE drives a real browser through a website the way a person would: it looks at the\n" +
		"page, thinks aloud, moves a visible cursor, and leaves a replayable trace of the journey.",
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() error {
	defer observability.Sync()
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return err
		}
		var logCfg config.LoggerConfig
		if err := v.UnmarshalKey("logger", &logCfg); err != nil {
			return fmt.Errorf("failed to read logger config: %w", err)
		}
		observability.InitializeLogger(logCfg)
		return nil
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ajete.yaml in . or $HOME/.ajete)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
}

func initConfig() error {
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("ajete")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.ajete")
	}

	v.SetEnvPrefix("AJETE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	if lvl, _ := rootCmd.PersistentFlags().GetString("log-level"); lvl != "" {
		v.Set("logger.level", lvl)
	}
	return nil
}
