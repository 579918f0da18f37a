// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the toolscout CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pdiddy/toolscout/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// creds holds the API keys resolved at startup.
var creds secrets.Credentials

// rootCmd is the base command for the toolscout CLI.
var rootCmd = &cobra.Command{
	Use:   "toolscout",
	Short: "Research developer tools and recommend one",
	Long: `toolscout answers developer-tools questions such as "mlflow alternatives"
or "datadog vs newrelic". It classifies the query, searches the web through
Firecrawl (falling back to Serper), researches each candidate tool, analyzes
it with a language model, and recommends one.

API keys are read from files in .secrets/ (firecrawl-api-key, serper-api-key,
openai-api-key) or from FIRECRAWL_API_KEY, SERPER_API_KEY and OPENAI_API_KEY,
which may be set in a .env file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("secrets-dir")
		envFile, _ := cmd.Flags().GetString("env-file")
		c, err := secrets.Resolve(dir, envFile)
		if err != nil {
			return err
		}
		creds = c
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./toolscout.yaml or ~/.config/toolscout/toolscout.yaml)")
	rootCmd.PersistentFlags().String("secrets-dir", ".secrets/", "directory of API key files")
	rootCmd.PersistentFlags().String("env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "development logging at debug level")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("toolscout")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "toolscout"))
		}
	}

	setDefaults()
	viper.SetEnvPrefix("TOOLSCOUT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newLogger builds the process logger. Logs go to stderr so stdout only
// carries command output.
func newLogger(cmd *cobra.Command, level string) (*zap.Logger, error) {
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		return zap.NewDevelopment()
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log_level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
