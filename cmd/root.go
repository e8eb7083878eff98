package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/labpool/metapool/pool"
)

var (
	logLevel   string // Log verbosity level
	configPath string // Policy YAML; falls back to $METAPOOL_CONFIG
	envFile    string // dotenv file consulted before flags are resolved

	// bundle is the validated policy configuration, loaded before any
	// subcommand runs.
	bundle *pool.PolicyBundle
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "metapool",
	Short: "Library pooling calculator for liquid-handler picklists",
	Long: "metapool converts plate readings into per-well transfer volumes " +
		"(equal-molar, equal-volume, min-volume, DNA normalization, read-count " +
		"normalization) and writes liquid-handler picklists.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		if err := loadEnv(envFile); err != nil {
			logrus.Fatalf("Failed to load %s: %v", envFile, err)
		}
		b, err := loadBundle(resolveConfigPath(configPath))
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		bundle = b
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Policy YAML file (default $"+configEnvVar+")")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file read at startup; missing file is ignored")
}
