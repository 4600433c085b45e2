package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Rajchodisetti/mmfs-scalper/internal/config"
	"github.com/Rajchodisetti/mmfs-scalper/internal/observ"
)

// Set via -ldflags "-X main.version=..."
var version = "dev"

var (
	configPath  string
	profileName string
	envFile     string
	logLevel    string
	echoEvents  bool

	cfg config.Root

	rootCmd = &cobra.Command{
		Use:               "mmfs",
		Short:             "Five-minute opening scalper for NSE index instruments",
		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
	}
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "YAML config file (overrides --profile)")
	pf.StringVarP(&profileName, "profile", "p", "default", "built-in profile when no config file is given")
	pf.StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment is applied")
	pf.StringVar(&logLevel, "log-level", "", "debug | info | warn | error (overrides config)")
	pf.BoolVar(&echoEvents, "echo-events", false, "also write every engine event to the log")

	rootCmd.AddCommand(runCmd, simulateCmd, validateCmd, profilesCmd)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	if err := config.LoadDotEnv(envFile); err != nil {
		return err
	}

	var err error
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.Profile(profileName)
	}
	if err != nil {
		return err
	}
	if err := config.ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return fmt.Errorf("invalid environment: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := observ.SetLevel(cfg.Log.Level); err != nil {
		return err
	}
	observ.SetVersion(version)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
