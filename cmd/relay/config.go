package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/zulandar/chatrelay/internal/config"
)

const (
	defaultConfigPath = "relay.yaml"
	defaultEnvFile    = ".env"
)

// addConfigFlags registers --config and --env-file on cmd.
func addConfigFlags(cmd *cobra.Command, configPath, envFile *string) {
	cmd.Flags().StringVarP(configPath, "config", "c", defaultConfigPath, "path to relay config file")
	cmd.Flags().StringVar(envFile, "env-file", defaultEnvFile, "dotenv file with RELAY_* overrides")
}

// loadConfig reads the dotenv file, then the YAML config. The default paths
// may be absent; paths given explicitly must exist.
func loadConfig(cmd *cobra.Command, configPath, envFile string) (*config.Config, error) {
	if err := godotenv.Load(envFile); err != nil {
		if !errors.Is(err, fs.ErrNotExist) || cmd.Flags().Changed("env-file") {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		cfg, err := config.Parse(nil)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		return cfg, nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
