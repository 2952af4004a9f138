package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/chatrelay/internal/config"
	"github.com/zulandar/chatrelay/internal/db"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBMigrateCmd())
	return cmd
}

func newDBMigrateCmd() *cobra.Command {
	var configPath, envFile string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the relay tables",
		Long:  "Migrates the messages and rate-limit counter tables on the configured sqlite or mysql database.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBMigrate(cmd, configPath, envFile)
		},
	}

	addConfigFlags(cmd, &configPath, &envFile)
	return cmd
}

func runDBMigrate(cmd *cobra.Command, configPath, envFile string) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(cmd, configPath, envFile)
	if err != nil {
		return err
	}
	if cfg.Database.Driver == config.DriverBadger {
		fmt.Fprintln(out, "Badger store needs no migration")
		return nil
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close(gormDB)

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables on %s\n", len(db.AllModels()), cfg.Database.Driver)
	return nil
}
