package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zulandar/planyard/internal/config"
	"github.com/zulandar/planyard/internal/db"
	"github.com/zulandar/planyard/internal/user"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	cmd.AddCommand(newDBMigrateCmd())
	return cmd
}

type dbInitOpts struct {
	adminUsername string
	adminEmail    string
	adminPassword string
}

func newDBInitCmd() *cobra.Command {
	var (
		configPath string
		opts       dbInitOpts
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the Planyard database",
		Long: `Creates the database if needed, migrates all tables and seeds the
bootstrap administrator. The administrator must change the password on
first login.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath, opts)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&opts.adminUsername, "admin-username", "admin", "bootstrap administrator username")
	cmd.Flags().StringVar(&opts.adminEmail, "admin-email", "admin@localhost", "bootstrap administrator email")
	cmd.Flags().StringVar(&opts.adminPassword, "admin-password", "", "bootstrap administrator password (prompted when omitted)")
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath string, opts dbInitOpts) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	fmt.Fprintf(out, "Loaded config from %s (driver %s)\n", configPath, cfg.Database.Driver)

	if err := db.CreateDatabase(cfg.Database); err != nil {
		return err
	}
	fmt.Fprintf(out, "Database %s ready\n", cfg.Database.Name)

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", cfg.Database.Name, err)
	}

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))

	password := opts.adminPassword
	if password == "" {
		password, err = readPassword(cmd, fmt.Sprintf("Password for %s: ", opts.adminUsername))
		if err != nil {
			return err
		}
	}
	hash, err := user.HashPassword(password)
	if err != nil {
		return err
	}
	created, err := db.SeedAdmin(gormDB, opts.adminUsername, opts.adminEmail, hash)
	if err != nil {
		return err
	}
	if created {
		fmt.Fprintf(out, "Seeded administrator %q\n", opts.adminUsername)
	} else {
		fmt.Fprintf(out, "Administrator %q already exists\n", opts.adminUsername)
	}

	fmt.Fprintln(out, "\nPlanyard database initialized successfully.")
	return nil
}

func newDBMigrateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate all tables to the current schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBMigrate(cmd, configPath)
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runDBMigrate(cmd *cobra.Command, configPath string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Migrated %d tables\n", len(db.AllModels()))
	return nil
}
