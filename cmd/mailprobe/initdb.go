package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/optimode/mailprobe/directory"
)

type initdbFlags struct {
	config string
	db     string
}

func init() {
	f := new(initdbFlags)
	initdbCmd := &cobra.Command{
		Use:   "initdb [flags]",
		Short: "Create the directory schema and seed well known providers.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInitdb(f)
		},
		DisableFlagsInUseLine: true,
		SilenceUsage:          true,
	}
	fs := initdbCmd.Flags()
	fs.StringVarP(&f.config, "config", "c", "", "config file")
	fs.StringVar(&f.db, "db", "", "directory DSN (postgres DSN or sqlite path)")
	rootCmd.AddCommand(initdbCmd)
}

func runInitdb(f *initdbFlags) error {
	cfg, err := loadConfig(f.config)
	if err != nil {
		return err
	}
	if f.db != "" {
		cfg.DB = f.db
	}
	if cfg.DB == "" {
		return errors.New("no directory DSN configured, use --db or a config file")
	}

	db, err := openDB(cfg.DB)
	if err != nil {
		return err
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()

	if err := directory.Migrate(db); err != nil {
		return err
	}
	if err := directory.Seed(db); err != nil {
		return err
	}
	fmt.Println("directory ready: schema migrated, providers seeded")
	return nil
}
