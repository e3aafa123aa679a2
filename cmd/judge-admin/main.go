// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Command judge-admin is the operator CLI for tasks the HTTP API
// deliberately refuses: bootstrapping master-capable api keys and running
// schema migrations out of band from judge-coordinatord's own startup path.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmoiron/sqlx"

	"github.com/easyctf/judge-coordinator/internal/idgen"
	"github.com/easyctf/judge-coordinator/internal/model"
	"github.com/easyctf/judge-coordinator/internal/store/migrations"
	"github.com/easyctf/judge-coordinator/internal/store/postgres"
	"github.com/easyctf/judge-coordinator/pkg/config"
)

var (
	// Version is set at build time.
	Version = "dev"

	rootCmd = &cobra.Command{
		Use:     "judge-admin",
		Short:   "Operator CLI for the judge coordinator",
		Long:    `judge-admin performs tasks the coordinator's own HTTP API won't: issuing master api keys and applying schema migrations.`,
		Version: Version,
	}
)

func init() {
	rootCmd.AddCommand(apikeyCmd)
	rootCmd.AddCommand(migrateCmd)
}

// openDB loads process configuration and opens the database the way
// judge-coordinatord does, without starting any of the HTTP/event surface.
// It returns the raw sqlx connection alongside the store built on top of
// it, since migrations operate on the former and everything else on the
// latter.
func openDB(ctx context.Context) (*sqlx.DB, *postgres.Store, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	dsn := cfg.DatabaseURI
	if cfg.TestDatabaseURI != "" {
		dsn = cfg.TestDatabaseURI
	}

	db, err := postgres.Open(ctx, dsn)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, postgres.New(db), func() { db.Close() }, nil
}

var (
	apikeyName   string
	apikeyJury   bool
	apikeyReader bool
	apikeyMaster bool
)

var apikeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Manage api keys",
}

// apikeyIssueCmd bypasses internal/engine's IssueAPIKey entirely: that
// method never sets PermMaster, by design, so master keys can only ever
// come from here.
var apikeyIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Mint a new api key, optionally with master capability",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(apikeyName) > model.MaxAPIKeyNameLength {
			return fmt.Errorf("name exceeds %d characters", model.MaxAPIKeyNameLength)
		}
		if !apikeyJury && !apikeyReader && !apikeyMaster {
			return fmt.Errorf("at least one of --jury, --reader, --master is required")
		}

		token, err := idgen.HexString(model.APIKeyLength)
		if err != nil {
			return fmt.Errorf("generate key: %w", err)
		}

		key := &model.APIKey{
			Key:        token,
			PermJury:   apikeyJury,
			PermReader: apikeyReader,
			PermMaster: apikeyMaster,
		}
		if apikeyName != "" {
			key.Name = &apikeyName
		}

		ctx := cmd.Context()
		_, st, closeDB, err := openDB(ctx)
		if err != nil {
			return err
		}
		defer closeDB()

		if err := st.APIKeys().Create(ctx, key); err != nil {
			return fmt.Errorf("create api key: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "id=%d key=%s jury=%t reader=%t master=%t\n",
			key.ID, key.Key, key.PermJury, key.PermReader, key.PermMaster)
		return nil
	},
}

func init() {
	apikeyIssueCmd.Flags().StringVar(&apikeyName, "name", "", "display name (max 16 characters)")
	apikeyIssueCmd.Flags().BoolVar(&apikeyJury, "jury", false, "grant jury capability")
	apikeyIssueCmd.Flags().BoolVar(&apikeyReader, "reader", false, "grant reader capability")
	apikeyIssueCmd.Flags().BoolVar(&apikeyMaster, "master", false, "grant master capability (api_key endpoint cannot do this)")
	apikeyCmd.AddCommand(apikeyIssueCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage schema migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, _, closeDB, err := openDB(ctx)
		if err != nil {
			return err
		}
		defer closeDB()
		return migrations.Up(db.DB)
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied/pending migration status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, _, closeDB, err := openDB(ctx)
		if err != nil {
			return err
		}
		defer closeDB()
		return migrations.Status(db.DB)
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "judge-admin:", err)
		os.Exit(1)
	}
}
