package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/milanbella/sa-oauth/auth"
	"github.com/milanbella/sa-oauth/db"
	"github.com/milanbella/sa-oauth/logger"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			sqlDB, err := db.New(cmd.Context(), cfg.Database)
			if err != nil {
				return fmt.Errorf("init db: %w", err)
			}
			defer func() {
				if err := sqlDB.Close(); err != nil {
					logger.LogErr(fmt.Errorf("close db: %w", err))
				}
			}()

			applied, err := db.Migrate(cmd.Context(), sqlDB, cfg.Database.Driver)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", applied)
			return err
		},
	}
}

func newHashSecretCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "hash-secret [secret]",
		Short: "Print the bcrypt hash of a client secret or password",
		Long: "Print the bcrypt hash to store in clients.client_secret_hash or user.password_hash.\n" +
			"The secret is read from the first line of stdin when not given as an argument.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			var secret string
			if len(args) == 1 {
				secret = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read secret from stdin: %w", err)
				}
				secret = strings.TrimRight(line, "\r\n")
			}
			if secret == "" {
				return errors.New("secret must not be empty")
			}

			hash, err := auth.NewBcryptHasher(cfg.Auth.BcryptCost).Hash(secret)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return err
		},
	}
}
