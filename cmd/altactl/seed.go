package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/altamontana/booking-api/internal/config"
	"github.com/altamontana/booking-api/internal/database"
	"github.com/altamontana/booking-api/internal/middleware"
	"github.com/altamontana/booking-api/internal/model"
	"github.com/altamontana/booking-api/internal/repository"
	"github.com/altamontana/booking-api/internal/utils"
)

type userUpserter interface {
	Upsert(ctx context.Context, u model.User) error
}

func seedAdminCmd() *cobra.Command {
	var username, password, email string
	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create the admin user or reset its password",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := database.Open(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			if err := seedAdmin(ctx, repository.NewUserRepo(db), username, password, email, cfg.BcryptCost); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin %q saved\n", strings.TrimSpace(username))
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "admin", "Admin username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Admin password (8 to 72 bytes)")
	cmd.Flags().StringVarP(&email, "email", "e", "", "Recovery email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func seedAdmin(ctx context.Context, users userUpserter, username, password, email string, cost int) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return errors.New("username is required")
	}
	if err := utils.ValidatePassword(password); err != nil {
		return err
	}
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return users.Upsert(ctx, model.User{
		Username:      username,
		PasswordHash:  hash,
		RecoveryEmail: strings.TrimSpace(email),
		Role:          model.RoleAdmin,
	})
}

func purgeCacheCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge-cache",
		Short: "Drop every cached public GET response",
		RunE: func(cmd *cobra.Command, args []string) error {
			rdb, err := config.NewRedisClient()
			if err != nil {
				return err
			}
			defer rdb.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if err := middleware.PurgeCache(ctx, config.LoadCacheConfig(), rdb); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cache purged")
			return nil
		},
	}
}
