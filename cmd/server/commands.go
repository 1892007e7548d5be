package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/cribnosh/verify-api/internal/model"
	"github.com/cribnosh/verify-api/internal/service"
	"github.com/cribnosh/verify-api/migrations"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "manage the database schema",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, flush, err := bootstrap()
			if err != nil {
				return err
			}
			defer flush()
			return migrations.Run(cfg.DB.URL())
		},
	}

	var steps int
	downCmd := &cobra.Command{
		Use:   "down",
		Short: "revert the most recent migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, flush, err := bootstrap()
			if err != nil {
				return err
			}
			defer flush()
			return migrations.Rollback(cfg.DB.URL(), steps)
		},
	}
	downCmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to revert")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "print the applied schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, flush, err := bootstrap()
			if err != nil {
				return err
			}
			defer flush()
			version, dirty, err := migrations.Version(cfg.DB.URL())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", version, dirty)
			return nil
		},
	}

	cmd.AddCommand(upCmd, downCmd, versionCmd)
	return cmd
}

func newCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "delete expired codes once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, flush, err := bootstrap()
			if err != nil {
				return err
			}
			defer flush()

			st, err := openStores(cfg)
			if err != nil {
				return err
			}
			defer st.close()

			otpService := service.NewOTPService(st.otp, service.NewWaitlistService(st.waitlist), nil, nil, cfg.OTP)
			res, err := otpService.CleanupExpiredOTPs(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted=%d issuances_pruned=%d\n", res.Deleted, res.IssuancesPruned)
			return nil
		},
	}
}

// demo signups for local development
var seedEntries = []model.WaitlistUpsert{
	{Identifier: model.Identifier{Kind: model.IdentifierEmail, Value: "amara@cribnosh.local"}, Name: "Amara Okafor", Location: "London", Source: "seed"},
	{Identifier: model.Identifier{Kind: model.IdentifierEmail, Value: "jonas@cribnosh.local"}, Name: "Jonas Berg", Location: "Manchester", Source: "seed"},
	{Identifier: model.Identifier{Kind: model.IdentifierEmail, Value: "priya@cribnosh.local"}, Name: "Priya Shah", Location: "Leeds", ReferralCode: "FRIEND10", Source: "seed"},
	{Identifier: model.Identifier{Kind: model.IdentifierPhone, Value: "+447700900123"}, Name: "Sam Reid", Location: "Bristol", Source: "seed"},
	{Identifier: model.Identifier{Kind: model.IdentifierPhone, Value: "+447700900456"}, Location: "Glasgow", Source: "seed"},
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "insert demo waitlist entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, flush, err := bootstrap()
			if err != nil {
				return err
			}
			defer flush()
			if cfg.App.IsProduction() {
				return errors.New("refusing to seed a production database")
			}

			st, err := openStores(cfg)
			if err != nil {
				return err
			}
			defer st.close()
			return seedWaitlist(cmd.Context(), service.NewWaitlistService(st.waitlist))
		},
	}
}

func seedWaitlist(ctx context.Context, waitlist *service.WaitlistService) error {
	zap.L().Info("🌱 Seeding waitlist...", zap.Int("entries", len(seedEntries)))
	for _, entry := range seedEntries {
		res, err := waitlist.Upsert(ctx, entry)
		if err != nil {
			return fmt.Errorf("seed %s: %w", entry.Identifier, err)
		}
		if res.IsExisting {
			zap.L().Info("🔄 already present", zap.String("identifier", entry.Identifier.String()))
			continue
		}
		zap.L().Info("✅ created", zap.String("identifier", entry.Identifier.String()), zap.String("waitlist_id", res.WaitlistID.String()))
	}
	zap.L().Info("🎉 Seeding completed!")
	return nil
}

func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "print a bcrypt hash for ADMIN_PASSWORD_HASH",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password := os.Getenv("ADMIN_PASSWORD")
			if len(args) == 1 {
				password = args[0]
			}
			password = strings.TrimSpace(password)
			if len(password) < 6 {
				return fmt.Errorf("password must be at least 6 characters (pass it as an argument or ADMIN_PASSWORD)")
			}
			hash, err := service.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
