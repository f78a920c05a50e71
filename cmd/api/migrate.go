package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/octobees/dealflow-crm/internal/config"
	"github.com/octobees/dealflow-crm/internal/database"
	"github.com/octobees/dealflow-crm/internal/repository"
)

func newMigrateCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, err := database.Connect(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := database.MigratePool(ctx, pool); err != nil {
				return err
			}
			zap.L().Info("migrations applied")

			filled, err := repository.NewPGXCompaniesRepository(pool).BackfillNormalizedNames(ctx)
			if err != nil {
				return err
			}
			zap.L().Info("normalized company names backfilled", zap.Int("rows", filled))
			return nil
		},
	}
}
