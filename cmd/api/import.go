package main

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/octobees/dealflow-crm/internal/config"
	"github.com/octobees/dealflow-crm/internal/database"
	"github.com/octobees/dealflow-crm/internal/service"
)

type importOptions struct {
	file   string
	source string
	userID string
}

func newImportCmd(cfg *config.Config) *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import companies from a CSV or XLSX file",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := service.ParseImportFormat(opts.file)
			if err != nil {
				return err
			}

			var userID *uuid.UUID
			if opts.userID != "" {
				id, err := uuid.Parse(opts.userID)
				if err != nil {
					return eris.Wrap(err, "invalid --user")
				}
				userID = &id
			}

			f, err := os.Open(filepath.Clean(opts.file))
			if err != nil {
				return eris.Wrap(err, "open import file")
			}
			defer f.Close()

			ctx := cmd.Context()
			pool, err := database.Connect(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			companiesService, _ := buildServices(pool, cfg)
			summary, err := companiesService.ImportCompanies(ctx, format, f, opts.source, userID)
			zap.L().Info("import finished",
				zap.String("file", opts.file),
				zap.Int("created", summary.Created),
				zap.Int("updated", summary.Updated),
				zap.Int("skipped", summary.Skipped),
				zap.Int("total", summary.Total),
			)
			return err
		},
	}

	cmd.Flags().StringVar(&opts.file, "file", "", "CSV or XLSX file with a nombre column (required)")
	cmd.Flags().StringVar(&opts.source, "fuente", "", "Provenance label stored on the companies (default importacion)")
	cmd.Flags().StringVar(&opts.userID, "user", "", "UUID recorded as the author in the audit log")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}
