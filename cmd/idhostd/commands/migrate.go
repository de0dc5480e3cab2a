package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/idhost/internal/config"
	"github.com/marmos91/idhost/internal/logger"
	"github.com/marmos91/idhost/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Apply pending schema migrations to the configured profile store
database (SQLite or PostgreSQL). store.New runs GORM's AutoMigrate, so
this command's only job is to open the store and report the result.`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	logger.Info("running database migrations", "type", cfg.Database.Type)

	st, err := store.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	defer func() { _ = st.Close() }()

	fmt.Printf("Migrations completed successfully (database type: %s)\n", cfg.Database.Type)
	return nil
}
