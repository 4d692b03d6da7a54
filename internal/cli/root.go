// Package cli defines the cobra command tree for realtyd.
package cli

import (
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tbourn/go-realty-backend/internal/config"
	"github.com/tbourn/go-realty-backend/internal/repo"
	"github.com/tbourn/go-realty-backend/internal/sysutil"
)

// Version is stamped at build time with -ldflags "-X ...cli.Version=".
var Version = "dev"

var (
	flagEnvFile string
	flagDB      string
)

// NewRootCmd creates the root cobra command with global flags.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "realtyd",
		Short:         "Real-estate listings backend",
		Long:          "Serves the listings API: moderation, deal closing with commissions, favorites, price-drop alerts and push notifications.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
	}

	root.PersistentFlags().StringVar(&flagEnvFile, "env-file", ".env", "dotenv file loaded before reading the environment (ignored when missing)")
	root.PersistentFlags().StringVar(&flagDB, "db", "", "SQLite path or Postgres DSN, overriding DB_PATH / DATABASE_URL")

	root.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
	)
	return root
}

// loadConfig reads the dotenv file, then the environment, and installs the
// global logger.
func loadConfig() (config.Config, error) {
	if flagEnvFile != "" {
		// Real environment variables win over the file.
		_ = godotenv.Load(flagEnvFile)
	}
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	sysutil.SetupLogger(nil, cfg.LogLevel, cfg.OTEL.ServiceName, cfg.LogPretty)
	return cfg, nil
}

// openDB opens the configured database. --db overrides the path or DSN of
// the selected driver.
func openDB(cfg config.Config) (*gorm.DB, error) {
	if cfg.DBDriver == "postgres" || cfg.DBDriver == "postgresql" {
		return repo.Open(cfg.DBDriver, "", sysutil.FirstNonEmpty(flagDB, cfg.DatabaseURL))
	}
	return repo.Open(cfg.DBDriver, sysutil.FirstNonEmpty(flagDB, cfg.DBPath), "")
}

// closeDB closes the pool, logging any error.
func closeDB(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn().Err(err).Msg("closing database")
	}
}
