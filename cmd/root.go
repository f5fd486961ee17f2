package cmd

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"example.com/commerce/services/orders/config"
	"example.com/commerce/services/orders/models"
)

var (
	cfgPath string

	rootCmd = &cobra.Command{
		Use:   "orders-service",
		Short: "Orders Service",
		Long: `Orders Service for managing the order lifecycle.

Functions:
- Accept order commands over a REST HTTP server
- Record domain events in a transactional outbox
- Relay events to Azure Service Bus with per-order ordering
- Project events into a denormalized summary read model`,
	}
)

// Execute executes the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", ".", "directory to search for the config file")
}

// initDatabase opens the database connection, runs migrations and applies
// the pool settings.
func initDatabase(cfg config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DB.DSN), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	if err := models.SetupModels(db); err != nil {
		return nil, errors.Wrap(err, "failed to run migrations")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get underlying DB connection")
	}

	maxOpen := cfg.DB.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 50
	}
	maxIdle := cfg.DB.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 10
	}
	lifetime := cfg.DB.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = time.Hour
	}

	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(lifetime)

	return db, nil
}
