package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/aqlanhadi/fatura/billing"
	"github.com/aqlanhadi/fatura/importer"
	"github.com/aqlanhadi/fatura/integrations/postgres"
	"github.com/aqlanhadi/fatura/integrations/sqlite"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// database is what the CLI needs from either store.
type database interface {
	importer.Store
	importer.Sink
	CreateAccount(ctx context.Context, name, bankCode string) (string, error)
	CreateCard(ctx context.Context, accountID, name string, cfg billing.CycleConfig) (string, error)
}

// openDatabase connects to the configured store and ensures its schema. The
// returned func releases it.
func openDatabase(ctx context.Context) (database, func(), error) {
	driver := viper.GetString("database.driver")
	url := viper.GetString("database.url")
	if url == "" {
		url = os.Getenv("DATABASE_URL")
	}

	log := logrus.WithField("driver", driver)

	switch driver {
	case "postgres", "postgresql":
		if url == "" {
			return nil, nil, fmt.Errorf("--db-url or DATABASE_URL environment variable is required")
		}
		log.Debug("connecting to database")
		db, err := postgres.Connect(ctx, url)
		if err != nil {
			return nil, nil, fmt.Errorf("database connection failed: %w", err)
		}
		if err := db.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("schema creation failed: %w", err)
		}
		return db, db.Close, nil

	case "sqlite", "":
		if url == "" {
			url = "fatura.db"
		}
		log.WithField("path", url).Debug("opening database")
		db, err := sqlite.Open(ctx, url)
		if err != nil {
			return nil, nil, err
		}
		return db, func() {
			if err := db.Close(); err != nil {
				logrus.WithError(err).Warn("closing database")
			}
		}, nil
	}
	return nil, nil, fmt.Errorf("unknown database driver %q", driver)
}
