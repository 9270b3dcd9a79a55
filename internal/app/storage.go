package app

import (
	"context"
	"fmt"

	"github.com/qj0r9j0vc2/chat-relay/internal/infrastructure/persistence/memory"
	"github.com/qj0r9j0vc2/chat-relay/internal/infrastructure/persistence/mysql"
	"github.com/qj0r9j0vc2/chat-relay/internal/infrastructure/persistence/sqlite"
)

func (app *Application) initializeStorage() error {
	switch app.config.Storage.Type {
	case "mysql":
		db, err := mysql.NewDB(&app.config.Storage.MySQL)
		if err != nil {
			return fmt.Errorf("mysql init: %w", err)
		}
		if err := db.Migrate(context.Background()); err != nil {
			db.Close()
			return fmt.Errorf("mysql migration: %w", err)
		}

		app.store = mysql.NewDedupStore(db)
		app.dbPinger = db
		app.dbCloser = db

		app.logger.Get().Info("MySQL storage initialized",
			"host", app.config.Storage.MySQL.Host,
			"database", app.config.Storage.MySQL.Database,
			"pool_max_open", app.config.Storage.MySQL.Pool.MaxOpenConns,
		)

	case "sqlite":
		db, err := sqlite.NewDB(app.config.Storage.SQLite.Path)
		if err != nil {
			return fmt.Errorf("sqlite init: %w", err)
		}
		if err := db.Migrate(context.Background()); err != nil {
			db.Close()
			return fmt.Errorf("sqlite migration: %w", err)
		}

		app.store = sqlite.NewDedupStore(db)
		app.dbPinger = db
		app.dbCloser = db

		app.logger.Get().Info("SQLite storage initialized",
			"path", app.config.Storage.SQLite.Path,
		)

	case "memory", "":
		app.store = memory.NewDedupStore()

		app.logger.Get().Info("in-memory storage initialized")

	default:
		return fmt.Errorf("unknown storage type: %s", app.config.Storage.Type)
	}

	return nil
}
