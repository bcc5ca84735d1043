package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/lvglgen/internal/config"
	"github.com/aristath/lvglgen/internal/database"
)

// InitializeDatabases opens the history database and applies its schema
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	historyDB, err := database.New(database.Config{
		Path:    cfg.HistoryDBPath(),
		Profile: database.ProfileStandard,
		Name:    "history",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize history database: %w", err)
	}

	if err := historyDB.Migrate(); err != nil {
		historyDB.Close()
		return nil, fmt.Errorf("failed to migrate history database: %w", err)
	}
	container.HistoryDB = historyDB

	log.Debug().Str("path", historyDB.Path()).Msg("History database ready")
	return container, nil
}
