package repositories

import (
	"context"
	"fmt"

	"contacts-crm/config"
	"contacts-crm/internal/models"
	"contacts-crm/internal/utils"
)

// Fields matched by the free-text search.
var searchFields = []string{"azienda", "telefono", "indirizzo", "sito", "note"}

// Open connects the store selected by cfg.Driver and prepares it for use.
func Open(ctx context.Context, cfg config.DatabaseConfig) (models.ContactRepository, error) {
	switch cfg.Driver {
	case config.DriverMongo:
		client, err := config.ConnectMongo(ctx, cfg)
		if err != nil {
			return nil, err
		}
		repo := NewMongoContactRepository(client, cfg.Name, cfg.Collection)
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = repo.Close(context.Background())
			return nil, err
		}
		utils.LogInfo("Connected to mongo collection %s.%s", cfg.Name, cfg.Collection)
		return repo, nil
	case config.DriverMySQL, config.DriverSQLite:
		db, err := config.ConnectDatabase(ctx, cfg)
		if err != nil {
			return nil, err
		}
		repo := NewSQLContactRepository(db, cfg.Driver)
		if err := repo.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		utils.LogInfo("Connected to %s contact store", cfg.Driver)
		return repo, nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

// parseStoredStatus normalizes legacy spellings; unknown values are kept as-is.
func parseStoredStatus(raw string) models.PhoneStatus {
	if status, err := models.ParsePhoneStatus(raw); err == nil {
		return status
	}
	return models.PhoneStatus(raw)
}

func parseStoredLevel(raw string, valid bool) *models.Level {
	if !valid || raw == "" {
		return nil
	}
	level, err := models.ParseLevel(raw)
	if err != nil {
		level = models.Level(raw)
	}
	return &level
}
