package store

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/vigilspace/vigil/internal/database"
	"github.com/vigilspace/vigil/internal/store/api"
	"github.com/vigilspace/vigil/internal/store/gormstore"
	"github.com/vigilspace/vigil/internal/store/memory"
)

// Compile-time interface checks for every backend.
var (
	_ Backend = (*memory.Backend)(nil)
	_ Backend = (*gormstore.Backend)(nil)
	_ Backend = (*api.Client)(nil)
)

// NewBackend creates a candles store backend based on configuration.
func NewBackend(log zerolog.Logger) (Backend, error) {
	storageType := viper.GetString("storage.type")
	switch storageType {
	case "memory":
		return memory.New(), nil
	case "sqlite":
		db, err := database.GetSqliteDB(viper.GetString("storage.sqlite.path"))
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return gormstore.New(db), nil
	case "postgres":
		mgr := database.NewManager(log)
		if err := mgr.Connect(); err != nil {
			return nil, fmt.Errorf("failed to connect postgres store: %w", err)
		}
		return gormstore.New(mgr.DB), nil
	case "api":
		return api.New(viper.GetString("api.serverUrl"), viper.GetString("api.apiKey")), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", storageType)
	}
}
