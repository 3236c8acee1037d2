package backend

import (
	"context"
	"fmt"
	"log/slog"

	"mindspend/internal/config"
	"mindspend/internal/log"
	"mindspend/internal/storage"
	"mindspend/internal/storage/memory"
)

var (
	_ Store = (*storage.SQLiteRepository)(nil)
	_ Store = (*memory.Store)(nil)
)

// FromAppConfig converts the application config to backend config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}
	return Config{Type: backendType, SQLiteDBPath: appConfig.SQLiteDBPath}, nil
}

func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if c.Type == SQLiteBackend && c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path is required for sqlite backend")
	}
	return nil
}

// Create opens the configured store and verifies it answers a ping.
func Create(ctx context.Context, cfg Config) (*BackendResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var store Store
	switch cfg.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		store = repo
	case MemoryBackend:
		store = memory.NewStore()
	}

	if err := store.Ping(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("ping %s backend: %w", cfg.Type, err)
	}

	slog.InfoContext(ctx, "Backend ready",
		log.FieldComponent, log.ComponentBackend,
		"type", cfg.Type.String())
	return &BackendResult{Store: store, Cleanup: store.Close}, nil
}
