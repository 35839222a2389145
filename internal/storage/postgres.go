package storage

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/storage/postgres/v3"

	"homeflow/internal/config"
)

// PostgresStore persists key-value pairs in a Postgres table through the
// fiber storage driver. Values never expire.
type PostgresStore struct {
	backend kv
}

func newPostgres(cfg config.DatabaseConfig) (store *PostgresStore, err error) {
	// The driver panics instead of returning an error when the database is
	// unreachable; recover so the factory can fall back to memory.
	defer func() {
		if r := recover(); r != nil {
			store = nil
			err = &UnavailableError{cause: r}
		}
	}()

	backend := postgres.New(postgres.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Database: cfg.Name,
		Username: cfg.User,
		Password: cfg.Password,
		Table:    cfg.Table,
		Reset:    false,
	})
	return &PostgresStore{backend: backend}, nil
}

func (s *PostgresStore) Put(key string, value []byte) error {
	return s.backend.Set(key, value, 0)
}

func (s *PostgresStore) Get(key string) ([]byte, error) {
	return s.backend.Get(key)
}

func (s *PostgresStore) Delete(key string) error {
	return s.backend.Delete(key)
}

func (s *PostgresStore) Close() error {
	return s.backend.Close()
}

// UnavailableError reports a backend that could not be reached at startup.
type UnavailableError struct {
	cause any
}

func (e *UnavailableError) Error() string { return "storage backend unavailable" }

// New returns a Postgres-backed store, or a memory-only store when the
// database is not configured or not reachable. Storage being unavailable is
// logged, never fatal.
func New(cfg config.DatabaseConfig, logger *slog.Logger) Store {
	if cfg.Host == "" {
		logger.Info("No database configured, using in-memory storage")
		return NewMemory()
	}
	store, err := newPostgres(cfg)
	if err != nil {
		logger.Warn("Database unreachable, degrading to in-memory storage", "error", err)
		return NewMemory()
	}
	return store
}

// SessionStorage returns a Postgres backend for HTTP sessions, or nil so the
// session store keeps sessions in memory. Sessions live in their own table.
func SessionStorage(cfg config.DatabaseConfig, logger *slog.Logger) (backend fiber.Storage) {
	if cfg.Host == "" {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("Database unreachable, sessions stay in memory", "error", &UnavailableError{cause: r})
			backend = nil
		}
	}()
	return postgres.New(postgres.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Database: cfg.Name,
		Username: cfg.User,
		Password: cfg.Password,
		Table:    cfg.Table + "_sessions",
		Reset:    false,
	})
}
