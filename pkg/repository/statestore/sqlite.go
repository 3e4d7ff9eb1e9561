package statestore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

type Config struct {
	DatabasePath string
}

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the database at cfg.DatabasePath and applies pending migrations.
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.DatabasePath == "" {
		return nil, errors.New("database path is required")
	}
	db, err := sql.Open("sqlite3", cfg.DatabasePath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	// sqlite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	log.Printf("State store ready at %s", cfg.DatabasePath)
	return &SQLiteStore{db: db}, nil
}

func applyMigrations(db *sql.DB) error {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, device, key string) (string, bool, error) {
	if device == "" {
		return "", false, ErrNoDevice
	}
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM device_state WHERE device = ? AND key = ?`, device, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, device, key, value string) error {
	if device == "" {
		return ErrNoDevice
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO device_state (device, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(device, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		device, key, value, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, device string, keys ...string) error {
	if device == "" {
		return ErrNoDevice
	}
	for _, key := range keys {
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM device_state WHERE device = ? AND key = ?`, device, key,
		); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
