package whatsapp

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.mau.fi/whatsmeow/store/sqlstore"
	_ "modernc.org/sqlite"
)

// SQLiteFile is the device database created inside the session directory.
const SQLiteFile = "session.db"

// DeviceStore holds the paired device keys and its backing database.
type DeviceStore struct {
	Container *sqlstore.Container
	db        *sql.DB
}

// OpenSQLite opens (or creates) the device database under dir.
func OpenSQLite(ctx context.Context, dir string, logger *slog.Logger) (*DeviceStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", filepath.Join(dir, SQLiteFile))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	return upgrade(ctx, db, "sqlite3", logger)
}

// OpenPostgres keeps device keys in the Postgres database behind pool.
func OpenPostgres(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) (*DeviceStore, error) {
	return upgrade(ctx, stdlib.OpenDBFromPool(pool), "postgres", logger)
}

func upgrade(ctx context.Context, db *sql.DB, dialect string, logger *slog.Logger) (*DeviceStore, error) {
	container := sqlstore.NewWithDB(db, dialect, NewLogger(logger, "Database"))
	if err := container.Upgrade(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("upgrade device store: %w", err)
	}
	return &DeviceStore{Container: container, db: db}, nil
}

// Close releases the database handle.
func (s *DeviceStore) Close() error {
	return s.db.Close()
}
