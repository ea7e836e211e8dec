// Package storage persists opaque ciphertext rows and wallet metadata in
// an embedded sqlite database under the application data directory.
package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/obscura-systems/wallet-core/internal/werr"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DBFileName is the relational store file under the app data directory.
const DBFileName = "persistent.db"

// Store wraps the sqlite handle shared by all repositories.
type Store struct {
	db *sql.DB
}

// Open creates or opens the wallet database under appDataDir and applies
// pending migrations.
func Open(appDataDir string) (*Store, error) {
	if err := os.MkdirAll(appDataDir, 0o700); err != nil {
		return nil, werr.Internal("app data directory creation failed", err)
	}
	return openFile(filepath.Join(appDataDir, DBFileName))
}

func openFile(path string) (*Store, error) {
	pragmas := url.Values{}
	pragmas.Add("_pragma", "busy_timeout(5000)")
	pragmas.Add("_pragma", "journal_mode(WAL)")
	pragmas.Add("_pragma", "synchronous(NORMAL)")
	pragmas.Add("_pragma", "foreign_keys(1)")

	dsn := fmt.Sprintf("file:%s?%s", path, pragmas.Encode())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, werr.Internal("database open failed", err)
	}

	// sqlite allows a single writer; serialize all access on one conn
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, werr.Internal("database ping failed", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// migrate applies the embedded schema migrations.
func (s *Store) migrate() error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return werr.Internal("migration source init failed", err)
	}

	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return werr.Internal("migration driver init failed", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return werr.Internal("migration init failed", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return werr.Internal("migration failed", err)
	}
	return nil
}

// DB exposes the underlying handle for repositories.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
