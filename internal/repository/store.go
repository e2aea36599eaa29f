// Package repository persists lookup history, buddy contributions and NFT
// metadata snapshots in a local sqlite database.
package repository

import (
	"database/sql"
	"fmt"

	// Register the pure-Go sqlite driver.
	_ "modernc.org/sqlite"
)

// Open opens (creating if necessary) the sqlite database at path and ensures
// the schema exists.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}
	// sqlite handles a single writer; avoid database-locked errors under the
	// gin handler pool.
	db.SetMaxOpenConns(1)
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func initSchema(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS crypto_lookups (
			id TEXT PRIMARY KEY,
			person_name TEXT NOT NULL,
			investments_json TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS wallet_lookups (
			id TEXT PRIMARY KEY,
			address TEXT NOT NULL,
			tokens_json TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS buddies (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			contribution TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS nft_metadata (
			id TEXT PRIMARY KEY,
			wallet_address TEXT NOT NULL,
			metadata_json TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}
