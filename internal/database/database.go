package database

import (
	"database/sql"

	_ "modernc.org/sqlite"
)

// Open opens the sqlite database. A single connection keeps writes
// serialized, which is all the coordination this app needs.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		db.Close()
		return nil, err
	}
	return db, db.Ping()
}
