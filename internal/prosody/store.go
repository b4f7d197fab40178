// Package prosody reads and writes the datastore table shared with the
// Prosody XMPP server. Prosody indexes every row by (host, user, store,
// key) and tags it with a type it uses to decode value on its side, so
// writes from the web side have to recompute that tag the same way
// Prosody's own storage driver would. Prosody must be configured not to
// manage this table itself.
package prosody

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"prosodyweb/internal/metrics"
)

// Row is one entry of the shared table. Type is derived on save, never
// set by callers.
type Row struct {
	Host  string
	User  string
	Store string
	Key   string
	Type  string
	Value string
}

// The tag is a pure function of (store, key): rules are tried top to
// bottom, first match wins, and an overwrite always re-derives from
// scratch regardless of what the row carried before.
type typeRule struct {
	match func(store, key string) bool
	typ   string
}

var typeRules = []typeRule{
	{func(store, key string) bool { return store == "lastlog" && key == "timestamp" }, "number"},
	{func(store, key string) bool { return store == "accounts" && key == "iterations" }, "number"},
	{func(store, key string) bool { return store == "roster" }, "json"},
	{func(store, key string) bool { return key == "persistence" }, "boolean"},
}

func deriveType(store, key string) string {
	for _, r := range typeRules {
		if r.match(store, key) {
			return r.typ
		}
	}
	return "string"
}

// Store is the adapter over the shared table.
type Store struct {
	db          *sql.DB
	defaultHost string
	log         zerolog.Logger
}

func NewStore(db *sql.DB, defaultHost string, log zerolog.Logger) *Store {
	return &Store{
		db:          db,
		defaultHost: defaultHost,
		log:         log.With().Str("component", "prosody").Logger(),
	}
}

// Save upserts one row, uniqueness on (user, store, key). The type tag is
// recomputed from (store, key); value is stored as given, with no check
// that its text matches the tag — that is the caller's problem, as it is
// for Prosody itself.
func (s *Store) Save(ctx context.Context, row Row) error {
	if row.Host == "" {
		row.Host = s.defaultHost
	}
	row.Type = deriveType(row.Store, row.Key)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO prosody(host, "user", store, "key", type, value)
		VALUES(?,?,?,?,?,?)
		ON CONFLICT("user", store, "key") DO UPDATE SET
			host=excluded.host, type=excluded.type, value=excluded.value`,
		row.Host, row.User, row.Store, row.Key, row.Type, row.Value)
	if err != nil {
		return fmt.Errorf("save prosody row %s/%s/%s: %w", row.User, row.Store, row.Key, err)
	}
	metrics.StoreWrites.WithLabelValues(row.Store).Inc()
	s.log.Debug().Str("user", row.User).Str("store", row.Store).
		Str("key", row.Key).Str("type", row.Type).Msg("saved row")
	return nil
}

// GetDataStore returns every key of one store for a user as raw text,
// matching user and host case-insensitively the way Prosody's JIDs
// compare. The type tag is not reapplied here; callers that need typed
// values coerce themselves. An empty store is an empty map, not an error.
func (s *Store) GetDataStore(ctx context.Context, username, domain, store string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT "key", value FROM prosody
		WHERE UPPER("user")=UPPER(?) AND UPPER(host)=UPPER(?) AND store=?`,
		username, domain, store)
	if err != nil {
		return nil, fmt.Errorf("read store %s for %s@%s: %w", store, username, domain, err)
	}
	defer rows.Close()

	data := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		data[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	metrics.StoreReads.WithLabelValues(store).Inc()
	return data, nil
}
