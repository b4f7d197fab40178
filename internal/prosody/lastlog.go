package prosody

import (
	"context"
	"fmt"
	"strconv"
)

// Lastlog reads one user's lastlog store, the rows Prosody writes on
// every connect and disconnect. The whole store is fetched on first
// access and kept inside the value, so one Lastlog should be scoped to a
// single request; a fresh request gets a fresh Lastlog.
type Lastlog struct {
	store    *Store
	username string
	data     map[string]any
}

// Lastlog returns a lazy accessor for the user's lastlog store. No
// database work happens until the first Field call.
func (s *Store) Lastlog(username string) *Lastlog {
	return &Lastlog{store: s, username: username}
}

// Field returns the coerced value for key, or ok=false if the store has
// no such key. Values tagged number become int; a non-numeric value
// under a number tag is a data fault and comes back as an error.
func (l *Lastlog) Field(ctx context.Context, key string) (any, bool, error) {
	if l.data == nil {
		if err := l.fetch(ctx); err != nil {
			return nil, false, err
		}
	}
	v, ok := l.data[key]
	return v, ok, nil
}

func (l *Lastlog) fetch(ctx context.Context) error {
	rows, err := l.store.db.QueryContext(ctx, `
		SELECT "key", type, value FROM prosody
		WHERE UPPER("user")=UPPER(?) AND store='lastlog'`, l.username)
	if err != nil {
		return fmt.Errorf("read lastlog for %s: %w", l.username, err)
	}
	defer rows.Close()

	data := map[string]any{}
	for rows.Next() {
		var k, typ, v string
		if err := rows.Scan(&k, &typ, &v); err != nil {
			return err
		}
		if typ == "number" {
			// lastlog only ever holds integers, so an integer parse is
			// safe here where a float would not be elsewhere
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("lastlog %s/%s is not a number: %w", l.username, k, err)
			}
			data[k] = n
		} else {
			data[k] = v
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	l.data = data
	return nil
}
