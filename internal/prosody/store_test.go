package prosody

import (
	"context"
	"database/sql"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prosodyweb/internal/database"
	"prosodyweb/internal/database/migrations"
)

func testStore(t *testing.T) (*Store, *sql.DB) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.Up(db))
	return NewStore(db, "chat.example.net", zerolog.Nop()), db
}

func rowTypeOf(t *testing.T, db *sql.DB, user, store, key string) string {
	t.Helper()
	var typ string
	err := db.QueryRow(`SELECT type FROM prosody WHERE "user"=? AND store=? AND "key"=?`,
		user, store, key).Scan(&typ)
	require.NoError(t, err)
	return typ
}

func TestSaveDerivesType(t *testing.T) {
	tests := []struct {
		store, key string
		want       string
	}{
		{"lastlog", "timestamp", "number"},
		{"lastlog", "event", "string"},
		{"accounts", "iterations", "number"},
		{"accounts", "password", "string"},
		{"roster", "contacts", "json"},
		{"roster", "anything-at-all", "json"},
		{"muc", "persistence", "boolean"},
		{"vcard", "nickname", "string"},
	}

	s, db := testStore(t)
	ctx := context.Background()
	for _, tt := range tests {
		err := s.Save(ctx, Row{User: "alice", Store: tt.store, Key: tt.key, Value: "v"})
		require.NoError(t, err)
		assert.Equal(t, tt.want, rowTypeOf(t, db, "alice", tt.store, tt.key),
			"store=%s key=%s", tt.store, tt.key)
	}
}

func TestSaveRecomputesTypeOnOverwrite(t *testing.T) {
	s, db := testStore(t)
	ctx := context.Background()

	// Force a bogus tag into the row, then overwrite through Save: the
	// tag must come back from the rule table, not from the old row.
	require.NoError(t, s.Save(ctx, Row{User: "alice", Store: "roster", Key: "anything", Value: "{}"}))
	_, err := db.Exec(`UPDATE prosody SET type='string' WHERE "user"='alice'`)
	require.NoError(t, err)

	require.NoError(t, s.Save(ctx, Row{User: "alice", Store: "roster", Key: "anything", Value: "{}"}))
	assert.Equal(t, "json", rowTypeOf(t, db, "alice", "roster", "anything"))

	// Still exactly one row for the unique key.
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM prosody`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestSaveDefaultsHost(t *testing.T) {
	s, db := testStore(t)
	require.NoError(t, s.Save(context.Background(),
		Row{User: "alice", Store: "vcard", Key: "nickname", Value: "Al"}))

	var host string
	require.NoError(t, db.QueryRow(`SELECT host FROM prosody WHERE "user"='alice'`).Scan(&host))
	assert.Equal(t, "chat.example.net", host)
}

func TestGetDataStore(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, Row{User: "Alice", Store: "lastlog", Key: "event", Value: "login"}))
	require.NoError(t, s.Save(ctx, Row{User: "Alice", Store: "lastlog", Key: "timestamp", Value: "1000"}))
	require.NoError(t, s.Save(ctx, Row{User: "Alice", Store: "vcard", Key: "nickname", Value: "Al"}))

	// Lookup is case-insensitive on user and host, exact on store, and
	// values come back as raw text on this path.
	got, err := s.GetDataStore(ctx, "aLiCe", "CHAT.EXAMPLE.NET", "lastlog")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"event": "login", "timestamp": "1000"}, got)
}

func TestGetDataStoreEmpty(t *testing.T) {
	s, _ := testStore(t)
	got, err := s.GetDataStore(context.Background(), "nobody", "chat.example.net", "lastlog")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func TestLastlogCoercesNumbers(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, Row{User: "alice", Store: "lastlog", Key: "timestamp", Value: "1000"}))
	require.NoError(t, s.Save(ctx, Row{User: "alice", Store: "lastlog", Key: "event", Value: "login"}))
	require.NoError(t, s.Save(ctx, Row{User: "alice", Store: "lastlog", Key: "ip", Value: "192.0.2.7"}))

	ll := s.Lastlog("alice")

	v, ok, err := ll.Field(ctx, "timestamp")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1000, v, "number-typed values come back as int, not text")

	v, ok, err = ll.Field(ctx, "event")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "login", v)

	_, ok, err = ll.Field(ctx, "no-such-key")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLastlogCachesPerInstance(t *testing.T) {
	s, db := testStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, Row{User: "alice", Store: "lastlog", Key: "event", Value: "login"}))

	ll := s.Lastlog("alice")
	_, ok, err := ll.Field(ctx, "event")
	require.NoError(t, err)
	require.True(t, ok)

	// Rows deleted after the first access stay visible to this instance;
	// a fresh instance sees the new state.
	_, err = db.Exec(`DELETE FROM prosody`)
	require.NoError(t, err)

	v, ok, err := ll.Field(ctx, "event")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "login", v)

	_, ok, err = s.Lastlog("alice").Field(ctx, "event")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLastlogBadNumberIsFatal(t *testing.T) {
	s, db := testStore(t)
	ctx := context.Background()

	_, err := db.Exec(`INSERT INTO prosody(host,"user",store,"key",type,value)
		VALUES('chat.example.net','alice','lastlog','timestamp','number','not-a-number')`)
	require.NoError(t, err)

	_, _, err = s.Lastlog("alice").Field(ctx, "timestamp")
	assert.Error(t, err)
}
