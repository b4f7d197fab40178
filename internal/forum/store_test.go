package forum

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prosodyweb/internal/database"
	"prosodyweb/internal/database/migrations"
)

func testForum(t *testing.T) (*Store, *sql.DB) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.Up(db))
	return NewStore(db, zerolog.Nop()), db
}

func seedUser(t *testing.T, db *sql.DB, username string) int64 {
	t.Helper()
	res, err := db.Exec(`
		INSERT INTO users(username, password_hash, is_active, date_joined)
		VALUES(?, 'x', 1, ?)`, username, time.Now())
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func seedBoard(t *testing.T, s *Store, slug string) int64 {
	t.Helper()
	require.NoError(t, s.SeedBoards(context.Background(),
		[]BoardSeed{{Slug: slug, Name: slug, Description: "d"}}))
	b, err := s.BoardBySlug(context.Background(), slug)
	require.NoError(t, err)
	return b.ID
}

func TestCreateTopicRootPost(t *testing.T) {
	s, db := testForum(t)
	ctx := context.Background()
	uid := seedUser(t, db, "alice")
	bid := seedBoard(t, s, "general")

	postID, err := s.CreateTopic(ctx, bid, uid, "first topic", "body")
	require.NoError(t, err)

	p, err := s.PostByID(ctx, postID)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Left)
	assert.Equal(t, 2, p.Right)
	assert.Equal(t, "first topic", p.Subject)
	assert.Equal(t, "alice", p.Author)
	assert.Equal(t, "general", p.BoardSlug)
	assert.False(t, p.HasReplies())
}

func TestReplyWidensAncestors(t *testing.T) {
	s, db := testForum(t)
	ctx := context.Background()
	uid := seedUser(t, db, "alice")
	bid := seedBoard(t, s, "general")

	rootID, err := s.CreateTopic(ctx, bid, uid, "topic", "body")
	require.NoError(t, err)

	firstID, err := s.Reply(ctx, rootID, uid, "Re: topic", "r1")
	require.NoError(t, err)
	secondID, err := s.Reply(ctx, rootID, uid, "Re: topic", "r2")
	require.NoError(t, err)
	nestedID, err := s.Reply(ctx, firstID, uid, "Re: Re: topic", "r1a")
	require.NoError(t, err)

	root, err := s.PostByID(ctx, rootID)
	require.NoError(t, err)
	first, err := s.PostByID(ctx, firstID)
	require.NoError(t, err)
	second, err := s.PostByID(ctx, secondID)
	require.NoError(t, err)
	nested, err := s.PostByID(ctx, nestedID)
	require.NoError(t, err)

	// Root now spans everything, the first reply contains its own child,
	// the second reply is a leaf sibling after them.
	assert.Equal(t, [2]int{1, 8}, [2]int{root.Left, root.Right})
	assert.Equal(t, [2]int{2, 5}, [2]int{first.Left, first.Right})
	assert.Equal(t, [2]int{3, 4}, [2]int{nested.Left, nested.Right})
	assert.Equal(t, [2]int{6, 7}, [2]int{second.Left, second.Right})
	assert.True(t, root.HasReplies())
	assert.True(t, first.HasReplies())
}

func TestThreadPostsOrderedByLeft(t *testing.T) {
	s, db := testForum(t)
	ctx := context.Background()
	uid := seedUser(t, db, "alice")
	bid := seedBoard(t, s, "general")

	rootID, err := s.CreateTopic(ctx, bid, uid, "topic", "body")
	require.NoError(t, err)
	firstID, err := s.Reply(ctx, rootID, uid, "r1", "b")
	require.NoError(t, err)
	_, err = s.Reply(ctx, rootID, uid, "r2", "b")
	require.NoError(t, err)
	_, err = s.Reply(ctx, firstID, uid, "r1a", "b")
	require.NoError(t, err)

	root, err := s.PostByID(ctx, rootID)
	require.NoError(t, err)
	posts, err := s.ThreadPosts(ctx, root.TopicID)
	require.NoError(t, err)
	require.Len(t, posts, 4)

	for i := 1; i < len(posts); i++ {
		assert.Less(t, posts[i-1].Left, posts[i].Left, "ancestors before descendants")
	}
	assert.Equal(t, "topic", posts[0].Subject)
	assert.Equal(t, "r1a", posts[2].Subject, "nested reply sits inside the first reply's interval")
}

func TestSeedBoardsUpsertKeepsID(t *testing.T) {
	s, _ := testForum(t)
	ctx := context.Background()

	require.NoError(t, s.SeedBoards(ctx, []BoardSeed{{Slug: "general", Name: "General"}}))
	before, err := s.BoardBySlug(ctx, "general")
	require.NoError(t, err)

	require.NoError(t, s.SeedBoards(ctx, []BoardSeed{{Slug: "general", Name: "General Chat", Description: "new"}}))
	after, err := s.BoardBySlug(ctx, "general")
	require.NoError(t, err)

	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, "General Chat", after.Name)
	assert.Equal(t, "new", after.Description)
}

func TestDefaultBoardsCatalog(t *testing.T) {
	seeds, err := DefaultBoards()
	require.NoError(t, err)
	require.NotEmpty(t, seeds)
	for _, b := range seeds {
		assert.NotEmpty(t, b.Slug)
		assert.NotEmpty(t, b.Name)
	}
}
