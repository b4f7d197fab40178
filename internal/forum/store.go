package forum

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"prosodyweb/internal/models"
)

// Store holds the forum's boards, topics and posts. Post rows carry
// nested-set boundaries scoped per topic; every read that feeds the tree
// renderer orders by lft so ancestors always precede descendants.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

func NewStore(db *sql.DB, log zerolog.Logger) *Store {
	return &Store{db: db, log: log.With().Str("component", "forum").Logger()}
}

func (s *Store) Boards(ctx context.Context) ([]models.Board, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, slug, name, description FROM boards ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}
	defer rows.Close()

	var boards []models.Board
	for rows.Next() {
		var b models.Board
		if err := rows.Scan(&b.ID, &b.Slug, &b.Name, &b.Description); err != nil {
			return nil, err
		}
		boards = append(boards, b)
	}
	return boards, rows.Err()
}

func (s *Store) BoardBySlug(ctx context.Context, slug string) (models.Board, error) {
	var b models.Board
	err := s.db.QueryRowContext(ctx,
		`SELECT id, slug, name, description FROM boards WHERE slug=?`, slug).
		Scan(&b.ID, &b.Slug, &b.Name, &b.Description)
	return b, err
}

func (s *Store) Topics(ctx context.Context, boardID int64) ([]models.Topic, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.board_id, t.title, t.created_at, b.slug, u.username,
			(SELECT COUNT(*)-1 FROM posts p WHERE p.topic_id=t.id)
		FROM topics t
		JOIN boards b ON b.id=t.board_id
		JOIN users u ON u.id=t.user_id
		WHERE t.board_id=?
		ORDER BY t.created_at DESC`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	defer rows.Close()

	var topics []models.Topic
	for rows.Next() {
		var t models.Topic
		if err := rows.Scan(&t.ID, &t.BoardID, &t.Title, &t.CreatedAt,
			&t.BoardSlug, &t.Author, &t.Replies); err != nil {
			return nil, err
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

func (s *Store) PostByID(ctx context.Context, id int64) (models.Post, error) {
	var p models.Post
	err := s.db.QueryRowContext(ctx, `
		SELECT p.id, p.topic_id, p.user_id, p.subject, p.body, p.lft, p.rgt,
			p.created_at, u.username, b.slug
		FROM posts p
		JOIN users u ON u.id=p.user_id
		JOIN topics t ON t.id=p.topic_id
		JOIN boards b ON b.id=t.board_id
		WHERE p.id=?`, id).
		Scan(&p.ID, &p.TopicID, &p.UserID, &p.Subject, &p.Body, &p.Left, &p.Right,
			&p.CreatedAt, &p.Author, &p.BoardSlug)
	return p, err
}

// ThreadPosts returns a topic's whole tree ordered by lft ascending, the
// renderer's input contract.
func (s *Store) ThreadPosts(ctx context.Context, topicID int64) ([]models.Post, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.topic_id, p.user_id, p.subject, p.body, p.lft, p.rgt,
			p.created_at, u.username, b.slug
		FROM posts p
		JOIN users u ON u.id=p.user_id
		JOIN topics t ON t.id=p.topic_id
		JOIN boards b ON b.id=t.board_id
		WHERE p.topic_id=?
		ORDER BY p.lft`, topicID)
	if err != nil {
		return nil, fmt.Errorf("list thread posts: %w", err)
	}
	defer rows.Close()

	var posts []models.Post
	for rows.Next() {
		var p models.Post
		if err := rows.Scan(&p.ID, &p.TopicID, &p.UserID, &p.Subject, &p.Body,
			&p.Left, &p.Right, &p.CreatedAt, &p.Author, &p.BoardSlug); err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// CreateTopic creates the topic and its root post, which owns the whole
// interval (1,2) until replies widen it.
func (s *Store) CreateTopic(ctx context.Context, boardID, userID int64, title, body string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	now := time.Now()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO topics(board_id, user_id, title, created_at) VALUES(?,?,?,?)`,
		boardID, userID, title, now)
	if err != nil {
		return 0, fmt.Errorf("create topic: %w", err)
	}
	topicID, _ := res.LastInsertId()

	res, err = tx.ExecContext(ctx, `
		INSERT INTO posts(topic_id, user_id, subject, body, lft, rgt, created_at)
		VALUES(?,?,?,?,1,2,?)`,
		topicID, userID, title, body, now)
	if err != nil {
		return 0, fmt.Errorf("create root post: %w", err)
	}
	postID, _ := res.LastInsertId()

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	s.log.Info().Int64("topic", topicID).Int64("post", postID).Msg("topic created")
	return postID, nil
}

// Reply inserts a child as the parent's last reply: boundaries at and
// beyond the parent's rgt shift up by two, and the child takes the freed
// (rgt, rgt+1) slot.
func (s *Store) Reply(ctx context.Context, parentID, userID int64, subject, body string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var topicID int64
	var parentRgt int
	err = tx.QueryRowContext(ctx,
		`SELECT topic_id, rgt FROM posts WHERE id=?`, parentID).
		Scan(&topicID, &parentRgt)
	if err != nil {
		return 0, fmt.Errorf("load parent post %d: %w", parentID, err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE posts SET rgt = rgt+2 WHERE topic_id=? AND rgt >= ?`,
		topicID, parentRgt); err != nil {
		return 0, fmt.Errorf("shift rgt: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE posts SET lft = lft+2 WHERE topic_id=? AND lft > ?`,
		topicID, parentRgt); err != nil {
		return 0, fmt.Errorf("shift lft: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO posts(topic_id, user_id, subject, body, lft, rgt, created_at)
		VALUES(?,?,?,?,?,?,?)`,
		topicID, userID, subject, body, parentRgt, parentRgt+1, time.Now())
	if err != nil {
		return 0, fmt.Errorf("insert reply: %w", err)
	}
	postID, _ := res.LastInsertId()

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	s.log.Info().Int64("parent", parentID).Int64("post", postID).Msg("reply created")
	return postID, nil
}
