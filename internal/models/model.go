package models

import (
	"strings"
	"time"
)

type User struct {
	ID          int64
	Username    string
	Email       string
	FirstName   string
	LastName    string
	IsActive    bool
	IsSuperuser bool
	DateJoined  time.Time
	Timezone    string
}

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

type Board struct {
	ID          int64
	Slug        string
	Name        string
	Description string
}

type Topic struct {
	ID        int64
	BoardID   int64
	Title     string
	CreatedAt time.Time
	BoardSlug string
	Author    string
	Replies   int
}

// Post is one node of a topic's reply tree. Left and Right are the
// nested-set boundaries, scoped per topic: an ancestor's interval strictly
// contains every descendant's, and siblings are disjoint.
type Post struct {
	ID        int64
	TopicID   int64
	UserID    int64
	Subject   string
	Body      string
	Left      int
	Right     int
	CreatedAt time.Time
	Author    string
	BoardSlug string
}

// HasReplies reports whether the post has any descendants.
func (p Post) HasReplies() bool { return p.Right-p.Left > 1 }

// LoginAudit records one web login, so users can spot logins that were
// not theirs.
type LoginAudit struct {
	ID        int64
	UserID    int64
	LoginDate time.Time
	IP        string
}
