package models

import (
	"context"
	"time"
)

// PresenceSource reads one user's lastlog store from the shared Prosody
// table. Values come back coerced: entries tagged number are int, the
// rest stay string. Implementations cache the fetched store, so a source
// must not outlive the request it was built for.
type PresenceSource interface {
	Field(ctx context.Context, key string) (any, bool, error)
}

// Identity is the per-request caller: either an Authenticated user or
// Anonymous. Both answer the same capability set so templates and
// handlers never branch on the concrete type.
type Identity interface {
	IsAuthenticated() bool
	DisplayName() string
	// Online reports whether the chat server saw a login as the user's
	// most recent lastlog event.
	Online(ctx context.Context) (bool, error)
	// LastSeen is the time of the user's last connect or disconnect,
	// false when the chat server has no lastlog for them.
	LastSeen(ctx context.Context) (time.Time, bool, error)
	LastIP(ctx context.Context) (string, error)
}

// Authenticated is a logged-in user plus their presence as recorded by
// the chat server.
type Authenticated struct {
	User
	Lastlog PresenceSource
}

func (a *Authenticated) IsAuthenticated() bool { return true }

func (a *Authenticated) DisplayName() string {
	if n := a.FullName(); n != "" {
		return n
	}
	return a.Username
}

func (a *Authenticated) Online(ctx context.Context) (bool, error) {
	v, ok, err := a.Lastlog.Field(ctx, "event")
	if err != nil || !ok {
		return false, err
	}
	return v == "login", nil
}

func (a *Authenticated) LastSeen(ctx context.Context) (time.Time, bool, error) {
	v, ok, err := a.Lastlog.Field(ctx, "timestamp")
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	sec, ok := v.(int)
	if !ok {
		return time.Time{}, false, nil
	}
	return time.Unix(int64(sec), 0).UTC(), true, nil
}

func (a *Authenticated) LastIP(ctx context.Context) (string, error) {
	v, ok, err := a.Lastlog.Field(ctx, "ip")
	if err != nil || !ok {
		return "", err
	}
	s, _ := v.(string)
	return s, nil
}

// Anonymous is the unauthenticated caller.
type Anonymous struct{}

func (Anonymous) IsAuthenticated() bool { return false }
func (Anonymous) DisplayName() string   { return "Anonymous User" }

func (Anonymous) Online(context.Context) (bool, error) { return false, nil }

func (Anonymous) LastSeen(context.Context) (time.Time, bool, error) {
	return time.Time{}, false, nil
}

func (Anonymous) LastIP(context.Context) (string, error) { return "", nil }
