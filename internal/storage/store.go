package storage

import (
	"context"
	"time"
)

// Store is the persistence API used by the router and maintenance jobs.
type Store interface {
	UpsertUser(ctx context.Context, id int64, username string, seen time.Time) error
	ListUsers(ctx context.Context) ([]User, error)
	CountUsers(ctx context.Context) (int, error)

	IsMember(ctx context.Context, set Set, id int64) (bool, error)
	AddMember(ctx context.Context, set Set, m Member) error
	// RemoveMember reports whether an entry was actually deleted.
	RemoveMember(ctx context.Context, set Set, id int64) (bool, error)
	ListMembers(ctx context.Context, set Set) ([]Member, error)
	CountMembers(ctx context.Context, set Set) (int, error)

	AddChannel(ctx context.Context, ch Channel) error
	RemoveChannel(ctx context.Context, id string) (bool, error)
	HasChannel(ctx context.Context, id string) (bool, error)
	ListChannels(ctx context.Context) ([]Channel, error)
	CountChannels(ctx context.Context) (int, error)

	AppendBroadcast(ctx context.Context, rec BroadcastRecord) error
	CountBroadcastsSince(ctx context.Context, t time.Time) (int, error)
	PruneBroadcasts(ctx context.Context, before time.Time) (int64, error)

	Close() error
}
