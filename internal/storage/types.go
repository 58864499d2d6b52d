package storage

import "time"

// Config configures the sqlite store.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// Set names a boolean membership set keyed by user identity.
type Set string

const (
	SetPremium Set = "premium"
	SetBanned  Set = "banned"
)

// User is one directory record, refreshed on every inbound event.
type User struct {
	ID       int64
	Username string
	LastSeen time.Time
}

// Member is one membership entry. Presence in a set is the predicate;
// the metadata only records who added it and when.
type Member struct {
	UserID  int64
	AddedAt time.Time
	AddedBy int64
}

// Channel is one gated premium channel.
// ID is the platform-formatted channel identity ("-100..." or "@name").
type Channel struct {
	ID      string
	Title   string
	AddedAt time.Time
	AddedBy int64
}

// BroadcastRecord summarizes one completed fan-out.
type BroadcastRecord struct {
	ID         string
	Kind       string // "all" or "premium"
	Messages   int
	Recipients int
	Successful int
	Failed     int
	StartedAt  time.Time
	FinishedAt time.Time
}
