package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"premiumbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// timeLayout keeps stored timestamps fixed width and in UTC so the text
// comparisons in the broadcast-log queries order chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func fmtTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

// Open initializes the sqlite store, creating the schema if needed.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ---- User directory ----

func (s *sqliteStore) UpsertUser(ctx context.Context, id int64, username string, seen time.Time) error {
	if seen.IsZero() {
		seen = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users(user_id, username, last_seen) VALUES(?,?,?)
		 ON CONFLICT(user_id) DO UPDATE SET username=excluded.username, last_seen=excluded.last_seen`,
		id, nullStr(username), fmtTime(seen),
	)
	return err
}

func (s *sqliteStore) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id, username, last_seen FROM users`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var (
			u    User
			name sql.NullString
			seen string
		)
		if err := rows.Scan(&u.ID, &name, &seen); err != nil {
			return nil, err
		}
		u.Username = name.String
		u.LastSeen = parseTime(seen)
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *sqliteStore) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

// ---- Membership sets ----

func (s *sqliteStore) IsMember(ctx context.Context, set Set, id int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM members WHERE set_name = ? AND user_id = ?`, string(set), id,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *sqliteStore) AddMember(ctx context.Context, set Set, m Member) error {
	at := m.AddedAt
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO members(set_name, user_id, added_at, added_by) VALUES(?,?,?,?)
		 ON CONFLICT(set_name, user_id) DO NOTHING`,
		string(set), m.UserID, fmtTime(at), m.AddedBy,
	)
	return err
}

func (s *sqliteStore) RemoveMember(ctx context.Context, set Set, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM members WHERE set_name = ? AND user_id = ?`, string(set), id,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *sqliteStore) ListMembers(ctx context.Context, set Set) ([]Member, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, added_at, added_by FROM members WHERE set_name = ? ORDER BY added_at`,
		string(set),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Member
	for rows.Next() {
		var (
			m  Member
			at string
		)
		if err := rows.Scan(&m.UserID, &at, &m.AddedBy); err != nil {
			return nil, err
		}
		m.AddedAt = parseTime(at)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *sqliteStore) CountMembers(ctx context.Context, set Set) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM members WHERE set_name = ?`, string(set),
	).Scan(&n)
	return n, err
}

// ---- Channel registry ----

func (s *sqliteStore) AddChannel(ctx context.Context, ch Channel) error {
	at := ch.AddedAt
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO channels(channel_id, title, added_at, added_by) VALUES(?,?,?,?)
		 ON CONFLICT(channel_id) DO NOTHING`,
		ch.ID, nullStr(ch.Title), fmtTime(at), ch.AddedBy,
	)
	return err
}

func (s *sqliteStore) RemoveChannel(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM channels WHERE channel_id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *sqliteStore) HasChannel(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM channels WHERE channel_id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *sqliteStore) ListChannels(ctx context.Context) ([]Channel, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT channel_id, title, added_at, added_by FROM channels ORDER BY added_at`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Channel
	for rows.Next() {
		var (
			ch    Channel
			title sql.NullString
			at    string
		)
		if err := rows.Scan(&ch.ID, &title, &at, &ch.AddedBy); err != nil {
			return nil, err
		}
		ch.Title = title.String
		ch.AddedAt = parseTime(at)
		out = append(out, ch)
	}
	return out, rows.Err()
}

func (s *sqliteStore) CountChannels(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM channels`).Scan(&n)
	return n, err
}

// ---- Broadcast log ----

func (s *sqliteStore) AppendBroadcast(ctx context.Context, rec BroadcastRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO broadcasts(id, kind, messages, recipients, successful, failed, started_at, finished_at)
		 VALUES(?,?,?,?,?,?,?,?)`,
		rec.ID, rec.Kind, rec.Messages, rec.Recipients, rec.Successful, rec.Failed,
		fmtTime(rec.StartedAt), fmtTime(rec.FinishedAt),
	)
	return err
}

func (s *sqliteStore) CountBroadcastsSince(ctx context.Context, t time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM broadcasts WHERE started_at >= ?`, fmtTime(t),
	).Scan(&n)
	return n, err
}

func (s *sqliteStore) PruneBroadcasts(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM broadcasts WHERE started_at < ?`, fmtTime(before),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
