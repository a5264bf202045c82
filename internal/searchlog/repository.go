// Package searchlog persists searches and launches across sessions so they
// can be reviewed after a conversation ends.
package searchlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/HerbHall/skillpath/internal/store"
)

// DefaultLimit and MaxLimit bound List queries.
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Search is one persisted content search.
type Search struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"session_id"`
	Seq        int       `json:"seq"`
	Query      string    `json:"query"`
	Titles     []string  `json:"titles"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Launch is one persisted content launch.
type Launch struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"session_id"`
	Query      string    `json:"query"`
	Title      string    `json:"title"`
	URL        string    `json:"url"`
	Score      float64   `json:"score"`
	LaunchedAt time.Time `json:"launched_at"`
}

// Filter narrows a List query. An empty SessionID matches every session.
type Filter struct {
	SessionID string
	Limit     int
}

func (f Filter) limit() int {
	switch {
	case f.Limit <= 0:
		return DefaultLimit
	case f.Limit > MaxLimit:
		return MaxLimit
	default:
		return f.Limit
	}
}

// Repository reads and writes the search log.
type Repository struct {
	db *sql.DB
}

// NewRepository runs the search log migrations and returns a Repository.
func NewRepository(ctx context.Context, st *store.SQLiteStore) (*Repository, error) {
	if err := st.Migrate(ctx, "searchlog", migrations); err != nil {
		return nil, fmt.Errorf("searchlog migrations: %w", err)
	}
	return &Repository{db: st.DB()}, nil
}

// InsertSearch stores s and returns its row ID.
func (r *Repository) InsertSearch(ctx context.Context, s Search) (int64, error) {
	titles, err := json.Marshal(nonNil(s.Titles))
	if err != nil {
		return 0, fmt.Errorf("encode titles: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO searchlog_searches (session_id, seq, query, titles, recorded_at)
		VALUES (?, ?, ?, ?, ?)`,
		s.SessionID, s.Seq, s.Query, string(titles), s.RecordedAt.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert search: %w", err)
	}
	return res.LastInsertId()
}

// InsertLaunch stores l and returns its row ID.
func (r *Repository) InsertLaunch(ctx context.Context, l Launch) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO searchlog_launches (session_id, query, title, url, score, launched_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		l.SessionID, l.Query, l.Title, l.URL, l.Score, l.LaunchedAt.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert launch: %w", err)
	}
	return res.LastInsertId()
}

// ListSearches returns matching searches, newest first.
func (r *Repository) ListSearches(ctx context.Context, f Filter) ([]Search, error) {
	where, args := f.where()
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, seq, query, titles, recorded_at
		FROM searchlog_searches`+where+`
		ORDER BY id DESC LIMIT ?`, append(args, f.limit())...)
	if err != nil {
		return nil, fmt.Errorf("list searches: %w", err)
	}
	defer rows.Close()

	out := []Search{}
	for rows.Next() {
		var s Search
		var titles string
		if err := rows.Scan(&s.ID, &s.SessionID, &s.Seq, &s.Query, &titles, &s.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		if err := json.Unmarshal([]byte(titles), &s.Titles); err != nil {
			return nil, fmt.Errorf("decode titles for search %d: %w", s.ID, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListLaunches returns matching launches, newest first.
func (r *Repository) ListLaunches(ctx context.Context, f Filter) ([]Launch, error) {
	where, args := f.where()
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, query, title, url, score, launched_at
		FROM searchlog_launches`+where+`
		ORDER BY id DESC LIMIT ?`, append(args, f.limit())...)
	if err != nil {
		return nil, fmt.Errorf("list launches: %w", err)
	}
	defer rows.Close()

	out := []Launch{}
	for rows.Next() {
		var l Launch
		if err := rows.Scan(&l.ID, &l.SessionID, &l.Query, &l.Title, &l.URL, &l.Score, &l.LaunchedAt); err != nil {
			return nil, fmt.Errorf("scan launch row: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (f Filter) where() (string, []any) {
	var clauses []string
	var args []any
	if f.SessionID != "" {
		clauses = append(clauses, "session_id = ?")
		args = append(args, f.SessionID)
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func execAll(tx *sql.Tx, stmts ...string) error {
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

var migrations = []store.Migration{
	{
		Version:     1,
		Description: "create searchlog_searches table",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE searchlog_searches (
					id          INTEGER PRIMARY KEY AUTOINCREMENT,
					session_id  TEXT     NOT NULL,
					seq         INTEGER  NOT NULL,
					query       TEXT     NOT NULL,
					titles      TEXT     NOT NULL DEFAULT '[]',
					recorded_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_searchlog_searches_session ON searchlog_searches(session_id, seq)`,
			)
		},
	},
	{
		Version:     2,
		Description: "create searchlog_launches table",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE searchlog_launches (
					id          INTEGER PRIMARY KEY AUTOINCREMENT,
					session_id  TEXT     NOT NULL,
					query       TEXT     NOT NULL,
					title       TEXT     NOT NULL,
					url         TEXT     NOT NULL,
					score       REAL     NOT NULL,
					launched_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_searchlog_launches_session ON searchlog_launches(session_id)`,
			)
		},
	},
}
