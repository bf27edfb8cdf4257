package journal

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"
)

// StatusRunning is the status of an attempt that has not finished yet.
const StatusRunning = "running"

// Entry is one recorded download attempt.
type Entry struct {
	ID         string    `json:"id"`
	AppID      string    `json:"app_id"`
	Dir        string    `json:"dir"`
	Status     string    `json:"status"`
	Message    string    `json:"message,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// Journal records download attempts and their terminal outcomes.
type Journal struct {
	db *sql.DB
}

func Open(ctx context.Context, path string) (*Journal, error) {
	db, err := openDB(ctx, path)
	if err != nil {
		return nil, err
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Record inserts a running attempt and returns its id.
func (j *Journal) Record(ctx context.Context, appID, dir string) (string, error) {
	id, err := newID()
	if err != nil {
		return "", err
	}
	_, err = j.db.ExecContext(ctx, `
INSERT INTO downloads (id, app_id, dir, status, message, created_at)
VALUES (?, ?, ?, ?, '', ?)
`, id, appID, dir, StatusRunning, formatTimestamp(nowUTC()))
	if err != nil {
		return "", fmt.Errorf("journal: record download: %w", err)
	}
	return id, nil
}

// Finish stamps the terminal status and message onto an attempt.
func (j *Journal) Finish(ctx context.Context, id, status, message string) error {
	res, err := j.db.ExecContext(ctx, `
UPDATE downloads SET status = ?, message = ?, finished_at = ? WHERE id = ?
`, status, message, formatTimestamp(nowUTC()), id)
	if err != nil {
		return fmt.Errorf("journal: finish download %q: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("journal: read affected rows for %q: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("journal: download %q not found", id)
	}
	return nil
}

// Recent returns the newest attempts, most recent first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx, `
SELECT id, app_id, dir, status, message, created_at, finished_at
FROM downloads
ORDER BY created_at DESC, id
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: list downloads: %w", err)
	}
	defer rows.Close()

	entries := []*Entry{}
	for rows.Next() {
		var e Entry
		var createdAtRaw string
		var finishedAtRaw sql.NullString
		if err := rows.Scan(&e.ID, &e.AppID, &e.Dir, &e.Status, &e.Message, &createdAtRaw, &finishedAtRaw); err != nil {
			return nil, fmt.Errorf("journal: scan download: %w", err)
		}
		e.CreatedAt, err = parseTimestamp(createdAtRaw)
		if err != nil {
			return nil, err
		}
		if finishedAtRaw.Valid && finishedAtRaw.String != "" {
			e.FinishedAt, err = parseTimestamp(finishedAtRaw.String)
			if err != nil {
				return nil, err
			}
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: iterate downloads: %w", err)
	}
	return entries, nil
}

func newID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("journal: read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

func formatTimestamp(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339Nano)
}

func parseTimestamp(v string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("journal: parse timestamp %q: %w", v, err)
	}
	return ts, nil
}
