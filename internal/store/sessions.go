package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"realcv/internal/tracking"
)

var _ tracking.Store = (*Store)(nil)

// SaveSession upserts a writing session. The last write wins.
func (s *Store) SaveSession(ws *tracking.WritingSession) error {
	if ws == nil || strings.TrimSpace(ws.ID) == "" {
		return fmt.Errorf("store: session id is required")
	}
	body, err := json.Marshal(ws)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	var end sql.NullInt64
	if ws.Sealed() {
		end = sql.NullInt64{Int64: ws.EndTime, Valid: true}
	}
	_, err = s.db.Exec(`
		INSERT INTO writing_sessions (id, start_time, end_time, updated_at, body)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			start_time = excluded.start_time,
			end_time   = excluded.end_time,
			updated_at = excluded.updated_at,
			body       = excluded.body`,
		ws.ID, ws.StartTime, end, toMillis(s.now()), string(body),
	)
	if err != nil {
		return fmt.Errorf("save session %s: %w", ws.ID, err)
	}
	return nil
}

// LoadSession reads a session, backfilling fields older rows lack.
func (s *Store) LoadSession(id string) (*tracking.WritingSession, error) {
	var body string
	err := s.db.QueryRow("SELECT body FROM writing_sessions WHERE id = ?", id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", tracking.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	ws, err := tracking.DecodeSession([]byte(body))
	if err != nil {
		return nil, err
	}
	if ws.ID == "" {
		ws.ID = id
	}
	return ws, nil
}

// DeleteSession removes a session. Deleting a missing session is not an error.
func (s *Store) DeleteSession(id string) error {
	if _, err := s.db.Exec("DELETE FROM writing_sessions WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

// ListSessions returns stored session ids, most recently updated first.
func (s *Store) ListSessions() ([]string, error) {
	rows, err := s.db.Query("SELECT id FROM writing_sessions ORDER BY updated_at DESC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
