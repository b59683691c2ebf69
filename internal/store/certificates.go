package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"realcv/internal/certificate"
)

// SaveCertificate stores an issued certificate. Certificates are immutable;
// saving an existing id fails.
func (s *Store) SaveCertificate(ctx context.Context, c *certificate.Certificate) error {
	body, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal certificate: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO certificates (id, session_id, tier, issued_at, body)
		VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.SessionID, int(c.Tier), toMillis(c.IssuedAt), string(body),
	)
	if err != nil {
		return fmt.Errorf("insert certificate %s: %w", c.ID, err)
	}
	return nil
}

// Certificate returns a stored certificate by document code.
func (s *Store) Certificate(ctx context.Context, id string) (*certificate.Certificate, error) {
	var body string
	err := s.db.QueryRowContext(ctx, "SELECT body FROM certificates WHERE id = ?", id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("certificate %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get certificate: %w", err)
	}
	var c certificate.Certificate
	if err := json.Unmarshal([]byte(body), &c); err != nil {
		return nil, fmt.Errorf("decode certificate %s: %w", id, err)
	}
	return &c, nil
}

// CertificatesForSession lists the certificates issued for one session,
// oldest first.
func (s *Store) CertificatesForSession(ctx context.Context, sessionID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM certificates WHERE session_id = ? ORDER BY issued_at ASC, id ASC", sessionID)
	if err != nil {
		return nil, fmt.Errorf("query certificates: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan certificate id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
