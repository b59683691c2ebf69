package store

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"

	"realcv/internal/certificate"
	"realcv/internal/tracking"
)

// Corruption describes one stored certificate that no longer verifies.
type Corruption struct {
	CertificateID string
	Err           error
}

// VerifyCertificate checks a stored certificate's digest and signature and,
// when its session is still stored, that the session matches.
func (s *Store) VerifyCertificate(ctx context.Context, id string, pub ed25519.PublicKey) (*certificate.Certificate, error) {
	c, err := s.Certificate(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := certificate.Verify(c, pub); err != nil {
		return c, err
	}
	ws, err := s.LoadSession(c.SessionID)
	if errors.Is(err, tracking.ErrNotFound) {
		return c, nil
	}
	if err != nil {
		return c, err
	}
	return c, certificate.VerifySession(c, ws)
}

// VerifyAllCertificates verifies every stored certificate and returns the
// ones that fail. pub may be nil to use each certificate's embedded key.
func (s *Store) VerifyAllCertificates(ctx context.Context, pub ed25519.PublicKey) ([]Corruption, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, body FROM certificates ORDER BY issued_at ASC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("query all certificates: %w", err)
	}
	defer rows.Close()

	type stored struct {
		id   string
		body string
	}
	var all []stored
	for rows.Next() {
		var st stored
		if err := rows.Scan(&st.id, &st.body); err != nil {
			return nil, fmt.Errorf("scan certificate: %w", err)
		}
		all = append(all, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	var corrupted []Corruption
	for _, st := range all {
		var c certificate.Certificate
		if err := json.Unmarshal([]byte(st.body), &c); err != nil {
			corrupted = append(corrupted, Corruption{CertificateID: st.id, Err: err})
			continue
		}
		if c.ID != st.id {
			corrupted = append(corrupted, Corruption{
				CertificateID: st.id,
				Err:           fmt.Errorf("%w: stored under %s", certificate.ErrDigestMismatch, c.ID),
			})
			continue
		}
		if _, err := s.VerifyCertificate(ctx, st.id, pub); err != nil {
			corrupted = append(corrupted, Corruption{CertificateID: st.id, Err: err})
		}
	}
	return corrupted, nil
}
