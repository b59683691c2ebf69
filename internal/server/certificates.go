package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"realcv/internal/certificate"
	"realcv/internal/forensics"
	"realcv/internal/signer"
	"realcv/internal/tracking"
)

type issueCertificateBody struct {
	Title     string                `json:"title"`
	SessionID string                `json:"sessionId"`
	Sections  []certificate.Section `json:"sections"`
}

// Verification is the public view of a certificate. Tier, metrics and
// badges are recomputed from the stored session when it is still
// available; otherwise they are the certified values.
type Verification struct {
	Certificate      *certificate.Certificate `json:"certificate"`
	Valid            bool                     `json:"valid"`
	SignatureValid   bool                     `json:"signatureValid"`
	SessionAvailable bool                     `json:"sessionAvailable"`
	SessionMatches   bool                     `json:"sessionMatches"`
	Tier             forensics.Tier           `json:"tier"`
	TierLabel        string                   `json:"tierLabel"`
	Metrics          forensics.TypingMetrics  `json:"metrics"`
	Badges           []forensics.Badge        `json:"badges"`
	Summary          certificate.Summary      `json:"summary"`
	Problems         []string                 `json:"problems"`
}

func (s *Server) handleIssueCertificate(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.validator.ValidateCertificateRequest(data); err != nil {
		s.writeError(w, r, err)
		return
	}
	var body issueCertificateBody
	if err := json.Unmarshal(data, &body); err != nil {
		s.writeError(w, r, badRequest("decode certificate request: %v", err))
		return
	}

	ws, err := s.store.LoadSession(body.SessionID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !ws.Sealed() {
		s.writeError(w, r, forensics.ErrSessionNotSealed)
		return
	}

	c, err := certificate.Issue(certificate.Request{
		Title:    body.Title,
		Sections: body.Sections,
		Session:  ws,
		Policy:   &s.certs,
		IssuedAt: s.now(),
	}, s.key)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.store.SaveCertificate(r.Context(), c); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.metrics.ObserveCertificate(c.Tier)
	s.log.WithContext(r.Context()).Info("certificate issued",
		"certificate_id", c.ID, "session_id", c.SessionID, "tier", c.TierLabel)

	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleVerifyCertificate(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.Certificate(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	v := s.verify(c)
	s.metrics.ObserveVerification(v.Valid)
	writeJSON(w, http.StatusOK, v)
}

// verify checks the signature with the server key and recomputes the
// assessment from the stored session.
func (s *Server) verify(c *certificate.Certificate) Verification {
	v := Verification{
		Certificate: c,
		Tier:        c.Tier,
		TierLabel:   c.TierLabel,
		Metrics:     c.Metrics,
		Badges:      c.Badges,
		Summary:     c.Summary,
		Problems:    []string{},
	}

	if err := certificate.Verify(c, signer.GetPublicKey(s.key)); err != nil {
		v.Problems = append(v.Problems, err.Error())
	} else {
		v.SignatureValid = true
	}

	ws, err := s.store.LoadSession(c.SessionID)
	switch {
	case errors.Is(err, tracking.ErrNotFound):
		// The certified values stand on the signature alone.
	case err != nil:
		v.Problems = append(v.Problems, "session unavailable: "+err.Error())
	default:
		v.SessionAvailable = true
		if err := certificate.VerifySession(c, ws); err != nil {
			v.Problems = append(v.Problems, err.Error())
		} else {
			v.SessionMatches = true
		}
		s.recompute(&v, c, ws)
	}

	v.Valid = v.SignatureValid && (!v.SessionAvailable || v.SessionMatches)
	return v
}

func (s *Server) recompute(v *Verification, c *certificate.Certificate, ws *tracking.WritingSession) {
	policy, err := forensics.PolicyByName(c.Policy)
	if err != nil {
		policy = s.certs
	}
	metrics, err := forensics.Score(ws, "", policy)
	if err != nil {
		v.Problems = append(v.Problems, "recompute score: "+err.Error())
		return
	}
	v.Tier = forensics.Classify(ws)
	v.TierLabel = v.Tier.CertificateLabel()
	v.Metrics = *metrics
	v.Badges = forensics.Badges(metrics)
	v.Summary = certificate.Summarize(ws)
}

// handleCertificateText renders the plain-text certificate used by the
// export targets.
func (s *Server) handleCertificateText(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.Certificate(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := certificate.WriteText(w, c, s.config().Server.PublicBaseURL); err != nil {
		s.log.WithContext(r.Context()).Error("render certificate", "error", err)
	}
}
