package certificate

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"realcv/internal/forensics"
	"realcv/internal/signer"
	"realcv/internal/tracking"
)

// Errors
var (
	ErrDigestMismatch  = errors.New("certificate: digest does not match contents")
	ErrSessionMismatch = errors.New("certificate: session does not match certificate")
	ErrMissingTitle    = errors.New("certificate: title is required")
)

// Document codes are 12 characters from codeAlphabet.
const (
	codeLength   = 12
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Section is one titled block of certified content.
type Section struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Certificate binds a document and its writing session to a trust tier,
// scores and an Ed25519 signature.
type Certificate struct {
	ID            string                  `json:"id"`
	Title         string                  `json:"title"`
	Sections      []Section               `json:"sections"`
	SessionID     string                  `json:"sessionId"`
	SessionDigest string                  `json:"sessionDigest"`
	IssuedAt      time.Time               `json:"issuedAt"`
	Tier          forensics.Tier          `json:"tier"`
	TierLabel     string                  `json:"tierLabel"`
	Summary       Summary                 `json:"summary"`
	SummaryLine   string                  `json:"summaryLine"`
	Policy        string                  `json:"policy"`
	Metrics       forensics.TypingMetrics `json:"metrics"`
	Badges        []forensics.Badge       `json:"badges"`

	Digest      string `json:"digest"`
	Signature   string `json:"signature"`
	PublicKey   string `json:"publicKey"`
	Fingerprint string `json:"fingerprint"`
}

// Request describes a certificate to issue.
type Request struct {
	Title    string
	Sections []Section
	Session  *tracking.WritingSession

	// Policy scores the session. Defaults to forensics.SelfAuthored.
	Policy *forensics.Policy

	// ID overrides the generated document code.
	ID string

	// IssuedAt defaults to the current time.
	IssuedAt time.Time
}

// Issue scores the sealed session, computes the tier and signs the result.
func Issue(req Request, key ed25519.PrivateKey) (*Certificate, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, ErrMissingTitle
	}
	policy := forensics.SelfAuthored()
	if req.Policy != nil {
		policy = *req.Policy
	}
	metrics, err := forensics.Score(req.Session, "", policy)
	if err != nil {
		return nil, fmt.Errorf("score session: %w", err)
	}
	sessionDigest, err := DigestSession(req.Session)
	if err != nil {
		return nil, err
	}

	id := req.ID
	if id == "" {
		if id, err = NewDocumentCode(); err != nil {
			return nil, err
		}
	}
	issued := req.IssuedAt
	if issued.IsZero() {
		issued = time.Now()
	}

	tier := forensics.Classify(req.Session)
	summary := Summarize(req.Session)
	sections := req.Sections
	if sections == nil {
		sections = []Section{}
	}

	c := &Certificate{
		ID:            id,
		Title:         title,
		Sections:      sections,
		SessionID:     req.Session.ID,
		SessionDigest: sessionDigest,
		IssuedAt:      issued.UTC().Truncate(time.Second),
		Tier:          tier,
		TierLabel:     tier.CertificateLabel(),
		Summary:       summary,
		SummaryLine:   summary.Line(),
		Policy:        policy.Name,
		Metrics:       *metrics,
		Badges:        forensics.Badges(metrics),
	}

	digest, err := c.contentDigest()
	if err != nil {
		return nil, err
	}
	pub := signer.GetPublicKey(key)
	authorized, err := signer.AuthorizedKey(pub)
	if err != nil {
		return nil, err
	}
	c.Digest = hex.EncodeToString(digest)
	c.Signature = base64.StdEncoding.EncodeToString(signer.SignDigest(key, digest))
	c.PublicKey = strings.TrimSpace(string(authorized))
	c.Fingerprint = signer.Fingerprint(pub)
	return c, nil
}

// Verify checks the digest and the signature. With a nil pub the key
// embedded in the certificate is used.
func Verify(c *Certificate, pub ed25519.PublicKey) error {
	if c == nil {
		return ErrDigestMismatch
	}
	digest, err := c.contentDigest()
	if err != nil {
		return err
	}
	if hex.EncodeToString(digest) != c.Digest {
		return ErrDigestMismatch
	}
	if pub == nil {
		if pub, err = signer.ParseAuthorizedKey([]byte(c.PublicKey)); err != nil {
			return fmt.Errorf("certificate public key: %w", err)
		}
	}
	sig, err := base64.StdEncoding.DecodeString(c.Signature)
	if err != nil {
		return fmt.Errorf("%w: %v", signer.ErrSignatureInvalid, err)
	}
	return signer.VerifyDigest(pub, digest, sig)
}

// VerifySession checks that s is the session the certificate was issued
// for and that its tier still computes to the certified one.
func VerifySession(c *Certificate, s *tracking.WritingSession) error {
	digest, err := DigestSession(s)
	if err != nil {
		return err
	}
	if digest != c.SessionDigest {
		return ErrSessionMismatch
	}
	if forensics.Classify(s) != c.Tier {
		return fmt.Errorf("%w: tier differs", ErrSessionMismatch)
	}
	return nil
}

// DigestSession returns the hex SHA-256 of the session's canonical JSON.
func DigestSession(s *tracking.WritingSession) (string, error) {
	if s == nil {
		return "", forensics.ErrSessionNotSealed
	}
	data, err := json.Marshal(s.Clone())
	if err != nil {
		return "", fmt.Errorf("encode session: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// contentDigest hashes every field except the signature block.
func (c *Certificate) contentDigest() ([]byte, error) {
	body := *c
	body.Digest, body.Signature, body.PublicKey, body.Fingerprint = "", "", "", ""
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode certificate: %w", err)
	}
	sum := sha256.Sum256(data)
	return sum[:], nil
}

// NewDocumentCode returns a random 12-character verification code such as
// "AB19F8C392XZ".
func NewDocumentCode() (string, error) {
	return randomString(codeAlphabet, codeLength)
}

// randomString draws n characters from alphabet without modulo bias.
func randomString(alphabet string, n int) (string, error) {
	limit := 256 - 256%len(alphabet)
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("generate document code: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit || len(out) == n {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
		}
	}
	return string(out), nil
}
