package server

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realcv/internal/certificate"
	"realcv/internal/config"
	"realcv/internal/forensics"
	"realcv/internal/portal"
	"realcv/internal/signer"
	"realcv/internal/store"
	"realcv/internal/tracking"
)

var epoch = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

const employerEmail = "hiring@example.com"

type testServer struct {
	*Server
	store *store.Store
	key   ed25519.PrivateKey
	now   *time.Time
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("REALCV_DATA_DIR", dir)

	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}

	st, err := store.Open(filepath.Join(dir, "realcv.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	key, err := signer.GenerateKey()
	require.NoError(t, err)

	now := epoch
	s, err := New(Options{
		Config:     cfg,
		Store:      st,
		SigningKey: key,
		Version:    "test",
		Now:        func() time.Time { return now },
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)

	return &testServer{Server: s, store: st, key: key, now: &now}
}

type call struct {
	method   string
	path     string
	body     any
	employer string
	headers  map[string]string
}

func (ts *testServer) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	switch b := c.body.(type) {
	case nil:
	case string:
		body = strings.NewReader(b)
	case []byte:
		body = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}

	req := httptest.NewRequest(c.method, c.path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.employer != "" {
		req.Header.Set("X-Employer-Email", c.employer)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ts.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (ts *testServer) createSet(t *testing.T) portal.QuestionSet {
	t.Helper()
	rec := ts.do(t, call{
		method:   http.MethodPost,
		path:     "/api/question-sets",
		employer: employerEmail,
		body: map[string]any{
			"title": "Backend Engineer",
			"questions": []map[string]any{
				{"text": "Describe a production incident you handled.", "order": 2},
				{"text": "Why this role?", "order": 1},
			},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[portal.QuestionSet](t, rec)
}

func typedSession(id string) tracking.WritingSession {
	start := epoch.Add(-20 * time.Minute).UnixMilli()
	return tracking.WritingSession{
		ID:              id,
		StartTime:       start,
		EndTime:         start + 12*60_000,
		KeystrokeCount:  900,
		EditCount:       40,
		BackspaceCount:  60,
		PasteEvents:     []tracking.PasteEvent{},
		TotalTypingTime: 10 * 60_000,
		AveragePauseMs:  400,
		LongestPauseMs:  4000,
	}
}

func submission(qs portal.QuestionSet, answer string, sess tracking.WritingSession) map[string]any {
	responses := make([]map[string]any, 0, len(qs.Questions))
	for _, q := range qs.Questions {
		responses = append(responses, map[string]any{
			"questionId": q.ID,
			"question":   q.Text,
			"response":   answer,
			"session":    sess,
			// Client metrics are ignored by the server.
			"metrics": map[string]any{"humanLikelihood": 100, "aiSignatureScore": 0},
		})
	}
	return map[string]any{
		"token":              qs.Token,
		"responses":          responses,
		"candidateEmail":     "candidate@example.com",
		"candidateFirstName": "Sam",
	}
}

// =============================================================================
// Question sets
// =============================================================================

func TestCreateQuestionSetRequiresEmployer(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, call{
		method: http.MethodPost,
		path:   "/api/question-sets",
		body:   map[string]any{"title": "x", "questions": []map[string]any{{"text": "q"}}},
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decode[ErrorResponse](t, rec).Error)
}

func TestCreateQuestionSet(t *testing.T) {
	ts := newTestServer(t, nil)
	qs := ts.createSet(t)

	assert.True(t, strings.HasPrefix(qs.Token, "resp_"))
	assert.Equal(t, employerEmail, qs.CreatedBy)
	assert.True(t, qs.IsActive)
	require.NotNil(t, qs.ExpiresAt)
	assert.Equal(t, epoch.Add(30*24*time.Hour), qs.ExpiresAt.UTC())
	assert.Len(t, qs.Questions, 2)
}

func TestCreateQuestionSetNeverExpires(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(t, call{
		method:   http.MethodPost,
		path:     "/api/question-sets",
		employer: employerEmail,
		body: map[string]any{
			"title":          "Open call",
			"questions":      []map[string]any{{"text": "Tell us about yourself."}},
			"expiresInHours": 0,
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Nil(t, decode[portal.QuestionSet](t, rec).ExpiresAt)
}

func TestCreateQuestionSetRejectsInvalidBody(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name string
		body any
	}{
		{"empty", ""},
		{"not json", "{"},
		{"no questions", map[string]any{"title": "x", "questions": []any{}}},
		{"missing title", map[string]any{"questions": []map[string]any{{"text": "q"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, call{
				method:   http.MethodPost,
				path:     "/api/question-sets",
				employer: employerEmail,
				body:     tt.body,
			})
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestQuestionByToken(t *testing.T) {
	ts := newTestServer(t, nil)
	qs := ts.createSet(t)

	rec := ts.do(t, call{method: http.MethodGet, path: "/api/question/" + qs.Token})
	require.Equal(t, http.StatusOK, rec.Code)

	assert.NotContains(t, rec.Body.String(), employerEmail)
	assert.NotContains(t, rec.Body.String(), "createdBy")

	public := decode[portal.PublicQuestionSet](t, rec)
	require.Len(t, public.Questions, 2)
	assert.Equal(t, "Why this role?", public.Questions[0].Text)
	assert.Equal(t, 1, public.Questions[0].Order)
}

func TestQuestionByTokenErrors(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, call{method: http.MethodGet, path: "/api/question/resp_unknown"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	qs := ts.createSet(t)
	rec = ts.do(t, call{method: http.MethodDelete, path: "/api/question-sets/" + qs.ID, employer: "someone@else.com"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, call{method: http.MethodDelete, path: "/api/question-sets/" + qs.ID, employer: employerEmail})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, call{method: http.MethodGet, path: "/api/question/" + qs.Token})
	assert.Equal(t, http.StatusGone, rec.Code)
	assert.Equal(t, "question set inactive", decode[ErrorResponse](t, rec).Error)
}

func TestQuestionByTokenExpired(t *testing.T) {
	ts := newTestServer(t, nil)
	qs := ts.createSet(t)

	*ts.now = epoch.Add(31 * 24 * time.Hour)

	rec := ts.do(t, call{method: http.MethodGet, path: "/api/question/" + qs.Token})
	assert.Equal(t, http.StatusGone, rec.Code)
	assert.Equal(t, "question set expired", decode[ErrorResponse](t, rec).Error)
}

func TestListQuestionSets(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, call{method: http.MethodGet, path: "/api/question-sets", employer: employerEmail})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	qs := ts.createSet(t)
	rec = ts.do(t, call{method: http.MethodGet, path: "/api/question-sets", employer: employerEmail})
	require.Equal(t, http.StatusOK, rec.Code)
	sets := decode[[]portal.QuestionSet](t, rec)
	require.Len(t, sets, 1)
	assert.Equal(t, qs.ID, sets[0].ID)

	rec = ts.do(t, call{method: http.MethodGet, path: "/api/question-sets", employer: "someone@else.com"})
	assert.JSONEq(t, "[]", rec.Body.String())
}

// =============================================================================
// Submissions
// =============================================================================

func TestSubmitResponseScoresServerSide(t *testing.T) {
	ts := newTestServer(t, nil)
	qs := ts.createSet(t)

	answer := "I led the rollback of a failed schema migration and wrote the follow-up review."
	sess := typedSession("answer-1")

	rec := ts.do(t, call{
		method:  http.MethodPost,
		path:    "/api/submit-response",
		body:    submission(qs, answer, sess),
		headers: map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1", "User-Agent": "test-agent"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res := decode[submitResponseResult](t, rec)
	assert.True(t, res.Success)
	assert.Equal(t, "Response submitted successfully", res.Message)
	require.NotNil(t, res.Submission)
	assert.Equal(t, res.SubmissionID, res.Submission.ID)
	assert.Equal(t, "203.0.113.7", res.Submission.IPAddress)
	assert.Equal(t, "test-agent", res.Submission.UserAgent)
	assert.Equal(t, qs.ID, res.Submission.QuestionSetID)

	want, err := forensics.Score(tracking.Normalize(&sess, answer, epoch), answer, forensics.ThirdPartyResponse())
	require.NoError(t, err)
	require.Len(t, res.Submission.Responses, 2)
	for _, r := range res.Submission.Responses {
		assert.Equal(t, want.HumanLikelihood, r.Metrics.HumanLikelihood)
		assert.Equal(t, want.AISignatureScore, r.Metrics.AISignatureScore)
	}
	assert.InDelta(t, float64(want.HumanLikelihood), res.Submission.OverallScore, 0.001)
}

func TestSubmitResponseRejectsInvalid(t *testing.T) {
	ts := newTestServer(t, nil)
	qs := ts.createSet(t)

	body := submission(qs, "answer", typedSession("a"))
	body["token"] = "resp_doesnotexist"
	rec := ts.do(t, call{method: http.MethodPost, path: "/api/submit-response", body: body})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, call{method: http.MethodPost, path: "/api/submit-response", body: map[string]any{
		"token":     qs.Token,
		"responses": []any{},
	}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body = submission(qs, "answer", typedSession("a"))
	body["responses"].([]map[string]any)[0]["questionId"] = "q_unknown"
	rec = ts.do(t, call{method: http.MethodPost, path: "/api/submit-response", body: body})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmissionOwnership(t *testing.T) {
	ts := newTestServer(t, nil)
	qs := ts.createSet(t)

	rec := ts.do(t, call{method: http.MethodPost, path: "/api/submit-response", body: submission(qs, "answer", typedSession("a"))})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	id := decode[submitResponseResult](t, rec).SubmissionID

	rec = ts.do(t, call{method: http.MethodGet, path: "/api/submissions/" + id, employer: employerEmail})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, decode[portal.CandidateSubmission](t, rec).ID)

	rec = ts.do(t, call{method: http.MethodGet, path: "/api/submissions/" + id, employer: "someone@else.com"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, call{method: http.MethodGet, path: "/api/submissions/" + id})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, call{method: http.MethodGet, path: "/api/question-sets/" + qs.ID + "/submissions", employer: employerEmail})
	require.Equal(t, http.StatusOK, rec.Code)
	subs := decode[[]portal.CandidateSubmission](t, rec)
	require.Len(t, subs, 1)
	assert.Equal(t, id, subs[0].ID)

	rec = ts.do(t, call{method: http.MethodGet, path: "/api/question-sets/" + qs.ID + "/submissions", employer: "someone@else.com"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitResponseRateLimited(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) {
		c.Server.RateLimitPerMinute = 1
		c.Server.RateLimitBurst = 1
	})

	rec := ts.do(t, call{method: http.MethodPost, path: "/api/submit-response", body: "{}"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, call{method: http.MethodPost, path: "/api/submit-response", body: "{}"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	// A different client has its own budget.
	rec = ts.do(t, call{
		method:  http.MethodPost,
		path:    "/api/submit-response",
		body:    "{}",
		headers: map[string]string{"X-Forwarded-For": "198.51.100.2"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// Sessions
// =============================================================================

func TestSessionLifecycle(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, call{method: http.MethodGet, path: "/api/sessions/doc-1"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	sess := typedSession("")
	sess.EndTime = 0
	rec = ts.do(t, call{method: http.MethodPost, path: "/api/sessions/doc-1", body: sess})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "doc-1", decode[tracking.WritingSession](t, rec).ID)

	rec = ts.do(t, call{method: http.MethodGet, path: "/api/sessions/doc-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	loaded := decode[tracking.WritingSession](t, rec)
	assert.Equal(t, 900, loaded.KeystrokeCount)
	assert.False(t, loaded.Sealed())

	rec = ts.do(t, call{method: http.MethodDelete, path: "/api/sessions/doc-1"})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, call{method: http.MethodGet, path: "/api/sessions/doc-1"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, call{method: http.MethodDelete, path: "/api/sessions/doc-1"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestSaveSessionIDMismatch(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, call{method: http.MethodPost, path: "/api/sessions/doc-1", body: typedSession("doc-2")})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, call{method: http.MethodPost, path: "/api/sessions/doc-1", body: map[string]any{"startTime": "yesterday"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestBodyTooLarge(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) {
		c.Server.MaxRequestBytes = 1024
	})

	sess := typedSession("doc-1")
	sess.FinalText = strings.Repeat("a", 4096)
	rec := ts.do(t, call{method: http.MethodPost, path: "/api/sessions/doc-1", body: sess})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

// =============================================================================
// Certificates
// =============================================================================

func (ts *testServer) issue(t *testing.T, sessionID string) certificate.Certificate {
	t.Helper()
	rec := ts.do(t, call{method: http.MethodPost, path: "/api/certificates", body: map[string]any{
		"title":     "Jordan Lee - Resume",
		"sessionId": sessionID,
		"sections": []map[string]any{
			{"title": "Experience", "content": "Built the payments ledger."},
		},
	}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[certificate.Certificate](t, rec)
}

func TestIssueAndVerifyCertificate(t *testing.T) {
	ts := newTestServer(t, nil)

	sess := typedSession("resume")
	rec := ts.do(t, call{method: http.MethodPost, path: "/api/sessions/resume", body: sess})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	c := ts.issue(t, "resume")
	assert.Equal(t, "resume", c.SessionID)
	assert.Equal(t, epoch, c.IssuedAt.UTC())
	assert.Equal(t, forensics.Classify(&sess), c.Tier)
	require.NoError(t, certificate.Verify(&c, signer.GetPublicKey(ts.key)))

	rec = ts.do(t, call{method: http.MethodGet, path: "/api/certificates/" + c.ID})
	require.Equal(t, http.StatusOK, rec.Code)
	v := decode[Verification](t, rec)
	assert.True(t, v.Valid)
	assert.True(t, v.SignatureValid)
	assert.True(t, v.SessionAvailable)
	assert.True(t, v.SessionMatches)
	assert.Empty(t, v.Problems)
	assert.Equal(t, c.Tier, v.Tier)
	assert.Equal(t, c.Metrics.HumanLikelihood, v.Metrics.HumanLikelihood)

	rec = ts.do(t, call{method: http.MethodGet, path: "/api/certificates/" + c.ID + "/text"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, rec.Body.String(), "Jordan Lee - Resume")
	assert.Contains(t, rec.Body.String(), "Document Code: "+c.ID)
}

func TestVerifyDetectsChangedSession(t *testing.T) {
	ts := newTestServer(t, nil)

	sess := typedSession("resume")
	rec := ts.do(t, call{method: http.MethodPost, path: "/api/sessions/resume", body: sess})
	require.Equal(t, http.StatusOK, rec.Code)
	c := ts.issue(t, "resume")

	sess.KeystrokeCount = 5
	sess.PasteEvents = []tracking.PasteEvent{{Timestamp: sess.StartTime + 1000, TextLength: 900}}
	rec = ts.do(t, call{method: http.MethodPost, path: "/api/sessions/resume", body: sess})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, call{method: http.MethodGet, path: "/api/certificates/" + c.ID})
	require.Equal(t, http.StatusOK, rec.Code)
	v := decode[Verification](t, rec)
	assert.False(t, v.Valid)
	assert.True(t, v.SignatureValid)
	assert.True(t, v.SessionAvailable)
	assert.False(t, v.SessionMatches)
	assert.NotEmpty(t, v.Problems)
}

func TestVerifyWithoutStoredSession(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, call{method: http.MethodPost, path: "/api/sessions/resume", body: typedSession("resume")})
	require.Equal(t, http.StatusOK, rec.Code)
	c := ts.issue(t, "resume")

	rec = ts.do(t, call{method: http.MethodDelete, path: "/api/sessions/resume"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, call{method: http.MethodGet, path: "/api/certificates/" + c.ID})
	require.Equal(t, http.StatusOK, rec.Code)
	v := decode[Verification](t, rec)
	assert.True(t, v.Valid)
	assert.False(t, v.SessionAvailable)
	assert.Equal(t, c.TierLabel, v.TierLabel)
}

func TestIssueCertificateErrors(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, call{method: http.MethodPost, path: "/api/certificates", body: map[string]any{
		"title": "Resume", "sessionId": "missing",
	}})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	open := typedSession("draft")
	open.EndTime = 0
	rec = ts.do(t, call{method: http.MethodPost, path: "/api/sessions/draft", body: open})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, call{method: http.MethodPost, path: "/api/certificates", body: map[string]any{
		"title": "Resume", "sessionId": "draft",
	}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, call{method: http.MethodPost, path: "/api/certificates", body: map[string]any{
		"sessionId": "draft",
	}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, call{method: http.MethodGet, path: "/api/certificates/UNKNOWN"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// Operational endpoints
// =============================================================================

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, call{method: http.MethodGet, path: "/health"})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status     string         `json:"status"`
		Version    string         `json:"version"`
		Components map[string]any `json:"components"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "test", body.Version)
	assert.Contains(t, body.Components, "database")
	assert.Contains(t, body.Components, "data_dir")
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.createSet(t)

	rec := ts.do(t, call{method: http.MethodGet, path: "/metrics"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "realcv_portal_question_sets_created_total 1")
	assert.Contains(t, rec.Body.String(), "realcv_http_requests_total")
}

func TestRequestID(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, call{method: http.MethodGet, path: "/api/sessions/none"})
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	rec = ts.do(t, call{
		method:  http.MethodGet,
		path:    "/api/sessions/none",
		headers: map[string]string{requestIDHeader: "req-123"},
	})
	assert.Equal(t, "req-123", rec.Header().Get(requestIDHeader))
}

func TestApplyConfig(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) {
		c.Server.RateLimitPerMinute = 0
	})

	for range 3 {
		rec := ts.do(t, call{method: http.MethodPost, path: "/api/submit-response", body: "{}"})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	}

	old := ts.config()
	next := old.Clone()
	next.Server.RateLimitPerMinute = 1
	next.Server.RateLimitBurst = 1
	next.Server.ListenAddr = "127.0.0.1:9999"
	next.Logging.Level = "debug"
	ts.ApplyConfig(old, next)

	rec := ts.do(t, call{method: http.MethodPost, path: "/api/submit-response", body: "{}"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = ts.do(t, call{method: http.MethodPost, path: "/api/submit-response", body: "{}"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	assert.Equal(t, 1, ts.config().Server.RateLimitPerMinute)
	assert.Equal(t, old.Server.ListenAddr, ts.config().Server.ListenAddr, "listen address needs a restart")
}
