package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realcv/internal/certificate"
	"realcv/internal/keystroke"
	"realcv/internal/portal"
	"realcv/internal/signer"
	"realcv/internal/tracking"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "realcv.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleSession(id string) *tracking.WritingSession {
	start := int64(1_750_000_000_000)
	return &tracking.WritingSession{
		ID:              id,
		StartTime:       start,
		EndTime:         start + 20*60_000,
		KeystrokeCount:  4,
		EditCount:       1,
		BackspaceCount:  1,
		PasteEvents:     []tracking.PasteEvent{{Timestamp: start + 500, TextLength: 40}},
		TotalTypingTime: 16 * 60_000,
		AveragePauseMs:  250,
		LongestPauseMs:  900,
		TextLength:      11,
		FinalText:       "Hello world",
		WordCount:       2,
		Events: []keystroke.InputEvent{
			{Timestamp: start, Kind: keystroke.KindKeyDown, TextLength: 1},
			{Timestamp: start + 200, Kind: keystroke.KindBackspace, TextLength: 0},
			{Timestamp: start + 500, Kind: keystroke.KindPaste, TextLength: 40},
		},
	}
}

// =============================================================================
// Tests for sqlite.go and migrations.go
// =============================================================================

func TestOpenAndClose(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	assert.NoError(t, s.Ping())
	assert.NoError(t, s.Close())
}

func TestOpenCreatesDirectory(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "subdir", "nested", "test.db"))
	require.NoError(t, err)
	defer s.Close()
	assert.NoError(t, ValidateSchema(s.DB()))
}

func TestCloseNilDB(t *testing.T) {
	s := &Store{db: nil}
	assert.NoError(t, s.Close())
	assert.Error(t, s.Ping())
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveSession(sampleSession("persist")))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.LoadSession("persist")
	require.NoError(t, err)
	assert.Equal(t, "Hello world", got.FinalText)
}

func TestMigrationStatusAndRollback(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	status, err := GetMigrationStatus(db)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), status.CurrentVersion)
	assert.Equal(t, len(migrations), status.LatestVersion)
	assert.Empty(t, status.Pending)
	assert.Len(t, status.Applied, len(migrations))

	require.NoError(t, RollbackMigration(db))
	assert.Error(t, ValidateSchema(db), "certificates table should be gone")

	status, err = GetMigrationStatus(db)
	require.NoError(t, err)
	assert.Equal(t, len(migrations)-1, status.CurrentVersion)
	require.Len(t, status.Pending, 1)
	assert.Equal(t, "Signed certificates", status.Pending[0].Description)

	require.NoError(t, MigrateDB(db))
	assert.NoError(t, ValidateSchema(db))
}

func TestRollbackEverything(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()
	for range migrations {
		require.NoError(t, RollbackMigration(db))
	}
	assert.Error(t, RollbackMigration(db))
}

func TestMigrationStatusWithoutTable(t *testing.T) {
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	defer db.Close()

	status, err := GetMigrationStatus(db)
	require.NoError(t, err)
	assert.Equal(t, 0, status.CurrentVersion)
	assert.Len(t, status.Pending, len(migrations))
}

// =============================================================================
// Tests for sessions.go
// =============================================================================

func TestSessionSaveLoad(t *testing.T) {
	s := openTestStore(t)
	want := sampleSession("resume-1")

	require.NoError(t, s.SaveSession(want))
	got, err := s.LoadSession("resume-1")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSessionLastWriteWins(t *testing.T) {
	s := openTestStore(t)
	first := sampleSession("resume-1")
	first.EndTime = 0
	require.NoError(t, s.SaveSession(first))

	second := sampleSession("resume-1")
	second.KeystrokeCount = 99
	require.NoError(t, s.SaveSession(second))

	got, err := s.LoadSession("resume-1")
	require.NoError(t, err)
	assert.Equal(t, 99, got.KeystrokeCount)
	assert.True(t, got.Sealed())

	ids, err := s.ListSessions()
	require.NoError(t, err)
	assert.Equal(t, []string{"resume-1"}, ids)
}

func TestSessionNotFoundAndDelete(t *testing.T) {
	s := openTestStore(t)
	_, err := s.LoadSession("missing")
	assert.ErrorIs(t, err, tracking.ErrNotFound)

	require.NoError(t, s.SaveSession(sampleSession("gone")))
	require.NoError(t, s.DeleteSession("gone"))
	require.NoError(t, s.DeleteSession("gone"))
	_, err = s.LoadSession("gone")
	assert.ErrorIs(t, err, tracking.ErrNotFound)

	assert.Error(t, s.SaveSession(&tracking.WritingSession{}))
}

func TestSessionLegacyBody(t *testing.T) {
	s := openTestStore(t)
	_, err := s.DB().Exec(
		"INSERT INTO writing_sessions (id, start_time, updated_at, body) VALUES (?, ?, ?, ?)",
		"old", 1000, 1000, `{"startTime":1000,"keystrokes":12,"edits":3,"pasteEvents":2}`)
	require.NoError(t, err)

	got, err := s.LoadSession("old")
	require.NoError(t, err)
	assert.Equal(t, "old", got.ID)
	assert.Equal(t, 12, got.KeystrokeCount)
	assert.Equal(t, 3, got.EditCount)
	assert.Len(t, got.PasteEvents, 2)
}

func TestRecorderPersistsToStore(t *testing.T) {
	s := openTestStore(t)
	r := tracking.NewRecorder(tracking.Config{ID: "live", Store: s})
	r.Start()
	r.RecordKeystroke("a", "a")
	r.RecordKeystroke("b", "ab")
	r.Close()

	got, err := s.LoadSession("live")
	require.NoError(t, err)
	assert.Equal(t, 2, got.KeystrokeCount)
	assert.False(t, got.Sealed())
}

// =============================================================================
// Tests for portal.go
// =============================================================================

func sampleQuestionSet(id, token string) *portal.QuestionSet {
	expires := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	return &portal.QuestionSet{
		ID:        id,
		Token:     token,
		Title:     "Backend Engineer",
		CreatedBy: "hiring@example.com",
		CreatedAt: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
		ExpiresAt: &expires,
		IsActive:  true,
		Questions: []portal.Question{
			{ID: "q2", Text: "Second", Order: 2},
			{ID: "q1", Text: "First", Order: 1},
		},
	}
}

func TestQuestionSetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	qs := sampleQuestionSet("qs_1", "resp_abc")
	require.NoError(t, s.InsertQuestionSet(ctx, qs))

	got, err := s.QuestionSet(ctx, "qs_1")
	require.NoError(t, err)
	assert.Equal(t, qs.Title, got.Title)
	assert.Equal(t, qs.CreatedAt, got.CreatedAt)
	require.NotNil(t, got.ExpiresAt)
	assert.Equal(t, *qs.ExpiresAt, *got.ExpiresAt)
	require.Len(t, got.Questions, 2)
	assert.Equal(t, "q1", got.Questions[0].ID, "questions come back in order")

	byToken, err := s.QuestionSetByToken(ctx, "resp_abc")
	require.NoError(t, err)
	assert.Equal(t, "qs_1", byToken.ID)

	_, err = s.QuestionSetByToken(ctx, "resp_none")
	assert.ErrorIs(t, err, portal.ErrNotFound)
	_, err = s.QuestionSet(ctx, "qs_none")
	assert.ErrorIs(t, err, portal.ErrNotFound)

	assert.Error(t, s.InsertQuestionSet(ctx, sampleQuestionSet("qs_2", "resp_abc")), "tokens are unique")
}

func TestQuestionSetWithoutExpiry(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	qs := sampleQuestionSet("qs_1", "resp_abc")
	qs.ExpiresAt = nil
	require.NoError(t, s.InsertQuestionSet(ctx, qs))

	got, err := s.QuestionSet(ctx, "qs_1")
	require.NoError(t, err)
	assert.Nil(t, got.ExpiresAt)
}

func TestQuestionSetsByCreatorAndActive(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	older := sampleQuestionSet("qs_old", "resp_old")
	newer := sampleQuestionSet("qs_new", "resp_new")
	newer.CreatedAt = older.CreatedAt.Add(time.Hour)
	other := sampleQuestionSet("qs_other", "resp_other")
	other.CreatedBy = "else@example.com"
	for _, qs := range []*portal.QuestionSet{older, newer, other} {
		require.NoError(t, s.InsertQuestionSet(ctx, qs))
	}

	sets, err := s.QuestionSetsByCreator(ctx, "hiring@example.com")
	require.NoError(t, err)
	require.Len(t, sets, 2)
	assert.Equal(t, "qs_new", sets[0].ID)
	assert.Len(t, sets[1].Questions, 2)

	require.NoError(t, s.SetQuestionSetActive(ctx, "qs_old", false))
	got, err := s.QuestionSet(ctx, "qs_old")
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	assert.ErrorIs(t, s.SetQuestionSetActive(ctx, "qs_none", false), portal.ErrNotFound)
}

func TestPortalServiceOnStore(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := portal.NewService(s, portal.Options{Now: func() time.Time { return now }})

	qs, err := svc.CreateQuestionSet(ctx, portal.CreateRequest{
		Title:     "Role",
		Questions: []portal.QuestionInput{{Text: "Why?"}},
		CreatedBy: "hiring@example.com",
	})
	require.NoError(t, err)

	session := `{"startTime":1780300000000,"endTime":1780300600000,"keystrokeCount":500,` +
		`"editCount":20,"backspaceCount":30,"pasteEvents":[],"totalTypingTime":400000}`
	sub, err := svc.Submit(ctx, portal.SubmissionRequest{
		Token: qs.Token,
		Responses: []portal.ResponseInput{{
			QuestionID: qs.Questions[0].ID,
			Response:   "Because the team ships careful software.",
			Session:    []byte(session),
		}},
		CandidateEmail: "cand@example.com",
	}, portal.ClientInfo{IPAddress: "198.51.100.7", UserAgent: "test"})
	require.NoError(t, err)

	stored, err := s.Submission(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, sub.OverallScore, stored.OverallScore)
	assert.Equal(t, sub.Flags, stored.Flags)
	assert.Equal(t, "198.51.100.7", stored.IPAddress)
	assert.Equal(t, "cand@example.com", stored.CandidateEmail)
	require.Len(t, stored.Responses, 1)
	assert.Equal(t, sub.Responses[0].Metrics, stored.Responses[0].Metrics)
	assert.Equal(t, sub.Responses[0].Session, stored.Responses[0].Session)
	assert.Equal(t, sub.SubmittedAt, stored.SubmittedAt)

	list, err := svc.SubmissionsForSet(ctx, qs.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, sub.ID, list[0].ID)

	_, err = s.Submission(ctx, "sub_none")
	assert.ErrorIs(t, err, portal.ErrNotFound)

	empty, err := s.SubmissionsForSet(ctx, "qs_none")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSubmissionRequiresQuestionSet(t *testing.T) {
	s := openTestStore(t)
	err := s.InsertSubmission(context.Background(), &portal.CandidateSubmission{
		ID:            "sub_1",
		QuestionSetID: "qs_missing",
		Token:         "resp_x",
		SubmittedAt:   time.Now(),
	})
	assert.Error(t, err, "foreign keys are enforced")
}

// =============================================================================
// Tests for certificates.go and verify.go
// =============================================================================

func issueStored(t *testing.T, s *Store, sessionID string) (*certificate.Certificate, *tracking.WritingSession) {
	t.Helper()
	ws := sampleSession(sessionID)
	require.NoError(t, s.SaveSession(ws))
	key, err := signer.GenerateKey()
	require.NoError(t, err)
	c, err := certificate.Issue(certificate.Request{Title: "Jane Doe", Session: ws}, key)
	require.NoError(t, err)
	require.NoError(t, s.SaveCertificate(context.Background(), c))
	return c, ws
}

func TestCertificateSaveGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	c, _ := issueStored(t, s, "resume-1")

	got, err := s.Certificate(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.Digest, got.Digest)
	assert.Equal(t, c.IssuedAt, got.IssuedAt)
	assert.NoError(t, certificate.Verify(got, nil))

	assert.Error(t, s.SaveCertificate(ctx, c), "certificates are immutable")

	_, err = s.Certificate(ctx, "NOPE")
	assert.ErrorIs(t, err, ErrNotFound)

	ids, err := s.CertificatesForSession(ctx, "resume-1")
	require.NoError(t, err)
	assert.Equal(t, []string{c.ID}, ids)
}

func TestVerifyAllCertificates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	good, _ := issueStored(t, s, "good")
	bad, badSession := issueStored(t, s, "bad")

	corrupted, err := s.VerifyAllCertificates(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, corrupted)

	// Rewriting the session after issue breaks only that certificate.
	badSession.KeystrokeCount += 10
	require.NoError(t, s.SaveSession(badSession))

	corrupted, err = s.VerifyAllCertificates(ctx, nil)
	require.NoError(t, err)
	require.Len(t, corrupted, 1)
	assert.Equal(t, bad.ID, corrupted[0].CertificateID)
	assert.ErrorIs(t, corrupted[0].Err, certificate.ErrSessionMismatch)

	_, err = s.VerifyCertificate(ctx, good.ID, nil)
	assert.NoError(t, err)

	// A certificate whose session was reset still verifies on its own.
	require.NoError(t, s.DeleteSession("good"))
	_, err = s.VerifyCertificate(ctx, good.ID, nil)
	assert.NoError(t, err)
}

func TestVerifyDetectsEditedRow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	c, _ := issueStored(t, s, "resume-1")

	_, err := s.DB().Exec(
		"UPDATE certificates SET body = json_set(body, '$.tier', 3) WHERE id = ?", c.ID)
	require.NoError(t, err)

	_, err = s.VerifyCertificate(ctx, c.ID, nil)
	assert.ErrorIs(t, err, certificate.ErrDigestMismatch)
}
