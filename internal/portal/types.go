// Package portal runs employer question sets and candidate submissions.
//
// Candidates answer questions in a tracked editor and submit their raw
// writing sessions. Scores are always computed here, server-side, from the
// normalized telemetry; scores a client sends along are discarded.
package portal

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"realcv/internal/forensics"
	"realcv/internal/tracking"
)

// Errors
var (
	ErrNotFound            = errors.New("portal: not found")
	ErrQuestionSetExpired  = errors.New("portal: question set expired")
	ErrQuestionSetInactive = errors.New("portal: question set inactive")
	ErrInvalidSubmission   = errors.New("portal: invalid submission")
	ErrInvalidQuestionSet  = errors.New("portal: invalid question set")
	ErrNotOwner            = errors.New("portal: question set belongs to another employer")
)

// Question is one prompt in a question set.
type Question struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Order int    `json:"order"`
}

// QuestionSet is an employer's list of questions, shared with candidates
// through its token.
type QuestionSet struct {
	ID        string     `json:"id"`
	Token     string     `json:"token"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
	CreatedBy string     `json:"createdBy"`
	CreatedAt time.Time  `json:"createdAt"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	IsActive  bool       `json:"isActive"`
}

// Expired reports whether the set has expired at now.
func (qs *QuestionSet) Expired(now time.Time) bool {
	return qs.ExpiresAt != nil && qs.ExpiresAt.Before(now)
}

// Question returns the question with the given id.
func (qs *QuestionSet) Question(id string) (Question, bool) {
	for _, q := range qs.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// PublicQuestionSet is the candidate-facing view of a set. It carries no
// employer data.
type PublicQuestionSet struct {
	ID        string     `json:"id"`
	Token     string     `json:"token"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
	IsActive  bool       `json:"isActive"`
}

// Public returns the candidate view with questions sorted by order.
func (qs *QuestionSet) Public() PublicQuestionSet {
	questions := append([]Question(nil), qs.Questions...)
	sort.SliceStable(questions, func(i, j int) bool {
		return questions[i].Order < questions[j].Order
	})
	return PublicQuestionSet{
		ID:        qs.ID,
		Token:     qs.Token,
		Title:     qs.Title,
		Questions: questions,
		IsActive:  qs.IsActive,
	}
}

// ResponseData is one scored answer inside a submission.
type ResponseData struct {
	QuestionID  string                   `json:"questionId"`
	Question    string                   `json:"question"`
	Response    string                   `json:"response"`
	Metrics     forensics.TypingMetrics  `json:"metrics"`
	Session     *tracking.WritingSession `json:"session"`
	Tier        forensics.Tier           `json:"tier"`
	SubmittedAt time.Time                `json:"submittedAt"`
}

// CandidateSubmission is a candidate's complete set of answers.
type CandidateSubmission struct {
	ID                 string         `json:"id"`
	QuestionSetID      string         `json:"questionSetId"`
	Token              string         `json:"token"`
	CandidateEmail     string         `json:"candidateEmail,omitempty"`
	CandidateFirstName string         `json:"candidateFirstName,omitempty"`
	CandidateLastName  string         `json:"candidateLastName,omitempty"`
	Responses          []ResponseData `json:"responses"`
	SubmittedAt        time.Time      `json:"submittedAt"`
	IPAddress          string         `json:"ipAddress,omitempty"`
	UserAgent          string         `json:"userAgent,omitempty"`
	OverallScore       float64        `json:"overallScore"`
	Flags              []string       `json:"flags"`
}

// QuestionInput is a question supplied when creating a set.
type QuestionInput struct {
	Text  string `json:"text"`
	Order int    `json:"order"`
}

// CreateRequest creates a question set. A zero ExpiresIn uses the service
// default; a negative one means the set never expires.
type CreateRequest struct {
	Title     string          `json:"title"`
	Questions []QuestionInput `json:"questions"`
	CreatedBy string          `json:"-"`
	ExpiresIn time.Duration   `json:"-"`
}

// SubmissionRequest is the body a candidate posts.
type SubmissionRequest struct {
	Token              string          `json:"token"`
	Responses          []ResponseInput `json:"responses"`
	CandidateEmail     string          `json:"candidateEmail,omitempty"`
	CandidateFirstName string          `json:"candidateFirstName,omitempty"`
	CandidateLastName  string          `json:"candidateLastName,omitempty"`
}

// ResponseInput is one raw answer. Session holds the client's telemetry in
// any supported session shape. Any metrics the client computed are ignored.
type ResponseInput struct {
	QuestionID string          `json:"questionId"`
	Question   string          `json:"question,omitempty"`
	Response   string          `json:"response"`
	Session    json.RawMessage `json:"session"`
	Metrics    json.RawMessage `json:"metrics,omitempty"`
}

// ClientInfo describes the submitting client.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

// Repository persists question sets and submissions. Lookups of missing
// records return an error wrapping ErrNotFound.
type Repository interface {
	InsertQuestionSet(ctx context.Context, qs *QuestionSet) error
	QuestionSet(ctx context.Context, id string) (*QuestionSet, error)
	QuestionSetByToken(ctx context.Context, token string) (*QuestionSet, error)
	QuestionSetsByCreator(ctx context.Context, createdBy string) ([]QuestionSet, error)
	SetQuestionSetActive(ctx context.Context, id string, active bool) error

	InsertSubmission(ctx context.Context, sub *CandidateSubmission) error
	Submission(ctx context.Context, id string) (*CandidateSubmission, error)
	SubmissionsForSet(ctx context.Context, questionSetID string) ([]CandidateSubmission, error)
}

// ScoreObserver is notified of every server-side score.
type ScoreObserver interface {
	ObserveScore(preset string, tier forensics.Tier, m *forensics.TypingMetrics)
}
