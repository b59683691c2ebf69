package portal

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"realcv/internal/forensics"
	"realcv/internal/tracking"
)

// Defaults for Options.
const (
	DefaultTokenPrefix = "resp_"
	DefaultExpiry      = 30 * 24 * time.Hour

	tokenLength    = 20
	tokenAlphabet  = "0123456789abcdefghijklmnopqrstuvwxyz"
	setIDPrefix    = "qs_"
	submissionPref = "sub_"
	questionPrefix = "q_"

	maxQuestions    = 50
	maxTitleLength  = 200
	maxQuestionText = 2000
)

// Options configures a Service.
type Options struct {
	Logger *slog.Logger

	// Now defaults to time.Now.
	Now func() time.Time

	// Policy scores candidate responses. Defaults to
	// forensics.ThirdPartyResponse.
	Policy *forensics.Policy

	// TokenPrefix defaults to DefaultTokenPrefix.
	TokenPrefix string

	// DefaultExpiry applies when a create request sets no expiry. Zero
	// means DefaultExpiry; negative means sets never expire by default.
	DefaultExpiry time.Duration

	// Observer receives every computed score. Optional.
	Observer ScoreObserver
}

// Service implements the question portal on top of a Repository.
type Service struct {
	repo   Repository
	log    *slog.Logger
	now    func() time.Time
	policy forensics.Policy
	prefix string
	expiry time.Duration
	obs    ScoreObserver
}

// NewService creates a portal service.
func NewService(repo Repository, opts Options) *Service {
	s := &Service{
		repo:   repo,
		log:    opts.Logger,
		now:    opts.Now,
		policy: forensics.ThirdPartyResponse(),
		prefix: opts.TokenPrefix,
		expiry: opts.DefaultExpiry,
		obs:    opts.Observer,
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if opts.Policy != nil {
		s.policy = *opts.Policy
	}
	if s.prefix == "" {
		s.prefix = DefaultTokenPrefix
	}
	if s.expiry == 0 {
		s.expiry = DefaultExpiry
	}
	return s
}

// Policy returns the policy used to score responses.
func (s *Service) Policy() forensics.Policy { return s.policy }

// CreateQuestionSet stores a new active question set and returns it with
// its shareable token.
func (s *Service) CreateQuestionSet(ctx context.Context, req CreateRequest) (*QuestionSet, error) {
	title := strings.TrimSpace(req.Title)
	switch {
	case title == "":
		return nil, fmt.Errorf("%w: title is required", ErrInvalidQuestionSet)
	case len(title) > maxTitleLength:
		return nil, fmt.Errorf("%w: title exceeds %d characters", ErrInvalidQuestionSet, maxTitleLength)
	case strings.TrimSpace(req.CreatedBy) == "":
		return nil, fmt.Errorf("%w: creator is required", ErrInvalidQuestionSet)
	case len(req.Questions) == 0:
		return nil, fmt.Errorf("%w: at least one question is required", ErrInvalidQuestionSet)
	case len(req.Questions) > maxQuestions:
		return nil, fmt.Errorf("%w: at most %d questions", ErrInvalidQuestionSet, maxQuestions)
	}

	questions := make([]Question, 0, len(req.Questions))
	for i, in := range req.Questions {
		text := strings.TrimSpace(in.Text)
		if text == "" {
			return nil, fmt.Errorf("%w: question %d is empty", ErrInvalidQuestionSet, i+1)
		}
		if len(text) > maxQuestionText {
			return nil, fmt.Errorf("%w: question %d exceeds %d characters", ErrInvalidQuestionSet, i+1, maxQuestionText)
		}
		order := in.Order
		if order == 0 {
			order = i + 1
		}
		questions = append(questions, Question{ID: questionPrefix + uuid.NewString(), Text: text, Order: order})
	}

	token, err := NewToken(s.prefix)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	qs := &QuestionSet{
		ID:        setIDPrefix + uuid.NewString(),
		Token:     token,
		Title:     title,
		Questions: questions,
		CreatedBy: strings.TrimSpace(req.CreatedBy),
		CreatedAt: now,
		IsActive:  true,
	}
	expiry := req.ExpiresIn
	if expiry == 0 {
		expiry = s.expiry
	}
	if expiry > 0 {
		at := now.Add(expiry)
		qs.ExpiresAt = &at
	}

	if err := s.repo.InsertQuestionSet(ctx, qs); err != nil {
		return nil, fmt.Errorf("store question set: %w", err)
	}
	s.log.Info("question set created",
		slog.String("question_set_id", qs.ID),
		slog.Int("questions", len(qs.Questions)))
	return qs, nil
}

// QuestionSetByToken returns an open question set. Inactive and expired
// sets are reported with ErrQuestionSetInactive and ErrQuestionSetExpired.
func (s *Service) QuestionSetByToken(ctx context.Context, token string) (*QuestionSet, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: token is required", ErrNotFound)
	}
	qs, err := s.repo.QuestionSetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if !qs.IsActive {
		return nil, ErrQuestionSetInactive
	}
	if qs.Expired(s.now()) {
		return nil, ErrQuestionSetExpired
	}
	return qs, nil
}

// QuestionSetsFor lists the sets created by one employer.
func (s *Service) QuestionSetsFor(ctx context.Context, createdBy string) ([]QuestionSet, error) {
	return s.repo.QuestionSetsByCreator(ctx, createdBy)
}

// Deactivate closes a set to new submissions. Only its creator may do so.
func (s *Service) Deactivate(ctx context.Context, id, requestedBy string) error {
	qs, err := s.repo.QuestionSet(ctx, id)
	if err != nil {
		return err
	}
	if qs.CreatedBy != requestedBy {
		return ErrNotOwner
	}
	if err := s.repo.SetQuestionSetActive(ctx, id, false); err != nil {
		return err
	}
	s.log.Info("question set deactivated", slog.String("question_set_id", id))
	return nil
}

// Submit scores every raw response server-side and stores the submission.
func (s *Service) Submit(ctx context.Context, req SubmissionRequest, client ClientInfo) (*CandidateSubmission, error) {
	if len(req.Responses) == 0 {
		return nil, fmt.Errorf("%w: no responses", ErrInvalidSubmission)
	}
	qs, err := s.QuestionSetByToken(ctx, req.Token)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	seen := make(map[string]bool, len(req.Responses))
	sub := &CandidateSubmission{
		ID:                 submissionPref + uuid.NewString(),
		QuestionSetID:      qs.ID,
		Token:              qs.Token,
		CandidateEmail:     strings.TrimSpace(req.CandidateEmail),
		CandidateFirstName: strings.TrimSpace(req.CandidateFirstName),
		CandidateLastName:  strings.TrimSpace(req.CandidateLastName),
		Responses:          make([]ResponseData, 0, len(req.Responses)),
		SubmittedAt:        now,
		IPAddress:          orUnknown(client.IPAddress),
		UserAgent:          orUnknown(client.UserAgent),
		Flags:              []string{},
	}

	var total int
	for i, in := range req.Responses {
		q, ok := qs.Question(in.QuestionID)
		if !ok {
			return nil, fmt.Errorf("%w: response %d answers unknown question %q", ErrInvalidSubmission, i+1, in.QuestionID)
		}
		if seen[q.ID] {
			return nil, fmt.Errorf("%w: question %q answered twice", ErrInvalidSubmission, q.ID)
		}
		seen[q.ID] = true
		if len(in.Session) == 0 {
			return nil, fmt.Errorf("%w: response %d has no session", ErrInvalidSubmission, i+1)
		}

		raw, err := tracking.DecodeSession(in.Session)
		if err != nil {
			return nil, fmt.Errorf("%w: response %d: %v", ErrInvalidSubmission, i+1, err)
		}
		session := tracking.Normalize(raw, in.Response, now)
		metrics, err := forensics.Score(session, in.Response, s.policy)
		if err != nil {
			return nil, fmt.Errorf("score response %d: %w", i+1, err)
		}
		tier := forensics.Classify(session)
		if s.obs != nil {
			s.obs.ObserveScore(s.policy.Name, tier, metrics)
		}

		sub.Responses = append(sub.Responses, ResponseData{
			QuestionID:  q.ID,
			Question:    q.Text,
			Response:    in.Response,
			Metrics:     *metrics,
			Session:     session,
			Tier:        tier,
			SubmittedAt: now,
		})
		sub.Flags = append(sub.Flags, metrics.Flags...)
		total += metrics.HumanLikelihood
	}
	sub.OverallScore = float64(total) / float64(len(sub.Responses))

	if err := s.repo.InsertSubmission(ctx, sub); err != nil {
		return nil, fmt.Errorf("store submission: %w", err)
	}
	s.log.Info("submission scored",
		slog.String("submission_id", sub.ID),
		slog.String("question_set_id", qs.ID),
		slog.Int("responses", len(sub.Responses)),
		slog.Float64("overall_score", sub.OverallScore),
		slog.Int("flags", len(sub.Flags)))
	return sub, nil
}

// Submission returns one stored submission.
func (s *Service) Submission(ctx context.Context, id string) (*CandidateSubmission, error) {
	return s.repo.Submission(ctx, id)
}

// SubmissionsForSet lists the submissions for a question set, oldest first.
func (s *Service) SubmissionsForSet(ctx context.Context, questionSetID string) ([]CandidateSubmission, error) {
	if _, err := s.repo.QuestionSet(ctx, questionSetID); err != nil {
		return nil, err
	}
	return s.repo.SubmissionsForSet(ctx, questionSetID)
}

// IsClientError reports whether err was caused by the request rather than
// by the service.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidSubmission) || errors.Is(err, ErrInvalidQuestionSet)
}

// NewToken returns prefix followed by 20 random base36 characters.
func NewToken(prefix string) (string, error) {
	limit := 256 - 256%len(tokenAlphabet)
	out := make([]byte, 0, tokenLength)
	buf := make([]byte, tokenLength)
	for len(out) < tokenLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("generate token: %w", err)
		}
		for _, b := range buf {
			if int(b) < limit && len(out) < tokenLength {
				out = append(out, tokenAlphabet[int(b)%len(tokenAlphabet)])
			}
		}
	}
	return prefix + string(out), nil
}

func orUnknown(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "unknown"
	}
	return s
}
