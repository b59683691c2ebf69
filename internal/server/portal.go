package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"realcv/internal/portal"
)

// createQuestionSetBody is the employer's create request. An omitted
// expiresInHours uses the configured default; zero means never.
type createQuestionSetBody struct {
	Title          string                 `json:"title"`
	Questions      []portal.QuestionInput `json:"questions"`
	ExpiresInHours *float64               `json:"expiresInHours,omitempty"`
}

// submitResponseResult mirrors what the candidate page stores locally.
type submitResponseResult struct {
	Success      bool                        `json:"success"`
	SubmissionID string                      `json:"submissionId"`
	Message      string                      `json:"message"`
	Submission   *portal.CandidateSubmission `json:"submission"`
}

func readBody(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(data) == 0 {
		return nil, badRequest("empty request body")
	}
	return data, nil
}

func (s *Server) handleQuestionSetByToken(w http.ResponseWriter, r *http.Request) {
	qs, err := s.portal.QuestionSetByToken(r.Context(), r.PathValue("token"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, qs.Public())
}

func (s *Server) handleSubmitResponse(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.validator.ValidateSubmission(data); err != nil {
		s.metrics.ObserveSubmission("rejected")
		s.writeError(w, r, err)
		return
	}
	var req portal.SubmissionRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.metrics.ObserveSubmission("rejected")
		s.writeError(w, r, badRequest("decode submission: %v", err))
		return
	}

	sub, err := s.portal.Submit(r.Context(), req, portal.ClientInfo{
		IPAddress: s.clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		if status, _ := statusFor(err); status < http.StatusInternalServerError {
			s.metrics.ObserveSubmission("rejected")
		} else {
			s.metrics.ObserveSubmission("error")
		}
		s.writeError(w, r, err)
		return
	}
	s.metrics.ObserveSubmission("accepted")

	writeJSON(w, http.StatusOK, submitResponseResult{
		Success:      true,
		SubmissionID: sub.ID,
		Message:      "Response submitted successfully",
		Submission:   sub,
	})
}

func (s *Server) handleCreateQuestionSet(w http.ResponseWriter, r *http.Request) {
	employer, err := s.employer(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data, err := readBody(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.validator.ValidateQuestionSet(data); err != nil {
		s.writeError(w, r, err)
		return
	}
	var body createQuestionSetBody
	if err := json.Unmarshal(data, &body); err != nil {
		s.writeError(w, r, badRequest("decode question set: %v", err))
		return
	}

	req := portal.CreateRequest{
		Title:     body.Title,
		Questions: body.Questions,
		CreatedBy: employer,
	}
	if body.ExpiresInHours != nil {
		if *body.ExpiresInHours == 0 {
			req.ExpiresIn = -1
		} else {
			req.ExpiresIn = time.Duration(*body.ExpiresInHours * float64(time.Hour))
		}
	}

	qs, err := s.portal.CreateQuestionSet(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.metrics.ObserveQuestionSet()
	writeJSON(w, http.StatusCreated, qs)
}

func (s *Server) handleListQuestionSets(w http.ResponseWriter, r *http.Request) {
	employer, err := s.employer(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sets, err := s.portal.QuestionSetsFor(r.Context(), employer)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if sets == nil {
		sets = []portal.QuestionSet{}
	}
	writeJSON(w, http.StatusOK, sets)
}

func (s *Server) handleDeactivateQuestionSet(w http.ResponseWriter, r *http.Request) {
	employer, err := s.employer(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.portal.Deactivate(r.Context(), r.PathValue("id"), employer); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// owns reports whether the question set belongs to employer. Sets owned by
// someone else are reported as missing.
func (s *Server) owns(ctx context.Context, employer, setID string) error {
	sets, err := s.portal.QuestionSetsFor(ctx, employer)
	if err != nil {
		return err
	}
	for _, qs := range sets {
		if qs.ID == setID {
			return nil
		}
	}
	return fmt.Errorf("question set %s: %w", setID, portal.ErrNotFound)
}

func (s *Server) handleSubmissionsForSet(w http.ResponseWriter, r *http.Request) {
	employer, err := s.employer(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	setID := r.PathValue("id")
	if err := s.owns(r.Context(), employer, setID); err != nil {
		s.writeError(w, r, err)
		return
	}
	subs, err := s.portal.SubmissionsForSet(r.Context(), setID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if subs == nil {
		subs = []portal.CandidateSubmission{}
	}
	writeJSON(w, http.StatusOK, subs)
}

func (s *Server) handleSubmission(w http.ResponseWriter, r *http.Request) {
	employer, err := s.employer(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sub, err := s.portal.Submission(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.owns(r.Context(), employer, sub.QuestionSetID); err != nil {
		s.writeError(w, r, fmt.Errorf("submission %s: %w", sub.ID, portal.ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, sub)
}
