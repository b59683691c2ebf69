package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"realcv/internal/portal"
)

var _ portal.Repository = (*Store)(nil)

// InsertQuestionSet stores a set and its questions in one transaction.
func (s *Store) InsertQuestionSet(ctx context.Context, qs *portal.QuestionSet) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO question_sets (id, token, title, created_by, created_at, expires_at, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		qs.ID, qs.Token, qs.Title, qs.CreatedBy, toMillis(qs.CreatedAt), nullMillis(qs.ExpiresAt), qs.IsActive,
	); err != nil {
		return fmt.Errorf("insert question set: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO questions (question_set_id, id, text, ordinal)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, q := range qs.Questions {
		if _, err := stmt.ExecContext(ctx, qs.ID, q.ID, q.Text, q.Order); err != nil {
			return fmt.Errorf("insert question: %w", err)
		}
	}

	return tx.Commit()
}

const questionSetColumns = `id, token, title, created_by, created_at, expires_at, is_active`

// QuestionSet returns a set by id.
func (s *Store) QuestionSet(ctx context.Context, id string) (*portal.QuestionSet, error) {
	return s.questionSetWhere(ctx, "id = ?", id)
}

// QuestionSetByToken returns a set by its candidate token, whatever its state.
func (s *Store) QuestionSetByToken(ctx context.Context, token string) (*portal.QuestionSet, error) {
	return s.questionSetWhere(ctx, "token = ?", token)
}

func (s *Store) questionSetWhere(ctx context.Context, cond string, arg any) (*portal.QuestionSet, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+questionSetColumns+" FROM question_sets WHERE "+cond, arg)
	qs, err := scanQuestionSet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("question set: %w", portal.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get question set: %w", err)
	}
	if qs.Questions, err = s.questions(ctx, qs.ID); err != nil {
		return nil, err
	}
	return qs, nil
}

// QuestionSetsByCreator lists an employer's sets, newest first.
func (s *Store) QuestionSetsByCreator(ctx context.Context, createdBy string) ([]portal.QuestionSet, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+questionSetColumns+" FROM question_sets WHERE created_by = ? ORDER BY created_at DESC, id ASC",
		createdBy)
	if err != nil {
		return nil, fmt.Errorf("query question sets: %w", err)
	}
	defer rows.Close()

	var sets []portal.QuestionSet
	for rows.Next() {
		qs, err := scanQuestionSet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan question set: %w", err)
		}
		sets = append(sets, *qs)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range sets {
		if sets[i].Questions, err = s.questions(ctx, sets[i].ID); err != nil {
			return nil, err
		}
	}
	return sets, nil
}

// SetQuestionSetActive opens or closes a set.
func (s *Store) SetQuestionSetActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx, "UPDATE question_sets SET is_active = ? WHERE id = ?", active, id)
	if err != nil {
		return fmt.Errorf("update question set: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("question set %s: %w", id, portal.ErrNotFound)
	}
	return nil
}

func (s *Store) questions(ctx context.Context, setID string) ([]portal.Question, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, text, ordinal FROM questions WHERE question_set_id = ? ORDER BY ordinal ASC, id ASC", setID)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	questions := []portal.Question{}
	for rows.Next() {
		var q portal.Question
		if err := rows.Scan(&q.ID, &q.Text, &q.Order); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanQuestionSet(row scanner) (*portal.QuestionSet, error) {
	var qs portal.QuestionSet
	var createdAt int64
	var expiresAt sql.NullInt64
	if err := row.Scan(&qs.ID, &qs.Token, &qs.Title, &qs.CreatedBy, &createdAt, &expiresAt, &qs.IsActive); err != nil {
		return nil, err
	}
	qs.CreatedAt = fromMillis(createdAt)
	qs.ExpiresAt = timePtr(expiresAt)
	return &qs, nil
}

// InsertSubmission stores a scored submission.
func (s *Store) InsertSubmission(ctx context.Context, sub *portal.CandidateSubmission) error {
	responses, err := json.Marshal(sub.Responses)
	if err != nil {
		return fmt.Errorf("marshal responses: %w", err)
	}
	flags := sub.Flags
	if flags == nil {
		flags = []string{}
	}
	flagJSON, err := json.Marshal(flags)
	if err != nil {
		return fmt.Errorf("marshal flags: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO submissions (id, question_set_id, token, candidate_email, candidate_first_name,
			candidate_last_name, submitted_at, ip_address, user_agent, overall_score, flags, responses)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.QuestionSetID, sub.Token, sub.CandidateEmail, sub.CandidateFirstName,
		sub.CandidateLastName, toMillis(sub.SubmittedAt), sub.IPAddress, sub.UserAgent,
		sub.OverallScore, string(flagJSON), string(responses),
	)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

const submissionColumns = `id, question_set_id, token, candidate_email, candidate_first_name,
	candidate_last_name, submitted_at, ip_address, user_agent, overall_score, flags, responses`

// Submission returns one submission.
func (s *Store) Submission(ctx context.Context, id string) (*portal.CandidateSubmission, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+submissionColumns+" FROM submissions WHERE id = ?", id)
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("submission %s: %w", id, portal.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return sub, nil
}

// SubmissionsForSet lists a set's submissions, oldest first.
func (s *Store) SubmissionsForSet(ctx context.Context, questionSetID string) ([]portal.CandidateSubmission, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+submissionColumns+" FROM submissions WHERE question_set_id = ? ORDER BY submitted_at ASC, id ASC",
		questionSetID)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	subs := []portal.CandidateSubmission{}
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

func scanSubmission(row scanner) (*portal.CandidateSubmission, error) {
	var sub portal.CandidateSubmission
	var submittedAt int64
	var email, first, last, ip, ua sql.NullString
	var flags, responses string
	if err := row.Scan(&sub.ID, &sub.QuestionSetID, &sub.Token, &email, &first, &last,
		&submittedAt, &ip, &ua, &sub.OverallScore, &flags, &responses); err != nil {
		return nil, err
	}
	sub.CandidateEmail = email.String
	sub.CandidateFirstName = first.String
	sub.CandidateLastName = last.String
	sub.IPAddress = ip.String
	sub.UserAgent = ua.String
	sub.SubmittedAt = fromMillis(submittedAt)
	if err := json.Unmarshal([]byte(flags), &sub.Flags); err != nil {
		return nil, fmt.Errorf("decode flags: %w", err)
	}
	if err := json.Unmarshal([]byte(responses), &sub.Responses); err != nil {
		return nil, fmt.Errorf("decode responses: %w", err)
	}
	return &sub, nil
}
