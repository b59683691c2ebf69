package schemavalidation

import (
	"errors"
	"strings"
	"testing"
)

type schemaCase struct {
	name     string
	schema   string
	instance string
	valid    bool
}

const validSession = `{
	"id": "resume-1",
	"startTime": 1750000000000,
	"endTime": 1750000600000,
	"keystrokeCount": 3,
	"editCount": 1,
	"pasteEvents": [{"timestamp": 1750000000500, "textLength": 40}],
	"totalTypingTime": 300000,
	"events": [{"timestamp": 1750000000000, "kind": "keydown", "textLength": 1}]
}`

func TestSchemaValidation(t *testing.T) {
	v, err := New()
	if err != nil {
		t.Fatalf("compile schemas: %v", err)
	}

	cases := []schemaCase{
		{"session", Session, validSession, true},
		{"legacy session", Session, `{"startTime": 1, "keystrokes": 12, "edits": 2, "pasteEvents": 1}`, true},
		{"legacy event list", Session, `{"keystrokes": [{"timestamp": 1, "type": "keydown", "key": "a"}]}`, true},
		{"session not object", Session, `[1, 2, 3]`, false},
		{"session bad counter", Session, `{"keystrokeCount": "many"}`, false},
		{"session bad events", Session, `{"events": {"kind": "keydown"}}`, false},
		{
			"submission",
			Submission,
			`{"token": "resp_abc123", "responses": [{"questionId": "q_1", "response": "Hi", "session": ` + validSession + `}]}`,
			true,
		},
		{"submission without responses", Submission, `{"token": "resp_abc123", "responses": []}`, false},
		{"submission bad token", Submission, `{"token": "resp abc/..", "responses": [{"questionId": "q", "response": "", "session": {}}]}`, false},
		{"submission bad nested session", Submission, `{"token": "t", "responses": [{"questionId": "q", "response": "", "session": {"startTime": "now"}}]}`, false},
		{"submission missing session", Submission, `{"token": "t", "responses": [{"questionId": "q", "response": ""}]}`, false},
		{"question set", QuestionSet, `{"title": "Role", "questions": [{"text": "Why?", "order": 1}]}`, true},
		{"question set empty question", QuestionSet, `{"title": "Role", "questions": [{"text": ""}]}`, false},
		{"question set fractional order", QuestionSet, `{"title": "Role", "questions": [{"text": "Why?", "order": 1.5}]}`, false},
		{"certificate request", CertificateRequest, `{"title": "Jane Doe", "sessionId": "resume-1", "sections": [{"title": "Skills", "content": "Go"}]}`, true},
		{"certificate request without session", CertificateRequest, `{"title": "Jane Doe"}`, false},
		{"malformed json", Submission, `{"token": `, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Validate(tc.schema, []byte(tc.instance))
			if tc.valid && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.valid {
				if err == nil {
					t.Fatal("expected validation error")
				}
				if !errors.Is(err, ErrInvalid) {
					t.Fatalf("expected ErrInvalid, got %v", err)
				}
			}
		})
	}
}

func TestValidationErrorDetails(t *testing.T) {
	v, err := Default()
	if err != nil {
		t.Fatalf("compile schemas: %v", err)
	}

	err = v.ValidateQuestionSet([]byte(`{"questions": []}`))
	var ve *Error
	if !errors.As(err, &ve) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if ve.Schema != QuestionSet {
		t.Errorf("schema = %q", ve.Schema)
	}
	if len(ve.Violations) < 2 {
		t.Errorf("expected both violations reported, got %v", ve.Violations)
	}
	if !strings.Contains(err.Error(), "question-set") {
		t.Errorf("error should name the schema: %v", err)
	}
}

func TestHelpersAndNames(t *testing.T) {
	v, err := Default()
	if err != nil {
		t.Fatalf("compile schemas: %v", err)
	}
	again, _ := Default()
	if v != again {
		t.Error("Default should return a shared validator")
	}

	want := []string{CertificateRequest, QuestionSet, Session, Submission}
	got := v.Names()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Names() = %v, want %v", got, want)
	}

	if err := v.ValidateSession([]byte(validSession)); err != nil {
		t.Errorf("ValidateSession: %v", err)
	}
	if err := v.ValidateSubmission([]byte(`{}`)); err == nil {
		t.Error("ValidateSubmission accepted an empty body")
	}
	if err := v.ValidateCertificateRequest([]byte(`{"title": "x", "sessionId": "y"}`)); err != nil {
		t.Errorf("ValidateCertificateRequest: %v", err)
	}
	if err := v.Validate("nope", []byte(`{}`)); err == nil || errors.Is(err, ErrInvalid) {
		t.Errorf("unknown schema should be a plain error, got %v", err)
	}
}

func TestValidateDecodesStrictly(t *testing.T) {
	v, err := Default()
	if err != nil {
		t.Fatalf("compile schemas: %v", err)
	}

	// Counters past 2^53 must still be accepted as numbers.
	if err := v.ValidateSession([]byte(`{"startTime": 1750000000000, "keystrokeCount": 9007199254740993}`)); err != nil {
		t.Errorf("large counter rejected: %v", err)
	}

	for _, body := range []string{`{"token": `, `{} {}`, `{"startTime": 1} trailing`, ``} {
		err := v.ValidateSession([]byte(body))
		var ve *Error
		if !errors.As(err, &ve) {
			t.Fatalf("%q: expected *Error, got %v", body, err)
		}
		if !errors.Is(err, ErrInvalid) {
			t.Errorf("%q: expected ErrInvalid, got %v", body, err)
		}
		if len(ve.Violations) != 1 || !strings.HasPrefix(ve.Violations[0], "malformed JSON") {
			t.Errorf("%q: violations = %v", body, ve.Violations)
		}
	}
}
