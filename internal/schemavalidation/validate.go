// Package schemavalidation checks inbound JSON payloads against the
// embedded JSON Schemas before they are decoded.
package schemavalidation

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema names.
const (
	Session            = "session"
	Submission         = "submission"
	QuestionSet        = "question-set"
	CertificateRequest = "certificate-request"
)

const baseURL = "https://realcv.dev/schemas/"

//go:embed schemas/*.schema.json
var schemaFS embed.FS

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("schema validation failed")

// Error reports every violation found in one document.
type Error struct {
	Schema     string
	Violations []string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalid, e.Schema, strings.Join(e.Violations, "; "))
}

func (e *Error) Unwrap() error { return ErrInvalid }

// Validator holds the compiled schemas.
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

// New compiles every embedded schema.
func New() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("read embedded schemas: %w", err)
	}
	var names []string
	for _, entry := range entries {
		data, err := schemaFS.ReadFile(path.Join("schemas", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", entry.Name(), err)
		}
		if err := compiler.AddResource(baseURL+entry.Name(), bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("add schema resource %s: %w", entry.Name(), err)
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".schema.json"))
	}

	v := &Validator{schemas: make(map[string]*jsonschema.Schema, len(names))}
	for _, name := range names {
		schema, err := compiler.Compile(baseURL + name + ".schema.json")
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		v.schemas[name] = schema
	}
	return v, nil
}

var (
	defaultOnce      sync.Once
	defaultValidator *Validator
	defaultErr       error
)

// Default returns a shared validator, compiling the schemas on first use.
func Default() (*Validator, error) {
	defaultOnce.Do(func() {
		defaultValidator, defaultErr = New()
	})
	return defaultValidator, defaultErr
}

// Names returns the available schema names, sorted.
func (v *Validator) Names() []string {
	names := make([]string, 0, len(v.schemas))
	for name := range v.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks a raw JSON document against the named schema. Malformed
// JSON is reported as a violation too.
func (v *Validator) Validate(name string, data []byte) error {
	schema, ok := v.schemas[name]
	if !ok {
		return fmt.Errorf("unknown schema %q", name)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var instance any
	if err := dec.Decode(&instance); err != nil {
		return &Error{Schema: name, Violations: []string{"malformed JSON: " + err.Error()}}
	}
	if _, err := dec.Token(); err != io.EOF {
		return &Error{Schema: name, Violations: []string{"malformed JSON: trailing data after document"}}
	}
	if err := schema.Validate(instance); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return &Error{Schema: name, Violations: violations(ve)}
		}
		return fmt.Errorf("validate %s: %w", name, err)
	}
	return nil
}

// ValidateSubmission checks a candidate submission body.
func (v *Validator) ValidateSubmission(data []byte) error { return v.Validate(Submission, data) }

// ValidateSession checks a writing session document.
func (v *Validator) ValidateSession(data []byte) error { return v.Validate(Session, data) }

// ValidateQuestionSet checks a question set creation body.
func (v *Validator) ValidateQuestionSet(data []byte) error { return v.Validate(QuestionSet, data) }

// ValidateCertificateRequest checks a certificate issue body.
func (v *Validator) ValidateCertificateRequest(data []byte) error {
	return v.Validate(CertificateRequest, data)
}

// violations flattens the error tree to its leaves, most specific first.
func violations(ve *jsonschema.ValidationError) []string {
	var out []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := e.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			out = append(out, loc+": "+e.Message)
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	return out
}
