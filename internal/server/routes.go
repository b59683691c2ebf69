package server

import "net/http"

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, s.instrument(pattern, h))
	}
	limited := func(pattern string, h http.HandlerFunc) {
		handle(pattern, s.rateLimit(pattern, s.limitBody(h)))
	}

	// Candidate portal.
	handle("GET /api/question/{token}", s.handleQuestionSetByToken)
	limited("POST /api/submit-response", s.handleSubmitResponse)

	// Employer views; identity comes from the fronting auth layer.
	limited("POST /api/question-sets", s.handleCreateQuestionSet)
	handle("GET /api/question-sets", s.handleListQuestionSets)
	handle("DELETE /api/question-sets/{id}", s.handleDeactivateQuestionSet)
	handle("GET /api/question-sets/{id}/submissions", s.handleSubmissionsForSet)
	handle("GET /api/submissions/{id}", s.handleSubmission)

	// Writing sessions.
	handle("POST /api/sessions/{id}", s.limitBody(s.handleSaveSession))
	handle("GET /api/sessions/{id}", s.handleLoadSession)
	handle("DELETE /api/sessions/{id}", s.handleDeleteSession)

	// Certificates.
	limited("POST /api/certificates", s.handleIssueCertificate)
	handle("GET /api/certificates/{id}", s.handleVerifyCertificate)
	handle("GET /api/certificates/{id}/text", s.handleCertificateText)

	mux.Handle("GET /health", s.health.Handler())
	mux.Handle("GET /metrics", s.metrics.Handler())

	return mux
}
