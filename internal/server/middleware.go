package server

import (
	"fmt"
	"net/http"
	"time"

	"realcv/internal/logging"
)

// requestIDHeader carries the request id in both directions.
const requestIDHeader = "X-Request-ID"

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// instrument wraps a route with request ids, panic recovery, access
// logging and metrics. route is the mux pattern, used as the metric label.
func (s *Server) instrument(route string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = logging.NewRequestID()
		}
		w.Header().Set(requestIDHeader, id)
		r = r.WithContext(logging.ContextWithRequestID(r.Context(), id))

		rec := &statusRecorder{ResponseWriter: w}
		defer func() {
			if p := recover(); p != nil {
				s.log.WithContext(r.Context()).Error("handler panicked",
					"route", route, "panic", fmt.Sprint(p))
				if rec.status == 0 {
					writeJSON(rec, http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
				}
			}

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			elapsed := time.Since(start)
			s.metrics.ObserveRequest(r.Method, route, status, elapsed)
			s.log.WithContext(r.Context()).Debug("request handled",
				"method", r.Method,
				"route", route,
				"status", status,
				"duration_ms", elapsed.Milliseconds())
		}()

		next(rec, r)
	})
}

// limitBody caps the request body at the configured size.
func (s *Server) limitBody(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if limit := s.maxBytes.Load(); limit > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
		}
		next(w, r)
	}
}

// rateLimit rejects clients over their budget with 429.
func (s *Server) rateLimit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := s.clientIP(r)
		if !s.limiter.Allow(ip) {
			s.metrics.ObserveRateLimited(route)
			s.log.WithContext(r.Context()).Info("rate limit exceeded",
				"route", route, "client_ip", ip)
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, ErrorResponse{
				Error:   "rate limit exceeded",
				Details: "too many requests, try again later",
			})
			return
		}
		next(w, r)
	}
}

// employer returns the authenticated employer identity set by the
// fronting auth layer.
func (s *Server) employer(r *http.Request) (string, error) {
	id := r.Header.Get(s.config().Server.EmployerHeader)
	if id == "" {
		return "", errUnauthorized
	}
	return id, nil
}

func (s *Server) clientIP(r *http.Request) string {
	return clientIP(r, s.config().Server.TrustProxyHeaders)
}
