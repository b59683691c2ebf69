// Package server exposes the realcv HTTP API: the candidate question
// portal, writing session persistence and signed certificates.
package server

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"realcv/internal/config"
	"realcv/internal/forensics"
	"realcv/internal/health"
	"realcv/internal/logging"
	"realcv/internal/metrics"
	"realcv/internal/portal"
	"realcv/internal/schemavalidation"
	"realcv/internal/store"
)

// Options configures a Server.
type Options struct {
	// Config is required.
	Config *config.Config

	// Store is required.
	Store *store.Store

	// SigningKey signs certificates. Required.
	SigningKey ed25519.PrivateKey

	// Logger defaults to a discarding logger.
	Logger *logging.Logger

	// Metrics defaults to a fresh registry.
	Metrics *metrics.Metrics

	// Validator defaults to schemavalidation.Default.
	Validator *schemavalidation.Validator

	// Version is reported by /health.
	Version string

	// Now defaults to time.Now.
	Now func() time.Time
}

// Server is the realcv HTTP API.
type Server struct {
	cfg       atomic.Pointer[config.Config]
	store     *store.Store
	portal    *portal.Service
	key       ed25519.PrivateKey
	log       *logging.Logger
	metrics   *metrics.Metrics
	validator *schemavalidation.Validator
	health    *health.Checker
	limiter   *RateLimiter
	maxBytes  atomic.Int64
	certs     forensics.Policy
	now       func() time.Time
	handler   http.Handler
}

// New wires the API over the store.
func New(opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, errors.New("server: config is required")
	}
	if opts.Store == nil {
		return nil, errors.New("server: store is required")
	}
	if len(opts.SigningKey) != ed25519.PrivateKeySize {
		return nil, errors.New("server: an Ed25519 signing key is required")
	}

	s := &Server{
		store:     opts.Store,
		key:       opts.SigningKey,
		log:       opts.Logger,
		metrics:   opts.Metrics,
		validator: opts.Validator,
		now:       opts.Now,
	}
	if s.log == nil {
		s.log = logging.Discard()
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.validator == nil {
		v, err := schemavalidation.Default()
		if err != nil {
			return nil, fmt.Errorf("server: load schemas: %w", err)
		}
		s.validator = v
	}
	if s.now == nil {
		s.now = time.Now
	}

	cfg := opts.Config
	s.cfg.Store(cfg)
	s.maxBytes.Store(cfg.Server.MaxRequestBytes)

	certPolicy, err := forensics.PolicyByName(cfg.Scoring.SelfAuthoredPreset)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}
	candidatePolicy, err := forensics.PolicyByName(cfg.Scoring.CandidatePreset)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}
	s.certs = certPolicy

	s.portal = portal.NewService(opts.Store, portal.Options{
		Logger:        s.log.WithComponent("portal").Logger,
		Now:           s.now,
		Policy:        &candidatePolicy,
		TokenPrefix:   cfg.Portal.TokenPrefix,
		DefaultExpiry: cfg.QuestionSetExpiry(),
		Observer:      s.metrics,
	})

	s.limiter = NewRateLimiter(cfg.Server.RateLimitPerMinute, cfg.Server.RateLimitBurst)

	s.health = health.NewChecker(opts.Version)
	s.health.RegisterFunc("database", true, health.DatabaseCheck(func(ctx context.Context) error {
		return opts.Store.DB().PingContext(ctx)
	}))
	s.health.RegisterFunc("data_dir", false, health.FileExistsCheck(cfg.Storage.DataDir))
	s.health.RegisterFunc("schemas", false, health.CustomCheck(func() error {
		if len(s.validator.Names()) == 0 {
			return errors.New("no schemas compiled")
		}
		return nil
	}))

	s.handler = s.routes()
	return s, nil
}

func (s *Server) config() *config.Config {
	return s.cfg.Load()
}

// Portal returns the question portal service behind the API.
func (s *Server) Portal() *portal.Service { return s.portal }

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

// ApplyConfig applies the settings that can change without a restart:
// log level, rate limits and the request size cap. It has the signature
// of a config.Loader change callback.
func (s *Server) ApplyConfig(old, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if level, err := logging.ParseLevel(cfg.Logging.Level); err == nil {
		s.log.SetLevel(level)
	}
	s.limiter.SetLimits(cfg.Server.RateLimitPerMinute, cfg.Server.RateLimitBurst)
	s.maxBytes.Store(cfg.Server.MaxRequestBytes)

	live := s.config().Clone()
	live.Logging = cfg.Logging
	live.Server.RateLimitPerMinute = cfg.Server.RateLimitPerMinute
	live.Server.RateLimitBurst = cfg.Server.RateLimitBurst
	live.Server.MaxRequestBytes = cfg.Server.MaxRequestBytes
	live.Server.TrustProxyHeaders = cfg.Server.TrustProxyHeaders
	s.cfg.Store(live)

	if old != nil && old.Server.ListenAddr != cfg.Server.ListenAddr {
		s.log.Warn("listen address change requires a restart",
			"current", old.Server.ListenAddr, "configured", cfg.Server.ListenAddr)
	}
	s.log.Info("configuration applied",
		"log_level", cfg.Logging.Level,
		"rate_limit_per_minute", cfg.Server.RateLimitPerMinute,
		"rate_limit_burst", cfg.Server.RateLimitBurst)
}

// ListenAndServe serves on the configured address until ctx is cancelled,
// then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config().Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	cfg := s.config()
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.ReadTimeout(),
		WriteTimeout:      cfg.WriteTimeout(),
		IdleTimeout:       cfg.IdleTimeout(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server starting", "address", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		s.limiter.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.limiter.Close()
	if serveErr := <-errCh; serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return serveErr
	}
	return err
}

// Close releases background resources when the server is used only
// through Handler.
func (s *Server) Close() {
	s.limiter.Close()
}
