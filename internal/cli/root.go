// Package cli implements the realcv command line.
package cli

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"realcv/internal/config"
	"realcv/internal/forensics"
	"realcv/internal/logging"
	"realcv/internal/portal"
	"realcv/internal/signer"
	"realcv/internal/store"
	"realcv/internal/tracking"
)

// errVerificationFailed is returned after an invalid verification result
// has been printed so the process exits non-zero.
var errVerificationFailed = errors.New("verification failed")

type rootOptions struct {
	configPath string
	jsonOutput bool
	now        func() time.Time
}

// NewRootCommand builds the realcv command tree.
func NewRootCommand(version string) *cobra.Command {
	opts := &rootOptions{now: time.Now}

	cmd := &cobra.Command{
		Use:   "realcv",
		Short: "Keystroke-verified writing certificates",
		Long: `realcv scores how a document was written from its keystroke session,
issues signed certificates for self-authored documents and runs the
employer question portal where candidate answers are scored server-side.

Sessions record counts and timing only. Key contents are never captured.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", config.ConfigPath(), "configuration file (TOML, JSON or YAML)")
	cmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "print machine-readable JSON")

	cmd.AddCommand(newServeCommand(opts, version))
	cmd.AddCommand(newRecordCommand(opts))
	cmd.AddCommand(newScoreCommand(opts))
	cmd.AddCommand(newTierCommand(opts))
	cmd.AddCommand(newCertificateCommand(opts))
	cmd.AddCommand(newKeygenCommand(opts))
	cmd.AddCommand(newQuestionsCommand(opts))
	cmd.AddCommand(newSubmissionsCommand(opts))

	return cmd
}

// Execute runs the command line with ctx.
func Execute(ctx context.Context, version string) error {
	return NewRootCommand(version).ExecuteContext(ctx)
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// print writes v as indented JSON with --json, otherwise calls text.
func (o *rootOptions) print(w io.Writer, v any, text func(io.Writer) error) error {
	if o.jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return text(w)
}

func openStore(cfg *config.Config) (*store.Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	return store.Open(cfg.Storage.DatabasePath)
}

// signingKey loads the configured key, creating it on first use unless it
// is passphrase protected.
func signingKey(cfg *config.Config) (ed25519.PrivateKey, bool, error) {
	if cfg.Signing.Passphrase != "" {
		key, err := signer.LoadPrivateKeyWithPassphrase(cfg.Signing.KeyPath, []byte(cfg.Signing.Passphrase))
		return key, false, err
	}
	return signer.LoadOrCreate(cfg.Signing.KeyPath)
}

func newLogger(cfg *config.Config, console io.Writer) (*logging.Logger, error) {
	settings, err := logging.FromSettings(cfg.Logging)
	if err != nil {
		return nil, err
	}
	settings.Writer = console
	return logging.New(settings)
}

// portalService builds the question portal over the store the same way
// the HTTP API does.
func (o *rootOptions) portalService(cfg *config.Config, st *store.Store) (*portal.Service, error) {
	policy, err := forensics.PolicyByName(cfg.Scoring.CandidatePreset)
	if err != nil {
		return nil, err
	}
	return portal.NewService(st, portal.Options{
		Logger:        logging.Discard().Logger,
		Now:           o.now,
		Policy:        &policy,
		TokenPrefix:   cfg.Portal.TokenPrefix,
		DefaultExpiry: cfg.QuestionSetExpiry(),
	}), nil
}

// withStore opens the configured store for the duration of fn.
func (o *rootOptions) withStore(fn func(cfg *config.Config, st *store.Store) error) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(cfg, st)
}

func readSession(path string) (*tracking.WritingSession, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	s, err := tracking.DecodeSession(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}
