package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"realcv/internal/config"
	"realcv/internal/logging"
	"realcv/internal/server"
	"realcv/internal/signer"
)

func newServeCommand(opts *rootOptions, version string) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API serving the candidate question portal, writing
session persistence, certificate issuance and public verification.

The configuration file is watched; log level, rate limits and the request
size cap are applied without a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts, version, listen, cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides config)")
	return cmd
}

func runServe(ctx context.Context, opts *rootOptions, version, listen string, console io.Writer) error {
	loader := config.NewLoader(opts.configPath)
	defer loader.Close()

	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if listen != "" {
		cfg.Server.ListenAddr = listen
	}

	log, err := newLogger(cfg, console)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer log.Close()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	key, created, err := signingKey(cfg)
	if err != nil {
		return fmt.Errorf("signing key: %w", err)
	}
	fingerprint := signer.Fingerprint(signer.GetPublicKey(key))
	if created {
		log.Info("generated signing key", "path", cfg.Signing.KeyPath, "fingerprint", fingerprint)
	}

	srv, err := server.New(server.Options{
		Config:     cfg,
		Store:      st,
		SigningKey: key,
		Logger:     log,
		Version:    version,
	})
	if err != nil {
		return err
	}

	loader.OnChange(func(old, next *config.Config) {
		if listen != "" {
			next.Server.ListenAddr = listen
		}
		srv.ApplyConfig(old, next)
	})
	if err := loader.Watch(); err != nil {
		log.Warn("configuration hot reload disabled", "error", err)
	} else {
		go reportReloadErrors(ctx, loader, log)
	}

	log.Info("realcv starting",
		"version", version,
		"listen", cfg.Server.ListenAddr,
		"database", cfg.Storage.DatabasePath,
		"fingerprint", fingerprint)

	return srv.ListenAndServe(ctx)
}

func reportReloadErrors(ctx context.Context, loader *config.Loader, log *logging.Logger) {
	errs := loader.Errors()
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if !ok {
				return
			}
			log.Warn("configuration reload rejected", "path", loader.Path(), "error", err)
		}
	}
}
