package cli

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"realcv/internal/certificate"
	"realcv/internal/config"
	"realcv/internal/forensics"
	"realcv/internal/signer"
	"realcv/internal/store"
	"realcv/internal/tracking"
)

func newCertificateCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "certificate",
		Short: "Issue and verify signed writing certificates",
	}
	cmd.AddCommand(newCertificateIssueCommand(opts))
	cmd.AddCommand(newCertificateVerifyCommand(opts))
	return cmd
}

// parseSection reads a "Heading=content" flag value.
func parseSection(v string) (certificate.Section, error) {
	title, content, ok := strings.Cut(v, "=")
	if !ok || strings.TrimSpace(title) == "" {
		return certificate.Section{}, fmt.Errorf("section %q: want Heading=content", v)
	}
	return certificate.Section{Title: strings.TrimSpace(title), Content: content}, nil
}

func newCertificateIssueCommand(opts *rootOptions) *cobra.Command {
	var (
		title    string
		sections []string
		keyPath  string
		outPath  string
		publish  bool
	)

	cmd := &cobra.Command{
		Use:   "issue <session.json>",
		Short: "Issue a certificate for a sealed writing session",
		Long: `Issue a signed certificate for a sealed writing session.

The session is scored with the self-authored preset from the configuration
and signed with the configured key, or --key. With --publish the session
and the certificate are stored so the public verification page can show
them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			s, err := readSession(args[0])
			if err != nil {
				return err
			}
			if !s.Sealed() {
				return fmt.Errorf("%s: %w", args[0], forensics.ErrSessionNotSealed)
			}

			secs := make([]certificate.Section, 0, len(sections))
			for _, v := range sections {
				sec, err := parseSection(v)
				if err != nil {
					return err
				}
				secs = append(secs, sec)
			}

			var key ed25519.PrivateKey
			if keyPath != "" {
				key, err = signer.LoadPrivateKey(keyPath)
			} else {
				key, _, err = signingKey(cfg)
			}
			if err != nil {
				return fmt.Errorf("signing key: %w", err)
			}

			policy, err := forensics.PolicyByName(cfg.Scoring.SelfAuthoredPreset)
			if err != nil {
				return err
			}
			c, err := certificate.Issue(certificate.Request{
				Title:    title,
				Sections: secs,
				Session:  s,
				Policy:   &policy,
				IssuedAt: opts.now(),
			}, key)
			if err != nil {
				return err
			}

			if publish {
				if err := publishCertificate(cmd, cfg, c, s); err != nil {
					return err
				}
			}
			if outPath != "" {
				data, err := json.MarshalIndent(c, "", "  ")
				if err != nil {
					return err
				}
				if err := os.WriteFile(outPath, append(data, '\n'), 0644); err != nil {
					return fmt.Errorf("write certificate: %w", err)
				}
			}

			return opts.print(cmd.OutOrStdout(), c, func(w io.Writer) error {
				return certificate.WriteText(w, c, cfg.Server.PublicBaseURL)
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "document title")
	cmd.Flags().StringArrayVar(&sections, "section", nil, "document section as Heading=content (repeatable)")
	cmd.Flags().StringVar(&keyPath, "key", "", "signing key (default: the configured key)")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "also write the certificate JSON to this file")
	cmd.Flags().BoolVar(&publish, "publish", false, "store the session and certificate for public verification")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func publishCertificate(cmd *cobra.Command, cfg *config.Config, c *certificate.Certificate, ws *tracking.WritingSession) error {
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.SaveSession(ws); err != nil {
		return err
	}
	return st.SaveCertificate(cmd.Context(), c)
}

type verifyResult struct {
	ID       string   `json:"id"`
	Valid    bool     `json:"valid"`
	Problems []string `json:"problems"`
}

func newCertificateVerifyCommand(opts *rootOptions) *cobra.Command {
	var (
		sessionPath string
		pubKeyPath  string
		storedID    string
		all         bool
	)

	cmd := &cobra.Command{
		Use:   "verify [certificate.json]",
		Short: "Verify certificate signatures and sessions",
		Long: `Verify a certificate file, a stored certificate (--id) or every stored
certificate (--all).

The signature is checked with --pubkey when given, otherwise with the key
embedded in each certificate. For a file, --session also checks that the
session is the one the certificate was issued for; stored certificates are
checked against their stored session.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var pub ed25519.PublicKey
			if pubKeyPath != "" {
				var err error
				if pub, err = signer.LoadPublicKey(pubKeyPath); err != nil {
					return err
				}
			}

			var results []verifyResult
			var err error
			switch {
			case all:
				results, err = opts.verifyStored(cmd, pub, "")
			case storedID != "":
				results, err = opts.verifyStored(cmd, pub, storedID)
			case len(args) == 1:
				var res verifyResult
				res, err = verifyFile(args[0], sessionPath, pub)
				results = []verifyResult{res}
			default:
				return errors.New("give a certificate file, --id or --all")
			}
			if err != nil {
				return err
			}

			if err := opts.print(cmd.OutOrStdout(), results, func(w io.Writer) error {
				return writeVerifyText(w, results)
			}); err != nil {
				return err
			}
			for _, r := range results {
				if !r.Valid {
					return errVerificationFailed
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionPath, "session", "", "session file to check against the certificate")
	cmd.Flags().StringVar(&pubKeyPath, "pubkey", "", "public key in authorized_keys format")
	cmd.Flags().StringVar(&storedID, "id", "", "verify a stored certificate")
	cmd.Flags().BoolVar(&all, "all", false, "verify every stored certificate")
	return cmd
}

func verifyFile(path, sessionPath string, pub ed25519.PublicKey) (verifyResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return verifyResult{}, fmt.Errorf("read certificate: %w", err)
	}
	var c certificate.Certificate
	if err := json.Unmarshal(data, &c); err != nil {
		return verifyResult{}, fmt.Errorf("%s: %w", path, err)
	}

	res := verifyResult{ID: c.ID, Problems: []string{}}
	if err := certificate.Verify(&c, pub); err != nil {
		res.Problems = append(res.Problems, err.Error())
	}
	if sessionPath != "" {
		s, err := readSession(sessionPath)
		if err != nil {
			return verifyResult{}, err
		}
		if err := certificate.VerifySession(&c, s); err != nil {
			res.Problems = append(res.Problems, err.Error())
		}
	}
	res.Valid = len(res.Problems) == 0
	return res, nil
}

// verifyStored checks one stored certificate, or all of them when id is
// empty.
func (o *rootOptions) verifyStored(cmd *cobra.Command, pub ed25519.PublicKey, id string) ([]verifyResult, error) {
	var results []verifyResult
	err := o.withStore(func(cfg *config.Config, st *store.Store) error {
		if id != "" {
			c, err := st.VerifyCertificate(cmd.Context(), id, pub)
			if errors.Is(err, store.ErrNotFound) {
				return err
			}
			res := verifyResult{ID: id, Valid: err == nil, Problems: []string{}}
			if c != nil {
				res.ID = c.ID
			}
			if err != nil {
				res.Problems = append(res.Problems, err.Error())
			}
			results = append(results, res)
			return nil
		}

		bad, err := st.VerifyAllCertificates(cmd.Context(), pub)
		if err != nil {
			return err
		}
		results = []verifyResult{}
		for _, b := range bad {
			results = append(results, verifyResult{
				ID:       b.CertificateID,
				Problems: []string{b.Err.Error()},
			})
		}
		return nil
	})
	return results, err
}

func writeVerifyText(w io.Writer, results []verifyResult) error {
	if len(results) == 0 {
		_, err := fmt.Fprintln(w, "All stored certificates verified.")
		return err
	}
	for _, r := range results {
		status := "VALID"
		if !r.Valid {
			status = "INVALID"
		}
		if _, err := fmt.Fprintf(w, "%-14s %s\n", r.ID, status); err != nil {
			return err
		}
		for _, p := range r.Problems {
			if _, err := fmt.Fprintf(w, "  - %s\n", p); err != nil {
				return err
			}
		}
	}
	return nil
}
