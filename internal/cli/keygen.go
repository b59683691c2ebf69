package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"realcv/internal/signer"
)

type keygenResult struct {
	PrivateKey    string `json:"privateKeyPath"`
	PublicKey     string `json:"publicKeyPath"`
	AuthorizedKey string `json:"authorizedKey"`
	Fingerprint   string `json:"fingerprint"`
}

func newKeygenCommand(opts *rootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "keygen <path>",
		Short: "Generate an Ed25519 certificate signing key",
		Long: `Generate an Ed25519 signing key in OpenSSH format at <path> and its
public half at <path>.pub. Existing keys are kept unless --force is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to replace it)", path)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}

			key, err := signer.GenerateKey()
			if err != nil {
				return err
			}
			if err := signer.WriteKeyPair(path, key); err != nil {
				return err
			}

			pub := signer.GetPublicKey(key)
			line, err := signer.AuthorizedKey(pub)
			if err != nil {
				return err
			}
			res := keygenResult{
				PrivateKey:    path,
				PublicKey:     path + ".pub",
				AuthorizedKey: strings.TrimSpace(string(line)),
				Fingerprint:   signer.Fingerprint(pub),
			}
			return opts.print(cmd.OutOrStdout(), res, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Private key:  %s\nPublic key:   %s\nFingerprint:  %s\n",
					res.PrivateKey, res.PublicKey, res.Fingerprint)
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing key")
	return cmd
}
