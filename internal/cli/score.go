package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"realcv/internal/forensics"
	"realcv/internal/tracking"
)

type scoreResult struct {
	SessionID string                   `json:"sessionId"`
	Preset    string                   `json:"preset"`
	Tier      forensics.Tier           `json:"tier"`
	TierLabel string                   `json:"tierLabel"`
	Metrics   *forensics.TypingMetrics `json:"metrics"`
	Badges    []forensics.Badge        `json:"badges"`
}

type tierResult struct {
	SessionID        string         `json:"sessionId"`
	Tier             forensics.Tier `json:"tier"`
	Label            string         `json:"label"`
	CertificateLabel string         `json:"certificateLabel"`
}

func newScoreCommand(opts *rootOptions) *cobra.Command {
	var (
		preset   string
		textPath string
	)

	cmd := &cobra.Command{
		Use:   "score <session.json>",
		Short: "Score a writing session",
		Long: `Score a writing session file and print its authenticity report.

The session is normalized first: counters are checked against the event
log and an open session is sealed at its last event. The response text
defaults to the session's final text.

Presets: ` + strings.Join(forensics.PresetNames(), ", "),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := forensics.PolicyByName(preset)
			if err != nil {
				return err
			}
			s, err := readSession(args[0])
			if err != nil {
				return err
			}

			text := s.FinalText
			if textPath != "" {
				data, err := os.ReadFile(textPath)
				if err != nil {
					return fmt.Errorf("read text: %w", err)
				}
				text = string(data)
			}

			s = tracking.Normalize(s, text, opts.now())
			m, err := forensics.Score(s, text, policy)
			if err != nil {
				return err
			}
			tier := forensics.Classify(s)

			res := scoreResult{
				SessionID: s.ID,
				Preset:    policy.Name,
				Tier:      tier,
				TierLabel: tier.CertificateLabel(),
				Metrics:   m,
				Badges:    forensics.Badges(m),
			}
			return opts.print(cmd.OutOrStdout(), res, func(w io.Writer) error {
				forensics.PrintReport(w, s, m)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&preset, "preset", forensics.PresetSelfAuthored, "scoring preset")
	cmd.Flags().StringVar(&textPath, "text", "", "file holding the response text (default: the session's final text)")
	return cmd
}

func newTierCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tier <session.json>",
		Short: "Print the trust tier of a writing session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := readSession(args[0])
			if err != nil {
				return err
			}
			s = tracking.Normalize(s, "", opts.now())
			tier := forensics.Classify(s)

			res := tierResult{
				SessionID:        s.ID,
				Tier:             tier,
				Label:            tier.Label(),
				CertificateLabel: tier.CertificateLabel(),
			}
			return opts.print(cmd.OutOrStdout(), res, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, res.CertificateLabel)
				return err
			})
		},
	}
}
