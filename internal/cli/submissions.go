package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"realcv/internal/config"
	"realcv/internal/forensics"
	"realcv/internal/portal"
	"realcv/internal/store"
)

func newSubmissionsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submissions",
		Short: "Review candidate submissions",
	}
	cmd.AddCommand(newSubmissionsListCommand(opts))
	cmd.AddCommand(newSubmissionsShowCommand(opts))
	return cmd
}

func newSubmissionsListCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list <question-set-id>",
		Short: "List the submissions for a question set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(func(cfg *config.Config, st *store.Store) error {
				svc, err := opts.portalService(cfg, st)
				if err != nil {
					return err
				}
				subs, err := svc.SubmissionsForSet(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if subs == nil {
					subs = []portal.CandidateSubmission{}
				}
				return opts.print(cmd.OutOrStdout(), subs, func(w io.Writer) error {
					if len(subs) == 0 {
						fmt.Fprintln(w, "No submissions.")
						return nil
					}
					for _, sub := range subs {
						fmt.Fprintf(w, "%-40s %-20s %5.1f  %2d flags  %s\n",
							sub.ID,
							sub.SubmittedAt.UTC().Format(time.RFC3339),
							sub.OverallScore,
							len(sub.Flags),
							candidateName(&sub))
					}
					return nil
				})
			})
		},
	}
}

func newSubmissionsShowCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a submission with its per-answer scores",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(func(cfg *config.Config, st *store.Store) error {
				svc, err := opts.portalService(cfg, st)
				if err != nil {
					return err
				}
				sub, err := svc.Submission(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return opts.print(cmd.OutOrStdout(), sub, func(w io.Writer) error {
					writeSubmission(w, sub)
					return nil
				})
			})
		},
	}
}

func candidateName(sub *portal.CandidateSubmission) string {
	name := strings.TrimSpace(sub.CandidateFirstName + " " + sub.CandidateLastName)
	switch {
	case name != "" && sub.CandidateEmail != "":
		return fmt.Sprintf("%s <%s>", name, sub.CandidateEmail)
	case name != "":
		return name
	case sub.CandidateEmail != "":
		return sub.CandidateEmail
	default:
		return "(anonymous)"
	}
}

func writeSubmission(w io.Writer, sub *portal.CandidateSubmission) {
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintf(w, "Submission:     %s\n", sub.ID)
	fmt.Fprintf(w, "Question set:   %s\n", sub.QuestionSetID)
	fmt.Fprintf(w, "Candidate:      %s\n", candidateName(sub))
	fmt.Fprintf(w, "Submitted:      %s\n", sub.SubmittedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "Overall score:  %.1f\n", sub.OverallScore)
	fmt.Fprintln(w, strings.Repeat("=", 72))

	for i, r := range sub.Responses {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "%d. %s\n", i+1, r.Question)
		fmt.Fprintln(w, strings.Repeat("-", 72))
		fmt.Fprintln(w, r.Response)
		fmt.Fprintln(w, strings.Repeat("-", 72))
		fmt.Fprintf(w, "Trust tier:        %s\n", r.Tier.CertificateLabel())
		fmt.Fprintf(w, "Human likelihood:  %d\n", r.Metrics.HumanLikelihood)
		fmt.Fprintf(w, "AI signature:      %.2f\n", r.Metrics.AISignatureScore)
		fmt.Fprintf(w, "Effort:            %s\n", r.Metrics.EffortScore)

		labels := make([]string, 0, 3)
		for _, b := range forensics.Badges(&r.Metrics) {
			labels = append(labels, b.Label)
		}
		fmt.Fprintf(w, "Badges:            %s\n", strings.Join(labels, ", "))
		for _, f := range r.Metrics.Flags {
			fmt.Fprintf(w, "  [ ! ] %s\n", f)
		}
	}
}
