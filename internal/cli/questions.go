package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"realcv/internal/config"
	"realcv/internal/portal"
	"realcv/internal/store"
)

func newQuestionsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "questions",
		Aliases: []string{"question-sets"},
		Short:   "Manage employer question sets",
	}
	cmd.AddCommand(newQuestionsCreateCommand(opts))
	cmd.AddCommand(newQuestionsShowCommand(opts))
	cmd.AddCommand(newQuestionsListCommand(opts))
	cmd.AddCommand(newQuestionsDeactivateCommand(opts))
	return cmd
}

func newQuestionsCreateCommand(opts *rootOptions) *cobra.Command {
	var (
		title        string
		questions    []string
		employer     string
		expiresHours float64
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a question set and print its share token",
		Long: `Create a question set. Questions keep the order they are given in.
Without --expires-hours the configured default applies; 0 never expires.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := portal.CreateRequest{
				Title:     title,
				CreatedBy: employer,
			}
			for i, q := range questions {
				req.Questions = append(req.Questions, portal.QuestionInput{Text: q, Order: i + 1})
			}
			if cmd.Flags().Changed("expires-hours") {
				if expiresHours < 0 {
					return fmt.Errorf("--expires-hours must not be negative")
				}
				req.ExpiresIn = -1
				if expiresHours > 0 {
					req.ExpiresIn = time.Duration(expiresHours * float64(time.Hour))
				}
			}

			return opts.withStore(func(cfg *config.Config, st *store.Store) error {
				svc, err := opts.portalService(cfg, st)
				if err != nil {
					return err
				}
				qs, err := svc.CreateQuestionSet(cmd.Context(), req)
				if err != nil {
					return err
				}
				return opts.print(cmd.OutOrStdout(), qs, func(w io.Writer) error {
					return writeQuestionSet(w, qs)
				})
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "question set title")
	cmd.Flags().StringArrayVarP(&questions, "question", "q", nil, "question text (repeatable)")
	cmd.Flags().StringVar(&employer, "employer", "", "employer identity that owns the set")
	cmd.Flags().Float64Var(&expiresHours, "expires-hours", 0, "hours until the link expires (0 never)")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("question")
	_ = cmd.MarkFlagRequired("employer")
	return cmd
}

func newQuestionsShowCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <token>",
		Short: "Show the questions a candidate sees for a token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(func(cfg *config.Config, st *store.Store) error {
				svc, err := opts.portalService(cfg, st)
				if err != nil {
					return err
				}
				qs, err := svc.QuestionSetByToken(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				public := qs.Public()
				return opts.print(cmd.OutOrStdout(), public, func(w io.Writer) error {
					fmt.Fprintf(w, "%s\n\n", public.Title)
					for i, q := range public.Questions {
						fmt.Fprintf(w, "%d. %s\n", i+1, q.Text)
					}
					return nil
				})
			})
		},
	}
}

func newQuestionsListCommand(opts *rootOptions) *cobra.Command {
	var employer string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the question sets an employer created",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(func(cfg *config.Config, st *store.Store) error {
				svc, err := opts.portalService(cfg, st)
				if err != nil {
					return err
				}
				sets, err := svc.QuestionSetsFor(cmd.Context(), employer)
				if err != nil {
					return err
				}
				if sets == nil {
					sets = []portal.QuestionSet{}
				}
				return opts.print(cmd.OutOrStdout(), sets, func(w io.Writer) error {
					if len(sets) == 0 {
						fmt.Fprintln(w, "No question sets.")
						return nil
					}
					for _, qs := range sets {
						status := "active"
						if !qs.IsActive {
							status = "inactive"
						} else if qs.Expired(opts.now()) {
							status = "expired"
						}
						fmt.Fprintf(w, "%-40s %-8s %-28s %s\n", qs.ID, status, qs.Token, qs.Title)
					}
					return nil
				})
			})
		},
	}
	cmd.Flags().StringVar(&employer, "employer", "", "employer identity")
	_ = cmd.MarkFlagRequired("employer")
	return cmd
}

func newQuestionsDeactivateCommand(opts *rootOptions) *cobra.Command {
	var employer string

	cmd := &cobra.Command{
		Use:   "deactivate <id>",
		Short: "Close a question set to new submissions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(func(cfg *config.Config, st *store.Store) error {
				svc, err := opts.portalService(cfg, st)
				if err != nil {
					return err
				}
				if err := svc.Deactivate(cmd.Context(), args[0], employer); err != nil {
					return err
				}
				if !opts.jsonOutput {
					fmt.Fprintf(cmd.OutOrStdout(), "Deactivated %s\n", args[0])
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&employer, "employer", "", "employer identity that owns the set")
	_ = cmd.MarkFlagRequired("employer")
	return cmd
}

func writeQuestionSet(w io.Writer, qs *portal.QuestionSet) error {
	fmt.Fprintf(w, "Question set:  %s\n", qs.ID)
	fmt.Fprintf(w, "Title:         %s\n", qs.Title)
	fmt.Fprintf(w, "Token:         %s\n", qs.Token)
	if qs.ExpiresAt != nil {
		fmt.Fprintf(w, "Expires:       %s\n", qs.ExpiresAt.UTC().Format(time.RFC3339))
	} else {
		fmt.Fprintln(w, "Expires:       never")
	}
	fmt.Fprintln(w, strings.Repeat("-", 40))
	for _, q := range qs.Public().Questions {
		fmt.Fprintf(w, "%d. %s\n", q.Order, q.Text)
	}
	return nil
}
