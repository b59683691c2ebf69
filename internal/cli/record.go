package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"realcv/internal/forensics"
	"realcv/internal/tracking"
)

type recordResult struct {
	SessionID      string                   `json:"sessionId"`
	Applied        int                      `json:"applied"`
	RejectedPastes int                      `json:"rejectedPastes"`
	Sealed         bool                     `json:"sealed"`
	SessionFile    string                   `json:"sessionFile"`
	Session        *tracking.WritingSession `json:"session"`
}

func newRecordCommand(opts *rootOptions) *cobra.Command {
	var (
		id       string
		fresh    bool
		keepOpen bool
		outPath  string
	)

	cmd := &cobra.Command{
		Use:   "record <actions.json>",
		Short: "Record a writing session from captured editor actions",
		Long: `Replay a JSON array of editor actions through a session recorder.

Each action is {"timestamp": <epoch ms>, "type": "key"|"paste"|"tab",
"key": ..., "pasted": ..., "text": <editor text after the action>}.
Typing time uses the configured idle timeout and tick interval, and pastes
over the configured maximum length are refused.

The session is kept in the configured session directory. An existing
session with the same id is resumed unless --fresh is given. With --open
the session is left unsealed so a later record call can continue it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read actions: %w", err)
			}
			actions, err := tracking.DecodeActions(data)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			if len(actions) == 0 {
				return errors.New("no actions to record")
			}
			if id == "" {
				id = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}

			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}
			files, err := tracking.NewFileStore(cfg.Storage.SessionDir)
			if err != nil {
				return err
			}
			log, err := newLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer log.Close()

			clock := tracking.NewManualClock(time.UnixMilli(actions[0].Timestamp))
			mgr := tracking.NewManager(tracking.Config{
				Store:        files,
				Clock:        clock,
				Logger:       log.WithComponent("tracking").Logger,
				IdleTimeout:  cfg.TypingIdleTimeout(),
				TickInterval: cfg.TypingTick(),
			})
			rec, err := mgr.Open(id, fresh)
			if err != nil {
				return err
			}
			rec.Start()

			replayed, err := tracking.Replay(rec, clock, actions, cfg.Tracking.MaxPasteLength)
			if err != nil {
				mgr.CloseAll()
				return fmt.Errorf("%s: %w", args[0], err)
			}

			res := recordResult{
				SessionID:      id,
				Applied:        replayed.Applied,
				RejectedPastes: replayed.RejectedPastes,
				SessionFile:    filepath.Join(cfg.Storage.SessionDir, id+".json"),
			}
			if keepOpen {
				res.Session = rec.Snapshot()
				mgr.CloseAll()
			} else {
				final := replayed.FinalText
				if final == "" {
					final = rec.Snapshot().FinalText
				}
				if res.Session, err = mgr.Stop(id, final); err != nil {
					return err
				}
				res.Sealed = true
			}

			if outPath != "" {
				data, err := json.MarshalIndent(res.Session, "", "  ")
				if err != nil {
					return err
				}
				if err := os.WriteFile(outPath, append(data, '\n'), 0644); err != nil {
					return fmt.Errorf("write session: %w", err)
				}
			}

			return opts.print(cmd.OutOrStdout(), res, func(w io.Writer) error {
				return writeRecordText(w, &res)
			})
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "session id (default: the actions file name)")
	cmd.Flags().BoolVar(&fresh, "fresh", false, "discard any stored session with the same id")
	cmd.Flags().BoolVar(&keepOpen, "open", false, "leave the session unsealed for a later record call")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "also write the session JSON to this file")
	return cmd
}

func writeRecordText(w io.Writer, res *recordResult) error {
	s := res.Session
	state := "open"
	if res.Sealed {
		state = "sealed"
	}
	fmt.Fprintf(w, "Session:       %s (%s)\n", res.SessionID, state)
	fmt.Fprintf(w, "Stored at:     %s\n", res.SessionFile)
	fmt.Fprintf(w, "Actions:       %d applied, %d pastes refused\n", res.Applied, res.RejectedPastes)
	fmt.Fprintf(w, "Keystrokes:    %d (%d edits)\n", s.KeystrokeCount, s.EditCount)
	fmt.Fprintf(w, "Typing time:   %s\n", forensics.FormatDuration(s.TypingTime()))
	if res.Sealed {
		_, err := fmt.Fprintf(w, "Trust tier:    %s\n", forensics.Classify(s).CertificateLabel())
		return err
	}
	return nil
}
