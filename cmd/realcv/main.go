// realcv - keystroke-verified writing certificates
//
//	realcv serve                          Run the HTTP API
//	realcv score <session.json>           Score a writing session
//	realcv tier <session.json>            Print a session's trust tier
//	realcv certificate issue|verify       Sign and check certificates
//	realcv keygen <path>                  Generate a signing key
//	realcv questions create|show|list     Manage employer question sets
//	realcv submissions list|show          Review candidate submissions
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"realcv/internal/cli"
)

// Version is set at build time with -ldflags.
var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx, Version); err != nil {
		fmt.Fprintf(os.Stderr, "realcv: %v\n", err)
		stop()
		os.Exit(1)
	}
}
