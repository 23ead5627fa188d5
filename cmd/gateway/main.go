// Command gateway is the CLI entry point for the Dexter multi-channel
// agent gateway: "gateway run" starts every configured channel plugin and
// serves inbound traffic through the agent loop; "gateway login" lets an
// operator approve a pending DM pairing request by its code, printing the
// approved phone number and rendering it as a QR code.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "gateway",
		Short: "Dexter multi-channel agent gateway",
	}
	root.AddCommand(buildRunCmd(), buildLoginCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// signalContext returns a context cancelled on SIGINT/SIGTERM, for the
// graceful-shutdown contract in spec §6 CLI.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
