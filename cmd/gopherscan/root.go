package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/nao1215/gopherscan/internal/log"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for gopherscan.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gopherscan",
		Short: "Breadth-first crawler and indexer for Gopher servers",
		Long: `gopherscan walks every directory of a Gopher server reachable from its
root, downloads the text and binary files it finds, checks whether the
servers linked from the listings answer, and prints an indexing report.

Connections go out directly by default. Use --proxy to route them through
a running Tor SOCKS5 proxy, or --tor to start an embedded Tor daemon.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs to stderr as JSON lines")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// persistentBool reads a global flag whether cmd is the root or a
// subcommand. Missing flags read as false.
func persistentBool(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		v, err = cmd.Root().PersistentFlags().GetBool(name)
		if err != nil {
			return false
		}
	}
	return v
}

// newLogger builds the stderr logger selected by the global flags.
func newLogger(cmd *cobra.Command, w io.Writer) *slog.Logger {
	verbose := persistentBool(cmd, "verbose")
	if persistentBool(cmd, "log-json") {
		return log.NewJSONLogger(w, verbose)
	}
	return log.NewLogger(w, verbose)
}
