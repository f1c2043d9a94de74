package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	var logFormat, logLevel string

	rootCmd := &cobra.Command{
		Use:   "nexlog",
		Short: "Recover J1939 frames from Nexiq Device Tester sniffer logs",
		Long: `nexlog parses the proprietary log format written by the Nexiq Device
Tester, decodes the embedded RP1210 J1939 frames, rebuilds the 29-bit
extended CAN identifier and annotates each frame with its PGN label.

Records can be exported to CSV or SQLite, streamed to TCP subscribers,
or replayed onto a SocketCAN interface.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogger(logFormat, logLevel)
		},
	}
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text|json")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug|info|warn|error")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConvertCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newReplayCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
