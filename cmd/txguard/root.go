package main

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "txguard",
	Short: "txguard explains what a Solana transaction will do before you sign it.",
	Long: `Decode a Solana transaction, match the programs and addresses it touches against
curated trust lists, and optionally ask a language model for a plain verdict.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// setup loads .env from the current directory and configures logging for
// every command.
func setup(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil {
		logrus.Debug(".env file not found, using the environment only")
	}

	level, err := logrus.ParseLevel(strings.ToLower(logLevel))
	if err != nil {
		return errors.Errorf("unknown log level %q", logLevel)
	}
	logrus.SetLevel(level)
	logrus.SetOutput(cmd.ErrOrStderr())
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level for diagnostics written to stderr")

	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newTrustListCmd())
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
