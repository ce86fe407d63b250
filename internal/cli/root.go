// Package cli provides the command-line interface for FeelFree.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/raphaelgruber/feelfree-go/internal/config"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose   bool
	serverURL string

	credsPath string

	// Global config and logger
	cfg      config.Config
	logger   = config.Discard()
	closeLog = func() error { return nil }
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "feelfree",
	Short: "Chat with a companion that knows how you like to talk",
	Long: `FeelFree is a conversational companion. Sign up, answer a short
questionnaire about yourself, and chat with an assistant whose tone,
language and topics follow your answers.

The CLI talks to a feelfree-server instance (FEELFREE_SERVER_URL or --server).`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if serverURL == "" {
			serverURL = cfg.ServerURL
		}
		if credsPath == "" {
			credsPath = defaultCredentialsPath()
		}

		// The TUI owns the terminal, so stderr logging is opt-in.
		console := io.Discard
		level := cfg.LogLevel
		if verbose {
			console = os.Stderr
			level = slog.LevelDebug
		}
		logger, closeLog = openLogger(console, cfg.LogFile, level)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if err := closeLog(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
		}
	},
}

func openLogger(console io.Writer, logFile string, level slog.Level) (*slog.Logger, func() error) {
	if logFile == "" {
		return config.NewLogger(console, io.Discard, level), func() error { return nil }
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return config.NewLogger(console, io.Discard, level), func() error { return nil }
	}
	return config.NewLogger(console, f, level), f.Close
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "server URL (default $FEELFREE_SERVER_URL)")
	rootCmd.PersistentFlags().StringVar(&credsPath, "credentials", "", "credentials file (default ~/.feelfree/credentials.yaml)")

	// Add subcommands
	rootCmd.AddCommand(signupCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(resendCmd)
	rootCmd.AddCommand(passwordCmd)
	rootCmd.AddCommand(onboardCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(statsCmd)
}
