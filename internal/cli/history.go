package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/raphaelgruber/feelfree-go/internal/service"
	"github.com/spf13/cobra"
)

var clearYes bool

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the conversation so far",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the conversation and start over",
	Long: `Delete the stored conversation. A fresh greeting starts the new one.

Examples:
  feelfree clear
  feelfree clear --yes`,
	Args: cobra.NoArgs,
	RunE: runClear,
}

func init() {
	clearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "skip confirmation prompt")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	c, _, err := authedClient(ctx)
	if err != nil {
		return err
	}
	session, err := c.History(ctx)
	if errors.Is(err, service.ErrOnboardingIncomplete) {
		return errors.New("finish onboarding first with 'feelfree onboard'")
	}
	if err != nil {
		return userError(err)
	}
	fmt.Print(renderTranscript(session.Messages, defaultTheme))
	return nil
}

func runClear(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	c, _, err := authedClient(ctx)
	if err != nil {
		return err
	}

	if !clearYes {
		answer, err := newPrompter().line("Delete the whole conversation? [y/N] ")
		if err != nil {
			return err
		}
		if answer != "y" && answer != "Y" {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	session, err := c.Clear(ctx)
	if err != nil {
		return userError(err)
	}
	fmt.Println(defaultTheme.successStyle().Render("✓ Conversation cleared"))
	fmt.Print(renderTranscript(session.Messages, defaultTheme))
	return nil
}
