package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/raphaelgruber/feelfree-go/internal/metrics"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show server runtime statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	s, err := newClient().Stats(context.Background())
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}
	printStats(cmd.OutOrStdout(), s)
	return nil
}

func printStats(w io.Writer, s *metrics.Snapshot) {
	uptime := time.Duration(s.UptimeSeconds * float64(time.Second)).Round(time.Second)
	fmt.Fprintf(w, "Uptime:       %s\n", uptime)
	fmt.Fprintf(w, "Active chats: %d\n", s.ActiveChats)

	ops := []struct {
		name string
		op   *metrics.OperationSnapshot
	}{
		{"Model replies", s.LLMGenerate},
		{"Store loads", s.StoreLoad},
		{"Store saves", s.StoreSave},
		{"Store deletes", s.StoreDelete},
	}
	for _, o := range ops {
		if o.op == nil {
			continue
		}
		fmt.Fprintf(w, "\n%s:\n", o.name)
		fmt.Fprintf(w, "  Calls:  %d (%d errors)\n", o.op.Count, o.op.Errors)
		fmt.Fprintf(w, "  Time:   avg %.0fms, min %dms, max %dms\n", o.op.AvgTimeMs, o.op.MinTimeMs, o.op.MaxTimeMs)
		if o.op.TotalInputTokens != nil && o.op.TotalOutputTokens != nil {
			fmt.Fprintf(w, "  Tokens: %d in, %d out\n", *o.op.TotalInputTokens, *o.op.TotalOutputTokens)
		}
	}
}
