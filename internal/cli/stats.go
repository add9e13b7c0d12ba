package cli

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/legalchat/internal/metrics"
)

var statsDetailed bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show server statistics",
	Long: `Show a running server's runtime statistics: operation timings, token usage,
and counters per response shape, intent, and fallback kind.

Uses --server, LEGALCHAT_SERVER_URL, or http://localhost:8484.

Examples:
  legalchat stats
  legalchat stats --detailed`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsDetailed, "detailed", false, "show intent and fallback breakdown")
}

func runStats(cmd *cobra.Command, args []string) error {
	stats, err := getClient().Stats(context.Background())
	if err != nil {
		return fmt.Errorf("get server stats: %w", err)
	}
	printServerStats(cmd.OutOrStdout(), stats, statsDetailed)
	return nil
}

// printServerStats displays server runtime statistics.
func printServerStats(w io.Writer, stats *metrics.Snapshot, detailed bool) {
	fmt.Fprintf(w, "Server Statistics (in-memory, since restart)\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════\n")
	fmt.Fprintf(w, "Uptime: %.1f seconds\n", stats.UptimeSeconds)

	ops := []struct {
		title  string
		op     *metrics.OperationSnapshot
		tokens bool
	}{
		{"Turns", stats.Turn, false},
		{"Classification", stats.ClassifyBackend, true},
		{"Generation", stats.Generate, true},
		{"Voice Summary", stats.Summarize, true},
		{"Research", stats.Research, false},
		{"Document Rendering", stats.RenderDocument, false},
		{"Voice Synthesis", stats.SynthesizeVoice, false},
	}
	for _, o := range ops {
		if o.op == nil {
			continue
		}
		fmt.Fprintf(w, "\n%s:\n", o.title)
		printOpStats(w, o.op)
		if o.tokens {
			printTokenStats(w, o.op)
		}
	}

	printCounters(w, "Response Shapes", stats.Shapes)
	if detailed {
		printCounters(w, "Intents", stats.Intents)
		printCounters(w, "Fallbacks", stats.Fallbacks)
	}
}

// printOpStats displays timing statistics for an operation.
func printOpStats(w io.Writer, op *metrics.OperationSnapshot) {
	fmt.Fprintf(w, "  Calls: %d, Total: %dms\n", op.Count, op.TotalTimeMs)
	fmt.Fprintf(w, "  Time: avg %.1fms, min %dms, max %dms\n",
		op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
}

// printTokenStats displays token statistics if available.
func printTokenStats(w io.Writer, op *metrics.OperationSnapshot) {
	if op.TotalInputTokens == nil || op.TotalOutputTokens == nil {
		return
	}
	fmt.Fprintf(w, "  Tokens In:  %d total", *op.TotalInputTokens)
	if op.AvgInputTokens != nil {
		fmt.Fprintf(w, ", avg %.0f", *op.AvgInputTokens)
	}
	if op.MinInputTokens != nil && op.MaxInputTokens != nil {
		fmt.Fprintf(w, ", min %d, max %d", *op.MinInputTokens, *op.MaxInputTokens)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "  Tokens Out: %d total", *op.TotalOutputTokens)
	if op.AvgOutputTokens != nil {
		fmt.Fprintf(w, ", avg %.0f", *op.AvgOutputTokens)
	}
	if op.MinOutputTokens != nil && op.MaxOutputTokens != nil {
		fmt.Fprintf(w, ", min %d, max %d", *op.MinOutputTokens, *op.MaxOutputTokens)
	}
	fmt.Fprintln(w)
}

// printCounters displays a counter group with percentages, largest first.
func printCounters(w io.Writer, title string, counts map[string]int64) {
	if len(counts) == 0 {
		return
	}
	var total int64
	names := make([]string, 0, len(counts))
	for name, n := range counts {
		names = append(names, name)
		total += n
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})

	fmt.Fprintf(w, "\n%s:\n", title)
	for _, name := range names {
		pct := float64(counts[name]) / float64(total) * 100
		fmt.Fprintf(w, "  %-26s %8d (%5.1f%%)\n", name, counts[name], pct)
	}
}
