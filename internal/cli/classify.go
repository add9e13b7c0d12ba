package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/legalchat/internal/app"
	"github.com/raphaelgruber/legalchat/internal/lang"
	"github.com/raphaelgruber/legalchat/internal/lexicon"
	"github.com/raphaelgruber/legalchat/internal/metrics"
)

var classifyPending bool

var classifyCmd = &cobra.Command{
	Use:   "classify <text>",
	Short: "Classify a message without touching any conversation",
	Long: `Run the intent classifier on a message and print the label, the tier that
decided it, and whether a fallback was used.

Examples:
  legalchat classify "hello"
  legalchat classify "what is the bail procedure for a murder case"
  legalchat classify "haan bhej do" --pending`,
	Args: cobra.MinimumNArgs(1),
	RunE: runClassify,
}

func init() {
	classifyCmd.Flags().BoolVar(&classifyPending, "pending", false, "classify as if a document offer is pending")
}

func runClassify(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	text := strings.Join(args, " ")

	lex, err := lexicon.Load(cfg.LexiconFile)
	if err != nil {
		return err
	}
	model := app.OpenModel(ctx, cfg, metrics.NewCollector(), logger)
	classifier := app.NewClassifier(cfg, lex, model, logger)

	res := classifier.Explain(ctx, text, classifyPending)
	language := lang.NewDetector(cfg.ScriptThreshold).Detect(text)

	t := defaultTheme
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, t.completedStyle().Render(string(res.Label)))
	fmt.Fprintf(out, "  Tier:          %s\n", res.Tier)
	fmt.Fprintf(out, "  Language:      %s (%s)\n", language, language.Direction())
	fmt.Fprintf(out, "  Backend calls: %d\n", res.BackendCalls)
	if res.Fallback {
		fmt.Fprintln(out, t.errorStyle().Render("  Fallback used: model unavailable or unparseable"))
	}
	return nil
}
