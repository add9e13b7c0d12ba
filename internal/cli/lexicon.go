package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/legalchat/internal/lexicon"
)

var lexiconCmd = &cobra.Command{
	Use:   "lexicon",
	Short: "Show the loaded lexicon version and list sizes",
	Long: `Show the version of the word lists used by the lexical classification tiers.

The embedded lexicon is used unless LEGALCHAT_LEXICON_FILE points at a YAML file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		lex, err := lexicon.Load(cfg.LexiconFile)
		if err != nil {
			return err
		}

		source := "embedded"
		if cfg.LexiconFile != "" {
			source = cfg.LexiconFile
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Lexicon %s (%s)\n", defaultTheme.completedStyle().Render(lex.Version), source)
		fmt.Fprintf(out, "  Chitchat:    %d entries\n", lex.Chitchat.Len())
		fmt.Fprintf(out, "  Affirmative: %d entries\n", lex.Affirmative.Len())
		fmt.Fprintf(out, "  Rejection:   %d entries\n", lex.Rejection.Len())
		return nil
	},
}
