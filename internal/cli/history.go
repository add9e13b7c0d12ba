package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/legalchat/internal/models"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history <identity>",
	Short: "Show a conversation's turns and document offers",
	Long: `Show the stored turns and offer records of one conversation.

Examples:
  legalchat history +923001234567
  legalchat history +923001234567 -n 10
  legalchat history +923001234567 --server http://localhost:8484`,
	Args: cobra.ExactArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 0, "show only the last n turns (0 = all)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	id := models.ConversationID(args[0])

	var (
		state *models.ConversationState
		err   error
	)
	if remote() {
		state, err = getClient().History(ctx, id)
	} else {
		a, aerr := getApp(ctx)
		if aerr != nil {
			return aerr
		}
		state, err = a.Engine.Conversation(ctx, id)
	}
	if err != nil {
		return fmt.Errorf("load conversation: %w", err)
	}

	printHistory(cmd.OutOrStdout(), state, historyLimit)
	return nil
}

// printHistory renders turns and offers of a conversation.
func printHistory(w io.Writer, state *models.ConversationState, limit int) {
	t := defaultTheme
	if len(state.Turns) == 0 {
		fmt.Fprintf(w, "No messages for %s.\n", state.ID)
		return
	}

	fmt.Fprintf(w, "Conversation %s (version %d)\n", state.ID, state.Version)
	fmt.Fprintf(w, "═══════════════════════════════════════\n")

	turns := state.Turns
	if limit > 0 && len(turns) > limit {
		fmt.Fprintln(w, t.hintStyle().Render(fmt.Sprintf("... %d earlier turns", len(turns)-limit)))
		turns = turns[len(turns)-limit:]
	}

	for _, turn := range turns {
		role := t.statusStyle().Render(string(turn.Role))
		if turn.Role == models.RoleAssistant {
			role = t.completedStyle().Render(string(turn.Role))
		}
		meta := []string{turn.Timestamp.Format("2006-01-02 15:04:05"), string(turn.Source), string(turn.Language)}
		if turn.Intent != "" {
			meta = append(meta, string(turn.Intent))
		}
		if turn.OfferID != "" {
			meta = append(meta, turn.OfferID)
		}
		fmt.Fprintf(w, "\n%s %s\n", role, t.hintStyle().Render(strings.Join(meta, " · ")))
		fmt.Fprintln(w, turn.Text)
	}

	if len(state.Offers) == 0 {
		return
	}
	fmt.Fprintf(w, "\nOffers:\n")
	for _, o := range state.Offers {
		fmt.Fprintf(w, "  %-20s %-10s %3d cases  %s  %q\n",
			o.ID, o.State, o.CaseCount, o.Language, truncate(o.Query, 60))
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
