package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/legalchat/internal/client"
	"github.com/raphaelgruber/legalchat/internal/models"
)

var chatVoice bool

var chatCmd = &cobra.Command{
	Use:   "chat <identity>",
	Short: "Interactive conversation over the server's WebSocket endpoint",
	Long: `Open a WebSocket session to a legalchat-server and converse line by line.

Each line read from stdin is sent as one message. An empty line is ignored;
EOF or Ctrl+C ends the session.

Examples:
  legalchat chat +923001234567
  legalchat chat +923001234567 --voice --server http://localhost:8484`,
	Args: cobra.ExactArgs(1),
	RunE: runChat,
}

func init() {
	chatCmd.Flags().BoolVar(&chatVoice, "voice", false, "treat every line as a transcribed voice note")
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	identity := models.ConversationID(args[0])
	source := models.SourceText
	if chatVoice {
		source = models.SourceVoice
	}

	out := cmd.OutOrStdout()
	in := make(chan models.Inbound)
	errCh := make(chan error, 1)

	// ready gates the prompt until the previous reply has been printed
	ready := make(chan struct{}, 1)
	ready <- struct{}{}

	go func() {
		defer close(in)
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for {
			select {
			case <-ready:
			case <-ctx.Done():
				return
			}

			var line string
			for line == "" {
				fmt.Fprint(out, defaultTheme.statusStyle().Render("> "))
				if !scanner.Scan() {
					errCh <- scanner.Err()
					return
				}
				line = strings.TrimSpace(scanner.Text())
			}

			select {
			case in <- models.Inbound{Identity: identity, Text: line, Source: source}:
			case <-ctx.Done():
				return
			}
		}
	}()

	err := getClient().Converse(ctx, in, func(f client.Frame) error {
		switch f.Type {
		case "response":
			printResponse(out, f.Response)
		case "duplicate":
			fmt.Fprintln(out, defaultTheme.hintStyle().Render("Duplicate message, already handled."))
		default:
			fmt.Fprintln(out, defaultTheme.errorStyle().Render("✗ "+f.Error))
		}
		fmt.Fprintln(out)
		ready <- struct{}{}
		return nil
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("chat session: %w", err)
	}

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
	default:
	}
	return nil
}
