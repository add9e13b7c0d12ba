package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/raphaelgruber/legalchat/internal/client"
	"github.com/raphaelgruber/legalchat/internal/models"
)

var (
	sendVoice      bool
	sendName       string
	sendMessageID  string
	sendNoProgress bool
)

var sendCmd = &cobra.Command{
	Use:   "send <identity> <text>",
	Short: "Send one message through the engine",
	Long: `Send one inbound message through the conversation engine and print the reply.

The identity is the conversation key, usually the sender's phone number.
With --voice the message is treated as a transcribed voice note, so legal
answers come back as a spoken summary with an offer of the full document.

Examples:
  legalchat send +923001234567 "What is the punishment for theft?"
  legalchat send +923001234567 "چوری کی سزا کیا ہے؟" --voice
  legalchat send +923001234567 haan --voice
  legalchat send +923001234567 hello --server http://localhost:8484`,
	Args: cobra.MinimumNArgs(2),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().BoolVar(&sendVoice, "voice", false, "treat the text as a transcribed voice note")
	sendCmd.Flags().StringVar(&sendName, "name", "", "sender display name")
	sendCmd.Flags().StringVar(&sendMessageID, "message-id", "", "transport message id (for de-duplication)")
	sendCmd.Flags().BoolVar(&sendNoProgress, "no-progress", false, "disable the interactive wait display")
}

func runSend(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	in := models.Inbound{
		MessageID: sendMessageID,
		Identity:  models.ConversationID(args[0]),
		Name:      sendName,
		Text:      strings.Join(args[1:], " "),
		Source:    models.SourceText,
	}
	if sendVoice {
		in.Source = models.SourceVoice
	}

	send, err := sender(ctx, in)
	if err != nil {
		return err
	}

	var result *client.SendResult
	if !sendNoProgress && term.IsTerminal(int(os.Stdout.Fd())) {
		result, err = runWithProgress(ctx, send, cfg.ResearchTimeout)
	} else {
		result, err = send(ctx)
	}
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	if result.Duplicate {
		fmt.Fprintln(cmd.OutOrStdout(), defaultTheme.hintStyle().Render("Duplicate message, already handled."))
		return nil
	}
	printResponse(cmd.OutOrStdout(), result.Response)
	return nil
}

// sender returns a function delivering in to the server or the local engine.
func sender(ctx context.Context, in models.Inbound) (sendFunc, error) {
	if remote() {
		c := getClient()
		return func(ctx context.Context) (*client.SendResult, error) {
			return c.Send(ctx, in)
		}, nil
	}

	a, err := getApp(ctx)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) (*client.SendResult, error) {
		resp, err := a.Engine.HandleMessage(ctx, in)
		if err != nil {
			return nil, err
		}
		return &client.SendResult{Response: &resp}, nil
	}, nil
}

// printResponse renders a reply for the terminal.
func printResponse(w io.Writer, resp *models.Response) {
	if resp == nil {
		return
	}
	t := defaultTheme

	header := fmt.Sprintf("[%s]", resp.Shape)
	switch resp.Shape {
	case models.ShapeApology, models.ShapeTryAgain:
		header = t.errorStyle().Render(header)
	default:
		header = t.completedStyle().Render(header)
	}
	fmt.Fprintf(w, "%s %s\n", header, t.hintStyle().Render(fmt.Sprintf(
		"intent=%s lang=%s dir=%s offer=%s", orDash(string(resp.Intent)), resp.Language, resp.Direction, resp.OfferState)))
	fmt.Fprintln(w)
	fmt.Fprintln(w, resp.Text)

	if resp.OfferPrompt != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, t.statusStyle().Render(resp.OfferPrompt))
	}
	if resp.Document != nil {
		fmt.Fprintf(w, "\nDocument: %s\n", resp.Document.Path)
	}
	if resp.Voice != nil {
		fmt.Fprintf(w, "\nVoice: %s (%s)\n", resp.Voice.Path, resp.Voice.MimeType)
	}
	if resp.Degraded {
		fmt.Fprintln(w, t.errorStyle().Render("\n! rendering failed, reply sent as text"))
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
