package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/raphaelgruber/legalchat/internal/intent"
	"github.com/raphaelgruber/legalchat/internal/metrics"
	"github.com/raphaelgruber/legalchat/internal/models"
)

var _ intent.Backend = (*Model)(nil)

const threeWaySystemPrompt = `You are a message classifier for a Pakistani legal assistant on WhatsApp.

Classify the user's message into exactly ONE category:

LEGAL - questions about Pakistani law, court cases, legal rights, procedures, bail, sentencing,
contracts, property, family, criminal or constitutional law.
CHITCHAT - greetings, thanks, small talk, questions about the assistant itself.
IRRELEVANT - topics unrelated to law (weather, sports, recipes, jokes, maths, movies).

Only classify as LEGAL when the message is genuinely about a legal matter.
If you are unsure whether a message is CHITCHAT or LEGAL, answer CHITCHAT.

Respond with ONLY one word: LEGAL, CHITCHAT or IRRELEVANT.`

const affirmativeSystemPrompt = `The assistant has just offered to send the user a detailed PDF report.
Decide whether the user's reply ACCEPTS the offer. The reply may be English, Urdu or romanized Urdu.

Examples:
"go ahead" -> AFFIRMATIVE
"haan bhai bhej do" -> AFFIRMATIVE
"ضرور بھیجیں" -> AFFIRMATIVE
"what does section 302 say" -> NOT_AFFIRMATIVE
"hmm" -> NOT_AFFIRMATIVE
"thanks" -> NOT_AFFIRMATIVE
"not now" -> NOT_AFFIRMATIVE

If the reply is ambiguous, answer NOT_AFFIRMATIVE.
Respond with ONLY one label: AFFIRMATIVE or NOT_AFFIRMATIVE.`

const rejectionSystemPrompt = `The assistant has just offered to send the user a detailed PDF report.
Decide whether the user's reply DECLINES the offer. The reply may be English, Urdu or romanized Urdu.

Examples:
"I'm good" -> REJECTION
"rehne do" -> REJECTION
"ابھی نہیں" -> REJECTION
"send it" -> NOT_REJECTION
"hmm" -> NOT_REJECTION
"what about inheritance" -> NOT_REJECTION
"ok" -> NOT_REJECTION

If the reply is ambiguous, answer NOT_REJECTION.
Respond with ONLY one label: REJECTION or NOT_REJECTION.`

// ClassifyThreeWay labels a message LEGAL, CHITCHAT or IRRELEVANT.
func (m *Model) ClassifyThreeWay(ctx context.Context, text string) (models.IntentLabel, error) {
	raw, err := m.generate(ctx, metrics.OpClassifyBackend, threeWaySystemPrompt, "MESSAGE: "+text, 0)
	if err != nil {
		return "", err
	}
	label, err := parseLabel(raw, string(models.IntentLegal), string(models.IntentChitchat), string(models.IntentIrrelevant))
	if err != nil {
		return "", err
	}
	return models.IntentLabel(label), nil
}

// ClassifyBinary answers whether a reply to a pending offer is an acceptance or a refusal.
func (m *Model) ClassifyBinary(ctx context.Context, text string, kind intent.BinaryKind) (bool, error) {
	var system, positive, negative string
	switch kind {
	case intent.KindAffirmative:
		system, positive, negative = affirmativeSystemPrompt, "AFFIRMATIVE", "NOT_AFFIRMATIVE"
	case intent.KindRejection:
		system, positive, negative = rejectionSystemPrompt, "REJECTION", "NOT_REJECTION"
	default:
		return false, fmt.Errorf("unknown binary kind %q", kind)
	}

	raw, err := m.generate(ctx, metrics.OpClassifyBackend, system, "REPLY: "+text, 0)
	if err != nil {
		return false, err
	}
	label, err := parseLabel(raw, positive, negative)
	if err != nil {
		return false, err
	}
	return label == positive, nil
}

// parseLabel accepts a reply only if, once trimmed of whitespace, quotes and
// trailing punctuation, it equals one of allowed (case-insensitive).
func parseLabel(raw string, allowed ...string) (string, error) {
	s := strings.ToUpper(strings.Trim(raw, " \t\r\n\"'`*.!"))
	for _, a := range allowed {
		if s == a {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnparseableLabel, truncate(raw, 40))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
