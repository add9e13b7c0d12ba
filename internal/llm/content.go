package llm

import (
	"context"
	"fmt"

	"github.com/raphaelgruber/legalchat/internal/metrics"
	"github.com/raphaelgruber/legalchat/internal/models"
)

func languageName(lang models.LanguageTag) string {
	if lang == models.LanguageSecondary {
		return "Urdu (Urdu script)"
	}
	return "English"
}

// Summarize condenses research findings into a spoken-style answer without
// citations, for users who receive the reply as audio.
func (m *Model) Summarize(ctx context.Context, query string, findings models.Research, lang models.LanguageTag) (string, error) {
	system := fmt.Sprintf(`You are a friendly legal assistant speaking to a user through a WhatsApp voice message.
The user may not be able to read.

Write a spoken summary that:
- directly answers the user's legal question in simple language
- includes the important legal principles, procedures and rights from the research
- has NO case numbers, citations or links
- uses a warm, conversational tone
- stays under 400 words
- is written in %s`, languageName(lang))

	user := fmt.Sprintf("QUESTION: %s\n\nRESEARCH FINDINGS (%d cases):\n%s\n\nVOICE SUMMARY:",
		query, findings.CaseCount, findings.Findings)

	return m.generate(ctx, metrics.OpSummarize, system, user, 0.3)
}

// Chitchat produces a short friendly reply to small talk.
func (m *Model) Chitchat(ctx context.Context, name, text string, lang models.LanguageTag) (string, error) {
	system := fmt.Sprintf(`You are LawYaar, a friendly Pakistani legal assistant on WhatsApp.

Reply in 2-3 short sentences, in %s.
- If it's a greeting, greet back and offer help with legal questions.
- If it's thanks, acknowledge it and offer further help.
- Use emojis sparingly.`, languageName(lang))

	user := fmt.Sprintf("USER: %s\nMESSAGE: %s\n\nRESPONSE:", name, text)
	return m.generate(ctx, metrics.OpGenerate, system, user, 0.7)
}
