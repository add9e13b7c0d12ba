package service

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/raphaelgruber/legalchat/internal/models"
)

const (
	maxReplyChars  = 3500
	truncateMargin = 200
	sentenceWindow = 500
	maxLinks       = 5
)

var boldPattern = regexp.MustCompile(`\*\*(.+?)\*\*`)

// FormatLegalText turns research findings into a chat reply: WhatsApp bold
// markup, a length cap and up to five case links.
func FormatLegalText(r models.Research, lang models.LanguageTag) string {
	text := boldPattern.ReplaceAllString(strings.TrimSpace(r.Findings), "*$1*")

	if utf8.RuneCountInString(text) > maxReplyChars {
		text = cutAtSentence(text) + "\n\n" + truncatedNote(r.CaseCount, lang)
	} else if r.CaseCount > 0 {
		text += "\n\n" + basedOnNote(r.CaseCount, lang)
	}

	if len(r.ReferenceLinks) == 0 {
		return text
	}

	var b strings.Builder
	b.WriteString(text)
	if lang == models.LanguageSecondary {
		b.WriteString("\n\n📄 *مکمل کیس دستاویزات:*\n")
	} else {
		b.WriteString("\n\n📄 *Full Case Documents:*\n")
	}
	n := 0
	for _, ref := range r.ReferenceLinks {
		if n == maxLinks {
			break
		}
		if ref.URL == "" {
			continue
		}
		n++
		caseNo := ref.CaseNo
		if caseNo == "" {
			caseNo = "Case"
		}
		fmt.Fprintf(&b, "%d. %s: %s\n", n, caseNo, ref.URL)
	}
	if extra := len(r.ReferenceLinks) - maxLinks; extra > 0 {
		if lang == models.LanguageSecondary {
			fmt.Fprintf(&b, "\n_مزید %d کیس دستاویزات_", extra)
		} else {
			fmt.Fprintf(&b, "\n_Plus %d more case documents_", extra)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func truncatedNote(cases int, lang models.LanguageTag) string {
	if lang == models.LanguageSecondary {
		return fmt.Sprintf("_[جواب مختصر کر دیا گیا۔ %d قانونی کیسز کا تجزیہ کیا گیا۔]_", cases)
	}
	return fmt.Sprintf("_[Response truncated for WhatsApp. %d legal cases analyzed.]_", cases)
}

func basedOnNote(cases int, lang models.LanguageTag) string {
	if lang == models.LanguageSecondary {
		return fmt.Sprintf("_%d متعلقہ قانونی کیسز کے تجزیے پر مبنی۔_", cases)
	}
	return fmt.Sprintf("_Based on analysis of %d relevant legal cases._", cases)
}

// VoiceFallback is the spoken reply used when summarization fails: the first
// two paragraphs of the findings.
func VoiceFallback(r models.Research, lang models.LanguageTag) string {
	var paragraphs []string
	for _, p := range strings.Split(strings.TrimSpace(r.Findings), "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
		if len(paragraphs) == 2 {
			break
		}
	}
	if len(paragraphs) == 0 {
		return msgVoiceFallbackLead.in(lang)
	}
	return boldPattern.ReplaceAllString(strings.Join(paragraphs, "\n\n"), "$1")
}

// sentenceEnds are the full stops and question marks of both scripts.
const sentenceEnds = ".۔؟"

// cutAtSentence keeps the first maxReplyChars-truncateMargin characters and,
// when a sentence ends within the last sentenceWindow characters of the cap,
// trims back to it.
func cutAtSentence(text string) string {
	r := []rune(text)
	if len(r) > maxReplyChars-truncateMargin {
		r = r[:maxReplyChars-truncateMargin]
	}
	for i := len(r) - 1; i > maxReplyChars-sentenceWindow; i-- {
		if strings.ContainsRune(sentenceEnds, r[i]) {
			return string(r[:i+1])
		}
	}
	return string(r)
}
