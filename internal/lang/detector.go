// Package lang classifies message text into a script family.
package lang

import (
	"unicode"

	"github.com/raphaelgruber/legalchat/internal/models"
)

// DefaultThreshold is the share of secondary-script letters above which a
// message is tagged secondary.
const DefaultThreshold = 0.2

// secondaryRanges covers Arabic, Arabic Supplement and the presentation forms
// used by Urdu keyboards.
var secondaryRanges = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x0600, Hi: 0x06FF, Stride: 1},
		{Lo: 0x0750, Hi: 0x077F, Stride: 1},
		{Lo: 0xFB50, Hi: 0xFDFF, Stride: 1},
		{Lo: 0xFE70, Hi: 0xFEFF, Stride: 1},
	},
}

// Detector tags text by counting secondary-script letters.
type Detector struct {
	threshold float64
}

// NewDetector creates a detector. A non-positive threshold uses DefaultThreshold.
func NewDetector(threshold float64) *Detector {
	if threshold <= 0 || threshold >= 1 {
		threshold = DefaultThreshold
	}
	return &Detector{threshold: threshold}
}

// Detect returns LanguageSecondary when more than threshold of the letters in
// text belong to the secondary script. Text without letters is primary.
func (d *Detector) Detect(text string) models.LanguageTag {
	letters, secondary := Count(text)
	if letters == 0 {
		return models.LanguagePrimary
	}
	if float64(secondary) > float64(letters)*d.threshold {
		return models.LanguageSecondary
	}
	return models.LanguagePrimary
}

// Count returns the number of letters and of secondary-script letters in text.
func Count(text string) (letters, secondary int) {
	for _, r := range text {
		if !unicode.IsLetter(r) && !unicode.Is(unicode.Mn, r) {
			continue
		}
		letters++
		if unicode.Is(secondaryRanges, r) {
			secondary++
		}
	}
	return letters, secondary
}
