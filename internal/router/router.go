// Package router maps a classified message onto the response shape the
// engine produces for it.
package router

import (
	"errors"
	"fmt"

	"github.com/raphaelgruber/legalchat/internal/models"
)

var (
	ErrUnknownIntent     = errors.New("unknown intent")
	ErrUnknownOfferState = errors.New("unknown offer state")
	ErrUnknownSource     = errors.New("unknown source")
)

// Route selects the response shape from the intent, the offer state observed
// before any transition, and the message source. It has no side effects.
func Route(intent models.IntentLabel, before models.OfferState, source models.Source) (models.ResponseShape, error) {
	switch before {
	case models.OfferNone, models.OfferPending, models.OfferFulfilled, models.OfferDeclined, models.OfferExpired:
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownOfferState, before)
	}

	switch intent {
	case models.IntentLegal:
		switch source {
		case models.SourceText:
			return models.ShapeLegalTextWithDocument, nil
		case models.SourceVoice:
			return models.ShapeLegalVoiceWithOffer, nil
		default:
			return "", fmt.Errorf("%w: %q", ErrUnknownSource, source)
		}
	case models.IntentChitchat:
		return models.ShapeChitchatReply, nil
	case models.IntentIrrelevant:
		return models.ShapeDeclineReply, nil
	case models.IntentPDFAffirm:
		if before == models.OfferPending {
			return models.ShapeDocumentDelivery, nil
		}
		return models.ShapeChitchatReply, nil
	case models.IntentPDFReject:
		if before == models.OfferPending {
			return models.ShapeOfferDeclinedAck, nil
		}
		return models.ShapeChitchatReply, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownIntent, intent)
	}
}

// NeedsResearch reports whether the shape requires a research call.
func NeedsResearch(shape models.ResponseShape) bool {
	return shape == models.ShapeLegalTextWithDocument || shape == models.ShapeLegalVoiceWithOffer
}

// SpeaksReply reports whether a reply of this shape is also synthesized as
// audio for a voice message. Documents are delivered as files, not read out.
func SpeaksReply(shape models.ResponseShape, source models.Source) bool {
	if source != models.SourceVoice {
		return false
	}
	switch shape {
	case models.ShapeChitchatReply, models.ShapeDeclineReply, models.ShapeLegalVoiceWithOffer, models.ShapeOfferDeclinedAck:
		return true
	default:
		return false
	}
}
