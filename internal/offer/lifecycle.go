// Package offer implements the document-offer lifecycle:
// NONE -> PENDING -> {FULFILLED | DECLINED | EXPIRED}.
//
// Records are values; every transition returns an updated copy so callers
// can collect the writes for one message into a single mutation.
package offer

import (
	"errors"
	"fmt"
	"time"

	"github.com/raphaelgruber/legalchat/internal/models"
)

var (
	// ErrInvalidTransition is returned when a record is moved along an edge the lifecycle does not have.
	ErrInvalidTransition = errors.New("invalid offer transition")
	// ErrMultiplePending is returned when a conversation would hold more than one live offer.
	ErrMultiplePending = errors.New("more than one pending offer")
)

// Params holds the data captured when research completes.
type Params struct {
	Query    string
	Findings models.Research
	Summary  string
	Language models.LanguageTag
	Source   models.Source
}

// Create starts a new offer. Voice conversations get a PENDING offer awaiting
// an answer; text conversations receive the document at once, so the record
// is created FULFILLED.
func Create(p Params, now time.Time) models.OfferRecord {
	state := models.OfferFulfilled
	if p.Source == models.SourceVoice {
		state = models.OfferPending
	}
	return models.OfferRecord{
		ID:        models.NewID("offer"),
		State:     state,
		Query:     p.Query,
		Findings:  p.Findings,
		Summary:   p.Summary,
		CaseCount: p.Findings.CaseCount,
		Language:  p.Language,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Next returns the state a PENDING offer moves to when a message with the given
// intent arrives. Any answer that is not a yes or a no supersedes the offer.
func Next(intent models.IntentLabel) models.OfferState {
	switch intent {
	case models.IntentPDFAffirm:
		return models.OfferFulfilled
	case models.IntentPDFReject:
		return models.OfferDeclined
	default:
		return models.OfferExpired
	}
}

// Transition moves a PENDING record into a terminal state.
func Transition(o models.OfferRecord, to models.OfferState, now time.Time) (models.OfferRecord, error) {
	if o.State != models.OfferPending || !to.Terminal() {
		return o, fmt.Errorf("%w: %s -> %s (offer %s)", ErrInvalidTransition, o.State, to, o.ID)
	}
	o.State = to
	o.UpdatedAt = now
	return o, nil
}

// Fulfill marks a pending offer as delivered.
func Fulfill(o models.OfferRecord, now time.Time) (models.OfferRecord, error) {
	return Transition(o, models.OfferFulfilled, now)
}

// Decline marks a pending offer as refused.
func Decline(o models.OfferRecord, now time.Time) (models.OfferRecord, error) {
	return Transition(o, models.OfferDeclined, now)
}

// Expire marks a pending offer as superseded.
func Expire(o models.OfferRecord, now time.Time) (models.OfferRecord, error) {
	return Transition(o, models.OfferExpired, now)
}

// Plan is the set of offer writes produced by one inbound message.
type Plan struct {
	// Resolved is the previously live offer after its terminal transition.
	Resolved *models.OfferRecord
	// Created is the offer started by this message.
	Created *models.OfferRecord
}

// Resolve applies the lifecycle to the live offer of a conversation for one
// message. It returns an empty plan when nothing is pending.
func Resolve(live *models.OfferRecord, intent models.IntentLabel, now time.Time) (Plan, error) {
	if !live.Live() {
		return Plan{}, nil
	}
	next, err := Transition(*live, Next(intent), now)
	if err != nil {
		return Plan{}, err
	}
	return Plan{Resolved: &next}, nil
}

// WithCreated returns the plan with a new offer attached.
func (p Plan) WithCreated(o models.OfferRecord) Plan {
	p.Created = &o
	return p
}

// Offers lists the writes in commit order: the resolved record first, so the
// old offer is terminal before the new one becomes live.
func (p Plan) Offers() []models.OfferRecord {
	var out []models.OfferRecord
	if p.Resolved != nil {
		out = append(out, *p.Resolved)
	}
	if p.Created != nil {
		out = append(out, *p.Created)
	}
	return out
}

// After returns the state of the conversation's latest offer once the plan is applied.
func (p Plan) After(before models.OfferState) models.OfferState {
	switch {
	case p.Created != nil:
		return p.Created.State
	case p.Resolved != nil:
		return p.Resolved.State
	default:
		return before
	}
}

// Validate checks that a conversation holds at most one live offer and that
// it is the latest one.
func Validate(c *models.ConversationState) error {
	pending := c.PendingCount()
	if pending > 1 {
		return fmt.Errorf("%w: conversation %s has %d", ErrMultiplePending, c.ID, pending)
	}
	if pending == 1 && c.PendingOffer() == nil {
		return fmt.Errorf("%w: pending offer in %s is not the latest", ErrMultiplePending, c.ID)
	}
	return nil
}
