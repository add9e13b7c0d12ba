// Package models defines the data structures shared by the conversation engine.
package models

import (
	"time"
)

// ConversationID identifies one end-user thread (the messaging identity).
type ConversationID string

// Role is the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Source is the modality of an inbound message.
type Source string

const (
	SourceText  Source = "text"
	SourceVoice Source = "voice"
)

// ParseSource maps a transport value onto a Source. Unknown values are text.
func ParseSource(s string) Source {
	switch s {
	case "voice", "audio", "VOICE":
		return SourceVoice
	default:
		return SourceText
	}
}

// LanguageTag is the script family of a message.
type LanguageTag string

const (
	// LanguagePrimary is Latin script (English and romanized Urdu).
	LanguagePrimary LanguageTag = "primary"
	// LanguageSecondary is Arabic-derived script (Urdu).
	LanguageSecondary LanguageTag = "secondary"
)

// Direction returns the writing direction used when rendering text in this language.
func (l LanguageTag) Direction() Direction {
	if l == LanguageSecondary {
		return DirectionRTL
	}
	return DirectionLTR
}

// Direction is the writing direction of rendered output.
type Direction string

const (
	DirectionLTR Direction = "ltr"
	DirectionRTL Direction = "rtl"
)

// IntentLabel is the classifier output for one inbound message.
type IntentLabel string

const (
	IntentLegal      IntentLabel = "LEGAL"
	IntentChitchat   IntentLabel = "CHITCHAT"
	IntentIrrelevant IntentLabel = "IRRELEVANT"
	IntentPDFAffirm  IntentLabel = "PDF_AFFIRM"
	IntentPDFReject  IntentLabel = "PDF_REJECT"
)

// OfferState is the lifecycle state of a document offer.
// OfferNone is never stored; it describes a conversation without a live offer.
type OfferState string

const (
	OfferNone      OfferState = "NONE"
	OfferPending   OfferState = "PENDING"
	OfferFulfilled OfferState = "FULFILLED"
	OfferDeclined  OfferState = "DECLINED"
	OfferExpired   OfferState = "EXPIRED"
)

// Terminal reports whether the state is absorbing.
func (s OfferState) Terminal() bool {
	switch s {
	case OfferFulfilled, OfferDeclined, OfferExpired:
		return true
	default:
		return false
	}
}

// ReferenceLink points at a source case document.
type ReferenceLink struct {
	CaseNo string `json:"case_no"`
	Title  string `json:"title,omitempty"`
	URL    string `json:"url"`
}

// Research is the result of one research orchestrator call.
type Research struct {
	Findings       string          `json:"findings"`
	CaseCount      int             `json:"case_count"`
	ReferenceLinks []ReferenceLink `json:"reference_links,omitempty"`
}

// OfferRecord is an assistant-issued invitation to deliver a rendered document.
// Only State, Findings and UpdatedAt change after creation.
type OfferRecord struct {
	ID        string      `json:"id"`
	State     OfferState  `json:"state"`
	Query     string      `json:"query"`
	Findings  Research    `json:"findings"`
	Summary   string      `json:"summary,omitempty"`
	CaseCount int         `json:"case_count"`
	Language  LanguageTag `json:"language"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Live reports whether the offer still awaits an answer.
func (o *OfferRecord) Live() bool {
	return o != nil && o.State == OfferPending
}

// Turn is one immutable message in a conversation.
type Turn struct {
	ID        string      `json:"id"`
	Role      Role        `json:"role"`
	Text      string      `json:"text"`
	Source    Source      `json:"source"`
	Language  LanguageTag `json:"language"`
	Intent    IntentLabel `json:"intent,omitempty"`
	OfferID   string      `json:"offer_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ConversationState is the persisted state of one conversation.
// Version increases by one on every committed mutation.
type ConversationState struct {
	ID      ConversationID `json:"id"`
	Turns   []Turn         `json:"turns"`
	Offers  []OfferRecord  `json:"offers"`
	Version int64          `json:"version"`
}

// NewConversationState returns an empty, never-committed state.
func NewConversationState(id ConversationID) *ConversationState {
	return &ConversationState{ID: id}
}

// Offer returns the offer with the given ID, or nil.
func (c *ConversationState) Offer(id string) *OfferRecord {
	for i := range c.Offers {
		if c.Offers[i].ID == id {
			return &c.Offers[i]
		}
	}
	return nil
}

// LatestOffer returns the offer referenced by the most recent assistant turn
// that carries one, or nil.
func (c *ConversationState) LatestOffer() *OfferRecord {
	for i := len(c.Turns) - 1; i >= 0; i-- {
		t := c.Turns[i]
		if t.Role == RoleAssistant && t.OfferID != "" {
			return c.Offer(t.OfferID)
		}
	}
	return nil
}

// PendingOffer returns the live offer, or nil when none is pending.
func (c *ConversationState) PendingOffer() *OfferRecord {
	if o := c.LatestOffer(); o.Live() {
		return o
	}
	return nil
}

// OfferState returns the state of the latest offer, OfferNone if there is none.
func (c *ConversationState) OfferState() OfferState {
	if o := c.LatestOffer(); o != nil {
		return o.State
	}
	return OfferNone
}

// PendingCount counts offers in PENDING state.
func (c *ConversationState) PendingCount() int {
	n := 0
	for _, o := range c.Offers {
		if o.State == OfferPending {
			n++
		}
	}
	return n
}

// Clone returns a deep copy safe to mutate.
func (c *ConversationState) Clone() *ConversationState {
	out := &ConversationState{
		ID:      c.ID,
		Version: c.Version,
		Turns:   make([]Turn, len(c.Turns)),
		Offers:  make([]OfferRecord, len(c.Offers)),
	}
	copy(out.Turns, c.Turns)
	copy(out.Offers, c.Offers)
	for i := range out.Offers {
		out.Offers[i].Findings.ReferenceLinks = append([]ReferenceLink(nil), c.Offers[i].Findings.ReferenceLinks...)
	}
	return out
}

// Apply appends the mutation's turns and upserts its offers, then bumps Version.
func (c *ConversationState) Apply(m Mutation) {
	c.Turns = append(c.Turns, m.Turns...)
	for _, o := range m.Offers {
		if existing := c.Offer(o.ID); existing != nil {
			*existing = o
			continue
		}
		c.Offers = append(c.Offers, o)
	}
	c.Version++
}

// Mutation is the single write produced by one inbound message.
// Turns are appended; Offers are inserted or replaced by ID.
type Mutation struct {
	Turns  []Turn
	Offers []OfferRecord
}

// Empty reports whether the mutation writes nothing.
func (m Mutation) Empty() bool {
	return len(m.Turns) == 0 && len(m.Offers) == 0
}
