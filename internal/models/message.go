package models

// ResponseShape is the directive selecting how a reply is produced.
type ResponseShape string

const (
	ShapeChitchatReply         ResponseShape = "CHITCHAT_REPLY"
	ShapeDeclineReply          ResponseShape = "DECLINE_REPLY"
	ShapeLegalTextWithDocument ResponseShape = "LEGAL_TEXT_WITH_DOCUMENT"
	ShapeLegalVoiceWithOffer   ResponseShape = "LEGAL_VOICE_WITH_OFFER"
	ShapeDocumentDelivery      ResponseShape = "DOCUMENT_DELIVERY"
	ShapeOfferDeclinedAck      ResponseShape = "OFFER_DECLINED_ACK"

	// ShapeApology is returned when research fails; nothing is committed.
	ShapeApology ResponseShape = "APOLOGY_REPLY"
	// ShapeTryAgain is returned when the state stays conflicted after a retry.
	ShapeTryAgain ResponseShape = "TRY_AGAIN_REPLY"
)

// Inbound is one message received from the messaging transport.
type Inbound struct {
	MessageID string         `json:"message_id,omitempty"`
	Identity  ConversationID `json:"identity"`
	Name      string         `json:"name,omitempty"`
	Text      string         `json:"text"`
	Source    Source         `json:"source"`
}

// ArtifactKind distinguishes rendered outputs.
type ArtifactKind string

const (
	ArtifactDocument ArtifactKind = "document"
	ArtifactAudio    ArtifactKind = "audio"
)

// Artifact is a handle to content produced by a rendering collaborator.
type Artifact struct {
	ID       string       `json:"id"`
	Kind     ArtifactKind `json:"kind"`
	Path     string       `json:"path"`
	MimeType string       `json:"mime_type,omitempty"`
}

// RenderRequest is the input to the document renderer.
type RenderRequest struct {
	Conversation ConversationID
	Name         string
	Query        string
	Summary      string
	Findings     Research
	Language     LanguageTag
	Direction    Direction
}

// Response is the single payload returned for an inbound message.
type Response struct {
	Conversation   ConversationID  `json:"conversation"`
	Shape          ResponseShape   `json:"shape"`
	Intent         IntentLabel     `json:"intent,omitempty"`
	Language       LanguageTag     `json:"language"`
	Direction      Direction       `json:"direction"`
	Text           string          `json:"text"`
	OfferPrompt    string          `json:"offer_prompt,omitempty"`
	Document       *Artifact       `json:"document,omitempty"`
	Voice          *Artifact       `json:"voice,omitempty"`
	ReferenceLinks []ReferenceLink `json:"reference_links,omitempty"`
	OfferState     OfferState      `json:"offer_state"`
	// Degraded is set when a rendering collaborator failed and text was sent instead.
	Degraded bool `json:"degraded,omitempty"`
}
