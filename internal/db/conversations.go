package db

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"

	"github.com/raphaelgruber/legalchat/internal/models"
	"github.com/raphaelgruber/legalchat/internal/store"
)

// ConversationStore implements store.Store on SurrealDB.
type ConversationStore struct {
	client *Client
}

var _ store.Store = (*ConversationStore)(nil)

// NewConversationStore wraps a connected client.
func NewConversationStore(client *Client) *ConversationStore {
	return &ConversationStore{client: client}
}

type conversationDoc struct {
	Version int64         `json:"version"`
	Turns   []models.Turn `json:"turns"`
}

type offerDoc struct {
	Conversation string             `json:"conversation"`
	OfferID      string             `json:"offer_id"`
	State        models.OfferState  `json:"state"`
	Query        string             `json:"query"`
	Findings     models.Research    `json:"findings"`
	Summary      string             `json:"summary"`
	CaseCount    int                `json:"case_count"`
	Language     models.LanguageTag `json:"language"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

func toOfferDoc(id models.ConversationID, o models.OfferRecord) offerDoc {
	return offerDoc{
		Conversation: string(id),
		OfferID:      o.ID,
		State:        o.State,
		Query:        o.Query,
		Findings:     o.Findings,
		Summary:      o.Summary,
		CaseCount:    o.CaseCount,
		Language:     o.Language,
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}
}

func (d offerDoc) record() models.OfferRecord {
	return models.OfferRecord{
		ID:        d.OfferID,
		State:     d.State,
		Query:     d.Query,
		Findings:  d.Findings,
		Summary:   d.Summary,
		CaseCount: d.CaseCount,
		Language:  d.Language,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// Load returns the conversation with its turns and offers.
func (s *ConversationStore) Load(ctx context.Context, id models.ConversationID) (*models.ConversationState, error) {
	db := s.client.DB()
	state := models.NewConversationState(id)

	convs, err := surrealdb.Query[[]conversationDoc](ctx, db, `
		SELECT version, turns FROM type::record("conversation", $id)
	`, map[string]any{"id": string(id)})
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", wrapQueryError(err))
	}
	if convs == nil || len(*convs) == 0 || len((*convs)[0].Result) == 0 {
		return state, nil
	}
	doc := (*convs)[0].Result[0]
	state.Version = doc.Version
	state.Turns = doc.Turns

	offers, err := surrealdb.Query[[]offerDoc](ctx, db, `
		SELECT * OMIT id FROM offer WHERE conversation = $id ORDER BY created_at ASC
	`, map[string]any{"id": string(id)})
	if err != nil {
		return nil, fmt.Errorf("load offers: %w", wrapQueryError(err))
	}
	if offers != nil && len(*offers) > 0 {
		for _, d := range (*offers)[0].Result {
			state.Offers = append(state.Offers, d.record())
		}
	}
	return state, nil
}

// commitSQL checks the stored version and applies a mutation in one transaction.
const commitSQL = `
	BEGIN TRANSACTION;
	LET $current = (SELECT VALUE version FROM type::record("conversation", $id))[0] ?? 0;
	IF $current != $expected { THROW "` + versionConflictMessage + `" };
	UPSERT type::record("conversation", $id) SET
		identity = $id,
		version = $expected + 1,
		turns = array::concat(turns ?? [], $turns),
		updated = time::now();
	FOR $o IN $offers {
		UPSERT type::record("offer", [$id, $o.offer_id]) CONTENT $o;
	};
	COMMIT TRANSACTION;
`

// Commit applies the mutation if the stored version equals expectedVersion.
func (s *ConversationStore) Commit(ctx context.Context, id models.ConversationID, expectedVersion int64, m models.Mutation) error {
	turns := m.Turns
	if turns == nil {
		turns = []models.Turn{}
	}
	offers := make([]offerDoc, 0, len(m.Offers))
	for _, o := range m.Offers {
		offers = append(offers, toOfferDoc(id, o))
	}

	_, err := surrealdb.Query[any](ctx, s.client.DB(), commitSQL, map[string]any{
		"id":       string(id),
		"expected": expectedVersion,
		"turns":    turns,
		"offers":   offers,
	})
	if err != nil {
		return fmt.Errorf("commit conversation %s: %w", id, wrapQueryError(err))
	}
	return nil
}

// Close closes the underlying connection.
func (s *ConversationStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Close(ctx)
}
