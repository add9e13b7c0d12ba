package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/raphaelgruber/legalchat/internal/intent"
	"github.com/raphaelgruber/legalchat/internal/metrics"
	"github.com/raphaelgruber/legalchat/internal/models"
	"github.com/raphaelgruber/legalchat/internal/offer"
	"github.com/raphaelgruber/legalchat/internal/store"
)

const legalQuestion = "What are my rights if my landlord evicts me without notice?"

// scriptedBackend answers three-way classification from a table and says no
// to every binary question.
type scriptedBackend struct {
	labels map[string]models.IntentLabel
}

func (b scriptedBackend) ClassifyThreeWay(_ context.Context, text string) (models.IntentLabel, error) {
	if l, ok := b.labels[text]; ok {
		return l, nil
	}
	return models.IntentLegal, nil
}

func (b scriptedBackend) ClassifyBinary(context.Context, string, intent.BinaryKind) (bool, error) {
	return false, nil
}

type stubResearcher struct {
	mu      sync.Mutex
	calls   int
	err     error
	block   chan struct{}
	started chan struct{}
}

func (r *stubResearcher) Research(ctx context.Context, query string, _ models.LanguageTag) (models.Research, error) {
	r.mu.Lock()
	r.calls++
	err, block, started := r.err, r.block, r.started
	r.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return models.Research{}, ctx.Err()
		}
	}
	if err != nil {
		return models.Research{}, err
	}
	return models.Research{
		Findings:  "**Eviction** requires written notice.\n\nCourts have held that " + query + "\n\nThird paragraph.",
		CaseCount: 3,
		ReferenceLinks: []models.ReferenceLink{
			{CaseNo: "C.P. 1/2020", URL: "https://example.org/1.pdf"},
			{CaseNo: "C.P. 2/2020", URL: "https://example.org/2.pdf"},
		},
	}, nil
}

func (r *stubResearcher) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type stubSummarizer struct{ err error }

func (s stubSummarizer) Summarize(_ context.Context, _ string, f models.Research, _ models.LanguageTag) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return fmt.Sprintf("Spoken summary of %d cases.", f.CaseCount), nil
}

type stubChitchat struct{ err error }

func (s stubChitchat) Chitchat(_ context.Context, name, _ string, _ models.LanguageTag) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "Hi " + name + "! Ask me a legal question.", nil
}

type stubRenderer struct {
	mu    sync.Mutex
	calls int
	err   error
	last  models.RenderRequest
}

func (r *stubRenderer) Render(_ context.Context, req models.RenderRequest) (models.Artifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.last = req
	if r.err != nil {
		return models.Artifact{}, r.err
	}
	return models.Artifact{ID: fmt.Sprintf("doc_%d", r.calls), Kind: models.ArtifactDocument, Path: "/tmp/report.md"}, nil
}

type stubVoice struct{ err error }

func (v stubVoice) Synthesize(_ context.Context, _ string, _ models.LanguageTag) (models.Artifact, error) {
	if v.err != nil {
		return models.Artifact{}, v.err
	}
	return models.Artifact{ID: "voice_1", Kind: models.ArtifactAudio, Path: "/tmp/reply.mp3"}, nil
}

// conflictStore fails the first n commits with a state conflict.
type conflictStore struct {
	*store.MemoryStore
	mu        sync.Mutex
	remaining int
	commits   int
}

func (s *conflictStore) Commit(ctx context.Context, id models.ConversationID, v int64, m models.Mutation) error {
	s.mu.Lock()
	s.commits++
	if s.remaining > 0 {
		s.remaining--
		s.mu.Unlock()
		return fmt.Errorf("%w: injected", store.ErrStateConflict)
	}
	s.mu.Unlock()
	return s.MemoryStore.Commit(ctx, id, v, m)
}

type fixture struct {
	engine     *Engine
	store      store.Store
	researcher *stubResearcher
	renderer   *stubRenderer
	metrics    *metrics.Collector
}

type fixtureOption func(*Deps)

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		store:      store.NewMemoryStore(),
		researcher: &stubResearcher{},
		renderer:   &stubRenderer{},
		metrics:    metrics.NewCollector(),
	}
	backend := scriptedBackend{labels: map[string]models.IntentLabel{
		"what's the weather like in Lahore today": models.IntentIrrelevant,
		"yes":                                     models.IntentChitchat,
	}}
	d := Deps{
		Store:      f.store,
		Classifier: intent.New(nil, backend, intent.DefaultOptions(), logger),
		Researcher: f.researcher,
		Summarizer: stubSummarizer{},
		Chitchat:   stubChitchat{},
		Renderer:   f.renderer,
		Voice:      stubVoice{},
		Metrics:    f.metrics,
		Logger:     logger,
	}
	for _, o := range opts {
		o(&d)
	}
	f.store = d.Store

	e, err := NewEngine(d, Options{ResearchTimeout: time.Second})
	require.NoError(t, err)
	f.engine = e
	return f
}

func (f *fixture) send(t *testing.T, id, text string, source models.Source) models.Response {
	t.Helper()
	resp, err := f.engine.HandleMessage(context.Background(), models.Inbound{
		Identity: models.ConversationID(id),
		Name:     "Ayesha",
		Text:     text,
		Source:   source,
	})
	require.NoError(t, err)
	return resp
}

func (f *fixture) state(t *testing.T, id string) *models.ConversationState {
	t.Helper()
	c, err := f.store.Load(context.Background(), models.ConversationID(id))
	require.NoError(t, err)
	return c
}

func TestVoiceLegalCreatesPendingOffer(t *testing.T) {
	f := newFixture(t)

	resp := f.send(t, "u1", legalQuestion, models.SourceVoice)
	assert.Equal(t, models.ShapeLegalVoiceWithOffer, resp.Shape)
	assert.Equal(t, models.IntentLegal, resp.Intent)
	assert.Equal(t, models.OfferPending, resp.OfferState)
	assert.Equal(t, "Spoken summary of 3 cases.", resp.Text)
	assert.Contains(t, resp.OfferPrompt, "'yes'")
	require.NotNil(t, resp.Voice)
	assert.Nil(t, resp.Document)
	assert.False(t, resp.Degraded)

	c := f.state(t, "u1")
	assert.Equal(t, int64(1), c.Version)
	require.Len(t, c.Turns, 2)
	require.Len(t, c.Offers, 1)
	assert.Equal(t, models.OfferPending, c.Offers[0].State)
	assert.Equal(t, "Spoken summary of 3 cases.", c.Offers[0].Summary)
	assert.Equal(t, c.Offers[0].ID, c.Turns[1].OfferID)
	assert.Equal(t, models.SourceVoice, c.Turns[1].Source)
	assert.Equal(t, 0, f.renderer.calls, "document waits for the answer")
}

func TestAffirmDeliversDocument(t *testing.T) {
	f := newFixture(t)
	f.send(t, "u1", legalQuestion, models.SourceVoice)

	resp := f.send(t, "u1", "yes", models.SourceVoice)
	assert.Equal(t, models.ShapeDocumentDelivery, resp.Shape)
	assert.Equal(t, models.IntentPDFAffirm, resp.Intent)
	assert.Equal(t, models.OfferFulfilled, resp.OfferState)
	require.NotNil(t, resp.Document)
	assert.Nil(t, resp.Voice, "documents are not read out")
	assert.Equal(t, legalQuestion, f.renderer.last.Query)
	assert.Equal(t, "Spoken summary of 3 cases.", f.renderer.last.Summary)

	c := f.state(t, "u1")
	require.Len(t, c.Offers, 1)
	assert.Equal(t, models.OfferFulfilled, c.Offers[0].State)
	assert.Equal(t, 0, c.PendingCount())
	assert.Equal(t, 1, f.researcher.Calls(), "delivery reuses stored findings")
}

func TestRejectDeclinesOffer(t *testing.T) {
	f := newFixture(t)
	f.send(t, "u1", legalQuestion, models.SourceVoice)

	resp := f.send(t, "u1", "no thanks", models.SourceVoice)
	assert.Equal(t, models.ShapeOfferDeclinedAck, resp.Shape)
	assert.Equal(t, models.OfferDeclined, resp.OfferState)
	assert.Contains(t, resp.Text, "No problem")
	assert.NotNil(t, resp.Voice)

	assert.Equal(t, models.OfferDeclined, f.state(t, "u1").Offers[0].State)
}

func TestNewQuestionSupersedesPendingOffer(t *testing.T) {
	f := newFixture(t)
	f.send(t, "u1", legalQuestion, models.SourceVoice)

	resp := f.send(t, "u1", "Can I get bail in a theft case before the trial starts?", models.SourceVoice)
	assert.Equal(t, models.ShapeLegalVoiceWithOffer, resp.Shape)
	assert.Equal(t, models.OfferPending, resp.OfferState)

	c := f.state(t, "u1")
	require.Len(t, c.Offers, 2)
	assert.Equal(t, models.OfferExpired, c.Offers[0].State)
	assert.Equal(t, models.OfferPending, c.Offers[1].State)
	assert.Equal(t, 1, c.PendingCount())
	assert.Equal(t, c.Offers[1].ID, c.PendingOffer().ID)
}

func TestChitchatAndDeclineExpirePendingOffer(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		shape models.ResponseShape
	}{
		{"chitchat", "hello", models.ShapeChitchatReply},
		{"irrelevant", "what's the weather like in Lahore today", models.ShapeDeclineReply},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.send(t, "u1", legalQuestion, models.SourceVoice)

			resp := f.send(t, "u1", tt.text, models.SourceText)
			assert.Equal(t, tt.shape, resp.Shape)
			assert.Equal(t, models.OfferExpired, resp.OfferState)
			assert.Nil(t, resp.Voice, "text replies are not synthesized")

			c := f.state(t, "u1")
			assert.Equal(t, models.OfferExpired, c.Offers[0].State)
			assert.Equal(t, models.OfferExpired, c.OfferState())
		})
	}
}

func TestTextLegalSendsDocumentImmediately(t *testing.T) {
	f := newFixture(t)

	resp := f.send(t, "u1", legalQuestion, models.SourceText)
	assert.Equal(t, models.ShapeLegalTextWithDocument, resp.Shape)
	assert.Equal(t, models.OfferFulfilled, resp.OfferState)
	require.NotNil(t, resp.Document)
	assert.Contains(t, resp.Text, "*Eviction*")
	assert.Contains(t, resp.Text, "Based on analysis of 3 relevant legal cases")
	assert.Len(t, resp.ReferenceLinks, 2)
	assert.Empty(t, resp.OfferPrompt)

	c := f.state(t, "u1")
	require.Len(t, c.Offers, 1)
	assert.Equal(t, models.OfferFulfilled, c.Offers[0].State)
	assert.Equal(t, 0, c.PendingCount())
}

func TestAffirmWithoutOfferIsChitchat(t *testing.T) {
	f := newFixture(t)

	resp := f.send(t, "u1", "yes", models.SourceText)
	assert.Equal(t, models.ShapeChitchatReply, resp.Shape)
	assert.Equal(t, models.OfferNone, resp.OfferState)
	assert.Equal(t, "Hi Ayesha! Ask me a legal question.", resp.Text)
}

func TestResearchFailureApologizesWithoutCommit(t *testing.T) {
	f := newFixture(t)
	f.send(t, "u1", legalQuestion, models.SourceVoice)
	before := f.state(t, "u1")

	f.researcher.err = errors.New("index offline")
	resp := f.send(t, "u1", "Can I get bail in a theft case before the trial starts?", models.SourceVoice)
	assert.Equal(t, models.ShapeApology, resp.Shape)
	assert.Equal(t, models.OfferPending, resp.OfferState, "offer state is not advanced")
	assert.Contains(t, resp.Text, "apologize")

	after := f.state(t, "u1")
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, before.Turns, after.Turns)
	assert.Equal(t, models.OfferPending, after.Offers[0].State)
	assert.Equal(t, int64(1), f.metrics.Snapshot().Fallbacks["research"])
}

func TestResearchTimeoutApologizes(t *testing.T) {
	f := newFixture(t)
	f.researcher.block = make(chan struct{})
	f.engine.researchTimeout = 20 * time.Millisecond

	resp := f.send(t, "u1", legalQuestion, models.SourceText)
	assert.Equal(t, models.ShapeApology, resp.Shape)
	assert.Equal(t, models.OfferNone, resp.OfferState)
	assert.Equal(t, int64(0), f.state(t, "u1").Version)
}

func TestRenderingFailuresDegradeToText(t *testing.T) {
	t.Run("document on text legal", func(t *testing.T) {
		f := newFixture(t)
		f.renderer.err = errors.New("disk full")

		resp := f.send(t, "u1", legalQuestion, models.SourceText)
		assert.Equal(t, models.ShapeLegalTextWithDocument, resp.Shape)
		assert.True(t, resp.Degraded)
		assert.Nil(t, resp.Document)
		assert.Contains(t, resp.Text, "Eviction")
		assert.Equal(t, models.OfferFulfilled, resp.OfferState)
	})

	t.Run("document on delivery", func(t *testing.T) {
		f := newFixture(t)
		f.send(t, "u1", legalQuestion, models.SourceVoice)
		f.renderer.err = errors.New("disk full")

		resp := f.send(t, "u1", "haan", models.SourceVoice)
		assert.Equal(t, models.ShapeDocumentDelivery, resp.Shape)
		assert.True(t, resp.Degraded)
		assert.Contains(t, resp.Text, "full findings")
		assert.Equal(t, models.OfferFulfilled, f.state(t, "u1").Offers[0].State)
	})

	t.Run("voice and summary", func(t *testing.T) {
		f := newFixture(t, func(d *Deps) {
			d.Voice = stubVoice{err: errors.New("tts down")}
			d.Summarizer = stubSummarizer{err: errors.New("llm down")}
		})

		resp := f.send(t, "u1", legalQuestion, models.SourceVoice)
		assert.Equal(t, models.ShapeLegalVoiceWithOffer, resp.Shape)
		assert.True(t, resp.Degraded)
		assert.Nil(t, resp.Voice)
		assert.Equal(t, "Eviction requires written notice.\n\nCourts have held that "+legalQuestion, resp.Text)
		assert.Equal(t, models.OfferPending, resp.OfferState)
	})

	t.Run("chitchat backend", func(t *testing.T) {
		f := newFixture(t, func(d *Deps) { d.Chitchat = stubChitchat{err: errors.New("llm down")} })

		resp := f.send(t, "u1", "hello", models.SourceText)
		assert.Equal(t, msgChitchatFallback.primary, resp.Text)
		assert.False(t, resp.Degraded)
	})
}

func TestStateConflictRetriesOnce(t *testing.T) {
	cs := &conflictStore{MemoryStore: store.NewMemoryStore(), remaining: 1}
	f := newFixture(t, func(d *Deps) { d.Store = cs })

	resp := f.send(t, "u1", legalQuestion, models.SourceVoice)
	assert.Equal(t, models.ShapeLegalVoiceWithOffer, resp.Shape)
	assert.Equal(t, 2, cs.commits)
	assert.Equal(t, 1, f.researcher.Calls(), "research is reused on the redo")
	assert.Equal(t, 1, f.state(t, "u1").PendingCount())
}

func TestStateConflictTwiceAsksToTryAgain(t *testing.T) {
	cs := &conflictStore{MemoryStore: store.NewMemoryStore(), remaining: 2}
	f := newFixture(t, func(d *Deps) { d.Store = cs })

	resp := f.send(t, "u1", legalQuestion, models.SourceText)
	assert.Equal(t, models.ShapeTryAgain, resp.Shape)
	assert.Equal(t, models.OfferNone, resp.OfferState)
	assert.Equal(t, 2, cs.commits)
	assert.Equal(t, 1, f.renderer.calls, "rendering is not retried within a turn")
	assert.Equal(t, int64(0), f.state(t, "u1").Version)
	assert.Equal(t, int64(2), f.metrics.Snapshot().Fallbacks["state_conflict"])
}

func TestSecondaryScriptReply(t *testing.T) {
	f := newFixture(t)

	resp := f.send(t, "u1", "کیا مجھے چوری کے مقدمے میں ضمانت مل سکتی ہے؟ براہ کرم بتائیں", models.SourceVoice)
	assert.Equal(t, models.LanguageSecondary, resp.Language)
	assert.Equal(t, models.DirectionRTL, resp.Direction)
	assert.Equal(t, msgOfferPrompt.secondary, resp.OfferPrompt)

	// The acknowledgement follows the offer's language even for a Latin-script answer.
	resp = f.send(t, "u1", "nahi", models.SourceVoice)
	assert.Equal(t, models.ShapeOfferDeclinedAck, resp.Shape)
	assert.Equal(t, models.LanguageSecondary, resp.Language)
	assert.Equal(t, msgOfferDeclined.secondary, resp.Text)
}

func TestInvalidInbound(t *testing.T) {
	f := newFixture(t)
	for _, in := range []models.Inbound{
		{Identity: "", Text: "hello"},
		{Identity: "u1", Text: "   "},
	} {
		_, err := f.engine.HandleMessage(context.Background(), in)
		assert.ErrorIs(t, err, ErrInvalidInbound)
	}
}

func TestNewEngineRequiresCollaborators(t *testing.T) {
	_, err := NewEngine(Deps{}, Options{})
	assert.Error(t, err)
}

func TestConcurrentMessagesKeepOnePendingOffer(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t)
	texts := []string{legalQuestion, "yes", legalQuestion, "no", "hello", legalQuestion}

	var wg sync.WaitGroup
	for i := range 30 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.send(t, "shared", texts[i%len(texts)], models.SourceVoice)
		}()
	}
	wg.Wait()

	c := f.state(t, "shared")
	assert.Equal(t, int64(30), c.Version, "every message committed exactly once")
	assert.Len(t, c.Turns, 60)
	assert.LessOrEqual(t, c.PendingCount(), 1)
	assert.NoError(t, offer.Validate(c))
	assert.Equal(t, 0, f.engine.locks.Len())
}

func TestSlowResearchDoesNotBlockOtherConversations(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t)
	f.researcher.block = make(chan struct{})
	f.researcher.started = make(chan struct{}, 1)

	var done atomic.Bool
	go func() {
		defer done.Store(true)
		f.send(t, "slow", legalQuestion, models.SourceText)
	}()
	<-f.researcher.started

	resp := f.send(t, "fast", "hello", models.SourceText)
	assert.Equal(t, models.ShapeChitchatReply, resp.Shape)
	assert.False(t, done.Load())

	close(f.researcher.block)
	assert.Eventually(t, done.Load, time.Second, 5*time.Millisecond)
}

func TestAbandonedWaitDoesNotCommit(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t)
	f.send(t, "u1", legalQuestion, models.SourceVoice)

	f.researcher.mu.Lock()
	f.researcher.block = make(chan struct{})
	f.researcher.started = make(chan struct{}, 1)
	f.researcher.mu.Unlock()

	var done atomic.Bool
	go func() {
		defer done.Store(true)
		f.send(t, "u1", "Can I get bail in a theft case before the trial starts?", models.SourceVoice)
	}()
	<-f.researcher.started

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	resp, err := f.engine.HandleMessage(ctx, models.Inbound{Identity: "u1", Text: "hello", Source: models.SourceText})
	require.NoError(t, err)
	assert.Equal(t, models.ShapeTryAgain, resp.Shape)
	assert.Equal(t, msgTryAgain.primary, resp.Text)
	assert.Equal(t, int64(1), f.metrics.Snapshot().Fallbacks["lock_wait"])

	f.researcher.mu.Lock()
	close(f.researcher.block)
	f.researcher.mu.Unlock()
	assert.Eventually(t, done.Load, time.Second, 5*time.Millisecond)

	c := f.state(t, "u1")
	assert.Equal(t, int64(2), c.Version, "the abandoned message left no trace")
	for _, turn := range c.Turns {
		assert.NotEqual(t, "hello", turn.Text)
	}
	assert.Equal(t, 1, c.PendingCount())
	assert.Equal(t, 0, f.engine.locks.Len())
}

func TestShortFollowUpQuestionReplacesPendingOffer(t *testing.T) {
	const followUp = "what about property law?"

	f := newFixture(t)
	f.send(t, "u1", legalQuestion, models.SourceVoice)

	// Too long for the chitchat lists, short enough for the pending-reply
	// tier, which finds no yes or no and hands over to the generative tier.
	res := f.engine.classifier.Explain(context.Background(), followUp, true)
	assert.Equal(t, intent.TierGenerative, res.Tier)
	assert.Equal(t, 3, res.BackendCalls)
	assert.Equal(t, models.IntentLegal, res.Label)

	resp := f.send(t, "u1", followUp, models.SourceVoice)
	assert.Equal(t, models.ShapeLegalVoiceWithOffer, resp.Shape)
	assert.Equal(t, models.IntentLegal, resp.Intent)
	assert.Equal(t, models.OfferPending, resp.OfferState)
	assert.NotEmpty(t, resp.OfferPrompt)

	c := f.state(t, "u1")
	require.Len(t, c.Offers, 2)
	assert.Equal(t, models.OfferExpired, c.Offers[0].State)
	assert.Equal(t, models.OfferPending, c.Offers[1].State)
	assert.Equal(t, followUp, c.Offers[1].Query)
	assert.Equal(t, 2, f.researcher.Calls())
}
