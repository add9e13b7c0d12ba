// Package service runs the conversation engine. Each inbound message is
// classified, routed, answered and committed to the conversation store as a
// single mutation.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/raphaelgruber/legalchat/internal/intent"
	"github.com/raphaelgruber/legalchat/internal/lang"
	"github.com/raphaelgruber/legalchat/internal/metrics"
	"github.com/raphaelgruber/legalchat/internal/models"
	"github.com/raphaelgruber/legalchat/internal/offer"
	"github.com/raphaelgruber/legalchat/internal/router"
	"github.com/raphaelgruber/legalchat/internal/store"
)

// ErrInvalidInbound is returned for messages without identity or text.
var ErrInvalidInbound = errors.New("invalid inbound message")

// errResearchFailed marks a turn that must be answered with an apology and not committed.
var errResearchFailed = errors.New("research failed")

// errLockAbandoned marks a message whose caller went away while another
// message for the same conversation was in progress. Nothing is committed.
var errLockAbandoned = errors.New("conversation busy")

// maxAttempts bounds how often a turn is redone after a state conflict.
const maxAttempts = 2

// Classifier labels an inbound message.
type Classifier interface {
	Explain(ctx context.Context, text string, hasPendingOffer bool) intent.Result
}

// LanguageDetector tags the script family of a message.
type LanguageDetector interface {
	Detect(text string) models.LanguageTag
}

// Researcher runs retrieval and synthesis for a legal query.
type Researcher interface {
	Research(ctx context.Context, query string, lang models.LanguageTag) (models.Research, error)
}

// Summarizer condenses findings into a spoken-style answer.
type Summarizer interface {
	Summarize(ctx context.Context, query string, findings models.Research, lang models.LanguageTag) (string, error)
}

// ChitchatResponder writes a reply to small talk.
type ChitchatResponder interface {
	Chitchat(ctx context.Context, name, text string, lang models.LanguageTag) (string, error)
}

// DocumentRenderer produces the detailed report.
type DocumentRenderer interface {
	Render(ctx context.Context, req models.RenderRequest) (models.Artifact, error)
}

// VoiceSynthesizer turns reply text into audio.
type VoiceSynthesizer interface {
	Synthesize(ctx context.Context, text string, lang models.LanguageTag) (models.Artifact, error)
}

// Deps are the engine's collaborators. Store, Classifier and Researcher are
// required; a missing optional collaborator behaves like one that always fails.
type Deps struct {
	Store      store.Store
	Classifier Classifier
	Researcher Researcher
	Detector   LanguageDetector
	Summarizer Summarizer
	Chitchat   ChitchatResponder
	Renderer   DocumentRenderer
	Voice      VoiceSynthesizer
	Metrics    *metrics.Collector
	Logger     *slog.Logger
}

// Options tunes the engine.
type Options struct {
	// ResearchConcurrency caps research calls in flight across all conversations.
	ResearchConcurrency int
	ResearchTimeout     time.Duration
}

// Engine handles inbound messages. It is safe for concurrent use; messages
// for the same conversation are processed one at a time.
type Engine struct {
	store      store.Store
	classifier Classifier
	researcher Researcher
	detector   LanguageDetector
	summarizer Summarizer
	chitchat   ChitchatResponder
	renderer   DocumentRenderer
	voice      VoiceSynthesizer
	metrics    *metrics.Collector
	logger     *slog.Logger

	researchTimeout time.Duration
	researchSlots   *semaphore.Weighted
	locks           *keyedMutex
	now             func() time.Time
}

// NewEngine creates an engine.
func NewEngine(d Deps, opts Options) (*Engine, error) {
	switch {
	case d.Store == nil:
		return nil, errors.New("engine requires a store")
	case d.Classifier == nil:
		return nil, errors.New("engine requires a classifier")
	case d.Researcher == nil:
		return nil, errors.New("engine requires a researcher")
	}
	if d.Detector == nil {
		d.Detector = lang.NewDetector(0)
	}
	if d.Metrics == nil {
		d.Metrics = metrics.NewCollector()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if opts.ResearchConcurrency <= 0 {
		opts.ResearchConcurrency = 10
	}
	if opts.ResearchTimeout <= 0 {
		opts.ResearchTimeout = 180 * time.Second
	}

	return &Engine{
		store:           d.Store,
		classifier:      d.Classifier,
		researcher:      d.Researcher,
		detector:        d.Detector,
		summarizer:      d.Summarizer,
		chitchat:        d.Chitchat,
		renderer:        d.Renderer,
		voice:           d.Voice,
		metrics:         d.Metrics,
		logger:          d.Logger,
		researchTimeout: opts.ResearchTimeout,
		researchSlots:   semaphore.NewWeighted(int64(opts.ResearchConcurrency)),
		locks:           newKeyedMutex(),
		now:             time.Now,
	}, nil
}

// Conversation returns the stored state of a conversation.
func (e *Engine) Conversation(ctx context.Context, id models.ConversationID) (*models.ConversationState, error) {
	return e.store.Load(ctx, id)
}

// Metrics returns the engine's collector.
func (e *Engine) Metrics() *metrics.Collector {
	return e.metrics
}

// turn carries one inbound message through its attempts. Results of external
// calls are kept so a redo after a state conflict does not repeat them.
type turn struct {
	id       models.ConversationID
	name     string
	text     string
	source   models.Source
	language models.LanguageTag

	classified map[bool]intent.Result
	research   *models.Research
	summary    *string
	smalltalk  *string
	documents  map[string]artifactResult
	voices     map[string]artifactResult
}

type artifactResult struct {
	artifact models.Artifact
	err      error
}

// HandleMessage processes one inbound message and returns exactly one
// response. The only error is ErrInvalidInbound; every other failure is
// answered with an apology or try-again reply.
func (e *Engine) HandleMessage(ctx context.Context, in models.Inbound) (models.Response, error) {
	start := time.Now()
	defer e.metrics.Time(metrics.OpTurn, start)

	id := models.ConversationID(strings.TrimSpace(string(in.Identity)))
	text := strings.TrimSpace(in.Text)
	if id == "" || text == "" {
		return models.Response{}, fmt.Errorf("%w: identity and text are required", ErrInvalidInbound)
	}

	t := &turn{
		id:         id,
		name:       in.Name,
		text:       text,
		source:     models.ParseSource(string(in.Source)),
		language:   e.detector.Detect(text),
		classified: make(map[bool]intent.Result),
		documents:  make(map[string]artifactResult),
		voices:     make(map[string]artifactResult),
	}

	var resp models.Response
	unlock, err := e.locks.Lock(ctx, id)
	if err == nil {
		resp, err = e.attemptAll(ctx, t)
		unlock()
	} else {
		err = fmt.Errorf("%w: %w", errLockAbandoned, err)
	}

	switch {
	case err == nil:
	case errors.Is(err, errLockAbandoned):
		e.logger.Warn("gave up waiting for conversation", "conversation", id, "error", err)
		e.metrics.Count(metrics.GroupFallback, "lock_wait")
		resp = e.errorReply(resp, t, models.ShapeTryAgain, msgTryAgain)
	case errors.Is(err, errResearchFailed):
		e.logger.Error("research failed, sending apology", "conversation", id, "error", err)
		e.metrics.Count(metrics.GroupFallback, "research")
		resp = e.errorReply(resp, t, models.ShapeApology, msgApology)
	default:
		if !errors.Is(err, store.ErrStateConflict) {
			e.logger.Error("handle message failed", "conversation", id, "error", err)
			e.metrics.Count(metrics.GroupFallback, "store")
		}
		resp = e.errorReply(resp, t, models.ShapeTryAgain, msgTryAgain)
	}

	e.metrics.Count(metrics.GroupShape, string(resp.Shape))
	if resp.Intent != "" {
		e.metrics.Count(metrics.GroupIntent, string(resp.Intent))
	}
	e.logger.Info("message handled",
		"conversation", id,
		"source", t.source,
		"language", t.language,
		"intent", resp.Intent,
		"shape", resp.Shape,
		"offer_state", resp.OfferState,
		"degraded", resp.Degraded,
		"duration_ms", time.Since(start).Milliseconds())
	return resp, nil
}

// attemptAll runs the turn, redoing it once after a state conflict.
func (e *Engine) attemptAll(ctx context.Context, t *turn) (models.Response, error) {
	var (
		resp models.Response
		err  error
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err = e.attempt(ctx, t)
		if err == nil || !errors.Is(err, store.ErrStateConflict) {
			break
		}
		e.logger.Warn("conversation state conflict", "conversation", t.id, "attempt", attempt, "error", err)
		e.metrics.Count(metrics.GroupFallback, "state_conflict")
	}
	return resp, err
}

// errorReply replaces a failed attempt's response. The offer state stays the
// one observed before the attempt since nothing was committed.
func (e *Engine) errorReply(partial models.Response, t *turn, shape models.ResponseShape, msg localized) models.Response {
	state := partial.OfferState
	if state == "" {
		state = models.OfferNone
	}
	return models.Response{
		Conversation: t.id,
		Shape:        shape,
		Intent:       partial.Intent,
		Language:     t.language,
		Direction:    t.language.Direction(),
		Text:         msg.in(t.language),
		OfferState:   state,
	}
}

// attempt runs load, classify, route, produce and commit once.
func (e *Engine) attempt(ctx context.Context, t *turn) (models.Response, error) {
	state, err := e.store.Load(ctx, t.id)
	if err != nil {
		return models.Response{}, fmt.Errorf("load conversation: %w", err)
	}
	live := state.PendingOffer()
	before := state.OfferState()

	cls := e.classify(ctx, t, live != nil)
	resp := models.Response{
		Conversation: t.id,
		Intent:       cls.Label,
		Language:     t.language,
		OfferState:   before,
	}

	shape, err := router.Route(cls.Label, before, t.source)
	if err != nil {
		return resp, fmt.Errorf("route message: %w", err)
	}
	resp.Shape = shape

	now := e.now()
	plan, err := offer.Resolve(live, cls.Label, now)
	if err != nil {
		return resp, fmt.Errorf("resolve offer: %w", err)
	}

	switch shape {
	case models.ShapeChitchatReply:
		resp.Text = e.smalltalk(ctx, t)

	case models.ShapeDeclineReply:
		resp.Text = msgDecline.in(t.language)

	case models.ShapeLegalTextWithDocument, models.ShapeLegalVoiceWithOffer:
		findings, err := e.research(ctx, t)
		if err != nil {
			return resp, err
		}
		created := offer.Create(offer.Params{
			Query:    t.text,
			Findings: findings,
			Language: t.language,
			Source:   t.source,
		}, now)

		if shape == models.ShapeLegalTextWithDocument {
			resp.Text = FormatLegalText(findings, t.language)
			resp.ReferenceLinks = findings.ReferenceLinks
			resp.Document, resp.Degraded = e.document(ctx, t, "query", created)
		} else {
			created.Summary = e.summarize(ctx, t, findings)
			resp.Text = created.Summary
			resp.OfferPrompt = msgOfferPrompt.in(t.language)
		}
		plan = plan.WithCreated(created)

	case models.ShapeDocumentDelivery:
		delivered := *plan.Resolved
		resp.Language = delivered.Language
		resp.ReferenceLinks = delivered.Findings.ReferenceLinks
		resp.Document, resp.Degraded = e.document(ctx, t, delivered.ID, delivered)
		if resp.Degraded {
			resp.Text = msgDeliveryFailed.in(delivered.Language) + "\n\n" + FormatLegalText(delivered.Findings, delivered.Language)
		} else {
			resp.Text = msgDelivery.in(delivered.Language)
		}

	case models.ShapeOfferDeclinedAck:
		resp.Language = plan.Resolved.Language
		resp.Text = msgOfferDeclined.in(resp.Language)
	}

	resp.Direction = resp.Language.Direction()
	if router.SpeaksReply(shape, t.source) {
		var ok bool
		resp.Voice, ok = e.speak(ctx, t, resp.Text, resp.Language)
		resp.Degraded = resp.Degraded || !ok
	}

	m := e.mutation(t, cls.Label, resp, plan, now)
	next := state.Clone()
	next.Apply(m)
	if err := offer.Validate(next); err != nil {
		return resp, fmt.Errorf("validate offers: %w", err)
	}
	if err := e.store.Commit(ctx, t.id, state.Version, m); err != nil {
		return resp, fmt.Errorf("commit conversation: %w", err)
	}

	resp.OfferState = plan.After(before)
	return resp, nil
}

func (e *Engine) classify(ctx context.Context, t *turn, pending bool) intent.Result {
	if res, ok := t.classified[pending]; ok {
		return res
	}
	res := e.classifier.Explain(ctx, t.text, pending)
	t.classified[pending] = res
	if res.Fallback {
		e.logger.Warn("classification backend failed, used fallback",
			"conversation", t.id, "tier", res.Tier, "intent", res.Label)
		e.metrics.Count(metrics.GroupFallback, "classification")
	}
	return res
}

func (e *Engine) research(ctx context.Context, t *turn) (models.Research, error) {
	if t.research != nil {
		return *t.research, nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.researchTimeout)
	defer cancel()

	if err := e.researchSlots.Acquire(ctx, 1); err != nil {
		return models.Research{}, fmt.Errorf("%w: wait for research slot: %w", errResearchFailed, err)
	}
	defer e.researchSlots.Release(1)

	start := time.Now()
	r, err := e.researcher.Research(ctx, t.text, t.language)
	e.metrics.Time(metrics.OpResearch, start)
	if err != nil {
		return models.Research{}, fmt.Errorf("%w: %w", errResearchFailed, err)
	}
	t.research = &r
	return r, nil
}

func (e *Engine) summarize(ctx context.Context, t *turn, findings models.Research) string {
	if t.summary != nil {
		return *t.summary
	}
	summary := ""
	if e.summarizer != nil {
		s, err := e.summarizer.Summarize(ctx, t.text, findings, t.language)
		if err != nil {
			e.logger.Warn("voice summary failed, using findings", "conversation", t.id, "error", err)
			e.metrics.Count(metrics.GroupFallback, "summarize")
		}
		summary = strings.TrimSpace(s)
	}
	if summary == "" {
		summary = VoiceFallback(findings, t.language)
	}
	t.summary = &summary
	return summary
}

func (e *Engine) smalltalk(ctx context.Context, t *turn) string {
	if t.smalltalk != nil {
		return *t.smalltalk
	}
	reply := ""
	if e.chitchat != nil {
		r, err := e.chitchat.Chitchat(ctx, t.name, t.text, t.language)
		if err != nil {
			e.logger.Warn("chitchat reply failed, using greeting", "conversation", t.id, "error", err)
			e.metrics.Count(metrics.GroupFallback, "chitchat")
		}
		reply = strings.TrimSpace(r)
	}
	if reply == "" {
		reply = msgChitchatFallback.in(t.language)
	}
	t.smalltalk = &reply
	return reply
}

// document renders the report for an offer. It reports degraded when no
// artifact could be produced.
func (e *Engine) document(ctx context.Context, t *turn, key string, o models.OfferRecord) (*models.Artifact, bool) {
	res, ok := t.documents[key]
	if !ok {
		if e.renderer == nil {
			res.err = errors.New("no document renderer configured")
		} else {
			start := time.Now()
			res.artifact, res.err = e.renderer.Render(ctx, models.RenderRequest{
				Conversation: t.id,
				Name:         t.name,
				Query:        o.Query,
				Summary:      o.Summary,
				Findings:     o.Findings,
				Language:     o.Language,
				Direction:    o.Language.Direction(),
			})
			e.metrics.Time(metrics.OpRenderDocument, start)
		}
		if res.err != nil {
			e.logger.Warn("document rendering failed, sending text", "conversation", t.id, "offer", o.ID, "error", res.err)
			e.metrics.Count(metrics.GroupFallback, "render_document")
		}
		t.documents[key] = res
	}
	if res.err != nil {
		return nil, true
	}
	a := res.artifact
	return &a, false
}

// speak synthesizes reply text. ok is false when no audio was produced.
func (e *Engine) speak(ctx context.Context, t *turn, text string, language models.LanguageTag) (*models.Artifact, bool) {
	key := string(language) + "\x00" + text
	res, ok := t.voices[key]
	if !ok {
		if e.voice == nil {
			res.err = errors.New("no voice synthesizer configured")
		} else {
			start := time.Now()
			res.artifact, res.err = e.voice.Synthesize(ctx, text, language)
			e.metrics.Time(metrics.OpSynthesizeVoice, start)
		}
		if res.err != nil {
			e.logger.Warn("voice synthesis failed, sending text", "conversation", t.id, "error", res.err)
			e.metrics.Count(metrics.GroupFallback, "synthesize_voice")
		}
		t.voices[key] = res
	}
	if res.err != nil {
		return nil, false
	}
	a := res.artifact
	return &a, true
}

// mutation builds the single write for a turn: the user and assistant turns
// plus the offer records the lifecycle produced.
func (e *Engine) mutation(t *turn, label models.IntentLabel, resp models.Response, plan offer.Plan, now time.Time) models.Mutation {
	var offerID string
	switch {
	case plan.Created != nil:
		offerID = plan.Created.ID
	case resp.Shape == models.ShapeDocumentDelivery, resp.Shape == models.ShapeOfferDeclinedAck:
		offerID = plan.Resolved.ID
	}

	reply := resp.Text
	if resp.OfferPrompt != "" {
		reply += "\n\n" + resp.OfferPrompt
	}
	replySource := models.SourceText
	if resp.Voice != nil {
		replySource = models.SourceVoice
	}

	return models.Mutation{
		Turns: []models.Turn{
			{
				ID:        models.NewID("turn"),
				Role:      models.RoleUser,
				Text:      t.text,
				Source:    t.source,
				Language:  t.language,
				Intent:    label,
				Timestamp: now,
			},
			{
				ID:        models.NewID("turn"),
				Role:      models.RoleAssistant,
				Text:      reply,
				Source:    replySource,
				Language:  resp.Language,
				OfferID:   offerID,
				Timestamp: now,
			},
		},
		Offers: plan.Offers(),
	}
}
