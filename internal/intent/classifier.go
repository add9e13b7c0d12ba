// Package intent resolves an inbound message into an IntentLabel using a
// tiered pipeline: lexical chitchat match, pending-offer short replies, and
// generative three-way classification.
package intent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/raphaelgruber/legalchat/internal/lexicon"
	"github.com/raphaelgruber/legalchat/internal/models"
)

// ErrBackend marks a failed or timed-out generative classification call.
var ErrBackend = errors.New("classification backend error")

// BinaryKind selects the two-label prompt used by ClassifyBinary.
type BinaryKind string

const (
	KindAffirmative BinaryKind = "affirmative"
	KindRejection   BinaryKind = "rejection"
)

// Backend is the generative model used by the classifier.
// ClassifyThreeWay must return one of LEGAL, CHITCHAT or IRRELEVANT.
type Backend interface {
	ClassifyThreeWay(ctx context.Context, text string) (models.IntentLabel, error)
	ClassifyBinary(ctx context.Context, text string, kind BinaryKind) (bool, error)
}

// Tier identifies which stage of the pipeline produced a label.
type Tier int

const (
	TierLexical Tier = iota + 1
	TierPendingReply
	TierGenerative
)

func (t Tier) String() string {
	switch t {
	case TierLexical:
		return "lexical"
	case TierPendingReply:
		return "pending_reply"
	case TierGenerative:
		return "generative"
	default:
		return "unknown"
	}
}

// Result describes a classification decision.
type Result struct {
	Label models.IntentLabel
	Tier  Tier
	// Fallback is set when a backend failure forced a deterministic default.
	Fallback bool
	// BackendCalls counts generative calls made for this decision.
	BackendCalls int
}

// Options tunes the classifier.
type Options struct {
	// ChitchatMaxWords is the longest message eligible for the lexical chitchat tier.
	ChitchatMaxWords int
	// ShortReplyMaxWords is the longest message treated as a reply to a pending offer.
	ShortReplyMaxWords int
	// SubstantiveMinWords is the length at which a message defaults to LEGAL on backend failure.
	SubstantiveMinWords int
	// Timeout bounds each generative call.
	Timeout time.Duration
}

// DefaultOptions returns the standard tunables.
func DefaultOptions() Options {
	return Options{
		ChitchatMaxWords:    4,
		ShortReplyMaxWords:  5,
		SubstantiveMinWords: 6,
		Timeout:             8 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ChitchatMaxWords <= 0 {
		o.ChitchatMaxWords = d.ChitchatMaxWords
	}
	if o.ShortReplyMaxWords <= 0 {
		o.ShortReplyMaxWords = d.ShortReplyMaxWords
	}
	if o.SubstantiveMinWords <= 0 {
		o.SubstantiveMinWords = d.SubstantiveMinWords
	}
	if o.Timeout <= 0 {
		o.Timeout = d.Timeout
	}
	return o
}

// Classifier is safe for concurrent use.
type Classifier struct {
	lex     *lexicon.Lexicon
	backend Backend
	opts    Options
	logger  *slog.Logger
}

// New creates a classifier. A nil lexicon uses the embedded default.
func New(lex *lexicon.Lexicon, backend Backend, opts Options, logger *slog.Logger) *Classifier {
	if lex == nil {
		lex = lexicon.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		lex:     lex,
		backend: backend,
		opts:    opts.withDefaults(),
		logger:  logger,
	}
}

// Classify returns the intent label for text. It never fails.
func (c *Classifier) Classify(ctx context.Context, text string, hasPendingOffer bool) models.IntentLabel {
	return c.Explain(ctx, text, hasPendingOffer).Label
}

// Explain classifies text and reports how the decision was reached.
func (c *Classifier) Explain(ctx context.Context, text string, hasPendingOffer bool) Result {
	tokens := lexicon.Tokenize(text)
	words := len(tokens)

	if res, ok := c.lexicalTier(tokens, hasPendingOffer); ok {
		return res
	}

	var res Result
	if hasPendingOffer && words <= c.opts.ShortReplyMaxWords {
		var ok bool
		res, ok = c.pendingReplyTier(ctx, text, tokens)
		if ok {
			return res
		}
	}

	gen := c.generativeTier(ctx, text, words)
	gen.BackendCalls += res.BackendCalls
	gen.Fallback = gen.Fallback || res.Fallback
	return gen
}

// lexicalTier matches short messages against the chitchat lists. A pending
// offer suppresses it when the message also carries a yes/no word, so that
// replies like "ok" or "no thanks" reach the pending-reply tier.
func (c *Classifier) lexicalTier(tokens []string, hasPendingOffer bool) (Result, bool) {
	if len(tokens) == 0 || len(tokens) > c.opts.ChitchatMaxWords {
		return Result{}, false
	}
	if !c.lex.Chitchat.Match(tokens) {
		return Result{}, false
	}
	if hasPendingOffer && (c.lex.Affirmative.Match(tokens) || c.lex.Rejection.Match(tokens)) {
		return Result{}, false
	}
	return Result{Label: models.IntentChitchat, Tier: TierLexical}, true
}

func (c *Classifier) pendingReplyTier(ctx context.Context, text string, tokens []string) (Result, bool) {
	res := Result{Tier: TierPendingReply}

	// Rejection wins when both lists match ("nahi chahiye", "don't send").
	if c.lex.Rejection.Match(tokens) {
		res.Label = models.IntentPDFReject
		return res, true
	}
	if c.lex.Affirmative.Match(tokens) {
		res.Label = models.IntentPDFAffirm
		return res, true
	}

	if c.backend != nil {
		res.BackendCalls++
		affirm, err := c.binary(ctx, text, KindAffirmative)
		if err == nil && affirm {
			res.Label = models.IntentPDFAffirm
			return res, true
		}
		if err != nil {
			c.logger.Warn("affirmative classification failed, using canonical tokens", "error", err)
			res.Fallback = true
		} else {
			res.BackendCalls++
			reject, err := c.binary(ctx, text, KindRejection)
			if err == nil && reject {
				res.Label = models.IntentPDFReject
				return res, true
			}
			if err != nil {
				c.logger.Warn("rejection classification failed, using canonical tokens", "error", err)
				res.Fallback = true
			}
		}
	} else {
		res.Fallback = true
	}

	if res.Fallback {
		switch {
		case c.lex.IsCanonicalYes(text):
			res.Label = models.IntentPDFAffirm
			return res, true
		case c.lex.IsCanonicalNo(text):
			res.Label = models.IntentPDFReject
			return res, true
		}
	}
	return res, false
}

func (c *Classifier) generativeTier(ctx context.Context, text string, words int) Result {
	res := Result{Tier: TierGenerative}
	if c.backend != nil {
		res.BackendCalls++
		label, err := c.threeWay(ctx, text)
		if err == nil {
			res.Label = label
			return res
		}
		c.logger.Warn("intent classification failed, using length default", "words", words, "error", err)
	}
	res.Fallback = true
	if words >= c.opts.SubstantiveMinWords {
		res.Label = models.IntentLegal
	} else {
		res.Label = models.IntentChitchat
	}
	return res
}

func (c *Classifier) threeWay(ctx context.Context, text string) (models.IntentLabel, error) {
	label, err := withTimeout(ctx, c.opts.Timeout, func(ctx context.Context) (models.IntentLabel, error) {
		return c.backend.ClassifyThreeWay(ctx, text)
	})
	if err != nil {
		return "", errors.Join(ErrBackend, err)
	}
	switch label {
	case models.IntentLegal, models.IntentChitchat, models.IntentIrrelevant:
		return label, nil
	default:
		return "", fmt.Errorf("%w: unexpected label %q", ErrBackend, label)
	}
}

func (c *Classifier) binary(ctx context.Context, text string, kind BinaryKind) (bool, error) {
	ok, err := withTimeout(ctx, c.opts.Timeout, func(ctx context.Context) (bool, error) {
		return c.backend.ClassifyBinary(ctx, text, kind)
	})
	if err != nil {
		return false, errors.Join(ErrBackend, err)
	}
	return ok, nil
}

// withTimeout runs fn under a deadline and returns when the deadline passes
// even if fn ignores its context.
func withTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
