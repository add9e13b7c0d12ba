// Package metrics collects in-memory runtime statistics for the engine:
// operation timings, token usage, and counters per response shape, intent
// and fallback kind.
package metrics

import (
	"maps"
	"sync"
	"time"
)

// Operation names for the collector.
const (
	OpClassifyBackend = "classify_backend"
	OpGenerate        = "generate"
	OpResearch        = "research"
	OpRenderDocument  = "render_document"
	OpSynthesizeVoice = "synthesize_voice"
	OpSummarize       = "summarize"
	OpTurn            = "turn"
)

// Counter groups for Count.
const (
	GroupShape    = "shape"
	GroupIntent   = "intent"
	GroupFallback = "fallback"
)

// span tracks count, sum and range of one measured quantity.
type span[T int64 | time.Duration] struct {
	Total T
	Min   T
	Max   T
	seen  bool
}

func (s *span[T]) add(v T) {
	s.Total += v
	if !s.seen || v < s.Min {
		s.Min = v
	}
	if !s.seen || v > s.Max {
		s.Max = v
	}
	s.seen = true
}

// OperationMetrics holds aggregated metrics for a single operation type.
type OperationMetrics struct {
	Count int64
	Time  span[time.Duration]

	// Token metrics, only fed by generative calls
	InputTokens  span[int64]
	OutputTokens span[int64]
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Count       int64   `json:"count"`
	TotalTimeMs int64   `json:"total_time_ms"`
	AvgTimeMs   float64 `json:"avg_time_ms"`
	MinTimeMs   int64   `json:"min_time_ms"`
	MaxTimeMs   int64   `json:"max_time_ms"`

	// Token stats (nil if not applicable)
	TotalInputTokens  *int64   `json:"total_input_tokens,omitempty"`
	TotalOutputTokens *int64   `json:"total_output_tokens,omitempty"`
	AvgInputTokens    *float64 `json:"avg_input_tokens,omitempty"`
	AvgOutputTokens   *float64 `json:"avg_output_tokens,omitempty"`
	MinInputTokens    *int64   `json:"min_input_tokens,omitempty"`
	MaxInputTokens    *int64   `json:"max_input_tokens,omitempty"`
	MinOutputTokens   *int64   `json:"min_output_tokens,omitempty"`
	MaxOutputTokens   *int64   `json:"max_output_tokens,omitempty"`
}

// Snapshot is the full statistics served on /stats.
type Snapshot struct {
	UptimeSeconds   float64            `json:"uptime_seconds"`
	ClassifyBackend *OperationSnapshot `json:"classify_backend,omitempty"`
	Generate        *OperationSnapshot `json:"generate,omitempty"`
	Research        *OperationSnapshot `json:"research,omitempty"`
	RenderDocument  *OperationSnapshot `json:"render_document,omitempty"`
	SynthesizeVoice *OperationSnapshot `json:"synthesize_voice,omitempty"`
	Summarize       *OperationSnapshot `json:"summarize,omitempty"`
	Turn            *OperationSnapshot `json:"turn,omitempty"`

	Shapes    map[string]int64 `json:"shapes"`
	Intents   map[string]int64 `json:"intents"`
	Fallbacks map[string]int64 `json:"fallbacks"`
}

// Collector aggregates in-memory runtime statistics.
// All methods are thread-safe.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*OperationMetrics
	counters  map[string]map[string]int64
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*OperationMetrics),
		counters:  make(map[string]map[string]int64),
	}
}

// observe records one call of op. Caller must hold write lock.
func (c *Collector) observe(op string, d time.Duration) *OperationMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{}
		c.ops[op] = m
	}
	m.Count++
	m.Time.add(d)
	return m
}

// RecordTiming records timing for an operation.
func (c *Collector) RecordTiming(op string, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observe(op, d)
}

// RecordLLMUsage records timing and token usage for a generative call.
func (c *Collector) RecordLLMUsage(op string, d time.Duration, inputTokens, outputTokens int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := c.observe(op, d)
	m.InputTokens.add(inputTokens)
	m.OutputTokens.add(outputTokens)
}

// Time records the duration since start for op. Use with defer.
func (c *Collector) Time(op string, start time.Time) {
	c.RecordTiming(op, time.Since(start))
}

// Count increments a named counter within a group.
func (c *Collector) Count(group, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	g, ok := c.counters[group]
	if !ok {
		g = make(map[string]int64)
		c.counters[group] = g
	}
	g[name]++
}

// Snapshot returns a point-in-time copy of all metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	group := func(name string) map[string]int64 {
		out := make(map[string]int64, len(c.counters[name]))
		maps.Copy(out, c.counters[name])
		return out
	}

	return Snapshot{
		UptimeSeconds:   time.Since(c.startTime).Seconds(),
		ClassifyBackend: c.ops[OpClassifyBackend].snapshot(),
		Generate:        c.ops[OpGenerate].snapshot(),
		Research:        c.ops[OpResearch].snapshot(),
		RenderDocument:  c.ops[OpRenderDocument].snapshot(),
		SynthesizeVoice: c.ops[OpSynthesizeVoice].snapshot(),
		Summarize:       c.ops[OpSummarize].snapshot(),
		Turn:            c.ops[OpTurn].snapshot(),
		Shapes:          group(GroupShape),
		Intents:         group(GroupIntent),
		Fallbacks:       group(GroupFallback),
	}
}

// snapshot computes derived stats, returning nil if there is no data.
// Token fields are set only when the operation reported token usage.
func (m *OperationMetrics) snapshot() *OperationSnapshot {
	if m == nil || m.Count == 0 {
		return nil
	}

	n := float64(m.Count)
	snap := &OperationSnapshot{
		Count:       m.Count,
		TotalTimeMs: m.Time.Total.Milliseconds(),
		AvgTimeMs:   float64(m.Time.Total.Milliseconds()) / n,
		MinTimeMs:   m.Time.Min.Milliseconds(),
		MaxTimeMs:   m.Time.Max.Milliseconds(),
	}

	if m.InputTokens.Total == 0 && m.OutputTokens.Total == 0 {
		return snap
	}
	in, out := m.InputTokens, m.OutputTokens
	avgIn, avgOut := float64(in.Total)/n, float64(out.Total)/n
	snap.TotalInputTokens, snap.TotalOutputTokens = &in.Total, &out.Total
	snap.AvgInputTokens, snap.AvgOutputTokens = &avgIn, &avgOut
	snap.MinInputTokens, snap.MaxInputTokens = &in.Min, &in.Max
	snap.MinOutputTokens, snap.MaxOutputTokens = &out.Min, &out.Max
	return snap
}
