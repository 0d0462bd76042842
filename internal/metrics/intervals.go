package metrics

import (
	"sort"
	"time"
)

// IntervalSummary is the observed spacing between batches of one scope
type IntervalSummary struct {
	Scope         string    `json:"scope"`
	Batches       int       `json:"batches"`
	MeanSeconds   float64   `json:"mean_seconds"`
	StdDevSeconds float64   `json:"stddev_seconds"`
	LastBatchAt   time.Time `json:"last_batch_at"`
}

type scopeIntervals struct {
	batches int
	last    time.Time
	stats   Welford
}

// BatchIntervals tracks inter-batch intervals per scope. It is not safe for
// concurrent use; callers own it from a single goroutine.
type BatchIntervals struct {
	scopes map[string]*scopeIntervals
}

func NewBatchIntervals() *BatchIntervals {
	return &BatchIntervals{scopes: make(map[string]*scopeIntervals)}
}

// Observe records a batch arrival. The first batch of a scope only sets the
// reference time; out-of-order arrivals are ignored.
func (b *BatchIntervals) Observe(scope string, at time.Time) {
	s, ok := b.scopes[scope]
	if !ok {
		b.scopes[scope] = &scopeIntervals{batches: 1, last: at}
		return
	}
	s.batches++
	if at.Before(s.last) {
		return
	}
	if !s.last.IsZero() {
		s.stats.Add(at.Sub(s.last).Seconds())
	}
	s.last = at
}

// Reset forgets every scope
func (b *BatchIntervals) Reset() {
	b.scopes = make(map[string]*scopeIntervals)
}

// Summaries returns one entry per scope, sorted by scope
func (b *BatchIntervals) Summaries() []IntervalSummary {
	out := make([]IntervalSummary, 0, len(b.scopes))
	for scope, s := range b.scopes {
		out = append(out, IntervalSummary{
			Scope:         scope,
			Batches:       s.batches,
			MeanSeconds:   s.stats.Mean(),
			StdDevSeconds: s.stats.StdDev(),
			LastBatchAt:   s.last,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Scope < out[j].Scope })
	return out
}
