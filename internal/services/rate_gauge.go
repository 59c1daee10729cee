package services

import (
	"math"
	"sort"
	"sync"
	"time"

	"flashback/internal/structures"
)

type RateStatus struct {
	Allowed           bool `json:"allowed"`
	Used              int  `json:"used"`
	Limit             int  `json:"limit"`
	Remaining         int  `json:"remaining"`
	Requested         int  `json:"requested"`
	WindowMinutes     int  `json:"window_minutes"`
	RetryAfterMinutes int  `json:"retry_after_minutes,omitempty"`
	// ExceedsLimit marks a request larger than the ceiling itself; waiting
	// never makes it fit, so RetryAfterMinutes stays zero.
	ExceedsLimit bool `json:"exceeds_limit,omitempty"`
}

type RateGaugeInterface interface {
	Record(n int)
	Check(requested int) RateStatus
	Prune() int
	Entries() []time.Time
	PutEntries(entries []time.Time)
}

// RateGauge is an advisory sliding-window counter of generation attempts.
// Nothing upstream enforces it; callers consult Check before starting work.
type RateGauge struct {
	mu      sync.Mutex
	entries []time.Time
	limit   int
	window  time.Duration
	now     func() time.Time
}

func NewRateGauge(conf *structures.Config) RateGaugeInterface {
	return newRateGauge(conf.RateLimit.MaxGenerations, conf.RateWindow(), time.Now)
}

func newRateGauge(limit int, window time.Duration, now func() time.Time) *RateGauge {
	return &RateGauge{
		limit:  limit,
		window: window,
		now:    now,
	}
}

func (g *RateGauge) Record(n int) {
	if n <= 0 {
		return
	}
	now := g.now()
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := 0; i < n; i++ {
		g.entries = append(g.entries, now)
	}
}

func (g *RateGauge) Check(requested int) RateStatus {
	if requested < 0 {
		requested = 0
	}
	now := g.now()

	g.mu.Lock()
	active := g.activeLocked(now)
	g.mu.Unlock()

	used := len(active)
	st := RateStatus{
		Used:          used,
		Limit:         g.limit,
		Remaining:     max(g.limit-used, 0),
		Requested:     requested,
		WindowMinutes: int(g.window / time.Minute),
	}
	st.Allowed = used+requested <= g.limit
	if st.Allowed {
		return st
	}

	if requested > g.limit {
		st.ExceedsLimit = true
		return st
	}

	// drop the oldest entries until the request fits
	free := used + requested - g.limit
	retry := active[free-1].Add(g.window).Sub(now)
	st.RetryAfterMinutes = max(int(math.Ceil(retry.Minutes())), 1)
	return st
}

// activeLocked returns the entries inside the window, oldest first.
func (g *RateGauge) activeLocked(now time.Time) []time.Time {
	cutoff := now.Add(-g.window)
	active := make([]time.Time, 0, len(g.entries))
	for _, t := range g.entries {
		if t.After(cutoff) {
			active = append(active, t)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].Before(active[j]) })
	return active
}

// Prune drops expired entries and returns how many were removed.
func (g *RateGauge) Prune() int {
	now := g.now()
	g.mu.Lock()
	defer g.mu.Unlock()
	before := len(g.entries)
	g.entries = g.activeLocked(now)
	return before - len(g.entries)
}

func (g *RateGauge) Entries() []time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]time.Time(nil), g.entries...)
}

func (g *RateGauge) PutEntries(entries []time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entries = append([]time.Time(nil), entries...)
}
