package coupon

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSuperseded is returned when a newer search replaced this one
// inside the debounce window.
var ErrSuperseded = errors.New("search superseded by a newer query")

// DefaultDebounce is the settle time before a search actually fires.
const DefaultDebounce = 300 * time.Millisecond

// SearchFunc performs the actual catalog lookup for a query.
type SearchFunc func(ctx context.Context, query string) ([]Coupon, error)

// Searcher debounces rapid successive coupon searches. Only the last
// call inside the debounce window reaches the catalog; earlier callers
// get ErrSuperseded. A response arriving after a newer query has
// started is also discarded, so a slow network can never surface stale
// results over fresh ones.
type Searcher struct {
	mu    sync.Mutex
	seq   uint64
	delay time.Duration
	fetch SearchFunc
}

func NewSearcher(fetch SearchFunc, delay time.Duration) *Searcher {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Searcher{delay: delay, fetch: fetch}
}

// Search waits out the debounce window and, if still the newest query,
// runs the lookup.
func (s *Searcher) Search(ctx context.Context, query string) ([]Coupon, error) {
	s.mu.Lock()
	s.seq++
	mine := s.seq
	s.mu.Unlock()

	timer := time.NewTimer(s.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}

	if s.superseded(mine) {
		return nil, ErrSuperseded
	}

	out, err := s.fetch(ctx, query)
	if err != nil {
		return nil, err
	}
	if s.superseded(mine) {
		return nil, ErrSuperseded
	}
	return out, nil
}

func (s *Searcher) superseded(seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq != seq
}
