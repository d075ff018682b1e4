package unread

import (
	"context"
	"sync"
	"time"

	"github.com/streakmates/sync-client/internal/api"
	pkglog "github.com/streakmates/sync-client/pkg/log"
)

// DefaultMinFetchInterval is the floor between unforced refreshes.
const DefaultMinFetchInterval = 30 * time.Second

// Fetcher provides the authoritative unread count. *api.Client satisfies it.
type Fetcher interface {
	UnreadCount(ctx context.Context) (int, error)
}

// Synchronizer reconciles the unread-notification counter between
// throttled polling, push deltas, and manual clears. Push increments
// never trigger a fetch; bursty notification delivery therefore costs
// one counter bump per event instead of a request storm, and any drift
// is corrected at the next forced refresh.
type Synchronizer struct {
	mu            sync.Mutex
	count         int
	lastFetchAt   time.Time
	fetchInFlight bool

	fetcher     Fetcher
	minInterval time.Duration
	now         func() time.Time
	onChange    []func(int)
}

// NewSynchronizer creates a Synchronizer with count 0.
func NewSynchronizer(fetcher Fetcher, minInterval time.Duration) *Synchronizer {
	if minInterval <= 0 {
		minInterval = DefaultMinFetchInterval
	}
	return &Synchronizer{
		fetcher:     fetcher,
		minInterval: minInterval,
		now:         time.Now,
	}
}

// Count returns the current counter value.
func (s *Synchronizer) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// OnChange registers an observer invoked with the new value after every
// counter change.
func (s *Synchronizer) OnChange(fn func(int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// Refresh fetches the authoritative count. It is a no-op while a fetch
// is in flight, and unless forced, a no-op within the minimum interval
// of the previous fetch. Rate-limit errors from background polling are
// swallowed; other errors are returned.
func (s *Synchronizer) Refresh(ctx context.Context, force bool) error {
	s.mu.Lock()
	if s.fetchInFlight {
		s.mu.Unlock()
		return nil
	}
	if !force && s.now().Sub(s.lastFetchAt) < s.minInterval {
		s.mu.Unlock()
		return nil
	}
	s.fetchInFlight = true
	s.mu.Unlock()

	n, err := s.fetcher.UnreadCount(ctx)

	s.mu.Lock()
	s.fetchInFlight = false
	if err != nil {
		s.mu.Unlock()
		if api.IsRateLimited(err) {
			l := pkglog.L()
			l.Debug().Err(err).Msg("unread: refresh rate limited")
			return nil
		}
		return err
	}
	s.count = n
	s.lastFetchAt = s.now()
	watchers := append([]func(int){}, s.onChange...)
	s.mu.Unlock()

	s.notify(watchers, n)
	return nil
}

// ApplyCount overwrites the counter with an authoritative push value.
// The push is treated as equivalent to a fetch, so the throttle window
// restarts and no redundant poll follows.
func (s *Synchronizer) ApplyCount(n int) {
	if n < 0 {
		n = 0
	}
	s.mu.Lock()
	s.count = n
	s.lastFetchAt = s.now()
	watchers := append([]func(int){}, s.onChange...)
	s.mu.Unlock()

	s.notify(watchers, n)
}

// Increment bumps the counter by exactly one for a "one new item" push
// event. It never issues a fetch.
func (s *Synchronizer) Increment() {
	s.mu.Lock()
	s.count++
	n := s.count
	watchers := append([]func(int){}, s.onChange...)
	s.mu.Unlock()

	s.notify(watchers, n)
}

// Clear zeroes the counter immediately, decoupled from any server
// confirmation. Used after the user views the notification list and on
// logout.
func (s *Synchronizer) Clear() {
	s.mu.Lock()
	changed := s.count != 0
	s.count = 0
	watchers := append([]func(int){}, s.onChange...)
	s.mu.Unlock()

	if changed {
		s.notify(watchers, 0)
	}
}

func (s *Synchronizer) notify(watchers []func(int), n int) {
	for _, fn := range watchers {
		fn(n)
	}
}
