package unread

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/streakmates/sync-client/internal/api"
)

type fakeFetcher struct {
	count int
	err   error
	calls int

	// onFetch runs inside UnreadCount, simulating refreshes issued while
	// the request is in flight.
	onFetch func()
}

func (f *fakeFetcher) UnreadCount(ctx context.Context) (int, error) {
	f.calls++
	if f.onFetch != nil {
		f.onFetch()
	}
	if f.err != nil {
		return 0, f.err
	}
	return f.count, nil
}

func newTestSynchronizer(f *fakeFetcher) (*Synchronizer, *time.Time) {
	s := NewSynchronizer(f, 30*time.Second)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	return s, &now
}

func TestRefreshThrottled(t *testing.T) {
	f := &fakeFetcher{count: 5}
	s, now := newTestSynchronizer(f)

	require.NoError(t, s.Refresh(context.Background(), false))
	require.Equal(t, 5, s.Count())
	require.Equal(t, 1, f.calls)

	// Second unforced refresh inside the window is a no-op.
	*now = now.Add(10 * time.Second)
	f.count = 9
	require.NoError(t, s.Refresh(context.Background(), false))
	require.Equal(t, 5, s.Count())
	require.Equal(t, 1, f.calls)

	// Outside the window it fetches again.
	*now = now.Add(30 * time.Second)
	require.NoError(t, s.Refresh(context.Background(), false))
	require.Equal(t, 9, s.Count())
	require.Equal(t, 2, f.calls)
}

func TestRefreshForcedIgnoresWindow(t *testing.T) {
	f := &fakeFetcher{count: 5}
	s, _ := newTestSynchronizer(f)

	require.NoError(t, s.Refresh(context.Background(), false))
	f.count = 7
	require.NoError(t, s.Refresh(context.Background(), true))
	require.Equal(t, 7, s.Count())
	require.Equal(t, 2, f.calls)
}

func TestRefreshBlockedWhileFetchInFlight(t *testing.T) {
	f := &fakeFetcher{count: 5}
	s, _ := newTestSynchronizer(f)

	// Refreshes arriving while the request is in flight are dropped,
	// forced or not, instead of stacking requests.
	f.onFetch = func() {
		require.NoError(t, s.Refresh(context.Background(), false))
		require.NoError(t, s.Refresh(context.Background(), true))
	}

	require.NoError(t, s.Refresh(context.Background(), true))
	require.Equal(t, 1, f.calls)
	require.Equal(t, 5, s.Count())
}

func TestRefreshSwallowsRateLimit(t *testing.T) {
	f := &fakeFetcher{err: &api.Error{Status: http.StatusTooManyRequests, Code: api.ErrCodeRateLimited}}
	s, _ := newTestSynchronizer(f)

	require.NoError(t, s.Refresh(context.Background(), true))
	require.Equal(t, 0, s.Count())
}

func TestRefreshSurfacesOtherErrors(t *testing.T) {
	f := &fakeFetcher{err: &api.Error{Status: http.StatusInternalServerError, Code: api.ErrCodeInternalError}}
	s, _ := newTestSynchronizer(f)

	require.Error(t, s.Refresh(context.Background(), true))
}

func TestIncrementNeverFetches(t *testing.T) {
	f := &fakeFetcher{}
	s, _ := newTestSynchronizer(f)

	s.Increment()
	s.Increment()
	require.Equal(t, 2, s.Count())
	require.Equal(t, 0, f.calls)
}

func TestApplyCountRestartsThrottleWindow(t *testing.T) {
	// Counter starts at 3; a "one new item" push bumps it to 4 with no
	// fetch; an authoritative absolute count then overwrites to 1 and
	// counts as a fetch for throttling purposes.
	f := &fakeFetcher{count: 3}
	s, now := newTestSynchronizer(f)

	require.NoError(t, s.Refresh(context.Background(), true))
	require.Equal(t, 3, s.Count())

	s.Increment()
	require.Equal(t, 4, s.Count())
	require.Equal(t, 1, f.calls)

	*now = now.Add(45 * time.Second)
	s.ApplyCount(1)
	require.Equal(t, 1, s.Count())

	// Push counted as a fetch: the next unforced refresh is throttled.
	*now = now.Add(5 * time.Second)
	require.NoError(t, s.Refresh(context.Background(), false))
	require.Equal(t, 1, f.calls)
}

func TestClear(t *testing.T) {
	f := &fakeFetcher{count: 8}
	s, _ := newTestSynchronizer(f)

	require.NoError(t, s.Refresh(context.Background(), true))
	s.Clear()
	require.Equal(t, 0, s.Count())
}

func TestOnChange(t *testing.T) {
	f := &fakeFetcher{}
	s, _ := newTestSynchronizer(f)

	var seen []int
	s.OnChange(func(n int) { seen = append(seen, n) })

	s.Increment()
	s.ApplyCount(6)
	s.Clear()
	require.Equal(t, []int{1, 6, 0}, seen)
}
