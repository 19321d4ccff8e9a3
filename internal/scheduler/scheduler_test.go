package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmate/jobhunt/internal/logging"
)

func TestNew_RejectsBadSpec(t *testing.T) {
	t.Parallel()

	_, err := New("every morning", time.UTC, func(context.Context) error { return nil }, logging.Discard())
	assert.Error(t, err)
}

func TestNext_DailyInChicago(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	s, err := New("0 6 * * *", loc, func(context.Context) error { return nil }, logging.Discard())
	require.NoError(t, err)

	// 13:00 UTC on Mar 1 2024 is 07:00 CST, past today's run.
	next := s.Next(time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC))
	assert.True(t, next.Equal(time.Date(2024, 3, 2, 6, 0, 0, 0, loc)), "next = %v", next)
	assert.Equal(t, "2024-03-02T12:00:00Z", next.UTC().Format(time.RFC3339))
}

func TestStart_RunNowFiresTrigger(t *testing.T) {
	t.Parallel()

	done := make(chan struct{})
	var once sync.Once
	s, err := New("0 6 * * *", time.UTC, func(context.Context) error {
		once.Do(func() { close(done) })
		return nil
	}, logging.Discard())
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background(), true))
	defer s.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("trigger was not fired on start")
	}
}

func TestFire_SkipsWhileRunning(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{})
	s, err := New("@daily", time.UTC, func(context.Context) error {
		calls.Add(1)
		close(started)
		<-release
		return nil
	}, logging.Discard())
	require.NoError(t, err)

	go s.fire(context.Background())
	<-started

	s.fire(context.Background())
	close(release)

	assert.Eventually(t, func() bool { return s.running.TryLock() }, time.Second, 5*time.Millisecond)
	s.running.Unlock()
	assert.EqualValues(t, 1, calls.Load())
}

func TestFire_ErrorIsLoggedNotPanicked(t *testing.T) {
	t.Parallel()

	s, err := New("@daily", time.UTC, func(context.Context) error { return errors.New("scraper down") }, logging.Discard())
	require.NoError(t, err)
	assert.NotPanics(t, func() { s.fire(context.Background()) })
}

func TestFire_CancelledContextSkips(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	s, err := New("@daily", time.UTC, func(context.Context) error { calls.Add(1); return nil }, logging.Discard())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.fire(ctx)
	assert.Zero(t, calls.Load())
}
