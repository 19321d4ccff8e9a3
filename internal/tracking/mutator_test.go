package tracking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmate/jobhunt/internal/events"
	"jobmate/jobhunt/internal/logging"
	"jobmate/jobhunt/internal/model"
	"jobmate/jobhunt/internal/store/memstore"
)

var clock = time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC)

func setup(t *testing.T, opts ...Option) (*Mutator, *memstore.Store, int64) {
	t.Helper()
	st := memstore.New()
	_, err := st.UpsertPosting(context.Background(), model.RawPosting{ExternalID: "p1", Title: "Psychiatrist"}, clock)
	require.NoError(t, err)
	p, ok := st.PostingByExternalID("p1")
	require.True(t, ok)

	opts = append([]Option{WithClock(func() time.Time { return clock })}, opts...)
	return NewMutator(st, logging.Discard(), opts...), st, p.ID
}

func TestToggleFavorite_FirstTouchCreatesFavorite(t *testing.T) {
	t.Parallel()
	m, st, id := setup(t)

	rec, err := m.ToggleFavorite(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, rec.IsFavorite)
	assert.Equal(t, model.StatusNew, rec.Status)
	assert.True(t, rec.Materialized())
	require.NotNil(t, rec.UpdatedAt)
	assert.Equal(t, clock, *rec.UpdatedAt)
	assert.Equal(t, 1, st.TrackingCount())

	rec, err = m.ToggleFavorite(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, rec.IsFavorite)
	assert.Equal(t, 1, st.TrackingCount())
}

func TestSetStatus_AppliedDateLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m, _, id := setup(t)

	rec, err := m.SetStatus(ctx, id, "applied")
	require.NoError(t, err)
	assert.False(t, rec.IsFavorite)
	require.NotNil(t, rec.AppliedDate)
	stamped := *rec.AppliedDate
	assert.Equal(t, "2024-03-01", stamped.Format("2006-01-02"))

	rec, err = m.SetStatus(ctx, id, "applied")
	require.NoError(t, err)
	assert.Equal(t, stamped, *rec.AppliedDate)

	rec, err = m.SetStatus(ctx, id, "rejected")
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, rec.Status)
	require.NotNil(t, rec.AppliedDate)
	assert.Equal(t, stamped, *rec.AppliedDate)
}

func TestSetStatus_InvalidCreatesNothing(t *testing.T) {
	t.Parallel()
	m, st, id := setup(t)

	_, err := m.SetStatus(context.Background(), id, "bogus")
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))
	assert.Equal(t, 0, st.TrackingCount())

	v, err := st.GetPosting(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultTracking(id), v.Tracking)
}

func TestSetStatus_InvalidDoesNotModifyExisting(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m, st, id := setup(t)

	before, err := m.SetStatus(ctx, id, "interviewing")
	require.NoError(t, err)

	_, err = m.SetStatus(ctx, id, "Interviewing ")
	require.Error(t, err)

	v, err := st.GetPosting(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, before, v.Tracking)
}

func TestSetNotes_VerbatimIncludingEmpty(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m, _, id := setup(t)

	rec, err := m.SetNotes(ctx, id, "  call back Tuesday\n")
	require.NoError(t, err)
	assert.Equal(t, "  call back Tuesday\n", rec.Notes)
	assert.Equal(t, model.StatusNew, rec.Status)

	rec, err = m.SetNotes(ctx, id, "")
	require.NoError(t, err)
	assert.Equal(t, "", rec.Notes)
}

func TestMutations_NotFound(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m, st, _ := setup(t)
	const missing = int64(9999)

	_, err := m.ToggleFavorite(ctx, missing)
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = m.SetStatus(ctx, missing, "applied")
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = m.SetNotes(ctx, missing, "x")
	assert.ErrorIs(t, err, model.ErrNotFound)

	assert.Equal(t, 0, st.TrackingCount())
}

func TestConcurrentFirstTouch_OneRecord(t *testing.T) {
	t.Parallel()
	m, st, id := setup(t)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				_, err = m.SetNotes(context.Background(), id, "n")
			} else {
				_, err = m.SetStatus(context.Background(), id, "applied")
			}
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, st.TrackingCount())
}

func TestMutations_PublishEvents(t *testing.T) {
	t.Parallel()
	rec := &events.Recorder{}
	m, _, id := setup(t, WithEvents(rec))

	_, err := m.SetStatus(context.Background(), id, "offer")
	require.NoError(t, err)
	_, err = m.SetStatus(context.Background(), id, "nope")
	require.Error(t, err)

	evs := rec.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, events.TrackingUpdated, evs[0].Type)
	assert.Equal(t, "offer", evs[0].Payload["status"])
	assert.Equal(t, id, evs[0].Payload["postingId"])
}
