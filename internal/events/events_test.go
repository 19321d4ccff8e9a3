package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_AddsType(t *testing.T) {
	t.Parallel()

	body, err := Encode(TrackingUpdated, map[string]any{"postingId": 7, "status": "applied"})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "EVENT_TRACKING_UPDATED", got["type"])
	assert.Equal(t, "applied", got["status"])
	assert.EqualValues(t, 7, got["postingId"])
}

func TestEncode_TypeWins(t *testing.T) {
	t.Parallel()

	body, err := Encode(ScrapeCompleted, map[string]any{"type": "spoofed"})
	require.NoError(t, err)
	assert.Contains(t, string(body), `"type":"EVENT_SCRAPE_COMPLETED"`)
}

func TestRecorder(t *testing.T) {
	t.Parallel()

	var r Recorder
	r.Publish(context.Background(), ScrapeFailed, map[string]any{"runId": "x"})
	Nop{}.Publish(context.Background(), ScrapeFailed, nil)

	got := r.Events()
	require.Len(t, got, 1)
	assert.Equal(t, ScrapeFailed, got[0].Type)
	assert.Equal(t, "x", got[0].Payload["runId"])
}
