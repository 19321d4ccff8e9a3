package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmate/jobhunt/internal/ingest"
	"jobmate/jobhunt/internal/logging"
	"jobmate/jobhunt/internal/model"
	"jobmate/jobhunt/internal/query"
	"jobmate/jobhunt/internal/scraper"
	"jobmate/jobhunt/internal/store/memstore"
	"jobmate/jobhunt/internal/tracking"
)

type fixture struct {
	st      *memstore.Store
	handler http.Handler
	fetch   func(context.Context) ([]model.RawPosting, error)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{st: memstore.New()}
	f.fetch = func(context.Context) ([]model.RawPosting, error) { return nil, nil }

	producer := scraper.ProducerFunc(func(ctx context.Context) ([]model.RawPosting, error) { return f.fetch(ctx) })
	log := logging.Discard()
	h := NewHandler(
		query.NewService(f.st, query.CountPostFilter),
		tracking.NewMutator(f.st, log),
		ingest.New(f.st, producer, log),
		log,
	)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	f.handler = Wrap(mux, []string{"http://localhost:3000"}, log)
	return f
}

func (f *fixture) seed(t *testing.T, n int) []int64 {
	t.Helper()
	ids := make([]int64, 0, n)
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		d := base.AddDate(0, 0, -i)
		ext := "ext-" + string(rune('a'+i%26)) + string(rune('a'+i/26))
		_, err := f.st.UpsertPosting(context.Background(), model.RawPosting{
			ExternalID: ext, Title: "Psychiatrist", Company: "Acme", SearchLocation: "Durham, NC", DatePosted: &d,
		}, base)
		require.NoError(t, err)
		p, _ := f.st.PostingByExternalID(ext)
		ids = append(ids, p.ID)
	}
	return ids
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	w := f.do(http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "ok", body["status"])
	_, err := time.Parse(time.RFC3339, body["timestamp"].(string))
	assert.NoError(t, err)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestListJobs_Pagination(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.seed(t, 45)

	w := f.do(http.MethodGet, "/api/jobs?page=3&limit=20", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 45, body["total"])
	assert.EqualValues(t, 3, body["totalPages"])
	assert.EqualValues(t, 3, body["page"])
	assert.Len(t, body["jobs"], 5)

	w = f.do(http.MethodGet, "/api/jobs?pageSize=50", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["jobs"], 45)
}

func TestListJobs_HugePageIsEmpty(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.seed(t, 3)

	w := f.do(http.MethodGet, "/api/jobs?page=500000000000000000&limit=20", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 3, body["total"])
	assert.Empty(t, body["jobs"])
}

func TestListJobs_BadParams(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	for _, q := range []string{"page=0", "page=abc", "limit=-1", "pageSize=x", "status=hired"} {
		w := f.do(http.MethodGet, "/api/jobs?"+q, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestListJobs_FavoriteFilter(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ids := f.seed(t, 3)

	w := f.do(http.MethodPost, "/api/jobs/"+itoa(ids[1])+"/favorite", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodGet, "/api/jobs?favorite=true", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 3, body["total"], "post-filter total ignores favorite")
	jobs := body["jobs"].([]any)
	require.Len(t, jobs, 1)
	assert.EqualValues(t, ids[1], jobs[0].(map[string]any)["id"])

	w = f.do(http.MethodGet, "/api/jobs?favorite=false", "")
	assert.Len(t, decode(t, w)["jobs"], 3, "only favorite=true filters")
}

func TestGetJob(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ids := f.seed(t, 1)

	w := f.do(http.MethodGet, "/api/jobs/"+itoa(ids[0]), "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Psychiatrist", body["title"])
	tr := body["tracking"].(map[string]any)
	assert.Equal(t, false, tr["is_favorite"])
	assert.Equal(t, "new", tr["status"])
	assert.Equal(t, "", tr["notes"])
	assert.Nil(t, tr["applied_date"])

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/jobs/999", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/jobs/abc", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, f.do(http.MethodDelete, "/api/jobs/"+itoa(ids[0]), "").Code)
}

func TestSetStatus(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ids := f.seed(t, 1)
	path := "/api/jobs/" + itoa(ids[0]) + "/status"

	w := f.do(http.MethodPut, path, `{"status":"applied"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "applied", body["status"])
	assert.NotNil(t, body["applied_date"])

	w = f.do(http.MethodPut, path, `{"status":"bogus"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "bogus")

	w = f.do(http.MethodPut, path, `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "status")

	w = f.do(http.MethodPut, path, `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, http.StatusMethodNotAllowed, f.do(http.MethodPost, path, `{"status":"offer"}`).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodPut, "/api/jobs/999/status", `{"status":"offer"}`).Code)
}

func TestSetStatus_InvalidLeavesNoRecord(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ids := f.seed(t, 1)

	w := f.do(http.MethodPut, "/api/jobs/"+itoa(ids[0])+"/status", `{"status":"Applied"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, f.st.TrackingCount())
}

func TestSetNotes(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ids := f.seed(t, 1)
	path := "/api/jobs/" + itoa(ids[0]) + "/notes"

	w := f.do(http.MethodPut, path, `{"notes":"call Tuesday"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "call Tuesday", decode(t, w)["notes"])

	w = f.do(http.MethodPut, path, `{"notes":""}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "", decode(t, w)["notes"])

	w = f.do(http.MethodPut, path, `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnknownAction(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ids := f.seed(t, 1)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodPost, "/api/jobs/"+itoa(ids[0])+"/archive", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/jobs/1/status/extra", "").Code)
}

func TestScrape_SuccessAndStatus(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	w := f.do(http.MethodGet, "/api/scrape/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "No scrapes yet", decode(t, w)["message"])

	f.fetch = func(context.Context) ([]model.RawPosting, error) {
		return []model.RawPosting{{ExternalID: "a", Title: "Psychiatrist"}, {ExternalID: "b", Title: "Psychiatrist"}}, nil
	}
	w = f.do(http.MethodPost, "/api/scrape", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 2, body["jobs_found"])
	assert.EqualValues(t, 2, body["jobs_inserted"])
	assert.NotEmpty(t, body["run_id"])

	w = f.do(http.MethodGet, "/api/scrape/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.Equal(t, "success", body["status"])
	assert.EqualValues(t, 2, body["jobs_inserted"])
}

func TestScrape_UpstreamFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.fetch = func(context.Context) ([]model.RawPosting, error) {
		return nil, errors.New("connection refused")
	}

	w := f.do(http.MethodPost, "/api/scrape", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, decode(t, w)["error"], "connection refused")

	w = f.do(http.MethodGet, "/api/scrape/status", "")
	body := decode(t, w)
	assert.Equal(t, "failed", body["status"])
	assert.Contains(t, body["error_message"], "connection refused")

	assert.Equal(t, http.StatusMethodNotAllowed, f.do(http.MethodGet, "/api/scrape", "").Code)
}

func TestCORS(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	r := httptest.NewRequest(http.MethodOptions, "/api/jobs", nil)
	r.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	r = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	r.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	f.handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestLogger_LevelByStatus(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	h := RequestLogger(logging.NewWithWriter(&buf, "info"))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.Header.Set("X-Request-ID", "req-1")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "request_id=req-1")
	assert.Contains(t, out, "status=418")
	assert.Equal(t, "req-1", w.Header().Get("X-Request-ID"))
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
