package poll

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobwatch-engine/internal/classify"
	"jobwatch-engine/internal/domain"
	"jobwatch-engine/internal/notify"
	"jobwatch-engine/internal/notify/mocks"
	"jobwatch-engine/internal/scrape/workday"
	"jobwatch-engine/internal/seen"
)

var fixedNow = time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

// board serves a fixed list of postings per tenant, paged like Workday.
type board struct {
	mu       sync.Mutex
	postings map[string][]domain.Posting // tenant -> postings
	broken   map[string]bool
	fetches  map[string]int
}

func newBoard() *board {
	return &board{
		postings: map[string][]domain.Posting{},
		broken:   map[string]bool{},
		fetches:  map[string]int{},
	}
}

func (b *board) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// /wday/cxs/<tenant>/site/jobs
	segs := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	tenant := segs[2]

	var req workday.WDRequest
	body, _ := io.ReadAll(r.Body)
	_ = json.Unmarshal(body, &req)

	b.mu.Lock()
	b.fetches[tenant]++
	broken := b.broken[tenant]
	all := b.postings[tenant]
	b.mu.Unlock()

	if broken {
		_, _ = io.WriteString(w, "<html><title>Oops</title></html>")
		return
	}
	end := min(req.Offset+req.Limit, len(all))
	page := []domain.Posting{}
	if req.Offset < len(all) {
		page = all[req.Offset:end]
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"total": len(all), "jobPostings": page})
}

type harness struct {
	srv       *httptest.Server
	board     *board
	seenPath  string
	store     seen.Store
	notifier  *mocks.MockNotifier
	employers []domain.Employer
	events    []string
	evMu      sync.Mutex

	notifyTimeout time.Duration
}

func newHarness(t *testing.T, tenants ...string) *harness {
	t.Helper()
	h := &harness{board: newBoard()}
	h.srv = httptest.NewServer(h.board)
	t.Cleanup(h.srv.Close)

	h.seenPath = filepath.Join(t.TempDir(), "seen_jobs.json")
	fs := seen.NewFileStore(h.seenPath, seen.DefaultRetention, clock)
	t.Cleanup(func() { _ = fs.Close() })
	h.store = fs

	h.notifier = mocks.NewMockNotifier(gomock.NewController(t))
	h.notifier.EXPECT().Name().Return("mock").AnyTimes()

	for _, tn := range tenants {
		h.employers = append(h.employers, domain.Employer{
			Name:        strings.ToUpper(tn[:1]) + tn[1:],
			Endpoint:    h.srv.URL + "/wday/cxs/" + tn + "/site/jobs",
			ApplyBase:   "https://" + tn + ".wd1.myworkdayjobs.com/en-US/site",
			SearchTerms: []string{"Israel"},
		})
	}
	return h
}

func (h *harness) coordinator(t *testing.T) *Coordinator {
	t.Helper()
	retry := workday.DefaultRetryPolicy()
	retry.BaseDelay = time.Millisecond
	c, err := New(Options{
		Employers:     h.employers,
		Fetcher:       workday.New(workday.Options{Retry: retry}),
		Rules:         classify.Default(),
		Store:         h.store,
		Notifier:      h.notifier,
		NotifyTimeout: h.notifyTimeout,
		Now:           clock,
		OnEvent: func(typ string, _ any) {
			h.evMu.Lock()
			h.events = append(h.events, typ)
			h.evMu.Unlock()
		},
	})
	require.NoError(t, err)
	return c
}

func (h *harness) seenFile(t *testing.T) map[string]string {
	t.Helper()
	b, err := os.ReadFile(h.seenPath)
	require.NoError(t, err)
	var m map[string]string
	require.NoError(t, json.Unmarshal(b, &m))
	return m
}

func intern(path, postedOn string) domain.Posting {
	return domain.Posting{
		Title:         "Software Intern",
		ExternalPath:  path,
		LocationsText: "Haifa, Israel",
		PostedOn:      postedOn,
	}
}

func TestFreshMatchNotifiesOnceAndIsRecorded(t *testing.T) {
	h := newHarness(t, "nvidia")
	h.board.postings["nvidia"] = []domain.Posting{intern("/job/123", "Posted Today")}

	h.notifier.EXPECT().Notify(gomock.Any(), notify.Alert{
		Employer: "Nvidia",
		Title:    "Software Intern",
		Location: "Haifa, Israel",
		ApplyURL: "https://nvidia.wd1.myworkdayjobs.com/en-US/site/job/123",
	}).Return(nil).Times(1)

	res, err := h.coordinator(t).RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Notified)
	assert.True(t, res.Persisted)
	assert.Equal(t, map[string]string{"/job/123": "2026-10-19"}, h.seenFile(t))
	assert.Equal(t, []string{EventPostingMatched, EventCycleCompleted}, h.events)
}

func TestStaleMatchIsRecordedWithoutNotification(t *testing.T) {
	h := newHarness(t, "nvidia")
	h.board.postings["nvidia"] = []domain.Posting{intern("/job/123", "Posted 3 Days Ago")}
	// No Notify expectation: any call fails the test.

	res, err := h.coordinator(t).RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, res.Notified)
	assert.Equal(t, 1, res.Recorded)
	assert.Equal(t, map[string]string{"/job/123": "2026-10-19"}, h.seenFile(t))
}

func TestNonMatchesAreIgnored(t *testing.T) {
	h := newHarness(t, "intel")
	h.board.postings["intel"] = []domain.Posting{
		{Title: "Senior Engineer", ExternalPath: "/job/1", LocationsText: "Haifa, Israel", PostedOn: "Posted Today"},
		{Title: "Software Intern", ExternalPath: "/job/2", LocationsText: "Santa Clara, CA", PostedOn: "Posted Today"},
	}

	res, err := h.coordinator(t).RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Scanned)
	assert.Empty(t, h.seenFile(t))
}

func TestSecondCycleIsIdempotent(t *testing.T) {
	h := newHarness(t, "nvidia")
	h.board.postings["nvidia"] = []domain.Posting{
		intern("/job/1", "Posted Today"),
		intern("/job/2", "Posted 5 Days Ago"),
	}
	h.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	c := h.coordinator(t)
	_, err := c.RunCycle(context.Background())
	require.NoError(t, err)
	first := h.seenFile(t)

	res, err := c.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Notified)
	assert.Equal(t, 0, res.Recorded)
	assert.Equal(t, first, h.seenFile(t))
}

func TestEmployersScanConcurrentlyWithoutLosingEntries(t *testing.T) {
	tenants := []string{"alpha", "bravo", "charlie", "delta"}
	h := newHarness(t, tenants...)
	const perEmployer = 45 // three pages
	for _, tn := range tenants {
		for i := 0; i < perEmployer; i++ {
			h.board.postings[tn] = append(h.board.postings[tn], intern(fmt.Sprintf("/%s/job/%d", tn, i), "Posted Today"))
		}
	}
	h.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(nil).Times(len(tenants) * perEmployer)

	res, err := h.coordinator(t).RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, len(tenants)*perEmployer, res.SeenEntries)
	assert.Len(t, h.seenFile(t), len(tenants)*perEmployer)
	for _, tn := range tenants {
		assert.Equal(t, 4, h.board.fetches[tn], "3 full pages and one empty")
	}
}

func TestNotifierFailureKeepsPostingSeen(t *testing.T) {
	h := newHarness(t, "nvidia")
	h.board.postings["nvidia"] = []domain.Posting{intern("/job/9", "Posted Today")}
	h.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(errors.New("smtp down")).Times(1)

	c := h.coordinator(t)
	res, err := c.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Employers[0].NotifyFailures)
	assert.Equal(t, 0, res.Notified)
	assert.Equal(t, 0, c.Status().LastNotified)
	assert.Contains(t, h.seenFile(t), "/job/9")

	// Not retried on the next cycle.
	_, err = c.RunCycle(context.Background())
	require.NoError(t, err)
}

func TestStalledNotifierDoesNotWedgeCycle(t *testing.T) {
	h := newHarness(t, "nvidia")
	h.notifyTimeout = 100 * time.Millisecond
	h.board.postings["nvidia"] = []domain.Posting{intern("/job/11", "Posted Today")}
	h.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, _ notify.Alert) error {
		<-ctx.Done()
		return ctx.Err()
	}).Times(1)

	c := h.coordinator(t)
	start := time.Now()
	res, err := c.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	assert.Equal(t, 1, res.Employers[0].NotifyFailures)
	assert.Equal(t, 0, res.Notified)
	assert.Contains(t, h.seenFile(t), "/job/11")

	// The lock is released for the next cycle.
	_, err = c.RunCycle(context.Background())
	assert.NotErrorIs(t, err, ErrCycleRunning)
}

func TestFailingEmployerDoesNotStopOthers(t *testing.T) {
	h := newHarness(t, "broken", "intel")
	h.board.broken["broken"] = true
	h.board.postings["intel"] = []domain.Posting{intern("/job/7", "Posted Today")}
	h.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	res, err := h.coordinator(t).RunCycle(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Employers, 2)
	assert.NotEmpty(t, res.Employers[0].Errors)
	assert.Empty(t, res.Employers[1].Errors)
	assert.Equal(t, 1, h.board.fetches["broken"], "malformed bodies are not retried")
	assert.Contains(t, h.seenFile(t), "/job/7")
}

func TestNamespacedIdentifiers(t *testing.T) {
	h := newHarness(t, "nvidia", "intel")
	h.board.postings["nvidia"] = []domain.Posting{intern("/job/1", "Posted 2 Days Ago")}
	h.board.postings["intel"] = []domain.Posting{intern("/job/1", "Posted 2 Days Ago")}

	c := h.coordinator(t)
	c.opts.NamespaceIDs = true
	_, err := c.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"nvidia:/job/1": "2026-10-19",
		"intel:/job/1":  "2026-10-19",
	}, h.seenFile(t))
}

// flakyStore fails Save a given number of times and forgets what it was given.
type flakyStore struct {
	saveFails int
	loadErr   error
	saved     *seen.Set
}

func (f *flakyStore) Load(context.Context) (*seen.Set, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	s := seen.NewSet()
	s.Merge(f.saved)
	return s, nil
}

func (f *flakyStore) Save(_ context.Context, s *seen.Set) error {
	if f.saveFails > 0 {
		f.saveFails--
		return errors.New("disk full")
	}
	f.saved = seen.NewSet()
	f.saved.Merge(s)
	return nil
}

func (f *flakyStore) Close() error { return nil }

func TestPersistFailureCarriesSetIntoNextCycle(t *testing.T) {
	h := newHarness(t, "nvidia")
	h.board.postings["nvidia"] = []domain.Posting{intern("/job/5", "Posted Today")}
	store := &flakyStore{saveFails: 1}
	h.store = store
	h.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	c := h.coordinator(t)
	_, err := c.RunCycle(context.Background())
	require.Error(t, err)
	assert.True(t, c.Status().PendingPersist)

	res, err := c.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Notified)
	assert.True(t, store.saved.Has("/job/5"))
	assert.False(t, c.Status().PendingPersist)
}

func TestLoadFailureAbortsCycle(t *testing.T) {
	h := newHarness(t, "nvidia")
	h.store = &flakyStore{loadErr: errors.New("permission denied")}

	c := h.coordinator(t)
	_, err := c.RunCycle(context.Background())
	require.ErrorContains(t, err, "load seen")
	assert.Zero(t, h.board.fetches["nvidia"])

	st := c.Status()
	assert.Equal(t, StateIdle, st.State)
	assert.False(t, st.Running)
	assert.Contains(t, st.LastError, "permission denied")
}
