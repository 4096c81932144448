package review

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/procdoc/internal/store"
	"github.com/rendis/procdoc/internal/streaming"
)

// mockReviewStore satisfies store.Store for scheduler tests.
type mockReviewStore struct {
	store.Store
	mu       sync.Mutex
	docs     map[string]*store.Document
	activity []*store.Activity
}

func newMockReviewStore() *mockReviewStore {
	return &mockReviewStore{docs: make(map[string]*store.Document)}
}

func (m *mockReviewStore) add(doc *store.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *doc
	m.docs[doc.ID] = &cp
}

func (m *mockReviewStore) get(id string) *store.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.docs[id]
	return &cp
}

func (m *mockReviewStore) ListDueReviews(_ context.Context, before time.Time) ([]*store.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*store.Document
	for _, d := range m.docs {
		if d.NextReviewAt != nil && !d.NextReviewAt.After(before) {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockReviewStore) UpdateDocument(_ context.Context, _, id string, update store.DocumentUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.docs[id]
	if update.ClearReview {
		d.NextReviewAt = nil
	}
	if update.NextReviewAt != nil {
		next := *update.NextReviewAt
		d.NextReviewAt = &next
	}
	if update.ReviewCron != nil {
		d.ReviewCron = *update.ReviewCron
	}
	return nil
}

func (m *mockReviewStore) AppendActivity(_ context.Context, a *store.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.Sequence = int64(len(m.activity) + 1)
	m.activity = append(m.activity, a)
	return nil
}

func (m *mockReviewStore) activityCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.activity)
}

func newTestScheduler(s store.Store, hub streaming.EventHub) *Scheduler {
	return NewScheduler(s, hub, slog.Default(), time.Hour)
}

func dueDoc(id string, at time.Time) *store.Document {
	return &store.Document{
		ID:           id,
		TenantID:     "t1",
		Name:         "Onboarding",
		ReviewCron:   "0 9 1 * *",
		NextReviewAt: &at,
	}
}

// --- Tests ---

func TestCalculateNextRun(t *testing.T) {
	sched := newTestScheduler(newMockReviewStore(), nil)
	from := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

	next, err := sched.CalculateNextRun("0 9 1 * *", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), next)

	next, err = sched.CalculateNextRun("0 0 * * 1", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC), next)

	_, err = sched.CalculateNextRun("every month", from)
	require.Error(t, err)
}

func TestTickMarksDueDocuments(t *testing.T) {
	ms := newMockReviewStore()
	hub := streaming.NewMemoryHub()
	sched := newTestScheduler(ms, hub)
	ctx := context.Background()

	events, cancel, err := hub.Subscribe(ctx, streaming.EventFilter{TenantID: "t1"})
	require.NoError(t, err)
	defer cancel()

	ms.add(dueDoc("doc-1", time.Now().UTC().Add(-time.Hour)))
	ms.add(dueDoc("doc-later", time.Now().UTC().Add(time.Hour)))

	assert.Equal(t, 1, sched.tick(ctx))
	assert.Equal(t, 1, ms.activityCount())
	assert.Equal(t, store.ActivityReviewDue, ms.activity[0].Type)
	assert.Equal(t, "doc-1", ms.activity[0].DocumentID)

	got := ms.get("doc-1")
	require.NotNil(t, got.NextReviewAt)
	assert.True(t, got.NextReviewAt.After(time.Now().UTC()))

	select {
	case evt := <-events:
		assert.Equal(t, store.ActivityReviewDue, evt.EventType)
		assert.Equal(t, "doc-1", evt.DocumentID)
	case <-time.After(time.Second):
		t.Fatal("no review event published")
	}

	// Already advanced: a second tick does nothing.
	assert.Equal(t, 0, sched.tick(ctx))
}

func TestTickClearsInvalidSchedule(t *testing.T) {
	ms := newMockReviewStore()
	sched := newTestScheduler(ms, nil)

	doc := dueDoc("doc-bad", time.Now().UTC().Add(-time.Minute))
	doc.ReviewCron = "not a cron"
	ms.add(doc)

	sched.tick(context.Background())
	assert.Nil(t, ms.get("doc-bad").NextReviewAt)
	assert.Equal(t, 0, ms.activityCount())
}

func TestDedupPreventsDoubleProcessing(t *testing.T) {
	ms := newMockReviewStore()
	sched := newTestScheduler(ms, nil)
	ctx := context.Background()
	ms.add(dueDoc("doc-1", time.Now().UTC().Add(-time.Hour)))

	require.True(t, sched.tryAcquire("doc-1"))
	assert.Equal(t, 0, sched.tick(ctx))

	sched.releaseDocument("doc-1")
	assert.Equal(t, 1, sched.tick(ctx))
}

func TestRecoverMissed(t *testing.T) {
	ms := newMockReviewStore()
	sched := newTestScheduler(ms, nil)
	ms.add(dueDoc("doc-a", time.Now().UTC().Add(-48*time.Hour)))
	ms.add(dueDoc("doc-b", time.Now().UTC().Add(-time.Minute)))

	require.NoError(t, sched.RecoverMissed(context.Background()))
	assert.Equal(t, 2, ms.activityCount())
}

func TestPlan(t *testing.T) {
	sched := newTestScheduler(newMockReviewStore(), nil)
	fixed := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	sched.now = func() time.Time { return fixed }

	update, err := sched.Plan("0 9 1 * *")
	require.NoError(t, err)
	require.NotNil(t, update.NextReviewAt)
	assert.Equal(t, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), *update.NextReviewAt)
	assert.Equal(t, "0 9 1 * *", *update.ReviewCron)

	update, err = sched.Plan("")
	require.NoError(t, err)
	assert.True(t, update.ClearReview)

	_, err = sched.Plan("61 * * * *")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "review_cron")
}

func TestStartStop(t *testing.T) {
	sched := newTestScheduler(newMockReviewStore(), nil)
	ctx := context.Background()

	require.NoError(t, sched.Start(ctx))
	err := sched.Start(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already started")

	require.NoError(t, sched.Stop())
	require.NoError(t, sched.Stop())
}
