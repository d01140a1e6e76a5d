package workflow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(t time.Time) *testClock {
	return &testClock{now: t}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type engine struct {
	registry   *Registry
	codec      *Codec
	store      *MemoryStore
	dispatcher *Dispatcher
	recon      *Reconstructor
	clock      *testClock
}

func newEngine(t *testing.T, templates []Template, storeOpts ...MemoryOption) *engine {
	t.Helper()
	reg, err := NewRegistry(templates)
	require.NoError(t, err)
	clock := newTestClock(time.Date(2026, 2, 12, 9, 0, 0, 0, time.UTC))
	store := NewMemoryStore(append(storeOpts, WithMemoryClock(clock.Now))...)
	codec := NewCodec(reg)
	logger := zaptest.NewLogger(t)
	return &engine{
		registry:   reg,
		codec:      codec,
		store:      store,
		dispatcher: NewDispatcher(reg, codec, store, logger, WithClock(clock.Now)),
		recon:      NewReconstructor(store, reg, codec, logger, 0),
		clock:      clock,
	}
}

// flakyRepo fails creation of the listed steps until they are cleared.
type flakyRepo struct {
	*MemoryStore
	mu        sync.Mutex
	failSteps map[string]bool
}

func (f *flakyRepo) fail(stepIDs ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failSteps = map[string]bool{}
	for _, id := range stepIDs {
		f.failSteps[id] = true
	}
}

func (f *flakyRepo) CreateBatch(ctx context.Context, records []Record) []BatchItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]BatchItem, 0, len(records))
	for _, r := range records {
		stepID := r.IdempotencyKey[strings.LastIndex(r.IdempotencyKey, "/")+1:]
		if f.failSteps[stepID] {
			out = append(out, BatchItem{Record: r, Err: errors.New("crm unavailable")})
			continue
		}
		created, err := f.MemoryStore.CreateOne(ctx, r)
		out = append(out, BatchItem{Record: created, Err: err})
	}
	return out
}

// staleRepo never sees existing records, as a concurrent request that read
// before another request's writes landed.
type staleRepo struct {
	*MemoryStore
}

func (staleRepo) QueryByEntity(context.Context, string, string) ([]Record, error) {
	return nil, nil
}

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) QueryByEntity(ctx context.Context, entityID, subjectPrefix string) ([]Record, error) {
	args := m.Called(ctx, entityID, subjectPrefix)
	records, _ := args.Get(0).([]Record)
	return records, args.Error(1)
}

func (m *mockRepo) CreateOne(ctx context.Context, r Record) (Record, error) {
	args := m.Called(ctx, r)
	created, _ := args.Get(0).(Record)
	return created, args.Error(1)
}

func (m *mockRepo) CreateBatch(ctx context.Context, records []Record) []BatchItem {
	args := m.Called(ctx, records)
	items, _ := args.Get(0).([]BatchItem)
	return items
}

func (m *mockRepo) QueryRecent(ctx context.Context, limit int) ([]Record, error) {
	args := m.Called(ctx, limit)
	records, _ := args.Get(0).([]Record)
	return records, args.Error(1)
}

func templateByID(t *testing.T, id string) Template {
	t.Helper()
	for _, tmpl := range BuiltinTemplates {
		if tmpl.ID == id {
			return cloneTemplate(tmpl)
		}
	}
	t.Fatalf("no builtin template %s", id)
	return Template{}
}
