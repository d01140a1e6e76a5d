package workflow

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate idempotency key")
)

// Repository is the record store the engine runs on. It is the only
// component that performs I/O.
type Repository interface {
	QueryByEntity(ctx context.Context, entityID, subjectPrefix string) ([]Record, error)
	CreateOne(ctx context.Context, r Record) (Record, error)
	// CreateBatch reports success or failure per record; it is not atomic.
	CreateBatch(ctx context.Context, records []Record) []BatchItem
	QueryRecent(ctx context.Context, limit int) ([]Record, error)
}

// DescriptionRewriter is implemented by stores that can update a record's
// description in place.
type DescriptionRewriter interface {
	RewriteDescription(ctx context.Context, recordID, description string) error
}

// StatusUpdater is implemented by stores that let this service change a
// task's status, standing in for a user working the task in the CRM.
type StatusUpdater interface {
	SetStatus(ctx context.Context, recordID, status string) error
}

type MemoryStore struct {
	mu          sync.RWMutex
	records     map[string]Record
	order       []string
	keys        map[string]string
	upsertByKey bool
	now         func() time.Time
}

type MemoryOption func(*MemoryStore)

// WithUpsertByKey rejects records whose idempotency key is already stored.
func WithUpsertByKey() MemoryOption {
	return func(s *MemoryStore) { s.upsertByKey = true }
}

func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		records: map[string]Record{},
		keys:    map[string]string{},
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) QueryByEntity(_ context.Context, entityID, subjectPrefix string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, id := range s.order {
		r := s.records[id]
		if r.EntityID != entityID {
			continue
		}
		if subjectPrefix != "" && !strings.HasPrefix(r.Subject, subjectPrefix) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *MemoryStore) CreateOne(_ context.Context, r Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insert(r)
}

func (s *MemoryStore) CreateBatch(_ context.Context, records []Record) []BatchItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]BatchItem, 0, len(records))
	for _, r := range records {
		created, err := s.insert(r)
		out = append(out, BatchItem{Record: created, Err: err})
	}
	return out
}

func (s *MemoryStore) insert(r Record) (Record, error) {
	if s.upsertByKey && r.IdempotencyKey != "" {
		if _, ok := s.keys[r.IdempotencyKey]; ok {
			return r, ErrDuplicate
		}
	}
	if r.ID == "" {
		r.ID = newID("task")
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}
	s.records[r.ID] = r
	s.order = append(s.order, r.ID)
	if r.IdempotencyKey != "" {
		s.keys[r.IdempotencyKey] = r.ID
	}
	return r, nil
}

// QueryRecent returns up to limit records, newest first.
func (s *MemoryStore) QueryRecent(_ context.Context, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, len(s.records))
	for _, id := range s.order {
		out = append(out, s.records[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) RewriteDescription(_ context.Context, recordID, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[recordID]
	if !ok {
		return ErrNotFound
	}
	r.Description = description
	s.records[recordID] = r
	return nil
}

func (s *MemoryStore) SetStatus(_ context.Context, recordID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[recordID]
	if !ok {
		return ErrNotFound
	}
	r.Status = status
	s.records[recordID] = r
	return nil
}
