package catalog

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrRecordNotFound is returned by Update for an unknown name
var ErrRecordNotFound = errors.New("record not found")

// Journal persists records outside the process
type Journal interface {
	Save(r Record) error
	Load() ([]Record, error)
}

// RecordStore is the process-wide record catalog. Every mutation is atomic per
// key and published to subscribers in the order it was applied.
type RecordStore struct {
	mu      sync.RWMutex
	records map[string]*Record
	journal Journal
	logger  zerolog.Logger

	subMu  sync.Mutex
	subs   map[int]chan Record
	nextID int

	now func() time.Time
}

// NewRecordStore creates an empty store. journal may be nil.
func NewRecordStore(journal Journal, logger zerolog.Logger) *RecordStore {
	return &RecordStore{
		records: make(map[string]*Record),
		journal: journal,
		logger:  logger,
		subs:    make(map[int]chan Record),
		now:     time.Now,
	}
}

// Restore loads previously journaled records
func (s *RecordStore) Restore() (int, error) {
	if s.journal == nil {
		return 0, nil
	}
	records, err := s.journal.Load()
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		rec := r
		s.records[rec.Name] = &rec
	}
	return len(records), nil
}

// Upsert inserts the record or replaces the one with the same name
func (s *RecordStore) Upsert(r Record) Record {
	s.mu.Lock()
	now := s.now()
	if existing, ok := s.records[r.Name]; ok && r.CreatedAt.IsZero() {
		r.CreatedAt = existing.CreatedAt
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	stored := r
	s.records[r.Name] = &stored
	s.persist(stored)
	s.publish(stored)
	s.mu.Unlock()

	return stored
}

// Update applies fn to the named record under the store lock
func (s *RecordStore) Update(name string, fn func(r *Record)) (Record, error) {
	s.mu.Lock()
	existing, ok := s.records[name]
	if !ok {
		s.mu.Unlock()
		return Record{}, ErrRecordNotFound
	}
	updated := *existing
	fn(&updated)
	updated.Name = name
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = s.now()
	s.records[name] = &updated
	s.persist(updated)
	s.publish(updated)
	s.mu.Unlock()

	return updated, nil
}

// Get returns a copy of the named record
func (s *RecordStore) Get(name string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[name]
	if !ok {
		return Record{}, false
	}
	return *r, true
}

// List returns every record, newest first
func (s *RecordStore) List() []Record {
	s.mu.RLock()
	out := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, *r)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Name < out[j].Name
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Subscribe returns a feed of record changes and a function to stop it. A
// subscriber that falls behind by more than buffer changes misses updates.
func (s *RecordStore) Subscribe(buffer int) (<-chan Record, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Record, buffer)

	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
			close(ch)
		})
	}
}

// publish never blocks; it is called with s.mu held
func (s *RecordStore) publish(r Record) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- r:
		default:
			s.logger.Warn().Str("record", r.Name).Msg("Record subscriber is behind, dropping update")
		}
	}
}

// persist must be called with s.mu held so journal writes follow apply order
func (s *RecordStore) persist(r Record) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Save(r); err != nil {
		s.logger.Error().Err(err).Str("record", r.Name).Msg("Failed to journal record")
	}
}
