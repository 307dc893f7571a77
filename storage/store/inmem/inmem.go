// Package inmem provides an in-memory DocumentStore for development and
// tests: same query and subscription semantics as the hosted backend, no
// network, no persistence across restarts.
package inmem

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
)

var ErrStoreClosed = errors.New("store is closed")

type watcher struct {
	filters   []core.Filter
	orderings []core.Ordering
	c         chan []core.Document
}

// Store keeps every collection as an id -> fields table guarded by one
// mutex. Snapshots returned to callers are copies; mutating them does not
// touch stored state.
type Store struct {
	mu          sync.Mutex
	collections map[string]map[string]core.Fields
	watchers    map[string][]*watcher
	clock       func() time.Time
	closed      bool
}

var _ core.DocumentStore = (*Store)(nil)

func New() *Store {
	return &Store{
		collections: make(map[string]map[string]core.Fields),
		watchers:    make(map[string][]*watcher),
		clock:       time.Now,
	}
}

// NewWithClock pins the store's server timestamp source, for tests.
func NewWithClock(clock func() time.Time) *Store {
	s := New()
	s.clock = clock
	return s
}

func (s *Store) QueryOnce(ctx context.Context, collection string, filters []core.Filter, orderings ...core.Ordering) ([]core.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	return s.snapshot(collection, filters, orderings), nil
}

func (s *Store) GetByID(ctx context.Context, collection, id string) (core.Document, error) {
	if err := ctx.Err(); err != nil {
		return core.Document{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return core.Document{}, ErrStoreClosed
	}
	fields, ok := s.collections[collection][id]
	if !ok {
		return core.Document{}, core.ErrDocNotFound
	}
	return core.Document{ID: id, Data: copyFields(fields)}, nil
}

func (s *Store) Add(ctx context.Context, collection string, fields core.Fields) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrStoreClosed
	}

	stored := copyFields(fields)
	for k, v := range stored {
		if v == core.ServerTimestamp {
			stored[k] = s.clock()
		}
	}

	if s.collections[collection] == nil {
		s.collections[collection] = make(map[string]core.Fields)
	}
	id := uuid.New().String()
	s.collections[collection][id] = stored
	s.notifyLocked(collection)
	return id, nil
}

func (s *Store) DeleteByID(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	if _, ok := s.collections[collection][id]; !ok {
		return core.ErrDocNotFound
	}
	delete(s.collections[collection], id)
	s.notifyLocked(collection)
	return nil
}

func (s *Store) Subscribe(ctx context.Context, collection string, filters []core.Filter, orderings ...core.Ordering) (*core.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	w := &watcher{
		filters:   filters,
		orderings: orderings,
		c:         make(chan []core.Document, 1),
	}
	w.c <- s.snapshot(collection, filters, orderings) // initial snapshot
	s.watchers[collection] = append(s.watchers[collection], w)

	stop := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		ws := s.watchers[collection]
		for i, other := range ws {
			if other == w {
				s.watchers[collection] = append(ws[:i], ws[i+1:]...)
				close(w.c)
				return
			}
		}
	}
	return core.NewSubscription(w.c, stop), nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for _, ws := range s.watchers {
		for _, w := range ws {
			close(w.c)
		}
	}
	s.watchers = make(map[string][]*watcher)
	return nil
}

// notifyLocked pushes a fresh snapshot to every watcher of the collection.
// A slow consumer only ever sees the latest snapshot; intermediate ones are
// dropped, matching the backend's conflation behavior.
func (s *Store) notifyLocked(collection string) {
	for _, w := range s.watchers[collection] {
		snap := s.snapshot(collection, w.filters, w.orderings)
		select {
		case <-w.c:
		default:
		}
		w.c <- snap
	}
}

func (s *Store) snapshot(collection string, filters []core.Filter, orderings []core.Ordering) []core.Document {
	docs := make([]core.Document, 0)
	for id, fields := range s.collections[collection] {
		if matchesAll(fields, filters) {
			docs = append(docs, core.Document{ID: id, Data: copyFields(fields)})
		}
	}
	sortDocs(docs, orderings)
	return docs
}

func matchesAll(fields core.Fields, filters []core.Filter) bool {
	for _, f := range filters {
		if !matches(fields, f) {
			return false
		}
	}
	return true
}

func matches(fields core.Fields, f core.Filter) bool {
	v, ok := fields[f.Field]
	if !ok {
		return false
	}
	switch f.Op {
	case core.FilterEq:
		return v == f.Value
	case core.FilterIn:
		s, ok := v.(string)
		if !ok {
			return false
		}
		members, ok := f.Value.([]string)
		if !ok {
			return false
		}
		for _, m := range members {
			if m == s {
				return true
			}
		}
	}
	return false
}

// sortDocs applies orderings in sequence, later ones breaking ties, with the
// document id as the final tiebreaker so snapshots are deterministic.
func sortDocs(docs []core.Document, orderings []core.Ordering) {
	sort.SliceStable(docs, func(i, j int) bool {
		for _, o := range orderings {
			c := compare(docs[i].Data[o.Field], docs[j].Data[o.Field])
			if c == 0 {
				continue
			}
			if o.Ascending {
				return c < 0
			}
			return c > 0
		}
		return docs[i].ID < docs[j].ID
	})
}

func compare(a, b interface{}) int {
	switch av := a.(type) {
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			switch {
			case av.Before(bv):
				return -1
			case av.After(bv):
				return 1
			}
			return 0
		}
	case string:
		if bv, ok := b.(string); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case int:
		if bv, ok := toFloat(b); ok {
			return compareFloat(float64(av), bv)
		}
	case int64:
		if bv, ok := toFloat(b); ok {
			return compareFloat(float64(av), bv)
		}
	case float64:
		if bv, ok := toFloat(b); ok {
			return compareFloat(av, bv)
		}
	}
	return 0
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func copyFields(fields core.Fields) core.Fields {
	cp := make(core.Fields, len(fields))
	for k, v := range fields {
		switch vv := v.(type) {
		case []string:
			cp[k] = append([]string(nil), vv...)
		case []core.Fields:
			nested := make([]core.Fields, 0, len(vv))
			for _, f := range vv {
				nested = append(nested, copyFields(f))
			}
			cp[k] = nested
		default:
			cp[k] = v
		}
	}
	return cp
}
