package core

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Collections persisted in the document store.
const (
	UsersCollection         = "users"
	NotesCollection         = "notes"
	TestsCollection         = "tests"
	ExamAttemptsCollection  = "examAttempts"
	ResultsCollection       = "results"
	AnnouncementsCollection = "announcements"
)

var ErrDocNotFound = errors.New("document not found")

type FilterOp string

const (
	FilterEq FilterOp = "=="
	FilterIn FilterOp = "in"
)

// Filter is an equality or membership predicate on a document field.
// These are the only predicate shapes the store supports; no ranges,
// no full-text search.
type Filter struct {
	Field string
	Op    FilterOp
	Value interface{}
}

func Eq(field string, value interface{}) Filter {
	return Filter{Field: field, Op: FilterEq, Value: value}
}

func In(field string, values []string) Filter {
	return Filter{Field: field, Op: FilterIn, Value: values}
}

type Ordering struct {
	Field     string
	Ascending bool
}

// Fields is the flat JSON-like shape stored per document. Nesting is limited
// to arrays of flat objects (test questions, attempt answers).
type Fields map[string]interface{}

type serverTimestamp struct{}

// ServerTimestamp marks a Fields entry to be replaced by the store's own
// server-assigned timestamp on Add.
var ServerTimestamp = serverTimestamp{}

type Document struct {
	ID   string
	Data Fields
}

// Field accessors are total: a missing or mistyped field yields the zero
// value, never an error. Domain snapshots degrade instead of failing.

func (d Document) Str(key string) string {
	s, _ := d.Data[key].(string)
	return s
}

func (d Document) Int(key string) int {
	switch v := d.Data[key].(type) {
	case int:
		return v
	case int64: // firestore integers decode as int64
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func (d Document) Float(key string) float64 {
	switch v := d.Data[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

func (d Document) Time(key string) time.Time {
	t, _ := d.Data[key].(time.Time)
	return t
}

func (d Document) StrSlice(key string) []string {
	switch v := d.Data[key].(type) {
	case []string:
		return v
	case []interface{}:
		ss := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				ss = append(ss, s)
			}
		}
		return ss
	}
	return nil
}

func (d Document) FieldsSlice(key string) []Fields {
	switch v := d.Data[key].(type) {
	case []Fields:
		return v
	case []map[string]interface{}:
		fs := make([]Fields, 0, len(v))
		for _, item := range v {
			fs = append(fs, item)
		}
		return fs
	case []interface{}:
		fs := make([]Fields, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]interface{}); ok {
				fs = append(fs, m)
			}
		}
		return fs
	}
	return nil
}

// Subscription is a live feed of document-set snapshots for one query.
// The owner must call Unsubscribe when done on every exit path; a dangling
// subscription keeps its callback goroutine firing against a detached consumer.
type Subscription struct {
	C    <-chan []Document
	stop func()
	once sync.Once
}

func NewSubscription(c <-chan []Document, stop func()) *Subscription {
	return &Subscription{C: c, stop: stop}
}

func (s *Subscription) Unsubscribe() {
	s.once.Do(s.stop)
}

// DocumentStore is the boundary to the external document database. All
// persistence, querying and change notification is delegated to it; the
// domain layer only holds transient snapshots reconstructed per event.
type DocumentStore interface {
	// QueryOnce returns a single snapshot of the documents matching all filters.
	QueryOnce(ctx context.Context, collection string, filters []Filter, orderings ...Ordering) ([]Document, error)

	// GetByID returns one document or ErrDocNotFound.
	GetByID(ctx context.Context, collection, id string) (Document, error)

	// Add persists a new document and returns its server-assigned id.
	Add(ctx context.Context, collection string, fields Fields) (string, error)

	DeleteByID(ctx context.Context, collection, id string) error

	// Subscribe delivers a snapshot on every underlying change until the
	// subscription is torn down. Snapshots of distinct subscriptions are
	// independent streams with no cross-ordering guarantee.
	Subscribe(ctx context.Context, collection string, filters []Filter, orderings ...Ordering) (*Subscription, error)

	Close() error
}
