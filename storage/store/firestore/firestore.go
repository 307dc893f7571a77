// Package firestore adapts Google Cloud Firestore to the DocumentStore
// gateway. Integer fields come back as int64 and timestamps as time.Time;
// the Document accessors normalize both.
package firestore

import (
	"context"

	fs "cloud.google.com/go/firestore"
	"github.com/pkg/errors"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/darasahq/darasa/core"
)

type Store struct {
	client *fs.Client
}

var _ core.DocumentStore = (*Store)(nil)

func New(ctx context.Context, conf *core.Config) (*Store, error) {
	var opts []option.ClientOption
	if conf.Store.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(conf.Store.CredentialsFile))
	}
	client, err := fs.NewClient(ctx, conf.Store.ProjectID, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "creating firestore client")
	}
	return &Store{client: client}, nil
}

func (s *Store) QueryOnce(ctx context.Context, collection string, filters []core.Filter, orderings ...core.Ordering) ([]core.Document, error) {
	iter := s.buildQuery(collection, filters, orderings).Documents(ctx)
	defer iter.Stop()

	docs := make([]core.Document, 0)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "iterating query results")
		}
		docs = append(docs, docFromSnap(snap))
	}
	return docs, nil
}

func (s *Store) GetByID(ctx context.Context, collection, id string) (core.Document, error) {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return core.Document{}, core.ErrDocNotFound
		}
		return core.Document{}, errors.Wrap(err, "fetching document")
	}
	return docFromSnap(snap), nil
}

func (s *Store) Add(ctx context.Context, collection string, fields core.Fields) (string, error) {
	ref, _, err := s.client.Collection(collection).Add(ctx, translateFields(fields))
	if err != nil {
		return "", errors.Wrap(err, "adding document")
	}
	return ref.ID, nil
}

func (s *Store) DeleteByID(ctx context.Context, collection, id string) error {
	_, err := s.client.Collection(collection).Doc(id).Delete(ctx)
	return errors.Wrap(err, "deleting document")
}

func (s *Store) Subscribe(ctx context.Context, collection string, filters []core.Filter, orderings ...core.Ordering) (*core.Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	snaps := s.buildQuery(collection, filters, orderings).Snapshots(ctx)

	c := make(chan []core.Document, 1)
	go func() {
		defer close(c)
		defer snaps.Stop()
		for {
			qs, err := snaps.Next()
			if err != nil { // canceled or stream failure
				return
			}
			docs := make([]core.Document, 0, qs.Size)
			for {
				snap, err := qs.Documents.Next()
				if err == iterator.Done {
					break
				}
				if err != nil {
					return
				}
				docs = append(docs, docFromSnap(snap))
			}
			// conflate: a slow consumer only ever sees the latest snapshot
			select {
			case <-c:
			default:
			}
			c <- docs
		}
	}()

	return core.NewSubscription(c, cancel), nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) buildQuery(collection string, filters []core.Filter, orderings []core.Ordering) fs.Query {
	q := s.client.Collection(collection).Query
	for _, f := range filters {
		q = q.Where(f.Field, string(f.Op), f.Value)
	}
	for _, o := range orderings {
		dir := fs.Desc
		if o.Ascending {
			dir = fs.Asc
		}
		q = q.OrderBy(o.Field, dir)
	}
	return q
}

func docFromSnap(snap *fs.DocumentSnapshot) core.Document {
	return core.Document{ID: snap.Ref.ID, Data: snap.Data()}
}

// translateFields swaps the gateway's server-timestamp sentinel for the
// Firestore one; everything else passes through unchanged.
func translateFields(fields core.Fields) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		switch vv := v.(type) {
		case []core.Fields:
			nested := make([]map[string]interface{}, 0, len(vv))
			for _, f := range vv {
				nested = append(nested, translateFields(f))
			}
			out[k] = nested
		default:
			if v == core.ServerTimestamp {
				out[k] = fs.ServerTimestamp
				continue
			}
			out[k] = vv
		}
	}
	return out
}
