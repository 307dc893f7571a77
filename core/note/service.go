package note

import (
	"context"

	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/access"
	"github.com/darasahq/darasa/core/user"
)

var (
	// errors
	ErrNotFound           = errors.New("note not found")
	ErrSubjectNotAssigned = errors.New("subject not assigned to you")
)

// Service wraps the `notes` collection with role-scoped reads and
// ownership-gated mutations.
type Service struct {
	store core.DocumentStore
}

func NewService(store core.DocumentStore) *Service {
	return &Service{store: store}
}

func (svc *Service) Create(ctx context.Context, actor user.User, nn NewNote) (Note, error) {
	if !access.CanCreateNote(actor) {
		return Note{}, core.ErrPermissionDenied
	}
	// teachers may only publish under subjects assigned to them
	if actor.IsTeacher() && !actorHasSubject(actor, nn.SubjectID) {
		return Note{}, core.NewValidationError(ErrSubjectNotAssigned,
			core.FieldError{Field: "subject_id", Error: ErrSubjectNotAssigned.Error()})
	}

	id, err := svc.store.Add(ctx, core.NotesCollection, core.Fields{
		"title":     nn.Title,
		"content":   nn.Content,
		"classId":   nn.ClassID,
		"subjectId": nn.SubjectID,
		"createdBy": actor.UID,
		"createdAt": core.ServerTimestamp,
	})
	if err != nil {
		return Note{}, errors.Wrap(err, "adding note document")
	}

	doc, err := svc.store.GetByID(ctx, core.NotesCollection, id)
	if err != nil {
		return Note{}, errors.Wrap(err, "re-fetching created note")
	}
	return FromDoc(doc), nil
}

// ListFor returns the notes `actor` may see, newest first.
func (svc *Service) ListFor(ctx context.Context, actor user.User) ([]Note, error) {
	filters, ok := access.ContentFilters(actor)
	if !ok {
		return []Note{}, nil
	}
	docs, err := svc.store.QueryOnce(ctx, core.NotesCollection, filters,
		core.Ordering{Field: "createdAt", Ascending: false})
	if err != nil {
		return nil, errors.Wrap(err, "querying notes")
	}
	return FromDocs(docs), nil
}

// WatchFor opens a live feed of the notes `actor` may see. The caller owns
// the feed and must call Unsubscribe on every exit path.
func (svc *Service) WatchFor(ctx context.Context, actor user.User) (*Feed, error) {
	filters, ok := access.ContentFilters(actor)
	if !ok {
		return emptyFeed(), nil
	}
	sub, err := svc.store.Subscribe(ctx, core.NotesCollection, filters,
		core.Ordering{Field: "createdAt", Ascending: false})
	if err != nil {
		return nil, errors.Wrap(err, "subscribing to notes")
	}
	return newFeed(sub), nil
}

func (svc *Service) Delete(ctx context.Context, actor user.User, id string) error {
	doc, err := svc.store.GetByID(ctx, core.NotesCollection, id)
	if err != nil {
		if errors.Cause(err) == core.ErrDocNotFound {
			return ErrNotFound
		}
		return errors.Wrap(err, "fetching note")
	}
	if !access.CanMutate(actor, doc.Str("createdBy")) {
		return core.ErrPermissionDenied
	}
	return errors.Wrap(svc.store.DeleteByID(ctx, core.NotesCollection, id), "deleting note")
}

func actorHasSubject(actor user.User, subjectID string) bool {
	for _, id := range actor.SubjectIDs {
		if id == subjectID {
			return true
		}
	}
	return false
}

// Feed is a domain-typed live view over a store subscription.
type Feed struct {
	C   <-chan []Note
	sub *core.Subscription
}

func newFeed(sub *core.Subscription) *Feed {
	c := make(chan []Note, 1)
	go func() {
		defer close(c)
		for docs := range sub.C {
			// conflate: the pump is the sole sender, so an abandoned
			// feed never blocks it and teardown always completes
			select {
			case <-c:
			default:
			}
			c <- FromDocs(docs)
		}
	}()
	return &Feed{C: c, sub: sub}
}

// emptyFeed delivers a single empty snapshot; the user can see nothing and
// no store query is issued at all.
func emptyFeed() *Feed {
	c := make(chan []Note, 1)
	c <- []Note{}
	close(c)
	return &Feed{C: c}
}

func (f *Feed) Unsubscribe() {
	if f.sub != nil {
		f.sub.Unsubscribe()
	}
}
