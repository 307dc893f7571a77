package announcement

import (
	"context"

	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/access"
	"github.com/darasahq/darasa/core/user"
)

var ErrNotFound = errors.New("announcement not found")

// Service wraps the `announcements` collection. Admins write, everyone
// signed in reads.
type Service struct {
	store core.DocumentStore
}

func NewService(store core.DocumentStore) *Service {
	return &Service{store: store}
}

func (svc *Service) Create(ctx context.Context, actor user.User, na NewAnnouncement) (Announcement, error) {
	if !access.CanCreateAnnouncement(actor) {
		return Announcement{}, core.ErrPermissionDenied
	}

	id, err := svc.store.Add(ctx, core.AnnouncementsCollection, core.Fields{
		"title":     na.Title,
		"content":   na.Content,
		"createdBy": actor.UID,
		"createdAt": core.ServerTimestamp,
	})
	if err != nil {
		return Announcement{}, errors.Wrap(err, "adding announcement document")
	}
	doc, err := svc.store.GetByID(ctx, core.AnnouncementsCollection, id)
	if err != nil {
		return Announcement{}, errors.Wrap(err, "re-fetching created announcement")
	}
	return FromDoc(doc), nil
}

// List returns all announcements, newest first.
func (svc *Service) List(ctx context.Context) ([]Announcement, error) {
	docs, err := svc.store.QueryOnce(ctx, core.AnnouncementsCollection, nil,
		core.Ordering{Field: "createdAt", Ascending: false})
	if err != nil {
		return nil, errors.Wrap(err, "querying announcements")
	}
	return FromDocs(docs), nil
}

// Watch opens a live feed of all announcements. The caller must Unsubscribe
// on every exit path.
func (svc *Service) Watch(ctx context.Context) (*Feed, error) {
	sub, err := svc.store.Subscribe(ctx, core.AnnouncementsCollection, nil,
		core.Ordering{Field: "createdAt", Ascending: false})
	if err != nil {
		return nil, errors.Wrap(err, "subscribing to announcements")
	}
	return newFeed(sub), nil
}

func (svc *Service) Delete(ctx context.Context, actor user.User, id string) error {
	if !actor.IsAdmin() {
		return core.ErrPermissionDenied
	}
	if _, err := svc.store.GetByID(ctx, core.AnnouncementsCollection, id); err != nil {
		if errors.Cause(err) == core.ErrDocNotFound {
			return ErrNotFound
		}
		return errors.Wrap(err, "fetching announcement")
	}
	return errors.Wrap(svc.store.DeleteByID(ctx, core.AnnouncementsCollection, id), "deleting announcement")
}

// Feed is a domain-typed live view over a store subscription.
type Feed struct {
	C   <-chan []Announcement
	sub *core.Subscription
}

func newFeed(sub *core.Subscription) *Feed {
	c := make(chan []Announcement, 1)
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

func (f *Feed) Unsubscribe() {
	if f.sub != nil {
		f.sub.Unsubscribe()
	}
}
