package result

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/access"
	"github.com/darasahq/darasa/core/school"
	"github.com/darasahq/darasa/core/user"
)

var (
	// errors
	ErrStudentNotFound = errors.New("student not found")
	ErrNotAStudent     = errors.New("results can only be sent to students")
)

// Service wraps the `results` collection. Only admins write to it; each
// student reads their own slice.
type Service struct {
	store  core.DocumentStore
	usrSvc *user.Service
	mail   core.EmailService
}

func NewService(store core.DocumentStore, usrSvc *user.Service, mail core.EmailService) *Service {
	return &Service{store: store, usrSvc: usrSvc, mail: mail}
}

// Send records a result for a student and notifies them by email. The class
// is denormalized from the student's profile at send time.
func (svc *Service) Send(ctx context.Context, actor user.User, nr NewResult) (Result, error) {
	if !access.CanSendResult(actor) {
		return Result{}, core.ErrPermissionDenied
	}

	student, err := svc.usrSvc.GetByUID(ctx, nr.StudentID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return Result{}, ErrStudentNotFound
		}
		return Result{}, errors.Wrap(err, "fetching student")
	}
	if !student.IsStudent() {
		return Result{}, core.NewValidationError(ErrNotAStudent,
			core.FieldError{Field: "student_id", Error: ErrNotAStudent.Error()})
	}

	id, err := svc.store.Add(ctx, core.ResultsCollection, core.Fields{
		"studentId": student.UID,
		"classId":   student.ClassID,
		"subjectId": nr.SubjectID,
		"marks":     nr.Marks,
		"grade":     nr.Grade,
		"comments":  nr.Comments,
		"sentBy":    actor.UID,
		"sentAt":    core.ServerTimestamp,
	})
	if err != nil {
		return Result{}, errors.Wrap(err, "adding result document")
	}
	doc, err := svc.store.GetByID(ctx, core.ResultsCollection, id)
	if err != nil {
		return Result{}, errors.Wrap(err, "re-fetching created result")
	}
	res := FromDoc(doc)
	svc.notifyStudent(student, res)
	return res, nil
}

// ForStudent returns the actor's own results, most recent first.
func (svc *Service) ForStudent(ctx context.Context, actor user.User) ([]Result, error) {
	if !actor.IsStudent() {
		return nil, core.ErrPermissionDenied
	}
	docs, err := svc.store.QueryOnce(ctx, core.ResultsCollection,
		[]core.Filter{core.Eq("studentId", actor.UID)},
		core.Ordering{Field: "sentAt", Ascending: false})
	if err != nil {
		return nil, errors.Wrap(err, "querying results")
	}
	return FromDocs(docs), nil
}

// WatchForStudent opens a live feed of the actor's own results. The caller
// must Unsubscribe on every exit path.
func (svc *Service) WatchForStudent(ctx context.Context, actor user.User) (*Feed, error) {
	if !actor.IsStudent() {
		return nil, core.ErrPermissionDenied
	}
	sub, err := svc.store.Subscribe(ctx, core.ResultsCollection,
		[]core.Filter{core.Eq("studentId", actor.UID)},
		core.Ordering{Field: "sentAt", Ascending: false})
	if err != nil {
		return nil, errors.Wrap(err, "subscribing to results")
	}
	return newFeed(sub), nil
}

func (svc *Service) notifyStudent(student user.User, res Result) {
	if svc.mail == nil || student.Email == "" {
		return
	}
	subjectName := school.SubjectName(res.SubjectID)
	svc.mail.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: student.Username, Address: student.Email}},
		Subject: "New result published: " + subjectName,
		Body: fmt.Sprintf(
			"Hi %s,\n\nA new result has been published for %s. You can now sign in to view your marks.\n",
			student.Username, subjectName,
		),
	})
}

// Feed is a domain-typed live view over a store subscription.
type Feed struct {
	C   <-chan []Result
	sub *core.Subscription
}

func newFeed(sub *core.Subscription) *Feed {
	c := make(chan []Result, 1)
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
