package exam

import (
	"context"

	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/access"
	"github.com/darasahq/darasa/core/user"
)

var (
	// errors
	ErrNotFound           = errors.New("test not found")
	ErrAttemptNotFound    = errors.New("attempt not found")
	ErrAlreadyAttempted   = errors.New("test already attempted")
	ErrSubjectNotAssigned = errors.New("subject not assigned to you")
)

// Service wraps the `tests` and `examAttempts` collections: authoring,
// role-scoped listing, exam sitting and grading.
type Service struct {
	store  core.DocumentStore
	usrSvc *user.Service
}

func NewService(store core.DocumentStore, usrSvc *user.Service) *Service {
	return &Service{store: store, usrSvc: usrSvc}
}

func (svc *Service) Create(ctx context.Context, actor user.User, nt NewTest) (Test, error) {
	if !access.CanCreateTest(actor) {
		return Test{}, core.ErrPermissionDenied
	}
	if actor.IsTeacher() && !actorHasSubject(actor, nt.SubjectID) {
		return Test{}, core.NewValidationError(ErrSubjectNotAssigned,
			core.FieldError{Field: "subject_id", Error: ErrSubjectNotAssigned.Error()})
	}

	t := Test{
		Name:        nt.Name,
		Description: nt.Description,
		ClassID:     nt.ClassID,
		SubjectID:   nt.SubjectID,
		Questions:   nt.build(),
		Deadline:    nt.deadlineTime(),
	}
	fields := core.Fields{
		"name":        t.Name,
		"description": t.Description,
		"classId":     t.ClassID,
		"subjectId":   t.SubjectID,
		"questions":   t.questionFields(),
		"createdBy":   actor.UID,
		"createdAt":   core.ServerTimestamp,
	}
	if !t.Deadline.IsZero() {
		fields["deadline"] = t.Deadline
	}

	id, err := svc.store.Add(ctx, core.TestsCollection, fields)
	if err != nil {
		return Test{}, errors.Wrap(err, "adding test document")
	}
	doc, err := svc.store.GetByID(ctx, core.TestsCollection, id)
	if err != nil {
		return Test{}, errors.Wrap(err, "re-fetching created test")
	}
	return FromDoc(doc), nil
}

// ListFor returns the tests `actor` may see, newest first. Students get the
// answer key stripped by the API layer via StudentView.
func (svc *Service) ListFor(ctx context.Context, actor user.User) ([]Test, error) {
	filters, ok := access.ContentFilters(actor)
	if !ok {
		return []Test{}, nil
	}
	docs, err := svc.store.QueryOnce(ctx, core.TestsCollection, filters,
		core.Ordering{Field: "createdAt", Ascending: false})
	if err != nil {
		return nil, errors.Wrap(err, "querying tests")
	}
	return FromDocs(docs), nil
}

// WatchFor opens a live feed of the tests `actor` may see. The caller must
// Unsubscribe on every exit path.
func (svc *Service) WatchFor(ctx context.Context, actor user.User) (*Feed, error) {
	filters, ok := access.ContentFilters(actor)
	if !ok {
		return emptyFeed(), nil
	}
	sub, err := svc.store.Subscribe(ctx, core.TestsCollection, filters,
		core.Ordering{Field: "createdAt", Ascending: false})
	if err != nil {
		return nil, errors.Wrap(err, "subscribing to tests")
	}
	return newFeed(sub), nil
}

// GetVisible fetches one test if `actor` may see it; anything else is
// reported as not found, the test's existence is not revealed.
func (svc *Service) GetVisible(ctx context.Context, actor user.User, id string) (Test, error) {
	doc, err := svc.store.GetByID(ctx, core.TestsCollection, id)
	if err != nil {
		if errors.Cause(err) == core.ErrDocNotFound {
			return Test{}, ErrNotFound
		}
		return Test{}, errors.Wrap(err, "fetching test")
	}
	t := FromDoc(doc)
	if !access.Visible(actor, t) {
		return Test{}, ErrNotFound
	}
	return t, nil
}

func (svc *Service) Delete(ctx context.Context, actor user.User, id string) error {
	doc, err := svc.store.GetByID(ctx, core.TestsCollection, id)
	if err != nil {
		if errors.Cause(err) == core.ErrDocNotFound {
			return ErrNotFound
		}
		return errors.Wrap(err, "fetching test")
	}
	if !access.CanMutate(actor, doc.Str("createdBy")) {
		return core.ErrPermissionDenied
	}
	return errors.Wrap(svc.store.DeleteByID(ctx, core.TestsCollection, id), "deleting test")
}

// Submit grades `answers` against the test and persists the attempt. One
// attempt per (test, student): a second submission is rejected. Partial
// answer sheets are accepted; unanswered questions grade as wrong.
func (svc *Service) Submit(ctx context.Context, actor user.User, testID string, answers AnswerSheet) (Attempt, error) {
	if !access.CanTakeTest(actor) {
		return Attempt{}, core.ErrPermissionDenied
	}
	t, err := svc.GetVisible(ctx, actor, testID)
	if err != nil {
		return Attempt{}, err
	}

	prior, err := svc.store.QueryOnce(ctx, core.ExamAttemptsCollection, []core.Filter{
		core.Eq("testId", testID),
		core.Eq("studentId", actor.UID),
	})
	if err != nil {
		return Attempt{}, errors.Wrap(err, "checking prior attempts")
	}
	if len(prior) > 0 {
		return Attempt{}, ErrAlreadyAttempted
	}

	res := Grade(t, answers)
	answerFields := make([]core.Fields, 0, len(res.PerQuestion))
	for _, qr := range res.PerQuestion {
		answerFields = append(answerFields, core.Fields{
			"questionId":          qr.QuestionID,
			"selectedAnswerIndex": qr.SelectedAnswerIndex,
		})
	}

	id, err := svc.store.Add(ctx, core.ExamAttemptsCollection, core.Fields{
		"testId":         testID,
		"studentId":      actor.UID,
		"answers":        answerFields,
		"score":          res.Score,
		"totalQuestions": res.TotalQuestions,
		"classId":        t.ClassID,
		"subjectId":      t.SubjectID,
		"submittedAt":    core.ServerTimestamp,
	})
	if err != nil {
		return Attempt{}, errors.Wrap(err, "adding attempt document")
	}
	doc, err := svc.store.GetByID(ctx, core.ExamAttemptsCollection, id)
	if err != nil {
		return Attempt{}, errors.Wrap(err, "re-fetching created attempt")
	}
	return AttemptFromDoc(doc), nil
}

// MyAttempt returns the student's attempt for a test. Should duplicates ever
// exist in the store, the latest submission wins.
func (svc *Service) MyAttempt(ctx context.Context, actor user.User, testID string) (Attempt, error) {
	docs, err := svc.store.QueryOnce(ctx, core.ExamAttemptsCollection, []core.Filter{
		core.Eq("testId", testID),
		core.Eq("studentId", actor.UID),
	}, core.Ordering{Field: "submittedAt", Ascending: false})
	if err != nil {
		return Attempt{}, errors.Wrap(err, "querying attempts")
	}
	if len(docs) == 0 {
		return Attempt{}, ErrAttemptNotFound
	}
	return AttemptFromDoc(docs[0]), nil
}

// AttemptReport is an Attempt joined with the student's identity, for the
// teacher/admin report screen.
type AttemptReport struct {
	Attempt
	StudentName  string `json:"student_name"`
	StudentEmail string `json:"student_email,omitempty"`
}

// AttemptsForTest lists all attempts for a test the actor may see, with
// student names resolved. Students never see other students' attempts.
func (svc *Service) AttemptsForTest(ctx context.Context, actor user.User, testID string) ([]AttemptReport, error) {
	if !(actor.IsTeacher() || actor.IsAdmin()) {
		return nil, core.ErrPermissionDenied
	}
	if _, err := svc.GetVisible(ctx, actor, testID); err != nil {
		return nil, err
	}

	docs, err := svc.store.QueryOnce(ctx, core.ExamAttemptsCollection,
		[]core.Filter{core.Eq("testId", testID)},
		core.Ordering{Field: "submittedAt", Ascending: false})
	if err != nil {
		return nil, errors.Wrap(err, "querying attempts")
	}

	reports := make([]AttemptReport, 0, len(docs))
	for _, doc := range docs {
		report := AttemptReport{Attempt: AttemptFromDoc(doc), StudentName: "Unknown Student"}
		if usr, err := svc.usrSvc.GetByUID(ctx, report.StudentID); err == nil {
			report.StudentName = usr.Username
			report.StudentEmail = usr.Email
		}
		reports = append(reports, report)
	}
	return reports, nil
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
	C   <-chan []Test
	sub *core.Subscription
}

func newFeed(sub *core.Subscription) *Feed {
	c := make(chan []Test, 1)
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

func emptyFeed() *Feed {
	c := make(chan []Test, 1)
	c <- []Test{}
	close(c)
	return &Feed{C: c}
}

func (f *Feed) Unsubscribe() {
	if f.sub != nil {
		f.sub.Unsubscribe()
	}
}
