package exam

import (
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/access"
	"github.com/darasahq/darasa/core/user"
)

// Question carries its own answer key; it must never be sent to a student
// sitting the exam (see Test.StudentView).
type Question struct {
	ID                 string   `json:"id"`
	QuestionText       string   `json:"question_text"`
	Options            []string `json:"options"`
	CorrectAnswerIndex int      `json:"correct_answer_index"`
}

// WellFormed reports whether the question has at least two options and a
// correct-answer index pointing into them.
func (q Question) WellFormed() bool {
	return len(q.Options) >= 2 && q.CorrectAnswerIndex >= 0 && q.CorrectAnswerIndex < len(q.Options)
}

// Test is a transient snapshot of a `tests` document. Question order is
// significant for display; scoring ignores it.
type Test struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	ClassID     string     `json:"class_id"`
	SubjectID   string     `json:"subject_id"`
	Questions   []Question `json:"questions"`
	Deadline    time.Time  `json:"deadline,omitempty"` // zero = none
	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (t Test) ContentClass() string   { return t.ClassID }
func (t Test) ContentSubject() string { return t.SubjectID }

func FromDoc(d core.Document) Test {
	t := Test{
		ID:          d.ID,
		Name:        d.Str("name"),
		Description: d.Str("description"),
		ClassID:     d.Str("classId"),
		SubjectID:   d.Str("subjectId"),
		Deadline:    d.Time("deadline"),
		CreatedBy:   d.Str("createdBy"),
		CreatedAt:   d.Time("createdAt"),
	}
	for _, qf := range d.FieldsSlice("questions") {
		qd := core.Document{Data: qf}
		t.Questions = append(t.Questions, Question{
			ID:                 qd.Str("id"),
			QuestionText:       qd.Str("questionText"),
			Options:            qd.StrSlice("options"),
			CorrectAnswerIndex: qd.Int("correctAnswerIndex"),
		})
	}
	return t
}

func FromDocs(docs []core.Document) []Test {
	tests := make([]Test, 0, len(docs))
	for _, d := range docs {
		tests = append(tests, FromDoc(d))
	}
	return tests
}

func (t Test) questionFields() []core.Fields {
	qs := make([]core.Fields, 0, len(t.Questions))
	for _, q := range t.Questions {
		qs = append(qs, core.Fields{
			"id":                 q.ID,
			"questionText":       q.QuestionText,
			"options":            q.Options,
			"correctAnswerIndex": q.CorrectAnswerIndex,
		})
	}
	return qs
}

// VisibleTo keeps the tests `u` may see; same scoping rules as notes.
func VisibleTo(u user.User, tests []Test) []Test {
	visible := make([]Test, 0, len(tests))
	for _, t := range tests {
		if access.Visible(u, t) {
			visible = append(visible, t)
		}
	}
	return visible
}

// StudentQuestion is a Question with the answer key stripped.
type StudentQuestion struct {
	ID           string   `json:"id"`
	QuestionText string   `json:"question_text"`
	Options      []string `json:"options"`
}

// StudentTest is what a student sitting the exam receives.
type StudentTest struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	ClassID     string            `json:"class_id"`
	SubjectID   string            `json:"subject_id"`
	Questions   []StudentQuestion `json:"questions"`
	Deadline    time.Time         `json:"deadline,omitempty"`
}

// StudentView strips the answer key; grading stays server-side.
func (t Test) StudentView() StudentTest {
	st := StudentTest{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		ClassID:     t.ClassID,
		SubjectID:   t.SubjectID,
		Deadline:    t.Deadline,
	}
	st.Questions = make([]StudentQuestion, 0, len(t.Questions))
	for _, q := range t.Questions {
		st.Questions = append(st.Questions, StudentQuestion{
			ID:           q.ID,
			QuestionText: q.QuestionText,
			Options:      q.Options,
		})
	}
	return st
}

// Answer is one (question, selected option) pair. SelectedAnswerIndex is -1
// for a question left unanswered.
type Answer struct {
	QuestionID          string `json:"question_id"`
	SelectedAnswerIndex int    `json:"selected_answer_index"`
}

// Attempt is an immutable historical record of one sitting: the questions
// answered and the score as graded at submission time. Later edits to the
// test do not touch it.
type Attempt struct {
	ID             string    `json:"id"`
	TestID         string    `json:"test_id"`
	StudentID      string    `json:"student_id"`
	Answers        []Answer  `json:"answers"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"total_questions"`
	ClassID        string    `json:"class_id"`   // denormalized from the test
	SubjectID      string    `json:"subject_id"` // denormalized from the test
	SubmittedAt    time.Time `json:"submitted_at"`
}

func AttemptFromDoc(d core.Document) Attempt {
	a := Attempt{
		ID:             d.ID,
		TestID:         d.Str("testId"),
		StudentID:      d.Str("studentId"),
		Score:          d.Int("score"),
		TotalQuestions: d.Int("totalQuestions"),
		ClassID:        d.Str("classId"),
		SubjectID:      d.Str("subjectId"),
		SubmittedAt:    d.Time("submittedAt"),
	}
	for _, af := range d.FieldsSlice("answers") {
		ad := core.Document{Data: af}
		a.Answers = append(a.Answers, Answer{
			QuestionID:          ad.Str("questionId"),
			SelectedAnswerIndex: ad.Int("selectedAnswerIndex"),
		})
	}
	return a
}

// AnswerSheet maps question ids to selected option indices.
type AnswerSheet map[string]int

var deadlineRegex = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// NewQuestion is the authoring shape of a Question.
type NewQuestion struct {
	QuestionText       string   `json:"question_text" validate:"required"`
	Options            []string `json:"options"`
	CorrectAnswerIndex int      `json:"correct_answer_index"`
}

// NewTest contains information needed to publish a Test.
type NewTest struct {
	Name        string        `json:"name" validate:"required"`
	Description string        `json:"description"`
	ClassID     string        `json:"class_id" validate:"required,classid"`
	SubjectID   string        `json:"subject_id" validate:"required,subjectid"`
	Questions   []NewQuestion `json:"questions" validate:"required,min=1,dive"`
	Deadline    string        `json:"deadline"` // optional, YYYY-MM-DD
}

// Validate cleans and checks the authoring input: every question needs text,
// at least two non-empty options, and a correct answer pointing at one of
// them. Empty options are dropped and the correct-answer index remapped onto
// the surviving slice.
func (nt *NewTest) Validate(validate *validator.Validate) error {
	nt.Name = core.CleanString(nt.Name)
	nt.Description = core.CleanString(nt.Description)
	nt.ClassID = core.CleanString(nt.ClassID, true /* lower */)
	nt.SubjectID = core.CleanString(nt.SubjectID, true /* lower */)
	nt.Deadline = core.CleanString(nt.Deadline)

	if err := validate.Struct(nt); err != nil {
		return err
	}

	for i := range nt.Questions {
		q := &nt.Questions[i]
		q.QuestionText = core.CleanString(q.QuestionText)

		kept := make([]string, 0, len(q.Options))
		remapped := -1
		for oi, opt := range q.Options {
			opt = core.CleanString(opt)
			if opt == "" {
				continue
			}
			if oi == q.CorrectAnswerIndex {
				remapped = len(kept)
			}
			kept = append(kept, opt)
		}
		if len(kept) < 2 {
			return core.NewValidationError(nil, core.FieldError{
				Field: "questions",
				Error: "each question must have at least two non-empty options",
			})
		}
		if remapped == -1 {
			return core.NewValidationError(nil, core.FieldError{
				Field: "questions",
				Error: "each question must have a valid correct answer selected",
			})
		}
		q.Options = kept
		q.CorrectAnswerIndex = remapped
	}

	if nt.Deadline != "" && !deadlineRegex.MatchString(nt.Deadline) {
		return core.NewValidationError(nil, core.FieldError{
			Field: "deadline",
			Error: "invalid deadline format, use YYYY-MM-DD",
		})
	}
	return nil
}

// build materializes validated authoring input into stored questions,
// assigning each question an id.
func (nt NewTest) build() []Question {
	qs := make([]Question, 0, len(nt.Questions))
	for _, nq := range nt.Questions {
		qs = append(qs, Question{
			ID:                 uuid.New().String(),
			QuestionText:       nq.QuestionText,
			Options:            nq.Options,
			CorrectAnswerIndex: nq.CorrectAnswerIndex,
		})
	}
	return qs
}

func (nt NewTest) deadlineTime() time.Time {
	if nt.Deadline == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", nt.Deadline)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
