package result

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/school"
)

// Result is an academic result entered by an admin for one student. It is
// independent of exam attempts; marks come from whatever grading happened
// outside the system.
type Result struct {
	ID        string    `json:"id"`
	StudentID string    `json:"student_id"`
	ClassID   string    `json:"class_id"`
	SubjectID string    `json:"subject_id"`
	Subject   string    `json:"subject"` // display name resolved from the catalog
	Marks     float64   `json:"marks"`
	Grade     string    `json:"grade,omitempty"`
	Comments  string    `json:"comments,omitempty"`
	SentBy    string    `json:"sent_by"` // admin uid
	SentAt    time.Time `json:"sent_at"`
}

func FromDoc(d core.Document) Result {
	r := Result{
		ID:        d.ID,
		StudentID: d.Str("studentId"),
		ClassID:   d.Str("classId"),
		SubjectID: d.Str("subjectId"),
		Marks:     d.Float("marks"),
		Grade:     d.Str("grade"),
		Comments:  d.Str("comments"),
		SentBy:    d.Str("sentBy"),
		SentAt:    d.Time("sentAt"),
	}
	r.Subject = school.SubjectName(r.SubjectID)
	return r
}

func FromDocs(docs []core.Document) []Result {
	results := make([]Result, 0, len(docs))
	for _, d := range docs {
		results = append(results, FromDoc(d))
	}
	return results
}

// NewResult contains information needed to send a Result to a student.
type NewResult struct {
	StudentID string  `json:"student_id" validate:"required"`
	SubjectID string  `json:"subject_id" validate:"required,subjectid"`
	Marks     float64 `json:"marks" validate:"min=0"`
	Grade     string  `json:"grade"`
	Comments  string  `json:"comments"`
}

func (nr *NewResult) Validate(validate *validator.Validate) error {
	nr.StudentID = core.CleanString(nr.StudentID)
	nr.SubjectID = core.CleanString(nr.SubjectID, true /* lower */)
	nr.Grade = core.CleanString(nr.Grade)
	nr.Comments = core.CleanString(nr.Comments)
	return validate.Struct(nr)
}
