package note

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/access"
	"github.com/darasahq/darasa/core/user"
)

// Note is a transient snapshot of a `notes` document.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	ClassID   string    `json:"class_id"`
	SubjectID string    `json:"subject_id"`
	CreatedBy string    `json:"created_by"` // teacher or admin uid
	CreatedAt time.Time `json:"created_at"`
}

func (n Note) ContentClass() string   { return n.ClassID }
func (n Note) ContentSubject() string { return n.SubjectID }

func FromDoc(d core.Document) Note {
	return Note{
		ID:        d.ID,
		Title:     d.Str("title"),
		Content:   d.Str("content"),
		ClassID:   d.Str("classId"),
		SubjectID: d.Str("subjectId"),
		CreatedBy: d.Str("createdBy"),
		CreatedAt: d.Time("createdAt"),
	}
}

func FromDocs(docs []core.Document) []Note {
	notes := make([]Note, 0, len(docs))
	for _, d := range docs {
		notes = append(notes, FromDoc(d))
	}
	return notes
}

// VisibleTo keeps the notes `u` may see. Total: unknown roles and students
// without a class get an empty slice, never an error.
func VisibleTo(u user.User, notes []Note) []Note {
	visible := make([]Note, 0, len(notes))
	for _, n := range notes {
		if access.Visible(u, n) {
			visible = append(visible, n)
		}
	}
	return visible
}

// NewNote contains information needed to publish a Note.
type NewNote struct {
	Title     string `json:"title" validate:"required"`
	Content   string `json:"content" validate:"required"`
	ClassID   string `json:"class_id" validate:"required,classid"`
	SubjectID string `json:"subject_id" validate:"required,subjectid"`
}

func (nn *NewNote) Validate(validate *validator.Validate) error {
	nn.Title = core.CleanString(nn.Title)
	nn.Content = core.CleanString(nn.Content)
	nn.ClassID = core.CleanString(nn.ClassID, true /* lower */)
	nn.SubjectID = core.CleanString(nn.SubjectID, true /* lower */)
	return validate.Struct(nn)
}
