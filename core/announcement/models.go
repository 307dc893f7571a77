package announcement

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/darasahq/darasa/core"
)

// Announcement is a school-wide broadcast; every signed-in user sees all of
// them, there is no per-role or per-class targeting.
type Announcement struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedBy string    `json:"created_by"` // admin uid
	CreatedAt time.Time `json:"created_at"`
}

func FromDoc(d core.Document) Announcement {
	return Announcement{
		ID:        d.ID,
		Title:     d.Str("title"),
		Content:   d.Str("content"),
		CreatedBy: d.Str("createdBy"),
		CreatedAt: d.Time("createdAt"),
	}
}

func FromDocs(docs []core.Document) []Announcement {
	anns := make([]Announcement, 0, len(docs))
	for _, d := range docs {
		anns = append(anns, FromDoc(d))
	}
	return anns
}

// NewAnnouncement contains information needed to publish an Announcement.
type NewAnnouncement struct {
	Title   string `json:"title" validate:"required"`
	Content string `json:"content" validate:"required"`
}

func (na *NewAnnouncement) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.Content = core.CleanString(na.Content)
	return validate.Struct(na)
}
