package exam

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/school"
	"github.com/darasahq/darasa/core/user"
)

func newValidator() *validator.Validate {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")

	validate := validator.New()
	core.InitValidators(validate, translator)
	school.InitValidators(validate, translator)
	return validate
}

func validNewTest() NewTest {
	return NewTest{
		Name:      "Algebra Quiz",
		ClassID:   "year-7",
		SubjectID: "math",
		Questions: []NewQuestion{
			{QuestionText: "2+2?", Options: []string{"3", "4"}, CorrectAnswerIndex: 1},
		},
	}
}

func TestNewTest_Validate(t *testing.T) {
	validate := newValidator()

	t.Run("valid", func(t *testing.T) {
		nt := validNewTest()
		if err := nt.Validate(validate); err != nil {
			t.Fatalf("Validate() failed: %v", err)
		}
	})

	t.Run("ids are canonicalized to lowercase", func(t *testing.T) {
		nt := validNewTest()
		nt.ClassID = " Year-7 "
		nt.SubjectID = "MATH"
		if err := nt.Validate(validate); err != nil {
			t.Fatalf("Validate() failed: %v", err)
		}
		if nt.ClassID != "year-7" || nt.SubjectID != "math" {
			t.Errorf("ids = %q/%q, want year-7/math", nt.ClassID, nt.SubjectID)
		}
	})

	t.Run("unknown class rejected", func(t *testing.T) {
		nt := validNewTest()
		nt.ClassID = "year-13"
		if err := nt.Validate(validate); err == nil {
			t.Error("Validate() passed with unknown class")
		}
	})

	t.Run("unknown subject rejected", func(t *testing.T) {
		nt := validNewTest()
		nt.SubjectID = "alchemy"
		if err := nt.Validate(validate); err == nil {
			t.Error("Validate() passed with unknown subject")
		}
	})

	t.Run("no questions rejected", func(t *testing.T) {
		nt := validNewTest()
		nt.Questions = nil
		if err := nt.Validate(validate); err == nil {
			t.Error("Validate() passed with no questions")
		}
	})

	t.Run("empty options dropped and correct index remapped", func(t *testing.T) {
		nt := validNewTest()
		nt.Questions = []NewQuestion{
			{QuestionText: "pick", Options: []string{"", "a", "  ", "b"}, CorrectAnswerIndex: 3},
		}
		if err := nt.Validate(validate); err != nil {
			t.Fatalf("Validate() failed: %v", err)
		}
		q := nt.Questions[0]
		if len(q.Options) != 2 {
			t.Fatalf("len(options) = %d, want 2", len(q.Options))
		}
		if q.CorrectAnswerIndex != 1 {
			t.Errorf("CorrectAnswerIndex = %d, want remapped 1", q.CorrectAnswerIndex)
		}
	})

	t.Run("correct answer pointing at dropped option rejected", func(t *testing.T) {
		nt := validNewTest()
		nt.Questions = []NewQuestion{
			{QuestionText: "pick", Options: []string{"a", "", "b"}, CorrectAnswerIndex: 1},
		}
		if err := nt.Validate(validate); err == nil {
			t.Error("Validate() passed with correct answer on an empty option")
		}
	})

	t.Run("fewer than two usable options rejected", func(t *testing.T) {
		nt := validNewTest()
		nt.Questions = []NewQuestion{
			{QuestionText: "pick", Options: []string{"a", ""}, CorrectAnswerIndex: 0},
		}
		if err := nt.Validate(validate); err == nil {
			t.Error("Validate() passed with a single usable option")
		}
	})

	t.Run("bad deadline format rejected", func(t *testing.T) {
		nt := validNewTest()
		nt.Deadline = "03/01/2021"
		if err := nt.Validate(validate); err == nil {
			t.Error("Validate() passed with bad deadline format")
		}
	})

	t.Run("deadline parsed as UTC date", func(t *testing.T) {
		nt := validNewTest()
		nt.Deadline = "2021-06-30"
		if err := nt.Validate(validate); err != nil {
			t.Fatalf("Validate() failed: %v", err)
		}
		want := time.Date(2021, 6, 30, 0, 0, 0, 0, time.UTC)
		if got := nt.deadlineTime(); !got.Equal(want) {
			t.Errorf("deadlineTime() = %v, want %v", got, want)
		}
	})
}

func TestTest_StudentView(t *testing.T) {
	tst := Test{
		ID:        "t1",
		Name:      "Quiz",
		ClassID:   "year-7",
		SubjectID: "math",
		CreatedBy: "teacher-1",
		Questions: []Question{
			{ID: "q1", QuestionText: "2+2?", Options: []string{"3", "4"}, CorrectAnswerIndex: 1},
		},
	}

	sv := tst.StudentView()
	if sv.ID != tst.ID || len(sv.Questions) != 1 {
		t.Fatalf("StudentView() dropped content: %+v", sv)
	}
	if sv.Questions[0].QuestionText != "2+2?" || len(sv.Questions[0].Options) != 2 {
		t.Errorf("StudentView() question mangled: %+v", sv.Questions[0])
	}
	// the answer key must not survive the conversion in any form
	data, err := json.Marshal(sv)
	if err != nil {
		t.Fatalf("marshaling student view: %v", err)
	}
	if strings.Contains(string(data), "correct_answer_index") {
		t.Errorf("StudentView() leaks the answer key: %s", data)
	}
}

func TestVisibleTo(t *testing.T) {
	tests := []Test{
		{ID: "t1", ClassID: "year-7", SubjectID: "math"},
		{ID: "t2", ClassID: "year-8", SubjectID: "math"},
		{ID: "t3", ClassID: "year-7", SubjectID: "phy"},
	}

	got := VisibleTo(user.User{Role: user.RoleStudent, ClassID: "year-7"}, tests)
	if len(got) != 2 || got[0].ID != "t1" || got[1].ID != "t3" {
		t.Errorf("student view = %+v, want t1,t3", got)
	}

	got = VisibleTo(user.User{Role: user.RoleTeacher, SubjectIDs: []string{"math"}}, tests)
	if len(got) != 2 || got[0].ID != "t1" || got[1].ID != "t2" {
		t.Errorf("teacher view = %+v, want t1,t2", got)
	}

	got = VisibleTo(user.User{Role: user.RoleAdmin}, tests)
	if len(got) != 3 {
		t.Errorf("admin view len = %d, want 3", len(got))
	}

	got = VisibleTo(user.User{}, tests)
	if len(got) != 0 {
		t.Errorf("roleless view len = %d, want 0", len(got))
	}
}
