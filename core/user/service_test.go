package user

import (
	"context"
	"testing"

	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	emailsvc "github.com/darasahq/darasa/services/email"
	"github.com/darasahq/darasa/storage/store/inmem"
)

func newSvcWithMail(t *testing.T) *Service {
	t.Helper()
	store := inmem.New()
	t.Cleanup(func() { _ = store.Close() })
	conf := &core.Config{AppName: "Darasa"}
	return NewService(store, emailsvc.NewConsoleServiceMock(conf), conf)
}

func TestService_Create(t *testing.T) {
	svc := newSvcWithMail(t)
	ctx := context.Background()

	sentBefore := len(emailsvc.SentMessages)
	created, err := svc.Create(ctx, validNewStudent())
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if created.UID == "" || created.CreatedAt.IsZero() {
		t.Errorf("created user incomplete: %+v", created)
	}
	if !created.IsStudent() || created.ClassID != "year-7" {
		t.Errorf("created = %+v, want active student of year-7", created)
	}
	if !created.IsActive {
		t.Error("new accounts must be active")
	}
	if err = created.CheckPassword("Sup3r$ecret"); err != nil {
		t.Errorf("CheckPassword() on created user failed: %v", err)
	}

	// a welcome email goes out
	if got := len(emailsvc.SentMessages); got != sentBefore+1 {
		t.Fatalf("sent messages = %d, want %d", got, sentBefore+1)
	}
	msg := emailsvc.SentMessages[len(emailsvc.SentMessages)-1]
	if len(msg.To) != 1 || msg.To[0].Address != created.Email {
		t.Errorf("welcome mail recipients = %+v, want %s", msg.To, created.Email)
	}

	t.Run("teacher keeps subjects, no class", func(t *testing.T) {
		nu := validNewStudent()
		nu.Username = "profmath"
		nu.Email = "prof@test.cd"
		nu.Role = RoleTeacher
		nu.SubjectIDs = []string{"math"}
		teacher, err := svc.Create(ctx, nu)
		if err != nil {
			t.Fatalf("Create() failed: %v", err)
		}
		if !teacher.IsTeacher() || len(teacher.SubjectIDs) != 1 || teacher.ClassID != "" {
			t.Errorf("created teacher = %+v", teacher)
		}
	})

	t.Run("student never keeps subjects", func(t *testing.T) {
		nu := validNewStudent()
		nu.Username = "another7"
		nu.Email = "another7@test.cd"
		nu.SubjectIDs = []string{"math"}
		student, err := svc.Create(ctx, nu)
		if err != nil {
			t.Fatalf("Create() failed: %v", err)
		}
		if len(student.SubjectIDs) != 0 {
			t.Errorf("student subjects = %v, want none", student.SubjectIDs)
		}
	})
}

func TestService_CreateAdmin(t *testing.T) {
	svc := newSvc(t)
	ctx := context.Background()

	admin, err := svc.CreateAdmin(ctx, " Boss ", "BOSS@Test.CD", "Sup3r$ecret")
	if err != nil {
		t.Fatalf("CreateAdmin() failed: %v", err)
	}
	if !admin.IsAdmin() || !admin.IsActive {
		t.Errorf("created admin = %+v, want active admin", admin)
	}
	if admin.Username != "boss" || admin.Email != "boss@test.cd" {
		t.Errorf("identity = %q/%q, want cleaned and lowered", admin.Username, admin.Email)
	}
	if err = admin.CheckPassword("Sup3r$ecret"); err != nil {
		t.Errorf("CheckPassword() failed: %v", err)
	}

	t.Run("duplicate rejected", func(t *testing.T) {
		if _, err := svc.CreateAdmin(ctx, "boss", "other@test.cd", "Sup3r$ecret"); err == nil {
			t.Error("CreateAdmin() passed with taken username")
		}
	})
}

func TestService_GetByUsernameOrEmail(t *testing.T) {
	svc := newSvc(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, validNewStudent())
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	tests := []struct {
		name  string
		query string
	}{
		{name: "by username", query: created.Username},
		{name: "by email", query: created.Email},
		{name: "case-insensitive", query: "KINSHASA7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.GetByUsernameOrEmail(ctx, tt.query)
			if err != nil {
				t.Fatalf("GetByUsernameOrEmail() failed: %v", err)
			}
			if got.UID != created.UID {
				t.Errorf("uid = %s, want %s", got.UID, created.UID)
			}
		})
	}

	t.Run("unknown", func(t *testing.T) {
		if _, err := svc.GetByUsernameOrEmail(ctx, "ghost"); errors.Cause(err) != ErrNotFound {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})
}

func TestService_Filter(t *testing.T) {
	svc := newSvc(t)
	ctx := context.Background()

	seed := []NewUser{
		{Username: "hero777", Email: "hero@test.cd", Password: "x", PasswordConfirm: "x", Role: RoleStudent, ClassID: "year-7"},
		{Username: "rival77", Email: "rival@test.cd", Password: "x", PasswordConfirm: "x", Role: RoleStudent, ClassID: "year-8"},
		{Username: "profmath", Email: "prof@test.cd", Password: "x", PasswordConfirm: "x", Role: RoleTeacher, SubjectIDs: []string{"math"}},
	}
	for _, nu := range seed {
		if _, err := svc.Create(ctx, nu); err != nil {
			t.Fatalf("Create(%s) failed: %v", nu.Username, err)
		}
	}

	tests := []struct {
		name   string
		filter QueryFilter
		want   int
	}{
		{name: "all", filter: QueryFilter{}, want: 3},
		{name: "by role", filter: QueryFilter{Role: RoleStudent}, want: 2},
		{name: "by class", filter: QueryFilter{ClassID: "year-7"}, want: 1},
		{name: "role and class", filter: QueryFilter{Role: RoleStudent, ClassID: "year-8"}, want: 1},
		{name: "search on username", filter: QueryFilter{Search: "prof"}, want: 1},
		{name: "search on email", filter: QueryFilter{Search: "RIVAL@"}, want: 1},
		{name: "search no match", filter: QueryFilter{Search: "ghost"}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Filter(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Filter() failed: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("len = %d, want %d", len(got), tt.want)
			}
		})
	}

	t.Run("students in class", func(t *testing.T) {
		got, err := svc.StudentsInClass(ctx, "year-7")
		if err != nil {
			t.Fatalf("StudentsInClass() failed: %v", err)
		}
		if len(got) != 1 || got[0].Username != "hero777" {
			t.Errorf("students = %+v, want hero777 only", got)
		}
	})
}

func TestService_Delete(t *testing.T) {
	svc := newSvc(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, validNewStudent())
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	if err = svc.Delete(ctx, created.UID); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, err = svc.GetByUID(ctx, created.UID); errors.Cause(err) != ErrNotFound {
		t.Errorf("GetByUID() after delete error = %v, want ErrNotFound", err)
	}
	if err = svc.Delete(ctx, created.UID); err == nil {
		t.Error("Delete() passed on unknown uid")
	}
}
