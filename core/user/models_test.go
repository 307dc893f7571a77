package user

import (
	"context"
	"strings"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/school"
	"github.com/darasahq/darasa/storage/store/inmem"
)

func newValidator() *validator.Validate {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")

	validate := validator.New()
	core.InitValidators(validate, translator)
	school.InitValidators(validate, translator)
	InitValidators(validate, translator)
	return validate
}

func newSvc(t *testing.T) *Service {
	t.Helper()
	store := inmem.New()
	t.Cleanup(func() { _ = store.Close() })
	return NewService(store, nil, &core.Config{AppName: "Darasa"})
}

func validNewStudent() NewUser {
	return NewUser{
		Username:        "kinshasa7",
		Email:           "kin7@test.cd",
		Password:        "Sup3r$ecret",
		PasswordConfirm: "Sup3r$ecret",
		Role:            RoleStudent,
		ClassID:         "year-7",
	}
}

func TestNewUser_Validate(t *testing.T) {
	validate := newValidator()
	svc := newSvc(t)

	t.Run("valid student", func(t *testing.T) {
		nu := validNewStudent()
		if err := nu.Validate(validate, svc); err != nil {
			t.Fatalf("Validate() failed: %v", err)
		}
	})

	t.Run("valid teacher", func(t *testing.T) {
		nu := validNewStudent()
		nu.Role = RoleTeacher
		nu.ClassID = ""
		nu.SubjectIDs = []string{"math", "phy"}
		if err := nu.Validate(validate, svc); err != nil {
			t.Fatalf("Validate() failed: %v", err)
		}
	})

	t.Run("username and email are lowered", func(t *testing.T) {
		nu := validNewStudent()
		nu.Username = " Kinshasa7 "
		nu.Email = "KIN7@Test.CD"
		if err := nu.Validate(validate, svc); err != nil {
			t.Fatalf("Validate() failed: %v", err)
		}
		if nu.Username != "kinshasa7" || nu.Email != "kin7@test.cd" {
			t.Errorf("cleaned = %q/%q, want lowered", nu.Username, nu.Email)
		}
	})

	fieldErrs := func(t *testing.T, err error) validator.ValidationErrors {
		t.Helper()
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			t.Fatalf("error = %v (%T), want validator.ValidationErrors", err, err)
		}
		return verrs
	}
	hasTag := func(verrs validator.ValidationErrors, tag string) bool {
		for _, fe := range verrs {
			if fe.Tag() == tag {
				return true
			}
		}
		return false
	}

	t.Run("admin role not allowed at signup", func(t *testing.T) {
		nu := validNewStudent()
		nu.Role = RoleAdmin
		verrs := fieldErrs(t, nu.Validate(validate, svc))
		if !hasTag(verrs, "signuprole") {
			t.Errorf("errors = %v, want signuprole", verrs)
		}
	})

	t.Run("student needs a class", func(t *testing.T) {
		nu := validNewStudent()
		nu.ClassID = ""
		verrs := fieldErrs(t, nu.Validate(validate, svc))
		if !hasTag(verrs, "classrequired") {
			t.Errorf("errors = %v, want classrequired", verrs)
		}
	})

	t.Run("teacher needs subjects", func(t *testing.T) {
		nu := validNewStudent()
		nu.Role = RoleTeacher
		nu.ClassID = ""
		nu.SubjectIDs = nil
		verrs := fieldErrs(t, nu.Validate(validate, svc))
		if !hasTag(verrs, "subjectsrequired") {
			t.Errorf("errors = %v, want subjectsrequired", verrs)
		}
	})

	t.Run("unknown class rejected", func(t *testing.T) {
		nu := validNewStudent()
		nu.ClassID = "year-13"
		if err := nu.Validate(validate, svc); err == nil {
			t.Error("Validate() passed with unknown class")
		}
	})

	t.Run("unknown subject rejected", func(t *testing.T) {
		nu := validNewStudent()
		nu.Role = RoleTeacher
		nu.ClassID = ""
		nu.SubjectIDs = []string{"alchemy"}
		if err := nu.Validate(validate, svc); err == nil {
			t.Error("Validate() passed with unknown subject")
		}
	})

	t.Run("password mismatch rejected", func(t *testing.T) {
		nu := validNewStudent()
		nu.PasswordConfirm = "Different1!"
		if err := nu.Validate(validate, svc); err == nil {
			t.Error("Validate() passed with mismatched passwords")
		}
	})

	t.Run("password policy", func(t *testing.T) {
		tests := []struct {
			name    string
			pwd     string
			wantTag string
		}{
			{name: "too short", pwd: "Ab1$", wantTag: "pwdminlen"},
			{name: "whitespace", pwd: "Ab1$ with space", wantTag: "pwdnospace"},
			{name: "all numeric", pwd: "12345678", wantTag: "pwdnotallnum"},
			{name: "no complexity", pwd: "alllowercase", wantTag: "pwdcplx"},
			{name: "similar to username", pwd: "Kinshasa7!", wantTag: "pwdtoosim"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				nu := validNewStudent()
				nu.Password, nu.PasswordConfirm = tt.pwd, tt.pwd
				verrs := fieldErrs(t, nu.Validate(validate, svc))
				if !hasTag(verrs, tt.wantTag) {
					t.Errorf("errors = %v, want %s", verrs, tt.wantTag)
				}
			})
		}
	})

	t.Run("taken username rejected", func(t *testing.T) {
		svc := newSvc(t)
		if _, err := svc.Create(context.Background(), validNewStudent()); err != nil {
			t.Fatalf("Create() failed: %v", err)
		}
		nu := validNewStudent()
		nu.Email = "someone-else@test.cd"
		err := nu.Validate(validate, svc)
		if err == nil || !strings.Contains(err.Error(), ErrUsernameExists.Error()) {
			t.Errorf("Validate() error = %v, want username exists", err)
		}
	})

	t.Run("taken email rejected", func(t *testing.T) {
		svc := newSvc(t)
		if _, err := svc.Create(context.Background(), validNewStudent()); err != nil {
			t.Fatalf("Create() failed: %v", err)
		}
		nu := validNewStudent()
		nu.Username = "someoneelse"
		err := nu.Validate(validate, svc)
		if err == nil || !strings.Contains(err.Error(), ErrEmailExists.Error()) {
			t.Errorf("Validate() error = %v, want email exists", err)
		}
	})
}

func TestUser_Password(t *testing.T) {
	usr := User{}
	if err := usr.SetPassword("Sup3r$ecret"); err != nil {
		t.Fatalf("SetPassword() failed: %v", err)
	}
	if err := usr.CheckPassword("Sup3r$ecret"); err != nil {
		t.Errorf("CheckPassword() failed: %v", err)
	}
	if err := usr.CheckPassword("wrong"); err == nil {
		t.Error("CheckPassword() passed with wrong password")
	}
}

func TestRole_Valid(t *testing.T) {
	for _, r := range AllRoles {
		if !r.Valid() {
			t.Errorf("Role(%q).Valid() = false", r)
		}
	}
	if Role("superuser").Valid() {
		t.Error("unknown role reported valid")
	}
}
