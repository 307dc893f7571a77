package user

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/darasahq/darasa/core"
)

// Role is the closed set of account types. It decides content visibility and
// mutation rights everywhere; there is no open-ended role string.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

var (
	AllRoles = []Role{RoleStudent, RoleTeacher, RoleAdmin}

	rolePriorities = map[Role]int{
		RoleAdmin:   21,
		RoleTeacher: 11,
		RoleStudent: 1,
	}
)

func (r Role) Valid() bool {
	_, ok := rolePriorities[r]
	return ok
}

func RolePriority(role Role) int {
	return rolePriorities[role]
}

// User is a transient snapshot of a `users` document. Role is immutable after
// signup; ClassID is set iff Role is student, SubjectIDs non-empty iff teacher.
type User struct {
	UID          string    `json:"uid"`
	Username     string    `json:"username"`
	Email        string    `json:"email"` // stored lowercase
	Role         Role      `json:"role"`
	ClassID      string    `json:"class_id,omitempty"`
	SubjectIDs   []string  `json:"subject_ids,omitempty"`
	IsActive     bool      `json:"is_active"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsAdmin() bool   { return u.Role == RoleAdmin }
func (u *User) IsTeacher() bool { return u.Role == RoleTeacher }
func (u *User) IsStudent() bool { return u.Role == RoleStudent }

// FromDoc rebuilds a User snapshot from its stored document. Total: missing
// fields degrade to zero values, they never fail the fetch.
func FromDoc(d core.Document) User {
	return User{
		UID:          d.ID,
		Username:     d.Str("username"),
		Email:        d.Str("email"),
		Role:         Role(d.Str("role")),
		ClassID:      d.Str("classId"),
		SubjectIDs:   d.StrSlice("subjects"),
		IsActive:     d.Data["isActive"] != false,
		PasswordHash: []byte(d.Str("passwordHash")),
		CreatedAt:    d.Time("createdAt"),
	}
}

func (u User) Fields() core.Fields {
	return core.Fields{
		"username":     u.Username,
		"email":        u.Email,
		"role":         string(u.Role),
		"classId":      u.ClassID,
		"subjects":     u.SubjectIDs,
		"isActive":     u.IsActive,
		"passwordHash": string(u.PasswordHash),
		"createdAt":    core.ServerTimestamp,
	}
}

// NewUser contains information needed to sign up a new User.
// Admin accounts are not created through signup; see apps/admin.
type NewUser struct {
	Username        string   `json:"username" validate:"required,min=6,alphanum_"`
	Email           string   `json:"email" validate:"required,email"`
	Password        string   `json:"password" validate:"required"`
	PasswordConfirm string   `json:"password_confirm" validate:"required,eqfield=Password"`
	Role            Role     `json:"role" validate:"required,signuprole"`
	ClassID         string   `json:"class_id" validate:"omitempty,classid"`
	SubjectIDs      []string `json:"subject_ids" validate:"omitempty,subjectids"`
}

func (nu *NewUser) Validate(validate *validator.Validate, svc *Service) error {
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.ClassID = core.CleanString(nu.ClassID, true /* lower */)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(nu.Username, nu.Email)
}

type QueryFilter struct {
	Search  string `query:"search"`
	Role    Role   `query:"role"`
	ClassID string `query:"class_id"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Role == "" && qf.ClassID == ""
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.ClassID = core.CleanString(qf.ClassID, true /* lower */)
}
