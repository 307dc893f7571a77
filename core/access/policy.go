// Package access decides which content records a user may see or change.
// Every function here is pure and total: a user missing expected fields is
// never an error, they simply see nothing. These rules are advisory; the
// store's own access rules remain the hard enforcement boundary.
package access

import (
	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/user"
)

// Content is any class- and subject-scoped record (notes, tests).
type Content interface {
	ContentClass() string
	ContentSubject() string
}

// Visible reports whether `u` may see `c`:
// students see their class's content, teachers their subjects', admins all.
func Visible(u user.User, c Content) bool {
	switch u.Role {
	case user.RoleStudent:
		return u.ClassID != "" && u.ClassID == c.ContentClass()
	case user.RoleTeacher:
		for _, id := range u.SubjectIDs {
			if id == c.ContentSubject() {
				return true
			}
		}
		return false
	case user.RoleAdmin:
		return true
	}
	return false
}

// ContentFilters is the store-query form of Visible: the predicates that
// scope a content collection query to what `u` may see. ok=false means no
// query should be issued at all (the visible set is empty).
func ContentFilters(u user.User) (filters []core.Filter, ok bool) {
	switch u.Role {
	case user.RoleStudent:
		if u.ClassID == "" {
			return nil, false
		}
		return []core.Filter{core.Eq("classId", u.ClassID)}, true
	case user.RoleTeacher:
		if len(u.SubjectIDs) == 0 {
			return nil, false
		}
		return []core.Filter{core.In("subjectId", u.SubjectIDs)}, true
	case user.RoleAdmin:
		return nil, true
	}
	return nil, false
}

// CanMutate reports whether `u` may edit or delete a record created by
// `createdBy`: admins always, teachers only their own records.
func CanMutate(u user.User, createdBy string) bool {
	if u.IsAdmin() {
		return true
	}
	return u.IsTeacher() && createdBy != "" && createdBy == u.UID
}

func CanCreateNote(u user.User) bool { return u.IsTeacher() || u.IsAdmin() }

func CanCreateTest(u user.User) bool { return u.IsTeacher() || u.IsAdmin() }

func CanCreateAnnouncement(u user.User) bool { return u.IsAdmin() }

// CanSendResult: results are entered and distributed by admins only.
func CanSendResult(u user.User) bool { return u.IsAdmin() }

// CanTakeTest: only students sit exams.
func CanTakeTest(u user.User) bool { return u.IsStudent() }
