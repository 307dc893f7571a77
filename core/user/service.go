package user

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
)

var (
	// errors
	ErrNotFound       = errors.New("user not found")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")
)

// Service wraps the `users` collection. Accounts are created and deleted,
// never updated in place; role is immutable after signup.
type Service struct {
	store core.DocumentStore
	mail  core.EmailService
	conf  *core.Config
}

func NewService(store core.DocumentStore, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{store: store, mail: mailSvc, conf: conf}
}

func (svc *Service) CheckUniqueness(uname, email string) error {
	if _, err := svc.GetByUsername(context.Background(), uname); err == nil {
		return core.NewValidationError(ErrUsernameExists, core.FieldError{Field: "username", Error: ErrUsernameExists.Error()})
	} else if errors.Cause(err) != ErrNotFound {
		return err
	}
	if _, err := svc.GetByEmail(context.Background(), email); err == nil {
		return core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
	} else if errors.Cause(err) != ErrNotFound {
		return err
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	usr := User{
		Username:   nu.Username,
		Email:      nu.Email,
		Role:       nu.Role,
		IsActive:   true,
		SubjectIDs: nu.SubjectIDs,
	}
	if nu.Role == RoleStudent {
		usr.ClassID = nu.ClassID
		usr.SubjectIDs = nil
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}

	uid, err := svc.store.Add(ctx, core.UsersCollection, usr.Fields())
	if err != nil {
		return User{}, errors.Wrap(err, "adding user document")
	}
	created, err := svc.GetByUID(ctx, uid)
	if err != nil {
		return User{}, errors.Wrap(err, "re-fetching created user")
	}

	svc.sendWelcomeEmail(created)
	return created, nil
}

// CreateAdmin provisions an admin account. Signup only issues student and
// teacher roles; this is reached through the admin CLI.
func (svc *Service) CreateAdmin(ctx context.Context, uname, email, pwd string) (User, error) {
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)
	if err := svc.CheckUniqueness(uname, email); err != nil {
		return User{}, err
	}

	usr := User{
		Username: uname,
		Email:    email,
		Role:     RoleAdmin,
		IsActive: true,
	}
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}

	uid, err := svc.store.Add(ctx, core.UsersCollection, usr.Fields())
	if err != nil {
		return User{}, errors.Wrap(err, "adding user document")
	}
	return svc.GetByUID(ctx, uid)
}

func (svc *Service) GetByUID(ctx context.Context, uid string) (User, error) {
	doc, err := svc.store.GetByID(ctx, core.UsersCollection, uid)
	if err != nil {
		if errors.Cause(err) == core.ErrDocNotFound {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return FromDoc(doc), nil
}

func (svc *Service) getOne(ctx context.Context, filters ...core.Filter) (User, error) {
	docs, err := svc.store.QueryOnce(ctx, core.UsersCollection, filters)
	if err != nil {
		return User{}, err
	}
	if len(docs) == 0 {
		return User{}, ErrNotFound
	}
	return FromDoc(docs[0]), nil
}

func (svc *Service) GetByUsername(ctx context.Context, uname string) (User, error) {
	return svc.getOne(ctx, core.Eq("username", core.CleanString(uname, true /* lower */)))
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.getOne(ctx, core.Eq("email", core.CleanString(email, true /* lower */)))
}

func (svc *Service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	usr, err := svc.GetByUsername(ctx, uname)
	if err == nil || errors.Cause(err) != ErrNotFound {
		return usr, err
	}
	return svc.GetByEmail(ctx, uname)
}

// Filter applies AND semantics on available QueryFilter fields. Role and
// class are store-side predicates; Search is a case-insensitive in-memory
// match on username or email.
func (svc *Service) Filter(ctx context.Context, filter QueryFilter) ([]User, error) {
	var preds []core.Filter
	if filter.Role != "" {
		preds = append(preds, core.Eq("role", string(filter.Role)))
	}
	if filter.ClassID != "" {
		preds = append(preds, core.Eq("classId", filter.ClassID))
	}

	docs, err := svc.store.QueryOnce(ctx, core.UsersCollection, preds, core.Ordering{Field: "createdAt", Ascending: false})
	if err != nil {
		return nil, errors.Wrap(err, "querying users")
	}

	users := make([]User, 0, len(docs))
	for _, doc := range docs {
		usr := FromDoc(doc)
		if filter.Search != "" {
			needle := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(usr.Username), needle) &&
				!strings.Contains(strings.ToLower(usr.Email), needle) {
				continue
			}
		}
		users = append(users, usr)
	}
	return users, nil
}

// StudentsInClass lists the active students of one class, for results entry
// and attempt reports.
func (svc *Service) StudentsInClass(ctx context.Context, classID string) ([]User, error) {
	return svc.Filter(ctx, QueryFilter{Role: RoleStudent, ClassID: classID})
}

func (svc *Service) Delete(ctx context.Context, uids ...string) error {
	for _, uid := range uids {
		if err := svc.store.DeleteByID(ctx, core.UsersCollection, uid); err != nil {
			return errors.Wrapf(err, "deleting user %s", uid)
		}
	}
	return nil
}

func (svc *Service) sendWelcomeEmail(usr User) {
	if svc.mail == nil {
		return
	}
	svc.mail.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: usr.Username, Address: usr.Email}},
		Subject: "Welcome to " + svc.conf.AppName,
		Body: fmt.Sprintf(
			"Hi %s,\n\nYour %s account has been created. Sign in with your username or email at %s.\n",
			usr.Username, svc.conf.AppName, svc.conf.FrontendBaseURL,
		),
	})
}
