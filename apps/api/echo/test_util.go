package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/announcement"
	"github.com/darasahq/darasa/core/exam"
	"github.com/darasahq/darasa/core/note"
	"github.com/darasahq/darasa/core/result"
	"github.com/darasahq/darasa/core/school"
	"github.com/darasahq/darasa/core/user"
	"github.com/darasahq/darasa/storage/store/inmem"
)

var (
	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
	errNotFound     = httpErr{Error: "not found"}
)

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

type testApp struct {
	server  Server
	store   core.DocumentStore
	usrSvc  *user.Service
	noteSvc *note.Service
	examSvc *exam.Service
	resSvc  *result.Service
	annSvc  *announcement.Service
}

type testLogger struct{ t *testing.T }

func (l testLogger) Debug(msg string, args ...interface{}) { l.t.Logf("DEBUG %s %v", msg, args) }
func (l testLogger) Info(msg string, args ...interface{})  { l.t.Logf("INFO %s %v", msg, args) }
func (l testLogger) Warn(msg string, args ...interface{})  { l.t.Logf("WARN %s %v", msg, args) }
func (l testLogger) Error(msg string, args ...interface{}) { l.t.Logf("ERROR %s %v", msg, args) }
func (l testLogger) Fatal(msg string, args ...interface{}) { l.t.Fatalf("FATAL %s %v", msg, args) }

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	conf := &core.Config{TestMode: true, AppName: "Darasa", SecretKey: "secret"}
	conf.Server.JWTExpirationDelta = 10 * time.Minute
	conf.Server.JWTRefreshExpirationDelta = 4 * time.Hour

	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	school.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	store := inmem.New()
	t.Cleanup(func() { _ = store.Close() })

	usrSvc := user.NewService(store, nil, conf)
	app := &testApp{
		store:   store,
		usrSvc:  usrSvc,
		noteSvc: note.NewService(store),
		examSvc: exam.NewService(store, usrSvc),
		resSvc:  result.NewService(store, usrSvc, nil),
		annSvc:  announcement.NewService(store),
	}
	app.server = NewServer(ServerDeps{
		Conf:       conf,
		Logger:     testLogger{t},
		UserSvc:    app.usrSvc,
		NoteSvc:    app.noteSvc,
		ExamSvc:    app.examSvc,
		ResultSvc:  app.resSvc,
		AnnSvc:     app.annSvc,
		Validate:   validate,
		Translator: translator,
	})
	return app
}

func (app *testApp) createUser(t *testing.T, uname, email, pwd string, role user.Role, extra ...string) user.User {
	t.Helper()
	usr := user.User{Username: uname, Email: email, Role: role, IsActive: true}
	switch role {
	case user.RoleStudent:
		if len(extra) > 0 {
			usr.ClassID = extra[0]
		}
	case user.RoleTeacher:
		usr.SubjectIDs = extra
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	uid, err := app.store.Add(context.Background(), core.UsersCollection, usr.Fields())
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	created, err := app.usrSvc.GetByUID(context.Background(), uid)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return created
}

func (app *testApp) serve(req *http.Request, rec *httptest.ResponseRecorder) {
	app.server.ServeHTTP(rec, req)
}

func getToken(t *testing.T, usr user.User) string {
	claims := GetUserClaims(usr)
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	return assert.ObjectsAreEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
