package echoapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/user"
)

func Test_userApi_signup(t *testing.T) {
	app := newTestApp(t)

	body := func(uname, email, role, classID string, subjects ...string) []byte {
		return marchallObj(t, map[string]interface{}{
			"username":         uname,
			"email":            email,
			"password":         "Sup3r$ecret",
			"password_confirm": "Sup3r$ecret",
			"role":             role,
			"class_id":         classID,
			"subject_ids":      subjects,
		})
	}

	t.Run("student signup", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/users/signup", body("kinshasa7", "kin7@test.cd", "student", "year-7"))
		app.serve(req, rec)

		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %d, want 201; body %s", rec.Code, rec.Body.String())
		}
		var resp SignupResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshaling response: %v", err)
		}
		if resp.Token == "" {
			t.Error("signup response has no token")
		}
		if resp.User.Username != "kinshasa7" || !resp.User.IsStudent() || resp.User.ClassID != "year-7" {
			t.Errorf("signed up user = %+v", resp.User)
		}

		// the token is immediately usable
		req, rec = newAuthRequest(http.MethodGet, "/v1/users/me", resp.Token)
		app.serve(req, rec)
		if rec.Code != http.StatusOK {
			t.Errorf("GET /me with signup token code = %d, want 200", rec.Code)
		}
	})

	t.Run("teacher signup", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/users/signup", body("profmath", "prof@test.cd", "teacher", "", "math", "phy"))
		app.serve(req, rec)
		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %d, want 201; body %s", rec.Code, rec.Body.String())
		}
	})

	tests := []httpTest{
		{name: "admin role rejected", body: body("bigboss7", "boss@test.cd", "admin", ""), wantCode: http.StatusBadRequest},
		{name: "student needs a class", body: body("lost1234", "lost@test.cd", "student", ""), wantCode: http.StatusBadRequest},
		{name: "teacher needs subjects", body: body("prof2222", "prof2@test.cd", "teacher", ""), wantCode: http.StatusBadRequest},
		{name: "taken username", body: body("kinshasa7", "other@test.cd", "student", "year-7"), wantCode: http.StatusBadRequest},
		{name: "taken email", body: body("other777", "kin7@test.cd", "student", "year-7"), wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/signup", tt.body)
			app.serve(req, rec)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_login(t *testing.T) {
	app := newTestApp(t)

	app.createUser(t, "hero777", "hero@test.cd", "Sup3r$ecret", user.RoleStudent, "year-7")
	inactive := user.User{Username: "gone777", Email: "gone@test.cd", Role: user.RoleStudent, ClassID: "year-7", IsActive: false}
	_ = inactive.SetPassword("Sup3r$ecret")
	if _, err := app.store.Add(context.Background(), core.UsersCollection, inactive.Fields()); err != nil {
		t.Fatalf("seeding inactive user: %v", err)
	}

	body := func(uname, pwd string) []byte {
		return marchallObj(t, LoginRequest{Username: uname, Password: pwd})
	}

	tests := []httpTest{
		{name: "by username", body: body("hero777", "Sup3r$ecret"), wantCode: http.StatusOK},
		{name: "by email", body: body("hero@test.cd", "Sup3r$ecret"), wantCode: http.StatusOK},
		{name: "case-insensitive username", body: body("HERO777", "Sup3r$ecret"), wantCode: http.StatusOK},
		{name: "wrong password", body: body("hero777", "nope"), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"})},
		{name: "unknown user", body: body("ghost", "Sup3r$ecret"), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"})},
		{name: "deactivated account", body: body("gone777", "Sup3r$ecret"), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "account deactivated"})},
		{name: "missing fields", body: marchallObj(t, LoginRequest{}), wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/login", tt.body)
			app.serve(req, rec)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusOK {
				var resp LoginResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Token == "" {
					t.Errorf("login response = %s, want a token", rec.Body.String())
				}
			}
		})
	}
}

func Test_userApi_me(t *testing.T) {
	app := newTestApp(t)
	usr := app.createUser(t, "hero777", "hero@test.cd", "", user.RoleStudent, "year-7")

	tests := []httpTest{
		{name: "no token", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "own profile", token: getToken(t, usr), wantCode: http.StatusOK, wantData: marchallObj(t, usr)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/v1/users/me", tt.token)
			app.serve(req, rec)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_query(t *testing.T) {
	app := newTestApp(t)

	admin := app.createUser(t, "bigboss7", "boss@test.cd", "", user.RoleAdmin)
	student := app.createUser(t, "hero777", "hero@test.cd", "", user.RoleStudent, "year-7")
	app.createUser(t, "rival777", "rival@test.cd", "", user.RoleStudent, "year-8")
	app.createUser(t, "profmath", "prof@test.cd", "", user.RoleTeacher, "math")

	adminToken, studentToken := getToken(t, admin), getToken(t, student)

	count := func(t *testing.T, body []byte) int {
		var users []user.User
		if err := json.Unmarshal(body, &users); err != nil {
			t.Fatalf("unmarshaling users: %v", err)
		}
		return len(users)
	}

	tests := []httpTest{
		{name: "non-admins rejected", path: "/v1/users", token: studentToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "all users", path: "/v1/users", token: adminToken, wantCode: http.StatusOK, extra: 4},
		{name: "by role", path: "/v1/users?role=student", token: adminToken, wantCode: http.StatusOK, extra: 2},
		{name: "by class", path: "/v1/users?class_id=year-7", token: adminToken, wantCode: http.StatusOK, extra: 1},
		{name: "search", path: "/v1/users?search=prof", token: adminToken, wantCode: http.StatusOK, extra: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			app.serve(req, rec)
			checkCodeAndData(t, tt, rec)

			if want, ok := tt.extra.(int); ok && rec.Code == http.StatusOK {
				if got := count(t, rec.Body.Bytes()); got != want {
					t.Errorf("len(users) = %d, want %d", got, want)
				}
			}
		})
	}

	t.Run("roles list", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/users/roles", adminToken)
		app.serve(req, rec)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, user.AllRoles)}, rec)
	})
}

func Test_userApi_retrieve(t *testing.T) {
	app := newTestApp(t)

	admin := app.createUser(t, "bigboss7", "boss@test.cd", "", user.RoleAdmin)
	hero := app.createUser(t, "hero777", "hero@test.cd", "", user.RoleStudent, "year-7")
	rival := app.createUser(t, "rival777", "rival@test.cd", "", user.RoleStudent, "year-8")

	tests := []httpTest{
		{name: "own profile", path: "/v1/users/" + hero.UID, token: getToken(t, hero),
			wantCode: http.StatusOK, wantData: marchallObj(t, hero)},
		{name: "admin reads anyone", path: "/v1/users/" + hero.UID, token: getToken(t, admin),
			wantCode: http.StatusOK, wantData: marchallObj(t, hero)},
		{name: "peers are masked", path: "/v1/users/" + rival.UID, token: getToken(t, hero),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)},
		{name: "unknown uid", path: "/v1/users/nope", token: getToken(t, admin),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			app.serve(req, rec)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_destroy(t *testing.T) {
	app := newTestApp(t)

	admin := app.createUser(t, "bigboss7", "boss@test.cd", "", user.RoleAdmin)
	hero := app.createUser(t, "hero777", "hero@test.cd", "", user.RoleStudent, "year-7")
	adminToken := getToken(t, admin)

	t.Run("students cannot delete", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/users/"+admin.UID, getToken(t, hero))
		app.serve(req, rec)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)}, rec)
	})

	t.Run("no suicide", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/users/"+admin.UID, adminToken)
		app.serve(req, rec)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}, rec)
	})

	t.Run("admin deletes a user", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/users/"+hero.UID, adminToken)
		app.serve(req, rec)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("code = %d, want 204; body %s", rec.Code, rec.Body.String())
		}

		req, rec = newAuthRequest(http.MethodGet, "/v1/users/"+hero.UID, adminToken)
		app.serve(req, rec)
		if rec.Code != http.StatusNotFound {
			t.Errorf("deleted user still retrievable; code = %d", rec.Code)
		}
	})
}

func Test_userApi_tokenRefresh(t *testing.T) {
	app := newTestApp(t)
	usr := app.createUser(t, "hero777", "hero@test.cd", "", user.RoleStudent, "year-7")

	req, rec := newAuthRequest(http.MethodPost, "/v1/users/token-refresh", getToken(t, usr))
	app.serve(req, rec)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
	var resp LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Token == "" {
		t.Errorf("refresh response = %s, want a token", rec.Body.String())
	}
}
