package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/zulandar/planyard/internal/auth"
	"github.com/zulandar/planyard/internal/models"
	"github.com/zulandar/planyard/internal/notify"
)

const testPassword = "s3cret-pass"

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(
		&models.User{},
		&models.PasswordResetToken{},
		&models.Project{},
		&models.ProjectVersion{},
		&models.Attachment{},
		&models.Task{},
		&models.TaskResource{},
		&models.TaskComment{},
		&models.ScheduleVersion{},
		&models.TaskVersionHistory{},
		&models.VersionChangeReport{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

// harness wires a router to an in-memory database with one user per role.
type harness struct {
	t        *testing.T
	db       *gorm.DB
	router   *gin.Engine
	issuer   *auth.Issuer
	notified *notify.MockAdapter
	users    map[string]*models.User
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	issuer, err := auth.NewIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	h := &harness{
		t:        t,
		db:       testDB(t),
		issuer:   issuer,
		notified: notify.NewMockAdapter(),
		users:    map[string]*models.User{},
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	for _, u := range []struct {
		name  string
		role  models.Role
		first string
	}{
		{"admin", models.RoleAdmin, "Ada"},
		{"pm", models.RoleProjectManager, "Pat"},
		{"pm2", models.RoleProjectManager, "Quinn"},
		{"dev", models.RoleTeamMember, "Dev"},
	} {
		rec := &models.User{
			Username: u.name, Email: u.name + "@example.com", PasswordHash: string(hash),
			Role: u.role, FirstName: u.first, LastName: "Test",
		}
		if err := h.db.Create(rec).Error; err != nil {
			t.Fatalf("seed %s: %v", u.name, err)
		}
		h.users[u.name] = rec
	}
	h.router, err = NewRouter(StartOpts{
		DB:         h.db,
		Issuer:     issuer,
		Dispatcher: notify.NewDispatcher(nil, notify.Target{Platform: "mock", Adapter: h.notified}),
		Now:        func() time.Time { return time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	return h
}

// do sends a JSON request as username ("" for anonymous).
func (h *harness) do(method, path, username string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			h.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if username != "" {
		token, _, err := h.issuer.Issue(h.users[username])
		if err != nil {
			h.t.Fatalf("issue token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

// waitSent waits for background notifications until at least n were sent
// and returns the count.
func (h *harness) waitSent(n int) int {
	h.t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		got := h.notified.SentCount()
		if got >= n || time.Now().After(deadline) {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, want, w.Body.String())
	}
}

func TestNewRouter_RequiresDependencies(t *testing.T) {
	if _, err := NewRouter(StartOpts{}); err == nil || !strings.Contains(err.Error(), "db is required") {
		t.Errorf("err = %v, want db is required", err)
	}
	if _, err := NewRouter(StartOpts{DB: testDB(t)}); err == nil {
		t.Error("expected error without issuer")
	}
}

func TestStart_NilDB(t *testing.T) {
	err := Start(context.Background(), StartOpts{DB: nil})
	if err == nil {
		t.Fatal("expected error for nil db")
	}
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t)
	w := h.do(http.MethodGet, "/healthz", "", nil)
	expectStatus(t, w, http.StatusOK)

	h.do(http.MethodGet, "/api/projects", "admin", nil)
	w = h.do(http.MethodGet, "/metrics", "", nil)
	expectStatus(t, w, http.StatusOK)
	if !strings.Contains(w.Body.String(), "planyard_http_request_duration_seconds") {
		t.Error("metrics output missing request duration histogram")
	}
}

func TestRequestID(t *testing.T) {
	h := newHarness(t)
	w := h.do(http.MethodGet, "/healthz", "", nil)
	if w.Header().Get(requestIDHeader) == "" {
		t.Error("missing generated request id")
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	if got := rec.Header().Get(requestIDHeader); got != "abc-123" {
		t.Errorf("request id = %q, want abc-123", got)
	}
}

func TestAuth_RequiredAndLogin(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodGet, "/api/projects", "", nil)
	expectStatus(t, w, http.StatusUnauthorized)
	if body := decode[errorBody](t, w); body.Code != "unauthorized" {
		t.Errorf("code = %q", body.Code)
	}

	w = h.do(http.MethodPost, "/api/auth/login", "", loginRequest{Login: "pm", Password: "wrong"})
	expectStatus(t, w, http.StatusUnauthorized)

	w = h.do(http.MethodPost, "/api/auth/login", "", loginRequest{Login: "pm@example.com", Password: testPassword})
	expectStatus(t, w, http.StatusOK)
	resp := decode[loginResponse](t, w)
	if resp.Token == "" || resp.User.Username != "pm" {
		t.Fatalf("login response = %+v", resp)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Token)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusOK)
	if me := decode[models.User](t, rec); me.ID != h.users["pm"].ID {
		t.Errorf("me = %+v", me)
	}
}

func TestAuth_PasswordFlows(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodPost, "/api/auth/password", "dev", changePasswordRequest{Current: "nope", New: "another-pass"})
	expectStatus(t, w, http.StatusUnauthorized)
	w = h.do(http.MethodPost, "/api/auth/password", "dev", changePasswordRequest{Current: testPassword, New: "short"})
	expectStatus(t, w, http.StatusBadRequest)
	w = h.do(http.MethodPost, "/api/auth/password", "dev", changePasswordRequest{Current: testPassword, New: "another-pass"})
	expectStatus(t, w, http.StatusNoContent)

	for _, email := range []string{"dev@example.com", "nobody@example.com"} {
		w = h.do(http.MethodPost, "/api/auth/reset-request", "", resetRequest{Email: email})
		expectStatus(t, w, http.StatusAccepted)
	}

	w = h.do(http.MethodPost, "/api/users/"+itoa(h.users["dev"].ID)+"/reset-token", "pm", nil)
	expectStatus(t, w, http.StatusForbidden)
	w = h.do(http.MethodPost, "/api/users/"+itoa(h.users["dev"].ID)+"/reset-token", "admin", nil)
	expectStatus(t, w, http.StatusCreated)
	tok := decode[map[string]any](t, w)["token"].(string)

	w = h.do(http.MethodPost, "/api/auth/reset", "", resetPasswordRequest{Token: tok, Password: "brand-new-pass"})
	expectStatus(t, w, http.StatusNoContent)
	w = h.do(http.MethodPost, "/api/auth/reset", "", resetPasswordRequest{Token: tok, Password: "brand-new-pass"})
	expectStatus(t, w, http.StatusBadRequest)

	w = h.do(http.MethodPost, "/api/auth/login", "", loginRequest{Login: "dev", Password: "brand-new-pass"})
	expectStatus(t, w, http.StatusOK)
}

func TestUsers(t *testing.T) {
	h := newHarness(t)
	req := userRequest{Username: "newbie", Email: "newbie@example.com", Password: "long-enough", FirstName: "New"}

	w := h.do(http.MethodPost, "/api/users", "pm", req)
	expectStatus(t, w, http.StatusForbidden)
	w = h.do(http.MethodPost, "/api/users", "admin", req)
	expectStatus(t, w, http.StatusCreated)
	if u := decode[models.User](t, w); u.Role != models.RoleTeamMember || !u.IsFirstLogin {
		t.Errorf("created = %+v", u)
	}
	w = h.do(http.MethodPost, "/api/users", "admin", req)
	expectStatus(t, w, http.StatusConflict)

	w = h.do(http.MethodGet, "/api/users?resources=true", "pm", nil)
	expectStatus(t, w, http.StatusOK)
	for _, u := range decode[[]models.User](t, w) {
		if u.Role == models.RoleAdmin {
			t.Errorf("resource list includes admin %s", u.Username)
		}
	}
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// heldAdapter blocks every Send until release is closed.
type heldAdapter struct {
	started chan struct{}
	release chan struct{}
}

func (a *heldAdapter) Send(ctx context.Context, msg notify.Message) error {
	a.started <- struct{}{}
	select {
	case <-a.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestVersionNotification_DoesNotDelayResponse(t *testing.T) {
	h := newHarness(t)
	p := h.createProject("admin", "Apollo", h.users["pm"].ID)

	held := &heldAdapter{started: make(chan struct{}, 1), release: make(chan struct{})}
	defer close(held.release)
	router, err := NewRouter(StartOpts{
		DB:         h.db,
		Issuer:     h.issuer,
		Dispatcher: notify.NewDispatcher(nil, notify.Target{Platform: "held", Adapter: held}),
	})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	h.router = router

	done := make(chan int, 1)
	go func() {
		w := h.do(http.MethodPut, "/api/projects/"+itoa(p.ID), "pm", map[string]any{"name": "Apollo II"})
		done <- w.Code
	}()
	select {
	case code := <-done:
		if code != http.StatusOK {
			t.Fatalf("status = %d, want 200", code)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("update response waited on the notification")
	}
	select {
	case <-held.started:
	case <-time.After(5 * time.Second):
		t.Fatal("notification was never sent")
	}
}
