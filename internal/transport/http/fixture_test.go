package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"hightechcross/internal/app"
	"hightechcross/internal/domain"
	"hightechcross/internal/infra/memory"
	"golang.org/x/crypto/bcrypt"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	router     http.Handler
	clock      *testClock
	svc        Services
	adminToken string
	teamToken  string
	team       domain.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	catalog := memory.NewTaskCatalog(store, time.Minute)
	clock := &testClock{now: time.Now().UTC().Truncate(time.Second)}
	opts := []app.Option{app.WithClock(clock.Now), app.WithPasswordCost(bcrypt.MinCost)}

	svc := Services{
		Crosses: app.NewCrossService(store, catalog, store, opts...),
		Hunt:    app.NewHuntService(store, store, catalog, store, store, opts...),
		Users:   app.NewUserService(store, opts...),
		Auth:    app.NewAuthService(store, memory.NewTokenStore(), "test-secret", opts...),
	}
	f := &fixture{
		router: NewHandler(svc, RouterOptions{Version: "test", BuildTime: "now", StreamInterval: 20 * time.Millisecond}),
		clock:  clock,
		svc:    svc,
	}

	ctx := context.Background()
	if _, err := svc.Users.Create(ctx, app.UserInput{Username: ptr("admin"), Password: ptr("adminpass"), IsStaff: ptr(true)}); err != nil {
		t.Fatalf("create admin: %v", err)
	}
	team, err := svc.Users.Create(ctx, app.UserInput{Username: ptr("owls"), Password: ptr("owlspass"), Email: ptr("owls@example.com")})
	if err != nil {
		t.Fatalf("create team: %v", err)
	}
	f.team = team
	f.adminToken = f.login(t, "admin", "adminpass")
	f.teamToken = f.login(t, "owls", "owlspass")
	return f
}

func (f *fixture) login(t *testing.T, username, password string) string {
	t.Helper()
	res := f.do(t, http.MethodPost, "/auth/login", "", map[string]string{"username": username, "password": password})
	if res.Code != http.StatusOK {
		t.Fatalf("login %s: status %d body %s", username, res.Code, res.Body.String())
	}
	var body tokenResponse
	decodeBody(t, res, &body)
	return body.Token
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

// createCross creates a two-task cross as admin and returns it.
func (f *fixture) createCross(t *testing.T) domain.Cross {
	t.Helper()
	res := f.do(t, http.MethodPost, "/crosses", f.adminToken, map[string]any{
		"tasks": []map[string]string{
			sampleTask("Fountain", "12"),
			sampleTask("Tower", "1894"),
		},
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("create cross: status %d body %s", res.Code, res.Body.String())
	}
	var cross domain.Cross
	decodeBody(t, res, &cross)
	return cross
}

func sampleTask(name, answer string) map[string]string {
	return map[string]string{
		"name":           name,
		"coordinates":    "55.75, 37.61",
		"description":    "Find the " + name,
		"correct_answer": answer,
		"hint1":          name + " hint one",
		"hint2":          name + " hint two",
		"hint3":          name + " hint three",
	}
}

func decodeBody(t *testing.T, res *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(res.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", res.Body.String(), err)
	}
}

func detailOf(t *testing.T, res *httptest.ResponseRecorder) string {
	t.Helper()
	var body detailResponse
	decodeBody(t, res, &body)
	return body.Detail
}

func ptr[T any](v T) *T {
	return &v
}
