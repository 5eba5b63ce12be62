package http

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"hightechcross/internal/domain"
	"golang.org/x/time/rate"
)

func TestSystemRoutes(t *testing.T) {
	f := newFixture(t)

	res := f.do(t, http.MethodGet, "/healthz", "", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", res.Code)
	}
	res = f.do(t, http.MethodGet, "/version", "", nil)
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), `"version":"test"`) {
		t.Fatalf("version: got %d %s", res.Code, res.Body.String())
	}
	res = f.do(t, http.MethodGet, "/nowhere", "", nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("unknown route: expected 404, got %d", res.Code)
	}
	res = f.do(t, http.MethodOptions, "/crosses", "", nil)
	if res.Code != http.StatusNoContent || res.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("preflight: got %d %v", res.Code, res.Header())
	}
}

func TestAuthentication(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		body       any
		wantStatus int
	}{
		{"Login_WrongPassword", http.MethodPost, "/auth/login", "", map[string]string{"username": "owls", "password": "nope"}, http.StatusUnauthorized},
		{"Login_UnknownUser", http.MethodPost, "/auth/login", "", map[string]string{"username": "ghost", "password": "x"}, http.StatusUnauthorized},
		{"Login_InvalidBody", http.MethodPost, "/auth/login", "", "not a json", http.StatusBadRequest},
		{"Tasks_NoToken", http.MethodGet, "/tasks", "", nil, http.StatusUnauthorized},
		{"Tasks_GarbageToken", http.MethodGet, "/tasks", "garbage", nil, http.StatusUnauthorized},
		{"Crosses_TeamForbidden", http.MethodGet, "/crosses", f.teamToken, nil, http.StatusForbidden},
		{"Crosses_Admin", http.MethodGet, "/crosses", f.adminToken, nil, http.StatusOK},
		{"Users_Team", http.MethodGet, "/users", f.teamToken, nil, http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := f.do(t, tc.method, tc.path, tc.token, tc.body)
			if res.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tc.wantStatus, res.Code, res.Body.String())
			}
		})
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	f := newFixture(t)
	token := f.login(t, "owls", "owlspass")

	res := f.do(t, http.MethodPost, "/auth/logout", token, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", res.Code)
	}
	if got := detailOf(t, res); got != "Successfully logged out." {
		t.Fatalf("unexpected detail %q", got)
	}
	res = f.do(t, http.MethodGet, "/users", token, nil)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("revoked token: expected 401, got %d", res.Code)
	}
	res = f.do(t, http.MethodGet, "/users", f.teamToken, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("other token: expected 200, got %d", res.Code)
	}
}

func TestCrossLifecycle(t *testing.T) {
	f := newFixture(t)
	cross := f.createCross(t)
	if cross.Status != domain.CrossCreated || len(cross.Tasks) != 2 || cross.StartTime != nil {
		t.Fatalf("unexpected created cross: %+v", cross)
	}
	path := fmt.Sprintf("/crosses/%d", cross.ID)

	res := f.do(t, http.MethodPost, path+"/start", f.adminToken, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("start: expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var started domain.Cross
	decodeBody(t, res, &started)
	if started.Status != domain.CrossStarted || started.EndTime.Sub(*started.StartTime) != 20*time.Minute {
		t.Fatalf("unexpected started cross: %+v", started)
	}

	res = f.do(t, http.MethodPost, path+"/start", f.adminToken, nil)
	if res.Code != http.StatusMethodNotAllowed || detailOf(t, res) != "some cross has already started" {
		t.Fatalf("restart: got %d %s", res.Code, res.Body.String())
	}

	other := f.createCross(t)
	res = f.do(t, http.MethodPost, fmt.Sprintf("/crosses/%d/start", other.ID), f.adminToken, nil)
	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("second start: expected 405, got %d", res.Code)
	}

	res = f.do(t, http.MethodGet, "/crosses", f.adminToken, nil)
	var all []domain.Cross
	decodeBody(t, res, &all)
	if len(all) != 2 {
		t.Fatalf("expected 2 crosses, got %d", len(all))
	}

	res = f.do(t, http.MethodDelete, path, f.adminToken, nil)
	if res.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", res.Code)
	}
	res = f.do(t, http.MethodGet, path, f.adminToken, nil)
	if res.Code != http.StatusNotFound || detailOf(t, res) != "cross not found" {
		t.Fatalf("get deleted: got %d %s", res.Code, res.Body.String())
	}
	res = f.do(t, http.MethodPost, fmt.Sprintf("/crosses/%d/start", other.ID), f.adminToken, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("start after delete: expected 200, got %d", res.Code)
	}
}

func TestCreateCrossValidation(t *testing.T) {
	f := newFixture(t)
	task := sampleTask("Fountain", "12")
	task["hint3"] = ""
	res := f.do(t, http.MethodPost, "/crosses", f.adminToken, map[string]any{"tasks": []map[string]string{task}})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if !strings.Contains(detailOf(t, res), "hint3") {
		t.Fatalf("expected detail to name the field, got %q", detailOf(t, res))
	}
}

func TestTeamFlow(t *testing.T) {
	f := newFixture(t)
	cross := f.createCross(t)
	fountain := cross.Tasks[0]

	res := f.do(t, http.MethodGet, "/tasks", f.teamToken, nil)
	if res.Code != http.StatusMethodNotAllowed || detailOf(t, res) != "cross not started" {
		t.Fatalf("tasks before start: got %d %s", res.Code, res.Body.String())
	}
	submit := fmt.Sprintf("/tasks/%d/submit", fountain.ID)
	res = f.do(t, http.MethodPost, submit+"?answer=12", f.teamToken, nil)
	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("submit before start: expected 405, got %d", res.Code)
	}

	f.do(t, http.MethodPost, fmt.Sprintf("/crosses/%d/start", cross.ID), f.adminToken, nil)

	res = f.do(t, http.MethodPost, submit, f.teamToken, nil)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("submit without answer: expected 400, got %d", res.Code)
	}

	var first, again domain.Answer
	res = f.do(t, http.MethodPost, submit+"?answer=11", f.teamToken, nil)
	decodeBody(t, res, &first)
	res = f.do(t, http.MethodPost, submit+"?answer=11", f.teamToken, nil)
	decodeBody(t, res, &again)
	if first.IsCorrect || first.ID == 0 || first.ID != again.ID {
		t.Fatalf("expected one wrong answer row, got %+v and %+v", first, again)
	}
	res = f.do(t, http.MethodPost, submit+"?answer=12", f.teamToken, nil)
	var correct domain.Answer
	decodeBody(t, res, &correct)
	if !correct.IsCorrect {
		t.Fatalf("expected exact answer to be correct: %+v", correct)
	}

	hints := fmt.Sprintf("/tasks/%d/hints/", fountain.ID)
	res = f.do(t, http.MethodPost, hints+"1", f.teamToken, nil)
	if res.Code != http.StatusMethodNotAllowed || !strings.Contains(detailOf(t, res), "open hint 0 first") {
		t.Fatalf("out of order hint: got %d %s", res.Code, res.Body.String())
	}
	for _, bad := range []string{"3", "-1", "x"} {
		res = f.do(t, http.MethodPost, hints+bad, f.teamToken, nil)
		if res.Code != http.StatusBadRequest {
			t.Fatalf("hint %q: expected 400, got %d", bad, res.Code)
		}
	}
	res = f.do(t, http.MethodPost, hints+"0", f.teamToken, nil)
	var hint hintResponse
	decodeBody(t, res, &hint)
	if hint.Hint != "Fountain hint one" {
		t.Fatalf("unexpected hint %q", hint.Hint)
	}

	res = f.do(t, http.MethodGet, "/tasks", f.teamToken, nil)
	var views []domain.TaskView
	decodeBody(t, res, &views)
	if len(views) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(views))
	}
	if views[0].Status != domain.AnswerCorrect || len(views[0].Hints) != 1 {
		t.Fatalf("unexpected fountain view: %+v", views[0])
	}
	if views[1].Status != domain.AnswerNotStarted || len(views[1].Hints) != 0 {
		t.Fatalf("unexpected tower view: %+v", views[1])
	}

	res = f.do(t, http.MethodPost, "/tasks/9999/submit?answer=1", f.teamToken, nil)
	if res.Code != http.StatusNotFound || detailOf(t, res) != "task not found" {
		t.Fatalf("unknown task: got %d %s", res.Code, res.Body.String())
	}

	f.clock.Advance(21 * time.Minute)
	res = f.do(t, http.MethodPost, submit+"?answer=13", f.teamToken, nil)
	if res.Code != http.StatusBadRequest || detailOf(t, res) != "cross finished" {
		t.Fatalf("late submit: got %d %s", res.Code, res.Body.String())
	}
}

type resultRow struct {
	Team           string `json:"team"`
	CompletedTasks int    `json:"completed_tasks"`
	PenaltyTime    string `json:"penalty_time"`
	PenaltySeconds int64  `json:"penalty_seconds"`
	Tasks          []struct {
		Name   string `json:"name"`
		Status bool   `json:"status"`
	} `json:"tasks"`
}

func TestResultsPenalty(t *testing.T) {
	f := newFixture(t)
	cross := f.createCross(t)
	fountain := cross.Tasks[0]
	results := fmt.Sprintf("/crosses/%d/results", cross.ID)

	res := f.do(t, http.MethodGet, results, f.adminToken, nil)
	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("results before start: expected 405, got %d", res.Code)
	}

	f.do(t, http.MethodPost, fmt.Sprintf("/crosses/%d/start", cross.ID), f.adminToken, nil)
	f.do(t, http.MethodPost, fmt.Sprintf("/tasks/%d/hints/0", fountain.ID), f.teamToken, nil)
	f.do(t, http.MethodPost, fmt.Sprintf("/tasks/%d/submit?answer=1", fountain.ID), f.teamToken, nil)
	f.do(t, http.MethodPost, fmt.Sprintf("/tasks/%d/submit?answer=2", fountain.ID), f.teamToken, nil)
	f.clock.Advance(10 * time.Minute)
	f.do(t, http.MethodPost, fmt.Sprintf("/tasks/%d/submit?answer=12", fountain.ID), f.teamToken, nil)

	res = f.do(t, http.MethodGet, results, f.adminToken, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("results: expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var rows []resultRow
	decodeBody(t, res, &rows)
	if len(rows) != 1 {
		t.Fatalf("expected only the team row, got %+v", rows)
	}
	row := rows[0]
	if row.Team != "owls" || row.CompletedTasks != 1 {
		t.Fatalf("unexpected row: %+v", row)
	}
	if row.PenaltyTime != "01:25:00" || row.PenaltySeconds != 85*60 {
		t.Fatalf("expected 85 minutes of penalty, got %s (%d)", row.PenaltyTime, row.PenaltySeconds)
	}
	if len(row.Tasks) != 2 || !row.Tasks[0].Status || row.Tasks[1].Status {
		t.Fatalf("unexpected task flags: %+v", row.Tasks)
	}

	f.clock.Advance(15 * time.Minute)
	f.do(t, http.MethodGet, results, f.adminToken, nil)
	res = f.do(t, http.MethodGet, fmt.Sprintf("/crosses/%d", cross.ID), f.adminToken, nil)
	var finished domain.Cross
	decodeBody(t, res, &finished)
	if finished.Status != domain.CrossFinished {
		t.Fatalf("expected results read to finish the cross, got %s", finished.Status)
	}
	res = f.do(t, http.MethodPost, fmt.Sprintf("/crosses/%d/start", cross.ID), f.adminToken, nil)
	if res.Code != http.StatusMethodNotAllowed || !strings.Contains(detailOf(t, res), "already finished") {
		t.Fatalf("restart finished: got %d %s", res.Code, res.Body.String())
	}
}

func TestUserRoutes(t *testing.T) {
	f := newFixture(t)

	res := f.do(t, http.MethodPost, "/users", f.adminToken, map[string]any{
		"username": "foxes", "password": "foxpass", "email": "foxes@example.com", "first_name": "Fox",
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", res.Code, res.Body.String())
	}
	if strings.Contains(res.Body.String(), "password") {
		t.Fatalf("password leaked: %s", res.Body.String())
	}
	var foxes domain.User
	decodeBody(t, res, &foxes)
	if !foxes.InGroup(domain.TeamGroup) {
		t.Fatalf("expected team group by default, got %v", foxes.Groups)
	}

	res = f.do(t, http.MethodPost, "/users", f.adminToken, map[string]any{"username": "foxes", "password": "x"})
	if res.Code != http.StatusBadRequest || detailOf(t, res) != "a user with that username already exists" {
		t.Fatalf("duplicate: got %d %s", res.Code, res.Body.String())
	}
	res = f.do(t, http.MethodPost, "/users", f.adminToken, map[string]any{"username": "bad", "password": "x", "email": "nope"})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("bad email: expected 400, got %d", res.Code)
	}

	res = f.do(t, http.MethodGet, "/users?email=foxes@example.com", f.adminToken, nil)
	var found []domain.User
	decodeBody(t, res, &found)
	if len(found) != 1 || found[0].ID != foxes.ID {
		t.Fatalf("filter by email: got %+v", found)
	}

	res = f.do(t, http.MethodGet, "/users?ordering=-username", f.adminToken, nil)
	var ordered []domain.User
	decodeBody(t, res, &ordered)
	if len(ordered) != 3 || ordered[0].Username != "owls" || ordered[2].Username != "admin" {
		t.Fatalf("ordering: got %+v", ordered)
	}

	userPath := fmt.Sprintf("/users/%d", foxes.ID)
	res = f.do(t, http.MethodPatch, userPath, f.adminToken, map[string]any{"last_name": "Den"})
	var patched domain.User
	decodeBody(t, res, &patched)
	if patched.LastName != "Den" || patched.FirstName != "Fox" {
		t.Fatalf("patch: got %+v", patched)
	}
	res = f.do(t, http.MethodPut, userPath, f.adminToken, map[string]any{"first_name": "X"})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("put without username: expected 400, got %d", res.Code)
	}
	res = f.do(t, http.MethodPut, userPath, f.adminToken, map[string]any{"username": "foxes", "password": "newpass"})
	if res.Code != http.StatusOK {
		t.Fatalf("put: expected 200, got %d: %s", res.Code, res.Body.String())
	}
	f.login(t, "foxes", "newpass")

	res = f.do(t, http.MethodDelete, userPath, f.adminToken, nil)
	if res.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", res.Code)
	}
	res = f.do(t, http.MethodGet, userPath, f.adminToken, nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("get deleted: expected 404, got %d", res.Code)
	}
}

func TestTeamCannotGrantItselfStaff(t *testing.T) {
	f := newFixture(t)
	selfPath := fmt.Sprintf("/users/%d", f.team.ID)

	for _, body := range []map[string]any{
		{"is_staff": true},
		{"groups": []string{"admin"}},
	} {
		res := f.do(t, http.MethodPatch, selfPath, f.teamToken, body)
		if res.Code != http.StatusForbidden {
			t.Fatalf("patch %v: expected 403, got %d: %s", body, res.Code, res.Body.String())
		}
	}
	res := f.do(t, http.MethodPost, "/users", f.teamToken, map[string]any{"username": "moles", "password": "x", "is_staff": true})
	if res.Code != http.StatusForbidden {
		t.Fatalf("create staff as team: expected 403, got %d", res.Code)
	}

	u, err := f.svc.Users.Get(context.Background(), f.team.ID)
	if err != nil {
		t.Fatalf("get team: %v", err)
	}
	if u.IsStaff || len(u.Groups) != 1 || u.Groups[0] != domain.TeamGroup {
		t.Fatalf("team account changed: %+v", u)
	}
	if res := f.do(t, http.MethodGet, "/crosses", f.teamToken, nil); res.Code != http.StatusForbidden {
		t.Fatalf("crosses as team: expected 403, got %d", res.Code)
	}

	res = f.do(t, http.MethodPatch, selfPath, f.teamToken, map[string]any{"first_name": "Owl"})
	if res.Code != http.StatusOK {
		t.Fatalf("plain patch as team: expected 200, got %d: %s", res.Code, res.Body.String())
	}
	res = f.do(t, http.MethodPatch, selfPath, f.adminToken, map[string]any{"is_staff": true})
	var promoted domain.User
	decodeBody(t, res, &promoted)
	if res.Code != http.StatusOK || !promoted.IsStaff {
		t.Fatalf("admin promote: got %d %+v", res.Code, promoted)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	h := RateLimitMiddleware(rate.Every(time.Hour), 2)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	call := func(remote string) int {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = remote
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w.Code
	}
	for i := 0; i < 2; i++ {
		if got := call("10.0.0.1:5000"); got != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, got)
		}
	}
	if got := call("10.0.0.1:5001"); got != http.StatusTooManyRequests {
		t.Fatalf("expected 429 once the burst is spent, got %d", got)
	}
	if got := call("10.0.0.2:5000"); got != http.StatusOK {
		t.Fatalf("other clients keep their own bucket, got %d", got)
	}
}

func TestIPLimitersDropIdleClients(t *testing.T) {
	clock := &testClock{now: time.Now()}
	limiters := newIPLimiters(rate.Every(time.Hour), 1, time.Minute, clock.Now)

	if !limiters.allow("10.0.0.1") || !limiters.allow("10.0.0.2") {
		t.Fatalf("first request of each client should pass")
	}
	if limiters.allow("10.0.0.1") {
		t.Fatalf("expected the spent bucket to throttle")
	}

	clock.Advance(30 * time.Second)
	limiters.allow("10.0.0.2")
	clock.Advance(45 * time.Second)
	limiters.allow("10.0.0.3")
	if got := limiters.size(); got != 2 {
		t.Fatalf("expected the idle client dropped, %d buckets left", got)
	}
	if !limiters.allow("10.0.0.1") {
		t.Fatalf("a dropped client starts with a fresh bucket")
	}
}
