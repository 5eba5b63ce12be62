package app_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"hightechcross/internal/app"
	"hightechcross/internal/domain"
)

func startedEnv(t *testing.T) (*env, domain.Cross, domain.User) {
	t.Helper()
	e := newEnv(t)
	cross := e.cross(t)
	team := e.team(t, "owls")
	if _, err := e.crosses.Start(context.Background(), cross.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	return e, cross, team
}

func TestTasksRequireStartedCross(t *testing.T) {
	e := newEnv(t)
	e.cross(t)
	team := e.team(t, "owls")
	if _, err := e.hunt.Tasks(context.Background(), team.ID); !errors.Is(err, domain.ErrCrossNotStarted) {
		t.Fatalf("expected not started, got %v", err)
	}
}

func TestSubmitExactMatch(t *testing.T) {
	ctx := context.Background()
	e, cross, team := startedEnv(t)
	task := cross.Tasks[0]

	for _, tc := range []struct {
		answer  string
		correct bool
	}{
		{"12", true},
		{" 12", false},
		{"12.0", false},
	} {
		a, err := e.hunt.Submit(ctx, team.ID, task.ID, tc.answer)
		if err != nil {
			t.Fatalf("submit %q: %v", tc.answer, err)
		}
		if a.IsCorrect != tc.correct {
			t.Fatalf("answer %q: expected correct=%v", tc.answer, tc.correct)
		}
	}

	if _, err := e.hunt.Submit(ctx, team.ID, task.ID, ""); !errors.Is(err, domain.ErrAnswerRequired) {
		t.Fatalf("expected answer required, got %v", err)
	}
	if _, err := e.hunt.Submit(ctx, team.ID, 999, "12"); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Fatalf("expected task not found, got %v", err)
	}
}

func TestSubmitSameAnswerTwice(t *testing.T) {
	ctx := context.Background()
	e, cross, team := startedEnv(t)
	task := cross.Tasks[1]

	first, err := e.hunt.Submit(ctx, team.ID, task.ID, "1900")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	e.clock.Advance(time.Minute)
	second, err := e.hunt.Submit(ctx, team.ID, task.ID, "1900")
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if first.ID != second.ID || !second.SubmittedAt.Equal(first.SubmittedAt) {
		t.Fatalf("expected the stored answer back, got %+v and %+v", first, second)
	}
	answers, err := e.store.TeamAnswers(ctx, team.ID, cross.ID)
	if err != nil {
		t.Fatalf("team answers: %v", err)
	}
	if len(answers) != 1 {
		t.Fatalf("expected a single row, got %d", len(answers))
	}
}

func TestSubmitAnswerLength(t *testing.T) {
	ctx := context.Background()
	e, cross, team := startedEnv(t)
	task := cross.Tasks[0]

	if _, err := e.hunt.Submit(ctx, team.ID, task.ID, strings.Repeat("x", 255)); err != nil {
		t.Fatalf("submit 255 chars: %v", err)
	}
	_, err := e.hunt.Submit(ctx, team.ID, task.ID, strings.Repeat("x", 256))
	if !errors.Is(err, domain.ErrInvalidInput) || !strings.Contains(err.Error(), "answer: max=255") {
		t.Fatalf("expected length error, got %v", err)
	}
	answers, err := e.store.TeamAnswers(ctx, team.ID, cross.ID)
	if err != nil {
		t.Fatalf("team answers: %v", err)
	}
	if len(answers) != 1 {
		t.Fatalf("expected only the accepted answer stored, got %d", len(answers))
	}
}

func TestSubmitLooksUpTaskFirst(t *testing.T) {
	e, _, team := startedEnv(t)
	if _, err := e.hunt.Submit(context.Background(), team.ID, 999, ""); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Fatalf("expected task not found before answer check, got %v", err)
	}
}

func TestSubmitAfterEnd(t *testing.T) {
	e, cross, team := startedEnv(t)
	e.clock.Advance(app.DefaultCrossDuration + time.Second)
	if _, err := e.hunt.Submit(context.Background(), team.ID, cross.Tasks[0].ID, "12"); !errors.Is(err, domain.ErrCrossEnded) {
		t.Fatalf("expected cross finished, got %v", err)
	}
}

func TestHintsUnlockInOrder(t *testing.T) {
	ctx := context.Background()
	e, cross, team := startedEnv(t)
	task := cross.Tasks[0]

	_, err := e.hunt.Hint(ctx, team.ID, task.ID, 1)
	if !errors.Is(err, domain.ErrHintOutOfOrder) || !strings.Contains(err.Error(), "open hint 0 first") {
		t.Fatalf("expected out of order, got %v", err)
	}
	hints, _ := e.store.HintsTaken(ctx, team.ID, cross.ID)
	if len(hints) != 0 {
		t.Fatalf("a rejected hint must not create a counter, got %v", hints)
	}

	for n, want := range []string{"Fountain hint one", "Fountain hint two", "Fountain hint three"} {
		got, err := e.hunt.Hint(ctx, team.ID, task.ID, n)
		if err != nil {
			t.Fatalf("hint %d: %v", n, err)
		}
		if got != want {
			t.Fatalf("hint %d: expected %q, got %q", n, want, got)
		}
	}
	// Re-reading an unlocked hint is allowed and does not change the counter.
	if _, err := e.hunt.Hint(ctx, team.ID, task.ID, 0); err != nil {
		t.Fatalf("re-read hint: %v", err)
	}
	hints, _ = e.store.HintsTaken(ctx, team.ID, cross.ID)
	if hints[task.ID] != 3 {
		t.Fatalf("expected 3 hints unlocked, got %d", hints[task.ID])
	}

	for _, n := range []int{-1, 3} {
		if _, err := e.hunt.Hint(ctx, team.ID, task.ID, n); !errors.Is(err, domain.ErrInvalidHintNumber) {
			t.Fatalf("hint %d: expected invalid number, got %v", n, err)
		}
	}
}

func TestHintRequiresStartedCross(t *testing.T) {
	e := newEnv(t)
	cross := e.cross(t)
	team := e.team(t, "owls")
	if _, err := e.hunt.Hint(context.Background(), team.ID, cross.Tasks[0].ID, 0); !errors.Is(err, domain.ErrCrossNotStarted) {
		t.Fatalf("expected not started, got %v", err)
	}
}

func TestTasksView(t *testing.T) {
	ctx := context.Background()
	e, cross, team := startedEnv(t)
	other := e.team(t, "foxes")
	fountain, tower := cross.Tasks[0], cross.Tasks[1]

	if _, err := e.hunt.Hint(ctx, team.ID, fountain.ID, 0); err != nil {
		t.Fatalf("hint: %v", err)
	}
	if _, err := e.hunt.Hint(ctx, team.ID, fountain.ID, 1); err != nil {
		t.Fatalf("hint: %v", err)
	}
	if _, err := e.hunt.Submit(ctx, team.ID, fountain.ID, "nope"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := e.hunt.Submit(ctx, team.ID, tower.ID, "nope"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := e.hunt.Submit(ctx, team.ID, tower.ID, "1894"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	views, err := e.hunt.Tasks(ctx, team.ID)
	if err != nil {
		t.Fatalf("tasks: %v", err)
	}
	if len(views) != 2 || views[0].ID != fountain.ID || views[1].ID != tower.ID {
		t.Fatalf("expected tasks in insertion order, got %+v", views)
	}
	if views[0].Status != domain.AnswerWrong || len(views[0].Hints) != 2 || views[0].Hints[1] != "Fountain hint two" {
		t.Fatalf("unexpected fountain view %+v", views[0])
	}
	if views[1].Status != domain.AnswerCorrect || len(views[1].Hints) != 0 {
		t.Fatalf("unexpected tower view %+v", views[1])
	}

	views, err = e.hunt.Tasks(ctx, other.ID)
	if err != nil {
		t.Fatalf("tasks: %v", err)
	}
	for _, v := range views {
		if v.Status != domain.AnswerNotStarted || len(v.Hints) != 0 {
			t.Fatalf("other team must see a clean view, got %+v", v)
		}
	}
}
