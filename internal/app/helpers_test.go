package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"hightechcross/internal/app"
	"hightechcross/internal/domain"
	"hightechcross/internal/infra/memory"
	"golang.org/x/crypto/bcrypt"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 10, 18, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type env struct {
	store   *memory.Store
	clock   *clock
	crosses *app.CrossService
	hunt    *app.HuntService
	users   *app.UserService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := memory.NewStore()
	catalog := memory.NewTaskCatalog(store, time.Minute)
	clk := newClock()
	opts := []app.Option{app.WithClock(clk.Now), app.WithPasswordCost(bcrypt.MinCost)}
	return &env{
		store:   store,
		clock:   clk,
		crosses: app.NewCrossService(store, catalog, store, opts...),
		hunt:    app.NewHuntService(store, store, catalog, store, store, opts...),
		users:   app.NewUserService(store, opts...),
	}
}

func (e *env) cross(t *testing.T) domain.Cross {
	t.Helper()
	cross, err := e.crosses.Create(context.Background(), app.CrossInput{Tasks: []app.TaskInput{
		taskInput("Fountain", "12"),
		taskInput("Tower", "1894"),
	}})
	if err != nil {
		t.Fatalf("create cross: %v", err)
	}
	return cross
}

func (e *env) team(t *testing.T, name string) domain.User {
	t.Helper()
	u, err := e.users.Create(context.Background(), app.UserInput{Username: &name, Password: strPtr(name + "-pass")})
	if err != nil {
		t.Fatalf("create team %s: %v", name, err)
	}
	return u
}

func taskInput(name, answer string) app.TaskInput {
	return app.TaskInput{
		Name:          name,
		Coordinates:   "55.75, 37.61",
		Description:   "Find the " + name,
		CorrectAnswer: answer,
		Hint1:         name + " hint one",
		Hint2:         name + " hint two",
		Hint3:         name + " hint three",
	}
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }
