package app

import (
	"context"
	"time"

	"hightechcross/internal/domain"
)

// CrossTransition mutates cross in place and reports whether it changed.
// active is the currently started cross, if any (it may be cross itself).
type CrossTransition = func(cross *domain.Cross, active *domain.Cross) (bool, error)

// CrossRepository persists crosses and their tasks.
type CrossRepository interface {
	CreateCross(ctx context.Context, cross *domain.Cross) error
	GetCross(ctx context.Context, id int64) (domain.Cross, error)
	ListCrosses(ctx context.Context) ([]domain.Cross, error)
	DeleteCross(ctx context.Context, id int64) error
	// TransitionCross applies fn atomically with respect to other transitions.
	TransitionCross(ctx context.Context, id int64, fn CrossTransition) (domain.Cross, error)
	StartedCross(ctx context.Context) (domain.Cross, error)
}

// TaskRepository reads tasks.
type TaskRepository interface {
	GetTask(ctx context.Context, id int64) (domain.Task, error)
	ListTasks(ctx context.Context, crossID int64) ([]domain.Task, error)
}

// HintRepository tracks unlocked hints per (task, team).
type HintRepository interface {
	// UpdateHint fetches or creates the counter and stores the value returned by fn.
	UpdateHint(ctx context.Context, taskID, teamID int64, fn func(unlocked int) (int, error)) (domain.HintTaken, error)
	HintsTaken(ctx context.Context, teamID, crossID int64) (map[int64]int, error)
}

// AnswerRepository stores submitted answers.
type AnswerRepository interface {
	// FindOrCreateAnswer inserts a unless a row with the same team, task and
	// text exists; a is overwritten with the stored row.
	FindOrCreateAnswer(ctx context.Context, a *domain.Answer) (bool, error)
	TeamAnswers(ctx context.Context, teamID, crossID int64) ([]domain.Answer, error)
}

// StandingsReader aggregates attempts of every team for a cross.
type StandingsReader interface {
	Standings(ctx context.Context, crossID int64) (domain.Scoresheet, error)
}

// UserRepository persists accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, u *domain.User) error
	GetUser(ctx context.Context, id int64) (domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)
	UpdateUser(ctx context.Context, u *domain.User) error
	DeleteUser(ctx context.Context, id int64) error
	ListUsers(ctx context.Context, filter domain.UserFilter) ([]domain.User, error)
}

// TaskCatalog serves the (immutable) task list of a cross, usually from a cache.
type TaskCatalog interface {
	CrossTasks(ctx context.Context, crossID int64) ([]domain.Task, error)
	Invalidate(ctx context.Context, crossID int64)
}

// TokenStore remembers revoked token ids until they would have expired anyway.
type TokenStore interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}
