package postgres

import (
	"time"

	"hightechcross/internal/domain"
	"github.com/uptrace/bun"
)

type crossModel struct {
	bun.BaseModel `bun:"table:crosses,alias:c"`

	ID        int64        `bun:"id,pk,autoincrement"`
	StartTime *time.Time   `bun:"start_time"`
	EndTime   *time.Time   `bun:"end_time"`
	Status    string       `bun:"status,notnull"`
	Tasks     []*taskModel `bun:"rel:has-many,join:id=cross_id"`
}

func (m *crossModel) toDomain() domain.Cross {
	c := domain.Cross{
		ID:        m.ID,
		StartTime: m.StartTime,
		EndTime:   m.EndTime,
		Status:    domain.CrossStatus(m.Status),
		Tasks:     make([]domain.Task, 0, len(m.Tasks)),
	}
	for _, t := range m.Tasks {
		c.Tasks = append(c.Tasks, t.toDomain())
	}
	return c
}

type taskModel struct {
	bun.BaseModel `bun:"table:tasks,alias:t"`

	ID            int64  `bun:"id,pk,autoincrement"`
	CrossID       int64  `bun:"cross_id,notnull"`
	Name          string `bun:"name,notnull"`
	Coordinates   string `bun:"coordinates,notnull"`
	Description   string `bun:"description,notnull"`
	CorrectAnswer string `bun:"correct_answer,notnull"`
	Hint1         string `bun:"hint1,notnull"`
	Hint2         string `bun:"hint2,notnull"`
	Hint3         string `bun:"hint3,notnull"`
}

func newTaskModel(t domain.Task) *taskModel {
	return &taskModel{
		ID:            t.ID,
		CrossID:       t.CrossID,
		Name:          t.Name,
		Coordinates:   t.Coordinates,
		Description:   t.Description,
		CorrectAnswer: t.CorrectAnswer,
		Hint1:         t.Hint1,
		Hint2:         t.Hint2,
		Hint3:         t.Hint3,
	}
}

func (m *taskModel) toDomain() domain.Task {
	return domain.Task{
		ID:            m.ID,
		CrossID:       m.CrossID,
		Name:          m.Name,
		Coordinates:   m.Coordinates,
		Description:   m.Description,
		CorrectAnswer: m.CorrectAnswer,
		Hint1:         m.Hint1,
		Hint2:         m.Hint2,
		Hint3:         m.Hint3,
	}
}

type hintTakenModel struct {
	bun.BaseModel `bun:"table:hints_taken,alias:h"`

	ID         int64 `bun:"id,pk,autoincrement"`
	HintNumber int   `bun:"hint_number,notnull"`
	TaskID     int64 `bun:"task_id,notnull"`
	TeamID     int64 `bun:"team_id,notnull"`
}

func (m *hintTakenModel) toDomain() domain.HintTaken {
	return domain.HintTaken{ID: m.ID, TaskID: m.TaskID, TeamID: m.TeamID, HintNumber: m.HintNumber}
}

type answerModel struct {
	bun.BaseModel `bun:"table:answers,alias:a"`

	ID          int64     `bun:"id,pk,autoincrement"`
	TeamID      int64     `bun:"team_id,notnull"`
	TaskID      int64     `bun:"task_id,notnull"`
	Answer      string    `bun:"answer,notnull"`
	SubmittedAt time.Time `bun:"submitted_at,notnull"`
	IsCorrect   bool      `bun:"is_correct,notnull"`
}

func (m *answerModel) toDomain() domain.Answer {
	return domain.Answer{
		ID:          m.ID,
		TeamID:      m.TeamID,
		TaskID:      m.TaskID,
		Answer:      m.Answer,
		SubmittedAt: m.SubmittedAt.UTC(),
		IsCorrect:   m.IsCorrect,
	}
}

type userModel struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID         int64     `bun:"id,pk,autoincrement"`
	Username   string    `bun:"username,notnull"`
	Email      string    `bun:"email,notnull"`
	Password   string    `bun:"password,notnull"`
	FirstName  string    `bun:"first_name,notnull"`
	LastName   string    `bun:"last_name,notnull"`
	IsStaff    bool      `bun:"is_staff,notnull"`
	Groups     []string  `bun:"groups,array"`
	DateJoined time.Time `bun:"date_joined,notnull"`
}

func newUserModel(u domain.User) *userModel {
	groups := u.Groups
	if groups == nil {
		groups = []string{}
	}
	return &userModel{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		Password:   u.PasswordHash,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		IsStaff:    u.IsStaff,
		Groups:     groups,
		DateJoined: u.DateJoined,
	}
}

func (m *userModel) toDomain() domain.User {
	groups := m.Groups
	if groups == nil {
		groups = []string{}
	}
	return domain.User{
		ID:           m.ID,
		Username:     m.Username,
		Email:        m.Email,
		PasswordHash: m.Password,
		FirstName:    m.FirstName,
		LastName:     m.LastName,
		IsStaff:      m.IsStaff,
		Groups:       groups,
		DateJoined:   m.DateJoined.UTC(),
	}
}
