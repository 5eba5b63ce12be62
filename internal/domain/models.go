package domain

import (
	"fmt"
	"time"
)

// CrossStatus is the lifecycle state of a cross.
type CrossStatus string

const (
	CrossCreated  CrossStatus = "created"
	CrossStarted  CrossStatus = "started"
	CrossFinished CrossStatus = "finished"
)

// TeamGroup is the group every competing team belongs to.
const TeamGroup = "user"

// HintCount is the number of hints attached to every task.
const HintCount = 3

// Cross is a timed hunt made of tasks. At most one cross is started at a time.
type Cross struct {
	ID        int64       `json:"id"`
	StartTime *time.Time  `json:"start_time"`
	EndTime   *time.Time  `json:"end_time"`
	Status    CrossStatus `json:"status"`
	Tasks     []Task      `json:"tasks"`
}

// Expired reports whether a started cross has run past its end time.
func (c Cross) Expired(now time.Time) bool {
	return c.Status == CrossStarted && c.EndTime != nil && now.After(*c.EndTime)
}

// Task is a single checkpoint of a cross.
type Task struct {
	ID            int64  `json:"id"`
	CrossID       int64  `json:"cross"`
	Name          string `json:"name"`
	Coordinates   string `json:"coordinates"`
	Description   string `json:"description"`
	CorrectAnswer string `json:"correct_answer"`
	Hint1         string `json:"hint1"`
	Hint2         string `json:"hint2"`
	Hint3         string `json:"hint3"`
}

// Hint returns the 0-indexed hint text.
func (t Task) Hint(n int) string {
	switch n {
	case 0:
		return t.Hint1
	case 1:
		return t.Hint2
	case 2:
		return t.Hint3
	}
	return ""
}

// RevealedHints returns the first unlocked hints in order.
func (t Task) RevealedHints(unlocked int) []string {
	hints := make([]string, 0, HintCount)
	for i := 0; i < unlocked && i < HintCount; i++ {
		hints = append(hints, t.Hint(i))
	}
	return hints
}

// HintTaken counts how many hints a team has unlocked for a task.
type HintTaken struct {
	ID         int64 `json:"id"`
	TaskID     int64 `json:"task"`
	TeamID     int64 `json:"team"`
	HintNumber int   `json:"hint_number"`
}

// Answer is one distinct answer text submitted by a team for a task.
type Answer struct {
	ID          int64     `json:"id"`
	TeamID      int64     `json:"team"`
	TaskID      int64     `json:"task"`
	Answer      string    `json:"answer"`
	SubmittedAt time.Time `json:"submitted_at"`
	IsCorrect   bool      `json:"is_correct"`
}

// AnswerStatus summarises a team's progress on a task.
type AnswerStatus string

const (
	AnswerNotStarted AnswerStatus = "not started"
	AnswerCorrect    AnswerStatus = "correct"
	AnswerWrong      AnswerStatus = "wrong"
)

// TaskView is the team-facing projection of a task.
type TaskView struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Coordinates string       `json:"coordinates"`
	Description string       `json:"description"`
	Hints       []string     `json:"hints"`
	Status      AnswerStatus `json:"status"`
}

// User is an account. Teams are users in TeamGroup; admins are staff.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	IsStaff      bool      `json:"is_staff"`
	Groups       []string  `json:"groups"`
	DateJoined   time.Time `json:"date_joined"`
}

// InGroup reports group membership.
func (u User) InGroup(group string) bool {
	for _, g := range u.Groups {
		if g == group {
			return true
		}
	}
	return false
}

// UserFilter holds exact-match filters and ordering for listing users.
type UserFilter struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	OrderBy   string
	Desc      bool
}

// Team is the leaderboard identity of a user.
type Team struct {
	ID   int64
	Name string
}

// AttemptKey identifies the attempts of one team on one task.
type AttemptKey struct {
	TeamID int64
	TaskID int64
}

// Attempt aggregates a team's activity on a task.
type Attempt struct {
	SolvedAt     *time.Time
	WrongAnswers int
	HintsTaken   int
}

// Scoresheet is the raw material for computing results of a cross.
type Scoresheet struct {
	Teams    []Team
	Attempts map[AttemptKey]Attempt
}

// TaskResult marks whether a team completed a task.
type TaskResult struct {
	Name   string `json:"name"`
	Status bool   `json:"status"`
}

// TeamResult is one leaderboard row.
type TeamResult struct {
	Team           string       `json:"team"`
	CompletedTasks int          `json:"completed_tasks"`
	PenaltyTime    Duration     `json:"penalty_time"`
	PenaltySeconds int64        `json:"penalty_seconds"`
	Tasks          []TaskResult `json:"tasks"`
}

// Duration marshals as "HH:MM:SS", prefixed with "D " when it spans days.
type Duration time.Duration

func (d Duration) String() string {
	total := int64(time.Duration(d) / time.Second)
	sign := ""
	if total < 0 {
		sign = "-"
		total = -total
	}
	days := total / 86400
	hours := total % 86400 / 3600
	minutes := total % 3600 / 60
	seconds := total % 60
	if days > 0 {
		return fmt.Sprintf("%s%d %02d:%02d:%02d", sign, days, hours, minutes, seconds)
	}
	return fmt.Sprintf("%s%02d:%02d:%02d", sign, hours, minutes, seconds)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}
