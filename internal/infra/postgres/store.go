package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"hightechcross/internal/domain"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

const uniqueViolation = "23505"

// Store implements the app repositories on Postgres through bun.
type Store struct {
	db *bun.DB
}

// Open connects bun to the Postgres instance at dsn.
func Open(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

// CreateCross inserts the cross and all of its tasks in one transaction.
func (s *Store) CreateCross(ctx context.Context, cross *domain.Cross) error {
	m := &crossModel{Status: string(domain.CrossCreated)}
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(m).Exec(ctx); err != nil {
			return fmt.Errorf("insert cross: %w", err)
		}
		if len(cross.Tasks) == 0 {
			return nil
		}
		tasks := make([]*taskModel, 0, len(cross.Tasks))
		for _, t := range cross.Tasks {
			tm := newTaskModel(t)
			tm.ID = 0
			tm.CrossID = m.ID
			tasks = append(tasks, tm)
		}
		if _, err := tx.NewInsert().Model(&tasks).Exec(ctx); err != nil {
			return fmt.Errorf("insert tasks: %w", err)
		}
		m.Tasks = tasks
		return nil
	})
	if err != nil {
		return err
	}
	*cross = m.toDomain()
	return nil
}

func (s *Store) GetCross(ctx context.Context, id int64) (domain.Cross, error) {
	m := new(crossModel)
	err := s.db.NewSelect().
		Model(m).
		Relation("Tasks", orderTasks).
		Where("c.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Cross{}, domain.ErrCrossNotFound
		}
		return domain.Cross{}, fmt.Errorf("load cross: %w", err)
	}
	return m.toDomain(), nil
}

func (s *Store) ListCrosses(ctx context.Context) ([]domain.Cross, error) {
	var ms []*crossModel
	err := s.db.NewSelect().
		Model(&ms).
		Relation("Tasks", orderTasks).
		Order("c.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list crosses: %w", err)
	}
	out := make([]domain.Cross, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.toDomain())
	}
	return out, nil
}

// DeleteCross relies on ON DELETE CASCADE for tasks, hints and answers.
func (s *Store) DeleteCross(ctx context.Context, id int64) error {
	res, err := s.db.NewDelete().
		Model((*crossModel)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete cross: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrCrossNotFound
	}
	return nil
}

// TransitionCross locks the target row, looks up the running cross and
// applies fn in a single transaction. The crosses_single_started index turns
// a lost race between two starts into ErrCrossAlreadyStarted.
func (s *Store) TransitionCross(ctx context.Context, id int64, fn func(cross *domain.Cross, active *domain.Cross) (bool, error)) (domain.Cross, error) {
	var result domain.Cross
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		target := new(crossModel)
		err := tx.NewSelect().Model(target).Where("c.id = ?", id).For("UPDATE").Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrCrossNotFound
			}
			return fmt.Errorf("lock cross: %w", err)
		}

		var active *domain.Cross
		started := new(crossModel)
		err = tx.NewSelect().
			Model(started).
			Where("c.status = ?", string(domain.CrossStarted)).
			Limit(1).
			Scan(ctx)
		switch {
		case err == nil:
			c := started.toDomain()
			active = &c
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("load started cross: %w", err)
		}

		cross := target.toDomain()
		changed, err := fn(&cross, active)
		if err != nil {
			return err
		}
		result = cross
		if !changed {
			return nil
		}

		target.StartTime = cross.StartTime
		target.EndTime = cross.EndTime
		target.Status = string(cross.Status)
		_, err = tx.NewUpdate().
			Model(target).
			Column("start_time", "end_time", "status").
			WherePK().
			Exec(ctx)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.ErrCrossAlreadyStarted
			}
			return fmt.Errorf("update cross: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Cross{}, err
	}
	return result, nil
}

func (s *Store) StartedCross(ctx context.Context) (domain.Cross, error) {
	m := new(crossModel)
	err := s.db.NewSelect().
		Model(m).
		Relation("Tasks", orderTasks).
		Where("c.status = ?", string(domain.CrossStarted)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Cross{}, domain.ErrCrossNotStarted
		}
		return domain.Cross{}, fmt.Errorf("load started cross: %w", err)
	}
	return m.toDomain(), nil
}

func (s *Store) GetTask(ctx context.Context, id int64) (domain.Task, error) {
	m := new(taskModel)
	if err := s.db.NewSelect().Model(m).Where("t.id = ?", id).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Task{}, domain.ErrTaskNotFound
		}
		return domain.Task{}, fmt.Errorf("load task: %w", err)
	}
	return m.toDomain(), nil
}

func (s *Store) ListTasks(ctx context.Context, crossID int64) ([]domain.Task, error) {
	var ms []*taskModel
	err := s.db.NewSelect().
		Model(&ms).
		Where("t.cross_id = ?", crossID).
		Order("t.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	out := make([]domain.Task, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.toDomain())
	}
	return out, nil
}

// LoadTasks lets the store act as the loader behind a task catalog.
func (s *Store) LoadTasks(ctx context.Context, crossID int64) ([]domain.Task, error) {
	return s.ListTasks(ctx, crossID)
}

// UpdateHint creates the (task, team) counter if needed, locks it and stores
// the value fn returns. Nothing is written when fn fails.
func (s *Store) UpdateHint(ctx context.Context, taskID, teamID int64, fn func(unlocked int) (int, error)) (domain.HintTaken, error) {
	var result domain.HintTaken
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().
			Model(&hintTakenModel{TaskID: taskID, TeamID: teamID}).
			On("CONFLICT (task_id, team_id) DO NOTHING").
			Returning("NULL").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("insert hint counter: %w", err)
		}

		m := new(hintTakenModel)
		err = tx.NewSelect().
			Model(m).
			Where("h.task_id = ?", taskID).
			Where("h.team_id = ?", teamID).
			For("UPDATE").
			Scan(ctx)
		if err != nil {
			return fmt.Errorf("lock hint counter: %w", err)
		}

		next, err := fn(m.HintNumber)
		if err != nil {
			return err
		}
		if next != m.HintNumber {
			m.HintNumber = next
			if _, err := tx.NewUpdate().Model(m).Column("hint_number").WherePK().Exec(ctx); err != nil {
				return fmt.Errorf("update hint counter: %w", err)
			}
		}
		result = m.toDomain()
		return nil
	})
	if err != nil {
		return domain.HintTaken{}, err
	}
	return result, nil
}

func (s *Store) HintsTaken(ctx context.Context, teamID, crossID int64) (map[int64]int, error) {
	var ms []hintTakenModel
	err := s.db.NewSelect().
		Model(&ms).
		Join("JOIN tasks AS t ON t.id = h.task_id").
		Where("h.team_id = ?", teamID).
		Where("t.cross_id = ?", crossID).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list hints: %w", err)
	}
	out := make(map[int64]int, len(ms))
	for _, m := range ms {
		out[m.TaskID] = m.HintNumber
	}
	return out, nil
}

// FindOrCreateAnswer is an atomic get-or-insert keyed by unique_team_answer.
func (s *Store) FindOrCreateAnswer(ctx context.Context, a *domain.Answer) (bool, error) {
	var created bool
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewInsert().
			Model(&answerModel{
				TeamID:      a.TeamID,
				TaskID:      a.TaskID,
				Answer:      a.Answer,
				SubmittedAt: a.SubmittedAt,
				IsCorrect:   a.IsCorrect,
			}).
			On("CONFLICT (team_id, task_id, answer) DO NOTHING").
			Returning("NULL").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("insert answer: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			created = n > 0
		}

		m := new(answerModel)
		err = tx.NewSelect().
			Model(m).
			Where("a.team_id = ?", a.TeamID).
			Where("a.task_id = ?", a.TaskID).
			Where("a.answer = ?", a.Answer).
			Scan(ctx)
		if err != nil {
			return fmt.Errorf("load answer: %w", err)
		}
		*a = m.toDomain()
		return nil
	})
	return created, err
}

func (s *Store) TeamAnswers(ctx context.Context, teamID, crossID int64) ([]domain.Answer, error) {
	var ms []answerModel
	err := s.db.NewSelect().
		Model(&ms).
		Join("JOIN tasks AS t ON t.id = a.task_id").
		Where("a.team_id = ?", teamID).
		Where("t.cross_id = ?", crossID).
		Order("a.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	out := make([]domain.Answer, 0, len(ms))
	for i := range ms {
		out = append(out, ms[i].toDomain())
	}
	return out, nil
}

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	m := newUserModel(*u)
	m.ID = 0
	if _, err := s.db.NewInsert().Model(m).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrUsernameTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	u.ID = m.ID
	return nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (domain.User, error) {
	return s.getUser(ctx, "u.id = ?", id)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	return s.getUser(ctx, "u.username = ?", username)
}

func (s *Store) getUser(ctx context.Context, where string, arg interface{}) (domain.User, error) {
	m := new(userModel)
	if err := s.db.NewSelect().Model(m).Where(where, arg).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	return m.toDomain(), nil
}

func (s *Store) UpdateUser(ctx context.Context, u *domain.User) error {
	res, err := s.db.NewUpdate().
		Model(newUserModel(*u)).
		Column("username", "email", "password", "first_name", "last_name", "is_staff", "groups").
		WherePK().
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrUsernameTaken
		}
		return fmt.Errorf("update user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	res, err := s.db.NewDelete().
		Model((*userModel)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

var userColumns = map[string]string{
	"id":          "id",
	"username":    "username",
	"email":       "email",
	"first_name":  "first_name",
	"last_name":   "last_name",
	"is_staff":    "is_staff",
	"date_joined": "date_joined",
}

func (s *Store) ListUsers(ctx context.Context, f domain.UserFilter) ([]domain.User, error) {
	var ms []*userModel
	q := s.db.NewSelect().Model(&ms)
	if f.Username != "" {
		q = q.Where("u.username = ?", f.Username)
	}
	if f.Email != "" {
		q = q.Where("u.email = ?", f.Email)
	}
	if f.FirstName != "" {
		q = q.Where("u.first_name = ?", f.FirstName)
	}
	if f.LastName != "" {
		q = q.Where("u.last_name = ?", f.LastName)
	}
	if col, ok := userColumns[f.OrderBy]; ok {
		dir := "ASC"
		if f.Desc {
			dir = "DESC"
		}
		q = q.OrderExpr("u.? "+dir, bun.Ident(col))
	}
	q = q.Order("u.id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make([]domain.User, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.toDomain())
	}
	return out, nil
}

func orderTasks(q *bun.SelectQuery) *bun.SelectQuery {
	return q.OrderExpr("t.id ASC")
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == uniqueViolation
}
