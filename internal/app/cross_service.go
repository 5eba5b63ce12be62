package app

import (
	"context"
	"log/slog"

	"hightechcross/internal/domain"
)

// TaskInput is a task as submitted by an administrator.
type TaskInput struct {
	Name          string `json:"name" validate:"required,max=255"`
	Coordinates   string `json:"coordinates" validate:"required,max=255"`
	Description   string `json:"description" validate:"required,max=300"`
	CorrectAnswer string `json:"correct_answer" validate:"required,max=255"`
	Hint1         string `json:"hint1" validate:"required,max=300"`
	Hint2         string `json:"hint2" validate:"required,max=300"`
	Hint3         string `json:"hint3" validate:"required,max=300"`
}

// CrossInput creates a cross together with its tasks.
type CrossInput struct {
	Tasks []TaskInput `json:"tasks" validate:"required,dive"`
}

// CrossService contains the administrator use cases of a cross.
type CrossService struct {
	crosses   CrossRepository
	catalog   TaskCatalog
	standings StandingsReader
	cfg       settings
}

func NewCrossService(crosses CrossRepository, catalog TaskCatalog, standings StandingsReader, opts ...Option) *CrossService {
	return &CrossService{
		crosses:   crosses,
		catalog:   catalog,
		standings: standings,
		cfg:       newSettings(opts),
	}
}

// Create stores a new cross and all its tasks in one step.
func (s *CrossService) Create(ctx context.Context, in CrossInput) (domain.Cross, error) {
	if err := validateStruct(in); err != nil {
		return domain.Cross{}, err
	}
	cross := domain.Cross{
		Status: domain.CrossCreated,
		Tasks:  make([]domain.Task, 0, len(in.Tasks)),
	}
	for _, t := range in.Tasks {
		cross.Tasks = append(cross.Tasks, domain.Task{
			Name:          t.Name,
			Coordinates:   t.Coordinates,
			Description:   t.Description,
			CorrectAnswer: t.CorrectAnswer,
			Hint1:         t.Hint1,
			Hint2:         t.Hint2,
			Hint3:         t.Hint3,
		})
	}
	if err := s.crosses.CreateCross(ctx, &cross); err != nil {
		return domain.Cross{}, err
	}
	return cross, nil
}

func (s *CrossService) List(ctx context.Context) ([]domain.Cross, error) {
	return s.crosses.ListCrosses(ctx)
}

func (s *CrossService) Get(ctx context.Context, id int64) (domain.Cross, error) {
	return s.crosses.GetCross(ctx, id)
}

// Delete removes a cross with its tasks, hints and answers.
func (s *CrossService) Delete(ctx context.Context, id int64) error {
	if err := s.crosses.DeleteCross(ctx, id); err != nil {
		return err
	}
	s.catalog.Invalidate(ctx, id)
	return nil
}

// Start opens a cross for cfg.crossDuration. Only one cross may run at a time.
func (s *CrossService) Start(ctx context.Context, id int64) (domain.Cross, error) {
	cross, err := s.crosses.TransitionCross(ctx, id, func(c *domain.Cross, active *domain.Cross) (bool, error) {
		if c.Status == domain.CrossFinished {
			return false, domain.ErrCrossFinished
		}
		if active != nil {
			return false, domain.ErrCrossAlreadyStarted
		}
		start := s.cfg.now().UTC()
		end := start.Add(s.cfg.crossDuration)
		c.StartTime = &start
		c.EndTime = &end
		c.Status = domain.CrossStarted
		return true, nil
	})
	if err != nil {
		return domain.Cross{}, err
	}
	s.cfg.logger.Info("cross started",
		slog.Int64("cross_id", cross.ID),
		slog.Time("end_time", *cross.EndTime),
	)

	cross.Tasks, err = s.catalog.CrossTasks(ctx, id)
	if err != nil {
		return domain.Cross{}, err
	}
	return cross, nil
}

// Results computes the leaderboard of a cross. A started cross past its end
// time is marked finished as a side effect.
func (s *CrossService) Results(ctx context.Context, id int64) (domain.Cross, []domain.TeamResult, error) {
	now := s.cfg.now()
	finished := false
	cross, err := s.crosses.TransitionCross(ctx, id, func(c *domain.Cross, _ *domain.Cross) (bool, error) {
		if c.Status == domain.CrossCreated {
			return false, domain.ErrCrossNotStarted
		}
		if c.Expired(now) {
			c.Status = domain.CrossFinished
			finished = true
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		return domain.Cross{}, nil, err
	}
	if finished {
		s.cfg.logger.Info("cross finished", slog.Int64("cross_id", cross.ID))
	}

	tasks, err := s.catalog.CrossTasks(ctx, id)
	if err != nil {
		return domain.Cross{}, nil, err
	}
	sheet, err := s.standings.Standings(ctx, id)
	if err != nil {
		return domain.Cross{}, nil, err
	}
	cross.Tasks = tasks
	return cross, s.cfg.scoring.Results(cross, tasks, sheet), nil
}
