package app

import (
	"context"
	"fmt"

	"hightechcross/internal/domain"
)

// answerInput bounds a submitted answer to what the answers table stores.
type answerInput struct {
	Answer string `json:"answer" validate:"max=255"`
}

// HuntService contains the team-facing use cases of the running cross.
type HuntService struct {
	crosses CrossRepository
	tasks   TaskRepository
	catalog TaskCatalog
	hints   HintRepository
	answers AnswerRepository
	cfg     settings
}

func NewHuntService(crosses CrossRepository, tasks TaskRepository, catalog TaskCatalog, hints HintRepository, answers AnswerRepository, opts ...Option) *HuntService {
	return &HuntService{
		crosses: crosses,
		tasks:   tasks,
		catalog: catalog,
		hints:   hints,
		answers: answers,
		cfg:     newSettings(opts),
	}
}

// Tasks lists the tasks of the started cross as seen by one team.
func (s *HuntService) Tasks(ctx context.Context, teamID int64) ([]domain.TaskView, error) {
	cross, err := s.crosses.StartedCross(ctx)
	if err != nil {
		return nil, err
	}
	tasks, err := s.catalog.CrossTasks(ctx, cross.ID)
	if err != nil {
		return nil, err
	}
	unlocked, err := s.hints.HintsTaken(ctx, teamID, cross.ID)
	if err != nil {
		return nil, err
	}
	answers, err := s.answers.TeamAnswers(ctx, teamID, cross.ID)
	if err != nil {
		return nil, err
	}

	status := make(map[int64]domain.AnswerStatus, len(answers))
	for _, a := range answers {
		switch {
		case a.IsCorrect:
			status[a.TaskID] = domain.AnswerCorrect
		case status[a.TaskID] != domain.AnswerCorrect:
			status[a.TaskID] = domain.AnswerWrong
		}
	}

	views := make([]domain.TaskView, 0, len(tasks))
	for _, t := range tasks {
		st, ok := status[t.ID]
		if !ok {
			st = domain.AnswerNotStarted
		}
		views = append(views, domain.TaskView{
			ID:          t.ID,
			Name:        t.Name,
			Coordinates: t.Coordinates,
			Description: t.Description,
			Hints:       t.RevealedHints(unlocked[t.ID]),
			Status:      st,
		})
	}
	return views, nil
}

// Submit records an answer. Resubmitting the same text returns the stored row.
func (s *HuntService) Submit(ctx context.Context, teamID, taskID int64, answer string) (domain.Answer, error) {
	task, cross, err := s.runningTask(ctx, taskID)
	if err != nil {
		return domain.Answer{}, err
	}
	if answer == "" {
		return domain.Answer{}, domain.ErrAnswerRequired
	}
	if err := validateStruct(answerInput{Answer: answer}); err != nil {
		return domain.Answer{}, err
	}
	now := s.cfg.now().UTC()
	if cross.EndTime != nil && now.After(*cross.EndTime) {
		return domain.Answer{}, domain.ErrCrossEnded
	}

	a := domain.Answer{
		TeamID:      teamID,
		TaskID:      task.ID,
		Answer:      answer,
		SubmittedAt: now,
		IsCorrect:   answer == task.CorrectAnswer,
	}
	if _, err := s.answers.FindOrCreateAnswer(ctx, &a); err != nil {
		return domain.Answer{}, err
	}
	return a, nil
}

// Hint reveals the 0-indexed hint n. Hints unlock strictly in order.
func (s *HuntService) Hint(ctx context.Context, teamID, taskID int64, n int) (string, error) {
	if n < 0 || n >= domain.HintCount {
		return "", domain.ErrInvalidHintNumber
	}
	task, _, err := s.runningTask(ctx, taskID)
	if err != nil {
		return "", err
	}
	_, err = s.hints.UpdateHint(ctx, task.ID, teamID, func(unlocked int) (int, error) {
		if n > unlocked {
			return unlocked, fmt.Errorf("%w: open hint %d first", domain.ErrHintOutOfOrder, unlocked)
		}
		if n+1 > unlocked {
			return n + 1, nil
		}
		return unlocked, nil
	})
	if err != nil {
		return "", err
	}
	return task.Hint(n), nil
}

func (s *HuntService) runningTask(ctx context.Context, taskID int64) (domain.Task, domain.Cross, error) {
	task, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		return domain.Task{}, domain.Cross{}, err
	}
	cross, err := s.crosses.GetCross(ctx, task.CrossID)
	if err != nil {
		return domain.Task{}, domain.Cross{}, err
	}
	if cross.Status != domain.CrossStarted {
		return domain.Task{}, domain.Cross{}, domain.ErrCrossNotStarted
	}
	return task, cross, nil
}
