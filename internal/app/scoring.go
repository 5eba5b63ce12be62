package app

import (
	"time"

	"hightechcross/internal/domain"
)

// Scoring holds the penalty weights of the leaderboard.
type Scoring struct {
	HintPenalty        time.Duration
	WrongAnswerPenalty time.Duration
}

// DefaultScoring charges 15 minutes per hint and 30 minutes per wrong answer.
var DefaultScoring = Scoring{
	HintPenalty:        15 * time.Minute,
	WrongAnswerPenalty: 30 * time.Minute,
}

// Results builds one row per team, in the order of sheet.Teams. Only solved
// tasks contribute penalty time.
func (s Scoring) Results(cross domain.Cross, tasks []domain.Task, sheet domain.Scoresheet) []domain.TeamResult {
	results := make([]domain.TeamResult, 0, len(sheet.Teams))
	for _, team := range sheet.Teams {
		row := domain.TeamResult{
			Team:  team.Name,
			Tasks: make([]domain.TaskResult, 0, len(tasks)),
		}
		var penalty time.Duration
		for _, task := range tasks {
			attempt := sheet.Attempts[domain.AttemptKey{TeamID: team.ID, TaskID: task.ID}]
			solved := attempt.SolvedAt != nil
			if solved {
				row.CompletedTasks++
				penalty += s.taskPenalty(cross, attempt)
			}
			row.Tasks = append(row.Tasks, domain.TaskResult{Name: task.Name, Status: solved})
		}
		row.PenaltyTime = domain.Duration(penalty)
		row.PenaltySeconds = int64(penalty / time.Second)
		results = append(results, row)
	}
	return results
}

func (s Scoring) taskPenalty(cross domain.Cross, attempt domain.Attempt) time.Duration {
	var elapsed time.Duration
	if cross.StartTime != nil {
		elapsed = attempt.SolvedAt.Sub(*cross.StartTime)
	}
	return elapsed +
		time.Duration(attempt.HintsTaken)*s.HintPenalty +
		time.Duration(attempt.WrongAnswers)*s.WrongAnswerPenalty
}
