package postgres

import (
	"context"
	"fmt"
	"time"

	"hightechcross/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// StandingsReader aggregates per-team attempts straight from Postgres.
type StandingsReader struct {
	pool *pgxpool.Pool
}

func NewStandingsReader(pool *pgxpool.Pool) *StandingsReader {
	return &StandingsReader{pool: pool}
}

const teamsQuery = `SELECT id, username FROM users WHERE $1 = ANY(groups) ORDER BY id`

const answersQuery = `
SELECT a.team_id, a.task_id,
       MIN(a.submitted_at) FILTER (WHERE a.is_correct),
       COUNT(*) FILTER (WHERE NOT a.is_correct)
FROM answers a
JOIN tasks t ON t.id = a.task_id
WHERE t.cross_id = $1
GROUP BY a.team_id, a.task_id`

const hintsQuery = `
SELECT h.team_id, h.task_id, h.hint_number
FROM hints_taken h
JOIN tasks t ON t.id = h.task_id
WHERE t.cross_id = $1`

func (r *StandingsReader) Standings(ctx context.Context, crossID int64) (domain.Scoresheet, error) {
	sheet := domain.Scoresheet{Attempts: make(map[domain.AttemptKey]domain.Attempt)}

	rows, err := r.pool.Query(ctx, teamsQuery, domain.TeamGroup)
	if err != nil {
		return sheet, fmt.Errorf("load teams: %w", err)
	}
	for rows.Next() {
		var team domain.Team
		if err := rows.Scan(&team.ID, &team.Name); err != nil {
			rows.Close()
			return sheet, fmt.Errorf("scan team: %w", err)
		}
		sheet.Teams = append(sheet.Teams, team)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return sheet, fmt.Errorf("load teams: %w", err)
	}

	rows, err = r.pool.Query(ctx, answersQuery, crossID)
	if err != nil {
		return sheet, fmt.Errorf("load answers: %w", err)
	}
	for rows.Next() {
		var (
			key    domain.AttemptKey
			solved *time.Time
			wrong  int
		)
		if err := rows.Scan(&key.TeamID, &key.TaskID, &solved, &wrong); err != nil {
			rows.Close()
			return sheet, fmt.Errorf("scan answers: %w", err)
		}
		at := sheet.Attempts[key]
		if solved != nil {
			t := solved.UTC()
			at.SolvedAt = &t
		}
		at.WrongAnswers = wrong
		sheet.Attempts[key] = at
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return sheet, fmt.Errorf("load answers: %w", err)
	}

	rows, err = r.pool.Query(ctx, hintsQuery, crossID)
	if err != nil {
		return sheet, fmt.Errorf("load hints: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			key   domain.AttemptKey
			taken int
		)
		if err := rows.Scan(&key.TeamID, &key.TaskID, &taken); err != nil {
			return sheet, fmt.Errorf("scan hints: %w", err)
		}
		at := sheet.Attempts[key]
		at.HintsTaken = taken
		sheet.Attempts[key] = at
	}
	if err := rows.Err(); err != nil {
		return sheet, fmt.Errorf("load hints: %w", err)
	}
	return sheet, nil
}
