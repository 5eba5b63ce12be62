package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"hightechcross/internal/domain"
)

// Store is an in-memory implementation of every repository the app needs.
// A single mutex makes each method atomic, which is all the app relies on.
type Store struct {
	mu sync.Mutex

	nextID  int64
	crosses []domain.Cross
	tasks   []domain.Task
	hints   []domain.HintTaken
	answers []domain.Answer
	users   []domain.User
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// CreateCross stores the cross and its tasks, assigning ids to both.
func (s *Store) CreateCross(_ context.Context, cross *domain.Cross) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cross.ID = s.id()
	if cross.Status == "" {
		cross.Status = domain.CrossCreated
	}
	for i := range cross.Tasks {
		cross.Tasks[i].ID = s.id()
		cross.Tasks[i].CrossID = cross.ID
		s.tasks = append(s.tasks, cross.Tasks[i])
	}
	stored := *cross
	stored.Tasks = nil
	s.crosses = append(s.crosses, stored)
	return nil
}

func (s *Store) GetCross(_ context.Context, id int64) (domain.Cross, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.crossIndex(id)
	if i < 0 {
		return domain.Cross{}, domain.ErrCrossNotFound
	}
	return s.withTasks(s.crosses[i]), nil
}

func (s *Store) ListCrosses(_ context.Context) ([]domain.Cross, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Cross, 0, len(s.crosses))
	for _, c := range s.crosses {
		out = append(out, s.withTasks(c))
	}
	return out, nil
}

// DeleteCross cascades to tasks, hints and answers.
func (s *Store) DeleteCross(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.crossIndex(id)
	if i < 0 {
		return domain.ErrCrossNotFound
	}
	s.crosses = append(s.crosses[:i], s.crosses[i+1:]...)

	dropped := make(map[int64]bool)
	tasks := s.tasks[:0]
	for _, t := range s.tasks {
		if t.CrossID == id {
			dropped[t.ID] = true
			continue
		}
		tasks = append(tasks, t)
	}
	s.tasks = tasks

	hints := s.hints[:0]
	for _, h := range s.hints {
		if !dropped[h.TaskID] {
			hints = append(hints, h)
		}
	}
	s.hints = hints

	answers := s.answers[:0]
	for _, a := range s.answers {
		if !dropped[a.TaskID] {
			answers = append(answers, a)
		}
	}
	s.answers = answers
	return nil
}

func (s *Store) TransitionCross(_ context.Context, id int64, fn func(cross *domain.Cross, active *domain.Cross) (bool, error)) (domain.Cross, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.crossIndex(id)
	if i < 0 {
		return domain.Cross{}, domain.ErrCrossNotFound
	}
	var active *domain.Cross
	for j := range s.crosses {
		if s.crosses[j].Status == domain.CrossStarted {
			c := s.crosses[j]
			active = &c
			break
		}
	}

	cross := s.crosses[i]
	changed, err := fn(&cross, active)
	if err != nil {
		return domain.Cross{}, err
	}
	if changed {
		if cross.Status == domain.CrossStarted && active != nil && active.ID != cross.ID {
			return domain.Cross{}, domain.ErrCrossAlreadyStarted
		}
		cross.Tasks = nil
		s.crosses[i] = cross
	}
	return cross, nil
}

func (s *Store) StartedCross(_ context.Context) (domain.Cross, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.crosses {
		if c.Status == domain.CrossStarted {
			return s.withTasks(c), nil
		}
	}
	return domain.Cross{}, domain.ErrCrossNotStarted
}

func (s *Store) GetTask(_ context.Context, id int64) (domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return domain.Task{}, domain.ErrTaskNotFound
}

func (s *Store) ListTasks(_ context.Context, crossID int64) ([]domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.crossTasks(crossID), nil
}

// LoadTasks lets the store act as the loader behind a task catalog.
func (s *Store) LoadTasks(ctx context.Context, crossID int64) ([]domain.Task, error) {
	return s.ListTasks(ctx, crossID)
}

func (s *Store) UpdateHint(_ context.Context, taskID, teamID int64, fn func(unlocked int) (int, error)) (domain.HintTaken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := -1
	for j, h := range s.hints {
		if h.TaskID == taskID && h.TeamID == teamID {
			i = j
			break
		}
	}
	current := domain.HintTaken{TaskID: taskID, TeamID: teamID}
	if i >= 0 {
		current = s.hints[i]
	}

	next, err := fn(current.HintNumber)
	if err != nil {
		return domain.HintTaken{}, err
	}
	current.HintNumber = next
	if i < 0 {
		current.ID = s.id()
		s.hints = append(s.hints, current)
	} else {
		s.hints[i] = current
	}
	return current, nil
}

func (s *Store) HintsTaken(_ context.Context, teamID, crossID int64) (map[int64]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inCross := s.taskSet(crossID)
	out := make(map[int64]int)
	for _, h := range s.hints {
		if h.TeamID == teamID && inCross[h.TaskID] {
			out[h.TaskID] = h.HintNumber
		}
	}
	return out, nil
}

func (s *Store) FindOrCreateAnswer(_ context.Context, a *domain.Answer) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.answers {
		if existing.TeamID == a.TeamID && existing.TaskID == a.TaskID && existing.Answer == a.Answer {
			*a = existing
			return false, nil
		}
	}
	a.ID = s.id()
	s.answers = append(s.answers, *a)
	return true, nil
}

func (s *Store) TeamAnswers(_ context.Context, teamID, crossID int64) ([]domain.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inCross := s.taskSet(crossID)
	var out []domain.Answer
	for _, a := range s.answers {
		if a.TeamID == teamID && inCross[a.TaskID] {
			out = append(out, a)
		}
	}
	return out, nil
}

// Standings aggregates answers and hints of every team for a cross.
func (s *Store) Standings(_ context.Context, crossID int64) (domain.Scoresheet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sheet := domain.Scoresheet{Attempts: make(map[domain.AttemptKey]domain.Attempt)}
	for _, u := range s.users {
		if u.InGroup(domain.TeamGroup) {
			sheet.Teams = append(sheet.Teams, domain.Team{ID: u.ID, Name: u.Username})
		}
	}

	inCross := s.taskSet(crossID)
	for _, a := range s.answers {
		if !inCross[a.TaskID] {
			continue
		}
		key := domain.AttemptKey{TeamID: a.TeamID, TaskID: a.TaskID}
		at := sheet.Attempts[key]
		if a.IsCorrect {
			if at.SolvedAt == nil || a.SubmittedAt.Before(*at.SolvedAt) {
				solved := a.SubmittedAt
				at.SolvedAt = &solved
			}
		} else {
			at.WrongAnswers++
		}
		sheet.Attempts[key] = at
	}
	for _, h := range s.hints {
		if !inCross[h.TaskID] {
			continue
		}
		key := domain.AttemptKey{TeamID: h.TeamID, TaskID: h.TaskID}
		at := sheet.Attempts[key]
		at.HintsTaken = h.HintNumber
		sheet.Attempts[key] = at
	}
	return sheet, nil
}

func (s *Store) CreateUser(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.userIndexByName(u.Username) >= 0 {
		return domain.ErrUsernameTaken
	}
	u.ID = s.id()
	s.users = append(s.users, cloneUser(*u))
	return nil
}

func (s *Store) GetUser(_ context.Context, id int64) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.userIndex(id)
	if i < 0 {
		return domain.User{}, domain.ErrUserNotFound
	}
	return cloneUser(s.users[i]), nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.userIndexByName(username)
	if i < 0 {
		return domain.User{}, domain.ErrUserNotFound
	}
	return cloneUser(s.users[i]), nil
}

func (s *Store) UpdateUser(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.userIndex(u.ID)
	if i < 0 {
		return domain.ErrUserNotFound
	}
	if j := s.userIndexByName(u.Username); j >= 0 && j != i {
		return domain.ErrUsernameTaken
	}
	s.users[i] = cloneUser(*u)
	return nil
}

func (s *Store) DeleteUser(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.userIndex(id)
	if i < 0 {
		return domain.ErrUserNotFound
	}
	s.users = append(s.users[:i], s.users[i+1:]...)

	hints := s.hints[:0]
	for _, h := range s.hints {
		if h.TeamID != id {
			hints = append(hints, h)
		}
	}
	s.hints = hints
	answers := s.answers[:0]
	for _, a := range s.answers {
		if a.TeamID != id {
			answers = append(answers, a)
		}
	}
	s.answers = answers
	return nil
}

func (s *Store) ListUsers(_ context.Context, f domain.UserFilter) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		if f.Username != "" && u.Username != f.Username ||
			f.Email != "" && u.Email != f.Email ||
			f.FirstName != "" && u.FirstName != f.FirstName ||
			f.LastName != "" && u.LastName != f.LastName {
			continue
		}
		out = append(out, cloneUser(u))
	}

	if f.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			c := compareUsers(out[i], out[j], f.OrderBy)
			if f.Desc {
				return c > 0
			}
			return c < 0
		})
	}
	return out, nil
}

func compareUsers(a, b domain.User, field string) int {
	switch field {
	case "username":
		return strings.Compare(a.Username, b.Username)
	case "email":
		return strings.Compare(a.Email, b.Email)
	case "first_name":
		return strings.Compare(a.FirstName, b.FirstName)
	case "last_name":
		return strings.Compare(a.LastName, b.LastName)
	case "is_staff":
		switch {
		case a.IsStaff == b.IsStaff:
			return 0
		case b.IsStaff:
			return -1
		}
		return 1
	case "date_joined":
		return a.DateJoined.Compare(b.DateJoined)
	}
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}

func (s *Store) crossIndex(id int64) int {
	for i, c := range s.crosses {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) userIndex(id int64) int {
	for i, u := range s.users {
		if u.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) userIndexByName(username string) int {
	for i, u := range s.users {
		if u.Username == username {
			return i
		}
	}
	return -1
}

func (s *Store) withTasks(c domain.Cross) domain.Cross {
	c.Tasks = s.crossTasks(c.ID)
	return c
}

func (s *Store) crossTasks(crossID int64) []domain.Task {
	out := make([]domain.Task, 0)
	for _, t := range s.tasks {
		if t.CrossID == crossID {
			out = append(out, t)
		}
	}
	return out
}

func (s *Store) taskSet(crossID int64) map[int64]bool {
	set := make(map[int64]bool)
	for _, t := range s.tasks {
		if t.CrossID == crossID {
			set[t.ID] = true
		}
	}
	return set
}

func cloneUser(u domain.User) domain.User {
	u.Groups = append(make([]string, 0, len(u.Groups)), u.Groups...)
	return u
}
