package memory

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"hightechcross/internal/domain"
	"golang.org/x/sync/singleflight"
)

// TaskLoader fetches the tasks of a cross from the backing store.
type TaskLoader interface {
	LoadTasks(ctx context.Context, crossID int64) ([]domain.Task, error)
}

// TaskCatalog caches task lists with TTL to avoid repeated DB hits. Tasks
// never change after a cross is created, so only deletion invalidates.
type TaskCatalog struct {
	loader TaskLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[int64]cachedTasks
}

type cachedTasks struct {
	tasks     []domain.Task
	expiresAt time.Time
}

func NewTaskCatalog(loader TaskLoader, ttl time.Duration) *TaskCatalog {
	return &TaskCatalog{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[int64]cachedTasks),
	}
}

func (c *TaskCatalog) CrossTasks(ctx context.Context, crossID int64) ([]domain.Task, error) {
	if tasks, ok := c.cached(crossID); ok {
		return tasks, nil
	}

	result, err, _ := c.sf.Do(catalogKey(crossID), func() (interface{}, error) {
		if tasks, ok := c.cached(crossID); ok {
			return tasks, nil
		}

		tasks, err := c.loader.LoadTasks(ctx, crossID)
		if err != nil {
			return nil, err
		}

		if ttl := c.ttlWithJitter(); ttl > 0 {
			c.mu.Lock()
			c.cache[crossID] = cachedTasks{tasks: tasks, expiresAt: c.clock().Add(ttl)}
			c.mu.Unlock()
		}
		return tasks, nil
	})
	if err != nil {
		return nil, err
	}
	return copyTasks(result.([]domain.Task)), nil
}

func (c *TaskCatalog) Invalidate(_ context.Context, crossID int64) {
	c.mu.Lock()
	delete(c.cache, crossID)
	c.mu.Unlock()
	c.sf.Forget(catalogKey(crossID))
}

func (c *TaskCatalog) cached(crossID int64) ([]domain.Task, bool) {
	now := c.clock()
	c.mu.RLock()
	defer c.mu.RUnlock()
	if entry, ok := c.cache[crossID]; ok && entry.expiresAt.After(now) {
		return copyTasks(entry.tasks), true
	}
	return nil, false
}

func (c *TaskCatalog) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

func catalogKey(crossID int64) string {
	return "cross:" + strconv.FormatInt(crossID, 10)
}

func copyTasks(tasks []domain.Task) []domain.Task {
	return append(make([]domain.Task, 0, len(tasks)), tasks...)
}
