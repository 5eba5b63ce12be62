package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"hightechcross/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// TaskLoader fetches the tasks of a cross from the backing store.
type TaskLoader interface {
	LoadTasks(ctx context.Context, crossID int64) ([]domain.Task, error)
}

// TaskCatalog caches task lists in Redis and falls back to a loader on miss.
// Each cross is stored as a JSON array under cross:{crossID}:tasks so the
// insertion order of tasks survives the round trip.
type TaskCatalog struct {
	client *redis.Client
	loader TaskLoader
	ttl    time.Duration
	sf     singleflight.Group
	rndMu  sync.Mutex
	rnd    *rand.Rand
}

func NewTaskCatalog(client *redis.Client, loader TaskLoader, ttl time.Duration) *TaskCatalog {
	return &TaskCatalog{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *TaskCatalog) CrossTasks(ctx context.Context, crossID int64) ([]domain.Task, error) {
	key := c.tasksKey(crossID)
	if tasks, ok := c.cached(ctx, key); ok {
		return tasks, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if tasks, ok := c.cached(ctx, key); ok {
			return tasks, nil
		}

		tasks, err := c.loader.LoadTasks(ctx, crossID)
		if err != nil {
			return nil, err
		}

		data, err := json.Marshal(tasks)
		if err != nil {
			return nil, err
		}
		if err := c.client.Set(ctx, key, data, c.ttlWithJitter()).Err(); err != nil {
			slog.Warn("cache task catalog", slog.Int64("cross_id", crossID), slog.Any("err", err))
		}
		return tasks, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Task), nil
}

func (c *TaskCatalog) Invalidate(ctx context.Context, crossID int64) {
	key := c.tasksKey(crossID)
	if err := c.client.Del(ctx, key).Err(); err != nil {
		slog.Warn("invalidate task catalog", slog.Int64("cross_id", crossID), slog.Any("err", err))
	}
	c.sf.Forget(key)
}

func (c *TaskCatalog) cached(ctx context.Context, key string) ([]domain.Task, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("read task catalog", slog.String("key", key), slog.Any("err", err))
		}
		return nil, false
	}
	var tasks []domain.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, false
	}
	return tasks, true
}

func (c *TaskCatalog) tasksKey(crossID int64) string {
	return "cross:" + strconv.FormatInt(crossID, 10) + ":tasks"
}

func (c *TaskCatalog) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
