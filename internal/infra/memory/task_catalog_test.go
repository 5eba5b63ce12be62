package memory

import (
	"context"
	"testing"
	"time"

	"hightechcross/internal/domain"
)

func TestTaskCatalogCaches(t *testing.T) {
	loader := &countingLoader{TaskLoader: sampleStore(t)}
	catalog := NewTaskCatalog(loader, time.Minute)

	tasks, err := catalog.CrossTasks(context.Background(), 1)
	if err != nil {
		t.Fatalf("cross tasks: %v", err)
	}
	if len(tasks) != 2 || tasks[0].Name != "Fountain" {
		t.Fatalf("unexpected tasks %+v", tasks)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := catalog.CrossTasks(context.Background(), 1); err != nil {
		t.Fatalf("cross tasks 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestTaskCatalogInvalidate(t *testing.T) {
	loader := &countingLoader{TaskLoader: sampleStore(t)}
	catalog := NewTaskCatalog(loader, time.Minute)

	_, _ = catalog.CrossTasks(context.Background(), 1)
	catalog.Invalidate(context.Background(), 1)
	_, _ = catalog.CrossTasks(context.Background(), 1)
	if loader.calls != 2 {
		t.Fatalf("expected reload after invalidate, loader calls %d", loader.calls)
	}
}

func TestTaskCatalogExpires(t *testing.T) {
	loader := &countingLoader{TaskLoader: sampleStore(t)}
	catalog := NewTaskCatalog(loader, time.Minute)
	now := time.Now()
	catalog.clock = func() time.Time { return now }

	_, _ = catalog.CrossTasks(context.Background(), 1)
	now = now.Add(2 * time.Minute)
	_, _ = catalog.CrossTasks(context.Background(), 1)
	if loader.calls != 2 {
		t.Fatalf("expected reload after ttl, loader calls %d", loader.calls)
	}
}

type countingLoader struct {
	TaskLoader
	calls int
}

func (l *countingLoader) LoadTasks(ctx context.Context, crossID int64) ([]domain.Task, error) {
	l.calls++
	return l.TaskLoader.LoadTasks(ctx, crossID)
}

func sampleStore(t *testing.T) *Store {
	t.Helper()
	store := NewStore()
	cross := sampleCross()
	if err := store.CreateCross(context.Background(), &cross); err != nil {
		t.Fatalf("create cross: %v", err)
	}
	return store
}

func sampleCross() domain.Cross {
	return domain.Cross{
		Tasks: []domain.Task{
			{Name: "Fountain", Coordinates: "55.75,37.61", Description: "Count the jets", CorrectAnswer: "12", Hint1: "h1", Hint2: "h2", Hint3: "h3"},
			{Name: "Tower", Coordinates: "55.74,37.62", Description: "Read the plaque", CorrectAnswer: "1894", Hint1: "t1", Hint2: "t2", Hint3: "t3"},
		},
	}
}
