package store

import (
	"path/filepath"
	"testing"
	"time"

	"tasksync/internal/model"
)

func openTestStore(t *testing.T, path string) *Store {
	t.Helper()
	s := Open(path)
	if !s.Init() {
		t.Fatalf("store init failed: %v", s.InitErr())
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestInitIdempotent(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "tasks.db"))
	if !s.Init() {
		t.Fatal("second Init should report ready")
	}
	if !s.Ready() {
		t.Fatal("expected ready")
	}
}

func TestDegradedModeNoops(t *testing.T) {
	s := Open("")
	if s.Init() {
		t.Fatal("expected init to fail for empty path")
	}
	if s.Ready() {
		t.Fatal("expected not ready")
	}
	if err := s.SaveTask(model.Task{ID: "x"}); err != nil {
		t.Fatalf("degraded SaveTask should be a no-op, got %v", err)
	}
	tasks, err := s.GetTasks()
	if err != nil || len(tasks) != 0 {
		t.Fatalf("degraded GetTasks should return empty, got %v %v", tasks, err)
	}
	task, err := s.GetTask("x")
	if err != nil || task != nil {
		t.Fatalf("degraded GetTask should return nil, got %v %v", task, err)
	}
	id, err := s.AddToSyncQueue(model.QueueItem{Type: model.MutationCreate, TaskID: "x"})
	if err != nil || id != "" {
		t.Fatalf("degraded AddToSyncQueue should be a no-op, got %q %v", id, err)
	}
}

func TestTaskRoundTripAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.db")
	s := openTestStore(t, path)

	now := time.Now().UTC().Truncate(time.Millisecond)
	attempt := now.Add(-time.Minute)
	task := model.Task{
		ID:              "t1",
		Title:           "write report",
		Description:     "quarterly numbers",
		Priority:        model.PriorityHigh,
		Status:          model.StatusInProgress,
		Type:            "doc",
		AssignedTo:      "sam",
		Collaborators:   []string{"ana", "joe"},
		Dependencies:    []string{"t0"},
		CreatedAt:       now,
		UpdatedAt:       now,
		IsOffline:       true,
		SyncState:       model.SyncQueued,
		LastSyncAttempt: &attempt,
	}
	if err := s.SaveTask(task); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	// Simulated reload: a fresh Store over the same file.
	s2 := openTestStore(t, path)
	got, err := s2.GetTask("t1")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("task missing after reopen")
	}
	if got.Title != task.Title || got.Priority != task.Priority || got.Status != task.Status {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if !got.IsOffline || got.SyncState != model.SyncQueued {
		t.Fatalf("offline flags lost: %+v", got)
	}
	if len(got.Collaborators) != 2 || got.Collaborators[0] != "ana" {
		t.Fatalf("collaborators mismatch: %v", got.Collaborators)
	}
	if got.LastSyncAttempt == nil || !got.LastSyncAttempt.Equal(attempt) {
		t.Fatalf("lastSyncAttempt mismatch: %v", got.LastSyncAttempt)
	}
}

func TestMutationSequenceSurvivesReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.db")
	s := openTestStore(t, path)

	now := time.Now().UTC()
	base := model.Task{ID: "seq", Title: "v1", Priority: model.PriorityLow, Status: model.StatusTodo, CreatedAt: now, UpdatedAt: now}
	if err := s.SaveTask(base); err != nil {
		t.Fatal(err)
	}
	base.Title = "v2"
	base.Status = model.StatusDone
	base.UpdatedAt = now.Add(time.Second)
	if err := s.SaveTask(base); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveTask(model.Task{ID: "gone", Title: "x", CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteTask("gone"); err != nil {
		t.Fatal(err)
	}
	_ = s.Close()

	s2 := openTestStore(t, path)
	tasks, err := s2.GetTasks()
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task after reload, got %d", len(tasks))
	}
	if tasks[0].Title != "v2" || tasks[0].Status != model.StatusDone {
		t.Fatalf("latest state not reflected: %+v", tasks[0])
	}
}

func TestQueueFIFOAndRemoval(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "tasks.db"))

	ids := make([]string, 0, 3)
	for _, taskID := range []string{"a", "b", "c"} {
		id, err := s.AddToSyncQueue(model.QueueItem{Type: model.MutationUpdate, TaskID: taskID})
		if err != nil {
			t.Fatal(err)
		}
		if id == "" {
			t.Fatal("expected an assigned id")
		}
		ids = append(ids, id)
	}

	items, err := s.GetSyncQueue()
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	for i, taskID := range []string{"a", "b", "c"} {
		if items[i].TaskID != taskID {
			t.Fatalf("insertion order not preserved: %v", items)
		}
	}

	if err := s.RemoveFromSyncQueue(ids[1]); err != nil {
		t.Fatal(err)
	}
	items, _ = s.GetSyncQueue()
	if len(items) != 2 || items[0].TaskID != "a" || items[1].TaskID != "c" {
		t.Fatalf("unexpected queue after removal: %v", items)
	}

	if err := s.ClearSyncQueue(); err != nil {
		t.Fatal(err)
	}
	if n, _ := s.QueueLength(); n != 0 {
		t.Fatalf("expected empty queue, got %d", n)
	}
}

func TestQueueItemPayloadRoundTrip(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "tasks.db"))

	now := time.Now().UTC().Truncate(time.Millisecond)
	payload := model.Task{ID: "t9", Title: "carry me", Priority: model.PriorityMedium, Status: model.StatusTodo, CreatedAt: now, UpdatedAt: now}
	id, err := s.AddToSyncQueue(model.QueueItem{
		Type:       model.MutationCreate,
		TaskID:     "t9",
		Data:       &payload,
		Timestamp:  now,
		RetryCount: 2,
	})
	if err != nil {
		t.Fatal(err)
	}

	items, err := s.GetSyncQueue()
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	it := items[0]
	if it.ID != id || it.RetryCount != 2 || it.Type != model.MutationCreate {
		t.Fatalf("item mismatch: %+v", it)
	}
	if it.Data == nil || it.Data.Title != "carry me" {
		t.Fatalf("payload lost: %+v", it.Data)
	}
}

func TestMetaAndLastSyncTime(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "tasks.db"))

	if ts, err := s.LastSyncTime(); err != nil || !ts.IsZero() {
		t.Fatalf("expected zero last sync initially, got %v %v", ts, err)
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	if err := s.SetLastSyncTime(now); err != nil {
		t.Fatal(err)
	}
	ts, err := s.LastSyncTime()
	if err != nil {
		t.Fatal(err)
	}
	if !ts.Equal(now) {
		t.Fatalf("expected %v, got %v", now, ts)
	}

	if err := s.SetAuthToken("  secret  "); err != nil {
		t.Fatal(err)
	}
	token, err := s.AuthToken()
	if err != nil || token != "secret" {
		t.Fatalf("token round trip failed: %q %v", token, err)
	}
}

func TestDeadLetter(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "tasks.db"))

	now := time.Now().UTC()
	item := model.QueueItem{ID: "q1", Type: model.MutationDelete, TaskID: "t1", Timestamp: now, RetryCount: 5}
	if err := s.AddToDeadLetter(item, "server kept rejecting", now); err != nil {
		t.Fatal(err)
	}
	dead, err := s.DeadLetters()
	if err != nil {
		t.Fatal(err)
	}
	if len(dead) != 1 {
		t.Fatalf("expected 1 dead letter, got %d", len(dead))
	}
	if dead[0].Reason != "server kept rejecting" || dead[0].RetryCount != 5 {
		t.Fatalf("dead letter mismatch: %+v", dead[0])
	}
}
