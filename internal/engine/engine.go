// Package engine applies task mutations optimistically to the local store
// and drains the sync queue against the backend when connectivity allows.
package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"tasksync/internal/api"
	"tasksync/internal/connectivity"
	"tasksync/internal/logging"
	"tasksync/internal/model"
	"tasksync/internal/store"
)

// RetryPolicy bounds how a persistently failing queue item is retried.
// The zero value reproduces the original behavior: no cap, no delay, the
// item is retried on every drain cycle.
type RetryPolicy struct {
	// MaxAttempts is the number of failed drain attempts after which the
	// item moves to the dead-letter table. 0 means unlimited.
	MaxAttempts int
	// Backoff delays the next attempt after a failure. 0 retries on the
	// very next drain.
	Backoff time.Duration
}

// Status is the aggregate sync state surfaced to the UI layer. Per-item
// errors are not exposed; only counts and the last error string.
type Status struct {
	Online          bool      `json:"online"`
	StorageReady    bool      `json:"storage_ready"`
	QueuedCount     int       `json:"queued_count"`
	DeadLetterCount int       `json:"dead_letter_count"`
	LastSyncTime    time.Time `json:"last_sync_time"`
	LastError       string    `json:"last_error"`
}

type Engine struct {
	store    *store.Store
	client   *api.Client
	observer *connectivity.Observer
	policy   RetryPolicy
	interval time.Duration
	logger   *logging.Logger

	// draining makes SyncOfflineChanges single-flight within this
	// process; a second call while a drain is active is dropped.
	draining atomic.Bool

	mu        sync.Mutex
	lastError string

	now func() time.Time
}

func New(st *store.Store, client *api.Client, obs *connectivity.Observer, policy RetryPolicy, interval time.Duration, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.New("error")
	}
	return &Engine{
		store:    st,
		client:   client,
		observer: obs,
		policy:   policy,
		interval: interval,
		logger:   logger.With("sync"),
		now:      time.Now,
	}
}

// SyncOfflineChanges walks the queue once, applying each pending mutation
// in insertion order. It is a no-op unless the store is ready, the observer
// reports online, and no other drain is in flight. Per-item failures are
// re-queued with a bumped retry counter and never abort the pass.
func (e *Engine) SyncOfflineChanges(ctx context.Context) error {
	if !e.store.Ready() || !e.observer.Online() {
		return nil
	}
	if !e.draining.CompareAndSwap(false, true) {
		return nil
	}
	defer e.draining.Store(false)

	// Snapshot once; items enqueued mid-drain wait for the next cycle.
	items, err := e.store.GetSyncQueue()
	if err != nil {
		e.setLastError(err.Error())
		return err
	}

	now := e.now().UTC()
	var lastItemErr error
	for _, item := range items {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if e.policy.Backoff > 0 && !item.NextRetryAt.IsZero() && now.Before(item.NextRetryAt) {
			continue
		}
		if err := e.applyItem(ctx, item); err != nil {
			lastItemErr = err
			e.logger.Warnf("queue item %s failed (attempt %d): %v", item.ID, item.RetryCount+1, err)
			if err := e.requeueOrRetire(item, err); err != nil {
				e.logger.Errorf("requeue %s: %v", item.ID, err)
			}
		} else if err := e.store.RemoveFromSyncQueue(item.ID); err != nil {
			e.logger.Errorf("remove %s: %v", item.ID, err)
		}
	}

	if err := e.store.SetLastSyncTime(e.now()); err != nil {
		e.logger.Errorf("record last sync time: %v", err)
	}
	if lastItemErr != nil {
		e.setLastError(lastItemErr.Error())
	} else {
		e.setLastError("")
	}
	return nil
}

func (e *Engine) applyItem(ctx context.Context, item model.QueueItem) error {
	e.touchSyncAttempt(item.TaskID)

	switch item.Type {
	case model.MutationCreate:
		if item.Data == nil {
			return errors.New("create item has no payload")
		}
		created, err := e.client.CreateTask(ctx, *item.Data)
		if err != nil {
			return err
		}
		e.confirmLocal(item.TaskID, created)
		return nil
	case model.MutationUpdate:
		if item.Data == nil {
			return errors.New("update item has no payload")
		}
		updated, err := e.client.UpdateTask(ctx, item.TaskID, *item.Data)
		if err != nil {
			return err
		}
		e.confirmLocal(item.TaskID, updated)
		return nil
	case model.MutationDelete:
		err := e.client.DeleteTask(ctx, item.TaskID)
		// The snapshot is already gone locally; a remote 404 means the
		// delete is effectively confirmed.
		if err != nil && !errors.Is(err, api.ErrNotFound) {
			return err
		}
		return nil
	default:
		return errors.New("unknown mutation type " + string(item.Type))
	}
}

// requeueOrRetire implements the failure bookkeeping: add a replacement
// with retryCount+1 first, then remove the original. When the policy's
// attempt budget is spent the item moves to the dead-letter table instead.
func (e *Engine) requeueOrRetire(item model.QueueItem, cause error) error {
	attempts := item.RetryCount + 1
	if e.policy.MaxAttempts > 0 && attempts >= e.policy.MaxAttempts {
		if err := e.store.AddToDeadLetter(item, cause.Error(), e.now()); err != nil {
			return err
		}
		e.logger.Warnf("queue item %s retired to dead letter after %d attempts", item.ID, attempts)
		return e.store.RemoveFromSyncQueue(item.ID)
	}

	replacement := model.QueueItem{
		ID:         model.NewQueueItemID(item.Type, item.TaskID),
		Type:       item.Type,
		TaskID:     item.TaskID,
		Data:       item.Data,
		Timestamp:  item.Timestamp,
		RetryCount: attempts,
	}
	if e.policy.Backoff > 0 {
		replacement.NextRetryAt = e.now().UTC().Add(e.policy.Backoff)
	}
	if _, err := e.store.AddToSyncQueue(replacement); err != nil {
		return err
	}
	return e.store.RemoveFromSyncQueue(item.ID)
}

// confirmLocal flips the snapshot to remote-confirmed, remapping the id
// when the server assigned one different from the locally minted id.
func (e *Engine) confirmLocal(localID string, remote *model.Task) {
	t, err := e.store.GetTask(localID)
	if err != nil || t == nil {
		return
	}
	if remote != nil && remote.ID != "" && remote.ID != t.ID {
		if err := e.store.DeleteTask(t.ID); err != nil {
			e.logger.Errorf("drop stale snapshot %s: %v", t.ID, err)
		}
		t.ID = remote.ID
	}
	t.MarkConfirmed()
	if err := e.store.SaveTask(*t); err != nil {
		e.logger.Errorf("confirm snapshot %s: %v", t.ID, err)
	}
}

func (e *Engine) touchSyncAttempt(taskID string) {
	t, err := e.store.GetTask(taskID)
	if err != nil || t == nil {
		return
	}
	at := e.now().UTC()
	t.LastSyncAttempt = &at
	if err := e.store.SaveTask(*t); err != nil {
		e.logger.Debugf("record sync attempt for %s: %v", taskID, err)
	}
}

// Refresh hydrates the local store from the server's task list, marking
// every pulled snapshot confirmed. Locally created tasks still awaiting
// sync are left untouched.
func (e *Engine) Refresh(ctx context.Context) error {
	if !e.store.Ready() {
		return model.ErrStorageUnavailable
	}
	tasks, err := e.client.ListTasks(ctx)
	if err != nil {
		e.setLastError(err.Error())
		return err
	}
	for _, t := range tasks {
		t.MarkConfirmed()
		if err := e.store.SaveTask(t); err != nil {
			return err
		}
	}
	return nil
}

// Run drains on a fixed interval while online and immediately on every
// offline-to-online transition, until the context ends.
func (e *Engine) Run(ctx context.Context) {
	transitions := e.observer.Subscribe()
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if e.observer.Online() {
				if err := e.SyncOfflineChanges(ctx); err != nil && ctx.Err() == nil {
					e.logger.Warnf("periodic drain: %v", err)
				}
			}
		case online := <-transitions:
			if online {
				if err := e.SyncOfflineChanges(ctx); err != nil && ctx.Err() == nil {
					e.logger.Warnf("reconnect drain: %v", err)
				}
			}
		}
	}
}

func (e *Engine) Status() Status {
	queued, _ := e.store.QueueLength()
	dead, _ := e.store.DeadLetters()
	last, _ := e.store.LastSyncTime()

	e.mu.Lock()
	lastErr := e.lastError
	e.mu.Unlock()

	return Status{
		Online:          e.observer.Online(),
		StorageReady:    e.store.Ready(),
		QueuedCount:     queued,
		DeadLetterCount: len(dead),
		LastSyncTime:    last,
		LastError:       lastErr,
	}
}

func (e *Engine) setLastError(msg string) {
	e.mu.Lock()
	e.lastError = msg
	e.mu.Unlock()
}
