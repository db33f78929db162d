package engine

import (
	"context"
	"errors"

	"tasksync/internal/api"
	"tasksync/internal/model"
)

// CreateInput is the payload for a new task. Zero-value priority and status
// default to medium/todo.
type CreateInput struct {
	Title         string
	Description   string
	Priority      model.Priority
	Status        model.Status
	Type          string
	AssignedTo    string
	Collaborators []string
	Dependencies  []string
}

// CreateTask writes the snapshot locally first, then either confirms it
// against the server right away or queues the mutation. Network failure is
// not an error for the caller; the task is simply still pending.
func (e *Engine) CreateTask(ctx context.Context, in CreateInput) (*model.Task, error) {
	if !e.store.Ready() {
		return nil, model.ErrStorageUnavailable
	}
	now := e.now().UTC()
	if in.Priority == "" {
		in.Priority = model.PriorityMedium
	}
	if in.Status == "" {
		in.Status = model.StatusTodo
	}
	t := model.Task{
		ID:            model.NewOfflineTaskID(now),
		Title:         in.Title,
		Description:   in.Description,
		Priority:      in.Priority,
		Status:        in.Status,
		Type:          in.Type,
		AssignedTo:    in.AssignedTo,
		Collaborators: in.Collaborators,
		Dependencies:  in.Dependencies,
		CreatedAt:     now,
		UpdatedAt:     now,
		IsOffline:     true,
		SyncState:     model.SyncPending,
	}
	if err := e.store.SaveTask(t); err != nil {
		return nil, err
	}

	if e.observer.Online() {
		created, err := e.client.CreateTask(ctx, t)
		if err == nil {
			e.confirmLocal(t.ID, created)
			if created != nil && created.ID != "" {
				t.ID = created.ID
			}
			t.MarkConfirmed()
			return &t, nil
		}
		e.logger.Warnf("immediate create failed, queueing: %v", err)
	}

	return &t, e.enqueue(model.MutationCreate, &t)
}

// UpdateTask merges the update into the local snapshot and pushes it
// remotely or queues it. A missing snapshot is an error for the caller.
func (e *Engine) UpdateTask(ctx context.Context, id string, upd model.TaskUpdate) (*model.Task, error) {
	if !e.store.Ready() {
		return nil, model.ErrStorageUnavailable
	}
	t, err := e.store.GetTask(id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, model.ErrTaskNotFound
	}
	upd.Apply(t, e.now().UTC())
	if err := e.store.SaveTask(*t); err != nil {
		return nil, err
	}

	if e.observer.Online() {
		updated, err := e.client.UpdateTask(ctx, t.ID, *t)
		if err == nil {
			e.confirmLocal(t.ID, updated)
			t.MarkConfirmed()
			return t, nil
		}
		e.logger.Warnf("immediate update failed, queueing: %v", err)
	}

	return t, e.enqueue(model.MutationUpdate, t)
}

// DeleteTask removes the snapshot locally, then deletes remotely or queues
// the deletion.
func (e *Engine) DeleteTask(ctx context.Context, id string) error {
	if !e.store.Ready() {
		return model.ErrStorageUnavailable
	}
	if err := e.store.DeleteTask(id); err != nil {
		return err
	}

	// Drop any queued mutations for this task. If its create never reached
	// the server there is nothing remote to delete either.
	createWasPending := false
	if items, err := e.store.GetSyncQueue(); err == nil {
		for _, it := range items {
			if it.TaskID != id {
				continue
			}
			if it.Type == model.MutationCreate {
				createWasPending = true
			}
			if err := e.store.RemoveFromSyncQueue(it.ID); err != nil {
				e.logger.Errorf("drop queued %s: %v", it.ID, err)
			}
		}
	}
	if createWasPending {
		return nil
	}

	if e.observer.Online() {
		err := e.client.DeleteTask(ctx, id)
		if err == nil || errors.Is(err, api.ErrNotFound) {
			return nil
		}
		e.logger.Warnf("immediate delete failed, queueing: %v", err)
	}

	_, err := e.store.AddToSyncQueue(model.QueueItem{
		Type:      model.MutationDelete,
		TaskID:    id,
		Timestamp: e.now().UTC(),
	})
	return err
}

// Tasks returns the local snapshots, optionally filtered and sorted.
func (e *Engine) Tasks(f model.Filter, key model.SortKey, descending bool) ([]model.Task, error) {
	tasks, err := e.store.GetTasks()
	if err != nil {
		return nil, err
	}
	tasks = model.FilterTasks(tasks, f)
	if key != "" {
		model.SortTasks(tasks, key, descending)
	}
	return tasks, nil
}

func (e *Engine) Task(id string) (*model.Task, error) {
	return e.store.GetTask(id)
}

func (e *Engine) enqueue(mt model.MutationType, t *model.Task) error {
	t.MarkQueued()
	if err := e.store.SaveTask(*t); err != nil {
		return err
	}
	// An update of a task whose create is still queued folds into that
	// create; replaying the queue then yields the latest state directly.
	if mt == model.MutationUpdate {
		if items, err := e.store.GetSyncQueue(); err == nil {
			for _, it := range items {
				if it.TaskID == t.ID && it.Type == model.MutationCreate {
					return e.store.UpdateQueueItemData(it.ID, t)
				}
			}
		}
	}
	_, err := e.store.AddToSyncQueue(model.QueueItem{
		Type:      mt,
		TaskID:    t.ID,
		Data:      t,
		Timestamp: e.now().UTC(),
	})
	return err
}
