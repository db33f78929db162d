package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrStorageUnavailable = errors.New("offline storage unavailable")
	ErrTaskNotFound       = errors.New("task not found")
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusDone       Status = "done"
)

// SyncState tags where a task sits in the optimistic-mutation lifecycle:
// applied locally only, queued for retry, or confirmed by the server.
type SyncState string

const (
	SyncPending   SyncState = "pending"
	SyncQueued    SyncState = "queued"
	SyncConfirmed SyncState = "confirmed"
)

// Task is the local snapshot of a task. It may lag or lead the server's
// authoritative copy; IsOffline stays true until the creating mutation is
// confirmed remotely.
type Task struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Priority        Priority   `json:"priority"`
	Status          Status     `json:"status"`
	Type            string     `json:"type,omitempty"`
	AssignedTo      string     `json:"assignedTo,omitempty"`
	Collaborators   []string   `json:"collaborators,omitempty"`
	Dependencies    []string   `json:"dependencies,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	IsOffline       bool       `json:"isOffline"`
	SyncState       SyncState  `json:"syncState,omitempty"`
	LastSyncAttempt *time.Time `json:"lastSyncAttempt,omitempty"`
}

// MarkConfirmed records remote confirmation, keeping IsOffline and
// SyncState consistent.
func (t *Task) MarkConfirmed() {
	t.IsOffline = false
	t.SyncState = SyncConfirmed
}

func (t *Task) MarkQueued() {
	t.IsOffline = true
	t.SyncState = SyncQueued
}

type MutationType string

const (
	MutationCreate MutationType = "create"
	MutationUpdate MutationType = "update"
	MutationDelete MutationType = "delete"
)

// QueueItem is one pending mutation awaiting remote confirmation.
type QueueItem struct {
	ID          string       `json:"id"`
	Type        MutationType `json:"type"`
	TaskID      string       `json:"taskId"`
	Data        *Task        `json:"data,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
	RetryCount  int          `json:"retryCount,omitempty"`
	NextRetryAt time.Time    `json:"nextRetryAt,omitempty"`
}

// NewQueueItemID keeps the readable type-taskID prefix of the source scheme
// but appends a UUID so same-millisecond mutations of one task cannot
// collide.
func NewQueueItemID(mt MutationType, taskID string) string {
	return fmt.Sprintf("%s-%s-%s", mt, taskID, uuid.NewString())
}

// NewOfflineTaskID mints an id for a task created before the server has
// assigned one.
func NewOfflineTaskID(now time.Time) string {
	return fmt.Sprintf("offline-%d-%s", now.UnixMilli(), uuid.NewString())
}

// IsOfflineID reports whether id was minted locally rather than assigned by
// the server.
func IsOfflineID(id string) bool {
	return strings.HasPrefix(id, "offline-")
}

// TaskUpdate carries the fields an update mutation may change. Nil fields
// are left untouched.
type TaskUpdate struct {
	Title         *string   `json:"title,omitempty"`
	Description   *string   `json:"description,omitempty"`
	Priority      *Priority `json:"priority,omitempty"`
	Status        *Status   `json:"status,omitempty"`
	Type          *string   `json:"type,omitempty"`
	AssignedTo    *string   `json:"assignedTo,omitempty"`
	Collaborators []string  `json:"collaborators,omitempty"`
	Dependencies  []string  `json:"dependencies,omitempty"`
}

// Apply merges the update into the task and refreshes UpdatedAt, never
// moving it backwards.
func (u TaskUpdate) Apply(t *Task, now time.Time) {
	if u.Title != nil {
		t.Title = *u.Title
	}
	if u.Description != nil {
		t.Description = *u.Description
	}
	if u.Priority != nil {
		t.Priority = *u.Priority
	}
	if u.Status != nil {
		t.Status = *u.Status
	}
	if u.Type != nil {
		t.Type = *u.Type
	}
	if u.AssignedTo != nil {
		t.AssignedTo = *u.AssignedTo
	}
	if u.Collaborators != nil {
		t.Collaborators = u.Collaborators
	}
	if u.Dependencies != nil {
		t.Dependencies = u.Dependencies
	}
	if now.After(t.UpdatedAt) {
		t.UpdatedAt = now
	}
}
