package taskserver

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"tasksync/internal/model"
)

// TaskService holds the server-side task semantics: id assignment, field
// validation and timestamp authority.
type TaskService struct {
	repo *TaskRepo
}

func NewTaskService(repo *TaskRepo) *TaskService {
	return &TaskService{repo: repo}
}

// Create stores a new task. Locally minted offline ids are replaced with a
// server-assigned one so the client can remap its snapshot.
func (s *TaskService) Create(in model.Task) (*model.Task, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("title is required")
	}
	if err := validateEnums(&in); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if strings.TrimSpace(in.ID) == "" || model.IsOfflineID(in.ID) {
		in.ID = uuid.NewString()
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = now
	}
	in.UpdatedAt = now
	stripClientFields(&in)

	if err := s.repo.Upsert(in); err != nil {
		return nil, err
	}
	return s.repo.Get(in.ID)
}

// Update overwrites an existing task with the submitted snapshot, keeping
// the original creation time.
func (s *TaskService) Update(id string, in model.Task) (*model.Task, error) {
	existing, err := s.repo.Get(id)
	if err != nil {
		return nil, err
	}
	if err := validateEnums(&in); err != nil {
		return nil, err
	}

	in.ID = existing.ID
	in.CreatedAt = existing.CreatedAt
	in.UpdatedAt = time.Now().UTC()
	stripClientFields(&in)

	if err := s.repo.Upsert(in); err != nil {
		return nil, err
	}
	return s.repo.Get(in.ID)
}

func (s *TaskService) Delete(id string) error {
	return s.repo.Delete(id)
}

func (s *TaskService) Get(id string) (*model.Task, error) {
	return s.repo.Get(id)
}

func (s *TaskService) List() ([]model.Task, error) {
	return s.repo.List()
}

func validateEnums(t *model.Task) error {
	switch t.Priority {
	case "":
		t.Priority = model.PriorityMedium
	case model.PriorityLow, model.PriorityMedium, model.PriorityHigh:
	default:
		return fmt.Errorf("invalid priority %q", t.Priority)
	}
	switch t.Status {
	case "":
		t.Status = model.StatusTodo
	case model.StatusTodo, model.StatusInProgress, model.StatusDone:
	default:
		return fmt.Errorf("invalid status %q", t.Status)
	}
	return nil
}

// The authoritative copy carries no offline bookkeeping.
func stripClientFields(t *model.Task) {
	t.IsOffline = false
	t.SyncState = ""
	t.LastSyncAttempt = nil
}
