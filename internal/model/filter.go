package model

import "sort"

// Filter selects tasks by status and priority. Empty slices match
// everything.
type Filter struct {
	Statuses   []Status
	Priorities []Priority
}

func (f Filter) Match(t Task) bool {
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, t.Status) {
		return false
	}
	if len(f.Priorities) > 0 && !containsPriority(f.Priorities, t.Priority) {
		return false
	}
	return true
}

func containsStatus(ss []Status, s Status) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func containsPriority(ps []Priority, p Priority) bool {
	for _, v := range ps {
		if v == p {
			return true
		}
	}
	return false
}

func FilterTasks(tasks []Task, f Filter) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	return out
}

type SortKey string

const (
	SortByPriority  SortKey = "priority"
	SortByStatus    SortKey = "status"
	SortByCreatedAt SortKey = "createdAt"
	SortByUpdatedAt SortKey = "updatedAt"
	SortByTitle     SortKey = "title"
)

// priorityRank orders high before medium before low; ascending sort on the
// rank therefore yields the most urgent tasks first.
func priorityRank(p Priority) int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	default:
		return 3
	}
}

func statusRank(s Status) int {
	switch s {
	case StatusTodo:
		return 0
	case StatusInProgress:
		return 1
	case StatusDone:
		return 2
	default:
		return 3
	}
}

// SortTasks sorts in place. descending flips the ascending order of the
// chosen key.
func SortTasks(tasks []Task, key SortKey, descending bool) {
	less := func(a, b Task) bool {
		switch key {
		case SortByPriority:
			return priorityRank(a.Priority) < priorityRank(b.Priority)
		case SortByStatus:
			return statusRank(a.Status) < statusRank(b.Status)
		case SortByCreatedAt:
			return a.CreatedAt.Before(b.CreatedAt)
		case SortByUpdatedAt:
			return a.UpdatedAt.Before(b.UpdatedAt)
		case SortByTitle:
			return a.Title < b.Title
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		if descending {
			return less(tasks[j], tasks[i])
		}
		return less(tasks[i], tasks[j])
	})
}
