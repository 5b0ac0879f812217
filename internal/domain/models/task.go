// internal/domain/models/task.go
package models

import "time"

// Task status values.
const (
	StatusTodo       = "todo"
	StatusInProgress = "in_progress"
	StatusDone       = "done"
)

// Task priority values.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Task is a document in the tasks collection.
//
// A task references both a team and an assignee. The two are not
// required to agree: a task may be assigned to a team member without
// carrying that team's ID, which is why leader dashboards union the
// by-team and by-assignee queries.
type Task struct {
	ID          string     `bson:"_id" json:"id"`
	Title       string     `bson:"title" json:"title"`
	Description string     `bson:"description" json:"description"`
	AssigneeID  string     `bson:"assignee_id,omitempty" json:"assignee_id,omitempty"`
	TeamID      string     `bson:"team_id,omitempty" json:"team_id,omitempty"`
	Status      string     `bson:"status" json:"status"`     // todo | in_progress | done
	Priority    string     `bson:"priority" json:"priority"` // low | medium | high
	DueDate     *time.Time `bson:"due_date,omitempty" json:"due_date,omitempty"`
	CreatorID   string     `bson:"creator_id,omitempty" json:"creator_id,omitempty"`
	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updated_at"`
}

// ApplyDefaults fills fields a raw document may omit.
func (t *Task) ApplyDefaults() {
	if t.Status == "" {
		t.Status = StatusTodo
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
}

// ValidStatus reports whether s is a known task status.
func ValidStatus(s string) bool {
	return s == StatusTodo || s == StatusInProgress || s == StatusDone
}

// ValidPriority reports whether p is a known task priority.
func ValidPriority(p string) bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// IsOverdue reports whether the task is past due: not done and the due
// date is strictly before now. Tasks without a due date are never
// overdue. Derived, never stored.
func (t Task) IsOverdue(now time.Time) bool {
	if t.Status == StatusDone || t.DueDate == nil {
		return false
	}
	return t.DueDate.Before(now)
}

// IsUpcoming reports whether the task is due within the warning window:
// not done and now <= due <= now+window. Derived, never stored.
func (t Task) IsUpcoming(now time.Time, window time.Duration) bool {
	if t.Status == StatusDone || t.DueDate == nil {
		return false
	}
	due := *t.DueDate
	return !due.Before(now) && !due.After(now.Add(window))
}
