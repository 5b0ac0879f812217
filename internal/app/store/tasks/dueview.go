// internal/app/store/tasks/dueview.go
package taskstore

import (
	"sort"
	"time"

	"github.com/crewtask/crewtask/internal/domain/models"
)

// DefaultWarningWindow is the upcoming-task window dashboards start
// with. WarningWindows lists the selectable options.
const DefaultWarningWindow = 7 * 24 * time.Hour

var WarningWindows = []time.Duration{
	3 * 24 * time.Hour,
	7 * 24 * time.Hour,
	14 * 24 * time.Hour,
}

// DueView is the derived overdue/upcoming split of a task list. Neither
// classification is ever stored.
type DueView struct {
	Overdue  []models.Task
	Upcoming []models.Task
}

// ClassifyDue splits tasks into overdue (not done, due before now) and
// upcoming (not done, due within the window), each sorted by due date
// ascending. A zero window means DefaultWarningWindow.
func ClassifyDue(tasks []models.Task, now time.Time, window time.Duration) DueView {
	if window <= 0 {
		window = DefaultWarningWindow
	}
	var v DueView
	for _, t := range tasks {
		switch {
		case t.IsOverdue(now):
			v.Overdue = append(v.Overdue, t)
		case t.IsUpcoming(now, window):
			v.Upcoming = append(v.Upcoming, t)
		}
	}
	byDue := func(ts []models.Task) func(i, j int) bool {
		return func(i, j int) bool { return ts[i].DueDate.Before(*ts[j].DueDate) }
	}
	sort.SliceStable(v.Overdue, byDue(v.Overdue))
	sort.SliceStable(v.Upcoming, byDue(v.Upcoming))
	return v
}
