package observability

import (
	"fmt"
	"time"
)

// Activity summarises board mutations recorded in the event log.
type Activity struct {
	TasksCreated   int            `json:"tasksCreated"`
	TasksUpdated   int            `json:"tasksUpdated"`
	TasksMoved     int            `json:"tasksMoved"`
	TasksCompleted int            `json:"tasksCompleted"`
	TasksDeleted   int            `json:"tasksDeleted"`
	Reorders       int            `json:"reorders"`
	MovesInto      map[string]int `json:"movesInto"`
	EventCount     int            `json:"eventCount"`
	OldestEvent    *time.Time     `json:"oldestEvent,omitempty"`
	NewestEvent    *time.Time     `json:"newestEvent,omitempty"`
}

// ActivityCalculator derives an Activity summary from the event log.
type ActivityCalculator interface {
	Calculate(since time.Time) (*Activity, error)
}

type activityCalculator struct {
	eventLog EventLog
}

// NewActivityCalculator creates an ActivityCalculator reading from eventLog.
func NewActivityCalculator(eventLog EventLog) ActivityCalculator {
	return &activityCalculator{eventLog: eventLog}
}

// Calculate aggregates every event since the given time. A move whose
// destination is "done" also counts as a completion.
func (ac *activityCalculator) Calculate(since time.Time) (*Activity, error) {
	events, err := ac.eventLog.Read(EventFilter{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("reading events for activity: %w", err)
	}

	a := &Activity{MovesInto: make(map[string]int)}
	a.EventCount = len(events)

	for i, event := range events {
		t := event.Time
		if i == 0 {
			a.OldestEvent = &t
		}
		a.NewestEvent = &t

		switch event.Type {
		case EventTaskCreated:
			a.TasksCreated++
		case EventTaskUpdated:
			a.TasksUpdated++
		case EventTaskMoved:
			a.TasksMoved++
			if to, ok := event.Data["to"].(string); ok {
				a.MovesInto[to]++
				if to == "done" {
					a.TasksCompleted++
				}
			}
		case EventTaskReordered:
			a.Reorders++
		case EventTaskDeleted:
			a.TasksDeleted++
		}
	}
	return a, nil
}
