package events

import "time"

// EventType identifies the kind of event emitted during a run.
type EventType string

const (
	EventRunStart     EventType = "run.start"
	EventRunEnd       EventType = "run.end"
	EventTaskStart    EventType = "task.start"
	EventTaskRepaired EventType = "task.repaired"
	EventTaskEnd      EventType = "task.end"
	EventGraphLoaded  EventType = "graph.loaded"
	EventAgentMessage EventType = "agent.message"
)

// Event represents a single runtime event.
type Event struct {
	Type      EventType     `json:"type"`
	Timestamp time.Time     `json:"timestamp"`
	RunID     string        `json:"run_id,omitempty"`
	TaskID    string        `json:"task_id,omitempty"`
	Data      any           `json:"data,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
}

// NewEvent creates a new Event with the current timestamp.
func NewEvent(typ EventType, data any) Event {
	return Event{
		Type:      typ,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// TaskEvent creates an event about one task of a run.
func TaskEvent(typ EventType, runID, taskID string, data any) Event {
	e := NewEvent(typ, data)
	e.RunID = runID
	e.TaskID = taskID
	return e
}
