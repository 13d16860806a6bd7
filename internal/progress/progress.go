package progress

import (
	"context"
	"time"
)

// Kind identifies a grading lifecycle transition.
type Kind string

// Event kinds emitted over the lifetime of one grading run.
const (
	KindStarted   Kind = "started"
	KindProgress  Kind = "progress"
	KindCompleted Kind = "completed"
	KindFailed    Kind = "failed"
)

// Event is one discrete progress notification for a grading run. Progress events
// are emitted in completion order, not panel order.
type Event struct {
	Kind         Kind        `json:"kind"`
	GradingID    string      `json:"grading_id"`
	UserID       string      `json:"user_id"`
	Subject      string      `json:"subject,omitempty"`
	ExaminerID   string      `json:"examiner_id,omitempty"`
	ExaminerName string      `json:"examiner_name,omitempty"`
	Percent      int         `json:"percent"`
	Detail       string      `json:"detail,omitempty"`
	Result       interface{} `json:"result,omitempty"`
	SentAt       time.Time   `json:"sent_at"`
}

// Broadcaster delivers progress events to interested consumers. Implementations
// must be safe for concurrent use and must never propagate delivery failures back
// into the grading flow.
type Broadcaster interface {
	Publish(ctx context.Context, event Event)
}

// Nop discards all events.
type Nop struct{}

// Publish implements Broadcaster.
func (Nop) Publish(context.Context, Event) {}

// Fanout publishes each event to every wrapped broadcaster.
type Fanout []Broadcaster

// Publish implements Broadcaster.
func (f Fanout) Publish(ctx context.Context, event Event) {
	for _, b := range f {
		b.Publish(ctx, event)
	}
}
