package core

import "time"

// EventKind describes a progress transition of a review run.
type EventKind string

const (
	EventFileStarted   EventKind = "file_started"
	EventFileCompleted EventKind = "file_completed"
	EventFileFailed    EventKind = "file_failed"
	EventFileSkipped   EventKind = "file_skipped"
	EventAggregating   EventKind = "aggregating"
	EventDone          EventKind = "done"
)

// ProgressEvent is emitted while a review run progresses.
type ProgressEvent struct {
	TaskID   string
	FilePath string
	Kind     EventKind
	Duration time.Duration
	Err      error
	At       time.Time
}

// Observer receives progress events. Implementations must be safe for
// concurrent use: file events arrive from many goroutines.
type Observer interface {
	OnEvent(ev ProgressEvent)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ev ProgressEvent)

// OnEvent calls f.
func (f ObserverFunc) OnEvent(ev ProgressEvent) {
	f(ev)
}

// Observers fans an event out to several observers.
type Observers []Observer

// OnEvent forwards ev to every non-nil observer.
func (o Observers) OnEvent(ev ProgressEvent) {
	for _, obs := range o {
		if obs != nil {
			obs.OnEvent(ev)
		}
	}
}
