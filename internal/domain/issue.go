package domain

import "time"

// TodoStatus is the VTODO STATUS value
type TodoStatus string

const (
	StatusNeedsAction TodoStatus = "NEEDS-ACTION"
	StatusCompleted   TodoStatus = "COMPLETED"
	StatusInProcess   TodoStatus = "IN-PROCESS"
	StatusCancelled   TodoStatus = "CANCELLED"
)

// Todo is a VTODO mapped from the server. Zero values mean the property
// was absent.
type Todo struct {
	ID              string
	Completed       bool
	URL             string
	Summary         string
	Start           *time.Time
	Due             *time.Time
	Note            string
	Status          TodoStatus
	Priority        int
	PercentComplete int
	Location        string
	Labels          []string
	Fingerprint     int32
	RelatedTo       string
}

// Event is a VEVENT mapped from the server.
//
// Duration is always resolved and is the authoritative span. End is only
// set when the server sent DTEND or DURATION.
type Event struct {
	ID          string
	URL         string
	Summary     string
	Start       time.Time
	End         *time.Time
	Duration    time.Duration
	AllDay      bool
	Description string
	Location    string
	Categories  []string
	Fingerprint int32
}

// EndTime returns the explicit end, or Start+Duration when none was sent
func (e *Event) EndTime() time.Time {
	if e.End != nil {
		return *e.End
	}
	return e.Start.Add(e.Duration)
}

// Labels mirrors Categories so events and todos share one consumer shape
func (e *Event) Labels() []string {
	return e.Categories
}

// Issue is either a Todo or an Event, discriminated by Kind.
type Issue struct {
	Kind  ComponentType
	Todo  *Todo
	Event *Event
}

func TodoIssue(t *Todo) Issue {
	return Issue{Kind: ComponentTodo, Todo: t}
}

func EventIssue(e *Event) Issue {
	return Issue{Kind: ComponentEvent, Event: e}
}

func (i Issue) ID() string {
	if i.Kind == ComponentEvent {
		return i.Event.ID
	}
	return i.Todo.ID
}

func (i Issue) Title() string {
	if i.Kind == ComponentEvent {
		return i.Event.Summary
	}
	return i.Todo.Summary
}

func (i Issue) URL() string {
	if i.Kind == ComponentEvent {
		return i.Event.URL
	}
	return i.Todo.URL
}

func (i Issue) Fingerprint() int32 {
	if i.Kind == ComponentEvent {
		return i.Event.Fingerprint
	}
	return i.Todo.Fingerprint
}

func (i Issue) Labels() []string {
	if i.Kind == ComponentEvent {
		return i.Event.Labels()
	}
	return i.Todo.Labels
}

// Completed is always false for events
func (i Issue) Completed() bool {
	if i.Kind == ComponentEvent {
		return false
	}
	return i.Todo.Completed
}

// HasLabel reports exact membership of label in the issue's label set
func (i Issue) HasLabel(label string) bool {
	for _, l := range i.Labels() {
		if l == label {
			return true
		}
	}
	return false
}

// SearchResult is one search hit
type SearchResult struct {
	Title string
	Kind  ComponentType
	Issue Issue
}

// TodoUpdate carries the fields that can be written back to a VTODO.
// Nil fields are left alone.
type TodoUpdate struct {
	Completed *bool
	Summary   *string
}

// EventUpdate carries the fields that can be written back to a VEVENT.
// An empty non-nil Description removes the property.
type EventUpdate struct {
	Summary     *string
	Description *string
	Start       *time.Time
	End         *time.Time
}

// IsEmpty reports whether no field is set
func (u EventUpdate) IsEmpty() bool {
	return u.Summary == nil && u.Description == nil && u.Start == nil && u.End == nil
}
