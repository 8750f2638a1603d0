package domain

import "time"

// Task is a local task, optionally linked to a remote CalDAV item
type Task struct {
	ID              int64
	Title           string
	Notes           string
	DueWithTime     *time.Time
	DueDay          string // YYYY-MM-DD, all-day events only
	TimeEstimate    time.Duration
	RelatedTo       string
	DoneAt          *time.Time
	CreatedAt       time.Time
	IssueID         string
	IssueProviderID string
	// IssueLastUpdated is the revision fingerprint seen at the last refresh
	IssueLastUpdated int32
	IssueWasUpdated  bool
}

func (t *Task) IsDone() bool {
	return t.DoneAt != nil
}

// IsLinked reports whether the task mirrors a remote item
func (t *Task) IsLinked() bool {
	return t.IssueID != "" && t.IssueProviderID != ""
}

// TaskData is the set of task fields derived from a remote item
type TaskData struct {
	Title            string
	Notes            string
	DueWithTime      *time.Time
	DueDay           string
	TimeEstimate     time.Duration
	RelatedTo        string
	IssueLastUpdated int32
	IssueWasUpdated  bool
}

// Apply copies data onto the task
func (d TaskData) Apply(t *Task) {
	t.Title = d.Title
	t.Notes = d.Notes
	t.DueWithTime = d.DueWithTime
	t.DueDay = d.DueDay
	t.TimeEstimate = d.TimeEstimate
	t.RelatedTo = d.RelatedTo
	t.IssueLastUpdated = d.IssueLastUpdated
	t.IssueWasUpdated = d.IssueWasUpdated
}

// TaskChanges lists which local fields were edited. Nil means untouched.
type TaskChanges struct {
	Done        *bool
	Title       *string
	Notes       *string
	DueWithTime *time.Time
}
