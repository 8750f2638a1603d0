package service

import (
	"context"
	"testing"
	"time"

	"github.com/tazhate/tasksync/internal/clients/caldav"
	"github.com/tazhate/tasksync/internal/domain"
)

func TestIsEnabled(t *testing.T) {
	s := NewIssueService(nil)

	cfg := todoConfig()
	if !s.IsEnabled(cfg) {
		t.Error("valid enabled config reported disabled")
	}

	cfg.Enabled = false
	if s.IsEnabled(cfg) {
		t.Error("disabled config reported enabled")
	}

	cfg = todoConfig()
	cfg.Username = ""
	if s.IsEnabled(cfg) {
		t.Error("invalid config reported enabled")
	}

	if s.IsEnabled(nil) {
		t.Error("nil config reported enabled")
	}
}

func TestTestConnection(t *testing.T) {
	f := newFixture(t)

	ok, err := f.issues.TestConnection(context.Background(), todoConfig())
	if err != nil || !ok {
		t.Errorf("TestConnection = %v, %v; want true", ok, err)
	}

	f.srv.QueryErr = context.DeadlineExceeded
	ok, err = f.issues.TestConnection(context.Background(), todoConfig())
	if ok || err == nil {
		t.Errorf("TestConnection = %v, %v; want failure", ok, err)
	}
}

func TestAddTaskDataTodo(t *testing.T) {
	start := time.Date(2025, 1, 12, 8, 0, 0, 0, time.UTC)
	issue := domain.TodoIssue(&domain.Todo{
		ID:          "a",
		Summary:     "Write report",
		Note:        "numbers",
		Start:       &start,
		Fingerprint: 42,
		RelatedTo:   "parent",
	})

	data := NewIssueService(nil).AddTaskData(issue)

	if data.Title != "Write report" || data.Notes != "numbers" || data.RelatedTo != "parent" {
		t.Errorf("data = %+v", data)
	}
	if data.IssueLastUpdated != 42 {
		t.Errorf("IssueLastUpdated = %d, want 42", data.IssueLastUpdated)
	}
	if data.DueWithTime == nil || !data.DueWithTime.Equal(start) {
		t.Errorf("DueWithTime = %v, want %v", data.DueWithTime, start)
	}
	if data.IssueWasUpdated {
		t.Error("fresh import must not be flagged as updated")
	}
}

func TestAddTaskDataEvent(t *testing.T) {
	s := NewIssueService(nil)
	start := time.Date(2025, 1, 15, 14, 0, 0, 0, time.UTC)

	timed := s.AddTaskData(domain.EventIssue(&domain.Event{
		ID:          "e1",
		Summary:     "Planning",
		Description: "Agenda",
		Start:       start,
		Duration:    2 * time.Hour,
		Fingerprint: 7,
	}))
	if timed.DueWithTime == nil || !timed.DueWithTime.Equal(start) || timed.DueDay != "" {
		t.Errorf("timed event: DueWithTime=%v DueDay=%q", timed.DueWithTime, timed.DueDay)
	}
	if timed.TimeEstimate != 2*time.Hour || timed.Notes != "Agenda" {
		t.Errorf("timed event data = %+v", timed)
	}

	day := time.Date(2025, 1, 20, 0, 0, 0, 0, time.Local)
	allDay := s.AddTaskData(domain.EventIssue(&domain.Event{
		ID:       "e2",
		Summary:  "Holiday",
		Start:    day,
		Duration: 24 * time.Hour,
		AllDay:   true,
	}))
	if allDay.DueDay != "2025-01-20" || allDay.DueWithTime != nil {
		t.Errorf("all-day event: DueDay=%q DueWithTime=%v", allDay.DueDay, allDay.DueWithTime)
	}
	if allDay.TimeEstimate != 24*time.Hour {
		t.Errorf("TimeEstimate = %v, want 24h", allDay.TimeEstimate)
	}
}

func linkedTask(id int64, issueID string, fingerprint int32) *domain.Task {
	return &domain.Task{
		ID:               id,
		Title:            "local " + issueID,
		IssueID:          issueID,
		IssueProviderID:  "tasks",
		IssueLastUpdated: fingerprint,
	}
}

func TestFreshDataForTask(t *testing.T) {
	f := newFixture(t)
	path := f.addTodo("a", "Buy milk")
	current := caldav.Fingerprint(f.srv.ETag(path))
	ctx := context.Background()

	unchanged, err := f.issues.FreshDataForTask(ctx, todoConfig(), linkedTask(1, "a", current))
	if err != nil {
		t.Fatalf("FreshDataForTask: %v", err)
	}
	if unchanged != nil {
		t.Errorf("unchanged item returned %+v", unchanged)
	}

	refreshed, err := f.issues.FreshDataForTask(ctx, todoConfig(), linkedTask(1, "a", current+1))
	if err != nil {
		t.Fatalf("FreshDataForTask: %v", err)
	}
	if refreshed == nil {
		t.Fatal("changed item not reported")
	}
	if !refreshed.Data.IssueWasUpdated || refreshed.Data.IssueLastUpdated != current {
		t.Errorf("refresh data = %+v", refreshed.Data)
	}
	if refreshed.Data.Title != "Buy milk" {
		t.Errorf("Title = %q", refreshed.Data.Title)
	}
}

func TestFreshDataForTaskUnlinked(t *testing.T) {
	f := newFixture(t)
	if _, err := f.issues.FreshDataForTask(context.Background(), todoConfig(), &domain.Task{ID: 3}); err == nil {
		t.Error("expected error for unlinked task")
	}
}

func TestFreshDataForTasksTodos(t *testing.T) {
	f := newFixture(t)
	pathA := f.addTodo("a", "Buy milk")
	pathB := f.addTodo("b", "Write report", "COMPLETED:20250102T090000Z")
	f.addTodo("c", "Not linked")

	tasks := []*domain.Task{
		linkedTask(1, "a", caldav.Fingerprint(f.srv.ETag(pathA))),
		linkedTask(2, "b", caldav.Fingerprint(f.srv.ETag(pathB))+1),
		linkedTask(3, "gone", 0),
	}

	refreshed, err := f.issues.FreshDataForTasks(context.Background(), todoConfig(), tasks)
	if err != nil {
		t.Fatalf("FreshDataForTasks: %v", err)
	}
	if len(refreshed) != 1 {
		t.Fatalf("refreshed = %d, want 1", len(refreshed))
	}
	if refreshed[0].Task.ID != 2 || refreshed[0].Issue.ID() != "b" {
		t.Errorf("refreshed task %d / issue %s", refreshed[0].Task.ID, refreshed[0].Issue.ID())
	}
	if !refreshed[0].Issue.Completed() {
		t.Error("completed remote todo must still be refreshed")
	}
}

func TestFreshDataForTasksEvents(t *testing.T) {
	f := newFixture(t)
	path := f.addEvent("e1", "Planning", "20250115T140000Z")

	tasks := []*domain.Task{linkedTask(1, "e1", caldav.Fingerprint(f.srv.ETag(path))+5)}
	refreshed, err := f.issues.FreshDataForTasks(context.Background(), eventConfig(), tasks)
	if err != nil {
		t.Fatalf("FreshDataForTasks: %v", err)
	}
	if len(refreshed) != 1 || refreshed[0].Data.TimeEstimate != time.Hour {
		t.Errorf("refreshed = %+v", refreshed)
	}
}

func TestNewIssuesForBacklog(t *testing.T) {
	f := newFixture(t)
	f.addTodo("a", "Buy milk")
	f.addTodo("b", "Write report")
	f.addTodo("c", "Call bank")

	fresh, err := f.issues.NewIssuesForBacklog(context.Background(), todoConfig(), []string{"b", "zz"})
	if err != nil {
		t.Fatalf("NewIssuesForBacklog: %v", err)
	}
	ids := issueIDs(fresh)
	if len(fresh) != 2 || !ids["a"] || !ids["c"] {
		t.Errorf("backlog = %v, want a and c", ids)
	}
}
