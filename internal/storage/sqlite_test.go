package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/tazhate/tasksync/internal/domain"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "nested", "tasksync.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testProvider(id string) *domain.ProviderConfig {
	return &domain.ProviderConfig{
		ID:                id,
		Enabled:           true,
		URL:               "https://cal.example.com/dav/",
		ResourceName:      "tasks",
		ComponentType:     domain.ComponentTodo,
		AuthType:          domain.AuthBasic,
		Username:          "u",
		Password:          "p",
		CategoryFilter:    "work",
		TransitionEnabled: true,
	}
}

func TestMigrateTwice(t *testing.T) {
	s := newTestStorage(t)
	if err := s.migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestProviders(t *testing.T) {
	s := newTestStorage(t)

	a := testProvider("a")
	b := testProvider("b")
	b.Enabled = false
	b.ComponentType = domain.ComponentEvent
	b.AuthType = domain.AuthBearer
	b.BearerToken = "tok"

	for _, p := range []*domain.ProviderConfig{a, b} {
		if err := s.SaveProvider(p); err != nil {
			t.Fatalf("SaveProvider(%s): %v", p.ID, err)
		}
	}

	got, err := s.GetProvider("b")
	if err != nil {
		t.Fatalf("GetProvider: %v", err)
	}
	if got == nil || *got != *b {
		t.Errorf("GetProvider = %+v, want %+v", got, b)
	}

	missing, err := s.GetProvider("nope")
	if err != nil || missing != nil {
		t.Errorf("GetProvider(nope) = %v, %v; want nil, nil", missing, err)
	}

	enabled, err := s.ListProviders(true)
	if err != nil {
		t.Fatalf("ListProviders: %v", err)
	}
	if len(enabled) != 1 || enabled[0].ID != "a" {
		t.Errorf("enabled providers = %v", enabled)
	}

	// upsert
	a.ResourceName = "renamed"
	if err := s.SaveProvider(a); err != nil {
		t.Fatalf("SaveProvider: %v", err)
	}
	if err := s.SetProviderEnabled("b", true); err != nil {
		t.Fatalf("SetProviderEnabled: %v", err)
	}
	all, err := s.ListProviders(false)
	if err != nil {
		t.Fatalf("ListProviders: %v", err)
	}
	if len(all) != 2 || all[0].ResourceName != "renamed" || !all[1].Enabled {
		t.Errorf("providers after update = %+v, %+v", all[0], all[1])
	}

	if err := s.DeleteProvider("a"); err != nil {
		t.Fatalf("DeleteProvider: %v", err)
	}
	if p, _ := s.GetProvider("a"); p != nil {
		t.Error("provider a still stored")
	}
}

func TestTaskLifecycle(t *testing.T) {
	s := newTestStorage(t)
	if err := s.SaveProvider(testProvider("p1")); err != nil {
		t.Fatalf("SaveProvider: %v", err)
	}

	due := time.Date(2025, 1, 15, 14, 0, 0, 0, time.UTC)
	task := &domain.Task{
		Title:            "Write report",
		Notes:            "numbers",
		DueWithTime:      &due,
		TimeEstimate:     90 * time.Minute,
		RelatedTo:        "parent",
		IssueID:          "uid-1",
		IssueProviderID:  "p1",
		IssueLastUpdated: -12345,
	}
	if err := s.CreateTask(task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if task.ID == 0 {
		t.Fatal("CreateTask did not set the ID")
	}

	got, err := s.GetTask(task.ID)
	if err != nil || got == nil {
		t.Fatalf("GetTask = %v, %v", got, err)
	}
	if got.Title != task.Title || got.Notes != task.Notes || got.RelatedTo != "parent" {
		t.Errorf("task = %+v", got)
	}
	if got.DueWithTime == nil || !got.DueWithTime.Equal(due) {
		t.Errorf("DueWithTime = %v, want %v", got.DueWithTime, due)
	}
	if got.TimeEstimate != 90*time.Minute {
		t.Errorf("TimeEstimate = %v", got.TimeEstimate)
	}
	if got.IssueLastUpdated != -12345 || !got.IsLinked() || got.IsDone() {
		t.Errorf("linkage = %+v", got)
	}

	byIssue, err := s.GetTaskByIssue("p1", "uid-1")
	if err != nil || byIssue == nil || byIssue.ID != task.ID {
		t.Errorf("GetTaskByIssue = %v, %v", byIssue, err)
	}

	got.Title = "Write final report"
	got.IssueWasUpdated = true
	got.DueWithTime = nil
	got.DueDay = "2025-01-20"
	if err := s.UpdateTask(got); err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	again, _ := s.GetTask(task.ID)
	if again.Title != "Write final report" || !again.IssueWasUpdated || again.DueWithTime != nil || again.DueDay != "2025-01-20" {
		t.Errorf("after update = %+v", again)
	}

	if err := s.MarkTaskDone(task.ID); err != nil {
		t.Fatalf("MarkTaskDone: %v", err)
	}
	if done, _ := s.GetTask(task.ID); !done.IsDone() {
		t.Error("task not done")
	}
	if err := s.MarkTaskUndone(task.ID); err != nil {
		t.Fatalf("MarkTaskUndone: %v", err)
	}
	if undone, _ := s.GetTask(task.ID); undone.IsDone() {
		t.Error("task still done")
	}

	if err := s.DeleteTask(task.ID); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	if gone, _ := s.GetTask(task.ID); gone != nil {
		t.Error("task still stored")
	}
}

func TestLinkedTasks(t *testing.T) {
	s := newTestStorage(t)
	for _, id := range []string{"p1", "p2"} {
		if err := s.SaveProvider(testProvider(id)); err != nil {
			t.Fatalf("SaveProvider: %v", err)
		}
	}

	tasks := []*domain.Task{
		{Title: "open linked", IssueID: "a", IssueProviderID: "p1"},
		{Title: "done linked", IssueID: "b", IssueProviderID: "p1"},
		{Title: "other provider", IssueID: "c", IssueProviderID: "p2"},
		{Title: "local only"},
	}
	for _, task := range tasks {
		if err := s.CreateTask(task); err != nil {
			t.Fatalf("CreateTask: %v", err)
		}
	}
	if err := s.MarkTaskDone(tasks[1].ID); err != nil {
		t.Fatalf("MarkTaskDone: %v", err)
	}

	linked, err := s.ListLinkedTasks("p1")
	if err != nil {
		t.Fatalf("ListLinkedTasks: %v", err)
	}
	if len(linked) != 1 || linked[0].IssueID != "a" {
		t.Errorf("linked = %v", linked)
	}

	ids, err := s.ListIssueIDs("p1")
	if err != nil {
		t.Fatalf("ListIssueIDs: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("issue ids = %v, want a and b", ids)
	}

	open, err := s.ListTasks(false)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(open) != 3 {
		t.Errorf("open tasks = %d, want 3", len(open))
	}
	all, err := s.ListTasks(true)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(all) != 4 || !all[3].IsDone() {
		t.Errorf("all tasks = %d, done last = %v", len(all), len(all) == 4 && all[3].IsDone())
	}

	// deleting a provider unlinks its tasks
	if err := s.DeleteProvider("p2"); err != nil {
		t.Fatalf("DeleteProvider: %v", err)
	}
	orphan, _ := s.GetTask(tasks[2].ID)
	if orphan == nil || orphan.IssueProviderID != "" {
		t.Errorf("task of deleted provider = %+v", orphan)
	}
}
