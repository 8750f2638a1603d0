package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/tazhate/tasksync/internal/domain"
	"github.com/tazhate/tasksync/internal/storage"
)

var ErrTaskNotFound = errors.New("task not found")

// TaskService owns local tasks and keeps the linked ones in step with
// their CalDAV items.
type TaskService struct {
	storage *storage.Storage
	issues  *IssueService
}

func NewTaskService(s *storage.Storage, issues *IssueService) *TaskService {
	return &TaskService{storage: s, issues: issues}
}

// SyncResult counts what one provider sync changed locally
type SyncResult struct {
	Updated  int
	Imported int
}

func (s *TaskService) Create(title string) (*domain.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("task title cannot be empty")
	}

	task := &domain.Task{Title: title}
	if err := s.storage.CreateTask(task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return task, nil
}

func (s *TaskService) List(includeDone bool) ([]*domain.Task, error) {
	return s.storage.ListTasks(includeDone)
}

func (s *TaskService) Get(taskID int64) (*domain.Task, error) {
	task, err := s.storage.GetTask(taskID)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}
	return task, nil
}

// Link imports one remote item by UID as a new local task. An item that
// is already linked returns the existing task.
func (s *TaskService) Link(ctx context.Context, providerID, issueID string) (*domain.Task, error) {
	cfg, err := s.provider(providerID)
	if err != nil {
		return nil, err
	}
	existing, err := s.storage.GetTaskByIssue(cfg.ID, issueID)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	issue, err := s.issues.Get(ctx, cfg, issueID)
	if err != nil {
		return nil, err
	}
	return s.importIssue(cfg, issue)
}

func (s *TaskService) MarkDone(ctx context.Context, taskID int64) error {
	return s.setDone(ctx, taskID, true)
}

func (s *TaskService) MarkUndone(ctx context.Context, taskID int64) error {
	return s.setDone(ctx, taskID, false)
}

func (s *TaskService) setDone(ctx context.Context, taskID int64, done bool) error {
	if _, err := s.Get(taskID); err != nil {
		return err
	}

	var err error
	if done {
		err = s.storage.MarkTaskDone(taskID)
	} else {
		err = s.storage.MarkTaskUndone(taskID)
	}
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}

	return s.writeBack(ctx, taskID, domain.TaskChanges{Done: &done})
}

// Edit applies local changes and pushes them to the linked item. The local
// edit is kept even when the remote write fails.
func (s *TaskService) Edit(ctx context.Context, taskID int64, changes domain.TaskChanges) error {
	task, err := s.Get(taskID)
	if err != nil {
		return err
	}

	if changes.Title != nil {
		title := strings.TrimSpace(*changes.Title)
		if title == "" {
			return fmt.Errorf("task title cannot be empty")
		}
		changes.Title = &title
		task.Title = title
	}
	if changes.Notes != nil {
		task.Notes = *changes.Notes
	}
	if changes.DueWithTime != nil {
		due := *changes.DueWithTime
		task.DueWithTime = &due
		task.DueDay = ""
	}
	if changes.Done != nil {
		if *changes.Done && !task.IsDone() {
			now := time.Now()
			task.DoneAt = &now
		} else if !*changes.Done {
			task.DoneAt = nil
		}
	}

	if err := s.storage.UpdateTask(task); err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return s.writeBack(ctx, taskID, changes)
}

func (s *TaskService) writeBack(ctx context.Context, taskID int64, changes domain.TaskChanges) error {
	task, err := s.Get(taskID)
	if err != nil || !task.IsLinked() {
		return err
	}
	cfg, err := s.provider(task.IssueProviderID)
	if err != nil {
		return err
	}

	wrote, err := s.issues.HandleTaskUpdate(ctx, cfg, task, changes)
	if err != nil {
		return fmt.Errorf("write back task %d: %w", task.ID, err)
	}
	if wrote {
		log.Printf("Task %d written back to %s", task.ID, cfg.ID)
	}
	return nil
}

// Delete removes a local task. For event providers with write-back the
// confirmer decides whether the event goes too; the local task is only
// removed once that remote step succeeded.
func (s *TaskService) Delete(ctx context.Context, taskID int64, confirm Confirmer) error {
	task, err := s.Get(taskID)
	if err != nil {
		return err
	}

	if task.IsLinked() && confirm != nil {
		cfg, err := s.provider(task.IssueProviderID)
		if err != nil {
			return err
		}
		if _, err := s.issues.HandleTaskDeletion(ctx, cfg, task, confirm); err != nil {
			return fmt.Errorf("delete remote item: %w", err)
		}
	}

	return s.storage.DeleteTask(taskID)
}

// AsksBeforeDelete reports whether deleting the task can also delete its
// calendar event, so the caller should offer the choice.
func (s *TaskService) AsksBeforeDelete(task *domain.Task) bool {
	if !task.IsLinked() {
		return false
	}
	cfg, err := s.provider(task.IssueProviderID)
	if err != nil {
		return false
	}
	return s.issues.IsEnabled(cfg) && cfg.IsEvent() && cfg.WriteBack
}

// SyncProvider refreshes the provider's linked tasks that changed remotely
// and imports open items that have no local task yet.
func (s *TaskService) SyncProvider(ctx context.Context, cfg *domain.ProviderConfig) (SyncResult, error) {
	var res SyncResult
	if !s.issues.IsEnabled(cfg) {
		return res, nil
	}

	linked, err := s.storage.ListLinkedTasks(cfg.ID)
	if err != nil {
		return res, fmt.Errorf("list linked tasks: %w", err)
	}
	refreshed, err := s.issues.FreshDataForTasks(ctx, cfg, linked)
	if err != nil {
		return res, err
	}
	for _, r := range refreshed {
		r.Data.Apply(r.Task)
		if err := s.storage.UpdateTask(r.Task); err != nil {
			return res, fmt.Errorf("update task %d: %w", r.Task.ID, err)
		}
		res.Updated++
	}

	ids, err := s.storage.ListIssueIDs(cfg.ID)
	if err != nil {
		return res, fmt.Errorf("list issue ids: %w", err)
	}
	fresh, err := s.issues.NewIssuesForBacklog(ctx, cfg, ids)
	if err != nil {
		return res, err
	}
	for _, issue := range fresh {
		if _, err := s.importIssue(cfg, issue); err != nil {
			return res, err
		}
		res.Imported++
	}

	return res, nil
}

// SyncAll syncs every enabled provider. A failing provider is logged and
// does not stop the others.
func (s *TaskService) SyncAll(ctx context.Context) (SyncResult, error) {
	var total SyncResult
	providers, err := s.storage.ListProviders(true)
	if err != nil {
		return total, fmt.Errorf("list providers: %w", err)
	}

	for _, cfg := range providers {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
		res, err := s.SyncProvider(ctx, cfg)
		if err != nil {
			log.Printf("Error syncing provider %s: %v", cfg.ID, err)
			continue
		}
		if res.Updated > 0 || res.Imported > 0 {
			log.Printf("Provider %s: %d updated, %d imported", cfg.ID, res.Updated, res.Imported)
		}
		total.Updated += res.Updated
		total.Imported += res.Imported
	}
	return total, nil
}

func (s *TaskService) importIssue(cfg *domain.ProviderConfig, issue domain.Issue) (*domain.Task, error) {
	task := &domain.Task{
		IssueID:         issue.ID(),
		IssueProviderID: cfg.ID,
	}
	s.issues.AddTaskData(issue).Apply(task)
	if task.Title == "" {
		task.Title = issue.ID()
	}
	if err := s.storage.CreateTask(task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	if issue.Completed() {
		if err := s.storage.MarkTaskDone(task.ID); err != nil {
			return nil, fmt.Errorf("update task: %w", err)
		}
		now := time.Now()
		task.DoneAt = &now
	}
	return task, nil
}

func (s *TaskService) provider(id string) (*domain.ProviderConfig, error) {
	cfg, err := s.storage.GetProvider(id)
	if err != nil {
		return nil, fmt.Errorf("get provider: %w", err)
	}
	if cfg == nil {
		return nil, fmt.Errorf("provider %s: %w", id, domain.ErrNotConfigured)
	}
	return cfg, nil
}

func (s *TaskService) FormatTaskList(tasks []*domain.Task) string {
	if len(tasks) == 0 {
		return "No tasks"
	}

	var sb strings.Builder
	for _, t := range tasks {
		status := "[ ]"
		if t.IsDone() {
			status = "[x]"
		}
		sb.WriteString(fmt.Sprintf("%s #%d %s", status, t.ID, t.Title))
		switch {
		case t.DueWithTime != nil:
			sb.WriteString(" (" + t.DueWithTime.Local().Format("2006-01-02 15:04") + ")")
		case t.DueDay != "":
			sb.WriteString(" (" + t.DueDay + ")")
		}
		if t.IsLinked() {
			sb.WriteString(" @" + t.IssueProviderID)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
