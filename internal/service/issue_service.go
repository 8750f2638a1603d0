package service

import (
	"context"
	"fmt"
	"time"

	"github.com/tazhate/tasksync/internal/domain"
)

// dueDayFormat matches the local task store's day column
const dueDayFormat = "2006-01-02"

// IssueService maps CalDAV items onto local tasks and detects remote changes
type IssueService struct {
	caldav *CalDAVService
}

// NewIssueService creates a new issue service
func NewIssueService(caldav *CalDAVService) *IssueService {
	return &IssueService{caldav: caldav}
}

// TaskRefresh is a linked task whose remote item changed since the last sync
type TaskRefresh struct {
	Task  *domain.Task
	Issue domain.Issue
	Data  domain.TaskData
}

// IsEnabled returns true if the provider is switched on and fully configured
func (s *IssueService) IsEnabled(cfg *domain.ProviderConfig) bool {
	return cfg != nil && cfg.Enabled && cfg.Validate() == nil
}

// TestConnection runs an empty search against the provider
func (s *IssueService) TestConnection(ctx context.Context, cfg *domain.ProviderConfig) (bool, error) {
	if _, err := s.caldav.Search(ctx, cfg, ""); err != nil {
		return false, err
	}
	return true, nil
}

// Search returns nothing for disabled providers
func (s *IssueService) Search(ctx context.Context, cfg *domain.ProviderConfig, text string) ([]domain.SearchResult, error) {
	if !s.IsEnabled(cfg) {
		return nil, nil
	}
	return s.caldav.Search(ctx, cfg, text)
}

func (s *IssueService) ListOpen(ctx context.Context, cfg *domain.ProviderConfig) ([]domain.Issue, error) {
	return s.caldav.ListOpen(ctx, cfg)
}

func (s *IssueService) Get(ctx context.Context, cfg *domain.ProviderConfig, id string) (domain.Issue, error) {
	return s.caldav.GetByID(ctx, cfg, id)
}

// AddTaskData derives local task fields from a remote item
func (s *IssueService) AddTaskData(issue domain.Issue) domain.TaskData {
	if issue.Kind == domain.ComponentEvent {
		ev := issue.Event
		data := domain.TaskData{
			Title:            ev.Summary,
			IssueLastUpdated: ev.Fingerprint,
			Notes:            ev.Description,
			TimeEstimate:     ev.Duration,
		}
		if ev.AllDay {
			data.DueDay = ev.Start.In(time.Local).Format(dueDayFormat)
		} else {
			start := ev.Start
			data.DueWithTime = &start
		}
		return data
	}

	todo := issue.Todo
	return domain.TaskData{
		Title:            todo.Summary,
		IssueLastUpdated: todo.Fingerprint,
		Notes:            todo.Note,
		DueWithTime:      todo.Start,
		RelatedTo:        todo.RelatedTo,
	}
}

// FreshDataForTask re-fetches the task's item and returns the new task
// data if its fingerprint moved, or nil if nothing changed.
func (s *IssueService) FreshDataForTask(ctx context.Context, cfg *domain.ProviderConfig, task *domain.Task) (*TaskRefresh, error) {
	if !task.IsLinked() {
		return nil, fmt.Errorf("task %d is not linked to a CalDAV item", task.ID)
	}

	issue, err := s.caldav.GetByID(ctx, cfg, task.IssueID)
	if err != nil {
		return nil, err
	}
	if issue.Fingerprint() == task.IssueLastUpdated {
		return nil, nil
	}
	return s.refresh(task, issue), nil
}

// FreshDataForTasks checks a batch of linked tasks of one provider. Todos
// are fetched by id; events come from the upcoming window, so events that
// left it are not refreshed.
func (s *IssueService) FreshDataForTasks(ctx context.Context, cfg *domain.ProviderConfig, tasks []*domain.Task) ([]TaskRefresh, error) {
	if len(tasks) == 0 {
		return nil, nil
	}

	var (
		issues []domain.Issue
		err    error
	)
	if cfg.IsEvent() {
		issues, err = s.caldav.ListOpen(ctx, cfg)
	} else {
		ids := make([]string, 0, len(tasks))
		for _, t := range tasks {
			if t.IssueID != "" {
				ids = append(ids, t.IssueID)
			}
		}
		issues, err = s.caldav.GetByIDs(ctx, cfg, ids)
	}
	if err != nil {
		return nil, err
	}

	byID := make(map[string]domain.Issue, len(issues))
	for _, issue := range issues {
		byID[issue.ID()] = issue
	}

	var refreshed []TaskRefresh
	for _, task := range tasks {
		issue, ok := byID[task.IssueID]
		if !ok || issue.Fingerprint() == task.IssueLastUpdated {
			continue
		}
		refreshed = append(refreshed, *s.refresh(task, issue))
	}
	return refreshed, nil
}

// NewIssuesForBacklog returns open items not yet linked to a local task
func (s *IssueService) NewIssuesForBacklog(ctx context.Context, cfg *domain.ProviderConfig, existingIDs []string) ([]domain.Issue, error) {
	issues, err := s.caldav.ListOpen(ctx, cfg)
	if err != nil {
		return nil, err
	}

	existing := make(map[string]struct{}, len(existingIDs))
	for _, id := range existingIDs {
		existing[id] = struct{}{}
	}

	var fresh []domain.Issue
	for _, issue := range issues {
		if _, ok := existing[issue.ID()]; !ok {
			fresh = append(fresh, issue)
		}
	}
	return fresh, nil
}

func (s *IssueService) refresh(task *domain.Task, issue domain.Issue) *TaskRefresh {
	data := s.AddTaskData(issue)
	data.IssueWasUpdated = true
	return &TaskRefresh{Task: task, Issue: issue, Data: data}
}
