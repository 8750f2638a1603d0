package service

import (
	"context"
	"fmt"

	"github.com/tazhate/tasksync/internal/domain"
)

// DeleteChoice is the answer to "delete the calendar event too?"
type DeleteChoice string

const (
	DeleteBoth DeleteChoice = "delete-both"
	KeepEvent  DeleteChoice = "keep-event"
)

// Confirmer asks the user what to do with the event behind a deleted task
type Confirmer interface {
	ConfirmEventDeletion(ctx context.Context, task *domain.Task) (DeleteChoice, error)
}

// HandleTaskUpdate pushes local edits of a linked task back to the server.
// Todos sync done/title when transitions are enabled; events sync title,
// notes and start when write-back is enabled. Reports whether a remote
// write was attempted.
func (s *IssueService) HandleTaskUpdate(ctx context.Context, cfg *domain.ProviderConfig, task *domain.Task, changes domain.TaskChanges) (bool, error) {
	if !s.IsEnabled(cfg) || !task.IsLinked() {
		return false, nil
	}

	if !cfg.IsEvent() {
		if !cfg.TransitionEnabled || (changes.Done == nil && changes.Title == nil) {
			return false, nil
		}
		return true, s.caldav.UpdateState(ctx, cfg, task.IssueID, task.IsDone(), task.Title)
	}

	if !cfg.WriteBack {
		return false, nil
	}
	upd := eventUpdateFor(task, changes)
	if upd.IsEmpty() {
		return false, nil
	}
	return true, s.caldav.UpdateContent(ctx, cfg, task.IssueID, upd)
}

func eventUpdateFor(task *domain.Task, changes domain.TaskChanges) domain.EventUpdate {
	var upd domain.EventUpdate
	if changes.Title != nil && *changes.Title != "" {
		upd.Summary = changes.Title
	}
	if changes.Notes != nil {
		upd.Description = changes.Notes
	}
	if changes.DueWithTime != nil {
		start := *changes.DueWithTime
		upd.Start = &start
		if task.TimeEstimate > 0 {
			end := start.Add(task.TimeEstimate)
			upd.End = &end
		}
	}
	return upd
}

// HandleTaskDeletion offers to delete the event behind a deleted task.
// Only event providers with write-back ask. Reports whether the event was
// deleted.
func (s *IssueService) HandleTaskDeletion(ctx context.Context, cfg *domain.ProviderConfig, task *domain.Task, confirm Confirmer) (bool, error) {
	if !s.IsEnabled(cfg) || !cfg.IsEvent() || !cfg.WriteBack || task.IssueID == "" {
		return false, nil
	}

	choice, err := confirm.ConfirmEventDeletion(ctx, task)
	if err != nil {
		return false, fmt.Errorf("confirm deletion: %w", err)
	}
	if choice != DeleteBoth {
		return false, nil
	}

	if err := s.caldav.Delete(ctx, cfg, task.IssueID); err != nil {
		return false, err
	}
	s.caldav.notifier.Notify(ctx, domain.Notification{
		Type:   domain.NotifySuccess,
		MsgKey: domain.MsgEventDeleted,
		Params: map[string]string{"title": task.Title},
	})
	return true, nil
}
