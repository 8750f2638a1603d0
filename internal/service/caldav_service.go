package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/tazhate/tasksync/internal/clients/caldav"
	"github.com/tazhate/tasksync/internal/domain"
)

// Notifier receives user-facing signals. Rendering is up to the implementation.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, domain.Notification) {}

// CalDAVService is the public surface for CalDAV providers. It dispatches
// on the provider's component type and turns every failure into a *Error.
type CalDAVService struct {
	client   *caldav.Client
	notifier Notifier
}

// NewCalDAVService creates a new CalDAV service
func NewCalDAVService(client *caldav.Client, notifier Notifier) *CalDAVService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &CalDAVService{
		client:   client,
		notifier: notifier,
	}
}

// ListOpen returns open todos, or the events of the upcoming window,
// narrowed to the configured category.
func (s *CalDAVService) ListOpen(ctx context.Context, cfg *domain.ProviderConfig) ([]domain.Issue, error) {
	issues, err := s.listOpen(ctx, cfg)
	if err != nil {
		return nil, s.fail(ctx, cfg, err)
	}
	return issues, nil
}

// Search matches text against the titles of ListOpen. Todo titles match
// case-sensitively, event titles case-insensitively.
func (s *CalDAVService) Search(ctx context.Context, cfg *domain.ProviderConfig, text string) ([]domain.SearchResult, error) {
	issues, err := s.listOpen(ctx, cfg)
	if err != nil {
		return nil, s.fail(ctx, cfg, err)
	}

	match := func(title string) bool { return strings.Contains(title, text) }
	if cfg.IsEvent() {
		needle := strings.ToLower(text)
		match = func(title string) bool { return strings.Contains(strings.ToLower(title), needle) }
	}

	results := make([]domain.SearchResult, 0, len(issues))
	for _, issue := range issues {
		if !match(issue.Title()) {
			continue
		}
		results = append(results, domain.SearchResult{
			Title: issue.Title(),
			Kind:  issue.Kind,
			Issue: issue,
		})
	}
	return results, nil
}

// GetByID fetches one item by UID
func (s *CalDAVService) GetByID(ctx context.Context, cfg *domain.ProviderConfig, id string) (domain.Issue, error) {
	issue, err := s.getByID(ctx, cfg, id)
	if err != nil {
		return domain.Issue{}, s.fail(ctx, cfg, err)
	}
	return issue, nil
}

func (s *CalDAVService) getByID(ctx context.Context, cfg *domain.ProviderConfig, id string) (domain.Issue, error) {
	cal, err := s.calendar(ctx, cfg)
	if err != nil {
		return domain.Issue{}, err
	}
	raw, err := s.lookup(ctx, cal, cfg, id)
	if err != nil {
		return domain.Issue{}, err
	}
	return caldav.ParseIssue(cfg.ComponentType, raw)
}

// GetByIDs fetches several todos at once. The whole calendar is listed
// without the open or category filters, then narrowed to ids. Events are
// not supported; use ListOpen.
func (s *CalDAVService) GetByIDs(ctx context.Context, cfg *domain.ProviderConfig, ids []string) ([]domain.Issue, error) {
	issues, err := s.getByIDs(ctx, cfg, ids)
	if err != nil {
		return nil, s.fail(ctx, cfg, err)
	}
	return issues, nil
}

func (s *CalDAVService) getByIDs(ctx context.Context, cfg *domain.ProviderConfig, ids []string) ([]domain.Issue, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.IsEvent() {
		return nil, fmt.Errorf("get by ids: %w", ErrUnsupportedComponent)
	}

	cal, err := s.calendar(ctx, cfg)
	if err != nil {
		return nil, err
	}
	raws, err := s.client.Todos(ctx, cal, false)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	var issues []domain.Issue
	for _, issue := range parseAll(domain.ComponentTodo, raws) {
		if _, ok := wanted[issue.ID()]; ok {
			issues = append(issues, issue)
		}
	}
	return issues, nil
}

// UpdateState writes completion and title back to a todo. An empty title
// leaves the summary untouched.
func (s *CalDAVService) UpdateState(ctx context.Context, cfg *domain.ProviderConfig, id string, completed bool, title string) error {
	upd := domain.TodoUpdate{Completed: &completed}
	if title != "" {
		upd.Summary = &title
	}

	err := s.mutate(ctx, cfg, domain.ComponentTodo, id, func(raw *caldav.RawComponent) (bool, error) {
		return caldav.ApplyTodoUpdate(raw, upd, s.client.Now())
	})
	if err != nil {
		return s.fail(ctx, cfg, err)
	}
	return nil
}

// UpdateContent writes summary, description and times back to an event
func (s *CalDAVService) UpdateContent(ctx context.Context, cfg *domain.ProviderConfig, id string, upd domain.EventUpdate) error {
	err := s.mutate(ctx, cfg, domain.ComponentEvent, id, func(raw *caldav.RawComponent) (bool, error) {
		if upd.IsEmpty() {
			return false, nil
		}
		return caldav.ApplyEventUpdate(raw, upd, s.client.Now())
	})
	if err != nil {
		return s.fail(ctx, cfg, err)
	}
	return nil
}

// Delete removes an event. An event that is already gone counts as deleted.
func (s *CalDAVService) Delete(ctx context.Context, cfg *domain.ProviderConfig, id string) error {
	if err := s.delete(ctx, cfg, id); err != nil {
		return s.fail(ctx, cfg, err)
	}
	return nil
}

func (s *CalDAVService) delete(ctx context.Context, cfg *domain.ProviderConfig, id string) error {
	cal, err := s.writableCalendar(ctx, cfg, domain.ComponentEvent, "delete")
	if err != nil {
		return err
	}

	hits, err := s.client.FindByUID(ctx, cal, domain.ComponentEvent, id)
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		log.Printf("caldav: event %s already absent from %s", id, cfg.ResourceName)
		return nil
	}
	return s.client.Delete(ctx, cal, hits[0])
}

// mutate fetches id, lets apply edit it and submits the result if apply
// reports a change.
func (s *CalDAVService) mutate(ctx context.Context, cfg *domain.ProviderConfig, kind domain.ComponentType, id string, apply func(*caldav.RawComponent) (bool, error)) error {
	cal, err := s.writableCalendar(ctx, cfg, kind, "update")
	if err != nil {
		return err
	}

	raw, err := s.lookup(ctx, cal, cfg, id)
	if err != nil {
		return err
	}

	changed, err := apply(raw)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	return raw.Submit(ctx)
}

// writableCalendar runs the write pre-flight: valid config, matching
// component type, resolved calendar that is not read-only.
func (s *CalDAVService) writableCalendar(ctx context.Context, cfg *domain.ProviderConfig, kind domain.ComponentType, op string) (*caldav.Calendar, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ComponentType != kind {
		return nil, fmt.Errorf("%s %s: %w", op, cfg.ComponentType, ErrUnsupportedComponent)
	}

	cal, err := s.calendar(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cal.ReadOnly {
		return nil, fmt.Errorf("%w: %s", caldav.ErrCalendarReadOnly, cfg.ResourceName)
	}
	return cal, nil
}

func (s *CalDAVService) listOpen(ctx context.Context, cfg *domain.ProviderConfig) ([]domain.Issue, error) {
	cal, err := s.calendar(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var raws []*caldav.RawComponent
	if cfg.IsEvent() {
		raws, err = s.client.UpcomingEvents(ctx, cal)
	} else {
		raws, err = s.client.Todos(ctx, cal, true)
	}
	if err != nil {
		return nil, err
	}

	issues := parseAll(cfg.ComponentType, raws)
	if cfg.CategoryFilter == "" {
		return issues, nil
	}
	filtered := issues[:0]
	for _, issue := range issues {
		if issue.HasLabel(cfg.CategoryFilter) {
			filtered = append(filtered, issue)
		}
	}
	return filtered, nil
}

// calendar validates cfg before anything touches the network
func (s *CalDAVService) calendar(ctx context.Context, cfg *domain.ProviderConfig) (*caldav.Calendar, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return s.client.Calendar(ctx, cfg)
}

func (s *CalDAVService) lookup(ctx context.Context, cal *caldav.Calendar, cfg *domain.ProviderConfig, id string) (*caldav.RawComponent, error) {
	hits, err := s.client.FindByUID(ctx, cal, cfg.ComponentType, id)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, fmt.Errorf("%w: %s %s", caldav.ErrNotFound, strings.ToLower(string(cfg.ComponentType)), id)
	}
	return hits[0], nil
}

// parseAll maps a query result, skipping components without the expected
// sub-component
func parseAll(kind domain.ComponentType, raws []*caldav.RawComponent) []domain.Issue {
	issues := make([]domain.Issue, 0, len(raws))
	for _, raw := range raws {
		issue, err := caldav.ParseIssue(kind, raw)
		if err != nil {
			log.Printf("caldav: skipping %s: %v", raw.Path, err)
			continue
		}
		issues = append(issues, issue)
	}
	return issues
}

// fail classifies err, emits the matching notification and wraps it
func (s *CalDAVService) fail(ctx context.Context, cfg *domain.ProviderConfig, err error) error {
	var handled *Error
	if errors.As(err, &handled) {
		return err
	}

	kind := classify(err)
	if n, ok := notification(kind, cfg, err); ok {
		s.notifier.Notify(ctx, n)
	}
	return &Error{Kind: kind, Provider: providerName(cfg), Err: err}
}

func providerName(cfg *domain.ProviderConfig) string {
	if cfg == nil {
		return ""
	}
	if cfg.ID != "" {
		return cfg.ID
	}
	return cfg.ResourceName
}
