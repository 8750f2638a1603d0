package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tazhate/tasksync/internal/clients/caldav"
	"github.com/tazhate/tasksync/internal/clients/caldav/caldavtest"
	"github.com/tazhate/tasksync/internal/domain"
)

const (
	tasksPath  = "/cal/tasks/"
	sharedPath = "/cal/shared/"
)

var testNow = time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n domain.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

func (r *recordingNotifier) keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.sent))
	for _, n := range r.sent {
		keys = append(keys, n.MsgKey)
	}
	return keys
}

type fixture struct {
	srv      *caldavtest.Server
	client   *caldav.Client
	notifier *recordingNotifier
	svc      *CalDAVService
	issues   *IssueService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	srv := caldavtest.NewServer()
	srv.AddCalendar(tasksPath, "Tasks", false)
	srv.AddCalendar(sharedPath, "Shared", true)

	client := caldav.NewClientWithDialer(srv.Dialer())
	client.SetClock(func() time.Time { return testNow })

	notifier := &recordingNotifier{}
	svc := NewCalDAVService(client, notifier)
	return &fixture{
		srv:      srv,
		client:   client,
		notifier: notifier,
		svc:      svc,
		issues:   NewIssueService(svc),
	}
}

func todoConfig() *domain.ProviderConfig {
	return &domain.ProviderConfig{
		ID:            "tasks",
		Enabled:       true,
		URL:           "https://cal.example.com",
		ResourceName:  "tasks",
		ComponentType: domain.ComponentTodo,
		AuthType:      domain.AuthBasic,
		Username:      "u",
		Password:      "p",
	}
}

func eventConfig() *domain.ProviderConfig {
	cfg := todoConfig()
	cfg.ID = "events"
	cfg.ComponentType = domain.ComponentEvent
	return cfg
}

// todoICS builds a VTODO object; extra lines go inside the VTODO
func todoICS(uid, summary string, extra ...string) string {
	return strings.Join(append([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Test//EN",
		"BEGIN:VTODO",
		"UID:" + uid,
		"DTSTAMP:20250101T090000Z",
		"SUMMARY:" + summary,
	}, append(extra, "END:VTODO", "END:VCALENDAR")...), "\n")
}

// eventICS builds a VEVENT object; extra lines go inside the VEVENT
func eventICS(uid, summary, start string, extra ...string) string {
	return strings.Join(append([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Test//EN",
		"BEGIN:VEVENT",
		"UID:" + uid,
		"DTSTAMP:20250101T090000Z",
		"SUMMARY:" + summary,
		"DTSTART:" + start,
	}, append(extra, "END:VEVENT", "END:VCALENDAR")...), "\n")
}

func (f *fixture) addTodo(uid, summary string, extra ...string) string {
	return f.srv.AddObject(tasksPath, uid+".ics", todoICS(uid, summary, extra...))
}

func (f *fixture) addEvent(uid, summary, start string, extra ...string) string {
	return f.srv.AddObject(tasksPath, uid+".ics", eventICS(uid, summary, start, extra...))
}

func issueIDs(issues []domain.Issue) map[string]bool {
	ids := make(map[string]bool, len(issues))
	for _, issue := range issues {
		ids[issue.ID()] = true
	}
	return ids
}

func assertKind(t *testing.T, err error, want ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	if got := KindOf(err); got != want {
		t.Fatalf("error kind = %q, want %q (err: %v)", got, want, err)
	}
}
