package notify

import (
	"bytes"
	"context"
	"log"
	"strings"
	"testing"

	"github.com/tazhate/tasksync/internal/domain"
)

func TestText(t *testing.T) {
	params := map[string]string{"provider": "work", "resource": "Tasks", "error": "dial tcp: refused"}

	tests := []struct {
		key  string
		want string
	}{
		{domain.MsgNotConfigured, "work is not configured. Check the URL, resource name and credentials."},
		{domain.MsgNetwork, "work: dial tcp: refused"},
		{domain.MsgCalendarNotFound, `work: calendar "Tasks" was not found.`},
		{domain.MsgCalendarReadOnly, `work: calendar "Tasks" is read-only.`},
		{domain.MsgIssueNotFound, "work: item not found. dial tcp: refused"},
		{"SOMETHING_ELSE", "SOMETHING_ELSE: dial tcp: refused"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got := Text(domain.Notification{Type: domain.NotifyError, MsgKey: tt.key, Params: params})
			if got != tt.want {
				t.Errorf("Text = %q, want %q", got, tt.want)
			}
		})
	}

	deleted := Text(domain.Notification{MsgKey: domain.MsgEventDeleted, Params: map[string]string{"title": "Planning"}})
	if deleted != `Deleted calendar event "Planning".` {
		t.Errorf("deleted = %q", deleted)
	}
	if got := Text(domain.Notification{MsgKey: "BARE"}); got != "BARE" {
		t.Errorf("bare = %q", got)
	}
}

type countingSink struct{ got []string }

func (c *countingSink) Notify(_ context.Context, n domain.Notification) {
	c.got = append(c.got, n.MsgKey)
}

func TestMulti(t *testing.T) {
	a, b := &countingSink{}, &countingSink{}
	m := Multi{a, nil, b}
	m.Notify(context.Background(), domain.Notification{MsgKey: domain.MsgNetwork})

	if len(a.got) != 1 || len(b.got) != 1 {
		t.Errorf("deliveries = %v / %v", a.got, b.got)
	}
}

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Writer()
	log.SetOutput(&buf)
	defer log.SetOutput(prev)

	Log{}.Notify(context.Background(), domain.Notification{
		Type:   domain.NotifySuccess,
		MsgKey: domain.MsgEventDeleted,
		Params: map[string]string{"title": "Planning"},
	})
	if !strings.Contains(buf.String(), `[SUCCESS] Deleted calendar event "Planning".`) {
		t.Errorf("log output = %q", buf.String())
	}
}
