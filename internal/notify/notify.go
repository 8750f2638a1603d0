// Package notify renders sync notifications and fans them out to sinks.
package notify

import (
	"context"
	"fmt"
	"log"

	"github.com/tazhate/tasksync/internal/domain"
)

// Sink is anything that accepts notifications
type Sink interface {
	Notify(ctx context.Context, n domain.Notification)
}

// Text renders a notification as one human-readable line
func Text(n domain.Notification) string {
	p := n.Params
	switch n.MsgKey {
	case domain.MsgNotConfigured:
		return fmt.Sprintf("%s is not configured. Check the URL, resource name and credentials.", p["provider"])
	case domain.MsgNetwork:
		return fmt.Sprintf("%s: %s", p["provider"], p["error"])
	case domain.MsgCalendarNotFound:
		return fmt.Sprintf("%s: calendar %q was not found.", p["provider"], p["resource"])
	case domain.MsgCalendarReadOnly:
		return fmt.Sprintf("%s: calendar %q is read-only.", p["provider"], p["resource"])
	case domain.MsgIssueNotFound:
		return fmt.Sprintf("%s: item not found. %s", p["provider"], p["error"])
	case domain.MsgEventDeleted:
		return fmt.Sprintf("Deleted calendar event %q.", p["title"])
	}
	if err, ok := p["error"]; ok {
		return n.MsgKey + ": " + err
	}
	return n.MsgKey
}

// Log writes notifications to the standard logger
type Log struct{}

func (Log) Notify(_ context.Context, n domain.Notification) {
	log.Printf("[%s] %s", n.Type, Text(n))
}

// Multi delivers each notification to every sink in order
type Multi []Sink

func (m Multi) Notify(ctx context.Context, n domain.Notification) {
	for _, s := range m {
		if s != nil {
			s.Notify(ctx, n)
		}
	}
}
