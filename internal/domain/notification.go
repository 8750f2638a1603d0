package domain

// NotificationType is the severity of a user-facing notification
type NotificationType string

const (
	NotifyError   NotificationType = "ERROR"
	NotifySuccess NotificationType = "SUCCESS"
)

// Message keys understood by notifiers
const (
	MsgNotConfigured    = "ERR_NOT_CONFIGURED"
	MsgNetwork          = "ERR_NETWORK"
	MsgCalendarNotFound = "CALENDAR_NOT_FOUND"
	MsgCalendarReadOnly = "CALENDAR_READ_ONLY"
	MsgIssueNotFound    = "ISSUE_NOT_FOUND"
	MsgEventDeleted     = "EVENT_DELETED"
)

// Notification is a typed signal for the user. Rendering text is up to the
// notifier.
type Notification struct {
	Type   NotificationType
	MsgKey string
	Params map[string]string
}
