package notification

// NotificationData carries the recipient and the template variables of one message
type NotificationData struct {
	To      string            // Recipient address
	Subject string            // Optional: overrides the template subject
	Body    string            // Optional: plain text used when the template has no text part
	Data    map[string]string // Template variables
}

// NoticeTemplate holds the subject and body templates of a notice
type NoticeTemplate struct {
	Subject string
	Text    string
	Html    string
}

// Notifier delivers a rendered notice over one system
type Notifier interface {
	Send(noticeType NoticeType, notification NotificationData, template NoticeTemplate) error
}
