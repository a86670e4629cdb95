package notification

import (
	"embed"
	"fmt"
)

//go:embed templates/*
var templateFiles embed.FS

func loadTemplate(filename string) (string, error) {
	content, err := templateFiles.ReadFile(filename)
	if err != nil {
		return "", fmt.Errorf("failed to read template %s: %w", filename, err)
	}
	return string(content), nil
}

// NotificationManagerOption is a function that configures a NotificationManager
type NotificationManagerOption func(*NotificationManager) error

// WithSMTP adds an email notifier with the provided SMTP configuration
func WithSMTP(config SMTPConfig) NotificationManagerOption {
	return func(nm *NotificationManager) error {
		emailNotifier, err := NewEmailNotifier(config)
		if err != nil {
			return err
		}
		nm.RegisterNotifier(EmailSystem, emailNotifier)
		return nil
	}
}

// WithNotifier registers an arbitrary notifier, typically a MockNotifier in tests
func WithNotifier(system NotificationSystem, notifier Notifier) NotificationManagerOption {
	return func(nm *NotificationManager) error {
		nm.RegisterNotifier(system, notifier)
		return nil
	}
}

// WithEmailVerificationTemplate registers the verification email
func WithEmailVerificationTemplate() NotificationManagerOption {
	return func(nm *NotificationManager) error {
		html, err := loadTemplate("templates/email/email_verification.html")
		if err != nil {
			return err
		}
		return nm.RegisterNotification(EmailVerificationNotice, EmailSystem, NoticeTemplate{
			Subject: "Confirm your email address",
			Text:    "Hi {{.Name}},\n\nConfirm your email address by opening this link:\n{{.VerificationLink}}\n\nThe link expires in {{.ExpiryHours}} hours.\n",
			Html:    html,
		})
	}
}

// WithCourseAccessLinkTemplate registers the temporary course access email
func WithCourseAccessLinkTemplate() NotificationManagerOption {
	return func(nm *NotificationManager) error {
		html, err := loadTemplate("templates/email/course_access_link.html")
		if err != nil {
			return err
		}
		return nm.RegisterNotification(CourseAccessLinkNotice, EmailSystem, NoticeTemplate{
			Subject: "Your access link for course {{.CourseRef}}",
			Text:    "Hi {{.Name}},\n\nOpen course {{.CourseRef}} with this link:\n{{.AccessLink}}\n\nIt can be used {{.MaxUses}} times and expires at {{.ExpiresAt}}.\n",
			Html:    html,
		})
	}
}

// WithDefaultTemplates registers every built-in template
func WithDefaultTemplates() NotificationManagerOption {
	return func(nm *NotificationManager) error {
		for _, opt := range []NotificationManagerOption{WithEmailVerificationTemplate(), WithCourseAccessLinkTemplate()} {
			if err := opt(nm); err != nil {
				return err
			}
		}
		return nil
	}
}
