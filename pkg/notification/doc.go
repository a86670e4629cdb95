// Package notification delivers transactional email for the academy.
//
// A NotificationManager maps notice types to per-system templates and the
// notifiers that deliver them. It is constructed once at startup:
//
//	nm, err := notification.NewNotificationManager(
//	    notification.WithSMTP(smtpConfig),
//	    notification.WithDefaultTemplates(),
//	)
//
// and injected into the services that need it. Delivery is best effort from
// the caller's perspective: services log Send failures and carry on.
package notification
