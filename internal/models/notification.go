package models

type NotificationType string

const (
	NotificationTypeSlack      NotificationType = "slack"
	NotificationTypeWebhook    NotificationType = "webhook"
	NotificationTypeEmail      NotificationType = "email"
	NotificationTypeIRC        NotificationType = "irc"
	NotificationTypePagerDuty  NotificationType = "pagerduty"
	NotificationTypeHipChat    NotificationType = "hipchat"
	NotificationTypeTwilio     NotificationType = "twilio"
	NotificationTypeMattermost NotificationType = "mattermost"
)

type NotificationTemplate struct {
	ID            int
	Name          string
	Organization  int
	Type          NotificationType
	Configuration map[string]any
}

// Notification is a single delivery attempt recorded by the controller.
type Notification struct {
	ID                   int
	NotificationTemplate int
	Type                 NotificationType
	Status               string
	Error                string
	Subject              string
	NotificationsSent    int
}
