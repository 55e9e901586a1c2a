package model

type Subscription struct {
	PrimaryIdentifier string

	Recipient string
	Channel   NotificationChannel
	Language  string

	StopRef string

	ETAThresholdMinutes int

	Active bool
}

type NotificationChannel string

const (
	NotificationChannelSMS      NotificationChannel = "sms"
	NotificationChannelVoice    NotificationChannel = "voice"
	NotificationChannelWhatsApp NotificationChannel = "whatsapp"
	NotificationChannelPush     NotificationChannel = "push"
)
