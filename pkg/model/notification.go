package model

// NotificationMessage is the terminal artifact of the pipeline, handed to the
// outbound delivery adapter. Carrier retries are the adapter's problem.
type NotificationMessage struct {
	Channel NotificationChannel

	Body      string
	Recipient string

	SubscriptionRef string
	VehicleID       string
	StopRef         string
}
