package dynamo

// DynamoDB attribute names used in key, filter and update expressions.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldNotificationID = "notificationId"
	fieldTimestamp      = "timestamp"
	fieldSent           = "sent"
	fieldSentAt         = "sentAt"
	fieldFailedAt       = "failedAt"
	fieldError          = "error"
)
