package domain

import (
	"time"
)

// TypeTransferReceived is the only record type the dispatcher acts on.
const TypeTransferReceived = "transfer_received"

// TimestampLayout is the ISO-8601 form used for record timestamps. Records are
// compared as strings by the retention sweep, so every writer must use it.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// FormatTimestamp renders t in TimestampLayout (always UTC).
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// NotificationRecord is one transfer-notification event and its delivery outcome.
// Outcome fields are nil until the dispatcher has attempted delivery.
type NotificationRecord struct {
	NotificationID      string  `json:"notificationId" dynamodbav:"notificationId" validate:"required"`
	Type                string  `json:"type" dynamodbav:"type"`
	FCMToken            string  `json:"fcmToken,omitempty" dynamodbav:"fcmToken,omitempty"`
	Title               string  `json:"title,omitempty" dynamodbav:"title,omitempty"`
	Body                string  `json:"body,omitempty" dynamodbav:"body,omitempty"`
	Amount              *Amount `json:"amount,omitempty" dynamodbav:"amount,omitempty"`
	Currency            string  `json:"currency,omitempty" dynamodbav:"currency,omitempty"`
	SenderName          string  `json:"senderName,omitempty" dynamodbav:"senderName,omitempty"`
	SenderAccountNumber string  `json:"senderAccountNumber,omitempty" dynamodbav:"senderAccountNumber,omitempty"`
	Timestamp           string  `json:"timestamp,omitempty" dynamodbav:"timestamp,omitempty"`

	Sent     *bool   `json:"sent,omitempty" dynamodbav:"sent,omitempty"`
	SentAt   *string `json:"sentAt,omitempty" dynamodbav:"sentAt,omitempty"`
	FailedAt *string `json:"failedAt,omitempty" dynamodbav:"failedAt,omitempty"`
	Error    *string `json:"error,omitempty" dynamodbav:"error,omitempty"`
}

// Delivered reports whether the last dispatch attempt succeeded.
func (n *NotificationRecord) Delivered() bool {
	return n.Sent != nil && *n.Sent
}
