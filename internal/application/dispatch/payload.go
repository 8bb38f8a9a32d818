package dispatch

import (
	"time"

	"github.com/transfer-notifier/internal/domain"
)

// Payload defaults applied when the record leaves a field empty. The amount
// default applies only when the attribute is absent.
const (
	DefaultTitle               = "Money Received"
	DefaultBody                = "You have received money"
	DefaultAmount              = "0"
	DefaultCurrency            = "PKR"
	DefaultSenderName          = "Unknown"
	DefaultSenderAccountNumber = "N/A"
	DefaultAndroidChannelID    = "transfer_notifications"
)

// BuildMessage constructs the push payload for rec. now supplies the
// timestamp when the record has none.
func BuildMessage(rec domain.NotificationRecord, now time.Time, channelID string) domain.PushMessage {
	if channelID == "" {
		channelID = DefaultAndroidChannelID
	}
	amount := DefaultAmount
	if rec.Amount != nil {
		amount = rec.Amount.String()
	}
	return domain.PushMessage{
		Token: rec.FCMToken,
		Notification: domain.PushNotification{
			Title: orDefault(rec.Title, DefaultTitle),
			Body:  orDefault(rec.Body, DefaultBody),
		},
		Data: map[string]string{
			"type":                orDefault(rec.Type, domain.TypeTransferReceived),
			"amount":              amount,
			"currency":            orDefault(rec.Currency, DefaultCurrency),
			"senderName":          orDefault(rec.SenderName, DefaultSenderName),
			"senderAccountNumber": orDefault(rec.SenderAccountNumber, DefaultSenderAccountNumber),
			"timestamp":           orDefault(rec.Timestamp, domain.FormatTimestamp(now)),
		},
		Android: domain.AndroidConfig{
			Priority:             "high",
			Sound:                "default",
			ChannelID:            channelID,
			NotificationPriority: "high",
		},
		APNS: domain.APNSConfig{
			Sound: "default",
			Badge: 1,
		},
	}
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
