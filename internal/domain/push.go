package domain

import (
	"fmt"
	"strings"
)

// PushMessage is a provider-neutral push payload addressed to one device token.
type PushMessage struct {
	Token        string
	Notification PushNotification
	Data         map[string]string
	Android      AndroidConfig
	APNS         APNSConfig
}

type PushNotification struct {
	Title string
	Body  string
}

// AndroidConfig carries the Android delivery hints.
type AndroidConfig struct {
	Priority             string
	Sound                string
	ChannelID            string
	NotificationPriority string
}

// APNSConfig carries the iOS delivery hints.
type APNSConfig struct {
	Sound string
	Badge int
}

// Delivery failure codes shared by all providers.
const (
	DeliveryUnregistered    = "unregistered"
	DeliveryInvalidArgument = "invalid_argument"
	DeliveryQuotaExceeded   = "quota_exceeded"
	DeliveryUnavailable     = "unavailable"
	DeliveryAuth            = "auth"
	DeliveryUnknown         = "unknown"
)

// DeliveryError is a failure reported by a push provider.
type DeliveryError struct {
	Provider  string
	Code      string
	Message   string
	Transient bool
	Cause     error
}

// Error returns the provider's own failure message, which is what gets
// recorded on the notification document.
func (e *DeliveryError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		return msg
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return fmt.Sprintf("%s delivery failed: %s", e.Provider, e.Code)
}

func (e *DeliveryError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}
