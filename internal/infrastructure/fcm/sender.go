package fcm

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/transfer-notifier/internal/config"
	"github.com/transfer-notifier/internal/domain"
	"google.golang.org/api/option"
)

const providerName = "fcm"

// Client is the subset of the Firebase messaging client used by Sender.
type Client interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// Sender delivers push messages through Firebase Cloud Messaging.
type Sender struct {
	client Client
}

// NewSender initialises the Firebase app once for the process. With no
// credentials file the application default credentials are used.
func NewSender(ctx context.Context, cfg *config.Config) (*Sender, error) {
	var opts []option.ClientOption
	if cfg.FirebaseCredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.FirebaseCredentialsFile))
	}
	var fbCfg *firebase.Config
	if cfg.FirebaseProjectID != "" {
		fbCfg = &firebase.Config{ProjectID: cfg.FirebaseProjectID}
	}
	app, err := firebase.NewApp(ctx, fbCfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase messaging: %w", err)
	}
	return NewSenderWithClient(client), nil
}

func NewSenderWithClient(client Client) *Sender {
	return &Sender{client: client}
}

func (s *Sender) Name() string { return providerName }

// Send submits msg and returns the FCM message name.
func (s *Sender) Send(ctx context.Context, msg domain.PushMessage) (string, error) {
	id, err := s.client.Send(ctx, toMessage(msg))
	if err != nil {
		return "", classify(err)
	}
	return id, nil
}

func toMessage(msg domain.PushMessage) *messaging.Message {
	badge := msg.APNS.Badge
	return &messaging.Message{
		Token: msg.Token,
		Notification: &messaging.Notification{
			Title: msg.Notification.Title,
			Body:  msg.Notification.Body,
		},
		Data: msg.Data,
		Android: &messaging.AndroidConfig{
			Priority: msg.Android.Priority,
			Notification: &messaging.AndroidNotification{
				Sound:     msg.Android.Sound,
				ChannelID: msg.Android.ChannelID,
				Priority:  androidPriority(msg.Android.NotificationPriority),
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: msg.APNS.Sound,
					Badge: &badge,
				},
			},
		},
	}
}

func androidPriority(p string) messaging.AndroidNotificationPriority {
	switch p {
	case "min":
		return messaging.PriorityMin
	case "low":
		return messaging.PriorityLow
	case "default":
		return messaging.PriorityDefault
	case "high":
		return messaging.PriorityHigh
	case "max":
		return messaging.PriorityMax
	}
	return messaging.PriorityDefault
}

func classify(err error) *domain.DeliveryError {
	de := &domain.DeliveryError{
		Provider: providerName,
		Code:     domain.DeliveryUnknown,
		Message:  err.Error(),
		Cause:    err,
	}
	switch {
	case messaging.IsUnregistered(err), messaging.IsSenderIDMismatch(err):
		de.Code = domain.DeliveryUnregistered
	case messaging.IsInvalidArgument(err):
		de.Code = domain.DeliveryInvalidArgument
	case messaging.IsQuotaExceeded(err):
		de.Code = domain.DeliveryQuotaExceeded
		de.Transient = true
	case messaging.IsUnavailable(err), messaging.IsInternal(err):
		de.Code = domain.DeliveryUnavailable
		de.Transient = true
	case messaging.IsThirdPartyAuthError(err):
		de.Code = domain.DeliveryAuth
	}
	return de
}
