package sns

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssns "github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/smithy-go"
	"github.com/transfer-notifier/internal/config"
	"github.com/transfer-notifier/internal/domain"
	"github.com/transfer-notifier/internal/infrastructure/awsconf"
)

const providerName = "sns"

// Client is the subset of the SNS client used by Sender.
type Client interface {
	CreatePlatformEndpoint(ctx context.Context, params *awssns.CreatePlatformEndpointInput, optFns ...func(*awssns.Options)) (*awssns.CreatePlatformEndpointOutput, error)
	Publish(ctx context.Context, params *awssns.PublishInput, optFns ...func(*awssns.Options)) (*awssns.PublishOutput, error)
}

// Sender delivers push messages through an SNS platform application backed by FCM/APNs.
type Sender struct {
	client         Client
	platformAppARN string
}

func NewSender(ctx context.Context, cfg *config.Config) (*Sender, error) {
	awsCfg, err := awsconf.Load(ctx, cfg, cfg.SNSRegion)
	if err != nil {
		return nil, err
	}
	var clientOpts []func(*awssns.Options)
	if endpoint := awsconf.Endpoint(cfg); endpoint != nil {
		clientOpts = append(clientOpts, func(o *awssns.Options) {
			o.BaseEndpoint = endpoint
		})
	}
	return NewSenderWithClient(awssns.NewFromConfig(awsCfg, clientOpts...), cfg.SNSPlatformApplicationARN), nil
}

func NewSenderWithClient(client Client, platformAppARN string) *Sender {
	return &Sender{client: client, platformAppARN: platformAppARN}
}

func (s *Sender) Name() string { return providerName }

// Send registers the device token as a platform endpoint (idempotent for an
// unchanged token) and publishes msg to it. Returns the SNS message id.
func (s *Sender) Send(ctx context.Context, msg domain.PushMessage) (string, error) {
	ep, err := s.client.CreatePlatformEndpoint(ctx, &awssns.CreatePlatformEndpointInput{
		PlatformApplicationArn: aws.String(s.platformAppARN),
		Token:                  aws.String(msg.Token),
	})
	if err != nil {
		return "", classify(err)
	}

	body, err := buildMessage(msg)
	if err != nil {
		return "", err
	}
	out, err := s.client.Publish(ctx, &awssns.PublishInput{
		TargetArn:        ep.EndpointArn,
		MessageStructure: aws.String("json"),
		Message:          aws.String(body),
	})
	if err != nil {
		return "", classify(err)
	}
	return aws.ToString(out.MessageId), nil
}

type fcmV1Envelope struct {
	FCMV1Message struct {
		Message fcmMessage `json:"message"`
	} `json:"fcmV1Message"`
}

type fcmMessage struct {
	Notification fcmNotification  `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
	Android      fcmAndroid        `json:"android"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type fcmAndroid struct {
	Priority     string                 `json:"priority"`
	Notification fcmAndroidNotification `json:"notification"`
}

type fcmAndroidNotification struct {
	Sound                string `json:"sound,omitempty"`
	ChannelID            string `json:"channel_id,omitempty"`
	NotificationPriority string `json:"notification_priority,omitempty"`
}

type apsAlert struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type aps struct {
	Alert apsAlert `json:"alert"`
	Sound string   `json:"sound,omitempty"`
	Badge int      `json:"badge"`
}

// buildMessage renders the per-platform JSON document SNS expects with
// MessageStructure=json. Each platform value is itself a JSON string.
func buildMessage(msg domain.PushMessage) (string, error) {
	var gcm fcmV1Envelope
	gcm.FCMV1Message.Message = fcmMessage{
		Notification: fcmNotification{Title: msg.Notification.Title, Body: msg.Notification.Body},
		Data:         msg.Data,
		Android: fcmAndroid{
			Priority: msg.Android.Priority,
			Notification: fcmAndroidNotification{
				Sound:                msg.Android.Sound,
				ChannelID:            msg.Android.ChannelID,
				NotificationPriority: notificationPriority(msg.Android.NotificationPriority),
			},
		},
	}
	gcmJSON, err := json.Marshal(gcm)
	if err != nil {
		return "", fmt.Errorf("marshal GCM payload: %w", err)
	}

	apns := map[string]interface{}{
		"aps": aps{
			Alert: apsAlert{Title: msg.Notification.Title, Body: msg.Notification.Body},
			Sound: msg.APNS.Sound,
			Badge: msg.APNS.Badge,
		},
	}
	for k, v := range msg.Data {
		if k != "aps" {
			apns[k] = v
		}
	}
	apnsJSON, err := json.Marshal(apns)
	if err != nil {
		return "", fmt.Errorf("marshal APNS payload: %w", err)
	}

	doc, err := json.Marshal(map[string]string{
		"default":      msg.Notification.Body,
		"GCM":          string(gcmJSON),
		"APNS":         string(apnsJSON),
		"APNS_SANDBOX": string(apnsJSON),
	})
	if err != nil {
		return "", fmt.Errorf("marshal SNS message: %w", err)
	}
	return string(doc), nil
}

var notificationPriorities = map[string]string{
	"min":     "PRIORITY_MIN",
	"low":     "PRIORITY_LOW",
	"default": "PRIORITY_DEFAULT",
	"high":    "PRIORITY_HIGH",
	"max":     "PRIORITY_MAX",
}

func notificationPriority(p string) string {
	if p == "" {
		return ""
	}
	if v, ok := notificationPriorities[p]; ok {
		return v
	}
	return "PRIORITY_DEFAULT"
}

func classify(err error) *domain.DeliveryError {
	de := &domain.DeliveryError{
		Provider: providerName,
		Code:     domain.DeliveryUnknown,
		Message:  err.Error(),
		Cause:    err,
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorMessage() != "" {
		de.Message = apiErr.ErrorMessage()
	}

	var (
		disabled    *types.EndpointDisabledException
		appDisabled *types.PlatformApplicationDisabledException
		invalid     *types.InvalidParameterException
		throttled   *types.ThrottledException
		internal    *types.InternalErrorException
		authz       *types.AuthorizationErrorException
	)
	switch {
	case errors.As(err, &disabled):
		de.Code = domain.DeliveryUnregistered
	case errors.As(err, &invalid):
		de.Code = domain.DeliveryInvalidArgument
	case errors.As(err, &throttled):
		de.Code = domain.DeliveryQuotaExceeded
		de.Transient = true
	case errors.As(err, &internal):
		de.Code = domain.DeliveryUnavailable
		de.Transient = true
	case errors.As(err, &appDisabled), errors.As(err, &authz):
		de.Code = domain.DeliveryAuth
	}
	return de
}
