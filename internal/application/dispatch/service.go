package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/transfer-notifier/internal/domain"
	"github.com/transfer-notifier/internal/observability"
	"github.com/transfer-notifier/internal/pkg/id"
	"go.uber.org/zap"
)

// RecordStore writes delivery outcomes back to the notification record.
type RecordStore interface {
	MarkSent(ctx context.Context, notificationID string) error
	MarkFailed(ctx context.Context, notificationID, message string) error
}

// Sender is the outbound push provider port.
type Sender interface {
	Name() string
	Send(ctx context.Context, msg domain.PushMessage) (string, error)
}

// Service sends the push notification for a newly created record.
type Service interface {
	// Dispatch returns the provider message id, or "" when the record does not
	// qualify for delivery. A delivery failure is recorded on the record and
	// then returned so the caller can apply its own retry policy.
	Dispatch(ctx context.Context, rec domain.NotificationRecord) (string, error)
}

type ServiceDeps struct {
	Store     RecordStore
	Sender    Sender
	ChannelID string
	Logger    *zap.Logger
	Metrics   *observability.Metrics
	Now       func() time.Time
}

type service struct {
	store     RecordStore
	sender    Sender
	channelID string
	logger    *zap.Logger
	metrics   *observability.Metrics
	now       func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		store:     deps.Store,
		sender:    deps.Sender,
		channelID: deps.ChannelID,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		now:       deps.Now,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *service) Dispatch(ctx context.Context, rec domain.NotificationRecord) (string, error) {
	if _, ok := observability.CorrelationIDFromContext(ctx); !ok {
		ctx = observability.WithCorrelationID(ctx, id.New())
	}
	log := observability.WithContextLogger(s.logger, ctx).With(zap.String("notificationId", rec.NotificationID))

	if rec.Type != domain.TypeTransferReceived {
		s.metrics.IncDispatch(observability.OutcomeSkippedType, "")
		log.Debug("not a transfer notification, skipping", zap.String("type", rec.Type))
		return "", nil
	}
	if strings.TrimSpace(rec.FCMToken) == "" {
		s.metrics.IncDispatch(observability.OutcomeSkippedToken, "")
		log.Info("No FCM token found, skipping notification")
		return "", nil
	}

	msg := BuildMessage(rec, s.now(), s.channelID)

	start := time.Now()
	messageID, sendErr := s.sender.Send(ctx, msg)
	s.metrics.ObserveProviderSend(s.sender.Name(), time.Since(start))

	if sendErr != nil {
		log.Error("Error sending notification", zap.String("provider", s.sender.Name()), zap.Error(sendErr))
		s.metrics.IncDispatch(observability.OutcomeFailed, deliveryCode(sendErr))

		if err := s.store.MarkFailed(ctx, rec.NotificationID, sendErr.Error()); err != nil {
			return "", errors.Join(sendErr, fmt.Errorf("mark notification failed: %w", err))
		}
		return "", sendErr
	}

	log.Info("Successfully sent notification", zap.String("messageId", messageID))
	s.metrics.IncDispatch(observability.OutcomeSent, "")

	if err := s.store.MarkSent(ctx, rec.NotificationID); err != nil {
		// The push is out. A missing record cannot be marked, and reporting
		// that as a failure would only invite a duplicate send.
		if errors.Is(err, domain.ErrNotFound) {
			log.Warn("notification record missing, outcome not recorded", zap.String("messageId", messageID))
			return messageID, nil
		}
		return "", fmt.Errorf("mark notification sent: %w", err)
	}
	return messageID, nil
}

func deliveryCode(err error) string {
	var de *domain.DeliveryError
	if errors.As(err, &de) {
		return de.Code
	}
	return domain.DeliveryUnknown
}
