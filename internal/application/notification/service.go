package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/transfer-notifier/internal/application/dispatch"
	"github.com/transfer-notifier/internal/domain"
)

// RecordReader loads a single notification record.
type RecordReader interface {
	Get(ctx context.Context, notificationID string) (*domain.NotificationRecord, error)
}

// Service exposes stored notification records to operators.
type Service interface {
	Get(ctx context.Context, notificationID string) (*domain.NotificationRecord, error)
	// Redispatch runs the dispatcher again on a stored record. It sends again
	// even when the record is already marked sent.
	Redispatch(ctx context.Context, notificationID string) (string, error)
}

type service struct {
	repo       RecordReader
	dispatcher dispatch.Service
}

func NewService(repo RecordReader, dispatcher dispatch.Service) Service {
	return &service{repo: repo, dispatcher: dispatcher}
}

func (s *service) Get(ctx context.Context, notificationID string) (*domain.NotificationRecord, error) {
	if strings.TrimSpace(notificationID) == "" {
		return nil, fmt.Errorf("notification id is required: %w", domain.ErrBadRequest)
	}
	return s.repo.Get(ctx, notificationID)
}

func (s *service) Redispatch(ctx context.Context, notificationID string) (string, error) {
	rec, err := s.Get(ctx, notificationID)
	if err != nil {
		return "", err
	}
	return s.dispatcher.Dispatch(ctx, *rec)
}
