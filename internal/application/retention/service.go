package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/transfer-notifier/internal/domain"
	"github.com/transfer-notifier/internal/observability"
	"github.com/transfer-notifier/internal/pkg/id"
	"go.uber.org/zap"
)

// DefaultRetention is how long notification records are kept.
const DefaultRetention = 30 * 24 * time.Hour

// RecordStore selects and deletes aged-out notification records.
type RecordStore interface {
	ListOlderThan(ctx context.Context, cutoff string) ([]domain.NotificationRecord, error)
	DeleteBatch(ctx context.Context, notificationIDs []string) error
}

// Archiver keeps a copy of records before they are purged.
type Archiver interface {
	Archive(ctx context.Context, runID string, records []domain.NotificationRecord) error
}

// Service purges notification records older than the retention window.
type Service interface {
	// Sweep deletes every record older than the window and returns how many were deleted.
	Sweep(ctx context.Context) (int, error)
}

type ServiceDeps struct {
	Store     RecordStore
	Archiver  Archiver // optional
	Retention time.Duration
	Logger    *zap.Logger
	Metrics   *observability.Metrics
	Now       func() time.Time
}

type service struct {
	store     RecordStore
	archiver  Archiver
	retention time.Duration
	logger    *zap.Logger
	metrics   *observability.Metrics
	now       func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		store:     deps.Store,
		archiver:  deps.Archiver,
		retention: deps.Retention,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		now:       deps.Now,
	}
	if s.retention <= 0 {
		s.retention = DefaultRetention
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Cutoff returns the timestamp string below which records are purged.
func Cutoff(now time.Time, retention time.Duration) string {
	return domain.FormatTimestamp(now.Add(-retention))
}

func (s *service) Sweep(ctx context.Context) (int, error) {
	n, err := s.sweep(ctx)
	s.metrics.ObserveSweep(n, err)
	return n, err
}

func (s *service) sweep(ctx context.Context) (int, error) {
	runID := id.New()
	log := s.logger.With(zap.String("runId", runID))
	cutoff := Cutoff(s.now(), s.retention)

	records, err := s.store.ListOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("select notifications older than %s: %w", cutoff, err)
	}
	if len(records) == 0 {
		log.Info("Cleaned up 0 old notifications", zap.String("cutoff", cutoff))
		return 0, nil
	}

	if s.archiver != nil {
		if err := s.archiver.Archive(ctx, runID, records); err != nil {
			return 0, fmt.Errorf("archive %d notifications: %w", len(records), err)
		}
	}

	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.NotificationID
	}
	if err := s.store.DeleteBatch(ctx, ids); err != nil {
		return 0, fmt.Errorf("delete notifications: %w", err)
	}

	log.Info(fmt.Sprintf("Cleaned up %d old notifications", len(ids)),
		zap.String("cutoff", cutoff),
		zap.Int("deleted", len(ids)),
	)
	return len(ids), nil
}
