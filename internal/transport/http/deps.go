package http

import (
	"github.com/transfer-notifier/internal/application/dispatch"
	"github.com/transfer-notifier/internal/application/notification"
	"github.com/transfer-notifier/internal/application/retention"
	"github.com/transfer-notifier/internal/observability"
	"github.com/transfer-notifier/internal/transport/http/handler"
	"github.com/transfer-notifier/internal/transport/http/middleware"
	"go.uber.org/zap"
)

// Deps holds the application services and infrastructure the router needs.
type Deps struct {
	Dispatcher    dispatch.Service
	Notifications notification.Service
	Sweeper       retention.Service
	Ready         handler.ReadyFunc
	// Verifier is nil when no JWT public key is configured; protected routes
	// are then not mounted at all.
	Verifier middleware.Verifier
	Logger   *zap.Logger
	Metrics  *observability.Metrics
}
