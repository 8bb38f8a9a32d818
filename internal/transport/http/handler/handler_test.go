package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/transfer-notifier/internal/application/dispatch"
	"github.com/transfer-notifier/internal/domain"
)

// --- mocks ---

type mockDispatcher struct{ mock.Mock }

func (m *mockDispatcher) Dispatch(ctx context.Context, rec domain.NotificationRecord) (string, error) {
	args := m.Called(ctx, rec)
	return args.String(0), args.Error(1)
}

type mockNotificationSvc struct{ mock.Mock }

func (m *mockNotificationSvc) Get(ctx context.Context, notificationID string) (*domain.NotificationRecord, error) {
	args := m.Called(ctx, notificationID)
	if n, _ := args.Get(0).(*domain.NotificationRecord); n != nil {
		return n, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockNotificationSvc) Redispatch(ctx context.Context, notificationID string) (string, error) {
	args := m.Called(ctx, notificationID)
	return args.String(0), args.Error(1)
}

type mockSweeper struct{ mock.Mock }

func (m *mockSweeper) Sweep(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// --- helpers ---

// withChiParam injects a chi URL param into the request context.
func withChiParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func eventBody(t *testing.T, ev CreatedEvent) *bytes.Reader {
	t.Helper()
	b, err := json.Marshal(ev)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

// --- health ---

func TestPing(t *testing.T) {
	h := NewHealthHandler(nil)

	rr := httptest.NewRecorder()
	h.Ping(rr, withChiParam(httptest.NewRequest(http.MethodGet, "/v1/health-check/ping", nil), "action", "ping"))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "pong")

	rr = httptest.NewRecorder()
	h.Ping(rr, withChiParam(httptest.NewRequest(http.MethodGet, "/v1/health-check/nope", nil), "action", "nope"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestReady(t *testing.T) {
	req := func() *http.Request {
		return withChiParam(httptest.NewRequest(http.MethodGet, "/v1/health-check/ready", nil), "action", "ready")
	}

	rr := httptest.NewRecorder()
	NewHealthHandler(func(context.Context) error { return nil }).Ping(rr, req())
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	NewHealthHandler(func(context.Context) error { return errors.New("ResourceNotFoundException") }).Ping(rr, req())
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

// --- events ---

func TestNotificationCreated_InvalidBody(t *testing.T) {
	d := &mockDispatcher{}
	rr := httptest.NewRecorder()
	NewEventHandler(d).NotificationCreated(rr, httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString("not-json")))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	d.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
}

func TestNotificationCreated_MissingID(t *testing.T) {
	d := &mockDispatcher{}
	rr := httptest.NewRecorder()
	body := eventBody(t, CreatedEvent{Record: domain.NotificationRecord{Type: domain.TypeTransferReceived}})
	NewEventHandler(d).NotificationCreated(rr, httptest.NewRequest(http.MethodPost, "/", body))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestNotificationCreated_Sent(t *testing.T) {
	d := &mockDispatcher{}
	d.On("Dispatch", mock.Anything, mock.MatchedBy(func(rec domain.NotificationRecord) bool {
		return rec.NotificationID == "n1" && rec.Amount != nil && *rec.Amount == "500"
	})).Return("projects/p/messages/1", nil)

	rr := httptest.NewRecorder()
	body := bytes.NewBufferString(`{"notificationId":"n1","record":{"type":"transfer_received","fcmToken":"tok","amount":500}}`)
	NewEventHandler(d).NotificationCreated(rr, httptest.NewRequest(http.MethodPost, "/", body))

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp DispatchEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "projects/p/messages/1", resp.MessageID)
	d.AssertExpectations(t)
}

// goneStore behaves like a table whose record was never written or already purged.
type goneStore struct{}

func (goneStore) MarkSent(context.Context, string) error {
	return fmt.Errorf("update notification: %w", domain.ErrNotFound)
}
func (goneStore) MarkFailed(context.Context, string, string) error {
	return fmt.Errorf("update notification: %w", domain.ErrNotFound)
}

type okSender struct{}

func (okSender) Name() string { return "fake" }
func (okSender) Send(context.Context, domain.PushMessage) (string, error) {
	return "projects/p/messages/7", nil
}

func TestNotificationCreated_SentButRecordMissing(t *testing.T) {
	svc := dispatch.NewService(dispatch.ServiceDeps{Store: goneStore{}, Sender: okSender{}})

	rr := httptest.NewRecorder()
	body := eventBody(t, CreatedEvent{NotificationID: "n1", Record: domain.NotificationRecord{Type: domain.TypeTransferReceived, FCMToken: "tok"}})
	NewEventHandler(svc).NotificationCreated(rr, httptest.NewRequest(http.MethodPost, "/", body))

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp DispatchEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "projects/p/messages/7", resp.MessageID)
}

func TestNotificationCreated_Skipped(t *testing.T) {
	d := &mockDispatcher{}
	d.On("Dispatch", mock.Anything, mock.Anything).Return("", nil)

	rr := httptest.NewRecorder()
	body := eventBody(t, CreatedEvent{NotificationID: "n1", Record: domain.NotificationRecord{Type: "login_alert"}})
	NewEventHandler(d).NotificationCreated(rr, httptest.NewRequest(http.MethodPost, "/", body))

	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Contains(t, rr.Body.String(), "skipped")
}

func TestNotificationCreated_DeliveryFailure(t *testing.T) {
	d := &mockDispatcher{}
	derr := &domain.DeliveryError{Provider: "fcm", Code: domain.DeliveryUnregistered, Message: "Requested entity was not found."}
	d.On("Dispatch", mock.Anything, mock.Anything).Return("", derr)

	rr := httptest.NewRecorder()
	body := eventBody(t, CreatedEvent{NotificationID: "n1", Record: domain.NotificationRecord{Type: domain.TypeTransferReceived, FCMToken: "tok"}})
	NewEventHandler(d).NotificationCreated(rr, httptest.NewRequest(http.MethodPost, "/", body))

	assert.Equal(t, http.StatusBadGateway, rr.Code)
	var resp MessageEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, domain.DeliveryUnregistered, resp.ErrorCode)
}

func TestNotificationCreated_StoreFailure(t *testing.T) {
	d := &mockDispatcher{}
	d.On("Dispatch", mock.Anything, mock.Anything).Return("", errors.New("mark notification sent: throttled"))

	rr := httptest.NewRecorder()
	body := eventBody(t, CreatedEvent{NotificationID: "n1", Record: domain.NotificationRecord{Type: domain.TypeTransferReceived, FCMToken: "tok"}})
	NewEventHandler(d).NotificationCreated(rr, httptest.NewRequest(http.MethodPost, "/", body))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

// --- notifications ---

func TestNotificationGet_NotFound(t *testing.T) {
	svc := &mockNotificationSvc{}
	svc.On("Get", mock.Anything, "gone").Return(nil, fmt.Errorf("notification not found: %w", domain.ErrNotFound))

	rr := httptest.NewRecorder()
	NewNotificationHandler(svc).Get(rr, withChiParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", "gone"))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestNotificationGet_HappyPath(t *testing.T) {
	svc := &mockNotificationSvc{}
	sent := true
	svc.On("Get", mock.Anything, "n1").Return(&domain.NotificationRecord{NotificationID: "n1", Sent: &sent}, nil)

	rr := httptest.NewRecorder()
	NewNotificationHandler(svc).Get(rr, withChiParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", "n1"))

	assert.Equal(t, http.StatusOK, rr.Code)
	var got domain.NotificationRecord
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	assert.True(t, got.Delivered())
}

func TestNotificationRedispatch(t *testing.T) {
	svc := &mockNotificationSvc{}
	svc.On("Redispatch", mock.Anything, "n1").Return("msg-2", nil)

	rr := httptest.NewRecorder()
	NewNotificationHandler(svc).Redispatch(rr, withChiParam(httptest.NewRequest(http.MethodPost, "/", nil), "id", "n1"))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "msg-2")
}

// --- jobs ---

func TestRetentionSweep(t *testing.T) {
	s := &mockSweeper{}
	s.On("Sweep", mock.Anything).Return(7, nil).Once()

	rr := httptest.NewRecorder()
	NewJobHandler(s).RetentionSweep(rr, httptest.NewRequest(http.MethodPost, "/", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"deleted":7}`, rr.Body.String())
}

func TestRetentionSweep_Failure(t *testing.T) {
	s := &mockSweeper{}
	s.On("Sweep", mock.Anything).Return(0, errors.New("scan notifications: throttled"))

	rr := httptest.NewRecorder()
	NewJobHandler(s).RetentionSweep(rr, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
