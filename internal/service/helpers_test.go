package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"order-sync-service/internal/models"
	"order-sync-service/internal/store"
	"order-sync-service/internal/webhook"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-webhook-secret"

// fakeCoordinator is an in-memory lock and idempotency key table
type fakeCoordinator struct {
	mu    sync.Mutex
	locks map[string]bool
	keys  map[string]interface{}
	err   error
}

func newFakeCoordinator() *fakeCoordinator {
	return &fakeCoordinator{locks: map[string]bool{}, keys: map[string]interface{}{}}
}

func (f *fakeCoordinator) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if f.locks[lockKey] {
		return false, nil
	}
	f.locks[lockKey] = true
	return true, nil
}

func (f *fakeCoordinator) ReleaseLock(ctx context.Context, lockKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.locks, lockKey)
	return nil
}

func (f *fakeCoordinator) CheckIdempotencyKey(ctx context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	_, ok := f.keys[key]
	return ok, nil
}

func (f *fakeCoordinator) SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.keys[key] = value
	return nil
}

// fakeDispatcher records published jobs
type fakeDispatcher struct {
	mu     sync.Mutex
	events []*models.OrderSyncRequestedEvent
	err    error
}

func (f *fakeDispatcher) PublishSyncRequested(ctx context.Context, event *models.OrderSyncRequestedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if event.EventID == "" {
		event.EventID = uuid.New().String()
	}
	event.EventType = models.EventTypeOrderSyncRequested
	f.events = append(f.events, event)
	return nil
}

func (f *fakeDispatcher) published() []*models.OrderSyncRequestedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*models.OrderSyncRequestedEvent(nil), f.events...)
}

// receivedRequest is one delivery seen by the receiver
type receivedRequest struct {
	Body      []byte
	Signature string
	Payload   models.SyncPayload
}

// receiver is a fake receiving application
type receiver struct {
	server   *httptest.Server
	status   atomic.Int32
	mu       sync.Mutex
	requests []receivedRequest
}

func newReceiver(t *testing.T) *receiver {
	t.Helper()

	r := &receiver{}
	r.status.Store(http.StatusOK)
	r.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		rec := receivedRequest{Body: body, Signature: req.Header.Get(webhook.SignatureHeader)}
		_ = json.Unmarshal(body, &rec.Payload)

		r.mu.Lock()
		r.requests = append(r.requests, rec)
		r.mu.Unlock()

		status := int(r.status.Load())
		w.WriteHeader(status)
		if status >= 400 {
			w.Write([]byte(`{"error":"rejected"}`))
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(r.server.Close)
	return r
}

func (r *receiver) received() []receivedRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]receivedRequest(nil), r.requests...)
}

// testEnv wires a sync service against sqlite and a fake receiver
type testEnv struct {
	store       *store.Store
	sync        *SyncService
	coordinator *fakeCoordinator
	dispatcher  *fakeDispatcher
	receiver    *receiver
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()

	st, err := store.NewStore("sqlite", filepath.Join(t.TempDir(), "sync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}

	env := &testEnv{
		store:       st,
		coordinator: newFakeCoordinator(),
		dispatcher:  &fakeDispatcher{},
		receiver:    newReceiver(t),
	}
	env.sync = NewSyncService(st, webhook.NewClient(opts.Timeout), env.coordinator, env.dispatcher, opts)
	return env
}

func (e *testEnv) configure(t *testing.T) {
	t.Helper()

	require.NoError(t, e.store.SaveSyncSettings(context.Background(), &models.SyncSettings{
		EndpointBaseURL: e.receiver.server.URL,
		WebhookSecret:   testSecret,
		SyncOnStatus:    models.DefaultSyncOnStatus,
	}))
}

func (e *testEnv) createProduct(t *testing.T, sku *string, name string) *models.Product {
	t.Helper()

	product := &models.Product{SKU: sku, Name: name, Price: 1000}
	require.NoError(t, e.store.CreateProduct(context.Background(), product))
	return product
}

func (e *testEnv) createOrder(t *testing.T, status string, products ...*models.Product) *models.Order {
	t.Helper()

	order := &models.Order{
		BillingEmail:     "jane@example.com",
		BillingFirstName: "Jane",
		BillingLastName:  "Doe",
		Status:           status,
	}
	items := make([]models.LineItem, 0, len(products))
	for _, p := range products {
		id := p.ID
		items = append(items, models.LineItem{ProductID: &id, Quantity: 1, UnitTotal: p.Price})
	}
	require.NoError(t, e.store.CreateOrder(context.Background(), order, items))
	return order
}

func (e *testEnv) logs(t *testing.T, orderID int64) []models.SyncLog {
	t.Helper()

	logs, err := e.store.GetSyncLogsByOrder(context.Background(), orderID, 100)
	require.NoError(t, err)
	return logs
}

func (e *testEnv) order(t *testing.T, orderID int64) *models.Order {
	t.Helper()

	order, err := e.store.GetOrderByID(context.Background(), orderID)
	require.NoError(t, err)
	return order
}

func sku(v string) *string { return &v }

var errBrokerDown = errors.New("broker down")
