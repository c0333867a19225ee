package httppresentation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appOrder "github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/application/order"
	appPayment "github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/application/payment"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/domain/catalog"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/domain/dispense"
	domainPayment "github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/domain/payment"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/infrastructure/gateway"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/infrastructure/hardware"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/infrastructure/id"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/infrastructure/memory"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/infrastructure/observability/telemetry"
)

const testSecret = "test-webhook-secret"

// manualScheduler holds completions until the test runs them.
type manualScheduler struct {
	mu   sync.Mutex
	jobs map[string]func()
}

func (s *manualScheduler) Schedule(ctx context.Context, key string, _ time.Duration, fn func(ctx context.Context)) {
	runCtx := context.WithoutCancel(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[key] = func() { fn(runCtx) }
}

func (s *manualScheduler) run(t *testing.T, key string) {
	t.Helper()
	s.mu.Lock()
	job, ok := s.jobs[key]
	delete(s.jobs, key)
	s.mu.Unlock()
	require.True(t, ok, "no completion scheduled for %s", key)
	job()
}

func (s *manualScheduler) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

type failingGateway struct{}

func (failingGateway) CreateLink(context.Context, domainPayment.LinkRequest) (domainPayment.Link, error) {
	return domainPayment.Link{}, errors.New("connection refused")
}

type fixture struct {
	router    http.Handler
	scheduler *manualScheduler
	auth      *appPayment.Authenticator
	registry  *prometheus.Registry
}

func newFixture(t *testing.T, gw domainPayment.Gateway) *fixture {
	t.Helper()
	reg := prometheus.NewRegistry()
	tel := telemetry.New(telemetry.Options{
		Service:    "kiosk-test",
		Namespace:  "kiosk",
		Logger:     zap.NewNop(),
		Registerer: reg,
	})
	if gw == nil {
		gw = gateway.NewSandbox("http://kiosk.test/sandbox/pay", 64, nil)
	}

	cat := catalog.Default()
	repo := memory.NewOrderRepository()
	sched := &manualScheduler{jobs: map[string]func(){}}
	auth := appPayment.NewAuthenticator(testSecret)

	create := appOrder.NewCreateOrderUseCase(cat, repo, gw, id.NewUUIDGenerator(), nil, nil,
		appOrder.CreateOrderConfig{}, tel)
	confirm := appPayment.NewConfirmPaymentUseCase(repo, nil, tel)

	h := NewHandler(Services{
		CreateOrder:  create,
		Status:       appOrder.NewGetStatusUseCase(repo, tel),
		Dispatch:     appOrder.NewDispatchUseCase(repo, hardware.NewSimulator(nil), sched, nil, dispense.DefaultTiming(), tel),
		Notification: appPayment.NewHandleNotificationUseCase(auth, confirm, tel),
		Catalog:      cat,
	}, Options{
		Metrics:       promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		SandboxSigner: auth,
	}, tel)

	return &fixture{router: h.Router(), scheduler: sched, auth: auth, registry: reg}
}

func (f *fixture) do(t *testing.T, method, path string, body []byte, header http.Header) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func (f *fixture) createOrder(t *testing.T, body string) map[string]any {
	t.Helper()
	rec, out := f.do(t, http.MethodPost, "/api/create-order", []byte(body), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return out
}

func (f *fixture) webhook(t *testing.T, body []byte, signature string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	return f.do(t, http.MethodPost, "/api/webhook/razorpay", body, http.Header{HeaderSignature: {signature}})
}

func (f *fixture) status(t *testing.T, orderID string) string {
	t.Helper()
	rec, out := f.do(t, http.MethodGet, "/api/status/"+orderID, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	return out["status"].(string)
}

func TestOrderLifecycleEndToEnd(t *testing.T) {
	f := newFixture(t, nil)

	order := f.createOrder(t, `{"productId":"rose_mist","quantity":5}`)
	orderID := order["id"].(string)
	linkID := order["paymentLinkId"].(string)
	assert.Equal(t, "16.00", order["amount"])
	assert.EqualValues(t, 1600, order["amountMinor"])
	assert.Equal(t, "INR", order["currency"])
	assert.Equal(t, "Rose Mist", order["productName"])
	assert.Equal(t, "CREATED", order["status"])
	assert.True(t, strings.HasPrefix(linkID, "plink_sbx_"))
	assert.True(t, strings.HasPrefix(order["payableReference"].(string), "data:image/png;base64,"))

	assert.Equal(t, "CREATED", f.status(t, orderID))

	rec, out := f.do(t, http.MethodPost, "/api/dispatch/"+orderID, nil, nil)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, codePaymentNotConfirmed, out["code"])

	body, err := appPayment.PaidNotificationBody(linkID, orderID)
	require.NoError(t, err)

	rec, out = f.webhook(t, body, "deadbeef")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid Signature", out["error"])
	assert.Equal(t, "CREATED", f.status(t, orderID))

	rec, out = f.webhook(t, body, f.auth.Sign(body))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", out["status"])
	assert.Equal(t, domainPayment.OutcomeApplied, out["outcome"])
	assert.Equal(t, "PAID", f.status(t, orderID))

	// redelivery is acknowledged without another transition
	rec, out = f.webhook(t, body, f.auth.Sign(body))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domainPayment.OutcomeDuplicate, out["outcome"])

	rec, out = f.do(t, http.MethodPost, "/api/dispatch/"+orderID, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, out["accepted"])
	assert.EqualValues(t, 3500, out["estimatedDelayMs"])
	assert.EqualValues(t, 5, out["quantity"])
	assert.Equal(t, "DISPENSING", f.status(t, orderID))

	rec, out = f.do(t, http.MethodPost, "/api/dispatch/"+orderID, nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, codeAlreadyDispatched, out["code"])

	f.scheduler.run(t, orderID)
	assert.Equal(t, "DISPATCHED", f.status(t, orderID))

	rec, _ = f.do(t, http.MethodPost, "/api/dispatch/"+orderID, nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Zero(t, f.scheduler.count())
}

func TestConcurrentDispatchAcceptsOnce(t *testing.T) {
	f := newFixture(t, nil)
	order := f.createOrder(t, `{"productId":"ocean_blue","quantity":2}`)
	orderID := order["id"].(string)

	body, err := appPayment.PaidNotificationBody(order["paymentLinkId"].(string), orderID)
	require.NoError(t, err)
	rec, _ := f.webhook(t, body, f.auth.Sign(body))
	require.Equal(t, http.StatusOK, rec.Code)

	const callers = 20
	codes := make(chan int, callers)
	var wg sync.WaitGroup
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/api/dispatch/"+orderID, nil)
			rec := httptest.NewRecorder()
			f.router.ServeHTTP(rec, req)
			codes <- rec.Code
		}()
	}
	wg.Wait()
	close(codes)

	counts := map[int]int{}
	for c := range codes {
		counts[c]++
	}
	assert.Equal(t, 1, counts[http.StatusOK])
	assert.Equal(t, callers-1, counts[http.StatusConflict])
	assert.Equal(t, 1, f.scheduler.count())
}

func TestCreateOrderValidation(t *testing.T) {
	f := newFixture(t, nil)

	cases := []struct {
		name string
		body string
		code int
	}{
		{"unknown product", `{"productId":"citrus","quantity":1}`, http.StatusBadRequest},
		{"zero quantity", `{"productId":"rose_mist","quantity":0}`, http.StatusBadRequest},
		{"too many pumps", `{"productId":"rose_mist","quantity":11}`, http.StatusBadRequest},
		{"unknown field", `{"productId":"rose_mist","quantity":1,"price":1}`, http.StatusBadRequest},
		{"not json", `rose_mist`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, out := f.do(t, http.MethodPost, "/api/create-order", []byte(tc.body), nil)
			assert.Equal(t, tc.code, rec.Code)
			assert.Equal(t, codeInvalidRequest, out["code"])
		})
	}
}

func TestCreateOrderAcceptsKioskFieldNames(t *testing.T) {
	f := newFixture(t, nil)
	order := f.createOrder(t, `{"perfumeId":"night_amber","pumps":3}`)
	assert.Equal(t, "night_amber", order["productId"])
	assert.Equal(t, "12.00", order["amount"])
}

func TestCreateOrderGatewayFailure(t *testing.T) {
	f := newFixture(t, failingGateway{})
	rec, out := f.do(t, http.MethodPost, "/api/create-order", []byte(`{"productId":"rose_mist","quantity":1}`), nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, codeGatewayFailure, out["code"])
}

func TestStatusAndDispatchUnknownOrder(t *testing.T) {
	f := newFixture(t, nil)

	rec, out := f.do(t, http.MethodGet, "/api/status/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, codeNotFound, out["code"])

	rec, out = f.do(t, http.MethodPost, "/api/dispatch/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, codeNotFound, out["code"])

	rec, _ = f.do(t, http.MethodGet, "/api/dispatch/missing", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestWebhookEdgeCases(t *testing.T) {
	f := newFixture(t, nil)

	t.Run("unknown order is acknowledged", func(t *testing.T) {
		body, err := appPayment.PaidNotificationBody("plink_nobody", "no-such-order")
		require.NoError(t, err)
		rec, out := f.webhook(t, body, f.auth.Sign(body))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, domainPayment.OutcomeUnknownOrder, out["outcome"])
	})

	t.Run("malformed signed body", func(t *testing.T) {
		body := []byte(`{"event":`)
		rec, out := f.webhook(t, body, f.auth.Sign(body))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, codeMalformed, out["code"])
	})

	t.Run("other events are ignored", func(t *testing.T) {
		body := []byte(`{"event":"payment.captured","payload":{}}`)
		rec, out := f.webhook(t, body, f.auth.Sign(body))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, domainPayment.OutcomeIgnored, out["outcome"])
	})

	t.Run("missing signature", func(t *testing.T) {
		rec, _ := f.webhook(t, []byte(`{"event":"payment_link.paid"}`), "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestSandboxPayConfirmsLink(t *testing.T) {
	f := newFixture(t, nil)
	order := f.createOrder(t, `{"productId":"ocean_blue","quantity":1}`)

	rec, out := f.do(t, http.MethodGet, "/sandbox/pay/"+order["paymentLinkId"].(string), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domainPayment.OutcomeApplied, out["outcome"])
	assert.Equal(t, "PAID", f.status(t, order["id"].(string)))
}

func TestProductsHealthAndMetrics(t *testing.T) {
	f := newFixture(t, nil)

	rec, out := f.do(t, http.MethodGet, "/api/products", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "INR", out["currency"])
	assert.EqualValues(t, 10, out["maxQuantity"])
	products := out["products"].([]any)
	require.Len(t, products, 3)
	first := products[0].(map[string]any)
	assert.Equal(t, "ocean_blue", first["id"])
	assert.Equal(t, "3.50", first["price"])
	assert.EqualValues(t, 350, first["priceMinor"])

	rec, out = f.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", out["status"])

	rec, _ = f.do(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `kiosk_http_requests_total{method="GET",route="GET /api/products",status="200"} 1`)
	assert.Contains(t, rec.Body.String(), `kiosk_http_request_duration_seconds_count{method="GET",route="GET /api/products"} 1`)
}

func TestRequestIDAndCORS(t *testing.T) {
	f := newFixture(t, nil)

	rec, _ := f.do(t, http.MethodGet, "/api/products", nil, http.Header{headerRequestID: {"req-42"}})
	assert.Equal(t, "req-42", rec.Header().Get(headerRequestID))

	rec, _ = f.do(t, http.MethodGet, "/api/products", nil, nil)
	assert.NotEmpty(t, rec.Header().Get(headerRequestID))

	req := httptest.NewRequest(http.MethodOptions, "/api/create-order", nil)
	req.Header.Set("Origin", "http://kiosk.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	pre := httptest.NewRecorder()
	f.router.ServeHTTP(pre, req)
	assert.Equal(t, "*", pre.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouteFromContextDefaults(t *testing.T) {
	assert.Equal(t, "unknown", routeFromContext(context.Background()))
	ctx := contextWithRoute(context.Background(), "GET /health")
	assert.Equal(t, "GET /health", routeFromContext(ctx))
	assert.Equal(t, ctx, contextWithRoute(ctx, ""))
}
