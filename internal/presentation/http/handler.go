package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/application"
	appOrder "github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/application/order"
	appPayment "github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/application/payment"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/domain/catalog"
	domainOrder "github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/domain/order"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/observability"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/observability/logctx"
)

const (
	componentHTTPHandler = "http_server"
	headerRequestID      = "X-Request-ID"
	headerKioskID        = "X-Kiosk-ID"

	// HeaderSignature carries the provider's HMAC-SHA256 of the raw webhook body.
	HeaderSignature = "X-Razorpay-Signature"

	RouteCreateOrder = "/api/create-order"
	RouteStatus      = "/api/status/{orderId}"
	RouteDispatch    = "/api/dispatch/{orderId}"
	RouteWebhook     = "/api/webhook/razorpay"
	RouteProducts    = "/api/products"
	RouteSandboxPay  = "/sandbox/pay/{linkId}"
	RouteHealth      = "/health"
	RouteMetrics     = "/metrics"

	defaultMaxWebhookBytes = 1 << 20
)

// Services are the use cases the HTTP surface drives.
type Services struct {
	CreateOrder  application.UseCase[appOrder.CreateOrderInput, *appOrder.CreateOrderResult]
	Status       application.UseCase[string, *appOrder.StatusResult]
	Dispatch     application.UseCase[string, *appOrder.DispatchResult]
	Notification application.UseCase[appPayment.NotificationInput, *appPayment.NotificationResult]
	Catalog      *catalog.Catalog
}

type Options struct {
	CORSOrigins     []string
	MaxWebhookBytes int64
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// SandboxSigner enables /sandbox/pay/{linkId}, which confirms a sandbox
	// payment link by delivering a webhook signed with the configured secret.
	SandboxSigner *appPayment.Authenticator
}

type Handler struct {
	svc  Services
	opts Options
	log  observability.Logger
	tel  observability.Observability
}

func NewHandler(svc Services, opts Options, tel observability.Observability) *Handler {
	tel = observability.Or(tel)
	if opts.MaxWebhookBytes <= 0 {
		opts.MaxWebhookBytes = defaultMaxWebhookBytes
	}
	return &Handler{
		svc:  svc,
		opts: opts,
		log:  tel.Logger().With(observability.F("component", componentHTTPHandler)),
		tel:  tel,
	}
}

func (h *Handler) Router() http.Handler {
	r := mux.NewRouter()

	// Wire each route with middlewares:
	// Trace → ObservabilityMiddleware (request logger) → Access log → HTTP metrics → Handler
	h.handle(r, http.MethodPost, RouteCreateOrder, h.handleCreateOrder)
	h.handle(r, http.MethodGet, RouteStatus, h.handleStatus)
	h.handle(r, http.MethodPost, RouteDispatch, h.handleDispatch)
	h.handle(r, http.MethodPost, RouteWebhook, h.handleWebhook)
	h.handle(r, http.MethodGet, RouteProducts, h.handleProducts)
	if h.opts.SandboxSigner != nil {
		h.handle(r, http.MethodGet, RouteSandboxPay, h.handleSandboxPay)
		h.handle(r, http.MethodPost, RouteSandboxPay, h.handleSandboxPay)
	}

	r.HandleFunc(RouteHealth, h.handleHealth).Methods(http.MethodGet)
	if h.opts.Metrics != nil {
		r.Handle(RouteMetrics, h.opts.Metrics).Methods(http.MethodGet)
	}

	origins := h.opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", headerRequestID, headerKioskID, "traceparent", "tracestate"},
		ExposedHeaders: []string{headerRequestID},
	}).Handler(r)
}

func (h *Handler) handle(r *mux.Router, method, route string, handler http.HandlerFunc) {
	wrapped := h.withTrace(
		ObservabilityMiddleware(
			h.log,
			func(r *http.Request) string {
				return r.Header.Get(headerRequestID)
			},
			func(r *http.Request) string {
				return r.Header.Get(headerKioskID)
			},
		)(
			h.withAccessLog(
				h.withHTTPMetrics(handler),
			),
		),
	)
	r.Handle(route, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		// Store stable route template for low-cardinality labels
		wrapped.ServeHTTP(w, req.WithContext(contextWithRoute(req.Context(), method+" "+route)))
	})).Methods(method)
}

// createOrderRequest accepts the kiosk frontend's perfumeId/pumps names as aliases.
type createOrderRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	PerfumeID string `json:"perfumeId"`
	Pumps     int    `json:"pumps"`
}

type orderResponse struct {
	ID               string             `json:"id"`
	ProductID        string             `json:"productId"`
	ProductName      string             `json:"productName"`
	Quantity         int                `json:"quantity"`
	Amount           string             `json:"amount"`
	AmountMinor      int64              `json:"amountMinor"`
	Currency         string             `json:"currency"`
	Status           domainOrder.Status `json:"status"`
	PaymentLinkID    string             `json:"paymentLinkId"`
	PaymentLinkURL   string             `json:"paymentLinkUrl"`
	PayableReference string             `json:"payableReference"`
	CreatedAt        time.Time          `json:"createdAt"`
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}
	if req.ProductID == "" {
		req.ProductID = req.PerfumeID
	}
	if req.Quantity == 0 {
		req.Quantity = req.Pumps
	}

	result, err := h.svc.CreateOrder.Execute(r.Context(), appOrder.CreateOrderInput{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	o := result.Order
	writeJSON(w, http.StatusOK, orderResponse{
		ID:               o.ID,
		ProductID:        o.ProductID,
		ProductName:      o.ProductName,
		Quantity:         o.Quantity,
		Amount:           result.Amount,
		AmountMinor:      o.AmountMinor,
		Currency:         o.Currency,
		Status:           o.Status,
		PaymentLinkID:    o.PaymentLinkID,
		PaymentLinkURL:   o.PaymentLinkURL,
		PayableReference: o.PayableReference,
		CreatedAt:        o.CreatedAt,
	})
}

type statusResponse struct {
	ID     string             `json:"id"`
	Status domainOrder.Status `json:"status"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Status.Execute(r.Context(), mux.Vars(r)["orderId"])
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{ID: res.ID, Status: res.Status})
}

type dispatchResponse struct {
	Accepted         bool   `json:"accepted"`
	Message          string `json:"message"`
	EstimatedDelayMs int64  `json:"estimatedDelayMs"`
	Quantity         int    `json:"quantity"`
}

func (h *Handler) handleDispatch(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Dispatch.Execute(r.Context(), mux.Vars(r)["orderId"])
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dispatchResponse{
		Accepted:         res.Accepted,
		Message:          "Dispensing started.",
		EstimatedDelayMs: res.EstimatedDelay.Milliseconds(),
		Quantity:         res.Quantity,
	})
}

// handleWebhook passes the raw body through untouched: the signature covers
// the exact bytes the provider sent.
func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.opts.MaxWebhookBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, codeInvalidRequest, "payload too large")
			return
		}
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "unreadable body")
		return
	}
	h.deliverNotification(w, r, body, r.Header.Get(HeaderSignature))
}

func (h *Handler) handleSandboxPay(w http.ResponseWriter, r *http.Request) {
	body, err := appPayment.PaidNotificationBody(mux.Vars(r)["linkId"], "")
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.deliverNotification(w, r, body, h.opts.SandboxSigner.Sign(body))
}

type webhookResponse struct {
	Status  string `json:"status"`
	Outcome string `json:"outcome,omitempty"`
}

func (h *Handler) deliverNotification(w http.ResponseWriter, r *http.Request, body []byte, signature string) {
	res, err := h.svc.Notification.Execute(r.Context(), appPayment.NotificationInput{
		Body:      body,
		Signature: signature,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, webhookResponse{Status: "ok", Outcome: res.Outcome})
}

type productResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Price      string `json:"price"`
	PriceMinor int64  `json:"priceMinor"`
}

type productsResponse struct {
	Currency    string            `json:"currency"`
	MaxQuantity int               `json:"maxQuantity"`
	Products    []productResponse `json:"products"`
}

func (h *Handler) handleProducts(w http.ResponseWriter, _ *http.Request) {
	c := h.svc.Catalog
	out := productsResponse{Currency: c.Currency(), MaxQuantity: c.MaxQuantity()}
	for _, p := range c.Products() {
		out.Products = append(out.Products, productResponse{
			ID:         p.ID,
			Name:       p.Name,
			Price:      p.Price.StringFixed(c.Exponent()),
			PriceMinor: p.Price.Shift(c.Exponent()).RoundBank(0).IntPart(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// withAccessLog writes a single access log after the handler completes.
// It relies on the request-scoped logger already injected by ObservabilityMiddleware.
func (h *Handler) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		logctx.FromOr(r.Context(), h.log).Info("http_access",
			observability.F("method", r.Method),
			observability.F("route", routeFromContext(r.Context())),
			observability.F("path", r.URL.Path),
			observability.F("status", lrw.status),
			observability.F("latency_ms", time.Since(start).Milliseconds()),
		)
	})
}

// withTrace creates a server span for the request using OTel and W3C propagation.
func (h *Handler) withTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tracer := otel.Tracer("perfume-kiosk.http")
		parentCtx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		route := routeFromContext(parentCtx)
		spanName := route
		if spanName == "unknown" {
			spanName = r.Method + " " + r.URL.Path
		}
		template := route
		if idx := strings.Index(template, " "); idx >= 0 {
			template = template[idx+1:]
		}
		if template == "unknown" || template == "" {
			template = r.URL.Path
		}

		ctxWithSpan, span := tracer.Start(parentCtx,
			spanName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", template),
				attribute.String("http.target", r.URL.Path),
				attribute.String("http.user_agent", r.UserAgent()),
			),
		)
		defer span.End()

		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(lrw, r.WithContext(ctxWithSpan))

		span.SetAttributes(attribute.Int("http.status_code", lrw.status))
		if lrw.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(lrw.status))
		}
	})
}

// withHTTPMetrics records RED-ish HTTP metrics using injected vectors.
// DO NOT new metrics inside the middleware.
func (h *Handler) withHTTPMetrics(next http.Handler) http.Handler {
	requests := h.tel.Metrics().Counter(observability.MHTTPRequests)
	duration := h.tel.Metrics().Histogram(observability.MHTTPRequestDuration)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		route := routeFromContext(r.Context())
		requests.Add(1,
			observability.L("route", route),
			observability.L("method", r.Method),
			observability.L("status", strconv.Itoa(lrw.status)),
		)
		duration.Observe(time.Since(start).Seconds(),
			observability.L("route", route),
			observability.L("method", r.Method),
		)
	})
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type routeKey struct{}

// contextWithRoute stores the stable route template in the context so downstream
// metrics/logging can rely on low-cardinality values.
func contextWithRoute(ctx context.Context, route string) context.Context {
	if route == "" {
		return ctx
	}
	return context.WithValue(ctx, routeKey{}, route)
}

func routeFromContext(ctx context.Context) string {
	if ctx == nil {
		return "unknown"
	}
	if route, ok := ctx.Value(routeKey{}).(string); ok && route != "" {
		return route
	}
	return "unknown"
}
