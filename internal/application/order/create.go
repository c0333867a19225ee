package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/application"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/domain/catalog"
	domain "github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/domain/order"
	domoutbox "github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/domain/outbox"
	dompay "github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/domain/payment"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/observability"
)

const (
	orderService        = "order-service"
	useCaseOrderCreate  = "order.create"
	gatewayTarget       = "payment_gateway"
	publishTarget       = "outbox"
	publishTimeout      = 300 * time.Millisecond
	DefaultLinkExpiry   = 5 * time.Minute
	DefaultGatewayLimit = 10 * time.Second
)

var ErrRepository = errors.New("order: repository failure")

type CreateOrderInput struct {
	ProductID string
	Quantity  int
}

// CreateOrderResult is the full order as persisted, plus its display amount.
type CreateOrderResult struct {
	Order  *domain.Order
	Amount string
}

type CreateOrderConfig struct {
	LinkExpiry     time.Duration
	GatewayTimeout time.Duration
}

// CreateOrderUseCase prices the selection, obtains a payment link and persists the order.
type CreateOrderUseCase struct {
	catalog     *catalog.Catalog
	repo        domain.Repository
	gateway     dompay.Gateway
	idGenerator IDGenerator
	publisher   domoutbox.Publisher
	clock       Clock
	cfg         CreateOrderConfig
	inst        *application.Instrumentation
}

func NewCreateOrderUseCase(
	cat *catalog.Catalog,
	repo domain.Repository,
	gateway dompay.Gateway,
	idGen IDGenerator,
	publisher domoutbox.Publisher,
	clock Clock,
	cfg CreateOrderConfig,
	tel observability.Observability,
) *CreateOrderUseCase {
	if cfg.LinkExpiry <= 0 {
		cfg.LinkExpiry = DefaultLinkExpiry
	}
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = DefaultGatewayLimit
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &CreateOrderUseCase{
		catalog:     cat,
		repo:        repo,
		gateway:     gateway,
		idGenerator: idGen,
		publisher:   publisher,
		clock:       clock,
		cfg:         cfg,
		inst:        application.NewInstrumentation(tel, orderService),
	}
}

// Execute performs the order creation flow. Nothing is persisted unless the
// gateway returned a link, and no lock is held while waiting on it.
func (uc *CreateOrderUseCase) Execute(ctx context.Context, cmd CreateOrderInput) (_ *CreateOrderResult, err error) {
	ctx, call := uc.inst.Begin(ctx, useCaseOrderCreate, "CreateOrder",
		attribute.String("order.product_id", cmd.ProductID),
		attribute.Int("order.quantity", cmd.Quantity),
	)
	defer func() { call.End(err) }()

	quote, err := uc.catalog.Price(cmd.ProductID, cmd.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrUnknownProduct):
			call.Fail("PRODUCT_UNKNOWN")
		default:
			call.Fail("QUANTITY_INVALID")
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}
	if err := ctx.Err(); err != nil {
		call.Fail("CONTEXT_CANCELED")
		return nil, err
	}

	orderID := uc.idGenerator.NewID()
	now := uc.clock.Now()
	call.With(observability.F("order_id", orderID), observability.F("amount_minor", quote.AmountMinor))

	var link dompay.Link
	gwCtx, cancel := context.WithTimeout(ctx, uc.cfg.GatewayTimeout)
	gwErr := uc.inst.External(gwCtx, gatewayTarget, "create_link", func(ctx context.Context) error {
		var err error
		link, err = uc.gateway.CreateLink(ctx, dompay.LinkRequest{
			AmountMinor:           quote.AmountMinor,
			Currency:              quote.Currency,
			ReferenceID:           orderID,
			Description:           Description(quote.Product.Name, quote.Quantity),
			ExpiresAt:             now.Add(uc.cfg.LinkExpiry),
			SuppressNotifications: true,
		})
		return err
	})
	cancel()
	if gwErr != nil {
		call.Fail("GATEWAY_FAILED")
		if errors.Is(gwErr, dompay.ErrGatewayFailure) {
			return nil, gwErr
		}
		return nil, fmt.Errorf("%w: %w", dompay.ErrGatewayFailure, gwErr)
	}

	entity, derr := domain.New(orderID, quote.Product.ID, quote.Product.Name, quote.Quantity,
		quote.AmountMinor, quote.Currency,
		domain.PaymentLink{ID: link.ID, URL: link.URL, PayableReference: link.PayableReference},
		now,
	)
	if derr != nil {
		call.Fail("DOMAIN_CONSTRUCTION_FAILED")
		return nil, fmt.Errorf("order: construct: %w", derr)
	}

	if err := uc.repo.Insert(ctx, entity); err != nil {
		call.Fail("REPO_INSERT_FAILED")
		return nil, wrapRepositoryError(err)
	}

	if pubErr := publish(ctx, uc.inst, uc.publisher, domain.NewOrderCreatedEvent(entity)); pubErr != nil {
		call.Span().RecordError(pubErr)
		call.Status("EVENT_PUBLISH_FAILED")
		call.With(observability.F("event_publish_error", pubErr.Error()))
	}

	call.Span().SetAttributes(
		attribute.String("order.id", entity.ID),
		attribute.String("order.status", string(entity.Status)),
	)
	call.Span().AddEvent("order.created",
		trace.WithAttributes(attribute.String("payment.link_id", entity.PaymentLinkID)),
	)

	return &CreateOrderResult{
		Order:  entity,
		Amount: uc.catalog.FormatMinor(entity.AmountMinor),
	}, nil
}

// Description is the payment link text shown by the provider.
func Description(productName string, quantity int) string {
	return fmt.Sprintf("Perfume: %s (%d pumps)", productName, quantity)
}

// publish is best-effort: lifecycle state is already stored, so a failed
// publish is reported but never fails the caller.
func publish(ctx context.Context, inst *application.Instrumentation, publisher domoutbox.Publisher, e domoutbox.Event) error {
	if publisher == nil {
		return nil
	}
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return inst.External(pubCtx, publishTarget, e.EventName(), func(ctx context.Context) error {
		return publisher.Publish(ctx, e)
	})
}

func wrapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrStatusConflict):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrRepository, err)
	}
}
