package order

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/application"
	domain "github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/domain/order"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/observability"
)

const useCaseOrderStatus = "order.status"

type StatusResult struct {
	ID     string
	Status domain.Status
}

// GetStatusUseCase is the kiosk's polling endpoint: a plain read, no caching.
// It never exposes the amount or payable reference.
type GetStatusUseCase struct {
	repo domain.Repository
	inst *application.Instrumentation
}

func NewGetStatusUseCase(repo domain.Repository, tel observability.Observability) *GetStatusUseCase {
	return &GetStatusUseCase{
		repo: repo,
		inst: application.NewInstrumentation(tel, orderService),
	}
}

func (uc *GetStatusUseCase) Execute(ctx context.Context, orderID string) (_ *StatusResult, err error) {
	ctx, call := uc.inst.Begin(ctx, useCaseOrderStatus, "GetStatus",
		attribute.String("order.id", orderID),
	)
	defer func() { call.End(err) }()

	if orderID == "" {
		call.Fail("ORDER_ID_REQUIRED")
		return nil, fmt.Errorf("%w: order id is required", domain.ErrInvalidRequest)
	}

	o, err := uc.repo.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			call.Outcome("not_found", "ORDER_NOT_FOUND")
		} else {
			call.Fail("ORDER_LOOKUP_FAILED")
		}
		return nil, wrapRepositoryError(err)
	}

	call.Span().SetAttributes(attribute.String("order.status", string(o.Status)))
	return &StatusResult{ID: o.ID, Status: o.Status}, nil
}
