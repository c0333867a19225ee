package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/application"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/domain/dispense"
	domain "github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/domain/order"
	domoutbox "github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/domain/outbox"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/observability"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/observability/logctx"
)

const (
	useCaseOrderDispatch = "order.dispatch"
	useCaseOrderComplete = "order.dispatch_complete"
	dispenserTarget      = "dispenser"
)

type DispatchResult struct {
	OrderID        string
	Accepted       bool
	EstimatedDelay time.Duration
	Quantity       int
}

// DispatchUseCase releases a paid order to the dispenser exactly once and owns
// the completion that later marks it dispatched.
type DispatchUseCase struct {
	repo        domain.Repository
	dispenser   dispense.Dispenser
	scheduler   Scheduler
	publisher   domoutbox.Publisher
	timing      dispense.Timing
	inst        *application.Instrumentation
	transitions observability.Counter // order_transitions_total{from,to}
}

func NewDispatchUseCase(
	repo domain.Repository,
	dispenser dispense.Dispenser,
	scheduler Scheduler,
	publisher domoutbox.Publisher,
	timing dispense.Timing,
	tel observability.Observability,
) *DispatchUseCase {
	if timing.PerUnit <= 0 && timing.Overhead <= 0 {
		timing = dispense.DefaultTiming()
	}
	inst := application.NewInstrumentation(tel, orderService)
	return &DispatchUseCase{
		repo:        repo,
		dispenser:   dispenser,
		scheduler:   scheduler,
		publisher:   publisher,
		timing:      timing,
		inst:        inst,
		transitions: inst.Metrics().Counter(observability.MOrderTransitions),
	}
}

// Execute checks the stored status, claims the order with PAID -> DISPENSING
// and sends the hardware command. Losing the claim to a concurrent caller
// reports ErrAlreadyDispatched.
func (uc *DispatchUseCase) Execute(ctx context.Context, orderID string) (_ *DispatchResult, err error) {
	ctx, call := uc.inst.Begin(ctx, useCaseOrderDispatch, "Dispatch",
		attribute.String("order.id", orderID),
	)
	defer func() { call.End(err) }()
	call.With(observability.F("order_id", orderID))

	current, err := uc.repo.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			call.Outcome("rejected", "ORDER_NOT_FOUND")
		} else {
			call.Fail("ORDER_LOOKUP_FAILED")
		}
		return nil, wrapRepositoryError(err)
	}

	if guardErr := domain.CheckDispatchable(current.Status); guardErr != nil {
		call.Outcome("rejected", rejectStatus(guardErr))
		call.With(observability.F("order_status", string(current.Status)))
		return nil, fmt.Errorf("%w: order %s is %s", guardErr, orderID, current.Status)
	}

	claimed, err := uc.repo.CompareAndSetStatus(ctx, orderID, domain.StatusPaid, domain.StatusDispensing)
	if err != nil {
		if errors.Is(err, domain.ErrStatusConflict) {
			latest, getErr := uc.repo.Get(ctx, orderID)
			if getErr == nil && !latest.Status.Dispatched() {
				// CAS lost against something other than a dispatch; report what is stored now.
				guardErr := domain.CheckDispatchable(latest.Status)
				call.Outcome("rejected", rejectStatus(guardErr))
				return nil, fmt.Errorf("%w: order %s is %s", guardErr, orderID, latest.Status)
			}
			call.Outcome("rejected", "ALREADY_DISPATCHED")
			call.Span().AddEvent("order.dispatch_race_lost")
			return nil, fmt.Errorf("%w: order %s", domain.ErrAlreadyDispatched, orderID)
		}
		call.Fail("ORDER_CLAIM_FAILED")
		return nil, wrapRepositoryError(err)
	}
	uc.recordTransition(domain.StatusPaid, domain.StatusDispensing)

	cmd := dispense.Command{OrderID: claimed.ID, ProductName: claimed.ProductName, Quantity: claimed.Quantity}
	if dErr := uc.inst.External(ctx, dispenserTarget, "dispense", func(ctx context.Context) error {
		return uc.dispenser.Dispense(ctx, cmd)
	}); dErr != nil {
		// Fire-and-forget: the order stays DISPENSING and completes on schedule.
		call.Status("DISPENSE_COMMAND_FAILED")
		call.Span().RecordError(dErr)
		call.Logger().Error("dispense_command_failed",
			observability.F("order_id", claimed.ID),
			observability.F("error", dErr),
		)
	}

	if pubErr := publish(ctx, uc.inst, uc.publisher, domain.NewStatusChangedEvent(claimed, domain.StatusPaid)); pubErr != nil {
		call.With(observability.F("event_publish_error", pubErr.Error()))
	}

	delay := uc.timing.Estimate(claimed.Quantity)
	uc.scheduler.Schedule(ctx, claimed.ID, delay, func(ctx context.Context) {
		uc.complete(ctx, claimed.ID)
	})

	call.With(observability.F("estimated_delay_ms", delay.Milliseconds()))
	call.Span().AddEvent("order.dispensing",
		trace.WithAttributes(attribute.Int64("dispense.estimated_delay_ms", delay.Milliseconds())),
	)

	return &DispatchResult{
		OrderID:        claimed.ID,
		Accepted:       true,
		EstimatedDelay: delay,
		Quantity:       claimed.Quantity,
	}, nil
}

// complete moves DISPENSING -> DISPATCHED. It runs once per accepted dispatch
// and does not re-check the dispatch guards.
func (uc *DispatchUseCase) complete(ctx context.Context, orderID string) {
	var err error
	ctx, call := uc.inst.Begin(ctx, useCaseOrderComplete, "DispatchComplete",
		attribute.String("order.id", orderID),
	)
	defer func() { call.End(err) }()
	call.With(observability.F("order_id", orderID))

	done, err := uc.repo.CompareAndSetStatus(ctx, orderID, domain.StatusDispensing, domain.StatusDispatched)
	if err != nil {
		call.Fail("ORDER_COMPLETE_FAILED")
		return
	}
	uc.recordTransition(domain.StatusDispensing, domain.StatusDispatched)

	logctx.FromOr(ctx, uc.inst.Logger()).Info("dispense_complete",
		observability.F("order_id", done.ID),
		observability.F("product_name", done.ProductName),
		observability.F("quantity", done.Quantity),
	)

	if pubErr := publish(ctx, uc.inst, uc.publisher, domain.NewStatusChangedEvent(done, domain.StatusDispensing)); pubErr != nil {
		call.With(observability.F("event_publish_error", pubErr.Error()))
	}
}

func (uc *DispatchUseCase) recordTransition(from, to domain.Status) {
	uc.transitions.Add(1,
		observability.L("from", string(from)),
		observability.L("to", string(to)),
	)
}

func rejectStatus(err error) string {
	if errors.Is(err, domain.ErrAlreadyDispatched) {
		return "ALREADY_DISPATCHED"
	}
	return "PAYMENT_NOT_CONFIRMED"
}
