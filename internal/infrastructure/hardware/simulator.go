package hardware

import (
	"context"

	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/domain/dispense"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/observability"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/observability/logctx"
)

// Simulator stands in for the dispenser microcontroller: it only logs the command.
type Simulator struct {
	log observability.Logger
}

func NewSimulator(logger observability.Logger) *Simulator {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Simulator{log: logger.With(observability.F("component", "hardware_mock"))}
}

func (s *Simulator) Dispense(ctx context.Context, cmd dispense.Command) error {
	logctx.FromOr(ctx, s.log).Info("hardware_dispense_command",
		observability.F("order_id", cmd.OrderID),
		observability.F("product_name", cmd.ProductName),
		observability.F("quantity", cmd.Quantity),
	)
	return nil
}
