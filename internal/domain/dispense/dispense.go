package dispense

import (
	"context"
	"time"
)

// Command tells the dispenser to release quantity pumps of a perfume.
type Command struct {
	OrderID     string `json:"orderId"`
	ProductName string `json:"productName"`
	Quantity    int    `json:"quantity"`
}

// Dispenser delivers commands to the hardware. Delivery is fire-and-forget:
// an error means the command may not have reached the device, nothing more.
type Dispenser interface {
	Dispense(ctx context.Context, cmd Command) error
}

// Timing models how long the device takes for a command.
type Timing struct {
	PerUnit  time.Duration
	Overhead time.Duration
}

func DefaultTiming() Timing {
	return Timing{PerUnit: 500 * time.Millisecond, Overhead: time.Second}
}

// Estimate returns quantity*PerUnit + Overhead.
func (t Timing) Estimate(quantity int) time.Duration {
	return time.Duration(quantity)*t.PerUnit + t.Overhead
}
