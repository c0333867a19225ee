package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	dompay "github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/domain/payment"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/observability"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/observability/logctx"
)

// Sandbox issues local payment links for development. Payments are confirmed
// by posting a signed webhook, e.g. with `kiosk pay`.
type Sandbox struct {
	baseURL string
	qrSize  int
	log     observability.Logger
}

func NewSandbox(baseURL string, qrSize int, logger observability.Logger) *Sandbox {
	if baseURL == "" {
		baseURL = "http://localhost:3001/sandbox/pay"
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Sandbox{
		baseURL: strings.TrimRight(baseURL, "/"),
		qrSize:  qrSize,
		log:     logger.With(observability.F("component", "sandbox_gateway")),
	}
}

func (s *Sandbox) CreateLink(ctx context.Context, req dompay.LinkRequest) (dompay.Link, error) {
	if err := ctx.Err(); err != nil {
		return dompay.Link{}, fmt.Errorf("%w: %w", dompay.ErrGatewayFailure, err)
	}
	if req.AmountMinor <= 0 {
		return dompay.Link{}, fmt.Errorf("%w: amount must be positive", dompay.ErrGatewayFailure)
	}
	id := "plink_sbx_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
	url := s.baseURL + "/" + id
	qr, err := QRDataURI(url, s.qrSize)
	if err != nil {
		return dompay.Link{}, fmt.Errorf("%w: %w", dompay.ErrGatewayFailure, err)
	}
	logctx.FromOr(ctx, s.log).Info("sandbox_payment_link_created",
		observability.F("payment_link_id", id),
		observability.F("reference_id", req.ReferenceID),
		observability.F("amount_minor", req.AmountMinor),
	)
	return dompay.Link{ID: id, URL: url, PayableReference: qr}, nil
}
