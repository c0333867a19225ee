package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	dompay "github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/domain/payment"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/observability"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/observability/logctx"
)

const (
	DefaultRazorpayBaseURL = "https://api.razorpay.com"
	paymentLinksPath       = "/v1/payment_links"
	maxErrorBody           = 4 << 10
)

type RazorpayConfig struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	QRSize    int
	Timeout   time.Duration
}

// Razorpay creates hosted payment links through the provider's REST API.
type Razorpay struct {
	cfg    RazorpayConfig
	client *http.Client
	log    observability.Logger
}

func NewRazorpay(cfg RazorpayConfig, client *http.Client, logger observability.Logger) *Razorpay {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultRazorpayBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Razorpay{cfg: cfg, client: client, log: logger.With(observability.F("component", "razorpay"))}
}

type linkNotify struct {
	SMS   bool `json:"sms"`
	Email bool `json:"email"`
}

type createLinkRequest struct {
	Amount         int64      `json:"amount"`
	Currency       string     `json:"currency"`
	AcceptPartial  bool       `json:"accept_partial"`
	Description    string     `json:"description"`
	ReferenceID    string     `json:"reference_id"`
	ExpireBy       int64      `json:"expire_by,omitempty"`
	ReminderEnable bool       `json:"reminder_enable"`
	Notify         linkNotify `json:"notify"`
}

type createLinkResponse struct {
	ID       string `json:"id"`
	ShortURL string `json:"short_url"`
	Status   string `json:"status"`
}

type errorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (r *Razorpay) CreateLink(ctx context.Context, req dompay.LinkRequest) (dompay.Link, error) {
	body := createLinkRequest{
		Amount:        req.AmountMinor,
		Currency:      req.Currency,
		AcceptPartial: false,
		Description:   req.Description,
		ReferenceID:   req.ReferenceID,
		Notify:        linkNotify{SMS: !req.SuppressNotifications, Email: !req.SuppressNotifications},
	}
	if !req.ExpiresAt.IsZero() {
		body.ExpireBy = req.ExpiresAt.Unix()
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return dompay.Link{}, fmt.Errorf("%w: encode request: %w", dompay.ErrGatewayFailure, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.BaseURL+paymentLinksPath, bytes.NewReader(payload))
	if err != nil {
		return dompay.Link{}, fmt.Errorf("%w: build request: %w", dompay.ErrGatewayFailure, err)
	}
	httpReq.SetBasicAuth(r.cfg.KeyID, r.cfg.KeySecret)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return dompay.Link{}, fmt.Errorf("%w: %w", dompay.ErrGatewayFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr errorResponse
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = json.Unmarshal(raw, &apiErr)
		logctx.FromOr(ctx, r.log).Warn("payment_link_rejected",
			observability.F("http_status", resp.StatusCode),
			observability.F("code", apiErr.Error.Code),
			observability.F("reference_id", req.ReferenceID),
		)
		return dompay.Link{}, fmt.Errorf("%w: razorpay %d %s: %s",
			dompay.ErrGatewayFailure, resp.StatusCode, apiErr.Error.Code, apiErr.Error.Description)
	}

	var out createLinkResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return dompay.Link{}, fmt.Errorf("%w: decode response: %w", dompay.ErrGatewayFailure, err)
	}
	if out.ID == "" || out.ShortURL == "" {
		return dompay.Link{}, fmt.Errorf("%w: response missing link id or url", dompay.ErrGatewayFailure)
	}

	qr, err := QRDataURI(out.ShortURL, r.cfg.QRSize)
	if err != nil {
		return dompay.Link{}, fmt.Errorf("%w: %w", dompay.ErrGatewayFailure, err)
	}
	return dompay.Link{ID: out.ID, URL: out.ShortURL, PayableReference: qr}, nil
}

// MaskedKeyID shows only the first characters of the key id for startup logs.
func (r *Razorpay) MaskedKeyID() string {
	return Mask(r.cfg.KeyID)
}

func Mask(s string) string {
	const visible = 10
	if len(s) <= visible {
		return strings.Repeat("*", len(s))
	}
	return s[:visible] + "..."
}
