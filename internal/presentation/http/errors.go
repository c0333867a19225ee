package httppresentation

import (
	"context"
	"errors"
	"net/http"

	domainOrder "github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/domain/order"
	domainPayment "github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/domain/payment"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/observability"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/observability/logctx"
)

// Error codes let the kiosk tell "not yet paid" from "already done".
const (
	codeInvalidRequest      = "INVALID_REQUEST"
	codeGatewayFailure      = "GATEWAY_FAILURE"
	codeNotFound            = "NOT_FOUND"
	codePaymentNotConfirmed = "PAYMENT_NOT_CONFIRMED"
	codeAlreadyDispatched   = "ALREADY_DISPATCHED"
	codeUnauthenticated     = "INVALID_SIGNATURE"
	codeMalformed           = "MALFORMED_PAYLOAD"
	codeTimeout             = "TIMEOUT"
	codeInternal            = "INTERNAL"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domainOrder.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
	case errors.Is(err, domainPayment.ErrGatewayFailure):
		writeError(w, http.StatusBadGateway, codeGatewayFailure, "payment provider unavailable")
	case errors.Is(err, domainOrder.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, "order not found")
	case errors.Is(err, domainOrder.ErrPaymentNotConfirmed):
		writeError(w, http.StatusPaymentRequired, codePaymentNotConfirmed, "payment not confirmed")
	case errors.Is(err, domainOrder.ErrAlreadyDispatched):
		writeError(w, http.StatusConflict, codeAlreadyDispatched, "order already dispatched")
	case errors.Is(err, domainPayment.ErrAuthentication):
		writeError(w, http.StatusUnauthorized, codeUnauthenticated, "Invalid Signature")
	case errors.Is(err, domainPayment.ErrMalformed):
		writeError(w, http.StatusBadRequest, codeMalformed, "malformed notification")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, codeTimeout, "request timed out")
	default:
		logctx.FromOr(r.Context(), h.log).Error("http_internal_error",
			observability.F("route", routeFromContext(r.Context())),
			observability.F("error", err),
		)
		writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
	}
}
