package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc/codes"

	app "github.com/tbeaudouin05/stripe-checkout-relay/api/services/stripe/app"
	gw "github.com/tbeaudouin05/stripe-checkout-relay/api/services/stripe/gateway"
)

const (
	maxJSONBody = 1 << 20
	// Stripe signs the raw bytes, so the webhook body is read unparsed.
	// Stripe sets no event size limit; the cap only bounds memory.
	maxWebhookBody = 4 << 20
)

// Marshaler is the JSON codec shared by every route and the routing error handler.
var Marshaler runtime.Marshaler = &runtime.JSONBuiltin{}

// Handler exposes app.Service over HTTP.
type Handler struct {
	svc    app.Service
	logger *slog.Logger
}

func New(svc app.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// Register binds every route on mux.
func (h *Handler) Register(mux *runtime.ServeMux) error {
	routes := []struct {
		method  string
		pattern string
		fn      runtime.HandlerFunc
	}{
		{http.MethodGet, "/products", h.listProducts},
		{http.MethodPost, "/create-checkout-session", h.createCheckoutSession},
		{http.MethodPost, "/create-subscription", h.createSubscription},
		{http.MethodPost, "/cancel-subscription", h.cancelSubscription},
		{http.MethodPost, "/verify-purchase", h.verifyPurchase},
		{http.MethodPost, "/webhook", h.webhook},
		{http.MethodPost, "/admin/refund", h.refund},
		{http.MethodGet, "/admin/purchases/{userId}", h.purchaseHistory},
	}
	for _, r := range routes {
		if err := mux.HandlePath(r.method, r.pattern, r.fn); err != nil {
			return fmt.Errorf("register %s %s: %w", r.method, r.pattern, err)
		}
	}
	return nil
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	h.writeJSON(w, http.StatusOK, map[string]any{"products": app.Catalog()})
}

func (h *Handler) createCheckoutSession(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req app.CheckoutRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.svc.CreateCheckoutSession(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) createSubscription(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req app.SubscriptionRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.svc.CreateSubscription(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) cancelSubscription(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req app.CancelSubscriptionRequest
	if !h.decode(w, r, &req) {
		return
	}
	sub, err := h.svc.CancelSubscription(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"success": true, "subscription": sub})
}

func (h *Handler) verifyPurchase(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req app.VerifyPurchaseRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.svc.VerifyPurchase(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) webhook(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		if isTooLarge(err) {
			h.webhookError(w, "request body too large")
		} else {
			h.webhookError(w, "could not read request body")
		}
		return
	}
	if err := h.svc.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		h.webhookError(w, errorMessage(err))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *Handler) webhookError(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusBadRequest)
	_, _ = io.WriteString(w, "Webhook Error: "+msg)
}

func (h *Handler) refund(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req app.RefundRequest
	if !h.decode(w, r, &req) {
		return
	}
	ref, err := h.svc.Refund(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"success": true, "refund": ref})
}

func (h *Handler) purchaseHistory(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	purchases, err := h.svc.PurchaseHistory(r.Context(), pathParams["userId"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"purchases": purchases})
}

// decode reads a JSON body into v. An empty body decodes to the zero value so
// that field validation reports what is missing.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := Marshaler.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	if isTooLarge(err) {
		h.writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "request body too large"})
		return false
	}
	h.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
	return false
}

func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

type errorBody struct {
	Error string `json:"error"`
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := runtime.HTTPStatusFromCode(Code(err))
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "status", status, "error", err)
	}
	h.writeJSON(w, status, errorBody{Error: errorMessage(err)})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := Marshaler.Marshal(v)
	if err != nil {
		h.logger.Error("marshal response", "error", err)
		status = http.StatusInternalServerError
		b = []byte(`{"error":"internal error"}`)
	}
	w.Header().Set("Content-Type", Marshaler.ContentType(v))
	w.WriteHeader(status)
	_, _ = w.Write(b)
}

// Code maps an app or gateway error to the gRPC code describing it.
func Code(err error) codes.Code {
	switch {
	case err == nil:
		return codes.OK
	case errors.Is(err, gw.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, gw.ErrUnavailable):
		return codes.Unavailable
	case errors.Is(err, app.ErrInvalidRequest),
		errors.Is(err, app.ErrUnknownProduct),
		errors.Is(err, app.ErrBadSignature):
		return codes.InvalidArgument
	default:
		return codes.Internal
	}
}

func errorMessage(err error) string {
	var appErr *app.Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal error"
}

// RoutingErrorHandler renders unmatched routes as JSON errors.
func RoutingErrorHandler(_ context.Context, _ *runtime.ServeMux, m runtime.Marshaler, w http.ResponseWriter, _ *http.Request, status int) {
	b, _ := m.Marshal(errorBody{Error: http.StatusText(status)})
	w.Header().Set("Content-Type", m.ContentType(nil))
	w.WriteHeader(status)
	_, _ = w.Write(b)
}
