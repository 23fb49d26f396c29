package rest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	domainerrors "github.com/davidleathers/payment-fraud-backend/internal/domain/errors"
	"github.com/davidleathers/payment-fraud-backend/internal/domain/transaction"
	"github.com/davidleathers/payment-fraud-backend/internal/domain/values"
	"github.com/davidleathers/payment-fraud-backend/internal/infrastructure/telemetry"
	"github.com/davidleathers/payment-fraud-backend/internal/service/fraud"
)

// Handler carries the HTTP endpoint implementations.
type Handler struct {
	svc      *fraud.Service
	logger   *slog.Logger
	validate *validator.Validate
	tracer   trace.Tracer
}

// NewHandler creates the endpoint handler set.
func NewHandler(svc *fraud.Service, logger *slog.Logger) *Handler {
	return &Handler{
		svc:      svc,
		logger:   logger,
		validate: validator.New(),
		tracer:   telemetry.Tracer("api.rest"),
	}
}

// Register attaches all routes to the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/users/register", h.handleRegisterUser)
	mux.HandleFunc("GET /api/v1/users/{userId}/transactions", h.handleGetUserTransactions)
	mux.HandleFunc("GET /api/v1/users/{userId}/fraud-statistics", h.handleGetFraudStatistics)
	mux.HandleFunc("GET /api/v1/users/{userId}/alerts", h.handleGetUserAlerts)

	mux.HandleFunc("POST /api/v1/transactions", h.handleProcessTransaction)
	mux.HandleFunc("POST /api/v1/transactions/qr", h.handleProcessQRTransaction)
	mux.HandleFunc("POST /api/v1/transactions/qr/verify", h.handleVerifyQRTransaction)
	mux.HandleFunc("GET /api/v1/transactions/{id}", h.handleGetTransaction)

	mux.HandleFunc("GET /api/v1/alerts/unreviewed", h.handleGetUnreviewedAlerts)
	mux.HandleFunc("POST /api/v1/alerts/{id}/review", h.handleReviewAlert)
}

func (h *Handler) handleProcessTransaction(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ProcessTransaction")
	defer span.End()

	req, ok := h.decodeTransactionRequest(w, r)
	if !ok {
		return
	}
	span.SetAttributes(attribute.String("user_id", req.UserID))

	result, err := h.svc.ProcessTransaction(ctx, *req)
	if err != nil {
		telemetry.RecordError(span, err)
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toTransactionResponse(result))
}

func (h *Handler) handleProcessQRTransaction(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ProcessQRTransaction")
	defer span.End()

	req, ok := h.decodeTransactionRequest(w, r)
	if !ok {
		return
	}

	result, err := h.svc.ProcessQRTransaction(ctx, *req)
	if err != nil {
		telemetry.RecordError(span, err)
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toTransactionResponse(result))
}

func (h *Handler) handleVerifyQRTransaction(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "VerifyQRTransaction")
	defer span.End()

	var req VerifyQRRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.svc.VerifyQRTransaction(ctx, req.QRCodeID, req.UserID)
	if err != nil {
		telemetry.RecordError(span, err)
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toTransactionResponse(result))
}

func (h *Handler) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.GetTransaction(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toStoredTransactionResponse(t))
}

func (h *Handler) handleGetUserTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.svc.GetUserTransactions(r.Context(), r.PathValue("userId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := make([]*TransactionResponse, len(txs))
	for i, t := range txs {
		resp[i] = toStoredTransactionResponse(t)
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetFraudStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.GetUserFraudStatistics(r.Context(), r.PathValue("userId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleGetUserAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.svc.GetUserAlerts(r.Context(), r.PathValue("userId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := make([]*AlertResponse, len(alerts))
	for i, a := range alerts {
		resp[i] = toAlertResponse(a)
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetUnreviewedAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.svc.GetUnreviewedAlerts(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := make([]*AlertResponse, len(alerts))
	for i, a := range alerts {
		resp[i] = toAlertResponse(a)
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleReviewAlert(w http.ResponseWriter, r *http.Request) {
	alertID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, domainerrors.NewValidationError("INVALID_ALERT_ID", "alert id must be a UUID"))
		return
	}

	var req ReviewAlertRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	a, err := h.svc.ReviewAlert(r.Context(), alertID, req.Reviewer, req.Notes, req.ConfirmedFraud)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toAlertResponse(a))
}

func (h *Handler) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	u, err := h.svc.RegisterUser(r.Context(), req.Name, req.Email, req.PhoneNumber, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toUserResponse(u))
}

// decodeTransactionRequest parses and validates the wire request and
// converts it into the service's typed request.
func (h *Handler) decodeTransactionRequest(w http.ResponseWriter, r *http.Request) (*fraud.Request, bool) {
	var wire TransactionRequest
	if !h.decodeAndValidate(w, r, &wire) {
		return nil, false
	}

	amount, err := values.NewMoneyFromFloat(wire.Amount, wire.Currency)
	if err != nil {
		h.writeError(w, r, domainerrors.NewValidationError("INVALID_AMOUNT", err.Error()))
		return nil, false
	}

	txType, err := transaction.ParseType(wire.TransactionType)
	if err != nil {
		h.writeError(w, r, domainerrors.NewValidationError("INVALID_TYPE", err.Error()))
		return nil, false
	}

	return &fraud.Request{
		UserID:            wire.UserID,
		Amount:            amount,
		Type:              txType,
		MerchantID:        wire.MerchantID,
		MerchantName:      wire.MerchantName,
		MerchantCategory:  wire.MerchantCategory,
		IPAddress:         wire.IPAddress,
		Country:           wire.Country,
		City:              wire.City,
		Latitude:          wire.Latitude,
		Longitude:         wire.Longitude,
		DeviceID:          wire.DeviceID,
		DeviceType:        wire.DeviceType,
		DeviceFingerprint: wire.DeviceFingerprint,
		UserAgent:         wire.UserAgent,
		QRCodeID:          wire.QRCodeID,
		QRCodeData:        wire.QRCodeData,
	}, true
}

func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, r, domainerrors.NewValidationError("INVALID_JSON", "request body is not valid JSON"))
		return false
	}

	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			h.writeError(w, r, domainerrors.NewValidationError("VALIDATION_FAILED",
				"field "+first.Field()+" failed on "+first.Tag()))
			return false
		}
		h.writeError(w, r, domainerrors.NewValidationError("VALIDATION_FAILED", err.Error()))
		return false
	}
	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeError maps domain errors to HTTP statuses. Internal detail never
// reaches the response body.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := domainerrors.GetStatusCode(err)

	resp := ErrorResponse{
		Error:   http.StatusText(status),
		Message: "An internal error occurred",
	}

	var appErr *domainerrors.AppError
	if errors.As(err, &appErr) {
		resp.Code = appErr.Code
		resp.Message = appErr.Message
	}

	if status >= 500 {
		telemetry.WithContext(r.Context(), h.logger).Error("request failed",
			"path", r.URL.Path, "error", err)
		resp.Message = "An internal error occurred"
	}

	h.writeJSON(w, status, resp)
}
