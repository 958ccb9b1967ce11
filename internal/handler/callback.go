package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/fkash/fkash-backend/internal/domain"
	"github.com/fkash/fkash-backend/internal/logging"
	"github.com/fkash/fkash-backend/internal/service"
)

type callbackReconciler interface {
	Apply(ctx context.Context, in service.CallbackInput) (domain.CallbackDisposition, error)
}

// CallbackHandler receives settlement callbacks from the aggregator. The
// endpoint is not behind JWT auth; authenticity rides on an HMAC signature
// over the raw body.
type CallbackHandler struct {
	reconciler callbackReconciler
	secret     string
}

func NewCallbackHandler(reconciler callbackReconciler, secret string) *CallbackHandler {
	return &CallbackHandler{reconciler: reconciler, secret: secret}
}

// callbackPayload mirrors the aggregator's callback body. externalTransactionId
// carries our reference back; id is the operator's own transaction id.
type callbackPayload struct {
	ExternalTransactionID string `json:"externalTransactionId"`
	Status                string `json:"STATUS"`
	ID                    string `json:"id"`
	Error                 string `json:"error"`
}

func (p callbackPayload) validate() []FieldError {
	var errs []FieldError
	if p.ExternalTransactionID == "" {
		errs = append(errs, FieldError{Field: "externalTransactionId", Message: "required"})
	}
	if p.Status == "" {
		errs = append(errs, FieldError{Field: "STATUS", Message: "required"})
	}
	return errs
}

var ErrInvalidSignature = &AppError{http.StatusUnauthorized, "INVALID_SIGNATURE", "Callback signature is invalid"}

func (h *CallbackHandler) Receive(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		log.Error("failed to read callback body", "error", err)
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	sig := r.Header.Get("X-Webhook-Signature")
	if !verifyHMAC(body, sig, h.secret) {
		log.Warn("callback signature verification failed")
		RespondAppError(w, ErrInvalidSignature, nil)
		return
	}

	var payload callbackPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Warn("failed to parse callback payload", "error", err)
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := payload.validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	disposition, err := h.reconciler.Apply(r.Context(), service.CallbackInput{
		Reference:  payload.ExternalTransactionID,
		Status:     payload.Status,
		ExternalID: payload.ID,
		Error:      payload.Error,
		Payload:    body,
	})
	if err != nil {
		if errors.Is(err, domain.ErrCallbackConflict) {
			RespondAppError(w, ErrCallbackConflict, map[string]string{"disposition": string(disposition)})
			return
		}
		log.Error("callback reconciliation failed", "error", err, "reference", payload.ExternalTransactionID)
		RespondAppError(w, ErrInternalError, nil)
		return
	}

	switch disposition {
	case domain.CallbackOrphan:
		// Acknowledging an unknown reference with 2xx would stop the
		// aggregator from retrying a callback we may yet learn to handle.
		RespondAppError(w, ErrUnknownReference, nil)
	default:
		RespondSuccess(w, http.StatusOK, map[string]string{"disposition": string(disposition)})
	}
}

func verifyHMAC(body []byte, signature, secret string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
