// Command mock-operator imitates the Dexchange aggregator for local
// development: it accepts settlement submissions, answers status polls, and
// fires a signed callback after a short delay.
//
// Outcomes are scripted by the wallet number so tests are deterministic:
// numbers ending in 00 are rejected outright, numbers ending in 99 are
// accepted and then fail in the callback, everything else succeeds.
package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fkash/fkash-backend/internal/logging"
)

type initRequest struct {
	ExternalTransactionID string `json:"externalTransactionId"`
	ServiceCode           string `json:"serviceCode"`
	Amount                int64  `json:"amount"`
	Number                string `json:"number"`
	CallbackURL           string `json:"callBackURL"`
}

type transactionBody struct {
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
	Success       bool   `json:"success"`
}

type envelope struct {
	Message     string          `json:"message"`
	Transaction transactionBody `json:"transaction"`
}

type callbackBody struct {
	ExternalTransactionID string `json:"externalTransactionId"`
	Status                string `json:"STATUS"`
	ID                    string `json:"id"`
	Error                 string `json:"error,omitempty"`
}

type operator struct {
	secret        string
	callbackDelay time.Duration
	client        *http.Client

	mu       sync.Mutex
	statuses map[string]string // mock transaction id -> current status
}

func main() {
	logging.Init("mock-operator", "info", os.Getenv("APP_ENV"))

	op := &operator{
		secret:        os.Getenv("CALLBACK_SECRET"),
		callbackDelay: envDuration("MOCK_CALLBACK_DELAY_MS", 2000),
		client:        &http.Client{Timeout: 10 * time.Second},
		statuses:      make(map[string]string),
	}
	if op.secret == "" {
		slog.Warn("CALLBACK_SECRET not set, callbacks will be rejected by the API")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /transaction/init", op.handleInit)
	mux.HandleFunc("GET /transaction/status/{id}", op.handleStatus)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
			slog.Error("failed to write health response", "error", err)
		}
	})

	addr := ":" + envString("PORT", "8081")
	slog.Info("mock operator started", "addr", addr, "callback_delay", op.callbackDelay)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func (op *operator) handleInit(w http.ResponseWriter, r *http.Request) {
	var req initRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Message: "malformed request"})
		return
	}
	if req.ExternalTransactionID == "" || req.ServiceCode == "" || req.Amount <= 0 {
		writeJSON(w, http.StatusUnprocessableEntity, envelope{
			Message:     "missing required fields",
			Transaction: transactionBody{Success: false},
		})
		return
	}

	if strings.HasSuffix(req.Number, "00") {
		slog.Info("rejecting settlement", "reference", req.ExternalTransactionID, "number", req.Number)
		writeJSON(w, http.StatusOK, envelope{
			Message:     "insufficient wallet balance",
			Transaction: transactionBody{Status: "FAILED", Success: false},
		})
		return
	}

	id := "DEX-" + uuid.NewString()
	op.setStatus(id, "PENDING")

	finalStatus := "SUCCESS"
	var finalError string
	if strings.HasSuffix(req.Number, "99") {
		finalStatus = "FAILED"
		finalError = "wallet provider timeout"
	}

	slog.Info("settlement accepted",
		"reference", req.ExternalTransactionID,
		"transaction_id", id,
		"final_status", finalStatus,
	)

	if req.CallbackURL != "" {
		go op.fireCallback(req.CallbackURL, callbackBody{
			ExternalTransactionID: req.ExternalTransactionID,
			Status:                finalStatus,
			ID:                    id,
			Error:                 finalError,
		})
	} else {
		// No callback endpoint given; the status poll is the only way out.
		op.scheduleStatus(id, finalStatus)
	}

	writeJSON(w, http.StatusOK, envelope{
		Message:     "transaction initialized",
		Transaction: transactionBody{TransactionID: id, Status: "PENDING", Success: true},
	})
}

func (op *operator) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	op.mu.Lock()
	status, ok := op.statuses[id]
	op.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, envelope{Message: "unknown transaction"})
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		Message:     "transaction status",
		Transaction: transactionBody{TransactionID: id, Status: status, Success: true},
	})
}

// fireCallback waits out the configured delay, flips the stored status, and
// posts the signed callback. Failures are logged and abandoned; the real
// aggregator retries, the mock leaves recovery to the status poller.
func (op *operator) fireCallback(url string, body callbackBody) {
	time.Sleep(op.callbackDelay)
	op.setStatus(body.ID, body.Status)

	payload, err := json.Marshal(body)
	if err != nil {
		slog.Error("failed to marshal callback", "error", err)
		return
	}

	mac := hmac.New(sha256.New, []byte(op.secret))
	mac.Write(payload)
	signature := hex.EncodeToString(mac.Sum(nil))

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		slog.Error("failed to build callback request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", signature)

	resp, err := op.client.Do(req)
	if err != nil {
		slog.Error("callback delivery failed", "url", url, "error", err)
		return
	}
	defer resp.Body.Close()

	slog.Info("callback delivered",
		"reference", body.ExternalTransactionID,
		"status", body.Status,
		"response_code", resp.StatusCode,
	)
}

func (op *operator) scheduleStatus(id, status string) {
	go func() {
		time.Sleep(op.callbackDelay)
		op.setStatus(id, status)
	}()
}

func (op *operator) setStatus(id, status string) {
	op.mu.Lock()
	op.statuses[id] = status
	op.mu.Unlock()
}

func writeJSON(w http.ResponseWriter, code int, v envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallbackMS int) time.Duration {
	if v := os.Getenv(key); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms >= 0 {
			return time.Duration(ms) * time.Millisecond
		}
		slog.Warn(fmt.Sprintf("ignoring invalid %s", key), "value", v)
	}
	return time.Duration(fallbackMS) * time.Millisecond
}
