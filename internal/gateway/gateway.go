// Package gateway submits mobile-money settlements to the Dexchange
// aggregator and polls their status.
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

	"github.com/fkash/fkash-backend/internal/domain"
	"github.com/fkash/fkash-backend/internal/logging"
	"github.com/fkash/fkash-backend/internal/metrics"
)

// OutcomeKind classifies what the aggregator said about a submission.
type OutcomeKind string

const (
	OutcomeAccepted         OutcomeKind = "accepted"          // settled synchronously
	OutcomeProcessing       OutcomeKind = "processing"        // accepted, completion arrives by callback
	OutcomeRejected         OutcomeKind = "rejected"          // definitive refusal, never retried
	OutcomeTransientFailure OutcomeKind = "transient_failure" // transport failure, retries exhausted
)

// Outcome is the result of a settlement submission. ExternalID is set for
// accepted and processing outcomes, Reason for rejected and transient ones.
type Outcome struct {
	Kind       OutcomeKind
	ExternalID string
	Reason     string
}

type Config struct {
	BaseURL     string
	APIKey      string
	CallbackURL string
	SuccessURL  string
	FailureURL  string
	TimeoutS    int
	MaxAttempts int
	MaxAmount   int64
}

type Client struct {
	baseURL     string
	apiKey      string
	callbackURL string
	successURL  string
	failureURL  string
	maxAttempts int
	maxAmount   int64
	httpClient  *http.Client
	metrics     *metrics.Metrics
}

func NewClient(cfg Config, m *metrics.Metrics) *Client {
	// A misconfigured attempt count must not skip the loop entirely.
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		callbackURL: cfg.CallbackURL,
		successURL:  cfg.SuccessURL,
		failureURL:  cfg.FailureURL,
		maxAttempts: cfg.MaxAttempts,
		maxAmount:   cfg.MaxAmount,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutS) * time.Second,
		},
		metrics: m,
	}
}

type SubmitRequest struct {
	Reference    string
	OperatorCode string
	Amount       int64
	Phone        string
}

type initPayload struct {
	ExternalTransactionID string `json:"externalTransactionId"`
	ServiceCode           string `json:"serviceCode"`
	Amount                int64  `json:"amount"`
	Number                string `json:"number"`
	CallbackURL           string `json:"callBackURL"`
	SuccessURL            string `json:"successUrl"`
	FailureURL            string `json:"failureUrl"`
}

type transactionEnvelope struct {
	Message     string `json:"message"`
	Transaction struct {
		TransactionID string `json:"transactionId"`
		Status        string `json:"status"`
		Success       bool   `json:"success"`
	} `json:"transaction"`
}

// Submit validates the request against the operator catalog and amount
// bounds, then posts it to the aggregator. Transport failures (connection
// errors, timeouts, non-2xx, malformed bodies) are retried up to the attempt
// bound. A definitive rejection is returned on the spot and never retried:
// resubmitting a refused payment risks settling it twice.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (*Outcome, error) {
	log := logging.FromContext(ctx)

	if _, ok := domain.MomoServiceByCode(req.OperatorCode); !ok {
		return nil, fmt.Errorf("Submit: %q: %w", req.OperatorCode, domain.ErrUnknownOperator)
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("Submit: %w", domain.ErrInvalidAmount)
	}
	if req.Amount > c.maxAmount {
		return nil, fmt.Errorf("Submit: %w", domain.ErrLimitExceeded)
	}

	payload := initPayload{
		ExternalTransactionID: req.Reference,
		ServiceCode:           req.OperatorCode,
		Amount:                req.Amount,
		Number:                strings.TrimPrefix(req.Phone, "+221"),
		CallbackURL:           c.callbackURL,
		SuccessURL:            c.successURL,
		FailureURL:            c.failureURL,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("Submit: marshal: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		start := time.Now()
		outcome, err := c.attemptInit(ctx, body)
		if err == nil {
			c.metrics.ObserveGatewayAttempt(string(outcome.Kind), time.Since(start))
			log.Info("settlement submitted",
				"reference", req.Reference,
				"outcome", string(outcome.Kind),
				"attempt", attempt,
			)
			return outcome, nil
		}
		c.metrics.ObserveGatewayAttempt("transport_error", time.Since(start))
		lastErr = err
		log.Warn("settlement attempt failed",
			"reference", req.Reference,
			"attempt", attempt,
			"max_attempts", c.maxAttempts,
			"error", err,
		)
		if ctx.Err() != nil {
			break
		}
	}

	return &Outcome{Kind: OutcomeTransientFailure, Reason: lastErr.Error()}, nil
}

// attemptInit performs one round-trip. Any returned error is transport-level
// and eligible for retry; rejections come back as outcomes.
func (c *Client) attemptInit(ctx context.Context, body []byte) (*Outcome, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/transaction/init", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var envelope transactionEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if !envelope.Transaction.Success {
		reason := envelope.Message
		if reason == "" {
			reason = "rejected by operator"
		}
		return &Outcome{Kind: OutcomeRejected, Reason: reason}, nil
	}
	if strings.EqualFold(envelope.Transaction.Status, "SUCCESS") {
		return &Outcome{Kind: OutcomeAccepted, ExternalID: envelope.Transaction.TransactionID}, nil
	}
	return &Outcome{Kind: OutcomeProcessing, ExternalID: envelope.Transaction.TransactionID}, nil
}

// StatusResult is the aggregator's current view of a submitted settlement.
// Status carries the operator's raw value; callers normalize it.
type StatusResult struct {
	ExternalID string
	Status     string
}

// GetStatus polls the aggregator for a settlement by its operator id. Single
// attempt: the poller that drives this runs on a schedule and simply tries
// again next cycle.
func (c *Client) GetStatus(ctx context.Context, externalID string) (*StatusResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/transaction/status/"+externalID, nil)
	if err != nil {
		return nil, fmt.Errorf("GetStatus: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("GetStatus: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("GetStatus: status %d: %w", resp.StatusCode, domain.ErrGatewayUnavailable)
	}

	var envelope transactionEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("GetStatus: decode: %w", err)
	}
	return &StatusResult{
		ExternalID: envelope.Transaction.TransactionID,
		Status:     envelope.Transaction.Status,
	}, nil
}
