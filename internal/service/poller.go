package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/fkash/fkash-backend/internal/domain"
	"github.com/fkash/fkash-backend/internal/gateway"
)

type pollTransactionRepo interface {
	ListStuckProcessing(ctx context.Context, cutoff time.Time, limit int) ([]domain.Transaction, error)
}

type statusGateway interface {
	GetStatus(ctx context.Context, externalID string) (*gateway.StatusResult, error)
}

type callbackApplier interface {
	Apply(ctx context.Context, in CallbackInput) (domain.CallbackDisposition, error)
}

// StatusPoller sweeps transactions that sat in processing past the stuck
// threshold and asks the aggregator what became of them. Lost callbacks are
// the usual cause; the poller feeds the recovered answer through the same
// reconciler, so the two paths cannot disagree on what a settlement does.
type StatusPoller struct {
	transactions pollTransactionRepo
	gateway      statusGateway
	reconciler   callbackApplier
	logger       *slog.Logger
	interval     time.Duration
	stuckAfter   time.Duration
	batchSize    int
}

func NewStatusPoller(
	transactions pollTransactionRepo,
	gw statusGateway,
	reconciler callbackApplier,
	logger *slog.Logger,
	interval time.Duration,
	stuckAfter time.Duration,
	batchSize int,
) *StatusPoller {
	return &StatusPoller{
		transactions: transactions,
		gateway:      gw,
		reconciler:   reconciler,
		logger:       logger,
		interval:     interval,
		stuckAfter:   stuckAfter,
		batchSize:    batchSize,
	}
}

func (p *StatusPoller) Start(ctx context.Context) {
	p.logger.Info("status poller started",
		"interval", p.interval,
		"stuck_after", p.stuckAfter,
	)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("status poller stopped")
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *StatusPoller) poll(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-p.stuckAfter)
	stuck, err := p.transactions.ListStuckProcessing(ctx, cutoff, p.batchSize)
	if err != nil {
		p.logger.Error("listing stuck transactions failed", "error", err)
		return
	}

	for _, txn := range stuck {
		if err := p.recover(ctx, txn); err != nil {
			p.logger.Error("recovering stuck transaction failed",
				"reference", txn.Reference,
				"error", err,
			)
		}
	}
}

func (p *StatusPoller) recover(ctx context.Context, txn domain.Transaction) error {
	if txn.ExternalReference == nil || *txn.ExternalReference == "" {
		// Nothing to poll by; the operator never gave us an id.
		p.logger.Warn("stuck transaction has no operator id", "reference", txn.Reference)
		return nil
	}

	res, err := p.gateway.GetStatus(ctx, *txn.ExternalReference)
	if err != nil {
		return err
	}

	// Only terminal answers are reconciled; anything else means the operator
	// is still working and the next sweep will look again.
	if !strings.EqualFold(res.Status, "SUCCESS") && !strings.EqualFold(res.Status, "FAILED") {
		p.logger.Info("stuck transaction still in flight",
			"reference", txn.Reference,
			"operator_status", res.Status,
		)
		return nil
	}

	payload, err := json.Marshal(map[string]string{
		"source":        "status_poll",
		"status":        res.Status,
		"transactionId": res.ExternalID,
	})
	if err != nil {
		return err
	}

	_, err = p.reconciler.Apply(ctx, CallbackInput{
		Reference:  txn.Reference,
		Status:     res.Status,
		ExternalID: res.ExternalID,
		Payload:    payload,
	})
	return err
}
