package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fkash/fkash-backend/internal/domain"
	"github.com/fkash/fkash-backend/internal/logging"
	"github.com/fkash/fkash-backend/internal/metrics"
)

type rcTransactionRepo interface {
	GetByReferenceForUpdate(ctx context.Context, tx *sql.Tx, reference string) (*domain.Transaction, error)
	MarkCompleted(ctx context.Context, tx *sql.Tx, id uuid.UUID, externalRef *string) error
	MarkFailed(ctx context.Context, tx *sql.Tx, id uuid.UUID, errorMessage string, externalRef *string) error
}

type rcLedger interface {
	Credit(ctx context.Context, tx *sql.Tx, transactionID, id uuid.UUID, amount int64) error
}

type rcCallbackEventRepo interface {
	Create(ctx context.Context, event *domain.CallbackEvent) error
}

// Reconciler applies operator notifications to momo transactions. Every
// notification lands exactly once: the transaction row is locked while the
// callback is judged, a repeat of a settled outcome is a no-op, and a
// contradiction of one is refused. Both the HTTP callback endpoint and the
// status poller feed it.
type Reconciler struct {
	transactions rcTransactionRepo
	ledger       rcLedger
	events       rcCallbackEventRepo
	metrics      *metrics.Metrics
	db           *sql.DB
}

func NewReconciler(
	transactions rcTransactionRepo,
	ledger rcLedger,
	events rcCallbackEventRepo,
	m *metrics.Metrics,
	db *sql.DB,
) *Reconciler {
	return &Reconciler{
		transactions: transactions,
		ledger:       ledger,
		events:       events,
		metrics:      m,
		db:           db,
	}
}

// CallbackInput is one operator notification, already authenticated and
// decoded by the transport.
type CallbackInput struct {
	Reference  string          // our reference, echoed back by the operator
	Status     string          // operator's raw status word
	ExternalID string          // operator's own transaction id
	Error      string          // operator's failure explanation, if any
	Payload    json.RawMessage // raw body, kept for the audit trail
}

// Apply reconciles one notification and reports what was done with it. The
// wallet mutation and the status transition commit before Apply returns, so
// an acknowledged callback is never lost; the audit row is written after,
// best effort.
func (r *Reconciler) Apply(ctx context.Context, in CallbackInput) (domain.CallbackDisposition, error) {
	disposition, err := r.reconcile(ctx, in)
	if disposition != "" {
		r.audit(ctx, in, disposition)
		r.metrics.ObserveCallback(disposition)
	}
	return disposition, err
}

func (r *Reconciler) reconcile(ctx context.Context, in CallbackInput) (domain.CallbackDisposition, error) {
	log := logging.FromContext(ctx)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("reconcile: begin tx: %w", err)
	}
	defer tx.Rollback()

	txn, err := r.transactions.GetByReferenceForUpdate(ctx, tx, in.Reference)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Warn("callback for unknown reference", "reference", in.Reference)
			return domain.CallbackOrphan, nil
		}
		return "", fmt.Errorf("reconcile: %w", err)
	}

	if !txn.Kind.IsMomo() {
		log.Error("callback for non-momo transaction",
			"reference", in.Reference,
			"kind", string(txn.Kind),
		)
		return domain.CallbackConflict, fmt.Errorf("reconcile: kind %s: %w", txn.Kind, domain.ErrCallbackConflict)
	}

	want := domain.StatusFailed
	if strings.EqualFold(in.Status, "SUCCESS") {
		want = domain.StatusCompleted
	}

	if txn.Status.IsTerminal() {
		if txn.Status == want {
			log.Info("duplicate callback ignored",
				"reference", in.Reference,
				"status", string(txn.Status),
			)
			return domain.CallbackDuplicate, nil
		}
		log.Error("callback contradicts settled transaction",
			"reference", in.Reference,
			"recorded", string(txn.Status),
			"callback", string(want),
		)
		return domain.CallbackConflict, fmt.Errorf("reconcile: %w", domain.ErrCallbackConflict)
	}

	externalRef := nilIfEmpty(in.ExternalID)

	if want == domain.StatusCompleted {
		err = r.applyCompleted(ctx, tx, txn, externalRef)
	} else {
		err = r.applyFailed(ctx, tx, txn, in.Error, externalRef)
	}
	if err != nil {
		return "", fmt.Errorf("reconcile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("reconcile: commit: %w", err)
	}

	log.Info("callback applied",
		"reference", in.Reference,
		"kind", string(txn.Kind),
		"status", string(want),
	)
	return domain.CallbackApplied, nil
}

// applyCompleted settles a confirmed collection or payout. A deposit credits
// the wallet here and nowhere else; a withdrawal already holds its debit, so
// only the status moves.
func (r *Reconciler) applyCompleted(ctx context.Context, tx *sql.Tx, txn *domain.Transaction, externalRef *string) error {
	if txn.Kind == domain.KindDepositMomo {
		if err := r.ledger.Credit(ctx, tx, txn.ID, *txn.ReceiverAccountID, txn.Amount); err != nil {
			return fmt.Errorf("applyCompleted: credit: %w", err)
		}
	}
	if err := r.transactions.MarkCompleted(ctx, tx, txn.ID, externalRef); err != nil {
		return fmt.Errorf("applyCompleted: %w", err)
	}
	return nil
}

// applyFailed settles a refused collection or payout. A failed withdrawal
// refunds its held debit in the same transaction that flips the status; a
// failed deposit never moved money.
func (r *Reconciler) applyFailed(ctx context.Context, tx *sql.Tx, txn *domain.Transaction, reason string, externalRef *string) error {
	if reason == "" {
		reason = "failed by operator"
	}
	if err := r.transactions.MarkFailed(ctx, tx, txn.ID, reason, externalRef); err != nil {
		return fmt.Errorf("applyFailed: %w", err)
	}
	if txn.Kind == domain.KindWithdrawMomo {
		if err := r.ledger.Credit(ctx, tx, txn.ID, *txn.SenderAccountID, txn.Amount); err != nil {
			return fmt.Errorf("applyFailed: refund: %w", err)
		}
	}
	return nil
}

func (r *Reconciler) audit(ctx context.Context, in CallbackInput, disposition domain.CallbackDisposition) {
	payload := in.Payload
	if len(payload) == 0 {
		// The audit column rejects NULL; poller-synthesized inputs carry no body.
		payload = json.RawMessage(`{}`)
	}
	event := &domain.CallbackEvent{
		ID:          uuid.New(),
		Reference:   in.Reference,
		Payload:     payload,
		Disposition: disposition,
		ReceivedAt:  time.Now().UTC(),
	}
	if err := r.events.Create(ctx, event); err != nil {
		logging.FromContext(ctx).Error("recording callback event failed",
			"reference", in.Reference,
			"error", err,
		)
	}
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
