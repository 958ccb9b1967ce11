package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkash/fkash-backend/internal/config"
	"github.com/fkash/fkash-backend/internal/domain"
	"github.com/fkash/fkash-backend/internal/gateway"
	"github.com/fkash/fkash-backend/internal/ledger"
	"github.com/fkash/fkash-backend/internal/repository"
	"github.com/fkash/fkash-backend/internal/service/transfer"
	"github.com/fkash/fkash-backend/internal/testutil"
)

type stubSettlement struct {
	outcome *gateway.Outcome
}

func (s *stubSettlement) Submit(context.Context, gateway.SubmitRequest) (*gateway.Outcome, error) {
	return s.outcome, nil
}

func setupReconcilerTest(t *testing.T, db *sql.DB, outcome *gateway.Outcome) (*transfer.Service, *Reconciler) {
	t.Helper()

	accounts := repository.NewAccountRepository(db)
	led := ledger.New(accounts, repository.NewLedgerRepository(db))

	transferSvc := transfer.NewService(
		repository.NewTransactionRepository(db),
		accounts,
		repository.NewUserRepository(db),
		repository.NewCardRepository(db),
		led,
		&stubSettlement{outcome: outcome},
		nil,
		db,
		&config.Config{TxMinAmount: 100, TxMaxAmount: 1_000_000},
	)

	reconciler := NewReconciler(
		repository.NewTransactionRepository(db),
		led,
		repository.NewCallbackEventRepository(db),
		nil,
		db,
	)
	return transferSvc, reconciler
}

func callbackPayload(t *testing.T, reference, status string) json.RawMessage {
	t.Helper()
	payload, err := json.Marshal(map[string]string{
		"externalTransactionId": reference,
		"STATUS":                status,
	})
	require.NoError(t, err)
	return payload
}

func TestReconciler_DepositCompleted(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	svc, reconciler := setupReconcilerTest(t, db,
		&gateway.Outcome{Kind: gateway.OutcomeProcessing, ExternalID: "DEX-100"})

	user := testutil.SeedTestUser(t, db, "+221771234567", "Depositor", domain.RoleClient)
	acct := testutil.SeedTestAccount(t, db, user.ID, 0)

	txn, err := svc.CreateMomoDeposit(ctx, transfer.MomoDepositRequest{
		UserID:       user.ID,
		Amount:       25_000,
		OperatorCode: "OM_SN_CASHIN",
		Phone:        "+221771234567",
	})
	require.NoError(t, err)
	require.Equal(t, domain.StatusProcessing, txn.Status)

	disposition, err := reconciler.Apply(ctx, CallbackInput{
		Reference:  txn.Reference,
		Status:     "SUCCESS",
		ExternalID: "DEX-100",
		Payload:    callbackPayload(t, txn.Reference, "SUCCESS"),
	})

	require.NoError(t, err)
	assert.Equal(t, domain.CallbackApplied, disposition)
	assert.Equal(t, int64(25_000), testutil.GetAccountBalance(t, db, acct.ID))
	assert.Equal(t, "completed", testutil.GetTransactionStatus(t, db, txn.Reference))
	assert.Equal(t, 1, testutil.CountCallbackEvents(t, db, txn.Reference))
}

func TestReconciler_DuplicateCallbackCreditsOnce(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	svc, reconciler := setupReconcilerTest(t, db,
		&gateway.Outcome{Kind: gateway.OutcomeProcessing, ExternalID: "DEX-101"})

	user := testutil.SeedTestUser(t, db, "+221771234567", "Depositor", domain.RoleClient)
	acct := testutil.SeedTestAccount(t, db, user.ID, 0)

	txn, err := svc.CreateMomoDeposit(ctx, transfer.MomoDepositRequest{
		UserID:       user.ID,
		Amount:       25_000,
		OperatorCode: "OM_SN_CASHIN",
		Phone:        "+221771234567",
	})
	require.NoError(t, err)

	in := CallbackInput{
		Reference:  txn.Reference,
		Status:     "SUCCESS",
		ExternalID: "DEX-101",
		Payload:    callbackPayload(t, txn.Reference, "SUCCESS"),
	}

	disposition, err := reconciler.Apply(ctx, in)
	require.NoError(t, err)
	require.Equal(t, domain.CallbackApplied, disposition)

	disposition, err = reconciler.Apply(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, domain.CallbackDuplicate, disposition)

	assert.Equal(t, int64(25_000), testutil.GetAccountBalance(t, db, acct.ID), "wallet must be credited exactly once")

	events, err := repository.NewCallbackEventRepository(db).GetByReference(ctx, txn.Reference)
	require.NoError(t, err)
	require.Len(t, events, 2, "both deliveries must be audited")
	assert.Equal(t, domain.CallbackApplied, events[0].Disposition)
	assert.Equal(t, domain.CallbackDuplicate, events[1].Disposition)
}

func TestReconciler_ConcurrentCallbacksCreditOnce(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	svc, reconciler := setupReconcilerTest(t, db,
		&gateway.Outcome{Kind: gateway.OutcomeProcessing, ExternalID: "DEX-102"})

	user := testutil.SeedTestUser(t, db, "+221771234567", "Depositor", domain.RoleClient)
	acct := testutil.SeedTestAccount(t, db, user.ID, 0)

	txn, err := svc.CreateMomoDeposit(ctx, transfer.MomoDepositRequest{
		UserID:       user.ID,
		Amount:       25_000,
		OperatorCode: "OM_SN_CASHIN",
		Phone:        "+221771234567",
	})
	require.NoError(t, err)

	in := CallbackInput{
		Reference:  txn.Reference,
		Status:     "SUCCESS",
		ExternalID: "DEX-102",
		Payload:    callbackPayload(t, txn.Reference, "SUCCESS"),
	}

	var wg sync.WaitGroup
	dispositions := make(chan domain.CallbackDisposition, 2)

	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			disposition, err := reconciler.Apply(ctx, in)
			assert.NoError(t, err)
			dispositions <- disposition
		}()
	}

	wg.Wait()
	close(dispositions)

	var applied, duplicate int
	for d := range dispositions {
		switch d {
		case domain.CallbackApplied:
			applied++
		case domain.CallbackDuplicate:
			duplicate++
		}
	}

	assert.Equal(t, 1, applied, "exactly one callback should apply")
	assert.Equal(t, 1, duplicate, "the loser must observe the settled row")
	assert.Equal(t, int64(25_000), testutil.GetAccountBalance(t, db, acct.ID))
}

func TestReconciler_DepositFailed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	svc, reconciler := setupReconcilerTest(t, db,
		&gateway.Outcome{Kind: gateway.OutcomeProcessing, ExternalID: "DEX-103"})

	user := testutil.SeedTestUser(t, db, "+221771234567", "Depositor", domain.RoleClient)
	acct := testutil.SeedTestAccount(t, db, user.ID, 0)

	txn, err := svc.CreateMomoDeposit(ctx, transfer.MomoDepositRequest{
		UserID:       user.ID,
		Amount:       25_000,
		OperatorCode: "OM_SN_CASHIN",
		Phone:        "+221771234567",
	})
	require.NoError(t, err)

	disposition, err := reconciler.Apply(ctx, CallbackInput{
		Reference: txn.Reference,
		Status:    "FAILED",
		Error:     "collection timed out",
		Payload:   callbackPayload(t, txn.Reference, "FAILED"),
	})

	require.NoError(t, err)
	assert.Equal(t, domain.CallbackApplied, disposition)
	assert.Equal(t, int64(0), testutil.GetAccountBalance(t, db, acct.ID))
	assert.Equal(t, "failed", testutil.GetTransactionStatus(t, db, txn.Reference))
}

func TestReconciler_WithdrawalCompleted(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	svc, reconciler := setupReconcilerTest(t, db,
		&gateway.Outcome{Kind: gateway.OutcomeProcessing, ExternalID: "DEX-200"})

	user := testutil.SeedTestUser(t, db, "+221771234567", "Withdrawer", domain.RoleClient)
	acct := testutil.SeedTestAccount(t, db, user.ID, 50_000)

	txn, err := svc.CreateMomoWithdrawal(ctx, transfer.MomoWithdrawalRequest{
		UserID:       user.ID,
		Amount:       20_000,
		OperatorCode: "WAVE_SN_CASHOUT",
		Phone:        "+221771234567",
	})
	require.NoError(t, err)
	require.Equal(t, int64(30_000), testutil.GetAccountBalance(t, db, acct.ID))

	disposition, err := reconciler.Apply(ctx, CallbackInput{
		Reference:  txn.Reference,
		Status:     "SUCCESS",
		ExternalID: "DEX-200",
		Payload:    callbackPayload(t, txn.Reference, "SUCCESS"),
	})

	require.NoError(t, err)
	assert.Equal(t, domain.CallbackApplied, disposition)
	// The held debit is the payout; completion moves nothing further.
	assert.Equal(t, int64(30_000), testutil.GetAccountBalance(t, db, acct.ID))
	assert.Equal(t, "completed", testutil.GetTransactionStatus(t, db, txn.Reference))
}

func TestReconciler_WithdrawalFailedRefunds(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	svc, reconciler := setupReconcilerTest(t, db,
		&gateway.Outcome{Kind: gateway.OutcomeProcessing, ExternalID: "DEX-201"})

	user := testutil.SeedTestUser(t, db, "+221771234567", "Withdrawer", domain.RoleClient)
	acct := testutil.SeedTestAccount(t, db, user.ID, 50_000)

	txn, err := svc.CreateMomoWithdrawal(ctx, transfer.MomoWithdrawalRequest{
		UserID:       user.ID,
		Amount:       20_000,
		OperatorCode: "WAVE_SN_CASHOUT",
		Phone:        "+221771234567",
	})
	require.NoError(t, err)
	require.Equal(t, int64(30_000), testutil.GetAccountBalance(t, db, acct.ID))

	disposition, err := reconciler.Apply(ctx, CallbackInput{
		Reference: txn.Reference,
		Status:    "FAILED",
		Error:     "payout refused",
		Payload:   callbackPayload(t, txn.Reference, "FAILED"),
	})

	require.NoError(t, err)
	assert.Equal(t, domain.CallbackApplied, disposition)
	assert.Equal(t, int64(50_000), testutil.GetAccountBalance(t, db, acct.ID), "held debit must be refunded")
	assert.Equal(t, "failed", testutil.GetTransactionStatus(t, db, txn.Reference))
}

func TestReconciler_ConflictRejected(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	svc, reconciler := setupReconcilerTest(t, db,
		&gateway.Outcome{Kind: gateway.OutcomeAccepted, ExternalID: "DEX-202"})

	user := testutil.SeedTestUser(t, db, "+221771234567", "Withdrawer", domain.RoleClient)
	acct := testutil.SeedTestAccount(t, db, user.ID, 50_000)

	txn, err := svc.CreateMomoWithdrawal(ctx, transfer.MomoWithdrawalRequest{
		UserID:       user.ID,
		Amount:       20_000,
		OperatorCode: "WAVE_SN_CASHOUT",
		Phone:        "+221771234567",
	})
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, txn.Status)

	disposition, err := reconciler.Apply(ctx, CallbackInput{
		Reference: txn.Reference,
		Status:    "FAILED",
		Error:     "late refusal",
		Payload:   callbackPayload(t, txn.Reference, "FAILED"),
	})

	require.ErrorIs(t, err, domain.ErrCallbackConflict)
	assert.Equal(t, domain.CallbackConflict, disposition)
	assert.Equal(t, int64(30_000), testutil.GetAccountBalance(t, db, acct.ID), "settled withdrawal must not be refunded")
	assert.Equal(t, "completed", testutil.GetTransactionStatus(t, db, txn.Reference))
	assert.Equal(t, 1, testutil.CountCallbackEvents(t, db, txn.Reference))
}

func TestReconciler_OrphanReference(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	_, reconciler := setupReconcilerTest(t, db, nil)

	disposition, err := reconciler.Apply(ctx, CallbackInput{
		Reference: "FKASH-2024-01-01-000019999",
		Status:    "SUCCESS",
		Payload:   callbackPayload(t, "FKASH-2024-01-01-000019999", "SUCCESS"),
	})

	require.NoError(t, err)
	assert.Equal(t, domain.CallbackOrphan, disposition)
	assert.Equal(t, 1, testutil.CountCallbackEvents(t, db, "FKASH-2024-01-01-000019999"))
}

func TestReconciler_NonMomoRejected(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	svc, reconciler := setupReconcilerTest(t, db, nil)

	sender := testutil.SeedTestUser(t, db, "+221770000001", "Sender", domain.RoleClient)
	receiver := testutil.SeedTestUser(t, db, "+221770000002", "Receiver", domain.RoleClient)
	testutil.SeedTestAccount(t, db, sender.ID, 10_000)
	testutil.SeedTestAccount(t, db, receiver.ID, 0)

	txn, err := svc.CreateTransfer(ctx, transfer.TransferRequest{
		SenderUserID:  sender.ID,
		ReceiverPhone: "+221770000002",
		Amount:        3_000,
	})
	require.NoError(t, err)

	disposition, err := reconciler.Apply(ctx, CallbackInput{
		Reference: txn.Reference,
		Status:    "SUCCESS",
		Payload:   callbackPayload(t, txn.Reference, "SUCCESS"),
	})

	require.ErrorIs(t, err, domain.ErrCallbackConflict)
	assert.Equal(t, domain.CallbackConflict, disposition)
	assert.Equal(t, "completed", testutil.GetTransactionStatus(t, db, txn.Reference))
}
