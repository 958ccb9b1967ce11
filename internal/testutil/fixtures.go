package testutil

import (
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/fkash/fkash-backend/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// TestPIN is the plaintext PIN every seeded user authenticates with.
const TestPIN = "1234"

func SeedTestUser(t *testing.T, db *sql.DB, phone, name string, role domain.UserRole) *domain.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(TestPIN), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash pin: %v", err)
	}
	u := &domain.User{
		ID:        uuid.New(),
		Phone:     phone,
		Name:      name,
		PinHash:   string(hash),
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}

	_, err = db.Exec(
		`INSERT INTO users (id, phone, name, pin_hash, role, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Phone, u.Name, u.PinHash, u.Role, u.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed test user %s: %v", phone, err)
	}
	return u
}

func SeedTestAccount(t *testing.T, db *sql.DB, userID uuid.UUID, balance int64) *domain.Account {
	t.Helper()

	now := time.Now().UTC()
	a := &domain.Account{
		ID:        uuid.New(),
		UserID:    userID,
		Balance:   balance,
		Status:    domain.AccountStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := db.Exec(
		`INSERT INTO accounts (id, user_id, balance, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.UserID, a.Balance, a.Status, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("seed test account for user %s: %v", userID, err)
	}
	return a
}

func SeedTestCard(t *testing.T, db *sql.DB, userID uuid.UUID, physicalToken string, locked bool) *domain.NFCCard {
	t.Helper()

	now := time.Now().UTC()
	c := &domain.NFCCard{
		ID:            uuid.New(),
		UserID:        userID,
		PhysicalToken: physicalToken,
		VirtualToken:  uuid.New(),
		Locked:        locked,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	_, err := db.Exec(
		`INSERT INTO nfc_cards (id, user_id, physical_token, virtual_token, locked, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.UserID, c.PhysicalToken, c.VirtualToken, c.Locked, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("seed test card %s: %v", physicalToken, err)
	}
	return c
}

// seedTxnSeq keeps fixture references unique within a test binary.
var seedTxnSeq atomic.Int64

func SeedTestTransaction(t *testing.T, db *sql.DB, kind domain.TransactionKind, status domain.TransactionStatus, amount int64, sender, receiver *uuid.UUID) *domain.Transaction {
	t.Helper()

	seq := int(seedTxnSeq.Add(1))
	now := time.Now().UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	txn := &domain.Transaction{
		ID:                uuid.New(),
		Reference:         fmt.Sprintf("FKASH-%s-%05d%04d", day.Format("2006-01-02"), seq, 1000+seq%9000),
		RefDate:           day,
		RefSeq:            seq,
		Kind:              kind,
		Status:            status,
		Amount:            amount,
		SenderAccountID:   sender,
		ReceiverAccountID: receiver,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	_, err := db.Exec(
		`INSERT INTO transactions (
			id, reference, ref_date, ref_seq, kind, status, amount,
			sender_account_id, receiver_account_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		txn.ID, txn.Reference, txn.RefDate, txn.RefSeq, txn.Kind, txn.Status,
		txn.Amount, txn.SenderAccountID, txn.ReceiverAccountID,
		txn.CreatedAt, txn.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("seed test transaction %s: %v", txn.Reference, err)
	}
	return txn
}

func GetAccountBalance(t *testing.T, db *sql.DB, accountID uuid.UUID) int64 {
	t.Helper()

	var balance int64
	err := db.QueryRow(`SELECT balance FROM accounts WHERE id = $1`, accountID).Scan(&balance)
	if err != nil {
		t.Fatalf("get account balance %s: %v", accountID, err)
	}
	return balance
}

func GetTransactionStatus(t *testing.T, db *sql.DB, reference string) string {
	t.Helper()

	var status string
	err := db.QueryRow(`SELECT status FROM transactions WHERE reference = $1`, reference).Scan(&status)
	if err != nil {
		t.Fatalf("get transaction status %s: %v", reference, err)
	}
	return status
}

func CountCallbackEvents(t *testing.T, db *sql.DB, reference string) int {
	t.Helper()

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM callback_events WHERE reference = $1`, reference).Scan(&count)
	if err != nil {
		t.Fatalf("count callback events for %s: %v", reference, err)
	}
	return count
}
