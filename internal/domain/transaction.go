package domain

import (
	"time"

	"github.com/google/uuid"
)

type TransactionKind string

const (
	KindDepositCash  TransactionKind = "deposit_cash"
	KindDepositMomo  TransactionKind = "deposit_momo"
	KindWithdrawCash TransactionKind = "withdraw_cash"
	KindWithdrawMomo TransactionKind = "withdraw_momo"
	KindPayment      TransactionKind = "payment"
	KindTransfer     TransactionKind = "transfer"
)

func (k TransactionKind) IsValid() bool {
	switch k {
	case KindDepositCash, KindDepositMomo, KindWithdrawCash,
		KindWithdrawMomo, KindPayment, KindTransfer:
		return true
	}
	return false
}

// IsMomo reports whether the kind settles through a mobile-money operator
// rather than synchronously between two internal accounts.
func (k TransactionKind) IsMomo() bool {
	return k == KindDepositMomo || k == KindWithdrawMomo
}

type TransactionStatus string

const (
	StatusPending    TransactionStatus = "pending"
	StatusProcessing TransactionStatus = "processing"
	StatusCompleted  TransactionStatus = "completed"
	StatusFailed     TransactionStatus = "failed"
)

func (s TransactionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Transaction is the single record shape for every kind. Internal kinds set
// both account ids; deposit_momo sets the receiver only and withdraw_momo the
// sender only, with the external party carried as a phone number. Reference,
// kind, amount, parties and created_at never change after insert; only the
// status and the operator-populated fields do.
type Transaction struct {
	ID                uuid.UUID
	Reference         string
	RefDate           time.Time
	RefSeq            int
	Kind              TransactionKind
	Status            TransactionStatus
	Amount            int64
	SenderAccountID   *uuid.UUID
	ReceiverAccountID *uuid.UUID
	PhoneNumber       *string
	OperatorCode      *string
	ExternalReference *string
	ErrorMessage      *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	CompletedAt       *time.Time
}
