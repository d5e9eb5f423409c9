package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind classifies a financial record.
type TransactionKind string

const (
	TxStake      TransactionKind = "STAKE"
	TxWin        TransactionKind = "WIN"
	TxDeposit    TransactionKind = "DEPOSIT"
	TxWithdrawal TransactionKind = "WITHDRAWAL"
)

// Transaction is an immutable financial record. Rows are append-only; nothing
// in the system updates a transaction after creation.
type Transaction struct {
	ID        int64
	UserID    int64
	Amount    decimal.Decimal
	Kind      TransactionKind
	CreatedAt time.Time
}
