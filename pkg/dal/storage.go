package dal

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// ErrAccountNotFound is returned when a requested account record does not exist
var ErrAccountNotFound = errors.New("account not found")

// AccountDTO is a DTO to store account records
type AccountDTO struct {
	ID            string
	AccountNumber string
	Name          string
	PIN           string
	Balance       decimal.Decimal
}

// TransactionDTO is a DTO to store transaction records
type TransactionDTO struct {
	ID          string
	Type        string
	Amount      decimal.Decimal
	Date        time.Time
	FromAccount string
	ToAccount   string
	Balance     decimal.Decimal
}

// Storage is a persistance layer
type Storage interface {
	Setup(ctx context.Context) error

	LoadAccounts(ctx context.Context) ([]AccountDTO, error)
	SaveAccounts(ctx context.Context, accounts []AccountDTO) error
	GetAccountByID(ctx context.Context, id string) (*AccountDTO, error)
	GetAccountByNumber(ctx context.Context, accountNumber string) (*AccountDTO, error)

	LoadTransactions(ctx context.Context) ([]TransactionDTO, error)
	GetTransactionsByAccount(ctx context.Context, accountNumber string) ([]TransactionDTO, error)
	AppendTransaction(ctx context.Context, trx *TransactionDTO) error

	// CommitOperation persists updated account records and an optional
	// transaction record within a single db transaction. Either everything
	// is persisted or nothing is.
	CommitOperation(ctx context.Context, accounts []AccountDTO, trx *TransactionDTO) error

	GetSessionAccountID(ctx context.Context) (string, error)
	SaveSession(ctx context.Context, accountID string) error
	ClearSession(ctx context.Context) error
}
