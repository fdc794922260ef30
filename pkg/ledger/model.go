package ledger

import (
	"fmt"
	"regexp"
	"time"

	uuid "github.com/satori/go.uuid"
	"github.com/shopspring/decimal"
)

// TransactionType is a kind of a financial operation
type TransactionType string

const (
	// TransactionTypeDeposit is a type of deposit transactions
	TransactionTypeDeposit TransactionType = "deposit"

	// TransactionTypeWithdraw is a type of withdraw transactions
	TransactionTypeWithdraw TransactionType = "withdraw"

	// TransactionTypeTransfer is a type of transfer transactions
	TransactionTypeTransfer TransactionType = "transfer"
)

// Account is a bank account record
type Account struct {
	ID            string
	AccountNumber string
	Name          string
	PIN           string
	Balance       decimal.Decimal
}

// MaskedNumber returns the account number with all but the last 4 digits masked
func (a *Account) MaskedNumber() string {
	if len(a.AccountNumber) < 4 {
		return a.AccountNumber
	}
	return "XXXX XXXX " + a.AccountNumber[len(a.AccountNumber)-4:]
}

// Transaction is a single committed financial operation.
// Balance is a snapshot of the acting account balance right after the
// operation has been committed, it is never recalculated.
type Transaction struct {
	ID          string
	Type        TransactionType
	Amount      decimal.Decimal
	Date        time.Time
	FromAccount string
	ToAccount   string
	Balance     decimal.Decimal
}

var pinPattern = regexp.MustCompile(`^\d{4}$`)

// ValidPIN tells if a given pin is a well formed 4 digit pin
func ValidPIN(pin string) bool {
	return pinPattern.MatchString(pin)
}

func newTransactionID(now time.Time) string {
	return fmt.Sprintf("TXN%v-%v", now.UnixNano()/int64(time.Millisecond), uuid.NewV4())
}
