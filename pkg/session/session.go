package session

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/evgeny-myasishchev/atm.ledger-core/pkg/dal"
	"github.com/evgeny-myasishchev/atm.ledger-core/pkg/ledger"
	"github.com/evgeny-myasishchev/atm.ledger-core/pkg/lib-core-golang/diag"
)

var logger = diag.CreateLogger()

// Manager tracks at most one authenticated account per terminal instance
// and mediates between a caller and the ledger service. A session survives
// a restart of the same instance via a durable marker that holds the
// account id only, never the PIN.
type Manager interface {
	Login(ctx context.Context, accountNumber string, pin string) (*ledger.Account, error)
	Logout(ctx context.Context) error

	// Current returns the account of an active session or nil if there is none
	Current(ctx context.Context) (*ledger.Account, error)

	Deposit(ctx context.Context, amount decimal.Decimal) (*ledger.Transaction, error)
	Withdraw(ctx context.Context, amount decimal.Decimal) (*ledger.Transaction, error)
	Transfer(ctx context.Context, toAccountNumber string, amount decimal.Decimal) (*ledger.Transaction, error)
	ChangePin(ctx context.Context, oldPin string, newPin string) error
	ListTransactions(ctx context.Context) ([]ledger.Transaction, error)
}

type manager struct {
	mu        sync.Mutex
	ledgerSvc ledger.Service
	storage   dal.Storage

	restored  bool
	currentID string
}

// currentAccountID resolves the active session account id, restoring a
// prior session from the durable marker on first use
func (m *manager) currentAccountID(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.restored {
		accountID, err := m.storage.GetSessionAccountID(ctx)
		if err != nil {
			return "", ledger.NewStorageError(err, "Failed to restore session")
		}
		if accountID != "" {
			logger.Debug(ctx, "Restored session of account %v", accountID)
		}
		m.currentID = accountID
		m.restored = true
	}
	return m.currentID, nil
}

func (m *manager) requireSession(ctx context.Context) (string, error) {
	accountID, err := m.currentAccountID(ctx)
	if err != nil {
		return "", err
	}
	if accountID == "" {
		return "", ledger.NewError(ledger.KindNotAuthenticated, "No active session")
	}
	return accountID, nil
}

func (m *manager) Login(ctx context.Context, accountNumber string, pin string) (*ledger.Account, error) {
	account, err := m.ledgerSvc.Authenticate(ctx, accountNumber, pin)
	if err != nil {
		// failed login leaves any current session untouched
		return nil, err
	}
	if err := m.storage.SaveSession(ctx, account.ID); err != nil {
		return nil, ledger.NewStorageError(err, "Failed to persist session")
	}
	m.mu.Lock()
	m.currentID = account.ID
	m.restored = true
	m.mu.Unlock()
	logger.Info(ctx, "Started session of account %v", account.MaskedNumber())
	return account, nil
}

func (m *manager) Logout(ctx context.Context) error {
	if err := m.storage.ClearSession(ctx); err != nil {
		return ledger.NewStorageError(err, "Failed to clear session")
	}
	m.mu.Lock()
	m.currentID = ""
	m.restored = true
	m.mu.Unlock()
	logger.Info(ctx, "Session closed")
	return nil
}

func (m *manager) Current(ctx context.Context) (*ledger.Account, error) {
	accountID, err := m.currentAccountID(ctx)
	if err != nil {
		return nil, err
	}
	if accountID == "" {
		return nil, nil
	}
	account, err := m.ledgerSvc.GetAccount(ctx, accountID)
	if err != nil {
		if ledger.IsKind(err, ledger.KindNotAuthenticated) {
			// session points on an account that no longer exists
			logger.Warn(ctx, "Dropping stale session of account %v", accountID)
			return nil, m.Logout(ctx)
		}
		return nil, err
	}
	return account, nil
}

func (m *manager) Deposit(ctx context.Context, amount decimal.Decimal) (*ledger.Transaction, error) {
	accountID, err := m.requireSession(ctx)
	if err != nil {
		return nil, err
	}
	return m.ledgerSvc.Deposit(ctx, accountID, amount)
}

func (m *manager) Withdraw(ctx context.Context, amount decimal.Decimal) (*ledger.Transaction, error) {
	accountID, err := m.requireSession(ctx)
	if err != nil {
		return nil, err
	}
	return m.ledgerSvc.Withdraw(ctx, accountID, amount)
}

func (m *manager) Transfer(ctx context.Context, toAccountNumber string, amount decimal.Decimal) (*ledger.Transaction, error) {
	accountID, err := m.requireSession(ctx)
	if err != nil {
		return nil, err
	}
	return m.ledgerSvc.Transfer(ctx, accountID, toAccountNumber, amount)
}

func (m *manager) ChangePin(ctx context.Context, oldPin string, newPin string) error {
	accountID, err := m.requireSession(ctx)
	if err != nil {
		return err
	}
	_, err = m.ledgerSvc.ChangePin(ctx, accountID, oldPin, newPin)
	return err
}

func (m *manager) ListTransactions(ctx context.Context) ([]ledger.Transaction, error) {
	accountID, err := m.requireSession(ctx)
	if err != nil {
		return nil, err
	}
	account, err := m.ledgerSvc.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return m.ledgerSvc.ListTransactions(ctx, account)
}

// ManagerOpt is an option of a session manager
type ManagerOpt func(*manager)

// WithLedger will init the manager with a ledger service
func WithLedger(svc ledger.Service) ManagerOpt {
	return func(m *manager) {
		m.ledgerSvc = svc
	}
}

// WithStorage will init the manager with storage
func WithStorage(storage dal.Storage) ManagerOpt {
	return func(m *manager) {
		m.storage = storage
	}
}

// NewManager returns an instance of a session manager
func NewManager(opts ...ManagerOpt) Manager {
	m := &manager{}
	for _, opt := range opts {
		opt(m)
	}
	return Manager(m)
}
