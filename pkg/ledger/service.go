package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/evgeny-myasishchev/atm.ledger-core/pkg/dal"
	"github.com/evgeny-myasishchev/atm.ledger-core/pkg/lib-core-golang/diag"
)

var logger = diag.CreateLogger()

// NowService provides current time. Exists to let tests mock the clock
type NowService interface {
	Now() time.Time
}

type systemNowService struct{}

func (systemNowService) Now() time.Time {
	return time.Now()
}

// Policy holds per transaction policy limits
type Policy struct {
	// MinorUnit is the smallest granularity deposit/withdraw amounts must align to
	MinorUnit decimal.Decimal

	// WithdrawLimit is a per transaction withdrawal ceiling
	WithdrawLimit decimal.Decimal

	// TransferLimit is a per transaction transfer ceiling
	TransferLimit decimal.Decimal
}

// DefaultPolicy returns standard terminal policy limits
func DefaultPolicy() Policy {
	return Policy{
		MinorUnit:     decimal.NewFromInt(100),
		WithdrawLimit: decimal.NewFromInt(50000),
		TransferLimit: decimal.NewFromInt(100000),
	}
}

// Service is the sole arbiter of account and transaction mutation.
// Every banking invariant is enforced here before any write is committed.
type Service interface {
	Authenticate(ctx context.Context, accountNumber string, pin string) (*Account, error)
	GetAccount(ctx context.Context, accountID string) (*Account, error)
	Deposit(ctx context.Context, accountID string, amount decimal.Decimal) (*Transaction, error)
	Withdraw(ctx context.Context, accountID string, amount decimal.Decimal) (*Transaction, error)
	Transfer(ctx context.Context, accountID string, toAccountNumber string, amount decimal.Decimal) (*Transaction, error)
	ChangePin(ctx context.Context, accountID string, oldPin string, newPin string) (*Account, error)
	ListTransactions(ctx context.Context, account *Account) ([]Transaction, error)
}

type service struct {
	// mu serializes mutating operations so read-validate-mutate-persist
	// sequences never interleave within one process
	mu sync.Mutex

	storage dal.Storage
	nowSvc  NowService
	policy  Policy
}

func accountFromDTO(dto *dal.AccountDTO) *Account {
	return &Account{
		ID:            dto.ID,
		AccountNumber: dto.AccountNumber,
		Name:          dto.Name,
		PIN:           dto.PIN,
		Balance:       dto.Balance,
	}
}

func accountToDTO(account *Account) dal.AccountDTO {
	return dal.AccountDTO{
		ID:            account.ID,
		AccountNumber: account.AccountNumber,
		Name:          account.Name,
		PIN:           account.PIN,
		Balance:       account.Balance,
	}
}

func transactionFromDTO(dto *dal.TransactionDTO) Transaction {
	return Transaction{
		ID:          dto.ID,
		Type:        TransactionType(dto.Type),
		Amount:      dto.Amount,
		Date:        dto.Date,
		FromAccount: dto.FromAccount,
		ToAccount:   dto.ToAccount,
		Balance:     dto.Balance,
	}
}

func transactionToDTO(trx *Transaction) *dal.TransactionDTO {
	return &dal.TransactionDTO{
		ID:          trx.ID,
		Type:        string(trx.Type),
		Amount:      trx.Amount,
		Date:        trx.Date,
		FromAccount: trx.FromAccount,
		ToAccount:   trx.ToAccount,
		Balance:     trx.Balance,
	}
}

func (svc *service) getAccountDTO(ctx context.Context, accountID string) (*dal.AccountDTO, error) {
	account, err := svc.storage.GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.Cause(err) == dal.ErrAccountNotFound {
			return nil, NewError(KindNotAuthenticated, "Account %v does not exist", accountID)
		}
		return nil, NewStorageError(err, "Failed to get account %v", accountID)
	}
	return account, nil
}

func (svc *service) Authenticate(ctx context.Context, accountNumber string, pin string) (*Account, error) {
	logger.Debug(ctx, "Authenticating account %v", accountNumber)
	account, err := svc.storage.GetAccountByNumber(ctx, accountNumber)
	if err != nil {
		if errors.Cause(err) == dal.ErrAccountNotFound {
			return nil, NewError(KindInvalidCredentials, "Invalid account number or PIN")
		}
		return nil, NewStorageError(err, "Failed to lookup account %v", accountNumber)
	}
	if account.PIN != pin {
		return nil, NewError(KindInvalidCredentials, "Invalid account number or PIN")
	}
	return accountFromDTO(account), nil
}

func (svc *service) GetAccount(ctx context.Context, accountID string) (*Account, error) {
	account, err := svc.getAccountDTO(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return accountFromDTO(account), nil
}

// validateCashAmount checks deposit/withdraw amount preconditions.
// Must have no observable side effects.
func (svc *service) validateCashAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return NewError(KindInvalidAmount, "Amount must be positive, got: %v", amount)
	}
	if !amount.Mod(svc.policy.MinorUnit).IsZero() {
		return NewError(KindInvalidAmount, "Amount must be a multiple of %v, got: %v", svc.policy.MinorUnit, amount)
	}
	return nil
}

func (svc *service) Deposit(ctx context.Context, accountID string, amount decimal.Decimal) (*Transaction, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if err := svc.validateCashAmount(amount); err != nil {
		return nil, err
	}
	account, err := svc.getAccountDTO(ctx, accountID)
	if err != nil {
		return nil, err
	}

	account.Balance = account.Balance.Add(amount)
	now := svc.nowSvc.Now()
	trx := &Transaction{
		ID:          newTransactionID(now),
		Type:        TransactionTypeDeposit,
		Amount:      amount,
		Date:        now,
		FromAccount: account.AccountNumber,
		Balance:     account.Balance,
	}
	if err := svc.storage.CommitOperation(ctx, []dal.AccountDTO{*account}, transactionToDTO(trx)); err != nil {
		return nil, NewStorageError(err, "Failed to commit deposit for account %v", accountID)
	}
	logger.WithData(diag.MsgData{"transactionID": trx.ID}).
		Info(ctx, "Deposited %v to account %v", amount, account.AccountNumber)
	return trx, nil
}

func (svc *service) Withdraw(ctx context.Context, accountID string, amount decimal.Decimal) (*Transaction, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if err := svc.validateCashAmount(amount); err != nil {
		return nil, err
	}
	if amount.GreaterThan(svc.policy.WithdrawLimit) {
		return nil, NewError(KindLimitExceeded, "Withdrawal limit is %v per transaction", svc.policy.WithdrawLimit)
	}
	account, err := svc.getAccountDTO(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if amount.GreaterThan(account.Balance) {
		return nil, NewError(KindInsufficientBalance, "Not enough balance to withdraw %v", amount)
	}

	account.Balance = account.Balance.Sub(amount)
	now := svc.nowSvc.Now()
	trx := &Transaction{
		ID:          newTransactionID(now),
		Type:        TransactionTypeWithdraw,
		Amount:      amount,
		Date:        now,
		FromAccount: account.AccountNumber,
		Balance:     account.Balance,
	}
	if err := svc.storage.CommitOperation(ctx, []dal.AccountDTO{*account}, transactionToDTO(trx)); err != nil {
		return nil, NewStorageError(err, "Failed to commit withdrawal for account %v", accountID)
	}
	logger.WithData(diag.MsgData{"transactionID": trx.ID}).
		Info(ctx, "Withdrawn %v from account %v", amount, account.AccountNumber)
	return trx, nil
}

func (svc *service) Transfer(ctx context.Context, accountID string, toAccountNumber string, amount decimal.Decimal) (*Transaction, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if !amount.IsPositive() {
		return nil, NewError(KindInvalidAmount, "Amount must be positive, got: %v", amount)
	}
	if amount.GreaterThan(svc.policy.TransferLimit) {
		return nil, NewError(KindLimitExceeded, "Transfer limit is %v per transaction", svc.policy.TransferLimit)
	}
	sender, err := svc.getAccountDTO(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if sender.AccountNumber == toAccountNumber {
		return nil, NewError(KindSelfTransfer, "Can not transfer to the same account")
	}
	recipient, err := svc.storage.GetAccountByNumber(ctx, toAccountNumber)
	if err != nil {
		if errors.Cause(err) == dal.ErrAccountNotFound {
			return nil, NewError(KindRecipientNotFound, "Recipient account %v does not exist", toAccountNumber)
		}
		return nil, NewStorageError(err, "Failed to lookup recipient account %v", toAccountNumber)
	}
	if amount.GreaterThan(sender.Balance) {
		return nil, NewError(KindInsufficientBalance, "Not enough balance to transfer %v", amount)
	}

	// Debit and credit are committed within a single db transaction
	// together with the sender leg transaction record
	sender.Balance = sender.Balance.Sub(amount)
	recipient.Balance = recipient.Balance.Add(amount)
	now := svc.nowSvc.Now()
	trx := &Transaction{
		ID:          newTransactionID(now),
		Type:        TransactionTypeTransfer,
		Amount:      amount,
		Date:        now,
		FromAccount: sender.AccountNumber,
		ToAccount:   recipient.AccountNumber,
		Balance:     sender.Balance,
	}
	if err := svc.storage.CommitOperation(ctx,
		[]dal.AccountDTO{*sender, *recipient}, transactionToDTO(trx)); err != nil {
		return nil, NewStorageError(err, "Failed to commit transfer from account %v", accountID)
	}
	logger.WithData(diag.MsgData{"transactionID": trx.ID}).
		Info(ctx, "Transferred %v from %v to %v", amount, sender.AccountNumber, recipient.AccountNumber)
	return trx, nil
}

func (svc *service) ChangePin(ctx context.Context, accountID string, oldPin string, newPin string) (*Account, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	account, err := svc.getAccountDTO(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.PIN != oldPin {
		return nil, NewError(KindInvalidCredentials, "Current PIN is incorrect")
	}
	if !ValidPIN(newPin) {
		return nil, NewError(KindInvalidPinFormat, "New PIN must be 4 digits")
	}
	if newPin == oldPin {
		return nil, NewError(KindPinUnchanged, "New PIN must be different from old PIN")
	}

	account.PIN = newPin
	if err := svc.storage.CommitOperation(ctx, []dal.AccountDTO{*account}, nil); err != nil {
		return nil, NewStorageError(err, "Failed to commit PIN change for account %v", accountID)
	}
	logger.Info(ctx, "Changed PIN of account %v", account.AccountNumber)
	return accountFromDTO(account), nil
}

func (svc *service) ListTransactions(ctx context.Context, account *Account) ([]Transaction, error) {
	dtos, err := svc.storage.GetTransactionsByAccount(ctx, account.AccountNumber)
	if err != nil {
		return nil, NewStorageError(err, "Failed to list transactions of account %v", account.AccountNumber)
	}
	transactions := make([]Transaction, 0, len(dtos))
	for i := range dtos {
		transactions = append(transactions, transactionFromDTO(&dtos[i]))
	}
	return transactions, nil
}

// ServiceOpt is an option of a ledger service
type ServiceOpt func(*service)

// WithStorage will init the service with storage
func WithStorage(storage dal.Storage) ServiceOpt {
	return func(svc *service) {
		svc.storage = storage
	}
}

// WithNowService will init the service with an explicit time source
func WithNowService(nowSvc NowService) ServiceOpt {
	return func(svc *service) {
		svc.nowSvc = nowSvc
	}
}

// WithPolicy will init the service with explicit policy limits
func WithPolicy(policy Policy) ServiceOpt {
	return func(svc *service) {
		svc.policy = policy
	}
}

// NewService returns an instance of a ledger service
func NewService(opts ...ServiceOpt) Service {
	svc := &service{
		nowSvc: systemNowService{},
		policy: DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return Service(svc)
}
