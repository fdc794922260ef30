package dal

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/evgeny-myasishchev/atm.ledger-core/pkg/lib-core-golang/diag"

	// This has to be here to let go mods work work
	_ "github.com/mattn/go-sqlite3"
)

var logger = diag.CreateLogger()

type sqlStorage struct {
	db       *sql.DB
	seedFile string
}

func (s *sqlStorage) Setup(ctx context.Context) error {
	logger.Info(ctx, "Setup SQL storage")
	if _, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS accounts(
	id             nvarchar(64) NOT NULL PRIMARY KEY,
	account_number nvarchar(32) NOT NULL UNIQUE,
	name           nvarchar(255) NOT NULL,
	pin            nvarchar(8) NOT NULL,
	balance        nvarchar(64) NOT NULL
);
CREATE TABLE IF NOT EXISTS transactions(
	id           nvarchar(255) NOT NULL PRIMARY KEY,
	type         nvarchar(16) NOT NULL,
	amount       nvarchar(64) NOT NULL,
	date         timestamp NOT NULL,
	from_account nvarchar(32) NOT NULL,
	to_account   nvarchar(32) NOT NULL DEFAULT '',
	balance      nvarchar(64) NOT NULL,
	seq          INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS terminal_session(
	id         INTEGER NOT NULL PRIMARY KEY CHECK (id = 1),
	account_id nvarchar(64) NOT NULL
);
`); err != nil {
		return errors.Wrap(err, "Failed to setup storage")
	}
	return s.seedAccounts(ctx)
}

// seedAccounts initializes the accounts collection with a bootstrap set.
// Only runs on a fresh storage, existing accounts are never touched.
func (s *sqlStorage) seedAccounts(ctx context.Context) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&count); err != nil {
		return errors.Wrap(err, "Failed to count accounts")
	}
	if count > 0 {
		return nil
	}

	seeds, err := loadSeedAccounts(s.seedFile)
	if err != nil {
		return err
	}
	logger.Info(ctx, "Seeding %v bootstrap accounts", len(seeds))
	accounts := make([]AccountDTO, 0, len(seeds))
	for _, seed := range seeds {
		accounts = append(accounts, seed.toDTO())
	}
	return s.SaveAccounts(ctx, accounts)
}

func scanAccount(scan func(dest ...interface{}) error) (*AccountDTO, error) {
	var account AccountDTO
	var balance string
	if err := scan(
		&account.ID,
		&account.AccountNumber,
		&account.Name,
		&account.PIN,
		&balance,
	); err != nil {
		return nil, err
	}
	balanceVal, err := decimal.NewFromString(balance)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to parse balance of account %v", account.ID)
	}
	account.Balance = balanceVal
	return &account, nil
}

func (s *sqlStorage) LoadAccounts(ctx context.Context) ([]AccountDTO, error) {
	res, err := s.db.QueryContext(ctx, `
	SELECT
		id, account_number, name, pin, balance
	FROM accounts ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer res.Close()

	var accounts []AccountDTO
	for res.Next() {
		account, err := scanAccount(res.Scan)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *account)
	}
	return accounts, res.Err()
}

func (s *sqlStorage) SaveAccounts(ctx context.Context, accounts []AccountDTO) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM accounts`); err != nil {
		tx.Rollback()
		return err
	}
	for _, account := range accounts {
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO accounts(id, account_number, name, pin, balance)
		VALUES($1, $2, $3, $4, $5)`,
			account.ID, account.AccountNumber, account.Name,
			account.PIN, account.Balance.String(),
		); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *sqlStorage) getAccountBy(ctx context.Context, field string, value string) (*AccountDTO, error) {
	res, err := s.db.QueryContext(ctx, `
	SELECT
		id, account_number, name, pin, balance
	FROM accounts WHERE `+field+` = $1`, value)
	if err != nil {
		return nil, err
	}
	defer res.Close()

	if !res.Next() {
		if res.Err() != nil {
			return nil, res.Err()
		}
		return nil, ErrAccountNotFound
	}
	return scanAccount(res.Scan)
}

func (s *sqlStorage) GetAccountByID(ctx context.Context, id string) (*AccountDTO, error) {
	return s.getAccountBy(ctx, "id", id)
}

func (s *sqlStorage) GetAccountByNumber(ctx context.Context, accountNumber string) (*AccountDTO, error) {
	return s.getAccountBy(ctx, "account_number", accountNumber)
}

func scanTransactions(res *sql.Rows) ([]TransactionDTO, error) {
	var transactions []TransactionDTO
	for res.Next() {
		var trx TransactionDTO
		var amount, balance string
		if err := res.Scan(
			&trx.ID,
			&trx.Type,
			&amount,
			&trx.Date,
			&trx.FromAccount,
			&trx.ToAccount,
			&balance,
		); err != nil {
			return nil, err
		}
		amountVal, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to parse amount of transaction %v", trx.ID)
		}
		balanceVal, err := decimal.NewFromString(balance)
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to parse balance of transaction %v", trx.ID)
		}
		trx.Amount = amountVal
		trx.Balance = balanceVal
		transactions = append(transactions, trx)
	}
	return transactions, res.Err()
}

func (s *sqlStorage) LoadTransactions(ctx context.Context) ([]TransactionDTO, error) {
	res, err := s.db.QueryContext(ctx, `
	SELECT
		id, type, amount, date, from_account, to_account, balance
	FROM transactions ORDER BY date DESC, seq DESC`)
	if err != nil {
		return nil, err
	}
	defer res.Close()
	return scanTransactions(res)
}

func (s *sqlStorage) GetTransactionsByAccount(ctx context.Context, accountNumber string) ([]TransactionDTO, error) {
	res, err := s.db.QueryContext(ctx, `
	SELECT
		id, type, amount, date, from_account, to_account, balance
	FROM transactions
	WHERE from_account = $1 OR to_account = $1
	ORDER BY date DESC, seq DESC`, accountNumber)
	if err != nil {
		return nil, err
	}
	defer res.Close()
	return scanTransactions(res)
}

func insertTransaction(ctx context.Context, execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}, trx *TransactionDTO) error {
	_, err := execer.ExecContext(ctx, `
	INSERT INTO transactions(
		id,
		type,
		amount,
		date,
		from_account,
		to_account,
		balance,
		seq
	)
	VALUES($1, $2, $3, $4, $5, $6, $7, COALESCE((SELECT MAX(seq) FROM transactions), 0) + 1)
	`, trx.ID, trx.Type, trx.Amount.String(), trx.Date,
		trx.FromAccount, trx.ToAccount, trx.Balance.String())
	return err
}

func (s *sqlStorage) AppendTransaction(ctx context.Context, trx *TransactionDTO) error {
	return insertTransaction(ctx, s.db, trx)
}

func (s *sqlStorage) CommitOperation(ctx context.Context, accounts []AccountDTO, trx *TransactionDTO) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, account := range accounts {
		res, err := tx.ExecContext(ctx, `
		UPDATE accounts SET name=$1, pin=$2, balance=$3
		WHERE id=$4`,
			account.Name, account.PIN, account.Balance.String(), account.ID)
		if err != nil {
			tx.Rollback()
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			tx.Rollback()
			return err
		}
		if affected == 0 {
			tx.Rollback()
			return errors.Wrapf(ErrAccountNotFound, "Failed to update account %v", account.ID)
		}
	}
	if trx != nil {
		if err := insertTransaction(ctx, tx, trx); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *sqlStorage) GetSessionAccountID(ctx context.Context) (string, error) {
	res, err := s.db.QueryContext(ctx, `SELECT account_id FROM terminal_session WHERE id = 1`)
	if err != nil {
		return "", err
	}
	defer res.Close()

	if !res.Next() {
		return "", res.Err()
	}
	var accountID string
	if err := res.Scan(&accountID); err != nil {
		return "", err
	}
	return accountID, nil
}

func (s *sqlStorage) SaveSession(ctx context.Context, accountID string) error {
	if _, err := s.db.ExecContext(ctx, `
	INSERT INTO terminal_session(id, account_id)
	VALUES(1, $1)
	ON CONFLICT(id) DO UPDATE
	SET account_id=$1
	`, accountID); err != nil {
		return err
	}
	return nil
}

func (s *sqlStorage) ClearSession(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM terminal_session WHERE id = 1`)
	return err
}

// SQLStorageOpt is an option of SQL storage
type SQLStorageOpt func(s *sqlStorage)

// WithSQLDb will set an explicit db instance for a storage
func WithSQLDb(db *sql.DB) SQLStorageOpt {
	return func(s *sqlStorage) {
		s.db = db
	}
}

// WithSeedFile will set a yaml file to seed bootstrap accounts from
func WithSeedFile(seedFile string) SQLStorageOpt {
	return func(s *sqlStorage) {
		s.seedFile = seedFile
	}
}

// NewSQLStorage returns an instance of a local storage
func NewSQLStorage(opts ...SQLStorageOpt) (Storage, error) {
	storage := &sqlStorage{}
	for _, opt := range opts {
		opt(storage)
	}
	return storage, nil
}
