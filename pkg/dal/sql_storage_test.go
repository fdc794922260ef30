package dal

import (
	"context"
	"database/sql"
	"fmt"
	"io/ioutil"
	"math/rand"
	"os"
	"path"
	"testing"
	"time"

	"github.com/bxcodec/faker/v3"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func newTestStorage(t *testing.T, opts ...SQLStorageOpt) (Storage, *sql.DB) {
	db, err := sql.Open("sqlite3", ":memory:")
	if !assert.NoError(t, err) {
		panic(err)
	}
	storage, err := NewSQLStorage(append([]SQLStorageOpt{WithSQLDb(db)}, opts...)...)
	if !assert.NoError(t, err) {
		panic(err)
	}
	if err := storage.Setup(context.TODO()); !assert.NoError(t, err) {
		panic(err)
	}
	return storage, db
}

func randomAccount() AccountDTO {
	return AccountDTO{
		ID:            faker.UUIDDigit(),
		AccountNumber: fmt.Sprint(rand.Int63n(8999999999) + 1000000000),
		Name:          faker.Name(),
		PIN:           fmt.Sprintf("%04d", rand.Intn(10000)),
		Balance:       decimal.NewFromInt(int64(rand.Intn(100000) + 1)),
	}
}

func randomTransaction(fromAccount string) *TransactionDTO {
	return &TransactionDTO{
		ID:          "TXN-" + faker.UUIDDigit(),
		Type:        "deposit",
		Amount:      decimal.NewFromInt(int64(rand.Intn(100)+1) * 100),
		Date:        time.Now().UTC().Truncate(time.Second),
		FromAccount: fromAccount,
		Balance:     decimal.NewFromInt(int64(rand.Intn(100000) + 1)),
	}
}

func Test_sqlStorage_Setup_SeedsDefaults(t *testing.T) {
	storage, db := newTestStorage(t)
	defer db.Close()

	accounts, err := storage.LoadAccounts(context.TODO())
	if !assert.NoError(t, err) {
		return
	}
	if !assert.Len(t, accounts, 3) {
		return
	}
	assert.Equal(t, "1234567890", accounts[0].AccountNumber)
	assert.Equal(t, "John Doe", accounts[0].Name)
	assert.Equal(t, "1234", accounts[0].PIN)
	assert.Equal(t, decimal.NewFromInt(50000), accounts[0].Balance)
	assert.Equal(t, "0987654321", accounts[1].AccountNumber)
	assert.Equal(t, "1111222233", accounts[2].AccountNumber)
}

func Test_sqlStorage_Setup_DoesNotReseed(t *testing.T) {
	storage, db := newTestStorage(t)
	defer db.Close()

	account := randomAccount()
	if err := storage.SaveAccounts(context.TODO(), []AccountDTO{account}); !assert.NoError(t, err) {
		return
	}
	if err := storage.Setup(context.TODO()); !assert.NoError(t, err) {
		return
	}
	accounts, err := storage.LoadAccounts(context.TODO())
	if !assert.NoError(t, err) {
		return
	}
	if assert.Len(t, accounts, 1, "Existing accounts should survive repeated setup") {
		assert.Equal(t, account, accounts[0])
	}
}

func Test_sqlStorage_Setup_SeedFile(t *testing.T) {
	dir, err := ioutil.TempDir("", "atm-seed")
	if !assert.NoError(t, err) {
		return
	}
	defer os.RemoveAll(dir)

	seedFile := path.Join(dir, "accounts.yaml")
	seedData := `
- id: "42"
  accountNumber: "5556667777"
  name: Custom Seed
  pin: "4242"
  balance: 12300
`
	if err := ioutil.WriteFile(seedFile, []byte(seedData), 0644); !assert.NoError(t, err) {
		return
	}

	storage, db := newTestStorage(t, WithSeedFile(seedFile))
	defer db.Close()

	accounts, err := storage.LoadAccounts(context.TODO())
	if !assert.NoError(t, err) {
		return
	}
	if assert.Len(t, accounts, 1) {
		assert.Equal(t, AccountDTO{
			ID:            "42",
			AccountNumber: "5556667777",
			Name:          "Custom Seed",
			PIN:           "4242",
			Balance:       decimal.NewFromInt(12300),
		}, accounts[0])
	}
}

func Test_sqlStorage_SaveAccounts_ReplacesCollection(t *testing.T) {
	storage, db := newTestStorage(t)
	defer db.Close()

	want := []AccountDTO{randomAccount(), randomAccount()}
	if err := storage.SaveAccounts(context.TODO(), want); !assert.NoError(t, err) {
		return
	}
	got, err := storage.LoadAccounts(context.TODO())
	if !assert.NoError(t, err) {
		return
	}
	assert.ElementsMatch(t, want, got)
}

func Test_sqlStorage_GetAccountByNumber(t *testing.T) {
	type testCase struct {
		name   string
		number string
		setup  func(s Storage) *AccountDTO
		assert func(t *testing.T, want *AccountDTO, got *AccountDTO, err error)
	}
	tests := []func() testCase{
		func() testCase {
			account := randomAccount()
			return testCase{
				name:   "get existing account",
				number: account.AccountNumber,
				setup: func(s Storage) *AccountDTO {
					if err := s.SaveAccounts(context.TODO(), []AccountDTO{account}); err != nil {
						panic(err)
					}
					return &account
				},
				assert: func(t *testing.T, want *AccountDTO, got *AccountDTO, err error) {
					if !assert.NoError(t, err) {
						return
					}
					assert.Equal(t, want, got)
				},
			}
		},
		func() testCase {
			return testCase{
				name:   "get not existing account",
				number: fmt.Sprint(rand.Int63n(8999999999) + 1000000000),
				assert: func(t *testing.T, want *AccountDTO, got *AccountDTO, err error) {
					if !assert.Error(t, err) {
						return
					}
					assert.Equal(t, ErrAccountNotFound, errors.Cause(err))
				},
			}
		},
	}
	for _, ttFn := range tests {
		tt := ttFn()
		t.Run(tt.name, func(t *testing.T) {
			storage, db := newTestStorage(t)
			defer db.Close()
			var want *AccountDTO
			if tt.setup != nil {
				want = tt.setup(storage)
			}
			got, err := storage.GetAccountByNumber(context.TODO(), tt.number)
			tt.assert(t, want, got, err)
		})
	}
}

func Test_sqlStorage_GetAccountByID(t *testing.T) {
	storage, db := newTestStorage(t)
	defer db.Close()

	account := randomAccount()
	if err := storage.SaveAccounts(context.TODO(), []AccountDTO{account}); !assert.NoError(t, err) {
		return
	}

	got, err := storage.GetAccountByID(context.TODO(), account.ID)
	if assert.NoError(t, err) {
		assert.Equal(t, &account, got)
	}

	_, err = storage.GetAccountByID(context.TODO(), "no-such-id")
	if assert.Error(t, err) {
		assert.Equal(t, ErrAccountNotFound, errors.Cause(err))
	}
}

func Test_sqlStorage_LoadTransactions_Ordering(t *testing.T) {
	storage, db := newTestStorage(t)
	defer db.Close()

	ctx := context.TODO()
	sameDate := time.Now().UTC().Truncate(time.Second)

	older := randomTransaction("1234567890")
	older.Date = sameDate.Add(-time.Hour)
	first := randomTransaction("1234567890")
	first.Date = sameDate
	second := randomTransaction("1234567890")
	second.Date = sameDate

	for _, trx := range []*TransactionDTO{older, first, second} {
		if err := storage.AppendTransaction(ctx, trx); !assert.NoError(t, err) {
			return
		}
	}

	got, err := storage.LoadTransactions(ctx)
	if !assert.NoError(t, err) {
		return
	}
	if !assert.Len(t, got, 3) {
		return
	}
	assert.Equal(t, second.ID, got[0].ID, "Most recently appended should win the date tie")
	assert.Equal(t, first.ID, got[1].ID)
	assert.Equal(t, older.ID, got[2].ID, "Oldest date should go last")
}

func Test_sqlStorage_GetTransactionsByAccount(t *testing.T) {
	storage, db := newTestStorage(t)
	defer db.Close()

	ctx := context.TODO()

	outgoing := randomTransaction("1234567890")
	outgoing.Type = "transfer"
	outgoing.ToAccount = "0987654321"
	unrelated := randomTransaction("1111222233")

	for _, trx := range []*TransactionDTO{outgoing, unrelated} {
		if err := storage.AppendTransaction(ctx, trx); !assert.NoError(t, err) {
			return
		}
	}

	senderSide, err := storage.GetTransactionsByAccount(ctx, "1234567890")
	if assert.NoError(t, err) && assert.Len(t, senderSide, 1) {
		assert.Equal(t, outgoing.ID, senderSide[0].ID)
	}

	recipientSide, err := storage.GetTransactionsByAccount(ctx, "0987654321")
	if assert.NoError(t, err) && assert.Len(t, recipientSide, 1, "Recipient should see the transfer via toAccount") {
		assert.Equal(t, outgoing.ID, recipientSide[0].ID)
	}
}

func Test_sqlStorage_CommitOperation(t *testing.T) {
	storage, db := newTestStorage(t)
	defer db.Close()

	ctx := context.TODO()
	sender := randomAccount()
	recipient := randomAccount()
	if err := storage.SaveAccounts(ctx, []AccountDTO{sender, recipient}); !assert.NoError(t, err) {
		return
	}

	sender.Balance = sender.Balance.Sub(decimal.NewFromInt(500))
	recipient.Balance = recipient.Balance.Add(decimal.NewFromInt(500))
	trx := randomTransaction(sender.AccountNumber)

	if err := storage.CommitOperation(ctx, []AccountDTO{sender, recipient}, trx); !assert.NoError(t, err) {
		return
	}

	gotSender, err := storage.GetAccountByID(ctx, sender.ID)
	if assert.NoError(t, err) {
		assert.Equal(t, sender.Balance.String(), gotSender.Balance.String())
	}
	gotRecipient, err := storage.GetAccountByID(ctx, recipient.ID)
	if assert.NoError(t, err) {
		assert.Equal(t, recipient.Balance.String(), gotRecipient.Balance.String())
	}
	transactions, err := storage.LoadTransactions(ctx)
	if assert.NoError(t, err) && assert.Len(t, transactions, 1) {
		assert.Equal(t, trx.ID, transactions[0].ID)
	}
}

func Test_sqlStorage_CommitOperation_Atomic(t *testing.T) {
	storage, db := newTestStorage(t)
	defer db.Close()

	ctx := context.TODO()
	account := randomAccount()
	if err := storage.SaveAccounts(ctx, []AccountDTO{account}); !assert.NoError(t, err) {
		return
	}

	missing := randomAccount()
	updated := account
	updated.Balance = account.Balance.Add(decimal.NewFromInt(1000))

	err := storage.CommitOperation(ctx, []AccountDTO{updated, missing}, randomTransaction(account.AccountNumber))
	if !assert.Error(t, err, "Commit should fail if any account is missing") {
		return
	}
	assert.Equal(t, ErrAccountNotFound, errors.Cause(err))

	got, err := storage.GetAccountByID(ctx, account.ID)
	if assert.NoError(t, err) {
		assert.Equal(t, account.Balance, got.Balance, "Nothing should be visible after a failed commit")
	}
	transactions, err := storage.LoadTransactions(ctx)
	if assert.NoError(t, err) {
		assert.Len(t, transactions, 0)
	}
}

func Test_sqlStorage_Session(t *testing.T) {
	storage, db := newTestStorage(t)
	defer db.Close()

	ctx := context.TODO()

	got, err := storage.GetSessionAccountID(ctx)
	if assert.NoError(t, err) {
		assert.Equal(t, "", got, "Fresh storage should have no session")
	}

	if err := storage.SaveSession(ctx, "account-1"); !assert.NoError(t, err) {
		return
	}
	got, err = storage.GetSessionAccountID(ctx)
	if assert.NoError(t, err) {
		assert.Equal(t, "account-1", got)
	}

	if err := storage.SaveSession(ctx, "account-2"); !assert.NoError(t, err) {
		return
	}
	got, err = storage.GetSessionAccountID(ctx)
	if assert.NoError(t, err) {
		assert.Equal(t, "account-2", got, "Saving again should replace the marker")
	}

	if err := storage.ClearSession(ctx); !assert.NoError(t, err) {
		return
	}
	got, err = storage.GetSessionAccountID(ctx)
	if assert.NoError(t, err) {
		assert.Equal(t, "", got)
	}
}
