package session

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/evgeny-myasishchev/atm.ledger-core/pkg/dal"
	"github.com/evgeny-myasishchev/atm.ledger-core/pkg/ledger"
)

// Bootstrap accounts seeded by dal setup
const (
	johnNumber = "1234567890"
	johnPin    = "1234"

	janeNumber = "0987654321"
)

type testEnv struct {
	sess    Manager
	ledger  ledger.Service
	storage dal.Storage
	db      *sql.DB
}

func (env *testEnv) close() {
	env.db.Close()
}

// newManager builds another manager over the same storage, simulating
// a terminal process restart
func (env *testEnv) newManager() Manager {
	return NewManager(WithLedger(env.ledger), WithStorage(env.storage))
}

func newTestEnv(t *testing.T) *testEnv {
	db, err := sql.Open("sqlite3", ":memory:")
	if !assert.NoError(t, err) {
		panic(err)
	}
	storage, err := dal.NewSQLStorage(dal.WithSQLDb(db))
	if !assert.NoError(t, err) {
		panic(err)
	}
	if err := storage.Setup(context.TODO()); !assert.NoError(t, err) {
		panic(err)
	}
	ledgerSvc := ledger.NewService(ledger.WithStorage(storage))
	sess := NewManager(WithLedger(ledgerSvc), WithStorage(storage))
	return &testEnv{sess: sess, ledger: ledgerSvc, storage: storage, db: db}
}

func Test_manager_Login(t *testing.T) {
	env := newTestEnv(t)
	defer env.close()

	ctx := context.TODO()
	account, err := env.sess.Login(ctx, johnNumber, johnPin)
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, johnNumber, account.AccountNumber)

	current, err := env.sess.Current(ctx)
	if assert.NoError(t, err) && assert.NotNil(t, current) {
		assert.Equal(t, account.ID, current.ID)
	}
}

func Test_manager_Login_InvalidCredentials(t *testing.T) {
	env := newTestEnv(t)
	defer env.close()

	ctx := context.TODO()
	account, err := env.sess.Login(ctx, johnNumber, "0000")
	assert.Nil(t, account)
	assert.True(t, ledger.IsKind(err, ledger.KindInvalidCredentials), "got: %v", err)

	current, err := env.sess.Current(ctx)
	if assert.NoError(t, err) {
		assert.Nil(t, current, "Failed login should not establish a session")
	}
}

func Test_manager_Login_ReplacesSession(t *testing.T) {
	env := newTestEnv(t)
	defer env.close()

	ctx := context.TODO()
	if _, err := env.sess.Login(ctx, johnNumber, johnPin); !assert.NoError(t, err) {
		return
	}
	if _, err := env.sess.Login(ctx, janeNumber, "5678"); !assert.NoError(t, err) {
		return
	}

	current, err := env.sess.Current(ctx)
	if assert.NoError(t, err) && assert.NotNil(t, current) {
		assert.Equal(t, janeNumber, current.AccountNumber)
	}
}

func Test_manager_Logout(t *testing.T) {
	env := newTestEnv(t)
	defer env.close()

	ctx := context.TODO()
	if _, err := env.sess.Login(ctx, johnNumber, johnPin); !assert.NoError(t, err) {
		return
	}
	if err := env.sess.Logout(ctx); !assert.NoError(t, err) {
		return
	}

	current, err := env.sess.Current(ctx)
	if assert.NoError(t, err) {
		assert.Nil(t, current)
	}

	_, err = env.sess.Deposit(ctx, decimal.NewFromInt(1000))
	assert.True(t, ledger.IsKind(err, ledger.KindNotAuthenticated), "got: %v", err)
}

func Test_manager_RestoresSessionFromStorage(t *testing.T) {
	env := newTestEnv(t)
	defer env.close()

	ctx := context.TODO()
	if _, err := env.sess.Login(ctx, johnNumber, johnPin); !assert.NoError(t, err) {
		return
	}

	restarted := env.newManager()
	current, err := restarted.Current(ctx)
	if assert.NoError(t, err) && assert.NotNil(t, current, "Session should survive a restart") {
		assert.Equal(t, johnNumber, current.AccountNumber)
	}

	if err := restarted.Logout(ctx); !assert.NoError(t, err) {
		return
	}
	another := env.newManager()
	current, err = another.Current(ctx)
	if assert.NoError(t, err) {
		assert.Nil(t, current, "Logout should clear the durable session marker")
	}
}

func Test_manager_StaleSession(t *testing.T) {
	env := newTestEnv(t)
	defer env.close()

	ctx := context.TODO()
	if _, err := env.sess.Login(ctx, johnNumber, johnPin); !assert.NoError(t, err) {
		return
	}

	// Account disappears behind the session marker
	if err := env.storage.SaveAccounts(ctx, []dal.AccountDTO{}); !assert.NoError(t, err) {
		return
	}

	current, err := env.sess.Current(ctx)
	if assert.NoError(t, err) {
		assert.Nil(t, current, "Stale session should be dropped")
	}
	accountID, err := env.storage.GetSessionAccountID(ctx)
	if assert.NoError(t, err) {
		assert.Equal(t, "", accountID, "Stale session marker should be cleared")
	}
}

func Test_manager_OperationsRequireSession(t *testing.T) {
	type testCase struct {
		name string
		run  func(ctx context.Context, sess Manager) error
	}
	tests := []testCase{
		{
			name: "deposit",
			run: func(ctx context.Context, sess Manager) error {
				_, err := sess.Deposit(ctx, decimal.NewFromInt(1000))
				return err
			},
		},
		{
			name: "withdraw",
			run: func(ctx context.Context, sess Manager) error {
				_, err := sess.Withdraw(ctx, decimal.NewFromInt(1000))
				return err
			},
		},
		{
			name: "transfer",
			run: func(ctx context.Context, sess Manager) error {
				_, err := sess.Transfer(ctx, janeNumber, decimal.NewFromInt(1000))
				return err
			},
		},
		{
			name: "change pin",
			run: func(ctx context.Context, sess Manager) error {
				return sess.ChangePin(ctx, johnPin, "4321")
			},
		},
		{
			name: "list transactions",
			run: func(ctx context.Context, sess Manager) error {
				_, err := sess.ListTransactions(ctx)
				return err
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			defer env.close()
			err := tt.run(context.TODO(), env.sess)
			assert.True(t, ledger.IsKind(err, ledger.KindNotAuthenticated), "got: %v", err)
		})
	}
}

func Test_manager_Operations(t *testing.T) {
	env := newTestEnv(t)
	defer env.close()

	ctx := context.TODO()
	if _, err := env.sess.Login(ctx, johnNumber, johnPin); !assert.NoError(t, err) {
		return
	}

	deposit, err := env.sess.Deposit(ctx, decimal.NewFromInt(1000))
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, "51000", deposit.Balance.String())

	withdraw, err := env.sess.Withdraw(ctx, decimal.NewFromInt(500))
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, "50500", withdraw.Balance.String())

	transfer, err := env.sess.Transfer(ctx, janeNumber, decimal.NewFromInt(2000))
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, janeNumber, transfer.ToAccount)
	assert.Equal(t, "48500", transfer.Balance.String())

	transactions, err := env.sess.ListTransactions(ctx)
	if assert.NoError(t, err) {
		assert.Len(t, transactions, 3)
	}

	current, err := env.sess.Current(ctx)
	if assert.NoError(t, err) && assert.NotNil(t, current) {
		assert.Equal(t, "48500", current.Balance.String())
	}
}

func Test_manager_ChangePin(t *testing.T) {
	env := newTestEnv(t)
	defer env.close()

	ctx := context.TODO()
	if _, err := env.sess.Login(ctx, johnNumber, johnPin); !assert.NoError(t, err) {
		return
	}
	if err := env.sess.ChangePin(ctx, johnPin, "4321"); !assert.NoError(t, err) {
		return
	}

	// Session stays active after a PIN change
	current, err := env.sess.Current(ctx)
	if assert.NoError(t, err) && assert.NotNil(t, current) {
		assert.Equal(t, johnNumber, current.AccountNumber)
	}

	if err := env.sess.Logout(ctx); !assert.NoError(t, err) {
		return
	}
	account, err := env.sess.Login(ctx, johnNumber, "4321")
	if assert.NoError(t, err) {
		assert.Equal(t, johnNumber, account.AccountNumber)
	}
}
