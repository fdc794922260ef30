package app

import (
	"database/sql"

	"github.com/shopspring/decimal"
	"go.uber.org/dig"

	"github.com/evgeny-myasishchev/atm.ledger-core/config"
	"github.com/evgeny-myasishchev/atm.ledger-core/pkg/dal"
	"github.com/evgeny-myasishchev/atm.ledger-core/pkg/ledger"
	"github.com/evgeny-myasishchev/atm.ledger-core/pkg/session"

	// Supported storage drivers. Which one is used is a config
	// concern (storage/driver param), postgres fits a store
	// shared across terminal instances
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Injector is a function that will inject desired services
// to a target function
type Injector func(function interface{}) error

// BootstrapServices setup di container with all app services
func BootstrapServices(appCfg *config.AppConfig) Injector {
	c := dig.New()

	c.Provide(func() (*sql.DB, error) {
		return sql.Open(appCfg.Storage.Driver.Value(), appCfg.Storage.DSN.Value())
	})

	c.Provide(func(db *sql.DB) (dal.Storage, error) {
		return dal.NewSQLStorage(
			dal.WithSQLDb(db),
			dal.WithSeedFile(appCfg.Seed.AccountsFile.Value()),
		)
	})

	c.Provide(func(storage dal.Storage) ledger.Service {
		return ledger.NewService(
			ledger.WithStorage(storage),
			ledger.WithPolicy(ledger.Policy{
				MinorUnit:     decimal.NewFromInt(int64(appCfg.Policy.MinorUnit.Value())),
				WithdrawLimit: decimal.NewFromInt(int64(appCfg.Policy.WithdrawLimit.Value())),
				TransferLimit: decimal.NewFromInt(int64(appCfg.Policy.TransferLimit.Value())),
			}),
		)
	})

	c.Provide(func(storage dal.Storage, ledgerSvc ledger.Service) session.Manager {
		return session.NewManager(
			session.WithLedger(ledgerSvc),
			session.WithStorage(storage),
		)
	})

	return func(function interface{}) error {
		return c.Invoke(function)
	}
}
