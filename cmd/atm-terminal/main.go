package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	uuid "github.com/satori/go.uuid"
	"github.com/shopspring/decimal"

	"github.com/evgeny-myasishchev/atm.ledger-core/config"
	"github.com/evgeny-myasishchev/atm.ledger-core/pkg/app"
	"github.com/evgeny-myasishchev/atm.ledger-core/pkg/dal"
	"github.com/evgeny-myasishchev/atm.ledger-core/pkg/ledger"
	"github.com/evgeny-myasishchev/atm.ledger-core/pkg/lib-core-golang/diag"
	"github.com/evgeny-myasishchev/atm.ledger-core/pkg/session"
)

var logger = diag.CreateLogger()

var cliArgs struct {
	cmd       string
	account   string
	pin       string
	amount    int64
	toAccount string
	oldPin    string
	newPin    string
}

func init() {
	godotenv.Load()

	flag.StringVar(&cliArgs.cmd, "cmd", "", "Command to run. Available commands: login, logout, balance, deposit, withdraw, transfer, change-pin, history")
	flag.StringVar(&cliArgs.account, "account", "", "Account number (login)")
	flag.StringVar(&cliArgs.pin, "pin", "", "Account PIN (login)")
	flag.Int64Var(&cliArgs.amount, "amount", 0, "Operation amount (deposit, withdraw, transfer)")
	flag.StringVar(&cliArgs.toAccount, "to", "", "Recipient account number (transfer)")
	flag.StringVar(&cliArgs.oldPin, "old-pin", "", "Current PIN (change-pin)")
	flag.StringVar(&cliArgs.newPin, "new-pin", "", "New PIN (change-pin)")

	flag.Parse()
}

func showHelpAndExit() {
	flag.PrintDefaults()
	os.Exit(1)
}

func printTransaction(trx *ledger.Transaction) {
	fmt.Printf("%v %v %v (balance: %v)\n", trx.Date.Format("2006-01-02 15:04"), trx.Type, trx.Amount, trx.Balance)
}

func main() {
	if cliArgs.cmd == "" {
		showHelpAndExit()
	}

	appCfg := config.LoadAppConfig()

	diag.SetupLoggingSystem(func(setup diag.LoggingSystemSetup) {
		setup.SetLogLevel(appCfg.Log.Level.Value())
	})

	injector := app.BootstrapServices(appCfg)

	ctx := diag.ContextWithOperationID(context.Background(), uuid.NewV4().String())

	amount := decimal.NewFromInt(cliArgs.amount)

	if err := injector(func(storage dal.Storage, sess session.Manager) error {
		// Setup is idempotent, seeds bootstrap accounts on a fresh storage
		if err := storage.Setup(ctx); err != nil {
			return err
		}
		switch cliArgs.cmd {
		case "login":
			if cliArgs.account == "" || cliArgs.pin == "" {
				showHelpAndExit()
			}
			account, err := sess.Login(ctx, cliArgs.account, cliArgs.pin)
			if err != nil {
				return err
			}
			fmt.Printf("Welcome back, %v!\n", account.Name)
		case "logout":
			if err := sess.Logout(ctx); err != nil {
				return err
			}
			fmt.Println("Thank you for using our ATM")
		case "balance":
			account, err := sess.Current(ctx)
			if err != nil {
				return err
			}
			if account == nil {
				return ledger.NewError(ledger.KindNotAuthenticated, "No active session")
			}
			fmt.Printf("%v (%v): %v\n", account.Name, account.MaskedNumber(), account.Balance)
		case "deposit":
			trx, err := sess.Deposit(ctx, amount)
			if err != nil {
				return err
			}
			printTransaction(trx)
		case "withdraw":
			trx, err := sess.Withdraw(ctx, amount)
			if err != nil {
				return err
			}
			printTransaction(trx)
		case "transfer":
			if cliArgs.toAccount == "" {
				showHelpAndExit()
			}
			trx, err := sess.Transfer(ctx, cliArgs.toAccount, amount)
			if err != nil {
				return err
			}
			printTransaction(trx)
		case "change-pin":
			if cliArgs.oldPin == "" || cliArgs.newPin == "" {
				showHelpAndExit()
			}
			if err := sess.ChangePin(ctx, cliArgs.oldPin, cliArgs.newPin); err != nil {
				return err
			}
			fmt.Println("Your PIN has been updated successfully")
		case "history":
			transactions, err := sess.ListTransactions(ctx)
			if err != nil {
				return err
			}
			for i := range transactions {
				printTransaction(&transactions[i])
			}
		default:
			flag.PrintDefaults()
			os.Exit(1)
		}
		return nil
	}); err != nil {
		logger.WithError(err).Error(ctx, "Command %v failed", cliArgs.cmd)
		fmt.Println(err)
		os.Exit(1)
	}
}
