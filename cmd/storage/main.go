package main

import (
	"context"
	"flag"
	"os"

	"github.com/joho/godotenv"
	uuid "github.com/satori/go.uuid"

	"github.com/evgeny-myasishchev/atm.ledger-core/config"
	"github.com/evgeny-myasishchev/atm.ledger-core/pkg/app"
	"github.com/evgeny-myasishchev/atm.ledger-core/pkg/dal"
	"github.com/evgeny-myasishchev/atm.ledger-core/pkg/lib-core-golang/diag"
)

var logger = diag.CreateLogger()

var cliArgs struct {
	cmd string
}

func init() {
	godotenv.Load()

	flag.StringVar(&cliArgs.cmd, "cmd", "", "Command to run. Available commands: setup")

	flag.Parse()
}

func showHelpAndExit() {
	flag.PrintDefaults()
	os.Exit(1)
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

	switch cliArgs.cmd {
	case "setup":
		if err := injector(func(storage dal.Storage) error {
			return storage.Setup(ctx)
		}); err != nil {
			logger.WithError(err).Error(ctx, "Failed to setup storage")
			os.Exit(1)
		}

	default:
		flag.PrintDefaults()
		os.Exit(1)
	}
}
