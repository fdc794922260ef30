package config

import (
	"github.com/evgeny-myasishchev/atm.ledger-core/pkg/lib-core-golang/config"
	"github.com/evgeny-myasishchev/atm.ledger-core/pkg/version"
)

var appEnv = config.NewAppEnv(version.AppName)
var configBuilder = config.NewBuilder(appEnv)

var localParams = configBuilder.NewParamsBuilder(configBuilder.WithLocalSource())

// Do not change vars below at runtime
var (
	LogLevel = localParams.NewParam("log/logLevel").String()

	StorageDriver = localParams.NewParam("storage/driver").String()
	StorageDSN    = localParams.NewParam("storage/data-source-name").String()

	SeedAccountsFile = localParams.NewParam("seed/accounts-file").String()

	PolicyWithdrawLimit = localParams.NewParam("policy/withdraw-limit").Int()
	PolicyTransferLimit = localParams.NewParam("policy/transfer-limit").Int()
	PolicyMinorUnit     = localParams.NewParam("policy/minor-unit").Int()
)

// Log represents logger specific options
type Log struct {
	Level config.StringVal
}

// Storage represents storage settings
type Storage struct {
	Driver config.StringVal
	DSN    config.StringVal
}

// Seed represents bootstrap seed settings
type Seed struct {
	AccountsFile config.StringVal
}

// Policy represents per transaction policy limits
type Policy struct {
	WithdrawLimit config.IntVal
	TransferLimit config.IntVal
	MinorUnit     config.IntVal
}

// AppConfig is a toplevel config structure
type AppConfig struct {
	Log     Log
	Storage Storage
	Seed    Seed
	Policy  Policy
}

// LoadAppConfig will load and initialize app config structure
func LoadAppConfig() *AppConfig {
	cfg, err := configBuilder.LoadConfig()
	if err != nil {
		panic(err)
	}

	appCfg := AppConfig{
		Log: Log{
			Level: cfg.StringParam(LogLevel),
		},
		Storage: Storage{
			Driver: cfg.StringParam(StorageDriver),
			DSN:    cfg.StringParam(StorageDSN),
		},
		Seed: Seed{
			AccountsFile: cfg.StringParam(SeedAccountsFile),
		},
		Policy: Policy{
			WithdrawLimit: cfg.IntParam(PolicyWithdrawLimit),
			TransferLimit: cfg.IntParam(PolicyTransferLimit),
			MinorUnit:     cfg.IntParam(PolicyMinorUnit),
		},
	}

	return &appCfg
}
