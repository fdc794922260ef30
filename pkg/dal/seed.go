package dal

import (
	"io/ioutil"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// SeedAccount is a bootstrap account record
type SeedAccount struct {
	ID            string `yaml:"id"`
	AccountNumber string `yaml:"accountNumber"`
	Name          string `yaml:"name"`
	PIN           string `yaml:"pin"`
	Balance       int64  `yaml:"balance"`
}

// defaultSeedAccounts is a fixed bootstrap set used when no seed file is configured
var defaultSeedAccounts = []SeedAccount{
	{ID: "1", AccountNumber: "1234567890", Name: "John Doe", PIN: "1234", Balance: 50000},
	{ID: "2", AccountNumber: "0987654321", Name: "Jane Smith", PIN: "5678", Balance: 75000},
	{ID: "3", AccountNumber: "1111222233", Name: "Bob Johnson", PIN: "9999", Balance: 100000},
}

func loadSeedAccounts(seedFile string) ([]SeedAccount, error) {
	if seedFile == "" {
		return defaultSeedAccounts, nil
	}
	buffer, err := ioutil.ReadFile(seedFile)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read seed accounts file: %v", seedFile)
	}
	var seeds []SeedAccount
	if err := yaml.Unmarshal(buffer, &seeds); err != nil {
		return nil, errors.Wrapf(err, "Failed to parse seed accounts file: %v", seedFile)
	}
	return seeds, nil
}

func (seed SeedAccount) toDTO() AccountDTO {
	return AccountDTO{
		ID:            seed.ID,
		AccountNumber: seed.AccountNumber,
		Name:          seed.Name,
		PIN:           seed.PIN,
		Balance:       decimal.NewFromInt(seed.Balance),
	}
}
