package libfork

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/core/types"
)

// AllocSet is a named group of genesis accounts. Sets keep their identity
// (chain accounts, system contracts, pre-funded accounts, ...) until they are
// merged into a single allocation at resolution time.
type AllocSet struct {
	Name     string
	Accounts types.GenesisAlloc
}

// Merge combines allocation sets in the given order. Later sets shadow earlier
// ones per address: the whole account value is replaced, never individual
// fields. The result shares no mutable state with the inputs.
func Merge(sets ...AllocSet) types.GenesisAlloc {
	out := make(types.GenesisAlloc)
	for _, set := range sets {
		for addr, account := range set.Accounts {
			out[addr] = copyAccount(account)
		}
	}
	return out
}

func copyAccount(a types.Account) types.Account {
	if a.Balance != nil {
		a.Balance = new(big.Int).Set(a.Balance)
	}
	if a.Code != nil {
		a.Code = append([]byte{}, a.Code...)
	}
	if a.Storage != nil {
		storage := make(map[common.Hash]common.Hash, len(a.Storage))
		for k, v := range a.Storage {
			storage[k] = v
		}
		a.Storage = storage
	}
	return a
}

// AccountDef is the account representation used in chain spec and scenario
// files. Balance accepts hex ("0x...") or decimal strings.
type AccountDef struct {
	Balance string            `yaml:"balance" json:"balance"`
	Nonce   uint64            `yaml:"nonce" json:"nonce"`
	Code    string            `yaml:"code" json:"code"`
	Storage map[string]string `yaml:"storage" json:"storage"`
}

// ParseAlloc converts a file-level account map into a genesis allocation.
func ParseAlloc(defs map[string]AccountDef) (types.GenesisAlloc, error) {
	alloc := make(types.GenesisAlloc, len(defs))
	for addr, def := range defs {
		account, err := def.account()
		if err != nil {
			return nil, &ConfigurationError{Detail: "account " + addr + ": " + err.Error()}
		}
		alloc[common.HexToAddress(addr)] = account
	}
	return alloc, nil
}

func (d AccountDef) account() (types.Account, error) {
	account := types.Account{
		Nonce:   d.Nonce,
		Balance: new(big.Int),
	}
	if d.Balance != "" {
		balance, err := parseBig(d.Balance)
		if err != nil {
			return types.Account{}, err
		}
		account.Balance = balance
	}
	if d.Code != "" && d.Code != "0x" {
		account.Code = common.FromHex(d.Code)
	}
	if len(d.Storage) > 0 {
		account.Storage = make(map[common.Hash]common.Hash, len(d.Storage))
		for k, v := range d.Storage {
			account.Storage[common.HexToHash(k)] = common.HexToHash(v)
		}
	}
	return account, nil
}

// parseBig parses a hex- or decimal-encoded integer.
func parseBig(s string) (*big.Int, error) {
	var v math.HexOrDecimal256
	if err := v.UnmarshalText([]byte(s)); err != nil {
		return nil, err
	}
	return (*big.Int)(&v), nil
}
