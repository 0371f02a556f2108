package libenv

import (
	"math/big"

	"github.com/ethereum/fixturegen/internal/libfork"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
)

// Base environment template. These are fixed per-version constants, not
// computed values; the resolved fork's spec replaces them field-by-field.
const (
	defaultNumber     = 1
	defaultTimestamp  = 1000
	defaultGasLimit   = 36_000_000
	defaultDifficulty = 0x20000
)

// Overrides selects environment fields to replace for one scenario. Nil
// fields keep the resolved default.
type Overrides struct {
	Number        *uint64
	Timestamp     *uint64
	GasLimit      *uint64
	BaseFee       *big.Int
	Difficulty    *big.Int
	Random        *common.Hash
	ExcessBlobGas *uint64
	BlobGasUsed   *uint64
	FeeRecipient  *common.Address
	BlockHashes   map[uint64]common.Hash
}

// Build constructs a concrete environment from the resolved fork's defaults
// and the caller's overrides. It has no side effects: no global state is read
// or written, and the returned value shares nothing with the inputs.
//
// When the resolved fork carries a genesis hash, BlockHashes[0] is guaranteed
// present in the result. A caller-supplied entry 0 always wins over the
// injected default.
func Build(rf *libfork.ResolvedFork, ov Overrides) *Environment {
	env := template(rf)

	if ov.Number != nil {
		env.Number = *ov.Number
	}
	if ov.Timestamp != nil {
		env.Timestamp = *ov.Timestamp
	}
	if ov.GasLimit != nil {
		env.GasLimit = *ov.GasLimit
	}
	if ov.BaseFee != nil {
		env.BaseFee = new(big.Int).Set(ov.BaseFee)
	}
	if ov.Difficulty != nil {
		env.Difficulty = new(big.Int).Set(ov.Difficulty)
		env.Random = nil
	}
	if ov.Random != nil {
		h := *ov.Random
		env.Random = &h
		env.Difficulty = new(big.Int)
	}
	if ov.ExcessBlobGas != nil {
		v := *ov.ExcessBlobGas
		env.ExcessBlobGas = &v
	}
	if ov.BlobGasUsed != nil {
		v := *ov.BlobGasUsed
		env.BlobGasUsed = &v
	}
	if ov.FeeRecipient != nil {
		env.FeeRecipient = *ov.FeeRecipient
	}
	if len(ov.BlockHashes) > 0 {
		if env.BlockHashes == nil {
			env.BlockHashes = make(map[uint64]common.Hash, len(ov.BlockHashes))
		}
		for num, hash := range ov.BlockHashes {
			env.BlockHashes[num] = hash
		}
	}

	if genesis := rf.GenesisHash(); genesis != nil {
		if env.BlockHashes == nil {
			env.BlockHashes = make(map[uint64]common.Hash, 1)
		}
		if _, ok := env.BlockHashes[0]; !ok {
			env.BlockHashes[0] = *genesis
		}
	}
	return env
}

// template builds the per-fork default environment, with the derived spec's
// defaults layered over the base constants.
func template(rf *libfork.ResolvedFork) *Environment {
	env := &Environment{
		Number:    defaultNumber,
		Timestamp: defaultTimestamp,
		GasLimit:  defaultGasLimit,
		BaseFee:   big.NewInt(params.InitialBaseFee),
	}
	if rf.Base().PoS {
		env.Difficulty = new(big.Int)
		env.Random = &common.Hash{}
	} else {
		env.Difficulty = big.NewInt(defaultDifficulty)
	}
	if rf.SupportsBlobs() {
		zero := uint64(0)
		env.ExcessBlobGas = &zero
	}

	defaults := rf.EnvDefaults()
	if defaults.GasLimit != nil {
		env.GasLimit = *defaults.GasLimit
	}
	if defaults.Number != nil {
		env.Number = *defaults.Number
	}
	if defaults.Timestamp != nil {
		env.Timestamp = *defaults.Timestamp
	}
	if defaults.BaseFee != nil {
		env.BaseFee = new(big.Int).SetUint64(*defaults.BaseFee)
	}
	if defaults.Difficulty != nil {
		env.Difficulty = new(big.Int).SetUint64(*defaults.Difficulty)
		env.Random = nil
	}
	if defaults.ExcessBlobGas != nil && rf.SupportsBlobs() {
		v := *defaults.ExcessBlobGas
		env.ExcessBlobGas = &v
	}
	if defaults.FeeRecipient != nil {
		env.FeeRecipient = *defaults.FeeRecipient
	}
	return env
}
