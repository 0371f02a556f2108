// Package libenv builds the resolved block-context values needed to run a
// state transition and to construct a block header. Environments serialize to
// the transition engine's env document.
package libenv

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
)

// Environment is the resolved set of block-context fields. Exactly one of
// Difficulty and Random is semantically active depending on the fork era, but
// both fields exist so a value can cross eras unchanged.
type Environment struct {
	Number       uint64
	Timestamp    uint64
	GasLimit     uint64
	BaseFee      *big.Int
	Difficulty   *big.Int
	Random       *common.Hash
	FeeRecipient common.Address

	ExcessBlobGas *uint64
	BlobGasUsed   *uint64

	// BlockHashes maps ancestor block numbers to their hashes. Entry 0 is
	// the genesis hash; it must be present whenever the derived chain's
	// genesis hash diverges from the base chain's, or header verification
	// fails downstream without an error.
	BlockHashes map[uint64]common.Hash
}

// jsonEnv mirrors the transition engine's env document.
type jsonEnv struct {
	Coinbase      common.Address                      `json:"currentCoinbase"`
	Difficulty    *math.HexOrDecimal256               `json:"currentDifficulty,omitempty"`
	Random        *common.Hash                        `json:"currentRandom,omitempty"`
	GasLimit      math.HexOrDecimal64                 `json:"currentGasLimit"`
	Number        math.HexOrDecimal64                 `json:"currentNumber"`
	Timestamp     math.HexOrDecimal64                 `json:"currentTimestamp"`
	BaseFee       *math.HexOrDecimal256               `json:"currentBaseFee,omitempty"`
	ExcessBlobGas *math.HexOrDecimal64                `json:"currentExcessBlobGas,omitempty"`
	BlobGasUsed   *math.HexOrDecimal64                `json:"currentBlobGasUsed,omitempty"`
	BlockHashes   map[math.HexOrDecimal64]common.Hash `json:"blockHashes,omitempty"`
}

// MarshalJSON encodes the environment in the engine's env schema.
func (e *Environment) MarshalJSON() ([]byte, error) {
	enc := jsonEnv{
		Coinbase:      e.FeeRecipient,
		Difficulty:    (*math.HexOrDecimal256)(e.Difficulty),
		Random:        e.Random,
		GasLimit:      math.HexOrDecimal64(e.GasLimit),
		Number:        math.HexOrDecimal64(e.Number),
		Timestamp:     math.HexOrDecimal64(e.Timestamp),
		BaseFee:       (*math.HexOrDecimal256)(e.BaseFee),
		ExcessBlobGas: (*math.HexOrDecimal64)(e.ExcessBlobGas),
		BlobGasUsed:   (*math.HexOrDecimal64)(e.BlobGasUsed),
	}
	if len(e.BlockHashes) > 0 {
		enc.BlockHashes = make(map[math.HexOrDecimal64]common.Hash, len(e.BlockHashes))
		for num, hash := range e.BlockHashes {
			enc.BlockHashes[math.HexOrDecimal64(num)] = hash
		}
	}
	return json.Marshal(&enc)
}

// Copy returns a deep copy of the environment.
func (e *Environment) Copy() *Environment {
	out := *e
	if e.BaseFee != nil {
		out.BaseFee = new(big.Int).Set(e.BaseFee)
	}
	if e.Difficulty != nil {
		out.Difficulty = new(big.Int).Set(e.Difficulty)
	}
	if e.Random != nil {
		h := *e.Random
		out.Random = &h
	}
	if e.ExcessBlobGas != nil {
		v := *e.ExcessBlobGas
		out.ExcessBlobGas = &v
	}
	if e.BlobGasUsed != nil {
		v := *e.BlobGasUsed
		out.BlobGasUsed = &v
	}
	if e.BlockHashes != nil {
		out.BlockHashes = make(map[uint64]common.Hash, len(e.BlockHashes))
		for num, hash := range e.BlockHashes {
			out.BlockHashes[num] = hash
		}
	}
	return &out
}
