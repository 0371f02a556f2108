// Package libfixture turns derived-chain scenarios into block fixtures. It
// wires the fork registry, environment builder, transition client and header
// canonicalizer together and checks the outcome against the scenario's
// expectations.
package libfixture

import (
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/fixturegen/internal/libenv"
	"github.com/ethereum/fixturegen/internal/libfork"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/goccy/go-yaml"
)

// Scenario is one block's worth of test input: environment overrides, extra
// pre-state accounts, transactions, and the values the outcome is checked
// against. Scenarios are value objects and safe to share across goroutines.
type Scenario struct {
	Name string

	// ParentHash is the hash the generated block builds on. When zero, the
	// environment's ancestor-hash entry for the parent block number is
	// used, which for block 1 of a patched derived chain is the configured
	// genesis hash.
	ParentHash common.Hash

	Env    libenv.Overrides
	Pre    types.GenesisAlloc
	Txs    []TxSpec
	Expect Expectation
}

// TxSpec describes a transaction to be signed with the scenario's own key at
// run time, once the chain id is known.
type TxSpec struct {
	SecretKey string `yaml:"secretKey"`
	To        string `yaml:"to"`
	Value     string `yaml:"value"`
	Gas       uint64 `yaml:"gas"`
	GasPrice  string `yaml:"gasPrice"`
	Nonce     uint64 `yaml:"nonce"`
	Data      string `yaml:"data"`
}

// Expectation lists the scenario's assertions. Post accounts are compared
// exactly; addresses not listed are ignored. A nil HeaderHash skips the hash
// check, which is how the expected hash of a new scenario is obtained in the
// first place.
type Expectation struct {
	Post       types.GenesisAlloc
	HeaderHash *common.Hash
}

// signTxs signs the scenario's transaction specs for the given chain id.
func (s *Scenario) signTxs(chainID *big.Int) ([]*types.Transaction, error) {
	signer := types.LatestSignerForChainID(chainID)
	txs := make([]*types.Transaction, 0, len(s.Txs))
	for i, spec := range s.Txs {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(spec.SecretKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("tx %d: invalid secret key: %v", i, err)
		}
		value, err := parseBig(spec.Value)
		if err != nil {
			return nil, fmt.Errorf("tx %d: invalid value: %v", i, err)
		}
		gasPrice, err := parseBig(spec.GasPrice)
		if err != nil {
			return nil, fmt.Errorf("tx %d: invalid gasPrice: %v", i, err)
		}
		var data []byte
		if spec.Data != "" {
			data, err = hexutil.Decode(spec.Data)
			if err != nil {
				return nil, fmt.Errorf("tx %d: invalid data: %v", i, err)
			}
		}
		txdata := &types.LegacyTx{
			Nonce:    spec.Nonce,
			Gas:      spec.Gas,
			GasPrice: gasPrice,
			Value:    value,
			Data:     data,
		}
		if spec.To != "" {
			to := common.HexToAddress(spec.To)
			txdata.To = &to
		}
		tx, err := types.SignNewTx(key, signer, txdata)
		if err != nil {
			return nil, fmt.Errorf("tx %d: %v", i, err)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

func parseBig(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	var v math.HexOrDecimal256
	if err := v.UnmarshalText([]byte(s)); err != nil {
		return nil, err
	}
	return (*big.Int)(&v), nil
}

// scenarioFile is the YAML schema of a scenario file.
type scenarioFile struct {
	Name       string       `yaml:"name"`
	ParentHash string       `yaml:"parentHash"`
	Env        envOverrides `yaml:"env"`
	Pre        allocDef     `yaml:"pre"`
	Txs        []TxSpec     `yaml:"txs"`
	Expect     struct {
		Post       allocDef `yaml:"post"`
		HeaderHash string   `yaml:"headerHash"`
	} `yaml:"expect"`
}

type allocDef map[string]libfork.AccountDef

type envOverrides struct {
	Number        *uint64           `yaml:"number"`
	Timestamp     *uint64           `yaml:"timestamp"`
	GasLimit      *uint64           `yaml:"gasLimit"`
	BaseFee       string            `yaml:"baseFeePerGas"`
	Difficulty    string            `yaml:"difficulty"`
	Random        string            `yaml:"random"`
	ExcessBlobGas *uint64           `yaml:"excessBlobGas"`
	BlobGasUsed   *uint64           `yaml:"blobGasUsed"`
	FeeRecipient  string            `yaml:"feeRecipient"`
	BlockHashes   map[uint64]string `yaml:"blockHashes"`
}

func (ov *envOverrides) build() (libenv.Overrides, error) {
	out := libenv.Overrides{
		Number:        ov.Number,
		Timestamp:     ov.Timestamp,
		GasLimit:      ov.GasLimit,
		ExcessBlobGas: ov.ExcessBlobGas,
		BlobGasUsed:   ov.BlobGasUsed,
	}
	if ov.BaseFee != "" {
		v, err := parseBig(ov.BaseFee)
		if err != nil {
			return out, fmt.Errorf("invalid baseFeePerGas: %v", err)
		}
		out.BaseFee = v
	}
	if ov.Difficulty != "" {
		v, err := parseBig(ov.Difficulty)
		if err != nil {
			return out, fmt.Errorf("invalid difficulty: %v", err)
		}
		out.Difficulty = v
	}
	if ov.Random != "" {
		h := common.HexToHash(ov.Random)
		out.Random = &h
	}
	if ov.FeeRecipient != "" {
		addr := common.HexToAddress(ov.FeeRecipient)
		out.FeeRecipient = &addr
	}
	if len(ov.BlockHashes) > 0 {
		out.BlockHashes = make(map[uint64]common.Hash, len(ov.BlockHashes))
		for num, hash := range ov.BlockHashes {
			out.BlockHashes[num] = common.HexToHash(hash)
		}
	}
	return out, nil
}

// LoadScenario reads one scenario from a YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file scenarioFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("can't parse scenario file %s: %v", path, err)
	}

	sc := &Scenario{Name: file.Name, Txs: file.Txs}
	if sc.Name == "" {
		sc.Name = path
	}
	if file.ParentHash != "" {
		sc.ParentHash = common.HexToHash(file.ParentHash)
	}
	sc.Env, err = file.Env.build()
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %v", path, err)
	}
	if len(file.Pre) > 0 {
		sc.Pre, err = libfork.ParseAlloc(file.Pre)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: pre: %v", path, err)
		}
	}
	if len(file.Expect.Post) > 0 {
		sc.Expect.Post, err = libfork.ParseAlloc(file.Expect.Post)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: expect.post: %v", path, err)
		}
	}
	if file.Expect.HeaderHash != "" {
		h := common.HexToHash(file.Expect.HeaderHash)
		sc.Expect.HeaderHash = &h
	}
	return sc, nil
}
