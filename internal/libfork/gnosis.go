package libfork

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Gnosis chain constants, as observed from the live chain and its clients.
const (
	gnosisChainID                   = 100
	gnosisBlobBaseFeeUpdateFraction = 2504285
	gnosisTargetBlobsPerBlock       = 1
	gnosisMaxBlobsPerBlock          = 2
	gnosisGasLimit                  = 0x989680   // 10M
	gnosisBaseFee                   = 0x3b9aca00 // 1 gwei
	gnosisDifficulty                = 0x20000
)

// gnosisGenesisHash is the hash the Gnosis client computes for its genesis
// block. It is taken as an opaque constant; the client derives it through an
// internal parameter remapping that is not reproduced here.
var gnosisGenesisHash = common.HexToHash("0x92f2bad26c57198059f54c809a588e2acdd8ed140dd92683d570d1d5f83aa9a0")

var gnosisFeeRecipient = common.HexToAddress("0x2adc25665018aa1fe0e6bc666dac8fc2697ff9ba")

// gnosisSpec builds the built-in Gnosis derived-chain spec. A fresh value is
// returned on every call so callers can adjust it before session setup.
func gnosisSpec() *DerivedSpec {
	feeRecipient := gnosisFeeRecipient
	genesisHash := gnosisGenesisHash
	return &DerivedSpec{
		Name:    "gnosis",
		ChainID: big.NewInt(gnosisChainID),
		Overrides: ParamOverrides{
			BlobBaseFeeUpdateFraction: uint64ptr(gnosisBlobBaseFeeUpdateFraction),
			TargetBlobsPerBlock:       uint64ptr(gnosisTargetBlobsPerBlock),
			MaxBlobsPerBlock:          uint64ptr(gnosisMaxBlobsPerBlock),
		},
		Env: EnvDefaults{
			GasLimit:      uint64ptr(gnosisGasLimit),
			Number:        uint64ptr(1),
			Timestamp:     uint64ptr(1000),
			BaseFee:       uint64ptr(gnosisBaseFee),
			Difficulty:    uint64ptr(gnosisDifficulty),
			ExcessBlobGas: uint64ptr(0),
			FeeRecipient:  &feeRecipient,
		},
		ExtraAllocs: []AllocSet{
			gnosisChainAccounts(),
			gnosisSystemContracts(),
			gnosisPreFundedAccounts(),
		},
		GenesisHash:      &genesisHash,
		PatchGenesisHash: true,
	}
}

func gnosisChainAccounts() AllocSet {
	return AllocSet{
		Name: "gnosis-chain-accounts",
		Accounts: types.GenesisAlloc{
			common.HexToAddress("0x0000000000000000000000000000000000000000"): {
				Balance: big.NewInt(3),
				Nonce:   2,
			},
			common.HexToAddress("0x1234567890123456789012345678901234567890"): {
				Balance: hexBig("0x56bc75e2d630eb20"),
			},
		},
	}
}

func gnosisSystemContracts() AllocSet {
	return AllocSet{
		Name: "gnosis-system-contracts",
		Accounts: types.GenesisAlloc{
			// BLS12-381 precompile test contract.
			common.HexToAddress("0x0000000000000000000000000000000000001000"): {
				Balance: new(big.Int),
				Nonce:   1,
				Code:    common.FromHex("0x366000600037600060003660006000600b610177f16000553d6001553d600060003e3d600020600255"),
			},
		},
	}
}

func gnosisPreFundedAccounts() AllocSet {
	return AllocSet{
		Name: "gnosis-pre-funded-accounts",
		Accounts: types.GenesisAlloc{
			// Standard test account, funded with 1 ether.
			common.HexToAddress("0xa94f5374fce5edbc8e2a8697c15331677e6ebf0b"): {
				Balance: hexBig("0x0de0b6b3a7640000"),
			},
		},
	}
}

func uint64ptr(v uint64) *uint64 {
	return &v
}

func hexBig(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 0)
	if !ok {
		panic("invalid hex constant " + s)
	}
	return v
}
