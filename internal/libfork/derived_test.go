package libfork_test

import (
	"math/big"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ethereum/fixturegen/internal/libfork"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
)

func uint64ptr(v uint64) *uint64 { return &v }

func TestResolveOverridePrecedence(t *testing.T) {
	spec := &libfork.DerivedSpec{
		Overrides: libfork.ParamOverrides{
			TargetBlobsPerBlock: uint64ptr(1),
			MaxBlobsPerBlock:    uint64ptr(2),
		},
	}
	rf, err := libfork.Resolve(libfork.Cancun, spec)
	if err != nil {
		t.Fatal(err)
	}

	if got := rf.TargetBlobsPerBlock(0, 0); got != 1 {
		t.Errorf("target = %d, want 1 (override)", got)
	}
	if got := rf.MaxBlobsPerBlock(0, 0); got != 2 {
		t.Errorf("max = %d, want 2 (override)", got)
	}
	// No override given, so the base fork's value applies.
	if got := rf.BlobBaseFeeUpdateFraction(0, 0); got != 3338477 {
		t.Errorf("update fraction = %d, want cancun default", got)
	}
}

func TestResolveValidatesBlobCounts(t *testing.T) {
	spec := &libfork.DerivedSpec{
		Overrides: libfork.ParamOverrides{
			TargetBlobsPerBlock: uint64ptr(7),
			MaxBlobsPerBlock:    uint64ptr(2),
		},
	}
	_, err := libfork.Resolve(libfork.Cancun, spec)
	if err == nil {
		t.Fatal("expected configuration error")
	}
	if _, ok := err.(*libfork.ConfigurationError); !ok {
		t.Fatalf("error has type %T, want *ConfigurationError", err)
	}
}

func TestResolveBlobOverrideOnPreBlobFork(t *testing.T) {
	// Blob overrides against a pre-blob base fork are a documented no-op,
	// even contradictory ones: a shared spec must stay usable across forks.
	spec := &libfork.DerivedSpec{
		Overrides: libfork.ParamOverrides{
			TargetBlobsPerBlock: uint64ptr(7),
			MaxBlobsPerBlock:    uint64ptr(2),
		},
	}
	rf, err := libfork.Resolve(libfork.Shanghai, spec)
	if err != nil {
		t.Fatal(err)
	}
	if rf.SupportsBlobs() {
		t.Error("shanghai should not support blobs")
	}
	if got := rf.MaxBlobsPerBlock(0, 0); got != 0 {
		t.Errorf("max = %d, want 0 on pre-blob fork", got)
	}
}

func TestResolveIdempotent(t *testing.T) {
	spec := &libfork.DerivedSpec{
		Name:    "test",
		ChainID: big.NewInt(515),
		Overrides: libfork.ParamOverrides{
			MaxBlobsPerBlock: uint64ptr(4),
		},
		ExtraAllocs: []libfork.AllocSet{
			{Name: "extra", Accounts: types.GenesisAlloc{addrA: {Balance: big.NewInt(5)}}},
		},
	}
	rf1, err := libfork.Resolve(libfork.Cancun, spec)
	if err != nil {
		t.Fatal(err)
	}
	rf2, err := libfork.Resolve(libfork.Cancun, spec)
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(rf1.Allocation(), rf2.Allocation()) {
		t.Error("allocations differ between identical resolves")
	}
	if rf1.MaxBlobsPerBlock(0, 0) != rf2.MaxBlobsPerBlock(0, 0) {
		t.Error("parameters differ between identical resolves")
	}
	if rf1.ChainID().Cmp(rf2.ChainID()) != 0 {
		t.Error("chain ids differ between identical resolves")
	}
}

func TestResolveAllocationOrder(t *testing.T) {
	// The extra set shadows the base fork's system contract account.
	spec := &libfork.DerivedSpec{
		ExtraAllocs: []libfork.AllocSet{
			{Name: "shadow", Accounts: types.GenesisAlloc{
				params.BeaconRootsAddress: {Balance: big.NewInt(12345)},
			}},
		},
	}
	rf, err := libfork.Resolve(libfork.Cancun, spec)
	if err != nil {
		t.Fatal(err)
	}
	account := rf.Allocation()[params.BeaconRootsAddress]
	if account.Balance.Cmp(big.NewInt(12345)) != 0 {
		t.Errorf("balance = %v, want shadowed value", account.Balance)
	}
	if account.Code != nil {
		t.Error("shadowing set should replace the whole account")
	}
}

func TestResolveBaseForkPin(t *testing.T) {
	spec := &libfork.DerivedSpec{Name: "pinned", BaseFork: "cancun"}
	if _, err := libfork.Resolve(libfork.Cancun, spec); err != nil {
		t.Errorf("matching pin: %v", err)
	}
	if _, err := libfork.Resolve(libfork.Prague, spec); err == nil {
		t.Error("mismatched pin should fail")
	}
}

func TestResolveGenesisHashRequired(t *testing.T) {
	spec := &libfork.DerivedSpec{PatchGenesisHash: true}
	if _, err := libfork.Resolve(libfork.Cancun, spec); err == nil {
		t.Error("patching without a hash should fail")
	}
}

func TestGnosisSpec(t *testing.T) {
	spec, err := libfork.DerivedByName("gnosis")
	if err != nil {
		t.Fatal(err)
	}
	rf, err := libfork.Resolve(libfork.Cancun, spec)
	if err != nil {
		t.Fatal(err)
	}

	if rf.ChainID().Uint64() != 100 {
		t.Errorf("chain id = %v, want 100", rf.ChainID())
	}
	if got := rf.BlobBaseFeeUpdateFraction(0, 0); got != 2504285 {
		t.Errorf("update fraction = %d, want 2504285", got)
	}
	if got := rf.TargetBlobsPerBlock(0, 0); got != 1 {
		t.Errorf("target = %d, want 1", got)
	}
	if got := rf.MaxBlobsPerBlock(0, 0); got != 2 {
		t.Errorf("max = %d, want 2", got)
	}
	if hash := rf.GenesisHash(); hash == nil || hash.Hex() != "0x92f2bad26c57198059f54c809a588e2acdd8ed140dd92683d570d1d5f83aa9a0" {
		t.Errorf("genesis hash = %v", hash)
	}

	alloc := rf.Allocation()
	funded := alloc[common.HexToAddress("0xa94f5374fce5edbc8e2a8697c15331677e6ebf0b")]
	if funded.Balance == nil || funded.Balance.Cmp(big.NewInt(1000000000000000000)) != 0 {
		t.Errorf("pre-funded balance = %v, want 1 ether", funded.Balance)
	}
	if _, ok := alloc[params.BeaconRootsAddress]; !ok {
		t.Error("base fork system contract missing from merged allocation")
	}
}

func TestLoadSpec(t *testing.T) {
	const file = `
name: testchain
chainId: 515
baseFork: cancun
params:
  blobBaseFeeUpdateFraction: 1000000
  maxBlobsPerBlock: 4
env:
  gasLimit: 10000000
  baseFeePerGas: 1000000000
feeRecipient: "0x2adc25665018aa1fe0e6bc666dac8fc2697ff9ba"
genesisHash: "0x92f2bad26c57198059f54c809a588e2acdd8ed140dd92683d570d1d5f83aa9a0"
patchGenesisHash: true
allocations:
  - name: accounts
    accounts:
      "0xa94f5374fce5edbc8e2a8697c15331677e6ebf0b":
        balance: "0x0de0b6b3a7640000"
`
	path := filepath.Join(t.TempDir(), "testchain.yaml")
	if err := os.WriteFile(path, []byte(file), 0644); err != nil {
		t.Fatal(err)
	}

	spec, err := libfork.LoadSpec(path)
	if err != nil {
		t.Fatal(err)
	}
	if spec.Name != "testchain" || spec.BaseFork != "cancun" {
		t.Errorf("name/base = %q/%q", spec.Name, spec.BaseFork)
	}
	if spec.ChainID.Uint64() != 515 {
		t.Errorf("chain id = %v", spec.ChainID)
	}
	if spec.Overrides.BlobBaseFeeUpdateFraction == nil || *spec.Overrides.BlobBaseFeeUpdateFraction != 1000000 {
		t.Error("missing update fraction override")
	}
	if spec.Overrides.TargetBlobsPerBlock != nil {
		t.Error("target override should be unset")
	}
	if spec.Env.GasLimit == nil || *spec.Env.GasLimit != 10000000 {
		t.Error("missing gas limit default")
	}
	if spec.Env.FeeRecipient == nil {
		t.Error("missing fee recipient")
	}
	if !spec.PatchGenesisHash || spec.GenesisHash == nil {
		t.Error("missing genesis hash")
	}
	if len(spec.ExtraAllocs) != 1 || len(spec.ExtraAllocs[0].Accounts) != 1 {
		t.Errorf("allocations = %+v", spec.ExtraAllocs)
	}
}
