// Package libfork holds the fork parameter registry and the derived-chain
// composition model. A Fork is a named, versioned set of consensus defaults;
// a DerivedSpec layers overrides and extra genesis accounts on top of one, and
// Resolve combines the two into a read-only view without ever mutating the base.
package libfork

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
)

// BlobConfig holds the blob consensus parameters of a fork.
type BlobConfig struct {
	Target         uint64 // target blobs per block
	Max            uint64 // max blobs per block
	UpdateFraction uint64 // blob base fee update fraction
}

// Fork describes a base fork's consensus defaults. Values are registered once
// at init and treated as immutable: accessors hand out copies where the
// underlying data is a map or slice.
type Fork struct {
	Name string

	// PoS marks forks where block headers carry prevRandao instead of a
	// real difficulty value.
	PoS bool

	// Withdrawals and Requests mark the header fields introduced by the
	// shanghai and prague eras respectively.
	Withdrawals bool
	Requests    bool

	// Blobs is nil for forks predating blob transactions.
	Blobs *BlobConfig

	// preAlloc holds the fork's pre-allocation sets in merge order.
	preAlloc []AllocSet
}

// SupportsBlobs reports whether the fork has blob parameters at all.
func (f *Fork) SupportsBlobs() bool {
	return f.Blobs != nil
}

// BlobBaseFeeUpdateFraction returns the blob base fee update fraction at the
// given block position. It is zero for pre-blob forks.
func (f *Fork) BlobBaseFeeUpdateFraction(number, timestamp uint64) uint64 {
	if f.Blobs == nil {
		return 0
	}
	return f.Blobs.UpdateFraction
}

// TargetBlobsPerBlock returns the target blob count at the given block position.
func (f *Fork) TargetBlobsPerBlock(number, timestamp uint64) uint64 {
	if f.Blobs == nil {
		return 0
	}
	return f.Blobs.Target
}

// MaxBlobsPerBlock returns the blob limit at the given block position.
func (f *Fork) MaxBlobsPerBlock(number, timestamp uint64) uint64 {
	if f.Blobs == nil {
		return 0
	}
	return f.Blobs.Max
}

// AllocationSets returns the fork's pre-allocation sets in merge order.
func (f *Fork) AllocationSets() []AllocSet {
	sets := make([]AllocSet, len(f.preAlloc))
	copy(sets, f.preAlloc)
	return sets
}

// PreAllocation returns the fork's merged pre-allocation.
func (f *Fork) PreAllocation() types.GenesisAlloc {
	return Merge(f.preAlloc...)
}

var registry = make(map[string]*Fork)

func register(f *Fork) *Fork {
	registry[f.Name] = f
	return f
}

// Base forks in order of introduction. The registered sets mirror the system
// contracts each fork deploys at genesis.
var (
	London = register(&Fork{
		Name: "london",
	})
	Paris = register(&Fork{
		Name: "paris",
		PoS:  true,
	})
	Shanghai = register(&Fork{
		Name:        "shanghai",
		PoS:         true,
		Withdrawals: true,
	})
	Cancun = register(&Fork{
		Name:        "cancun",
		PoS:         true,
		Withdrawals: true,
		Blobs:       &BlobConfig{Target: 3, Max: 6, UpdateFraction: 3338477},
		preAlloc:    []AllocSet{cancunSystemContracts()},
	})
	Prague = register(&Fork{
		Name:        "prague",
		PoS:         true,
		Withdrawals: true,
		Requests:    true,
		Blobs:       &BlobConfig{Target: 6, Max: 9, UpdateFraction: 5007716},
		preAlloc:    []AllocSet{cancunSystemContracts(), pragueSystemContracts()},
	})
)

func cancunSystemContracts() AllocSet {
	return AllocSet{
		Name: "cancun-system-contracts",
		Accounts: types.GenesisAlloc{
			params.BeaconRootsAddress: {Balance: big.NewInt(42), Code: params.BeaconRootsCode},
		},
	}
}

func pragueSystemContracts() AllocSet {
	return AllocSet{
		Name: "prague-system-contracts",
		Accounts: types.GenesisAlloc{
			params.HistoryStorageAddress:     {Balance: big.NewInt(1), Code: params.HistoryStorageCode},
			params.WithdrawalQueueAddress:    {Balance: big.NewInt(1), Code: params.WithdrawalQueueCode},
			params.ConsolidationQueueAddress: {Balance: big.NewInt(1), Code: params.ConsolidationQueueCode},
		},
	}
}

// ByName looks up a registered base fork.
func ByName(name string) (*Fork, error) {
	f := registry[name]
	if f == nil {
		return nil, fmt.Errorf("unknown base fork %q (known: %v)", name, Names())
	}
	return f, nil
}

// Names returns the registered fork names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
