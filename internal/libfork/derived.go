package libfork

import (
	"fmt"
	"math/big"
	"os"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/goccy/go-yaml"
)

// ConfigurationError reports invalid or contradictory parameter overrides.
// It is always raised before any engine invocation.
type ConfigurationError struct {
	Detail string
}

func (e *ConfigurationError) Error() string {
	return "invalid chain configuration: " + e.Detail
}

// ParamOverrides selects consensus parameters to replace on the base fork.
// Nil fields defer to the base fork's value.
type ParamOverrides struct {
	BlobBaseFeeUpdateFraction *uint64 `yaml:"blobBaseFeeUpdateFraction"`
	TargetBlobsPerBlock       *uint64 `yaml:"targetBlobsPerBlock"`
	MaxBlobsPerBlock          *uint64 `yaml:"maxBlobsPerBlock"`
}

// EnvDefaults are the derived chain's default block-environment values. They
// replace the base fork's environment template field-by-field; nil fields keep
// the template value. Per-scenario overrides are layered on top of these by the
// environment builder.
type EnvDefaults struct {
	GasLimit      *uint64         `yaml:"gasLimit"`
	Number        *uint64         `yaml:"number"`
	Timestamp     *uint64         `yaml:"timestamp"`
	BaseFee       *uint64         `yaml:"baseFeePerGas"`
	Difficulty    *uint64         `yaml:"difficulty"`
	ExcessBlobGas *uint64         `yaml:"excessBlobGas"`
	FeeRecipient  *common.Address `yaml:"-"`
}

// DerivedSpec describes a chain variant that overrides a subset of a base
// fork's parameters and pre-allocated accounts. A spec is constructed once per
// session from CLI-level configuration and must not be mutated afterwards;
// Resolve copies everything it reads.
type DerivedSpec struct {
	Name    string
	ChainID *big.Int

	// BaseFork optionally pins the spec to one base fork. When empty, the
	// spec can be resolved against any registered fork.
	BaseFork string

	Overrides ParamOverrides
	Env       EnvDefaults

	// ExtraAllocs are merged over the base fork's pre-allocation in order.
	ExtraAllocs []AllocSet

	// GenesisHash is the externally-observed hash of the derived chain's
	// genesis block. It is configuration data, not computed here.
	// PatchGenesisHash enables injecting it as ancestor hash 0 when
	// building environments.
	GenesisHash      *common.Hash
	PatchGenesisHash bool
}

// ResolvedFork is the composition of a base fork and a derived-chain spec.
// Parameter accessors apply the ordinary override-precedence rule; the base
// Fork value is never touched.
type ResolvedFork struct {
	base    *Fork
	spec    DerivedSpec
	sets    []AllocSet
	chainID *big.Int
}

// Resolve layers spec onto base. It validates the effective parameters and
// returns a read-only view; calling it twice with the same inputs yields
// identical output. A nil spec resolves the base fork unchanged.
func Resolve(base *Fork, spec *DerivedSpec) (*ResolvedFork, error) {
	if base == nil {
		return nil, &ConfigurationError{Detail: "no base fork given"}
	}
	if spec == nil {
		spec = &DerivedSpec{}
	}
	if spec.BaseFork != "" && spec.BaseFork != base.Name {
		return nil, &ConfigurationError{
			Detail: fmt.Sprintf("spec %q requires base fork %q, got %q", spec.Name, spec.BaseFork, base.Name),
		}
	}
	if spec.PatchGenesisHash && spec.GenesisHash == nil {
		return nil, &ConfigurationError{Detail: "genesis hash patching enabled but no genesis hash configured"}
	}

	rf := &ResolvedFork{
		base:    base,
		spec:    copySpec(spec),
		sets:    append(base.AllocationSets(), spec.ExtraAllocs...),
		chainID: big.NewInt(1),
	}
	if spec.ChainID != nil {
		rf.chainID = new(big.Int).Set(spec.ChainID)
	}

	// Blob overrides against a pre-blob fork are accepted but unobservable,
	// so validation only applies when the base fork has blob parameters.
	if base.SupportsBlobs() {
		target := rf.TargetBlobsPerBlock(0, 0)
		max := rf.MaxBlobsPerBlock(0, 0)
		if target > max {
			return nil, &ConfigurationError{
				Detail: fmt.Sprintf("target blobs per block (%d) exceeds max blobs per block (%d)", target, max),
			}
		}
	}
	return rf, nil
}

func copySpec(spec *DerivedSpec) DerivedSpec {
	out := *spec
	if spec.ChainID != nil {
		out.ChainID = new(big.Int).Set(spec.ChainID)
	}
	if spec.GenesisHash != nil {
		h := *spec.GenesisHash
		out.GenesisHash = &h
	}
	out.ExtraAllocs = make([]AllocSet, len(spec.ExtraAllocs))
	copy(out.ExtraAllocs, spec.ExtraAllocs)
	return out
}

// Name returns the derived chain name, or the base fork name for a plain spec.
func (rf *ResolvedFork) Name() string {
	if rf.spec.Name != "" {
		return rf.spec.Name
	}
	return rf.base.Name
}

// Base returns the underlying base fork.
func (rf *ResolvedFork) Base() *Fork {
	return rf.base
}

// ChainID returns the derived chain's id.
func (rf *ResolvedFork) ChainID() *big.Int {
	return new(big.Int).Set(rf.chainID)
}

// SupportsBlobs reports whether the base fork has blob parameters.
func (rf *ResolvedFork) SupportsBlobs() bool {
	return rf.base.SupportsBlobs()
}

// BlobBaseFeeUpdateFraction returns the override when set, else the base
// fork's value at the given block position. Overrides on a pre-blob base fork
// have no observable effect.
func (rf *ResolvedFork) BlobBaseFeeUpdateFraction(number, timestamp uint64) uint64 {
	if !rf.base.SupportsBlobs() {
		return 0
	}
	if v := rf.spec.Overrides.BlobBaseFeeUpdateFraction; v != nil {
		return *v
	}
	return rf.base.BlobBaseFeeUpdateFraction(number, timestamp)
}

// TargetBlobsPerBlock returns the effective target blob count.
func (rf *ResolvedFork) TargetBlobsPerBlock(number, timestamp uint64) uint64 {
	if !rf.base.SupportsBlobs() {
		return 0
	}
	if v := rf.spec.Overrides.TargetBlobsPerBlock; v != nil {
		return *v
	}
	return rf.base.TargetBlobsPerBlock(number, timestamp)
}

// MaxBlobsPerBlock returns the effective blob limit.
func (rf *ResolvedFork) MaxBlobsPerBlock(number, timestamp uint64) uint64 {
	if !rf.base.SupportsBlobs() {
		return 0
	}
	if v := rf.spec.Overrides.MaxBlobsPerBlock; v != nil {
		return *v
	}
	return rf.base.MaxBlobsPerBlock(number, timestamp)
}

// EnvDefaults returns the spec's environment default overrides.
func (rf *ResolvedFork) EnvDefaults() EnvDefaults {
	return rf.spec.Env
}

// GenesisHash returns the configured genesis hash when patching is enabled,
// and nil otherwise.
func (rf *ResolvedFork) GenesisHash() *common.Hash {
	if !rf.spec.PatchGenesisHash || rf.spec.GenesisHash == nil {
		return nil
	}
	h := *rf.spec.GenesisHash
	return &h
}

// AllocationSets returns all allocation sets in merge order: the base fork's
// sets first, then the spec's extra sets.
func (rf *ResolvedFork) AllocationSets() []AllocSet {
	sets := make([]AllocSet, len(rf.sets))
	copy(sets, rf.sets)
	return sets
}

// Allocation returns the fully merged pre-allocation. The returned map is
// fresh on every call.
func (rf *ResolvedFork) Allocation() types.GenesisAlloc {
	return Merge(rf.sets...)
}

// specFile is the YAML schema of a derived-chain spec file.
type specFile struct {
	Name             string         `yaml:"name"`
	ChainID          uint64         `yaml:"chainId"`
	BaseFork         string         `yaml:"baseFork"`
	Params           ParamOverrides `yaml:"params"`
	Env              EnvDefaults    `yaml:"env"`
	FeeRecipient     string         `yaml:"feeRecipient"`
	GenesisHash      string         `yaml:"genesisHash"`
	PatchGenesisHash bool           `yaml:"patchGenesisHash"`
	Allocations      []struct {
		Name     string                `yaml:"name"`
		Accounts map[string]AccountDef `yaml:"accounts"`
	} `yaml:"allocations"`
}

// LoadSpec reads a derived-chain spec from a YAML file.
func LoadSpec(path string) (*DerivedSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file specFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, &ConfigurationError{Detail: fmt.Sprintf("can't parse spec file %s: %v", path, err)}
	}

	spec := &DerivedSpec{
		Name:             file.Name,
		BaseFork:         file.BaseFork,
		Overrides:        file.Params,
		Env:              file.Env,
		PatchGenesisHash: file.PatchGenesisHash,
	}
	if file.ChainID != 0 {
		spec.ChainID = new(big.Int).SetUint64(file.ChainID)
	}
	if file.FeeRecipient != "" {
		addr := common.HexToAddress(file.FeeRecipient)
		spec.Env.FeeRecipient = &addr
	}
	if file.GenesisHash != "" {
		h := common.HexToHash(file.GenesisHash)
		spec.GenesisHash = &h
	}
	for _, set := range file.Allocations {
		accounts, err := ParseAlloc(set.Accounts)
		if err != nil {
			return nil, err
		}
		spec.ExtraAllocs = append(spec.ExtraAllocs, AllocSet{Name: set.Name, Accounts: accounts})
	}
	return spec, nil
}

// DerivedByName returns a built-in derived-chain spec.
func DerivedByName(name string) (*DerivedSpec, error) {
	builder := derivedChains[name]
	if builder == nil {
		return nil, fmt.Errorf("unknown derived chain %q (known: %v)", name, DerivedNames())
	}
	return builder(), nil
}

// DerivedNames returns the built-in derived chain names, sorted.
func DerivedNames() []string {
	names := make([]string, 0, len(derivedChains))
	for name := range derivedChains {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var derivedChains = map[string]func() *DerivedSpec{
	"gnosis": gnosisSpec,
}
