package main

import (
	"context"
	"encoding/json"
	"flag"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/fixturegen/internal/libenv"
	"github.com/ethereum/fixturegen/internal/libfixture"
	"github.com/ethereum/fixturegen/internal/libfork"
	"github.com/ethereum/fixturegen/internal/libheader"
	"github.com/ethereum/fixturegen/internal/libt8n"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"gopkg.in/inconshreveable/log15.v2"
)

// runCommand evaluates scenario files and writes the resulting fixtures.
func runCommand(args []string) {
	var (
		loglevel = flag.Int("loglevel", 3, "Log level (0-5)")
		chain    = flag.String("chain", "", "Built-in derived chain to run (e.g. gnosis)")
		specFile = flag.String("spec", "", "Derived-chain spec file (YAML)")
		base     = flag.String("base", "cancun", "Base fork name")
		t8n      = flag.String("t8n", libt8n.DefaultBinary, "Transition engine binary")
		timeout  = flag.Duration("timeout", 30*time.Second, "Per-scenario engine timeout (0 = none)")
		parallel = flag.Int("parallel", 1, "Number of scenarios evaluated concurrently")
		outdir   = flag.String("output", ".", "Fixture destination folder")

		chainID       = flag.Uint64("chainid", 0, "Chain id override")
		gasLimit      = flag.Uint64("gaslimit", 0, "Default gas limit override")
		number        = flag.Uint64("number", 0, "Default block number override")
		timestamp     = flag.Uint64("timestamp", 0, "Default timestamp override")
		baseFee       = flag.Uint64("basefee", 0, "Default base fee override (wei)")
		difficulty    = flag.Uint64("difficulty", 0, "Default difficulty override")
		excessBlobGas = flag.Uint64("excessblobgas", 0, "Default excess blob gas override")

		updateFraction = flag.Uint64("updatefraction", 0, "Blob base fee update fraction override")
		targetBlobs    = flag.Uint64("targetblobs", 0, "Target blobs per block override")
		maxBlobs       = flag.Uint64("maxblobs", 0, "Max blobs per block override")

		genesisHash = flag.String("genesis-hash", "", "Genesis hash injected as ancestor hash 0")
		patchHash   = flag.Bool("patch-genesis-hash", false, "Enable genesis-hash injection")
	)
	flag.CommandLine.Parse(args)
	if flag.NArg() == 0 {
		fatalf("Usage: fixturegen run [ options ] <scenario.yaml> ...")
	}
	setLogLevel(*loglevel)

	baseFork, err := libfork.ByName(*base)
	if err != nil {
		fatal(err)
	}

	spec := new(libfork.DerivedSpec)
	switch {
	case *chain != "" && *specFile != "":
		fatalf("-chain and -spec are mutually exclusive")
	case *chain != "":
		spec, err = libfork.DerivedByName(*chain)
		if err != nil {
			fatal(err)
		}
	case *specFile != "":
		spec, err = libfork.LoadSpec(*specFile)
		if err != nil {
			fatal(err)
		}
	}

	// Numeric flags can't distinguish zero from unset, so only flags the
	// user actually passed are layered onto the spec.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "chainid":
			spec.ChainID = new(big.Int).SetUint64(*chainID)
		case "gaslimit":
			spec.Env.GasLimit = gasLimit
		case "number":
			spec.Env.Number = number
		case "timestamp":
			spec.Env.Timestamp = timestamp
		case "basefee":
			spec.Env.BaseFee = baseFee
		case "difficulty":
			spec.Env.Difficulty = difficulty
		case "excessblobgas":
			spec.Env.ExcessBlobGas = excessBlobGas
		case "updatefraction":
			spec.Overrides.BlobBaseFeeUpdateFraction = updateFraction
		case "targetblobs":
			spec.Overrides.TargetBlobsPerBlock = targetBlobs
		case "maxblobs":
			spec.Overrides.MaxBlobsPerBlock = maxBlobs
		case "genesis-hash":
			h := common.HexToHash(*genesisHash)
			spec.GenesisHash = &h
		case "patch-genesis-hash":
			spec.PatchGenesisHash = *patchHash
		}
	})

	scenarios := make([]*libfixture.Scenario, 0, flag.NArg())
	for _, path := range flag.Args() {
		sc, err := libfixture.LoadScenario(path)
		if err != nil {
			fatal(err)
		}
		scenarios = append(scenarios, sc)
	}

	runner := &libfixture.Runner{
		Base:     baseFork,
		Spec:     spec,
		Client:   &libt8n.Client{Binary: *t8n, Timeout: *timeout},
		Parallel: *parallel,
	}
	outcomes, err := runner.RunAll(context.Background(), scenarios)
	if err != nil {
		fatal(err)
	}

	failed := 0
	for _, out := range outcomes {
		if out.Err != nil {
			failed++
			continue
		}
		if err := writeFixture(*outdir, spec.Name, out); err != nil {
			fatal(err)
		}
	}
	log15.Info("run finished", "scenarios", len(outcomes), "failed", failed)
	if failed > 0 {
		os.Exit(1)
	}
}

// fixtureOutput is the on-disk fixture format, one file per scenario.
type fixtureOutput struct {
	Name       string              `json:"name"`
	Chain      string              `json:"chain,omitempty"`
	Env        *libenv.Environment `json:"env"`
	Header     *libheader.Header   `json:"header"`
	HeaderHash common.Hash         `json:"headerHash"`
	HeaderRLP  hexutil.Bytes       `json:"headerRLP"`
	Post       types.GenesisAlloc  `json:"post"`
	GasUsed    hexutil.Uint64      `json:"gasUsed"`
	Rejected   []libt8n.RejectedTx `json:"rejected,omitempty"`
}

func writeFixture(outdir, chain string, out *libfixture.Outcome) error {
	fixture := &fixtureOutput{
		Name:       out.Name,
		Chain:      chain,
		Env:        out.Env,
		Header:     out.Header,
		HeaderHash: out.HeaderHash,
		HeaderRLP:  out.HeaderRLP,
		Post:       out.Post,
		GasUsed:    hexutil.Uint64(out.GasUsed),
		Rejected:   out.Rejected,
	}
	data, err := json.MarshalIndent(fixture, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(outdir, fixtureFileName(out.Name))
	log15.Info("writing fixture", "file", path, "hash", out.HeaderHash)
	return os.WriteFile(path, data, 0644)
}

func fixtureFileName(name string) string {
	name = strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	return name + ".json"
}
