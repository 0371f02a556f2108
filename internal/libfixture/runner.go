package libfixture

import (
	"bytes"
	"context"
	"fmt"
	"math/big"

	"github.com/davecgh/go-spew/spew"
	"github.com/ethereum/fixturegen/internal/libenv"
	"github.com/ethereum/fixturegen/internal/libfork"
	"github.com/ethereum/fixturegen/internal/libheader"
	"github.com/ethereum/fixturegen/internal/libt8n"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gopkg.in/inconshreveable/log15.v2"
)

// MismatchError reports a difference between a scenario expectation and the
// computed outcome. Both sides are always included.
type MismatchError struct {
	Scenario string
	Field    string
	Expected any
	Computed any
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("scenario %q: %s mismatch\nexpected: %scomputed: %s",
		e.Scenario, e.Field, render(e.Expected), render(e.Computed))
}

func render(v any) string {
	switch v := v.(type) {
	case common.Hash:
		return v.Hex() + "\n"
	case nil:
		return "<missing>\n"
	default:
		return spew.Sdump(v)
	}
}

// Outcome is the generated fixture for one scenario.
type Outcome struct {
	Name       string
	Env        *libenv.Environment
	Header     *libheader.Header
	HeaderRLP  []byte
	HeaderHash common.Hash
	Post       types.GenesisAlloc
	GasUsed    uint64
	Rejected   []libt8n.RejectedTx

	// Err is set by RunAll when the scenario failed. RunScenario reports
	// failures through its return value instead.
	Err error
}

// Runner generates fixtures for a derived chain. The fork spec is resolved
// once per scenario from the configured base and spec; nothing in the runner
// is mutated while running, so one Runner serves concurrent scenarios.
type Runner struct {
	Base   *libfork.Fork
	Spec   *libfork.DerivedSpec
	Client *libt8n.Client

	// Parallel caps concurrent engine invocations in RunAll. Zero means one.
	Parallel int

	Log log15.Logger
}

func (r *Runner) log() log15.Logger {
	if r.Log != nil {
		return r.Log
	}
	return log15.Root()
}

// RunScenario generates and checks one block fixture. The pipeline is: resolve
// fork parameters, build the environment, merge the scenario pre-state as the
// last allocation set, evaluate the transition, canonicalize the header, then
// compare against the scenario's expectations. The first failing step aborts
// the scenario.
func (r *Runner) RunScenario(ctx context.Context, sc *Scenario) (*Outcome, error) {
	rf, err := libfork.Resolve(r.Base, r.Spec)
	if err != nil {
		return nil, errors.Wrapf(err, "scenario %q: resolving fork", sc.Name)
	}
	env := libenv.Build(rf, sc.Env)

	sets := rf.AllocationSets()
	if len(sc.Pre) > 0 {
		sets = append(sets, libfork.AllocSet{Name: "scenario", Accounts: sc.Pre})
	}
	alloc := libfork.Merge(sets...)

	txs, err := sc.signTxs(rf.ChainID())
	if err != nil {
		return nil, errors.Wrapf(err, "scenario %q: signing transactions", sc.Name)
	}

	r.log().Info("evaluating scenario", "name", sc.Name, "fork", rf.Name(), "txs", len(txs))
	resp, err := r.Client.Evaluate(ctx, &libt8n.Request{Alloc: alloc, Txs: txs, Env: env})
	if err != nil {
		return nil, errors.Wrapf(err, "scenario %q: evaluating transition", sc.Name)
	}

	header := libheader.New(env, r.roots(rf, env, sc, resp))
	enc, hash, err := header.Encode()
	if err != nil {
		return nil, errors.Wrapf(err, "scenario %q: encoding header", sc.Name)
	}

	out := &Outcome{
		Name:       sc.Name,
		Env:        env,
		Header:     header,
		HeaderRLP:  enc,
		HeaderHash: hash,
		Post:       resp.Alloc,
		GasUsed:    uint64(resp.Result.GasUsed),
		Rejected:   resp.Result.Rejected,
	}
	if err := r.verify(sc, out); err != nil {
		return nil, err
	}
	return out, nil
}

// roots assembles the header inputs from the environment and engine result.
// Fields introduced by later forks are filled with their empty-list values
// when the fork has them, since scenarios carry no withdrawals or requests.
func (r *Runner) roots(rf *libfork.ResolvedFork, env *libenv.Environment, sc *Scenario, resp *libt8n.Response) libheader.Roots {
	roots := libheader.Roots{
		ParentHash:   sc.ParentHash,
		StateRoot:    resp.Result.StateRoot,
		TxRoot:       resp.Result.TxRoot,
		ReceiptsRoot: resp.Result.ReceiptsRoot,
		Bloom:        types.BytesToBloom(resp.Result.LogsBloom),
		GasUsed:      uint64(resp.Result.GasUsed),
		BlobGasUsed:  (*uint64)(resp.Result.BlobGasUsed),
	}
	if roots.ParentHash == (common.Hash{}) && env.Number > 0 {
		roots.ParentHash = env.BlockHashes[env.Number-1]
	}
	if rf.Base().Withdrawals {
		h := types.EmptyWithdrawalsHash
		roots.WithdrawalsHash = &h
	}
	if rf.SupportsBlobs() {
		roots.ParentBeaconRoot = &common.Hash{}
	}
	if rf.Base().Requests {
		h := types.EmptyRequestsHash
		roots.RequestsHash = &h
	}
	return roots
}

// verify checks the outcome against the scenario's expectations. Expected post
// accounts must match the computed allocation exactly; unlisted addresses are
// not checked.
func (r *Runner) verify(sc *Scenario, out *Outcome) error {
	for addr, want := range sc.Expect.Post {
		got, ok := out.Post[addr]
		if !ok {
			return &MismatchError{
				Scenario: sc.Name,
				Field:    fmt.Sprintf("post account %v", addr),
				Expected: want,
			}
		}
		if !accountEqual(want, got) {
			return &MismatchError{
				Scenario: sc.Name,
				Field:    fmt.Sprintf("post account %v", addr),
				Expected: want,
				Computed: got,
			}
		}
	}
	if want := sc.Expect.HeaderHash; want != nil && *want != out.HeaderHash {
		return &MismatchError{
			Scenario: sc.Name,
			Field:    "header hash",
			Expected: *want,
			Computed: out.HeaderHash,
		}
	}
	return nil
}

func accountEqual(a, b types.Account) bool {
	if a.Nonce != b.Nonce {
		return false
	}
	if !bigEqual(a.Balance, b.Balance) {
		return false
	}
	if !bytes.Equal(a.Code, b.Code) {
		return false
	}
	if len(a.Storage) != len(b.Storage) {
		return false
	}
	for k, v := range a.Storage {
		if b.Storage[k] != v {
			return false
		}
	}
	return true
}

func bigEqual(a, b *big.Int) bool {
	if a == nil {
		a = new(big.Int)
	}
	if b == nil {
		b = new(big.Int)
	}
	return a.Cmp(b) == 0
}

// RunAll evaluates all scenarios, at most Parallel at a time. Configuration
// errors fail the whole batch before any engine invocation; per-scenario
// failures are recorded in the outcome's Err field and do not stop the other
// scenarios. Outcomes are returned in input order.
func (r *Runner) RunAll(ctx context.Context, scenarios []*Scenario) ([]*Outcome, error) {
	if _, err := libfork.Resolve(r.Base, r.Spec); err != nil {
		return nil, err
	}

	outcomes := make([]*Outcome, len(scenarios))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.Parallel, 1))
	for i, sc := range scenarios {
		g.Go(func() error {
			out, err := r.RunScenario(ctx, sc)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				r.log().Error("scenario failed", "name", sc.Name, "err", err)
				out = &Outcome{Name: sc.Name, Err: err}
			}
			outcomes[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}
