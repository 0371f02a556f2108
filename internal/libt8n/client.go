// Package libt8n drives an external state-transition engine. The engine reads
// one JSON document holding the pre-state, transactions and environment from
// stdin and writes one document holding the post-state allocation and result
// metadata to stdout; everything else about it is a black box.
package libt8n

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"time"

	"github.com/ethereum/fixturegen/internal/libenv"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"gopkg.in/inconshreveable/log15.v2"
)

// DefaultBinary is the engine executable looked up in PATH when the client
// does not name one.
const DefaultBinary = "evm"

var engineArgs = []string{
	"t8n",
	"--input.alloc=stdin",
	"--input.txs=stdin",
	"--input.env=stdin",
	"--output.result=stdout",
	"--output.alloc=stdout",
}

// Client invokes the external engine. The zero value is usable; clients hold
// no state between calls and are safe for concurrent use.
type Client struct {
	Binary  string        // engine executable, DefaultBinary when empty
	Timeout time.Duration // wall-clock limit per evaluation, 0 = none
	Log     log15.Logger  // defaults to log15.Root()
}

// Request is one self-contained transition: pre-state, ordered transactions
// and environment. It serializes to the engine's input document.
type Request struct {
	Alloc types.GenesisAlloc   `json:"alloc"`
	Txs   []*types.Transaction `json:"txs"`
	Env   *libenv.Environment  `json:"env"`
}

// Response is a complete engine answer. There are no partial responses: a
// Response is only returned when both required documents were decoded.
type Response struct {
	Alloc  types.GenesisAlloc
	Result *Result
}

// Result is the per-block metadata the engine reports alongside the
// post-state. Keys beyond these are ignored per the wire contract.
type Result struct {
	StateRoot    common.Hash          `json:"stateRoot"`
	TxRoot       common.Hash          `json:"txRoot"`
	ReceiptsRoot common.Hash          `json:"receiptsRoot"`
	LogsBloom    hexutil.Bytes        `json:"logsBloom"`
	GasUsed      math.HexOrDecimal64  `json:"gasUsed"`
	BlobGasUsed  *math.HexOrDecimal64 `json:"blobGasUsed,omitempty"`
	Rejected     []RejectedTx         `json:"rejected,omitempty"`
}

// RejectedTx identifies a transaction the engine refused to include.
type RejectedTx struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// Evaluate runs one state transition through the engine. The call is
// synchronous and performs no retries: a failed transition usually means the
// request is wrong, not that the engine is flaky. Failures are surfaced as
// *EngineExecutionError, *DecodingError or *IncompleteResponseError.
func (c *Client) Evaluate(ctx context.Context, req *Request) (*Response, error) {
	if req.Env == nil {
		return nil, errors.New("transition request has no environment")
	}
	input, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "encoding transition request")
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	binary := c.Binary
	if binary == "" {
		binary = DefaultBinary
	}
	logger := c.Log
	if logger == nil {
		logger = log15.Root()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, engineArgs...)
	cmd.Stdin = bytes.NewReader(input)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Debug("invoking transition engine", "binary", binary, "txs", len(req.Txs), "accounts", len(req.Alloc))
	start := time.Now()
	err = cmd.Run()
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, &EngineExecutionError{Binary: binary, Output: stderr.String(), Err: err}
	}
	logger.Debug("transition engine done", "binary", binary, "elapsed", time.Since(start))

	return decodeResponse(stdout.Bytes())
}

func decodeResponse(output []byte) (*Response, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(output, &doc); err != nil {
		return nil, &DecodingError{Err: err}
	}

	var missing []string
	for _, key := range []string{"alloc", "result"} {
		if _, ok := doc[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, &IncompleteResponseError{Missing: missing}
	}

	resp := &Response{Result: new(Result)}
	if err := json.Unmarshal(doc["alloc"], &resp.Alloc); err != nil {
		return nil, &DecodingError{Err: errors.Wrap(err, "alloc")}
	}
	if err := json.Unmarshal(doc["result"], resp.Result); err != nil {
		return nil, &DecodingError{Err: errors.Wrap(err, "result")}
	}
	return resp, nil
}
