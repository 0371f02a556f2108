package libheader

import (
	"encoding/json"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/core/types"
)

// jsonHeader is the named-field document accepted by the verification tool.
// Field names match the canonical header schema used by client RPC output.
type jsonHeader struct {
	ParentHash       *common.Hash          `json:"parentHash"`
	UncleHash        *common.Hash          `json:"sha3Uncles"`
	Coinbase         *common.Address       `json:"miner"`
	Root             *common.Hash          `json:"stateRoot"`
	TxHash           *common.Hash          `json:"transactionsRoot"`
	ReceiptHash      *common.Hash          `json:"receiptsRoot"`
	Bloom            *types.Bloom          `json:"logsBloom"`
	Difficulty       *math.HexOrDecimal256 `json:"difficulty"`
	Number           *math.HexOrDecimal256 `json:"number"`
	GasLimit         *math.HexOrDecimal64  `json:"gasLimit"`
	GasUsed          *math.HexOrDecimal64  `json:"gasUsed"`
	Time             *math.HexOrDecimal64  `json:"timestamp"`
	Extra            *hexutil.Bytes        `json:"extraData"`
	MixDigest        *common.Hash          `json:"mixHash"`
	Nonce            *types.BlockNonce     `json:"nonce"`
	BaseFee          *math.HexOrDecimal256 `json:"baseFeePerGas,omitempty"`
	WithdrawalsHash  *common.Hash          `json:"withdrawalsRoot,omitempty"`
	BlobGasUsed      *math.HexOrDecimal64  `json:"blobGasUsed,omitempty"`
	ExcessBlobGas    *math.HexOrDecimal64  `json:"excessBlobGas,omitempty"`
	ParentBeaconRoot *common.Hash          `json:"parentBeaconBlockRoot,omitempty"`
	RequestsHash     *common.Hash          `json:"requestsHash,omitempty"`
}

// UnmarshalJSON decodes a header document. Missing required fields are
// reported by name; optional fork-specific fields default to absent.
func (h *Header) UnmarshalJSON(input []byte) error {
	var dec jsonHeader
	if err := json.Unmarshal(input, &dec); err != nil {
		return err
	}
	if dec.ParentHash == nil {
		return errors.New("missing required field 'parentHash' for header")
	}
	h.ParentHash = *dec.ParentHash
	h.UncleHash = types.EmptyUncleHash
	if dec.UncleHash != nil {
		h.UncleHash = *dec.UncleHash
	}
	if dec.Coinbase != nil {
		h.Coinbase = *dec.Coinbase
	}
	if dec.Root == nil {
		return errors.New("missing required field 'stateRoot' for header")
	}
	h.Root = *dec.Root
	h.TxHash = types.EmptyTxsHash
	if dec.TxHash != nil {
		h.TxHash = *dec.TxHash
	}
	h.ReceiptHash = types.EmptyReceiptsHash
	if dec.ReceiptHash != nil {
		h.ReceiptHash = *dec.ReceiptHash
	}
	if dec.Bloom != nil {
		h.Bloom = *dec.Bloom
	}
	h.Difficulty = new(big.Int)
	if dec.Difficulty != nil {
		h.Difficulty = (*big.Int)(dec.Difficulty)
	}
	if dec.Number == nil {
		return errors.New("missing required field 'number' for header")
	}
	h.Number = (*big.Int)(dec.Number)
	if dec.GasLimit == nil {
		return errors.New("missing required field 'gasLimit' for header")
	}
	h.GasLimit = uint64(*dec.GasLimit)
	if dec.GasUsed != nil {
		h.GasUsed = uint64(*dec.GasUsed)
	}
	if dec.Time == nil {
		return errors.New("missing required field 'timestamp' for header")
	}
	h.Time = uint64(*dec.Time)
	if dec.Extra != nil {
		h.Extra = *dec.Extra
	}
	if dec.MixDigest != nil {
		h.MixDigest = *dec.MixDigest
	}
	if dec.Nonce != nil {
		h.Nonce = *dec.Nonce
	}
	h.BaseFee = (*big.Int)(dec.BaseFee)
	h.WithdrawalsHash = dec.WithdrawalsHash
	h.BlobGasUsed = (*uint64)(dec.BlobGasUsed)
	h.ExcessBlobGas = (*uint64)(dec.ExcessBlobGas)
	h.ParentBeaconRoot = dec.ParentBeaconRoot
	h.RequestsHash = dec.RequestsHash
	return nil
}

// MarshalJSON encodes the header with the canonical field names.
func (h *Header) MarshalJSON() ([]byte, error) {
	extra := hexutil.Bytes(h.Extra)
	enc := jsonHeader{
		ParentHash:       &h.ParentHash,
		UncleHash:        &h.UncleHash,
		Coinbase:         &h.Coinbase,
		Root:             &h.Root,
		TxHash:           &h.TxHash,
		ReceiptHash:      &h.ReceiptHash,
		Bloom:            &h.Bloom,
		Difficulty:       (*math.HexOrDecimal256)(h.Difficulty),
		Number:           (*math.HexOrDecimal256)(h.Number),
		GasLimit:         (*math.HexOrDecimal64)(&h.GasLimit),
		GasUsed:          (*math.HexOrDecimal64)(&h.GasUsed),
		Time:             (*math.HexOrDecimal64)(&h.Time),
		Extra:            &extra,
		MixDigest:        &h.MixDigest,
		Nonce:            &h.Nonce,
		BaseFee:          (*math.HexOrDecimal256)(h.BaseFee),
		WithdrawalsHash:  h.WithdrawalsHash,
		BlobGasUsed:      (*math.HexOrDecimal64)(h.BlobGasUsed),
		ExcessBlobGas:    (*math.HexOrDecimal64)(h.ExcessBlobGas),
		ParentBeaconRoot: h.ParentBeaconRoot,
		RequestsHash:     h.RequestsHash,
	}
	return json.Marshal(&enc)
}
