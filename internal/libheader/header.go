// Package libheader canonicalizes block headers: it serializes the fixed
// header field sequence to RLP and computes the keccak256 hash clients use as
// the block identifier. Both fixture generation and ad-hoc verification go
// through the same pure functions.
package libheader

import (
	"math/big"

	"github.com/ethereum/fixturegen/internal/libenv"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// Header holds the canonical block header fields in encoding order. Integer
// fields follow the reference chain's RLP rules: minimal big-endian bytes,
// zero encodes as an empty string. Fields introduced by later forks are
// optional and dropped from the tail of the list when unset.
type Header struct {
	ParentHash  common.Hash
	UncleHash   common.Hash
	Coinbase    common.Address
	Root        common.Hash
	TxHash      common.Hash
	ReceiptHash common.Hash
	Bloom       types.Bloom
	Difficulty  *big.Int
	Number      *big.Int
	GasLimit    uint64
	GasUsed     uint64
	Time        uint64
	Extra       []byte
	MixDigest   common.Hash
	Nonce       types.BlockNonce

	BaseFee          *big.Int     `rlp:"optional"`
	WithdrawalsHash  *common.Hash `rlp:"optional"`
	BlobGasUsed      *uint64      `rlp:"optional"`
	ExcessBlobGas    *uint64      `rlp:"optional"`
	ParentBeaconRoot *common.Hash `rlp:"optional"`
	RequestsHash     *common.Hash `rlp:"optional"`
}

// Encode returns the canonical RLP encoding of the header and its hash.
// Identical inputs always produce identical output.
func (h *Header) Encode() ([]byte, common.Hash, error) {
	enc, err := rlp.EncodeToBytes(h)
	if err != nil {
		return nil, common.Hash{}, err
	}
	return enc, crypto.Keccak256Hash(enc), nil
}

// Hash returns the header's canonical hash.
func (h *Header) Hash() (common.Hash, error) {
	_, hash, err := h.Encode()
	return hash, err
}

// Decode parses a canonical header encoding back into its fields.
func Decode(data []byte) (*Header, error) {
	h := new(Header)
	if err := rlp.DecodeBytes(data, h); err != nil {
		return nil, err
	}
	return h, nil
}

// Roots carries the per-block values a header needs beyond the environment:
// the parent hash and the outputs of transition execution.
type Roots struct {
	ParentHash   common.Hash
	StateRoot    common.Hash
	TxRoot       common.Hash
	ReceiptsRoot common.Hash
	Bloom        types.Bloom
	GasUsed      uint64
	BlobGasUsed  *uint64
	Extra        []byte

	WithdrawalsHash  *common.Hash
	ParentBeaconRoot *common.Hash
	RequestsHash     *common.Hash
}

// New assembles a header from a resolved environment and execution results.
// When the environment carries a prevRandao value, it lands in mixHash and
// difficulty is zero; otherwise the environment's difficulty is used.
func New(env *libenv.Environment, roots Roots) *Header {
	h := &Header{
		ParentHash:       roots.ParentHash,
		UncleHash:        types.EmptyUncleHash,
		Coinbase:         env.FeeRecipient,
		Root:             roots.StateRoot,
		TxHash:           roots.TxRoot,
		ReceiptHash:      roots.ReceiptsRoot,
		Bloom:            roots.Bloom,
		Difficulty:       new(big.Int),
		Number:           new(big.Int).SetUint64(env.Number),
		GasLimit:         env.GasLimit,
		GasUsed:          roots.GasUsed,
		Time:             env.Timestamp,
		Extra:            roots.Extra,
		BaseFee:          env.BaseFee,
		WithdrawalsHash:  roots.WithdrawalsHash,
		ParentBeaconRoot: roots.ParentBeaconRoot,
		RequestsHash:     roots.RequestsHash,
	}
	if env.Random != nil {
		h.MixDigest = *env.Random
	} else if env.Difficulty != nil {
		h.Difficulty = new(big.Int).Set(env.Difficulty)
	}
	if env.BaseFee != nil {
		h.BaseFee = new(big.Int).Set(env.BaseFee)
	}
	if env.ExcessBlobGas != nil {
		v := *env.ExcessBlobGas
		h.ExcessBlobGas = &v
		used := uint64(0)
		if roots.BlobGasUsed != nil {
			used = *roots.BlobGasUsed
		}
		h.BlobGasUsed = &used
	}
	if roots.TxRoot == (common.Hash{}) {
		h.TxHash = types.EmptyTxsHash
	}
	if roots.ReceiptsRoot == (common.Hash{}) {
		h.ReceiptHash = types.EmptyReceiptsHash
	}
	return h
}
