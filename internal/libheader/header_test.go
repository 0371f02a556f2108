package libheader_test

import (
	"bytes"
	"encoding/json"
	"math/big"
	"reflect"
	"testing"

	"github.com/ethereum/fixturegen/internal/libenv"
	"github.com/ethereum/fixturegen/internal/libheader"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

func uint64ptr(v uint64) *uint64 { return &v }

// maxUint256 = 2^256 - 1, the largest value a header difficulty can hold.
var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

func sampleHeader() *libheader.Header {
	withdrawals := types.EmptyWithdrawalsHash
	beaconRoot := common.Hash{}
	return &libheader.Header{
		ParentHash:       common.HexToHash("0x92f2bad26c57198059f54c809a588e2acdd8ed140dd92683d570d1d5f83aa9a0"),
		UncleHash:        types.EmptyUncleHash,
		Coinbase:         common.HexToAddress("0x2adc25665018aa1fe0e6bc666dac8fc2697ff9ba"),
		Root:             common.HexToHash("0xd7f8974fb5ac78d9ac099b9ad5018bedc2ce0a72dad1827a1709da30580f0544"),
		TxHash:           types.EmptyTxsHash,
		ReceiptHash:      types.EmptyReceiptsHash,
		Difficulty:       big.NewInt(0x20000),
		Number:           big.NewInt(1),
		GasLimit:         0x989680,
		GasUsed:          0,
		Time:             1000,
		Extra:            []byte{},
		BaseFee:          big.NewInt(0x3b9aca00),
		WithdrawalsHash:  &withdrawals,
		BlobGasUsed:      uint64ptr(0),
		ExcessBlobGas:    uint64ptr(0),
		ParentBeaconRoot: &beaconRoot,
	}
}

func TestEncodeDeterministic(t *testing.T) {
	h := sampleHeader()
	enc1, hash1, err := h.Encode()
	if err != nil {
		t.Fatal(err)
	}
	enc2, hash2, err := h.Encode()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(enc1, enc2) || hash1 != hash2 {
		t.Error("identical inputs produced different encodings")
	}
	if hash1 == (common.Hash{}) {
		t.Error("hash is zero")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*libheader.Header)
	}{
		{"base", func(h *libheader.Header) {}},
		{"zero values", func(h *libheader.Header) {
			h.Difficulty = new(big.Int)
			h.Number = new(big.Int)
			h.GasLimit = 0
			h.Time = 0
		}},
		{"one values", func(h *libheader.Header) {
			h.Difficulty = big.NewInt(1)
			h.Number = big.NewInt(1)
			h.GasLimit = 1
			h.GasUsed = 1
			h.Time = 1
		}},
		{"max uint64", func(h *libheader.Header) {
			h.GasLimit = ^uint64(0)
			h.GasUsed = ^uint64(0)
			h.Time = ^uint64(0)
			h.BlobGasUsed = uint64ptr(^uint64(0))
			h.ExcessBlobGas = uint64ptr(^uint64(0))
		}},
		{"max uint256", func(h *libheader.Header) {
			h.Difficulty = new(big.Int).Set(maxUint256)
			h.Number = new(big.Int).Set(maxUint256)
			h.BaseFee = new(big.Int).Set(maxUint256)
		}},
		{"no optional tail", func(h *libheader.Header) {
			h.BaseFee = nil
			h.WithdrawalsHash = nil
			h.BlobGasUsed = nil
			h.ExcessBlobGas = nil
			h.ParentBeaconRoot = nil
		}},
	}
	for _, test := range tests {
		h := sampleHeader()
		test.modify(h)

		enc, hash, err := h.Encode()
		if err != nil {
			t.Errorf("%s: encode: %v", test.name, err)
			continue
		}
		decoded, err := libheader.Decode(enc)
		if err != nil {
			t.Errorf("%s: decode: %v", test.name, err)
			continue
		}
		if !reflect.DeepEqual(decoded, h) {
			t.Errorf("%s: round trip mismatch:\n got %+v\nwant %+v", test.name, decoded, h)
		}
		rehash, err := decoded.Hash()
		if err != nil {
			t.Errorf("%s: rehash: %v", test.name, err)
			continue
		}
		if rehash != hash {
			t.Errorf("%s: hash changed after round trip", test.name)
		}
	}
}

func TestNewFromEnvironment(t *testing.T) {
	excess := uint64(0)
	env := &libenv.Environment{
		Number:        1,
		Timestamp:     1000,
		GasLimit:      0x989680,
		BaseFee:       big.NewInt(0x3b9aca00),
		Difficulty:    big.NewInt(0x20000),
		FeeRecipient:  common.HexToAddress("0x2adc25665018aa1fe0e6bc666dac8fc2697ff9ba"),
		ExcessBlobGas: &excess,
	}
	state := common.HexToHash("0x01")
	parent := common.HexToHash("0x02")
	h := libheader.New(env, libheader.Roots{ParentHash: parent, StateRoot: state})

	if h.ParentHash != parent || h.Root != state {
		t.Error("roots not carried into header")
	}
	if h.Difficulty.Cmp(big.NewInt(0x20000)) != 0 {
		t.Errorf("difficulty = %v", h.Difficulty)
	}
	if h.Number.Uint64() != 1 || h.Time != 1000 || h.GasLimit != 0x989680 {
		t.Error("environment fields not carried into header")
	}
	if h.TxHash != types.EmptyTxsHash || h.ReceiptHash != types.EmptyReceiptsHash {
		t.Error("empty roots should canonicalize to the empty trie hashes")
	}
	if h.BlobGasUsed == nil || *h.BlobGasUsed != 0 || h.ExcessBlobGas == nil {
		t.Error("blob gas fields missing")
	}

	// Post-merge environment: prevRandao in mixHash, difficulty zero.
	random := common.HexToHash("0x0abc")
	env.Random = &random
	h = libheader.New(env, libheader.Roots{})
	if h.MixDigest != random || h.Difficulty.Sign() != 0 {
		t.Errorf("mixDigest/difficulty = %v/%v", h.MixDigest, h.Difficulty)
	}
}

func TestHeaderJSON(t *testing.T) {
	h := sampleHeader()
	data, err := json.Marshal(h)
	if err != nil {
		t.Fatal(err)
	}
	var decoded libheader.Header
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}

	hash1, err := h.Hash()
	if err != nil {
		t.Fatal(err)
	}
	hash2, err := decoded.Hash()
	if err != nil {
		t.Fatal(err)
	}
	if hash1 != hash2 {
		t.Error("JSON round trip changed the header hash")
	}
}

func TestHeaderJSONRequiredFields(t *testing.T) {
	tests := []struct {
		name  string
		strip string
	}{
		{"parentHash", "parentHash"},
		{"stateRoot", "stateRoot"},
		{"number", "number"},
		{"gasLimit", "gasLimit"},
		{"timestamp", "timestamp"},
	}
	full, err := json.Marshal(sampleHeader())
	if err != nil {
		t.Fatal(err)
	}
	for _, test := range tests {
		var doc map[string]json.RawMessage
		if err := json.Unmarshal(full, &doc); err != nil {
			t.Fatal(err)
		}
		delete(doc, test.strip)
		stripped, _ := json.Marshal(doc)

		var h libheader.Header
		if err := json.Unmarshal(stripped, &h); err == nil {
			t.Errorf("missing %s: expected decode error", test.name)
		}
	}
}
