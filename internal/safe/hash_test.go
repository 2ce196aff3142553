package safe

import (
	"math/big"
	"testing"

	"safe-core/pkg/safetx"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testChainID  = big.NewInt(11155111)
	testSafeAddr = common.HexToAddress("0x5afe5afe5afe5afe5afe5afe5afe5afe5afe5afe")
)

func testSafeTx(t *testing.T) *SafeTx {
	t.Helper()
	rec := &safetx.Transaction{
		To:         "0x1111111111111111111111111111111111111111",
		Value:      "1000000000000000000",
		Data:       "0x",
		Signatures: []safetx.Signature{},
	}
	tx, err := FromRecord(rec, 3)
	require.NoError(t, err)
	return tx
}

func TestHashSafeTxDeterministic(t *testing.T) {
	tx := testSafeTx(t)

	h1 := HashSafeTx(testChainID, testSafeAddr, tx)
	h2 := HashSafeTx(testChainID, testSafeAddr, tx)

	require.Len(t, h1, 32)
	assert.Equal(t, h1, h2)
}

func TestHashSafeTxSensitivity(t *testing.T) {
	base := HashSafeTx(testChainID, testSafeAddr, testSafeTx(t))

	tests := []struct {
		name   string
		mutate func(*SafeTx)
	}{
		{"to", func(tx *SafeTx) { tx.To = common.HexToAddress("0x2222222222222222222222222222222222222222") }},
		{"value", func(tx *SafeTx) { tx.Value = big.NewInt(1) }},
		{"data", func(tx *SafeTx) { tx.Data = []byte{0x01} }},
		{"nonce", func(tx *SafeTx) { tx.Nonce = 4 }},
		{"operation", func(tx *SafeTx) { tx.Operation = OperationDelegateCall }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := testSafeTx(t)
			tt.mutate(tx)
			assert.NotEqual(t, base, HashSafeTx(testChainID, testSafeAddr, tx))
		})
	}

	// 换链或换 Safe 地址同样改变哈希 (域分隔符生效)
	assert.NotEqual(t, base, HashSafeTx(big.NewInt(1), testSafeAddr, testSafeTx(t)))
	other := common.HexToAddress("0x9999999999999999999999999999999999999999")
	assert.NotEqual(t, base, HashSafeTx(testChainID, other, testSafeTx(t)))
}

func TestFromRecordReadsTupleOnly(t *testing.T) {
	nonce := uint64(9)
	rec := &safetx.Transaction{
		To:    "0x1111111111111111111111111111111111111111",
		Value: "500",
		Data:  "0xdeadbeef",
		Signatures: []safetx.Signature{
			{Signer: "0xattacker", Data: "0xffff"}, // 签名内容不影响可签名交易
		},
		Nonce: &nonce,
	}

	tx, err := FromRecord(rec, 0)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(rec.To), tx.To)
	assert.Equal(t, big.NewInt(500), tx.Value)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, tx.Data)
	assert.Equal(t, uint64(9), tx.Nonce, "record nonce wins over the fallback")
	assert.Equal(t, OperationCall, tx.Operation)
	assert.Zero(t, tx.SafeTxGas.Sign())
}

func TestFromRecordFallbackNonce(t *testing.T) {
	rec := &safetx.Transaction{To: "0x1111111111111111111111111111111111111111", Value: "0", Data: "0x", Signatures: []safetx.Signature{}}
	tx, err := FromRecord(rec, 42)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), tx.Nonce)
}

func TestFromRecordRejectsGarbage(t *testing.T) {
	tests := []struct {
		name string
		rec  *safetx.Transaction
	}{
		{"bad address", &safetx.Transaction{To: "nope", Value: "1", Data: "0x"}},
		{"bad value", &safetx.Transaction{To: "0x1111111111111111111111111111111111111111", Value: "1.5", Data: "0x"}},
		{"negative value", &safetx.Transaction{To: "0x1111111111111111111111111111111111111111", Value: "-1", Data: "0x"}},
		{"bad calldata", &safetx.Transaction{To: "0x1111111111111111111111111111111111111111", Value: "1", Data: "0xzz"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromRecord(tt.rec, 0)
			assert.Error(t, err)
		})
	}
}

func TestDecodeCalldataNormalizesPrefix(t *testing.T) {
	data, err := decodeCalldata("deadbeef")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, data)

	empty, err := decodeCalldata("")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
