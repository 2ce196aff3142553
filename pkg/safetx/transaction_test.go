package safetx

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTx() *Transaction {
	nonce := uint64(7)
	return &Transaction{
		To:    "0x1111111111111111111111111111111111111111",
		Value: "1000000000000000000",
		Data:  "0x",
		Signatures: []Signature{
			{Signer: "0xAaAa000000000000000000000000000000000001", Data: "0xdeadbeef01"},
		},
		Nonce: &nonce,
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		tx   *Transaction
	}{
		{"with nonce and one signature", sampleTx()},
		{"no nonce, empty signatures", &Transaction{
			To:         "0x2222222222222222222222222222222222222222",
			Value:      "42",
			Data:       "0xabcdef",
			Signatures: []Signature{},
		}},
		{"multiple signatures", &Transaction{
			To:    "0x3333333333333333333333333333333333333333",
			Value: "0",
			Data:  "0x00",
			Signatures: []Signature{
				{Signer: "0xaaa1", Data: "0x01"},
				{Signer: "0xaaa2", Data: "0x02"},
				{Signer: "0xaaa3", Data: "0x03"},
			},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, err := Serialize(tt.tx)
			require.NoError(t, err)

			parsed, err := Parse(text)
			require.NoError(t, err)
			assert.Equal(t, tt.tx, parsed)
		})
	}
}

func TestSerializeFieldOrder(t *testing.T) {
	// 字段顺序是互操作约定的一部分，固定为 to, value, data, signatures, nonce
	text, err := Serialize(sampleTx())
	require.NoError(t, err)

	idxTo := strings.Index(text, `"to"`)
	idxValue := strings.Index(text, `"value"`)
	idxData := strings.Index(text, `"data"`)
	idxSigs := strings.Index(text, `"signatures"`)
	idxNonce := strings.Index(text, `"nonce"`)

	assert.True(t, idxTo >= 0 && idxTo < idxValue, "to before value")
	assert.True(t, idxValue < idxData, "value before data")
	assert.True(t, idxData < idxSigs, "data before signatures")
	assert.True(t, idxSigs < idxNonce, "signatures before nonce")
}

func TestParseEmptyInput(t *testing.T) {
	for _, input := range []string{"", "   ", "\n\t  \n"} {
		tx, err := Parse(input)
		assert.NoError(t, err, "empty input is not an error")
		assert.Nil(t, tx, "empty input yields no transaction")
	}
}

func TestParseMalformedJSON(t *testing.T) {
	tx, err := Parse("not json")
	assert.Nil(t, tx)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Error(t, parseErr.Unwrap())
}

func TestParseMissingFields(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"only to", `{"to":"0xabc"}`},
		{"missing data", `{"to":"0xabc","value":"1","signatures":[]}`},
		{"missing value", `{"to":"0xabc","data":"0x","signatures":[]}`},
		{"empty to", `{"to":"","value":"1","data":"0x","signatures":[]}`},
		{"signatures not an array", `{"to":"0xabc","value":"1","data":"0x","signatures":{}}`},
		{"signatures null", `{"to":"0xabc","value":"1","data":"0x","signatures":null}`},
		{"top level not an object", `[1,2,3]`},
		{"value is a number", `{"to":"0xabc","value":1,"data":"0x","signatures":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := Parse(tt.text)
			assert.Nil(t, tx)
			assert.True(t, errors.Is(err, ErrInvalidFormat), "want ErrInvalidFormat, got %v", err)
		})
	}
}

func TestParseKeepsFieldsUntouched(t *testing.T) {
	// 浅校验: 内容不合法的字段原样返回，交给合约层处理
	text := `{"to":"not-an-address","value":"not-a-number","data":"zzz","signatures":[]}`
	tx, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, "not-an-address", tx.To)
	assert.Equal(t, "not-a-number", tx.Value)
	assert.Equal(t, "zzz", tx.Data)
	assert.Empty(t, tx.Signatures)
	assert.Nil(t, tx.Nonce)
}

func TestHasSigner(t *testing.T) {
	tx := sampleTx()

	assert.True(t, tx.HasSigner("0xAaAa000000000000000000000000000000000001"))
	assert.True(t, tx.HasSigner("0xaaaa000000000000000000000000000000000001"), "case-insensitive")
	assert.False(t, tx.HasSigner("0xBbBb000000000000000000000000000000000002"))
	assert.False(t, tx.HasSigner(""))
}

func TestWithSignature(t *testing.T) {
	orig := sampleTx()
	next := orig.WithSignature(Signature{Signer: "0xbbb2", Data: "0xcafe02"})

	// 旧记录不受影响
	require.Len(t, orig.Signatures, 1)

	// 新记录 = 旧签名 + 新签名，顺序保持
	require.Len(t, next.Signatures, 2)
	assert.Equal(t, orig.Signatures[0], next.Signatures[0])
	assert.Equal(t, "0xbbb2", next.Signatures[1].Signer)
	assert.Equal(t, orig.To, next.To)
	assert.Equal(t, orig.Value, next.Value)
	assert.Equal(t, orig.Data, next.Data)
	assert.Equal(t, orig.Nonce, next.Nonce)

	// 追加到新记录的 slice 不会污染旧记录
	_ = next.WithSignature(Signature{Signer: "0xccc3", Data: "0x03"})
	require.Len(t, next.Signatures, 2)
}
