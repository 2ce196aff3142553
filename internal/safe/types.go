package safe

import (
	"fmt"
	"math/big"
	"strings"

	"safe-core/pkg/safetx"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Operation 是 Safe 交易的调用方式
const (
	OperationCall         uint8 = 0
	OperationDelegateCall uint8 = 1
)

// SafeTx 是合约层面的完整 Safe 交易。
// Gas 相关参数全部取 SDK 默认的零值，由执行者自担 Gas。
type SafeTx struct {
	To             common.Address
	Value          *big.Int
	Data           []byte
	Operation      uint8
	SafeTxGas      *big.Int
	BaseGas        *big.Int
	GasPrice       *big.Int
	GasToken       common.Address
	RefundReceiver common.Address
	Nonce          uint64
}

// FromRecord 从交换记录构造可签名的 Safe 交易。
// 只读取 to / value / data / nonce 四个字段 —— 记录里掺进来的
// 任何其它内容都不会进入签名哈希。
// 记录本身不带 nonce 时使用调用方解析好的 nonce。
func FromRecord(rec *safetx.Transaction, nonce uint64) (*SafeTx, error) {
	if !common.IsHexAddress(rec.To) {
		return nil, fmt.Errorf("目标地址非法: %q", rec.To)
	}

	value, ok := new(big.Int).SetString(rec.Value, 10)
	if !ok || value.Sign() < 0 {
		return nil, fmt.Errorf("金额非法: %q", rec.Value)
	}

	data, err := decodeCalldata(rec.Data)
	if err != nil {
		return nil, err
	}

	if rec.Nonce != nil {
		nonce = *rec.Nonce
	}

	return &SafeTx{
		To:        common.HexToAddress(rec.To),
		Value:     value,
		Data:      data,
		Operation: OperationCall,
		SafeTxGas: big.NewInt(0),
		BaseGas:   big.NewInt(0),
		GasPrice:  big.NewInt(0),
		// GasToken / RefundReceiver 保持零地址
		Nonce: nonce,
	}, nil
}

func decodeCalldata(s string) ([]byte, error) {
	if s == "" || s == "0x" {
		return []byte{}, nil
	}
	if !strings.HasPrefix(s, "0x") {
		s = "0x" + s
	}
	data, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("calldata 非法: %w", err)
	}
	return data, nil
}
