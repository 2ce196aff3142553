package safe

import (
	"math/big"

	"safe-core/pkg/crypto_util"

	"github.com/ethereum/go-ethereum/common"
)

// Safe 合约的 EIP-712 类型串，Typehash 在初始化时算好
var (
	domainSeparatorTypehash = crypto_util.Keccak256(
		[]byte("EIP712Domain(uint256 chainId,address verifyingContract)"),
	)
	safeTxTypehash = crypto_util.Keccak256(
		[]byte("SafeTx(address to,uint256 value,bytes data,uint8 operation,uint256 safeTxGas,uint256 baseGas,uint256 gasPrice,address gasToken,address refundReceiver,uint256 nonce)"),
	)
)

// DomainSeparator 计算某条链上某个 Safe 的域分隔符。
// chainId 进入哈希，跨链重放同一签名会失效。
func DomainSeparator(chainID *big.Int, safeAddr common.Address) []byte {
	return crypto_util.Keccak256(
		domainSeparatorTypehash,
		padUint(chainID),
		padAddress(safeAddr),
	)
}

// HashSafeTx 计算 Safe 交易的 EIP-712 签名哈希:
// keccak256(0x19 || 0x01 || domainSeparator || structHash)
func HashSafeTx(chainID *big.Int, safeAddr common.Address, tx *SafeTx) []byte {
	structHash := crypto_util.Keccak256(
		safeTxTypehash,
		padAddress(tx.To),
		padUint(tx.Value),
		crypto_util.Keccak256(tx.Data), // bytes 字段进结构哈希前先单独哈希
		padUint(big.NewInt(int64(tx.Operation))),
		padUint(tx.SafeTxGas),
		padUint(tx.BaseGas),
		padUint(tx.GasPrice),
		padAddress(tx.GasToken),
		padAddress(tx.RefundReceiver),
		padUint(new(big.Int).SetUint64(tx.Nonce)),
	)

	return crypto_util.Keccak256(
		[]byte{0x19, 0x01},
		DomainSeparator(chainID, safeAddr),
		structHash,
	)
}

// ABI 编码的 32 字节字
func padUint(v *big.Int) []byte {
	return common.LeftPadBytes(v.Bytes(), 32)
}

func padAddress(a common.Address) []byte {
	return common.LeftPadBytes(a.Bytes(), 32)
}
