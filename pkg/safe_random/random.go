package safe_random

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
)

// GenerateRandomBytes 生成指定长度的安全随机字节切片。
// 如果系统的安全随机数生成器失败，将返回错误。
func GenerateRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	// 注意：只有读取了 len(b) 个字节，err 才为 nil。
	if err != nil {
		return nil, fmt.Errorf("生成随机字节失败: %w", err)
	}
	return b, nil
}

// GenerateRandomHexString 生成 Hex 编码的安全随机字符串。
// 注意：实际字符串长度是 Hex 编码后的，因此长度是请求字节数的两倍。
func GenerateRandomHexString(n int) (string, error) {
	b, err := GenerateRandomBytes(n)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// GenerateSaltNonce 生成一个 256 位随机数，用作合约部署时的 Salt。
func GenerateSaltNonce() (*big.Int, error) {
	b, err := GenerateRandomBytes(32)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(b), nil
}

// Reader 是一个全局共享的加密安全随机数生成器实例。
// 默认为 crypto/rand.Reader。
var Reader io.Reader = rand.Reader
