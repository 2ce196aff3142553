package crypto_util

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// CalculateSHA256 计算输入的 SHA256 哈希值。
func CalculateSHA256(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// Keccak256 计算若干段输入拼接后的 Keccak256 哈希。
// 这是以太坊使用的哈希算法，EIP-712 结构化哈希全部基于它。
func Keccak256(data ...[]byte) []byte {
	hash := sha3.NewLegacyKeccak256()
	for _, d := range data {
		hash.Write(d)
	}
	return hash.Sum(nil)
}

// CalculateKeccak256 计算输入的 Keccak256 哈希值并返回 Hex 字符串。
func CalculateKeccak256(data []byte) string {
	return hex.EncodeToString(Keccak256(data))
}
