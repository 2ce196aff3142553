package safetx

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Signature 是某个 Owner 对 Safe 交易哈希的一次签名
type Signature struct {
	Signer string `json:"signer"` // Owner 地址
	Data   string `json:"data"`   // 签名 Hex (65 bytes: r || s || v)
}

// Transaction 是多签交易的交换格式 (Wire Format)。
// 它在签名人之间以文本形式传递 (复制粘贴 / 分享码)，
// 两端实现必须对这个 JSON 结构达成一致，字段顺序固定为
// to, value, data, signatures, nonce。
type Transaction struct {
	To         string      `json:"to"`              // 目标地址
	Value      string      `json:"value"`           // 金额 (Wei, 十进制字符串，避免精度丢失)
	Data       string      `json:"data"`            // Calldata Hex (0x 开头)
	Signatures []Signature `json:"signatures"`      // 已收集的签名，顺序即追加顺序
	Nonce      *uint64     `json:"nonce,omitempty"` // Safe Nonce；缺省时执行前从链上解析
}

// ErrInvalidFormat 表示 JSON 本身合法，但缺少必要字段
var ErrInvalidFormat = errors.New("Invalid transaction format")

// ParseError 表示输入文本不是合法 JSON
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid transaction text: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Serialize 将交易编码为规范文本形式 (两空格缩进的 Pretty JSON)。
// 与 Parse 严格互逆: Parse(Serialize(tx)) == tx。
func Serialize(tx *Transaction) (string, error) {
	data, err := json.MarshalIndent(tx, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Parse 解析并校验交易文本。
//
// 三种结果:
//   - 输入去掉空白后为空: 返回 (nil, nil)，表示 "尚未输入"，不是错误
//   - 不是合法 JSON: 返回 *ParseError
//   - 合法 JSON 但 to/value/data 缺失为空、或 signatures 不是数组: 返回 ErrInvalidFormat
//
// 校验是刻意浅层的: 不检查地址格式、数值合法性、Hex 合法性，
// 更不做签名验证 —— 这些由 Safe 合约在签名/执行时兜底。
func Parse(text string) (*Transaction, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, nil
	}

	var probe any
	if err := json.Unmarshal([]byte(trimmed), &probe); err != nil {
		return nil, &ParseError{Err: err}
	}

	obj, ok := probe.(map[string]any)
	if !ok {
		return nil, ErrInvalidFormat
	}
	if !hasText(obj, "to") || !hasText(obj, "value") || !hasText(obj, "data") {
		return nil, ErrInvalidFormat
	}
	if _, ok := obj["signatures"].([]any); !ok {
		return nil, ErrInvalidFormat
	}

	var tx Transaction
	if err := json.Unmarshal([]byte(trimmed), &tx); err != nil {
		// 结构存在但字段类型对不上 (比如 value 是数字)
		return nil, ErrInvalidFormat
	}
	return &tx, nil
}

func hasText(obj map[string]any, key string) bool {
	s, ok := obj[key].(string)
	return ok && s != ""
}

// HasSigner 报告 addr 是否已经在签名列表里出现过 (大小写不敏感)。
// 这只是 UI 层面的提示: 即使同一地址再签一次，这里也不会拦截，
// 重复签名最终由链上合约拒绝。
func (tx *Transaction) HasSigner(addr string) bool {
	for _, sig := range tx.Signatures {
		if strings.EqualFold(sig.Signer, addr) {
			return true
		}
	}
	return false
}

// WithSignature 返回追加了一个签名的新交易，原交易不会被修改。
// 记录一旦对外分享就视为不可变，持有旧文本的另一方不会被并发篡改。
func (tx *Transaction) WithSignature(sig Signature) *Transaction {
	out := *tx
	out.Signatures = make([]Signature, 0, len(tx.Signatures)+1)
	out.Signatures = append(out.Signatures, tx.Signatures...)
	out.Signatures = append(out.Signatures, sig)
	return &out
}
