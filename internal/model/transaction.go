package model

import (
	"time"
)

// SafeTransaction 多签交易流转记录表
// 记录本服务经手的每一笔多签交易: 创建、收签、最终执行。
// 真正的签名集合始终以交换文本 (RawText) 为准，这里只落库做审计。
type SafeTransaction struct {
	ID             uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SafeAddress    string     `gorm:"type:varchar(64);not null;index" json:"safe_address"`
	ToAddress      string     `gorm:"type:varchar(64);not null" json:"to_address"`
	Value          string     `gorm:"type:varchar(80);not null" json:"value"` // Wei, 十进制字符串
	Data           string     `gorm:"type:text" json:"data"`                  // Calldata Hex
	Nonce          *uint64    `json:"nonce,omitempty"`
	SignatureCount int        `gorm:"not null;default:0" json:"signature_count"`
	RawText        string     `gorm:"type:text;not null" json:"raw_text"` // 当前的序列化交易文本
	TxHash         string     `gorm:"type:varchar(80)" json:"tx_hash"`    // 执行后的链上交易 Hash
	Status         string     `gorm:"type:varchar(32);not null;default:'collecting'" json:"status"` // collecting, submitted, failed
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	SubmittedAt    *time.Time `json:"submitted_at,omitempty"`
}

func (SafeTransaction) TableName() string {
	return "safe_transactions"
}
