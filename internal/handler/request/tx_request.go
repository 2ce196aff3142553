package request

import "github.com/shopspring/decimal"

// CreateTransactionRequest 创建多签交易
type CreateTransactionRequest struct {
	To       string          `json:"to" binding:"required"`
	ValueEth decimal.Decimal `json:"value_eth" binding:"required"`
	Data     string          `json:"data"`
	Nonce    *uint64         `json:"nonce"`
}

// TransactionTextRequest 携带一段序列化交易文本 (粘贴进来的)
type TransactionTextRequest struct {
	Text string `json:"text" binding:"required"`
}

// ShareRequest 保存分享码
type ShareRequest struct {
	Text string `json:"text" binding:"required"`
}

// DeploySafeRequest 部署新 Safe
type DeploySafeRequest struct {
	Owners    []string `json:"owners" binding:"required,min=1"`
	Threshold uint64   `json:"threshold" binding:"required,min=1"`
}
