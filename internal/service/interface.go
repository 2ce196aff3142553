package service

import (
	"context"

	"safe-core/pkg/safetx"

	"github.com/shopspring/decimal"
)

// SafeGateway 是 Safe 合约协作方的抽象。
// 构造可签名交易、计算交易哈希、执行、部署都发生在这一侧，
// 服务层不碰任何合约细节，测试时注入内存实现。
type SafeGateway interface {
	// ResolveNonce 返回 Safe 当前的链上 Nonce
	ResolveNonce(ctx context.Context) (uint64, error)
	// Threshold 返回 Safe 的签名阈值 (展示用)
	Threshold(ctx context.Context) (uint64, error)
	// TransactionHash 计算记录的签名哈希，只依赖 to/value/data/nonce
	TransactionHash(ctx context.Context, rec *safetx.Transaction) ([]byte, error)
	// Execute 提交执行；签名是否够数由合约判定
	Execute(ctx context.Context, rec *safetx.Transaction) (string, error)
	// Deploy 部署新 Safe，返回 (Safe 地址, 部署交易 Hash)
	Deploy(ctx context.Context, owners []string, threshold uint64) (string, string, error)
}

// TransactionService 是多签交易的业务入口
type TransactionService interface {
	// Connect 连接钱包，返回当前签名地址
	Connect(ctx context.Context) (string, error)
	// CreateTransaction 创建一笔新交易并附上创建者的签名
	// valueEth 以 ETH 计，内部转成 Wei 的十进制字符串
	CreateTransaction(ctx context.Context, to string, valueEth decimal.Decimal, dataHex string, nonce *uint64) (*safetx.Transaction, error)
	// SignTransaction 给已有记录追加当前账户的签名，返回新记录
	SignTransaction(ctx context.Context, rec *safetx.Transaction) (*safetx.Transaction, error)
	// CanSign 报告当前账户是否还没在记录上签过名 (纯提示，不是安全控制)
	CanSign(rec *safetx.Transaction) bool
	// ExecuteTransaction 提交执行，返回链上交易 Hash
	ExecuteTransaction(ctx context.Context, rec *safetx.Transaction) (string, error)
}
