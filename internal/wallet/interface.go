package wallet

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/core/types"
)

// Provider 抽象 "浏览器钱包" 这一类外部签名方。
// 作为依赖注入进服务层，而不是在代码里到处摸全局对象，
// 测试时可以替换成内存实现。
type Provider interface {
	// RequestAccounts 请求账户授权，返回可用地址列表。
	// 这期间可能等待用户在外部钱包里确认，耗时无上界。
	RequestAccounts(ctx context.Context) ([]string, error)

	// SignerAddress 返回当前连接的签名地址；未连接时返回 ErrNoSigner
	SignerAddress() (string, error)

	// SignHash 用当前账户对 32 字节哈希做 ECDSA 签名，
	// 返回 65 字节 r || s || v，v 为 27/28
	SignHash(ctx context.Context, hash []byte) ([]byte, error)

	// SignTx 用当前账户签名一笔以太坊交易 (广播执行用)
	SignTx(ctx context.Context, tx *types.Transaction) (*types.Transaction, error)

	// AccountChanges 账户变化通知流。Provider 关闭后通道关闭。
	AccountChanges() <-chan []string

	Close() error
}

var (
	ErrNoSigner   = errors.New("钱包未连接，没有可用的签名账户")
	ErrNoAccounts = errors.New("Keystore 中没有任何账户")
)
