package wallet

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"safe-core/pkg/logger"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"go.uber.org/zap"
)

// KeystoreProvider 是基于本地 Keystore 目录的 Provider 实现。
// 浏览器场景里这个角色由注入的钱包扩展扮演，服务端/CLI 场景
// 用 go-ethereum 的加密 Keystore 文件代替。
type KeystoreProvider struct {
	ks       *keystore.KeyStore
	password string
	chainID  *big.Int

	mu      sync.Mutex
	current *accounts.Account

	changes chan []string
	sub     event.Subscription
	done    chan struct{}
}

// NewKeystoreProvider 打开 dir 指向的 Keystore 目录。
// password 用于解锁账户 (建议通过环境变量传入，不要写进配置文件)。
func NewKeystoreProvider(dir, password string, chainID *big.Int) *KeystoreProvider {
	p := &KeystoreProvider{
		ks:       keystore.NewKeyStore(dir, keystore.StandardScryptN, keystore.StandardScryptP),
		password: password,
		chainID:  chainID,
		changes:  make(chan []string, 4),
		done:     make(chan struct{}),
	}

	// Keystore 目录的文件变化 (账户增删) 映射成账户变化通知
	sink := make(chan accounts.WalletEvent, 8)
	p.sub = p.ks.Subscribe(sink)
	go p.watchWallets(sink)

	return p
}

func (p *KeystoreProvider) watchWallets(sink chan accounts.WalletEvent) {
	defer close(p.changes)
	for {
		select {
		case <-p.done:
			return
		case err := <-p.sub.Err():
			if err != nil {
				logger.Error("Keystore 订阅中断", zap.Error(err))
			}
			return
		case ev := <-sink:
			logger.Debug("Keystore 账户事件", zap.Int("kind", int(ev.Kind)))
			p.notifyAccounts()
		}
	}
}

func (p *KeystoreProvider) notifyAccounts() {
	addrs := p.accountList()

	// 当前账户被移除时视为断开连接
	p.mu.Lock()
	if p.current != nil && !p.ks.HasAddress(p.current.Address) {
		p.current = nil
	}
	p.mu.Unlock()

	select {
	case p.changes <- addrs:
	default:
	}
}

func (p *KeystoreProvider) accountList() []string {
	accs := p.ks.Accounts()
	addrs := make([]string, 0, len(accs))
	for _, a := range accs {
		addrs = append(addrs, a.Address.Hex())
	}
	return addrs
}

// RequestAccounts 解锁并选定第一个账户作为签名账户
func (p *KeystoreProvider) RequestAccounts(ctx context.Context) ([]string, error) {
	accs := p.ks.Accounts()
	if len(accs) == 0 {
		return nil, ErrNoAccounts
	}

	first := accs[0]
	if err := p.ks.Unlock(first, p.password); err != nil {
		return nil, fmt.Errorf("解锁账户失败: %w", err)
	}

	p.mu.Lock()
	p.current = &first
	p.mu.Unlock()

	logger.Info("账户已连接", zap.String("address", first.Address.Hex()))
	return p.accountList(), nil
}

func (p *KeystoreProvider) SignerAddress() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return "", ErrNoSigner
	}
	return p.current.Address.Hex(), nil
}

// SignHash 对 32 字节哈希签名，返回 r || s || v，v 规范化为 27/28
func (p *KeystoreProvider) SignHash(ctx context.Context, hash []byte) ([]byte, error) {
	p.mu.Lock()
	acc := p.current
	p.mu.Unlock()
	if acc == nil {
		return nil, ErrNoSigner
	}

	sig, err := p.ks.SignHash(*acc, hash)
	if err != nil {
		return nil, fmt.Errorf("签名失败: %w", err)
	}
	// go-ethereum 返回的 recovery id 是 0/1，合约侧按 27/28 校验
	if len(sig) == 65 && sig[64] < 27 {
		sig[64] += 27
	}
	return sig, nil
}

func (p *KeystoreProvider) SignTx(ctx context.Context, tx *types.Transaction) (*types.Transaction, error) {
	p.mu.Lock()
	acc := p.current
	p.mu.Unlock()
	if acc == nil {
		return nil, ErrNoSigner
	}
	return p.ks.SignTx(*acc, tx, p.chainID)
}

func (p *KeystoreProvider) AccountChanges() <-chan []string {
	return p.changes
}

func (p *KeystoreProvider) Close() error {
	p.sub.Unsubscribe()
	close(p.done)
	return nil
}
