package service

import (
	"context"
	"crypto/sha256"
	"errors"
	"testing"

	"safe-core/internal/wallet"
	"safe-core/pkg/safetx"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider 是内存里的钱包替身
type fakeProvider struct {
	address string
	signErr error
	changes chan []string
}

func newFakeProvider(address string) *fakeProvider {
	return &fakeProvider{address: address, changes: make(chan []string, 1)}
}

func (p *fakeProvider) RequestAccounts(ctx context.Context) ([]string, error) {
	if p.address == "" {
		return nil, wallet.ErrNoAccounts
	}
	return []string{p.address}, nil
}

func (p *fakeProvider) SignerAddress() (string, error) {
	if p.address == "" {
		return "", wallet.ErrNoSigner
	}
	return p.address, nil
}

func (p *fakeProvider) SignHash(ctx context.Context, hash []byte) ([]byte, error) {
	if p.signErr != nil {
		return nil, p.signErr
	}
	// 确定性假签名: 地址和哈希各取一部分拼满 65 字节
	sig := make([]byte, 65)
	copy(sig, []byte(p.address))
	copy(sig[20:], hash)
	sig[64] = 27
	return sig, nil
}

func (p *fakeProvider) SignTx(ctx context.Context, tx *types.Transaction) (*types.Transaction, error) {
	return tx, nil
}

func (p *fakeProvider) AccountChanges() <-chan []string { return p.changes }
func (p *fakeProvider) Close() error                    { return nil }

// fakeGateway 是 Safe 合约替身，哈希只依赖 (to, value, data, nonce)
type fakeGateway struct {
	chainNonce uint64
	execErr    error
	executed   []*safetx.Transaction
}

func (g *fakeGateway) ResolveNonce(ctx context.Context) (uint64, error) { return g.chainNonce, nil }
func (g *fakeGateway) Threshold(ctx context.Context) (uint64, error)    { return 2, nil }

func (g *fakeGateway) TransactionHash(ctx context.Context, rec *safetx.Transaction) ([]byte, error) {
	nonce := g.chainNonce
	if rec.Nonce != nil {
		nonce = *rec.Nonce
	}
	h := sha256.New()
	h.Write([]byte(rec.To))
	h.Write([]byte(rec.Value))
	h.Write([]byte(rec.Data))
	h.Write([]byte{byte(nonce)})
	return h.Sum(nil), nil
}

func (g *fakeGateway) Execute(ctx context.Context, rec *safetx.Transaction) (string, error) {
	if g.execErr != nil {
		return "", g.execErr
	}
	g.executed = append(g.executed, rec)
	return "0xexecuted", nil
}

func (g *fakeGateway) Deploy(ctx context.Context, owners []string, threshold uint64) (string, string, error) {
	return "0xnewsafe", "0xdeploytx", nil
}

func newService(addr string) (*SafeService, *fakeProvider, *fakeGateway) {
	p := newFakeProvider(addr)
	g := &fakeGateway{chainNonce: 5}
	return NewSafeService(p, g, "0x5afe", nil, nil), p, g
}

func TestCreateTransactionConvertsEthToWei(t *testing.T) {
	svc, _, _ := newService("0xAAAA000000000000000000000000000000000001")

	rec, err := svc.CreateTransaction(context.Background(), "0x1111", decimal.NewFromInt(1), "", nil)
	require.NoError(t, err)

	assert.Equal(t, "1000000000000000000", rec.Value)
	assert.Equal(t, "0x", rec.Data)
	assert.Nil(t, rec.Nonce)
	require.Len(t, rec.Signatures, 1, "creator signature attached")
	assert.Equal(t, "0xAAAA000000000000000000000000000000000001", rec.Signatures[0].Signer)
}

func TestCreateTransactionRejectsSubWeiAmount(t *testing.T) {
	svc, _, _ := newService("0xAAAA000000000000000000000000000000000001")

	tooSmall := decimal.RequireFromString("0.0000000000000000001") // 0.1 Wei
	_, err := svc.CreateTransaction(context.Background(), "0x1111", tooSmall, "", nil)
	assert.Error(t, err)
}

func TestSignTransactionAppendsWithoutTouchingInput(t *testing.T) {
	svcA, _, gw := newService("0xAAAA000000000000000000000000000000000001")

	rec, err := svcA.CreateTransaction(context.Background(), "0x1111", decimal.NewFromInt(1), "0xdead", nil)
	require.NoError(t, err)

	svcB := NewSafeService(newFakeProvider("0xBBBB000000000000000000000000000000000002"), gw, "0x5afe", nil, nil)
	next, err := svcB.SignTransaction(context.Background(), rec)
	require.NoError(t, err)

	// 顺序保持: [s1, s2]，其余字段原封不动
	require.Len(t, next.Signatures, 2)
	assert.Equal(t, rec.Signatures[0], next.Signatures[0])
	assert.Equal(t, "0xBBBB000000000000000000000000000000000002", next.Signatures[1].Signer)
	assert.Equal(t, rec.To, next.To)
	assert.Equal(t, rec.Value, next.Value)
	assert.Equal(t, rec.Data, next.Data)
	assert.Equal(t, rec.Nonce, next.Nonce)

	// 输入记录未被修改
	assert.Len(t, rec.Signatures, 1)
}

func TestSignTransactionFailureLeavesRecordUntouched(t *testing.T) {
	svc, p, _ := newService("0xAAAA000000000000000000000000000000000001")

	rec, err := svc.CreateTransaction(context.Background(), "0x1111", decimal.NewFromInt(1), "", nil)
	require.NoError(t, err)

	p.signErr = errors.New("user rejected")
	next, err := svc.SignTransaction(context.Background(), rec)
	assert.Error(t, err)
	assert.Nil(t, next)
	assert.Len(t, rec.Signatures, 1)
}

func TestSignTransactionWithoutConnectedSigner(t *testing.T) {
	svc, _, _ := newService("")

	rec := &safetx.Transaction{To: "0x1111", Value: "1", Data: "0x", Signatures: []safetx.Signature{}}
	_, err := svc.SignTransaction(context.Background(), rec)
	assert.ErrorIs(t, err, wallet.ErrNoSigner)
}

func TestCanSign(t *testing.T) {
	svc, p, _ := newService("0xAAAA000000000000000000000000000000000001")

	rec := &safetx.Transaction{
		To: "0x1111", Value: "1", Data: "0x",
		Signatures: []safetx.Signature{
			{Signer: "0xaaaa000000000000000000000000000000000001", Data: "0x01"}, // 小写，同一地址
		},
	}

	assert.False(t, svc.CanSign(rec), "already signed, case-insensitive match")
	assert.False(t, svc.CanSign(nil), "no record")

	p.address = "0xBBBB000000000000000000000000000000000002"
	assert.True(t, svc.CanSign(rec))

	p.address = ""
	assert.False(t, svc.CanSign(rec), "no connected account")
}

func TestThresholdReadThrough(t *testing.T) {
	svc, _, _ := newService("0xAAAA000000000000000000000000000000000001")

	threshold, err := svc.Threshold(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), threshold)
}

func TestExecuteTransaction(t *testing.T) {
	svc, _, gw := newService("0xAAAA000000000000000000000000000000000001")

	rec, err := svc.CreateTransaction(context.Background(), "0x1111", decimal.NewFromInt(1), "", nil)
	require.NoError(t, err)

	txHash, err := svc.ExecuteTransaction(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, "0xexecuted", txHash)
	require.Len(t, gw.executed, 1)

	// 失败时错误上抛，记录不变
	gw.execErr = errors.New("GS020: threshold not met")
	_, err = svc.ExecuteTransaction(context.Background(), rec)
	assert.Error(t, err)
	assert.Len(t, rec.Signatures, 1)
}

// 完整两人流程: A 创建并序列化，B 解析、加签、再序列化，A 解析看到两个签名
func TestTwoSignerExchangeFlow(t *testing.T) {
	gw := &fakeGateway{chainNonce: 0}
	svcA := NewSafeService(newFakeProvider("0xAAAA000000000000000000000000000000000001"), gw, "0x5afe", nil, nil)
	svcB := NewSafeService(newFakeProvider("0xBBBB000000000000000000000000000000000002"), gw, "0x5afe", nil, nil)

	// A 创建 1 ETH 转账，空 calldata
	created, err := svcA.CreateTransaction(context.Background(),
		"0x1111111111111111111111111111111111111111", decimal.NewFromInt(1), "", nil)
	require.NoError(t, err)

	textFromA, err := safetx.Serialize(created)
	require.NoError(t, err)

	// B 粘贴解析，拿到完全一致的记录
	recAtB, err := safetx.Parse(textFromA)
	require.NoError(t, err)
	assert.Equal(t, created, recAtB)

	// B 加签后回传
	signedByB, err := svcB.SignTransaction(context.Background(), recAtB)
	require.NoError(t, err)
	textFromB, err := safetx.Serialize(signedByB)
	require.NoError(t, err)

	// A 解析回传文本: 两个签名按追加顺序，交易字段与最初一致
	final, err := safetx.Parse(textFromB)
	require.NoError(t, err)
	require.Len(t, final.Signatures, 2)
	assert.Equal(t, "0xAAAA000000000000000000000000000000000001", final.Signatures[0].Signer)
	assert.Equal(t, "0xBBBB000000000000000000000000000000000002", final.Signatures[1].Signer)
	assert.Equal(t, created.To, final.To)
	assert.Equal(t, created.Value, final.Value)
	assert.Equal(t, created.Data, final.Data)
	assert.Equal(t, created.Nonce, final.Nonce)

	// 签名对应同一个哈希 (同一 to/value/data/nonce 元组)
	hashA, _ := gw.TransactionHash(context.Background(), created)
	hashB, _ := gw.TransactionHash(context.Background(), final)
	assert.Equal(t, hashA, hashB)

	// 凑齐签名后任一持有者都可以提交执行
	txHash, err := svcA.ExecuteTransaction(context.Background(), final)
	require.NoError(t, err)
	assert.Equal(t, "0xexecuted", txHash)
}
