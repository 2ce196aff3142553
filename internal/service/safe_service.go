package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"safe-core/internal/model"
	"safe-core/internal/service/mq"
	"safe-core/internal/wallet"
	"safe-core/pkg/logger"
	"safe-core/pkg/monitor"
	"safe-core/pkg/safetx"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Topic 名字在 Kafka 和 Redis Stream 两种后端都合法 (不含冒号)
const topicExecuted = "safe_events_executed"

var _ TransactionService = (*SafeService)(nil)

// SafeService 串起钱包 Provider 和 Safe 合约两个协作方。
// 所有失败都原样上抛，调用方的记录保持不变 —— 没有任何操作
// 会把半成品状态暴露出去。
type SafeService struct {
	provider wallet.Provider
	gateway  SafeGateway

	safeAddress string

	// db / producer 允许为 nil (CLI 离线模式不落库不发事件)
	db       *gorm.DB
	producer mq.Producer
}

func NewSafeService(provider wallet.Provider, gateway SafeGateway, safeAddress string, db *gorm.DB, producer mq.Producer) *SafeService {
	return &SafeService{
		provider:    provider,
		gateway:     gateway,
		safeAddress: safeAddress,
		db:          db,
		producer:    producer,
	}
}

// Connect 请求账户授权并返回当前签名地址
func (s *SafeService) Connect(ctx context.Context) (string, error) {
	if _, err := s.provider.RequestAccounts(ctx); err != nil {
		return "", fmt.Errorf("连接钱包失败: %w", err)
	}
	return s.provider.SignerAddress()
}

// CreateTransaction 创建一笔新交易。
// 产出的记录带着创建者的第一个签名，nonce 不传时留空，
// 由执行者在执行时从链上解析。
func (s *SafeService) CreateTransaction(ctx context.Context, to string, valueEth decimal.Decimal, dataHex string, nonce *uint64) (*safetx.Transaction, error) {
	wei := valueEth.Shift(18)
	if !wei.IsInteger() || wei.Sign() < 0 {
		return nil, fmt.Errorf("金额非法: %s ETH", valueEth)
	}

	rec := &safetx.Transaction{
		To:         to,
		Value:      wei.String(),
		Data:       normalizeHex(dataHex),
		Signatures: []safetx.Signature{},
		Nonce:      nonce,
	}

	signed, err := s.SignTransaction(ctx, rec)
	if err != nil {
		return nil, err
	}

	s.saveRecord(signed, "collecting", "")
	return signed, nil
}

// SignTransaction 是签名累加器。
//
// 可签名交易永远从记录的 (to, value, data, nonce) 重新推导，
// 记录里混进来的其它内容进不了签名哈希；新记录的签名集合
// 恰好是 "旧签名按原顺序 + 一个新签名"，不去重也不重排 ——
// 同一地址重复签名在这里不拦截，合约执行时才拒绝。
func (s *SafeService) SignTransaction(ctx context.Context, rec *safetx.Transaction) (*safetx.Transaction, error) {
	signer, err := s.provider.SignerAddress()
	if err != nil {
		return nil, err
	}

	hash, err := s.gateway.TransactionHash(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("计算交易哈希失败: %w", err)
	}

	sig, err := s.provider.SignHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("签名失败: %w", err)
	}

	next := rec.WithSignature(safetx.Signature{
		Signer: signer,
		Data:   hexutil.Encode(sig),
	})

	monitor.SignaturesCollectedTotal.Inc()
	logger.Info("签名已追加",
		zap.String("signer", signer),
		zap.Int("total", len(next.Signatures)),
	)

	s.saveRecord(next, "collecting", "")
	return next, nil
}

// CanSign 报告当前账户是否应该被提示去签名。
// 没有记录、没有连接账户、或者已经签过 (大小写不敏感比较) 都返回 false。
// 这只是界面提示，绕过它把第二个签名塞进去是拦不住的。
func (s *SafeService) CanSign(rec *safetx.Transaction) bool {
	if rec == nil {
		return false
	}
	addr, err := s.provider.SignerAddress()
	if err != nil || addr == "" {
		return false
	}
	return !rec.HasSigner(addr)
}

// ExecuteTransaction 提交执行。本地不做阈值检查：
// 签名不够数的提交会被合约拒绝，错误从网关层原样传回。
func (s *SafeService) ExecuteTransaction(ctx context.Context, rec *safetx.Transaction) (string, error) {
	txHash, err := s.gateway.Execute(ctx, rec)
	if err != nil {
		monitor.ExecutionsTotal.WithLabelValues("failed").Inc()
		s.saveRecord(rec, "failed", "")
		return "", fmt.Errorf("执行失败: %w", err)
	}

	monitor.ExecutionsTotal.WithLabelValues("submitted").Inc()
	s.saveRecord(rec, "submitted", txHash)
	s.publishExecuted(ctx, rec, txHash)
	return txHash, nil
}

// Threshold 读取 Safe 的链上签名阈值 (展示用，本地不做校验)
func (s *SafeService) Threshold(ctx context.Context) (uint64, error) {
	return s.gateway.Threshold(ctx)
}

// DeploySafe 部署一个新的 Safe 合约
func (s *SafeService) DeploySafe(ctx context.Context, owners []string, threshold uint64) (string, string, error) {
	addr, txHash, err := s.gateway.Deploy(ctx, owners, threshold)
	if err != nil {
		return "", "", fmt.Errorf("部署失败: %w", err)
	}
	return addr, txHash, nil
}

// History 返回最近的审计记录 (新的在前)
func (s *SafeService) History(limit int) ([]model.SafeTransaction, error) {
	if s.db == nil {
		return nil, nil
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var rows []model.SafeTransaction
	if err := s.db.Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func normalizeHex(s string) string {
	if s == "" {
		return "0x"
	}
	if !strings.HasPrefix(s, "0x") {
		return "0x" + s
	}
	return s
}

// saveRecord 落一条审计记录，失败只记日志不影响主流程
func (s *SafeService) saveRecord(rec *safetx.Transaction, status, txHash string) {
	if s.db == nil {
		return
	}

	text, err := safetx.Serialize(rec)
	if err != nil {
		logger.Error("序列化审计记录失败", zap.Error(err))
		return
	}

	now := time.Now()
	row := model.SafeTransaction{
		SafeAddress:    s.safeAddress,
		ToAddress:      rec.To,
		Value:          rec.Value,
		Data:           rec.Data,
		Nonce:          rec.Nonce,
		SignatureCount: len(rec.Signatures),
		RawText:        text,
		TxHash:         txHash,
		Status:         status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if status == "submitted" {
		row.SubmittedAt = &now
	}

	if err := s.db.Create(&row).Error; err != nil {
		logger.Error("写入审计记录失败", zap.Error(err))
	}
}

// TransactionExecutedEvent 是执行成功后发往 MQ 的事件
type TransactionExecutedEvent struct {
	SafeAddress string  `json:"safe_address"`
	To          string  `json:"to"`
	Value       string  `json:"value"`
	Nonce       *uint64 `json:"nonce,omitempty"`
	Signatures  int     `json:"signatures"`
	TxHash      string  `json:"tx_hash"`
	ExecutedAt  int64   `json:"executed_at"`
}

func (s *SafeService) publishExecuted(ctx context.Context, rec *safetx.Transaction, txHash string) {
	if s.producer == nil {
		return
	}

	payload, err := json.Marshal(TransactionExecutedEvent{
		SafeAddress: s.safeAddress,
		To:          rec.To,
		Value:       rec.Value,
		Nonce:       rec.Nonce,
		Signatures:  len(rec.Signatures),
		TxHash:      txHash,
		ExecutedAt:  time.Now().Unix(),
	})
	if err != nil {
		logger.Error("序列化执行事件失败", zap.Error(err))
		return
	}

	if err := s.producer.Publish(ctx, topicExecuted, s.safeAddress, payload); err != nil {
		// 事件只是通知，发失败不回滚执行结果
		logger.Error("发布执行事件失败", zap.Error(err))
	}
}
