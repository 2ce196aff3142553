package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"safe-core/pkg/crypto_util"
	"safe-core/pkg/errno"
	"safe-core/pkg/logger"
	"safe-core/pkg/safe_random"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const sharePrefix = "safe:share:"

// ShareStore 用短分享码中转序列化交易文本。
// 这是复制粘贴交换的一个可选便利通道: 文本本身仍然是唯一载体，
// Redis 只是个带过期时间的投递箱。
type ShareStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewShareStore(rdb *redis.Client, ttl time.Duration) *ShareStore {
	return &ShareStore{rdb: rdb, ttl: ttl}
}

// Save 保存一段交易文本，返回 8 位分享码
func (s *ShareStore) Save(ctx context.Context, text string) (string, error) {
	code, err := safe_random.GenerateRandomHexString(4)
	if err != nil {
		return "", err
	}

	if err := s.rdb.Set(ctx, sharePrefix+code, text, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("保存分享码失败: %w", err)
	}

	// 日志里只留内容摘要，避免把完整交易文本打进日志
	logger.Info("交易文本已暂存",
		zap.String("code", code),
		zap.String("digest", crypto_util.CalculateSHA256([]byte(text))[:16]),
	)
	return code, nil
}

// Load 取回分享码对应的交易文本；不存在或已过期返回 ErrShareNotFound
func (s *ShareStore) Load(ctx context.Context, code string) (string, error) {
	text, err := s.rdb.Get(ctx, sharePrefix+code).Result()
	if errors.Is(err, redis.Nil) {
		return "", errno.ErrShareNotFound
	}
	if err != nil {
		return "", fmt.Errorf("读取分享码失败: %w", err)
	}
	return text, nil
}
