package main

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"safe-core/internal/handler"
	"safe-core/internal/model"
	"safe-core/internal/safe"
	"safe-core/internal/server"
	"safe-core/internal/service"
	"safe-core/internal/service/mq"
	"safe-core/internal/state"
	"safe-core/internal/wallet"
	"safe-core/internal/worker"
	"safe-core/pkg/config"
	"safe-core/pkg/database"
	"safe-core/pkg/logger"

	"go.uber.org/zap"
)

// @title Safe Core API
// @version 1.0
// @description Safe multisig transaction coordination server
// @BasePath /api/v1
func main() {
	// 0. 初始化 Config
	config.Init()

	// 1. 初始化 Logger
	logger.Init(config.Global.App.Env)
	defer logger.Sync()

	// 2. 连接数据库
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=Asia/Shanghai",
		config.Global.DB.Host,
		config.Global.DB.User,
		config.Global.DB.Password,
		config.Global.DB.Name,
		config.Global.DB.Port,
	)
	db, err := database.ConnectPostgres(dsn)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}

	// 3. 连接 Redis
	rdb, err := database.ConnectRedis(config.Global.Redis.Addr, config.Global.Redis.Password, config.Global.Redis.DB)
	if err != nil {
		logger.Fatal("Redis 连接失败", zap.Error(err))
	}

	// 4. 数据库迁移 (开发环境 AutoMigrate，生产用 migrate 工具)
	if config.Global.App.Env == "development" {
		logger.Info("开发环境: 尝试自动迁移 Schema (GORM AutoMigrate)...")
		if err := db.AutoMigrate(model.AllModels()...); err != nil {
			logger.Fatal("数据库自动迁移失败", zap.Error(err))
		}
	}

	// 5. 初始化钱包 Provider (Keystore 目录扮演浏览器钱包的角色)
	chainID := big.NewInt(config.Global.Chain.ChainID)
	provider := wallet.NewKeystoreProvider(config.Global.Safe.KeystorePath, config.Global.Safe.Password, chainID)

	// 6. 初始化 Safe 合约网关
	safeClient, err := safe.NewClient(safe.Config{
		RpcUrl:       config.Global.Chain.RpcUrl,
		ChainID:      config.Global.Chain.ChainID,
		SafeAddress:  config.Global.Safe.Address,
		ProxyFactory: config.Global.Safe.ProxyFactory,
		Singleton:    config.Global.Safe.Singleton,
	}, provider)
	if err != nil {
		logger.Fatal("Safe 网关初始化失败", zap.Error(err))
	}

	// 7. 初始化消息队列 Producer
	var producer mq.Producer
	if config.Global.Redis.MQType == "kafka" {
		logger.Info("使用 Kafka 发布执行事件...")
		producer = mq.NewKafkaProducer(config.Global.Kafka.Brokers)
	} else {
		logger.Info("使用 Redis Streams 发布执行事件...")
		producer = mq.NewRedisProducer(rdb)
	}

	// 8. 业务服务
	svc := service.NewSafeService(provider, safeClient, config.Global.Safe.Address, db, producer)
	share := service.NewShareStore(rdb, time.Duration(config.Global.Safe.ShareTTLMin)*time.Minute)

	// 9. 状态仓库
	store := state.NewStore()
	store.Update(func(snap state.Snapshot) state.Snapshot {
		snap.SafeAddress = config.Global.Safe.Address
		return snap
	})

	// 10. 后台解析 Worker + 结果回灌
	ctx, cancel := context.WithCancel(context.Background())
	parser := worker.NewParseWorker(16)
	parser.Start(ctx)
	go func() {
		for res := range parser.Results() {
			store.ApplyParseResult(res.Seq, res.Tx, res.Err)
		}
	}()

	// 11. 账户变化通知: 当前账户被移除时清空连接状态
	go func() {
		for range provider.AccountChanges() {
			if _, err := provider.SignerAddress(); err != nil {
				store.SetConnectedAddress("")
			}
		}
	}()

	// 12. HTTP Router + App
	h := handler.NewSafeHandler(svc, store, parser, share)
	r := server.NewHTTPRouter(h)

	app := server.New(server.Config{HttpPort: config.Global.App.HttpPort}, r)
	app.OnShutdown(func() {
		cancel()
		parser.Stop()
		provider.Close()
		safeClient.Close()
		producer.Close()
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
		rdb.Close()
	})

	// 运行 (阻塞)
	app.Run()
	logger.Info("系统已退出")
}
