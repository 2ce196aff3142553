package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	App   AppConfig   `mapstructure:"app"`
	DB    DBConfig    `mapstructure:"db"`
	Redis RedisConfig `mapstructure:"redis"`
	Kafka KafkaConfig `mapstructure:"kafka"`
	Chain ChainConfig `mapstructure:"chain"`
	Safe  SafeConfig  `mapstructure:"safe"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	HttpPort string `mapstructure:"http_port"`
}

type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	MQType   string `mapstructure:"mq_type"` // "redis" or "kafka"
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
}

type ChainConfig struct {
	RpcUrl  string `mapstructure:"rpc_url"`
	ChainID int64  `mapstructure:"chain_id"`
}

type SafeConfig struct {
	Address      string `mapstructure:"address"`       // 已部署的 Safe 合约地址
	ProxyFactory string `mapstructure:"proxy_factory"` // Proxy Factory 地址 (部署新 Safe 用)
	Singleton    string `mapstructure:"singleton"`     // Safe Singleton (Master Copy) 地址
	KeystorePath string `mapstructure:"keystore_path"` // 本地 Keystore 目录
	Password     string `mapstructure:"password"`      // Keystore 密码 (通常通过环境变量 SAFE_PASSWORD 传入)
	ShareTTLMin  int    `mapstructure:"share_ttl_min"` // 分享码有效期 (分钟)
}

var Global Config

func Init() {
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yaml")   // REQUIRED if the config file does not have the extension in the name
	viper.AddConfigPath(".")      // optionally look for config in the working directory
	viper.AddConfigPath("./config")

	// 环境变量设置
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 设置默认值
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; ignore error if desired
			log.Printf("Warning: Config file not found, using defaults and environment variables")
		} else {
			// Config file was found but another error was produced
			log.Fatalf("Fatal error config file: %s \n", err)
		}
	}

	if err := viper.Unmarshal(&Global); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}

	log.Printf("Configuration loaded successfully. Env: %s", Global.App.Env)
}

func setDefaults() {
	viper.SetDefault("app.env", "development")
	viper.SetDefault("app.http_port", "8080")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.user", "safe_user")
	viper.SetDefault("db.password", "safe_password")
	viper.SetDefault("db.name", "safe_db")

	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.mq_type", "redis")

	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})

	viper.SetDefault("chain.rpc_url", "http://localhost:8545")
	viper.SetDefault("chain.chain_id", int64(1))

	viper.SetDefault("safe.keystore_path", "keystore")
	viper.SetDefault("safe.share_ttl_min", 60)
}
