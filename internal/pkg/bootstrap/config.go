// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/haomehaode/kuileme/internal/pkg/database"
	"github.com/haomehaode/kuileme/internal/pkg/nacos"
	"github.com/haomehaode/kuileme/internal/service/rewards/domain"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const defaultConfigFile = "configs/growth-service.yaml"

type AppConfig struct {
	Name     string `yaml:"name" env:"NAME"`
	Port     int    `yaml:"port" env:"PORT"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`
}

type JaegerConfig struct {
	Endpoint string `yaml:"endpoint" env:"ENDPOINT"`
}

type RedisConfig struct {
	Addrs string `yaml:"addrs" env:"ADDRS"` // 为空时不启用库存闸门
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers" env:"BROKERS" envSeparator:","` // 为空时不启用事件收发
}

type InfraConfig struct {
	Jaeger   JaegerConfig    `yaml:"jaeger" envPrefix:"JAEGER_"`
	Database database.Config `yaml:"database" envPrefix:"DB_"`
	Redis    RedisConfig     `yaml:"redis" envPrefix:"REDIS_"`
	Kafka    KafkaConfig     `yaml:"kafka" envPrefix:"KAFKA_"`
	Nacos    nacos.Config    `yaml:"nacos" envPrefix:"NACOS_"`
}

// LedgerConfig 账本与抽奖相关的业务参数
type LedgerConfig struct {
	MaxRetries  int               `yaml:"max_retries" env:"MAX_RETRIES"`
	LockTimeout time.Duration     `yaml:"lock_timeout" env:"LOCK_TIMEOUT"`
	LotteryCost decimal.Decimal   `yaml:"lottery_cost" env:"LOTTERY_COST"`
	ExpPerLevel int64             `yaml:"exp_per_level" env:"EXP_PER_LEVEL"`
	Prizes      domain.PrizeTable `yaml:"prizes" envPrefix:"PRIZES_"` // 为空时使用默认奖池
}

// Config 服务的完整配置：YAML 文件打底，环境变量覆盖
type Config struct {
	App         AppConfig    `yaml:"app" envPrefix:"APP_"`
	Infra       InfraConfig  `yaml:"infra"`
	Ledger      LedgerConfig `yaml:"ledger" envPrefix:"LEDGER_"`
	CatalogFile string       `yaml:"catalog_file" env:"CATALOG_FILE"`
}

var currentConfig atomic.Pointer[Config]

// Defaults 返回未加载任何文件时的配置
func Defaults() Config {
	return Config{
		App: AppConfig{Name: "growth-service", Port: 8088, LogLevel: "info"},
		Infra: InfraConfig{
			Jaeger:   JaegerConfig{Endpoint: "http://localhost:14268/api/traces"},
			Database: database.Config{Driver: "sqlite", DSN: "file:growth.db?_busy_timeout=5000", MaxOpenConns: 1},
		},
		Ledger: LedgerConfig{
			MaxRetries:  3,
			LockTimeout: 3 * time.Second,
			LotteryCost: decimal.NewFromInt(1),
			ExpPerLevel: domain.DefaultExpPerLevel,
		},
	}
}

// Init 加载 .env、YAML 配置文件与环境变量，并设置为当前配置。
// 配置文件路径取自 CONFIG_FILE，文件不存在时只使用默认值和环境变量。
func Init() (*Config, error) {
	// .env 是可选的
	_ = godotenv.Load()

	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		path = defaultConfigFile
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	currentConfig.Store(cfg)
	return cfg, nil
}

// Load 从指定文件读取配置，再应用环境变量覆盖
func Load(path string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 检查配置的基本合法性
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("config: app.name is required")
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("config: invalid app.port %d", c.App.Port)
	}
	if !c.Ledger.LotteryCost.IsPositive() {
		return fmt.Errorf("config: ledger.lottery_cost must be positive")
	}
	if c.Ledger.ExpPerLevel < 0 {
		return fmt.Errorf("config: ledger.exp_per_level must not be negative")
	}
	if len(c.Ledger.Prizes) > 0 {
		if err := c.Ledger.Prizes.Validate(); err != nil {
			return fmt.Errorf("config: ledger.prizes: %w", err)
		}
	}
	return nil
}

// PrizeTable 返回配置的奖池，未配置时返回默认奖池
func (c *Config) PrizeTable() domain.PrizeTable {
	if len(c.Ledger.Prizes) == 0 {
		return domain.DefaultPrizeTable()
	}
	return c.Ledger.Prizes
}

// GetCurrentConfig 返回 Init 加载的配置；未初始化时返回默认配置
func GetCurrentConfig() *Config {
	if cfg := currentConfig.Load(); cfg != nil {
		return cfg
	}
	cfg := Defaults()
	return &cfg
}
