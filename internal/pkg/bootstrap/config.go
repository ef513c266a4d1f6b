// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App       AppConfig       `yaml:"app"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Services  ServicesConfig  `yaml:"services"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Saga      SagaConfig      `yaml:"saga"`
	Journal   JournalConfig   `yaml:"journal"`
	Infra     InfraConfig     `yaml:"infra"`
}

type AppConfig struct {
	Name      string `yaml:"name"`
	HTTPPort  int    `yaml:"http_port"`
	LogLevel  string `yaml:"log_level"`
	LogPretty bool   `yaml:"log_pretty"`
}

type KafkaConfig struct {
	Brokers             []string `yaml:"brokers"`
	InboundTopic        string   `yaml:"inbound_topic"`
	GroupID             string   `yaml:"group_id"`
	OutcomeTopic        string   `yaml:"outcome_topic"`
	AlertTopic          string   `yaml:"alert_topic"`
	AlertGroupID        string   `yaml:"alert_group_id"`
	ConsumerConcurrency int      `yaml:"consumer_concurrency"`
	EnsureTopics        bool     `yaml:"ensure_topics"`
	TopicPartitions     int      `yaml:"topic_partitions"`
}

type ServiceEndpoint struct {
	Name    string `yaml:"name"`     // 注册中心中的服务名
	BaseURL string `yaml:"base_url"` // 静态地址，注册中心不可用时兜底
}

type ServicesConfig struct {
	Inventory ServiceEndpoint `yaml:"inventory"`
	Payment   ServiceEndpoint `yaml:"payment"`
}

type DiscoveryConfig struct {
	Driver    string          `yaml:"driver"` // static | nacos | zookeeper
	Register  bool            `yaml:"register"`
	Nacos     NacosConfig     `yaml:"nacos"`
	Zookeeper ZookeeperConfig `yaml:"zookeeper"`
}

type NacosConfig struct {
	Addrs     string `yaml:"addrs"`
	Namespace string `yaml:"namespace"`
	Group     string `yaml:"group"`
}

type ZookeeperConfig struct {
	Servers        []string      `yaml:"servers"`
	Root           string        `yaml:"root"`
	SessionTimeout time.Duration `yaml:"session_timeout"`
}

type SagaConfig struct {
	Timeout             time.Duration `yaml:"timeout"`
	CallTimeout         time.Duration `yaml:"call_timeout"`
	CompensationTimeout time.Duration `yaml:"compensation_timeout"`
	FanOutLimit         int           `yaml:"fan_out_limit"`
	CheckRetries        int           `yaml:"check_retries"`
	StockRule           string        `yaml:"stock_rule"`
}

type JournalConfig struct {
	Driver string        `yaml:"driver"` // memory | redis | mysql | none
	TTL    time.Duration `yaml:"ttl"`
	Redis  RedisConfig   `yaml:"redis"`
	MySQL  MySQLConfig   `yaml:"mysql"`
}

type RedisConfig struct {
	Addrs    []string `yaml:"addrs"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
}

type MySQLConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	User         string        `yaml:"user"`
	Password     string        `yaml:"password"`
	Database     string        `yaml:"database"`
	MaxOpenConns int           `yaml:"max_open_conns"`
	MaxIdleConns int           `yaml:"max_idle_conns"`
	ConnMaxLife  time.Duration `yaml:"conn_max_lifetime"`
}

type InfraConfig struct {
	Jaeger JaegerConfig `yaml:"jaeger"`
}

type JaegerConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// DefaultConfig 与原有 Kafka topic / consumer group 约定保持一致
func DefaultConfig() Config {
	return Config{
		App: AppConfig{Name: "orchestrator-service", HTTPPort: 8081, LogLevel: "info"},
		Kafka: KafkaConfig{
			Brokers:             []string{"localhost:9092"},
			InboundTopic:        "orchestrator",
			GroupID:             "phincommerce",
			OutcomeTopic:        "order",
			AlertTopic:          "orchestrator-alerts",
			AlertGroupID:        "phincommerce-auditor",
			ConsumerConcurrency: 1,
			EnsureTopics:        true,
			TopicPartitions:     1,
		},
		Services: ServicesConfig{
			Inventory: ServiceEndpoint{Name: "product-service", BaseURL: "http://localhost:8082"},
			Payment:   ServiceEndpoint{Name: "payment-service", BaseURL: "http://localhost:8083"},
		},
		Discovery: DiscoveryConfig{
			Driver:    "static",
			Nacos:     NacosConfig{Addrs: "localhost:8848", Group: "DEFAULT_GROUP"},
			Zookeeper: ZookeeperConfig{Servers: []string{"localhost:2181"}, SessionTimeout: 10 * time.Second},
		},
		Saga: SagaConfig{
			Timeout:             60 * time.Second,
			CallTimeout:         10 * time.Second,
			CompensationTimeout: 30 * time.Second,
			FanOutLimit:         8,
		},
		Journal: JournalConfig{
			Driver: "memory",
			TTL:    7 * 24 * time.Hour,
			Redis:  RedisConfig{Addrs: []string{"localhost:6379"}},
			MySQL:  MySQLConfig{Host: "localhost", Port: 3306, User: "root", Database: "phincommerce", MaxOpenConns: 20, MaxIdleConns: 5, ConnMaxLife: time.Hour},
		},
		Infra: InfraConfig{Jaeger: JaegerConfig{Endpoint: "http://localhost:14268/api/traces", SampleRatio: 1}},
	}
}

var currentConfig atomic.Pointer[Config]

// GetCurrentConfig 返回最近一次加载的配置，未加载时返回默认配置
func GetCurrentConfig() *Config {
	if cfg := currentConfig.Load(); cfg != nil {
		return cfg
	}
	cfg := DefaultConfig()
	return &cfg
}

// LoadConfig 读取 YAML 文件（不存在时使用默认值），再应用环境变量覆盖
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, errors.Wrapf(err, "parse config %s", path)
			}
		case os.IsNotExist(err):
			// 没有配置文件时完全依赖默认值和环境变量
		default:
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	currentConfig.Store(&cfg)
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := getEnv("KAFKA_BROKERS", ""); v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}
	if v := getEnv("JAEGER_ENDPOINT", ""); v != "" {
		cfg.Infra.Jaeger.Endpoint = v
	}
	if v := getEnv("INVENTORY_BASE_URL", ""); v != "" {
		cfg.Services.Inventory.BaseURL = v
	}
	if v := getEnv("PAYMENT_BASE_URL", ""); v != "" {
		cfg.Services.Payment.BaseURL = v
	}
	if v := getEnv("REDIS_ADDRS", ""); v != "" {
		cfg.Journal.Redis.Addrs = splitList(v)
	}
	if v := getEnv("JOURNAL_DRIVER", ""); v != "" {
		cfg.Journal.Driver = v
	}
	if v := getEnv("DISCOVERY_DRIVER", ""); v != "" {
		cfg.Discovery.Driver = v
	}
	if v := getEnv("NACOS_SERVER_ADDRS", ""); v != "" {
		cfg.Discovery.Nacos.Addrs = v
	}
	if v := getEnv("NACOS_NAMESPACE", ""); v != "" {
		cfg.Discovery.Nacos.Namespace = v
	}
	if v := getEnv("LOG_LEVEL", ""); v != "" {
		cfg.App.LogLevel = v
	}
	if v := getEnv("HTTP_PORT", ""); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.App.HTTPPort = port
		}
	}
}

// Validate 检查必填项和取值范围
func (c *Config) Validate() error {
	if len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers must not be empty")
	}
	if c.Kafka.InboundTopic == "" || c.Kafka.OutcomeTopic == "" || c.Kafka.GroupID == "" {
		return errors.New("kafka.inbound_topic, kafka.outcome_topic and kafka.group_id are required")
	}
	if c.Kafka.ConsumerConcurrency < 1 {
		return errors.Errorf("kafka.consumer_concurrency must be >= 1, got %d", c.Kafka.ConsumerConcurrency)
	}
	if c.Saga.FanOutLimit < 1 {
		return errors.Errorf("saga.fan_out_limit must be >= 1, got %d", c.Saga.FanOutLimit)
	}
	if c.Saga.CheckRetries < 0 {
		return errors.Errorf("saga.check_retries must be >= 0, got %d", c.Saga.CheckRetries)
	}
	switch c.Discovery.Driver {
	case "static":
		if c.Services.Inventory.BaseURL == "" || c.Services.Payment.BaseURL == "" {
			return errors.New("static discovery requires services.inventory.base_url and services.payment.base_url")
		}
	case "nacos", "zookeeper":
	default:
		return errors.Errorf("unknown discovery.driver %q", c.Discovery.Driver)
	}
	switch c.Journal.Driver {
	case "memory", "redis", "mysql", "none":
	default:
		return errors.Errorf("unknown journal.driver %q", c.Journal.Driver)
	}
	return nil
}

// getEnv 是一个内部辅助函数，从环境变量中读取配置。
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
