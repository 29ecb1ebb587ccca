package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/Avadhutgiri/my-online-judge/internal/common/cache"
	"github.com/Avadhutgiri/my-online-judge/internal/common/mq"
	"github.com/Avadhutgiri/my-online-judge/internal/common/storage"
	"github.com/Avadhutgiri/my-online-judge/internal/judge/consumer"
	"github.com/Avadhutgiri/my-online-judge/internal/judge/model"
	"github.com/Avadhutgiri/my-online-judge/internal/judge/oracle"
	"github.com/Avadhutgiri/my-online-judge/internal/judge/repository"
	"github.com/Avadhutgiri/my-online-judge/internal/judge/sandbox"
	"github.com/Avadhutgiri/my-online-judge/internal/judge/toolchain"
	"github.com/Avadhutgiri/my-online-judge/internal/judge/webhook"
	"github.com/Avadhutgiri/my-online-judge/pkg/utils/logger"

	"github.com/joho/godotenv"
	"github.com/segmentio/kafka-go"
	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8085"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultRedisAddr       = "localhost:6379"
	defaultWorkRoot        = "submissions"
	defaultProblemsRoot    = "problems"
	defaultPollInterval    = time.Second
	defaultPublishTimeout  = 10 * time.Second
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// KafkaConfig holds result event settings. Events are disabled without brokers.
type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`
	ClientID     string        `yaml:"clientID"`
	BatchSize    int           `yaml:"batchSize"`
	BatchTimeout time.Duration `yaml:"batchTimeout"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	RequiredAcks int           `yaml:"requiredAcks"`
	Compression  string        `yaml:"compression"`
	ResultTopic  string        `yaml:"resultTopic"`
}

// Enabled reports whether result events are published.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// ResultConfig holds result cache settings.
type ResultConfig struct {
	Redis cache.RedisConfig `yaml:"redis"`
	TTL   time.Duration     `yaml:"ttl"`
}

// StorageConfig holds object storage settings.
type StorageConfig struct {
	MinIO   storage.MinIOConfig `yaml:"minio"`
	Timeout time.Duration       `yaml:"timeout"`
}

// JudgeConfig holds pipeline settings.
type JudgeConfig struct {
	WorkRoot string `yaml:"workRoot"`
	// HostRoot is WorkRoot as seen by the container runtime.
	HostRoot       string        `yaml:"hostRoot"`
	ProblemsRoot   string        `yaml:"problemsRoot"`
	CompileTimeout time.Duration `yaml:"compileTimeout"`
	PublishTimeout time.Duration `yaml:"publishTimeout"`
}

// WorkerConfig holds consumer loop settings.
type WorkerConfig struct {
	Queues       []string          `yaml:"queues"`
	Concurrency  int               `yaml:"concurrency"`
	PollInterval time.Duration     `yaml:"pollInterval"`
	Broker       cache.RedisConfig `yaml:"broker"`
	Consumer     consumer.Config   `yaml:"consumer"`
}

// AppConfig holds judge-worker config.
type AppConfig struct {
	Server    ServerConfig                  `yaml:"server"`
	Logger    logger.Config                 `yaml:"logger"`
	Worker    WorkerConfig                  `yaml:"worker"`
	Result    ResultConfig                  `yaml:"result"`
	Webhook   webhook.Config                `yaml:"webhook"`
	Kafka     KafkaConfig                   `yaml:"kafka"`
	Storage   StorageConfig                 `yaml:"storage"`
	Judge     JudgeConfig                   `yaml:"judge"`
	Sandbox   sandbox.Config                `yaml:"sandbox"`
	Oracle    oracle.Config                 `yaml:"oracle"`
	Languages map[string]toolchain.Override `yaml:"languages"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

// loadAppConfig reads the optional YAML file and env file, then applies
// environment overrides and defaults.
func loadAppConfig(path, envPath string) (*AppConfig, error) {
	var cfg AppConfig
	if path != "" {
		err := loadYAML(path, &cfg)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env file failed: %w", err)
		}
	}
	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	applyServerDefaults(&cfg.Server)
	applyWorkerDefaults(&cfg.Worker)
	applyResultDefaults(&cfg.Result)
	applyJudgeDefaults(&cfg.Judge)
	cfg.Webhook.ApplyDefaults()
	cfg.Sandbox.ApplyDefaults()
	cfg.Oracle.ApplyDefaults()
	if cfg.Kafka.ResultTopic == "" {
		cfg.Kafka.ResultTopic = repository.DefaultResultTopic
	}
	for _, queue := range cfg.Worker.Queues {
		if _, ok := model.ModeForQueue(queue); !ok {
			return nil, fmt.Errorf("unknown queue %q", queue)
		}
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *AppConfig) error {
	addr, err := envAddr("REDIS_HOST", "REDIS_PORT", cfg.Worker.Broker.Addr)
	if err != nil {
		return err
	}
	cfg.Worker.Broker.Addr = addr

	addr, err = envAddr("RESULT_REDIS_HOST", "RESULT_REDIS_PORT", cfg.Result.Redis.Addr)
	if err != nil {
		return err
	}
	cfg.Result.Redis.Addr = addr

	if host := os.Getenv("WEBHOOK_HOST"); host != "" {
		cfg.Webhook.Host = host
	}
	if raw := os.Getenv("WEBHOOK_PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 {
			return fmt.Errorf("invalid WEBHOOK_PORT %q", raw)
		}
		cfg.Webhook.Port = port
	}
	if base := os.Getenv("BASE_DIR"); base != "" {
		cfg.Judge.HostRoot = base
	}
	return nil
}

// envAddr combines host and port variables with the configured address.
func envAddr(hostKey, portKey, current string) (string, error) {
	if current == "" {
		current = defaultRedisAddr
	}
	host, port, err := net.SplitHostPort(current)
	if err != nil {
		return "", fmt.Errorf("invalid redis addr %q: %w", current, err)
	}
	if v := os.Getenv(hostKey); v != "" {
		host = v
	}
	if v := os.Getenv(portKey); v != "" {
		if _, err := strconv.Atoi(v); err != nil {
			return "", fmt.Errorf("invalid %s %q", portKey, v)
		}
		port = v
	}
	return net.JoinHostPort(host, port), nil
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Addr == "" {
		cfg.Addr = defaultHTTPAddr
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
}

func applyWorkerDefaults(cfg *WorkerConfig) {
	if len(cfg.Queues) == 0 {
		cfg.Queues = []string{model.QueueRun, model.QueueSubmit, model.QueueSystem}
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	cfg.Broker.ApplyDefaults()
	cfg.Consumer.ApplyDefaults()
}

func applyResultDefaults(cfg *ResultConfig) {
	cfg.Redis.ApplyDefaults()
}

func applyJudgeDefaults(cfg *JudgeConfig) {
	if cfg.WorkRoot == "" {
		cfg.WorkRoot = defaultWorkRoot
	}
	if cfg.ProblemsRoot == "" {
		cfg.ProblemsRoot = defaultProblemsRoot
	}
	if cfg.PublishTimeout == 0 {
		cfg.PublishTimeout = defaultPublishTimeout
	}
}

func (k KafkaConfig) toMQConfig() mq.KafkaConfig {
	return mq.KafkaConfig{
		Brokers:      k.Brokers,
		ClientID:     k.ClientID,
		BatchSize:    k.BatchSize,
		BatchTimeout: k.BatchTimeout,
		DialTimeout:  k.DialTimeout,
		WriteTimeout: k.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(k.RequiredAcks),
		Compression:  mq.ParseCompression(k.Compression),
	}
}
