package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/sachinchhetri202/robinhood-api-trading/internal/xe"
)

type Config struct {
	Robinhood RobinhoodConf `json:"robinhood"`
	Client    ClientConf    `json:"client"`
	Trading   TradingConf   `json:"trading"`
	Telegram  TelegramConf  `json:"telegram"`
	API       APIConf       `json:"api"`
	Log       LogConf       `json:"log"`
}

type RobinhoodConf struct {
	APIKey           string `json:"api_key" validate:"required"`
	Base64PrivateKey string `json:"base64_private_key" validate:"required"`
	BaseURL          string `json:"base_url"`
}

type ClientConf struct {
	TimeoutSeconds          int   `json:"timeout_seconds" validate:"gt=0"`
	MaxRetries              int   `json:"max_retries" validate:"gte=0"`
	BackoffBaseMillis       int   `json:"backoff_base_millis" validate:"gt=0"`
	BackoffMaxMillis        int   `json:"backoff_max_millis" validate:"gt=0"`
	JitterMillis            int   `json:"jitter_millis" validate:"gte=0"`
	RetryStatuses           []int `json:"retry_statuses"`            // 除 429/5xx 外额外可重试的状态码
	RateLimitPerMinute      int   `json:"rate_limit_per_minute"`     // <=0 表示不限流
	CircuitBreakerThreshold int   `json:"circuit_breaker_threshold" validate:"gt=0"`
	CircuitBreakerCooldown  int   `json:"circuit_breaker_cooldown_seconds" validate:"gt=0"`
}

type TradingConf struct {
	DataDir        string `json:"data_dir"`
	StrategiesFile string `json:"strategies_file"`
	StateFile      string `json:"state_file"`
	TickSeconds    int    `json:"tick_seconds" validate:"gt=0"` // 引擎轮询周期
}

type TelegramConf struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
	ChatID  string `json:"chat_id"`
}

type APIConf struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

type LogConf struct {
	Level string `json:"level"`
}

// 凭证相关的环境变量，优先级高于配置文件。
const (
	envAPIKey     = "API_KEY"
	envPrivateKey = "BASE64_PRIVATE_KEY"
	envBaseURL    = "ROBINHOOD_API_BASE_URL"
)

// Default 返回带默认值的配置。
func Default() *Config {
	return &Config{
		Client: ClientConf{
			TimeoutSeconds:          10,
			MaxRetries:              3,
			BackoffBaseMillis:       500,
			BackoffMaxMillis:        8000,
			JitterMillis:            100,
			RateLimitPerMinute:      100,
			CircuitBreakerThreshold: 5,
			CircuitBreakerCooldown:  60,
		},
		Trading: TradingConf{
			DataDir:        "data",
			StrategiesFile: "strategies.json",
			StateFile:      "state.json",
			TickSeconds:    60,
		},
		API: APIConf{
			Addr: "127.0.0.1:8090",
		},
		Log: LogConf{
			Level: "info",
		},
	}
}

// Load 读取 JSON 配置文件，叠加环境变量，最后做整体校验。
// 文件不存在时允许完全由环境变量提供凭证。
func Load(path string) (*Config, error) {
	conf := Default()

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(raw, conf); err != nil {
			return nil, fmt.Errorf("%w: %v", xe.ErrInvalidConfig, err)
		}
	case os.IsNotExist(err):
		// 仅环境变量模式
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if key := os.Getenv(envAPIKey); key != "" {
		conf.Robinhood.APIKey = key
	}
	if key := os.Getenv(envPrivateKey); key != "" {
		conf.Robinhood.Base64PrivateKey = key
	}
	if base := os.Getenv(envBaseURL); base != "" {
		conf.Robinhood.BaseURL = base
	}

	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// Validate 校验配置完整性，凭证缺失单独报出。
func (c *Config) Validate() error {
	if c.Robinhood.APIKey == "" || c.Robinhood.Base64PrivateKey == "" {
		return xe.ErrMissingCredentials
	}
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", xe.ErrInvalidConfig, err)
	}
	return nil
}

// StrategiesPath 策略配置文件的完整路径。
func (c *Config) StrategiesPath() string {
	return filepath.Join(c.Trading.DataDir, c.Trading.StrategiesFile)
}

// StatePath 运行状态文件的完整路径。
func (c *Config) StatePath() string {
	return filepath.Join(c.Trading.DataDir, c.Trading.StateFile)
}

// ClientTimeout 客户端超时时间。
func (c *ClientConf) ClientTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
