package models

// StrategyType 策略类型标签，同时作为持久化文件中的 strategy_type 字段。
type StrategyType string

const (
	StrategyStopLoss     StrategyType = "stop_loss"
	StrategyDCA          StrategyType = "dca"
	StrategyTrailingStop StrategyType = "trailing_stop"
)

// StrategyKey 唯一标识一条策略：类型 + 规范化交易对。
// 同一 (类型, 交易对) 至多存在一条配置，重复添加时覆盖旧配置。
type StrategyKey struct {
	Type   StrategyType
	Symbol string
}

func (k StrategyKey) String() string {
	return string(k.Type) + "_" + k.Symbol
}

// BaseConfig 所有策略共有的配置字段。
type BaseConfig struct {
	Symbol        string `json:"symbol" validate:"required"`
	Enabled       bool   `json:"enabled"`
	CheckInterval int    `json:"check_interval" validate:"gt=0"` // 秒
	MaxRetries    int    `json:"max_retries" validate:"gte=0"`
}

// StrategyConfig 策略配置的和类型接口，具体实现为三种策略的配置结构。
type StrategyConfig interface {
	Type() StrategyType
	Key() StrategyKey
	Base() BaseConfig
}

// StopLossConfig 止损止盈策略配置。
type StopLossConfig struct {
	BaseConfig
	StopLossPercentage     float64 `json:"stop_loss_percentage" validate:"gt=0,lte=100"`
	ProfitTargetPercentage float64 `json:"profit_target_percentage" validate:"gte=0"`
	PositionSizeUSD        float64 `json:"position_size_usd" validate:"gt=0"`
}

func (c StopLossConfig) Type() StrategyType { return StrategyStopLoss }
func (c StopLossConfig) Key() StrategyKey   { return StrategyKey{Type: StrategyStopLoss, Symbol: c.Symbol} }
func (c StopLossConfig) Base() BaseConfig   { return c.BaseConfig }

// DCAConfig 定投策略配置。MaxPurchases 为 0 表示不限次数。
type DCAConfig struct {
	BaseConfig
	AmountPerPurchase float64 `json:"amount_per_purchase" validate:"gt=0"`
	FrequencyDays     int     `json:"frequency_days" validate:"gt=0"`
	MaxPurchases      int     `json:"max_purchases" validate:"gte=0"`
}

func (c DCAConfig) Type() StrategyType { return StrategyDCA }
func (c DCAConfig) Key() StrategyKey   { return StrategyKey{Type: StrategyDCA, Symbol: c.Symbol} }
func (c DCAConfig) Base() BaseConfig   { return c.BaseConfig }

// TrailingStopConfig 移动止损策略配置。
// 执行逻辑目前仅观察价格，不会下单，详见引擎实现。
type TrailingStopConfig struct {
	BaseConfig
	TrailingPercentage   float64 `json:"trailing_percentage" validate:"gt=0,lte=100"`
	ActivationPercentage float64 `json:"activation_percentage" validate:"gte=0"`
	PositionSizeUSD      float64 `json:"position_size_usd" validate:"gt=0"`
}

func (c TrailingStopConfig) Type() StrategyType { return StrategyTrailingStop }
func (c TrailingStopConfig) Key() StrategyKey {
	return StrategyKey{Type: StrategyTrailingStop, Symbol: c.Symbol}
}
func (c TrailingStopConfig) Base() BaseConfig { return c.BaseConfig }
