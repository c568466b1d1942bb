package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"

	"github.com/sachinchhetri202/robinhood-api-trading/internal/models"
	"github.com/sachinchhetri202/robinhood-api-trading/pkg/symbols"
)

// StrategyStore 以 JSON 文件持久化策略配置。
// 文件格式: {"strategies": [{..字段.., "strategy_type": "dca"}]}
type StrategyStore struct {
	path   string
	logger *zap.Logger
}

func NewStrategyStore(path string, logger *zap.Logger) *StrategyStore {
	return &StrategyStore{path: path, logger: logger}
}

type strategyFile struct {
	Strategies []json.RawMessage `json:"strategies"`
}

// 持久化记录在原始配置上附加 strategy_type 标签。
type stopLossRecord struct {
	models.StopLossConfig
	StrategyType models.StrategyType `json:"strategy_type"`
}

type dcaRecord struct {
	models.DCAConfig
	StrategyType models.StrategyType `json:"strategy_type"`
}

type trailingStopRecord struct {
	models.TrailingStopConfig
	StrategyType models.StrategyType `json:"strategy_type"`
}

// Load 读取策略配置。文件缺失或损坏时返回空集合而不是报错，
// 未知的 strategy_type 跳过。
func (s *StrategyStore) Load() map[models.StrategyKey]models.StrategyConfig {
	configs := make(map[models.StrategyKey]models.StrategyConfig)

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to read strategy file, starting empty",
				zap.String("path", s.path), zap.Error(err))
		}
		return configs
	}

	var file strategyFile
	if err := json.Unmarshal(raw, &file); err != nil {
		s.logger.Warn("strategy file is corrupt, starting empty",
			zap.String("path", s.path), zap.Error(err))
		return configs
	}

	for _, item := range file.Strategies {
		var probe struct {
			StrategyType models.StrategyType `json:"strategy_type"`
		}
		if err := json.Unmarshal(item, &probe); err != nil {
			continue
		}

		config, err := decodeStrategy(probe.StrategyType, item)
		if err != nil {
			s.logger.Warn("skipping unreadable strategy record",
				zap.String("strategy_type", string(probe.StrategyType)), zap.Error(err))
			continue
		}
		if config == nil {
			s.logger.Warn("skipping unknown strategy type",
				zap.String("strategy_type", string(probe.StrategyType)))
			continue
		}
		configs[config.Key()] = config
	}

	return configs
}

func decodeStrategy(strategyType models.StrategyType, item json.RawMessage) (models.StrategyConfig, error) {
	switch strategyType {
	case models.StrategyStopLoss:
		var config models.StopLossConfig
		if err := json.Unmarshal(item, &config); err != nil {
			return nil, err
		}
		config.Symbol = symbols.NormalizeToUSD(config.Symbol)
		return config, nil
	case models.StrategyDCA:
		var config models.DCAConfig
		if err := json.Unmarshal(item, &config); err != nil {
			return nil, err
		}
		config.Symbol = symbols.NormalizeToUSD(config.Symbol)
		return config, nil
	case models.StrategyTrailingStop:
		var config models.TrailingStopConfig
		if err := json.Unmarshal(item, &config); err != nil {
			return nil, err
		}
		config.Symbol = symbols.NormalizeToUSD(config.Symbol)
		return config, nil
	default:
		return nil, nil
	}
}

// Save 全量写回策略配置，写入顺序按键排序保证文件稳定。
func (s *StrategyStore) Save(configs map[models.StrategyKey]models.StrategyConfig) error {
	keys := make([]models.StrategyKey, 0, len(configs))
	for key := range configs {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})

	file := strategyFile{Strategies: make([]json.RawMessage, 0, len(keys))}
	for _, key := range keys {
		record, err := encodeStrategy(configs[key])
		if err != nil {
			return fmt.Errorf("encode strategy %s: %w", key, err)
		}
		file.Strategies = append(file.Strategies, record)
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("encode strategy file: %w", err)
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("write strategy file %s: %w", s.path, err)
	}
	return nil
}

func encodeStrategy(config models.StrategyConfig) (json.RawMessage, error) {
	switch c := config.(type) {
	case models.StopLossConfig:
		return json.Marshal(stopLossRecord{StopLossConfig: c, StrategyType: c.Type()})
	case models.DCAConfig:
		return json.Marshal(dcaRecord{DCAConfig: c, StrategyType: c.Type()})
	case models.TrailingStopConfig:
		return json.Marshal(trailingStopRecord{TrailingStopConfig: c, StrategyType: c.Type()})
	default:
		return nil, fmt.Errorf("unsupported strategy config %T", config)
	}
}
