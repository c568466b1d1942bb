package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sachinchhetri202/robinhood-api-trading/internal/models"
)

// StateStore 持久化每个交易对的运行时状态：
// 止损策略的入场价与定投策略的购买记录。每次变更立即落盘。
type StateStore struct {
	path   string
	logger *zap.Logger

	mu    sync.Mutex
	state persistedState
}

type persistedState struct {
	EntryPrices map[string]decimal.Decimal `json:"entry_prices"`
	DCA         map[string]models.DCAState `json:"dca"`
}

func emptyState() persistedState {
	return persistedState{
		EntryPrices: make(map[string]decimal.Decimal),
		DCA:         make(map[string]models.DCAState),
	}
}

// NewStateStore 创建状态存储并立即加载已有状态。
// 文件缺失或损坏时退化为空状态，不会让引擎启动失败。
func NewStateStore(path string, logger *zap.Logger) *StateStore {
	store := &StateStore{path: path, logger: logger, state: emptyState()}
	store.load()
	return store
}

func (s *StateStore) load() {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to read state file, starting empty",
				zap.String("path", s.path), zap.Error(err))
		}
		return
	}

	var state persistedState
	if err := json.Unmarshal(raw, &state); err != nil {
		s.logger.Warn("state file is corrupt, starting empty",
			zap.String("path", s.path), zap.Error(err))
		return
	}

	if state.EntryPrices == nil {
		state.EntryPrices = make(map[string]decimal.Decimal)
	}
	if state.DCA == nil {
		state.DCA = make(map[string]models.DCAState)
	}
	s.state = state
}

// save 调用方必须持有 s.mu。
func (s *StateStore) save() error {
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("write state file %s: %w", s.path, err)
	}
	return nil
}

// EntryPrice 返回交易对记录的入场价。
func (s *StateStore) EntryPrice(symbol string) (decimal.Decimal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	price, ok := s.state.EntryPrices[symbol]
	return price, ok
}

// SetEntryPrice 记录入场价并立即落盘。
func (s *StateStore) SetEntryPrice(symbol string, price decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.EntryPrices[symbol] = price
	return s.save()
}

// ClearEntryPrice 清除入场价（全部卖出后调用）。
func (s *StateStore) ClearEntryPrice(symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.state.EntryPrices, symbol)
	return s.save()
}

// DCAState 返回交易对的定投状态，不存在时为零值。
func (s *StateStore) DCAState(symbol string) models.DCAState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.DCA[symbol]
}

// UpdateDCAState 更新定投状态并立即落盘。
func (s *StateStore) UpdateDCAState(symbol string, lastPurchaseAt *time.Time, purchaseCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.DCA[symbol] = models.DCAState{
		LastPurchaseAt: lastPurchaseAt,
		PurchaseCount:  purchaseCount,
	}
	return s.save()
}

// Snapshot 返回当前状态的副本，供状态查询接口使用。
func (s *StateStore) Snapshot() (map[string]decimal.Decimal, map[string]models.DCAState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryPrices := make(map[string]decimal.Decimal, len(s.state.EntryPrices))
	for symbol, price := range s.state.EntryPrices {
		entryPrices[symbol] = price
	}
	dca := make(map[string]models.DCAState, len(s.state.DCA))
	for symbol, state := range s.state.DCA {
		dca[symbol] = state
	}
	return entryPrices, dca
}
