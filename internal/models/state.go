package models

import "time"

// DCAState 定投策略的运行时状态。
type DCAState struct {
	LastPurchaseAt *time.Time `json:"last_purchase_at"`
	PurchaseCount  int        `json:"purchase_count"`
}

// ReachedLimit 判断购买次数是否达到上限，maxPurchases 为 0 表示不限。
func (s DCAState) ReachedLimit(maxPurchases int) bool {
	return maxPurchases > 0 && s.PurchaseCount >= maxPurchases
}

// DueAt 判断在 now 时刻是否到达下一次购买时间。
func (s DCAState) DueAt(now time.Time, frequencyDays int) bool {
	if s.LastPurchaseAt == nil {
		return true
	}
	next := s.LastPurchaseAt.Add(time.Duration(frequencyDays) * 24 * time.Hour)
	return !now.Before(next)
}
