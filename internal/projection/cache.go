package projection

import (
	"context"
	"sync"

	"github.com/ragav2730/shop-debt-system-sub001/internal/model"
)

// ============================================================================
// 客户台账投影（读侧缓存）
// ============================================================================
//
// 每个客户一份内存视图：客户信息 + 赊购单 + 流水 + 汇总口径。
// 视图只从已提交的库内状态重建（写事务提交后 service 调用 Invalidate，
// 下次读取时惰性重建），所以观察者永远看不到写了一半的中间态 ——
// 任何一份快照都满足全局不变式。
//
// ============================================================================

// Aggregates 客户台账汇总
type Aggregates struct {
	TotalPurchased int64 `json:"total_purchased"` // 累计赊账总额
	TotalPaid      int64 `json:"total_paid"`      // 累计还款（正向流水之和）
	TotalRefunded  int64 `json:"total_refunded"`  // 累计退款（负向流水绝对值之和）
	NetBalance     int64 `json:"net_balance"`     // 当前未结欠款
}

// LedgerView 单个客户的完整台账视图
type LedgerView struct {
	Customer   *model.Customer        `json:"customer"`
	Lines      []*model.PurchaseLine  `json:"purchase_lines"`
	Records    []*model.PaymentRecord `json:"payment_records"`
	Aggregates Aggregates             `json:"aggregates"`
}

// 读侧只需要三种查询能力，用小接口声明依赖，repository 天然满足
type CustomerReader interface {
	GetByCustomerID(ctx context.Context, customerID int64) (*model.Customer, error)
}

type PurchaseReader interface {
	ListByCustomerID(ctx context.Context, customerID int64) ([]*model.PurchaseLine, error)
}

type PaymentReader interface {
	ListAllByCustomerID(ctx context.Context, customerID int64) ([]*model.PaymentRecord, error)
}

// Cache 按客户缓存台账视图
type Cache struct {
	mu        sync.RWMutex
	views     map[int64]*LedgerView
	customers CustomerReader
	purchases PurchaseReader
	payments  PaymentReader
}

func NewCache(customers CustomerReader, purchases PurchaseReader, payments PaymentReader) *Cache {
	return &Cache{
		views:     make(map[int64]*LedgerView),
		customers: customers,
		purchases: purchases,
		payments:  payments,
	}
}

// Get 读取客户台账视图，缓存未命中时从库内已提交状态重建
func (c *Cache) Get(ctx context.Context, customerID int64) (*LedgerView, error) {
	c.mu.RLock()
	view, ok := c.views[customerID]
	c.mu.RUnlock()
	if ok {
		return view, nil
	}
	return c.rebuild(ctx, customerID)
}

// Invalidate 写事务提交后使该客户的视图失效
// 只失效不重建：重建推迟到下一次读取，避免写路径被读侧拖慢
func (c *Cache) Invalidate(customerID int64) {
	c.mu.Lock()
	delete(c.views, customerID)
	c.mu.Unlock()
}

func (c *Cache) rebuild(ctx context.Context, customerID int64) (*LedgerView, error) {
	customer, err := c.customers.GetByCustomerID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	lines, err := c.purchases.ListByCustomerID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	records, err := c.payments.ListAllByCustomerID(ctx, customerID)
	if err != nil {
		return nil, err
	}

	view := &LedgerView{
		Customer:   customer,
		Lines:      lines,
		Records:    records,
		Aggregates: Aggregate(customer, lines, records),
	}

	c.mu.Lock()
	c.views[customerID] = view
	c.mu.Unlock()

	return view, nil
}

// Aggregate 从赊购单和流水推导汇总口径
func Aggregate(customer *model.Customer, lines []*model.PurchaseLine, records []*model.PaymentRecord) Aggregates {
	agg := Aggregates{NetBalance: customer.Balance}
	for _, line := range lines {
		agg.TotalPurchased += line.OriginalAmount
	}
	for _, record := range records {
		if record.Amount > 0 {
			agg.TotalPaid += record.Amount
		} else {
			agg.TotalRefunded += -record.Amount
		}
	}
	return agg
}
