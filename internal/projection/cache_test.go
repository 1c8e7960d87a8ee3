package projection

import (
	"context"
	"testing"

	"github.com/ragav2730/shop-debt-system-sub001/internal/model"
	"github.com/ragav2730/shop-debt-system-sub001/internal/repository"

	"github.com/stretchr/testify/require"
)

// 内存假实现，模拟只读到已提交状态的存储
type fakeStore struct {
	customers map[int64]*model.Customer
	lines     map[int64][]*model.PurchaseLine
	records   map[int64][]*model.PaymentRecord
	reads     int
}

func (f *fakeStore) GetByCustomerID(ctx context.Context, customerID int64) (*model.Customer, error) {
	f.reads++
	customer, ok := f.customers[customerID]
	if !ok {
		return nil, repository.ErrCustomerNotFound
	}
	copied := *customer
	return &copied, nil
}

func (f *fakeStore) ListByCustomerID(ctx context.Context, customerID int64) ([]*model.PurchaseLine, error) {
	return f.lines[customerID], nil
}

func (f *fakeStore) ListAllByCustomerID(ctx context.Context, customerID int64) ([]*model.PaymentRecord, error) {
	return f.records[customerID], nil
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		customers: map[int64]*model.Customer{
			1001: {CustomerID: 1001, Name: "测试客户", Balance: 24000, Status: model.CustomerStatusPending},
		},
		lines: map[int64][]*model.PurchaseLine{
			1001: {
				{PurchaseNo: "PUR1", CustomerID: 1001, OriginalAmount: 30000, Remaining: 24000, Status: model.PurchaseStatusPartial},
				{PurchaseNo: "PUR2", CustomerID: 1001, OriginalAmount: 5000, Remaining: 0, Status: model.PurchaseStatusPaid},
			},
		},
		records: map[int64][]*model.PaymentRecord{
			1001: {
				{PaymentNo: "PMT1", CustomerID: 1001, PurchaseNo: "PUR2", Amount: 5000, Kind: model.PaymentKindPayment},
				{PaymentNo: "PMT2", CustomerID: 1001, PurchaseNo: "PUR1", Amount: 10000, Kind: model.PaymentKindPayment},
				{PaymentNo: "REF1", CustomerID: 1001, PurchaseNo: "PUR1", Amount: -4000, Kind: model.PaymentKindRefund, RefundOf: "PMT2"},
			},
		},
	}
}

func TestCacheGetBuildsView(t *testing.T) {
	store := newFakeStore()
	cache := NewCache(store, store, store)
	ctx := context.Background()

	view, err := cache.Get(ctx, 1001)
	require.NoError(t, err)

	require.Equal(t, int64(1001), view.Customer.CustomerID)
	require.Len(t, view.Lines, 2)
	require.Len(t, view.Records, 3)

	// 汇总口径：赊了 35000，还了 15000，退了 4000，净欠 24000
	require.Equal(t, int64(35000), view.Aggregates.TotalPurchased)
	require.Equal(t, int64(15000), view.Aggregates.TotalPaid)
	require.Equal(t, int64(4000), view.Aggregates.TotalRefunded)
	require.Equal(t, int64(24000), view.Aggregates.NetBalance)

	// 汇总自洽：赊账总额 - 净还款 == 未结欠款
	net := view.Aggregates.TotalPaid - view.Aggregates.TotalRefunded
	require.Equal(t, view.Aggregates.TotalPurchased-net, view.Aggregates.NetBalance)
}

func TestCacheGetUsesCachedView(t *testing.T) {
	store := newFakeStore()
	cache := NewCache(store, store, store)
	ctx := context.Background()

	_, err := cache.Get(ctx, 1001)
	require.NoError(t, err)
	readsAfterFirst := store.reads

	_, err = cache.Get(ctx, 1001)
	require.NoError(t, err)
	require.Equal(t, readsAfterFirst, store.reads) // 第二次命中缓存，不回源
}

func TestCacheInvalidateTriggersRebuild(t *testing.T) {
	store := newFakeStore()
	cache := NewCache(store, store, store)
	ctx := context.Background()

	view, err := cache.Get(ctx, 1001)
	require.NoError(t, err)
	require.Equal(t, int64(24000), view.Aggregates.NetBalance)

	// 模拟一笔已提交的还款：余额和单子同时变化（观察者看不到中间态）
	store.customers[1001].Balance = 14000
	store.lines[1001][0].Remaining = 14000
	store.records[1001] = append(store.records[1001], &model.PaymentRecord{
		PaymentNo: "PMT3", CustomerID: 1001, PurchaseNo: "PUR1", Amount: 10000, Kind: model.PaymentKindPayment,
	})

	// 未失效前仍看旧快照
	view, err = cache.Get(ctx, 1001)
	require.NoError(t, err)
	require.Equal(t, int64(24000), view.Aggregates.NetBalance)

	cache.Invalidate(1001)

	view, err = cache.Get(ctx, 1001)
	require.NoError(t, err)
	require.Equal(t, int64(14000), view.Aggregates.NetBalance)
	require.Equal(t, int64(25000), view.Aggregates.TotalPaid)
	require.Len(t, view.Records, 4)
}

func TestCacheGetUnknownCustomer(t *testing.T) {
	store := newFakeStore()
	cache := NewCache(store, store, store)

	_, err := cache.Get(context.Background(), 9999)
	require.ErrorIs(t, err, repository.ErrCustomerNotFound)
}
