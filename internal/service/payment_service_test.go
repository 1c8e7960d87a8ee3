package service

import (
	"context"
	"errors"
	"testing"

	"github.com/ragav2730/shop-debt-system-sub001/internal/config"
	"github.com/ragav2730/shop-debt-system-sub001/internal/ledger"

	"github.com/stretchr/testify/require"
)

// fakeLocker 模拟客户单飞锁
type fakeLocker struct {
	busy     bool
	err      error
	tried    bool
	unlocked bool
}

func (f *fakeLocker) TryLock(ctx context.Context) (bool, error) {
	f.tried = true
	if f.err != nil {
		return false, f.err
	}
	return !f.busy, nil
}

func (f *fakeLocker) Unlock(ctx context.Context) error {
	f.unlocked = true
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Business: config.BusinessConfig{
			MaxRetryCount:  3,
			LockTTLSeconds: 30,
		},
	}
}

func TestApplyPaymentFailsFastWhenCustomerBusy(t *testing.T) {
	// 同一客户已有在途操作时，第二笔必须立刻返回，而不是排队等待——
	// 排队会让双击产生的第二笔还款基于过期状态静默重复执行
	locker := &fakeLocker{busy: true}

	s := &PaymentService{cfg: testConfig()}
	s.newLock = func(customerID int64, requestID string) customerLocker {
		return locker
	}

	req := &PayRequest{
		RequestID:  "req-1",
		CustomerID: 1001,
		PurchaseNo: "PUR1",
		Amount:     100,
	}

	result, err := s.ApplyPayment(context.Background(), req)
	require.ErrorIs(t, err, ErrOperationInProgress)
	require.Nil(t, result)
	require.True(t, locker.tried)
	require.False(t, locker.unlocked) // 没抢到的锁不能去解
}

func TestApplyPaymentLockStoreUnavailable(t *testing.T) {
	locker := &fakeLocker{err: errors.New("connection refused")}

	s := &PaymentService{cfg: testConfig()}
	s.newLock = func(customerID int64, requestID string) customerLocker {
		return locker
	}

	_, err := s.ApplyPayment(context.Background(), &PayRequest{
		RequestID:  "req-1",
		CustomerID: 1001,
		PurchaseNo: "PUR1",
		Amount:     100,
	})
	require.ErrorIs(t, err, ErrStoreUnavailable)
	require.False(t, locker.unlocked)
}

func TestCreatePurchaseRejectsNonPositiveAmount(t *testing.T) {
	s := &PurchaseService{cfg: testConfig()}

	_, err := s.CreatePurchase(context.Background(), &CreatePurchaseRequest{
		RequestID:  "req-1",
		CustomerID: 1001,
		Item:       "化肥一袋",
		Amount:     0,
	})
	require.ErrorIs(t, err, ledger.ErrInvalidAmount)
}
