package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ragav2730/shop-debt-system-sub001/internal/config"
	"github.com/ragav2730/shop-debt-system-sub001/internal/infrastructure/lock"
	"github.com/ragav2730/shop-debt-system-sub001/internal/ledger"
	"github.com/ragav2730/shop-debt-system-sub001/internal/model"
	"github.com/ragav2730/shop-debt-system-sub001/internal/projection"
	"github.com/ragav2730/shop-debt-system-sub001/internal/repository"
	"github.com/ragav2730/shop-debt-system-sub001/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

type RefundService struct {
	db           *gorm.DB
	redisClient  *redis.Client
	cfg          *config.Config
	cache        *projection.Cache
	customerRepo *repository.CustomerRepository
	purchaseRepo *repository.PurchaseRepository
	paymentRepo  *repository.PaymentRepository
	outboxRepo   *repository.OutboxRepository
	payments     *PaymentService // 复用事件写入
	newLock      func(customerID int64, requestID string) customerLocker
}

func NewRefundService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config, cache *projection.Cache, payments *PaymentService) *RefundService {
	s := &RefundService{
		db:           db,
		redisClient:  redisClient,
		cfg:          cfg,
		cache:        cache,
		customerRepo: repository.NewCustomerRepository(db),
		purchaseRepo: repository.NewPurchaseRepository(db),
		paymentRepo:  repository.NewPaymentRepository(db),
		outboxRepo:   repository.NewOutboxRepository(db),
		payments:     payments,
	}
	s.newLock = func(customerID int64, requestID string) customerLocker {
		ttl := time.Duration(cfg.Business.LockTTLSeconds) * time.Second
		return lock.NewCustomerLock(redisClient, customerID, requestID, ttl)
	}
	return s
}

type RefundRequest struct {
	RequestID string `json:"request_id"`
	PaymentNo string `json:"payment_no" binding:"required"`  // 被冲正的还款流水号
	Amount    int64  `json:"amount" binding:"required,gt=0"` // 支持部分退款
}

// ApplyRefund 冲正一笔还款（可部分）
//
// 退款不修改原流水，而是追加一条负数流水引用原单。
// 与还款走同一把客户锁、同样的事务纪律；退款没有级联规则。
func (s *RefundService) ApplyRefund(ctx context.Context, req *RefundRequest) (*PayResult, error) {
	// 先按流水号定位客户，才知道该锁谁
	origin, err := s.paymentRepo.GetByPaymentNo(ctx, req.PaymentNo)
	if err != nil {
		return nil, err
	}

	refundLock := s.newLock(origin.CustomerID, req.RequestID)
	acquired, err := refundLock.TryLock(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !acquired {
		return nil, ErrOperationInProgress
	}
	defer refundLock.Unlock(ctx)

	var result *PayResult
	for attempt := 0; ; attempt++ {
		result, err = s.applyOnce(ctx, origin, req.Amount)
		if !errors.Is(err, repository.ErrOptimisticLock) {
			break
		}
		if attempt+1 >= s.cfg.Business.MaxRetryCount {
			return nil, fmt.Errorf("%w: %v", ErrConflictRetryExhausted, err)
		}
	}
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(origin.CustomerID)

	log.Printf("退款成功: refundNo=%s, 原流水=%s, customerID=%d, amount=%d",
		result.Record.PaymentNo, req.PaymentNo, origin.CustomerID, req.Amount)

	return result, nil
}

func (s *RefundService) applyOnce(ctx context.Context, origin *model.PaymentRecord, amount int64) (*PayResult, error) {
	var result *PayResult

	err := s.db.Transaction(func(tx *gorm.DB) error {
		customer, err := s.customerRepo.GetByCustomerIDForUpdate(ctx, tx, origin.CustomerID)
		if err != nil {
			return err
		}
		line, err := s.purchaseRepo.GetByPurchaseNoForUpdate(ctx, tx, origin.PurchaseNo)
		if err != nil {
			return err
		}

		outcome, err := ledger.ApplyRefund(customer, line, origin, amount)
		if err != nil {
			return err
		}

		if err := s.purchaseRepo.UpdateRemaining(ctx, tx, line.PurchaseNo, outcome.LineRemaining, outcome.LineStatus, line.Version); err != nil {
			return err
		}
		if err := s.customerRepo.UpdateBalance(ctx, tx, customer.CustomerID, outcome.CustomerBalance, outcome.CustomerStatus, customer.Version); err != nil {
			return err
		}

		record := outcome.Record
		record.PaymentNo = idgen.GenerateRefundNo()
		if err := s.paymentRepo.Create(ctx, tx, record); err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}

		if err := s.payments.writeLedgerEvent(ctx, tx, record, nil); err != nil {
			return err
		}

		customer.Balance = outcome.CustomerBalance
		customer.Status = outcome.CustomerStatus
		customer.Version++
		line.Remaining = outcome.LineRemaining
		line.Status = outcome.LineStatus
		line.Version++

		result = &PayResult{
			Customer:     customer,
			PurchaseLine: line,
			Record:       record,
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return result, nil
}
