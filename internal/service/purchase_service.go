package service

import (
	"context"
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

type PurchaseService struct {
	db           *gorm.DB
	redisClient  *redis.Client
	cfg          *config.Config
	cache        *projection.Cache
	customerRepo *repository.CustomerRepository
	purchaseRepo *repository.PurchaseRepository
	newLock      func(customerID int64, requestID string) customerLocker
}

func NewPurchaseService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config, cache *projection.Cache) *PurchaseService {
	s := &PurchaseService{
		db:           db,
		redisClient:  redisClient,
		cfg:          cfg,
		cache:        cache,
		customerRepo: repository.NewCustomerRepository(db),
		purchaseRepo: repository.NewPurchaseRepository(db),
	}
	s.newLock = func(customerID int64, requestID string) customerLocker {
		ttl := time.Duration(cfg.Business.LockTTLSeconds) * time.Second
		return lock.NewCustomerLock(redisClient, customerID, requestID, ttl)
	}
	return s
}

type CreatePurchaseRequest struct {
	RequestID  string `json:"request_id"`
	CustomerID int64  `json:"customer_id" binding:"required"`
	Item       string `json:"item" binding:"required"`
	Amount     int64  `json:"amount" binding:"required,gt=0"`
}

// CreatePurchase 记一笔赊账
// 新单 Remaining == OriginalAmount，客户余额同事务增加同样的金额，
// 全局不变式从第一天就成立。与还款/退款走同一把客户锁。
func (s *PurchaseService) CreatePurchase(ctx context.Context, req *CreatePurchaseRequest) (*model.PurchaseLine, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: 赊账金额必须大于0", ledger.ErrInvalidAmount)
	}

	purchaseLock := s.newLock(req.CustomerID, req.RequestID)
	acquired, err := purchaseLock.TryLock(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !acquired {
		return nil, ErrOperationInProgress
	}
	defer purchaseLock.Unlock(ctx)

	line := &model.PurchaseLine{
		PurchaseNo:     idgen.GeneratePurchaseNo(),
		CustomerID:     req.CustomerID,
		Item:           req.Item,
		OriginalAmount: req.Amount,
		Remaining:      req.Amount,
		Status:         model.PurchaseStatusPending,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		customer, err := s.customerRepo.GetByCustomerIDForUpdate(ctx, tx, req.CustomerID)
		if err != nil {
			return err
		}

		if err := s.purchaseRepo.Create(ctx, tx, line); err != nil {
			return fmt.Errorf("创建赊购单失败: %w", err)
		}

		newBalance := customer.Balance + req.Amount
		return s.customerRepo.UpdateBalance(ctx, tx, req.CustomerID, newBalance, model.CustomerStatusFor(newBalance), customer.Version)
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(req.CustomerID)

	log.Printf("赊账记录成功: purchaseNo=%s, customerID=%d, amount=%d", line.PurchaseNo, req.CustomerID, req.Amount)

	return line, nil
}

func (s *PurchaseService) ListPurchases(ctx context.Context, customerID int64) ([]*model.PurchaseLine, error) {
	return s.purchaseRepo.ListByCustomerID(ctx, customerID)
}
