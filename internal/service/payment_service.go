package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
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

// customerLocker 客户单飞锁的最小接口，测试时可替换
type customerLocker interface {
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
}

type PaymentService struct {
	db           *gorm.DB
	redisClient  *redis.Client
	cfg          *config.Config
	cache        *projection.Cache
	customerRepo *repository.CustomerRepository
	purchaseRepo *repository.PurchaseRepository
	paymentRepo  *repository.PaymentRepository
	outboxRepo   *repository.OutboxRepository
	newLock      func(customerID int64, requestID string) customerLocker
}

func NewPaymentService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config, cache *projection.Cache) *PaymentService {
	s := &PaymentService{
		db:           db,
		redisClient:  redisClient,
		cfg:          cfg,
		cache:        cache,
		customerRepo: repository.NewCustomerRepository(db),
		purchaseRepo: repository.NewPurchaseRepository(db),
		paymentRepo:  repository.NewPaymentRepository(db),
		outboxRepo:   repository.NewOutboxRepository(db),
	}
	s.newLock = func(customerID int64, requestID string) customerLocker {
		ttl := time.Duration(cfg.Business.LockTTLSeconds) * time.Second
		return lock.NewCustomerLock(redisClient, customerID, requestID, ttl)
	}
	return s
}

type PayRequest struct {
	RequestID  string `json:"request_id"` // 持锁者标识，便于追踪（不做幂等去重）
	CustomerID int64  `json:"customer_id" binding:"required"`
	PurchaseNo string `json:"purchase_no" binding:"required"`
	Amount     int64  `json:"amount" binding:"required,gt=0"`
	Mode       string `json:"mode"` // 现金/转账等，仅作展示
}

type PayResult struct {
	Customer     *model.Customer      `json:"customer"`
	PurchaseLine *model.PurchaseLine  `json:"purchase_line"`
	Record       *model.PaymentRecord `json:"payment_record"`
	SettledLines []string             `json:"settled_lines,omitempty"` // 被级联结清的赊购单号
}

// ApplyPayment 对一张赊购单执行还款
//
// 【关键点】这是整个系统最核心的操作：
//  1. 单飞：同一客户同一时刻只允许一笔在途操作，抢不到锁立刻失败
//  2. 原子：赊购单扣减、客户余额扣减、级联结清、流水追加、事件写入
//     在同一个数据库事务里，要么全部生效要么全部回滚
//  3. 校验基于事务内读到的最新状态；乐观锁冲突后重试时重新读、重新校验
func (s *PaymentService) ApplyPayment(ctx context.Context, req *PayRequest) (*PayResult, error) {
	payLock := s.newLock(req.CustomerID, req.RequestID)
	acquired, err := payLock.TryLock(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !acquired {
		return nil, ErrOperationInProgress
	}
	defer payLock.Unlock(ctx)

	var result *PayResult
	for attempt := 0; ; attempt++ {
		result, err = s.applyOnce(ctx, req)
		if !errors.Is(err, repository.ErrOptimisticLock) {
			break
		}
		if attempt+1 >= s.cfg.Business.MaxRetryCount {
			return nil, fmt.Errorf("%w: %v", ErrConflictRetryExhausted, err)
		}
		// 版本冲突说明状态已被别人改过，重试会重新读取并重新校验前置条件
	}
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(req.CustomerID)

	log.Printf("还款成功: paymentNo=%s, customerID=%d, purchaseNo=%s, amount=%d, balance=%d",
		result.Record.PaymentNo, req.CustomerID, req.PurchaseNo, req.Amount, result.Customer.Balance)

	return result, nil
}

func (s *PaymentService) applyOnce(ctx context.Context, req *PayRequest) (*PayResult, error) {
	var result *PayResult

	err := s.db.Transaction(func(tx *gorm.DB) error {
		customer, err := s.customerRepo.GetByCustomerIDForUpdate(ctx, tx, req.CustomerID)
		if err != nil {
			return err
		}

		// 级联结清可能改动其他单子，这里把客户名下全部单子一起锁住
		lines, err := s.purchaseRepo.ListByCustomerIDForUpdate(ctx, tx, req.CustomerID)
		if err != nil {
			return err
		}

		var line *model.PurchaseLine
		for _, l := range lines {
			if l.PurchaseNo == req.PurchaseNo {
				line = l
				break
			}
		}
		if line == nil {
			return repository.ErrPurchaseNotFound
		}

		outcome, err := ledger.ApplyPayment(customer, line, lines, req.Amount, req.Mode)
		if err != nil {
			return err
		}

		if err := s.purchaseRepo.UpdateRemaining(ctx, tx, line.PurchaseNo, outcome.LineRemaining, outcome.LineStatus, line.Version); err != nil {
			return err
		}
		if err := s.customerRepo.UpdateBalance(ctx, tx, customer.CustomerID, outcome.CustomerBalance, outcome.CustomerStatus, customer.Version); err != nil {
			return err
		}
		if len(outcome.SettledLines) > 0 {
			if err := s.purchaseRepo.SettleOthers(ctx, tx, customer.CustomerID, line.PurchaseNo); err != nil {
				return fmt.Errorf("级联结清失败: %w", err)
			}
		}

		record := outcome.Record
		record.PaymentNo = idgen.GeneratePaymentNo()
		if err := s.paymentRepo.Create(ctx, tx, record); err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}

		settledNos := make([]string, 0, len(outcome.SettledLines))
		for _, settled := range outcome.SettledLines {
			settledNos = append(settledNos, settled.PurchaseNo)
		}

		if err := s.writeLedgerEvent(ctx, tx, record, settledNos); err != nil {
			return err
		}

		// 返回事务内的最终态，供调用方直接展示
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
			SettledLines: settledNos,
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return result, nil
}

// writeLedgerEvent 在业务事务里写入台账变更事件
func (s *PaymentService) writeLedgerEvent(ctx context.Context, tx *gorm.DB, record *model.PaymentRecord, settledNos []string) error {
	msgPayload := map[string]interface{}{
		"kind":           record.Kind,
		"payment_no":     record.PaymentNo,
		"customer_id":    record.CustomerID,
		"purchase_no":    record.PurchaseNo,
		"amount":         record.Amount,
		"balance_before": record.BalanceBefore,
		"balance_after":  record.BalanceAfter,
		"occurred_at":    time.Now().Format(time.RFC3339),
	}
	if record.RefundOf != "" {
		msgPayload["refund_of"] = record.RefundOf
	}
	if len(settledNos) > 0 {
		msgPayload["settled_lines"] = settledNos
	}
	payloadBytes, _ := json.Marshal(msgPayload)

	outboxMsg := &model.OutboxMessage{
		MessageKey: strconv.FormatInt(record.CustomerID, 10),
		Topic:      s.cfg.Kafka.Topic.LedgerEvents,
		Payload:    string(payloadBytes),
		Status:     model.OutboxStatusPending,
	}
	if err := s.outboxRepo.Create(ctx, tx, outboxMsg); err != nil {
		return fmt.Errorf("写入事件失败: %w", err)
	}
	return nil
}
