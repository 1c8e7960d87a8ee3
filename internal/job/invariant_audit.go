package job

import (
	"context"
	"log"
	"time"

	"github.com/ragav2730/shop-debt-system-sub001/internal/config"
	"github.com/ragav2730/shop-debt-system-sub001/internal/ledger"
	"github.com/ragav2730/shop-debt-system-sub001/internal/repository"

	"gorm.io/gorm"
)

// InvariantAuditJob 不变式巡检任务
//
// 定期逐客户校验"余额 == 赊购单剩余之和"以及流水累加口径。
// 引擎本身保证每次提交后不变式成立，巡检是独立于引擎的第二道防线：
// 一旦出现漂移说明有绕过引擎的写入或未知缺陷，记日志报警，不自动修数
type InvariantAuditJob struct {
	db           *gorm.DB
	customerRepo *repository.CustomerRepository
	purchaseRepo *repository.PurchaseRepository
	paymentRepo  *repository.PaymentRepository
	cfg          *config.Config
	stopCh       chan struct{}
	interval     time.Duration
	batchSize    int
}

func NewInvariantAuditJob(db *gorm.DB, cfg *config.Config) *InvariantAuditJob {
	interval := time.Duration(cfg.Business.AuditIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	return &InvariantAuditJob{
		db:           db,
		customerRepo: repository.NewCustomerRepository(db),
		purchaseRepo: repository.NewPurchaseRepository(db),
		paymentRepo:  repository.NewPaymentRepository(db),
		cfg:          cfg,
		stopCh:       make(chan struct{}),
		interval:     interval,
		batchSize:    100,
	}
}

func (j *InvariantAuditJob) Start(ctx context.Context) {
	log.Println("[InvariantAudit] 不变式巡检任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[InvariantAudit] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			log.Println("[InvariantAudit] 任务停止")
			return
		case <-ticker.C:
			j.auditAll(ctx)
		}
	}
}

func (j *InvariantAuditJob) Stop() {
	close(j.stopCh)
}

func (j *InvariantAuditJob) auditAll(ctx context.Context) {
	driftCount := 0
	for page := 1; ; page++ {
		customers, _, err := j.customerRepo.List(ctx, page, j.batchSize)
		if err != nil {
			log.Printf("[InvariantAudit] 查询客户失败: %v", err)
			return
		}
		if len(customers) == 0 {
			break
		}

		for _, customer := range customers {
			if err := j.auditCustomer(ctx, customer.CustomerID); err != nil {
				driftCount++
				log.Printf("[InvariantAudit] 发现数据漂移: %v", err)
			}
		}

		if len(customers) < j.batchSize {
			break
		}
	}

	if driftCount > 0 {
		log.Printf("[InvariantAudit] 本轮巡检发现 %d 个客户数据漂移", driftCount)
	}
}

func (j *InvariantAuditJob) auditCustomer(ctx context.Context, customerID int64) error {
	customer, err := j.customerRepo.GetByCustomerID(ctx, customerID)
	if err != nil {
		return err
	}
	lines, err := j.purchaseRepo.ListByCustomerID(ctx, customerID)
	if err != nil {
		return err
	}

	if err := ledger.CheckInvariant(customer, lines); err != nil {
		return err
	}

	records, err := j.paymentRepo.ListAllByCustomerID(ctx, customerID)
	if err != nil {
		return err
	}
	return ledger.CheckRecordSum(customer, lines, records)
}
