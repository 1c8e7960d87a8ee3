package job

import (
	"context"
	"log"
	"time"

	"github.com/ragav2730/shop-debt-system-sub001/internal/config"
	"github.com/ragav2730/shop-debt-system-sub001/internal/infrastructure/mq"
	"github.com/ragav2730/shop-debt-system-sub001/internal/model"
	"github.com/ragav2730/shop-debt-system-sub001/internal/repository"

	"gorm.io/gorm"
)

// LedgerEventSender 台账变更事件投递任务
// 轮询发件箱，把已提交事务写入的事件发到 Kafka；
// 发送失败有限重试，超限标记 FAILED 留待人工处理
type LedgerEventSender struct {
	db         *gorm.DB
	outboxRepo *repository.OutboxRepository
	cfg        *config.Config
	stopCh     chan struct{}
	interval   time.Duration
	batchSize  int
}

func NewLedgerEventSender(db *gorm.DB, cfg *config.Config) *LedgerEventSender {
	return &LedgerEventSender{
		db:         db,
		outboxRepo: repository.NewOutboxRepository(db),
		cfg:        cfg,
		stopCh:     make(chan struct{}),
		interval:   100 * time.Millisecond,
		batchSize:  100,
	}
}

func (s *LedgerEventSender) Start(ctx context.Context) {
	log.Println("[LedgerEventSender] 事件投递任务启动")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[LedgerEventSender] 收到停止信号，任务退出")
			return
		case <-s.stopCh:
			log.Println("[LedgerEventSender] 任务停止")
			return
		case <-ticker.C:
			s.processPendingMessages(ctx)
		}
	}
}

func (s *LedgerEventSender) Stop() {
	close(s.stopCh)
}

func (s *LedgerEventSender) processPendingMessages(ctx context.Context) {
	messages, err := s.outboxRepo.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		log.Printf("[LedgerEventSender] 查询事件失败: %v", err)
		return
	}

	if len(messages) == 0 {
		return
	}

	for _, msg := range messages {
		s.sendMessage(ctx, msg)
	}
}

func (s *LedgerEventSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) {
	err := mq.SendMessage(msg.Topic, msg.MessageKey, msg.Payload)

	if err == nil {
		if updateErr := s.outboxRepo.UpdateStatus(ctx, msg.ID, model.OutboxStatusSent); updateErr != nil {
			log.Printf("[LedgerEventSender] 更新事件状态失败: id=%d, err=%v", msg.ID, updateErr)
		} else {
			log.Printf("[LedgerEventSender] 事件投递成功: id=%d, key=%s", msg.ID, msg.MessageKey)
		}
		return
	}

	log.Printf("[LedgerEventSender] 事件投递失败: id=%d, err=%v", msg.ID, err)

	if err := s.outboxRepo.IncrementRetryCount(ctx, msg.ID); err != nil {
		log.Printf("[LedgerEventSender] 增加重试次数失败: id=%d, err=%v", msg.ID, err)
	}

	if msg.RetryCount+1 >= s.cfg.Business.MaxRetryCount {
		if err := s.outboxRepo.MarkAsFailed(ctx, msg.ID); err != nil {
			log.Printf("[LedgerEventSender] 标记失败状态失败: id=%d, err=%v", msg.ID, err)
		} else {
			log.Printf("[LedgerEventSender] 事件超过最大重试次数，标记为失败: id=%d", msg.ID)
		}
	}
}
