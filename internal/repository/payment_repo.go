package repository

import (
	"context"
	"errors"

	"github.com/ragav2730/shop-debt-system-sub001/internal/model"

	"gorm.io/gorm"
)

var ErrPaymentNotFound = errors.New("还款流水不存在")

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create 追加一条流水
// 流水只增不改：退款也是新流水，通过 RefundOf 引用原还款
func (r *PaymentRepository) Create(ctx context.Context, tx *gorm.DB, record *model.PaymentRecord) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(record).Error
}

func (r *PaymentRepository) GetByPaymentNo(ctx context.Context, paymentNo string) (*model.PaymentRecord, error) {
	var record model.PaymentRecord
	err := r.db.WithContext(ctx).Where("payment_no = ?", paymentNo).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (r *PaymentRepository) ListByCustomerID(ctx context.Context, customerID int64, page, pageSize int) ([]*model.PaymentRecord, int64, error) {
	var records []*model.PaymentRecord
	var total int64

	query := r.db.WithContext(ctx).Model(&model.PaymentRecord{}).Where("customer_id = ?", customerID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&records).Error

	return records, total, err
}

// ListAllByCustomerID 读取客户全部流水（投影重建用）
func (r *PaymentRepository) ListAllByCustomerID(ctx context.Context, customerID int64) ([]*model.PaymentRecord, error) {
	var records []*model.PaymentRecord
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at ASC").
		Find(&records).Error
	return records, err
}

// SumByPurchaseNo 单个赊购单的流水净额（审计用）
func (r *PaymentRepository) SumByPurchaseNo(ctx context.Context, purchaseNo string) (int64, error) {
	var sum int64
	err := r.db.WithContext(ctx).
		Model(&model.PaymentRecord{}).
		Where("purchase_no = ?", purchaseNo).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&sum).Error
	return sum, err
}
