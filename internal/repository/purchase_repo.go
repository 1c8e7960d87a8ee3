package repository

import (
	"context"
	"errors"

	"github.com/ragav2730/shop-debt-system-sub001/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrPurchaseNotFound = errors.New("赊购单不存在")

type PurchaseRepository struct {
	db *gorm.DB
}

func NewPurchaseRepository(db *gorm.DB) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

func (r *PurchaseRepository) Create(ctx context.Context, tx *gorm.DB, line *model.PurchaseLine) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(line).Error
}

func (r *PurchaseRepository) GetByPurchaseNo(ctx context.Context, purchaseNo string) (*model.PurchaseLine, error) {
	var line model.PurchaseLine
	err := r.db.WithContext(ctx).Where("purchase_no = ?", purchaseNo).First(&line).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPurchaseNotFound
		}
		return nil, err
	}
	return &line, nil
}

// GetByPurchaseNoForUpdate 事务内加行锁读取赊购单
func (r *PurchaseRepository) GetByPurchaseNoForUpdate(ctx context.Context, tx *gorm.DB, purchaseNo string) (*model.PurchaseLine, error) {
	var line model.PurchaseLine
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("purchase_no = ?", purchaseNo).
		First(&line).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPurchaseNotFound
		}
		return nil, err
	}
	return &line, nil
}

func (r *PurchaseRepository) ListByCustomerID(ctx context.Context, customerID int64) ([]*model.PurchaseLine, error) {
	var lines []*model.PurchaseLine
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at ASC").
		Find(&lines).Error
	return lines, err
}

// ListByCustomerIDForUpdate 事务内锁住客户的全部赊购单
// 级联结清要改动其他单子，必须和目标单一起锁，避免与并发退款互相踩踏
func (r *PurchaseRepository) ListByCustomerIDForUpdate(ctx context.Context, tx *gorm.DB, customerID int64) ([]*model.PurchaseLine, error) {
	var lines []*model.PurchaseLine
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("customer_id = ?", customerID).
		Order("created_at ASC").
		Find(&lines).Error
	return lines, err
}

// UpdateRemaining 带版本校验更新剩余金额和状态
func (r *PurchaseRepository) UpdateRemaining(ctx context.Context, tx *gorm.DB, purchaseNo string, remaining int64, status string, version int) error {
	result := tx.WithContext(ctx).
		Model(&model.PurchaseLine{}).
		Where("purchase_no = ? AND version = ?", purchaseNo, version).
		Updates(map[string]interface{}{
			"remaining": remaining,
			"status":    status,
			"version":   gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		if _, err := r.GetByPurchaseNo(ctx, purchaseNo); err != nil {
			return err
		}
		return ErrOptimisticLock
	}

	return nil
}

// SettleOthers 级联结清：把该客户除目标单外所有仍有剩余的单子清零
// 只在"最后一笔还款把余额打到 0"的事务里调用
func (r *PurchaseRepository) SettleOthers(ctx context.Context, tx *gorm.DB, customerID int64, excludePurchaseNo string) error {
	return tx.WithContext(ctx).
		Model(&model.PurchaseLine{}).
		Where("customer_id = ? AND purchase_no <> ? AND remaining > 0", customerID, excludePurchaseNo).
		Updates(map[string]interface{}{
			"remaining": 0,
			"status":    model.PurchaseStatusPaid,
			"version":   gorm.Expr("version + 1"),
		}).Error
}
