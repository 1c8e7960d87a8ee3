package repository

import (
	"context"
	"errors"

	"github.com/ragav2730/shop-debt-system-sub001/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrCustomerNotFound = errors.New("客户不存在")
	ErrOptimisticLock   = errors.New("乐观锁冲突，请重试")
)

type CustomerRepository struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

func (r *CustomerRepository) Create(ctx context.Context, customer *model.Customer) error {
	return r.db.WithContext(ctx).Create(customer).Error
}

func (r *CustomerRepository) GetByCustomerID(ctx context.Context, customerID int64) (*model.Customer, error) {
	var customer model.Customer
	err := r.db.WithContext(ctx).Where("customer_id = ?", customerID).First(&customer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	return &customer, nil
}

// GetByCustomerIDForUpdate 事务内加行锁读取客户
// 还款/退款必须基于事务内读到的最新状态做校验，不信任调用方传来的快照
func (r *CustomerRepository) GetByCustomerIDForUpdate(ctx context.Context, tx *gorm.DB, customerID int64) (*model.Customer, error) {
	var customer model.Customer
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("customer_id = ?", customerID).
		First(&customer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	return &customer, nil
}

// UpdateBalance 带版本校验更新客户余额和状态
// WHERE 条件带上 version，并发写会导致 RowsAffected == 0，由调用方重试
func (r *CustomerRepository) UpdateBalance(ctx context.Context, tx *gorm.DB, customerID int64, balance int64, status string, version int) error {
	result := tx.WithContext(ctx).
		Model(&model.Customer{}).
		Where("customer_id = ? AND version = ?", customerID, version).
		Updates(map[string]interface{}{
			"balance": balance,
			"status":  status,
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		if _, err := r.GetByCustomerID(ctx, customerID); err != nil {
			return err
		}
		return ErrOptimisticLock
	}

	return nil
}

func (r *CustomerRepository) List(ctx context.Context, page, pageSize int) ([]*model.Customer, int64, error) {
	var customers []*model.Customer
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Customer{})

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&customers).Error

	return customers, total, err
}
