package service

import (
	"context"
	"errors"

	"github.com/ragav2730/shop-debt-system-sub001/internal/model"
	"github.com/ragav2730/shop-debt-system-sub001/internal/projection"
	"github.com/ragav2730/shop-debt-system-sub001/internal/repository"
	"github.com/ragav2730/shop-debt-system-sub001/pkg/idgen"

	"gorm.io/gorm"
)

type CustomerService struct {
	db           *gorm.DB
	cache        *projection.Cache
	customerRepo *repository.CustomerRepository
	paymentRepo  *repository.PaymentRepository
}

func NewCustomerService(db *gorm.DB, cache *projection.Cache) *CustomerService {
	return &CustomerService{
		db:           db,
		cache:        cache,
		customerRepo: repository.NewCustomerRepository(db),
		paymentRepo:  repository.NewPaymentRepository(db),
	}
}

// CreateCustomer 客户建档，初始无欠款
func (s *CustomerService) CreateCustomer(ctx context.Context, name, phone string) (*model.Customer, error) {
	if name == "" {
		return nil, errors.New("客户姓名不能为空")
	}

	customer := &model.Customer{
		CustomerID: idgen.GenerateCustomerID(),
		Name:       name,
		Phone:      phone,
		Balance:    0,
		Status:     model.CustomerStatusPaid,
	}

	if err := s.customerRepo.Create(ctx, customer); err != nil {
		return nil, err
	}

	return customer, nil
}

func (s *CustomerService) ListCustomers(ctx context.Context, page, pageSize int) ([]*model.Customer, int64, error) {
	return s.customerRepo.List(ctx, page, pageSize)
}

// GetLedger 客户完整台账视图（走投影缓存）
func (s *CustomerService) GetLedger(ctx context.Context, customerID int64) (*projection.LedgerView, error) {
	return s.cache.Get(ctx, customerID)
}

// ListPayments 客户流水（分页）
func (s *CustomerService) ListPayments(ctx context.Context, customerID int64, page, pageSize int) ([]*model.PaymentRecord, int64, error) {
	return s.paymentRepo.ListByCustomerID(ctx, customerID, page, pageSize)
}
