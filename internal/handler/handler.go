package handler

import (
	"errors"
	"strconv"

	"github.com/ragav2730/shop-debt-system-sub001/internal/config"
	"github.com/ragav2730/shop-debt-system-sub001/internal/ledger"
	"github.com/ragav2730/shop-debt-system-sub001/internal/projection"
	"github.com/ragav2730/shop-debt-system-sub001/internal/repository"
	"github.com/ragav2730/shop-debt-system-sub001/internal/service"
	"github.com/ragav2730/shop-debt-system-sub001/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	customerService *service.CustomerService
	purchaseService *service.PurchaseService
	paymentService  *service.PaymentService
	refundService   *service.RefundService
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config, cache *projection.Cache) *Handler {
	paymentService := service.NewPaymentService(db, rdb, cfg, cache)
	return &Handler{
		customerService: service.NewCustomerService(db, cache),
		purchaseService: service.NewPurchaseService(db, rdb, cfg, cache),
		paymentService:  paymentService,
		refundService:   service.NewRefundService(db, rdb, cfg, cache, paymentService),
	}
}

// businessError 把哨兵错误映射为业务码，保证调用方拿到可读原因
func businessError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount):
		response.BusinessError(c, response.CodeInvalidAmount, err.Error())
	case errors.Is(err, ledger.ErrInvalidOperation):
		response.BusinessError(c, response.CodeInvalidOperation, err.Error())
	case errors.Is(err, repository.ErrCustomerNotFound),
		errors.Is(err, repository.ErrPurchaseNotFound),
		errors.Is(err, repository.ErrPaymentNotFound):
		response.BusinessError(c, response.CodeRecordNotFound, err.Error())
	case errors.Is(err, service.ErrOperationInProgress):
		response.BusinessError(c, response.CodeOperationInProgress, err.Error())
	case errors.Is(err, service.ErrConflictRetryExhausted):
		response.BusinessError(c, response.CodeConflictRetryExhausted, err.Error())
	case errors.Is(err, service.ErrStoreUnavailable):
		response.BusinessError(c, response.CodeStoreUnavailable, err.Error())
	default:
		response.ServerError(c, err.Error())
	}
}

// ============================================================
// 客户相关接口
// ============================================================

// CreateCustomerRequest 客户建档请求
type CreateCustomerRequest struct {
	Name  string `json:"name" binding:"required"`
	Phone string `json:"phone"`
}

// CreateCustomer 客户建档
// POST /api/v1/customer/create
func (h *Handler) CreateCustomer(c *gin.Context) {
	var req CreateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	customer, err := h.customerService.CreateCustomer(c.Request.Context(), req.Name, req.Phone)
	if err != nil {
		businessError(c, err)
		return
	}

	response.Success(c, customer)
}

// ListCustomers 客户列表
// GET /api/v1/customer/list?page=1&page_size=10
func (h *Handler) ListCustomers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	customers, total, err := h.customerService.ListCustomers(c.Request.Context(), page, pageSize)
	if err != nil {
		businessError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      customers,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// GetLedger 客户完整台账视图（赊购单 + 流水 + 汇总）
// GET /api/v1/customer/ledger?customer_id=xxx
func (h *Handler) GetLedger(c *gin.Context) {
	customerID, err := strconv.ParseInt(c.Query("customer_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "customer_id 参数错误")
		return
	}

	view, err := h.customerService.GetLedger(c.Request.Context(), customerID)
	if err != nil {
		businessError(c, err)
		return
	}

	response.Success(c, view)
}

// ============================================================
// 赊购相关接口
// ============================================================

// CreatePurchase 记一笔赊账
// POST /api/v1/purchase/create
func (h *Handler) CreatePurchase(c *gin.Context) {
	var req service.CreatePurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if req.RequestID == "" {
		req.RequestID = c.GetString("request_id")
	}

	line, err := h.purchaseService.CreatePurchase(c.Request.Context(), &req)
	if err != nil {
		businessError(c, err)
		return
	}

	response.Success(c, line)
}

// ListPurchases 客户赊购单列表
// GET /api/v1/purchase/list?customer_id=xxx
func (h *Handler) ListPurchases(c *gin.Context) {
	customerID, err := strconv.ParseInt(c.Query("customer_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "customer_id 参数错误")
		return
	}

	lines, err := h.purchaseService.ListPurchases(c.Request.Context(), customerID)
	if err != nil {
		businessError(c, err)
		return
	}

	response.Success(c, gin.H{"list": lines})
}

// ============================================================
// 还款相关接口
// ============================================================

// ApplyPayment 还款
// POST /api/v1/payment/execute
//
// 【关键点】还款是整个系统最核心的操作，需要保证：
// 1. 单飞：同一客户同一时刻只允许一笔在途操作，抢不到锁立刻失败
// 2. 原子性：赊购单扣减、余额扣减、级联结清、流水追加同时成功或同时失败
// 3. 校验基于库内最新状态，不信任页面上显示的余额
func (h *Handler) ApplyPayment(c *gin.Context) {
	var req service.PayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	// 请求体没带 request_id 时用中间件生成的，锁的持锁者永远可追溯
	if req.RequestID == "" {
		req.RequestID = c.GetString("request_id")
	}

	result, err := h.paymentService.ApplyPayment(c.Request.Context(), &req)
	if err != nil {
		businessError(c, err)
		return
	}

	response.Success(c, result)
}

// ListPayments 客户流水列表
// GET /api/v1/payment/list?customer_id=xxx&page=1&page_size=10
func (h *Handler) ListPayments(c *gin.Context) {
	customerID, err := strconv.ParseInt(c.Query("customer_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "customer_id 参数错误")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	records, total, err := h.customerService.ListPayments(c.Request.Context(), customerID, page, pageSize)
	if err != nil {
		businessError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      records,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// ============================================================
// 退款相关接口
// ============================================================

// ApplyRefund 退款（冲正）
// POST /api/v1/refund/execute
//
// 【关键点】退款流程：
// 1. 只能冲正还款流水，退款流水不能再退
// 2. 支持部分退款，但累计不能超过该单实际已还金额
// 3. 退款不做级联，永远只动目标赊购单
func (h *Handler) ApplyRefund(c *gin.Context) {
	var req service.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if req.RequestID == "" {
		req.RequestID = c.GetString("request_id")
	}

	result, err := h.refundService.ApplyRefund(c.Request.Context(), &req)
	if err != nil {
		businessError(c, err)
		return
	}

	response.Success(c, result)
}
