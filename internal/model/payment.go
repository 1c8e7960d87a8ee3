package model

import (
	"time"
)

const (
	PaymentKindPayment = "payment" // 还款
	PaymentKindRefund  = "refund"  // 退款（冲正）
)

// ============================================================================
// 还款/退款流水实体
// ============================================================================

// PaymentRecord 还款流水表
// 记录客户账上的每一笔资金变动，是对账的核心依据
//
// 【重要】流水表设计原则：
// 1. 只追加，不修改，不删除 —— 退款不改旧流水，而是新增一条负数流水引用原单
// 2. 金额带符号：还款为正，退款为负 —— 累加即可得到客户的累计净还款
// 3. 记录交易前后余额 —— 便于独立校验余额一致性
type PaymentRecord struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	PaymentNo     string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"payment_no"` // 流水号（全局唯一）
	CustomerID    int64     `gorm:"index;not null" json:"customer_id"`
	PurchaseNo    string    `gorm:"type:varchar(64);index;not null" json:"purchase_no"` // 关联赊购单号
	Amount        int64     `gorm:"not null" json:"amount"`                             // 金额（还款为正，退款为负）
	Kind          string    `gorm:"type:varchar(20);not null" json:"kind"`
	RefundOf      string    `gorm:"type:varchar(64)" json:"refund_of,omitempty"` // 被冲正的原还款流水号（仅退款）
	Mode          string    `gorm:"type:varchar(32)" json:"mode"`                // 还款方式（现金/转账等，仅作展示）
	BalanceBefore int64     `gorm:"not null" json:"balance_before"`              // 变动前客户欠款
	BalanceAfter  int64     `gorm:"not null" json:"balance_after"`               // 变动后客户欠款
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (PaymentRecord) TableName() string {
	return "payment_record"
}
