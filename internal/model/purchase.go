package model

import (
	"time"
)

const (
	PurchaseStatusPending = "pending" // 未还款
	PurchaseStatusPartial = "partial" // 部分还款
	PurchaseStatusPaid    = "paid"    // 已结清
)

// PurchaseLine 赊购单表
// 一条记录对应客户赊走的一件货/一张单
// OriginalAmount 创建后不可变，Remaining 只能由还款减少、退款增加，
// 且任何时刻满足 0 <= Remaining <= OriginalAmount
type PurchaseLine struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	PurchaseNo     string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"purchase_no"` // 赊购单号
	CustomerID     int64     `gorm:"index;not null" json:"customer_id"`
	Item           string    `gorm:"type:varchar(128)" json:"item"`               // 货品描述
	OriginalAmount int64     `gorm:"not null" json:"original_amount"`             // 原始赊账金额
	Remaining      int64     `gorm:"not null" json:"remaining"`                   // 剩余未还金额
	Status         string    `gorm:"type:varchar(20);index;not null" json:"status"`
	Version        int       `gorm:"not null;default:0" json:"version"` // 乐观锁版本号
	CreatedAt      time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (PurchaseLine) TableName() string {
	return "purchase_line"
}

// LineStatusFor 根据剩余金额推导赊购单状态
func LineStatusFor(remaining, originalAmount int64) string {
	switch {
	case remaining == 0:
		return PurchaseStatusPaid
	case remaining < originalAmount:
		return PurchaseStatusPartial
	default:
		return PurchaseStatusPending
	}
}
