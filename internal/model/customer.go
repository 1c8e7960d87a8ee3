package model

import (
	"time"
)

const (
	CustomerStatusPending = "pending" // 尚有欠款
	CustomerStatusPaid    = "paid"    // 欠款已结清
)

// Customer 赊账客户表
// Balance 是冗余汇总字段，必须始终等于该客户所有赊购单 Remaining 之和
// 这条全局不变式是整个对账引擎的正确性基准，任何一次提交后都必须成立
type Customer struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CustomerID int64     `gorm:"uniqueIndex;not null" json:"customer_id"` // 客户编号（雪花ID）
	Name       string    `gorm:"type:varchar(64);not null" json:"name"`
	Phone      string    `gorm:"type:varchar(32)" json:"phone"`
	Balance    int64     `gorm:"not null;default:0" json:"balance"` // 未结欠款总额
	Status     string    `gorm:"type:varchar(20);not null;default:paid" json:"status"`
	Version    int       `gorm:"not null;default:0" json:"version"` // 乐观锁版本号
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Customer) TableName() string {
	return "customer"
}

// CustomerStatusFor 根据余额推导客户状态
func CustomerStatusFor(balance int64) string {
	if balance == 0 {
		return CustomerStatusPaid
	}
	return CustomerStatusPending
}
