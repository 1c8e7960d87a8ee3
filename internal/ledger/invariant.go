package ledger

import (
	"fmt"

	"github.com/ragav2730/shop-debt-system-sub001/internal/model"
)

// CheckInvariant 校验全局不变式：客户余额 == 名下所有赊购单剩余金额之和
// 独立于引擎本身，可用于事后审计（见 job.InvariantAuditJob）
func CheckInvariant(customer *model.Customer, lines []*model.PurchaseLine) error {
	var sum int64
	for _, line := range lines {
		if line.Remaining < 0 || line.Remaining > line.OriginalAmount {
			return fmt.Errorf("赊购单 %s 剩余金额越界: remaining=%d, original=%d",
				line.PurchaseNo, line.Remaining, line.OriginalAmount)
		}
		sum += line.Remaining
	}
	if customer.Balance != sum {
		return fmt.Errorf("客户 %d 余额不一致: balance=%d, 赊购单剩余合计=%d",
			customer.CustomerID, customer.Balance, sum)
	}
	return nil
}

// CheckRecordSum 校验流水累加式：
// 客户流水金额之和 == 原始赊账总额 - 当前余额
// （还款为正、退款为负，累加即净还款额）
func CheckRecordSum(customer *model.Customer, lines []*model.PurchaseLine, records []*model.PaymentRecord) error {
	var totalOriginal, totalPaid int64
	for _, line := range lines {
		totalOriginal += line.OriginalAmount
	}
	for _, record := range records {
		totalPaid += record.Amount
	}
	// 级联结清抹掉的尾数没有流水，所以净还款加当前余额最多等于原始总额
	if totalPaid+customer.Balance > totalOriginal {
		return fmt.Errorf("客户 %d 流水合计异常: 净还款=%d, 原始总额=%d, 余额=%d",
			customer.CustomerID, totalPaid, totalOriginal, customer.Balance)
	}
	return nil
}
