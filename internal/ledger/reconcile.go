package ledger

import (
	"errors"
	"fmt"

	"github.com/ragav2730/shop-debt-system-sub001/internal/model"
)

// ============================================================================
// 对账引擎（纯计算层）
// ============================================================================
//
// 【为什么把计算和写入分开？】
//
// 还款/退款的难点不在接口，而在三份冗余数据的一致性：
//   客户余额、赊购单剩余金额、还款流水
//
// 引擎只做两件事：
//   1. 按事务内读到的最新状态校验前置条件（不信任任何缓存/页面数据）
//   2. 算出这一笔操作的完整变更集（Outcome）
//
// 真正的写入由 service 层在同一个数据库事务里按 Outcome 执行，
// 要么全部落库，要么全部回滚，不存在"改了单子没改余额"的中间态。
//
// ============================================================================

var (
	ErrInvalidAmount    = errors.New("金额不合法")
	ErrInvalidOperation = errors.New("操作不合法")
)

// SettledLine 级联结清的赊购单
type SettledLine struct {
	PurchaseNo string
	Remaining  int64 // 被抹掉的尾数
}

// Outcome 一次还款/退款计算出的变更集
type Outcome struct {
	CustomerBalance int64         // 客户新余额
	CustomerStatus  string        // 客户新状态
	LineRemaining   int64         // 目标赊购单新剩余金额
	LineStatus      string        // 目标赊购单新状态
	SettledLines    []SettledLine // 级联结清的其他赊购单（仅还款路径）
	Record          *model.PaymentRecord
}

// ApplyPayment 计算一笔还款的变更集
//
// 前置条件（任一不满足返回 ErrInvalidAmount，不产生任何写入）：
//  1. amount > 0
//  2. amount <= line.Remaining  单笔赊购单不能多还
//  3. amount <= customer.Balance 总欠款之外不能多还
//
// 【级联规则】还清后余额恰好为 0 时，该客户其他仍有剩余的赊购单
// 一并强制清零（"最后一笔还款抹平所有尾数"，这是业务规则，不是副作用）
func ApplyPayment(customer *model.Customer, line *model.PurchaseLine, others []*model.PurchaseLine, amount int64, mode string) (*Outcome, error) {
	if line.CustomerID != customer.CustomerID {
		return nil, fmt.Errorf("%w: 赊购单 %s 不属于客户 %d", ErrInvalidOperation, line.PurchaseNo, customer.CustomerID)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: 还款金额必须大于0", ErrInvalidAmount)
	}
	if amount > line.Remaining {
		return nil, fmt.Errorf("%w: 还款金额 %d 超过该单剩余欠款 %d", ErrInvalidAmount, amount, line.Remaining)
	}
	if amount > customer.Balance {
		return nil, fmt.Errorf("%w: 还款金额 %d 超过客户总欠款 %d", ErrInvalidAmount, amount, customer.Balance)
	}

	newRemaining := line.Remaining - amount
	newBalance := customer.Balance - amount

	outcome := &Outcome{
		CustomerBalance: newBalance,
		CustomerStatus:  model.CustomerStatusFor(newBalance),
		LineRemaining:   newRemaining,
		LineStatus:      model.LineStatusFor(newRemaining, line.OriginalAmount),
		Record: &model.PaymentRecord{
			CustomerID:    customer.CustomerID,
			PurchaseNo:    line.PurchaseNo,
			Amount:        amount,
			Kind:          model.PaymentKindPayment,
			Mode:          mode,
			BalanceBefore: customer.Balance,
			BalanceAfter:  newBalance,
		},
	}

	// 级联结清：余额归零时抹掉其他单子的尾数
	if newBalance == 0 {
		for _, other := range others {
			if other.PurchaseNo == line.PurchaseNo || other.Remaining <= 0 {
				continue
			}
			outcome.SettledLines = append(outcome.SettledLines, SettledLine{
				PurchaseNo: other.PurchaseNo,
				Remaining:  other.Remaining,
			})
		}
	}

	return outcome, nil
}

// ApplyRefund 计算一笔退款（冲正）的变更集
//
// 前置条件：
//  1. origin 必须是还款流水（退款不能再退，返回 ErrInvalidOperation）
//  2. amount > 0
//  3. amount + line.Remaining <= line.OriginalAmount
//     —— 扣掉已退部分后，不能退超过实际还过的金额
//
// 【注意】退款没有级联规则，永远只动目标赊购单一张单
func ApplyRefund(customer *model.Customer, line *model.PurchaseLine, origin *model.PaymentRecord, amount int64) (*Outcome, error) {
	if origin.Kind != model.PaymentKindPayment {
		return nil, fmt.Errorf("%w: 退款流水 %s 不能再次冲正", ErrInvalidOperation, origin.PaymentNo)
	}
	if origin.PurchaseNo != line.PurchaseNo || line.CustomerID != customer.CustomerID {
		return nil, fmt.Errorf("%w: 流水 %s 与赊购单不匹配", ErrInvalidOperation, origin.PaymentNo)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: 退款金额必须大于0", ErrInvalidAmount)
	}
	if amount+line.Remaining > line.OriginalAmount {
		return nil, fmt.Errorf("%w: 退款金额 %d 超过该单实际已还金额 %d", ErrInvalidAmount, amount, line.OriginalAmount-line.Remaining)
	}

	newRemaining := line.Remaining + amount
	newBalance := customer.Balance + amount

	return &Outcome{
		CustomerBalance: newBalance,
		CustomerStatus:  model.CustomerStatusFor(newBalance),
		LineRemaining:   newRemaining,
		LineStatus:      model.LineStatusFor(newRemaining, line.OriginalAmount),
		Record: &model.PaymentRecord{
			CustomerID:    customer.CustomerID,
			PurchaseNo:    line.PurchaseNo,
			Amount:        -amount,
			Kind:          model.PaymentKindRefund,
			RefundOf:      origin.PaymentNo,
			BalanceBefore: customer.Balance,
			BalanceAfter:  newBalance,
		},
	}, nil
}
