package ledger

import (
	"testing"

	"github.com/ragav2730/shop-debt-system-sub001/internal/model"

	"github.com/stretchr/testify/require"
)

func newCustomer(customerID, balance int64) *model.Customer {
	return &model.Customer{
		CustomerID: customerID,
		Name:       "测试客户",
		Balance:    balance,
		Status:     model.CustomerStatusFor(balance),
	}
}

func newLine(purchaseNo string, customerID, original, remaining int64) *model.PurchaseLine {
	return &model.PurchaseLine{
		PurchaseNo:     purchaseNo,
		CustomerID:     customerID,
		OriginalAmount: original,
		Remaining:      remaining,
		Status:         model.LineStatusFor(remaining, original),
	}
}

// 把变更集套回内存状态，便于多步场景测试
func applyOutcome(customer *model.Customer, line *model.PurchaseLine, others []*model.PurchaseLine, outcome *Outcome) {
	customer.Balance = outcome.CustomerBalance
	customer.Status = outcome.CustomerStatus
	line.Remaining = outcome.LineRemaining
	line.Status = outcome.LineStatus
	for _, settled := range outcome.SettledLines {
		for _, other := range others {
			if other.PurchaseNo == settled.PurchaseNo {
				other.Remaining = 0
				other.Status = model.PurchaseStatusPaid
			}
		}
	}
}

func TestApplyPaymentBasic(t *testing.T) {
	customer := newCustomer(1001, 50000)
	line := newLine("PUR1", 1001, 30000, 30000)
	other := newLine("PUR2", 1001, 20000, 20000)

	outcome, err := ApplyPayment(customer, line, []*model.PurchaseLine{line, other}, 10000, "cash")
	require.NoError(t, err)

	require.Equal(t, int64(20000), outcome.LineRemaining)
	require.Equal(t, model.PurchaseStatusPartial, outcome.LineStatus)
	require.Equal(t, int64(40000), outcome.CustomerBalance)
	require.Equal(t, model.CustomerStatusPending, outcome.CustomerStatus)
	require.Empty(t, outcome.SettledLines)

	record := outcome.Record
	require.Equal(t, model.PaymentKindPayment, record.Kind)
	require.Equal(t, int64(10000), record.Amount)
	require.Equal(t, int64(50000), record.BalanceBefore)
	require.Equal(t, int64(40000), record.BalanceAfter)
	require.Equal(t, "PUR1", record.PurchaseNo)
	require.Equal(t, "cash", record.Mode)
}

func TestApplyPaymentFullSettlement(t *testing.T) {
	// 逐单还清：每一步之后不变式都成立，最后一步归零时没有可抹的尾数
	customer := newCustomer(1001, 10500)
	line := newLine("PUR1", 1001, 10000, 10000)
	tail := newLine("PUR2", 1001, 8000, 500)
	paid := newLine("PUR3", 1001, 5000, 0) // 已结清，不该出现在级联里
	lines := []*model.PurchaseLine{line, tail, paid}

	outcome, err := ApplyPayment(customer, line, lines, 10000, "")
	require.NoError(t, err)
	applyOutcome(customer, line, lines, outcome)
	require.Equal(t, int64(500), customer.Balance)
	require.NoError(t, CheckInvariant(customer, lines))

	outcome, err = ApplyPayment(customer, tail, lines, 500, "")
	require.NoError(t, err)
	require.Equal(t, int64(0), outcome.CustomerBalance)
	require.Equal(t, model.CustomerStatusPaid, outcome.CustomerStatus)
	require.Empty(t, outcome.SettledLines) // 其他单子都已是 0，没有可抹的
	applyOutcome(customer, tail, lines, outcome)
	require.NoError(t, CheckInvariant(customer, lines))
}

func TestApplyPaymentCascadeSettlesPendingTail(t *testing.T) {
	// 级联规则针对的是余额与单子明细出现尾差的账本
	// （比如历史抹账只调了余额没动单子）：
	// 最后一笔还款把余额打到 0 时，其他仍有剩余的单子一并强制结清
	customer := newCustomer(4001, 200)
	lineX := newLine("PTX", 4001, 1000, 200)
	lineY := newLine("PTY", 4001, 1000, 150) // 尾数单

	outcome, err := ApplyPayment(customer, lineX, []*model.PurchaseLine{lineX, lineY}, 200, "")
	require.NoError(t, err)
	require.Equal(t, int64(0), outcome.CustomerBalance)
	require.Equal(t, model.CustomerStatusPaid, outcome.CustomerStatus)
	require.Len(t, outcome.SettledLines, 1)
	require.Equal(t, "PTY", outcome.SettledLines[0].PurchaseNo)
	require.Equal(t, int64(150), outcome.SettledLines[0].Remaining)

	applyOutcome(customer, lineX, []*model.PurchaseLine{lineY}, outcome)
	require.Equal(t, int64(0), lineY.Remaining)
	require.Equal(t, model.PurchaseStatusPaid, lineY.Status)
	require.NoError(t, CheckInvariant(customer, []*model.PurchaseLine{lineX, lineY}))
}

func TestApplyPaymentRejectsOverLine(t *testing.T) {
	customer := newCustomer(1001, 139000)
	line := newLine("PUR1", 1001, 35000, 35000)

	outcome, err := ApplyPayment(customer, line, []*model.PurchaseLine{line}, 60000, "")
	require.ErrorIs(t, err, ErrInvalidAmount)
	require.Nil(t, outcome)

	// 拒绝时不产生任何写入，原状态原封不动
	require.Equal(t, int64(139000), customer.Balance)
	require.Equal(t, int64(35000), line.Remaining)
}

func TestApplyPaymentRejectsOverBalance(t *testing.T) {
	// 余额小于单子剩余（数据漂移场景），总欠款口径兜底
	customer := newCustomer(1001, 5000)
	line := newLine("PUR1", 1001, 20000, 8000)

	_, err := ApplyPayment(customer, line, []*model.PurchaseLine{line}, 8000, "")
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestApplyPaymentRejectsNonPositive(t *testing.T) {
	customer := newCustomer(1001, 10000)
	line := newLine("PUR1", 1001, 10000, 10000)

	_, err := ApplyPayment(customer, line, []*model.PurchaseLine{line}, 0, "")
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = ApplyPayment(customer, line, []*model.PurchaseLine{line}, -100, "")
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestApplyPaymentRejectsForeignLine(t *testing.T) {
	customer := newCustomer(1001, 10000)
	line := newLine("PUR1", 2002, 10000, 10000) // 别的客户的单子

	_, err := ApplyPayment(customer, line, []*model.PurchaseLine{line}, 100, "")
	require.ErrorIs(t, err, ErrInvalidOperation)
}

func TestApplyPaymentNotIdempotent(t *testing.T) {
	// 引擎本身不做幂等：同样的入参重复计算就重复扣减
	// 防止双击重复提交靠的是客户单飞锁，不是这里
	customer := newCustomer(1001, 30000)
	line := newLine("PUR1", 1001, 30000, 30000)

	outcome, err := ApplyPayment(customer, line, []*model.PurchaseLine{line}, 10000, "")
	require.NoError(t, err)
	applyOutcome(customer, line, nil, outcome)

	outcome, err = ApplyPayment(customer, line, []*model.PurchaseLine{line}, 10000, "")
	require.NoError(t, err)
	applyOutcome(customer, line, nil, outcome)

	require.Equal(t, int64(10000), customer.Balance)
	require.Equal(t, int64(10000), line.Remaining)
}

func TestApplyRefundBasic(t *testing.T) {
	customer := newCustomer(1001, 20000)
	line := newLine("PUR1", 1001, 30000, 20000) // 已还 10000
	origin := &model.PaymentRecord{
		PaymentNo:  "PMT1",
		CustomerID: 1001,
		PurchaseNo: "PUR1",
		Amount:     10000,
		Kind:       model.PaymentKindPayment,
	}

	outcome, err := ApplyRefund(customer, line, origin, 4000)
	require.NoError(t, err)

	require.Equal(t, int64(24000), outcome.LineRemaining)
	require.Equal(t, model.PurchaseStatusPartial, outcome.LineStatus)
	require.Equal(t, int64(24000), outcome.CustomerBalance)
	require.Empty(t, outcome.SettledLines) // 退款永远没有级联

	record := outcome.Record
	require.Equal(t, model.PaymentKindRefund, record.Kind)
	require.Equal(t, int64(-4000), record.Amount)
	require.Equal(t, "PMT1", record.RefundOf)
	require.Equal(t, int64(20000), record.BalanceBefore)
	require.Equal(t, int64(24000), record.BalanceAfter)
}

func TestApplyRefundRejectsRefundRecord(t *testing.T) {
	customer := newCustomer(1001, 20000)
	line := newLine("PUR1", 1001, 30000, 20000)
	origin := &model.PaymentRecord{
		PaymentNo:  "REF1",
		CustomerID: 1001,
		PurchaseNo: "PUR1",
		Amount:     -5000,
		Kind:       model.PaymentKindRefund,
	}

	_, err := ApplyRefund(customer, line, origin, 1000)
	require.ErrorIs(t, err, ErrInvalidOperation)
}

func TestApplyRefundRejectsOverPaid(t *testing.T) {
	customer := newCustomer(1001, 20000)
	line := newLine("PUR1", 1001, 30000, 20000) // 实际已还 10000
	origin := &model.PaymentRecord{
		PaymentNo:  "PMT1",
		CustomerID: 1001,
		PurchaseNo: "PUR1",
		Amount:     10000,
		Kind:       model.PaymentKindPayment,
	}

	_, err := ApplyRefund(customer, line, origin, 10001)
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = ApplyRefund(customer, line, origin, 0)
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestPaymentRefundRoundTrip(t *testing.T) {
	// 还 a 再退 a，余额和剩余金额回到原点，留下 +a/-a 两条流水
	customer := newCustomer(1001, 50000)
	line := newLine("PUR1", 1001, 50000, 50000)

	payOutcome, err := ApplyPayment(customer, line, []*model.PurchaseLine{line}, 12000, "upi")
	require.NoError(t, err)
	applyOutcome(customer, line, nil, payOutcome)
	payOutcome.Record.PaymentNo = "PMT1"

	refundOutcome, err := ApplyRefund(customer, line, payOutcome.Record, 12000)
	require.NoError(t, err)
	applyOutcome(customer, line, nil, refundOutcome)

	require.Equal(t, int64(50000), customer.Balance)
	require.Equal(t, int64(50000), line.Remaining)
	require.Equal(t, model.PurchaseStatusPending, line.Status)
	require.Equal(t, int64(12000), payOutcome.Record.Amount)
	require.Equal(t, int64(-12000), refundOutcome.Record.Amount)
}

func TestSettlementScenario(t *testing.T) {
	// 客户总欠款 139000：单A 35000 + 单B 104000
	customer := newCustomer(1001, 139000)
	lineA := newLine("PURA", 1001, 35000, 35000)
	lineB := newLine("PURB", 1001, 104000, 104000)
	lines := []*model.PurchaseLine{lineA, lineB}

	// 还清单A
	outcome, err := ApplyPayment(customer, lineA, lines, 35000, "")
	require.NoError(t, err)
	require.Equal(t, int64(0), outcome.LineRemaining)
	require.Equal(t, model.PurchaseStatusPaid, outcome.LineStatus)
	require.Equal(t, int64(104000), outcome.CustomerBalance)
	require.Equal(t, int64(35000), outcome.Record.Amount)
	require.Empty(t, outcome.SettledLines)
	applyOutcome(customer, lineA, lines, outcome)

	require.NoError(t, CheckInvariant(customer, lines))

	// 还清单B，余额归零，没有其他待结单子
	outcome, err = ApplyPayment(customer, lineB, lines, 104000, "")
	require.NoError(t, err)
	require.Equal(t, int64(0), outcome.CustomerBalance)
	require.Equal(t, model.CustomerStatusPaid, outcome.CustomerStatus)
	require.Empty(t, outcome.SettledLines)
	applyOutcome(customer, lineB, lines, outcome)

	require.NoError(t, CheckInvariant(customer, lines))
}
