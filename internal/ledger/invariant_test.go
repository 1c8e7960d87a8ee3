package ledger

import (
	"testing"

	"github.com/ragav2730/shop-debt-system-sub001/internal/model"

	"github.com/stretchr/testify/require"
)

func TestCheckInvariant(t *testing.T) {
	customer := newCustomer(1001, 700)
	lines := []*model.PurchaseLine{
		newLine("PUR1", 1001, 1000, 500),
		newLine("PUR2", 1001, 300, 200),
	}

	require.NoError(t, CheckInvariant(customer, lines))

	// 余额与明细不一致
	customer.Balance = 800
	require.Error(t, CheckInvariant(customer, lines))

	// 无单客户余额必须为 0
	empty := newCustomer(2001, 0)
	require.NoError(t, CheckInvariant(empty, nil))
	empty.Balance = 1
	require.Error(t, CheckInvariant(empty, nil))
}

func TestCheckInvariantRejectsOutOfRangeRemaining(t *testing.T) {
	customer := newCustomer(1001, 1500)
	overflow := newLine("PUR1", 1001, 1000, 1000)
	overflow.Remaining = 1500 // 超过原始金额

	require.Error(t, CheckInvariant(customer, []*model.PurchaseLine{overflow}))

	negative := newLine("PUR2", 1001, 1000, 0)
	negative.Remaining = -1
	customer.Balance = -1
	require.Error(t, CheckInvariant(customer, []*model.PurchaseLine{negative}))
}

func TestCheckRecordSum(t *testing.T) {
	customer := newCustomer(1001, 600)
	lines := []*model.PurchaseLine{
		newLine("PUR1", 1001, 1000, 600),
	}
	records := []*model.PaymentRecord{
		{PaymentNo: "PMT1", Amount: 500, Kind: model.PaymentKindPayment},
		{PaymentNo: "REF1", Amount: -100, Kind: model.PaymentKindRefund},
	}

	// 净还款 400 + 余额 600 == 原始 1000
	require.NoError(t, CheckRecordSum(customer, lines, records))

	// 流水比应还的多，必然有问题
	records = append(records, &model.PaymentRecord{PaymentNo: "PMT2", Amount: 200, Kind: model.PaymentKindPayment})
	require.Error(t, CheckRecordSum(customer, lines, records))
}

func TestCheckRecordSumAllowsCascadeGap(t *testing.T) {
	// 级联抹掉的尾数没有流水，净还款加余额允许小于原始总额
	customer := newCustomer(1001, 0)
	lines := []*model.PurchaseLine{
		newLine("PUR1", 1001, 1000, 0),
		newLine("PUR2", 1001, 500, 0),
	}
	records := []*model.PaymentRecord{
		{PaymentNo: "PMT1", Amount: 1000, Kind: model.PaymentKindPayment},
		// PUR2 的 500 是级联抹掉的，没有流水
	}

	require.NoError(t, CheckRecordSum(customer, lines, records))
}
