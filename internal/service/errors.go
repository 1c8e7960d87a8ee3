package service

import (
	"errors"
)

// 引擎对外的错误口径，handler 按这些哨兵映射业务码
// 金额/操作类错误定义在 ledger 包，未找到类错误定义在 repository 包
var (
	ErrOperationInProgress    = errors.New("该客户已有操作正在进行，请稍后重试")
	ErrConflictRetryExhausted = errors.New("并发冲突重试次数耗尽，请重新发起操作")
	ErrStoreUnavailable       = errors.New("存储服务暂不可用")
)
