package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ============================================================================
// 按客户维度的单飞锁（single-flight）
// ============================================================================
//
// 【为什么要按客户加锁？】
//
// 场景：两个店员同时给同一个客户结账（或者一次双击触发两笔还款）
//
// 没有锁：
//   goroutine1: 读余额=100 -> 扣100 -> 余额=0   OK
//   goroutine2: 读余额=100 -> 扣100 -> 余额=-100 超扣了！
//
// 有锁：
//   goroutine1: 拿到锁 -> 读余额 -> 扣款 -> 释放锁
//   goroutine2: 拿不到锁，立刻返回"有操作正在进行"，由调用方稍后重试
//
// 同一客户同一时刻最多一笔在途操作；不同客户互不影响，可以并发。
//
// 【Redis 锁原理】
//
// 加锁：SET key value NX EX timeout
//   - NX: key 不存在才能设置成功（互斥）
//   - EX: 过期时间（持锁进程崩溃时自动释放，防死锁）
//   - value: 持锁者标识（释放时验证，防止误删别人的锁）
//
// 释放锁：Lua 脚本保证"检查+删除"原子执行
//
// ============================================================================

var ErrLockFailed = errors.New("获取客户锁失败")

// DistributedLock 分布式锁
type DistributedLock struct {
	client     *redis.Client
	key        string
	value      string        // 持锁者标识
	expiration time.Duration // 锁的过期时间
}

// NewDistributedLock 创建分布式锁
func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock 尝试获取锁（非阻塞）
//
// 拿不到锁说明该客户已有在途操作，调用方应直接失败返回，
// 而不是排队等待 —— 排队会让第二笔操作基于过期的页面数据静默执行
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	success, err := l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
	if err != nil {
		return false, err
	}
	return success, nil
}

// Unlock 释放锁
//
// Lua 脚本先验证 value 是不是自己的再删除：
// A 持锁超时自动过期 -> B 拿到锁 -> A 迟到的 Unlock 不能删掉 B 的锁
func (l *DistributedLock) Unlock(ctx context.Context) error {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	_, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Result()
	return err
}

// NewCustomerLock 创建客户台账锁
//
// key 按客户编号隔离：同一客户的还款、退款、新增赊购串行执行，
// 不同客户并行不受影响。value 使用请求ID，便于追踪持锁请求。
func NewCustomerLock(client *redis.Client, customerID int64, requestID string, ttl time.Duration) *DistributedLock {
	key := fmt.Sprintf("ledger:lock:customer:%d", customerID)
	return NewDistributedLock(client, key, requestID, ttl)
}
