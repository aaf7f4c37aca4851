package repository

import (
	"context"
	"fmt"
	"time"
)

// RoomLock 已获得的房间锁句柄
type RoomLock interface {
	// Token 本次持有的唯一令牌
	Token() string

	// Release 释放锁，只有令牌仍匹配时才会删除
	// 锁已过期并被他人重新获取时返回 ErrLockNotHeld，不影响新持有者
	Release(ctx context.Context) error
}

// RoomLocker 房间互斥锁接口，单进程与多进程实现可互换
type RoomLocker interface {
	// TryAcquire 尝试一次获取锁，ttl 为持有者崩溃时的兜底过期
	// 返回 (nil, false, nil) 表示锁被他人持有
	TryAcquire(ctx context.Context, roomID string, ttl time.Duration) (RoomLock, bool, error)
}

// AcquireRoomLock 以固定间隔轮询获取锁，超过 timeout 返回 ErrRoomBusy
func AcquireRoomLock(ctx context.Context, locker RoomLocker, roomID string, timeout, ttl, retry time.Duration) (RoomLock, error) {
	if retry <= 0 {
		retry = 50 * time.Millisecond
	}
	deadline := time.Now().Add(timeout)

	for {
		lock, ok, err := locker.TryAcquire(ctx, roomID, ttl)
		if err != nil {
			return nil, err
		}
		if ok {
			return lock, nil
		}

		wait := retry
		if remaining := time.Until(deadline); remaining <= 0 {
			return nil, fmt.Errorf("%w: room %s", ErrRoomBusy, roomID)
		} else if remaining < wait {
			wait = remaining
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
