package repository

import "errors"

var (
	// 房间状态
	ErrRoomNotFound = errors.New("room not found")

	// 房间锁
	ErrRoomBusy    = errors.New("room busy, lock not acquired in time")
	ErrLockNotHeld = errors.New("lock not held by this token")

	// 连接映射
	ErrConnectionNotFound = errors.New("player connection not found")

	// 归档记录
	ErrGameRecordNotFound = errors.New("game record not found")
)
