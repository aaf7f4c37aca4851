package repository

import (
	"context"

	"okey/core/domain/entity"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GameRecordRepository 对局归档仓储接口
type GameRecordRepository interface {
	// SaveGameRecord 保存一局的归档
	SaveGameRecord(ctx context.Context, record *entity.GameRecord) error

	// FindGameRecord 根据 ID 查找
	FindGameRecord(ctx context.Context, recordID primitive.ObjectID) (*entity.GameRecord, error)

	// FindGameRecordsByRoom 房间的全部归档，按开始时间倒序
	FindGameRecordsByRoom(ctx context.Context, roomID string) ([]*entity.GameRecord, error)

	// FindGameRecordsByUser 玩家参与的归档（分页）
	FindGameRecordsByUser(ctx context.Context, userID string, limit, offset int) ([]*entity.GameRecord, error)
}
