package persistence

import (
	"context"
	"errors"
	"fmt"

	"okey/common/database"
	"okey/common/log"
	"okey/core/domain/entity"
	"okey/core/domain/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const gameRecordCollection = "okey_game_records"

type GameRecordRepository struct {
	mongo *database.MongoManager
}

func NewGameRecordRepository(mongo *database.MongoManager) *GameRecordRepository {
	return &GameRecordRepository{mongo: mongo}
}

func (r *GameRecordRepository) collection() *mongo.Collection {
	return r.mongo.Db.Collection(gameRecordCollection)
}

// SaveGameRecord 按 _id upsert，重复归档同一局不会报重复键
func (r *GameRecordRepository) SaveGameRecord(ctx context.Context, record *entity.GameRecord) error {
	opts := options.Replace().SetUpsert(true)
	_, err := r.collection().ReplaceOne(ctx, bson.M{"_id": record.ID}, record, opts)
	if err != nil {
		log.Error("保存对局记录失败: %v", err)
		return fmt.Errorf("保存对局记录失败 %s: %w", record.RoomID, err)
	}
	return nil
}

func (r *GameRecordRepository) FindGameRecord(ctx context.Context, recordID primitive.ObjectID) (*entity.GameRecord, error) {
	record := new(entity.GameRecord)
	err := r.collection().FindOne(ctx, bson.M{"_id": recordID}).Decode(record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrGameRecordNotFound
		}
		log.Error("查询对局记录失败: %v", err)
		return nil, err
	}
	return record, nil
}

func (r *GameRecordRepository) FindGameRecordsByRoom(ctx context.Context, roomID string) ([]*entity.GameRecord, error) {
	opts := options.Find().SetSort(bson.M{"start_time": -1})
	return r.find(ctx, bson.M{"room_id": roomID}, opts)
}

func (r *GameRecordRepository) FindGameRecordsByUser(ctx context.Context, userID string, limit, offset int) ([]*entity.GameRecord, error) {
	opts := options.Find().
		SetSort(bson.M{"start_time": -1}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))
	return r.find(ctx, bson.M{"players.user_id": userID}, opts)
}

func (r *GameRecordRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*entity.GameRecord, error) {
	cursor, err := r.collection().Find(ctx, filter, opts)
	if err != nil {
		log.Error("查询对局记录失败: %v", err)
		return nil, err
	}
	defer cursor.Close(ctx)

	records := make([]*entity.GameRecord, 0)
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

var _ repository.GameRecordRepository = (*GameRecordRepository)(nil)
