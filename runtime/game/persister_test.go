package game

import (
	"context"
	"sync"
	"testing"

	"okey/core/domain/entity"
	"okey/core/domain/repository"
	"okey/runtime/game/engines/okey"
	"okey/runtime/game/share"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type memoryRecordRepo struct {
	mu      sync.Mutex
	records []*entity.GameRecord
}

func (r *memoryRecordRepo) SaveGameRecord(_ context.Context, record *entity.GameRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return nil
}

func (r *memoryRecordRepo) FindGameRecord(_ context.Context, recordID primitive.ObjectID) (*entity.GameRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.ID == recordID {
			return rec, nil
		}
	}
	return nil, repository.ErrGameRecordNotFound
}

func (r *memoryRecordRepo) FindGameRecordsByRoom(_ context.Context, roomID string) ([]*entity.GameRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.GameRecord
	for _, rec := range r.records {
		if rec.RoomID == roomID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *memoryRecordRepo) FindGameRecordsByUser(context.Context, string, int, int) ([]*entity.GameRecord, error) {
	return nil, nil
}

func TestGamePersister_CompletedRound(t *testing.T) {
	repo := &memoryRecordRepo{}
	persister := NewGamePersister(repo)
	indicator, south, finishing := winningSouth()

	notifiers := MultiNotifier{}
	f := newFixture(t, withShuffler(newRiggedShuffler(indicator, south)), withNotifier(&notifiers))
	notifiers = append(notifiers, f.events, persister)
	ctx := context.Background()
	roomID, _ := f.startedRoom(t)

	_, err := f.svc.DeclareWin(ctx, roomID, "p1", okey.AnyTile)
	require.NoError(t, err)
	persister.Close()

	records, err := repo.FindGameRecordsByRoom(ctx, roomID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, entity.RecordCompleted, rec.Status)
	assert.Equal(t, indicator, rec.IndicatorTileID)
	assert.Len(t, rec.Players, entity.MaxPlayers)
	require.NotNil(t, rec.Result)
	assert.Equal(t, "p1", rec.Result.WinnerID)
	assert.Equal(t, string(entity.WinNormal), rec.Result.WinType)
	assert.Equal(t, finishing, rec.Result.FinishingTileID)
	assert.Equal(t, string(share.EventGameStarted), rec.Events[0].EventType)

	found, err := repo.FindGameRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.Same(t, rec, found)
}

func TestGamePersister_CancelledRound(t *testing.T) {
	repo := &memoryRecordRepo{}
	persister := NewGamePersister(repo)

	notifiers := MultiNotifier{}
	f := newFixture(t, withNotifier(&notifiers))
	notifiers = append(notifiers, persister)
	ctx := context.Background()
	roomID, _ := f.startedRoom(t)

	hand := f.state(t, roomID).Players["p1"].Hand
	_, err := f.svc.DiscardTile(ctx, roomID, "p1", hand[0])
	require.NoError(t, err)
	_, err = f.svc.DrawTile(ctx, roomID, "p2", false)
	require.NoError(t, err)
	require.NoError(t, f.svc.LeaveRoom(ctx, roomID, "p4"))
	persister.Close()

	require.Len(t, repo.records, 1)
	rec := repo.records[0]
	assert.Equal(t, entity.RecordAborted, rec.Status)
	assert.Contains(t, rec.Result.Reason, "p4")

	var types []string
	for _, e := range rec.Events {
		types = append(types, e.EventType)
	}
	assert.Contains(t, types, string(share.EventTileDiscarded))
	// 摸牌只记公开的一条
	drawn := 0
	for _, typ := range types {
		if typ == string(share.EventTileDrawn) {
			drawn++
		}
	}
	assert.Equal(t, 1, drawn)
}

func TestGamePersister_IgnoresEventsAfterClose(t *testing.T) {
	repo := &memoryRecordRepo{}
	persister := NewGamePersister(repo)
	persister.Close()
	persister.Notify(context.Background(), share.RoomEvent{
		Type:    share.EventGameCancelled,
		RoomID:  "r1",
		Payload: share.GameCancelledPayload{Reason: "x"},
	})
	assert.Empty(t, repo.records)
}
