package game

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"okey/core/domain/entity"
	"okey/runtime/game/share"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	subject string
	data    []byte
}

type fakePublisher struct {
	msgs []published
	err  error
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	p.msgs = append(p.msgs, published{subject: subject, data: data})
	return p.err
}

func TestNatsNotifier_Subjects(t *testing.T) {
	pub := &fakePublisher{}
	n := NewNatsNotifier(pub)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	n.Notify(ctx, share.RoomEvent{
		Type:      share.EventTileDiscarded,
		RoomID:    "r1",
		Timestamp: now,
		Payload:   share.TileDiscardedPayload{PlayerID: "p1", Position: entity.South, Tile: entity.Tile{ID: 3, Color: entity.Yellow, Value: 2}},
	})
	n.Notify(ctx, share.RoomEvent{
		Type:           share.EventGameStarted,
		RoomID:         "r1",
		TargetPlayerID: "p2",
		Timestamp:      now,
		Payload:        share.GameStartedPayload{Position: entity.West},
	})

	require.Len(t, pub.msgs, 2)
	assert.Equal(t, RoomSubject("r1"), pub.msgs[0].subject)
	assert.Equal(t, "okey.room.r1", pub.msgs[0].subject)
	assert.Equal(t, PlayerSubject("p2"), pub.msgs[1].subject)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(pub.msgs[1].data, &decoded))
	assert.Equal(t, string(share.EventGameStarted), decoded["type"])
	assert.NotContains(t, string(pub.msgs[1].data), "p2", "target stays out of the payload")
}

func TestNatsNotifier_PublishErrorIsSwallowed(t *testing.T) {
	pub := &fakePublisher{err: errors.New("nats down")}
	n := NewNatsNotifier(pub)
	n.Notify(context.Background(), share.RoomEvent{Type: share.EventTurnTick, RoomID: "r1"})
	assert.Len(t, pub.msgs, 1)
}

func TestMultiNotifier(t *testing.T) {
	var got []string
	m := MultiNotifier{
		NotifierFunc(func(_ context.Context, e share.RoomEvent) { got = append(got, "a:"+string(e.Type)) }),
		nil,
		NotifierFunc(func(_ context.Context, e share.RoomEvent) { got = append(got, "b:"+string(e.Type)) }),
	}
	m.Notify(context.Background(), share.RoomEvent{Type: share.EventGameCancelled})
	want := "a:" + string(share.EventGameCancelled)
	assert.Equal(t, []string{want, "b:" + string(share.EventGameCancelled)}, got)
}
