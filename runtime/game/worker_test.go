package game

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"okey/common/utils"
	"okey/core/infrastructure/message"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubscriber struct {
	subjects map[string]message.RequestHandler
	fail     bool
}

func (s *fakeSubscriber) QueueSubscribe(subject, queue string, handler message.RequestHandler) error {
	if s.fail {
		return errors.New("connection closed")
	}
	if s.subjects == nil {
		s.subjects = make(map[string]message.RequestHandler)
	}
	s.subjects[subject] = handler
	return nil
}

type decodedResponse struct {
	Success   bool            `json:"success"`
	Code      string          `json:"code"`
	Error     string          `json:"error"`
	Retryable bool            `json:"retryable"`
	Data      json.RawMessage `json:"data"`
}

func call(t *testing.T, handler func([]byte) []byte, req ActionRequest) decodedResponse {
	t.Helper()
	data, err := json.Marshal(req)
	require.NoError(t, err)
	var resp decodedResponse
	require.NoError(t, json.Unmarshal(handler(data), &resp))
	return resp
}

func TestWorker_Subscribes(t *testing.T) {
	f := newFixture(t)
	sub := &fakeSubscriber{}
	w := NewWorker(f.svc, sub, time.Second)
	require.NoError(t, w.Start())

	assert.Len(t, sub.subjects, len(w.Actions()))
	assert.Contains(t, sub.subjects, ActionSubject("discard"))
	assert.Equal(t, "okey.action.draw", ActionSubject("draw"))

	assert.Error(t, NewWorker(f.svc, &fakeSubscriber{fail: true}, time.Second).Start())
}

func TestWorker_RoomLifecycle(t *testing.T) {
	f := newFixture(t)
	sub := &fakeSubscriber{}
	w := NewWorker(f.svc, sub, time.Second)
	require.NoError(t, w.Start())
	handle := func(action string) func([]byte) []byte { return sub.subjects[ActionSubject(action)] }

	resp := call(t, handle("create"), ActionRequest{PlayerID: "p1", Name: "Alice", ConnectionID: "c1"})
	require.True(t, resp.Success, resp.Error)
	var view struct {
		RoomID  string `json:"roomId"`
		Players []struct {
			PlayerID string `json:"playerId"`
		} `json:"players"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &view))
	require.NotEmpty(t, view.RoomID)
	roomID := view.RoomID

	for _, p := range []string{"p2", "p3"} {
		resp = call(t, handle("join"), ActionRequest{RoomID: roomID, PlayerID: p})
		require.True(t, resp.Success, resp.Error)
	}
	resp = call(t, handle("bot"), ActionRequest{RoomID: roomID})
	require.True(t, resp.Success, resp.Error)

	resp = call(t, handle("start"), ActionRequest{RoomID: roomID, PlayerID: "p2"})
	require.True(t, resp.Success, resp.Error)

	resp = call(t, handle("draw"), ActionRequest{RoomID: roomID, PlayerID: "p1"})
	assert.False(t, resp.Success)
	assert.Equal(t, "ALREADY_DRAWN", resp.Code)

	resp = call(t, handle("discard"), ActionRequest{RoomID: roomID, PlayerID: "p1"})
	assert.Equal(t, "TILE_NOT_IN_HAND", resp.Code)

	tileID := f.state(t, roomID).Players["p1"].Hand[0]
	resp = call(t, handle("discard"), ActionRequest{RoomID: roomID, PlayerID: "p1", TileID: &tileID})
	require.True(t, resp.Success, resp.Error)

	resp = call(t, handle("state"), ActionRequest{PlayerID: "p2"})
	require.True(t, resp.Success, resp.Error)
	var stateView struct {
		TurnNumber      int    `json:"turnNumber"`
		CurrentPlayerID string `json:"currentPlayerId"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &stateView))
	assert.Equal(t, 2, stateView.TurnNumber)
	assert.Equal(t, "p2", stateView.CurrentPlayerID)

	resp = call(t, handle("cancel"), ActionRequest{RoomID: roomID})
	require.True(t, resp.Success, resp.Error)
	resp = call(t, handle("cancel"), ActionRequest{RoomID: roomID})
	assert.Equal(t, "ROUND_OVER", resp.Code)
	assert.False(t, resp.Retryable)
}

func TestWorker_BadRequests(t *testing.T) {
	f := newFixture(t)
	w := NewWorker(f.svc, &fakeSubscriber{}, time.Second)

	var resp decodedResponse
	require.NoError(t, json.Unmarshal(w.Handle("fly", []byte(`{}`)), &resp))
	assert.Equal(t, "UNKNOWN_ACTION", resp.Code)

	require.NoError(t, json.Unmarshal(w.Handle("join", []byte(`{not json`)), &resp))
	assert.Equal(t, "BAD_REQUEST", resp.Code)

	require.NoError(t, json.Unmarshal(w.Handle("draw", []byte(`{"roomId":"missing","playerId":"p1"}`)), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "ROOM_NOT_FOUND", resp.Code)

	require.NoError(t, json.Unmarshal(w.Handle("state", []byte(`{"playerId":"ghost"}`)), &resp))
	assert.Equal(t, "CONNECTION_NOT_FOUND", resp.Code)

	require.NoError(t, json.Unmarshal(w.Handle("discard", []byte(`{"roomId":"r1","playerId":"p1"}`)), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "BAD_REQUEST", resp.Code, "missing tileId is a malformed request")
	assert.False(t, resp.Retryable)
}

func TestWorker_RateLimited(t *testing.T) {
	f := newFixture(t)
	w := NewWorker(f.svc, &fakeSubscriber{}, time.Second, WithActionLimiter(utils.NewKeyedRateLimiter(1, 2)))

	var resp decodedResponse
	for i := 0; i < 2; i++ {
		require.NoError(t, json.Unmarshal(w.Handle("state", []byte(`{"roomId":"missing","playerId":"p1"}`)), &resp))
		assert.Equal(t, "ROOM_NOT_FOUND", resp.Code)
	}
	require.NoError(t, json.Unmarshal(w.Handle("state", []byte(`{"roomId":"missing","playerId":"p1"}`)), &resp))
	assert.Equal(t, "RATE_LIMITED", resp.Code)
	assert.True(t, resp.Retryable)

	require.NoError(t, json.Unmarshal(w.Handle("state", []byte(`{"roomId":"missing","playerId":"p2"}`)), &resp))
	assert.Equal(t, "ROOM_NOT_FOUND", resp.Code, "other players keep their own budget")
}
