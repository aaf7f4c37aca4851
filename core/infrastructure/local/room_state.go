package local

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"okey/core/domain/entity"
	"okey/core/domain/repository"
)

// MemoryRoomStateStore 单进程内存实现，读写都做深拷贝，调用方拿到的永远是副本
type MemoryRoomStateStore struct {
	rooms map[string]*entity.GameRoomState
	mu    sync.RWMutex
}

func NewMemoryRoomStateStore() *MemoryRoomStateStore {
	return &MemoryRoomStateStore{
		rooms: make(map[string]*entity.GameRoomState),
	}
}

func (s *MemoryRoomStateStore) Get(_ context.Context, roomID string) (*entity.GameRoomState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.rooms[roomID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", repository.ErrRoomNotFound, roomID)
	}
	return state.Clone(), nil
}

func (s *MemoryRoomStateStore) Save(_ context.Context, state *entity.GameRoomState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[state.RoomID] = state.Clone()
	return nil
}

func (s *MemoryRoomStateStore) Delete(_ context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, roomID)
	return nil
}

func (s *MemoryRoomStateStore) Exists(_ context.Context, roomID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.rooms[roomID]
	return ok, nil
}

func (s *MemoryRoomStateStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.rooms))
	for id := range s.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

var _ repository.RoomStateRepository = (*MemoryRoomStateStore)(nil)
