package app

import (
	"slices"
	"strings"
	"sync"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/rs/zerolog/log"
)

// RoomManagerImpl is the room directory. Rooms are created lazily on first
// join and dropped once their last member leaves.
type RoomManagerImpl struct {
	mu    sync.RWMutex
	rooms map[domain.RoomName]core.RoomService
}

func NewRoomManager() *RoomManagerImpl {
	return &RoomManagerImpl{rooms: make(map[domain.RoomName]core.RoomService)}
}

func (f *RoomManagerImpl) get(name domain.RoomName) (core.RoomService, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	room, ok := f.rooms[name]
	return room, ok
}

// Join is idempotent; it reports whether sid was newly added.
func (f *RoomManagerImpl) Join(name domain.RoomName, sid core.SessionID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[name]
	if !ok {
		room = core.NewRoomService(name)
		f.rooms[name] = room
		log.Debug().Str("module", "app.rooms").Str("room", string(name)).Msg("room created")
	}
	return room.AddMember(sid)
}

// Leave is a no-op for unknown rooms and non-members.
func (f *RoomManagerImpl) Leave(name domain.RoomName, sid core.SessionID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[name]
	if !ok {
		return false
	}
	removed := room.RemoveMember(sid)
	if room.MemberCount() == 0 {
		delete(f.rooms, name)
		log.Debug().Str("module", "app.rooms").Str("room", string(name)).Msg("empty room dropped")
	}
	return removed
}

func (f *RoomManagerImpl) Members(name domain.RoomName) []core.SessionID {
	if room, ok := f.get(name); ok {
		return room.Members()
	}
	return []core.SessionID{}
}

func (f *RoomManagerImpl) Size(name domain.RoomName) int {
	if room, ok := f.get(name); ok {
		return room.MemberCount()
	}
	return 0
}

func (f *RoomManagerImpl) Has(name domain.RoomName, sid core.SessionID) bool {
	if room, ok := f.get(name); ok {
		return room.Has(sid)
	}
	return false
}

// List returns every non-empty room sorted by name.
func (f *RoomManagerImpl) List() []core.RoomInfo {
	f.mu.RLock()
	out := make([]core.RoomInfo, 0, len(f.rooms))
	for name, r := range f.rooms {
		out = append(out, core.RoomInfo{Name: name, MemberCount: r.MemberCount()})
	}
	f.mu.RUnlock()
	slices.SortFunc(out, func(a, b core.RoomInfo) int {
		return strings.Compare(string(a.Name), string(b.Name))
	})
	return out
}
