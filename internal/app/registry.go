package app

import (
	"context"
	"slices"
	"sync"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/rs/zerolog/log"
)

type sessionEntry struct {
	Rooms   map[domain.RoomName]struct{}
	Meta    domain.Metadata
	Sources []string
	Signal  core.SignalConnection
	Cancel  context.CancelFunc
}

// SessionState is the prior state handed back by Unregister for cleanup.
type SessionState struct {
	Rooms   []domain.RoomName
	Sources []string
	Member  core.MemberDTO
}

// Registry is the connection registry: per-connection room set, metadata
// and the derived source-language set.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*sessionEntry
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[core.SessionID]*sessionEntry),
	}
}

// Register creates empty state for sid. Duplicate ids are the transport's
// problem; a second Register replaces the transport handles only.
func (r *Registry) Register(sid core.SessionID, sig core.SignalConnection, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[sid]; ok {
		e.Signal, e.Cancel = sig, cancel
		log.Warn().Str("module", "app.registry").Str("sid", string(sid)).Msg("register on live sid")
		return
	}
	r.sessions[sid] = &sessionEntry{
		Rooms:  make(map[domain.RoomName]struct{}),
		Signal: sig,
		Cancel: cancel,
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("registered session")
}

// MergeMetadata applies patch and returns the derived sources after and
// before the merge.
func (r *Registry) MergeMetadata(sid core.SessionID, patch domain.MetaPatch) (after, before []string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return nil, nil, false
	}
	before = e.Sources
	e.Meta = patch.Apply(e.Meta)
	e.Sources = e.Meta.Sources()
	return slices.Clone(e.Sources), slices.Clone(before), true
}

// Unregister returns the prior state and forgets sid.
func (r *Registry) Unregister(sid core.SessionID) (SessionState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return SessionState{}, false
	}
	delete(r.sessions, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unregistered session")
	return SessionState{
		Rooms:   sortedRooms(e.Rooms),
		Sources: slices.Clone(e.Sources),
		Member:  memberOf(sid, e),
	}, true
}

func (r *Registry) SnapshotMember(sid core.SessionID) (core.MemberDTO, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok {
		return core.MemberDTO{ID: sid}, false
	}
	return memberOf(sid, e), true
}

func (r *Registry) Signal(sid core.SessionID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok || e.Signal == nil {
		return nil, false
	}
	return e.Signal, true
}

func (r *Registry) Meta(sid core.SessionID) (domain.Metadata, []string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok {
		return domain.Metadata{}, nil, false
	}
	return e.Meta, slices.Clone(e.Sources), true
}

func (r *Registry) Sources(sid core.SessionID) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok {
		return slices.Clone(e.Sources)
	}
	return nil
}

// RoomsOf returns the rooms sid belongs to, sorted.
func (r *Registry) RoomsOf(sid core.SessionID) []domain.RoomName {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok {
		return sortedRooms(e.Rooms)
	}
	return nil
}

func (r *Registry) AddRoom(sid core.SessionID, room domain.RoomName) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return false
	}
	e.Rooms[room] = struct{}{}
	return true
}

func (r *Registry) RemoveRoom(sid core.SessionID, room domain.RoomName) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[sid]; ok {
		delete(e.Rooms, room)
	}
}

func (r *Registry) Known(sid core.SessionID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[sid]
	return ok
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) Cancel(sid core.SessionID) bool {
	r.mu.RLock()
	var cancel context.CancelFunc
	e, ok := r.sessions[sid]
	if ok {
		cancel = e.Cancel
	}
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if cancel != nil {
		cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled session")
	return true
}

func memberOf(sid core.SessionID, e *sessionEntry) core.MemberDTO {
	m := core.MemberDTO{
		ID:     sid,
		Role:   e.Meta.Role,
		Pairs:  e.Meta.Pairs,
		Want:   e.Meta.Want,
		Source: e.Meta.Source,
	}
	if len(e.Sources) > 0 {
		m.Sources = slices.Clone(e.Sources)
	}
	return m
}

func sortedRooms(set map[domain.RoomName]struct{}) []domain.RoomName {
	// Equivalent to slices.Sorted(maps.Keys(set)); iterator APIs need go1.23.
	var keys []domain.RoomName
	for k := range set {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
