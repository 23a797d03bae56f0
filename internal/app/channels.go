package app

import (
	"slices"
	"sync"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/rs/zerolog/log"
)

// Channels keeps per-(room, source language) subscriber sets. It is derived
// state: callers update it in the same step as room membership and metadata.
type Channels struct {
	mu      sync.RWMutex
	members map[domain.ChannelKey]map[core.SessionID]struct{}
}

func NewChannels() *Channels {
	return &Channels{
		members: make(map[domain.ChannelKey]map[core.SessionID]struct{}),
	}
}

// SyncOnJoin subscribes sid to (room, code) for every code in sources.
func (c *Channels) SyncOnJoin(room domain.RoomName, sid core.SessionID, sources []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, code := range sources {
		c.subscribe(domain.ChannelKey{Room: room, Code: code}, sid)
	}
}

// SyncOnMetadataChange applies the before/after delta in every given room.
func (c *Channels) SyncOnMetadataChange(rooms []domain.RoomName, sid core.SessionID, before, after []string) {
	removed, added := domain.Diff(before, after)
	if len(removed) == 0 && len(added) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, room := range rooms {
		for _, code := range removed {
			c.unsubscribe(domain.ChannelKey{Room: room, Code: code}, sid)
		}
		for _, code := range added {
			c.subscribe(domain.ChannelKey{Room: room, Code: code}, sid)
		}
	}
}

// SyncOnLeave unsubscribes sid from (room, code) for every code in sources.
func (c *Channels) SyncOnLeave(room domain.RoomName, sid core.SessionID, sources []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, code := range sources {
		c.unsubscribe(domain.ChannelKey{Room: room, Code: code}, sid)
	}
}

// Recipients returns the subscribers of (room, code), sorted.
func (c *Channels) Recipients(room domain.RoomName, code string) []core.SessionID {
	c.mu.RLock()
	set := c.members[domain.ChannelKey{Room: room, Code: code}]
	out := make([]core.SessionID, 0, len(set))
	for sid := range set {
		out = append(out, sid)
	}
	c.mu.RUnlock()
	slices.Sort(out)
	return out
}

// Subscriptions lists the codes sid is subscribed to within room, sorted.
func (c *Channels) Subscriptions(room domain.RoomName, sid core.SessionID) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0)
	for key, set := range c.members {
		if key.Room != room {
			continue
		}
		if _, ok := set[sid]; ok {
			out = append(out, key.Code)
		}
	}
	slices.Sort(out)
	return out
}

// Len is the number of non-empty channels.
func (c *Channels) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.members)
}

func (c *Channels) subscribe(key domain.ChannelKey, sid core.SessionID) {
	set, ok := c.members[key]
	if !ok {
		set = make(map[core.SessionID]struct{})
		c.members[key] = set
	}
	set[sid] = struct{}{}
	log.Debug().Str("module", "app.channels").Str("sid", string(sid)).Str("room", string(key.Room)).Str("channel", key.String()).Msg("channel_join")
}

func (c *Channels) unsubscribe(key domain.ChannelKey, sid core.SessionID) {
	set, ok := c.members[key]
	if !ok {
		return
	}
	if _, ok := set[sid]; !ok {
		return
	}
	delete(set, sid)
	if len(set) == 0 {
		delete(c.members, key)
	}
	log.Debug().Str("module", "app.channels").Str("sid", string(sid)).Str("room", string(key.Room)).Str("channel", key.String()).Msg("channel_leave")
}
