// Package domain contains entities without transport logic, just meta-data.
package domain

import "strings"

type RoomName string

// ChannelKey names a per-source-language sub-group of a room.
type ChannelKey struct {
	Room RoomName
	Code string
}

func (k ChannelKey) String() string {
	var b strings.Builder
	b.WriteString(string(k.Room))
	b.WriteString("::src::")
	b.WriteString(k.Code)
	return b.String()
}
