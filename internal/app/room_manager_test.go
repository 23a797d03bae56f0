package app

import (
	"testing"

	"github.com/dkeye/Relay/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomManagerUnknownRoomIsEmpty(t *testing.T) {
	m := NewRoomManager()
	assert.Equal(t, 0, m.Size("nope"))
	assert.NotNil(t, m.Members("nope"))
	assert.Empty(t, m.Members("nope"))
	assert.False(t, m.Has("nope", "a"))
	assert.False(t, m.Leave("nope", "a"))
}

func TestRoomManagerJoinLeave(t *testing.T) {
	m := NewRoomManager()
	require.True(t, m.Join("ABCD-WXYZ", "b"))
	require.True(t, m.Join("ABCD-WXYZ", "a"))
	require.False(t, m.Join("ABCD-WXYZ", "a"))
	require.True(t, m.Join("other", "a"))

	assert.Equal(t, []core.SessionID{"a", "b"}, m.Members("ABCD-WXYZ"))
	assert.Equal(t, 2, m.Size("ABCD-WXYZ"))
	assert.Equal(t, []core.RoomInfo{
		{Name: "ABCD-WXYZ", MemberCount: 2},
		{Name: "other", MemberCount: 1},
	}, m.List())

	require.True(t, m.Leave("ABCD-WXYZ", "a"))
	assert.False(t, m.Has("ABCD-WXYZ", "a"))
	assert.True(t, m.Has("other", "a"))

	require.True(t, m.Leave("other", "a"))
	assert.Equal(t, []core.RoomInfo{{Name: "ABCD-WXYZ", MemberCount: 1}}, m.List(), "empty room dropped")
}
