package signal

import (
	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
)

func (ctl *SignalWSController) handlePing(conn *WsSignalConn) {
	resp := struct {
		Type string `json:"type"`
	}{
		Type: "pong",
	}
	ctl.sendJSON(conn, resp)
}

// sendConnected tells a fresh connection its id.
func (ctl *SignalWSController) sendConnected(sid core.SessionID, conn *WsSignalConn) {
	resp := struct {
		Type string         `json:"type"`
		ID   core.SessionID `json:"id"`
	}{
		Type: "connected",
		ID:   sid,
	}
	ctl.sendJSON(conn, resp)
}

func (ctl *SignalWSController) handleWhoAmI(sid core.SessionID, conn *WsSignalConn) {
	rooms := ctl.Orch.Registry.RoomsOf(sid)
	if rooms == nil {
		rooms = []domain.RoomName{}
	}
	resp := struct {
		Type  string            `json:"type"`
		ID    core.SessionID    `json:"id"`
		Rooms []domain.RoomName `json:"rooms"`
	}{
		Type:  "whoami",
		ID:    sid,
		Rooms: rooms,
	}
	ctl.sendJSON(conn, resp)
}
