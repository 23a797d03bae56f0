package core

import "github.com/google/uuid"

// SessionID identifies one live transport session. It is never reused.
type SessionID string

func NewSessionID() SessionID {
	return SessionID(uuid.NewString())
}
