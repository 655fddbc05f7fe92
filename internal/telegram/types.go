package telegram

import (
	"sync"
	"time"
)

// UserSession tracks which interview a Telegram user is driving. mu is
// held while one update from the user is handled.
type UserSession struct {
	mu sync.Mutex

	UserID       int64
	State        SessionState
	SessionID    string
	LastActivity time.Time
}

// SessionState is the conversation state of a Telegram user.
type SessionState string

const (
	StateIdle         SessionState = "idle"
	StateAwaitingName SessionState = "awaiting_name"
	StateInterview    SessionState = "interview"
)
