package relay

import (
	"github.com/google/uuid"
)

// State is the lifecycle position of one relayed chat.
type State int

const (
	Idle State = iota
	AwaitingUpstream
	Streaming
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingUpstream:
		return "awaiting_upstream"
	case Streaming:
		return "streaming"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is the bookkeeping for a single request. It is owned by the
// request goroutine and never shared.
type Session struct {
	ID      string
	Model   string
	State   State
	Tokens  int
	Bytes   int64
	Skipped int
}

func NewSession(model string) *Session {
	return &Session{
		ID:    uuid.NewString(),
		Model: model,
		State: Idle,
	}
}
