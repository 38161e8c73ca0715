package db

import "time"

type RunStatus string

const (
	RunActive   RunStatus = "active"
	RunResolved RunStatus = "resolved"
	RunRejected RunStatus = "rejected"
)

// Run is the archived record of one triage session.
type Run struct {
	ID        string
	Ticket    string
	Service   string
	ErrorCode string
	Status    RunStatus
	StartedAt time.Time
	EndedAt   time.Time
}

// RunMessage is one archived stream message belonging to a run.
type RunMessage struct {
	ID    int64
	RunID string
	Agent string
	Text  string
	Kind  string
	Ts    time.Time
}

type Account struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

type RefreshToken struct {
	Token     string
	AccountID string
	ExpiresAt time.Time
	CreatedAt time.Time
}
