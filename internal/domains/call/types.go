package call

import "time"

// SessionStatus tracks a call session through its lifecycle in the store.
type SessionStatus string

const (
	SessionPending    SessionStatus = "pending"
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
	SessionCancelled  SessionStatus = "cancelled"
)

// TwoFactorStatus is the out-of-band consent gate state for a session.
type TwoFactorStatus string

const (
	TwoFactorNone      TwoFactorStatus = "none"
	TwoFactorPending   TwoFactorStatus = "pending"
	TwoFactorConfirmed TwoFactorStatus = "confirmed"
	TwoFactorRejected  TwoFactorStatus = "rejected"
)

// Speaker labels who produced a transcript line.
type Speaker string

const (
	SpeakerClient Speaker = "client"
	SpeakerAgent  Speaker = "ai_bot"
)

// Session is the advisor-initiated interaction the bridge mediates.
type Session struct {
	ID              string
	ClientName      string
	Status          SessionStatus
	TwoFactorStatus TwoFactorStatus
	ConnectedAt     *time.Time
	EndedAt         *time.Time
}

// TranscriptLine is one persisted utterance with its per-session order.
type TranscriptLine struct {
	SessionID string
	Speaker   Speaker
	Text      string
	SpokenAt  time.Time
	Sequence  int
}

// SessionUpdate is an out-of-band row-change notification for a session.
type SessionUpdate struct {
	TwoFactorStatus TwoFactorStatus `json:"two_factor_status,omitempty"`
	Status          string          `json:"status,omitempty"`
}

// StatusTerminated on a SessionUpdate means an advisor ended the call
// from outside the bridge.
const StatusTerminated = "terminated"
