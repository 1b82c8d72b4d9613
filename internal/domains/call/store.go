package call

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/advisorhq/voicebridge/internal/domains/nomination"
)

// Store is the persistence collaborator the bridge reads session and
// draft data from and writes status, field and transcript updates to.
// Write failures are logged and never block a live call.
type Store interface {
	GetSession(ctx context.Context, id string) (*Session, error)
	MarkSessionInProgress(ctx context.Context, id string, connectedAt time.Time) error
	MarkSessionEnded(ctx context.Context, id string, status SessionStatus, endedAt time.Time) error
	SetTwoFactorStatus(ctx context.Context, id string, status TwoFactorStatus) error

	CreateDraft(ctx context.Context, sessionID string) (uuid.UUID, error)
	UpdateDraftFields(ctx context.Context, draftID uuid.UUID, fields nomination.FieldValues) error
	GetDraftFields(ctx context.Context, draftID uuid.UUID) (nomination.FieldValues, error)

	InsertTranscript(ctx context.Context, line TranscriptLine) error
}

// ErrSessionNotFound is returned by GetSession for unknown session ids.
type ErrSessionNotFound struct{ ID string }

func (e ErrSessionNotFound) Error() string {
	return "session not found: " + e.ID
}

// Subscription is a live handle on a session's row-change notifications.
type Subscription interface {
	Updates() <-chan SessionUpdate
	Close() error
}

// Notifier delivers out-of-band status signals (two-factor confirmation,
// advisor-initiated termination) for a single session.
type Notifier interface {
	Subscribe(sessionID string) (Subscription, error)
}
