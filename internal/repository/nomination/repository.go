package nomination

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/advisorhq/voicebridge/internal/domains/call"
	domain "github.com/advisorhq/voicebridge/internal/domains/nomination"
)

// UpdatesChannel names the pub/sub channel carrying row-change
// notifications for one session. Writers and subscribers share it.
func UpdatesChannel(sessionID string) string {
	return fmt.Sprintf("call:updates:%s", sessionID)
}

// GormNominationRepo implements call.Store on MySQL, publishing
// two-factor transitions over redis so out-of-band listeners see them.
type GormNominationRepo struct {
	db *gorm.DB
	rc *redis.Client
}

func NewGormNominationRepo(db *gorm.DB, rc *redis.Client) *GormNominationRepo {
	return &GormNominationRepo{db: db, rc: rc}
}

// GetSession implements call.Store.
func (g *GormNominationRepo) GetSession(ctx context.Context, id string) (*call.Session, error) {
	var entity SessionEntity
	err := g.db.WithContext(ctx).First(&entity, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, call.ErrSessionNotFound{ID: id}
	}
	if err != nil {
		return nil, err
	}
	return entity.ToDomain(), nil
}

// MarkSessionInProgress implements call.Store.
func (g *GormNominationRepo) MarkSessionInProgress(ctx context.Context, id string, connectedAt time.Time) error {
	return g.db.WithContext(ctx).Model(&SessionEntity{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       string(call.SessionInProgress),
			"connected_at": connectedAt,
		}).Error
}

// MarkSessionEnded implements call.Store.
func (g *GormNominationRepo) MarkSessionEnded(ctx context.Context, id string, status call.SessionStatus, endedAt time.Time) error {
	return g.db.WithContext(ctx).Model(&SessionEntity{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":   string(status),
			"ended_at": endedAt,
		}).Error
}

// SetTwoFactorStatus implements call.Store. The transition is also
// published on the session's update channel so an advisor surface using
// the same convention sees it without polling.
func (g *GormNominationRepo) SetTwoFactorStatus(ctx context.Context, id string, status call.TwoFactorStatus) error {
	err := g.db.WithContext(ctx).Model(&SessionEntity{}).
		Where("id = ?", id).
		Update("two_factor_status", string(status)).Error
	if err != nil {
		return err
	}

	payload, err := json.Marshal(call.SessionUpdate{TwoFactorStatus: status})
	if err != nil {
		return err
	}
	return g.rc.Publish(UpdatesChannel(id), string(payload)).Err()
}

// CreateDraft implements call.Store.
func (g *GormNominationRepo) CreateDraft(ctx context.Context, sessionID string) (uuid.UUID, error) {
	entity := DraftEntity{
		ID:               uuid.New(),
		SessionID:        sessionID,
		ExtractionStatus: string(domain.StatusEmpty),
	}
	if err := g.db.WithContext(ctx).Create(&entity).Error; err != nil {
		return uuid.Nil, err
	}
	return entity.ID, nil
}

// UpdateDraftFields implements call.Store: merges the extracted values
// into the draft and recomputes the derived extraction status in the
// same write. The status is mirrored onto the session row so the
// advisor surface can read collection progress without joining drafts.
func (g *GormNominationRepo) UpdateDraftFields(ctx context.Context, draftID uuid.UUID, fields domain.FieldValues) error {
	var entity DraftEntity
	if err := g.db.WithContext(ctx).First(&entity, "id = ?", draftID).Error; err != nil {
		return err
	}

	merged := entity.FieldValues()
	updates := map[string]interface{}{}
	for f, v := range fields {
		merged[f] = v
		updates[string(f)] = v
	}
	status := string(domain.DeriveStatus(merged))
	updates["extraction_status"] = status

	if err := g.db.WithContext(ctx).Model(&DraftEntity{}).
		Where("id = ?", draftID).
		Updates(updates).Error; err != nil {
		return err
	}

	return g.db.WithContext(ctx).Model(&SessionEntity{}).
		Where("id = ?", entity.SessionID).
		Update("data_collection_status", status).Error
}

// GetDraftFields implements call.Store.
func (g *GormNominationRepo) GetDraftFields(ctx context.Context, draftID uuid.UUID) (domain.FieldValues, error) {
	var entity DraftEntity
	if err := g.db.WithContext(ctx).First(&entity, "id = ?", draftID).Error; err != nil {
		return nil, err
	}
	return entity.FieldValues(), nil
}

// InsertTranscript implements call.Store.
func (g *GormNominationRepo) InsertTranscript(ctx context.Context, line call.TranscriptLine) error {
	var entity TranscriptEntity
	entity.FromDomain(line)
	return g.db.WithContext(ctx).Create(&entity).Error
}
