package nomination

import (
	"time"

	"github.com/google/uuid"

	"github.com/advisorhq/voicebridge/internal/domains/call"
	domain "github.com/advisorhq/voicebridge/internal/domains/nomination"
)

type SessionEntity struct {
	ID         string `gorm:"primaryKey;type:varchar(64);not null"`
	ClientName string `gorm:"type:varchar(255)"`

	Status               string `gorm:"type:varchar(16);default:pending"`
	TwoFactorStatus      string `gorm:"column:two_factor_status;type:varchar(16);default:none"`
	DataCollectionStatus string `gorm:"column:data_collection_status;type:varchar(16)"`

	ConnectedAt *time.Time
	EndedAt     *time.Time

	CreatedAt time.Time `gorm:"autoCreateTime(3)"`
	UpdatedAt time.Time `gorm:"autoUpdateTime(3)"`
}

func (SessionEntity) TableName() string { return "call_sessions" }

func (se *SessionEntity) ToDomain() *call.Session {
	return &call.Session{
		ID:              se.ID,
		ClientName:      se.ClientName,
		Status:          call.SessionStatus(se.Status),
		TwoFactorStatus: call.TwoFactorStatus(se.TwoFactorStatus),
		ConnectedAt:     se.ConnectedAt,
		EndedAt:         se.EndedAt,
	}
}

// DraftEntity accumulates the nominee fields collected during a call.
// Column names line up with the extraction field keys so updates can be
// written straight from a FieldValues map.
type DraftEntity struct {
	ID        uuid.UUID `gorm:"primaryKey;type:char(36);not null"`
	SessionID string    `gorm:"column:session_id;type:varchar(64);index;not null"`

	FullName             string `gorm:"type:varchar(255)"`
	Relationship         string `gorm:"type:varchar(64)"`
	DateOfBirth          string `gorm:"type:varchar(10)"`
	Email                string `gorm:"type:varchar(255)"`
	Phone                string `gorm:"type:varchar(32)"`
	TaxFileNumber        string `gorm:"type:varchar(16)"`
	AddressStreet        string `gorm:"type:varchar(255)"`
	AddressSuburb        string `gorm:"type:varchar(128)"`
	AddressState         string `gorm:"type:varchar(64)"`
	AddressPostcode      string `gorm:"type:varchar(8)"`
	AllocationPercentage string `gorm:"type:varchar(8)"`
	NominationType       string `gorm:"type:varchar(16)"`
	Priority             string `gorm:"type:varchar(16)"`

	ExtractionStatus string `gorm:"type:varchar(10);default:empty"`

	CreatedAt time.Time `gorm:"autoCreateTime(3)"`
	UpdatedAt time.Time `gorm:"autoUpdateTime(3)"`
}

func (DraftEntity) TableName() string { return "nomination_drafts" }

// FieldValues flattens the entity into the extraction map shape, empty
// columns omitted.
func (de *DraftEntity) FieldValues() domain.FieldValues {
	all := map[domain.Field]string{
		domain.FieldFullName:             de.FullName,
		domain.FieldRelationship:         de.Relationship,
		domain.FieldDateOfBirth:          de.DateOfBirth,
		domain.FieldEmail:                de.Email,
		domain.FieldPhone:                de.Phone,
		domain.FieldTaxFileNumber:        de.TaxFileNumber,
		domain.FieldAddressStreet:        de.AddressStreet,
		domain.FieldAddressSuburb:        de.AddressSuburb,
		domain.FieldAddressState:         de.AddressState,
		domain.FieldAddressPostcode:      de.AddressPostcode,
		domain.FieldAllocationPercentage: de.AllocationPercentage,
		domain.FieldNominationType:       de.NominationType,
		domain.FieldPriority:             de.Priority,
	}
	values := domain.FieldValues{}
	for f, v := range all {
		if v != "" {
			values[f] = v
		}
	}
	return values
}

type TranscriptEntity struct {
	ID        uuid.UUID `gorm:"primaryKey;type:char(36);not null"`
	SessionID string    `gorm:"column:session_id;type:varchar(64);index;not null"`

	Speaker  string    `gorm:"type:varchar(10)"`
	Text     string    `gorm:"type:text"`
	SpokenAt time.Time `gorm:"column:spoken_at"`
	Sequence int       `gorm:"column:sequence"`

	CreatedAt time.Time `gorm:"autoCreateTime(3)"`
}

func (TranscriptEntity) TableName() string { return "call_transcripts" }

func (te *TranscriptEntity) FromDomain(line call.TranscriptLine) {
	te.ID = uuid.New()
	te.SessionID = line.SessionID
	te.Speaker = string(line.Speaker)
	te.Text = line.Text
	te.SpokenAt = line.SpokenAt
	te.Sequence = line.Sequence
}
