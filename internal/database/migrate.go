package database

import (
	"gorm.io/gorm"

	"github.com/advisorhq/voicebridge/internal/repository/nomination"
)

func MigrateDB(db *gorm.DB) error {
	return db.AutoMigrate(
		&nomination.SessionEntity{},
		&nomination.DraftEntity{},
		&nomination.TranscriptEntity{},
	)
}
