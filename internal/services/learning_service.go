package services

import (
	"time"

	"gorm.io/gorm"

	"github.com/daman-app/daman/internal/database"
)

// LearningService records confirmed human decisions keyed by normalized
// text, so repeated confirmations bias future suggestions.
type LearningService struct {
	db *gorm.DB
}

// NewLearningService creates a new learning service
func NewLearningService(db *gorm.DB) *LearningService {
	return &LearningService{db: db}
}

// Confirm records that a human linked the normalized key to the entity.
// The upsert increments in SQL, so concurrent confirmations for the same
// pair never lose updates.
func (s *LearningService) Confirm(key string, entityID uint) error {
	return s.ConfirmTx(s.db, key, entityID)
}

// ConfirmTx is Confirm inside a caller-supplied transaction; the
// decision recorder uses it so learning writes roll back with the rest
// of a failed commit.
func (s *LearningService) ConfirmTx(tx *gorm.DB, key string, entityID uint) error {
	if key == "" {
		return ErrEmptyKey
	}
	return database.ConfirmLearning(tx, key, entityID, time.Now().UTC())
}

// History returns the confirmations recorded for a key, most recent
// first then by count. This is the "used this before" evidence shown in
// the UI next to suggestions.
func (s *LearningService) History(key string) ([]database.LearningConfirmation, error) {
	if key == "" {
		return []database.LearningConfirmation{}, nil
	}
	return database.LearningHistory(s.db, key)
}
