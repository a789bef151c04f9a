package database

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GuaranteeEventType classifies how a mutation was produced
type GuaranteeEventType string

const (
	EventTypeImport       GuaranteeEventType = "import"
	EventTypeManualEdit   GuaranteeEventType = "manual_edit"
	EventTypeAutoMatch    GuaranteeEventType = "auto_match"
	EventTypeStatusChange GuaranteeEventType = "status_change"
	EventTypeCorrection   GuaranteeEventType = "correction"
)

// GuaranteeEvent is one append-only audit record for a guarantee mutation.
// Snapshot holds the full pre-mutation state and Diff the field-level
// changes, so the post-state of any event is snapshot+diff. Rows are never
// updated in place; corrections arrive as their own event type. The unique
// (guarantee_id, created_at, subtype) key makes backfill replays no-ops.
type GuaranteeEvent struct {
	ID          uint               `gorm:"primaryKey" json:"id"`
	GuaranteeID uint               `gorm:"not null;index;uniqueIndex:idx_guarantee_events_natural" json:"guarantee_id"`
	Type        GuaranteeEventType `gorm:"type:varchar(20);not null" json:"type"`
	Subtype     string             `gorm:"type:varchar(100);not null;uniqueIndex:idx_guarantee_events_natural" json:"subtype"`
	Snapshot    JSONB              `gorm:"type:jsonb" json:"snapshot"`
	Diff        JSONB              `gorm:"type:jsonb" json:"diff"`
	Actor       string             `gorm:"type:varchar(100);not null" json:"actor"`
	CreatedAt   time.Time          `gorm:"not null;uniqueIndex:idx_guarantee_events_natural" json:"created_at"`

	Guarantee Guarantee `gorm:"foreignKey:GuaranteeID" json:"-"`
}

func (GuaranteeEvent) TableName() string {
	return "guarantee_events"
}

// FieldDiff builds a single-field diff document
func FieldDiff(field string, oldValue, newValue interface{}) JSONB {
	return JSONB{
		field: map[string]interface{}{
			"old": oldValue,
			"new": newValue,
		},
	}
}

// AppendGuaranteeEvent appends one event to a guarantee's history.
// Timestamps must be monotonically non-decreasing per guarantee; callers
// hold the per-guarantee lock, so the check here only guards against
// clock regressions.
func AppendGuaranteeEvent(tx *gorm.DB, event *GuaranteeEvent) error {
	var last GuaranteeEvent
	err := tx.Where("guarantee_id = ?", event.GuaranteeID).
		Order("created_at DESC, id DESC").
		First(&last).Error
	if err == nil && event.CreatedAt.Before(last.CreatedAt) {
		event.CreatedAt = last.CreatedAt
	} else if err != nil && err != gorm.ErrRecordNotFound {
		return fmt.Errorf("failed to read last event: %w", err)
	}

	// Two events from one commit (edit + status change) share a timestamp
	// on coarse clocks; the subtype keeps the natural key unique.
	if err := tx.Create(event).Error; err != nil {
		return fmt.Errorf("failed to append history event: %w", err)
	}
	return nil
}

// GuaranteeEvents returns the full ordered history of a guarantee
func GuaranteeEvents(db *gorm.DB, guaranteeID uint) ([]GuaranteeEvent, error) {
	var events []GuaranteeEvent
	err := db.Where("guarantee_id = ?", guaranteeID).
		Order("created_at ASC, id ASC").
		Find(&events).Error
	return events, err
}

// LastEventAtOrBefore returns the most recent event at or before ts,
// or gorm.ErrRecordNotFound when the history starts later.
func LastEventAtOrBefore(db *gorm.DB, guaranteeID uint, ts time.Time) (*GuaranteeEvent, error) {
	var event GuaranteeEvent
	err := db.Where("guarantee_id = ? AND created_at <= ?", guaranteeID, ts).
		Order("created_at DESC, id DESC").
		First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// LearningConfirmation records one confirmed human decision linking a
// normalized input key to a canonical entity. One row per (key, entity);
// the count grows with every repeated confirmation.
type LearningConfirmation struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	NormalizedKey   string    `gorm:"type:varchar(512);not null;uniqueIndex:idx_learning_key_entity" json:"normalized_key"`
	EntityID        uint      `gorm:"not null;uniqueIndex:idx_learning_key_entity" json:"entity_id"`
	ConfirmedCount  int       `gorm:"not null;default:1" json:"confirmed_count"`
	LastConfirmedAt time.Time `gorm:"not null" json:"last_confirmed_at"`
	CreatedAt       time.Time `json:"created_at"`
}

func (LearningConfirmation) TableName() string {
	return "learning_confirmations"
}

// ConfirmLearning upserts a learning confirmation atomically. Racing
// confirmations for the same (key, entity) pair resolve inside the
// database; the increment happens in SQL so no update is ever lost.
func ConfirmLearning(tx *gorm.DB, key string, entityID uint, now time.Time) error {
	row := LearningConfirmation{
		NormalizedKey:   key,
		EntityID:        entityID,
		ConfirmedCount:  1,
		LastConfirmedAt: now,
	}
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "normalized_key"}, {Name: "entity_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"confirmed_count":   gorm.Expr("confirmed_count + 1"),
			"last_confirmed_at": now,
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to upsert learning confirmation: %w", err)
	}
	return nil
}

// LearningHistory returns all confirmations for a normalized key, most
// recently used first, then by confirmation count.
func LearningHistory(db *gorm.DB, key string) ([]LearningConfirmation, error) {
	var rows []LearningConfirmation
	err := db.Where("normalized_key = ?", key).
		Order("last_confirmed_at DESC, confirmed_count DESC").
		Find(&rows).Error
	return rows, err
}
