package services

import (
	"fmt"
	"log"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/daman-app/daman/internal/config"
	"github.com/daman-app/daman/internal/database"
	"github.com/daman-app/daman/internal/normalize"
)

// RegistryService manages the canonical entity registry and the
// alternative-name index backing exact resolution.
type RegistryService struct {
	db            *gorm.DB
	normalizer    *normalize.Normalizer
	collisionMode config.CollisionMode
}

// NewRegistryService creates a new registry service
func NewRegistryService(db *gorm.DB, normalizer *normalize.Normalizer, collisionMode config.CollisionMode) *RegistryService {
	return &RegistryService{
		db:            db,
		normalizer:    normalizer,
		collisionMode: collisionMode,
	}
}

// CreateEntity registers a new canonical supplier or bank. The
// normalized name is derived here and kept in sync on rename.
func (s *RegistryService) CreateEntity(kind database.EntityKind, officialName string) (*database.Entity, error) {
	key := s.normalizer.Key(officialName)
	if key == "" {
		return nil, ErrEmptyKey
	}

	var count int64
	if err := s.db.Model(&database.Entity{}).
		Where("kind = ? AND normalized_name = ?", kind, key).
		Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check for duplicate entity: %w", err)
	}
	if count > 0 {
		return nil, ErrDuplicateEntity
	}

	entity := &database.Entity{
		UUID:           uuid.NewString(),
		Kind:           kind,
		OfficialName:   officialName,
		NormalizedName: key,
	}
	if err := s.db.Create(entity).Error; err != nil {
		return nil, fmt.Errorf("failed to create entity: %w", err)
	}
	return entity, nil
}

// RenameEntity updates the official name and recomputes the normalized
// key. The entity id never changes.
func (s *RegistryService) RenameEntity(id uint, officialName string) (*database.Entity, error) {
	key := s.normalizer.Key(officialName)
	if key == "" {
		return nil, ErrEmptyKey
	}

	entity, err := s.GetEntity(id)
	if err != nil {
		return nil, err
	}

	var count int64
	if err := s.db.Model(&database.Entity{}).
		Where("kind = ? AND normalized_name = ? AND id <> ?", entity.Kind, key, id).
		Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check for duplicate entity: %w", err)
	}
	if count > 0 {
		return nil, ErrDuplicateEntity
	}

	entity.OfficialName = officialName
	entity.NormalizedName = key
	if err := s.db.Save(entity).Error; err != nil {
		return nil, fmt.Errorf("failed to rename entity: %w", err)
	}
	return entity, nil
}

// GetEntity retrieves an entity by id
func (s *RegistryService) GetEntity(id uint) (*database.Entity, error) {
	var entity database.Entity
	if err := s.db.First(&entity, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrUnknownEntity
		}
		return nil, err
	}
	return &entity, nil
}

// ListByKind returns all entities of one kind ordered by id
func (s *RegistryService) ListByKind(kind database.EntityKind) ([]database.Entity, error) {
	var entities []database.Entity
	err := s.db.Where("kind = ?", kind).Order("id ASC").Find(&entities).Error
	return entities, err
}

// ResolveExact resolves a normalized key to an entity id in O(1) via the
// canonical-name and alternative-name indexes. The bool reports whether
// a match was found.
func (s *RegistryService) ResolveExact(kind database.EntityKind, key string) (uint, bool, error) {
	if key == "" {
		return 0, false, nil
	}

	var entity database.Entity
	err := s.db.Where("kind = ? AND normalized_name = ?", kind, key).First(&entity).Error
	if err == nil {
		return entity.ID, true, nil
	}
	if err != gorm.ErrRecordNotFound {
		return 0, false, fmt.Errorf("failed to resolve canonical name: %w", err)
	}

	var alt database.AlternativeName
	err = s.db.Joins("JOIN entities ON entities.id = alternative_names.entity_id").
		Where("entities.kind = ? AND alternative_names.normalized_text = ?", kind, key).
		First(&alt).Error
	if err == nil {
		return alt.EntityID, true, nil
	}
	if err != gorm.ErrRecordNotFound {
		return 0, false, fmt.Errorf("failed to resolve alternative name: %w", err)
	}

	return 0, false, nil
}

// RegisterAlternative records a raw spelling as an alternative name of
// an entity. Re-registering the same spelling is a no-op. A spelling
// whose key equals a *different* entity's canonical key or registered
// alternative is a collision, handled per the configured mode.
func (s *RegistryService) RegisterAlternative(entityID uint, rawText string) error {
	key := s.normalizer.Key(rawText)
	if key == "" {
		return ErrEmptyKey
	}

	entity, err := s.GetEntity(entityID)
	if err != nil {
		return err
	}

	// The canonical spelling itself needs no alternative row.
	if key == entity.NormalizedName {
		return nil
	}

	ownerID, found, err := s.ResolveExact(entity.Kind, key)
	if err != nil {
		return err
	}
	if found && ownerID != entityID {
		if s.collisionMode == config.CollisionSkip {
			log.Printf("RegistryService: skipping alternative %q for entity %d, already owned by entity %d", key, entityID, ownerID)
			return nil
		}
		return fmt.Errorf("%w: %q already resolves to entity %d", ErrAlternativeCollision, key, ownerID)
	}
	if found {
		// Already registered for this entity.
		return nil
	}

	alt := database.AlternativeName{
		EntityID:       entityID,
		RawText:        rawText,
		NormalizedText: key,
	}
	if err := s.db.Create(&alt).Error; err != nil {
		return fmt.Errorf("failed to register alternative name: %w", err)
	}
	return nil
}

// Alternatives returns all registered alternative names of an entity
func (s *RegistryService) Alternatives(entityID uint) ([]database.AlternativeName, error) {
	var alts []database.AlternativeName
	err := s.db.Where("entity_id = ?", entityID).Order("id ASC").Find(&alts).Error
	return alts, err
}
