package services

import (
	"fmt"
	"sort"

	"gorm.io/gorm"

	"github.com/daman-app/daman/internal/config"
	"github.com/daman-app/daman/internal/database"
	"github.com/daman-app/daman/internal/matching"
	"github.com/daman-app/daman/internal/normalize"
)

// SuggestionTier names the category of evidence backing a suggestion
type SuggestionTier string

const (
	TierLearned   SuggestionTier = "learned"
	TierRegistry  SuggestionTier = "registry"
	TierSource    SuggestionTier = "source"
	TierCandidate SuggestionTier = "candidate"
)

// tierPriority orders tiers for tie-breaking: stronger evidence wins
// when confidences are equal.
var tierPriority = map[SuggestionTier]int{
	TierLearned:   0,
	TierRegistry:  1,
	TierSource:    2,
	TierCandidate: 3,
}

// Suggestion is one ranked candidate entity for a raw input. Confidence
// is on the 0-100 scale.
type Suggestion struct {
	EntityID   uint           `json:"entity_id"`
	EntityName string         `json:"entity_name"`
	Confidence float64        `json:"confidence"`
	Tier       SuggestionTier `json:"tier"`
	Note       string         `json:"note"`
}

// MatchingService ranks candidate entities for raw supplier/bank text by
// combining learned confirmations, exact registry hits and fuzzy
// similarity. Output is fully deterministic for a fixed registry and
// learning-store snapshot.
type MatchingService struct {
	db         *gorm.DB
	normalizer *normalize.Normalizer
	cfg        *config.MatchingConfig
}

// NewMatchingService creates a new matching service
func NewMatchingService(db *gorm.DB, normalizer *normalize.Normalizer, cfg *config.MatchingConfig) *MatchingService {
	return &MatchingService{
		db:         db,
		normalizer: normalizer,
		cfg:        cfg,
	}
}

// GetSuggestions evaluates all four tiers for the raw text and merges
// them into a single ranked, duplicate-free list. sourceHint is an
// optional auxiliary field from the imported record; empty disables the
// source tier. Garbage input degrades to an empty list, never an error.
func (s *MatchingService) GetSuggestions(rawText, sourceHint string, kind database.EntityKind) ([]Suggestion, error) {
	key := s.normalizer.Key(rawText)
	if key == "" {
		return []Suggestion{}, nil
	}

	// Per entity keep only the single best result across tiers.
	best := make(map[uint]Suggestion)
	consider := func(sug Suggestion) {
		current, ok := best[sug.EntityID]
		if !ok || sug.Confidence > current.Confidence ||
			(sug.Confidence == current.Confidence && tierPriority[sug.Tier] < tierPriority[current.Tier]) {
			best[sug.EntityID] = sug
		}
	}

	entities, err := s.entitiesByKind(kind)
	if err != nil {
		return nil, err
	}
	names := make(map[uint]string, len(entities))
	for i := range entities {
		names[entities[i].ID] = entities[i].OfficialName
	}

	if err := s.learnedTier(key, names, consider); err != nil {
		return nil, err
	}
	if err := s.registryTier(key, kind, names, consider); err != nil {
		return nil, err
	}
	s.similarityTier(TierSource, sourceHint, entities, s.cfg.SourceHintFloor, 89, consider)
	s.similarityTier(TierCandidate, rawText, entities, s.cfg.CandidateFloor, 85, consider)

	suggestions := make([]Suggestion, 0, len(best))
	for _, sug := range best {
		suggestions = append(suggestions, sug)
	}
	sort.Slice(suggestions, func(i, j int) bool {
		a, b := suggestions[i], suggestions[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if tierPriority[a.Tier] != tierPriority[b.Tier] {
			return tierPriority[a.Tier] < tierPriority[b.Tier]
		}
		if a.EntityName != b.EntityName {
			return a.EntityName < b.EntityName
		}
		return a.EntityID < b.EntityID
	})

	if len(suggestions) > s.cfg.MaxSuggestions {
		suggestions = suggestions[:s.cfg.MaxSuggestions]
	}
	return suggestions, nil
}

// learnedTier turns prior confirmations for the key into suggestions.
// Base confidence is 95, scaled up with the confirmation count and
// capped at 100, so a thrice-confirmed pairing reaches full confidence.
func (s *MatchingService) learnedTier(key string, names map[uint]string, consider func(Suggestion)) error {
	rows, err := database.LearningHistory(s.db, key)
	if err != nil {
		return fmt.Errorf("failed to read learning history: %w", err)
	}
	for _, row := range rows {
		name, ok := names[row.EntityID]
		if !ok {
			// Orphaned learning row (entity of another kind or deleted);
			// the integrity job reports these.
			continue
		}
		confidence := 95 + 2.5*float64(row.ConfirmedCount-1)
		if confidence > 100 {
			confidence = 100
		}
		consider(Suggestion{
			EntityID:   row.EntityID,
			EntityName: name,
			Confidence: confidence,
			Tier:       TierLearned,
			Note:       fmt.Sprintf("confirmed %d time(s)", row.ConfirmedCount),
		})
	}
	return nil
}

// registryTier matches the key exactly against canonical names and
// registered alternatives at a fixed confidence of 90.
func (s *MatchingService) registryTier(key string, kind database.EntityKind, names map[uint]string, consider func(Suggestion)) error {
	var entities []database.Entity
	if err := s.db.Where("kind = ? AND normalized_name = ?", kind, key).Find(&entities).Error; err != nil {
		return fmt.Errorf("failed to query canonical names: %w", err)
	}
	for _, e := range entities {
		consider(Suggestion{
			EntityID:   e.ID,
			EntityName: e.OfficialName,
			Confidence: 90,
			Tier:       TierRegistry,
			Note:       "exact canonical name match",
		})
	}

	var alts []database.AlternativeName
	err := s.db.Joins("JOIN entities ON entities.id = alternative_names.entity_id").
		Where("entities.kind = ? AND alternative_names.normalized_text = ?", kind, key).
		Find(&alts).Error
	if err != nil {
		return fmt.Errorf("failed to query alternative names: %w", err)
	}
	for _, alt := range alts {
		name, ok := names[alt.EntityID]
		if !ok {
			continue
		}
		consider(Suggestion{
			EntityID:   alt.EntityID,
			EntityName: name,
			Confidence: 90,
			Tier:       TierRegistry,
			Note:       "registered alternative name",
		})
	}
	return nil
}

// similarityTier scores the text against every entity of the kind and
// keeps those at or above the floor, capped below the exact tiers so
// fuzzy evidence never outranks an exact hit.
func (s *MatchingService) similarityTier(tier SuggestionTier, text string, entities []database.Entity, floor, maxConfidence float64, consider func(Suggestion)) {
	key := s.normalizer.StrippedKey(text)
	if key == "" {
		return
	}
	tokens := s.normalizer.Tokens(text)

	for _, e := range entities {
		entityKey := s.normalizer.StrippedKey(e.OfficialName)
		entityTokens := s.normalizer.Tokens(e.OfficialName)
		sim := matching.Combined(key, entityKey, tokens, entityTokens, s.cfg.Weights)
		if sim < floor {
			continue
		}
		confidence := sim * 100
		if confidence > maxConfidence {
			confidence = maxConfidence
		}
		note := fmt.Sprintf("similarity %.2f", sim)
		if tier == TierSource {
			note = fmt.Sprintf("source hint similarity %.2f", sim)
		}
		consider(Suggestion{
			EntityID:   e.ID,
			EntityName: e.OfficialName,
			Confidence: confidence,
			Tier:       tier,
			Note:       note,
		})
	}
}

func (s *MatchingService) entitiesByKind(kind database.EntityKind) ([]database.Entity, error) {
	var entities []database.Entity
	if err := s.db.Where("kind = ?", kind).Order("id ASC").Find(&entities).Error; err != nil {
		return nil, fmt.Errorf("failed to load entities: %w", err)
	}
	return entities, nil
}
