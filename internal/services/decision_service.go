package services

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/daman-app/daman/internal/config"
	"github.com/daman-app/daman/internal/database"
	"github.com/daman-app/daman/internal/normalize"
)

// Decision field names accepted by Commit
const (
	FieldSupplier = "supplier"
	FieldBank     = "bank"
)

// ActorSystem marks mutations produced by the engine itself (import
// auto-matching) rather than a human decision.
const ActorSystem = "system"

// EventSink receives every successfully appended history event, after
// the transaction committed. Sinks must not block; the websocket feed
// and the Slack notifier hang off this.
type EventSink interface {
	HistoryAppended(guarantee *database.Guarantee, event *database.GuaranteeEvent)
}

// ImportRecord is the parsed spreadsheet row handed over by the import
// collaborator.
type ImportRecord struct {
	ContractNumber string                 `json:"contract_number"`
	SupplierText   string                 `json:"supplier_text"`
	BankText       string                 `json:"bank_text"`
	Amount         float64                `json:"amount"`
	IssueDate      *time.Time             `json:"issue_date"`
	ExpiryDate     *time.Time             `json:"expiry_date"`
	Extra          map[string]interface{} `json:"extra,omitempty"`
}

// DecisionService is the decision recorder: it commits entity choices to
// guarantees, feeds the learning store and appends audit history, all as
// one atomic unit per mutation.
type DecisionService struct {
	db         *gorm.DB
	normalizer *normalize.Normalizer
	learning   *LearningService
	matcher    *MatchingService
	cfg        *config.MatchingConfig
	locks      *GuaranteeLocks
	sinks      []EventSink
}

// NewDecisionService creates a new decision service
func NewDecisionService(db *gorm.DB, normalizer *normalize.Normalizer, learning *LearningService, matcher *MatchingService, cfg *config.MatchingConfig, locks *GuaranteeLocks) *DecisionService {
	return &DecisionService{
		db:         db,
		normalizer: normalizer,
		learning:   learning,
		matcher:    matcher,
		cfg:        cfg,
		locks:      locks,
	}
}

// AddSink registers a post-commit event listener
func (s *DecisionService) AddSink(sink EventSink) {
	s.sinks = append(s.sinks, sink)
}

func (s *DecisionService) notifySinks(guarantee *database.Guarantee, events []database.GuaranteeEvent) {
	for i := range events {
		for _, sink := range s.sinks {
			sink.HistoryAppended(guarantee, &events[i])
		}
	}
}

// GetGuarantee retrieves a guarantee by id
func (s *DecisionService) GetGuarantee(id uint) (*database.Guarantee, error) {
	var g database.Guarantee
	if err := s.db.First(&g, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrGuaranteeNotFound
		}
		return nil, err
	}
	return &g, nil
}

// GetGuaranteeByUUID retrieves a guarantee by its public uuid
func (s *DecisionService) GetGuaranteeByUUID(id string) (*database.Guarantee, error) {
	var g database.Guarantee
	if err := s.db.Where("uuid = ?", id).First(&g).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrGuaranteeNotFound
		}
		return nil, err
	}
	return &g, nil
}

// ListGuarantees returns guarantees newest first
func (s *DecisionService) ListGuarantees(limit, offset int) ([]database.Guarantee, error) {
	var gs []database.Guarantee
	err := s.db.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&gs).Error
	return gs, err
}

// CountGuarantees returns the total number of guarantees
func (s *DecisionService) CountGuarantees() (int64, error) {
	var total int64
	err := s.db.Model(&database.Guarantee{}).Count(&total).Error
	return total, err
}

// Commit records the choice of an entity for one decision field of a
// guarantee. On success the guarantee's decision is updated, the
// learning store confirms the (key, entity) pairing and one history
// event is appended - plus a second status_change event when the update
// completes the resolution and moves the guarantee from pending to
// ready. All writes commit or roll back as a unit.
func (s *DecisionService) Commit(guaranteeID uint, field string, entityID uint, rawText, actor string) (*database.Guarantee, error) {
	var wantKind database.EntityKind
	switch field {
	case FieldSupplier:
		wantKind = database.EntityKindSupplier
	case FieldBank:
		wantKind = database.EntityKindBank
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}

	unlock := s.locks.Lock(guaranteeID)
	defer unlock()

	var result *database.Guarantee
	var appended []database.GuaranteeEvent

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var entity database.Entity
		if err := tx.First(&entity, entityID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrUnknownEntity
			}
			return err
		}
		if entity.Kind != wantKind {
			return fmt.Errorf("%w: entity %d is a %s", ErrKindMismatch, entityID, entity.Kind)
		}

		var g database.Guarantee
		if err := tx.First(&g, guaranteeID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrGuaranteeNotFound
			}
			return err
		}

		snapshot := g.Snapshot()
		var oldValue interface{}
		if field == FieldSupplier {
			if g.SupplierID != nil {
				oldValue = float64(*g.SupplierID)
			}
			g.SupplierID = &entity.ID
		} else {
			if g.BankID != nil {
				oldValue = float64(*g.BankID)
			}
			g.BankID = &entity.ID
		}
		if err := tx.Save(&g).Error; err != nil {
			return fmt.Errorf("failed to update guarantee decision: %w", err)
		}

		if key := s.normalizer.Key(rawText); key != "" {
			if err := s.learning.ConfirmTx(tx, key, entity.ID); err != nil {
				return err
			}
		}

		eventType := database.EventTypeManualEdit
		if actor == ActorSystem {
			eventType = database.EventTypeAutoMatch
		}
		event := database.GuaranteeEvent{
			GuaranteeID: g.ID,
			Type:        eventType,
			Subtype:     field,
			Snapshot:    snapshot,
			Diff:        database.FieldDiff(field+"_id", oldValue, float64(entity.ID)),
			Actor:       actor,
			CreatedAt:   time.Now().UTC(),
		}
		if err := database.AppendGuaranteeEvent(tx, &event); err != nil {
			return err
		}
		appended = append(appended, event)

		if g.Resolved() && g.Status == database.GuaranteeStatusPending {
			statusSnapshot := g.Snapshot()
			g.Status = database.GuaranteeStatusReady
			if err := tx.Save(&g).Error; err != nil {
				return fmt.Errorf("failed to update guarantee status: %w", err)
			}
			statusEvent := database.GuaranteeEvent{
				GuaranteeID: g.ID,
				Type:        database.EventTypeStatusChange,
				Subtype:     "status",
				Snapshot:    statusSnapshot,
				Diff:        database.FieldDiff("status", string(database.GuaranteeStatusPending), string(database.GuaranteeStatusReady)),
				Actor:       actor,
				CreatedAt:   time.Now().UTC(),
			}
			if err := database.AppendGuaranteeEvent(tx, &statusEvent); err != nil {
				return err
			}
			appended = append(appended, statusEvent)
		}

		result = &g
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifySinks(result, appended)
	return result, nil
}

// Transition applies an explicit workflow decision (approve, extend,
// reject, hold) with its own status_change event.
func (s *DecisionService) Transition(guaranteeID uint, newStatus database.GuaranteeStatus, actor, note string) (*database.Guarantee, error) {
	if !database.IsValidStatus(newStatus) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, newStatus)
	}

	unlock := s.locks.Lock(guaranteeID)
	defer unlock()

	var result *database.Guarantee
	var appended []database.GuaranteeEvent

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var g database.Guarantee
		if err := tx.First(&g, guaranteeID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrGuaranteeNotFound
			}
			return err
		}

		if !g.Status.CanTransitionTo(newStatus) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, g.Status, newStatus)
		}

		snapshot := g.Snapshot()
		oldStatus := g.Status
		g.Status = newStatus
		if err := tx.Save(&g).Error; err != nil {
			return fmt.Errorf("failed to update guarantee status: %w", err)
		}

		diff := database.FieldDiff("status", string(oldStatus), string(newStatus))
		if note != "" {
			diff["note"] = note
		}
		event := database.GuaranteeEvent{
			GuaranteeID: g.ID,
			Type:        database.EventTypeStatusChange,
			Subtype:     "status",
			Snapshot:    snapshot,
			Diff:        diff,
			Actor:       actor,
			CreatedAt:   time.Now().UTC(),
		}
		if err := database.AppendGuaranteeEvent(tx, &event); err != nil {
			return err
		}
		appended = append(appended, event)

		result = &g
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifySinks(result, appended)
	return result, nil
}

// CreateFromImport takes a parsed import row, creates the pending
// guarantee with its import event, then tries to auto-match both sides.
// A side is only committed automatically when the top suggestion reaches
// the configured auto-accept confidence.
func (s *DecisionService) CreateFromImport(record ImportRecord, actor string) (*database.Guarantee, error) {
	g := database.Guarantee{
		UUID:           uuid.NewString(),
		ContractNumber: record.ContractNumber,
		SupplierText:   record.SupplierText,
		BankText:       record.BankText,
		Amount:         record.Amount,
		IssueDate:      record.IssueDate,
		ExpiryDate:     record.ExpiryDate,
		RawFields:      record.Extra,
		Status:         database.GuaranteeStatusPending,
	}

	var importEvent database.GuaranteeEvent
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&g).Error; err != nil {
			return fmt.Errorf("failed to create guarantee: %w", err)
		}
		// The import diff covers every snapshot field so replaying the
		// chain from the empty pre-creation snapshot reproduces full
		// state.
		diff := database.JSONB{}
		for field, value := range g.Snapshot() {
			diff[field] = map[string]interface{}{"old": nil, "new": value}
		}
		importEvent = database.GuaranteeEvent{
			GuaranteeID: g.ID,
			Type:        database.EventTypeImport,
			Subtype:     "import",
			Snapshot:    database.JSONB{},
			Diff:        diff,
			Actor:       actor,
			CreatedAt:   time.Now().UTC(),
		}
		return database.AppendGuaranteeEvent(tx, &importEvent)
	})
	if err != nil {
		return nil, err
	}
	s.notifySinks(&g, []database.GuaranteeEvent{importEvent})

	s.autoMatch(&g, FieldSupplier, record.SupplierText, database.EntityKindSupplier)
	s.autoMatch(&g, FieldBank, record.BankText, database.EntityKindBank)

	return s.GetGuarantee(g.ID)
}

// autoMatch commits a side automatically when the evidence is strong
// enough. Failures only log; import never fails because matching
// declined.
func (s *DecisionService) autoMatch(g *database.Guarantee, field, rawText string, kind database.EntityKind) {
	suggestions, err := s.matcher.GetSuggestions(rawText, "", kind)
	if err != nil {
		log.Printf("DecisionService: auto-match lookup failed for guarantee %s %s: %v", g.UUID, field, err)
		return
	}
	if len(suggestions) == 0 || suggestions[0].Confidence < s.cfg.AutoAcceptConfidence {
		return
	}

	if _, err := s.Commit(g.ID, field, suggestions[0].EntityID, rawText, ActorSystem); err != nil {
		log.Printf("DecisionService: auto-match commit failed for guarantee %s %s: %v", g.UUID, field, err)
	}
}
