package services

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/daman-app/daman/internal/database"
)

// correctableFields are the guarantee fields a correction may touch.
// Decision fields go through Commit and status through Transition, so
// corrections cannot bypass learning or the state machine.
var correctableFields = map[string]bool{
	"contract_number": true,
	"supplier_text":   true,
	"bank_text":       true,
	"amount":          true,
	"issue_date":      true,
	"expiry_date":     true,
}

// CorrectionService fixes historical data mistakes without ever editing
// past rows: each correction is applied to the current record and logged
// as its own distinguishable event type, keeping the log append-only.
type CorrectionService struct {
	db    *gorm.DB
	locks *GuaranteeLocks
	sinks []EventSink
}

// NewCorrectionService creates a new correction service sharing the
// decision recorder's per-guarantee locks.
func NewCorrectionService(db *gorm.DB, locks *GuaranteeLocks) *CorrectionService {
	return &CorrectionService{db: db, locks: locks}
}

// AddSink registers a post-commit event listener
func (s *CorrectionService) AddSink(sink EventSink) {
	s.sinks = append(s.sinks, sink)
}

// Correct applies field fixes to a guarantee as one serialized,
// separately audited mutation. Dates are passed as RFC3339 strings,
// amount as a number.
func (s *CorrectionService) Correct(guaranteeID uint, fields map[string]interface{}, reason, actor string) (*database.Guarantee, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("correction requires at least one field")
	}
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("correction requires a reason")
	}
	for field := range fields {
		if !correctableFields[field] {
			return nil, fmt.Errorf("%w: %q is not correctable", ErrUnknownField, field)
		}
	}

	unlock := s.locks.Lock(guaranteeID)
	defer unlock()

	var result *database.Guarantee
	var appended database.GuaranteeEvent

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var g database.Guarantee
		if err := tx.First(&g, guaranteeID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrGuaranteeNotFound
			}
			return err
		}

		snapshot := g.Snapshot()
		diff := database.JSONB{}

		for field, newValue := range fields {
			oldValue := snapshot[field]
			if err := applyCorrection(&g, field, newValue); err != nil {
				return err
			}
			diff[field] = map[string]interface{}{"old": oldValue, "new": g.Snapshot()[field]}
		}

		if err := tx.Save(&g).Error; err != nil {
			return fmt.Errorf("failed to apply correction: %w", err)
		}

		event := database.GuaranteeEvent{
			GuaranteeID: g.ID,
			Type:        database.EventTypeCorrection,
			Subtype:     "correction:" + slugify(reason),
			Snapshot:    snapshot,
			Diff:        diff,
			Actor:       actor,
			CreatedAt:   time.Now().UTC(),
		}
		if err := database.AppendGuaranteeEvent(tx, &event); err != nil {
			return err
		}

		appended = event
		result = &g
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, sink := range s.sinks {
		sink.HistoryAppended(result, &appended)
	}
	return result, nil
}

func applyCorrection(g *database.Guarantee, field string, value interface{}) error {
	switch field {
	case "contract_number", "supplier_text", "bank_text":
		v, ok := value.(string)
		if !ok {
			return fmt.Errorf("field %q expects a string", field)
		}
		switch field {
		case "contract_number":
			g.ContractNumber = v
		case "supplier_text":
			g.SupplierText = v
		case "bank_text":
			g.BankText = v
		}
	case "amount":
		v, ok := value.(float64)
		if !ok {
			return fmt.Errorf("field %q expects a number", field)
		}
		g.Amount = v
	case "issue_date", "expiry_date":
		target := &g.IssueDate
		if field == "expiry_date" {
			target = &g.ExpiryDate
		}
		if value == nil {
			*target = nil
			return nil
		}
		v, ok := value.(string)
		if !ok {
			return fmt.Errorf("field %q expects an RFC3339 string or null", field)
		}
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return fmt.Errorf("field %q expects an RFC3339 date: %w", field, err)
		}
		*target = &ts
	}
	return nil
}

// slugify reduces a free-text reason to a short subtype-safe token
func slugify(reason string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(reason)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			if s := b.String(); s != "" && !strings.HasSuffix(s, "_") {
				b.WriteRune('_')
			}
		}
	}
	slug := strings.Trim(b.String(), "_")
	if len(slug) > 60 {
		slug = slug[:60]
	}
	if slug == "" {
		slug = "unspecified"
	}
	return slug
}
