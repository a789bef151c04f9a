package database

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// JSONB is a custom type for PostgreSQL JSONB columns.
// Under SQLite (tests) the value round-trips through TEXT/BLOB.
type JSONB map[string]interface{}

// Scan implements the sql.Scanner interface
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = make(map[string]interface{})
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	default:
		return errors.New("unsupported type for JSONB column")
	}
}

// Value implements the driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// EntityKind distinguishes the two registries sharing the entities table
type EntityKind string

const (
	EntityKindSupplier EntityKind = "supplier"
	EntityKindBank     EntityKind = "bank"
)

// Entity is a canonical supplier or bank in the registry.
// NormalizedName is derived from OfficialName and recomputed on rename;
// it is the key all exact matching runs against.
type Entity struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	UUID           string     `gorm:"type:varchar(36);uniqueIndex;not null" json:"uuid"`
	Kind           EntityKind `gorm:"type:varchar(20);not null;index:idx_entities_kind_normalized" json:"kind"`
	OfficialName   string     `gorm:"type:varchar(512);not null" json:"official_name"`
	NormalizedName string     `gorm:"type:varchar(512);not null;index:idx_entities_kind_normalized" json:"normalized_name"`
	Confirmed      bool       `gorm:"default:false" json:"confirmed"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	Alternatives []AlternativeName `gorm:"foreignKey:EntityID" json:"alternatives,omitempty"`
}

func (Entity) TableName() string {
	return "entities"
}

// AlternativeName maps a previously seen spelling to a canonical entity.
// The (entity_id, normalized_text) pair is unique so re-registering the
// same spelling is a no-op; cross-entity collisions are rejected in the
// registry service before the row is written.
type AlternativeName struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	EntityID       uint      `gorm:"not null;uniqueIndex:idx_altnames_entity_normalized" json:"entity_id"`
	RawText        string    `gorm:"type:varchar(512);not null" json:"raw_text"`
	NormalizedText string    `gorm:"type:varchar(512);not null;uniqueIndex:idx_altnames_entity_normalized;index" json:"normalized_text"`
	CreatedAt      time.Time `json:"created_at"`

	Entity Entity `gorm:"foreignKey:EntityID" json:"-"`
}

func (AlternativeName) TableName() string {
	return "alternative_names"
}

// GuaranteeStatus represents the workflow status of a letter of guarantee
type GuaranteeStatus string

const (
	GuaranteeStatusPending  GuaranteeStatus = "pending"
	GuaranteeStatusReady    GuaranteeStatus = "ready"
	GuaranteeStatusApproved GuaranteeStatus = "approved"
	GuaranteeStatusExtended GuaranteeStatus = "extended"
	GuaranteeStatusRejected GuaranteeStatus = "rejected"
	GuaranteeStatusHeld     GuaranteeStatus = "held"
)

// statusTransitions is the full transition map. A guarantee becomes ready
// once both supplier and bank are resolved and never returns to pending.
var statusTransitions = map[GuaranteeStatus][]GuaranteeStatus{
	GuaranteeStatusPending: {GuaranteeStatusReady},
	GuaranteeStatusReady: {
		GuaranteeStatusApproved,
		GuaranteeStatusExtended,
		GuaranteeStatusRejected,
		GuaranteeStatusHeld,
	},
}

// CanTransitionTo reports whether the status machine allows moving to next
func (s GuaranteeStatus) CanTransitionTo(next GuaranteeStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsValidStatus reports whether s is one of the known workflow statuses
func IsValidStatus(s GuaranteeStatus) bool {
	switch s {
	case GuaranteeStatusPending, GuaranteeStatusReady, GuaranteeStatusApproved,
		GuaranteeStatusExtended, GuaranteeStatusRejected, GuaranteeStatusHeld:
		return true
	}
	return false
}

// Guarantee is a bank letter of guarantee imported from an external
// spreadsheet. SupplierText/BankText keep the raw imported spellings;
// SupplierID/BankID are filled in by the decision recorder once the
// names are resolved against the registry.
type Guarantee struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	UUID           string          `gorm:"type:varchar(36);uniqueIndex;not null" json:"uuid"`
	ContractNumber string          `gorm:"type:varchar(100);index" json:"contract_number"`
	SupplierText   string          `gorm:"type:varchar(512)" json:"supplier_text"`
	BankText       string          `gorm:"type:varchar(512)" json:"bank_text"`
	Amount         float64         `json:"amount"`
	IssueDate      *time.Time      `json:"issue_date"`
	ExpiryDate     *time.Time      `json:"expiry_date"`
	RawFields      JSONB           `gorm:"type:jsonb" json:"raw_fields"`
	SupplierID     *uint           `gorm:"index" json:"supplier_id"`
	BankID         *uint           `gorm:"index" json:"bank_id"`
	Status         GuaranteeStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`

	Events []GuaranteeEvent `gorm:"foreignKey:GuaranteeID" json:"events,omitempty"`
}

func (Guarantee) TableName() string {
	return "guarantees"
}

// Resolved reports whether both the supplier and the bank side have been
// matched to canonical entities.
func (g *Guarantee) Resolved() bool {
	return g.SupplierID != nil && g.BankID != nil
}

// Snapshot captures the decision-relevant state of the guarantee as a
// JSONB document. Events store the full pre-mutation state so any past
// state can be read back without replaying the whole chain.
// Numeric ids are stored as float64 to match JSON round-trip behavior.
func (g *Guarantee) Snapshot() JSONB {
	snap := JSONB{
		"contract_number": g.ContractNumber,
		"supplier_text":   g.SupplierText,
		"bank_text":       g.BankText,
		"amount":          g.Amount,
		"issue_date":      nil,
		"expiry_date":     nil,
		"status":          string(g.Status),
		"supplier_id":     nil,
		"bank_id":         nil,
	}
	if g.IssueDate != nil {
		snap["issue_date"] = g.IssueDate.UTC().Format(time.RFC3339)
	}
	if g.ExpiryDate != nil {
		snap["expiry_date"] = g.ExpiryDate.UTC().Format(time.RFC3339)
	}
	if g.SupplierID != nil {
		snap["supplier_id"] = float64(*g.SupplierID)
	}
	if g.BankID != nil {
		snap["bank_id"] = float64(*g.BankID)
	}
	return snap
}
