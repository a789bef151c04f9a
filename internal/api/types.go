package api

import (
	"time"

	"github.com/daman-app/daman/internal/database"
)

// ========== Entity Types ==========

// CreateEntityRequest is the request body for POST /api/entities.
type CreateEntityRequest struct {
	Kind         string `json:"kind" validate:"required,oneof=supplier bank"`
	OfficialName string `json:"official_name" validate:"required,min=1,max=512"`
}

// RenameEntityRequest is the request body for PUT /api/entities/:id.
type RenameEntityRequest struct {
	OfficialName string `json:"official_name" validate:"required,min=1,max=512"`
}

// RegisterAlternativeRequest is the request body for POST /api/entities/:id/alternatives.
type RegisterAlternativeRequest struct {
	RawText string `json:"raw_text" validate:"required,min=1,max=512"`
}

// ========== Guarantee Types ==========

// ImportGuaranteeRequest is the request body for POST /api/guarantees.
type ImportGuaranteeRequest struct {
	ContractNumber string                 `json:"contract_number" validate:"required,max=100"`
	SupplierText   string                 `json:"supplier_text" validate:"max=512"`
	BankText       string                 `json:"bank_text" validate:"max=512"`
	Amount         float64                `json:"amount" validate:"gte=0"`
	IssueDate      *time.Time             `json:"issue_date"`
	ExpiryDate     *time.Time             `json:"expiry_date"`
	Extra          map[string]interface{} `json:"extra,omitempty"`
}

// CommitDecisionRequest is the request body for POST /api/guarantees/:uuid/commit.
type CommitDecisionRequest struct {
	Field    string `json:"field" validate:"required,oneof=supplier bank"`
	EntityID uint   `json:"entity_id" validate:"required"`
	RawText  string `json:"raw_text" validate:"max=512"`
}

// TransitionRequest is the request body for POST /api/guarantees/:uuid/status.
type TransitionRequest struct {
	Status string `json:"status" validate:"required,oneof=ready approved extended rejected held"`
	Note   string `json:"note" validate:"max=1024"`
}

// CorrectionRequest is the request body for POST /api/guarantees/:uuid/corrections.
type CorrectionRequest struct {
	Fields map[string]interface{} `json:"fields" validate:"required,min=1"`
	Reason string                 `json:"reason" validate:"required,min=1,max=512"`
}

// ========== Pagination Types ==========

// PaginationMeta contains pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// PaginatedResponse wraps a list response with pagination metadata.
type PaginatedResponse struct {
	Data       interface{}    `json:"data"`
	Pagination PaginationMeta `json:"pagination"`
}

// ========== Mapper Output Types ==========

// GuaranteeListItem is a compact representation of a guarantee for list
// views. It omits the raw imported fields and the event chain.
type GuaranteeListItem struct {
	ID             uint                     `json:"id"`
	UUID           string                   `json:"uuid"`
	ContractNumber string                   `json:"contract_number"`
	SupplierText   string                   `json:"supplier_text"`
	BankText       string                   `json:"bank_text"`
	Amount         float64                  `json:"amount"`
	IssueDate      *time.Time               `json:"issue_date,omitempty"`
	ExpiryDate     *time.Time               `json:"expiry_date,omitempty"`
	SupplierID     *uint                    `json:"supplier_id"`
	BankID         *uint                    `json:"bank_id"`
	Status         database.GuaranteeStatus `json:"status"`
	CreatedAt      time.Time                `json:"created_at"`
	UpdatedAt      time.Time                `json:"updated_at"`
}

// EventItem is one audit event as returned by the history endpoint.
type EventItem struct {
	ID        uint                        `json:"id"`
	Type      database.GuaranteeEventType `json:"type"`
	Subtype   string                      `json:"subtype"`
	Snapshot  database.JSONB              `json:"snapshot"`
	Diff      database.JSONB              `json:"diff"`
	Actor     string                      `json:"actor"`
	CreatedAt time.Time                   `json:"created_at"`
}
