package handlers

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/daman-app/daman/internal/api"
	"github.com/daman-app/daman/internal/database"
)

func TestImportGuarantee(t *testing.T) {
	ta := newTestAPI(t)

	rec := ta.do(t, http.MethodPost, "/api/guarantees", map[string]interface{}{
		"contract_number": "LG-2026-001",
		"supplier_text":   "شركه الامل للتجاره",
		"bank_text":       "Emirates NBD",
		"amount":          350000,
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var g database.Guarantee
	decodeBody(t, rec, &g)
	if g.UUID == "" {
		t.Error("imported guarantee should have a uuid")
	}
	if g.Status != database.GuaranteeStatusPending {
		t.Errorf("status = %s, want pending", g.Status)
	}
	if g.ContractNumber != "LG-2026-001" {
		t.Errorf("contract_number = %q, want LG-2026-001", g.ContractNumber)
	}
}

func TestImportGuarantee_ValidationFailure(t *testing.T) {
	ta := newTestAPI(t)

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing contract number", map[string]interface{}{"supplier_text": "x"}},
		{"negative amount", map[string]interface{}{"contract_number": "C-1", "amount": -5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ta.do(t, http.MethodPost, "/api/guarantees", tt.body)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Errorf("status = %d, want 422", rec.Code)
			}
			var resp api.ErrorResponse
			decodeBody(t, rec, &resp)
			if resp.Code != "validation_error" {
				t.Errorf("code = %q, want validation_error", resp.Code)
			}
		})
	}
}

func TestListGuarantees_Pagination(t *testing.T) {
	ta := newTestAPI(t)
	for i := 0; i < 5; i++ {
		ta.mustImport(t, fmt.Sprintf("C-%d", i), "Supplier", "Bank")
	}

	rec := ta.do(t, http.MethodGet, "/api/guarantees?page=2&per_page=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Data       []api.GuaranteeListItem `json:"data"`
		Pagination api.PaginationMeta      `json:"pagination"`
	}
	decodeBody(t, rec, &resp)

	if len(resp.Data) != 2 {
		t.Errorf("got %d items, want 2", len(resp.Data))
	}
	if resp.Pagination.Total != 5 {
		t.Errorf("total = %d, want 5", resp.Pagination.Total)
	}
	if resp.Pagination.TotalPages != 3 {
		t.Errorf("total_pages = %d, want 3", resp.Pagination.TotalPages)
	}
}

func TestGetGuarantee(t *testing.T) {
	ta := newTestAPI(t)
	g := ta.mustImport(t, "C-7", "Supplier", "Bank")

	rec := ta.do(t, http.MethodGet, "/api/guarantees/"+g.UUID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var got database.Guarantee
	decodeBody(t, rec, &got)
	if got.UUID != g.UUID {
		t.Errorf("uuid = %q, want %q", got.UUID, g.UUID)
	}
}

func TestGetGuarantee_NotFound(t *testing.T) {
	ta := newTestAPI(t)

	rec := ta.do(t, http.MethodGet, "/api/guarantees/no-such-uuid", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var resp api.ErrorResponse
	decodeBody(t, rec, &resp)
	if resp.Code != "guarantee_not_found" {
		t.Errorf("code = %q, want guarantee_not_found", resp.Code)
	}
}

func TestCommitDecision(t *testing.T) {
	ta := newTestAPI(t)
	supplier := ta.mustCreateEntity(t, database.EntityKindSupplier, "Al Noor Contracting")
	g := ta.mustImport(t, "C-10", "Al Nour Contractng", "Some Bank")

	rec := ta.do(t, http.MethodPost, "/api/guarantees/"+g.UUID+"/commit", map[string]interface{}{
		"field":     "supplier",
		"entity_id": supplier.ID,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var got database.Guarantee
	decodeBody(t, rec, &got)
	if got.SupplierID == nil || *got.SupplierID != supplier.ID {
		t.Errorf("supplier_id = %v, want %d", got.SupplierID, supplier.ID)
	}
}

func TestCommitDecision_KindMismatch(t *testing.T) {
	ta := newTestAPI(t)
	bank := ta.mustCreateEntity(t, database.EntityKindBank, "Gulf Bank")
	g := ta.mustImport(t, "C-11", "Supplier", "Bank")

	rec := ta.do(t, http.MethodPost, "/api/guarantees/"+g.UUID+"/commit", map[string]interface{}{
		"field":     "supplier",
		"entity_id": bank.ID,
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	var resp api.ErrorResponse
	decodeBody(t, rec, &resp)
	if resp.Code != "kind_mismatch" {
		t.Errorf("code = %q, want kind_mismatch", resp.Code)
	}
}

func TestTransition(t *testing.T) {
	ta := newTestAPI(t)
	supplier := ta.mustCreateEntity(t, database.EntityKindSupplier, "Supplier One")
	bank := ta.mustCreateEntity(t, database.EntityKindBank, "Bank One")
	g := ta.mustImport(t, "C-12", "Supplier Uno", "Banco Uno")

	// Not ready yet, approval must be refused.
	rec := ta.do(t, http.MethodPost, "/api/guarantees/"+g.UUID+"/status", map[string]interface{}{
		"status": "approved",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	var resp api.ErrorResponse
	decodeBody(t, rec, &resp)
	if resp.Code != "invalid_transition" {
		t.Errorf("code = %q, want invalid_transition", resp.Code)
	}

	// Resolve both sides, then approve.
	for _, commit := range []map[string]interface{}{
		{"field": "supplier", "entity_id": supplier.ID},
		{"field": "bank", "entity_id": bank.ID},
	} {
		rec = ta.do(t, http.MethodPost, "/api/guarantees/"+g.UUID+"/commit", commit)
		if rec.Code != http.StatusOK {
			t.Fatalf("commit status = %d, want 200: %s", rec.Code, rec.Body.String())
		}
	}

	rec = ta.do(t, http.MethodPost, "/api/guarantees/"+g.UUID+"/status", map[string]interface{}{
		"status": "approved",
		"note":   "documents verified",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var got database.Guarantee
	decodeBody(t, rec, &got)
	if got.Status != database.GuaranteeStatusApproved {
		t.Errorf("status = %s, want approved", got.Status)
	}
}

func TestTransition_RejectsUnknownStatus(t *testing.T) {
	ta := newTestAPI(t)
	g := ta.mustImport(t, "C-13", "Supplier", "Bank")

	rec := ta.do(t, http.MethodPost, "/api/guarantees/"+g.UUID+"/status", map[string]interface{}{
		"status": "archived",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	var resp api.ErrorResponse
	decodeBody(t, rec, &resp)
	if resp.Code != "validation_error" {
		t.Errorf("code = %q, want validation_error", resp.Code)
	}
}

func TestCorrection(t *testing.T) {
	ta := newTestAPI(t)
	g := ta.mustImport(t, "C-14", "Supplier", "Bank")

	rec := ta.do(t, http.MethodPost, "/api/guarantees/"+g.UUID+"/corrections", map[string]interface{}{
		"fields": map[string]interface{}{"amount": 275000},
		"reason": "typo in imported amount",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var got database.Guarantee
	decodeBody(t, rec, &got)
	if got.Amount != 275000 {
		t.Errorf("amount = %f, want 275000", got.Amount)
	}
}

func TestCorrection_UnknownField(t *testing.T) {
	ta := newTestAPI(t)
	g := ta.mustImport(t, "C-15", "Supplier", "Bank")

	rec := ta.do(t, http.MethodPost, "/api/guarantees/"+g.UUID+"/corrections", map[string]interface{}{
		"fields": map[string]interface{}{"status": "approved"},
		"reason": "trying to sneak past the workflow",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	var resp api.ErrorResponse
	decodeBody(t, rec, &resp)
	if resp.Code != "unknown_field" {
		t.Errorf("code = %q, want unknown_field", resp.Code)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	ta := newTestAPI(t)
	g := ta.mustImport(t, "C-16", "Supplier", "Bank")

	rec := ta.do(t, http.MethodGet, "/api/guarantees/"+g.UUID+"/history", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var events []api.EventItem
	decodeBody(t, rec, &events)
	if len(events) == 0 {
		t.Fatal("expected at least the import event")
	}
	if events[0].Type != database.EventTypeImport {
		t.Errorf("first event type = %s, want import", events[0].Type)
	}
}

func TestStateAtEndpoint(t *testing.T) {
	ta := newTestAPI(t)
	g := ta.mustImport(t, "C-17", "Supplier", "Bank")

	rec := ta.do(t, http.MethodGet, "/api/guarantees/"+g.UUID+"/state", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing 'at': status = %d, want 400", rec.Code)
	}

	rec = ta.do(t, http.MethodGet, "/api/guarantees/"+g.UUID+"/state?at=yesterday", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad 'at': status = %d, want 400", rec.Code)
	}

	at := time.Now().UTC().Add(time.Second).Format(time.RFC3339)
	rec = ta.do(t, http.MethodGet, "/api/guarantees/"+g.UUID+"/state?at="+at, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var state database.Guarantee
	decodeBody(t, rec, &state)
	if state.Status != database.GuaranteeStatusPending {
		t.Errorf("reconstructed status = %s, want pending", state.Status)
	}
}
