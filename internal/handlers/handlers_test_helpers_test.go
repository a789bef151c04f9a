package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	appconfig "github.com/daman-app/daman/internal/config"
	"github.com/daman-app/daman/internal/database"
	"github.com/daman-app/daman/internal/normalize"
	"github.com/daman-app/daman/internal/services"
)

// testAPI wires the full service graph over an in-memory database and
// exposes it through a real ServeMux, so handler tests exercise routing,
// decoding and error mapping end to end.
type testAPI struct {
	db        *gorm.DB
	mux       *http.ServeMux
	handler   *APIHandler
	decisions *services.DecisionService
	registry  *services.RegistryService
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	err = db.AutoMigrate(
		&database.Entity{},
		&database.AlternativeName{},
		&database.LearningConfirmation{},
		&database.Guarantee{},
		&database.GuaranteeEvent{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access underlying database: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	normalizer := normalize.New()
	cfg := appconfig.DefaultMatchingConfig()
	locks := services.NewGuaranteeLocks()

	registry := services.NewRegistryService(db, normalizer, appconfig.CollisionReject)
	learning := services.NewLearningService(db)
	matcher := services.NewMatchingService(db, normalizer, cfg)
	decisions := services.NewDecisionService(db, normalizer, learning, matcher, cfg, locks)
	history := services.NewHistoryService(db)
	correction := services.NewCorrectionService(db, locks)

	handler := NewAPIHandler(registry, learning, matcher, decisions, history, correction, normalizer)

	mux := http.NewServeMux()
	handler.SetupRoutes(mux)
	handler.SetupImportRoutes(mux, nil)

	return &testAPI{
		db:        db,
		mux:       mux,
		handler:   handler,
		decisions: decisions,
		registry:  registry,
	}
}

// do runs a request through the mux and returns the recorder
func (ta *testAPI) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ta.mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
}

func (ta *testAPI) mustCreateEntity(t *testing.T, kind database.EntityKind, name string) *database.Entity {
	t.Helper()
	entity, err := ta.registry.CreateEntity(kind, name)
	if err != nil {
		t.Fatalf("failed to create entity %q: %v", name, err)
	}
	return entity
}

func (ta *testAPI) mustImport(t *testing.T, contractNumber, supplierText, bankText string) *database.Guarantee {
	t.Helper()
	g, err := ta.decisions.CreateFromImport(services.ImportRecord{
		ContractNumber: contractNumber,
		SupplierText:   supplierText,
		BankText:       bankText,
		Amount:         200000,
	}, "importer")
	if err != nil {
		t.Fatalf("failed to import guarantee: %v", err)
	}
	return g
}
