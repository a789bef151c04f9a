package services

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	appconfig "github.com/daman-app/daman/internal/config"
	"github.com/daman-app/daman/internal/database"
	"github.com/daman-app/daman/internal/normalize"
)

func setupTestDB(t *testing.T) *gorm.DB {
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

	// In-memory SQLite gives every connection its own database; keep the
	// pool at one so concurrent test goroutines share state.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access underlying database: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	return db
}

// testServices bundles the full service graph over one test database
type testServices struct {
	db         *gorm.DB
	registry   *RegistryService
	learning   *LearningService
	matcher    *MatchingService
	decisions  *DecisionService
	history    *HistoryService
	correction *CorrectionService
}

func newTestServices(t *testing.T) *testServices {
	t.Helper()
	db := setupTestDB(t)
	normalizer := normalize.New()
	cfg := appconfig.DefaultMatchingConfig()
	locks := NewGuaranteeLocks()

	learning := NewLearningService(db)
	matcher := NewMatchingService(db, normalizer, cfg)

	return &testServices{
		db:         db,
		registry:   NewRegistryService(db, normalizer, appconfig.CollisionReject),
		learning:   learning,
		matcher:    matcher,
		decisions:  NewDecisionService(db, normalizer, learning, matcher, cfg, locks),
		history:    NewHistoryService(db),
		correction: NewCorrectionService(db, locks),
	}
}

func (ts *testServices) mustCreateEntity(t *testing.T, kind database.EntityKind, name string) *database.Entity {
	t.Helper()
	entity, err := ts.registry.CreateEntity(kind, name)
	if err != nil {
		t.Fatalf("failed to create entity %q: %v", name, err)
	}
	return entity
}

func (ts *testServices) mustCreateGuarantee(t *testing.T, supplierText, bankText string) *database.Guarantee {
	t.Helper()
	g, err := ts.decisions.CreateFromImport(ImportRecord{
		ContractNumber: "C-1",
		SupplierText:   supplierText,
		BankText:       bankText,
		Amount:         150000,
	}, "importer")
	if err != nil {
		t.Fatalf("failed to create guarantee: %v", err)
	}
	return g
}
