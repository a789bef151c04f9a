package services

import (
	"errors"
	"testing"

	appconfig "github.com/daman-app/daman/internal/config"
	"github.com/daman-app/daman/internal/database"
	"github.com/daman-app/daman/internal/normalize"
)

func TestCreateEntityResolvesSpellingVariants(t *testing.T) {
	ts := newTestServices(t)

	entity := ts.mustCreateEntity(t, database.EntityKindSupplier, "شركة الأمل للتجارة")
	if entity.UUID == "" {
		t.Error("expected entity UUID to be assigned")
	}
	if entity.NormalizedName == "" {
		t.Error("expected normalized name to be derived")
	}

	// Variant spellings of the same Arabic name normalize to one key.
	variants := []string{
		"شركه الامل للتجاره",
		"  شركة   الأمل   للتجارة  ",
		"شركة الآمل للتجارة",
	}
	for _, variant := range variants {
		id, found, err := ts.registry.ResolveExact(database.EntityKindSupplier, normalize.Default.Key(variant))
		if err != nil {
			t.Fatalf("ResolveExact(%q) failed: %v", variant, err)
		}
		if !found || id != entity.ID {
			t.Errorf("expected %q to resolve to entity %d, got found=%v id=%d", variant, entity.ID, found, id)
		}
	}
}

func TestCreateEntityRejectsDuplicates(t *testing.T) {
	ts := newTestServices(t)

	ts.mustCreateEntity(t, database.EntityKindBank, "National Bank of Fujairah")

	_, err := ts.registry.CreateEntity(database.EntityKindBank, "National Bank of Fujairah")
	if !errors.Is(err, ErrDuplicateEntity) {
		t.Errorf("expected ErrDuplicateEntity for exact duplicate, got %v", err)
	}

	// A spelling variant that normalizes to the same key is also a duplicate.
	_, err = ts.registry.CreateEntity(database.EntityKindBank, "NATIONAL  BANK  OF  FUJAIRAH")
	if !errors.Is(err, ErrDuplicateEntity) {
		t.Errorf("expected ErrDuplicateEntity for normalized duplicate, got %v", err)
	}

	// The same name under the other kind is a different registry.
	if _, err := ts.registry.CreateEntity(database.EntityKindSupplier, "National Bank of Fujairah"); err != nil {
		t.Errorf("expected same name to be allowed under another kind, got %v", err)
	}
}

func TestCreateEntityEmptyKey(t *testing.T) {
	ts := newTestServices(t)

	for _, name := range []string{"", "   ", "؟؟؟!!!"} {
		if _, err := ts.registry.CreateEntity(database.EntityKindSupplier, name); !errors.Is(err, ErrEmptyKey) {
			t.Errorf("expected ErrEmptyKey for %q, got %v", name, err)
		}
	}
}

func TestRenameEntityRecomputesKey(t *testing.T) {
	ts := newTestServices(t)

	entity := ts.mustCreateEntity(t, database.EntityKindSupplier, "Gulf Cement Factory")
	oldKey := entity.NormalizedName

	renamed, err := ts.registry.RenameEntity(entity.ID, "Gulf Cement Industries")
	if err != nil {
		t.Fatalf("RenameEntity failed: %v", err)
	}
	if renamed.ID != entity.ID {
		t.Errorf("rename must keep the entity id, got %d", renamed.ID)
	}
	if renamed.NormalizedName == oldKey {
		t.Error("expected normalized name to change with the official name")
	}

	_, found, err := ts.registry.ResolveExact(database.EntityKindSupplier, oldKey)
	if err != nil {
		t.Fatalf("ResolveExact failed: %v", err)
	}
	if found {
		t.Error("old canonical key should no longer resolve after rename")
	}

	id, found, err := ts.registry.ResolveExact(database.EntityKindSupplier, renamed.NormalizedName)
	if err != nil {
		t.Fatalf("ResolveExact failed: %v", err)
	}
	if !found || id != entity.ID {
		t.Errorf("new key should resolve to entity %d, got found=%v id=%d", entity.ID, found, id)
	}
}

func TestRegisterAlternative(t *testing.T) {
	ts := newTestServices(t)

	entity := ts.mustCreateEntity(t, database.EntityKindSupplier, "مؤسسة النور للمقاولات")

	// A transliterated spelling does not converge with the Arabic
	// canonical key, so it gets its own row.
	if err := ts.registry.RegisterAlternative(entity.ID, "Al Noor Contracting Est"); err != nil {
		t.Fatalf("RegisterAlternative failed: %v", err)
	}

	// No row for the canonical spelling, none for a variant whose key
	// folds into the canonical one (hamza seat and teh marbuta are
	// unified), and re-registering an existing variant is a no-op.
	for _, raw := range []string{
		"مؤسسة النور للمقاولات",
		"موسسه النور للمقاولات",
		"Al Noor Contracting Est",
	} {
		if err := ts.registry.RegisterAlternative(entity.ID, raw); err != nil {
			t.Fatalf("RegisterAlternative(%q) should be a no-op: %v", raw, err)
		}
	}

	alts, err := ts.registry.Alternatives(entity.ID)
	if err != nil {
		t.Fatalf("Alternatives failed: %v", err)
	}
	if len(alts) != 1 {
		t.Fatalf("expected exactly 1 alternative row, got %d", len(alts))
	}

	id, found, err := ts.registry.ResolveExact(database.EntityKindSupplier, alts[0].NormalizedText)
	if err != nil {
		t.Fatalf("ResolveExact failed: %v", err)
	}
	if !found || id != entity.ID {
		t.Errorf("alternative should resolve to entity %d, got found=%v id=%d", entity.ID, found, id)
	}
}

func TestRegisterAlternativeCollision(t *testing.T) {
	ts := newTestServices(t)

	first := ts.mustCreateEntity(t, database.EntityKindBank, "Emirates Islamic Bank")
	second := ts.mustCreateEntity(t, database.EntityKindBank, "Emirates Investment Bank")

	// A spelling that already resolves to first cannot be claimed by second.
	err := ts.registry.RegisterAlternative(second.ID, "EMIRATES ISLAMIC BANK")
	if !errors.Is(err, ErrAlternativeCollision) {
		t.Errorf("expected ErrAlternativeCollision, got %v", err)
	}

	// The contested key still belongs to its original owner.
	id, found, err := ts.registry.ResolveExact(database.EntityKindBank, normalize.Default.Key("EMIRATES ISLAMIC BANK"))
	if err != nil {
		t.Fatalf("ResolveExact failed: %v", err)
	}
	if !found || id != first.ID {
		t.Errorf("expected key to keep resolving to entity %d, got found=%v id=%d", first.ID, found, id)
	}

	// In skip mode the collision is logged and dropped instead.
	skipping := NewRegistryService(ts.db, normalize.Default, appconfig.CollisionSkip)
	if err := skipping.RegisterAlternative(second.ID, "EMIRATES ISLAMIC BANK"); err != nil {
		t.Errorf("skip mode should swallow the collision, got %v", err)
	}
	alts, err := ts.registry.Alternatives(second.ID)
	if err != nil {
		t.Fatalf("Alternatives failed: %v", err)
	}
	if len(alts) != 0 {
		t.Errorf("skip mode must not create the colliding row, got %d rows", len(alts))
	}
}

func TestRegisterAlternativeUnknownEntity(t *testing.T) {
	ts := newTestServices(t)

	err := ts.registry.RegisterAlternative(9999, "some supplier")
	if !errors.Is(err, ErrUnknownEntity) {
		t.Errorf("expected ErrUnknownEntity, got %v", err)
	}
}
