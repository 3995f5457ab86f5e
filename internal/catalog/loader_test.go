package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/terra-clan/pathway-engine/internal/models"
)

func TestLoadFromDir(t *testing.T) {
	// Use the shipped catalog directory
	catalogDir := filepath.Join("..", "..", "catalog")

	if _, err := os.Stat(catalogDir); os.IsNotExist(err) {
		t.Skip("catalog directory not found, skipping")
	}

	c, err := LoadFromDir(catalogDir)
	if err != nil {
		t.Fatalf("LoadFromDir failed: %v", err)
	}

	specialties := c.Specialties()
	if len(specialties) < 5 {
		t.Errorf("expected at least 5 specialties, got %d", len(specialties))
	}
	for i := 1; i < len(specialties); i++ {
		if specialties[i-1].Name > specialties[i].Name {
			t.Errorf("specialties not sorted by name: %q before %q", specialties[i-1].Name, specialties[i].Name)
		}
	}

	gs := c.Specialty("general-surgery")
	if gs == nil {
		t.Fatal("general-surgery not found")
	}
	if gs.Name != "General Surgery" {
		t.Errorf("expected name 'General Surgery', got '%s'", gs.Name)
	}
	if gs.TargetPoints <= 0 {
		t.Errorf("expected positive target, got %v", gs.TargetPoints)
	}

	// No explicit list means the whole table applies
	if got, want := len(c.GuidelinesFor("general-surgery")), len(c.Guidelines()); got != want {
		t.Errorf("general-surgery guidelines: got %d, want %d", got, want)
	}

	plastics := c.GuidelinesFor("plastic-surgery")
	if len(plastics) == 0 || len(plastics) >= len(c.Guidelines()) {
		t.Errorf("plastic-surgery should have a reduced guideline list, got %d", len(plastics))
	}

	audit := c.Guidelines()[6]
	if audit.Category != "Audit/QIP" {
		t.Errorf("expected Audit/QIP category, got %q", audit.Category)
	}
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name        string
		specialties []models.Specialty
		guidelines  []models.Guideline
	}{
		{
			name:       "unknown category",
			guidelines: []models.Guideline{{ID: "x", Category: "Leadership"}},
		},
		{
			name:       "other is not a bucket",
			guidelines: []models.Guideline{{ID: "x", Category: "Other"}},
		},
		{
			name:       "duplicate guideline",
			guidelines: []models.Guideline{{ID: "x", Category: "Exams"}, {ID: "x", Category: "Courses"}},
		},
		{
			name:        "missing specialty name",
			specialties: []models.Specialty{{ID: "urology"}},
		},
		{
			name:        "unknown guideline reference",
			specialties: []models.Specialty{{ID: "urology", Name: "Urology", Guidelines: []string{"nope"}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.specialties, tt.guidelines); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestCatalogIsNotMutatedThroughAccessors(t *testing.T) {
	c, err := New(
		[]models.Specialty{{ID: "ent", Name: "ENT", TargetPoints: 30, Guidelines: []string{"g"}}},
		[]models.Guideline{{ID: "g", Category: "qip", Title: "QIP"}},
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	s := c.Specialty("ent")
	s.TargetPoints = 0
	s.Guidelines[0] = "changed"

	again := c.Specialty("ent")
	if again.TargetPoints != 30 || again.Guidelines[0] != "g" {
		t.Errorf("catalog mutated through accessor: %+v", again)
	}

	if got := c.Guidelines()[0].Category; got != "Audit/QIP" {
		t.Errorf("expected category normalised to Audit/QIP, got %q", got)
	}

	if c.Specialty("missing") != nil {
		t.Error("expected nil for unknown specialty")
	}
}
