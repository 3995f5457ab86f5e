// Package catalog loads the specialty targets and CPD guideline table.
//
// A Catalog is built once at startup and never mutated afterwards; it is
// handed to whoever needs it instead of living in package state.
package catalog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/terra-clan/pathway-engine/internal/models"
	"github.com/terra-clan/pathway-engine/internal/readiness"
)

// Catalog is an immutable set of specialties and guidelines
type Catalog struct {
	specialties map[string]*models.Specialty
	guidelines  map[string]*models.Guideline
	order       []string // guideline IDs in file order
}

// New builds a catalog from already-parsed values, validating them
func New(specialties []models.Specialty, guidelines []models.Guideline) (*Catalog, error) {
	c := &Catalog{
		specialties: make(map[string]*models.Specialty, len(specialties)),
		guidelines:  make(map[string]*models.Guideline, len(guidelines)),
	}

	for i := range guidelines {
		g := guidelines[i]
		if g.ID == "" {
			return nil, fmt.Errorf("guideline %d: id is required", i)
		}
		cat, ok := readiness.ParseCategory(g.Category)
		if !ok || !cat.Tracked() {
			return nil, fmt.Errorf("guideline %s: unknown category %q", g.ID, g.Category)
		}
		if _, dup := c.guidelines[g.ID]; dup {
			return nil, fmt.Errorf("guideline %s: duplicate id", g.ID)
		}
		g.Category = string(cat)
		c.guidelines[g.ID] = &g
		c.order = append(c.order, g.ID)
	}

	for i := range specialties {
		s := specialties[i]
		if s.ID == "" {
			return nil, fmt.Errorf("specialty %d: id is required", i)
		}
		if s.Name == "" {
			return nil, fmt.Errorf("specialty %s: name is required", s.ID)
		}
		for _, gid := range s.Guidelines {
			if _, ok := c.guidelines[gid]; !ok {
				return nil, fmt.Errorf("specialty %s: unknown guideline %q", s.ID, gid)
			}
		}
		if _, dup := c.specialties[s.ID]; dup {
			return nil, fmt.Errorf("specialty %s: duplicate id", s.ID)
		}
		c.specialties[s.ID] = &s
	}

	return c, nil
}

// LoadFromDir reads guidelines.yaml and every specialties/*.yaml file.
//
// Layout:
//
//	<dir>/guidelines.yaml
//	<dir>/specialties/general-surgery.yaml
//	<dir>/specialties/urology.yaml
func LoadFromDir(dir string) (*Catalog, error) {
	slog.Info("loading catalog from directory", "dir", dir)

	guidelines, err := loadGuidelines(filepath.Join(dir, "guidelines.yaml"))
	if err != nil {
		return nil, err
	}

	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, "specialties", pattern))
		if err != nil {
			continue
		}
		files = append(files, matches...)
	}
	sort.Strings(files)

	specialties := make([]models.Specialty, 0, len(files))
	for _, file := range files {
		s, err := loadSpecialty(file)
		if err != nil {
			return nil, fmt.Errorf("failed to load specialty %s: %w", filepath.Base(file), err)
		}
		specialties = append(specialties, s)
	}

	c, err := New(specialties, guidelines)
	if err != nil {
		return nil, err
	}

	slog.Info("catalog loaded", "specialties", len(specialties), "guidelines", len(guidelines))
	return c, nil
}

// Specialty returns a specialty by ID
func (c *Catalog) Specialty(id string) *models.Specialty {
	s, ok := c.specialties[id]
	if !ok {
		return nil
	}
	out := *s
	out.Guidelines = slices.Clone(s.Guidelines)
	return &out
}

// Specialties returns all specialties sorted by name
func (c *Catalog) Specialties() []*models.Specialty {
	result := make([]*models.Specialty, 0, len(c.specialties))
	for id := range c.specialties {
		result = append(result, c.Specialty(id))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Guidelines returns the full guideline table in file order
func (c *Catalog) Guidelines() []models.Guideline {
	result := make([]models.Guideline, 0, len(c.order))
	for _, id := range c.order {
		result = append(result, *c.guidelines[id])
	}
	return result
}

// GuidelinesFor returns the guidelines that apply to a specialty. A specialty
// without an explicit list gets the whole table.
func (c *Catalog) GuidelinesFor(specialtyID string) []models.Guideline {
	s, ok := c.specialties[specialtyID]
	if !ok || len(s.Guidelines) == 0 {
		return c.Guidelines()
	}
	result := make([]models.Guideline, 0, len(s.Guidelines))
	for _, id := range s.Guidelines {
		result = append(result, *c.guidelines[id])
	}
	return result
}

// --- YAML loading ---

func loadGuidelines(path string) ([]models.Guideline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read guidelines: %w", err)
	}

	var gf guidelinesFile
	if err := yaml.Unmarshal(data, &gf); err != nil {
		return nil, fmt.Errorf("failed to parse guidelines YAML: %w", err)
	}

	result := make([]models.Guideline, 0, len(gf.Guidelines))
	for _, g := range gf.Guidelines {
		result = append(result, models.Guideline{
			ID:          g.ID,
			Category:    g.Category,
			Title:       g.Title,
			Description: g.Description,
			MinPoints:   g.MinPoints,
		})
	}
	return result, nil
}

func loadSpecialty(path string) (models.Specialty, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Specialty{}, fmt.Errorf("failed to read file: %w", err)
	}

	var sf specialtyFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return models.Specialty{}, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Use id from YAML, fall back to filename without extension
	id := sf.ID
	if id == "" {
		base := filepath.Base(path)
		id = strings.TrimSuffix(base, filepath.Ext(base))
	}

	return models.Specialty{
		ID:           id,
		Name:         sf.Name,
		Description:  sf.Description,
		TargetPoints: sf.TargetPoints,
		Guidelines:   sf.Guidelines,
	}, nil
}

// --- YAML file structs ---

type guidelinesFile struct {
	Guidelines []struct {
		ID          string  `yaml:"id"`
		Category    string  `yaml:"category"`
		Title       string  `yaml:"title"`
		Description string  `yaml:"description"`
		MinPoints   float64 `yaml:"min_points"`
	} `yaml:"guidelines"`
}

type specialtyFile struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description"`
	TargetPoints float64  `yaml:"target_points"`
	Guidelines   []string `yaml:"guidelines"`
}
