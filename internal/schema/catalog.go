// Package schema loads the field catalog that describes what each wizard
// step renders.
package schema

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/terra-clan/apply-wizard/internal/models"
	"github.com/terra-clan/apply-wizard/internal/wizard"
)

//go:embed fields.yaml
var defaultCatalog []byte

var fieldTypes = map[string]bool{
	"text":     true,
	"email":    true,
	"number":   true,
	"textarea": true,
	"checkbox": true,
	"select":   true,
	"url-list": true,
}

var fieldGroups = map[string]bool{
	wizard.GroupBase:       true,
	wizard.GroupAdvanced:   true,
	wizard.GroupMentorship: true,
	wizard.GroupPortfolio:  true,
}

// StepDef is the catalog entry of one step
type StepDef struct {
	Step   wizard.Step
	Title  string
	Fields []models.StepField
}

// Catalog holds the field definitions of every step
type Catalog struct {
	mu    sync.RWMutex
	steps map[wizard.Step]*StepDef
}

// Default returns the catalog built into the binary
func Default() (*Catalog, error) {
	c := &Catalog{steps: make(map[wizard.Step]*StepDef)}
	if err := c.load(defaultCatalog, "fields.yaml"); err != nil {
		return nil, fmt.Errorf("failed to load built-in catalog: %w", err)
	}
	for _, step := range wizard.Steps {
		if _, ok := c.steps[step]; !ok {
			return nil, fmt.Errorf("built-in catalog is missing step %s", step)
		}
	}
	return c, nil
}

// Load returns the built-in catalog with any step definitions found in dir
// layered on top. An empty dir yields the built-in catalog.
func Load(dir string) (*Catalog, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return c, nil
	}
	if err := c.LoadFromDir(dir); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadFromDir replaces steps with the definitions of every YAML file in dir.
// Files that fail to parse are skipped with a warning.
func (c *Catalog) LoadFromDir(dir string) error {
	slog.Info("loading field catalog from directory", "dir", dir)

	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("failed to read catalog directory: %w", err)
	}

	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			continue
		}
		files = append(files, matches...)
	}

	loaded := 0
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			slog.Warn("failed to read catalog file", "file", file, "error", err)
			continue
		}
		if err := c.load(data, file); err != nil {
			slog.Warn("failed to load catalog file", "file", file, "error", err)
			continue
		}
		loaded++
	}

	slog.Info("field catalog loaded", "count", loaded, "total_files", len(files))
	return nil
}

func (c *Catalog) load(data []byte, source string) error {
	var cf catalogFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(cf.Steps) == 0 {
		return fmt.Errorf("%s defines no steps", source)
	}

	defs := make([]*StepDef, 0, len(cf.Steps))
	for _, sf := range cf.Steps {
		def, err := sf.toDef()
		if err != nil {
			return err
		}
		defs = append(defs, def)
	}

	c.mu.Lock()
	for _, def := range defs {
		c.steps[def.Step] = def
	}
	c.mu.Unlock()
	return nil
}

// Step returns the definition of step
func (c *Catalog) Step(step wizard.Step) (StepDef, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	def, ok := c.steps[step]
	if !ok {
		return StepDef{}, false
	}
	out := *def
	out.Fields = append([]models.StepField(nil), def.Fields...)
	return out, true
}

// VisibleFields returns the fields of step whose group is shown for data
func (c *Catalog) VisibleFields(step wizard.Step, data models.FormData) []models.StepField {
	def, ok := c.Step(step)
	if !ok {
		return []models.StepField{}
	}

	vis := wizard.EvaluateVisibility(data)
	fields := make([]models.StepField, 0, len(def.Fields))
	for _, f := range def.Fields {
		if vis.GroupVisible(f.Group) {
			fields = append(fields, f)
		}
	}
	return fields
}

// --- YAML file structs ---

type catalogFile struct {
	Steps []stepFile `yaml:"steps"`
}

type stepFile struct {
	Step   string             `yaml:"step"`
	Title  string             `yaml:"title"`
	Fields []models.StepField `yaml:"fields"`
}

func (sf stepFile) toDef() (*StepDef, error) {
	step, err := wizard.ParseStep(sf.Step)
	if err != nil {
		return nil, err
	}

	title := sf.Title
	if title == "" {
		title = step.Title()
	}

	fields := make([]models.StepField, 0, len(sf.Fields))
	for i, f := range sf.Fields {
		if f.Name == "" {
			return nil, fmt.Errorf("step %s: field %d: name is required", step, i)
		}
		if f.Label == "" {
			return nil, fmt.Errorf("step %s: field %s: label is required", step, f.Name)
		}
		if !fieldTypes[f.Type] {
			return nil, fmt.Errorf("step %s: field %s: unknown type %q", step, f.Name, f.Type)
		}
		if f.Group == "" {
			f.Group = wizard.GroupBase
		}
		if !fieldGroups[f.Group] {
			return nil, fmt.Errorf("step %s: field %s: unknown group %q", step, f.Name, f.Group)
		}
		fields = append(fields, f)
	}

	return &StepDef{Step: step, Title: title, Fields: fields}, nil
}
