// Package catalog loads the workout template catalog from YAML files.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/claude/repcoach/internal/models"
	"gopkg.in/yaml.v3"
)

// Loader reads every *.yaml/*.yml file in a directory into templates.
// It satisfies session.TemplateSource.
type Loader struct {
	dir string
}

// New creates a Loader for the given directory.
func New(dir string) *Loader {
	return &Loader{dir: dir}
}

type templateFile struct {
	Templates []models.WorkoutTemplate `yaml:"templates"`
}

// Templates parses all template files in the directory, sorted by template id
// for a stable catalog order. Any unreadable or invalid file fails the whole
// load so a stale catalog is never silently served.
func (l *Loader) Templates() ([]models.WorkoutTemplate, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("reading template dir %s: %w", l.dir, err)
	}

	var out []models.WorkoutTemplate
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(l.dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading template file %s: %w", e.Name(), err)
		}
		var f templateFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parsing template file %s: %w", e.Name(), err)
		}
		for _, t := range f.Templates {
			if err := validate(t); err != nil {
				return nil, fmt.Errorf("template file %s: %w", e.Name(), err)
			}
		}
		out = append(out, f.Templates...)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func validate(t models.WorkoutTemplate) error {
	if t.ID == "" {
		return fmt.Errorf("template %q: id is required", t.Name)
	}
	if len(t.Exercises) == 0 {
		return fmt.Errorf("template %s: at least one exercise is required", t.ID)
	}
	for _, ex := range t.Exercises {
		if ex.Name == "" {
			return fmt.Errorf("template %s: exercise name is required", t.ID)
		}
		if ex.Sets < 1 {
			return fmt.Errorf("template %s: exercise %s: sets must be >= 1", t.ID, ex.Name)
		}
		if ex.RestSec < 0 {
			return fmt.Errorf("template %s: exercise %s: rest_sec must be >= 0", t.ID, ex.Name)
		}
	}
	return nil
}
