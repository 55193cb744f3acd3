package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTemplateFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
}

const validTemplates = `templates:
  - id: upper_a
    name: Upper Body A
    location: gym
    exercises:
      - name: Bench Press
        sets: 3
        rest_sec: 90
        target_reps: "8-10"
        equipment: barbell
  - id: lower_a
    name: Lower Body A
    exercises:
      - name: Squat
        sets: 3
        rest_sec: 120
        target_reps: "5"
`

// TestTemplatesLoadsAndSorts verifies templates from multiple files are
// merged and sorted by id.
func TestTemplatesLoadsAndSorts(t *testing.T) {
	dir := t.TempDir()
	writeTemplateFile(t, dir, "main.yaml", validTemplates)
	writeTemplateFile(t, dir, "extra.yml", `templates:
  - id: full_body
    name: Full Body
    exercises:
      - name: Pull-Up
        sets: 3
        rest_sec: 60
`)
	writeTemplateFile(t, dir, "notes.txt", "not a template")

	got, err := New(dir).Templates()
	if err != nil {
		t.Fatalf("Templates() error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("loaded %d templates, want 3", len(got))
	}
	for i, id := range []string{"full_body", "lower_a", "upper_a"} {
		if got[i].ID != id {
			t.Errorf("templates[%d].ID = %q, want %q", i, got[i].ID, id)
		}
	}
	if ex := got[2].Exercises[0]; ex.Name != "Bench Press" || ex.Sets != 3 || ex.RestSec != 90 || ex.TargetReps != "8-10" {
		t.Errorf("exercise fields = %+v", ex)
	}
}

// TestTemplatesEmptyDir verifies an empty directory yields an empty catalog,
// not an error.
func TestTemplatesEmptyDir(t *testing.T) {
	got, err := New(t.TempDir()).Templates()
	if err != nil {
		t.Fatalf("Templates() error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("loaded %d templates from empty dir, want 0", len(got))
	}
}

// TestTemplatesMissingDir verifies a missing directory surfaces an error.
func TestTemplatesMissingDir(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "nope")).Templates(); err == nil {
		t.Error("Templates() with missing dir = nil, want error")
	}
}

// TestTemplatesValidation verifies any invalid template fails the whole load.
func TestTemplatesValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			"missing id",
			"templates:\n  - name: No ID\n    exercises:\n      - name: Squat\n        sets: 3\n",
			"id is required",
		},
		{
			"no exercises",
			"templates:\n  - id: empty\n    name: Empty\n",
			"at least one exercise",
		},
		{
			"missing exercise name",
			"templates:\n  - id: bad\n    exercises:\n      - sets: 3\n",
			"exercise name is required",
		},
		{
			"zero sets",
			"templates:\n  - id: bad\n    exercises:\n      - name: Squat\n        sets: 0\n",
			"sets must be >= 1",
		},
		{
			"negative rest",
			"templates:\n  - id: bad\n    exercises:\n      - name: Squat\n        sets: 3\n        rest_sec: -5\n",
			"rest_sec must be >= 0",
		},
		{
			"malformed yaml",
			"templates: [\n",
			"parsing template file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeTemplateFile(t, dir, "good.yaml", validTemplates)
			writeTemplateFile(t, dir, "bad.yaml", tt.content)

			_, err := New(dir).Templates()
			if err == nil {
				t.Fatal("Templates() = nil error, want validation failure")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}
