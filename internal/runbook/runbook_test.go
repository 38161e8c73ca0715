package runbook_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/warroomlabs/warroom/internal/runbook"
)

func write(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadSortsByID(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "z.yaml", "id: zebra\nname: Zebra\nsteps:\n  - one\n")
	write(t, dir, "a.yml", "id: aardvark\nname: Aardvark\nsteps:\n  - one\n  - two\n")
	write(t, dir, "notes.txt", "not a runbook")

	books, err := runbook.Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(books) != 2 {
		t.Fatalf("got %d runbooks, want 2", len(books))
	}
	if books[0].ID != "aardvark" || books[1].ID != "zebra" {
		t.Errorf("order: %s, %s", books[0].ID, books[1].ID)
	}
	if len(books[0].Steps) != 2 {
		t.Errorf("steps: %v", books[0].Steps)
	}
}

func TestLoadDefaultsIDFromFilename(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "billing-errors.yaml", "name: Billing\nsteps:\n  - check gateway\n")

	books, err := runbook.Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(books) != 1 || books[0].ID != "billing-errors" {
		t.Fatalf("got %+v", books)
	}
}

func TestLoadMissingDirFallsBackToDefaults(t *testing.T) {
	books, err := runbook.Load(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatal(err)
	}
	if len(books) != len(runbook.Defaults()) {
		t.Errorf("got %d runbooks, want the built-in set", len(books))
	}
}

func TestLoadEmptyDirFallsBackToDefaults(t *testing.T) {
	books, err := runbook.Load(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if len(books) == 0 {
		t.Fatal("empty dir should yield the built-in set")
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "bad.yaml", "id: [unclosed\n")
	if _, err := runbook.Load(dir); err == nil {
		t.Error("malformed runbook accepted")
	}
}

func TestDefaultsAreWellFormed(t *testing.T) {
	for _, rb := range runbook.Defaults() {
		if rb.ID == "" || rb.Name == "" || len(rb.Steps) == 0 {
			t.Errorf("incomplete default runbook: %+v", rb)
		}
	}
}
