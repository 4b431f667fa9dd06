package skills_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/internlog/internlog/internal/skills"
)

func TestCatalog_BuiltinFallback(t *testing.T) {
	c := skills.NewCatalog("", time.Hour)
	names := c.Names()
	if len(names) == 0 {
		t.Fatal("built-in catalog is empty")
	}
	found := false
	for _, n := range names {
		if n == "Python" {
			found = true
		}
	}
	if !found {
		t.Error("built-in catalog missing Python")
	}
}

func TestCatalog_LoadsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skills.json")
	if err := os.WriteFile(path, []byte(`["Rust", "Terraform"]`), 0644); err != nil {
		t.Fatal(err)
	}

	c := skills.NewCatalog(path, time.Hour)
	names := c.Names()
	if len(names) != 2 || names[0] != "Rust" {
		t.Errorf("got %v, want the file's list", names)
	}
}

func TestCatalog_UnreadableFileFallsBack(t *testing.T) {
	c := skills.NewCatalog(filepath.Join(t.TempDir(), "nope.json"), time.Hour)
	if len(c.Names()) == 0 {
		t.Error("missing file should fall back to the built-in list")
	}
}

func TestCatalog_Normalize(t *testing.T) {
	c := skills.NewCatalog("", time.Hour)

	got := c.Normalize([]string{"python", " SQL ", "postgresql", "Interpretive Dance"})
	want := []string{"Python", "SQL", "PostgreSQL", "Interpretive Dance"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Normalize[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCatalog_FormatForPrompt(t *testing.T) {
	c := skills.NewCatalog("", time.Hour)
	out := c.FormatForPrompt()
	if !strings.Contains(out, "- Python\n") {
		t.Errorf("prompt list missing entries:\n%s", out)
	}
}
