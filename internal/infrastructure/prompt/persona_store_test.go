package prompt

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

// === ParsePersona ===

func TestParsePersona_Frontmatter(t *testing.T) {
	data := []byte("---\nshop_name: Nile Shoes\ncurrency: EGP\nvars:\n  hours: 9-5\n---\nWelcome to {{shop_name}}. Prices in {{ currency }}. Open {{hours}}. {{unknown}}\n")

	body, meta, err := ParsePersona(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meta.ShopName != "Nile Shoes" {
		t.Errorf("shop name = %q", meta.ShopName)
	}
	want := "Welcome to Nile Shoes. Prices in EGP. Open 9-5. {{unknown}}"
	if body != want {
		t.Errorf("body = %q, want %q", body, want)
	}
}

func TestParsePersona_NoFrontmatter(t *testing.T) {
	body, meta, err := ParsePersona([]byte("\n  Plain persona text.\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body != "Plain persona text." {
		t.Errorf("body = %q", body)
	}
	if meta.ShopName != "" {
		t.Errorf("expected empty meta, got %+v", meta)
	}
}

func TestParsePersona_Errors(t *testing.T) {
	cases := map[string]string{
		"unterminated": "---\nshop_name: x\nbody",
		"bad yaml":     "---\nshop_name: [\n---\nbody",
		"empty body":   "---\nshop_name: x\n---\n   \n",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			if _, _, err := ParsePersona([]byte(input)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

// === PersonaStore ===

func TestPersonaStore_FallsBackToDefault(t *testing.T) {
	s := NewPersonaStore(filepath.Join(t.TempDir(), "missing.md"), zap.NewNop())
	if s.Persona() != DefaultPersona {
		t.Errorf("expected built-in persona, got %q", s.Persona())
	}

	s = NewPersonaStore("", zap.NewNop())
	if s.Persona() != DefaultPersona {
		t.Errorf("expected built-in persona for empty path")
	}
}

func TestPersonaStore_ReloadKeepsPreviousOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persona.md")
	writeFile(t, path, "---\nshop_name: A\n---\nShop {{shop_name}}")

	s := NewPersonaStore(path, zap.NewNop())
	if s.Persona() != "Shop A" {
		t.Fatalf("persona = %q", s.Persona())
	}

	writeFile(t, path, "---\nshop_name: B\n")
	if err := s.Reload(); err == nil {
		t.Fatal("expected reload error")
	}
	if s.Persona() != "Shop A" {
		t.Errorf("previous persona should stay active, got %q", s.Persona())
	}
}

func TestPersonaStore_WatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persona.md")
	writeFile(t, path, "first version")

	s := NewPersonaStore(path, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Watch(ctx); err != nil {
		t.Fatalf("watch: %v", err)
	}

	writeFile(t, path, "second version")

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(s.Persona(), "second") {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Errorf("persona not reloaded, still %q", s.Persona())
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
