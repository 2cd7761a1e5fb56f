package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadBundled(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Len() == 0 {
		t.Fatal("expected bundled quotes")
	}
	q, ok := c.ByID("res-001")
	if !ok {
		t.Fatal("expected res-001 in bundled catalog")
	}
	if q.Weight != 3 {
		t.Errorf("expected weight 3, got %v", q.Weight)
	}
	if q.TextFor("es") == q.Text {
		t.Error("expected a spanish variant for res-001")
	}
	if q.TextFor("fr") != q.Text {
		t.Error("expected fallback to default text")
	}
	if len(c.Categories()) != 6 {
		t.Errorf("expected 6 categories, got %v", c.Categories())
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quotes.yaml")
	data := "quotes:\n  - id: x\n    text: hello\n    category: wisdom\n    weight: 1\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Len() != 1 || c.All()[0].ID != "x" {
		t.Errorf("unexpected catalog %+v", c.All())
	}
}

func TestParseValidation(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"empty", "quotes: []\n", "empty"},
		{"missing id", "quotes:\n  - text: a\n    category: wisdom\n", "missing id"},
		{"missing text", "quotes:\n  - id: a\n    category: wisdom\n", "missing text"},
		{"negative weight", "quotes:\n  - id: a\n    text: t\n    category: wisdom\n    weight: -1\n", "negative weight"},
		{"bad category", "quotes:\n  - id: a\n    text: t\n    category: gossip\n", "invalid category"},
		{"duplicate", "quotes:\n  - id: a\n    text: t\n    category: wisdom\n  - id: a\n    text: u\n    category: wisdom\n", "duplicate"},
		{"bad yaml", "quotes: [", "parse catalog"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestZeroWeightAllowed(t *testing.T) {
	_, err := Parse([]byte("quotes:\n  - id: a\n    text: t\n    category: wisdom\n    weight: 0\n"))
	if err != nil {
		t.Fatalf("zero weight should be accepted: %v", err)
	}
}
