package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sample = `[
  {"id": "1", "title": "Магазин в центре", "area": 80, "price": 100000, "type": "Магазин", "has_parking": true},
  {"id": "2", "title": "Офис", "area": 45, "location": "метро", "floor": 1, "has_storage": true},
  {"id": "1", "title": "duplicate"}
]`

func TestRead(t *testing.T) {
	items, err := Read(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	shop := items[0]
	if shop.Title != "Магазин в центре" || shop.Area != 80 || shop.Price != 100000 || !shop.HasParking {
		t.Errorf("unexpected first item: %+v", shop)
	}
	office := items[1]
	if office.Floor != 1 || !office.HasStorage || office.Location != "метро" {
		t.Errorf("unexpected second item: %+v", office)
	}
}

func TestRead_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not json", "not json"},
		{"object instead of array", `{"id": "1"}`},
		{"missing id", `[{"title": "x"}]`},
		{"blank id", `[{"id": "  "}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Read(strings.NewReader(tt.input)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.json")
	if err := os.WriteFile(path, []byte(sample), 0644); err != nil {
		t.Fatal(err)
	}

	items, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("expected 2 items, got %d", len(items))
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
