package classify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/osm"
)

func TestClassifyDefaultTable(t *testing.T) {
	c := New(nil)

	tests := []struct {
		name     string
		tags     osm.Tags
		wantType int
		wantName string
		wantKeep bool
	}{
		{
			name:     "motorway",
			tags:     osm.Tags{{Key: "highway", Value: "motorway"}},
			wantType: 100,
			wantKeep: true,
		},
		{
			name: "residential with name",
			tags: osm.Tags{
				{Key: "highway", Value: "residential"},
				{Key: "name", Value: "Polna"},
			},
			wantType: 700,
			wantName: "Polna",
			wantKeep: true,
		},
		{
			name:     "footway is not routable",
			tags:     osm.Tags{{Key: "highway", Value: "footway"}},
			wantKeep: false,
		},
		{
			name:     "no highway tag",
			tags:     osm.Tags{{Key: "building", Value: "yes"}},
			wantKeep: false,
		},
		{
			name:     "empty tags",
			tags:     nil,
			wantKeep: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, keep := c.Classify(tt.tags)
			if keep != tt.wantKeep {
				t.Fatalf("keep = %v, want %v", keep, tt.wantKeep)
			}
			if !keep {
				return
			}
			if got.Type != tt.wantType {
				t.Errorf("type = %d, want %d", got.Type, tt.wantType)
			}
			if got.Name != tt.wantName {
				t.Errorf("name = %q, want %q", got.Name, tt.wantName)
			}
		})
	}
}

func TestClassifyIsIdempotent(t *testing.T) {
	c := New(nil)
	tags := osm.Tags{
		{Key: "highway", Value: "secondary"},
		{Key: "name", Value: "Main Street"},
	}

	first, keep := c.Classify(tags)
	if !keep {
		t.Fatal("expected way to be kept")
	}
	for i := 0; i < 5; i++ {
		got, keep := c.Classify(tags)
		if !keep || got != first {
			t.Fatalf("run %d: got (%+v, %v), want (%+v, true)", i, got, keep, first)
		}
	}
}

func TestLoadTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "style.yaml")
	yaml := `key: highway
types:
  motorway: 10
  cycleway: 20
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	table, err := LoadTable(path)
	if err != nil {
		t.Fatalf("LoadTable: %v", err)
	}

	c := New(table)
	got, keep := c.Classify(osm.Tags{{Key: "highway", Value: "cycleway"}})
	if !keep || got.Type != 20 {
		t.Errorf("cycleway = (%+v, %v), want type 20", got, keep)
	}
	if _, keep := c.Classify(osm.Tags{{Key: "highway", Value: "residential"}}); keep {
		t.Error("residential should be dropped with custom table")
	}
}

func TestLoadTableMissingTypes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(path, []byte("key: highway\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadTable(path); err == nil {
		t.Error("expected error for table with no types")
	}
}
