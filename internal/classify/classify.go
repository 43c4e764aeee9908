// Package classify maps OSM way tags onto routing-relevant integer types.
// Ways whose tag value has no table entry are excluded from the graph.
package classify

import (
	"fmt"
	"os"

	"github.com/paulmach/osm"
	"gopkg.in/yaml.v3"
)

// Result is the classification of a single way. Classification is a pure
// function of the tag mapping: the same tags always yield the same result.
type Result struct {
	Type int
	Name string
}

// Table maps values of a single tag key to integer way types.
type Table struct {
	// Key is the tag consulted for classification, "highway" by default.
	Key string `yaml:"key"`
	// Types maps tag values to integer categories. Values absent from the
	// map are not routable and are dropped.
	Types map[string]int `yaml:"types"`
}

// DefaultTable returns the built-in highway classification.
// See https://wiki.openstreetmap.org/wiki/Key:highway
func DefaultTable() *Table {
	return &Table{
		Key: "highway",
		Types: map[string]int{
			"motorway":          100,
			"motorway_link":     101,
			"motorway_junction": 102,
			"trunk":             200,
			"trunk_link":        201,
			"primary":           300,
			"primary_link":      301,
			"secondary":         400,
			"secondary_link":    401,
			"tertiary":          500,
			"tertiary_link":     501,
			// Less important than tertiary, but with known classification
			"unclassified":  600,
			"residential":   700,
			"living_street": 701,
			"service":       900,
			// Unknown classification
			"road": 1100,
		},
	}
}

// LoadTable reads a classification table from a YAML file.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read classification file: %w", err)
	}

	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse classification YAML: %w", err)
	}
	if t.Key == "" {
		t.Key = "highway"
	}
	if len(t.Types) == 0 {
		return nil, fmt.Errorf("classification table %s defines no types", path)
	}
	return &t, nil
}

// Classifier decides way inclusion and type from tags.
type Classifier struct {
	table *Table
}

// New creates a classifier over the given table, or the built-in highway
// table when nil.
func New(table *Table) *Classifier {
	if table == nil {
		table = DefaultTable()
	}
	return &Classifier{table: table}
}

// Classify returns the way's type and name. keep is false for ways whose
// classification tag is missing or unmapped; such ways contribute nothing
// to the graph, in either pass.
func (c *Classifier) Classify(tags osm.Tags) (result Result, keep bool) {
	value := tags.Find(c.table.Key)
	if value == "" {
		return Result{}, false
	}
	typ, ok := c.table.Types[value]
	if !ok {
		return Result{}, false
	}
	return Result{Type: typ, Name: tags.Find("name")}, true
}
