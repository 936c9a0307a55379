// Package catalogue loads the fixed set of analytical queries offered to the operator.
package catalogue

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/gamedash/pkg/apperrors"
)

//go:embed default.yaml
var defaultCatalogue []byte

// QuerySpec is a named, parameterless SQL template.
type QuerySpec struct {
	Label       string `yaml:"label" json:"label"`
	Description string `yaml:"description" json:"description"`
	SQL         string `yaml:"sql" json:"sql"`
}

// Catalogue is an immutable, ordered set of query specs.
type Catalogue struct {
	specs   []QuerySpec
	byLabel map[string]int
}

type document struct {
	Queries []QuerySpec `yaml:"queries"`
}

// Default returns the built-in catalogue.
func Default() (*Catalogue, error) {
	return Parse(defaultCatalogue)
}

// Load reads a catalogue from path, or returns the built-in one when path is empty.
func Load(path string) (*Catalogue, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalogue %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML catalogue. SQL text is trimmed of surrounding whitespace
// and trailing terminators so a limit clause can be appended to it.
func Parse(data []byte) (*Catalogue, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse catalogue: %w", err)
	}
	if len(doc.Queries) == 0 {
		return nil, fmt.Errorf("catalogue has no queries")
	}

	c := &Catalogue{
		specs:   make([]QuerySpec, 0, len(doc.Queries)),
		byLabel: make(map[string]int, len(doc.Queries)),
	}
	for i, q := range doc.Queries {
		q.Label = strings.TrimSpace(q.Label)
		q.Description = strings.TrimSpace(q.Description)
		q.SQL = TrimTerminator(q.SQL)

		if q.Label == "" {
			return nil, fmt.Errorf("catalogue entry %d has no label", i)
		}
		if q.SQL == "" {
			return nil, fmt.Errorf("catalogue entry %q has no sql", q.Label)
		}
		if _, dup := c.byLabel[q.Label]; dup {
			return nil, fmt.Errorf("catalogue label %q is declared twice", q.Label)
		}

		c.byLabel[q.Label] = len(c.specs)
		c.specs = append(c.specs, q)
	}
	return c, nil
}

// TrimTerminator removes surrounding whitespace and any trailing semicolons.
func TrimTerminator(sql string) string {
	sql = strings.TrimSpace(sql)
	for strings.HasSuffix(sql, ";") {
		sql = strings.TrimSpace(strings.TrimSuffix(sql, ";"))
	}
	return sql
}

// Lookup returns the query registered under label.
func (c *Catalogue) Lookup(label string) (QuerySpec, error) {
	i, ok := c.byLabel[label]
	if !ok {
		return QuerySpec{}, fmt.Errorf("query %q (known: %s): %w",
			label, strings.Join(c.Labels(), ", "), apperrors.ErrNotFound)
	}
	return c.specs[i], nil
}

// Specs returns the catalogue queries in declaration order.
func (c *Catalogue) Specs() []QuerySpec {
	return append([]QuerySpec(nil), c.specs...)
}

// Labels returns the labels in declaration order.
func (c *Catalogue) Labels() []string {
	labels := make([]string, len(c.specs))
	for i, s := range c.specs {
		labels[i] = s.Label
	}
	return labels
}
