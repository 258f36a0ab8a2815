// Package reference holds the static bank and category tables shared by every
// parser, so that bank codes and keywords are declared exactly once.
package reference

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/aqlanhadi/fatura/extractor/common"
	"gopkg.in/yaml.v3"
)

//go:embed reference.yaml
var embeddedTable []byte

// Bank identifies a financial institution by its clearing code.
type Bank struct {
	Code    string   `yaml:"code" json:"code,omitempty"`
	Name    string   `yaml:"name" json:"name,omitempty"`
	Slug    string   `yaml:"slug" json:"slug,omitempty"`
	Aliases []string `yaml:"aliases" json:"-"`
}

// IsZero reports whether no institution was identified.
func (b Bank) IsZero() bool {
	return b.Code == "" && b.Name == ""
}

func (b Bank) String() string {
	switch {
	case b.IsZero():
		return "unknown institution"
	case b.Name == "":
		return b.Code
	case b.Code == "":
		return b.Name
	}
	return fmt.Sprintf("%s (%s)", b.Name, b.Code)
}

// Category maps a coarse category slug to description keywords.
type Category struct {
	Slug     string   `yaml:"slug"`
	Keywords []string `yaml:"keywords"`
}

// Table is the reference data injected into parsers.
type Table struct {
	Banks      []Bank     `yaml:"banks"`
	Categories []Category `yaml:"categories"`
	Denylist   []string   `yaml:"denylist"`
}

var (
	defaultOnce  sync.Once
	defaultTable *Table
)

// Default returns the embedded table.
func Default() *Table {
	defaultOnce.Do(func() {
		t, err := Load(embeddedTable)
		if err != nil {
			panic(fmt.Sprintf("embedded reference table is invalid: %v", err))
		}
		defaultTable = t
	})
	return defaultTable
}

// LoadFile reads a table from a YAML file.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading reference table: %w", err)
	}
	return Load(data)
}

// Load parses and validates a YAML table. Aliases, keywords and denylist
// entries are folded (lowercase, no diacritics) once here.
func Load(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing reference table: %w", err)
	}

	seen := make(map[string]bool)
	for i := range t.Banks {
		b := &t.Banks[i]
		b.Code = NormalizeCode(b.Code)
		if b.Code == "" {
			return nil, fmt.Errorf("bank %q has no code", b.Name)
		}
		if seen[b.Code] {
			return nil, fmt.Errorf("duplicate bank code %s", b.Code)
		}
		seen[b.Code] = true
		if len(b.Aliases) == 0 {
			return nil, fmt.Errorf("bank %s has no aliases", b.Code)
		}
		for j, alias := range b.Aliases {
			b.Aliases[j] = common.FoldText(alias)
		}
	}

	for i := range t.Categories {
		c := &t.Categories[i]
		if c.Slug == "" {
			return nil, fmt.Errorf("category %d has no slug", i)
		}
		for j, kw := range c.Keywords {
			c.Keywords[j] = common.FoldText(kw)
		}
	}

	for i, phrase := range t.Denylist {
		t.Denylist[i] = common.FoldText(phrase)
	}

	return &t, nil
}

// NormalizeCode reduces a clearing code to its three-digit form
// ("0341" and "341" are the same bank, "1" is "001").
func NormalizeCode(code string) string {
	var digits strings.Builder
	for _, r := range code {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := strings.TrimLeft(digits.String(), "0")
	if d == "" {
		if digits.Len() > 0 {
			return "000"
		}
		return ""
	}
	if len(d) < 3 {
		d = strings.Repeat("0", 3-len(d)) + d
	}
	return d
}

// BankByCode looks a bank up by clearing code.
func (t *Table) BankByCode(code string) (Bank, bool) {
	code = NormalizeCode(code)
	if code == "" {
		return Bank{}, false
	}
	for _, b := range t.Banks {
		if b.Code == code {
			return b, true
		}
	}
	return Bank{}, false
}

// BankBySlug looks a bank up by slug.
func (t *Table) BankBySlug(slug string) (Bank, bool) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	for _, b := range t.Banks {
		if b.Slug == slug {
			return b, true
		}
	}
	return Bank{}, false
}

// Categorize returns the slug of the first category whose keyword appears in
// text, or "" when none does.
func (t *Table) Categorize(text string) string {
	folded := common.FoldText(text)
	if folded == "" {
		return ""
	}
	for _, c := range t.Categories {
		for _, kw := range c.Keywords {
			if kw != "" && strings.Contains(folded, kw) {
				return c.Slug
			}
		}
	}
	return ""
}

// IsBoilerplate reports whether text is a statement line that is never a
// purchase (payments received, balance carried forward, totals).
func (t *Table) IsBoilerplate(text string) bool {
	folded := common.FoldText(text)
	for _, phrase := range t.Denylist {
		if phrase != "" && strings.Contains(folded, phrase) {
			return true
		}
	}
	return false
}
