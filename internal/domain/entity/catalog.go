package entity

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/terms"
)

// Catalog is the read-only entity universe plus the industry keyword table.
// Safe for concurrent reads.
type Catalog struct {
	entities map[string]Entity
	symbols  []string
	industry map[string]terms.Set
}

// NewCatalog indexes entities by symbol. Duplicate symbols are rejected.
func NewCatalog(entities []Entity, industryKeywords map[string][]string) (*Catalog, error) {
	if len(entities) == 0 {
		return nil, domain.ErrEmptyCatalog
	}

	c := &Catalog{
		entities: make(map[string]Entity, len(entities)),
		symbols:  make([]string, 0, len(entities)),
		industry: make(map[string]terms.Set, len(industryKeywords)),
	}
	for _, e := range entities {
		if _, dup := c.entities[e.symbol]; dup {
			return nil, fmt.Errorf("%w: duplicate symbol %q", domain.ErrInvalidCatalog, e.symbol)
		}
		c.entities[e.symbol] = e
		c.symbols = append(c.symbols, e.symbol)
	}
	sort.Strings(c.symbols)

	for group, kws := range industryKeywords {
		c.industry[normalizeGroup(group)] = terms.NewSet(kws...)
	}
	return c, nil
}

// Get looks up an entity by symbol.
func (c *Catalog) Get(symbol string) (Entity, bool) {
	e, ok := c.entities[symbol]
	return e, ok
}

// Len returns the number of entities.
func (c *Catalog) Len() int { return len(c.symbols) }

// Symbols returns all symbols in ascending order. The slice must not be modified.
func (c *Catalog) Symbols() []string { return c.symbols }

// Entities returns every entity ordered by symbol.
func (c *Catalog) Entities() []Entity {
	out := make([]Entity, len(c.symbols))
	for i, s := range c.symbols {
		out[i] = c.entities[s]
	}
	return out
}

// IndustryKeywords returns the keyword set of an industry group, or nil.
func (c *Catalog) IndustryKeywords(group string) terms.Set {
	return c.industry[normalizeGroup(group)]
}

func normalizeGroup(g string) string {
	return strings.ToLower(strings.TrimSpace(g))
}
