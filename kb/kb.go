package kb

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/signalsfoundry/satdecay/model"
)

// Catalog is an in-memory, read-only satellite catalog keyed by
// international designator, with a secondary index by catalog number.
type Catalog struct {
	rows     map[string]model.CatalogRow
	byNumber map[model.CatalogNumber]model.CatalogRow
	keys     []string // sorted designators
}

// NewCatalog builds a Catalog. Rows with an empty designator are ignored;
// when a designator repeats, the last row wins. For the number index the
// first row carrying a number wins.
func NewCatalog(rows []model.CatalogRow) *Catalog {
	c := &Catalog{
		rows:     make(map[string]model.CatalogRow, len(rows)),
		byNumber: make(map[model.CatalogNumber]model.CatalogRow, len(rows)),
	}
	for _, r := range rows {
		if r.Designator == "" {
			continue
		}
		c.rows[r.Designator] = r
	}
	c.keys = make([]string, 0, len(c.rows))
	for k := range c.rows {
		c.keys = append(c.keys, k)
	}
	sort.Strings(c.keys)
	for _, k := range c.keys {
		r := c.rows[k]
		if !r.HasCatalogNumber() {
			continue
		}
		if _, exists := c.byNumber[r.CatalogNumber]; !exists {
			c.byNumber[r.CatalogNumber] = r
		}
	}
	return c
}

// Len returns the number of designators in the catalog.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.rows)
}

// Lookup returns the row for an exact designator.
func (c *Catalog) Lookup(designator string) (model.CatalogRow, bool) {
	if c == nil {
		return model.CatalogRow{}, false
	}
	r, ok := c.rows[designator]
	return r, ok
}

// ByCatalogNumber returns the row carrying the given catalog number.
func (c *Catalog) ByCatalogNumber(n model.CatalogNumber) (model.CatalogRow, bool) {
	if c == nil {
		return model.CatalogRow{}, false
	}
	r, ok := c.byNumber[n]
	return r, ok
}

// WithPrefix returns every row whose designator starts with prefix, in
// designator order. An empty prefix matches everything.
func (c *Catalog) WithPrefix(prefix string) []model.CatalogRow {
	if c == nil {
		return nil
	}
	start := sort.SearchStrings(c.keys, prefix)
	var res []model.CatalogRow
	for _, k := range c.keys[start:] {
		if !strings.HasPrefix(k, prefix) {
			break
		}
		res = append(res, c.rows[k])
	}
	return res
}

// Source fetches the raw catalog rows.
type Source interface {
	FetchSatcat(ctx context.Context) ([]model.CatalogRow, error)
}

// Loader memoises a single successful catalog fetch for the process
// lifetime. A failed fetch is not cached.
type Loader struct {
	src Source

	mu      sync.Mutex
	catalog *Catalog
}

// NewLoader constructs a Loader around src.
func NewLoader(src Source) *Loader {
	return &Loader{src: src}
}

// Load returns the cached catalog, fetching it on first use.
func (l *Loader) Load(ctx context.Context) (*Catalog, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.catalog != nil {
		return l.catalog, nil
	}
	if l.src == nil {
		return nil, fmt.Errorf("catalog loader has no source: %w", model.ErrSourceUnavailable)
	}
	rows, err := l.src.FetchSatcat(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("catalog source returned no rows: %w", model.ErrSourceUnavailable)
	}
	l.catalog = NewCatalog(rows)
	return l.catalog, nil
}
