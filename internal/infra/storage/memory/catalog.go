package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/money"
)

// Catalog is a read-only property catalog seeded from fixtures.
type Catalog struct {
	mu    sync.RWMutex
	items map[property.ID]property.Property
}

func NewCatalog(items ...property.Property) *Catalog {
	c := &Catalog{items: make(map[property.ID]property.Property, len(items))}
	for _, p := range items {
		c.items[p.ID] = p
	}
	return c
}

var _ property.Catalog = (*Catalog)(nil)

func (c *Catalog) Property(ctx context.Context, id property.ID) (*property.Property, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", property.ErrNotFound, id)
	}
	return &p, nil
}

// Put adds or replaces a property after validating it.
func (c *Catalog) Put(p property.Property) error {
	if err := p.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[p.ID] = p
	return nil
}

type propertyFixture struct {
	ID            string `json:"id"`
	OwnerID       string `json:"owner_id"`
	Title         string `json:"title"`
	Type          string `json:"type"`
	PricePerNight string `json:"price_per_night"`
	Currency      string `json:"currency"`
}

// LoadFixtures reads a JSON array of properties into the catalog.
func (c *Catalog) LoadFixtures(path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read fixtures: %w", err)
	}
	var fixtures []propertyFixture
	if err := json.Unmarshal(raw, &fixtures); err != nil {
		return 0, fmt.Errorf("decode fixtures: %w", err)
	}
	for _, f := range fixtures {
		typ, err := property.ParseType(f.Type)
		if err != nil {
			return 0, fmt.Errorf("fixture %s: %w", f.ID, err)
		}
		rate, err := money.Parse(f.PricePerNight, f.Currency)
		if err != nil {
			return 0, fmt.Errorf("fixture %s: %w", f.ID, err)
		}
		p := property.Property{
			ID:            property.ID(f.ID),
			OwnerID:       f.OwnerID,
			Title:         f.Title,
			Type:          typ,
			PricePerNight: rate,
		}
		if err := c.Put(p); err != nil {
			return 0, fmt.Errorf("fixture %s: %w", f.ID, err)
		}
	}
	return len(fixtures), nil
}
