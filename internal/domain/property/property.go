// Package property holds the read-only view of catalog properties that the
// booking engine prices and locks against. The catalog itself is owned elsewhere.
package property

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"staybook/internal/domain/shared/money"
)

var (
	ErrNotFound    = errors.New("property: not found")
	ErrInvalidType = errors.New("property: unknown type")
	ErrInvalidRate = errors.New("property: price per night must be positive")
)

type ID string

type Type string

const (
	TypeSale  Type = "sale"
	TypeRent  Type = "rent"
	TypeHotel Type = "hotel"
)

// ParseType accepts the catalog's type strings case-insensitively.
func ParseType(value string) (Type, error) {
	switch t := Type(strings.ToLower(strings.TrimSpace(value))); t {
	case TypeSale, TypeRent, TypeHotel:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidType, value)
	}
}

// Bookable reports whether stays can be reserved for this type.
func (t Type) Bookable() bool {
	return t == TypeRent || t == TypeHotel
}

type Property struct {
	ID            ID
	OwnerID       string
	Title         string
	Type          Type
	PricePerNight money.Money
}

func (p *Property) Currency() string {
	return p.PricePerNight.Currency
}

// Validate checks the fields the engine depends on.
func (p *Property) Validate() error {
	if strings.TrimSpace(string(p.ID)) == "" {
		return errors.New("property: id required")
	}
	if _, err := ParseType(string(p.Type)); err != nil {
		return err
	}
	if p.Type.Bookable() && !p.PricePerNight.Amount.IsPositive() {
		return ErrInvalidRate
	}
	if _, err := money.New(p.PricePerNight.Amount, p.PricePerNight.Currency); err != nil {
		return err
	}
	return nil
}

// Catalog is the property catalog collaborator as seen by the engine.
type Catalog interface {
	Property(ctx context.Context, id ID) (*Property, error)
}
