package metering

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PackKind identifies a purchasable top-up pack
type PackKind string

const (
	PackSmall  PackKind = "small"
	PackMedium PackKind = "medium"
	PackLarge  PackKind = "large"
)

// String returns the string representation of PackKind
func (k PackKind) String() string {
	return string(k)
}

// IsValid returns true if the pack kind is valid
func (k PackKind) IsValid() bool {
	switch k {
	case PackSmall, PackMedium, PackLarge:
		return true
	}
	return false
}

// ParsePackKind parses a string into a PackKind
func ParsePackKind(s string) (PackKind, error) {
	k := PackKind(s)
	if !k.IsValid() {
		return "", fmt.Errorf("invalid top-up pack kind: %s", s)
	}
	return k, nil
}

// TopUpPack is an immutable catalog entry for a purchasable block of bonus
// processing units
type TopUpPack struct {
	Kind         PackKind
	UnitsGranted int64
	Price        decimal.Decimal
	PriceRef     string // billing-provider price identifier
}

// PackCatalog maps pack kinds to their catalog entries
type PackCatalog struct {
	packs map[PackKind]TopUpPack
}

// NewPackCatalog creates a pack catalog from the given entries
func NewPackCatalog(packs []TopUpPack) *PackCatalog {
	m := make(map[PackKind]TopUpPack, len(packs))
	for _, p := range packs {
		m[p.Kind] = p
	}
	return &PackCatalog{packs: m}
}

// DefaultPackCatalog returns the built-in top-up pack catalog
func DefaultPackCatalog() *PackCatalog {
	return NewPackCatalog([]TopUpPack{
		{Kind: PackSmall, UnitsGranted: 200, Price: decimal.NewFromInt(5), PriceRef: "price_topup_small"},
		{Kind: PackMedium, UnitsGranted: 600, Price: decimal.NewFromInt(12), PriceRef: "price_topup_medium"},
		{Kind: PackLarge, UnitsGranted: 1500, Price: decimal.NewFromInt(25), PriceRef: "price_topup_large"},
	})
}

// Pack returns the catalog entry for a pack kind
func (c *PackCatalog) Pack(kind PackKind) (TopUpPack, bool) {
	p, ok := c.packs[kind]
	return p, ok
}
