// Package product holds the read model of a catalog product.
package product

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/bullion/internal/domain"
)

// MetalType is the precious metal a product is made of.
type MetalType string

// Metal types.
const (
	Gold      MetalType = "GOLD"
	Silver    MetalType = "SILVER"
	Platinum  MetalType = "PLATINUM"
	Palladium MetalType = "PALLADIUM"
	Rhodium   MetalType = "RHODIUM"
	Copper    MetalType = "COPPER"
)

var metalTypes = []MetalType{Gold, Silver, Platinum, Palladium, Rhodium, Copper}

// IsValid checks if the metal type is one of the supported values.
func (m MetalType) IsValid() bool {
	for _, v := range metalTypes {
		if m == v {
			return true
		}
	}
	return false
}

// ParseMetalType converts caller input (any case) into a MetalType.
func ParseMetalType(s string) (MetalType, error) {
	m := MetalType(strings.ToUpper(strings.TrimSpace(s)))
	if !m.IsValid() {
		return "", fmt.Errorf("%w: unknown metalType %q", domain.ErrInvalidFilter, s)
	}
	return m, nil
}

// Category is the catalog section of a product.
type Category string

// Categories.
const (
	Coins       Category = "COINS"
	Bars        Category = "BARS"
	Rounds      Category = "ROUNDS"
	Jewelry     Category = "JEWELRY"
	Investment  Category = "INVESTMENT"
	Collectible Category = "COLLECTIBLE"
)

var categories = []Category{Coins, Bars, Rounds, Jewelry, Investment, Collectible}

// IsValid checks if the category is one of the supported values.
func (c Category) IsValid() bool {
	for _, v := range categories {
		if c == v {
			return true
		}
	}
	return false
}

// ParseCategory converts caller input (any case) into a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", fmt.Errorf("%w: unknown category %q", domain.ErrInvalidFilter, s)
	}
	return c, nil
}

// Condition, Mint, Grade, JewelryType, WeightUnit and Currency are closed
// enumerations owned by the catalog schema. The search core only reads them.
type (
	Condition   string
	Mint        string
	Grade       string
	JewelryType string
	WeightUnit  string
	Currency    string
)

// Product is the searchable projection of a catalog row. It never carries the embedding.
type Product struct {
	ID          string
	Name        string
	Description string
	SKU         string
	MetalType   MetalType
	Category    Category
	Condition   Condition
	Weight      float64
	WeightUnit  WeightUnit
	Purity      float64
	Price       float64
	Currency    Currency
	StockCount  int
	Metadata    map[string]any
	// Optional attributes; empty when the catalog row has none.
	Mint        Mint
	Grade       Grade
	JewelryType JewelryType
}

// InStock reports whether the product can be returned by search.
func (p *Product) InStock() bool { return p.StockCount > 0 }
