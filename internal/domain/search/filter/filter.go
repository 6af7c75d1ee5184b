// Package filter holds the structured product filters of a search request.
package filter

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kailas-cloud/bullion/internal/domain"
	"github.com/kailas-cloud/bullion/internal/domain/product"
)

// Raw holds caller-supplied filter values as received on the wire.
// An empty field means "no constraint".
type Raw struct {
	Category  string
	MetalType string
	MinPrice  string
	MaxPrice  string
}

// Filters is the parsed, typed form of Raw. Every field is optional.
// MinPrice <= MaxPrice is the caller's responsibility: an inverted range matches nothing.
type Filters struct {
	category  *product.Category
	metalType *product.MetalType
	minPrice  *float64
	maxPrice  *float64
}

// Parse validates raw filter values. Unknown enum values and non-numeric
// prices fail with domain.ErrInvalidFilter.
func Parse(raw Raw) (Filters, error) {
	var f Filters

	if s := strings.TrimSpace(raw.Category); s != "" {
		c, err := product.ParseCategory(s)
		if err != nil {
			return Filters{}, err //nolint:wrapcheck // already carries ErrInvalidFilter
		}
		f.category = &c
	}

	if s := strings.TrimSpace(raw.MetalType); s != "" {
		m, err := product.ParseMetalType(s)
		if err != nil {
			return Filters{}, err //nolint:wrapcheck // already carries ErrInvalidFilter
		}
		f.metalType = &m
	}

	minPrice, err := parsePrice("minPrice", raw.MinPrice)
	if err != nil {
		return Filters{}, err
	}
	f.minPrice = minPrice

	maxPrice, err := parsePrice("maxPrice", raw.MaxPrice)
	if err != nil {
		return Filters{}, err
	}
	f.maxPrice = maxPrice

	return f, nil
}

func parsePrice(name, s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("%w: %s must be a number, got %q", domain.ErrInvalidFilter, name, s)
	}
	return &v, nil
}

// Category returns the category constraint, or nil.
func (f Filters) Category() *product.Category { return f.category }

// MetalType returns the metal type constraint, or nil.
func (f Filters) MetalType() *product.MetalType { return f.metalType }

// MinPrice returns the inclusive lower price bound, or nil.
func (f Filters) MinPrice() *float64 { return f.minPrice }

// MaxPrice returns the inclusive upper price bound, or nil.
func (f Filters) MaxPrice() *float64 { return f.maxPrice }

// IsEmpty reports whether no constraint is set.
func (f Filters) IsEmpty() bool {
	return f.category == nil && f.metalType == nil && f.minPrice == nil && f.maxPrice == nil
}

// Matches evaluates the filters against a product in memory, including the stock invariant.
func (f Filters) Matches(p *product.Product) bool {
	if !p.InStock() {
		return false
	}
	if f.category != nil && p.Category != *f.category {
		return false
	}
	if f.metalType != nil && p.MetalType != *f.metalType {
		return false
	}
	if f.minPrice != nil && p.Price < *f.minPrice {
		return false
	}
	if f.maxPrice != nil && p.Price > *f.maxPrice {
		return false
	}
	return true
}
