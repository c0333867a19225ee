package catalog

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

var (
	ErrUnknownProduct  = errors.New("catalog: unknown product")
	ErrInvalidQuantity = errors.New("catalog: quantity out of range")
	ErrInvalidProduct  = errors.New("catalog: invalid product")
)

const (
	DefaultCurrency    = "INR"
	DefaultExponent    = 2
	DefaultMaxQuantity = 10
)

// Product is a perfume offered by the kiosk. Price is per pump in major units.
type Product struct {
	ID    string
	Name  string
	Price decimal.Decimal
}

// Catalog is immutable after construction and safe for concurrent reads.
type Catalog struct {
	products    map[string]Product
	order       []string
	currency    string
	exponent    int32
	maxQuantity int
}

type Options struct {
	Currency    string
	Exponent    int32
	MaxQuantity int
}

func New(opts Options, products ...Product) (*Catalog, error) {
	if opts.Currency == "" {
		opts.Currency = DefaultCurrency
	}
	if opts.Exponent < 0 {
		return nil, fmt.Errorf("%w: negative currency exponent %d", ErrInvalidProduct, opts.Exponent)
	}
	if opts.MaxQuantity <= 0 {
		opts.MaxQuantity = DefaultMaxQuantity
	}
	if len(products) == 0 {
		return nil, fmt.Errorf("%w: catalog is empty", ErrInvalidProduct)
	}

	c := &Catalog{
		products:    make(map[string]Product, len(products)),
		order:       make([]string, 0, len(products)),
		currency:    opts.Currency,
		exponent:    opts.Exponent,
		maxQuantity: opts.MaxQuantity,
	}
	for _, p := range products {
		if p.ID == "" || p.Name == "" {
			return nil, fmt.Errorf("%w: id and name are required", ErrInvalidProduct)
		}
		if !p.Price.IsPositive() {
			return nil, fmt.Errorf("%w: %s price must be positive", ErrInvalidProduct, p.ID)
		}
		if _, dup := c.products[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %s", ErrInvalidProduct, p.ID)
		}
		c.products[p.ID] = p
		c.order = append(c.order, p.ID)
	}
	return c, nil
}

// Default is the prototype's three-perfume lineup.
func Default() *Catalog {
	c, err := New(Options{},
		Product{ID: "ocean_blue", Name: "Ocean Blue", Price: decimal.RequireFromString("3.50")},
		Product{ID: "rose_mist", Name: "Rose Mist", Price: decimal.RequireFromString("3.20")},
		Product{ID: "night_amber", Name: "Night Amber", Price: decimal.RequireFromString("4.00")},
	)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) Lookup(id string) (Product, bool) {
	p, ok := c.products[id]
	return p, ok
}

// Products returns the products in declaration order.
func (c *Catalog) Products() []Product {
	out := make([]Product, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.products[id])
	}
	return out
}

// IDs returns the product ids sorted, for error messages.
func (c *Catalog) IDs() []string {
	ids := append([]string(nil), c.order...)
	sort.Strings(ids)
	return ids
}

func (c *Catalog) Currency() string { return c.currency }
func (c *Catalog) Exponent() int32  { return c.exponent }
func (c *Catalog) MaxQuantity() int { return c.maxQuantity }

// Quote is the priced result of a product and quantity selection.
type Quote struct {
	Product     Product
	Quantity    int
	AmountMinor int64
	Currency    string
}

// Price validates the selection and computes the amount in minor units,
// rounding half to even at the minor-unit boundary.
func (c *Catalog) Price(productID string, quantity int) (Quote, error) {
	p, ok := c.products[productID]
	if !ok {
		return Quote{}, fmt.Errorf("%w: %q", ErrUnknownProduct, productID)
	}
	if quantity < 1 || quantity > c.maxQuantity {
		return Quote{}, fmt.Errorf("%w: %d not in [1, %d]", ErrInvalidQuantity, quantity, c.maxQuantity)
	}
	minor := p.Price.
		Mul(decimal.NewFromInt(int64(quantity))).
		Shift(c.exponent).
		RoundBank(0).
		IntPart()
	return Quote{Product: p, Quantity: quantity, AmountMinor: minor, Currency: c.currency}, nil
}

// FormatMinor renders a minor-unit amount with exactly exponent decimals ("16.00").
func (c *Catalog) FormatMinor(minor int64) string {
	return FormatMinor(minor, c.exponent)
}

func FormatMinor(minor int64, exponent int32) string {
	return decimal.New(minor, -exponent).StringFixed(exponent)
}
