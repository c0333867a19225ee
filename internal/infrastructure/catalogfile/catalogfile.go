package catalogfile

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/domain/catalog"
)

type document struct {
	Currency    string    `yaml:"currency"`
	Exponent    *int32    `yaml:"exponent"`
	MaxQuantity int       `yaml:"max_quantity"`
	Products    []product `yaml:"products"`
}

// Prices are kept as text so "3.50" never passes through a float.
type product struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Price string `yaml:"price"`
}

// Load reads a catalog file. Values present in the file override opts.
func Load(path string, opts catalog.Options) (*catalog.Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Decode(f, opts)
}

func Decode(r io.Reader, opts catalog.Options) (*catalog.Catalog, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", catalog.ErrInvalidProduct, err)
	}
	if doc.Currency != "" {
		opts.Currency = doc.Currency
	}
	if doc.Exponent != nil {
		opts.Exponent = *doc.Exponent
	}
	if doc.MaxQuantity > 0 {
		opts.MaxQuantity = doc.MaxQuantity
	}

	products := make([]catalog.Product, 0, len(doc.Products))
	for i, p := range doc.Products {
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			return nil, fmt.Errorf("%w: product %d (%s) price %q: %w", catalog.ErrInvalidProduct, i, p.ID, p.Price, err)
		}
		products = append(products, catalog.Product{ID: p.ID, Name: p.Name, Price: price})
	}
	return catalog.New(opts, products...)
}

// Encode writes c in the format Load reads.
func Encode(w io.Writer, c *catalog.Catalog) error {
	exp := c.Exponent()
	doc := document{
		Currency:    c.Currency(),
		Exponent:    &exp,
		MaxQuantity: c.MaxQuantity(),
	}
	for _, p := range c.Products() {
		doc.Products = append(doc.Products, product{
			ID:    p.ID,
			Name:  p.Name,
			Price: p.Price.StringFixed(exp),
		})
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
