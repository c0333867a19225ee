package catalogfile

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/domain/catalog"
)

const sample = `
currency: INR
exponent: 2
max_quantity: 6
products:
  - id: ocean_blue
    name: Ocean Blue
    price: 3.50
  - id: rose_mist
    name: Rose Mist
    price: "3.20"
`

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	c, err := Load(path, catalog.Options{MaxQuantity: 10})
	require.NoError(t, err)
	assert.Equal(t, 6, c.MaxQuantity())
	assert.Equal(t, "INR", c.Currency())
	assert.Equal(t, []string{"ocean_blue", "rose_mist"}, c.IDs())

	q, err := c.Price("rose_mist", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(1600), q.AmountMinor)
}

func TestDecodeRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"bad price":     "products:\n  - {id: a, name: A, price: abc}\n",
		"zero price":    "products:\n  - {id: a, name: A, price: \"0\"}\n",
		"unknown field": "products:\n  - {id: a, name: A, price: \"1\", colour: red}\n",
		"empty":         "currency: INR\n",
		"duplicate":     "products:\n  - {id: a, name: A, price: \"1\"}\n  - {id: a, name: B, price: \"2\"}\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(doc), catalog.Options{})
			require.ErrorIs(t, err, catalog.ErrInvalidProduct)
		})
	}
}

func TestEncodeRoundTripsDefault(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, catalog.Default()))
	assert.Contains(t, buf.String(), `price: "3.50"`)

	c, err := Decode(&buf, catalog.Options{})
	require.NoError(t, err)
	assert.Len(t, c.Products(), 3)
	p, ok := c.Lookup("night_amber")
	require.True(t, ok)
	assert.Equal(t, "4", p.Price.String())
}
