package product

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/bestdeal/internal/domain/store"
)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func decPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func listing(name string, price int64, st store.ID) Listing {
	return Listing{
		Name:      name,
		Price:     dec(price),
		SourceURL: "https://example.com/" + string(st),
		Store:     st,
		InStock:   true,
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "nikeairmax270", Normalize("Nike Air-Max 270"))
	assert.Equal(t, "iphone15pro", Normalize("  iPhone 15 Pro!! "))
	assert.Equal(t, "", Normalize("--- ***"))
	assert.Equal(t, "caf", Normalize("Café"))
}

func TestTokens(t *testing.T) {
	assert.Equal(t, []string{"nikeairmax270runningshoes"}, Tokens("Nike Air Max 270 Running Shoes"))
	assert.Equal(t, []string{"lgtv"}, Tokens("LG TV"))
	assert.Empty(t, Tokens("TV"))
	assert.Empty(t, Tokens(""))
}

func TestSimilar(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{name: "identical", a: "Nike Air Max 270", b: "Nike Air Max 270", want: true},
		{name: "case and punctuation", a: "Nike Air Max 270", b: "nike air-max 270", want: true},
		{name: "containment", a: "Nike Air Max 270", b: "nike air max 270 shoes", want: true},
		{name: "reordered words", a: "Samsung Galaxy Buds Black Edition", b: "Galaxy Buds Samsung White", want: false},
		{name: "shared brand only", a: "Nike Air Max 270", b: "Nike Pegasus 40", want: false},
		{name: "shared leading words", a: "Samsung Galaxy Buds Black", b: "Samsung Galaxy Watch Silver", want: false},
		{name: "unrelated", a: "iPhone 15 Pro", b: "Nike Air Max 270", want: false},
		{name: "distinct four letter names", a: "LG TV", b: "HP PC", want: false},
		{name: "name without tokens matches anything", a: "TV", b: "Nike Air Max 270", want: true},
		{name: "non-ascii letters are dropped", a: "Café Racer Jacket", b: "Caf Racer Jacket", want: true},
		{name: "empty names", a: "", b: "!!", want: true},
		{name: "empty against non-empty", a: "", b: "Nike", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Similar(tt.a, tt.b))
			assert.Equal(t, tt.want, Similar(tt.b, tt.a), "similarity must be symmetric")
		})
	}
}

func TestGroupListings(t *testing.T) {
	t.Run("nike across two stores", func(t *testing.T) {
		groups := GroupListings([]Listing{
			listing("Nike Air Max 270", 12999, store.Amazon),
			listing("nike air max 270 shoes", 11499, store.Flipkart),
		})
		require.Len(t, groups, 1)
		g := groups[0]
		assert.Equal(t, "Nike Air Max 270", g.Name)
		require.Len(t, g.Offers, 2)

		lowest, ok := g.Lowest()
		require.True(t, ok)
		assert.True(t, lowest.Price.Equal(dec(11499)))
		assert.Equal(t, store.Flipkart, lowest.Store)
	})

	t.Run("unrelated products never merge", func(t *testing.T) {
		groups := GroupListings([]Listing{
			listing("iPhone 15 Pro", 134900, store.Amazon),
			listing("Nike Air Max 270", 12999, store.Flipkart),
		})
		require.Len(t, groups, 2)
		assert.Equal(t, "iPhone 15 Pro", groups[0].Name)
		assert.Equal(t, "Nike Air Max 270", groups[1].Name)
	})

	t.Run("short name joins the first group", func(t *testing.T) {
		groups := GroupListings([]Listing{
			listing("Nike Air Max 270", 12999, store.Amazon),
			listing("iPhone 15 Pro", 134900, store.Amazon),
			listing("TV", 29990, store.Flipkart),
		})
		require.Len(t, groups, 2)
		assert.Len(t, groups[0].Offers, 2)
		assert.Equal(t, store.Flipkart, groups[0].Offers[1].Store)
	})

	t.Run("single listing", func(t *testing.T) {
		l := listing("Sony WH-1000XM5", 29990, store.Amazon)
		l.ImageURL = "https://img.example.com/sony.jpg"
		groups := GroupListings([]Listing{l})
		require.Len(t, groups, 1)
		assert.Equal(t, l.Name, groups[0].Name)
		assert.Equal(t, l.ImageURL, groups[0].ImageURL)
		require.Len(t, groups[0].Offers, 1)
		assert.Equal(t, l.Offer(), groups[0].Offers[0])
	})

	t.Run("first match wins", func(t *testing.T) {
		groups := GroupListings([]Listing{
			listing("Nike Air Max", 9000, store.Amazon),
			listing("Nike Air Max 270", 12999, store.Amazon),
			listing("Nike Air Max 270 React", 13999, store.Flipkart),
		})
		require.Len(t, groups, 1)
		assert.Len(t, groups[0].Offers, 3)
	})

	t.Run("deterministic", func(t *testing.T) {
		in := []Listing{
			listing("Nike Air Max 270", 12999, store.Amazon),
			listing("iPhone 15 Pro", 134900, store.Amazon),
			listing("nike air max 270 shoes", 11499, store.Flipkart),
			listing("Apple iPhone 15 Pro 128GB", 129900, store.Flipkart),
		}
		first := GroupListings(in)
		for range 5 {
			assert.Equal(t, first, GroupListings(in))
		}
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, GroupListings(nil))
	})
}

func TestGroupLowest(t *testing.T) {
	g := Group{Offers: []Offer{
		{Store: store.Amazon, Price: dec(500)},
		{Store: store.Flipkart, Price: dec(500)},
		{Store: store.Myntra, Price: dec(700)},
	}}
	lowest, ok := g.Lowest()
	require.True(t, ok)
	assert.Equal(t, store.Amazon, lowest.Store, "ties resolve to the first offer")

	_, ok = Group{}.Lowest()
	assert.False(t, ok)
}

func TestDiscountPercent(t *testing.T) {
	d, ok := DiscountPercent(dec(12999), dec(15999))
	require.True(t, ok)
	assert.Equal(t, 19, d)

	_, ok = DiscountPercent(dec(100), decimal.Zero)
	assert.False(t, ok)

	o := Offer{Price: dec(12999)}
	_, ok = o.Discount()
	assert.False(t, ok)
	o.OriginalPrice = decPtr(15999)
	d, ok = o.Discount()
	require.True(t, ok)
	assert.Equal(t, 19, d)
}

func TestListingValidate(t *testing.T) {
	valid := listing("Nike Air Max 270", 12999, store.Amazon)
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		modify func(l *Listing)
	}{
		{name: "missing store", modify: func(l *Listing) { l.Store = "" }},
		{name: "blank name", modify: func(l *Listing) { l.Name = "   " }},
		{name: "zero price", modify: func(l *Listing) { l.Price = decimal.Zero }},
		{name: "negative original", modify: func(l *Listing) { l.OriginalPrice = decPtr(-1) }},
		{name: "relative url", modify: func(l *Listing) { l.SourceURL = "/dp/B0C" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := valid
			tt.modify(&l)
			err := l.Validate()
			require.Error(t, err)
			var invalid *InvalidListingError
			assert.ErrorAs(t, err, &invalid)
		})
	}
}

func TestNewObservation(t *testing.T) {
	at := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	obs := NewObservation("p1", Offer{
		Store:         store.Flipkart,
		Price:         dec(12999),
		OriginalPrice: decPtr(15999),
		SourceURL:     "https://www.flipkart.com/p/itm1",
		InStock:       true,
	}, at)

	assert.Equal(t, "p1", obs.ProductID)
	assert.Equal(t, "https://www.flipkart.com/p/itm1", obs.SourceURL)
	assert.Equal(t, store.Flipkart, obs.Store)
	assert.Equal(t, "INR", obs.Currency)
	assert.Equal(t, at, obs.ObservedAt)
	require.NotNil(t, obs.DiscountPercent)
	assert.Equal(t, 19, *obs.DiscountPercent)

	plain := NewObservation("p1", Offer{Store: store.Amazon, Price: dec(100)}, at)
	assert.Nil(t, plain.DiscountPercent)
}

func TestExtractBrand(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Nike Air Max 270", "Nike"},
		{"Running shoes by Adidas", "Adidas"},
		{"iPhone 15 Pro", "Apple"},
		{"Levi's 511 Slim Jeans", "Levi's"},
		{"Boat Airdopes 141", "Boat"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractBrand(tt.name))
		})
	}
}
