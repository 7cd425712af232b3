package domain

// DefaultProducts returns the catalog written on first load.
func DefaultProducts() []Product {
	return []Product{
		{ID: 1, Name: "B3TR BEACH T-Shirt", PriceUSD: 25, PriceB3TR: 250, Description: "Eco-friendly cotton T-shirt with B3TR logo."},
		{ID: 2, Name: "B3TR BEACH Towel", PriceUSD: 20, PriceB3TR: 200, Description: "Reusable B3TR Towel."},
		{ID: 3, Name: "B3TR BEACH Cap", PriceUSD: 20, PriceB3TR: 200, Description: "Sustainable fabric cap with embroidered logo."},
		{ID: 4, Name: "B3TR BEACH Bucket", PriceUSD: 15, PriceB3TR: 150, Description: "Recycled Polypropylene Bucket with logo."},
		{ID: 5, Name: "B3TR BEACH Hoodie", PriceUSD: 20, PriceB3TR: 200, Description: "Cotton hoodie with embroidered logo."},
		{ID: 6, Name: "B3TR BEACH Bag", PriceUSD: 20, PriceB3TR: 200, Description: "Sustainable bag with embroidered logo."},
	}
}

// NextProductID returns max(existing)+1.
func NextProductID(ps []Product) int {
	next := 1
	for _, p := range ps {
		if p.ID >= next {
			next = p.ID + 1
		}
	}
	return next
}
