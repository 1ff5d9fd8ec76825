package product

import "strings"

var knownBrands = []string{
	"Apple", "Samsung", "Nike", "Adidas", "Sony", "LG", "Dell",
	"HP", "Lenovo", "Asus", "Xiaomi", "OnePlus", "Realme",
	"Levi's", "Zara", "H&M", "Puma", "Reebok",
}

// ExtractBrand guesses the brand of a product from its name. Known brands
// are matched on whole words; otherwise the first word is used.
func ExtractBrand(name string) string {
	words := strings.Fields(strings.ToLower(name))
	for _, brand := range knownBrands {
		lb := strings.ToLower(brand)
		for _, w := range words {
			if w == lb {
				return brand
			}
		}
	}
	// iPhone, iPad and friends are Apple products without saying so.
	if len(words) > 0 && strings.HasPrefix(words[0], "iphone") {
		return "Apple"
	}
	if f := strings.Fields(name); len(f) > 0 {
		return f[0]
	}
	return ""
}
