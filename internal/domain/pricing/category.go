package pricing

import "fmt"

// Category is the closed set of price-list sections a service can belong to.
type Category string

const (
	CategoryConsultation Category = "consultation"
	CategoryLabTest      Category = "lab-test"
	CategoryMedication   Category = "medication"
	CategoryProcedure    Category = "procedure"
	CategoryRadiology    Category = "radiology"
)

// AnyCategory disables category filtering in catalog lookups.
const AnyCategory Category = ""

func (c Category) IsValid() bool {
	switch c {
	case CategoryConsultation, CategoryLabTest, CategoryMedication, CategoryProcedure, CategoryRadiology:
		return true
	}
	return false
}

func Categories() []Category {
	return []Category{
		CategoryConsultation,
		CategoryLabTest,
		CategoryMedication,
		CategoryProcedure,
		CategoryRadiology,
	}
}

// ParseCategory accepts the wire form of a category. The empty string parses to AnyCategory.
func ParseCategory(raw string) (Category, error) {
	c := Category(raw)
	if c == AnyCategory || c.IsValid() {
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCategory, raw)
}

// MustCategory panics on anything outside the enumeration. Use it only for
// values that are fixed in code.
func MustCategory(raw string) Category {
	c := Category(raw)
	if !c.IsValid() {
		panic(fmt.Sprintf("pricing: unknown category %q", raw))
	}
	return c
}
