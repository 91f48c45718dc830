package pricing

import "github.com/google/uuid"

// Catalog is a read-only, ordered view of the price list. Lookups are linear
// scans; the list is small enough (tens to a few hundred entries) that an
// index would not pay for itself.
type Catalog []ServicePrice

// FindBestPrice returns the highest scoring entry for name, restricted to
// category unless it is AnyCategory. Ties go to the entry seen first. Scores
// below MatchFloor are not a match.
func (c Catalog) FindBestPrice(name string, category Category) (ServicePrice, bool) {
	query := Normalize(name)
	if query == "" {
		return ServicePrice{}, false
	}

	best := -1
	bestScore := 0
	for i := range c {
		if category != AnyCategory && c[i].Category != category {
			continue
		}
		if s := Score(Normalize(c[i].ServiceName), query); s > bestScore {
			best, bestScore = i, s
		}
	}

	if best < 0 || bestScore < MatchFloor {
		return ServicePrice{}, false
	}
	return c[best], true
}

// FindBestPriceWithFallback tries category first and then the whole catalog.
func (c Catalog) FindBestPriceWithFallback(name string, category Category) (ServicePrice, bool) {
	if p, ok := c.FindBestPrice(name, category); ok {
		return p, true
	}
	if category == AnyCategory {
		return ServicePrice{}, false
	}
	return c.FindBestPrice(name, AnyCategory)
}

// FindByName returns the first entry whose normalized name equals name's.
func (c Catalog) FindByName(name string, category Category) (ServicePrice, bool) {
	want := Normalize(name)
	if want == "" {
		return ServicePrice{}, false
	}
	for _, p := range c {
		if category != AnyCategory && p.Category != category {
			continue
		}
		if Normalize(p.ServiceName) == want {
			return p, true
		}
	}
	return ServicePrice{}, false
}

func (c Catalog) First(category Category) (ServicePrice, bool) {
	for _, p := range c {
		if category == AnyCategory || p.Category == category {
			return p, true
		}
	}
	return ServicePrice{}, false
}

func (c Catalog) InCategory(category Category) Catalog {
	if category == AnyCategory {
		return c
	}
	out := make(Catalog, 0, len(c))
	for _, p := range c {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out
}

func (c Catalog) ByID(id uuid.UUID) (ServicePrice, bool) {
	for _, p := range c {
		if p.ID == id {
			return p, true
		}
	}
	return ServicePrice{}, false
}
