package catalog

import "math/rand/v2"

// Selector draws questions uniformly at random without replacement.
type Selector struct {
	intn func(n int) int
}

func NewSelector() *Selector {
	return &Selector{intn: rand.IntN}
}

// NewSeededSelector is for callers that need a reproducible draw.
func NewSeededSelector(seed uint64) *Selector {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return &Selector{intn: r.IntN}
}

// Select returns min(count, pool size) distinct refs. With filter Any the
// pool is the union of all supported categories, so every question has the
// same chance regardless of its category. Filtering by the excluded category
// yields ErrUnsupportedCategory and no refs.
func (s *Selector) Select(c Catalog, filter Category, count int) ([]QuestionRef, error) {
	if filter == Excluded {
		return nil, ErrUnsupportedCategory
	}
	if count <= 0 {
		return []QuestionRef{}, nil
	}

	var pool []QuestionRef
	if filter == Any {
		for _, cat := range All {
			if !cat.Supported() {
				continue
			}
			for _, id := range c.byCategory[cat] {
				pool = append(pool, QuestionRef{Category: cat, ID: id})
			}
		}
	} else {
		ids := c.byCategory[filter]
		pool = make([]QuestionRef, 0, len(ids))
		for _, id := range ids {
			pool = append(pool, QuestionRef{Category: filter, ID: id})
		}
	}

	pool = dedupe(pool)
	n := min(count, len(pool))

	// Partial Fisher-Yates: the first n slots end up a uniform sample.
	for i := 0; i < n; i++ {
		j := i + s.intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n:n], nil
}

// dedupe drops repeated identifiers so a malformed index cannot yield the
// same question twice in one draw.
func dedupe(pool []QuestionRef) []QuestionRef {
	seen := make(map[string]struct{}, len(pool))
	out := pool[:0]
	for _, ref := range pool {
		if _, ok := seen[ref.ID]; ok {
			continue
		}
		seen[ref.ID] = struct{}{}
		out = append(out, ref)
	}
	return out
}
