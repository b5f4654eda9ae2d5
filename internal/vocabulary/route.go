package vocabulary

import "sort"

// Route returns up to topK category names ordered by keyword overlap with
// tokens, highest first. Ties keep declaration order. When nothing overlaps
// the result is []string{GeneralCategory}.
func (d *Data) Route(tokens map[string]struct{}, topK int) []string {
	return Route(tokens, d.Categories, topK)
}

func Route(tokens map[string]struct{}, taxonomy []Category, topK int) []string {
	if topK <= 0 {
		topK = 1
	}

	type scored struct {
		name    string
		overlap int
	}

	matches := make([]scored, 0, len(taxonomy))
	for _, c := range taxonomy {
		overlap := 0
		for _, kw := range c.Keywords {
			if _, ok := tokens[kw]; ok {
				overlap++
			}
		}
		if overlap > 0 {
			matches = append(matches, scored{name: c.Name, overlap: overlap})
		}
	}

	if len(matches) == 0 {
		return []string{GeneralCategory}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].overlap > matches[j].overlap
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}

	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m.name)
	}
	return names
}
