package pipeline

import "stockml/pkg/factors"

// Schema describes the columns of a merged factor frame.
type Schema struct {
	FeatureNames []string
	Categories   []string // category each feature came from
}

// SchemaOf lists the factor columns of r in category order. A name already
// taken by an earlier category is skipped.
func SchemaOf(r factors.Result) Schema {
	var s Schema
	seen := map[string]bool{}
	for _, c := range r.Categories {
		for _, n := range c.Names {
			if seen[n] {
				continue
			}
			seen[n] = true
			s.FeatureNames = append(s.FeatureNames, n)
			s.Categories = append(s.Categories, c.Category)
		}
	}
	return s
}

// Category returns the category of feature name, or "".
func (s Schema) Category(name string) string {
	for i, n := range s.FeatureNames {
		if n == name {
			return s.Categories[i]
		}
	}
	return ""
}
