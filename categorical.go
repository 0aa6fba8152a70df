package jointab

import (
	"fmt"
	"sort"
)

// ============================================================================
// Categorical Series
// ============================================================================

// NewSeriesCategorical creates a Categorical Series whose domain is the
// sorted set of distinct values.
func NewSeriesCategorical(name string, data []string) *Series {
	s, _ := NewSeriesCategoricalWithCategories(name, data, UnionCategories(data))
	return s
}

// NewSeriesCategoricalWithNulls creates a Categorical Series with a validity
// mask. Null rows do not contribute to the domain.
func NewSeriesCategoricalWithNulls(name string, data []string, valid []bool) *Series {
	isValid := func(i int) bool {
		return valid == nil || i >= len(valid) || valid[i]
	}

	var present []string
	for i, v := range data {
		if isValid(i) {
			present = append(present, v)
		}
	}
	categories := UnionCategories(present)

	lookup := make(map[string]int32, len(categories))
	for i, c := range categories {
		lookup[c] = int32(i)
	}
	codes := make([]int32, len(data))
	for i, v := range data {
		if isValid(i) {
			codes[i] = lookup[v]
		} else {
			codes[i] = -1
		}
	}
	return newSeriesCategoricalFromCodes(name, codes, categories)
}

// NewSeriesCategoricalWithCategories creates a Categorical Series with an
// explicit category domain. Categories may be unused; every value must be
// in the domain.
func NewSeriesCategoricalWithCategories(name string, data []string, categories []string) (*Series, error) {
	lookup := make(map[string]int32, len(categories))
	for i, c := range categories {
		if _, dup := lookup[c]; dup {
			return nil, fmt.Errorf("duplicate category: %q", c)
		}
		lookup[c] = int32(i)
	}

	codes := make([]int32, len(data))
	for i, v := range data {
		code, ok := lookup[v]
		if !ok {
			return nil, fmt.Errorf("value %q at row %d is not a category", v, i)
		}
		codes[i] = code
	}

	return &Series{
		name:       name,
		dtype:      Categorical,
		length:     len(data),
		codes:      codes,
		categories: append([]string{}, categories...),
	}, nil
}

// newSeriesCategoricalFromCodes wraps codes without copying. Callers own
// both slices.
func newSeriesCategoricalFromCodes(name string, codes []int32, categories []string) *Series {
	return &Series{
		name:       name,
		dtype:      Categorical,
		length:     len(codes),
		codes:      codes,
		categories: categories,
	}
}

// Categories returns a copy of the category domain, or nil if the Series is
// not Categorical.
func (s *Series) Categories() []string {
	if s.dtype != Categorical {
		return nil
	}
	return append([]string{}, s.categories...)
}

// Codes returns a copy of the category codes; -1 marks null.
func (s *Series) Codes() []int32 {
	if s.dtype != Categorical {
		return nil
	}
	return append([]int32{}, s.codes...)
}

// SetCategories returns a Series with the given domain. Values that are not
// in the new domain become null.
func (s *Series) SetCategories(categories []string) (*Series, error) {
	if s.dtype != Categorical {
		return nil, fmt.Errorf("series %s is %s, not Categorical", s.name, s.dtype)
	}

	lookup := make(map[string]int32, len(categories))
	for i, c := range categories {
		if _, dup := lookup[c]; dup {
			return nil, fmt.Errorf("duplicate category: %q", c)
		}
		lookup[c] = int32(i)
	}

	// Translate old codes to new codes once per category
	remap := make([]int32, len(s.categories))
	for i, c := range s.categories {
		if code, ok := lookup[c]; ok {
			remap[i] = code
		} else {
			remap[i] = -1
		}
	}

	codes := make([]int32, s.length)
	for i, c := range s.codes {
		if c < 0 {
			codes[i] = -1
		} else {
			codes[i] = remap[c]
		}
	}

	return newSeriesCategoricalFromCodes(s.name, codes, append([]string{}, categories...)), nil
}

// RemoveUnusedCategories returns a Series whose domain holds exactly the
// values present. Surviving categories keep their relative order.
// Non-categorical Series are returned unchanged.
func (s *Series) RemoveUnusedCategories() *Series {
	if s.dtype != Categorical {
		return s
	}

	used := make([]bool, len(s.categories))
	for _, c := range s.codes {
		if c >= 0 {
			used[c] = true
		}
	}

	remap := make([]int32, len(s.categories))
	var kept []string
	for i, c := range s.categories {
		if used[i] {
			remap[i] = int32(len(kept))
			kept = append(kept, c)
		} else {
			remap[i] = -1
		}
	}
	if len(kept) == len(s.categories) {
		return s
	}
	if kept == nil {
		kept = []string{}
	}

	codes := make([]int32, s.length)
	for i, c := range s.codes {
		if c < 0 {
			codes[i] = -1
		} else {
			codes[i] = remap[c]
		}
	}
	return newSeriesCategoricalFromCodes(s.name, codes, kept)
}

// AsCategorical dictionary-encodes a String Series. Categorical Series are
// returned unchanged; other dtypes are an error.
func (s *Series) AsCategorical() (*Series, error) {
	switch s.dtype {
	case Categorical:
		return s, nil
	case String:
		return NewSeriesCategoricalWithNulls(s.name, s.str, s.Valid()), nil
	default:
		return nil, fmt.Errorf("cannot convert %s series %s to Categorical", s.dtype, s.name)
	}
}

// AsString decodes a Categorical Series into a String Series.
func (s *Series) AsString() *Series {
	if s.dtype != Categorical {
		return s
	}
	return NewSeriesStringWithNulls(s.name, s.Strings(), s.Valid())
}

// UnionCategories returns the sorted set of distinct values across all
// inputs.
func UnionCategories(domains ...[]string) []string {
	seen := make(map[string]struct{})
	for _, d := range domains {
		for _, v := range d {
			seen[v] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
