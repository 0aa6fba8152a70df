package jointab

import (
	"fmt"
	"math"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
)

// Series is a named, immutable column.
//
// The dtype decides which payload is live: Float64 uses f64, Int64 and
// DateTime use i64, String uses str and Categorical uses codes+categories.
// Plain columns track nulls in a roaring bitmap of row positions; categorical
// columns encode null as code -1.
type Series struct {
	name   string
	dtype  DType
	length int

	f64 []float64
	i64 []int64
	str []string

	codes      []int32
	categories []string

	nulls *roaring.Bitmap
}

// ============================================================================
// Creation
// ============================================================================

// NewSeriesFloat64 creates a Float64 Series from a Go slice.
// The data is copied.
func NewSeriesFloat64(name string, data []float64) *Series {
	return &Series{
		name:   name,
		dtype:  Float64,
		length: len(data),
		f64:    append([]float64{}, data...),
	}
}

// NewSeriesFloat64WithNulls creates a Float64 Series with a validity mask.
// valid[i] == false marks row i as null. A nil mask means no nulls.
func NewSeriesFloat64WithNulls(name string, data []float64, valid []bool) *Series {
	s := NewSeriesFloat64(name, data)
	s.nulls = nullsFromValid(valid, len(data))
	return s
}

// NewSeriesInt64 creates an Int64 Series from a Go slice.
func NewSeriesInt64(name string, data []int64) *Series {
	return &Series{
		name:   name,
		dtype:  Int64,
		length: len(data),
		i64:    append([]int64{}, data...),
	}
}

// NewSeriesInt64WithNulls creates an Int64 Series with a validity mask.
func NewSeriesInt64WithNulls(name string, data []int64, valid []bool) *Series {
	s := NewSeriesInt64(name, data)
	s.nulls = nullsFromValid(valid, len(data))
	return s
}

// NewSeriesString creates a String Series from a Go slice.
func NewSeriesString(name string, data []string) *Series {
	return &Series{
		name:   name,
		dtype:  String,
		length: len(data),
		str:    append([]string{}, data...),
	}
}

// NewSeriesStringWithNulls creates a String Series with a validity mask.
func NewSeriesStringWithNulls(name string, data []string, valid []bool) *Series {
	s := NewSeriesString(name, data)
	s.nulls = nullsFromValid(valid, len(data))
	return s
}

// NewSeriesDateTime creates a DateTime Series. Times are stored as UTC
// nanoseconds.
func NewSeriesDateTime(name string, data []time.Time) *Series {
	nanos := make([]int64, len(data))
	for i, t := range data {
		nanos[i] = t.UnixNano()
	}
	return &Series{
		name:   name,
		dtype:  DateTime,
		length: len(data),
		i64:    nanos,
	}
}

// NewSeriesDateTimeWithNulls creates a DateTime Series with a validity mask.
func NewSeriesDateTimeWithNulls(name string, data []time.Time, valid []bool) *Series {
	s := NewSeriesDateTime(name, data)
	s.nulls = nullsFromValid(valid, len(data))
	return s
}

func nullsFromValid(valid []bool, n int) *roaring.Bitmap {
	if valid == nil {
		return nil
	}
	nulls := roaring.New()
	for i := 0; i < n && i < len(valid); i++ {
		if !valid[i] {
			nulls.Add(uint32(i))
		}
	}
	if nulls.IsEmpty() {
		return nil
	}
	return nulls
}

// ============================================================================
// Access
// ============================================================================

// Name returns the name of the Series
func (s *Series) Name() string {
	return s.name
}

// DType returns the data type of the Series
func (s *Series) DType() DType {
	return s.dtype
}

// Len returns the number of elements in the Series
func (s *Series) Len() int {
	return s.length
}

// IsNull reports whether row i is null.
func (s *Series) IsNull(i int) bool {
	if s.dtype == Categorical {
		return s.codes[i] < 0
	}
	return s.nulls != nil && s.nulls.Contains(uint32(i))
}

// IsValid reports whether row i holds a value.
func (s *Series) IsValid(i int) bool {
	return !s.IsNull(i)
}

// NullCount returns the number of null values
func (s *Series) NullCount() int {
	if s.dtype == Categorical {
		n := 0
		for _, c := range s.codes {
			if c < 0 {
				n++
			}
		}
		return n
	}
	if s.nulls == nil {
		return 0
	}
	return int(s.nulls.GetCardinality())
}

// HasNulls returns true if the Series contains any null values
func (s *Series) HasNulls() bool {
	return s.NullCount() > 0
}

// Get returns the value at row i as float64, int64, string or time.Time,
// or nil when the row is null.
func (s *Series) Get(i int) interface{} {
	if i < 0 || i >= s.length || s.IsNull(i) {
		return nil
	}
	switch s.dtype {
	case Float64:
		return s.f64[i]
	case Int64:
		return s.i64[i]
	case String:
		return s.str[i]
	case Categorical:
		return s.categories[s.codes[i]]
	case DateTime:
		return time.Unix(0, s.i64[i]).UTC()
	default:
		return nil
	}
}

// GetFloat64 returns a numeric value as float64.
func (s *Series) GetFloat64(i int) (float64, bool) {
	if s.IsNull(i) {
		return 0, false
	}
	switch s.dtype {
	case Float64:
		return s.f64[i], true
	case Int64:
		return float64(s.i64[i]), true
	default:
		return 0, false
	}
}

// GetInt64 returns the value at row i of an Int64 Series.
func (s *Series) GetInt64(i int) (int64, bool) {
	if s.dtype != Int64 || s.IsNull(i) {
		return 0, false
	}
	return s.i64[i], true
}

// GetString returns the value at row i of a String or Categorical Series.
func (s *Series) GetString(i int) (string, bool) {
	if s.IsNull(i) {
		return "", false
	}
	switch s.dtype {
	case String:
		return s.str[i], true
	case Categorical:
		return s.categories[s.codes[i]], true
	default:
		return "", false
	}
}

// GetTime returns the value at row i of a DateTime Series.
func (s *Series) GetTime(i int) (time.Time, bool) {
	if s.dtype != DateTime || s.IsNull(i) {
		return time.Time{}, false
	}
	return time.Unix(0, s.i64[i]).UTC(), true
}

// Float64 returns a copy of the data of a Float64 Series.
// Null rows hold whatever placeholder the Series was built with.
func (s *Series) Float64() []float64 {
	if s.dtype != Float64 {
		return nil
	}
	return append([]float64{}, s.f64...)
}

// Int64 returns a copy of the data of an Int64 or DateTime Series.
func (s *Series) Int64() []int64 {
	if s.dtype != Int64 && s.dtype != DateTime {
		return nil
	}
	return append([]int64{}, s.i64...)
}

// Strings returns the values of a String or Categorical Series.
// Null rows are returned as "".
func (s *Series) Strings() []string {
	switch s.dtype {
	case String:
		out := append([]string{}, s.str...)
		if s.nulls != nil {
			it := s.nulls.Iterator()
			for it.HasNext() {
				out[it.Next()] = ""
			}
		}
		return out
	case Categorical:
		out := make([]string, s.length)
		for i, c := range s.codes {
			if c >= 0 {
				out[i] = s.categories[c]
			}
		}
		return out
	default:
		return nil
	}
}

// Valid returns the validity mask of the Series (true = has a value).
func (s *Series) Valid() []bool {
	valid := make([]bool, s.length)
	for i := range valid {
		valid[i] = !s.IsNull(i)
	}
	return valid
}

// Rename returns the same data under a new name.
func (s *Series) Rename(name string) *Series {
	out := *s
	out.name = name
	return &out
}

// ============================================================================
// Gather
// ============================================================================

// Take gathers rows by position. An index of -1 produces a null row.
func (s *Series) Take(indices []int) *Series {
	n := len(indices)
	out := &Series{name: s.name, dtype: s.dtype, length: n}

	if s.dtype == Categorical {
		out.categories = s.categories
		out.codes = make([]int32, n)
		for i, idx := range indices {
			if idx < 0 {
				out.codes[i] = -1
			} else {
				out.codes[i] = s.codes[idx]
			}
		}
		return out
	}

	nulls := roaring.New()
	switch s.dtype {
	case Float64:
		out.f64 = make([]float64, n)
		for i, idx := range indices {
			if idx < 0 || s.IsNull(idx) {
				nulls.Add(uint32(i))
				continue
			}
			out.f64[i] = s.f64[idx]
		}
	case Int64, DateTime:
		out.i64 = make([]int64, n)
		for i, idx := range indices {
			if idx < 0 || s.IsNull(idx) {
				nulls.Add(uint32(i))
				continue
			}
			out.i64[i] = s.i64[idx]
		}
	case String:
		out.str = make([]string, n)
		for i, idx := range indices {
			if idx < 0 || s.IsNull(idx) {
				nulls.Add(uint32(i))
				continue
			}
			out.str[i] = s.str[idx]
		}
	}
	if !nulls.IsEmpty() {
		out.nulls = nulls
	}
	return out
}

// Slice returns rows [start, end).
func (s *Series) Slice(start, end int) *Series {
	if start < 0 {
		start = 0
	}
	if end > s.length {
		end = s.length
	}
	if start >= end {
		return s.Take(nil)
	}
	indices := make([]int, end-start)
	for i := range indices {
		indices[i] = start + i
	}
	return s.Take(indices)
}

// ============================================================================
// Comparison
// ============================================================================

// Equal reports whether two Series have the same name, dtype, nulls and
// values. Categorical Series must also share the same category domain in the
// same order.
func (s *Series) Equal(other *Series) bool {
	if s == other {
		return true
	}
	if s == nil || other == nil {
		return false
	}
	if s.name != other.name || s.dtype != other.dtype || s.length != other.length {
		return false
	}
	if s.dtype == Categorical && !stringsEqual(s.categories, other.categories) {
		return false
	}
	for i := 0; i < s.length; i++ {
		if s.IsNull(i) != other.IsNull(i) {
			return false
		}
		if s.IsNull(i) {
			continue
		}
		switch s.dtype {
		case Float64:
			a, b := s.f64[i], other.f64[i]
			if a != b && !(math.IsNaN(a) && math.IsNaN(b)) {
				return false
			}
		case Int64, DateTime:
			if s.i64[i] != other.i64[i] {
				return false
			}
		case String:
			if s.str[i] != other.str[i] {
				return false
			}
		case Categorical:
			if s.codes[i] != other.codes[i] {
				return false
			}
		}
	}
	return true
}

// String returns a short description of the Series
func (s *Series) String() string {
	return fmt.Sprintf("Series(%s: %s, len=%d)", s.name, s.dtype, s.length)
}

func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
