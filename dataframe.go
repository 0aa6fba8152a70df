package jointab

import (
	"fmt"
)

// DataFrame is an ordered set of equally long, uniquely named Series.
// DataFrames are immutable: every operation returns a new DataFrame that may
// share Series with its source.
type DataFrame struct {
	columns []*Series
	index   map[string]int
	height  int
}

// ============================================================================
// Creation
// ============================================================================

// NewDataFrame creates a DataFrame from Series.
// All series must have the same length and distinct names.
func NewDataFrame(columns ...*Series) (*DataFrame, error) {
	df := &DataFrame{
		columns: make([]*Series, 0, len(columns)),
		index:   make(map[string]int, len(columns)),
	}

	for i, s := range columns {
		if s == nil {
			return nil, fmt.Errorf("column %d is nil", i)
		}
		if i == 0 {
			df.height = s.Len()
		} else if s.Len() != df.height {
			return nil, fmt.Errorf("column %s has length %d, expected %d", s.Name(), s.Len(), df.height)
		}
		if _, dup := df.index[s.Name()]; dup {
			return nil, fmt.Errorf("duplicate column name: %s", s.Name())
		}
		df.index[s.Name()] = len(df.columns)
		df.columns = append(df.columns, s)
	}

	return df, nil
}

// mustDataFrame is for internal callers that already hold consistent columns.
func mustDataFrame(columns ...*Series) *DataFrame {
	df, err := NewDataFrame(columns...)
	if err != nil {
		panic(err)
	}
	return df
}

// ============================================================================
// Access
// ============================================================================

// Height returns the number of rows in the DataFrame.
func (df *DataFrame) Height() int {
	return df.height
}

// Width returns the number of columns in the DataFrame.
func (df *DataFrame) Width() int {
	return len(df.columns)
}

// Shape returns (rows, columns).
func (df *DataFrame) Shape() (int, int) {
	return df.height, len(df.columns)
}

// Column returns the Series at position i.
func (df *DataFrame) Column(i int) *Series {
	if i < 0 || i >= len(df.columns) {
		return nil
	}
	return df.columns[i]
}

// ColumnByName returns the Series with the given name, or nil if not found.
func (df *DataFrame) ColumnByName(name string) *Series {
	i, ok := df.index[name]
	if !ok {
		return nil
	}
	return df.columns[i]
}

// HasColumn reports whether the DataFrame has a column with the given name.
func (df *DataFrame) HasColumn(name string) bool {
	_, ok := df.index[name]
	return ok
}

// ColumnNames returns the names of all columns in order.
func (df *DataFrame) ColumnNames() []string {
	names := make([]string, len(df.columns))
	for i, s := range df.columns {
		names[i] = s.Name()
	}
	return names
}

// Schema returns the names and dtypes of the columns.
func (df *DataFrame) Schema() *Schema {
	dtypes := make([]DType, len(df.columns))
	for i, s := range df.columns {
		dtypes[i] = s.DType()
	}
	schema, _ := NewSchema(df.ColumnNames(), dtypes)
	return schema
}

// ============================================================================
// Selection
// ============================================================================

// Select returns a new DataFrame with only the specified columns, in the
// order given. Columns that don't exist are silently ignored.
func (df *DataFrame) Select(columns ...string) *DataFrame {
	result := make([]*Series, 0, len(columns))
	seen := make(map[string]bool, len(columns))
	for _, name := range columns {
		if s := df.ColumnByName(name); s != nil && !seen[name] {
			result = append(result, s)
			seen[name] = true
		}
	}
	out := mustDataFrame(result...)
	if len(result) == 0 {
		out.height = df.height
	}
	return out
}

// Drop returns a new DataFrame without the specified columns.
func (df *DataFrame) Drop(columns ...string) *DataFrame {
	dropSet := make(map[string]bool, len(columns))
	for _, name := range columns {
		dropSet[name] = true
	}

	result := make([]*Series, 0, len(df.columns))
	for _, s := range df.columns {
		if !dropSet[s.Name()] {
			result = append(result, s)
		}
	}
	out := mustDataFrame(result...)
	if len(result) == 0 {
		out.height = df.height
	}
	return out
}

// WithColumn returns a new DataFrame with the Series added, or replacing the
// column of the same name in place.
func (df *DataFrame) WithColumn(series *Series) (*DataFrame, error) {
	if series == nil {
		return nil, fmt.Errorf("series is nil")
	}
	if len(df.columns) > 0 && series.Len() != df.height {
		return nil, fmt.Errorf("column %s has length %d, expected %d", series.Name(), series.Len(), df.height)
	}

	columns := append([]*Series{}, df.columns...)
	if i, ok := df.index[series.Name()]; ok {
		columns[i] = series
	} else {
		columns = append(columns, series)
	}
	return NewDataFrame(columns...)
}

// Rename returns a new DataFrame with a column renamed.
func (df *DataFrame) Rename(oldName, newName string) (*DataFrame, error) {
	i, ok := df.index[oldName]
	if !ok {
		return nil, fmt.Errorf("column not found: %s", oldName)
	}
	columns := append([]*Series{}, df.columns...)
	columns[i] = columns[i].Rename(newName)
	return NewDataFrame(columns...)
}

// Take gathers rows by position; -1 produces a null row.
func (df *DataFrame) Take(indices []int) *DataFrame {
	columns := make([]*Series, len(df.columns))
	for i, s := range df.columns {
		columns[i] = s.Take(indices)
	}
	out := mustDataFrame(columns...)
	out.height = len(indices)
	return out
}

// Head returns the first n rows.
func (df *DataFrame) Head(n int) *DataFrame {
	if n > df.height {
		n = df.height
	}
	return df.Slice(0, n)
}

// Tail returns the last n rows.
func (df *DataFrame) Tail(n int) *DataFrame {
	if n > df.height {
		n = df.height
	}
	return df.Slice(df.height-n, df.height)
}

// Slice returns rows [start, end).
func (df *DataFrame) Slice(start, end int) *DataFrame {
	if start < 0 {
		start = 0
	}
	if end > df.height {
		end = df.height
	}
	if start > end {
		start = end
	}
	indices := make([]int, end-start)
	for i := range indices {
		indices[i] = start + i
	}
	return df.Take(indices)
}

// ============================================================================
// Comparison
// ============================================================================

// Equal reports whether both DataFrames have the same columns, in the same
// order, with equal Series.
func (df *DataFrame) Equal(other *DataFrame) bool {
	if df == other {
		return true
	}
	if df == nil || other == nil {
		return false
	}
	if df.height != other.height || len(df.columns) != len(other.columns) {
		return false
	}
	for i := range df.columns {
		if !df.columns[i].Equal(other.columns[i]) {
			return false
		}
	}
	return true
}
