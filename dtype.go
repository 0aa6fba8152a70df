package jointab

import "fmt"

// DType represents the physical data type of a Series
type DType uint8

const (
	// Numeric types
	Float64 DType = iota
	Int64

	// Text types
	String

	// Categorical type (dictionary-encoded strings)
	Categorical // String stored as integer codes into a category domain

	// Temporal types
	DateTime // Nanoseconds since the Unix epoch, UTC
)

// String returns the string representation of the DType
func (d DType) String() string {
	switch d {
	case Float64:
		return "Float64"
	case Int64:
		return "Int64"
	case String:
		return "String"
	case Categorical:
		return "Categorical"
	case DateTime:
		return "DateTime"
	default:
		return fmt.Sprintf("Unknown(%d)", d)
	}
}

// IsNumeric returns true if the dtype is a numeric type
func (d DType) IsNumeric() bool {
	return d == Float64 || d == Int64
}

// IsText returns true if the dtype holds text values
func (d DType) IsText() bool {
	return d == String || d == Categorical
}

// IsCategorical returns true if the dtype is Categorical
func (d DType) IsCategorical() bool {
	return d == Categorical
}

// ColumnType returns the semantic column type the dtype is presented as
func (d DType) ColumnType() ColumnType {
	switch d {
	case Float64, Int64:
		return ColumnTypeNumber
	case DateTime:
		return ColumnTypeTimestamp
	default:
		return ColumnTypeText
	}
}

// ColumnType is the semantic type of a column as users see it.
type ColumnType string

const (
	ColumnTypeNumber    ColumnType = "number"
	ColumnTypeText      ColumnType = "text"
	ColumnTypeTimestamp ColumnType = "timestamp"
)

// ParseColumnType parses "number", "text" or "timestamp".
func ParseColumnType(s string) (ColumnType, error) {
	switch t := ColumnType(s); t {
	case ColumnTypeNumber, ColumnTypeText, ColumnTypeTimestamp:
		return t, nil
	default:
		return "", fmt.Errorf("unknown column type: %q", s)
	}
}

// Schema represents the schema of a DataFrame
type Schema struct {
	names  []string
	dtypes []DType
}

// NewSchema creates a new schema from column names and types
func NewSchema(names []string, dtypes []DType) (*Schema, error) {
	if len(names) != len(dtypes) {
		return nil, fmt.Errorf("names and dtypes must have same length: %d != %d", len(names), len(dtypes))
	}

	// Check for duplicate names
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			return nil, fmt.Errorf("duplicate column name: %s", name)
		}
		seen[name] = true
	}

	return &Schema{
		names:  append([]string{}, names...),
		dtypes: append([]DType{}, dtypes...),
	}, nil
}

// Len returns the number of columns in the schema
func (s *Schema) Len() int {
	return len(s.names)
}

// Names returns the column names
func (s *Schema) Names() []string {
	return append([]string{}, s.names...)
}

// DTypes returns the column data types
func (s *Schema) DTypes() []DType {
	return append([]DType{}, s.dtypes...)
}

// GetDType returns the dtype for a column name
func (s *Schema) GetDType(name string) (DType, bool) {
	for i, n := range s.names {
		if n == name {
			return s.dtypes[i], true
		}
	}
	return String, false
}

// String returns a string representation of the schema
func (s *Schema) String() string {
	result := "Schema{\n"
	for i, name := range s.names {
		result += fmt.Sprintf("  %s: %s\n", name, s.dtypes[i])
	}
	result += "}"
	return result
}
