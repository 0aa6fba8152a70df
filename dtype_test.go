package jointab

import (
	"strings"
	"testing"
)

// ============================================================================
// DType Tests
// ============================================================================

func TestDType_String(t *testing.T) {
	tests := []struct {
		dtype    DType
		expected string
	}{
		{Float64, "Float64"},
		{Int64, "Int64"},
		{String, "String"},
		{Categorical, "Categorical"},
		{DateTime, "DateTime"},
	}

	for _, tc := range tests {
		result := tc.dtype.String()
		if result != tc.expected {
			t.Errorf("DType(%d).String() = %q, want %q", tc.dtype, result, tc.expected)
		}
	}

	if result := DType(255).String(); !strings.HasPrefix(result, "Unknown") {
		t.Errorf("unknown DType should start with 'Unknown', got %q", result)
	}
}

func TestDType_Predicates(t *testing.T) {
	if !Float64.IsNumeric() || !Int64.IsNumeric() || String.IsNumeric() || DateTime.IsNumeric() {
		t.Error("IsNumeric should hold for Float64 and Int64 only")
	}
	if !String.IsText() || !Categorical.IsText() || Int64.IsText() {
		t.Error("IsText should hold for String and Categorical only")
	}
	if !Categorical.IsCategorical() || String.IsCategorical() {
		t.Error("IsCategorical should hold for Categorical only")
	}
}

func TestDType_ColumnType(t *testing.T) {
	tests := map[DType]ColumnType{
		Float64:     ColumnTypeNumber,
		Int64:       ColumnTypeNumber,
		String:      ColumnTypeText,
		Categorical: ColumnTypeText,
		DateTime:    ColumnTypeTimestamp,
	}
	for dtype, want := range tests {
		if got := dtype.ColumnType(); got != want {
			t.Errorf("%s.ColumnType() = %q, want %q", dtype, got, want)
		}
	}
}

func TestParseColumnType(t *testing.T) {
	for _, s := range []string{"number", "text", "timestamp"} {
		got, err := ParseColumnType(s)
		if err != nil {
			t.Errorf("ParseColumnType(%q) failed: %v", s, err)
		}
		if string(got) != s {
			t.Errorf("ParseColumnType(%q) = %q", s, got)
		}
	}
	if _, err := ParseColumnType("date"); err == nil {
		t.Error("expected error for unknown column type")
	}
}

// ============================================================================
// Schema Tests
// ============================================================================

func TestNewSchema(t *testing.T) {
	schema, err := NewSchema([]string{"a", "b"}, []DType{Int64, Categorical})
	if err != nil {
		t.Fatalf("NewSchema failed: %v", err)
	}
	if schema.Len() != 2 {
		t.Errorf("expected 2 columns, got %d", schema.Len())
	}
	if dtype, ok := schema.GetDType("b"); !ok || dtype != Categorical {
		t.Errorf("expected b to be Categorical, got %v (found=%v)", dtype, ok)
	}
	if _, ok := schema.GetDType("c"); ok {
		t.Error("expected c to be missing")
	}
	if !strings.Contains(schema.String(), "b: Categorical") {
		t.Errorf("unexpected schema string: %s", schema.String())
	}

	if _, err := NewSchema([]string{"a"}, []DType{Int64, String}); err == nil {
		t.Error("expected error for length mismatch")
	}
	if _, err := NewSchema([]string{"a", "a"}, []DType{Int64, String}); err == nil {
		t.Error("expected error for duplicate names")
	}
}
