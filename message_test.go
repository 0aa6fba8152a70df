package jointab

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFormatTemplate(t *testing.T) {
	tests := []struct {
		name     string
		template string
		args     map[string]interface{}
		want     string
	}{
		{"no args", "plain {x}", nil, "plain {x}"},
		{"substitution", "{a} and {b}", map[string]interface{}{"a": "one", "b": 2}, "one and 2"},
		{"repeated", "{a}{a}", map[string]interface{}{"a": "x"}, "xx"},
		{"unknown placeholder", "{a} {missing}", map[string]interface{}{"a": "x"}, "x {missing}"},
		{"prefix names", "{col}/{column}", map[string]interface{}{"col": "1", "column": "2"}, "1/2"},
		{"unclosed", "unclosed {a", map[string]interface{}{"a": "x"}, "unclosed {a"},
		{"value with braces", "{a} {b}", map[string]interface{}{"a": "{b}", "b": "y"}, "{b} y"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatTemplate(tt.template, tt.args); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestMessageFormat(t *testing.T) {
	msg := newColumnAlreadyExistsMessage("B", "Other")

	want := `You tried to add "B" from Other, but your table already has that column. ` +
		`Please rename the column in one of the tabs, or unselect the column.`
	if got := msg.Error(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	if got := msg.Format(nil); got != want {
		t.Errorf("expected nil translator to use the template, got %q", got)
	}

	catalog := Catalog{ErrColumnAlreadyExists: "{column_name} existe déjà dans {other_tab_name}"}
	if got := msg.Format(catalog); got != "B existe déjà dans Other" {
		t.Errorf("unexpected translation: %q", got)
	}

	// Keys missing from the catalog fall back
	if got := msg.Format(Catalog{}); got != want {
		t.Errorf("expected fallback to the template, got %q", got)
	}
}

func TestDifferentColumnTypesMessage(t *testing.T) {
	msg := newDifferentColumnTypesMessage("A", ColumnTypeNumber, ColumnTypeText, "Other")

	if msg.Key != ErrDifferentColumnTypes {
		t.Errorf("expected key %s, got %s", ErrDifferentColumnTypes, msg.Key)
	}
	for _, name := range []string{"column_name", "left_type", "right_type", "other_tab_name"} {
		if _, ok := msg.Args[name]; !ok {
			t.Errorf("missing arg %s", name)
		}
	}
	if !strings.HasPrefix(msg.Error(), `Column "A" is *number* in this tab and *text* in Other.`) {
		t.Errorf("unexpected message: %q", msg.Error())
	}
}

func TestReadCatalog(t *testing.T) {
	catalog, err := ReadCatalogFromReader(strings.NewReader(`{"error.columnAlreadyExists": "dup {column_name}"}`))
	if err != nil {
		t.Fatalf("failed to read catalog: %v", err)
	}
	if catalog[ErrColumnAlreadyExists] != "dup {column_name}" {
		t.Errorf("unexpected catalog: %v", catalog)
	}

	if _, err := ReadCatalogFromReader(strings.NewReader(`["not", "an", "object"]`)); err == nil {
		t.Error("expected error for non-object catalog")
	}

	path := filepath.Join(t.TempDir(), "de.json")
	if err := os.WriteFile(path, []byte(`{"k": "v"}`), 0o644); err != nil {
		t.Fatalf("failed to write catalog: %v", err)
	}
	catalog, err = ReadCatalog(path)
	if err != nil {
		t.Fatalf("failed to read catalog file: %v", err)
	}
	if catalog["k"] != "v" {
		t.Errorf("unexpected catalog: %v", catalog)
	}

	if _, err := ReadCatalog(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
