package jointab

import (
	"fmt"
	"sort"
)

// RenderColumn describes how a column is interpreted and displayed.
type RenderColumn struct {
	Name   string     `json:"name"`
	Type   ColumnType `json:"type"`
	Format string     `json:"format,omitempty"` // "" means no format
}

// TabOutput is the final output of another tab in the workspace.
type TabOutput struct {
	Slug      string                  // permanent ID, unique in the workspace
	Name      string                  // user-visible, user-editable name
	Columns   map[string]RenderColumn // keyed by every column of DataFrame
	DataFrame *DataFrame
}

// NewTabOutput builds a TabOutput whose column metadata is derived from the
// DataFrame's dtypes. formats assigns display formats by column name.
func NewTabOutput(slug, name string, df *DataFrame, formats map[string]string) (*TabOutput, error) {
	tab := &TabOutput{
		Slug:      slug,
		Name:      name,
		Columns:   RenderColumnsOf(df, formats),
		DataFrame: df,
	}
	for col := range formats {
		if !df.HasColumn(col) {
			return nil, fmt.Errorf("format given for unknown column: %s", col)
		}
	}
	return tab, nil
}

// Validate checks that Columns describes exactly the DataFrame's columns.
func (t *TabOutput) Validate() error {
	if t.DataFrame == nil {
		return fmt.Errorf("tab %s: dataframe is nil", t.Slug)
	}
	var missing, extra []string
	for _, name := range t.DataFrame.ColumnNames() {
		if _, ok := t.Columns[name]; !ok {
			missing = append(missing, name)
		}
	}
	for name := range t.Columns {
		if !t.DataFrame.HasColumn(name) {
			extra = append(extra, name)
		}
	}
	if len(missing) > 0 || len(extra) > 0 {
		sort.Strings(extra)
		return fmt.Errorf("tab %s: column metadata mismatch (missing %v, unknown %v)", t.Slug, missing, extra)
	}
	return nil
}

// RenderColumnsOf derives column metadata from a DataFrame's dtypes.
func RenderColumnsOf(df *DataFrame, formats map[string]string) map[string]RenderColumn {
	columns := make(map[string]RenderColumn, df.Width())
	for i := 0; i < df.Width(); i++ {
		s := df.Column(i)
		columns[s.Name()] = RenderColumn{
			Name:   s.Name(),
			Type:   s.DType().ColumnType(),
			Format: formats[s.Name()],
		}
	}
	return columns
}
