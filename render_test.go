package jointab

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

func newTestTab(t *testing.T, name string, df *DataFrame, formats map[string]string) *TabOutput {
	t.Helper()
	tab, err := NewTabOutput("tab-"+strings.ToLower(name), name, df, formats)
	if err != nil {
		t.Fatalf("failed to create tab: %v", err)
	}
	return tab
}

func joinParams(tab *TabOutput, how JoinType, on []string, right []string) JoinParams {
	return JoinParams{
		RightTab:    tab,
		JoinColumns: JoinColumns{On: on, Right: right},
		Type:        how,
	}
}

func expectMessage(t *testing.T, err error, key string) *Message {
	t.Helper()
	var msg *Message
	if !errors.As(err, &msg) {
		t.Fatalf("expected *Message error, got %v", err)
	}
	if msg.Key != key {
		t.Fatalf("expected message %s, got %s", key, msg.Key)
	}
	return msg
}

func TestRenderLeftJoin(t *testing.T) {
	left := mustDataFrame(
		NewSeriesInt64("id", []int64{1, 2}),
		NewSeriesString("name", []string{"a", "b"}),
	)
	right := mustDataFrame(
		NewSeriesInt64("id", []int64{1, 3}),
		NewSeriesFloat64("score", []float64{10, 30}),
		NewSeriesString("extra", []string{"x", "y"}),
	)
	tab := newTestTab(t, "Scores", right, map[string]string{"score": "{:,.2f}", "id": "{:d}"})

	result, err := Render(left, joinParams(tab, LeftJoin, []string{"id"}, []string{"score"}), RenderColumnsOf(left, nil))
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}

	df := result.DataFrame
	if names := df.ColumnNames(); !stringsEqual(names, []string{"id", "name", "score"}) {
		t.Errorf("expected columns [id name score], got %v", names)
	}
	if df.Height() != 2 {
		t.Fatalf("expected 2 rows, got %d", df.Height())
	}
	if v, _ := df.ColumnByName("score").GetFloat64(0); v != 10 {
		t.Errorf("expected score 10, got %v", v)
	}
	if !df.ColumnByName("score").IsNull(1) {
		t.Error("expected null score for unmatched row")
	}

	want := map[string]string{"score": "{:,.2f}"}
	if !reflect.DeepEqual(result.ColumnFormats, want) {
		t.Errorf("expected formats %v, got %v", want, result.ColumnFormats)
	}
}

func TestRenderInnerAndRightJoin(t *testing.T) {
	left := mustDataFrame(
		NewSeriesString("k", []string{"a", "b", "b"}),
		NewSeriesInt64("l", []int64{1, 2, 3}),
	)
	right := mustDataFrame(
		NewSeriesString("k", []string{"c", "b"}),
		NewSeriesInt64("r", []int64{10, 20}),
	)
	tab := newTestTab(t, "Other", right, nil)

	inner, err := Render(left, joinParams(tab, InnerJoin, []string{"k"}, []string{"r"}), RenderColumnsOf(left, nil))
	if err != nil {
		t.Fatalf("inner render failed: %v", err)
	}
	if got := inner.DataFrame.ColumnByName("l").Int64(); !reflect.DeepEqual(got, []int64{2, 3}) {
		t.Errorf("expected l [2 3], got %v", got)
	}

	rightJoin, err := Render(left, joinParams(tab, RightJoin, []string{"k"}, []string{"r"}), RenderColumnsOf(left, nil))
	if err != nil {
		t.Fatalf("right render failed: %v", err)
	}
	df := rightJoin.DataFrame
	if got := df.ColumnByName("k").Strings(); !stringsEqual(got, []string{"c", "b", "b"}) {
		t.Errorf("expected k [c b b], got %v", got)
	}
	if !df.ColumnByName("l").IsNull(0) {
		t.Error("expected null l for unmatched right row")
	}
}

func TestRenderPassThrough(t *testing.T) {
	left := mustDataFrame(NewSeriesInt64("id", []int64{1, 2}))
	right := mustDataFrame(NewSeriesInt64("other", []int64{1}))
	tab := newTestTab(t, "Other", right, nil)
	columns := RenderColumnsOf(left, nil)

	tests := []struct {
		name   string
		params JoinParams
	}{
		{"no right tab", joinParams(nil, LeftJoin, []string{"id"}, nil)},
		{"no join columns", joinParams(tab, LeftJoin, nil, []string{"other"})},
		{"join column missing on the right", joinParams(tab, InnerJoin, []string{"id"}, nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Render(left, tt.params, columns)
			if err != nil {
				t.Fatalf("render failed: %v", err)
			}
			if result.DataFrame != left {
				t.Error("expected the input DataFrame to pass through")
			}
			if result.ColumnFormats != nil {
				t.Errorf("expected no formats, got %v", result.ColumnFormats)
			}
		})
	}
}

func TestRenderDifferentColumnTypes(t *testing.T) {
	left := mustDataFrame(
		NewSeriesInt64("id", []int64{1}),
		NewSeriesString("code", []string{"x"}),
	)
	right := mustDataFrame(
		NewSeriesString("id", []string{"1"}),
		NewSeriesInt64("code", []int64{1}),
	)
	tab := newTestTab(t, "Regions", right, nil)

	_, err := Render(left, joinParams(tab, LeftJoin, []string{"id", "code"}, nil), RenderColumnsOf(left, nil))
	msg := expectMessage(t, err, ErrDifferentColumnTypes)

	// First mismatch only
	if msg.Args["column_name"] != "id" {
		t.Errorf("expected column_name id, got %v", msg.Args["column_name"])
	}
	want := `Column "id" is *number* in this tab and *text* in Regions.`
	if !strings.Contains(msg.Error(), want) {
		t.Errorf("expected %q in %q", want, msg.Error())
	}
}

func TestRenderTimestampAgainstText(t *testing.T) {
	left := mustDataFrame(NewSeriesString("when", []string{"2024-01-01"}))
	right := mustDataFrame(NewSeriesDateTime("when", []time.Time{time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}))
	tab := newTestTab(t, "Events", right, nil)

	_, err := Render(left, joinParams(tab, InnerJoin, []string{"when"}, nil), RenderColumnsOf(left, nil))
	msg := expectMessage(t, err, ErrDifferentColumnTypes)
	if msg.Args["left_type"] != string(ColumnTypeText) || msg.Args["right_type"] != string(ColumnTypeTimestamp) {
		t.Errorf("unexpected message args: %v", msg.Args)
	}
}

func TestRenderColumnAlreadyExists(t *testing.T) {
	left := mustDataFrame(
		NewSeriesInt64("id", []int64{1}),
		NewSeriesString("B", []string{"left"}),
	)
	right := mustDataFrame(
		NewSeriesInt64("id", []int64{1}),
		NewSeriesString("B", []string{"right"}),
	)
	tab := newTestTab(t, "Other", right, nil)

	_, err := Render(left, joinParams(tab, LeftJoin, []string{"id"}, []string{"B"}), RenderColumnsOf(left, nil))
	msg := expectMessage(t, err, ErrColumnAlreadyExists)
	if msg.Args["column_name"] != "B" || msg.Args["other_tab_name"] != "Other" {
		t.Errorf("unexpected message args: %v", msg.Args)
	}

	// Checked even when no join column survives
	_, err = Render(left, joinParams(tab, LeftJoin, []string{"missing"}, []string{"B"}), RenderColumnsOf(left, nil))
	expectMessage(t, err, ErrColumnAlreadyExists)
}

func TestRenderRightColumnOrder(t *testing.T) {
	left := mustDataFrame(
		NewSeriesInt64("id", []int64{1}),
		NewSeriesString("name", []string{"a"}),
	)
	right := mustDataFrame(
		NewSeriesInt64("id", []int64{1}),
		NewSeriesString("z", []string{"z"}),
		NewSeriesString("name", []string{"other"}),
		NewSeriesString("y", []string{"y"}),
	)
	tab := newTestTab(t, "Other", right, map[string]string{"y": "fmt-y"})

	t.Run("rightAll", func(t *testing.T) {
		params := joinParams(tab, LeftJoin, []string{"id"}, nil)
		params.JoinColumns.RightAll = true

		result, err := Render(left, params, RenderColumnsOf(left, nil))
		if err != nil {
			t.Fatalf("render failed: %v", err)
		}
		if names := result.DataFrame.ColumnNames(); !stringsEqual(names, []string{"id", "name", "z", "y"}) {
			t.Errorf("expected columns [id name z y], got %v", names)
		}
		want := map[string]string{"z": "", "y": "fmt-y"}
		if !reflect.DeepEqual(result.ColumnFormats, want) {
			t.Errorf("expected formats %v, got %v", want, result.ColumnFormats)
		}
	})

	t.Run("explicit list", func(t *testing.T) {
		params := joinParams(tab, LeftJoin, []string{"id"}, []string{"y", "missing", "id", "z"})

		result, err := Render(left, params, RenderColumnsOf(left, nil))
		if err != nil {
			t.Fatalf("render failed: %v", err)
		}
		if names := result.DataFrame.ColumnNames(); !stringsEqual(names, []string{"id", "name", "z", "y"}) {
			t.Errorf("expected columns [id name z y], got %v", names)
		}
		if _, ok := result.ColumnFormats["id"]; ok {
			t.Error("join column must not be reported in formats")
		}
	})
}

func TestRenderCategoricalPruning(t *testing.T) {
	left := mustDataFrame(
		NewSeriesCategorical("k", []string{"a", "b"}),
		NewSeriesCategorical("l", []string{"x", "y"}),
	)
	right := mustDataFrame(
		NewSeriesCategorical("k", []string{"a", "c"}),
		NewSeriesCategorical("r", []string{"e", "f"}),
	)
	tab := newTestTab(t, "Other", right, nil)

	tests := []struct {
		how  JoinType
		want map[string][]string
	}{
		{InnerJoin, map[string][]string{"k": {"a"}, "l": {"x"}, "r": {"e"}}},
		{LeftJoin, map[string][]string{"k": {"a", "b"}, "l": {"x", "y"}, "r": {"e"}}},
		{RightJoin, map[string][]string{"k": {"a", "c"}, "l": {"x"}, "r": {"e", "f"}}},
	}

	for _, tt := range tests {
		t.Run(string(tt.how), func(t *testing.T) {
			result, err := Render(left, joinParams(tab, tt.how, []string{"k"}, []string{"r"}), RenderColumnsOf(left, nil))
			if err != nil {
				t.Fatalf("render failed: %v", err)
			}
			for name, want := range tt.want {
				col := result.DataFrame.ColumnByName(name)
				if col.DType() != Categorical {
					t.Errorf("%s: expected Categorical, got %s", name, col.DType())
					continue
				}
				if got := col.Categories(); !stringsEqual(got, want) {
					t.Errorf("%s: expected categories %v, got %v", name, want, got)
				}
			}
		})
	}
}

func mustCategorical(t *testing.T, name string, data, categories []string) *Series {
	t.Helper()
	s, err := NewSeriesCategoricalWithCategories(name, data, categories)
	if err != nil {
		t.Fatalf("failed to create %s: %v", name, err)
	}
	return s
}

// Unused categories outside the re-checked columns must survive.
func TestRenderCategoricalPruningScope(t *testing.T) {
	left := mustDataFrame(
		NewSeriesCategorical("k", []string{"a", "b"}),
		mustCategorical(t, "l", []string{"x", "y"}, []string{"x", "y", "zzz"}),
	)
	right := mustDataFrame(
		NewSeriesCategorical("k", []string{"a", "c"}),
		mustCategorical(t, "r", []string{"e", "f"}, []string{"e", "f", "unused"}),
	)
	tab := newTestTab(t, "Other", right, nil)

	tests := []struct {
		how  JoinType
		want map[string][]string
	}{
		{InnerJoin, map[string][]string{"k": {"a"}, "l": {"x"}, "r": {"e"}}},
		{LeftJoin, map[string][]string{"k": {"a", "b"}, "l": {"x", "y", "zzz"}, "r": {"e"}}},
		{RightJoin, map[string][]string{"k": {"a", "c"}, "l": {"x"}, "r": {"e", "f", "unused"}}},
	}

	for _, tt := range tests {
		t.Run(string(tt.how), func(t *testing.T) {
			result, err := Render(left, joinParams(tab, tt.how, []string{"k"}, []string{"r"}), RenderColumnsOf(left, nil))
			if err != nil {
				t.Fatalf("render failed: %v", err)
			}
			for name, want := range tt.want {
				if got := result.DataFrame.ColumnByName(name).Categories(); !stringsEqual(got, want) {
					t.Errorf("%s: expected categories %v, got %v", name, want, got)
				}
			}
		})
	}
}

func TestRenderTypeMismatchBeforeColumnConflict(t *testing.T) {
	left := mustDataFrame(
		NewSeriesInt64("id", []int64{1}),
		NewSeriesString("region", []string{"north"}),
	)
	right := mustDataFrame(
		NewSeriesString("id", []string{"1"}),
		NewSeriesString("region", []string{"south"}),
	)
	tab := newTestTab(t, "Regions", right, nil)

	_, err := Render(left, joinParams(tab, LeftJoin, []string{"id"}, []string{"region"}), RenderColumnsOf(left, nil))
	msg := expectMessage(t, err, ErrDifferentColumnTypes)
	if msg.Args["column_name"] != "id" {
		t.Errorf("expected column id, got %v", msg.Args["column_name"])
	}
}

func TestRenderCategoricalNullsPruned(t *testing.T) {
	left := mustDataFrame(
		NewSeriesString("id", []string{"1", "2"}),
	)
	right := mustDataFrame(
		NewSeriesString("id", []string{"1", "3"}),
		NewSeriesCategoricalWithNulls("tag", []string{"", "t"}, []bool{false, true}),
	)
	tab := newTestTab(t, "Tags", right, nil)

	result, err := Render(left, joinParams(tab, LeftJoin, []string{"id"}, []string{"tag"}), RenderColumnsOf(left, nil))
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	tag := result.DataFrame.ColumnByName("tag")
	if tag.NullCount() != 2 {
		t.Errorf("expected 2 null tags, got %d", tag.NullCount())
	}
	if got := tag.Categories(); len(got) != 0 || got == nil {
		t.Errorf("expected empty category domain, got %v", got)
	}
}

func TestRenderDoesNotModifyInputs(t *testing.T) {
	left := mustDataFrame(NewSeriesCategorical("k", []string{"a", "b"}))
	right := mustDataFrame(
		NewSeriesCategorical("k", []string{"c"}),
		NewSeriesInt64("v", []int64{1}),
	)
	tab := newTestTab(t, "Other", right, nil)

	if _, err := Render(left, joinParams(tab, LeftJoin, []string{"k"}, []string{"v"}), RenderColumnsOf(left, nil)); err != nil {
		t.Fatalf("render failed: %v", err)
	}

	if got := left.ColumnByName("k").Categories(); !stringsEqual(got, []string{"a", "b"}) {
		t.Errorf("left categories changed: %v", got)
	}
	if got := tab.DataFrame.ColumnByName("k").Categories(); !stringsEqual(got, []string{"c"}) {
		t.Errorf("right categories changed: %v", got)
	}
	if err := tab.Validate(); err != nil {
		t.Errorf("tab no longer valid: %v", err)
	}
}

func TestRenderMissingColumnMetadata(t *testing.T) {
	left := mustDataFrame(NewSeriesInt64("id", []int64{1}))
	right := mustDataFrame(NewSeriesInt64("id", []int64{1}))
	tab := newTestTab(t, "Other", right, nil)

	_, err := Render(left, joinParams(tab, LeftJoin, []string{"id"}, nil), map[string]RenderColumn{})
	if err == nil {
		t.Fatal("expected error for missing column metadata")
	}
	var msg *Message
	if errors.As(err, &msg) {
		t.Errorf("expected an internal error, got message %s", msg.Key)
	}
}
