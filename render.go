package jointab

import (
	"fmt"
	"log/slog"
)

// Result is the output of a join step.
type Result struct {
	DataFrame *DataFrame
	// ColumnFormats holds the display format of every column added from the
	// right tab, and nothing else. Nil when the input passed through.
	ColumnFormats map[string]string
}

// Render joins left with params.RightTab.
//
// An unset right tab or an empty effective set of join columns is an
// incomplete configuration: left is returned as is. A join that is invalid
// for the user returns a *Message error; other errors are internal.
// Neither left nor the right tab is modified.
func Render(left *DataFrame, params JoinParams, inputColumns map[string]RenderColumn) (*Result, error) {
	rightTab := params.RightTab
	if rightTab == nil {
		slog.Debug("join skipped: no right tab")
		return &Result{DataFrame: left}, nil
	}
	right := rightTab.DataFrame

	onSet := make(map[string]bool, len(params.JoinColumns.On))
	onColumns := filterColumns(params.JoinColumns.On, func(c string) bool {
		if onSet[c] || !left.HasColumn(c) || !right.HasColumn(c) {
			return false
		}
		onSet[c] = true
		return true
	})

	var rightSet map[string]bool
	if params.JoinColumns.RightAll {
		rightSet = toSet(filterColumns(right.ColumnNames(), func(c string) bool {
			return !left.HasColumn(c) && !onSet[c]
		}))
	} else {
		rightSet = toSet(filterColumns(params.JoinColumns.Right, func(c string) bool {
			return right.HasColumn(c) && !onSet[c]
		}))
	}
	// Ordered as in the right table
	rightColumns := filterColumns(right.ColumnNames(), func(c string) bool { return rightSet[c] })

	for _, c := range onColumns {
		leftType, err := declaredType(inputColumns, c, "input")
		if err != nil {
			return nil, err
		}
		rightType, err := declaredType(rightTab.Columns, c, rightTab.Name)
		if err != nil {
			return nil, err
		}
		if leftType != rightType {
			slog.Debug("join rejected: column types differ",
				slog.String("column", c),
				slog.String("left_type", string(leftType)),
				slog.String("right_type", string(rightType)),
			)
			return nil, newDifferentColumnTypesMessage(c, leftType, rightType, rightTab.Name)
		}
	}

	for _, c := range rightColumns {
		if _, exists := inputColumns[c]; exists {
			slog.Debug("join rejected: column already exists", slog.String("column", c))
			return nil, newColumnAlreadyExistsMessage(c, rightTab.Name)
		}
	}

	if len(onColumns) == 0 {
		slog.Debug("join skipped: no join columns")
		return &Result{DataFrame: left}, nil
	}

	left, right, err := unifyKeyCategories(left, right, onColumns)
	if err != nil {
		return nil, err
	}

	right = right.Select(append(append([]string{}, onColumns...), rightColumns...)...)

	joined, err := left.Merge(right, On(onColumns...).WithHow(params.Type))
	if err != nil {
		return nil, fmt.Errorf("join with %s: %w", rightTab.Name, err)
	}

	var recheck []string
	switch params.Type {
	case LeftJoin:
		recheck = append(append([]string{}, onColumns...), rightColumns...)
	case RightJoin:
		recheck = left.ColumnNames()
	default:
		recheck = joined.ColumnNames()
	}
	joined, err = removeUnusedCategories(joined, recheck)
	if err != nil {
		return nil, err
	}

	formats := make(map[string]string, len(rightColumns))
	for _, c := range rightColumns {
		formats[c] = rightTab.Columns[c].Format
	}

	slog.Debug("join completed",
		slog.String("tab", rightTab.Name),
		slog.String("how", string(params.Type)),
		slog.Int("result_rows", joined.Height()),
		slog.Int("added_columns", len(rightColumns)),
	)

	return &Result{DataFrame: joined, ColumnFormats: formats}, nil
}

// unifyKeyCategories gives every join column that is categorical on both
// sides the sorted union of both domains, so values compare equal across
// sides and the merged key stays categorical.
func unifyKeyCategories(left, right *DataFrame, on []string) (*DataFrame, *DataFrame, error) {
	for _, c := range on {
		ls, rs := left.ColumnByName(c), right.ColumnByName(c)
		if ls.DType() != Categorical || rs.DType() != Categorical {
			continue
		}
		categories := UnionCategories(ls.Categories(), rs.Categories())

		var err error
		if left, err = withCategories(left, ls, categories); err != nil {
			return nil, nil, err
		}
		if right, err = withCategories(right, rs, categories); err != nil {
			return nil, nil, err
		}
	}
	return left, right, nil
}

func withCategories(df *DataFrame, s *Series, categories []string) (*DataFrame, error) {
	recoded, err := s.SetCategories(categories)
	if err != nil {
		return nil, err
	}
	return df.WithColumn(recoded)
}

// removeUnusedCategories shrinks the domain of every named categorical column
// to the values it holds.
func removeUnusedCategories(df *DataFrame, names []string) (*DataFrame, error) {
	for _, c := range names {
		s := df.ColumnByName(c)
		if s == nil || s.DType() != Categorical {
			continue
		}
		pruned := s.RemoveUnusedCategories()
		if pruned == s {
			continue
		}
		var err error
		if df, err = df.WithColumn(pruned); err != nil {
			return nil, err
		}
	}
	return df, nil
}

func declaredType(columns map[string]RenderColumn, name, owner string) (ColumnType, error) {
	col, ok := columns[name]
	if !ok {
		return "", fmt.Errorf("no column metadata for %s in %s", name, owner)
	}
	return col.Type, nil
}

func filterColumns(names []string, keep func(string) bool) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if keep(n) {
			out = append(out, n)
		}
	}
	return out
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}
