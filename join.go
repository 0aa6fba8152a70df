package jointab

import (
	"encoding/binary"
	"fmt"
	"hash/maphash"
	"log/slog"
	"math"

	"golang.org/x/sync/errgroup"
)

// JoinType represents the type of join operation
type JoinType string

const (
	LeftJoin  JoinType = "left"
	InnerJoin JoinType = "inner"
	RightJoin JoinType = "right"
)

// ParseJoinType parses "left", "inner" or "right".
func ParseJoinType(s string) (JoinType, error) {
	switch t := JoinType(s); t {
	case LeftJoin, InnerJoin, RightJoin:
		return t, nil
	default:
		return "", fmt.Errorf("unknown join type: %q", s)
	}
}

// MergeOptions configures Merge
type MergeOptions struct {
	On     []string // Columns to join on (same name in both DataFrames)
	How    JoinType // Join type (default InnerJoin)
	Suffix string   // Suffix for colliding non-key right columns (default "_right")
}

// DefaultMergeOptions returns default merge options
func DefaultMergeOptions() MergeOptions {
	return MergeOptions{
		How:    InnerJoin,
		Suffix: "_right",
	}
}

// On creates merge options for joining on columns with the same name
func On(columns ...string) MergeOptions {
	opts := DefaultMergeOptions()
	opts.On = columns
	return opts
}

// WithHow sets the join type
func (o MergeOptions) WithHow(how JoinType) MergeOptions {
	o.How = how
	return o
}

// WithSuffix sets the suffix for colliding column names
func (o MergeOptions) WithSuffix(suffix string) MergeOptions {
	o.Suffix = suffix
	return o
}

// Join performs an inner join with another DataFrame
func (df *DataFrame) Join(other *DataFrame, opts MergeOptions) (*DataFrame, error) {
	return df.Merge(other, opts.WithHow(InnerJoin))
}

// LeftJoin performs a left join with another DataFrame
func (df *DataFrame) LeftJoin(other *DataFrame, opts MergeOptions) (*DataFrame, error) {
	return df.Merge(other, opts.WithHow(LeftJoin))
}

// RightJoin performs a right join with another DataFrame
func (df *DataFrame) RightJoin(other *DataFrame, opts MergeOptions) (*DataFrame, error) {
	return df.Merge(other, opts.WithHow(RightJoin))
}

// Merge joins two DataFrames on equally named key columns.
//
// The output holds every left column in left order, followed by the non-key
// right columns in right order. A key value occurring m times on the left and
// n times on the right yields m*n rows. Left and inner joins follow left row
// order; right joins follow right row order. Null keys match null keys.
func (df *DataFrame) Merge(other *DataFrame, opts MergeOptions) (*DataFrame, error) {
	if other == nil {
		return nil, fmt.Errorf("right DataFrame is nil")
	}
	if len(opts.On) == 0 {
		return nil, fmt.Errorf("must specify at least one join column")
	}
	if opts.Suffix == "" {
		opts.Suffix = "_right"
	}

	leftKeys, rightKeys, err := resolveJoinColumns(df, other, opts.On)
	if err != nil {
		return nil, err
	}

	outputCols, mapping, err := resolveOutputColumns(df, other, opts.On, opts.Suffix)
	if err != nil {
		return nil, err
	}

	var leftIndices, rightIndices []int
	switch opts.How {
	case InnerJoin, LeftJoin:
		index := buildHashIndex(rightKeys, other.Height())
		leftIndices, rightIndices = probe(leftKeys, df.Height(), rightKeys, index, opts.How == LeftJoin)
	case RightJoin:
		index := buildHashIndex(leftKeys, df.Height())
		rightIndices, leftIndices = probe(rightKeys, other.Height(), leftKeys, index, true)
	default:
		return nil, fmt.Errorf("unknown join type: %q", opts.How)
	}

	result, err := buildJoinResult(df, other, outputCols, mapping, leftIndices, rightIndices)
	if err != nil {
		return nil, err
	}

	slog.Debug("merge completed",
		slog.String("how", string(opts.How)),
		slog.Any("on", opts.On),
		slog.Int("left_rows", df.Height()),
		slog.Int("right_rows", other.Height()),
		slog.Int("result_rows", result.Height()),
	)

	return result, nil
}

func resolveJoinColumns(left, right *DataFrame, on []string) ([]*Series, []*Series, error) {
	seen := make(map[string]bool, len(on))
	leftKeys := make([]*Series, len(on))
	rightKeys := make([]*Series, len(on))
	for i, col := range on {
		if seen[col] {
			return nil, nil, fmt.Errorf("join column '%s' listed twice", col)
		}
		seen[col] = true
		if leftKeys[i] = left.ColumnByName(col); leftKeys[i] == nil {
			return nil, nil, fmt.Errorf("column '%s' not found in left DataFrame", col)
		}
		if rightKeys[i] = right.ColumnByName(col); rightKeys[i] == nil {
			return nil, nil, fmt.Errorf("column '%s' not found in right DataFrame", col)
		}
	}
	return leftKeys, rightKeys, nil
}

// ============================================================================
// Hashing
// ============================================================================

// joinHashSeed is a fixed seed so both sides of a join hash identically
var joinHashSeed = maphash.MakeSeed()

// hashIndex maps key hashes to row positions in ascending order
type hashIndex map[uint64][]int

func buildHashIndex(keyCols []*Series, height int) hashIndex {
	idx := make(hashIndex, height)
	var h maphash.Hash
	h.SetSeed(joinHashSeed)
	for row := 0; row < height; row++ {
		hash := computeRowHash(&h, keyCols, row)
		idx[hash] = append(idx[hash], row)
	}
	return idx
}

// probe walks the probe side in order and pairs each row with its matches on
// the build side. With keepUnmatched, rows without a match pair with -1.
func probe(probeKeys []*Series, probeHeight int, buildKeys []*Series, index hashIndex, keepUnmatched bool) ([]int, []int) {
	probeIndices := make([]int, 0, probeHeight)
	buildIndices := make([]int, 0, probeHeight)

	var h maphash.Hash
	h.SetSeed(joinHashSeed)
	for row := 0; row < probeHeight; row++ {
		matched := false
		for _, candidate := range index[computeRowHash(&h, probeKeys, row)] {
			if keysMatch(probeKeys, row, buildKeys, candidate) {
				probeIndices = append(probeIndices, row)
				buildIndices = append(buildIndices, candidate)
				matched = true
			}
		}
		if !matched && keepUnmatched {
			probeIndices = append(probeIndices, row)
			buildIndices = append(buildIndices, -1)
		}
	}
	return probeIndices, buildIndices
}

// computeRowHash hashes the key of one row. Values that compare equal across
// dtypes (Int64 vs Float64, String vs Categorical) hash identically.
func computeRowHash(h *maphash.Hash, cols []*Series, row int) uint64 {
	h.Reset()
	var buf [8]byte
	for _, col := range cols {
		if col.IsNull(row) {
			h.WriteByte(0)
			continue
		}
		switch col.DType() {
		case Float64, Int64:
			f, _ := col.GetFloat64(row)
			h.WriteByte(1)
			binary.LittleEndian.PutUint64(buf[:], normalizedFloatBits(f))
			h.Write(buf[:])
		case DateTime:
			h.WriteByte(2)
			binary.LittleEndian.PutUint64(buf[:], uint64(col.i64[row]))
			h.Write(buf[:])
		case String, Categorical:
			s, _ := col.GetString(row)
			h.WriteByte(3)
			binary.LittleEndian.PutUint64(buf[:], uint64(len(s)))
			h.Write(buf[:])
			h.WriteString(s)
		}
	}
	return h.Sum64()
}

func normalizedFloatBits(f float64) uint64 {
	switch {
	case f == 0:
		return 0 // -0 == +0
	case math.IsNaN(f):
		return math.Float64bits(math.NaN())
	default:
		return math.Float64bits(f)
	}
}

func keysMatch(leftCols []*Series, leftRow int, rightCols []*Series, rightRow int) bool {
	for i := range leftCols {
		if !valuesEqual(leftCols[i], leftRow, rightCols[i], rightRow) {
			return false
		}
	}
	return true
}

// valuesEqual compares values at specific rows by value, across dtypes of the
// same kind
func valuesEqual(left *Series, leftRow int, right *Series, rightRow int) bool {
	leftNull, rightNull := left.IsNull(leftRow), right.IsNull(rightRow)
	if leftNull || rightNull {
		return leftNull && rightNull
	}

	lt, rt := left.DType(), right.DType()
	switch {
	case lt == Int64 && rt == Int64:
		return left.i64[leftRow] == right.i64[rightRow]
	case lt.IsNumeric() && rt.IsNumeric():
		a, _ := left.GetFloat64(leftRow)
		b, _ := right.GetFloat64(rightRow)
		return a == b || (math.IsNaN(a) && math.IsNaN(b))
	case lt == DateTime && rt == DateTime:
		return left.i64[leftRow] == right.i64[rightRow]
	case lt.IsText() && rt.IsText():
		a, _ := left.GetString(leftRow)
		b, _ := right.GetString(rightRow)
		return a == b
	default:
		return false
	}
}

// ============================================================================
// Output
// ============================================================================

// colMapping tracks how to build output columns
type colMapping struct {
	fromLeft  bool
	srcCol    int
	isJoinKey bool
	rightKey  int // position of the matching key column in the right DataFrame
}

func resolveOutputColumns(left, right *DataFrame, on []string, suffix string) ([]string, []colMapping, error) {
	keySet := make(map[string]bool, len(on))
	for _, k := range on {
		keySet[k] = true
	}

	var outputCols []string
	var mapping []colMapping
	taken := make(map[string]bool, left.Width()+right.Width())

	// All left columns, keys in place
	for i, name := range left.ColumnNames() {
		m := colMapping{fromLeft: true, srcCol: i}
		if keySet[name] {
			m.isJoinKey = true
			m.rightKey = right.index[name]
		}
		outputCols = append(outputCols, name)
		mapping = append(mapping, m)
		taken[name] = true
	}

	// Right columns, excluding join keys
	for i, name := range right.ColumnNames() {
		if keySet[name] {
			continue
		}
		outputName := name
		if taken[outputName] {
			outputName = name + suffix
			if taken[outputName] {
				return nil, nil, fmt.Errorf("column '%s' collides with '%s' after adding suffix", name, outputName)
			}
		}
		outputCols = append(outputCols, outputName)
		mapping = append(mapping, colMapping{fromLeft: false, srcCol: i})
		taken[outputName] = true
	}

	return outputCols, mapping, nil
}

func buildJoinResult(left, right *DataFrame, outputCols []string, mapping []colMapping, leftIndices, rightIndices []int) (*DataFrame, error) {
	numRows := len(leftIndices)
	resultCols := make([]*Series, len(outputCols))

	build := func(colIdx int) {
		m := mapping[colIdx]
		name := outputCols[colIdx]
		switch {
		case m.isJoinKey:
			resultCols[colIdx] = coalesceKey(name, left.Column(m.srcCol), leftIndices, right.Column(m.rightKey), rightIndices)
		case m.fromLeft:
			resultCols[colIdx] = left.Column(m.srcCol).Take(leftIndices).Rename(name)
		default:
			resultCols[colIdx] = right.Column(m.srcCol).Take(rightIndices).Rename(name)
		}
	}

	cfg := GetParallelConfig()
	if cfg.shouldParallelize(numRows) && len(outputCols) > 1 {
		var g errgroup.Group
		g.SetLimit(cfg.numWorkers())
		for colIdx := range outputCols {
			g.Go(func() error {
				build(colIdx)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for colIdx := range outputCols {
			build(colIdx)
		}
	}

	result, err := NewDataFrame(resultCols...)
	if err != nil {
		return nil, err
	}
	if len(resultCols) == 0 {
		result.height = numRows
	}
	return result, nil
}

// coalesceKey builds an output key column: the left value where the row has a
// left side, otherwise the right value.
func coalesceKey(name string, left *Series, leftIndices []int, right *Series, rightIndices []int) *Series {
	allLeft := true
	for _, idx := range leftIndices {
		if idx < 0 {
			allLeft = false
			break
		}
	}
	if allLeft {
		return left.Take(leftIndices).Rename(name)
	}

	n := len(leftIndices)
	pick := func(i int) (*Series, int) {
		if leftIndices[i] >= 0 {
			return left, leftIndices[i]
		}
		return right, rightIndices[i]
	}
	valid := make([]bool, n)

	lt, rt := left.DType(), right.DType()
	switch {
	case lt == Categorical && rt == Categorical && stringsEqual(left.categories, right.categories):
		codes := make([]int32, n)
		for i := range codes {
			src, row := pick(i)
			codes[i] = src.codes[row]
		}
		return newSeriesCategoricalFromCodes(name, codes, left.categories)

	case lt == rt && (lt == Int64 || lt == DateTime):
		data := make([]int64, n)
		for i := range data {
			src, row := pick(i)
			if valid[i] = src.IsValid(row); valid[i] {
				data[i] = src.i64[row]
			}
		}
		if lt == DateTime {
			s := NewSeriesInt64WithNulls(name, data, valid)
			s.dtype = DateTime
			return s
		}
		return NewSeriesInt64WithNulls(name, data, valid)

	case lt.IsNumeric() && rt.IsNumeric():
		data := make([]float64, n)
		for i := range data {
			src, row := pick(i)
			data[i], valid[i] = src.GetFloat64(row)
		}
		return NewSeriesFloat64WithNulls(name, data, valid)

	default:
		data := make([]string, n)
		for i := range data {
			src, row := pick(i)
			if src.DType().IsText() {
				data[i], valid[i] = src.GetString(row)
			} else if v := src.Get(row); v != nil {
				data[i], valid[i] = fmt.Sprintf("%v", v), true
			}
		}
		return NewSeriesStringWithNulls(name, data, valid)
	}
}
