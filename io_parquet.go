package jointab

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/format"
	"golang.org/x/sync/errgroup"
	"howett.net/ranger"
)

// parquetSchemaKey is the key-value metadata entry that records column order,
// dtypes and category domains, which the parquet schema alone does not keep.
const parquetSchemaKey = "jointab.schema"

type parquetColumnMeta struct {
	Name       string   `json:"name"`
	DType      string   `json:"dtype"`
	Categories []string `json:"categories,omitempty"`
}

// ParquetReadOptions configures Parquet reading behavior
type ParquetReadOptions struct {
	Columns []string // Only read these columns (nil = all)
	MaxRows int      // Max rows to read (0 = unlimited)
}

// DefaultParquetReadOptions returns default Parquet reading options
func DefaultParquetReadOptions() ParquetReadOptions {
	return ParquetReadOptions{}
}

// ReadParquet reads a Parquet file into a DataFrame
func ReadParquet(path string, opts ...ParquetReadOptions) (*DataFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	return ReadParquetFromReader(f, stat.Size(), opts...)
}

// ReadParquetURL reads a Parquet file served over HTTP. Only the byte ranges
// the reader needs are fetched, so the server must support range requests.
func ReadParquetURL(rawURL string, opts ...ParquetReadOptions) (*DataFrame, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	reader, err := ranger.NewReader(&ranger.HTTPRanger{URL: parsedURL})
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP reader: %w", err)
	}
	length, err := reader.Length()
	if err != nil {
		return nil, fmt.Errorf("failed to get HTTP content length: %w", err)
	}

	return ReadParquetFromReader(reader, length, opts...)
}

// parquetColumn collects the values of one column while reading
type parquetColumn struct {
	name       string
	dtype      DType
	index      int
	unit       time.Duration // timestamp unit, DateTime only
	categories []string

	f64   []float64
	i64   []int64
	str   []string
	valid []bool
}

// ReadParquetFromReader reads Parquet data from an io.ReaderAt into a DataFrame
func ReadParquetFromReader(r io.ReaderAt, size int64, opts ...ParquetReadOptions) (*DataFrame, error) {
	opt := DefaultParquetReadOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}

	pf, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}

	meta, err := readParquetMeta(pf)
	if err != nil {
		return nil, err
	}
	metaByName := make(map[string]parquetColumnMeta, len(meta))
	for _, m := range meta {
		metaByName[m.Name] = m
	}

	colNames := opt.Columns
	if len(colNames) == 0 {
		for _, m := range meta {
			colNames = append(colNames, m.Name)
		}
	}
	if len(colNames) == 0 {
		for _, f := range pf.Schema().Fields() {
			colNames = append(colNames, f.Name())
		}
	}

	templates := make([]parquetColumn, len(colNames))
	for i, name := range colNames {
		leaf, ok := pf.Schema().Lookup(name)
		if !ok {
			return nil, fmt.Errorf("column '%s' not found in parquet file", name)
		}
		col, err := parquetColumnOf(name, leaf, metaByName)
		if err != nil {
			return nil, err
		}
		templates[i] = col
	}

	// Only read the row groups needed to reach MaxRows
	rowGroups := pf.RowGroups()
	if opt.MaxRows > 0 {
		var rows int64
		for i, rg := range rowGroups {
			rows += rg.NumRows()
			if rows >= int64(opt.MaxRows) {
				rowGroups = rowGroups[:i+1]
				break
			}
		}
	}

	perGroup := make([][]parquetColumn, len(rowGroups))
	var g errgroup.Group
	if cfg := GetParallelConfig(); cfg.shouldParallelize(int(pf.NumRows())) && len(rowGroups) > 1 {
		g.SetLimit(cfg.numWorkers())
	} else {
		g.SetLimit(1)
	}
	for idx, rg := range rowGroups {
		g.Go(func() error {
			cols, err := readParquetRowGroup(rg, templates)
			if err != nil {
				return fmt.Errorf("row group %d: %w", idx, err)
			}
			perGroup[idx] = cols
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	columns := make([]*Series, len(templates))
	for i := range templates {
		merged := templates[i]
		for _, cols := range perGroup {
			merged.f64 = append(merged.f64, cols[i].f64...)
			merged.i64 = append(merged.i64, cols[i].i64...)
			merged.str = append(merged.str, cols[i].str...)
			merged.valid = append(merged.valid, cols[i].valid...)
		}
		s, err := merged.series()
		if err != nil {
			return nil, fmt.Errorf("failed to build column '%s': %w", merged.name, err)
		}
		columns[i] = s
	}

	df, err := NewDataFrame(columns...)
	if err != nil {
		return nil, err
	}
	if opt.MaxRows > 0 && df.Height() > opt.MaxRows {
		df = df.Head(opt.MaxRows)
	}
	return df, nil
}

func readParquetMeta(pf *parquet.File) ([]parquetColumnMeta, error) {
	raw, ok := pf.Lookup(parquetSchemaKey)
	if !ok {
		return nil, nil
	}
	var columns []parquetColumnMeta
	if err := json.Unmarshal([]byte(raw), &columns); err != nil {
		return nil, fmt.Errorf("failed to parse %s metadata: %w", parquetSchemaKey, err)
	}
	return columns, nil
}

func parquetColumnOf(name string, leaf parquet.LeafColumn, meta map[string]parquetColumnMeta) (parquetColumn, error) {
	col := parquetColumn{name: name, index: leaf.ColumnIndex}
	typ := leaf.Node.Type()

	switch typ.Kind() {
	case parquet.Double, parquet.Float:
		col.dtype = Float64
	case parquet.Int32, parquet.Int64:
		col.dtype = Int64
		if lt := typ.LogicalType(); lt != nil && lt.Timestamp != nil {
			col.dtype = DateTime
			col.unit = timestampUnit(lt.Timestamp.Unit)
		}
	case parquet.ByteArray, parquet.FixedLenByteArray:
		col.dtype = String
	default:
		return col, fmt.Errorf("column '%s': unsupported parquet type %s", name, typ)
	}

	if m, ok := meta[name]; ok && m.DType == Categorical.String() {
		if col.dtype != String {
			return col, fmt.Errorf("column '%s': categorical metadata on %s column", name, typ)
		}
		col.dtype = Categorical
		col.categories = m.Categories
		if col.categories == nil {
			col.categories = []string{}
		}
	}
	return col, nil
}

func timestampUnit(unit format.TimeUnit) time.Duration {
	switch {
	case unit.Millis != nil:
		return time.Millisecond
	case unit.Micros != nil:
		return time.Microsecond
	default:
		return time.Nanosecond
	}
}

func readParquetRowGroup(rg parquet.RowGroup, templates []parquetColumn) ([]parquetColumn, error) {
	cols := make([]parquetColumn, len(templates))
	byIndex := make(map[int]int, len(templates))
	for i, t := range templates {
		cols[i] = parquetColumn{name: t.name, dtype: t.dtype, index: t.index}
		byIndex[t.index] = i
	}

	rows := rg.Rows()
	defer rows.Close()

	rowBuf := make([]parquet.Row, 1000)
	for {
		n, err := rows.ReadRows(rowBuf)
		for _, row := range rowBuf[:n] {
			seen := make([]bool, len(cols))
			for _, v := range row {
				i, ok := byIndex[v.Column()]
				if !ok || seen[i] {
					continue
				}
				seen[i] = true
				cols[i].append(v)
			}
			for i := range cols {
				if !seen[i] {
					cols[i].append(parquet.NullValue())
				}
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read rows: %w", err)
		}
		if n == 0 {
			break
		}
	}
	return cols, nil
}

func (c *parquetColumn) append(v parquet.Value) {
	null := v.IsNull()
	c.valid = append(c.valid, !null)

	switch c.dtype {
	case Float64:
		var f float64
		if !null {
			if v.Kind() == parquet.Float {
				f = float64(v.Float())
			} else {
				f = v.Double()
			}
		}
		c.f64 = append(c.f64, f)
	case Int64, DateTime:
		var i int64
		if !null {
			if v.Kind() == parquet.Int32 {
				i = int64(v.Int32())
			} else {
				i = v.Int64()
			}
		}
		c.i64 = append(c.i64, i)
	case String, Categorical:
		var s string
		if !null {
			s = string(v.ByteArray())
		}
		c.str = append(c.str, s)
	}
}

func (c *parquetColumn) series() (*Series, error) {
	switch c.dtype {
	case Float64:
		return NewSeriesFloat64WithNulls(c.name, c.f64, c.valid), nil
	case Int64:
		return NewSeriesInt64WithNulls(c.name, c.i64, c.valid), nil
	case DateTime:
		times := make([]time.Time, len(c.i64))
		for i, v := range c.i64 {
			times[i] = time.Unix(0, v*int64(c.unit)).UTC()
		}
		return NewSeriesDateTimeWithNulls(c.name, times, c.valid), nil
	case String:
		return NewSeriesStringWithNulls(c.name, c.str, c.valid), nil
	case Categorical:
		s := NewSeriesCategoricalWithNulls(c.name, c.str, c.valid)
		for _, v := range s.Categories() {
			if !containsString(c.categories, v) {
				return nil, fmt.Errorf("value %q is not a recorded category", v)
			}
		}
		return s.SetCategories(c.categories)
	default:
		return nil, fmt.Errorf("unsupported dtype: %s", c.dtype)
	}
}

// ParquetWriteOptions configures Parquet writing behavior
type ParquetWriteOptions struct {
	Compression  string // "snappy", "gzip", "zstd", "none" (default "snappy")
	RowGroupSize int    // Rows per row group (default 1000000)
}

// DefaultParquetWriteOptions returns default Parquet writing options
func DefaultParquetWriteOptions() ParquetWriteOptions {
	return ParquetWriteOptions{
		Compression:  "snappy",
		RowGroupSize: 1000000,
	}
}

// WriteParquet writes a DataFrame to a Parquet file
func (df *DataFrame) WriteParquet(path string, opts ...ParquetWriteOptions) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if err := df.WriteParquetToWriter(f, opts...); err != nil {
		return err
	}
	return f.Close()
}

// WriteParquetToWriter writes a DataFrame to an io.Writer. Every column is
// optional; categorical columns are dictionary encoded and keep their full
// category domain in the file metadata.
func (df *DataFrame) WriteParquetToWriter(w io.Writer, opts ...ParquetWriteOptions) error {
	opt := DefaultParquetWriteOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}

	if df.Width() == 0 {
		return fmt.Errorf("cannot write a DataFrame without columns to parquet")
	}

	group := make(parquet.Group)
	meta := make([]parquetColumnMeta, len(df.columns))
	for i, col := range df.columns {
		group[col.Name()] = parquet.Optional(dtypeToParquetNode(col.DType()))
		meta[i] = parquetColumnMeta{Name: col.Name(), DType: col.DType().String(), Categories: col.Categories()}
	}
	schema := parquet.NewSchema("dataframe", group)

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode schema metadata: %w", err)
	}

	writerOpts := []parquet.WriterOption{
		schema,
		parquet.KeyValueMetadata(parquetSchemaKey, string(metaJSON)),
	}
	switch opt.Compression {
	case "snappy":
		writerOpts = append(writerOpts, parquet.Compression(&parquet.Snappy))
	case "gzip":
		writerOpts = append(writerOpts, parquet.Compression(&parquet.Gzip))
	case "zstd":
		writerOpts = append(writerOpts, parquet.Compression(&parquet.Zstd))
	case "none", "":
	default:
		return fmt.Errorf("unknown compression: %s", opt.Compression)
	}

	// Group fields are stored sorted by name; map each column to its leaf
	leaves := make([]int, len(df.columns))
	for j, col := range df.columns {
		leaf, ok := schema.Lookup(col.Name())
		if !ok {
			return fmt.Errorf("column '%s' missing from parquet schema", col.Name())
		}
		leaves[j] = leaf.ColumnIndex
	}

	pw := parquet.NewWriter(w, writerOpts...)

	height := df.Height()
	width := df.Width()
	batchSize := 1000

	rows := make([]parquet.Row, 0, batchSize)
	for i := 0; i < height; i++ {
		row := make(parquet.Row, width)
		for j, col := range df.columns {
			row[leaves[j]] = toParquetValue(col, i).Level(0, definitionLevel(col, i), leaves[j])
		}
		rows = append(rows, row)

		if len(rows) >= batchSize {
			if _, err := pw.WriteRows(rows); err != nil {
				return fmt.Errorf("failed to write rows at %d: %w", i-len(rows)+1, err)
			}
			rows = rows[:0]
		}
		if opt.RowGroupSize > 0 && (i+1)%opt.RowGroupSize == 0 {
			if _, err := pw.WriteRows(rows); err != nil {
				return fmt.Errorf("failed to write rows at %d: %w", i-len(rows)+1, err)
			}
			rows = rows[:0]
			if err := pw.Flush(); err != nil {
				return fmt.Errorf("failed to flush row group: %w", err)
			}
		}
	}

	if len(rows) > 0 {
		if _, err := pw.WriteRows(rows); err != nil {
			return fmt.Errorf("failed to write final rows: %w", err)
		}
	}

	return pw.Close()
}

func dtypeToParquetNode(dtype DType) parquet.Node {
	switch dtype {
	case Float64:
		return parquet.Leaf(parquet.DoubleType)
	case Int64:
		return parquet.Int(64)
	case Categorical:
		return parquet.Encoded(parquet.String(), &parquet.RLEDictionary)
	case DateTime:
		return parquet.Timestamp(parquet.Nanosecond)
	default:
		return parquet.String()
	}
}

func definitionLevel(col *Series, i int) int {
	if col.IsNull(i) {
		return 0
	}
	return 1
}

func toParquetValue(col *Series, i int) parquet.Value {
	if col.IsNull(i) {
		return parquet.NullValue()
	}

	switch col.DType() {
	case Float64:
		return parquet.DoubleValue(col.f64[i])
	case Int64, DateTime:
		return parquet.Int64Value(col.i64[i])
	default:
		s, _ := col.GetString(i)
		return parquet.ByteArrayValue([]byte(s))
	}
}
