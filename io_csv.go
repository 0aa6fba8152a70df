package jointab

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// CSVReadOptions configures CSV reading behavior
type CSVReadOptions struct {
	Delimiter   rune             // Field delimiter (default ',')
	HasHeader   bool             // First row is header (default true)
	ColumnNames []string         // Override column names
	ColumnTypes map[string]DType // Force column types
	Categorical []string         // Text columns to dictionary-encode
	InferTypes  bool             // Auto-detect types (default true)
	NullValues  []string         // Strings to treat as null
	MaxRows     int              // Max rows to read (0 = unlimited)
	TrimSpace   bool             // Trim whitespace from values
}

// DefaultCSVReadOptions returns default CSV reading options
func DefaultCSVReadOptions() CSVReadOptions {
	return CSVReadOptions{
		Delimiter:  ',',
		HasHeader:  true,
		InferTypes: true,
		NullValues: []string{"", "null", "NULL", "NA", "N/A", "nan", "NaN"},
		TrimSpace:  true,
	}
}

// ReadCSV reads a CSV file into a DataFrame
func ReadCSV(path string, opts ...CSVReadOptions) (*DataFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	return ReadCSVFromReader(f, opts...)
}

// ReadCSVFromReader reads CSV data from an io.Reader into a DataFrame
func ReadCSVFromReader(r io.Reader, opts ...CSVReadOptions) (*DataFrame, error) {
	opt := DefaultCSVReadOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}

	reader := csv.NewReader(r)
	reader.Comma = opt.Delimiter
	reader.TrimLeadingSpace = opt.TrimSpace
	reader.FieldsPerRecord = -1

	// Read header
	var headers []string
	if opt.HasHeader {
		var err error
		headers, err = reader.Read()
		if err == io.EOF {
			return NewDataFrame()
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read header: %w", err)
		}
	}
	if len(opt.ColumnNames) > 0 {
		headers = opt.ColumnNames
	}

	// Read all data
	var records [][]string
	for opt.MaxRows <= 0 || len(records) < opt.MaxRows {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", len(records), err)
		}
		if opt.TrimSpace {
			for i := range record {
				record[i] = strings.TrimSpace(record[i])
			}
		}

		// Generate headers if needed
		if headers == nil {
			headers = make([]string, len(record))
			for i := range record {
				headers[i] = fmt.Sprintf("column_%d", i)
			}
		}

		records = append(records, record)
	}

	categorical := toSet(opt.Categorical)
	for name := range categorical {
		if !containsString(headers, name) {
			return nil, fmt.Errorf("categorical column '%s' not found", name)
		}
	}

	// Infer or use specified types
	colTypes := make([]DType, len(headers))
	for i, name := range headers {
		switch dtype, forced := opt.ColumnTypes[name]; {
		case forced:
			colTypes[i] = dtype
		case opt.InferTypes:
			colTypes[i] = inferColumnType(records, i, opt.NullValues)
		default:
			colTypes[i] = String
		}
		if categorical[name] {
			if !colTypes[i].IsText() {
				return nil, fmt.Errorf("categorical column '%s' holds %s values", name, colTypes[i])
			}
			colTypes[i] = Categorical
		}
	}

	// Build columns (in parallel for large datasets)
	columns := make([]*Series, len(headers))
	var g errgroup.Group
	if cfg := GetParallelConfig(); cfg.shouldParallelize(len(records)) {
		g.SetLimit(cfg.numWorkers())
	} else {
		g.SetLimit(1)
	}
	for i, name := range headers {
		g.Go(func() error {
			s, err := buildColumn(name, colTypes[i], records, i, opt.NullValues)
			if err != nil {
				return fmt.Errorf("failed to build column '%s': %w", name, err)
			}
			columns[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return NewDataFrame(columns...)
}

func inferColumnType(records [][]string, colIdx int, nullValues []string) DType {
	hasInt := false
	hasFloat := false
	hasTime := false
	hasString := false

	for _, record := range records {
		if colIdx >= len(record) {
			continue
		}
		val := record[colIdx]
		if isNull(val, nullValues) {
			continue
		}

		if _, err := strconv.ParseInt(val, 10, 64); err == nil {
			hasInt = true
			continue
		}
		if _, err := strconv.ParseFloat(val, 64); err == nil {
			hasFloat = true
			continue
		}
		if _, err := parseTimestamp(val); err == nil {
			hasTime = true
			continue
		}

		hasString = true
	}

	// Priority: string > time > float > int
	switch {
	case hasString, hasTime && (hasInt || hasFloat):
		return String
	case hasTime:
		return DateTime
	case hasFloat:
		return Float64
	case hasInt:
		return Int64
	default:
		return String
	}
}

func parseTimestamp(val string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, val); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(time.DateOnly, val)
}

func buildColumn(name string, dtype DType, records [][]string, colIdx int, nullValues []string) (*Series, error) {
	n := len(records)
	valid := make([]bool, n)
	cell := func(i int) (string, bool) {
		if colIdx >= len(records[i]) {
			return "", false
		}
		val := records[i][colIdx]
		return val, !isNull(val, nullValues)
	}

	switch dtype {
	case Float64:
		data := make([]float64, n)
		for i := range records {
			val, ok := cell(i)
			if !ok {
				continue
			}
			f, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: cannot parse '%s' as float64", i, val)
			}
			data[i], valid[i] = f, true
		}
		return NewSeriesFloat64WithNulls(name, data, valid), nil

	case Int64:
		data := make([]int64, n)
		for i := range records {
			val, ok := cell(i)
			if !ok {
				continue
			}
			v, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: cannot parse '%s' as int64", i, val)
			}
			data[i], valid[i] = v, true
		}
		return NewSeriesInt64WithNulls(name, data, valid), nil

	case DateTime:
		data := make([]time.Time, n)
		for i := range records {
			val, ok := cell(i)
			if !ok {
				continue
			}
			t, err := parseTimestamp(val)
			if err != nil {
				return nil, fmt.Errorf("row %d: cannot parse '%s' as timestamp", i, val)
			}
			data[i], valid[i] = t, true
		}
		return NewSeriesDateTimeWithNulls(name, data, valid), nil

	case String, Categorical:
		data := make([]string, n)
		for i := range records {
			data[i], valid[i] = cell(i)
		}
		if dtype == Categorical {
			return NewSeriesCategoricalWithNulls(name, data, valid), nil
		}
		return NewSeriesStringWithNulls(name, data, valid), nil

	default:
		return nil, fmt.Errorf("unsupported dtype: %s", dtype)
	}
}

func isNull(val string, nullValues []string) bool {
	for _, nv := range nullValues {
		if val == nv {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// CSVWriteOptions configures CSV writing behavior
type CSVWriteOptions struct {
	Delimiter   rune   // Field delimiter (default ',')
	WriteHeader bool   // Write header row (default true)
	NullString  string // String to write for null values (default "")
}

// DefaultCSVWriteOptions returns default CSV writing options
func DefaultCSVWriteOptions() CSVWriteOptions {
	return CSVWriteOptions{
		Delimiter:   ',',
		WriteHeader: true,
		NullString:  "",
	}
}

// WriteCSV writes a DataFrame to a CSV file
func (df *DataFrame) WriteCSV(path string, opts ...CSVWriteOptions) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := df.WriteCSVToWriter(w, opts...); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}

// WriteCSVToWriter writes a DataFrame to an io.Writer
func (df *DataFrame) WriteCSVToWriter(w io.Writer, opts ...CSVWriteOptions) error {
	opt := DefaultCSVWriteOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}

	writer := csv.NewWriter(w)
	writer.Comma = opt.Delimiter

	if opt.WriteHeader {
		if err := writer.Write(df.ColumnNames()); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	row := make([]string, df.Width())
	for i := 0; i < df.Height(); i++ {
		for j, col := range df.columns {
			val := col.Get(i)
			if val == nil {
				row[j] = opt.NullString
			} else {
				row[j] = formatValue(val)
			}
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(val, 10)
	case string:
		return val
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("%v", val)
	}
}
