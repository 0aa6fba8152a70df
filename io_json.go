package jointab

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/goccy/go-json"
)

// JSONFormat specifies the JSON layout
type JSONFormat int

const (
	// JSONRecords is an array of row objects: [{"a":1,"b":2}, {"a":3,"b":4}]
	JSONRecords JSONFormat = iota
	// JSONColumns is an object of column arrays: {"a":[1,3],"b":[2,4]}
	JSONColumns
)

// JSONReadOptions configures JSON reading behavior
type JSONReadOptions struct {
	Format      JSONFormat       // Expected format
	Columns     []string         // Column order; unlisted columns follow in name order
	ColumnTypes map[string]DType // Force column types
	Categorical []string         // Text columns to dictionary-encode
}

// DefaultJSONReadOptions returns default JSON reading options
func DefaultJSONReadOptions() JSONReadOptions {
	return JSONReadOptions{
		Format: JSONRecords,
	}
}

// ReadJSON reads a JSON file into a DataFrame
func ReadJSON(path string, opts ...JSONReadOptions) (*DataFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	return ReadJSONFromReader(f, opts...)
}

// ReadJSONFromReader reads JSON data from an io.Reader into a DataFrame
func ReadJSONFromReader(r io.Reader, opts ...JSONReadOptions) (*DataFrame, error) {
	opt := DefaultJSONReadOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}

	dec := json.NewDecoder(r)
	dec.UseNumber()

	// Both layouts end up as one value list per column
	var (
		values map[string][]interface{}
		height int
	)
	switch opt.Format {
	case JSONRecords:
		var records []map[string]interface{}
		if err := dec.Decode(&records); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
		height = len(records)
		values = make(map[string][]interface{})
		for i, record := range records {
			for key, val := range record {
				col, ok := values[key]
				if !ok {
					col = make([]interface{}, height)
					values[key] = col
				}
				col[i] = val
			}
		}

	case JSONColumns:
		if err := dec.Decode(&values); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
		first := true
		for name, col := range values {
			if !first && len(col) != height {
				return nil, fmt.Errorf("column '%s' has length %d, expected %d", name, len(col), height)
			}
			height, first = len(col), false
		}

	default:
		return nil, fmt.Errorf("unknown JSON format: %d", opt.Format)
	}

	names, err := jsonColumnOrder(values, opt.Columns)
	if err != nil {
		return nil, err
	}
	categorical := toSet(opt.Categorical)

	columns := make([]*Series, len(names))
	for i, name := range names {
		dtype, forced := opt.ColumnTypes[name]
		if !forced {
			dtype = inferJSONType(values[name])
		}
		if categorical[name] {
			if !dtype.IsText() {
				return nil, fmt.Errorf("categorical column '%s' holds %s values", name, dtype)
			}
			dtype = Categorical
		}

		col, err := buildJSONColumn(name, dtype, values[name])
		if err != nil {
			return nil, fmt.Errorf("failed to build column '%s': %w", name, err)
		}
		columns[i] = col
	}

	df, err := NewDataFrame(columns...)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		df.height = height
	}
	return df, nil
}

func jsonColumnOrder(values map[string][]interface{}, order []string) ([]string, error) {
	names := make([]string, 0, len(values))
	listed := make(map[string]bool, len(order))
	for _, name := range order {
		if _, ok := values[name]; !ok {
			return nil, fmt.Errorf("column '%s' not found", name)
		}
		if !listed[name] {
			names = append(names, name)
			listed[name] = true
		}
	}

	var rest []string
	for name := range values {
		if !listed[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(names, rest...), nil
}

// jsonNumber is json.Number as handed over by a decoder with UseNumber
type jsonNumber interface {
	Int64() (int64, error)
	Float64() (float64, error)
	String() string
}

func inferJSONType(values []interface{}) DType {
	dtype, found := String, false
	for _, val := range values {
		var t DType
		switch v := val.(type) {
		case nil:
			continue
		case jsonNumber:
			if _, err := v.Int64(); err == nil {
				t = Int64
			} else {
				t = Float64
			}
		default:
			return String
		}

		switch {
		case !found:
			dtype, found = t, true
		case dtype != t:
			dtype = Float64
		}
	}
	return dtype
}

func buildJSONColumn(name string, dtype DType, values []interface{}) (*Series, error) {
	n := len(values)
	valid := make([]bool, n)

	switch dtype {
	case Float64:
		data := make([]float64, n)
		for i, val := range values {
			if val == nil {
				continue
			}
			v, ok := val.(jsonNumber)
			if !ok {
				return nil, fmt.Errorf("row %d: expected number, got %T", i, val)
			}
			f, err := v.Float64()
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
			data[i], valid[i] = f, true
		}
		return NewSeriesFloat64WithNulls(name, data, valid), nil

	case Int64:
		data := make([]int64, n)
		for i, val := range values {
			if val == nil {
				continue
			}
			v, ok := val.(jsonNumber)
			if !ok {
				return nil, fmt.Errorf("row %d: expected number, got %T", i, val)
			}
			x, err := v.Int64()
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
			data[i], valid[i] = x, true
		}
		return NewSeriesInt64WithNulls(name, data, valid), nil

	case DateTime:
		data := make([]time.Time, n)
		for i, val := range values {
			if val == nil {
				continue
			}
			s, ok := val.(string)
			if !ok {
				return nil, fmt.Errorf("row %d: expected timestamp string, got %T", i, val)
			}
			t, err := parseTimestamp(s)
			if err != nil {
				return nil, fmt.Errorf("row %d: cannot parse '%s' as timestamp", i, s)
			}
			data[i], valid[i] = t, true
		}
		return NewSeriesDateTimeWithNulls(name, data, valid), nil

	case String, Categorical:
		data := make([]string, n)
		for i, val := range values {
			switch v := val.(type) {
			case nil:
				continue
			case string:
				data[i] = v
			case jsonNumber:
				data[i] = v.String()
			default:
				data[i] = fmt.Sprintf("%v", v)
			}
			valid[i] = true
		}
		if dtype == Categorical {
			return NewSeriesCategoricalWithNulls(name, data, valid), nil
		}
		return NewSeriesStringWithNulls(name, data, valid), nil

	default:
		return nil, fmt.Errorf("unsupported dtype: %s", dtype)
	}
}

// JSONWriteOptions configures JSON writing behavior
type JSONWriteOptions struct {
	Format JSONFormat // Output format
	Indent string     // Indent string (default "", no indent)
}

// DefaultJSONWriteOptions returns default JSON writing options
func DefaultJSONWriteOptions() JSONWriteOptions {
	return JSONWriteOptions{
		Format: JSONRecords,
		Indent: "",
	}
}

// WriteJSON writes a DataFrame to a JSON file
func (df *DataFrame) WriteJSON(path string, opts ...JSONWriteOptions) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := df.WriteJSONToWriter(w, opts...); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}

// WriteJSONToWriter writes a DataFrame to an io.Writer. Objects keep the
// DataFrame's column order.
func (df *DataFrame) WriteJSONToWriter(w io.Writer, opts ...JSONWriteOptions) error {
	opt := DefaultJSONWriteOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}

	var data interface{}
	switch opt.Format {
	case JSONRecords:
		records := make([]orderedObject, df.Height())
		for i := range records {
			record := make(orderedObject, len(df.columns))
			for j, col := range df.columns {
				record[j] = objectField{Key: col.Name(), Value: col.Get(i)}
			}
			records[i] = record
		}
		data = records

	case JSONColumns:
		object := make(orderedObject, len(df.columns))
		for j, col := range df.columns {
			vals := make([]interface{}, col.Len())
			for i := range vals {
				vals[i] = col.Get(i)
			}
			object[j] = objectField{Key: col.Name(), Value: vals}
		}
		data = object

	default:
		return fmt.Errorf("unknown JSON format: %d", opt.Format)
	}

	encoder := json.NewEncoder(w)
	if opt.Indent != "" {
		encoder.SetIndent("", opt.Indent)
	}
	return encoder.Encode(data)
}

type objectField struct {
	Key   string
	Value interface{}
}

// orderedObject marshals as a JSON object with its fields in slice order.
type orderedObject []objectField

func (o orderedObject) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, field := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(field.Key)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(field.Value)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.Key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
