package jointab

import (
	"fmt"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// ============================================================================
// Arrow Export
// ============================================================================

var (
	arrowCategoricalType = &arrow.DictionaryType{
		IndexType: arrow.PrimitiveTypes.Int32,
		ValueType: arrow.BinaryTypes.String,
	}
	arrowTimestampType = &arrow.TimestampType{Unit: arrow.Nanosecond, TimeZone: "UTC"}
)

// ToArrow exports a DataFrame to an Arrow Record.
// The caller is responsible for calling Release() on the returned Record.
// Categorical columns become dictionary arrays over the full category
// domain, used or not.
func (df *DataFrame) ToArrow(mem memory.Allocator) (arrow.Record, error) {
	if mem == nil {
		mem = memory.DefaultAllocator
	}

	fields := make([]arrow.Field, df.Width())
	for i, col := range df.columns {
		arrowType, err := dtypeToArrowType(col.DType())
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col.Name(), err)
		}
		fields[i] = arrow.Field{Name: col.Name(), Type: arrowType, Nullable: true}
	}
	schema := arrow.NewSchema(fields, nil)

	arrays := make([]arrow.Array, df.Width())
	for i, col := range df.columns {
		arr, err := seriesToArrowArray(col, mem)
		if err != nil {
			for j := 0; j < i; j++ {
				arrays[j].Release()
			}
			return nil, fmt.Errorf("column %s: %w", col.Name(), err)
		}
		arrays[i] = arr
	}

	record := array.NewRecord(schema, arrays, int64(df.Height()))

	// Record retains the arrays
	for _, arr := range arrays {
		arr.Release()
	}

	return record, nil
}

// ToArrowTable exports a DataFrame to an Arrow Table.
// The caller is responsible for calling Release() on the returned Table.
func (df *DataFrame) ToArrowTable(mem memory.Allocator) (arrow.Table, error) {
	record, err := df.ToArrow(mem)
	if err != nil {
		return nil, err
	}
	defer record.Release()

	return array.NewTableFromRecords(record.Schema(), []arrow.Record{record}), nil
}

func dtypeToArrowType(dtype DType) (arrow.DataType, error) {
	switch dtype {
	case Float64:
		return arrow.PrimitiveTypes.Float64, nil
	case Int64:
		return arrow.PrimitiveTypes.Int64, nil
	case String:
		return arrow.BinaryTypes.String, nil
	case Categorical:
		return arrowCategoricalType, nil
	case DateTime:
		return arrowTimestampType, nil
	default:
		return nil, fmt.Errorf("unsupported dtype: %s", dtype)
	}
}

func seriesToArrowArray(s *Series, mem memory.Allocator) (arrow.Array, error) {
	var valid []bool
	if s.HasNulls() {
		valid = s.Valid()
	}

	switch s.DType() {
	case Float64:
		builder := array.NewFloat64Builder(mem)
		defer builder.Release()
		builder.AppendValues(s.f64, valid)
		return builder.NewArray(), nil

	case Int64:
		builder := array.NewInt64Builder(mem)
		defer builder.Release()
		builder.AppendValues(s.i64, valid)
		return builder.NewArray(), nil

	case DateTime:
		builder := array.NewTimestampBuilder(mem, arrowTimestampType)
		defer builder.Release()
		stamps := make([]arrow.Timestamp, s.Len())
		for i, v := range s.i64 {
			stamps[i] = arrow.Timestamp(v)
		}
		builder.AppendValues(stamps, valid)
		return builder.NewArray(), nil

	case String:
		builder := array.NewStringBuilder(mem)
		defer builder.Release()
		builder.AppendValues(s.Strings(), valid)
		return builder.NewArray(), nil

	case Categorical:
		dictBuilder := array.NewStringBuilder(mem)
		defer dictBuilder.Release()
		dictBuilder.AppendValues(s.categories, nil)
		dict := dictBuilder.NewArray()
		defer dict.Release()

		indexBuilder := array.NewInt32Builder(mem)
		defer indexBuilder.Release()
		indexBuilder.AppendValues(s.codes, valid)
		indices := indexBuilder.NewArray()
		defer indices.Release()

		return array.NewDictionaryArray(arrowCategoricalType, indices, dict), nil

	default:
		return nil, fmt.Errorf("unsupported dtype for Arrow export: %s", s.DType())
	}
}

// ============================================================================
// Arrow Import
// ============================================================================

// NewDataFrameFromArrow creates a DataFrame from an Arrow Record.
func NewDataFrameFromArrow(record arrow.Record) (*DataFrame, error) {
	if record == nil {
		return nil, fmt.Errorf("record is nil")
	}

	schema := record.Schema()
	numCols := int(record.NumCols())
	series := make([]*Series, numCols)

	for i := 0; i < numCols; i++ {
		field := schema.Field(i)
		s, err := arrowArrayToSeries(field.Name, record.Column(i))
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", field.Name, err)
		}
		series[i] = s
	}

	df, err := NewDataFrame(series...)
	if err != nil {
		return nil, err
	}
	if numCols == 0 {
		df.height = int(record.NumRows())
	}
	return df, nil
}

// NewDataFrameFromArrowTable creates a DataFrame from an Arrow Table.
// Chunked columns are concatenated.
func NewDataFrameFromArrowTable(table arrow.Table, mem memory.Allocator) (*DataFrame, error) {
	if table == nil {
		return nil, fmt.Errorf("table is nil")
	}
	if mem == nil {
		mem = memory.DefaultAllocator
	}

	schema := table.Schema()
	numCols := int(table.NumCols())
	series := make([]*Series, numCols)

	for i := 0; i < numCols; i++ {
		field := schema.Field(i)
		chunks := table.Column(i).Data().Chunks()

		var (
			s   *Series
			err error
		)
		if len(chunks) == 1 {
			s, err = arrowArrayToSeries(field.Name, chunks[0])
		} else {
			var combined arrow.Array
			if combined, err = array.Concatenate(chunks, mem); err == nil {
				s, err = arrowArrayToSeries(field.Name, combined)
				combined.Release()
			}
		}
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", field.Name, err)
		}
		series[i] = s
	}

	return NewDataFrame(series...)
}

func arrowValid(arr arrow.Array) []bool {
	if arr.NullN() == 0 {
		return nil
	}
	valid := make([]bool, arr.Len())
	for i := range valid {
		valid[i] = arr.IsValid(i)
	}
	return valid
}

func arrowArrayToSeries(name string, arr arrow.Array) (*Series, error) {
	valid := arrowValid(arr)

	switch a := arr.(type) {
	case *array.Float64:
		return NewSeriesFloat64WithNulls(name, a.Float64Values(), valid), nil

	case *array.Float32:
		data := make([]float64, a.Len())
		for i := range data {
			data[i] = float64(a.Value(i))
		}
		return NewSeriesFloat64WithNulls(name, data, valid), nil

	case *array.Int64:
		return NewSeriesInt64WithNulls(name, a.Int64Values(), valid), nil

	case *array.Int32:
		data := make([]int64, a.Len())
		for i := range data {
			data[i] = int64(a.Value(i))
		}
		return NewSeriesInt64WithNulls(name, data, valid), nil

	case *array.String:
		data := make([]string, a.Len())
		for i := range data {
			if a.IsValid(i) {
				data[i] = strings.Clone(a.Value(i))
			}
		}
		return NewSeriesStringWithNulls(name, data, valid), nil

	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		data := make([]time.Time, a.Len())
		for i := range data {
			if a.IsValid(i) {
				data[i] = a.Value(i).ToTime(unit)
			}
		}
		return NewSeriesDateTimeWithNulls(name, data, valid), nil

	case *array.Dictionary:
		dict, ok := a.Dictionary().(*array.String)
		if !ok {
			return nil, fmt.Errorf("unsupported dictionary value type: %T", a.Dictionary())
		}

		categories := make([]string, dict.Len())
		seen := make(map[string]bool, dict.Len())
		for i := range categories {
			categories[i] = strings.Clone(dict.Value(i))
			if seen[categories[i]] {
				return nil, fmt.Errorf("duplicate category: %q", categories[i])
			}
			seen[categories[i]] = true
		}

		codes := make([]int32, a.Len())
		for i := range codes {
			if a.IsNull(i) {
				codes[i] = -1
			} else {
				codes[i] = int32(a.GetValueIndex(i))
			}
		}
		return newSeriesCategoricalFromCodes(name, codes, categories), nil

	default:
		return nil, fmt.Errorf("unsupported Arrow array type: %T", arr)
	}
}
