package jointab

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// DisplayConfig controls how DataFrames are formatted when printed.
type DisplayConfig struct {
	// MaxRows is the maximum number of rows to display.
	// If the DataFrame has more rows, it shows head and tail rows with "…" in between.
	// Default: 10 (5 head + 5 tail)
	MaxRows int

	// MaxCols is the maximum number of columns to display.
	// Default: 10
	MaxCols int

	// MaxColWidth is the maximum width for column content.
	// Default: 25
	MaxColWidth int

	// MinColWidth is the minimum column width for alignment.
	// Default: 8
	MinColWidth int

	// FloatPrecision is the number of decimal places for float values
	// without a column format.
	// Default: 4
	FloatPrecision int

	// ShowDTypes controls whether to display data types under column names.
	// Default: true
	ShowDTypes bool

	// ShowShape controls whether to display the shape (rows × columns) header.
	// Default: true
	ShowShape bool

	// TableStyle controls the table border style.
	// Options: "rounded", "sharp", "ascii", "minimal"
	// Default: "rounded"
	TableStyle string

	// Formats maps column names to number formats such as "{:,.2f}".
	// See FormatNumber.
	Formats map[string]string

	// Locale picks the decimal and grouping separators of Formats.
	// Default: English
	Locale language.Tag
}

type tableChars struct {
	topLeft, topRight, bottomLeft, bottomRight string
	horizontal, vertical                       string
	topT, bottomT, leftT, rightT, cross        string
}

var tableStyles = map[string]tableChars{
	"rounded": {
		topLeft: "╭", topRight: "╮", bottomLeft: "╰", bottomRight: "╯",
		horizontal: "─", vertical: "│",
		topT: "┬", bottomT: "┴", leftT: "├", rightT: "┤", cross: "┼",
	},
	"sharp": {
		topLeft: "┌", topRight: "┐", bottomLeft: "└", bottomRight: "┘",
		horizontal: "─", vertical: "│",
		topT: "┬", bottomT: "┴", leftT: "├", rightT: "┤", cross: "┼",
	},
	"ascii": {
		topLeft: "+", topRight: "+", bottomLeft: "+", bottomRight: "+",
		horizontal: "-", vertical: "|",
		topT: "+", bottomT: "+", leftT: "+", rightT: "+", cross: "+",
	},
	"minimal": {
		topLeft: " ", topRight: " ", bottomLeft: " ", bottomRight: " ",
		horizontal: "─", vertical: " ",
		topT: " ", bottomT: " ", leftT: " ", rightT: " ", cross: " ",
	},
}

// DefaultDisplayConfig returns the default display configuration.
func DefaultDisplayConfig() DisplayConfig {
	return DisplayConfig{
		MaxRows:        10,
		MaxCols:        10,
		MaxColWidth:    25,
		MinColWidth:    8,
		FloatPrecision: 4,
		ShowDTypes:     true,
		ShowShape:      true,
		TableStyle:     "rounded",
		Locale:         language.English,
	}
}

var (
	globalDisplayConfig = DefaultDisplayConfig()
	displayConfigMu     sync.RWMutex
)

// SetDisplayConfig sets the global display configuration.
func SetDisplayConfig(cfg DisplayConfig) {
	displayConfigMu.Lock()
	defer displayConfigMu.Unlock()
	globalDisplayConfig = cfg
}

// GetDisplayConfig returns the current global display configuration.
func GetDisplayConfig() DisplayConfig {
	displayConfigMu.RLock()
	defer displayConfigMu.RUnlock()
	return globalDisplayConfig
}

// SetTableStyle sets the table border style. Unknown styles are ignored.
func SetTableStyle(style string) {
	displayConfigMu.Lock()
	defer displayConfigMu.Unlock()
	if _, ok := tableStyles[style]; ok {
		globalDisplayConfig.TableStyle = style
	}
}

// ============================================================================
// Number formats
// ============================================================================

// FormatNumber renders v with a number format: literal text around a single
// "{:spec}" field, where spec is [,][.precision][f|d|%]. "," groups
// thousands, "d" rounds to an integer and "%" multiplies by 100. Without a
// type the shortest exact decimal is used. Separators follow English.
//
//	FormatNumber("{:,.2f}", 1234.5)  // "1,234.50"
//	FormatNumber("${:,d}", 1234.5)   // "$1,235"
//	FormatNumber("{:.1%}", 0.25)     // "25.0%"
func FormatNumber(format string, v float64) (string, error) {
	return FormatNumberIn(language.English, format, v)
}

// FormatNumberIn is FormatNumber with the decimal and grouping separators
// of tag.
func FormatNumberIn(tag language.Tag, format string, v float64) (string, error) {
	start := strings.Index(format, "{")
	end := strings.Index(format, "}")
	if start < 0 || end < start {
		return "", fmt.Errorf("format %q has no {} field", format)
	}
	prefix, spec, suffix := format[:start], format[start+1:end], format[end+1:]
	if strings.ContainsAny(suffix, "{}") {
		return "", fmt.Errorf("format %q has more than one field", format)
	}

	spec = strings.TrimPrefix(spec, ":")
	grouping := strings.HasPrefix(spec, ",")
	spec = strings.TrimPrefix(spec, ",")

	precision := -1
	var kind byte
	if n := len(spec); n > 0 && strings.IndexByte("fd%", spec[n-1]) >= 0 {
		kind = spec[n-1]
		spec = spec[:n-1]
	}
	if strings.HasPrefix(spec, ".") {
		p, err := strconv.Atoi(spec[1:])
		if err != nil || p < 0 {
			return "", fmt.Errorf("format %q has a bad precision", format)
		}
		precision = p
	} else if spec != "" {
		return "", fmt.Errorf("format %q has an unsupported spec", format)
	}

	var opts []number.Option
	if !grouping {
		opts = append(opts, number.NoSeparator())
	}

	var formatted number.Formatter
	switch kind {
	case 0:
		if precision < 0 {
			precision = fractionDigits(v)
		}
		formatted = number.Decimal(v, append(opts, number.Scale(precision))...)
	case 'f':
		if precision < 0 {
			precision = 6
		}
		formatted = number.Decimal(v, append(opts, number.Scale(precision))...)
	case 'd':
		if precision >= 0 {
			return "", fmt.Errorf("format %q: precision not allowed with d", format)
		}
		formatted = number.Decimal(math.Round(v), append(opts, number.Scale(0))...)
	case '%':
		if precision < 0 {
			precision = 6
		}
		formatted = number.Percent(v, append(opts, number.Scale(precision))...)
	}

	return prefix + message.NewPrinter(tag).Sprint(formatted) + suffix, nil
}

// fractionDigits is the number of decimals in the shortest exact
// representation of v.
func fractionDigits(v float64) int {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		return len(s) - dot - 1
	}
	return 0
}

// ============================================================================
// Tables
// ============================================================================

// formatDisplayValue formats a value for display. format is the column's
// number format, if any.
func formatDisplayValue(val interface{}, format string, cfg DisplayConfig) string {
	var s string
	switch v := val.(type) {
	case nil:
		s = "null"
	case float64:
		s = formatDisplayNumber(v, format, cfg)
	case int64:
		if format == "" {
			s = strconv.FormatInt(v, 10)
		} else {
			s = formatDisplayNumber(float64(v), format, cfg)
		}
	case string:
		s = v
	case time.Time:
		s = v.Format(time.RFC3339)
	default:
		s = fmt.Sprintf("%v", v)
	}

	return truncate(s, cfg.MaxColWidth)
}

func formatDisplayNumber(v float64, format string, cfg DisplayConfig) string {
	if format != "" {
		tag := cfg.Locale
		if tag == language.Und {
			tag = language.English
		}
		if s, err := FormatNumberIn(tag, format, v); err == nil {
			return s
		}
	}
	return strconv.FormatFloat(v, 'f', cfg.FloatPrecision, 64)
}

func truncate(s string, width int) string {
	if width < 4 || utf8.RuneCountInString(s) <= width {
		return s
	}
	runes := []rune(s)
	return string(runes[:width-3]) + "..."
}

func displayWidth(s string) int {
	return utf8.RuneCountInString(s)
}

func pad(s string, width int, right bool) string {
	n := width - displayWidth(s)
	if n <= 0 {
		return s
	}
	if right {
		return strings.Repeat(" ", n) + s
	}
	return s + strings.Repeat(" ", n)
}

// visibleIndices returns the positions to show out of n, with -1 marking the
// elided middle.
func visibleIndices(n, limit int) []int {
	if n <= limit {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}
	head := limit / 2
	tail := limit - head
	out := make([]int, 0, limit+1)
	for i := 0; i < head; i++ {
		out = append(out, i)
	}
	out = append(out, -1)
	for i := n - tail; i < n; i++ {
		out = append(out, i)
	}
	return out
}

func calculateColumnWidths(df *DataFrame, cfg DisplayConfig, rowIndices []int) []int {
	widths := make([]int, len(df.columns))

	for i, col := range df.columns {
		widths[i] = displayWidth(col.Name())

		if cfg.ShowDTypes {
			if n := displayWidth(col.DType().String()); n > widths[i] {
				widths[i] = n
			}
		}

		for _, rowIdx := range rowIndices {
			if rowIdx < 0 {
				continue
			}
			valStr := formatDisplayValue(col.Get(rowIdx), cfg.Formats[col.Name()], cfg)
			if n := displayWidth(valStr); n > widths[i] {
				widths[i] = n
			}
		}

		if widths[i] < cfg.MinColWidth {
			widths[i] = cfg.MinColWidth
		}
		if widths[i] > cfg.MaxColWidth {
			widths[i] = cfg.MaxColWidth
		}
	}

	return widths
}

// String formats the DataFrame with the global display configuration.
func (df *DataFrame) String() string {
	return df.StringWithConfig(GetDisplayConfig())
}

// StringWithConfig formats the DataFrame using the provided configuration.
func (df *DataFrame) StringWithConfig(cfg DisplayConfig) string {
	if len(df.columns) == 0 {
		return fmt.Sprintf("DataFrame(empty, %d rows)", df.height)
	}

	chars, ok := tableStyles[cfg.TableStyle]
	if !ok {
		chars = tableStyles["rounded"]
	}

	var sb strings.Builder

	if cfg.ShowShape {
		sb.WriteString(fmt.Sprintf("shape: (%d, %d)\n", df.height, len(df.columns)))
	}

	colIndices := visibleIndices(len(df.columns), cfg.MaxCols)
	rowIndices := visibleIndices(df.height, cfg.MaxRows)

	allWidths := calculateColumnWidths(df, cfg, rowIndices)
	colWidths := make([]int, len(colIndices))
	for i, colIdx := range colIndices {
		if colIdx == -1 {
			colWidths[i] = 3
		} else {
			colWidths[i] = allWidths[colIdx]
		}
	}

	border := func(left, mid, right string) {
		sb.WriteString(left)
		for i, w := range colWidths {
			if i > 0 {
				sb.WriteString(mid)
			}
			sb.WriteString(strings.Repeat(chars.horizontal, w+2))
		}
		sb.WriteString(right)
	}
	line := func(cell func(i, colIdx int) (string, bool)) {
		sb.WriteString(chars.vertical)
		for i, colIdx := range colIndices {
			text, right := cell(i, colIdx)
			sb.WriteString(" " + pad(truncate(text, colWidths[i]), colWidths[i], right) + " ")
			sb.WriteString(chars.vertical)
		}
		sb.WriteString("\n")
	}

	border(chars.topLeft, chars.topT, chars.topRight)
	sb.WriteString("\n")

	line(func(_, colIdx int) (string, bool) {
		if colIdx == -1 {
			return "…", true
		}
		return df.columns[colIdx].Name(), false
	})

	if cfg.ShowDTypes {
		line(func(_, colIdx int) (string, bool) {
			if colIdx == -1 {
				return "---", true
			}
			return df.columns[colIdx].DType().String(), false
		})
	}

	border(chars.leftT, chars.cross, chars.rightT)
	sb.WriteString("\n")

	for _, rowIdx := range rowIndices {
		line(func(_, colIdx int) (string, bool) {
			if rowIdx == -1 || colIdx == -1 {
				return "…", true
			}
			col := df.columns[colIdx]
			return formatDisplayValue(col.Get(rowIdx), cfg.Formats[col.Name()], cfg), col.DType().IsNumeric()
		})
	}

	border(chars.bottomLeft, chars.bottomT, chars.bottomRight)

	return sb.String()
}

// SeriesStringWithConfig formats the Series using the provided configuration.
// Categorical Series also list their categories.
func SeriesStringWithConfig(s *Series, cfg DisplayConfig) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Series: '%s' (%s)\n", s.Name(), s.DType()))
	sb.WriteString(fmt.Sprintf("length: %d\n", s.Len()))
	if s.DType() == Categorical {
		sb.WriteString(fmt.Sprintf("categories: %v\n", s.categories))
	}
	if s.Len() == 0 {
		sb.WriteString("[]")
		return sb.String()
	}

	chars, ok := tableStyles[cfg.TableStyle]
	if !ok {
		chars = tableStyles["rounded"]
	}

	rowIndices := visibleIndices(s.Len(), cfg.MaxRows)

	indexWidth := len(strconv.Itoa(s.Len() - 1))
	if indexWidth < 3 {
		indexWidth = 3
	}

	format := cfg.Formats[s.Name()]
	valueWidth := cfg.MinColWidth
	for _, idx := range rowIndices {
		if idx >= 0 {
			if n := displayWidth(formatDisplayValue(s.Get(idx), format, cfg)); n > valueWidth {
				valueWidth = n
			}
		}
	}
	if valueWidth > cfg.MaxColWidth {
		valueWidth = cfg.MaxColWidth
	}

	sb.WriteString(chars.topLeft)
	sb.WriteString(strings.Repeat(chars.horizontal, indexWidth+2))
	sb.WriteString(chars.topT)
	sb.WriteString(strings.Repeat(chars.horizontal, valueWidth+2))
	sb.WriteString(chars.topRight)
	sb.WriteString("\n")

	for _, idx := range rowIndices {
		index, value := "…", "…"
		if idx >= 0 {
			index = strconv.Itoa(idx)
			value = truncate(formatDisplayValue(s.Get(idx), format, cfg), valueWidth)
		}
		sb.WriteString(chars.vertical)
		sb.WriteString(" " + pad(index, indexWidth, true) + " ")
		sb.WriteString(chars.vertical)
		sb.WriteString(" " + pad(value, valueWidth, true) + " ")
		sb.WriteString(chars.vertical)
		sb.WriteString("\n")
	}

	sb.WriteString(chars.bottomLeft)
	sb.WriteString(strings.Repeat(chars.horizontal, indexWidth+2))
	sb.WriteString(chars.bottomT)
	sb.WriteString(strings.Repeat(chars.horizontal, valueWidth+2))
	sb.WriteString(chars.bottomRight)

	return sb.String()
}
