package jointab

import (
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/valyala/fasttemplate"
)

// Message keys
const (
	ErrDifferentColumnTypes = "error.differentColumnTypes"
	ErrColumnAlreadyExists  = "error.columnAlreadyExists"
)

// Message is a user-facing, localizable error: a catalog key, the English
// template, and named arguments for "{name}" placeholders. Formatting is left
// to a Translator.
type Message struct {
	Key     string
	Default string
	Args    map[string]interface{}
}

// Translator renders a message template in the user's language.
type Translator interface {
	Translate(key, defaultTemplate string, args map[string]interface{}) string
}

// NewMessage creates a Message
func NewMessage(key, defaultTemplate string, args map[string]interface{}) *Message {
	return &Message{Key: key, Default: defaultTemplate, Args: args}
}

func newDifferentColumnTypesMessage(column string, leftType, rightType ColumnType, otherTabName string) *Message {
	return NewMessage(
		ErrDifferentColumnTypes,
		`Column "{column_name}" is *{left_type}* in this tab and *{right_type}* in {other_tab_name}. `+
			`Please convert one or the other so they are both the same type.`,
		map[string]interface{}{
			"column_name":    column,
			"left_type":      string(leftType),
			"right_type":     string(rightType),
			"other_tab_name": otherTabName,
		},
	)
}

func newColumnAlreadyExistsMessage(column, otherTabName string) *Message {
	return NewMessage(
		ErrColumnAlreadyExists,
		`You tried to add "{column_name}" from {other_tab_name}, but your table already has that column. `+
			`Please rename the column in one of the tabs, or unselect the column.`,
		map[string]interface{}{
			"column_name":    column,
			"other_tab_name": otherTabName,
		},
	)
}

// Error renders the English template
func (m *Message) Error() string {
	return FormatTemplate(m.Default, m.Args)
}

// Format renders the message through tr; a nil tr uses the English template.
func (m *Message) Format(tr Translator) string {
	if tr == nil {
		return m.Error()
	}
	return tr.Translate(m.Key, m.Default, m.Args)
}

// FormatTemplate substitutes "{name}" placeholders with args. Unknown
// placeholders are left as they are.
func FormatTemplate(template string, args map[string]interface{}) string {
	if len(args) == 0 {
		return template
	}
	out, err := fasttemplate.ExecuteFuncStringWithErr(template, "{", "}", func(w io.Writer, tag string) (int, error) {
		if v, ok := args[tag]; ok {
			return io.WriteString(w, fmt.Sprint(v))
		}
		return io.WriteString(w, "{"+tag+"}")
	})
	if err != nil {
		return template
	}
	return out
}

// ============================================================================
// Catalog
// ============================================================================

// Catalog maps message keys to translated templates. Keys missing from the
// catalog fall back to the message's own template.
type Catalog map[string]string

// Translate implements Translator
func (c Catalog) Translate(key, defaultTemplate string, args map[string]interface{}) string {
	template, ok := c[key]
	if !ok {
		template = defaultTemplate
	}
	return FormatTemplate(template, args)
}

// ReadCatalog loads a catalog from a JSON object of key → template.
func ReadCatalog(path string) (Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	return ReadCatalogFromReader(f)
}

// ReadCatalogFromReader loads a catalog from JSON.
func ReadCatalogFromReader(r io.Reader) (Catalog, error) {
	var c Catalog
	if err := json.NewDecoder(r).Decode(&c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return c, nil
}
