package jointab

import (
	"fmt"
	"math"
	"strings"

	"github.com/goccy/go-json"
)

// JoinColumns is the column selection of a join step.
type JoinColumns struct {
	On       []string `json:"on"`
	Right    []string `json:"right"`
	RightAll bool     `json:"rightAll"`
}

// JoinParams are the canonical (v2) parameters of a join step, with the
// right tab resolved. A nil RightTab means the user has not chosen one yet.
type JoinParams struct {
	RightTab    *TabOutput
	JoinColumns JoinColumns
	Type        JoinType
}

// TabLookup resolves a tab slug to the tab's final output.
type TabLookup interface {
	LookupTab(slug string) (*TabOutput, bool)
}

// TabMap is a TabLookup backed by a map keyed by slug.
type TabMap map[string]*TabOutput

// LookupTab implements TabLookup
func (m TabMap) LookupTab(slug string) (*TabOutput, bool) {
	tab, ok := m[slug]
	return tab, ok
}

// v0 stored the join type as an index into this list
var joinTypeOrder = []JoinType{LeftJoin, InnerJoin, RightJoin}

// ============================================================================
// Migration
// ============================================================================

// MigrateParams upgrades a persisted parameter blob to the current shape.
//
//	v0: "type" is an index into [left, inner, right]; "join_columns" values
//	    are comma-separated strings.
//	v1: "type" is a string; "join_columns" values are string lists.
//	v2: v1 plus "join_columns.rightAll" (false when migrated).
//
// Versions are detected structurally. The input map is not modified and
// migrating a v2 blob returns an equal blob.
func MigrateParams(params map[string]interface{}) (map[string]interface{}, error) {
	if params == nil {
		return nil, fmt.Errorf("params are nil")
	}

	if index, ok, err := integerValue(params["type"]); err != nil {
		return nil, fmt.Errorf("type: %w", err)
	} else if ok {
		migrated, err := migrateParamsV0ToV1(params, index)
		if err != nil {
			return nil, fmt.Errorf("migrating v0 params: %w", err)
		}
		params = migrated
	}

	joinColumns, ok := params["join_columns"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("join_columns: expected object, got %T", params["join_columns"])
	}
	if _, ok := joinColumns["rightAll"]; !ok {
		params = migrateParamsV1ToV2(params, joinColumns)
	}

	return params, nil
}

func migrateParamsV0ToV1(params map[string]interface{}, index int64) (map[string]interface{}, error) {
	if index < 0 || index >= int64(len(joinTypeOrder)) {
		return nil, fmt.Errorf("type index %d out of range", index)
	}
	joinColumns, ok := params["join_columns"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("join_columns: expected object, got %T", params["join_columns"])
	}
	on, ok := joinColumns["on"].(string)
	if !ok {
		return nil, fmt.Errorf("join_columns.on: expected string, got %T", joinColumns["on"])
	}
	right, ok := joinColumns["right"].(string)
	if !ok {
		return nil, fmt.Errorf("join_columns.right: expected string, got %T", joinColumns["right"])
	}

	out := copyParams(params)
	out["join_columns"] = map[string]interface{}{
		"on":    splitColumnList(on),
		"right": splitColumnList(right),
	}
	out["type"] = string(joinTypeOrder[index])
	return out, nil
}

func migrateParamsV1ToV2(params map[string]interface{}, joinColumns map[string]interface{}) map[string]interface{} {
	columns := copyParams(joinColumns)
	columns["rightAll"] = false
	out := copyParams(params)
	out["join_columns"] = columns
	return out
}

// splitColumnList splits "A,,B" into [A B]. Order and duplicates are kept.
func splitColumnList(s string) []interface{} {
	out := []interface{}{}
	for _, c := range strings.Split(s, ",") {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

func copyParams(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// integerValue reports whether v is an integer, the way decoders hand them
// over: Go ints, integral floats from JSON, or json.Number. Booleans count
// as 0 and 1, as they did when v0 blobs were written.
func integerValue(v interface{}) (int64, bool, error) {
	switch n := v.(type) {
	case bool:
		if n {
			return 1, true, nil
		}
		return 0, true, nil
	case int:
		return int64(n), true, nil
	case int32:
		return int64(n), true, nil
	case int64:
		return n, true, nil
	case float64:
		if n != math.Trunc(n) {
			return 0, false, fmt.Errorf("non-integral index %v", n)
		}
		return int64(n), true, nil
	case interface{ Int64() (int64, error) }: // json.Number
		i, err := n.Int64()
		if err != nil {
			return 0, false, err
		}
		return i, true, nil
	default:
		return 0, false, nil
	}
}

// ============================================================================
// Decoding
// ============================================================================

// DecodeParams migrates a persisted blob and binds it to a tab. The
// persisted "right_tab" is a tab slug or null.
func DecodeParams(raw map[string]interface{}, tabs TabLookup) (JoinParams, error) {
	params, err := MigrateParams(raw)
	if err != nil {
		return JoinParams{}, err
	}

	var out JoinParams

	switch slug := params["right_tab"].(type) {
	case nil:
	case string:
		if slug != "" {
			if tabs == nil {
				return JoinParams{}, fmt.Errorf("right_tab %q: no tabs to resolve against", slug)
			}
			tab, ok := tabs.LookupTab(slug)
			if !ok {
				return JoinParams{}, fmt.Errorf("right_tab %q: tab not found", slug)
			}
			out.RightTab = tab
		}
	default:
		return JoinParams{}, fmt.Errorf("right_tab: expected string, got %T", slug)
	}

	typ, ok := params["type"].(string)
	if !ok {
		return JoinParams{}, fmt.Errorf("type: expected string, got %T", params["type"])
	}
	if out.Type, err = ParseJoinType(typ); err != nil {
		return JoinParams{}, err
	}

	joinColumns := params["join_columns"].(map[string]interface{})
	if out.JoinColumns.On, err = stringList(joinColumns["on"]); err != nil {
		return JoinParams{}, fmt.Errorf("join_columns.on: %w", err)
	}
	if out.JoinColumns.Right, err = stringList(joinColumns["right"]); err != nil {
		return JoinParams{}, fmt.Errorf("join_columns.right: %w", err)
	}
	if out.JoinColumns.RightAll, ok = joinColumns["rightAll"].(bool); !ok {
		return JoinParams{}, fmt.Errorf("join_columns.rightAll: expected bool, got %T", joinColumns["rightAll"])
	}

	return out, nil
}

// ParseParams decodes a JSON parameter blob of any version and binds it.
func ParseParams(data []byte, tabs TabLookup) (JoinParams, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return JoinParams{}, fmt.Errorf("failed to parse params: %w", err)
	}
	return DecodeParams(raw, tabs)
}

func stringList(v interface{}) ([]string, error) {
	switch list := v.(type) {
	case nil:
		return nil, nil
	case []string:
		return append([]string{}, list...), nil
	case []interface{}:
		out := make([]string, len(list))
		for i, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("item %d: expected string, got %T", i, item)
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected list of strings, got %T", v)
	}
}
