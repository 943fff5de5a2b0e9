package item

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Caster coerces an arbitrary input into the canonical Go representation of
// one item type.
//
// Canonical forms:
//
//	str    string
//	list   []any
//	dict   map[string]any
//	bool   bool
//	num    float64
//	scene  int64
//	foo    the input, unchanged
//
// Numbers nested in lists and dicts are normalised to float64 and nested
// mappings to map[string]any, so values survive a round trip through the
// JSON and CBOR cache encodings unchanged.
type Caster func(v any) (any, error)

var casters = map[Type]Caster{
	TypeString: castString,
	TypeList:   castList,
	TypeDict:   castDict,
	TypeBool:   castBool,
	TypeNum:    castNum,
	TypeScene:  castScene,
	TypeFoo:    castFoo,
}

// Cast coerces v to type t.
// It returns a *CoercionError when v does not satisfy the type and
// ErrUntyped when t is not a known type.
func Cast(t Type, v any) (any, error) {
	c, ok := casters[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUntyped, t)
	}
	return c(v)
}

// ZeroValue returns the default value of type t.
func ZeroValue(t Type) any {
	switch t {
	case TypeString:
		return ""
	case TypeList:
		return []any{}
	case TypeDict:
		return map[string]any{}
	case TypeBool:
		return false
	case TypeNum:
		return float64(0)
	case TypeScene:
		return int64(0)
	default:
		return nil
	}
}

func castString(v any) (any, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32), nil
	}
	if i, ok := asInt(v); ok {
		return strconv.FormatInt(i, 10), nil
	}
	if u, ok := v.(uint64); ok {
		return strconv.FormatUint(u, 10), nil
	}
	return nil, &CoercionError{Type: TypeString, Value: v}
}

func castList(v any) (any, error) {
	if s, ok := v.(string); ok {
		v = parseLiteral(s)
	}
	if v == nil {
		return nil, &CoercionError{Type: TypeList, Value: v}
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, &CoercionError{Type: TypeList, Value: v}
	}
	if _, isBytes := v.([]byte); isBytes {
		return nil, &CoercionError{Type: TypeList, Value: v}
	}
	return normalise(v), nil
}

func castDict(v any) (any, error) {
	if s, ok := v.(string); ok {
		v = parseLiteral(s)
	}
	if v == nil || reflect.ValueOf(v).Kind() != reflect.Map {
		return nil, &CoercionError{Type: TypeDict, Value: v}
	}
	return normalise(v), nil
}

func castFoo(v any) (any, error) {
	return v, nil
}

func castBool(v any) (any, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		switch strings.ToLower(x) {
		case "0", "false", "no", "off", "":
			return false, nil
		case "1", "true", "yes", "on":
			return true, nil
		}
		return nil, &CoercionError{Type: TypeBool, Value: v}
	}
	if f, ok := asFloat(v); ok {
		switch f {
		case 0:
			return false, nil
		case 1:
			return true, nil
		}
	}
	return nil, &CoercionError{Type: TypeBool, Value: v}
}

// maxSceneFloat is 2^63, the first float64 outside the int64 range.
const maxSceneFloat = float64(1 << 63)

func castScene(v any) (any, error) {
	switch x := v.(type) {
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return nil, &CoercionError{Type: TypeScene, Value: v}
		}
		return i, nil
	case bool:
		if x {
			return int64(1), nil
		}
		return int64(0), nil
	}
	if i, ok := asInt(v); ok {
		return i, nil
	}
	if f, ok := asFloat(v); ok && f == math.Trunc(f) && f >= -maxSceneFloat && f < maxSceneFloat {
		return int64(f), nil
	}
	return nil, &CoercionError{Type: TypeScene, Value: v}
}

// castNum rejects Inf and NaN along with non-numeric input.
func castNum(v any) (any, error) {
	switch x := v.(type) {
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return float64(0), nil
		}
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return float64(i), nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && finite(f) {
			return f, nil
		}
		return nil, &CoercionError{Type: TypeNum, Value: v}
	case bool:
		if x {
			return float64(1), nil
		}
		return float64(0), nil
	}
	if f, ok := asFloat(v); ok && finite(f) {
		return f, nil
	}
	return nil, &CoercionError{Type: TypeNum, Value: v}
}

func finite(f float64) bool {
	return !math.IsInf(f, 0) && !math.IsNaN(f)
}

// parseLiteral parses s as a YAML flow literal. On failure s is returned
// unchanged so the caller's shape check rejects it.
func parseLiteral(s string) any {
	var out any
	if err := yaml.Unmarshal([]byte(s), &out); err != nil {
		return s
	}
	return out
}

// asInt converts Go integer kinds to int64.
func asInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint:
		return int64(x), true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		if x > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	}
	return 0, false
}

// asFloat converts any Go numeric kind to float64.
func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case uint64:
		return float64(x), true
	}
	if i, ok := asInt(v); ok {
		return float64(i), true
	}
	return 0, false
}

// normalise rewrites nested numbers to float64, mappings to
// map[string]any and sequences to []any.
func normalise(v any) any {
	switch x := v.(type) {
	case nil, string, bool:
		return x
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalise(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalise(e)
		}
		return out
	}
	if f, ok := asFloat(v); ok {
		return f
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = normalise(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = normalise(iter.Value().Interface())
		}
		return out
	}
	return v
}
