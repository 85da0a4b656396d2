package sqlsafe

import (
	"encoding/hex"
	"reflect"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
)

// ErrInvalidValue indicates a value with no coherent SQL representation was
// interpolated into a template.
var ErrInvalidValue = errors.New("value cannot be represented in SQL")

// Null is the explicit SQL NULL sentinel. Variable loaders map source-format
// nulls (JSON null, YAML ~, ...) to this value so that "the key was null"
// stays distinct from "the key was absent": Null renders as NULL while an
// absent value renders as an empty string.
var Null nullValue

type nullValue struct{}

// Format renders an interpolated template value as dialect-correct SQL. It is
// invoked by the renderer for every output expression, so each value kind has
// exactly one mapping:
//
//   - nil (absent)      -> empty string
//   - Null sentinel     -> NULL
//   - Safe values       -> emitted verbatim via their own rendering
//   - bool              -> TRUE / FALSE
//   - numbers           -> decimal text, unescaped
//   - string            -> escaped literal
//   - []byte            -> '\x<hex>'::bytea
//   - slices and arrays -> ARRAY[...] with elements formatted recursively
//   - maps              -> JSON-stringified, then escaped as a literal
//
// Anything else fails with ErrInvalidValue, aborting the render before any
// partial output is emitted.
func Format(v any) (string, error) {
	switch v := v.(type) {
	case nil:
		return "", nil
	case nullValue, *nullValue:
		return "NULL", nil
	case Safe:
		return v.String(), nil
	case bool:
		if v {
			return "TRUE", nil
		}
		return "FALSE", nil
	case string:
		return escapeLiteral(v), nil
	case []byte:
		return `'\x` + hex.EncodeToString(v) + `'::bytea`, nil
	case int:
		return strconv.Itoa(v), nil
	case int8, int16, int32, int64:
		return strconv.FormatInt(reflect.ValueOf(v).Int(), 10), nil
	case uint, uint8, uint16, uint32, uint64:
		return strconv.FormatUint(reflect.ValueOf(v).Uint(), 10), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case json.Number:
		return v.String(), nil
	}

	return formatReflect(v)
}

// formatReflect handles the shapes Format's type switch cannot name
// statically: arbitrary slice and map types produced by the variables
// loaders.
func formatReflect(v any) (string, error) {
	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		elems := make([]string, rv.Len())
		for i := range rv.Len() {
			formatted, err := Format(rv.Index(i).Interface())
			if err != nil {
				return "", err
			}
			elems[i] = formatted
		}
		return "ARRAY[" + strings.Join(elems, ", ") + "]", nil
	case reflect.Map:
		encoded, err := json.Marshal(v)
		if err != nil {
			return "", errors.Wrapf(ErrInvalidValue, "unencodable map: %v", err)
		}
		return escapeLiteral(string(encoded)), nil
	}

	return "", errors.Wrapf(ErrInvalidValue, "type %T", v)
}
