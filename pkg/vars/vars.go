package vars

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/pseudomuto/anchor/pkg/sqlsafe"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat indicates a variables file with an extension the
// loader does not recognize.
var ErrUnsupportedFormat = errors.New("unsupported variables format")

// Load parses a variables file into the internal value tree exposed to
// templates. The format is auto-detected from the file extension: .json,
// .toml, and .yaml/.yml are supported. Source-format nulls are normalized to
// sqlsafe.Null so the formatter can tell them apart from absent keys, and all
// nested maps are normalized to map[string]any regardless of source decoder.
//
// The returned tree is immutable by convention; it is scoped to a single
// render call.
//
// Example usage:
//
//	values, err := vars.Load("db/migrations/20240101_create_users/vars.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	err = renderer.Render(os.Stdout, "migration.sql", values)
func Load(path string) (map[string]any, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read variables file %s", path)
	}

	return Parse(content, filepath.Ext(path))
}

// Parse decodes variables content in the format implied by ext (".json",
// ".toml", ".yaml", or ".yml") and normalizes it.
func Parse(content []byte, ext string) (map[string]any, error) {
	var raw map[string]any

	switch strings.ToLower(ext) {
	case ".json":
		// Numbers stay json.Number so integers beyond float64 precision
		// reach the SQL formatter intact.
		dec := json.NewDecoder(bytes.NewReader(content))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return nil, errors.Wrap(err, "failed to parse JSON variables")
		}
	case ".toml":
		if err := toml.Unmarshal(content, &raw); err != nil {
			return nil, errors.Wrap(err, "failed to parse TOML variables")
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, &raw); err != nil {
			return nil, errors.Wrap(err, "failed to parse YAML variables")
		}
	default:
		return nil, errors.Wrapf(ErrUnsupportedFormat, "%q", ext)
	}

	if raw == nil {
		raw = map[string]any{}
	}

	return normalizeMap(raw), nil
}

func normalizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalize(v)
	}
	return out
}

func normalize(v any) any {
	switch v := v.(type) {
	case nil:
		return sqlsafe.Null
	case map[string]any:
		return normalizeMap(v)
	case map[any]any:
		// Older YAML shapes; keys are stringified.
		out := make(map[string]any, len(v))
		for k, val := range v {
			if s, ok := k.(string); ok {
				out[s] = normalize(val)
			}
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = normalize(e)
		}
		return out
	default:
		return v
	}
}
