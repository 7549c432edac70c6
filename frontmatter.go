package rubyshd

import (
	"bytes"
	"fmt"

	yaml "gopkg.in/yaml.v2"
)

var FrontMatterSeparator = []byte("---\n")

const MaxFrontMatterSize = 65536

// SplitFrontMatter splits a content file into its YAML front matter (as a
// string-keyed document) and the remaining body.  Files that do not open
// with the separator are returned intact with a nil document.
func SplitFrontMatter(source []byte) (map[string]interface{}, []byte, error) {
	if !bytes.HasPrefix(source, FrontMatterSeparator) {
		return nil, source, nil
	}

	var rest = source[len(FrontMatterSeparator):]
	var end = bytes.Index(rest, FrontMatterSeparator)

	// an unterminated block is not front matter at all, e.g. a markdown
	// thematic break opening the file
	if end < 0 || end > MaxFrontMatterSize {
		return nil, source, nil
	}

	var body = rest[end+len(FrontMatterSeparator):]

	if end == 0 {
		return map[string]interface{}{}, body, nil
	}

	var document map[interface{}]interface{}

	if err := yaml.Unmarshal(rest[:end], &document); err != nil {
		return nil, source, err
	}

	if normalized, ok := stringifyKeys(document).(map[string]interface{}); ok {
		return normalized, body, nil
	}

	return map[string]interface{}{}, body, nil
}

// stringifyKeys rewrites the interface-keyed maps produced by the YAML
// decoder into string-keyed ones so front matter can merge with JSON data.
func stringifyKeys(value interface{}) interface{} {
	switch typed := value.(type) {
	case map[interface{}]interface{}:
		var out = make(map[string]interface{}, len(typed))

		for k, v := range typed {
			out[fmt.Sprintf("%v", k)] = stringifyKeys(v)
		}

		return out
	case map[string]interface{}:
		var out = make(map[string]interface{}, len(typed))

		for k, v := range typed {
			out[k] = stringifyKeys(v)
		}

		return out
	case []interface{}:
		var out = make([]interface{}, len(typed))

		for i, v := range typed {
			out[i] = stringifyKeys(v)
		}

		return out
	default:
		return value
	}
}

// MergeMeta deep-merges src into dst: object-valued keys merge recursively,
// scalar and array values overwrite wholesale.
func MergeMeta(dst map[string]interface{}, src map[string]interface{}) {
	for key, value := range src {
		if srcMap, ok := value.(map[string]interface{}); ok {
			if dstMap, ok := dst[key].(map[string]interface{}); ok {
				MergeMeta(dstMap, srcMap)
				continue
			}
		}

		dst[key] = value
	}
}
