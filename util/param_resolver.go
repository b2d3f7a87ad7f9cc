package util

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/oliveagle/jsonpath"
)

var (
	tokenPattern       = regexp.MustCompile("{(.*?)}")
	singleTokenPattern = regexp.MustCompile(`^\{\$[^{}]*\}$`)
)

// Lookup evaluates a jsonpath expression such as $.custom.email against data.
// The expression may be wrapped in braces.
func Lookup(data map[string]any, expression string) (any, error) {
	expr := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(expression), "{"), "}")
	if !strings.HasPrefix(expr, "$") {
		return nil, fmt.Errorf("expression %s should start with $", expression)
	}
	return jsonpath.JsonPathLookup(data, expr)
}

// ValidateExpression reports whether expression compiles as jsonpath.
func ValidateExpression(expression string) error {
	expr := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(expression), "{"), "}")
	if !strings.HasPrefix(expr, "$") {
		return fmt.Errorf("expression %s should start with $", expression)
	}
	_, err := jsonpath.Compile(expr)
	return err
}

// ResolveTemplate replaces every {$.path} token in s with the value found in data.
// Tokens that do not resolve are replaced with an empty string.
func ResolveTemplate(data map[string]any, s string) string {
	tokens := tokenPattern.FindAllString(s, -1)
	if len(tokens) == 0 {
		return s
	}
	out := s
	for _, token := range tokens {
		tmatch := strings.Trim(token, "{}")
		if !strings.HasPrefix(tmatch, "$") {
			continue
		}
		value, err := jsonpath.JsonPathLookup(data, tmatch)
		if err != nil || value == nil {
			out = strings.ReplaceAll(out, token, "")
			continue
		}
		out = strings.ReplaceAll(out, token, Stringify(value))
	}
	return out
}

// ResolveParams resolves templates in every string of params, recursing into maps and lists.
func ResolveParams(data map[string]any, params map[string]any) map[string]any {
	output := make(map[string]any, len(params))
	for k, v := range params {
		output[k] = resolveValue(data, v)
	}
	return output
}

func resolveValue(data map[string]any, v any) any {
	switch val := v.(type) {
	case map[string]any:
		return ResolveParams(data, val)
	case []any:
		out := make([]any, 0, len(val))
		for _, item := range val {
			out = append(out, resolveValue(data, item))
		}
		return out
	case string:
		// a value that is exactly one token keeps the type of the looked up value
		if singleTokenPattern.MatchString(val) {
			if res, err := jsonpath.JsonPathLookup(data, strings.Trim(val, "{}")); err == nil {
				return res
			}
			return nil
		}
		return ResolveTemplate(data, val)
	default:
		return v
	}
}

// Stringify renders a looked up value the way branches and templates compare it.
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
