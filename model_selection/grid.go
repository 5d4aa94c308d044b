package model_selection

import (
	"fmt"
	"sort"
	"strings"

	"github.com/YuminosukeSato/diabetes-risk/pkg/errors"
)

// ParamGrid は探索するハイパーパラメータの直積空間
// 値 nil は Python の None を表す
type ParamGrid map[string][]interface{}

// Keys returns the parameter names in sorted order.
func (g ParamGrid) Keys() []string {
	keys := make([]string, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Size は候補数（各次元の要素数の積）を返す
func (g ParamGrid) Size() int {
	if len(g) == 0 {
		return 0
	}
	n := 1
	for _, v := range g {
		n *= len(v)
	}
	return n
}

// Validate は空の次元がないことを確認する
func (g ParamGrid) Validate() error {
	if len(g) == 0 {
		return errors.NewValueError("ParamGrid", "parameter grid is empty")
	}
	for _, k := range g.Keys() {
		if len(g[k]) == 0 {
			return errors.NewValueError("ParamGrid",
				fmt.Sprintf("parameter %q needs a non-empty list of values", k))
		}
	}
	return nil
}

// Candidates enumerates every parameter combination in scikit-learn's
// ParameterGrid order: keys sorted, the last key varying fastest.
func (g ParamGrid) Candidates() []map[string]interface{} {
	keys := g.Keys()
	size := g.Size()
	out := make([]map[string]interface{}, size)
	for i := 0; i < size; i++ {
		params := make(map[string]interface{}, len(keys))
		rem := i
		for k := len(keys) - 1; k >= 0; k-- {
			values := g[keys[k]]
			params[keys[k]] = values[rem%len(values)]
			rem /= len(values)
		}
		out[i] = params
	}
	return out
}

// Contains reports whether params is one of the grid's candidates.
func (g ParamGrid) Contains(params map[string]interface{}) bool {
	if len(params) != len(g) {
		return false
	}
	for k, values := range g {
		v, ok := params[k]
		if !ok {
			return false
		}
		found := false
		for _, candidate := range values {
			if candidate == v {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// FormatParams renders params like a Python dict with sorted keys:
//
//	{'max_depth': None, 'max_features': 'sqrt', 'n_estimators': 100}
func FormatParams(params map[string]interface{}) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("'%s': %s", k, formatValue(params[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func formatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case string:
		return "'" + x + "'"
	case bool:
		if x {
			return "True"
		}
		return "False"
	default:
		return fmt.Sprint(x)
	}
}
