// Package identity derives the key used to recognise two executions of the
// same logical test case.
package identity

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/caseflow/caseflow/model"
)

// Hash returns suite + name followed by key + value for every parameter, in
// ascending key order. It is not a cryptographic hash: distinct tests that
// share suite, name and parameters collide.
func Hash(tc model.TestCase) string {
	return Of(tc.Suite, tc.Name, tc.Params)
}

// Of computes the hash from the identity parts directly.
func Of(suite, name string, params map[string]any) string {
	var b strings.Builder
	b.WriteString(suite)
	b.WriteString(name)

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(formatValue(params[k]))
	}
	return b.String()
}

// formatValue renders a parameter the same way whether it was set in process
// or decoded from an artifact, so 2 and 2.0 hash alike.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case json.Number:
		return val.String()
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(val)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
