package assertions

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// display renders a value the way diagnostics quote it: absent values read as
// "undefined", composite values as compact JSON.
func display(v any, found bool) string {
	if !found {
		return "undefined"
	}
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
	case []any, map[string]any:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(data)
	default:
		return fmt.Sprintf("%v", val)
	}
}
