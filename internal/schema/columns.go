package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// Columns lists the payload fields of s in declaration order using their
// wire names.
func (s *Schema) Columns() []string {
	typ := reflect.TypeOf(s.New()).Elem()
	cols := make([]string, 0, typ.NumField())
	for i := 0; i < typ.NumField(); i++ {
		name := strings.Split(typ.Field(i).Tag.Get("json"), ",")[0]
		if name == "" || name == "-" {
			continue
		}
		cols = append(cols, name)
	}
	return cols
}

// Flatten renders the values of a stored payload in column order. Lists are
// joined with "|" and missing fields are empty.
func Flatten(payload []byte, columns []string) ([]string, error) {
	values := make(map[string]interface{})
	if len(payload) > 0 {
		dec := json.NewDecoder(bytes.NewReader(payload))
		dec.UseNumber()
		if err := dec.Decode(&values); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
	}
	out := make([]string, len(columns))
	for i, col := range columns {
		out[i] = cell(values[col])
	}
	return out, nil
}

func cell(v interface{}) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case json.Number:
		return value.String()
	case bool:
		if value {
			return "Y"
		}
		return "N"
	case []interface{}:
		parts := make([]string, len(value))
		for i, item := range value {
			parts[i] = cell(item)
		}
		return strings.Join(parts, "|")
	default:
		raw, _ := json.Marshal(value)
		return string(raw)
	}
}
