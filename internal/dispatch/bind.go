package dispatch

import (
	"encoding/json"
	"reflect"
	"strings"
)

// bindParams unmarshals raw into a fresh instance of t, then fills any
// field whose JSON key was absent from raw with the default value its
// schema property declares (spec §4.5's "defaults apply when the field is
// omitted" rule — jsonschema/v5 validates defaults but does not apply
// them, so this dispatcher owns that step).
func bindParams(t reflect.Type, raw json.RawMessage, schema map[string]any) (reflect.Value, error) {
	instancePtr := reflect.New(t)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, instancePtr.Interface()); err != nil {
			return reflect.Value{}, err
		}
	}

	var present map[string]json.RawMessage
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &present); err != nil {
			return reflect.Value{}, err
		}
	}

	props, _ := schema["properties"].(map[string]any)
	elem := instancePtr.Elem()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := f.Name
		if jt, ok := f.Tag.Lookup("json"); ok {
			if n := strings.Split(jt, ",")[0]; n != "" && n != "-" {
				name = n
			}
		}
		if _, ok := present[name]; ok {
			continue
		}
		propSchema, ok := props[name].(map[string]any)
		if !ok {
			continue
		}
		def, hasDefault := propSchema["default"]
		if !hasDefault {
			continue
		}
		applyDefault(elem.Field(i), def)
	}

	return instancePtr, nil
}

func applyDefault(field reflect.Value, def any) {
	switch field.Kind() {
	case reflect.String:
		if s, ok := def.(string); ok {
			field.SetString(s)
		}
	case reflect.Bool:
		if b, ok := def.(bool); ok {
			field.SetBool(b)
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if n, ok := def.(float64); ok {
			field.SetInt(int64(n))
		}
	case reflect.Float32, reflect.Float64:
		if n, ok := def.(float64); ok {
			field.SetFloat(n)
		}
	}
}
