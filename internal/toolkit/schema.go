// schema.go — JSON Schema generation from typed parameter descriptors (C5).
//
// Each tool's parameter struct carries a `schema` tag per field describing
// its JSON Schema facets. GenerateSchema walks the struct via reflection
// once, at registry construction time, and produces the object schema
// spec §4.5 describes.
package toolkit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// fieldSchema is one property's parsed `schema` tag.
type fieldSchema struct {
	jsonName    string
	typ         string
	description string
	defaultVal  any
	hasDefault  bool
	enum        []string
}

// GenerateSchema derives a JSON Schema "object" document from a parameter
// struct type. The required list follows struct declaration order for
// deterministic output.
func GenerateSchema(t reflect.Type) (map[string]any, error) {
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("toolkit: %s is not a struct", t)
	}

	properties := map[string]any{}
	var required []string

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag, ok := f.Tag.Lookup("schema")
		if !ok {
			continue
		}
		fs, err := parseFieldTag(f, tag)
		if err != nil {
			return nil, fmt.Errorf("toolkit: field %s: %w", f.Name, err)
		}

		prop := map[string]any{"type": fs.typ}
		if fs.description != "" {
			prop["description"] = fs.description
		}
		if fs.hasDefault {
			prop["default"] = fs.defaultVal
		} else {
			required = append(required, fs.jsonName)
		}
		if len(fs.enum) > 0 {
			anyEnum := make([]any, len(fs.enum))
			for i, e := range fs.enum {
				anyEnum[i] = e
			}
			prop["enum"] = anyEnum
		}
		properties[fs.jsonName] = prop
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema, nil
}

// parseFieldTag parses a `schema:"type=string;description=...;default=...;enum=a,b,c"` tag.
func parseFieldTag(f reflect.StructField, tag string) (fieldSchema, error) {
	jsonName := f.Name
	if jt, ok := f.Tag.Lookup("json"); ok {
		if name := strings.Split(jt, ",")[0]; name != "" && name != "-" {
			jsonName = name
		}
	}

	fs := fieldSchema{jsonName: jsonName}
	for _, part := range strings.Split(tag, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		key := kv[0]
		val := ""
		if len(kv) == 2 {
			val = kv[1]
		}
		switch key {
		case "type":
			typ, err := normalizeType(val)
			if err != nil {
				return fieldSchema{}, err
			}
			fs.typ = typ
		case "description":
			fs.description = val
		case "default":
			fs.hasDefault = true
			fs.defaultVal = coerceDefault(fs.typ, val)
		case "enum":
			if val != "" {
				fs.enum = strings.Split(val, ",")
			}
		default:
			return fieldSchema{}, fmt.Errorf("unknown schema tag key %q", key)
		}
	}
	if fs.typ == "" {
		return fieldSchema{}, fmt.Errorf("missing type in schema tag")
	}
	return fs, nil
}

// normalizeType lowercases and validates against the closed type set §4.5 names.
func normalizeType(t string) (string, error) {
	lt := strings.ToLower(t)
	switch lt {
	case "string", "integer", "number", "boolean", "array", "object":
		return lt, nil
	default:
		return "", fmt.Errorf("unsupported schema type %q", t)
	}
}

// compileSchema compiles a generated JSON Schema map into a validator the
// dispatcher can run against incoming params before struct binding.
func compileSchema(name string, schema map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	uri := "mem://" + name + ".json"
	if err := c.AddResource(uri, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	return c.Compile(uri)
}

func coerceDefault(typ, val string) any {
	switch typ {
	case "boolean":
		return val == "true"
	case "integer", "number":
		if n, err := strconv.ParseFloat(val, 64); err == nil {
			return n
		}
		return val
	default:
		return val
	}
}
