package expr

import "github.com/sapl-go/sapl/internal/val"

// matchSchema reports whether v conforms to schema (§4.4 SchemaMatch). It
// implements only the subset of JSON Schema that Schema can express: type,
// required properties, nested properties, and array item schemas.
func matchSchema(v val.Val, schema Schema) val.Val {
	if v.IsError() {
		return v
	}
	if schema.Type != "" && !kindMatchesSchemaType(v, schema.Type) {
		return val.Bool(false)
	}
	switch schema.Type {
	case "object":
		return matchObjectSchema(v, schema)
	case "array":
		return matchArraySchema(v, schema)
	default:
		return val.Bool(true)
	}
}

func kindMatchesSchemaType(v val.Val, t string) bool {
	switch t {
	case "object":
		_, ok := v.AsObject()
		return ok
	case "array":
		_, ok := v.AsArray()
		return ok
	case "string":
		_, ok := v.AsText()
		return ok
	case "number":
		_, ok := v.AsNumber()
		return ok
	case "boolean":
		_, ok := v.AsBool()
		return ok
	case "null":
		return v.IsNull()
	default:
		return true
	}
}

func matchObjectSchema(v val.Val, schema Schema) val.Val {
	fields, ok := v.AsObject()
	if !ok {
		return val.Bool(false)
	}
	for _, name := range schema.Required {
		if _, present := fields[name]; !present {
			return val.Bool(false)
		}
	}
	for name, propSchema := range schema.Properties {
		field, present := fields[name]
		if !present {
			continue
		}
		if ok, _ := matchSchema(field, propSchema).AsBool(); !ok {
			return val.Bool(false)
		}
	}
	return val.Bool(true)
}

func matchArraySchema(v val.Val, schema Schema) val.Val {
	items, ok := v.AsArray()
	if !ok {
		return val.Bool(false)
	}
	if schema.Items == nil {
		return val.Bool(true)
	}
	for _, item := range items {
		if ok, _ := matchSchema(item, *schema.Items).AsBool(); !ok {
			return val.Bool(false)
		}
	}
	return val.Bool(true)
}
