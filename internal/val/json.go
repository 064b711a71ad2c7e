package val

import (
	"encoding/json"
	"sort"
)

// MarshalJSON renders v as plain JSON, replacing any secret value (at any
// depth) with the fixed secret placeholder string.
func (v Val) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.toJSONValue())
}

func (v Val) toJSONValue() interface{} {
	if v.Secret {
		return SecretPlaceholder
	}
	switch v.Kind {
	case KindUndefined:
		return nil
	case KindNull:
		return nil
	case KindError:
		return map[string]interface{}{"error": v.errMsg}
	case KindBool:
		return v.boolVal
	case KindNumber:
		f, _ := v.numberVal.Float64()
		return f
	case KindText:
		return v.textVal
	case KindArray:
		out := make([]interface{}, len(v.arrayVal))
		for i, e := range v.arrayVal {
			out[i] = e.toJSONValue()
		}
		return out
	case KindObject:
		out := make(map[string]interface{}, len(v.objectVal))
		keys := make([]string, 0, len(v.objectVal))
		for k := range v.objectVal {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out[k] = v.objectVal[k].toJSONValue()
		}
		return out
	default:
		return nil
	}
}

// UnmarshalJSON decodes b into v via FromJSON. A JSON null decodes to Null,
// matching how a present-but-null field differs from a field absent
// entirely (which leaves v untouched, i.e. Undefined's zero value).
func (v *Val) UnmarshalJSON(b []byte) error {
	var raw interface{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*v = FromJSON(raw)
	return nil
}

// FromJSON converts a decoded JSON value (as produced by encoding/json into
// interface{}) into a Val tree. Unknown types become Undefined.
func FromJSON(raw interface{}) Val {
	switch t := raw.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(t)
	case float64:
		return Number(t)
	case string:
		return Text(t)
	case []interface{}:
		items := make([]Val, len(t))
		for i, e := range t {
			items[i] = FromJSON(e)
		}
		return Array(items)
	case map[string]interface{}:
		fields := make(map[string]Val, len(t))
		for k, e := range t {
			fields[k] = FromJSON(e)
		}
		return Object(fields)
	default:
		return Undefined()
	}
}
