// Package model defines the invariant shapes shared by every component of
// the Isometry core: the canonical card record, the LATCH facet registry,
// and the pivot header tree. Nothing in this package talks to storage or
// the network; it is pure data plus validation rules.
package model

import "fmt"

// ValueKind tags the dynamic type carried by a Value. Canonical records and
// the EAV property sidecar both need a heterogeneous map of
// string -> {string, number, bool, null, list, map}; ValueKind is the
// discriminant for that tagged sum.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindBool
	KindList
	KindMap
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindList:
		return "array"
	case KindMap:
		return "object"
	default:
		return "unknown"
	}
}

// Value is a single property value. Exactly one of the typed fields is
// meaningful, selected by Kind; this mirrors the typed-column population
// rule the relational writer applies to card_properties.
type Value struct {
	Kind ValueKind
	Str  string
	Num  float64
	Bool bool
	List []Value
	Map  map[string]Value
}

// NewString, NewNumber, NewBool, NewList, NewMap, and Null are convenience
// constructors used by importers when assembling the properties map.
func NewString(s string) Value             { return Value{Kind: KindString, Str: s} }
func NewNumber(n float64) Value            { return Value{Kind: KindNumber, Num: n} }
func NewBool(b bool) Value                 { return Value{Kind: KindBool, Bool: b} }
func NewList(items []Value) Value          { return Value{Kind: KindList, List: items} }
func NewMap(fields map[string]Value) Value { return Value{Kind: KindMap, Map: fields} }
func Null() Value                          { return Value{Kind: KindNull} }

// FromAny converts a decoded JSON-ish value (string, float64, bool, nil,
// []interface{}, map[string]interface{}) into a Value. Importers that parse
// formats through encoding/json land here naturally since json.Unmarshal
// into interface{} produces exactly this shape.
func FromAny(v interface{}) Value {
	switch t := v.(type) {
	case nil:
		return Null()
	case string:
		return NewString(t)
	case float64:
		return NewNumber(t)
	case int:
		return NewNumber(float64(t))
	case int64:
		return NewNumber(float64(t))
	case bool:
		return NewBool(t)
	case []interface{}:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = FromAny(item)
		}
		return NewList(items)
	case []Value:
		return NewList(t)
	case map[string]interface{}:
		fields := make(map[string]Value, len(t))
		for k, item := range t {
			fields[k] = FromAny(item)
		}
		return NewMap(fields)
	case map[string]Value:
		return NewMap(t)
	default:
		return NewString(fmt.Sprintf("%v", t))
	}
}

// ToAny converts a Value back into a plain interface{} tree, the shape
// encoding/json expects for Marshal. Used by the writer when serializing
// EAV property values.
func (v Value) ToAny() interface{} {
	switch v.Kind {
	case KindNull:
		return nil
	case KindString:
		return v.Str
	case KindNumber:
		return v.Num
	case KindBool:
		return v.Bool
	case KindList:
		out := make([]interface{}, len(v.List))
		for i, item := range v.List {
			out[i] = item.ToAny()
		}
		return out
	case KindMap:
		out := make(map[string]interface{}, len(v.Map))
		for k, item := range v.Map {
			out[k] = item.ToAny()
		}
		return out
	default:
		return nil
	}
}
