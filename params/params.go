// Package params implements the Params Accessor: typed extraction of
// command arguments from the heterogeneous attribute map carried by
// command.Command. The map's value type, structpb.Value, is the
// literal encoding of the spec's "string-keyed union of primitive
// types, enumerations, string lists, and nested proto lists."
package params

import (
	"github.com/mitchellh/mapstructure"
	"google.golang.org/protobuf/types/known/structpb"

	"trpc.group/trpc-go/grape-engine/command"
	"trpc.group/trpc-go/grape-engine/grapeerr"
)

// Accessor wraps a command's attribute map with typed Get methods.
type Accessor struct {
	attrs map[string]*structpb.Value
}

// New wraps attrs in an Accessor.
func New(attrs map[string]*structpb.Value) *Accessor {
	return &Accessor{attrs: attrs}
}

func (a *Accessor) lookup(key string) (*structpb.Value, error) {
	v, ok := a.attrs[key]
	if !ok || v == nil {
		return nil, grapeerr.New(grapeerr.MissingKey, "missing required key %q", key)
	}
	return v, nil
}

// Has reports whether key is present (used for the "one of" required
// groups in the command table, e.g. PROJECT's nodes-or-edges).
func (a *Accessor) Has(key string) bool {
	v, ok := a.attrs[key]
	return ok && v != nil
}

// GetString extracts a plain string value.
func (a *Accessor) GetString(key string) (string, error) {
	v, err := a.lookup(key)
	if err != nil {
		return "", err
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", grapeerr.New(grapeerr.InvalidValue, "key %q is not a string", key)
	}
	return s.StringValue, nil
}

// GetStringOr extracts a string value, returning def if the key is
// absent.
func (a *Accessor) GetStringOr(key, def string) string {
	s, err := a.GetString(key)
	if err != nil {
		return def
	}
	return s
}

// GetBool extracts a boolean value.
func (a *Accessor) GetBool(key string) (bool, error) {
	v, err := a.lookup(key)
	if err != nil {
		return false, err
	}
	b, ok := v.GetKind().(*structpb.Value_BoolValue)
	if !ok {
		return false, grapeerr.New(grapeerr.InvalidValue, "key %q is not a bool", key)
	}
	return b.BoolValue, nil
}

// GetBoolOr extracts a boolean value, returning def if the key is
// absent.
func (a *Accessor) GetBoolOr(key string, def bool) bool {
	b, err := a.GetBool(key)
	if err != nil {
		return def
	}
	return b
}

// GetInt64 extracts a numeric value as an int64.
func (a *Accessor) GetInt64(key string) (int64, error) {
	v, err := a.lookup(key)
	if err != nil {
		return 0, err
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, grapeerr.New(grapeerr.InvalidValue, "key %q is not a number", key)
	}
	return int64(n.NumberValue), nil
}

// GetInt64Or extracts a numeric value, returning def if the key is
// absent.
func (a *Accessor) GetInt64Or(key string, def int64) int64 {
	n, err := a.GetInt64(key)
	if err != nil {
		return def
	}
	return n
}

// GetStringList extracts a list of strings (used by nodes-list,
// edges-list, and the vertex/edge label collections).
func (a *Accessor) GetStringList(key string) ([]string, error) {
	v, err := a.lookup(key)
	if err != nil {
		return nil, err
	}
	l, ok := v.GetKind().(*structpb.Value_ListValue)
	if !ok {
		return nil, grapeerr.New(grapeerr.InvalidValue, "key %q is not a list", key)
	}
	out := make([]string, 0, len(l.ListValue.Values))
	for i, item := range l.ListValue.Values {
		s, ok := item.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, grapeerr.New(grapeerr.InvalidValue, "key %q: element %d is not a string", key, i)
		}
		out = append(out, s.StringValue)
	}
	return out, nil
}

// GetEnum extracts a string value and validates it against a closed
// set of allowed values, returning it typed as T (e.g. command.GraphType).
func GetEnum[T ~string](a *Accessor, key string, allowed ...T) (T, error) {
	var zero T
	s, err := a.GetString(key)
	if err != nil {
		return zero, err
	}
	for _, v := range allowed {
		if T(s) == v {
			return v, nil
		}
	}
	return zero, grapeerr.New(grapeerr.InvalidValue, "key %q: %q is not one of %v", key, s, allowed)
}

// GetGraphType extracts and validates the graph_type key.
func (a *Accessor) GetGraphType(key string) (command.GraphType, error) {
	return GetEnum(a, key,
		command.ArrowProperty, command.ArrowProjected,
		command.DynamicProperty, command.DynamicProjected)
}

// GetStruct decodes the nested proto struct at key into dst using
// mapstructure, for shapes too rich for a single Get* call (e.g. a
// schema-def or a node/edge descriptor list of objects).
func (a *Accessor) GetStruct(key string, dst any) error {
	v, err := a.lookup(key)
	if err != nil {
		return err
	}
	s, ok := v.GetKind().(*structpb.Value_StructValue)
	if !ok {
		return grapeerr.New(grapeerr.InvalidValue, "key %q is not a struct", key)
	}
	// Reuse the struct's "json" tags for field matching: command's wire
	// types (GraphDef, SchemaDef, ...) are already tagged for JSON, and
	// a proto struct's keys follow the same snake_case convention.
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  dst,
	})
	if err != nil {
		return grapeerr.Wrap(grapeerr.InvalidValue, err, "key %q: build decoder", key)
	}
	if err := decoder.Decode(s.StructValue.AsMap()); err != nil {
		return grapeerr.Wrap(grapeerr.InvalidValue, err, "key %q: decode failed", key)
	}
	return nil
}
