package gcontext

import (
	"strconv"
	"strings"

	"trpc.group/trpc-go/grape-engine/grapeerr"
)

// Kind enumerates the selector forms spec.md §4.6 and §6 describe.
type Kind int

// Selector kinds.
const (
	KindVertexID Kind = iota
	KindVertexLabelID
	KindVertexData
	KindVertexProperty
	KindResult
	KindResultField
)

// Selector is a parsed selector string: `v.id`, `v.label_id`, `v.data`,
// `v.property.<ident>`, `r`, or `r.<ident>`, optionally prefixed with
// `#<label_id>:` to pick one label out of a labeled context.
type Selector struct {
	Kind     Kind
	Property string // set for KindVertexProperty
	Field    string // set for KindResultField
	LabelID  int64
	HasLabel bool
}

// ParseSelector parses one selector string, failing with
// grapeerr.InvalidValue on anything outside the grammar.
func ParseSelector(raw string) (Selector, error) {
	rest := raw
	var sel Selector

	if strings.HasPrefix(rest, "#") {
		idx := strings.Index(rest, ":")
		if idx < 0 {
			return Selector{}, grapeerr.New(grapeerr.InvalidValue, "selector %q: missing ':' after label prefix", raw)
		}
		id, err := strconv.ParseInt(rest[1:idx], 10, 64)
		if err != nil {
			return Selector{}, grapeerr.New(grapeerr.InvalidValue, "selector %q: invalid label id", raw)
		}
		sel.HasLabel = true
		sel.LabelID = id
		rest = rest[idx+1:]
	}

	switch {
	case rest == "v.id":
		sel.Kind = KindVertexID
	case rest == "v.label_id":
		sel.Kind = KindVertexLabelID
	case rest == "v.data":
		sel.Kind = KindVertexData
	case strings.HasPrefix(rest, "v.property."):
		name := strings.TrimPrefix(rest, "v.property.")
		if name == "" {
			return Selector{}, grapeerr.New(grapeerr.InvalidValue, "selector %q: empty property name", raw)
		}
		sel.Kind = KindVertexProperty
		sel.Property = name
	case rest == "r":
		sel.Kind = KindResult
	case strings.HasPrefix(rest, "r."):
		field := strings.TrimPrefix(rest, "r.")
		if field == "" {
			return Selector{}, grapeerr.New(grapeerr.InvalidValue, "selector %q: empty result field", raw)
		}
		sel.Kind = KindResultField
		sel.Field = field
	default:
		return Selector{}, grapeerr.New(grapeerr.InvalidValue, "selector %q: not one of v.id|v.label_id|v.data|v.property.<name>|r|r.<field>", raw)
	}
	return sel, nil
}

// ColumnName returns the archive/output column name a selector yields
// when it carries no explicit rename, used by ParseSelectorList and by
// ToDataframe/ToArrowArrays to label an unrenamed column.
func (s Selector) ColumnName() string {
	switch s.Kind {
	case KindVertexID:
		return "id"
	case KindVertexLabelID:
		return "label_id"
	case KindVertexData:
		return "data"
	case KindVertexProperty:
		return s.Property
	case KindResult:
		return "r"
	case KindResultField:
		return s.Field
	default:
		return "unknown"
	}
}

// NamedSelector is one entry of a comma-joined selector list, optionally
// renamed with a `<col_name>=<selector>` prefix.
type NamedSelector struct {
	Name     string
	Selector Selector
}

// ParseSelectorList parses a comma-joined, optionally-renamed selector
// list, the grammar CONTEXT_TO_DATAFRAME's `selector` argument uses.
func ParseSelectorList(raw string) ([]NamedSelector, error) {
	parts := strings.Split(raw, ",")
	out := make([]NamedSelector, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, grapeerr.New(grapeerr.InvalidValue, "selector list %q: empty entry", raw)
		}
		name, selStr, renamed := strings.Cut(part, "=")
		if !renamed {
			selStr = name
		}
		sel, err := ParseSelector(selStr)
		if err != nil {
			return nil, err
		}
		if !renamed {
			name = sel.ColumnName()
		}
		out = append(out, NamedSelector{Name: name, Selector: sel})
	}
	return out, nil
}
