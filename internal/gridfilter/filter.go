// Package gridfilter turns the grid's untyped filter and sort models into SQL
// predicates and order clauses. The filter model is the ag-grid style wire
// shape: column id -> {filterType, type, filter, filterTo, dateFrom, dateTo,
// values}. Descriptors the engine does not recognize contribute no predicate
// by design; structurally malformed models fail fast with *ModelError.
package gridfilter

import (
	"fmt"
	"sort"
	"strconv"
)

// ModelError reports a structurally malformed filter or sort model: a wrong
// value type or a missing required sub-field for a recognized kind. It is
// client-input class, distinct from internal faults.
type ModelError struct {
	ColID  string
	Reason string
}

func (e *ModelError) Error() string {
	if e.ColID == "" {
		return fmt.Sprintf("invalid grid model: %s", e.Reason)
	}
	return fmt.Sprintf("invalid filter for column %q: %s", e.ColID, e.Reason)
}

// Filter is the closed set of filter descriptor kinds. Dispatch is a type
// switch, not string comparison, so adding a kind forces every consumer
// through the compiler.
type Filter interface {
	isFilter()
}

// TextFilter is a case-insensitive string comparison.
type TextFilter struct {
	Op    string
	Value string
}

// NumberFilter compares against the column's declared numeric representation.
// Operands are kept as exact decimal strings until translation so DECIMAL
// columns never round-trip through float64.
type NumberFilter struct {
	Op    string
	Value *string
	To    *string
}

// DateFilter filters timestamp columns by calendar-day windows.
type DateFilter struct {
	Op   string
	From string
	To   string
}

// SetFilter is a membership (IN) test over string-encoded values.
type SetFilter struct {
	Values []string
}

func (TextFilter) isFilter()   {}
func (NumberFilter) isFilter() {}
func (DateFilter) isFilter()   {}
func (SetFilter) isFilter()    {}

// Model maps column identifiers to their parsed filter descriptors.
// Predicates built from a model are conjunctive.
type Model map[string]Filter

// ColIDs returns the model's column ids in sorted order so that SQL
// generation is deterministic.
func (m Model) ColIDs() []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ParseModel decodes the wire filter model. Descriptors with an unknown
// filterType are dropped silently; wrong value types are a *ModelError.
func ParseModel(raw map[string]any) (Model, error) {
	if len(raw) == 0 {
		return Model{}, nil
	}
	model := make(Model, len(raw))
	for colID, rawDesc := range raw {
		desc, ok := rawDesc.(map[string]any)
		if !ok {
			return nil, &ModelError{ColID: colID, Reason: "descriptor must be an object"}
		}
		filter, err := parseDescriptor(colID, desc)
		if err != nil {
			return nil, err
		}
		if filter != nil {
			model[colID] = filter
		}
	}
	return model, nil
}

func parseDescriptor(colID string, desc map[string]any) (Filter, error) {
	kind, err := stringField(colID, desc, "filterType")
	if err != nil {
		return nil, err
	}

	switch kind {
	case "text":
		op, err := stringField(colID, desc, "type")
		if err != nil {
			return nil, err
		}
		value, err := stringField(colID, desc, "filter")
		if err != nil {
			return nil, err
		}
		return TextFilter{Op: op, Value: value}, nil

	case "number":
		op, err := stringField(colID, desc, "type")
		if err != nil {
			return nil, err
		}
		value, err := numberField(colID, desc, "filter")
		if err != nil {
			return nil, err
		}
		to, err := numberField(colID, desc, "filterTo")
		if err != nil {
			return nil, err
		}
		return NumberFilter{Op: op, Value: value, To: to}, nil

	case "date":
		op, err := stringField(colID, desc, "type")
		if err != nil {
			return nil, err
		}
		from, err := stringField(colID, desc, "dateFrom")
		if err != nil {
			return nil, err
		}
		to, err := stringField(colID, desc, "dateTo")
		if err != nil {
			return nil, err
		}
		return DateFilter{Op: op, From: from, To: to}, nil

	case "set":
		values, err := stringListField(colID, desc, "values")
		if err != nil {
			return nil, err
		}
		return SetFilter{Values: values}, nil

	default:
		// Unknown kind: the descriptor contributes nothing. Deliberate
		// permissiveness, the grid may send kinds we do not support.
		return nil, nil
	}
}

func stringField(colID string, desc map[string]any, key string) (string, error) {
	raw, ok := desc[key]
	if !ok || raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", &ModelError{ColID: colID, Reason: fmt.Sprintf("%s must be a string", key)}
	}
	return s, nil
}

// numberField normalizes a numeric operand to its exact decimal string form.
// JSON decoding hands us float64 or json.Number depending on decoder setup;
// string operands must themselves parse as decimals.
func numberField(colID string, desc map[string]any, key string) (*string, error) {
	raw, ok := desc[key]
	if !ok || raw == nil {
		return nil, nil
	}
	var s string
	switch v := raw.(type) {
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		s = strconv.Itoa(v)
	case int64:
		s = strconv.FormatInt(v, 10)
	case fmt.Stringer:
		s = v.String()
	case string:
		s = v
	default:
		return nil, &ModelError{ColID: colID, Reason: fmt.Sprintf("%s must be a number", key)}
	}
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return nil, &ModelError{ColID: colID, Reason: fmt.Sprintf("%s is not a valid number: %q", key, s)}
	}
	return &s, nil
}

func stringListField(colID string, desc map[string]any, key string) ([]string, error) {
	raw, ok := desc[key]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case []string:
		return append([]string(nil), v...), nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, &ModelError{ColID: colID, Reason: fmt.Sprintf("%s items must be strings", key)}
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, &ModelError{ColID: colID, Reason: fmt.Sprintf("%s must be an array", key)}
	}
}
