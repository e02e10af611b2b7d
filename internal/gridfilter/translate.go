package gridfilter

import (
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"fleetgrid/internal/gridpath"
	"fleetgrid/internal/schema"
)

// Translate builds the conjunctive predicate list for a filter model. Every
// column resolution goes through the supplied join registry so filters and
// sorting reuse one join per association. Descriptors that are recognized but
// incomplete (blank operand, unknown operator, unparseable date) contribute
// no predicate; only unknown path segments and coercion failures are errors.
func Translate(entity *schema.Entity, model Model, joins *gridpath.JoinRegistry) ([]sq.Sqlizer, error) {
	if len(model) == 0 {
		return []sq.Sqlizer{}, nil
	}

	out := make([]sq.Sqlizer, 0, len(model))
	for _, colID := range model.ColIDs() {
		ref, err := gridpath.Resolve(entity, colID, joins)
		if err != nil {
			return nil, err
		}

		var (
			conds []sq.Sqlizer
			terr  error
		)
		switch f := model[colID].(type) {
		case TextFilter:
			conds = translateText(ref, f)
		case NumberFilter:
			conds = translateNumber(ref, f)
		case DateFilter:
			conds = translateDate(ref, f)
		case SetFilter:
			conds, terr = translateSet(colID, ref, f)
		}
		if terr != nil {
			return nil, terr
		}
		out = append(out, conds...)
	}
	return out, nil
}

// translateText lower-cases both sides of the comparison. LIKE operands are
// used verbatim, wildcards included, matching the grid's contract.
func translateText(ref gridpath.FieldRef, f TextFilter) []sq.Sqlizer {
	if strings.TrimSpace(f.Value) == "" {
		return nil
	}
	expr := "LOWER(" + ref.Qualified + ")"
	p := strings.ToLower(f.Value)

	switch f.Op {
	case "contains":
		return []sq.Sqlizer{sq.Like{expr: "%" + p + "%"}}
	case "equals":
		return []sq.Sqlizer{sq.Eq{expr: p}}
	case "startsWith":
		return []sq.Sqlizer{sq.Like{expr: p + "%"}}
	case "endsWith":
		return []sq.Sqlizer{sq.Like{expr: "%" + p}}
	case "notEqual":
		return []sq.Sqlizer{sq.NotEq{expr: p}}
	default:
		return nil
	}
}

// translateNumber coerces operands to the column's declared representation
// before comparing. Non-numeric columns ignore number descriptors entirely.
func translateNumber(ref gridpath.FieldRef, f NumberFilter) []sq.Sqlizer {
	v1, ok1 := coerceNumber(ref.Field.Kind, f.Value)
	v2, ok2 := coerceNumber(ref.Field.Kind, f.To)
	if !ok1 && !ok2 {
		return nil
	}

	// Everything except inRange needs the primary operand.
	if !ok1 && f.Op != "inRange" {
		return nil
	}

	col := ref.Qualified
	switch f.Op {
	case "equals":
		return []sq.Sqlizer{sq.Eq{col: v1}}
	case "notEqual":
		return []sq.Sqlizer{sq.NotEq{col: v1}}
	case "lessThan":
		return []sq.Sqlizer{sq.Lt{col: v1}}
	case "lessThanOrEqual":
		return []sq.Sqlizer{sq.LtOrEq{col: v1}}
	case "greaterThan":
		return []sq.Sqlizer{sq.Gt{col: v1}}
	case "greaterThanOrEqual":
		return []sq.Sqlizer{sq.GtOrEq{col: v1}}
	case "inRange":
		switch {
		case ok1 && ok2:
			// Closed interval, both bounds inclusive.
			return []sq.Sqlizer{sq.And{sq.GtOrEq{col: v1}, sq.LtOrEq{col: v2}}}
		case ok1:
			return []sq.Sqlizer{sq.GtOrEq{col: v1}}
		default:
			return []sq.Sqlizer{sq.LtOrEq{col: v2}}
		}
	default:
		return nil
	}
}

// coerceNumber converts a decimal-string operand into the bind value for the
// declared kind. Decimal columns keep the exact string so the database does a
// decimal comparison; integral kinds truncate toward zero like the grid's
// other clients expect.
func coerceNumber(kind schema.FieldKind, raw *string) (any, bool) {
	if raw == nil {
		return nil, false
	}
	switch kind {
	case schema.KindInt, schema.KindLong:
		f, err := strconv.ParseFloat(*raw, 64)
		if err != nil {
			return nil, false
		}
		return int64(f), true
	case schema.KindFloat:
		f, err := strconv.ParseFloat(*raw, 32)
		if err != nil {
			return nil, false
		}
		return float32(f), true
	case schema.KindDouble:
		f, err := strconv.ParseFloat(*raw, 64)
		if err != nil {
			return nil, false
		}
		return f, true
	case schema.KindDecimal:
		return *raw, true
	default:
		// Number filters do not apply to non-numeric columns.
		return nil, false
	}
}

// translateDate applies only to timestamp columns; on anything else the whole
// descriptor is ignored. All windows are half-open day intervals.
//
// greaterThan deliberately means ">= start of the day after From": the whole
// From day is excluded, not just the From instant. This mirrors the grid's
// established behavior and is easy to misread as a bug; see the tests.
func translateDate(ref gridpath.FieldRef, f DateFilter) []sq.Sqlizer {
	if ref.Field.Kind != schema.KindTimestamp {
		return nil
	}
	if strings.TrimSpace(f.From) == "" {
		return nil
	}
	from, ok := ParseDay(f.From)
	if !ok {
		return nil
	}

	col := ref.Qualified
	switch f.Op {
	case "equals":
		return []sq.Sqlizer{sq.And{
			sq.GtOrEq{col: startOfDay(from)},
			sq.Lt{col: startOfNextDay(from)},
		}}
	case "lessThan":
		return []sq.Sqlizer{sq.Lt{col: startOfDay(from)}}
	case "greaterThan":
		return []sq.Sqlizer{sq.GtOrEq{col: startOfNextDay(from)}}
	case "inRange":
		to, ok := ParseDay(f.To)
		if !ok {
			// Absent or unparseable upper bound degrades to the From day.
			to = from
		}
		return []sq.Sqlizer{sq.And{
			sq.GtOrEq{col: startOfDay(from)},
			sq.Lt{col: startOfNextDay(to)},
		}}
	default:
		return nil
	}
}

// translateSet builds a single IN predicate with each value coerced to the
// column's declared kind. An empty list is no predicate; a value that cannot
// be coerced to a recognized kind is a model error, matching the strictness
// of the original enum lookup.
func translateSet(colID string, ref gridpath.FieldRef, f SetFilter) ([]sq.Sqlizer, error) {
	if len(f.Values) == 0 {
		return nil, nil
	}

	vals := make([]any, 0, len(f.Values))
	for _, v := range f.Values {
		coerced, err := coerceSetValue(colID, ref.Field, v)
		if err != nil {
			return nil, err
		}
		vals = append(vals, coerced)
	}
	return []sq.Sqlizer{sq.Eq{ref.Qualified: vals}}, nil
}

func coerceSetValue(colID string, field schema.Field, value string) (any, error) {
	switch field.Kind {
	case schema.KindEnum:
		if !field.HasEnumValue(value) {
			return nil, &ModelError{ColID: colID, Reason: "unknown enum value " + strconv.Quote(value)}
		}
		return value, nil
	case schema.KindInt, schema.KindLong:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, &ModelError{ColID: colID, Reason: "set value " + strconv.Quote(value) + " is not an integer"}
		}
		return n, nil
	default:
		return value, nil
	}
}
