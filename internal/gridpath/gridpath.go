// Package gridpath resolves dotted grid column identifiers such as
// "owner.name" against an entity descriptor. Resolution produces a qualified
// column reference and, when the identifier crosses a to-one association,
// registers a single LEFT JOIN for it. The join registry is scoped to one
// query build: filters and sorting thread the same registry through every
// resolution so an association is joined at most once.
package gridpath

import (
	"fmt"
	"strings"

	"fleetgrid/internal/schema"
	"fleetgrid/internal/sqlutil"
)

// PathError reports a column identifier that names an unknown association or
// attribute. It is client-input class: callers map it to a request rejection,
// not a server fault.
type PathError struct {
	ColID   string
	Segment string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("cannot resolve column %q: unknown segment %q", e.ColID, e.Segment)
}

// FieldRef is a resolved column reference ready to be embedded in SQL.
type FieldRef struct {
	// Qualified is the `alias`.`column` form of the target column.
	Qualified string
	// Field carries the declared type metadata used for operand coercion.
	Field schema.Field
}

// Join is one registered LEFT JOIN clause.
type Join struct {
	// Alias is the joined table's alias; associations join under their own
	// name so generated SQL stays readable.
	Alias string
	// Clause is the complete join fragment, e.g.
	// "`person` AS `owner` ON `v`.`owner_id` = `owner`.`id`".
	Clause string
}

// JoinRegistry tracks the joins created while building one query, keyed by
// the association's traversal path ("owner", "owner.admin", ...). At most one
// join exists per path; repeated resolutions reuse the entry. A duplicate
// join would fan out row counts and corrupt pagination.
type JoinRegistry struct {
	byPath map[string]Join
	order  []string
}

// NewJoinRegistry returns an empty registry for a single query build.
func NewJoinRegistry() *JoinRegistry {
	return &JoinRegistry{byPath: make(map[string]Join)}
}

// Joins returns the registered joins in first-use order, which keeps the
// generated SQL deterministic.
func (r *JoinRegistry) Joins() []Join {
	out := make([]Join, 0, len(r.order))
	for _, path := range r.order {
		out = append(out, r.byPath[path])
	}
	return out
}

// Len returns the number of distinct joins registered.
func (r *JoinRegistry) Len() int {
	return len(r.order)
}

func (r *JoinRegistry) lookup(path string) (Join, bool) {
	j, ok := r.byPath[path]
	return j, ok
}

func (r *JoinRegistry) register(path string, j Join) {
	r.byPath[path] = j
	r.order = append(r.order, path)
}

// joinFor returns the existing join for the association path or creates and
// registers a LEFT JOIN. Outer join is mandatory: the association may be
// absent and absence must not eliminate the root row.
func joinFor(r *JoinRegistry, path, fromAlias string, assoc schema.Association) Join {
	if j, ok := r.lookup(path); ok {
		return j
	}
	alias := strings.ReplaceAll(path, ".", "__")
	j := Join{
		Alias: alias,
		Clause: fmt.Sprintf("%s AS %s ON %s = %s",
			sqlutil.QuoteIdentifier(assoc.Target.Table),
			sqlutil.QuoteIdentifier(alias),
			sqlutil.Qualify(fromAlias, assoc.LocalColumn),
			sqlutil.Qualify(alias, assoc.RemoteColumn),
		),
	}
	r.register(path, j)
	return j
}

// Resolve maps a grid column identifier to a qualified field reference.
//
//	Resolve(vehicle, "name", joins)        -> `v`.`name`
//	Resolve(vehicle, "owner.name", joins)  -> `owner`.`full_name`, LEFT JOIN registered once
//	Resolve(vehicle, "", joins)            -> `v`.`id`
//
// A blank identifier defaults to the primary key rather than failing; the
// grid sends blanks for unset sort columns. Every other unknown segment is a
// *PathError.
func Resolve(entity *schema.Entity, colID string, joins *JoinRegistry) (FieldRef, error) {
	trimmed := strings.TrimSpace(colID)
	if trimmed == "" {
		id := entity.Fields[entity.IDField]
		return FieldRef{Qualified: sqlutil.Qualify(entity.Alias, id.Column), Field: id}, nil
	}

	current := entity
	alias := entity.Alias
	segments := strings.Split(trimmed, ".")

	for i, segment := range segments {
		last := i == len(segments)-1
		if !last {
			assoc, ok := current.AssociationByName(segment)
			if !ok {
				return FieldRef{}, &PathError{ColID: colID, Segment: segment}
			}
			path := strings.Join(segments[:i+1], ".")
			j := joinFor(joins, path, alias, assoc)
			current = assoc.Target
			alias = j.Alias
			continue
		}
		field, ok := current.FieldByID(segment)
		if !ok {
			return FieldRef{}, &PathError{ColID: colID, Segment: segment}
		}
		return FieldRef{Qualified: sqlutil.Qualify(alias, field.Column), Field: field}, nil
	}

	// Unreachable: the loop always returns on the last segment.
	return FieldRef{}, &PathError{ColID: colID, Segment: trimmed}
}
