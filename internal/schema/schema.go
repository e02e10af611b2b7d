// Package schema declares the static metadata the grid query engine works
// against: per-entity field descriptors with explicit type kinds, and the
// fixed set of joinable to-one associations. Descriptors are built once at
// startup, so query translation never inspects runtime types.
package schema

import "fmt"

// FieldKind categorizes a column's declared representation. Filter operands
// are coerced to this kind before they are bound as query arguments.
type FieldKind int

const (
	// KindString is the default for text columns.
	KindString FieldKind = iota
	// KindInt represents 32-bit integer columns.
	KindInt
	// KindLong represents 64-bit integer columns.
	KindLong
	// KindFloat represents single-precision floating point columns.
	KindFloat
	// KindDouble represents double-precision floating point columns.
	KindDouble
	// KindDecimal represents fixed-point DECIMAL/NUMERIC columns. Operands
	// are bound as exact decimal strings, never round-tripped through float64.
	KindDecimal
	// KindEnum represents symbolic enumeration columns.
	KindEnum
	// KindTimestamp represents DATETIME/TIMESTAMP columns. Date filters apply
	// only to fields of this kind.
	KindTimestamp
)

// String returns the kind name used in logs and error messages.
func (k FieldKind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindLong:
		return "long"
	case KindFloat:
		return "float"
	case KindDouble:
		return "double"
	case KindDecimal:
		return "decimal"
	case KindEnum:
		return "enum"
	case KindTimestamp:
		return "timestamp"
	default:
		return "string"
	}
}

// Field describes a scalar column on an entity.
type Field struct {
	// Column is the SQL column name.
	Column string
	// Kind is the declared representation used for operand coercion.
	Kind FieldKind
	// EnumValues lists the legal symbolic names for KindEnum fields.
	EnumValues []string
}

// HasEnumValue reports whether name is a declared enum constant of the field.
func (f Field) HasEnumValue(name string) bool {
	for _, v := range f.EnumValues {
		if v == name {
			return true
		}
	}
	return false
}

// Association describes a declared to-one association that dotted column
// identifiers may traverse. Traversal is restricted to this fixed set;
// arbitrary path walking is not supported.
type Association struct {
	// Name is the segment used in column identifiers, e.g. "owner".
	Name string
	// Target is the joined entity.
	Target *Entity
	// LocalColumn is the FK column on the owning entity's table.
	LocalColumn string
	// RemoteColumn is the referenced column on the target table,
	// normally the target's primary key.
	RemoteColumn string
}

// SortKey is one member of an entity's default ordering.
type SortKey struct {
	FieldID string
	Desc    bool
}

// Entity describes one queryable root: its table, fields keyed by the
// identifiers the grid uses, and its joinable associations.
type Entity struct {
	// Name is the entity's logical name, used in errors and span names.
	Name string
	// Table is the SQL table name.
	Table string
	// IDField is the field identifier of the primary key.
	IDField string
	// Alias is the root table alias used in generated SQL.
	Alias string
	// Fields maps grid field identifiers (e.g. "creationTime") to columns.
	Fields map[string]Field
	// Associations maps association names to their join metadata.
	Associations map[string]Association
	// EagerAssociations lists the associations hydrated together with the
	// entity on batch fetches, in declaration order.
	EagerAssociations []string
	// DefaultSort is applied when a grid request carries no sort model.
	DefaultSort []SortKey
}

// Validate checks internal consistency of a descriptor. Descriptors are
// assembled in code, so a failure here is a programmer error; callers
// typically invoke MustValidate from package init.
func (e *Entity) Validate() error {
	if e.Name == "" || e.Table == "" || e.Alias == "" {
		return fmt.Errorf("entity descriptor missing name, table, or alias")
	}
	if _, ok := e.Fields[e.IDField]; !ok {
		return fmt.Errorf("entity %s: id field %q is not declared", e.Name, e.IDField)
	}
	for name, assoc := range e.Associations {
		if assoc.Name != name {
			return fmt.Errorf("entity %s: association key %q does not match name %q", e.Name, name, assoc.Name)
		}
		if assoc.Target == nil {
			return fmt.Errorf("entity %s: association %q has no target entity", e.Name, name)
		}
		if assoc.LocalColumn == "" || assoc.RemoteColumn == "" {
			return fmt.Errorf("entity %s: association %q is missing join columns", e.Name, name)
		}
	}
	for _, name := range e.EagerAssociations {
		if _, ok := e.Associations[name]; !ok {
			return fmt.Errorf("entity %s: eager association %q is not declared", e.Name, name)
		}
	}
	for _, key := range e.DefaultSort {
		if _, ok := e.Fields[key.FieldID]; !ok {
			return fmt.Errorf("entity %s: default sort field %q is not declared", e.Name, key.FieldID)
		}
	}
	return nil
}

// MustValidate panics when the descriptor is inconsistent.
func (e *Entity) MustValidate() *Entity {
	if err := e.Validate(); err != nil {
		panic(err)
	}
	return e
}

// IDColumn returns the primary key's SQL column name.
func (e *Entity) IDColumn() string {
	return e.Fields[e.IDField].Column
}

// FieldByID looks up a scalar field by its grid identifier.
func (e *Entity) FieldByID(id string) (Field, bool) {
	f, ok := e.Fields[id]
	return f, ok
}

// AssociationByName looks up a declared association.
func (e *Entity) AssociationByName(name string) (Association, bool) {
	a, ok := e.Associations[name]
	return a, ok
}
