package gridfilter

import (
	"strings"

	"fleetgrid/internal/gridpath"
	"fleetgrid/internal/schema"
	"fleetgrid/internal/sqlutil"
)

// SortSpec is one (column, direction) pair from the grid's sort model.
type SortSpec struct {
	ColID string `json:"colId"`
	Sort  string `json:"sort"`
}

// ParseSortModel decodes the wire sort model: an ordered list of
// {colId, sort} objects.
func ParseSortModel(raw []any) ([]SortSpec, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]SortSpec, 0, len(raw))
	for _, item := range raw {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, &ModelError{Reason: "sort model entries must be objects"}
		}
		colID, err := stringField("", obj, "colId")
		if err != nil {
			return nil, &ModelError{Reason: "sort colId must be a string"}
		}
		dir, err := stringField("", obj, "sort")
		if err != nil {
			return nil, &ModelError{Reason: "sort direction must be a string"}
		}
		out = append(out, SortSpec{ColID: colID, Sort: dir})
	}
	return out, nil
}

// OrderBy resolves a sort model into ORDER BY clauses, threading the same
// join registry used for predicates so sorting on an associated column does
// not create a second join. Direction compares case-insensitively; anything
// other than desc sorts ascending. An empty model yields the entity's default
// order.
func OrderBy(entity *schema.Entity, sortModel []SortSpec, joins *gridpath.JoinRegistry) ([]string, error) {
	if len(sortModel) == 0 {
		return DefaultOrder(entity), nil
	}
	out := make([]string, 0, len(sortModel))
	for _, s := range sortModel {
		ref, err := gridpath.Resolve(entity, s.ColID, joins)
		if err != nil {
			return nil, err
		}
		dir := "ASC"
		if strings.EqualFold(s.Sort, "desc") {
			dir = "DESC"
		}
		out = append(out, ref.Qualified+" "+dir)
	}
	return out, nil
}

// DefaultOrder returns the entity's declared default ordering, used whenever
// the grid supplies no sort model. For the fleet entities this is
// creationTime desc, id desc.
func DefaultOrder(entity *schema.Entity) []string {
	out := make([]string, 0, len(entity.DefaultSort))
	for _, key := range entity.DefaultSort {
		field := entity.Fields[key.FieldID]
		dir := "ASC"
		if key.Desc {
			dir = "DESC"
		}
		out = append(out, sqlutil.Qualify(entity.Alias, field.Column)+" "+dir)
	}
	return out
}
