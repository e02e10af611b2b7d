package fleet

import (
	"fleetgrid/internal/gridfilter"
)

// GridRequest is the decoded grid page request: a zero-based, exclusive-end
// row window plus the raw filter and sort models as the UI sent them.
type GridRequest struct {
	StartRow    int                   `json:"startRow"`
	EndRow      int                   `json:"endRow"`
	SortModel   []gridfilter.SortSpec `json:"sortModel"`
	FilterModel map[string]any        `json:"filterModel"`
}

// VehiclePage is a served vehicle grid page.
type VehiclePage struct {
	Rows       []Vehicle `json:"rows"`
	TotalCount int64     `json:"totalCount"`
}

// PersonPage is a served person grid page.
type PersonPage struct {
	Rows       []Person `json:"rows"`
	TotalCount int64    `json:"totalCount"`
}
