package gridfilter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetgrid/internal/gridpath"
	"fleetgrid/internal/schema"
)

func testEntity(t *testing.T) *schema.Entity {
	t.Helper()

	person := &schema.Entity{
		Name:    "person",
		Table:   "person",
		IDField: "id",
		Alias:   "p",
		Fields: map[string]schema.Field{
			"id":       {Column: "id", Kind: schema.KindLong},
			"fullName": {Column: "full_name", Kind: schema.KindString},
			"age":      {Column: "age", Kind: schema.KindInt},
		},
	}
	vehicle := &schema.Entity{
		Name:    "vehicle",
		Table:   "vehicle",
		IDField: "id",
		Alias:   "v",
		Fields: map[string]schema.Field{
			"id":                {Column: "id", Kind: schema.KindLong},
			"name":              {Column: "name", Kind: schema.KindString},
			"type":              {Column: "type", Kind: schema.KindEnum, EnumValues: []string{"CAR", "TRUCK"}},
			"enginePower":       {Column: "engine_power", Kind: schema.KindDouble},
			"capacity":          {Column: "capacity", Kind: schema.KindDecimal},
			"weight":            {Column: "weight", Kind: schema.KindFloat},
			"distanceTravelled": {Column: "distance_travelled", Kind: schema.KindLong},
			"creationTime":      {Column: "creation_time", Kind: schema.KindTimestamp},
		},
		Associations: map[string]schema.Association{
			"owner": {Name: "owner", Target: person, LocalColumn: "owner_id", RemoteColumn: "id"},
		},
		DefaultSort: []schema.SortKey{
			{FieldID: "creationTime", Desc: true},
			{FieldID: "id", Desc: true},
		},
	}
	require.NoError(t, person.Validate())
	require.NoError(t, vehicle.Validate())
	return vehicle
}

// translateOne translates a single-column model and renders the one resulting
// predicate.
func translateOne(t *testing.T, colID string, f Filter) (string, []any) {
	t.Helper()

	preds, err := Translate(testEntity(t), Model{colID: f}, gridpath.NewJoinRegistry())
	require.NoError(t, err)
	require.Len(t, preds, 1)

	sql, args, err := preds[0].ToSql()
	require.NoError(t, err)
	return sql, args
}

// translateNone asserts the descriptor contributes no predicate and no error.
func translateNone(t *testing.T, colID string, f Filter) {
	t.Helper()

	preds, err := Translate(testEntity(t), Model{colID: f}, gridpath.NewJoinRegistry())
	require.NoError(t, err)
	assert.Empty(t, preds)
}

func strptr(s string) *string { return &s }

func TestTranslateTextOperators(t *testing.T) {
	cases := []struct {
		op       string
		wantSQL  string
		wantArgs []any
	}{
		{"contains", "LOWER(`v`.`name`) LIKE ?", []any{"%red car%"}},
		{"equals", "LOWER(`v`.`name`) = ?", []any{"red car"}},
		{"startsWith", "LOWER(`v`.`name`) LIKE ?", []any{"red car%"}},
		{"endsWith", "LOWER(`v`.`name`) LIKE ?", []any{"%red car"}},
		{"notEqual", "LOWER(`v`.`name`) <> ?", []any{"red car"}},
	}
	for _, tc := range cases {
		t.Run(tc.op, func(t *testing.T) {
			sql, args := translateOne(t, "name", TextFilter{Op: tc.op, Value: "Red Car"})
			assert.Equal(t, tc.wantSQL, sql)
			assert.Equal(t, tc.wantArgs, args, "both sides compare lowercased")
		})
	}
}

func TestTranslateTextSkips(t *testing.T) {
	translateNone(t, "name", TextFilter{Op: "contains", Value: ""})
	translateNone(t, "name", TextFilter{Op: "contains", Value: "   "})
	translateNone(t, "name", TextFilter{Op: "blank", Value: "x"})
}

func TestTranslateNumberOperators(t *testing.T) {
	cases := []struct {
		op      string
		wantSQL string
	}{
		{"equals", "`v`.`distance_travelled` = ?"},
		{"notEqual", "`v`.`distance_travelled` <> ?"},
		{"lessThan", "`v`.`distance_travelled` < ?"},
		{"lessThanOrEqual", "`v`.`distance_travelled` <= ?"},
		{"greaterThan", "`v`.`distance_travelled` > ?"},
		{"greaterThanOrEqual", "`v`.`distance_travelled` >= ?"},
	}
	for _, tc := range cases {
		t.Run(tc.op, func(t *testing.T) {
			sql, args := translateOne(t, "distanceTravelled", NumberFilter{Op: tc.op, Value: strptr("100")})
			assert.Equal(t, tc.wantSQL, sql)
			assert.Equal(t, []any{int64(100)}, args)
		})
	}
}

func TestTranslateNumberCoercionPerKind(t *testing.T) {
	// Integral kinds truncate toward zero.
	_, args := translateOne(t, "distanceTravelled", NumberFilter{Op: "equals", Value: strptr("10.9")})
	assert.Equal(t, []any{int64(10)}, args)

	_, args = translateOne(t, "owner.age", NumberFilter{Op: "equals", Value: strptr("41.5")})
	assert.Equal(t, []any{int64(41)}, args)

	// Double binds float64.
	_, args = translateOne(t, "enginePower", NumberFilter{Op: "equals", Value: strptr("90.5")})
	assert.Equal(t, []any{90.5}, args)

	// Float binds float32.
	_, args = translateOne(t, "weight", NumberFilter{Op: "equals", Value: strptr("2.5")})
	assert.Equal(t, []any{float32(2.5)}, args)

	// Decimal binds the exact operand string; the database compares decimally.
	_, args = translateOne(t, "capacity", NumberFilter{Op: "equals", Value: strptr("10.10")})
	assert.Equal(t, []any{"10.10"}, args)
}

func TestTranslateNumberInRange(t *testing.T) {
	sql, args := translateOne(t, "distanceTravelled", NumberFilter{
		Op: "inRange", Value: strptr("10"), To: strptr("20"),
	})
	assert.Equal(t, "(`v`.`distance_travelled` >= ? AND `v`.`distance_travelled` <= ?)", sql)
	assert.Equal(t, []any{int64(10), int64(20)}, args, "both bounds inclusive")
}

func TestTranslateNumberInRangeOneSided(t *testing.T) {
	sql, args := translateOne(t, "distanceTravelled", NumberFilter{Op: "inRange", Value: strptr("10")})
	assert.Equal(t, "`v`.`distance_travelled` >= ?", sql)
	assert.Equal(t, []any{int64(10)}, args)

	sql, args = translateOne(t, "distanceTravelled", NumberFilter{Op: "inRange", To: strptr("20")})
	assert.Equal(t, "`v`.`distance_travelled` <= ?", sql)
	assert.Equal(t, []any{int64(20)}, args)
}

func TestTranslateNumberSkips(t *testing.T) {
	// No usable operand.
	translateNone(t, "distanceTravelled", NumberFilter{Op: "equals"})
	translateNone(t, "distanceTravelled", NumberFilter{Op: "equals", Value: strptr("abc")})
	// Secondary operand alone only helps inRange.
	translateNone(t, "distanceTravelled", NumberFilter{Op: "equals", To: strptr("20")})
	// Number descriptors on non-numeric columns are ignored.
	translateNone(t, "name", NumberFilter{Op: "equals", Value: strptr("10")})
	translateNone(t, "type", NumberFilter{Op: "equals", Value: strptr("10")})
	// Unknown operator.
	translateNone(t, "distanceTravelled", NumberFilter{Op: "near", Value: strptr("10")})
}

func TestTranslateDateEqualsIsHalfOpenDayWindow(t *testing.T) {
	sql, args := translateOne(t, "creationTime", DateFilter{Op: "equals", From: "2025-10-10"})
	assert.Equal(t, "(`v`.`creation_time` >= ? AND `v`.`creation_time` < ?)", sql)
	// The upper bound is exclusive: midnight of the next day does not match.
	assert.Equal(t, []any{"2025-10-10 00:00:00", "2025-10-11 00:00:00"}, args)
}

func TestTranslateDateEqualsDropsTimeOfDay(t *testing.T) {
	sql, args := translateOne(t, "creationTime", DateFilter{Op: "equals", From: "2025-10-10T14:30:00"})
	assert.Equal(t, "(`v`.`creation_time` >= ? AND `v`.`creation_time` < ?)", sql)
	assert.Equal(t, []any{"2025-10-10 00:00:00", "2025-10-11 00:00:00"}, args)
}

func TestTranslateDateLessThan(t *testing.T) {
	sql, args := translateOne(t, "creationTime", DateFilter{Op: "lessThan", From: "2025-10-10"})
	assert.Equal(t, "`v`.`creation_time` < ?", sql)
	assert.Equal(t, []any{"2025-10-10 00:00:00"}, args)
}

func TestTranslateDateGreaterThanExcludesEntireFromDay(t *testing.T) {
	// greaterThan 2025-10-10 means "on 2025-10-11 or later": rows anywhere
	// within the From day itself do not match. Established behavior, not a
	// missed boundary.
	sql, args := translateOne(t, "creationTime", DateFilter{Op: "greaterThan", From: "2025-10-10"})
	assert.Equal(t, "`v`.`creation_time` >= ?", sql)
	assert.Equal(t, []any{"2025-10-11 00:00:00"}, args)
}

func TestTranslateDateInRange(t *testing.T) {
	sql, args := translateOne(t, "creationTime", DateFilter{Op: "inRange", From: "2025-10-01", To: "2025-10-10"})
	assert.Equal(t, "(`v`.`creation_time` >= ? AND `v`.`creation_time` < ?)", sql)
	assert.Equal(t, []any{"2025-10-01 00:00:00", "2025-10-11 00:00:00"}, args, "To day is included via the next-day bound")
}

func TestTranslateDateInRangeDegradesMissingTo(t *testing.T) {
	sql, args := translateOne(t, "creationTime", DateFilter{Op: "inRange", From: "2025-10-10"})
	assert.Equal(t, "(`v`.`creation_time` >= ? AND `v`.`creation_time` < ?)", sql)
	assert.Equal(t, []any{"2025-10-10 00:00:00", "2025-10-11 00:00:00"}, args, "absent To collapses to the From day")

	_, args = translateOne(t, "creationTime", DateFilter{Op: "inRange", From: "2025-10-10", To: "garbled"})
	assert.Equal(t, []any{"2025-10-10 00:00:00", "2025-10-11 00:00:00"}, args)
}

func TestTranslateDateSkips(t *testing.T) {
	translateNone(t, "creationTime", DateFilter{Op: "equals", From: ""})
	translateNone(t, "creationTime", DateFilter{Op: "equals", From: "not-a-date"})
	translateNone(t, "creationTime", DateFilter{Op: "between", From: "2025-10-10"})
	// Date descriptors only apply to timestamp columns.
	translateNone(t, "name", DateFilter{Op: "equals", From: "2025-10-10"})
	translateNone(t, "distanceTravelled", DateFilter{Op: "equals", From: "2025-10-10"})
}

func TestTranslateSetEnumMembership(t *testing.T) {
	sql, args := translateOne(t, "type", SetFilter{Values: []string{"CAR", "TRUCK"}})
	assert.Equal(t, "`v`.`type` IN (?,?)", sql)
	assert.Equal(t, []any{"CAR", "TRUCK"}, args)
}

func TestTranslateSetRejectsUnknownEnumValue(t *testing.T) {
	_, err := Translate(testEntity(t), Model{
		"type": SetFilter{Values: []string{"CAR", "ZEPPELIN"}},
	}, gridpath.NewJoinRegistry())
	var modelErr *ModelError
	require.ErrorAs(t, err, &modelErr)
	assert.Equal(t, "type", modelErr.ColID)
}

func TestTranslateSetCoercesIntegerColumns(t *testing.T) {
	sql, args := translateOne(t, "distanceTravelled", SetFilter{Values: []string{"10", "20"}})
	assert.Equal(t, "`v`.`distance_travelled` IN (?,?)", sql)
	assert.Equal(t, []any{int64(10), int64(20)}, args)
}

func TestTranslateSetRejectsNonIntegerForIntegerColumn(t *testing.T) {
	_, err := Translate(testEntity(t), Model{
		"distanceTravelled": SetFilter{Values: []string{"10", "ten"}},
	}, gridpath.NewJoinRegistry())
	var modelErr *ModelError
	require.ErrorAs(t, err, &modelErr)
}

func TestTranslateSetEmptyValues(t *testing.T) {
	translateNone(t, "type", SetFilter{})
}

func TestTranslateUnknownColumn(t *testing.T) {
	_, err := Translate(testEntity(t), Model{
		"warpDrive": TextFilter{Op: "contains", Value: "x"},
	}, gridpath.NewJoinRegistry())
	var pathErr *gridpath.PathError
	require.ErrorAs(t, err, &pathErr)
}

func TestTranslateDeterministicOrder(t *testing.T) {
	entity := testEntity(t)
	model := Model{
		"name":              TextFilter{Op: "equals", Value: "a"},
		"distanceTravelled": NumberFilter{Op: "equals", Value: strptr("1")},
		"capacity":          NumberFilter{Op: "equals", Value: strptr("2")},
	}

	var first []string
	for run := 0; run < 5; run++ {
		preds, err := Translate(entity, model, gridpath.NewJoinRegistry())
		require.NoError(t, err)
		rendered := make([]string, len(preds))
		for i, p := range preds {
			sql, _, err := p.ToSql()
			require.NoError(t, err)
			rendered[i] = sql
		}
		if first == nil {
			first = rendered
			continue
		}
		assert.Equal(t, first, rendered, "column order must not depend on map iteration")
	}
	assert.Equal(t, []string{
		"`v`.`capacity` = ?",
		"`v`.`distance_travelled` = ?",
		"LOWER(`v`.`name`) = ?",
	}, first)
}

func TestTranslateAndOrderByShareJoins(t *testing.T) {
	entity := testEntity(t)
	joins := gridpath.NewJoinRegistry()

	_, err := Translate(entity, Model{
		"owner.fullName": TextFilter{Op: "contains", Value: "smith"},
	}, joins)
	require.NoError(t, err)

	order, err := OrderBy(entity, []SortSpec{{ColID: "owner.age", Sort: "desc"}}, joins)
	require.NoError(t, err)

	assert.Equal(t, []string{"`owner`.`age` DESC"}, order)
	assert.Equal(t, 1, joins.Len(), "filter and sort on the same association reuse one join")
}

func TestOrderByDirections(t *testing.T) {
	entity := testEntity(t)

	order, err := OrderBy(entity, []SortSpec{
		{ColID: "name", Sort: "ASC"},
		{ColID: "enginePower", Sort: "Desc"},
		{ColID: "capacity", Sort: "sideways"},
	}, gridpath.NewJoinRegistry())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"`v`.`name` ASC",
		"`v`.`engine_power` DESC",
		"`v`.`capacity` ASC",
	}, order, "only desc (any case) sorts descending")
}

func TestOrderByEmptyModelUsesDefaultOrder(t *testing.T) {
	entity := testEntity(t)

	order, err := OrderBy(entity, nil, gridpath.NewJoinRegistry())
	require.NoError(t, err)
	assert.Equal(t, []string{"`v`.`creation_time` DESC", "`v`.`id` DESC"}, order)
}

func TestOrderByUnknownColumn(t *testing.T) {
	_, err := OrderBy(testEntity(t), []SortSpec{{ColID: "owner.shoeSize", Sort: "asc"}}, gridpath.NewJoinRegistry())
	var pathErr *gridpath.PathError
	require.ErrorAs(t, err, &pathErr)
}
