package fleet

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetgrid/internal/dbexec"
	"fleetgrid/internal/gridquery"
	"fleetgrid/internal/logging"
)

func newTestStores(t *testing.T) (*VehicleStore, *PersonStore, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)

	exec := dbexec.NewStandardExecutor(db)
	logger := logging.NewLogger(logging.Config{Level: "error", Format: "text"})
	engine := gridquery.NewEngine(exec, logger, nil)
	return NewVehicleStore(exec, engine, logger), NewPersonStore(exec, engine, logger), mock, db
}

func vehicleRowHeader() []string {
	// Hydration aliases in sorted field-id order: vehicle columns first, then
	// the owner and admin association columns.
	return []string{
		"capacity", "creation_time", "distance_travelled", "engine_power",
		"fuel_type", "id", "name", "type",
		"owner__age", "owner__creation_time", "owner__full_name", "owner__id", "owner__license",
		"admin__id", "admin__login", "admin__role",
	}
}

func addVehicleRow(rows *sqlmock.Rows, id int64, name string) *sqlmock.Rows {
	return rows.AddRow(
		"10.00", "2025-10-10 08:00:00", int64(1000), 120.0,
		"DIESEL", id, name, "TRUCK",
		int64(41), "2025-01-01 08:00:00", "Ann Smith", int64(3), "B-123",
		int64(9), "ops", "ADMIN",
	)
}

func TestVehicleStoreSaveInsert(t *testing.T) {
	store, _, mock, db := newTestStores(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(
		"INSERT INTO vehicle (name,type,fuel_type,engine_power,capacity,"+
			"distance_travelled,creation_time,owner_id,admin_id) "+
			"VALUES (?,?,?,?,?,?,?,?,?)")).
		WillReturnResult(sqlmock.NewResult(7, 1))

	v := &Vehicle{
		Name:     "hauler",
		Type:     "TRUCK",
		FuelType: "DIESEL",
		Owner:    &Person{ID: 3},
	}
	require.NoError(t, store.Save(context.Background(), v))
	assert.Equal(t, int64(7), v.ID, "generated id is written back")
	assert.False(t, v.CreationTime.IsZero(), "creation time is stamped on insert")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVehicleStoreSaveUpdate(t *testing.T) {
	store, _, mock, db := newTestStores(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(
		"UPDATE vehicle SET name = ?, type = ?, fuel_type = ?, engine_power = ?, "+
			"capacity = ?, distance_travelled = ?, owner_id = ?, admin_id = ? "+
			"WHERE id = ?")).
		WithArgs("hauler", "TRUCK", "DIESEL", 120.0, "10.00", int64(1000), nil, nil, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	v := &Vehicle{
		ID:                7,
		Name:              "hauler",
		Type:              "TRUCK",
		FuelType:          "DIESEL",
		EnginePower:       120.0,
		Capacity:          "10.00",
		DistanceTravelled: 1000,
		CreationTime:      time.Date(2025, 10, 10, 8, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Save(context.Background(), v))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVehicleStoreFindByID(t *testing.T) {
	store, _, mock, db := newTestStores(t)
	defer db.Close()

	mock.ExpectQuery("WHERE `v`\\.`id` IN \\(\\?\\)").
		WithArgs(int64(7)).
		WillReturnRows(addVehicleRow(sqlmock.NewRows(vehicleRowHeader()), 7, "hauler"))

	v, err := store.FindByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "hauler", v.Name)
	require.NotNil(t, v.Owner)
	assert.Equal(t, "Ann Smith", v.Owner.FullName)
	require.NotNil(t, v.Admin)
	assert.Equal(t, "ops", v.Admin.Login)
}

func TestVehicleStoreFindByIDNotFound(t *testing.T) {
	store, _, mock, db := newTestStores(t)
	defer db.Close()

	mock.ExpectQuery("WHERE `v`\\.`id` IN \\(\\?\\)").
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows(vehicleRowHeader()))

	_, err := store.FindByID(context.Background(), 404)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestVehicleStoreExistsByID(t *testing.T) {
	store, _, mock, db := newTestStores(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM vehicle WHERE id = ?")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(1))

	exists, err := store.ExistsByID(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, exists)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM vehicle WHERE id = ?")).
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(0))

	exists, err = store.ExistsByID(context.Background(), 404)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestVehicleStoreDeleteByID(t *testing.T) {
	store, _, mock, db := newTestStores(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM vehicle WHERE id = ?")).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.DeleteByID(context.Background(), 7))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVehicleStoreFindByOwner(t *testing.T) {
	store, _, mock, db := newTestStores(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM vehicle WHERE owner_id = ? ORDER BY id ASC")).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)).AddRow(int64(8)))

	rows := sqlmock.NewRows(vehicleRowHeader())
	addVehicleRow(rows, 8, "second")
	addVehicleRow(rows, 7, "first")
	mock.ExpectQuery("WHERE `v`\\.`id` IN \\(\\?,\\?\\)").
		WithArgs(int64(7), int64(8)).
		WillReturnRows(rows)

	vehicles, err := store.FindByOwner(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, vehicles, 2)
	assert.Equal(t, int64(7), vehicles[0].ID, "id order is restored after the batch fetch")
	assert.Equal(t, int64(8), vehicles[1].ID)
}

func TestVehicleStoreFindByOwnerNoVehicles(t *testing.T) {
	store, _, mock, db := newTestStores(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM vehicle WHERE owner_id = ? ORDER BY id ASC")).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	vehicles, err := store.FindByOwner(context.Background(), 99)
	require.NoError(t, err)
	assert.Empty(t, vehicles)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVehicleStoreCountByOwner(t *testing.T) {
	store, _, mock, db := newTestStores(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM vehicle WHERE owner_id = ?")).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(5))

	n, err := store.CountByOwner(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}

func TestVehicleStorePage(t *testing.T) {
	store, _, mock, db := newTestStores(t)
	defer db.Close()

	// Phase one: id window with the default order.
	mock.ExpectQuery("SELECT `v`\\.`id` FROM `vehicle` AS `v` ORDER BY " +
		"`v`\\.`creation_time` DESC, `v`\\.`id` DESC LIMIT 2 OFFSET 0").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(8)).AddRow(int64(7)))

	// Phase two: batch hydration with both eager joins.
	rows := sqlmock.NewRows(vehicleRowHeader())
	addVehicleRow(rows, 7, "first")
	addVehicleRow(rows, 8, "second")
	mock.ExpectQuery("LEFT JOIN `person` AS `owner` ON `v`\\.`owner_id` = `owner`\\.`id` " +
		"LEFT JOIN `account` AS `admin` ON `v`\\.`admin_id` = `admin`\\.`id` " +
		"WHERE `v`\\.`id` IN \\(\\?,\\?\\)").
		WithArgs(int64(8), int64(7)).
		WillReturnRows(rows)

	// Total count for the same (empty) filter.
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM `vehicle` AS `v`")).
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(12))

	page, err := store.Page(context.Background(), GridRequest{StartRow: 0, EndRow: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(12), page.TotalCount)
	require.Len(t, page.Rows, 2)
	assert.Equal(t, int64(8), page.Rows[0].ID)
	assert.Equal(t, int64(7), page.Rows[1].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVehicleStorePageRejectsMalformedFilter(t *testing.T) {
	store, _, mock, db := newTestStores(t)
	defer db.Close()

	_, err := store.Page(context.Background(), GridRequest{
		StartRow:    0,
		EndRow:      10,
		FilterModel: map[string]any{"name": "not-an-object"},
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPersonStoreSaveInsert(t *testing.T) {
	_, store, mock, db := newTestStores(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(
		"INSERT INTO person (full_name,age,license,creation_time,admin_id) VALUES (?,?,?,?,?)")).
		WillReturnResult(sqlmock.NewResult(3, 1))

	p := &Person{FullName: "Ann Smith", Age: 41, License: "B-123"}
	require.NoError(t, store.Save(context.Background(), p))
	assert.Equal(t, int64(3), p.ID)
}

func TestPersonStoreCountWithFilter(t *testing.T) {
	_, store, mock, db := newTestStores(t)
	defer db.Close()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM `person` AS `p` WHERE " +
		"LOWER\\(`p`\\.`full_name`\\) LIKE \\?").
		WithArgs("%smith%").
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(2))

	n, err := store.Count(context.Background(), map[string]any{
		"fullName": map[string]any{
			"filterType": "text",
			"type":       "contains",
			"filter":     "Smith",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
