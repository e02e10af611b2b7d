package fleet

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"fleetgrid/internal/dbexec"
	"fleetgrid/internal/gridfilter"
	"fleetgrid/internal/gridquery"
	"fleetgrid/internal/logging"
)

// ErrNotFound is returned by lookups whose target row does not exist.
var ErrNotFound = errors.New("not found")

// VehicleStore persists vehicles. Reads that return full entities go through
// the grid engine's batch hydration so associations arrive in the same round
// trip.
type VehicleStore struct {
	exec   dbexec.QueryExecutor
	engine *gridquery.Engine
	logger *logging.Logger
}

// NewVehicleStore creates a vehicle store.
func NewVehicleStore(exec dbexec.QueryExecutor, engine *gridquery.Engine, logger *logging.Logger) *VehicleStore {
	return &VehicleStore{exec: exec, engine: engine, logger: logger}
}

// Save inserts the vehicle when its ID is zero, otherwise updates it in
// place. On insert the generated ID is written back.
func (s *VehicleStore) Save(ctx context.Context, v *Vehicle) error {
	if v.CreationTime.IsZero() {
		v.CreationTime = time.Now().UTC()
	}

	if v.ID == 0 {
		builder := sq.Insert("vehicle").
			Columns("name", "type", "fuel_type", "engine_power", "capacity",
				"distance_travelled", "creation_time", "owner_id", "admin_id").
			Values(v.Name, v.Type, v.FuelType, v.EnginePower, v.Capacity,
				v.DistanceTravelled, v.CreationTime, assocID(v.Owner), accountID(v.Admin)).
			PlaceholderFormat(sq.Question)
		query, args, err := builder.ToSql()
		if err != nil {
			return fmt.Errorf("building vehicle insert: %w", err)
		}
		res, err := s.exec.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("inserting vehicle: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("reading vehicle insert id: %w", err)
		}
		v.ID = id
		s.logger.Debug("vehicle inserted", "vehicle_id", v.ID)
		return nil
	}

	builder := sq.Update("vehicle").
		Set("name", v.Name).
		Set("type", v.Type).
		Set("fuel_type", v.FuelType).
		Set("engine_power", v.EnginePower).
		Set("capacity", v.Capacity).
		Set("distance_travelled", v.DistanceTravelled).
		Set("owner_id", assocID(v.Owner)).
		Set("admin_id", accountID(v.Admin)).
		Where(sq.Eq{"id": v.ID}).
		PlaceholderFormat(sq.Question)
	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("building vehicle update: %w", err)
	}
	if _, err := s.exec.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("updating vehicle: %w", err)
	}
	return nil
}

// FindByID loads one vehicle with its associations, or ErrNotFound.
func (s *VehicleStore) FindByID(ctx context.Context, id int64) (*Vehicle, error) {
	rows, err := s.engine.FetchByIDs(ctx, VehicleEntity, []int64{id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	v := decodeVehicle(rows[0])
	return &v, nil
}

// ExistsByID reports whether a vehicle row exists.
func (s *VehicleStore) ExistsByID(ctx context.Context, id int64) (bool, error) {
	query, args, err := sq.Select("COUNT(*)").From("vehicle").
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(sq.Question).ToSql()
	if err != nil {
		return false, fmt.Errorf("building exists query: %w", err)
	}
	n, err := s.scanCount(ctx, query, args)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteByID removes a vehicle. Deleting a missing row is not an error.
func (s *VehicleStore) DeleteByID(ctx context.Context, id int64) error {
	query, args, err := sq.Delete("vehicle").
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(sq.Question).ToSql()
	if err != nil {
		return fmt.Errorf("building vehicle delete: %w", err)
	}
	if _, err := s.exec.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deleting vehicle: %w", err)
	}
	return nil
}

// FindAll returns a window of vehicles in the default order
// (creationTime desc, id desc).
func (s *VehicleStore) FindAll(ctx context.Context, offset, limit int) ([]Vehicle, error) {
	rows, err := s.engine.FetchPage(ctx, VehicleEntity, gridfilter.Model{}, nil,
		gridquery.PageRequest{StartRow: offset, EndRow: offset + limit})
	if err != nil {
		return nil, err
	}
	return decodeVehicles(rows), nil
}

// FindByOwner returns the owner's vehicles ordered by id asc.
func (s *VehicleStore) FindByOwner(ctx context.Context, ownerID int64) ([]Vehicle, error) {
	query, args, err := sq.Select("id").From("vehicle").
		Where(sq.Eq{"owner_id": ownerID}).
		OrderBy("id ASC").
		PlaceholderFormat(sq.Question).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building owner id query: %w", err)
	}
	rows, err := s.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying vehicles by owner: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning vehicle id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading vehicle ids: %w", err)
	}

	hydrated, err := s.engine.FetchByIDs(ctx, VehicleEntity, ids)
	if err != nil {
		return nil, err
	}
	return decodeVehicles(hydrated), nil
}

// CountByOwner counts the owner's vehicles.
func (s *VehicleStore) CountByOwner(ctx context.Context, ownerID int64) (int64, error) {
	query, args, err := sq.Select("COUNT(*)").From("vehicle").
		Where(sq.Eq{"owner_id": ownerID}).
		PlaceholderFormat(sq.Question).ToSql()
	if err != nil {
		return 0, fmt.Errorf("building owner count query: %w", err)
	}
	return s.scanCount(ctx, query, args)
}

// Page serves one grid page: rows for the requested window plus the total
// count for the same filters.
func (s *VehicleStore) Page(ctx context.Context, req GridRequest) (*VehiclePage, error) {
	model, err := gridfilter.ParseModel(req.FilterModel)
	if err != nil {
		return nil, err
	}

	rows, err := s.engine.FetchPage(ctx, VehicleEntity, model, req.SortModel,
		gridquery.PageRequest{StartRow: req.StartRow, EndRow: req.EndRow})
	if err != nil {
		return nil, err
	}
	total, err := s.engine.Count(ctx, VehicleEntity, model)
	if err != nil {
		return nil, err
	}
	return &VehiclePage{Rows: decodeVehicles(rows), TotalCount: total}, nil
}

// Count returns the total row count for a filter model.
func (s *VehicleStore) Count(ctx context.Context, filterModel map[string]any) (int64, error) {
	model, err := gridfilter.ParseModel(filterModel)
	if err != nil {
		return 0, err
	}
	return s.engine.Count(ctx, VehicleEntity, model)
}

func (s *VehicleStore) scanCount(ctx context.Context, query string, args []any) (int64, error) {
	rows, err := s.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("executing count query: %w", err)
	}
	defer rows.Close()

	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, fmt.Errorf("scanning count: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("reading count: %w", err)
	}
	return n, nil
}

func decodeVehicles(rows []gridquery.Row) []Vehicle {
	out := make([]Vehicle, 0, len(rows))
	for _, row := range rows {
		out = append(out, decodeVehicle(row))
	}
	return out
}

// assocID returns the FK value for an optional owner.
func assocID(p *Person) any {
	if p == nil {
		return nil
	}
	return p.ID
}

func accountID(a *Account) any {
	if a == nil {
		return nil
	}
	return a.ID
}
