package fleet

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"fleetgrid/internal/dbexec"
	"fleetgrid/internal/gridfilter"
	"fleetgrid/internal/gridquery"
	"fleetgrid/internal/logging"
)

// PersonStore persists persons.
type PersonStore struct {
	exec   dbexec.QueryExecutor
	engine *gridquery.Engine
	logger *logging.Logger
}

// NewPersonStore creates a person store.
func NewPersonStore(exec dbexec.QueryExecutor, engine *gridquery.Engine, logger *logging.Logger) *PersonStore {
	return &PersonStore{exec: exec, engine: engine, logger: logger}
}

// Save inserts the person when its ID is zero, otherwise updates it.
func (s *PersonStore) Save(ctx context.Context, p *Person) error {
	if p.CreationTime.IsZero() {
		p.CreationTime = time.Now().UTC()
	}

	if p.ID == 0 {
		query, args, err := sq.Insert("person").
			Columns("full_name", "age", "license", "creation_time", "admin_id").
			Values(p.FullName, p.Age, p.License, p.CreationTime, accountID(p.Admin)).
			PlaceholderFormat(sq.Question).ToSql()
		if err != nil {
			return fmt.Errorf("building person insert: %w", err)
		}
		res, err := s.exec.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("inserting person: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("reading person insert id: %w", err)
		}
		p.ID = id
		s.logger.Debug("person inserted", "person_id", p.ID)
		return nil
	}

	query, args, err := sq.Update("person").
		Set("full_name", p.FullName).
		Set("age", p.Age).
		Set("license", p.License).
		Set("admin_id", accountID(p.Admin)).
		Where(sq.Eq{"id": p.ID}).
		PlaceholderFormat(sq.Question).ToSql()
	if err != nil {
		return fmt.Errorf("building person update: %w", err)
	}
	if _, err := s.exec.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("updating person: %w", err)
	}
	return nil
}

// FindByID loads one person with its admin account, or ErrNotFound.
func (s *PersonStore) FindByID(ctx context.Context, id int64) (*Person, error) {
	rows, err := s.engine.FetchByIDs(ctx, PersonEntity, []int64{id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	p := decodePerson(rows[0])
	return &p, nil
}

// ExistsByID reports whether a person row exists.
func (s *PersonStore) ExistsByID(ctx context.Context, id int64) (bool, error) {
	query, args, err := sq.Select("COUNT(*)").From("person").
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

// DeleteByID removes a person. Deleting a missing row is not an error.
func (s *PersonStore) DeleteByID(ctx context.Context, id int64) error {
	query, args, err := sq.Delete("person").
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(sq.Question).ToSql()
	if err != nil {
		return fmt.Errorf("building person delete: %w", err)
	}
	if _, err := s.exec.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deleting person: %w", err)
	}
	return nil
}

// FindAll returns a window of persons in the default order
// (creationTime desc, id desc).
func (s *PersonStore) FindAll(ctx context.Context, offset, limit int) ([]Person, error) {
	rows, err := s.engine.FetchPage(ctx, PersonEntity, gridfilter.Model{}, nil,
		gridquery.PageRequest{StartRow: offset, EndRow: offset + limit})
	if err != nil {
		return nil, err
	}
	return decodePersons(rows), nil
}

// Page serves one grid page of persons.
func (s *PersonStore) Page(ctx context.Context, req GridRequest) (*PersonPage, error) {
	model, err := gridfilter.ParseModel(req.FilterModel)
	if err != nil {
		return nil, err
	}

	rows, err := s.engine.FetchPage(ctx, PersonEntity, model, req.SortModel,
		gridquery.PageRequest{StartRow: req.StartRow, EndRow: req.EndRow})
	if err != nil {
		return nil, err
	}
	total, err := s.engine.Count(ctx, PersonEntity, model)
	if err != nil {
		return nil, err
	}
	return &PersonPage{Rows: decodePersons(rows), TotalCount: total}, nil
}

// Count returns the total row count for a filter model.
func (s *PersonStore) Count(ctx context.Context, filterModel map[string]any) (int64, error) {
	model, err := gridfilter.ParseModel(filterModel)
	if err != nil {
		return 0, err
	}
	return s.engine.Count(ctx, PersonEntity, model)
}

func (s *PersonStore) scanCount(ctx context.Context, query string, args []any) (int64, error) {
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

func decodePersons(rows []gridquery.Row) []Person {
	out := make([]Person, 0, len(rows))
	for _, row := range rows {
		out = append(out, decodePerson(row))
	}
	return out
}
