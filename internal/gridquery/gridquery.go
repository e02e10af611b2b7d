// Package gridquery executes grid page requests. A page fetch is two-phase:
// an id-only query applies the filters, ordering, and offset/limit, then a
// single batch query hydrates full rows (with eager associations) for exactly
// those ids and restores the id page's order in memory. The batch query has
// no defined order of its own, and the two queries may observe different
// snapshots; a row deleted in between simply disappears from the page.
package gridquery

import (
	"context"
	"fmt"
	"sort"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"fleetgrid/internal/dbexec"
	"fleetgrid/internal/gridfilter"
	"fleetgrid/internal/gridpath"
	"fleetgrid/internal/logging"
	"fleetgrid/internal/observability"
	"fleetgrid/internal/schema"
	"fleetgrid/internal/sqlutil"
)

// AssocColumnSep separates the association name from the column name in
// hydrated row keys, e.g. "owner__full_name".
const AssocColumnSep = "__"

// Row is one hydrated result row. Root columns are keyed by column name,
// eager association columns by "assoc__column".
type Row map[string]any

// PageRequest is a zero-based, exclusive-end row window.
type PageRequest struct {
	StartRow int
	EndRow   int
}

// Offset clamps the start row to zero.
func (p PageRequest) Offset() uint64 {
	if p.StartRow < 0 {
		return 0
	}
	return uint64(p.StartRow)
}

// Limit is the page size, clamped to a minimum of one row.
func (p PageRequest) Limit() uint64 {
	size := p.EndRow - p.StartRow
	if size < 1 {
		return 1
	}
	return uint64(size)
}

// Engine runs grid queries against an executor. It holds no per-request
// state; every call builds its own join registry and rank map, so concurrent
// use is safe.
type Engine struct {
	exec    dbexec.QueryExecutor
	logger  *logging.Logger
	metrics *observability.GridMetrics
	tracer  trace.Tracer
}

// NewEngine creates an engine. metrics may be nil when observability is
// disabled.
func NewEngine(exec dbexec.QueryExecutor, logger *logging.Logger, metrics *observability.GridMetrics) *Engine {
	return &Engine{
		exec:    exec,
		logger:  logger,
		metrics: metrics,
		tracer:  otel.Tracer("fleetgrid/gridquery"),
	}
}

// FetchPage returns the requested page, ordered by the sort model (or the
// entity's default order), with eager associations hydrated in the same
// round trip. At most two queries run regardless of page size.
func (e *Engine) FetchPage(
	ctx context.Context,
	entity *schema.Entity,
	model gridfilter.Model,
	sortModel []gridfilter.SortSpec,
	page PageRequest,
) ([]Row, error) {
	ctx, span := e.tracer.Start(ctx, "grid.fetch_page", trace.WithAttributes(
		attribute.String("grid.entity", entity.Name),
		attribute.Int("grid.start_row", page.StartRow),
		attribute.Int("grid.end_row", page.EndRow),
	))
	defer span.End()

	queryID := uuid.NewString()
	log := e.logger.WithQueryID(queryID)

	ids, err := e.fetchIDPage(ctx, entity, model, sortModel, page)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		// Nothing matched the window; skip the hydration round trip.
		span.SetAttributes(attribute.Int("grid.rows", 0))
		return []Row{}, nil
	}

	rows, err := e.FetchByIDs(ctx, entity, ids)
	if err != nil {
		return nil, err
	}

	if vanished := len(ids) - len(rows); vanished > 0 {
		// Deleted between the id query and the batch fetch; expected race.
		log.Debug("grid page shrank between phases",
			"entity", entity.Name, "requested", len(ids), "got", len(rows))
		if e.metrics != nil {
			e.metrics.AddVanishedRows(ctx, entity.Name, vanished)
		}
	}
	if e.metrics != nil {
		e.metrics.ObservePageRows(ctx, entity.Name, len(rows))
	}
	span.SetAttributes(attribute.Int("grid.rows", len(rows)))
	log.Debug("grid page served", "entity", entity.Name, "rows", len(rows))
	return rows, nil
}

// Count returns the number of rows matching the filter model. It reuses the
// page query's predicate construction but projects COUNT(*) and applies no
// ordering or window, so the result is sort-model independent.
func (e *Engine) Count(ctx context.Context, entity *schema.Entity, model gridfilter.Model) (int64, error) {
	ctx, span := e.tracer.Start(ctx, "grid.count", trace.WithAttributes(
		attribute.String("grid.entity", entity.Name),
	))
	defer span.End()

	joins := gridpath.NewJoinRegistry()
	preds, err := gridfilter.Translate(entity, model, joins)
	if err != nil {
		return 0, err
	}

	builder := sq.Select("COUNT(*)").
		From(fromClause(entity)).
		PlaceholderFormat(sq.Question)
	for _, j := range joins.Joins() {
		builder = builder.LeftJoin(j.Clause)
	}
	for _, p := range preds {
		builder = builder.Where(p)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("building count query: %w", err)
	}

	started := time.Now()
	rows, err := e.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("executing count query: %w", err)
	}
	defer rows.Close()

	var total int64
	if rows.Next() {
		if err := rows.Scan(&total); err != nil {
			return 0, fmt.Errorf("scanning count: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("reading count: %w", err)
	}
	if e.metrics != nil {
		e.metrics.ObserveQueryDuration(ctx, entity.Name, "count", time.Since(started))
	}
	return total, nil
}

// fetchIDPage runs phase one: the id-only projection with filters, order,
// and window applied.
func (e *Engine) fetchIDPage(
	ctx context.Context,
	entity *schema.Entity,
	model gridfilter.Model,
	sortModel []gridfilter.SortSpec,
	page PageRequest,
) ([]int64, error) {
	// One registry for predicates and ordering: a filter on owner.name and a
	// sort on owner.age must share a single join.
	joins := gridpath.NewJoinRegistry()
	preds, err := gridfilter.Translate(entity, model, joins)
	if err != nil {
		return nil, err
	}
	order, err := gridfilter.OrderBy(entity, sortModel, joins)
	if err != nil {
		return nil, err
	}

	builder := sq.Select(sqlutil.Qualify(entity.Alias, entity.IDColumn())).
		From(fromClause(entity)).
		PlaceholderFormat(sq.Question)
	for _, j := range joins.Joins() {
		builder = builder.LeftJoin(j.Clause)
	}
	for _, p := range preds {
		builder = builder.Where(p)
	}
	builder = builder.OrderBy(order...).
		Offset(page.Offset()).
		Limit(page.Limit())

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building id query: %w", err)
	}

	started := time.Now()
	rows, err := e.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing id query: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading id page: %w", err)
	}
	if e.metrics != nil {
		e.metrics.ObserveQueryDuration(ctx, entity.Name, "ids", time.Since(started))
	}
	return ids, nil
}

// FetchByIDs hydrates full rows for the given ids in one batch query and
// returns them in the ids' order. Ids that no longer resolve are absent from
// the result, not an error.
func (e *Engine) FetchByIDs(ctx context.Context, entity *schema.Entity, ids []int64) ([]Row, error) {
	if len(ids) == 0 {
		return []Row{}, nil
	}
	rows, err := e.hydrate(ctx, entity, ids)
	if err != nil {
		return nil, err
	}
	reorderByID(entity, ids, rows)
	return rows, nil
}

// hydrate runs phase two: one batch select of full rows for the id page,
// LEFT JOINing every eager association so no per-row follow-up queries are
// needed.
func (e *Engine) hydrate(ctx context.Context, entity *schema.Entity, ids []int64) ([]Row, error) {
	builder := sq.Select(hydrationColumns(entity)...).
		From(fromClause(entity)).
		PlaceholderFormat(sq.Question).
		Where(sq.Eq{sqlutil.Qualify(entity.Alias, entity.IDColumn()): ids})
	for _, clause := range eagerJoinClauses(entity) {
		builder = builder.LeftJoin(clause)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building hydration query: %w", err)
	}

	started := time.Now()
	rows, err := e.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing hydration query: %w", err)
	}
	defer rows.Close()

	out, err := scanRows(rows)
	if err != nil {
		return nil, err
	}
	if e.metrics != nil {
		e.metrics.ObserveQueryDuration(ctx, entity.Name, "hydrate", time.Since(started))
	}
	return out, nil
}

func fromClause(entity *schema.Entity) string {
	return sqlutil.QuoteIdentifier(entity.Table) + " AS " + sqlutil.QuoteIdentifier(entity.Alias)
}

// hydrationColumns lists the root entity's columns plus each eager
// association's columns under the assoc__column alias, in deterministic
// order.
func hydrationColumns(entity *schema.Entity) []string {
	cols := make([]string, 0, len(entity.Fields))
	for _, fieldID := range sortedFieldIDs(entity) {
		col := entity.Fields[fieldID].Column
		cols = append(cols, sqlutil.AliasedColumn(entity.Alias, col, col))
	}
	for _, name := range entity.EagerAssociations {
		assoc := entity.Associations[name]
		for _, fieldID := range sortedFieldIDs(assoc.Target) {
			col := assoc.Target.Fields[fieldID].Column
			cols = append(cols, sqlutil.AliasedColumn(name, col, name+AssocColumnSep+col))
		}
	}
	return cols
}

func eagerJoinClauses(entity *schema.Entity) []string {
	clauses := make([]string, 0, len(entity.EagerAssociations))
	for _, name := range entity.EagerAssociations {
		assoc := entity.Associations[name]
		clauses = append(clauses, fmt.Sprintf("%s AS %s ON %s = %s",
			sqlutil.QuoteIdentifier(assoc.Target.Table),
			sqlutil.QuoteIdentifier(name),
			sqlutil.Qualify(entity.Alias, assoc.LocalColumn),
			sqlutil.Qualify(name, assoc.RemoteColumn),
		))
	}
	return clauses
}

func sortedFieldIDs(entity *schema.Entity) []string {
	ids := make([]string, 0, len(entity.Fields))
	for id := range entity.Fields {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// scanRows reads every result row into a map keyed by result column alias.
// []byte values are copied to string; the driver reuses scan buffers.
func scanRows(rows dbexec.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading result columns: %w", err)
	}

	var out []Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			switch v := values[i].(type) {
			case []byte:
				row[col] = string(v)
			default:
				row[col] = v
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading rows: %w", err)
	}
	return out, nil
}

// reorderByID sorts rows to match the id page's order. The batch query has
// no order guarantee, so the id sequence is the source of truth. Rows whose
// id is somehow absent from the page sort last; the sort is stable.
func reorderByID(entity *schema.Entity, ids []int64, rows []Row) {
	rank := make(map[int64]int, len(ids))
	for i, id := range ids {
		rank[id] = i
	}
	idCol := entity.IDColumn()
	sort.SliceStable(rows, func(i, j int) bool {
		return rowRank(rank, rows[i], idCol) < rowRank(rank, rows[j], idCol)
	})
}

func rowRank(rank map[int64]int, row Row, idCol string) int {
	id, ok := rowID(row, idCol)
	if !ok {
		return int(^uint(0) >> 1)
	}
	r, ok := rank[id]
	if !ok {
		return int(^uint(0) >> 1)
	}
	return r
}

// rowID extracts the primary key from a hydrated row. Drivers differ on the
// concrete integer type they hand back.
func rowID(row Row, idCol string) (int64, bool) {
	switch v := row[idCol].(type) {
	case int64:
		return v, true
	case int32:
		return int64(v), true
	case int:
		return int64(v), true
	case string:
		var id int64
		if _, err := fmt.Sscanf(v, "%d", &id); err != nil {
			return 0, false
		}
		return id, true
	default:
		return 0, false
	}
}
