// Package movement_repo provides the PostgreSQL repository of movement records.
package movement_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"storeflow/internal/core/apperror"
	"storeflow/internal/core/id"
	"storeflow/internal/domain/approval"
	"storeflow/internal/domain/movement"
	"storeflow/internal/domain/scope"
	"storeflow/internal/infrastructure/storage/postgres"
)

const (
	movementsTable = "movements"
	linesTable     = "movement_lines"
)

var _ approval.Repository = (*Repo)(nil)

var lineColumns = []string{
	"line_id", "record_id", "line_no", "product_id",
	"quantity_requested", "quantity_issued", "quantity_received",
	"expected_quantity", "counted_quantity", "accepted_variance",
	"unit_value",
}

// Repo persists movement headers in movements and line items in movement_lines.
type Repo struct {
	txManager  *postgres.TxManager
	headerCols []string
}

// NewRepo creates the movement repository.
func NewRepo(txManager *postgres.TxManager) *Repo {
	return &Repo{
		txManager:  txManager,
		headerCols: postgres.ExtractDBColumns[movement.Record](),
	}
}

func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *Repo) querier(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

// Create inserts the header. Lines are written by SaveLines.
func (r *Repo) Create(ctx context.Context, rec *movement.Record) error {
	data := r.columnsOf(rec)

	sql, args, err := builder().Insert(movementsTable).SetMap(data).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert %s: %w", movementsTable, err)
	}
	return nil
}

// Update writes the header if the stored version still matches, then bumps rec.Version.
func (r *Repo) Update(ctx context.Context, rec *movement.Record) error {
	data := r.columnsOf(rec)
	for _, col := range []string{"id", "kind", "created_at", "created_by", "version"} {
		delete(data, col)
	}

	sql, args, err := builder().
		Update(movementsTable).
		SetMap(data).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": rec.ID, "version": rec.Version}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", movementsTable, err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("movement", rec.ID.String())
	}

	rec.Version++
	return nil
}

// columnsOf maps the header to its column values.
func (r *Repo) columnsOf(rec *movement.Record) map[string]any {
	all := postgres.StructToMap(rec)
	data := make(map[string]any, len(r.headerCols))
	for _, col := range r.headerCols {
		if v, ok := all[col]; ok {
			data[col] = v
		}
	}
	return data
}

// Delete removes a record with its lines and journal.
func (r *Repo) Delete(ctx context.Context, recordID id.ID) error {
	sql, args, err := builder().Delete(movementsTable).Where(squirrel.Eq{"id": recordID}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete %s: %w", movementsTable, err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("movement", recordID.String())
	}
	return nil
}

// GetByID loads a record with its lines.
func (r *Repo) GetByID(ctx context.Context, recordID id.ID) (*movement.Record, error) {
	return r.get(ctx, recordID, "")
}

// GetForUpdate loads a record and locks its header row.
func (r *Repo) GetForUpdate(ctx context.Context, recordID id.ID) (*movement.Record, error) {
	return r.get(ctx, recordID, "FOR UPDATE")
}

func (r *Repo) get(ctx context.Context, recordID id.ID, suffix string) (*movement.Record, error) {
	q := builder().Select(r.headerCols...).From(movementsTable).Where(squirrel.Eq{"id": recordID})
	if suffix != "" {
		q = q.Suffix(suffix)
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rec := &movement.Record{}
	if err := pgxscan.Get(ctx, r.querier(ctx), rec, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("movement", recordID.String())
		}
		return nil, fmt.Errorf("get movement: %w", err)
	}

	lines, err := r.getLines(ctx, recordID)
	if err != nil {
		return nil, err
	}
	rec.Lines = lines
	return rec, nil
}

func (r *Repo) getLines(ctx context.Context, recordID id.ID) ([]movement.LineItem, error) {
	cols := make([]string, 0, len(lineColumns)-1)
	for _, c := range lineColumns {
		if c != "record_id" {
			cols = append(cols, c)
		}
	}
	sql, args, err := builder().
		Select(cols...).
		From(linesTable).
		Where(squirrel.Eq{"record_id": recordID}).
		OrderBy("line_no").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	lines := []movement.LineItem{}
	if err := pgxscan.Select(ctx, r.querier(ctx), &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	return lines, nil
}

// SaveLines replaces the line items of a record. Must run in a transaction.
func (r *Repo) SaveLines(ctx context.Context, recordID id.ID, lines []movement.LineItem) error {
	if _, err := r.querier(ctx).Exec(ctx, "DELETE FROM "+linesTable+" WHERE record_id = $1", recordID); err != nil {
		return fmt.Errorf("delete existing lines: %w", err)
	}

	rows := make([][]any, 0, len(lines))
	for _, l := range lines {
		var accepted *int64
		if l.AcceptedVariance != nil {
			v := l.AcceptedVariance.Int64Scaled()
			accepted = &v
		}
		rows = append(rows, []any{
			l.LineID, recordID, l.LineNo, l.ProductID,
			l.QuantityRequested.Int64Scaled(), l.QuantityIssued.Int64Scaled(), l.QuantityReceived.Int64Scaled(),
			l.ExpectedQuantity.Int64Scaled(), l.CountedQuantity.Int64Scaled(), accepted,
			l.UnitValue,
		})
	}

	if _, err := postgres.CopyRows(ctx, r.txManager, linesTable, lineColumns, rows); err != nil {
		return fmt.Errorf("insert lines: %w", err)
	}
	return nil
}

// List returns one page of records matching filter and visible under rule. Lines are not loaded.
func (r *Repo) List(ctx context.Context, filter movement.ListFilter, rule scope.Rule) (movement.ListResult, error) {
	result := movement.ListResult{
		Records: []*movement.Record{},
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}

	base := r.scoped(filter, rule)

	countSQL, countArgs, err := builder().Select("COUNT(*)").FromSelect(base, "sub").ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}
	if err := r.querier(ctx).QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count: %w", err)
	}

	q, err := paginate(base, filter)
	if err != nil {
		return result, err
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, r.querier(ctx), &result.Records, sql, args...); err != nil {
		return result, fmt.Errorf("list movements: %w", err)
	}
	return result, nil
}

// Summaries returns the headers of every record List would page through, across all pages.
func (r *Repo) Summaries(ctx context.Context, filter movement.ListFilter, rule scope.Rule) ([]*movement.Record, error) {
	sql, args, err := r.scoped(filter, rule).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var out []*movement.Record
	if err := pgxscan.Select(ctx, r.querier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("load summaries: %w", err)
	}
	return out, nil
}

// scoped selects headers matching filter and visible under rule. List and Summaries share it.
func (r *Repo) scoped(filter movement.ListFilter, rule scope.Rule) squirrel.SelectBuilder {
	return builder().Select(r.headerCols...).From(movementsTable).
		Where(ruleCondition(rule)).
		Where(filterCondition(filter))
}
