package movement_repo

import (
	"strings"

	"github.com/Masterminds/squirrel"

	"storeflow/internal/core/apperror"
	"storeflow/internal/domain/movement"
	"storeflow/internal/domain/scope"
)

// sortable columns of the list endpoint
var orderColumns = map[string]struct{}{
	"date":             {},
	"reference_number": {},
	"status":           {},
	"priority":         {},
	"total_value":      {},
	"created_at":       {},
	"updated_at":       {},
}

// ruleCondition renders rule as a WHERE clause. An empty rule matches nothing.
func ruleCondition(rule scope.Rule) squirrel.Sqlizer {
	if rule.Empty() {
		return squirrel.Expr("FALSE")
	}

	kind := squirrel.Eq{"kind": rule.Kind}
	if rule.Kind == movement.KindPhysicalInventory {
		return squirrel.And{kind, squirrel.Eq{"store_id": rule.StoreIDs}}
	}

	requestSide := squirrel.Eq{"requesting_store_id": rule.StoreIDs}
	issueSide := squirrel.And{
		squirrel.Eq{"issuing_store_id": rule.StoreIDs},
		squirrel.Eq{"status": rule.IssueStatuses},
	}
	initiatedSide := squirrel.And{
		squirrel.Eq{"issuing_store_id": rule.StoreIDs},
		squirrel.Eq{"request_type": movement.RequestTypeIssue},
	}

	switch rule.View {
	case movement.ViewRequest:
		return squirrel.And{kind, requestSide}
	case movement.ViewIssue:
		return squirrel.And{kind, issueSide}
	default:
		return squirrel.And{kind, squirrel.Or{requestSide, issueSide, initiatedSide}}
	}
}

// filterCondition renders the non-scope list criteria.
func filterCondition(f movement.ListFilter) squirrel.Sqlizer {
	cond := squirrel.And{}

	if len(f.Statuses) > 0 {
		cond = append(cond, squirrel.Eq{"status": f.Statuses})
	}
	if f.DateFrom != nil {
		cond = append(cond, squirrel.GtOrEq{"date": *f.DateFrom})
	}
	if f.DateTo != nil {
		cond = append(cond, squirrel.LtOrEq{"date": *f.DateTo})
	}
	if f.Priority != "" {
		cond = append(cond, squirrel.Eq{"priority": f.Priority})
	}
	if f.RequestType != "" {
		cond = append(cond, squirrel.Eq{"request_type": f.RequestType})
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		pattern := "%" + escapeLike(s) + "%"
		cond = append(cond, squirrel.Or{
			squirrel.ILike{"reference_number": pattern},
			squirrel.ILike{"notes": pattern},
		})
	}

	if len(cond) == 0 {
		return squirrel.Expr("TRUE")
	}
	return cond
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// paginate applies ordering and the page window.
func paginate(q squirrel.SelectBuilder, f movement.ListFilter) (squirrel.SelectBuilder, error) {
	orderBy, err := parseOrderBy(f.OrderBy)
	if err != nil {
		return q, err
	}
	// id breaks ties so pages are stable
	q = q.OrderBy(orderBy, "id")

	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		q = q.Offset(uint64(f.Offset))
	}
	return q, nil
}

func parseOrderBy(orderBy string) (string, error) {
	orderBy = strings.TrimSpace(orderBy)
	if orderBy == "" {
		return "date DESC", nil
	}

	direction := "ASC"
	field := orderBy
	if strings.HasPrefix(orderBy, "-") {
		direction = "DESC"
		field = strings.TrimPrefix(orderBy, "-")
	} else if strings.HasPrefix(orderBy, "+") {
		field = strings.TrimPrefix(orderBy, "+")
	}

	field = strings.TrimSpace(field)
	if _, ok := orderColumns[field]; !ok {
		return "", apperror.NewFieldValidation("orderBy", "invalid orderBy").WithDetail("orderBy", orderBy)
	}
	return field + " " + direction, nil
}
