package postgres

import (
	"fmt"
	"strings"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

// selectQuery собирает SELECT по коллекции. Имена полей передаются параметрами,
// в текст запроса попадают только служебные колонки.
type selectQuery struct {
	collection string
	filter     []domain.FilterCondition
	sort       []domain.SortField
	limit      int
	offset     int
}

func newSelectQuery(collection string, opts domain.ListOptions) (selectQuery, error) {
	filter, err := domain.ParseFilter(opts.Filter)
	if err != nil {
		return selectQuery{}, err
	}
	sortFields, err := domain.ParseSort(opts.Sort)
	if err != nil {
		return selectQuery{}, err
	}
	return selectQuery{collection: collection, filter: filter, sort: sortFields}, nil
}

type argList []any

func (a *argList) add(v any) string {
	*a = append(*a, v)
	return fmt.Sprintf("$%d", len(*a))
}

func (q selectQuery) where(args *argList) string {
	var b strings.Builder
	b.WriteString("collection = ")
	b.WriteString(args.add(q.collection))

	for _, c := range q.filter {
		b.WriteString(" AND ")
		b.WriteString(textExpr(c.Field, args))
		switch c.Op {
		case domain.FilterNotEq:
			b.WriteString(" <> ")
		default:
			b.WriteString(" = ")
		}
		b.WriteString(args.add(c.Value))
	}
	return b.String()
}

// build возвращает запрос выборки записей и его параметры.
func (q selectQuery) build() (string, []any) {
	args := argList{}
	var b strings.Builder

	b.WriteString("SELECT id, data, created, updated FROM records WHERE ")
	b.WriteString(q.where(&args))

	b.WriteString(" ORDER BY ")
	for _, s := range q.sort {
		b.WriteString(orderExpr(s.Field, &args))
		if s.Desc {
			b.WriteString(" DESC NULLS LAST")
		} else {
			b.WriteString(" ASC NULLS FIRST")
		}
		b.WriteString(", ")
	}
	b.WriteString("seq ASC")

	if q.limit > 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(args.add(q.limit))
	}
	if q.offset > 0 {
		b.WriteString(" OFFSET ")
		b.WriteString(args.add(q.offset))
	}
	return b.String(), args
}

// count возвращает запрос числа записей под фильтром.
func (q selectQuery) count() (string, []any) {
	args := argList{}
	return "SELECT COUNT(*) FROM records WHERE " + q.where(&args), args
}

// textExpr — строковое значение поля; отсутствующее поле равно пустой строке.
func textExpr(field string, args *argList) string {
	switch field {
	case "id":
		return "id"
	case "created", "updated":
		return field + "::text"
	default:
		return "COALESCE(data->>" + args.add(field) + ", '')"
	}
}

// orderExpr сортирует по jsonb-значению: числа сравниваются как числа, строки лексикографически.
func orderExpr(field string, args *argList) string {
	switch field {
	case "id", "created", "updated":
		return field
	default:
		return "data->" + args.add(field)
	}
}
