package sqlstore

import (
	"strconv"
	"strings"

	"messagecore/pkg/domain"
)

type builder struct {
	dialect Dialect
	args    []any
}

func (b *builder) bind(v any) string {
	b.args = append(b.args, v)
	return b.dialect.Placeholder(len(b.args))
}

// compileFind renders q as a SELECT over the messages table. Only mapped
// columns may be filtered or sorted on; results default to id order.
func compileFind(d Dialect, q domain.Query) (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}
	b := &builder{dialect: d}
	var sb strings.Builder
	sb.WriteString("SELECT " + selectColumns + " FROM " + Table)

	if len(q.Conditions) > 0 {
		clauses := make([]string, 0, len(q.Conditions))
		for _, c := range q.Conditions {
			clause, err := b.condition(c)
			if err != nil {
				return "", nil, err
			}
			clauses = append(clauses, clause)
		}
		sb.WriteString(" WHERE " + strings.Join(clauses, " AND "))
	}

	order := make([]string, 0, len(q.Sort)+1)
	sortedByID := false
	for _, key := range q.Sort {
		col, ok := columns[key.Field]
		if !ok {
			return "", nil, domain.InvalidInputError{Field: "$sort", Reason: "cannot sort on " + key.Field}
		}
		dir := "ASC"
		nulls := "DESC"
		if key.Desc {
			dir, nulls = "DESC", "ASC"
		}
		if col.name == "id" {
			sortedByID = true
		} else if col.name != "counter" {
			// missing values order first ascending, last descending
			order = append(order, "("+col.name+" IS NULL) "+nulls)
		}
		order = append(order, col.name+" "+dir)
	}
	if !sortedByID {
		order = append(order, "id ASC")
	}
	sb.WriteString(" ORDER BY " + strings.Join(order, ", "))

	switch {
	case q.Limit > 0:
		sb.WriteString(" LIMIT " + strconv.Itoa(q.Limit))
	case q.Skip > 0:
		sb.WriteString(" LIMIT " + d.NoLimit)
	}
	if q.Skip > 0 {
		sb.WriteString(" OFFSET " + strconv.Itoa(q.Skip))
	}
	return sb.String(), b.args, nil
}

func (b *builder) condition(c domain.Condition) (string, error) {
	col, ok := columns[c.Field]
	if !ok {
		return "", domain.InvalidInputError{Field: c.Field, Reason: "field cannot be queried"}
	}
	if c.Op == domain.OpIn {
		list, _ := c.Value.([]any)
		if len(list) == 0 {
			return "1 = 0", nil
		}
		params := make([]string, 0, len(list))
		for _, item := range list {
			v, err := columnValue(c.Field, col, item)
			if err != nil {
				return "", err
			}
			params = append(params, b.bind(v))
		}
		return col.name + " IN (" + strings.Join(params, ", ") + ")", nil
	}
	v, err := columnValue(c.Field, col, c.Value)
	if err != nil {
		return "", err
	}
	switch c.Op {
	case domain.OpEq:
		return col.name + " = " + b.bind(v), nil
	case domain.OpNe:
		return "(" + col.name + " IS NULL OR " + col.name + " <> " + b.bind(v) + ")", nil
	case domain.OpGt:
		return col.name + " > " + b.bind(v), nil
	case domain.OpGte:
		return col.name + " >= " + b.bind(v), nil
	case domain.OpLt:
		return col.name + " < " + b.bind(v), nil
	case domain.OpLte:
		return col.name + " <= " + b.bind(v), nil
	}
	return "", domain.InvalidInputError{Field: c.Field, Reason: "unsupported operator " + string(c.Op)}
}
