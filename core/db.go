package core

import "strings"

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// OrderByClause joins orderings into the body of an ORDER BY clause.
func OrderByClause(orderings ...DBOrdering) string {
	orderList := make([]string, 0, len(orderings))
	for _, ord := range orderings {
		orderList = append(orderList, ord.String())
	}
	return strings.Join(orderList, ", ")
}
