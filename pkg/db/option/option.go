package option

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type queryOptionFunc func(db *gorm.DB) *gorm.DB

func (f queryOptionFunc) Apply(db *gorm.DB) *gorm.DB {
	return f(db)
}

type Operator string

const (
	EQ   Operator = "="
	NEQ  Operator = "<>"
	GT   Operator = ">"
	GTE  Operator = ">="
	LT   Operator = "<"
	LTE  Operator = "<="
	IN   Operator = "IN"
	LIKE Operator = "LIKE"
)

type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

// ApplyOperator adds a single WHERE condition. Field names must come from code,
// never from request input.
func ApplyOperator(c Condition) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		field := strings.TrimSpace(c.Field)
		if field == "" {
			return db
		}
		switch c.Operator {
		case IN:
			return db.Where(fmt.Sprintf("%s IN ?", field), c.Value)
		case LIKE:
			return db.Where(fmt.Sprintf("LOWER(%s) LIKE ?", field), "%"+strings.ToLower(fmt.Sprint(c.Value))+"%")
		case "":
			return db.Where(fmt.Sprintf("%s = ?", field), c.Value)
		default:
			return db.Where(fmt.Sprintf("%s %s ?", field, c.Operator), c.Value)
		}
	})
}

type QuerySortBy struct {
	By    string
	Desc  bool
	Allow map[string]bool
}

// WithSortBy orders by By when it is allowed, otherwise by created_at. The id
// column is always appended as a stable tie-break.
func WithSortBy(s QuerySortBy) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		by := strings.TrimSpace(s.By)
		if by == "" || !s.Allow[by] {
			by = "created_at"
		}
		dir := "asc"
		if s.Desc {
			dir = "desc"
		}
		return db.Order(fmt.Sprintf("%s %s, id %s", by, dir, dir))
	})
}

func ApplyPagination(limit, offset int) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if limit > 0 {
			db = db.Limit(limit)
		}
		if offset > 0 {
			db = db.Offset(offset)
		}
		return db
	})
}
