package store

import (
	"fmt"
	"regexp"
	"strings"

	"dei-tracker/apperr"

	"gorm.io/gorm"
)

// Op is a filter predicate.
type Op int

const (
	OpEq Op = iota
	OpIn
	OpContains
	OpGte
	OpLte
	OpNotNull
	OpProfileOfCompany
)

// Filter is one predicate against one or more columns. Contains matches if
// any of its columns contains the value, case-insensitively.
type Filter struct {
	Columns []string
	Op      Op
	Value   any
}

func Eq(column string, v any) Filter { return Filter{Columns: []string{column}, Op: OpEq, Value: v} }

// In matches column against a slice of values. An empty slice matches nothing.
func In[V any](column string, vs []V) Filter {
	return Filter{Columns: []string{column}, Op: OpIn, Value: vs}
}

func Contains(v string, columns ...string) Filter {
	return Filter{Columns: columns, Op: OpContains, Value: v}
}

func Gte(column string, v any) Filter { return Filter{Columns: []string{column}, Op: OpGte, Value: v} }
func Lte(column string, v any) Filter { return Filter{Columns: []string{column}, Op: OpLte, Value: v} }
func NotNull(column string) Filter   { return Filter{Columns: []string{column}, Op: OpNotNull} }

// ProfileOfCompany keeps child rows whose profile belongs to companyID,
// whatever the profile version.
func ProfileOfCompany(companyID string) Filter {
	return Filter{Columns: []string{"profile_id"}, Op: OpProfileOfCompany, Value: companyID}
}

// Sort orders by one column.
type Sort struct {
	Column string
	Desc   bool
}

// Query is a filtered, sorted and paginated listing request. Limit <= 0
// means no limit.
type Query struct {
	Filters []Filter
	Sort    []Sort
	Offset  int
	Limit   int
}

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*(\.[a-z_][a-z0-9_]*)?$`)

func checkColumn(c string) error {
	if !identRe.MatchString(c) {
		return apperr.New(apperr.InternalKind, nil, "invalid column identifier %q", c)
	}
	return nil
}

// escapeLike escapes LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func applyFilters(tx *gorm.DB, filters []Filter) (*gorm.DB, error) {
	for _, f := range filters {
		if len(f.Columns) == 0 {
			return nil, apperr.New(apperr.InternalKind, nil, "filter without column")
		}
		for _, c := range f.Columns {
			if err := checkColumn(c); err != nil {
				return nil, err
			}
		}
		col := f.Columns[0]

		switch f.Op {
		case OpEq:
			tx = tx.Where(col+" = ?", f.Value)
		case OpIn:
			tx = tx.Where(col+" IN ?", f.Value)
		case OpGte:
			tx = tx.Where(col+" >= ?", f.Value)
		case OpLte:
			tx = tx.Where(col+" <= ?", f.Value)
		case OpNotNull:
			tx = tx.Where(col + " IS NOT NULL")
		case OpProfileOfCompany:
			tx = tx.Where(col+" IN (SELECT id FROM profiles WHERE company_id = ?)", f.Value)
		case OpContains:
			s, ok := f.Value.(string)
			if !ok {
				return nil, apperr.New(apperr.InternalKind, nil, "contains filter needs a string, got %T", f.Value)
			}
			pattern := "%" + escapeLike(strings.ToLower(s)) + "%"
			clauses := make([]string, len(f.Columns))
			args := make([]any, len(f.Columns))
			for i, c := range f.Columns {
				clauses[i] = fmt.Sprintf(`LOWER(%s) LIKE ? ESCAPE '\'`, c)
				args[i] = pattern
			}
			tx = tx.Where("("+strings.Join(clauses, " OR ")+")", args...)
		default:
			return nil, apperr.New(apperr.InternalKind, nil, "unknown filter op %d", f.Op)
		}
	}
	return tx, nil
}

func applySort(tx *gorm.DB, sorts []Sort) (*gorm.DB, error) {
	for _, s := range sorts {
		if err := checkColumn(s.Column); err != nil {
			return nil, err
		}
		dir := " ASC"
		if s.Desc {
			dir = " DESC"
		}
		tx = tx.Order(s.Column + dir)
	}
	return tx, nil
}
