// Package query turns externally supplied filter, sort and page parameters
// into validated store queries. Every listing endpoint goes through it, so
// unknown parameters, bad ranges and page bounds are handled the same way
// everywhere.
package query

import (
	"context"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"dei-tracker/apperr"
	"dei-tracker/config"
	"dei-tracker/store"

	"github.com/google/uuid"
)

// Kind is the type a filter value is parsed as.
type Kind int

const (
	String Kind = iota
	Int
	Bool
	UUID
	Date
)

// Field is one accepted filter parameter.
type Field struct {
	Name    string
	Kind    Kind
	Min     int
	Max     int
	Ranged  bool
	Default string
	Build   func(v any) store.Filter
}

// Collection describes what a listing endpoint accepts.
type Collection struct {
	Name        string
	Fields      []Field
	SortFields  map[string]string // parameter value -> column
	DefaultSort string
	DefaultDesc bool
	// Key is the unique column used as the final sort tiebreaker. Defaults
	// to "id".
	Key string
}

// Limits bounds page sizes.
type Limits struct {
	DefaultPerPage int
	MaxPerPage     int
}

// DefaultLimits returns the limits of config.Default().
func DefaultLimits() Limits {
	return LimitsFrom(config.Default().Pagination)
}

// LimitsFrom converts pagination config. The hard ceiling always applies.
func LimitsFrom(p config.PaginationConfig) Limits {
	l := Limits{DefaultPerPage: p.DefaultPerPage, MaxPerPage: p.MaxPerPage}
	if l.MaxPerPage <= 0 || l.MaxPerPage > config.HardMaxPerPage {
		l.MaxPerPage = config.HardMaxPerPage
	}
	if l.DefaultPerPage <= 0 || l.DefaultPerPage > l.MaxPerPage {
		l.DefaultPerPage = min(20, l.MaxPerPage)
	}
	return l
}

// Request is a validated listing request.
type Request struct {
	Page    int
	PerPage int
	Filters []store.Filter
	Sort    []store.Sort
	Key     string
}

// Query converts the request into a store query. The key column is
// appended as a tiebreaker so pages are stable.
func (r Request) Query() store.Query {
	key := r.Key
	if key == "" {
		key = "id"
	}
	sorts := append([]store.Sort(nil), r.Sort...)
	if len(sorts) == 0 || sorts[len(sorts)-1].Column != key {
		sorts = append(sorts, store.Sort{Column: key})
	}
	return store.Query{
		Filters: r.Filters,
		Sort:    sorts,
		Offset:  (r.Page - 1) * r.PerPage,
		Limit:   r.PerPage,
	}
}

var reserved = map[string]bool{"page": true, "per_page": true, "sort": true, "order": true}

// Parse validates values against c. Unknown parameters are rejected.
func Parse(values url.Values, c Collection, lim Limits) (Request, error) {
	fields := make(map[string]Field, len(c.Fields))
	for _, f := range c.Fields {
		fields[f.Name] = f
	}
	if err := checkUnknown(values, func(name string) bool {
		_, ok := fields[name]
		return ok || reserved[name]
	}); err != nil {
		return Request{}, err
	}

	req := Request{Page: 1, PerPage: lim.DefaultPerPage, Key: c.Key}

	if raw := values.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return Request{}, apperr.Validation("page must be an integer >= 1, got %q", raw)
		}
		req.Page = n
	}
	if raw := values.Get("per_page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return Request{}, apperr.Validation("per_page must be an integer >= 1, got %q", raw)
		}
		req.PerPage = min(n, lim.MaxPerPage)
	}
	if req.Page-1 > math.MaxInt/req.PerPage {
		return Request{}, apperr.Validation("page %d is out of range", req.Page)
	}

	for _, f := range c.Fields {
		raw := strings.TrimSpace(values.Get(f.Name))
		if raw == "" {
			raw = f.Default
		}
		if raw == "" {
			continue
		}
		v, err := parseValue(f, raw)
		if err != nil {
			return Request{}, err
		}
		if filter := f.Build(v); len(filter.Columns) > 0 {
			req.Filters = append(req.Filters, filter)
		}
	}

	sortBy := values.Get("sort")
	if sortBy == "" {
		sortBy = c.DefaultSort
	}
	column, ok := c.SortFields[sortBy]
	if !ok {
		return Request{}, apperr.Validation("unknown sort field %q for %s, expected one of %s",
			sortBy, c.Name, strings.Join(sortKeys(c.SortFields), ", "))
	}
	desc := c.DefaultDesc
	if values.Get("sort") != "" {
		desc = false
	}
	switch strings.ToLower(values.Get("order")) {
	case "":
	case "asc":
		desc = false
	case "desc":
		desc = true
	default:
		return Request{}, apperr.Validation("order must be asc or desc, got %q", values.Get("order"))
	}
	req.Sort = []store.Sort{{Column: column, Desc: desc}}

	return req, nil
}

// Allow rejects any parameter not named. Used by non-listing endpoints so
// the unknown-parameter policy is uniform.
func Allow(values url.Values, names ...string) error {
	allowed := make(map[string]bool, len(names))
	for _, n := range names {
		allowed[n] = true
	}
	return checkUnknown(values, func(name string) bool { return allowed[name] })
}

func checkUnknown(values url.Values, known func(string) bool) error {
	var unknown []string
	for name := range values {
		if !known(name) {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return apperr.Validation("unknown query parameter(s): %s", strings.Join(unknown, ", "))
}

func sortKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func parseValue(f Field, raw string) (any, error) {
	switch f.Kind {
	case Int:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, apperr.Validation("%s must be an integer, got %q", f.Name, raw)
		}
		if f.Ranged && (n < f.Min || n > f.Max) {
			return nil, apperr.Validation("%s must be between %d and %d, got %d", f.Name, f.Min, f.Max, n)
		}
		return n, nil
	case Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, apperr.Validation("%s must be true or false, got %q", f.Name, raw)
		}
		return b, nil
	case UUID:
		id, err := ParseID(f.Name, raw)
		if err != nil {
			return nil, err
		}
		return id, nil
	case Date:
		d, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
		if err != nil {
			return nil, apperr.Validation("%s must be a date (YYYY-MM-DD), got %q", f.Name, raw)
		}
		return d, nil
	default:
		return raw, nil
	}
}

// ParseID validates a UUID and returns its canonical lowercase form.
func ParseID(name, raw string) (string, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", apperr.Validation("%s must be a UUID, got %q", name, raw)
	}
	return id.String(), nil
}

// Page runs a validated request: one count and one page fetch.
func Page[T any](ctx context.Context, s *store.Store, req Request) ([]T, Pagination, error) {
	total, err := store.Count[T](ctx, s, req.Filters...)
	if err != nil {
		return nil, Pagination{}, err
	}
	pg := NewPagination(req.Page, req.PerPage, total)
	if int64(req.Query().Offset) >= total {
		return []T{}, pg, nil
	}
	rows, err := store.List[T](ctx, s, req.Query())
	if err != nil {
		return nil, Pagination{}, err
	}
	return rows, pg, nil
}
