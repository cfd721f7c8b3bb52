// Package store is the generic query adapter over the relational database:
// fetch by id, filtered listings, counts, grouping and raw aggregates. Every
// call is bounded by the configured query timeout.
package store

import (
	"context"
	"errors"
	"time"

	"dei-tracker/apperr"

	"gorm.io/gorm"
)

type Store struct {
	db      *gorm.DB
	timeout time.Duration
}

func New(db *gorm.DB, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Store{db: db, timeout: timeout}
}

// Dialect returns "sqlite" or "postgres".
func (s *Store) Dialect() string { return s.db.Dialector.Name() }

func (s *Store) session(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	return s.db.WithContext(ctx), cancel
}

// translate maps driver errors onto the error taxonomy. Errors that already
// carry a kind (for example a malformed JSON column) keep it.
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("%s not found", what)
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperr.Upstream(err, "store query on %s failed", what)
}

func tableOf[T any](db *gorm.DB) string {
	var zero T
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(&zero); err != nil || stmt.Schema == nil {
		return "record"
	}
	return stmt.Schema.Table
}

// Get fetches the row whose primary key column "id" equals id.
func Get[T any](ctx context.Context, s *Store, id string) (*T, error) {
	tx, cancel := s.session(ctx)
	defer cancel()

	var out T
	if err := tx.Where("id = ?", id).Take(&out).Error; err != nil {
		return nil, translate(err, tableOf[T](s.db))
	}
	return &out, nil
}

// First returns the first row matching filters or NotFound.
func First[T any](ctx context.Context, s *Store, filters ...Filter) (*T, error) {
	rows, err := List[T](ctx, s, Query{Filters: filters, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperr.NotFound("%s not found", tableOf[T](s.db))
	}
	return &rows[0], nil
}

// Optional returns the first row matching filters, or nil when none does.
// Used for satellite records whose absence is valid.
func Optional[T any](ctx context.Context, s *Store, filters ...Filter) (*T, error) {
	rows, err := List[T](ctx, s, Query{Filters: filters, Limit: 1})
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

// List returns the rows matching q. The result is never nil.
func List[T any](ctx context.Context, s *Store, q Query) ([]T, error) {
	tx, cancel := s.session(ctx)
	defer cancel()

	var zero T
	tx = tx.Model(&zero)
	tx, err := applyFilters(tx, q.Filters)
	if err != nil {
		return nil, err
	}
	if tx, err = applySort(tx, q.Sort); err != nil {
		return nil, err
	}
	if q.Offset > 0 {
		tx = tx.Offset(q.Offset)
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	out := make([]T, 0)
	if err := tx.Find(&out).Error; err != nil {
		return nil, translate(err, tableOf[T](s.db))
	}
	return out, nil
}

// Count returns the number of rows matching filters.
func Count[T any](ctx context.Context, s *Store, filters ...Filter) (int64, error) {
	tx, cancel := s.session(ctx)
	defer cancel()

	var zero T
	tx, err := applyFilters(tx.Model(&zero), filters)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := tx.Count(&n).Error; err != nil {
		return 0, translate(err, tableOf[T](s.db))
	}
	return n, nil
}

// Group is one bucket of a GroupCount. Key is nil for NULL.
type Group struct {
	Key   *string `json:"key" gorm:"column:group_key"`
	Count int64   `json:"count" gorm:"column:group_count"`
}

// GroupCount counts rows per distinct value of column, largest first.
func GroupCount[T any](ctx context.Context, s *Store, column string, filters ...Filter) ([]Group, error) {
	if err := checkColumn(column); err != nil {
		return nil, err
	}
	tx, cancel := s.session(ctx)
	defer cancel()

	var zero T
	tx, err := applyFilters(tx.Model(&zero), filters)
	if err != nil {
		return nil, err
	}
	out := make([]Group, 0)
	err = tx.Select(column + " AS group_key, COUNT(*) AS group_count").
		Group(column).
		Order("group_count DESC").
		Order(column + " ASC").
		Scan(&out).Error
	if err != nil {
		return nil, translate(err, tableOf[T](s.db))
	}
	return out, nil
}

// Distinct returns the sorted distinct non-null values of column.
func Distinct[T any](ctx context.Context, s *Store, column string, filters ...Filter) ([]string, error) {
	if err := checkColumn(column); err != nil {
		return nil, err
	}
	tx, cancel := s.session(ctx)
	defer cancel()

	var zero T
	tx, err := applyFilters(tx.Model(&zero), append(filters, NotNull(column)))
	if err != nil {
		return nil, err
	}
	out := make([]string, 0)
	if err := tx.Distinct(column).Order(column+" ASC").Pluck(column, &out).Error; err != nil {
		return nil, translate(err, tableOf[T](s.db))
	}
	return out, nil
}

// Raw runs an aggregate statement and scans the result into dest.
func (s *Store) Raw(ctx context.Context, dest any, sql string, args ...any) error {
	tx, cancel := s.session(ctx)
	defer cancel()

	if err := tx.Raw(sql, args...).Scan(dest).Error; err != nil {
		return translate(err, "aggregate")
	}
	return nil
}

// Ping checks the store is reachable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return apperr.Upstream(err, "store unavailable")
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return apperr.Upstream(err, "store unavailable")
	}
	return nil
}
