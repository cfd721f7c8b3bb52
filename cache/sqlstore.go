package cache

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"dei-tracker/logging"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// entry is a row of cache_entries. Times are unix milliseconds.
type entry struct {
	Key       string `gorm:"column:key;primaryKey"`
	ValueJSON string `gorm:"column:value_json"`
	ExpiresAt int64  `gorm:"column:expires_at"`
	StoredAt  int64  `gorm:"column:created_at"`
}

func (entry) TableName() string { return "cache_entries" }

// SQL keeps cache entries in a table of the application database, for
// single-node deployments without Redis. Expired rows are deleted lazily
// on read and by Purge.
//
// Patterns are matched with GLOB on sqlite, which is case sensitive like
// Redis MATCH. Postgres uses LIKE, also case sensitive; character classes
// are only honored on sqlite.
type SQL struct {
	db  *gorm.DB
	now func() time.Time
	log *slog.Logger
}

func NewSQL(db *gorm.DB, log *slog.Logger) *SQL {
	if log == nil {
		log = logging.Discard()
	}
	return &SQL{db: db, now: time.Now, log: log}
}

// WithClock replaces the time source. Tests use it to expire entries.
func (s *SQL) WithClock(now func() time.Time) *SQL {
	s.now = now
	return s
}

func (s *SQL) Name() string { return "sql" }

func (s *SQL) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var e entry
	err := s.db.WithContext(ctx).Where("key = ?", key).Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if s.now().UnixMilli() >= e.ExpiresAt {
		// a failed delete leaves the row for Purge
		if err := s.db.WithContext(ctx).Where("key = ? AND expires_at = ?", key, e.ExpiresAt).Delete(&entry{}).Error; err != nil {
			s.log.Debug("delete expired cache entry", "key", key, "error", err)
		}
		return nil, false, nil
	}
	return []byte(e.ValueJSON), true, nil
}

func (s *SQL) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := s.now()
	e := entry{
		Key:       key,
		ValueJSON: string(value),
		ExpiresAt: now.Add(ttl).UnixMilli(),
		StoredAt:  now.UnixMilli(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value_json", "expires_at", "created_at"}),
	}).Create(&e).Error
}

func (s *SQL) Keys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	cond, arg := s.match(pattern)
	err := s.db.WithContext(ctx).Model(&entry{}).
		Where(cond, arg).
		Where("expires_at > ?", s.now().UnixMilli()).
		Order("key").
		Pluck("key", &keys).Error
	return keys, err
}

func (s *SQL) DeleteMatching(ctx context.Context, pattern string) (int, error) {
	cond, arg := s.match(pattern)
	res := s.db.WithContext(ctx).Where(cond, arg).Delete(&entry{})
	return int(res.RowsAffected), res.Error
}

// Purge removes expired rows.
func (s *SQL) Purge(ctx context.Context) (int, error) {
	res := s.db.WithContext(ctx).Where("expires_at <= ?", s.now().UnixMilli()).Delete(&entry{})
	return int(res.RowsAffected), res.Error
}

// match returns the key condition for a glob pattern.
func (s *SQL) match(pattern string) (string, string) {
	if s.db.Dialector.Name() == "sqlite" {
		return "key GLOB ?", pattern
	}
	return `key LIKE ? ESCAPE '\'`, globToLike(pattern)
}

// globToLike converts * and ? to LIKE wildcards and escapes everything
// else LIKE would interpret.
func globToLike(pattern string) string {
	var b strings.Builder
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteByte('%')
		case '?':
			b.WriteByte('_')
		case '%', '_', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
