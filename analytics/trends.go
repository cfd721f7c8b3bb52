package analytics

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"dei-tracker/apperr"
	"dei-tracker/cache"
)

// trendMetrics maps a metric name to the dated column it counts.
var trendMetrics = map[string]struct{ table, column string }{
	"events":             {"events", "date"},
	"commitment_changes": {"commitments", "status_changed_at"},
	"sources":            {"data_sources", "date"},
}

var trendIntervals = map[string]struct{ sqlite, postgres string }{
	"month": {"%Y-%m", "YYYY-MM"},
	"year":  {"%Y", "YYYY"},
}

// TrendQuery selects a metric, a bucket size and an optional inclusive
// date range in YYYY-MM-DD form.
type TrendQuery struct {
	Metric   string
	Interval string
	From     string
	To       string
}

type TrendPoint struct {
	Period string `json:"period"`
	Count  int64  `json:"count"`
}

type Trends struct {
	Metric   string       `json:"metric"`
	Interval string       `json:"interval"`
	From     *string      `json:"from"`
	To       *string      `json:"to"`
	Points   []TrendPoint `json:"points"`
}

// Validate fills defaults and rejects unknown metrics, intervals and bad
// ranges.
func (q *TrendQuery) Validate() error {
	if q.Metric == "" {
		q.Metric = "events"
	}
	if q.Interval == "" {
		q.Interval = "month"
	}
	if _, ok := trendMetrics[q.Metric]; !ok {
		return apperr.Validation("unknown metric %q, expected one of %s", q.Metric, strings.Join(names(trendMetrics), ", "))
	}
	if _, ok := trendIntervals[q.Interval]; !ok {
		return apperr.Validation("unknown interval %q, expected one of %s", q.Interval, strings.Join(names(trendIntervals), ", "))
	}
	var from, to time.Time
	var err error
	if q.From != "" {
		if from, err = time.Parse(time.DateOnly, q.From); err != nil {
			return apperr.Validation("from must be a date in YYYY-MM-DD form, got %q", q.From)
		}
	}
	if q.To != "" {
		if to, err = time.Parse(time.DateOnly, q.To); err != nil {
			return apperr.Validation("to must be a date in YYYY-MM-DD form, got %q", q.To)
		}
	}
	if q.From != "" && q.To != "" && to.Before(from) {
		return apperr.Validation("from %s is after to %s", q.From, q.To)
	}
	return nil
}

// Trends counts metric rows per period, oldest first, cached for
// cache.AnalyticsTTL.
func (a *Aggregator) Trends(ctx context.Context, q TrendQuery) (Trends, bool, error) {
	if err := q.Validate(); err != nil {
		return Trends{}, false, err
	}
	key := cache.TrendsKey(q.Metric, q.Interval, q.From, q.To)
	return cache.Fetch(ctx, a.cache, key, cache.AnalyticsTTL, func(ctx context.Context) (Trends, error) {
		return a.trends(ctx, q)
	})
}

func (a *Aggregator) trends(ctx context.Context, q TrendQuery) (Trends, error) {
	m := trendMetrics[q.Metric]
	format := trendIntervals[q.Interval]

	period := fmt.Sprintf("strftime('%s', %s)", format.sqlite, m.column)
	if a.store.Dialect() == "postgres" {
		period = fmt.Sprintf("to_char(%s, '%s')", m.column, format.postgres)
	}

	where := []string{m.column + " IS NOT NULL"}
	var args []any
	if q.From != "" {
		from, _ := time.Parse(time.DateOnly, q.From)
		where = append(where, m.column+" >= ?")
		args = append(args, from)
	}
	if q.To != "" {
		to, _ := time.Parse(time.DateOnly, q.To)
		where = append(where, m.column+" < ?")
		args = append(args, to.AddDate(0, 0, 1))
	}

	sql := fmt.Sprintf(`SELECT %[1]s AS period, COUNT(*) AS n FROM %[2]s WHERE %[3]s GROUP BY %[1]s ORDER BY period`,
		period, m.table, strings.Join(where, " AND "))

	var rows []struct {
		Period string `gorm:"column:period"`
		N      int64  `gorm:"column:n"`
	}
	if err := a.store.Raw(ctx, &rows, sql, args...); err != nil {
		return Trends{}, err
	}

	out := Trends{Metric: q.Metric, Interval: q.Interval, Points: make([]TrendPoint, 0, len(rows))}
	if q.From != "" {
		out.From = &q.From
	}
	if q.To != "" {
		out.To = &q.To
	}
	for _, r := range rows {
		out.Points = append(out.Points, TrendPoint{Period: r.Period, Count: r.N})
	}
	return out, nil
}

func names[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
