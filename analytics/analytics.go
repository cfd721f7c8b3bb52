// Package analytics computes derived statistics over the research dataset.
// Aggregation happens in SQL; results of the expensive operations are cached
// with operation specific TTLs and may lag the store by at most that TTL.
package analytics

import (
	"context"
	"log/slog"
	"slices"
	"sort"
	"time"

	"dei-tracker/apperr"
	"dei-tracker/cache"
	"dei-tracker/logging"
	"dei-tracker/models"
	"dei-tracker/store"

	"golang.org/x/sync/errgroup"
)

// Unclassified is the bucket of companies without an industry.
const Unclassified = "Unclassified"

// Unassessed is the risk bucket of companies whose latest profile has no
// risk assessment, or that have no profile at all.
const Unassessed = "unassessed"

type Aggregator struct {
	store *store.Store
	cache *cache.Cache
	log   *slog.Logger
}

func New(s *store.Store, c *cache.Cache, log *slog.Logger) *Aggregator {
	if log == nil {
		log = logging.Discard()
	}
	return &Aggregator{store: s, cache: c, log: log}
}

type Overview struct {
	TotalCompanies     int64 `json:"total_companies"`
	TotalProfiles      int64 `json:"total_profiles"`
	TotalSources       int64 `json:"total_sources"`
	TotalCommitments   int64 `json:"total_commitments"`
	TotalControversies int64 `json:"total_controversies"`
	TotalEvents        int64 `json:"total_events"`

	AvgSourcesPerCompany     float64 `json:"avg_sources_per_company"`
	AvgCommitmentsPerCompany float64 `json:"avg_commitments_per_company"`

	IndustriesCovered  int64      `json:"industries_covered"`
	CountriesCovered   int64      `json:"countries_covered"`
	LatestResearchDate *time.Time `json:"latest_research_date"`

	SourceTypeBreakdown       map[string]int64 `json:"source_type_breakdown"`
	CommitmentStatusBreakdown map[string]int64 `json:"commitment_status_breakdown"`
	RiskLevelBreakdown        map[string]int64 `json:"risk_level_breakdown"`
	RecommendationBreakdown   map[string]int64 `json:"recommendation_breakdown"`
	DEIStatusBreakdown        map[string]int64 `json:"dei_status_breakdown"`
	TransparencyDistribution  map[string]int64 `json:"transparency_distribution"`
}

// Overview reports dataset totals and breakdowns, cached for
// cache.AnalyticsTTL. The satellite breakdowns cover latest profiles only.
func (a *Aggregator) Overview(ctx context.Context) (Overview, bool, error) {
	return cache.Fetch(ctx, a.cache, cache.OverviewKey, cache.AnalyticsTTL, a.overview)
}

func (a *Aggregator) overview(ctx context.Context) (Overview, error) {
	if err := a.checkLatest(ctx); err != nil {
		return Overview{}, err
	}
	var o Overview
	g, gctx := errgroup.WithContext(ctx)

	count := func(dst *int64, fn func(context.Context, *store.Store, ...store.Filter) (int64, error)) {
		g.Go(func() error {
			n, err := fn(gctx, a.store)
			*dst = n
			return err
		})
	}
	count(&o.TotalCompanies, store.Count[models.Company])
	count(&o.TotalProfiles, store.Count[models.Profile])
	count(&o.TotalSources, store.Count[models.DataSource])
	count(&o.TotalCommitments, store.Count[models.Commitment])
	count(&o.TotalControversies, store.Count[models.Controversy])
	count(&o.TotalEvents, store.Count[models.Event])

	g.Go(func() error {
		var row struct {
			Industries int64 `gorm:"column:industries"`
			Countries  int64 `gorm:"column:countries"`
		}
		err := a.store.Raw(gctx, &row, `SELECT COUNT(DISTINCT industry) AS industries, COUNT(DISTINCT hq_country) AS countries FROM companies`)
		o.IndustriesCovered, o.CountriesCovered = row.Industries, row.Countries
		return err
	})
	g.Go(func() error {
		rows, err := store.List[models.Profile](gctx, a.store, store.Query{
			Filters: []store.Filter{store.NotNull("research_captured_at")},
			Sort:    []store.Sort{{Column: "research_captured_at", Desc: true}},
			Limit:   1,
		})
		if err == nil && len(rows) == 1 {
			o.LatestResearchDate = rows[0].ResearchCapturedAt
		}
		return err
	})
	g.Go(func() error {
		groups, err := store.GroupCount[models.DataSource](gctx, a.store, "source_type")
		o.SourceTypeBreakdown = breakdown(groups)
		return err
	})
	g.Go(func() error {
		groups, err := store.GroupCount[models.Commitment](gctx, a.store, "current_status")
		o.CommitmentStatusBreakdown = breakdown(groups)
		return err
	})
	g.Go(func() error {
		m, err := a.labelCounts(gctx, `
			SELECT COALESCE(r.risk_level, '`+Unassessed+`') AS label, COUNT(*) AS n
			FROM profiles p
			LEFT JOIN risk_assessments r ON r.profile_id = p.id
			WHERE p.is_latest = ?
			GROUP BY COALESCE(r.risk_level, '`+Unassessed+`')`, true)
		o.RiskLevelBreakdown = m
		return err
	})
	g.Go(func() error {
		m, err := a.labelCounts(gctx, `
			SELECT d.status AS label, COUNT(*) AS n
			FROM profiles p
			JOIN dei_postures d ON d.profile_id = p.id
			WHERE p.is_latest = ? AND d.status <> ''
			GROUP BY d.status`, true)
		o.DEIStatusBreakdown = m
		return err
	})
	g.Go(func() error {
		m, err := a.labelCounts(gctx, `
			SELECT x.recommendation AS label, COUNT(*) AS n
			FROM profiles p
			JOIN ai_contexts x ON x.profile_id = p.id
			WHERE p.is_latest = ? AND x.recommendation IS NOT NULL AND x.recommendation <> ''
			GROUP BY x.recommendation`, true)
		o.RecommendationBreakdown = m
		return err
	})
	g.Go(func() error {
		m, err := a.labelCounts(gctx, `
			SELECT CASE
				WHEN x.transparency_rating <= 3 THEN 'low'
				WHEN x.transparency_rating <= 6 THEN 'medium'
				ELSE 'high' END AS label,
				COUNT(*) AS n
			FROM profiles p
			JOIN ai_contexts x ON x.profile_id = p.id
			WHERE p.is_latest = ? AND x.transparency_rating IS NOT NULL
			GROUP BY CASE
				WHEN x.transparency_rating <= 3 THEN 'low'
				WHEN x.transparency_rating <= 6 THEN 'medium'
				ELSE 'high' END`, true)
		o.TransparencyDistribution = m
		return err
	})
	if err := g.Wait(); err != nil {
		return Overview{}, err
	}

	o.AvgSourcesPerCompany = ratio(o.TotalSources, o.TotalCompanies, 1)
	o.AvgCommitmentsPerCompany = ratio(o.TotalCommitments, o.TotalCompanies, 1)
	return o, nil
}

type IndustryStats struct {
	Industry           string   `json:"industry"`
	CompanyCount       int64    `json:"company_count"`
	AvgSources         float64  `json:"avg_sources"`
	AvgCommitments     float64  `json:"avg_commitments"`
	TotalCommitments   int64    `json:"total_commitments"`
	ActiveCommitments  int64    `json:"active_commitments"`
	TotalControversies int64    `json:"total_controversies"`
	CompaniesWithCDO   int64    `json:"companies_with_cdo"`
	AvgRiskScore       *float64 `json:"avg_risk_score"`
}

// Industries rolls companies up by industry using each company's latest
// profile. Companies without an industry form the Unclassified bucket.
func (a *Aggregator) Industries(ctx context.Context) ([]IndustryStats, bool, error) {
	return cache.Fetch(ctx, a.cache, cache.IndustriesKey, cache.AnalyticsTTL, a.industries)
}

func (a *Aggregator) industries(ctx context.Context) ([]IndustryStats, error) {
	if err := a.checkLatest(ctx); err != nil {
		return nil, err
	}
	var rows []struct {
		Industry           string   `gorm:"column:industry"`
		CompanyCount       int64    `gorm:"column:company_count"`
		TotalSources       int64    `gorm:"column:total_sources"`
		TotalCommitments   int64    `gorm:"column:total_commitments"`
		ActiveCommitments  int64    `gorm:"column:active_commitments"`
		TotalControversies int64    `gorm:"column:total_controversies"`
		CompaniesWithCDO   int64    `gorm:"column:companies_with_cdo"`
		AvgRiskScore       *float64 `gorm:"column:avg_risk_score"`
	}
	err := a.store.Raw(ctx, &rows, `
		SELECT COALESCE(c.industry, '`+Unclassified+`') AS industry,
			COUNT(*) AS company_count,
			CAST(COALESCE(SUM(p.source_count), 0) AS BIGINT) AS total_sources,
			CAST(COALESCE(SUM(cm.total), 0) AS BIGINT) AS total_commitments,
			CAST(COALESCE(SUM(cm.active), 0) AS BIGINT) AS active_commitments,
			CAST(COALESCE(SUM(ct.total), 0) AS BIGINT) AS total_controversies,
			CAST(COALESCE(SUM(CASE WHEN cdo.cdo_exists THEN 1 ELSE 0 END), 0) AS BIGINT) AS companies_with_cdo,
			CAST(AVG(r.overall_risk_score) AS DOUBLE PRECISION) AS avg_risk_score
		FROM companies c
		LEFT JOIN profiles p ON p.company_id = c.id AND p.is_latest = ?
		LEFT JOIN (
			SELECT profile_id, COUNT(*) AS total,
				SUM(CASE WHEN current_status = ? THEN 1 ELSE 0 END) AS active
			FROM commitments GROUP BY profile_id
		) cm ON cm.profile_id = p.id
		LEFT JOIN (
			SELECT profile_id, COUNT(*) AS total FROM controversies GROUP BY profile_id
		) ct ON ct.profile_id = p.id
		LEFT JOIN cdo_roles cdo ON cdo.profile_id = p.id
		LEFT JOIN risk_assessments r ON r.profile_id = p.id
		GROUP BY COALESCE(c.industry, '`+Unclassified+`')
		ORDER BY company_count DESC, industry ASC`, true, models.StatusActive)
	if err != nil {
		return nil, err
	}

	out := make([]IndustryStats, 0, len(rows))
	for _, r := range rows {
		s := IndustryStats{
			Industry:           r.Industry,
			CompanyCount:       r.CompanyCount,
			AvgSources:         ratio(r.TotalSources, r.CompanyCount, 1),
			AvgCommitments:     ratio(r.TotalCommitments, r.CompanyCount, 1),
			TotalCommitments:   r.TotalCommitments,
			ActiveCommitments:  r.ActiveCommitments,
			TotalControversies: r.TotalControversies,
			CompaniesWithCDO:   r.CompaniesWithCDO,
		}
		if r.AvgRiskScore != nil {
			v := round(*r.AvgRiskScore, 1)
			s.AvgRiskScore = &v
		}
		out = append(out, s)
	}
	return out, nil
}

// riskOrder fixes the position of the known levels. Other stored levels
// follow in name order, Unassessed is always last.
var riskOrder = []string{"low", "medium", "high"}

type RiskBucket struct {
	RiskLevel        string  `json:"risk_level"`
	Count            int64   `json:"count"`
	Percentage       float64 `json:"percentage"`
	AvgLawsuits      float64 `json:"avg_lawsuits"`
	AvgControversies float64 `json:"avg_controversies"`
}

type RiskDistribution struct {
	TotalCompanies int64        `json:"total_companies"`
	Buckets        []RiskBucket `json:"buckets"`
}

// Risks buckets every company by the risk level of its latest profile.
// low, medium, high and unassessed are always present so the bucket
// counts add up to the number of companies.
func (a *Aggregator) Risks(ctx context.Context) (RiskDistribution, bool, error) {
	return cache.Fetch(ctx, a.cache, cache.RisksKey, cache.AnalyticsTTL, a.risks)
}

func (a *Aggregator) risks(ctx context.Context) (RiskDistribution, error) {
	if err := a.checkLatest(ctx); err != nil {
		return RiskDistribution{}, err
	}
	var rows []struct {
		Level         string `gorm:"column:risk_level"`
		Count         int64  `gorm:"column:n"`
		Lawsuits      int64  `gorm:"column:lawsuits"`
		Controversies int64  `gorm:"column:controversies"`
	}
	err := a.store.Raw(ctx, &rows, `
		SELECT COALESCE(r.risk_level, '`+Unassessed+`') AS risk_level,
			COUNT(*) AS n,
			CAST(COALESCE(SUM(r.ongoing_lawsuits + r.settled_cases), 0) AS BIGINT) AS lawsuits,
			CAST(COALESCE(SUM(ct.total), 0) AS BIGINT) AS controversies
		FROM companies c
		LEFT JOIN profiles p ON p.company_id = c.id AND p.is_latest = ?
		LEFT JOIN risk_assessments r ON r.profile_id = p.id
		LEFT JOIN (
			SELECT profile_id, COUNT(*) AS total FROM controversies GROUP BY profile_id
		) ct ON ct.profile_id = p.id
		GROUP BY COALESCE(r.risk_level, '`+Unassessed+`')`, true)
	if err != nil {
		return RiskDistribution{}, err
	}

	byLevel := make(map[string]RiskBucket, len(rows)+len(riskOrder)+1)
	var total int64
	for _, r := range rows {
		total += r.Count
		byLevel[r.Level] = RiskBucket{
			RiskLevel:        r.Level,
			Count:            r.Count,
			AvgLawsuits:      ratio(r.Lawsuits, r.Count, 1),
			AvgControversies: ratio(r.Controversies, r.Count, 1),
		}
	}

	levels := append([]string(nil), riskOrder...)
	var extra []string
	for level := range byLevel {
		if !slices.Contains(riskOrder, level) && level != Unassessed {
			extra = append(extra, level)
		}
	}
	sort.Strings(extra)
	levels = append(append(levels, extra...), Unassessed)

	dist := RiskDistribution{TotalCompanies: total, Buckets: make([]RiskBucket, 0, len(levels))}
	for _, level := range levels {
		b, ok := byLevel[level]
		if !ok {
			b = RiskBucket{RiskLevel: level}
		}
		b.Percentage = ratio(b.Count*100, total, 1)
		dist.Buckets = append(dist.Buckets, b)
	}
	return dist, nil
}

// checkLatest fails with DataIntegrity when any company has more than one
// profile flagged latest. The aggregates join on is_latest and would
// otherwise count such a company once per flagged row.
func (a *Aggregator) checkLatest(ctx context.Context) error {
	var rows []struct {
		CompanyID string `gorm:"column:company_id"`
		N         int64  `gorm:"column:n"`
	}
	err := a.store.Raw(ctx, &rows, `
		SELECT company_id, COUNT(*) AS n
		FROM profiles
		WHERE is_latest = ?
		GROUP BY company_id
		HAVING COUNT(*) > 1
		ORDER BY company_id
		LIMIT 1`, true)
	if err != nil {
		return err
	}
	if len(rows) > 0 {
		a.log.Error("multiple latest profiles", "company_id", rows[0].CompanyID, "count", rows[0].N)
		return apperr.DataIntegrity("company %s has %d profiles flagged latest", rows[0].CompanyID, rows[0].N)
	}
	return nil
}

// labelCounts runs a two-column label/count query into a map.
func (a *Aggregator) labelCounts(ctx context.Context, sql string, args ...any) (map[string]int64, error) {
	var rows []struct {
		Label string `gorm:"column:label"`
		N     int64  `gorm:"column:n"`
	}
	if err := a.store.Raw(ctx, &rows, sql, args...); err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Label] += r.N
	}
	return out, nil
}

// breakdown converts grouped counts to a map. NULL groups count as
// "unknown".
func breakdown(groups []store.Group) map[string]int64 {
	out := make(map[string]int64, len(groups))
	for _, g := range groups {
		key := "unknown"
		if g.Key != nil && *g.Key != "" {
			key = *g.Key
		}
		out[key] += g.Count
	}
	return out
}
