package analytics

import (
	"context"

	"dei-tracker/apperr"
	"dei-tracker/cache"
)

const (
	RankingAtRisk       = "at-risk"
	RankingTopCommitted = "top-committed"

	DefaultRankingLimit = 20
	MaxRankingLimit     = 100
)

// RankedProfile is one latest profile in a ranking.
type RankedProfile struct {
	ProfileID        string  `json:"profile_id" gorm:"column:profile_id"`
	CompanyID        string  `json:"company_id" gorm:"column:company_id"`
	Name             string  `json:"name" gorm:"column:name"`
	Ticker           string  `json:"ticker" gorm:"column:ticker"`
	Industry         *string `json:"industry" gorm:"column:industry"`
	OverallRiskScore *int    `json:"overall_risk_score" gorm:"column:overall_risk_score"`
	RiskLevel        *string `json:"risk_level" gorm:"column:risk_level"`
	SourceCount      int64   `json:"source_count" gorm:"column:source_count"`
	CommitmentCount  int64   `json:"commitment_count" gorm:"column:commitment_count"`
}

var rankings = map[string]struct{ where, order string }{
	RankingAtRisk:       {"r.overall_risk_score IS NOT NULL", "r.overall_risk_score DESC"},
	RankingTopCommitted: {"cm.total > 0", "commitment_count DESC"},
}

// Ranked returns up to limit latest profiles ordered by the ranking,
// cached for cache.RankingTTL. at-risk orders by overall risk score and
// skips unscored profiles; top-committed orders by commitment count and
// skips profiles without commitments.
func (a *Aggregator) Ranked(ctx context.Context, ranking string, limit int) ([]RankedProfile, bool, error) {
	r, ok := rankings[ranking]
	if !ok {
		return nil, false, apperr.Validation("unknown ranking %q", ranking)
	}
	if limit < 1 || limit > MaxRankingLimit {
		return nil, false, apperr.Validation("limit must be between 1 and %d, got %d", MaxRankingLimit, limit)
	}
	return cache.Fetch(ctx, a.cache, cache.RankedKey(ranking, limit), cache.RankingTTL, func(ctx context.Context) ([]RankedProfile, error) {
		if err := a.checkLatest(ctx); err != nil {
			return nil, err
		}
		out := make([]RankedProfile, 0, limit)
		err := a.store.Raw(ctx, &out, `
			SELECT p.id AS profile_id, c.id AS company_id, c.name, c.ticker, c.industry,
				r.overall_risk_score, r.risk_level, p.source_count,
				CAST(COALESCE(cm.total, 0) AS BIGINT) AS commitment_count
			FROM profiles p
			JOIN companies c ON c.id = p.company_id
			LEFT JOIN risk_assessments r ON r.profile_id = p.id
			LEFT JOIN (
				SELECT profile_id, COUNT(*) AS total FROM commitments GROUP BY profile_id
			) cm ON cm.profile_id = p.id
			WHERE p.is_latest = ? AND `+r.where+`
			ORDER BY `+r.order+`, c.name ASC, p.id ASC
			LIMIT ?`, true, limit)
		return out, err
	})
}
