package analytics

import (
	"context"

	"dei-tracker/models"
	"dei-tracker/store"
)

type SourceTypeStats struct {
	SourceType     string   `json:"source_type" gorm:"column:source_type"`
	Count          int64    `json:"count" gorm:"column:n"`
	AvgReliability *float64 `json:"avg_reliability" gorm:"column:avg_reliability"`
}

// SourceTypes counts sources per type. The average reliability ignores
// missing and out-of-range scores.
func (a *Aggregator) SourceTypes(ctx context.Context) ([]SourceTypeStats, error) {
	out := make([]SourceTypeStats, 0)
	err := a.store.Raw(ctx, &out, `
		SELECT source_type, COUNT(*) AS n,
			CAST(AVG(CASE WHEN reliability_score BETWEEN ? AND ? THEN reliability_score END) AS DOUBLE PRECISION) AS avg_reliability
		FROM data_sources
		GROUP BY source_type
		ORDER BY n DESC, source_type ASC`, models.MinReliability, models.MaxReliability)
	if err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].AvgReliability != nil {
			v := round(*out[i].AvgReliability, 2)
			out[i].AvgReliability = &v
		}
	}
	return out, nil
}

type CommitmentTypeStats struct {
	CommitmentType string `json:"commitment_type" gorm:"column:commitment_type"`
	Count          int64  `json:"count" gorm:"column:n"`
	ActiveCount    int64  `json:"active_count" gorm:"column:active_count"`
	CompaniesCount int64  `json:"companies_count" gorm:"column:companies_count"`
}

func (a *Aggregator) CommitmentTypes(ctx context.Context) ([]CommitmentTypeStats, error) {
	out := make([]CommitmentTypeStats, 0)
	err := a.store.Raw(ctx, &out, `
		SELECT cm.commitment_type, COUNT(*) AS n,
			CAST(COALESCE(SUM(CASE WHEN cm.current_status = ? THEN 1 ELSE 0 END), 0) AS BIGINT) AS active_count,
			COUNT(DISTINCT p.company_id) AS companies_count
		FROM commitments cm
		LEFT JOIN profiles p ON p.id = cm.profile_id
		GROUP BY cm.commitment_type
		ORDER BY n DESC, cm.commitment_type ASC`, models.StatusActive)
	if err != nil {
		return nil, err
	}
	return out, nil
}

type EventTypeStats struct {
	EventType  string `json:"event_type" gorm:"column:event_type"`
	Count      int64  `json:"count" gorm:"column:n"`
	Positive   int64  `json:"positive" gorm:"column:positive"`
	Negative   int64  `json:"negative" gorm:"column:negative"`
	Neutral    int64  `json:"neutral" gorm:"column:neutral"`
	HighImpact int64  `json:"high_impact" gorm:"column:high_impact"`
}

// EventTypes counts events per type with their sentiment split. An event
// is high impact when either impact or impact_magnitude says so.
func (a *Aggregator) EventTypes(ctx context.Context) ([]EventTypeStats, error) {
	out := make([]EventTypeStats, 0)
	err := a.store.Raw(ctx, &out, `
		SELECT event_type, COUNT(*) AS n,
			CAST(COALESCE(SUM(CASE WHEN sentiment = 'positive' THEN 1 ELSE 0 END), 0) AS BIGINT) AS positive,
			CAST(COALESCE(SUM(CASE WHEN sentiment = 'negative' THEN 1 ELSE 0 END), 0) AS BIGINT) AS negative,
			CAST(COALESCE(SUM(CASE WHEN sentiment = 'neutral' THEN 1 ELSE 0 END), 0) AS BIGINT) AS neutral,
			CAST(COALESCE(SUM(CASE WHEN impact = 'high' OR impact_magnitude = 'high' THEN 1 ELSE 0 END), 0) AS BIGINT) AS high_impact
		FROM events
		GROUP BY event_type
		ORDER BY n DESC, event_type ASC`)
	if err != nil {
		return nil, err
	}
	return out, nil
}

type SupplierStats struct {
	TotalCompanies           int64            `json:"total_companies"`
	ProgramsExist            int64            `json:"programs_exist"`
	ProgramsExistPercent     float64          `json:"programs_exist_percentage"`
	SpendingDisclosed        int64            `json:"spending_disclosed"`
	SpendingDisclosedPercent float64          `json:"spending_disclosed_percentage"`
	StatusBreakdown          map[string]int64 `json:"status_breakdown"`
}

func (a *Aggregator) SupplierPrograms(ctx context.Context) (SupplierStats, error) {
	var st SupplierStats
	var err error
	if st.TotalCompanies, err = store.Count[models.SupplierDiversity](ctx, a.store); err != nil {
		return st, err
	}
	if st.ProgramsExist, err = store.Count[models.SupplierDiversity](ctx, a.store, store.Eq("program_exists", true)); err != nil {
		return st, err
	}
	if st.SpendingDisclosed, err = store.Count[models.SupplierDiversity](ctx, a.store, store.Eq("spending_disclosed", true)); err != nil {
		return st, err
	}
	groups, err := store.GroupCount[models.SupplierDiversity](ctx, a.store, "program_status", store.NotNull("program_status"))
	if err != nil {
		return st, err
	}
	st.StatusBreakdown = breakdown(groups)
	st.ProgramsExistPercent = ratio(st.ProgramsExist*100, st.TotalCompanies, 1)
	st.SpendingDisclosedPercent = ratio(st.SpendingDisclosed*100, st.TotalCompanies, 1)
	return st, nil
}
