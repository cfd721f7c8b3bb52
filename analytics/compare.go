package analytics

import (
	"context"
	"sort"
	"time"

	"dei-tracker/apperr"
	"dei-tracker/cache"
	"dei-tracker/models"
	"dei-tracker/store"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	MinCompare = 2
	MaxCompare = 5
)

type CompanyMetrics struct {
	SourceCount              int        `json:"source_count"`
	CommitmentCount          int64      `json:"commitment_count"`
	ActiveCommitments        int64      `json:"active_commitments"`
	PledgeCount              int64      `json:"pledge_count"`
	IndustryInitiatives      int64      `json:"industry_initiatives"`
	ControversyCount         int64      `json:"controversy_count"`
	EventCount               int64      `json:"event_count"`
	AvgSourceReliability     *float64   `json:"avg_source_reliability"`
	LatestResearch           *time.Time `json:"latest_research"`
	RiskScore                *int       `json:"risk_score"`
	RiskLevel                *string    `json:"risk_level"`
	HasCDO                   bool       `json:"has_cdo"`
	TransparencyRating       *int       `json:"transparency_rating"`
	CommitmentStrengthRating *int       `json:"commitment_strength_rating"`
	Recommendation           *string    `json:"recommendation"`
}

type CompanyComparison struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Ticker    string         `json:"ticker"`
	Industry  *string        `json:"industry"`
	ProfileID string         `json:"profile_id"`
	Metrics   CompanyMetrics `json:"metrics"`
}

type Comparison struct {
	Companies      []CompanyComparison `json:"companies"`
	ComparisonDate time.Time           `json:"comparison_date"`
}

// Compare returns side-by-side metrics for 2 to 5 companies, in the order
// the ids were given. The result is computed and cached for the sorted id
// set, so every permutation shares one cache entry. Any id that does not
// resolve to a company with a latest profile fails the whole call.
func (a *Aggregator) Compare(ctx context.Context, ids []string) (Comparison, bool, error) {
	canonical, err := checkCompareIDs(ids)
	if err != nil {
		return Comparison{}, false, err
	}
	cmp, hit, err := cache.Fetch(ctx, a.cache, cache.CompareKey(canonical), cache.CompareTTL, func(ctx context.Context) (Comparison, error) {
		return a.compare(ctx, sortedCopy(canonical))
	})
	if err != nil {
		return Comparison{}, false, err
	}

	byID := make(map[string]CompanyComparison, len(cmp.Companies))
	for _, c := range cmp.Companies {
		byID[c.ID] = c
	}
	ordered := make([]CompanyComparison, 0, len(canonical))
	for _, id := range canonical {
		c, ok := byID[id]
		if !ok {
			return Comparison{}, false, apperr.New(apperr.InternalKind, nil, "comparison result lacks company %s", id)
		}
		ordered = append(ordered, c)
	}
	return Comparison{Companies: ordered, ComparisonDate: cmp.ComparisonDate}, hit, nil
}

// checkCompareIDs validates the id list and returns the ids in canonical
// UUID form, preserving input order.
func checkCompareIDs(ids []string) ([]string, error) {
	if len(ids) < MinCompare {
		return nil, apperr.Validation("at least %d companies are required for comparison, got %d", MinCompare, len(ids))
	}
	if len(ids) > MaxCompare {
		return nil, apperr.Validation("at most %d companies can be compared, got %d", MaxCompare, len(ids))
	}
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, raw := range ids {
		u, err := uuid.Parse(raw)
		if err != nil {
			return nil, apperr.Validation("company id %q is not a valid UUID", raw)
		}
		id := u.String()
		if seen[id] {
			return nil, apperr.Validation("company %s is listed twice", id)
		}
		seen[id] = true
		out = append(out, id)
	}
	return out, nil
}

func (a *Aggregator) compare(ctx context.Context, ids []string) (Comparison, error) {
	rows := make([]CompanyComparison, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			c, err := a.companyMetrics(gctx, id)
			if err != nil {
				return err
			}
			rows[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Comparison{}, err
	}
	return Comparison{Companies: rows, ComparisonDate: time.Now().UTC()}, nil
}

func (a *Aggregator) companyMetrics(ctx context.Context, companyID string) (CompanyComparison, error) {
	company, err := store.Get[models.Company](ctx, a.store, companyID)
	if apperr.Is(err, apperr.NotFoundKind) {
		return CompanyComparison{}, apperr.Validation("company %s does not exist", companyID)
	}
	if err != nil {
		return CompanyComparison{}, err
	}
	p, err := a.latestProfile(ctx, companyID)
	if err != nil {
		return CompanyComparison{}, err
	}

	out := CompanyComparison{ID: company.ID, Name: company.Name, Ticker: company.Ticker, Industry: company.Industry, ProfileID: p.ID}
	m := &out.Metrics
	m.SourceCount = p.SourceCount
	m.LatestResearch = p.ResearchCapturedAt
	own := store.Eq("profile_id", p.ID)

	var claims struct {
		Total      int64 `gorm:"column:total"`
		Active     int64 `gorm:"column:active"`
		Pledges    int64 `gorm:"column:pledges"`
		Initiative int64 `gorm:"column:initiatives"`
	}
	err = a.store.Raw(ctx, &claims, `
		SELECT COUNT(*) AS total,
			CAST(COALESCE(SUM(CASE WHEN current_status = ? THEN 1 ELSE 0 END), 0) AS BIGINT) AS active,
			CAST(COALESCE(SUM(CASE WHEN commitment_type = 'pledge' THEN 1 ELSE 0 END), 0) AS BIGINT) AS pledges,
			CAST(COALESCE(SUM(CASE WHEN commitment_type = 'industry_initiative' THEN 1 ELSE 0 END), 0) AS BIGINT) AS initiatives
		FROM commitments WHERE profile_id = ?`, models.StatusActive, p.ID)
	if err != nil {
		return out, err
	}
	m.CommitmentCount, m.ActiveCommitments = claims.Total, claims.Active
	m.PledgeCount, m.IndustryInitiatives = claims.Pledges, claims.Initiative

	if m.ControversyCount, err = store.Count[models.Controversy](ctx, a.store, own); err != nil {
		return out, err
	}
	if m.EventCount, err = store.Count[models.Event](ctx, a.store, own); err != nil {
		return out, err
	}

	var rel struct {
		Avg *float64 `gorm:"column:avg_reliability"`
	}
	err = a.store.Raw(ctx, &rel, `
		SELECT CAST(AVG(reliability_score) AS DOUBLE PRECISION) AS avg_reliability
		FROM data_sources
		WHERE profile_id = ? AND reliability_score BETWEEN ? AND ?`, p.ID, models.MinReliability, models.MaxReliability)
	if err != nil {
		return out, err
	}
	if rel.Avg != nil {
		v := round(*rel.Avg, 2)
		m.AvgSourceReliability = &v
	}

	risk, err := store.Optional[models.RiskAssessment](ctx, a.store, own)
	if err != nil {
		return out, err
	}
	if risk != nil {
		m.RiskScore, m.RiskLevel = risk.OverallRiskScore, &risk.RiskLevel
	}
	cdo, err := store.Optional[models.CDORole](ctx, a.store, own)
	if err != nil {
		return out, err
	}
	m.HasCDO = cdo != nil && cdo.Exists
	ai, err := store.Optional[models.AIContext](ctx, a.store, own)
	if err != nil {
		return out, err
	}
	if ai != nil {
		m.TransparencyRating = ai.TransparencyRating
		m.CommitmentStrengthRating = ai.CommitmentStrengthRating
		m.Recommendation = ai.Recommendation
	}
	return out, nil
}

// latestProfile resolves the latest profile for comparison. A company
// without one cannot be compared; several flagged rows are corrupt data.
func (a *Aggregator) latestProfile(ctx context.Context, companyID string) (*models.Profile, error) {
	rows, err := store.List[models.Profile](ctx, a.store, store.Query{
		Filters: []store.Filter{store.Eq("company_id", companyID), store.Eq("is_latest", true)},
		Sort:    []store.Sort{{Column: "id"}},
		Limit:   2,
	})
	if err != nil {
		return nil, err
	}
	switch len(rows) {
	case 0:
		return nil, apperr.Validation("company %s has no latest profile to compare", companyID)
	case 1:
		return &rows[0], nil
	default:
		return nil, apperr.DataIntegrity("company %s has more than one profile flagged latest", companyID)
	}
}

func sortedCopy(ids []string) []string {
	out := append([]string(nil), ids...)
	sort.Strings(out)
	return out
}
