package analytics

import (
	"context"
	"testing"
	"time"

	"dei-tracker/apperr"
	"dei-tracker/cache"
	"dei-tracker/database/dbtest"
	"dei-tracker/models"
	"dei-tracker/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

func newAggregator(t *testing.T, c *cache.Cache) (*Aggregator, dbtest.Scenario, *gorm.DB) {
	t.Helper()
	db := dbtest.Open(t)
	sc := dbtest.Seed(t, db)
	return New(store.New(db, 2*time.Second), c, nil), sc, db
}

func redisCache(t *testing.T) (*miniredis.Miniredis, *cache.Cache) {
	t.Helper()
	mr := miniredis.RunT(t)
	r := cache.NewRedisClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = r.Close() })
	return mr, cache.New(r, time.Second, nil)
}

func TestOverview(t *testing.T) {
	a, sc, _ := newAggregator(t, nil)
	o, _, err := a.Overview(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if o.TotalCompanies != 4 || o.TotalProfiles != 4 || o.TotalSources != 18 {
		t.Errorf("totals = %d companies, %d profiles, %d sources", o.TotalCompanies, o.TotalProfiles, o.TotalSources)
	}
	// every commitment counts, whatever its status
	if o.TotalCommitments != 5 || o.TotalControversies != 2 || o.TotalEvents != 3 {
		t.Errorf("totals = %d commitments, %d controversies, %d events", o.TotalCommitments, o.TotalControversies, o.TotalEvents)
	}
	if o.AvgSourcesPerCompany != 4.5 || o.AvgCommitmentsPerCompany != 1.3 {
		t.Errorf("averages = %v, %v", o.AvgSourcesPerCompany, o.AvgCommitmentsPerCompany)
	}
	if o.IndustriesCovered != 2 || o.CountriesCovered != 2 {
		t.Errorf("covered = %d industries, %d countries", o.IndustriesCovered, o.CountriesCovered)
	}
	if o.LatestResearchDate == nil || !o.LatestResearchDate.Equal(*sc.AAPLProfile.ResearchCapturedAt) {
		t.Errorf("latest research = %v", o.LatestResearchDate)
	}

	wantSources := map[string]int64{"news": 5, "filing": 3, "report": 5, "press": 2, "court": 3}
	for k, v := range wantSources {
		if o.SourceTypeBreakdown[k] != v {
			t.Errorf("source type %s = %d, want %d", k, o.SourceTypeBreakdown[k], v)
		}
	}
	if o.CommitmentStatusBreakdown["active"] != 3 || o.CommitmentStatusBreakdown["discontinued"] != 2 {
		t.Errorf("status breakdown = %v", o.CommitmentStatusBreakdown)
	}
	if o.RiskLevelBreakdown["medium"] != 1 || o.RiskLevelBreakdown["high"] != 1 || o.RiskLevelBreakdown[Unassessed] != 1 {
		t.Errorf("risk breakdown = %v", o.RiskLevelBreakdown)
	}
	if o.DEIStatusBreakdown["maintained"] != 1 || o.DEIStatusBreakdown["reduced"] != 1 {
		t.Errorf("dei status = %v", o.DEIStatusBreakdown)
	}
	if o.RecommendationBreakdown["B"] != 1 || o.RecommendationBreakdown["C"] != 1 {
		t.Errorf("recommendations = %v", o.RecommendationBreakdown)
	}
	if o.TransparencyDistribution["high"] != 1 || o.TransparencyDistribution["low"] != 1 || o.TransparencyDistribution["medium"] != 0 {
		t.Errorf("transparency = %v", o.TransparencyDistribution)
	}
}

func TestOverviewIsStaleUntilTTL(t *testing.T) {
	mr, c := redisCache(t)
	a, _, db := newAggregator(t, c)
	ctx := context.Background()

	if _, hit, err := a.Overview(ctx); err != nil || hit {
		t.Fatalf("first: hit=%v err=%v", hit, err)
	}
	now := time.Now().UTC()
	dbtest.Create(t, db, &models.Company{ID: uuid.NewString(), Ticker: "NEW", Name: "Newco", CreatedAt: now, UpdatedAt: now})

	o, hit, err := a.Overview(ctx)
	if err != nil || !hit {
		t.Fatalf("second: hit=%v err=%v", hit, err)
	}
	if o.TotalCompanies != 4 {
		t.Errorf("cached overview changed before expiry: %d", o.TotalCompanies)
	}

	mr.FastForward(cache.AnalyticsTTL)
	o, hit, err = a.Overview(ctx)
	if err != nil || hit {
		t.Fatalf("after ttl: hit=%v err=%v", hit, err)
	}
	if o.TotalCompanies != 5 {
		t.Errorf("recomputed overview = %d companies", o.TotalCompanies)
	}
}

func TestAnalyticsSurviveCacheOutage(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	a, _, _ := newAggregator(t, cache.New(cache.NewRedisClient(client), time.Second, nil))
	mr.Close()

	o, hit, err := a.Overview(context.Background())
	if err != nil || hit || o.TotalCompanies != 4 {
		t.Fatalf("overview during outage: %+v hit=%v err=%v", o.TotalCompanies, hit, err)
	}
}

func TestDuplicateLatestProfilesFailAggregates(t *testing.T) {
	a, sc, db := newAggregator(t, nil)
	ctx := context.Background()
	dbtest.Create(t, db, &models.Profile{ID: uuid.NewString(), CompanyID: sc.MSFT.ID, SchemaVersion: "2.0", ProfileType: "dei",
		GeneratedAt: time.Now().UTC(), SourceCount: 1, IsLatest: true, CreatedAt: time.Now().UTC()})

	checks := map[string]func() error{
		"overview":   func() error { _, _, err := a.Overview(ctx); return err },
		"industries": func() error { _, _, err := a.Industries(ctx); return err },
		"risks":      func() error { _, _, err := a.Risks(ctx); return err },
		"at-risk":    func() error { _, _, err := a.Ranked(ctx, RankingAtRisk, 20); return err },
	}
	for name, run := range checks {
		if err := run(); !apperr.Is(err, apperr.DataIntegrityKind) {
			t.Errorf("%s: got %v, want data integrity error", name, err)
		}
	}
}

func TestIndustries(t *testing.T) {
	a, _, _ := newAggregator(t, nil)
	rows, _, err := a.Industries(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("industries = %+v", rows)
	}

	tech := rows[0]
	if tech.Industry != "Technology" || tech.CompanyCount != 2 {
		t.Fatalf("first industry = %+v", tech)
	}
	if tech.AvgSources != 8 || tech.AvgCommitments != 2.5 || tech.TotalCommitments != 5 || tech.ActiveCommitments != 3 {
		t.Errorf("technology = %+v", tech)
	}
	if tech.TotalControversies != 2 || tech.CompaniesWithCDO != 1 || tech.AvgRiskScore == nil || *tech.AvgRiskScore != 57.5 {
		t.Errorf("technology = %+v", tech)
	}

	if rows[1].Industry != "Finance" || rows[1].AvgRiskScore != nil {
		t.Errorf("second = %+v", rows[1])
	}
	// companies without an industry are kept, not dropped
	if rows[2].Industry != Unclassified || rows[2].CompanyCount != 1 || rows[2].AvgSources != 1 {
		t.Errorf("third = %+v", rows[2])
	}
}

func TestRisksAccountForEveryCompany(t *testing.T) {
	a, _, _ := newAggregator(t, nil)
	d, _, err := a.Risks(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if d.TotalCompanies != 4 {
		t.Errorf("total = %d", d.TotalCompanies)
	}

	want := []struct {
		level    string
		count    int64
		pct      float64
		lawsuits float64
	}{
		{"low", 0, 0, 0},
		{"medium", 1, 25, 2},
		{"high", 1, 25, 3},
		{Unassessed, 2, 50, 0},
	}
	if len(d.Buckets) != len(want) {
		t.Fatalf("buckets = %+v", d.Buckets)
	}
	var sum int64
	for i, w := range want {
		b := d.Buckets[i]
		sum += b.Count
		if b.RiskLevel != w.level || b.Count != w.count || b.Percentage != w.pct || b.AvgLawsuits != w.lawsuits {
			t.Errorf("bucket %d = %+v, want %+v", i, b, w)
		}
	}
	if sum != d.TotalCompanies {
		t.Errorf("bucket counts sum to %d", sum)
	}
}

func TestCompare(t *testing.T) {
	_, c := redisCache(t)
	a, sc, _ := newAggregator(t, c)
	ctx := context.Background()

	first, hit, err := a.Compare(ctx, []string{sc.MSFT.ID, sc.AAPL.ID})
	if err != nil || hit {
		t.Fatalf("first: hit=%v err=%v", hit, err)
	}
	if first.Companies[0].Ticker != "MSFT" || first.Companies[1].Ticker != "AAPL" {
		t.Fatalf("order = %s, %s", first.Companies[0].Ticker, first.Companies[1].Ticker)
	}

	second, hit, err := a.Compare(ctx, []string{sc.AAPL.ID, sc.MSFT.ID})
	if err != nil || !hit {
		t.Fatalf("permutation should hit the same entry: hit=%v err=%v", hit, err)
	}
	if second.Companies[0].Ticker != "AAPL" || second.Companies[1].Ticker != "MSFT" {
		t.Fatalf("order = %s, %s", second.Companies[0].Ticker, second.Companies[1].Ticker)
	}
	if second.Companies[0].ProfileID != first.Companies[1].ProfileID || !second.ComparisonDate.Equal(first.ComparisonDate) {
		t.Error("permutations returned different results")
	}

	aapl := second.Companies[0].Metrics
	if aapl.CommitmentCount != 4 || aapl.ActiveCommitments != 2 || aapl.PledgeCount != 3 || aapl.IndustryInitiatives != 1 {
		t.Errorf("aapl commitments = %+v", aapl)
	}
	if aapl.ControversyCount != 1 || aapl.EventCount != 2 || !aapl.HasCDO {
		t.Errorf("aapl = %+v", aapl)
	}
	// the out-of-range score of S-13 is excluded
	if aapl.AvgSourceReliability == nil || *aapl.AvgSourceReliability != 2.75 {
		t.Errorf("aapl reliability = %v", aapl.AvgSourceReliability)
	}
	if aapl.RiskScore == nil || *aapl.RiskScore != 35 || *aapl.RiskLevel != "medium" {
		t.Errorf("aapl risk = %v %v", aapl.RiskScore, aapl.RiskLevel)
	}
	msft := second.Companies[1].Metrics
	if msft.HasCDO || msft.AvgSourceReliability == nil || *msft.AvgSourceReliability != 4.5 {
		t.Errorf("msft = %+v", msft)
	}
}

func TestCompareRejectsBadInput(t *testing.T) {
	a, sc, _ := newAggregator(t, nil)
	ctx := context.Background()
	ids := func(n int) []string {
		out := []string{sc.AAPL.ID, sc.MSFT.ID, sc.XOM.ID}
		for len(out) < n {
			out = append(out, uuid.NewString())
		}
		return out[:n]
	}

	cases := map[string][]string{
		"one id":        ids(1),
		"six ids":       ids(6),
		"not a uuid":    {sc.AAPL.ID, "AAPL"},
		"duplicate":     {sc.AAPL.ID, sc.AAPL.ID},
		"missing":       {sc.AAPL.ID, uuid.NewString()},
		"no profile":    {sc.AAPL.ID, sc.NoProfile.ID},
		"missing first": {uuid.NewString(), sc.MSFT.ID, sc.XOM.ID},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			cmp, _, err := a.Compare(ctx, in)
			if !apperr.Is(err, apperr.ValidationKind) {
				t.Fatalf("expected VALIDATION_ERROR, got %v", err)
			}
			if len(cmp.Companies) != 0 {
				t.Errorf("partial result: %+v", cmp.Companies)
			}
		})
	}

	cmp, _, err := a.Compare(ctx, []string{sc.XOM.ID, sc.AAPL.ID, sc.MSFT.ID})
	if err != nil || len(cmp.Companies) != 3 || cmp.Companies[0].Ticker != "XOM" {
		t.Errorf("three companies: %+v, %v", cmp.Companies, err)
	}
	if cmp.Companies[0].Metrics.RiskScore != nil || cmp.Companies[0].Metrics.AvgSourceReliability == nil {
		t.Errorf("xom metrics = %+v", cmp.Companies[0].Metrics)
	}
}

func TestTrends(t *testing.T) {
	a, _, _ := newAggregator(t, nil)
	ctx := context.Background()

	tr, _, err := a.Trends(ctx, TrendQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if tr.Metric != "events" || tr.Interval != "month" || len(tr.Points) != 3 {
		t.Fatalf("trends = %+v", tr)
	}
	if tr.Points[0] != (TrendPoint{Period: "2024-01", Count: 1}) || tr.Points[2].Period != "2024-11" {
		t.Errorf("points = %+v", tr.Points)
	}

	tr, _, err = a.Trends(ctx, TrendQuery{Metric: "events", Interval: "year", From: "2024-02-01", To: "2024-12-31"})
	if err != nil {
		t.Fatal(err)
	}
	if len(tr.Points) != 1 || tr.Points[0].Count != 2 || *tr.From != "2024-02-01" {
		t.Errorf("ranged = %+v", tr)
	}

	tr, _, err = a.Trends(ctx, TrendQuery{Metric: "commitment_changes"})
	if err != nil || len(tr.Points) != 1 || tr.Points[0] != (TrendPoint{Period: "2025-01", Count: 2}) {
		t.Errorf("commitment changes = %+v, %v", tr, err)
	}

	for _, q := range []TrendQuery{
		{Metric: "stock_price"},
		{Interval: "week"},
		{From: "01/02/2024"},
		{From: "2024-05-01", To: "2024-04-01"},
	} {
		if _, _, err := a.Trends(ctx, q); !apperr.Is(err, apperr.ValidationKind) {
			t.Errorf("%+v: got %v", q, err)
		}
	}
}

func TestRankings(t *testing.T) {
	a, _, _ := newAggregator(t, nil)
	ctx := context.Background()

	risky, _, err := a.Ranked(ctx, RankingAtRisk, 20)
	if err != nil {
		t.Fatal(err)
	}
	if len(risky) != 2 || risky[0].Ticker != "MSFT" || *risky[0].OverallRiskScore != 80 || risky[1].Ticker != "AAPL" {
		t.Errorf("at-risk = %+v", risky)
	}

	committed, _, err := a.Ranked(ctx, RankingTopCommitted, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(committed) != 1 || committed[0].Ticker != "AAPL" || committed[0].CommitmentCount != 4 {
		t.Errorf("top-committed = %+v", committed)
	}

	for _, limit := range []int{0, 101} {
		if _, _, err := a.Ranked(ctx, RankingAtRisk, limit); !apperr.Is(err, apperr.ValidationKind) {
			t.Errorf("limit %d: got %v", limit, err)
		}
	}
	if _, _, err := a.Ranked(ctx, "most-hated", 5); !apperr.Is(err, apperr.ValidationKind) {
		t.Errorf("unknown ranking: got %v", err)
	}
}

func TestTypeStats(t *testing.T) {
	a, _, _ := newAggregator(t, nil)
	ctx := context.Background()

	sources, err := a.SourceTypes(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(sources) != 5 || sources[0].SourceType != "news" || sources[0].Count != 5 {
		t.Fatalf("source types = %+v", sources)
	}
	if sources[0].AvgReliability == nil || *sources[0].AvgReliability != 2.5 {
		t.Errorf("news reliability = %v", sources[0].AvgReliability)
	}
	for _, s := range sources {
		if s.SourceType == "court" && (s.AvgReliability == nil || *s.AvgReliability != 2.5) {
			t.Errorf("court reliability = %v", s.AvgReliability)
		}
	}

	commitments, err := a.CommitmentTypes(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(commitments) != 2 || commitments[0] != (CommitmentTypeStats{CommitmentType: "pledge", Count: 4, ActiveCount: 2, CompaniesCount: 2}) {
		t.Errorf("commitment types = %+v", commitments)
	}

	events, err := a.EventTypes(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 || events[0].EventType != "announcement" || events[0].Positive != 1 || events[0].HighImpact != 1 {
		t.Errorf("event types = %+v", events)
	}

	sd, err := a.SupplierPrograms(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if sd.TotalCompanies != 2 || sd.ProgramsExistPercent != 100 || sd.SpendingDisclosedPercent != 50 {
		t.Errorf("supplier stats = %+v", sd)
	}
	if sd.StatusBreakdown["active"] != 1 || sd.StatusBreakdown["paused"] != 1 {
		t.Errorf("status breakdown = %v", sd.StatusBreakdown)
	}
}

func TestRatio(t *testing.T) {
	cases := []struct {
		num, den int64
		places   int32
		want     float64
	}{
		{5, 4, 1, 1.3},
		{18, 4, 1, 4.5},
		{1, 3, 2, 0.33},
		{2, 3, 1, 0.7},
		{7, 0, 1, 0},
	}
	for _, c := range cases {
		if got := ratio(c.num, c.den, c.places); got != c.want {
			t.Errorf("ratio(%d, %d, %d) = %v, want %v", c.num, c.den, c.places, got, c.want)
		}
	}
}
