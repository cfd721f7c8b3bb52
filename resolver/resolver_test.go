package resolver

import (
	"context"
	"net/url"
	"testing"
	"time"

	"dei-tracker/apperr"
	"dei-tracker/cache"
	"dei-tracker/database"
	"dei-tracker/database/dbtest"
	"dei-tracker/models"
	"dei-tracker/query"
	"dei-tracker/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type fixture struct {
	db      *gorm.DB
	sc      dbtest.Scenario
	counter *database.QueryCounter
	r       *Resolver
}

func newFixture(t *testing.T, c *cache.Cache) fixture {
	t.Helper()
	db := dbtest.Open(t)
	sc := dbtest.Seed(t, db)
	qc := database.NewQueryCounter()
	if err := qc.Register(db); err != nil {
		t.Fatalf("register counter: %v", err)
	}
	return fixture{db: db, sc: sc, counter: qc, r: New(store.New(db, 2*time.Second), c, nil)}
}

func parse(t *testing.T, c query.Collection, values url.Values) query.Request {
	t.Helper()
	req, err := query.Parse(values, c, query.DefaultLimits())
	if err != nil {
		t.Fatalf("parse %s: %v", c.Name, err)
	}
	return req
}

func TestSummaryNeverQueriesChildren(t *testing.T) {
	f := newFixture(t, nil)
	f.counter.Reset()

	p, err := f.r.Summary(context.Background(), f.sc.AAPLProfile.ID)
	if err != nil {
		t.Fatal(err)
	}
	if p.SourceCount != 13 || p.CommitmentCount != 4 || p.Company.Ticker != "AAPL" {
		t.Errorf("summary = %+v", p)
	}
	for _, table := range []string{
		"commitments", "controversies", "events", "data_sources",
		"commitment_sources", "controversy_sources", "event_sources",
		"ai_contexts", "ai_key_insights", "risk_assessments",
	} {
		if n := f.counter.Count(table); n != 0 {
			t.Errorf("%d queries against %s", n, table)
		}
	}
	if f.counter.Total() != 2 {
		t.Errorf("total queries = %d, want 2", f.counter.Total())
	}
}

func TestSummaryNotFound(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.r.Summary(context.Background(), uuid.NewString())
	if !apperr.Is(err, apperr.NotFoundKind) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestFullProfile(t *testing.T) {
	f := newFixture(t, nil)
	fp, hit, err := f.r.Full(context.Background(), f.sc.AAPLProfile.ID)
	if err != nil {
		t.Fatal(err)
	}
	if hit {
		t.Error("disabled cache reported a hit")
	}

	if len(fp.Sources) != 13 || len(fp.Commitments) != 4 || fp.CommitmentCount != 4 {
		t.Fatalf("sources=%d commitments=%d", len(fp.Sources), len(fp.Commitments))
	}
	if fp.ControversyCount != 1 || fp.EventCount != 2 {
		t.Errorf("controversies=%d events=%d", fp.ControversyCount, fp.EventCount)
	}
	if fp.Company == nil || fp.Company.Ticker != "AAPL" {
		t.Errorf("company = %+v", fp.Company)
	}

	var texts []string
	for _, in := range fp.KeyInsights {
		texts = append(texts, in.InsightText)
	}
	if len(texts) != 3 || texts[0] != "first" || texts[1] != "second" || texts[2] != "third" {
		t.Errorf("insights out of order: %v", texts)
	}
	if len(fp.StrategicImplications) != 2 || fp.StrategicImplications[0].ImplicationText != "sooner" {
		t.Errorf("implications out of order: %+v", fp.StrategicImplications)
	}

	active := 0
	for _, c := range fp.Commitments {
		if c.CurrentStatus == models.StatusActive {
			active++
		}
		if c.Sources == nil {
			t.Errorf("commitment %s has nil sources", c.CommitmentName)
		}
		if c.CommitmentName == "Racial Equity and Justice Initiative" && len(c.Sources) != 2 {
			t.Errorf("REJI sources = %+v", c.Sources)
		}
	}
	if active != 2 {
		t.Errorf("active commitments = %d", active)
	}
	if len(fp.Controversies[0].Sources) != 1 || fp.Controversies[0].Sources[0].SourceID != "S-12" {
		t.Errorf("controversy sources = %+v", fp.Controversies[0].Sources)
	}

	// S-99 is cited but not carried by the profile
	if fp.DEIPosture == nil || len(fp.DEIPosture.SupportingSources) != 1 || fp.DEIPosture.SupportingSources[0].SourceID != "S-04" {
		t.Errorf("posture supporting sources = %+v", fp.DEIPosture)
	}
	if fp.CDORole == nil || !fp.CDORole.Exists || len(fp.CDORole.SupportingSources) != 1 {
		t.Errorf("cdo role = %+v", fp.CDORole)
	}
	if fp.ReportingPractices == nil || len(fp.ReportingPractices.SupportingSources) != 0 {
		t.Errorf("reporting practices = %+v", fp.ReportingPractices)
	}
	// satellites without citations still render supporting_sources as []
	for name, refs := range map[string][]models.SourceRef{
		"ai context":   fp.AIContext.SupportingSources,
		"risk":         fp.RiskAssessment.SupportingSources,
		"data quality": fp.DataQualityFlags.SupportingSources,
	} {
		if refs == nil || len(refs) != 0 {
			t.Errorf("%s supporting sources = %#v", name, refs)
		}
	}

	flagged := 0
	for _, s := range fp.Sources {
		if s.ReliabilityFlag == models.ReliabilityOutOfRange {
			flagged++
			if s.SourceID != "S-13" || *s.ReliabilityScore != 7 {
				t.Errorf("wrong source flagged: %+v", s)
			}
		}
	}
	if flagged != 1 {
		t.Errorf("flagged sources = %d", flagged)
	}
}

func TestFullProfileAbsentSatellitesAreNil(t *testing.T) {
	f := newFixture(t, nil)
	fp, _, err := f.r.Full(context.Background(), f.sc.XOMProfile.ID)
	if err != nil {
		t.Fatal(err)
	}
	if fp.AIContext != nil || fp.RiskAssessment != nil || fp.CDORole != nil || fp.DataQualityFlags != nil {
		t.Errorf("expected nil satellites: %+v", fp)
	}
	if fp.KeyInsights == nil || fp.Commitments == nil || len(fp.Sources) != 1 {
		t.Errorf("collections should be empty, not nil: %+v", fp)
	}
}

func TestFullProfileServedFromCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := cache.NewRedisClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	f := newFixture(t, cache.New(rc, time.Second, nil))
	ctx := context.Background()

	if _, hit, err := f.r.Full(ctx, f.sc.AAPLProfile.ID); err != nil || hit {
		t.Fatalf("first: hit=%v err=%v", hit, err)
	}
	f.counter.Reset()
	fp, hit, err := f.r.Full(ctx, f.sc.AAPLProfile.ID)
	if err != nil || !hit {
		t.Fatalf("second: hit=%v err=%v", hit, err)
	}
	if f.counter.Total() != 0 {
		t.Errorf("cache hit issued %d queries", f.counter.Total())
	}
	if len(fp.Sources) != 13 || fp.KeyInsights[0].InsightText != "first" || fp.Company.Ticker != "AAPL" {
		t.Errorf("cached profile differs: %d sources", len(fp.Sources))
	}
	if len(fp.Commitments[2].Evidence.Quotes) != 1 {
		t.Errorf("quotes lost in cache round trip: %+v", fp.Commitments[2].Evidence)
	}

	mr.FastForward(cache.ProfileTTL)
	if _, hit, _ := f.r.Full(ctx, f.sc.AAPLProfile.ID); hit {
		t.Error("entry outlived its TTL")
	}
}

func TestFullProfileRejectsBrokenOrder(t *testing.T) {
	for name, order := range map[string]int{"duplicate": 2, "zero": 0} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, nil)
			dbtest.Create(t, f.db, &models.AIKeyInsight{
				ID: uuid.NewString(), ProfileID: f.sc.AAPLProfile.ID, InsightText: "bad", InsightOrder: order,
			})
			_, _, err := f.r.Full(context.Background(), f.sc.AAPLProfile.ID)
			if !apperr.Is(err, apperr.DataIntegrityKind) {
				t.Fatalf("expected DATA_INTEGRITY_ERROR, got %v", err)
			}
		})
	}
}

func TestLatestID(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	id, err := f.r.LatestID(ctx, f.sc.AAPL.ID)
	if err != nil || id != f.sc.AAPLProfile.ID {
		t.Fatalf("latest = %q, %v", id, err)
	}

	// a company with no flagged profile is broken data, not a missing resource
	if _, err := f.r.LatestID(ctx, f.sc.NoProfile.ID); !apperr.Is(err, apperr.DataIntegrityKind) {
		t.Errorf("no latest: got %v", err)
	}
	if _, err := f.r.LatestID(ctx, uuid.NewString()); !apperr.Is(err, apperr.NotFoundKind) {
		t.Errorf("unknown company: got %v", err)
	}

	if err := f.db.Model(&models.Profile{}).Where("id = ?", f.sc.AAPLOldProfile.ID).Update("is_latest", true).Error; err != nil {
		t.Fatal(err)
	}
	if _, err := f.r.LatestID(ctx, f.sc.AAPL.ID); !apperr.Is(err, apperr.DataIntegrityKind) {
		t.Errorf("two latest: got %v", err)
	}
}

func TestListingsAttachCompany(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	commitments, page, err := f.r.Commitments(ctx, parse(t, query.Commitments, url.Values{
		"profile_id": {f.sc.AAPLProfile.ID}, "status": {"active"},
	}))
	if err != nil {
		t.Fatal(err)
	}
	if len(commitments) != 2 || page.TotalCount != 2 {
		t.Fatalf("active AAPL commitments = %d (total %d)", len(commitments), page.TotalCount)
	}
	for _, c := range commitments {
		if c.Company == nil || c.Company.Ticker != "AAPL" {
			t.Errorf("commitment %s company = %+v", c.ID, c.Company)
		}
	}

	profiles, _, err := f.r.Profiles(ctx, parse(t, query.Profiles, url.Values{}))
	if err != nil {
		t.Fatal(err)
	}
	if len(profiles) != 3 {
		t.Fatalf("latest profiles = %d", len(profiles))
	}
	for _, p := range profiles {
		if p.Company == nil {
			t.Errorf("profile %s has no company", p.ID)
		}
	}

	sources, _, err := f.r.Sources(ctx, parse(t, query.Sources, url.Values{"company_id": {f.sc.AAPL.ID}, "per_page": {"100"}}))
	if err != nil {
		t.Fatal(err)
	}
	if len(sources) != 14 {
		t.Errorf("AAPL sources across versions = %d", len(sources))
	}

	programs, _, err := f.r.SupplierPrograms(ctx, parse(t, query.SupplierDiversity, url.Values{"program_exists": {"true"}}))
	if err != nil || len(programs) != 2 {
		t.Fatalf("programs = %d, %v", len(programs), err)
	}
}

func TestOrphansAreDataIntegrityErrors(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if err := f.db.Exec("PRAGMA foreign_keys = OFF").Error; err != nil {
		t.Fatal(err)
	}

	ghost := uuid.NewString()
	orphan := models.Commitment{ID: uuid.NewString(), ProfileID: ghost, CommitmentName: "Orphan", CommitmentType: "pledge", CurrentStatus: "active"}
	dbtest.Create(t, f.db, &orphan)

	if _, _, err := f.r.Commitments(ctx, parse(t, query.Commitments, url.Values{})); !apperr.Is(err, apperr.DataIntegrityKind) {
		t.Errorf("listing: got %v", err)
	}
	if _, err := f.r.Commitment(ctx, orphan.ID); !apperr.Is(err, apperr.DataIntegrityKind) {
		t.Errorf("detail: got %v", err)
	}

	lost := models.Profile{ID: uuid.NewString(), CompanyID: ghost, GeneratedAt: time.Now(), CreatedAt: time.Now()}
	dbtest.Create(t, f.db, &lost)
	if _, err := f.r.Summary(ctx, lost.ID); !apperr.Is(err, apperr.DataIntegrityKind) {
		t.Errorf("profile without company: got %v", err)
	}
}

func TestDetailsResolveSources(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	c, err := f.r.Commitment(ctx, f.sc.AAPLCommitments[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Sources) != 2 || c.Company.Ticker != "AAPL" {
		t.Errorf("commitment = %+v", c)
	}

	e, err := f.r.Event(ctx, f.sc.AAPLEvents[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(e.Sources) != 1 || e.Sources[0].SourceID != "S-05" {
		t.Errorf("event sources = %+v", e.Sources)
	}

	ctv, err := f.r.Controversy(ctx, f.sc.AAPLControversy.ID)
	if err != nil || len(ctv.Sources) != 1 {
		t.Errorf("controversy = %+v, %v", ctv, err)
	}

	s, err := f.r.Source(ctx, f.sc.AAPLSources[12].ID)
	if err != nil {
		t.Fatal(err)
	}
	if s.ReliabilityFlag != models.ReliabilityOutOfRange || s.Company == nil {
		t.Errorf("source = %+v", s)
	}

	if _, err := f.r.Event(ctx, uuid.NewString()); !apperr.Is(err, apperr.NotFoundKind) {
		t.Errorf("missing event: got %v", err)
	}
}

func TestSupplierProgram(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	sd, err := f.r.SupplierProgram(ctx, f.sc.AAPLProfile.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(sd.SupportingSources) != 1 || sd.SupportingSources[0].SourceID != "S-03" || sd.Company.Ticker != "AAPL" {
		t.Errorf("supplier program = %+v", sd)
	}
	if _, err := f.r.SupplierProgram(ctx, f.sc.XOMProfile.ID); !apperr.Is(err, apperr.NotFoundKind) {
		t.Errorf("XOM: got %v", err)
	}
}

func TestCompanyLookups(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	c, err := f.r.CompanyByTicker(ctx, " msft ")
	if err != nil || c.ID != f.sc.MSFT.ID {
		t.Fatalf("ticker lookup = %+v, %v", c, err)
	}
	if _, err := f.r.CompanyByTicker(ctx, "NOPE"); !apperr.Is(err, apperr.NotFoundKind) {
		t.Errorf("unknown ticker: got %v", err)
	}

	hits, err := f.r.Autocomplete(ctx, "MICRO", 10)
	if err != nil || len(hits) != 1 || hits[0].Ticker != "MSFT" {
		t.Errorf("autocomplete = %+v, %v", hits, err)
	}

	opts, err := f.r.FilterOptions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(opts.Industries) != 2 || opts.Industries[0] != "Finance" {
		t.Errorf("industries = %v", opts.Industries)
	}
	if len(opts.Countries) != 2 || len(opts.States) != 3 {
		t.Errorf("countries = %v states = %v", opts.Countries, opts.States)
	}
}
