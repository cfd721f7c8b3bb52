// Package dbtest provides migrated SQLite databases and a seeded research
// dataset for tests.
package dbtest

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"dei-tracker/config"
	"dei-tracker/database"
	"dei-tracker/models"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Open returns a migrated database in t.TempDir(). A single connection keeps
// per-connection pragmas stable across statements.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	cfg := config.Default().Database
	cfg.URL = filepath.Join(t.TempDir(), "dei_test.db")
	cfg.MaxOpenConns = 1

	db, err := database.Open(cfg, nil)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := database.Migrate(context.Background(), db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

// Create inserts every value, failing the test on error.
func Create(t testing.TB, db *gorm.DB, values ...any) {
	t.Helper()
	for _, v := range values {
		if err := db.Create(v).Error; err != nil {
			t.Fatalf("create %T: %v", v, err)
		}
	}
}

func Ptr[T any](v T) *T { return &v }

func Date(y int, m time.Month, d int) datatypes.Date {
	return datatypes.Date(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

func DatePtr(y int, m time.Month, d int) *datatypes.Date {
	return Ptr(Date(y, m, d))
}

// Scenario holds the identifiers of the seeded dataset.
type Scenario struct {
	AAPL, MSFT, XOM, NoProfile models.Company

	AAPLProfile    models.Profile // latest
	AAPLOldProfile models.Profile // superseded
	MSFTProfile    models.Profile
	XOMProfile     models.Profile

	AAPLSources     []models.DataSource
	AAPLCommitments []models.Commitment
	AAPLControversy models.Controversy
	AAPLEvents      []models.Event
}

var base = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

// Seed loads the reference dataset:
//
//	AAPL  Technology, one latest profile with 13 sources, 4 commitments
//	      (2 active, 2 discontinued), 1 controversy, 2 events and every
//	      satellite record, plus an older superseded profile.
//	MSFT  Technology, latest profile with a high risk assessment and no CDO.
//	XOM   no industry, latest profile without a risk assessment.
//	ZZZZ  a company without any profile.
func Seed(t testing.TB, db *gorm.DB) Scenario {
	t.Helper()
	var s Scenario

	s.AAPL = models.Company{ID: uuid.NewString(), Ticker: "AAPL", Name: "Apple Inc.", Industry: Ptr("Technology"),
		HQCity: Ptr("Cupertino"), HQState: Ptr("CA"), HQCountry: Ptr("USA"), CreatedAt: base, UpdatedAt: base}
	s.MSFT = models.Company{ID: uuid.NewString(), Ticker: "MSFT", Name: "Microsoft Corporation", Industry: Ptr("Technology"),
		HQCity: Ptr("Redmond"), HQState: Ptr("WA"), HQCountry: Ptr("USA"), CreatedAt: base, UpdatedAt: base}
	s.XOM = models.Company{ID: uuid.NewString(), Ticker: "XOM", Name: "Exxon Mobil", HQCity: Ptr("Spring"),
		HQState: Ptr("TX"), HQCountry: Ptr("USA"), CreatedAt: base, UpdatedAt: base}
	s.NoProfile = models.Company{ID: uuid.NewString(), Ticker: "ZZZZ", Name: "Zeta Holdings", Industry: Ptr("Finance"),
		HQCountry: Ptr("Canada"), CreatedAt: base, UpdatedAt: base}
	Create(t, db, &s.AAPL, &s.MSFT, &s.XOM, &s.NoProfile)

	captured := base.Add(-48 * time.Hour)
	s.AAPLProfile = models.Profile{ID: uuid.NewString(), CompanyID: s.AAPL.ID, SchemaVersion: "2.0", ProfileType: "dei",
		GeneratedAt: base, ResearchCapturedAt: &captured, SourceCount: 13, CommitmentCount: 4, IsLatest: true, CreatedAt: base}
	s.AAPLOldProfile = models.Profile{ID: uuid.NewString(), CompanyID: s.AAPL.ID, SchemaVersion: "1.0", ProfileType: "dei",
		GeneratedAt: base.AddDate(-1, 0, 0), SourceCount: 2, IsLatest: false, CreatedAt: base.AddDate(-1, 0, 0)}
	s.MSFTProfile = models.Profile{ID: uuid.NewString(), CompanyID: s.MSFT.ID, SchemaVersion: "2.0", ProfileType: "dei",
		GeneratedAt: base.Add(-time.Hour), SourceCount: 3, CommitmentCount: 1, IsLatest: true, CreatedAt: base}
	s.XOMProfile = models.Profile{ID: uuid.NewString(), CompanyID: s.XOM.ID, SchemaVersion: "2.0", ProfileType: "dei",
		GeneratedAt: base.Add(-2 * time.Hour), SourceCount: 1, IsLatest: true, CreatedAt: base}
	Create(t, db, &s.AAPLProfile, &s.AAPLOldProfile, &s.MSFTProfile, &s.XOMProfile)

	types := []string{"news", "news", "news", "filing", "filing", "report", "report", "report", "report", "press", "press", "court", "court"}
	for i, st := range types {
		src := models.DataSource{
			ID:               uuid.NewString(),
			ProfileID:        s.AAPLProfile.ID,
			SourceID:         fmt.Sprintf("S-%02d", i+1),
			SourceType:       st,
			Publisher:        Ptr([]string{"Reuters", "Bloomberg", "Apple"}[i%3]),
			URL:              Ptr(fmt.Sprintf("https://example.org/aapl/%d", i+1)),
			Date:             DatePtr(2024, time.Month(i%12+1), 10),
			Title:            Ptr(fmt.Sprintf("AAPL source %d", i+1)),
			ReliabilityScore: Ptr(i%5 + 1),
		}
		s.AAPLSources = append(s.AAPLSources, src)
	}
	// one stored score outside [1,5]
	s.AAPLSources[12].ReliabilityScore = Ptr(7)
	for i := range s.AAPLSources {
		Create(t, db, &s.AAPLSources[i])
	}

	Create(t, db,
		&models.DataSource{ID: uuid.NewString(), ProfileID: s.AAPLOldProfile.ID, SourceID: "OLD-1", SourceType: "news", Date: DatePtr(2023, 5, 1)},
		&models.DataSource{ID: uuid.NewString(), ProfileID: s.MSFTProfile.ID, SourceID: "M-1", SourceType: "news", ReliabilityScore: Ptr(4), Date: DatePtr(2024, 2, 1)},
		&models.DataSource{ID: uuid.NewString(), ProfileID: s.MSFTProfile.ID, SourceID: "M-2", SourceType: "filing", ReliabilityScore: Ptr(5), Date: DatePtr(2024, 8, 1)},
		&models.DataSource{ID: uuid.NewString(), ProfileID: s.MSFTProfile.ID, SourceID: "M-3", SourceType: "report", Date: DatePtr(2025, 1, 15)},
		&models.DataSource{ID: uuid.NewString(), ProfileID: s.XOMProfile.ID, SourceID: "X-1", SourceType: "court", ReliabilityScore: Ptr(3), Date: DatePtr(2024, 2, 20)},
	)

	changed := base.AddDate(0, -2, 0)
	s.AAPLCommitments = []models.Commitment{
		{ID: uuid.NewString(), ProfileID: s.AAPLProfile.ID, CommitmentName: "Racial Equity and Justice Initiative", CommitmentType: "pledge", CurrentStatus: "active",
			Evidence: models.Evidence{Quotes: []models.Quote{{Text: "We are committing $200 million", SourceReference: "S-01"}}, ProvenanceIDs: []string{"S-01", "S-02"}}},
		{ID: uuid.NewString(), ProfileID: s.AAPLProfile.ID, CommitmentName: "Supplier Diversity Program", CommitmentType: "industry_initiative", CurrentStatus: "active",
			Evidence: models.Evidence{Quotes: []models.Quote{}, ProvenanceIDs: []string{"S-03"}}},
		{ID: uuid.NewString(), ProfileID: s.AAPLProfile.ID, CommitmentName: "Diversity Hiring Targets", CommitmentType: "pledge", CurrentStatus: "discontinued",
			PreviousStatus: Ptr("active"), StatusChangedAt: &changed, Evidence: models.Evidence{Quotes: []models.Quote{}, ProvenanceIDs: []string{}}},
		{ID: uuid.NewString(), ProfileID: s.AAPLProfile.ID, CommitmentName: "Board Diversity Pledge", CommitmentType: "pledge", CurrentStatus: "discontinued",
			PreviousStatus: Ptr("active"), StatusChangedAt: &changed, Evidence: models.Evidence{Quotes: []models.Quote{}, ProvenanceIDs: []string{}}},
	}
	for i := range s.AAPLCommitments {
		Create(t, db, &s.AAPLCommitments[i])
	}
	Create(t, db,
		&models.Commitment{ID: uuid.NewString(), ProfileID: s.MSFTProfile.ID, CommitmentName: "Double Black Leadership", CommitmentType: "pledge", CurrentStatus: "active"},
		&models.CommitmentSource{CommitmentID: s.AAPLCommitments[0].ID, DataSourceID: s.AAPLSources[0].ID},
		&models.CommitmentSource{CommitmentID: s.AAPLCommitments[0].ID, DataSourceID: s.AAPLSources[1].ID},
		&models.CommitmentSource{CommitmentID: s.AAPLCommitments[1].ID, DataSourceID: s.AAPLSources[2].ID},
	)

	s.AAPLControversy = models.Controversy{ID: uuid.NewString(), ProfileID: s.AAPLProfile.ID, Date: DatePtr(2024, 6, 3), Type: "lawsuit",
		Status: "ongoing", Description: "Pay equity class action", CaseName: Ptr("Doe v. Apple"), DocketNumber: Ptr("5:24-cv-0001"), Court: Ptr("N.D. Cal.")}
	Create(t, db, &s.AAPLControversy,
		&models.ControversySource{ControversyID: s.AAPLControversy.ID, DataSourceID: s.AAPLSources[11].ID},
		&models.Controversy{ID: uuid.NewString(), ProfileID: s.MSFTProfile.ID, Date: DatePtr(2023, 9, 9), Type: "incident", Status: "resolved", Description: "Internal complaint"},
	)

	s.AAPLEvents = []models.Event{
		{ID: uuid.NewString(), ProfileID: s.AAPLProfile.ID, Date: Date(2024, 1, 20), EventType: "announcement", Headline: Ptr("Apple expands REJI"),
			Sentiment: Ptr("positive"), Impact: Ptr("high"), EventCategory: Ptr("commitment")},
		{ID: uuid.NewString(), ProfileID: s.AAPLProfile.ID, Date: Date(2024, 11, 2), EventType: "rollback", Headline: Ptr("Apple drops hiring targets"),
			Sentiment: Ptr("negative"), Impact: Ptr("medium"), EventCategory: Ptr("commitment")},
	}
	for i := range s.AAPLEvents {
		Create(t, db, &s.AAPLEvents[i])
	}
	Create(t, db,
		&models.EventSource{EventID: s.AAPLEvents[0].ID, DataSourceID: s.AAPLSources[4].ID},
		&models.Event{ID: uuid.NewString(), ProfileID: s.MSFTProfile.ID, Date: Date(2024, 2, 14), EventType: "report", Sentiment: Ptr("neutral"), Impact: Ptr("low")},
	)

	// satellites; insights deliberately inserted out of display order
	Create(t, db,
		&models.AIContext{ProfileID: s.AAPLProfile.ID, ExecutiveSummary: Ptr("Mixed signals"), CommitmentStrengthRating: Ptr(6),
			TransparencyRating: Ptr(8), Recommendation: Ptr("B")},
		&models.AIKeyInsight{ID: uuid.NewString(), ProfileID: s.AAPLProfile.ID, InsightText: "third", InsightOrder: 3},
		&models.AIKeyInsight{ID: uuid.NewString(), ProfileID: s.AAPLProfile.ID, InsightText: "first", InsightOrder: 1},
		&models.AIKeyInsight{ID: uuid.NewString(), ProfileID: s.AAPLProfile.ID, InsightText: "second", InsightOrder: 2},
		&models.AIStrategicImplication{ID: uuid.NewString(), ProfileID: s.AAPLProfile.ID, ImplicationText: "later", ImplicationOrder: 20},
		&models.AIStrategicImplication{ID: uuid.NewString(), ProfileID: s.AAPLProfile.ID, ImplicationText: "sooner", ImplicationOrder: 10},
		&models.DEIPosture{ProfileID: s.AAPLProfile.ID, Status: "maintained", EvidenceSummary: Ptr("Still publishes EEO-1"),
			Evidence: models.Evidence{Quotes: []models.Quote{{Text: "We remain committed"}}, ProvenanceIDs: []string{"S-04", "S-99"}}},
		&models.CDORole{ProfileID: s.AAPLProfile.ID, Exists: true, Name: Ptr("Barbara Whye"), Title: Ptr("VP Inclusion & Diversity"),
			Evidence: models.Evidence{Quotes: []models.Quote{}, ProvenanceIDs: []string{"S-05"}}},
		&models.ReportingPractices{ProfileID: s.AAPLProfile.ID, DEIInESGReport: true, ReportingFrequency: Ptr("annual"),
			Evidence: models.Evidence{Quotes: []models.Quote{}, ProvenanceIDs: []string{}}},
		&models.SupplierDiversity{ProfileID: s.AAPLProfile.ID, ProgramExists: true, ProgramStatus: Ptr("active"), SpendingDisclosed: true,
			Evidence: models.Evidence{Quotes: []models.Quote{}, ProvenanceIDs: []string{"S-03"}}},
		&models.RiskAssessment{ProfileID: s.AAPLProfile.ID, OverallRiskScore: Ptr(35), RiskLevel: "medium", OngoingLawsuits: 1, SettledCases: 1},
		&models.DataQualityFlags{ProfileID: s.AAPLProfile.ID, VerificationNeeded: []string{"cdo_role"}},

		&models.AIContext{ProfileID: s.MSFTProfile.ID, TransparencyRating: Ptr(2), Recommendation: Ptr("C")},
		&models.DEIPosture{ProfileID: s.MSFTProfile.ID, Status: "reduced"},
		&models.CDORole{ProfileID: s.MSFTProfile.ID, Exists: false},
		&models.SupplierDiversity{ProfileID: s.MSFTProfile.ID, ProgramExists: true, ProgramStatus: Ptr("paused")},
		&models.RiskAssessment{ProfileID: s.MSFTProfile.ID, OverallRiskScore: Ptr(80), RiskLevel: "high", OngoingLawsuits: 3},
	)
	return s
}
