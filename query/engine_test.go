package query

import (
	"context"
	"net/url"
	"testing"
	"time"

	"dei-tracker/apperr"
	"dei-tracker/config"
	"dei-tracker/database/dbtest"
	"dei-tracker/models"
	"dei-tracker/store"
)

func TestNewPaginationProperties(t *testing.T) {
	for total := int64(0); total <= 45; total++ {
		for perPage := 1; perPage <= 12; perPage++ {
			want := int((total + int64(perPage) - 1) / int64(perPage))
			for page := 1; page <= want+2; page++ {
				p := NewPagination(page, perPage, total)
				if p.TotalPages != want {
					t.Fatalf("total=%d per_page=%d: total_pages=%d want %d", total, perPage, p.TotalPages, want)
				}
				if p.HasNext != (page < want) {
					t.Fatalf("total=%d per_page=%d page=%d: has_next=%v", total, perPage, page, p.HasNext)
				}
				if p.HasPrev != (page > 1) {
					t.Fatalf("page=%d: has_prev=%v", page, p.HasPrev)
				}
				if (p.NextPage != nil) != p.HasNext || (p.PrevPage != nil) != p.HasPrev {
					t.Fatalf("next/prev pointers inconsistent: %+v", p)
				}
			}
		}
	}
}

func TestParseDefaultsAndClamp(t *testing.T) {
	lim := DefaultLimits()

	req, err := Parse(url.Values{}, Commitments, lim)
	if err != nil {
		t.Fatal(err)
	}
	if req.Page != 1 || req.PerPage != 20 {
		t.Errorf("defaults = %d/%d", req.Page, req.PerPage)
	}
	if len(req.Sort) != 1 || req.Sort[0].Column != "commitment_name" || req.Sort[0].Desc {
		t.Errorf("default sort = %+v", req.Sort)
	}

	req, err = Parse(url.Values{"per_page": {"5000"}}, Commitments, lim)
	if err != nil {
		t.Fatal(err)
	}
	if req.PerPage != 100 {
		t.Errorf("per_page not clamped: %d", req.PerPage)
	}

	// configuration may lower the ceiling but never raise it
	low := LimitsFrom(config.PaginationConfig{DefaultPerPage: 50, MaxPerPage: 10})
	if low.MaxPerPage != 10 || low.DefaultPerPage != 10 {
		t.Errorf("limits = %+v", low)
	}
	high := LimitsFrom(config.PaginationConfig{DefaultPerPage: 20, MaxPerPage: 1000})
	if high.MaxPerPage != config.HardMaxPerPage {
		t.Errorf("ceiling raised to %d", high.MaxPerPage)
	}
}

func TestParseRejectsBadInput(t *testing.T) {
	cases := map[string]url.Values{
		"unknown param":    {"colour": {"red"}},
		"page zero":        {"page": {"0"}},
		"page text":        {"page": {"two"}},
		"per_page zero":    {"per_page": {"0"}},
		"page overflows":   {"page": {"922337203685477580"}, "per_page": {"100"}},
		"unknown sort":     {"sort": {"ticker"}},
		"bad order":        {"order": {"sideways"}},
		"reliability high": {"min_reliability": {"6"}},
		"reliability low":  {"max_reliability": {"0"}},
		"bad uuid":         {"profile_id": {"not-a-uuid"}},
		"bad date":         {"date_from": {"2024/01/01"}},
	}
	for name, values := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(values, Sources, DefaultLimits())
			if !apperr.Is(err, apperr.ValidationKind) {
				t.Errorf("expected VALIDATION_ERROR, got %v", err)
			}
		})
	}
}

func TestParseBuildsFilters(t *testing.T) {
	values := url.Values{
		"profile_id":      {"6F1C2B1E-6A3F-4C7B-9E0D-1B2C3D4E5F60"},
		"min_reliability": {"3"},
		"date_to":         {"2024-12-31"},
		"sort":            {"reliability_score"},
		"order":           {"desc"},
		"page":            {"2"},
		"per_page":        {"7"},
	}
	req, err := Parse(values, Sources, DefaultLimits())
	if err != nil {
		t.Fatal(err)
	}
	if len(req.Filters) != 3 {
		t.Fatalf("filters = %+v", req.Filters)
	}
	if req.Filters[0].Value != "6f1c2b1e-6a3f-4c7b-9e0d-1b2c3d4e5f60" {
		t.Errorf("uuid not canonicalised: %v", req.Filters[0].Value)
	}
	if d, ok := req.Filters[2].Value.(time.Time); !ok || d.Year() != 2024 {
		t.Errorf("date filter = %#v", req.Filters[2].Value)
	}
	q := req.Query()
	if q.Offset != 7 || q.Limit != 7 {
		t.Errorf("offset/limit = %d/%d", q.Offset, q.Limit)
	}
	if len(q.Sort) != 2 || !q.Sort[0].Desc || q.Sort[1].Column != "id" {
		t.Errorf("sort = %+v", q.Sort)
	}
}

func TestAllow(t *testing.T) {
	if err := Allow(url.Values{"full": {"true"}}, "full"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := Allow(url.Values{"ful": {"true"}}, "full"); !apperr.Is(err, apperr.ValidationKind) {
		t.Errorf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestPageAgainstStore(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	sc := dbtest.Seed(t, db)
	s := store.New(db, 2*time.Second)

	req, err := Parse(url.Values{"profile_id": {sc.AAPLProfile.ID}, "status": {"active"}}, Commitments, DefaultLimits())
	if err != nil {
		t.Fatal(err)
	}
	rows, pg, err := Page[models.Commitment](ctx, s, req)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || pg.TotalCount != 2 || pg.TotalPages != 1 {
		t.Errorf("rows=%d pagination=%+v", len(rows), pg)
	}

	req, err = Parse(url.Values{"profile_id": {sc.AAPLProfile.ID}, "page": {"9"}, "per_page": {"5"}}, Sources, DefaultLimits())
	if err != nil {
		t.Fatal(err)
	}
	rows2, pg, err := Page[models.DataSource](ctx, s, req)
	if err != nil {
		t.Fatal(err)
	}
	if rows2 == nil || len(rows2) != 0 {
		t.Errorf("expected empty page, got %d rows", len(rows2))
	}
	if pg.TotalCount != 13 || pg.TotalPages != 3 || pg.HasNext || !pg.HasPrev {
		t.Errorf("pagination past the end = %+v", pg)
	}

	req, err = Parse(url.Values{"company_id": {sc.AAPL.ID}}, SupplierDiversity, DefaultLimits())
	if err != nil {
		t.Fatal(err)
	}
	sd, _, err := Page[models.SupplierDiversity](ctx, s, req)
	if err != nil {
		t.Fatal(err)
	}
	if len(sd) != 1 || sd[0].ProfileID != sc.AAPLProfile.ID {
		t.Errorf("supplier diversity = %+v", sd)
	}
}

func TestProfilesLatestDefault(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	sc := dbtest.Seed(t, db)
	s := store.New(db, 2*time.Second)

	req, _ := Parse(url.Values{"company_id": {sc.AAPL.ID}}, Profiles, DefaultLimits())
	rows, _, err := Page[models.Profile](ctx, s, req)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || !rows[0].IsLatest {
		t.Errorf("default listing should only hold the latest profile, got %+v", rows)
	}

	req, _ = Parse(url.Values{"company_id": {sc.AAPL.ID}, "is_latest": {"false"}}, Profiles, DefaultLimits())
	rows, _, err = Page[models.Profile](ctx, s, req)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Errorf("is_latest=false should list every version, got %d", len(rows))
	}
}
