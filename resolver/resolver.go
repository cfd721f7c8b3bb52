// Package resolver assembles composite views over the relational model: the
// full profile with its satellites and child collections, the lightweight
// profile, the latest profile of a company and child records annotated with
// their owning company and supporting sources.
package resolver

import (
	"context"
	"log/slog"

	"dei-tracker/apperr"
	"dei-tracker/cache"
	"dei-tracker/logging"
	"dei-tracker/models"
	"dei-tracker/store"

	"golang.org/x/sync/errgroup"
)

type Resolver struct {
	store *store.Store
	cache *cache.Cache
	log   *slog.Logger
}

func New(s *store.Store, c *cache.Cache, log *slog.Logger) *Resolver {
	if log == nil {
		log = logging.Discard()
	}
	return &Resolver{store: s, cache: c, log: log}
}

// Summary returns the profile row and its company. It reads the
// denormalized counts and never touches the child tables.
func (r *Resolver) Summary(ctx context.Context, id string) (*models.ProfileWithCompany, error) {
	p, err := store.Get[models.Profile](ctx, r.store, id)
	if err != nil {
		return nil, err
	}
	company, err := r.owner(ctx, p)
	if err != nil {
		return nil, err
	}
	return &models.ProfileWithCompany{Profile: *p, Company: company}, nil
}

// Full returns the complete profile, served from cache for up to
// cache.ProfileTTL. The bool reports a cache hit.
func (r *Resolver) Full(ctx context.Context, id string) (*models.FullProfile, bool, error) {
	return cache.Fetch(ctx, r.cache, cache.ProfileKey(id), cache.ProfileTTL, func(ctx context.Context) (*models.FullProfile, error) {
		return r.assemble(ctx, id)
	})
}

// LatestID resolves the single profile flagged latest for a company. Zero
// or several flagged rows mean the stored data is broken and are reported
// as DataIntegrity rather than resolved.
func (r *Resolver) LatestID(ctx context.Context, companyID string) (string, error) {
	if _, err := store.Get[models.Company](ctx, r.store, companyID); err != nil {
		return "", err
	}
	rows, err := store.List[models.Profile](ctx, r.store, store.Query{
		Filters: []store.Filter{store.Eq("company_id", companyID), store.Eq("is_latest", true)},
		Sort:    []store.Sort{{Column: "id"}},
		Limit:   2,
	})
	if err != nil {
		return "", err
	}
	switch len(rows) {
	case 0:
		return "", apperr.DataIntegrity("company %s has no profile flagged latest", companyID)
	case 1:
		return rows[0].ID, nil
	default:
		n, err := store.Count[models.Profile](ctx, r.store, store.Eq("company_id", companyID), store.Eq("is_latest", true))
		if err != nil {
			return "", err
		}
		r.log.Error("multiple latest profiles", "company_id", companyID, "count", n)
		return "", apperr.DataIntegrity("company %s has %d profiles flagged latest", companyID, n)
	}
}

// owner loads the company of a profile. A profile pointing at a missing
// company is an orphan.
func (r *Resolver) owner(ctx context.Context, p *models.Profile) (*models.Company, error) {
	c, err := store.Get[models.Company](ctx, r.store, p.CompanyID)
	if apperr.Is(err, apperr.NotFoundKind) {
		return nil, apperr.DataIntegrity("profile %s references missing company %s", p.ID, p.CompanyID)
	}
	return c, err
}

func (r *Resolver) assemble(ctx context.Context, id string) (*models.FullProfile, error) {
	p, err := store.Get[models.Profile](ctx, r.store, id)
	if err != nil {
		return nil, err
	}
	company, err := r.owner(ctx, p)
	if err != nil {
		return nil, err
	}
	fp := &models.FullProfile{Profile: *p, Company: company}

	own := []store.Filter{store.Eq("profile_id", id)}
	g, gctx := errgroup.WithContext(ctx)
	optional(g, gctx, r.store, &fp.AIContext, own...)
	optional(g, gctx, r.store, &fp.DEIPosture, own...)
	optional(g, gctx, r.store, &fp.CDORole, own...)
	optional(g, gctx, r.store, &fp.ReportingPractices, own...)
	optional(g, gctx, r.store, &fp.SupplierDiversity, own...)
	optional(g, gctx, r.store, &fp.RiskAssessment, own...)
	optional(g, gctx, r.store, &fp.DataQualityFlags, own...)
	list(g, gctx, r.store, &fp.KeyInsights, store.Query{Filters: own, Sort: []store.Sort{{Column: "insight_order"}, {Column: "id"}}})
	list(g, gctx, r.store, &fp.StrategicImplications, store.Query{Filters: own, Sort: []store.Sort{{Column: "implication_order"}, {Column: "id"}}})
	list(g, gctx, r.store, &fp.Commitments, store.Query{Filters: own, Sort: []store.Sort{{Column: "commitment_name"}, {Column: "id"}}})
	list(g, gctx, r.store, &fp.Controversies, store.Query{Filters: own, Sort: []store.Sort{{Column: "date", Desc: true}, {Column: "id"}}})
	list(g, gctx, r.store, &fp.Events, store.Query{Filters: own, Sort: []store.Sort{{Column: "date", Desc: true}, {Column: "id"}}})
	list(g, gctx, r.store, &fp.Sources, store.Query{Filters: own, Sort: []store.Sort{{Column: "date", Desc: true}, {Column: "id"}}})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := checkOrder("key insight", id, fp.KeyInsights, func(i models.AIKeyInsight) int { return i.InsightOrder }); err != nil {
		return nil, err
	}
	if err := checkOrder("strategic implication", id, fp.StrategicImplications, func(i models.AIStrategicImplication) int { return i.ImplicationOrder }); err != nil {
		return nil, err
	}

	for i := range fp.Sources {
		fp.Sources[i].FlagReliability()
	}
	idx := newSourceIndex(fp.Sources)

	links, err := r.claimLinks(ctx, fp)
	if err != nil {
		return nil, err
	}
	if err := idx.ensure(ctx, r.store, links.sourceIDs()); err != nil {
		return nil, err
	}
	for i := range fp.Commitments {
		fp.Commitments[i].Sources = idx.refs(links.commitments[fp.Commitments[i].ID])
	}
	for i := range fp.Controversies {
		fp.Controversies[i].Sources = idx.refs(links.controversies[fp.Controversies[i].ID])
	}
	for i := range fp.Events {
		fp.Events[i].Sources = idx.refs(links.events[fp.Events[i].ID])
	}

	if fp.DEIPosture != nil {
		fp.DEIPosture.SupportingSources = idx.cited(fp.DEIPosture.Evidence)
	}
	if fp.CDORole != nil {
		fp.CDORole.SupportingSources = idx.cited(fp.CDORole.Evidence)
	}
	if fp.ReportingPractices != nil {
		fp.ReportingPractices.SupportingSources = idx.cited(fp.ReportingPractices.Evidence)
	}
	if fp.SupplierDiversity != nil {
		fp.SupplierDiversity.SupportingSources = idx.cited(fp.SupplierDiversity.Evidence)
	}
	if fp.AIContext != nil {
		fp.AIContext.SupportingSources = []models.SourceRef{}
	}
	if fp.RiskAssessment != nil {
		fp.RiskAssessment.SupportingSources = []models.SourceRef{}
	}
	if fp.DataQualityFlags != nil {
		fp.DataQualityFlags.SupportingSources = []models.SourceRef{}
	}

	fp.CommitmentCount = len(fp.Commitments)
	fp.ControversyCount = len(fp.Controversies)
	fp.EventCount = len(fp.Events)
	return fp, nil
}

func optional[T any](g *errgroup.Group, ctx context.Context, s *store.Store, dst **T, filters ...store.Filter) {
	g.Go(func() error {
		v, err := store.Optional[T](ctx, s, filters...)
		*dst = v
		return err
	})
}

func list[T any](g *errgroup.Group, ctx context.Context, s *store.Store, dst *[]T, q store.Query) {
	g.Go(func() error {
		v, err := store.List[T](ctx, s, q)
		*dst = v
		return err
	})
}

// checkOrder verifies rows sorted by their order column carry positive,
// unique positions.
func checkOrder[T any](what, profileID string, rows []T, order func(T) int) error {
	prev := 0
	for _, row := range rows {
		n := order(row)
		if n <= 0 {
			return apperr.DataIntegrity("%s of profile %s has non-positive order %d", what, profileID, n)
		}
		if n == prev {
			return apperr.DataIntegrity("%s of profile %s repeats order %d", what, profileID, n)
		}
		prev = n
	}
	return nil
}
