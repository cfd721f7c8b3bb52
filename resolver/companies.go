package resolver

import (
	"context"

	"dei-tracker/apperr"
	"dei-tracker/models"
	"dei-tracker/query"
	"dei-tracker/store"
)

func (r *Resolver) Companies(ctx context.Context, req query.Request) ([]models.Company, query.Pagination, error) {
	return query.Page[models.Company](ctx, r.store, req)
}

func (r *Resolver) Company(ctx context.Context, id string) (*models.Company, error) {
	return store.Get[models.Company](ctx, r.store, id)
}

// CompanyByTicker looks a company up by its normalized ticker.
func (r *Resolver) CompanyByTicker(ctx context.Context, ticker string) (*models.Company, error) {
	t := models.NormalizeTicker(ticker)
	c, err := store.First[models.Company](ctx, r.store, store.Eq("ticker", t))
	if apperr.Is(err, apperr.NotFoundKind) {
		return nil, apperr.NotFound("company with ticker %q not found", t)
	}
	return c, err
}

// Autocomplete matches q against company names and tickers.
func (r *Resolver) Autocomplete(ctx context.Context, q string, limit int) ([]models.CompanySummary, error) {
	rows, err := store.List[models.Company](ctx, r.store, store.Query{
		Filters: []store.Filter{store.Contains(q, "name", "ticker")},
		Sort:    []store.Sort{{Column: "name"}, {Column: "id"}},
		Limit:   limit,
	})
	if err != nil {
		return nil, err
	}
	out := make([]models.CompanySummary, 0, len(rows))
	for _, c := range rows {
		out = append(out, *c.Summary())
	}
	return out, nil
}

// FilterOptions are the distinct values accepted by the company filters.
type FilterOptions struct {
	Industries []string `json:"industries"`
	Countries  []string `json:"countries"`
	States     []string `json:"states"`
}

func (r *Resolver) FilterOptions(ctx context.Context) (FilterOptions, error) {
	var (
		opts FilterOptions
		err  error
	)
	if opts.Industries, err = store.Distinct[models.Company](ctx, r.store, "industry"); err != nil {
		return opts, err
	}
	if opts.Countries, err = store.Distinct[models.Company](ctx, r.store, "hq_country"); err != nil {
		return opts, err
	}
	if opts.States, err = store.Distinct[models.Company](ctx, r.store, "hq_state"); err != nil {
		return opts, err
	}
	return opts, nil
}
