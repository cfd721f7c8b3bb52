package resolver

import (
	"context"

	"dei-tracker/apperr"
	"dei-tracker/models"
	"dei-tracker/query"
	"dei-tracker/store"
)

// Profiles lists a page of profiles with their company summary.
func (r *Resolver) Profiles(ctx context.Context, req query.Request) ([]models.Profile, query.Pagination, error) {
	rows, page, err := query.Page[models.Profile](ctx, r.store, req)
	if err != nil {
		return nil, page, err
	}
	companies, err := r.companies(ctx, ids(rows, func(p models.Profile) string { return p.CompanyID }))
	if err != nil {
		return nil, page, err
	}
	for i := range rows {
		c, ok := companies[rows[i].CompanyID]
		if !ok {
			return nil, page, apperr.DataIntegrity("profile %s references missing company %s", rows[i].ID, rows[i].CompanyID)
		}
		rows[i].Company = c
	}
	return rows, page, nil
}

func (r *Resolver) Sources(ctx context.Context, req query.Request) ([]models.DataSource, query.Pagination, error) {
	rows, page, err := query.Page[models.DataSource](ctx, r.store, req)
	if err != nil {
		return nil, page, err
	}
	for i := range rows {
		rows[i].FlagReliability()
	}
	err = attachOwners(ctx, r, "data source", rows,
		func(s *models.DataSource) (string, string) { return s.ID, s.ProfileID },
		func(s *models.DataSource, c *models.CompanySummary) { s.Company = c })
	return rows, page, err
}

func (r *Resolver) Commitments(ctx context.Context, req query.Request) ([]models.Commitment, query.Pagination, error) {
	rows, page, err := query.Page[models.Commitment](ctx, r.store, req)
	if err != nil {
		return nil, page, err
	}
	for i := range rows {
		rows[i].Sources = []models.SourceRef{}
	}
	err = attachOwners(ctx, r, "commitment", rows,
		func(c *models.Commitment) (string, string) { return c.ID, c.ProfileID },
		func(c *models.Commitment, s *models.CompanySummary) { c.Company = s })
	return rows, page, err
}

func (r *Resolver) Controversies(ctx context.Context, req query.Request) ([]models.Controversy, query.Pagination, error) {
	rows, page, err := query.Page[models.Controversy](ctx, r.store, req)
	if err != nil {
		return nil, page, err
	}
	for i := range rows {
		rows[i].Sources = []models.SourceRef{}
	}
	err = attachOwners(ctx, r, "controversy", rows,
		func(c *models.Controversy) (string, string) { return c.ID, c.ProfileID },
		func(c *models.Controversy, s *models.CompanySummary) { c.Company = s })
	return rows, page, err
}

func (r *Resolver) Events(ctx context.Context, req query.Request) ([]models.Event, query.Pagination, error) {
	rows, page, err := query.Page[models.Event](ctx, r.store, req)
	if err != nil {
		return nil, page, err
	}
	for i := range rows {
		rows[i].Sources = []models.SourceRef{}
	}
	err = attachOwners(ctx, r, "event", rows,
		func(e *models.Event) (string, string) { return e.ID, e.ProfileID },
		func(e *models.Event, s *models.CompanySummary) { e.Company = s })
	return rows, page, err
}

func (r *Resolver) SupplierPrograms(ctx context.Context, req query.Request) ([]models.SupplierDiversity, query.Pagination, error) {
	rows, page, err := query.Page[models.SupplierDiversity](ctx, r.store, req)
	if err != nil {
		return nil, page, err
	}
	for i := range rows {
		rows[i].SupportingSources = []models.SourceRef{}
	}
	err = attachOwners(ctx, r, "supplier diversity record", rows,
		func(s *models.SupplierDiversity) (string, string) { return s.ProfileID, s.ProfileID },
		func(s *models.SupplierDiversity, c *models.CompanySummary) { s.Company = c })
	return rows, page, err
}

// Source returns one data source with its company and reliability flag.
func (r *Resolver) Source(ctx context.Context, id string) (*models.DataSource, error) {
	s, err := store.Get[models.DataSource](ctx, r.store, id)
	if err != nil {
		return nil, err
	}
	s.FlagReliability()
	if s.Company, err = r.ownerOf(ctx, "data source", s.ID, s.ProfileID); err != nil {
		return nil, err
	}
	return s, nil
}

// Commitment returns one commitment with its company and linked sources.
func (r *Resolver) Commitment(ctx context.Context, id string) (*models.Commitment, error) {
	c, err := store.Get[models.Commitment](ctx, r.store, id)
	if err != nil {
		return nil, err
	}
	if c.Company, err = r.ownerOf(ctx, "commitment", c.ID, c.ProfileID); err != nil {
		return nil, err
	}
	if c.Sources, err = linked[models.CommitmentSource](ctx, r.store, "commitment_id", c.ID); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *Resolver) Controversy(ctx context.Context, id string) (*models.Controversy, error) {
	c, err := store.Get[models.Controversy](ctx, r.store, id)
	if err != nil {
		return nil, err
	}
	if c.Company, err = r.ownerOf(ctx, "controversy", c.ID, c.ProfileID); err != nil {
		return nil, err
	}
	if c.Sources, err = linked[models.ControversySource](ctx, r.store, "controversy_id", c.ID); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *Resolver) Event(ctx context.Context, id string) (*models.Event, error) {
	e, err := store.Get[models.Event](ctx, r.store, id)
	if err != nil {
		return nil, err
	}
	if e.Company, err = r.ownerOf(ctx, "event", e.ID, e.ProfileID); err != nil {
		return nil, err
	}
	if e.Sources, err = linked[models.EventSource](ctx, r.store, "event_id", e.ID); err != nil {
		return nil, err
	}
	return e, nil
}

// SupplierProgram returns the supplier diversity record of a profile with
// the profile sources its evidence cites.
func (r *Resolver) SupplierProgram(ctx context.Context, profileID string) (*models.SupplierDiversity, error) {
	sd, err := store.First[models.SupplierDiversity](ctx, r.store, store.Eq("profile_id", profileID))
	if err != nil {
		return nil, err
	}
	if sd.Company, err = r.ownerOf(ctx, "supplier diversity record", profileID, profileID); err != nil {
		return nil, err
	}
	sources, err := store.List[models.DataSource](ctx, r.store, store.Query{
		Filters: []store.Filter{store.Eq("profile_id", profileID)},
		Sort:    []store.Sort{{Column: "date", Desc: true}, {Column: "id"}},
	})
	if err != nil {
		return nil, err
	}
	sd.SupportingSources = newSourceIndex(sources).cited(sd.Evidence)
	return sd, nil
}

// attachOwners sets the company summary of every row. A row whose profile
// or company is missing is an orphan and fails the whole listing.
func attachOwners[T any](ctx context.Context, r *Resolver, what string, rows []T, keys func(*T) (id, profileID string), set func(*T, *models.CompanySummary)) error {
	profileIDs := make([]string, 0, len(rows))
	for i := range rows {
		_, pid := keys(&rows[i])
		profileIDs = append(profileIDs, pid)
	}
	owners, err := r.owners(ctx, profileIDs)
	if err != nil {
		return err
	}
	for i := range rows {
		id, pid := keys(&rows[i])
		c, ok := owners[pid]
		if !ok {
			return apperr.DataIntegrity("%s %s references missing profile %s", what, id, pid)
		}
		set(&rows[i], c)
	}
	return nil
}

func (r *Resolver) ownerOf(ctx context.Context, what, id, profileID string) (*models.CompanySummary, error) {
	owners, err := r.owners(ctx, []string{profileID})
	if err != nil {
		return nil, err
	}
	c, ok := owners[profileID]
	if !ok {
		return nil, apperr.DataIntegrity("%s %s references missing profile %s", what, id, profileID)
	}
	return c, nil
}

// owners maps profile ids to the summary of their company. Profiles that
// do not exist, or whose company does not, are absent from the result.
func (r *Resolver) owners(ctx context.Context, profileIDs []string) (map[string]*models.CompanySummary, error) {
	out := make(map[string]*models.CompanySummary, len(profileIDs))
	profileIDs = unique(profileIDs)
	if len(profileIDs) == 0 {
		return out, nil
	}
	profiles, err := store.List[models.Profile](ctx, r.store, store.Query{Filters: []store.Filter{store.In("id", profileIDs)}})
	if err != nil {
		return nil, err
	}
	companies, err := r.companies(ctx, ids(profiles, func(p models.Profile) string { return p.CompanyID }))
	if err != nil {
		return nil, err
	}
	for _, p := range profiles {
		if c, ok := companies[p.CompanyID]; ok {
			out[p.ID] = c
		}
	}
	return out, nil
}

func (r *Resolver) companies(ctx context.Context, companyIDs []string) (map[string]*models.CompanySummary, error) {
	out := make(map[string]*models.CompanySummary, len(companyIDs))
	companyIDs = unique(companyIDs)
	if len(companyIDs) == 0 {
		return out, nil
	}
	rows, err := store.List[models.Company](ctx, r.store, store.Query{Filters: []store.Filter{store.In("id", companyIDs)}})
	if err != nil {
		return nil, err
	}
	for _, c := range rows {
		out[c.ID] = c.Summary()
	}
	return out, nil
}

func unique(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
