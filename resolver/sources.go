package resolver

import (
	"context"
	"sort"

	"dei-tracker/models"
	"dei-tracker/store"

	"golang.org/x/sync/errgroup"
)

// sourceIndex resolves data source references. Claims link sources by row
// id through junction tables; satellite evidence cites them by source_id.
type sourceIndex struct {
	pos        map[string]int
	bySourceID map[string]int
	refsByPos  []models.SourceRef
}

func newSourceIndex(sources []models.DataSource) *sourceIndex {
	idx := &sourceIndex{
		pos:        make(map[string]int, len(sources)),
		bySourceID: make(map[string]int, len(sources)),
	}
	idx.add(sources)
	return idx
}

func (idx *sourceIndex) add(sources []models.DataSource) {
	for _, s := range sources {
		if _, ok := idx.pos[s.ID]; ok {
			continue
		}
		idx.pos[s.ID] = len(idx.refsByPos)
		if _, ok := idx.bySourceID[s.SourceID]; !ok {
			idx.bySourceID[s.SourceID] = len(idx.refsByPos)
		}
		idx.refsByPos = append(idx.refsByPos, s.Ref())
	}
}

// ensure loads the sources among ids the index does not hold yet.
func (idx *sourceIndex) ensure(ctx context.Context, s *store.Store, ids []string) error {
	var missing []string
	for _, id := range ids {
		if _, ok := idx.pos[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	rows, err := store.List[models.DataSource](ctx, s, store.Query{
		Filters: []store.Filter{store.In("id", missing)},
		Sort:    []store.Sort{{Column: "date", Desc: true}, {Column: "id"}},
	})
	if err != nil {
		return err
	}
	idx.add(rows)
	return nil
}

// refs returns the references for row ids in index order. Unknown ids are
// skipped. The result is never nil.
func (idx *sourceIndex) refs(ids []string) []models.SourceRef {
	positions := make([]int, 0, len(ids))
	for _, id := range ids {
		if p, ok := idx.pos[id]; ok {
			positions = append(positions, p)
		}
	}
	sort.Ints(positions)
	out := make([]models.SourceRef, 0, len(positions))
	for _, p := range positions {
		out = append(out, idx.refsByPos[p])
	}
	return out
}

// cited returns the sources an evidence block points at by source_id, in
// citation order. Citations of sources the profile does not carry are
// dropped.
func (idx *sourceIndex) cited(ev models.Evidence) []models.SourceRef {
	out := make([]models.SourceRef, 0)
	for _, sid := range ev.References() {
		if p, ok := idx.bySourceID[sid]; ok {
			out = append(out, idx.refsByPos[p])
		}
	}
	return out
}

type link interface {
	Pair() (owner, source string)
}

// loadLinks reads a junction table for the given owners and returns the
// linked data source ids per owner.
func loadLinks[J link](ctx context.Context, s *store.Store, column string, owners []string) (map[string][]string, error) {
	out := make(map[string][]string, len(owners))
	if len(owners) == 0 {
		return out, nil
	}
	rows, err := store.List[J](ctx, s, store.Query{
		Filters: []store.Filter{store.In(column, owners)},
		Sort:    []store.Sort{{Column: column}, {Column: "data_source_id"}},
	})
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		owner, src := row.Pair()
		out[owner] = append(out[owner], src)
	}
	return out, nil
}

type claimLinks struct {
	commitments   map[string][]string
	controversies map[string][]string
	events        map[string][]string
}

func (l claimLinks) sourceIDs() []string {
	var ids []string
	for _, m := range []map[string][]string{l.commitments, l.controversies, l.events} {
		for _, srcs := range m {
			ids = append(ids, srcs...)
		}
	}
	return ids
}

// claimLinks batch-loads the junction rows of every claim in fp, one query
// per junction table.
func (r *Resolver) claimLinks(ctx context.Context, fp *models.FullProfile) (claimLinks, error) {
	var l claimLinks
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		l.commitments, err = loadLinks[models.CommitmentSource](gctx, r.store, "commitment_id", ids(fp.Commitments, func(c models.Commitment) string { return c.ID }))
		return err
	})
	g.Go(func() (err error) {
		l.controversies, err = loadLinks[models.ControversySource](gctx, r.store, "controversy_id", ids(fp.Controversies, func(c models.Controversy) string { return c.ID }))
		return err
	})
	g.Go(func() (err error) {
		l.events, err = loadLinks[models.EventSource](gctx, r.store, "event_id", ids(fp.Events, func(e models.Event) string { return e.ID }))
		return err
	})
	return l, g.Wait()
}

// linked resolves the sources attached to a single claim.
func linked[J link](ctx context.Context, s *store.Store, column, owner string) ([]models.SourceRef, error) {
	links, err := loadLinks[J](ctx, s, column, []string{owner})
	if err != nil {
		return nil, err
	}
	idx := newSourceIndex(nil)
	if err := idx.ensure(ctx, s, links[owner]); err != nil {
		return nil, err
	}
	return idx.refs(links[owner]), nil
}

func ids[T any](rows []T, id func(T) string) []string {
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, id(row))
	}
	return out
}
