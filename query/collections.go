package query

import (
	"dei-tracker/models"
	"dei-tracker/store"
)

// Field constructors.

func Exact(name, column string) Field {
	return Field{Name: name, Kind: String, Build: func(v any) store.Filter { return store.Eq(column, v) }}
}

func ExactID(name, column string) Field {
	return Field{Name: name, Kind: UUID, Build: func(v any) store.Filter { return store.Eq(column, v) }}
}

func Flag(name, column string) Field {
	return Field{Name: name, Kind: Bool, Build: func(v any) store.Filter { return store.Eq(column, v) }}
}

// Search matches the value as a case-insensitive substring of any column.
func Search(name string, columns ...string) Field {
	return Field{Name: name, Kind: String, Build: func(v any) store.Filter { return store.Contains(v.(string), columns...) }}
}

func AtLeast(name, column string, lo, hi int) Field {
	return Field{Name: name, Kind: Int, Min: lo, Max: hi, Ranged: true,
		Build: func(v any) store.Filter { return store.Gte(column, v) }}
}

func AtMost(name, column string, lo, hi int) Field {
	return Field{Name: name, Kind: Int, Min: lo, Max: hi, Ranged: true,
		Build: func(v any) store.Filter { return store.Lte(column, v) }}
}

func DateFrom(name, column string) Field {
	return Field{Name: name, Kind: Date, Build: func(v any) store.Filter { return store.Gte(column, v) }}
}

func DateTo(name, column string) Field {
	return Field{Name: name, Kind: Date, Build: func(v any) store.Filter { return store.Lte(column, v) }}
}

// CompanyScope keeps child rows belonging to any profile of the company.
func CompanyScope(name string) Field {
	return Field{Name: name, Kind: UUID, Build: func(v any) store.Filter { return store.ProfileOfCompany(v.(string)) }}
}

const maxInt = int(^uint(0) >> 1)

var Companies = Collection{
	Name: "companies",
	Fields: []Field{
		Exact("industry", "industry"),
		Exact("country", "hq_country"),
		Exact("state", "hq_state"),
		Search("search", "name", "ticker"),
	},
	SortFields: map[string]string{
		"name": "name", "ticker": "ticker", "industry": "industry", "created_at": "created_at",
	},
	DefaultSort: "name",
}

var Profiles = Collection{
	Name: "profiles",
	Fields: []Field{
		ExactID("company_id", "company_id"),
		{
			Name: "is_latest", Kind: Bool, Default: "true",
			// false lists every version rather than only superseded ones
			Build: func(v any) store.Filter {
				if v.(bool) {
					return store.Eq("is_latest", true)
				}
				return store.Filter{}
			},
		},
		AtLeast("min_sources", "source_count", 0, maxInt),
	},
	SortFields: map[string]string{
		"generated_at": "generated_at", "source_count": "source_count", "created_at": "created_at",
	},
	DefaultSort: "generated_at",
	DefaultDesc: true,
}

var Sources = Collection{
	Name: "sources",
	Fields: []Field{
		ExactID("profile_id", "profile_id"),
		CompanyScope("company_id"),
		Exact("source_type", "source_type"),
		Search("publisher", "publisher"),
		AtLeast("min_reliability", "reliability_score", models.MinReliability, models.MaxReliability),
		AtMost("max_reliability", "reliability_score", models.MinReliability, models.MaxReliability),
		DateFrom("date_from", "date"),
		DateTo("date_to", "date"),
		Search("search", "title", "notes"),
	},
	SortFields: map[string]string{
		"date": "date", "reliability_score": "reliability_score", "publisher": "publisher",
	},
	DefaultSort: "date",
	DefaultDesc: true,
}

var Commitments = Collection{
	Name: "commitments",
	Fields: []Field{
		ExactID("profile_id", "profile_id"),
		CompanyScope("company_id"),
		Exact("commitment_type", "commitment_type"),
		Exact("status", "current_status"),
		Search("search", "commitment_name"),
	},
	SortFields: map[string]string{
		"commitment_name": "commitment_name", "current_status": "current_status", "status_changed_at": "status_changed_at",
	},
	DefaultSort: "commitment_name",
}

var Controversies = Collection{
	Name: "controversies",
	Fields: []Field{
		ExactID("profile_id", "profile_id"),
		CompanyScope("company_id"),
		Exact("type", "type"),
		Exact("status", "status"),
		Search("search", "description", "case_name"),
	},
	SortFields: map[string]string{
		"date": "date", "type": "type", "status": "status",
	},
	DefaultSort: "date",
	DefaultDesc: true,
}

var Events = Collection{
	Name: "events",
	Fields: []Field{
		ExactID("profile_id", "profile_id"),
		CompanyScope("company_id"),
		Exact("event_type", "event_type"),
		Exact("sentiment", "sentiment"),
		Exact("impact", "impact"),
		Exact("impact_magnitude", "impact_magnitude"),
		Exact("impact_direction", "impact_direction"),
		Exact("event_category", "event_category"),
		DateFrom("date_from", "date"),
		DateTo("date_to", "date"),
		Search("search", "headline", "summary"),
	},
	SortFields: map[string]string{
		"date": "date", "event_type": "event_type",
	},
	DefaultSort: "date",
	DefaultDesc: true,
}

var SupplierDiversity = Collection{
	Name: "supplier-diversity",
	Fields: []Field{
		ExactID("profile_id", "profile_id"),
		CompanyScope("company_id"),
		Flag("program_exists", "program_exists"),
		Exact("program_status", "program_status"),
		Flag("spending_disclosed", "spending_disclosed"),
	},
	SortFields: map[string]string{
		"profile_id": "profile_id",
	},
	DefaultSort: "profile_id",
	Key:         "profile_id",
}
