package models

import "time"

// Profile is one versioned research record for a company. At most one
// profile per company carries IsLatest.
type Profile struct {
	ID                 string     `json:"id" gorm:"primaryKey"`
	CompanyID          string     `json:"company_id" gorm:"index"`
	SchemaVersion      string     `json:"schema_version"`
	ProfileType        string     `json:"profile_type"`
	GeneratedAt        time.Time  `json:"generated_at"`
	ResearchCapturedAt *time.Time `json:"research_captured_at"`
	ResearchNotes      *string    `json:"research_notes"`
	SourceCount        int        `json:"source_count"`
	CommitmentCount    int        `json:"commitment_count"`
	IsLatest           bool       `json:"is_latest"`
	CreatedAt          time.Time  `json:"created_at"`

	Company *CompanySummary `json:"company,omitempty" gorm:"-"`
}

func (Profile) TableName() string { return "profiles" }

// ProfileWithCompany is the lightweight profile view: the profile row and
// its company, nothing from the child collections.
type ProfileWithCompany struct {
	Profile
	Company *Company `json:"company"`
}

// FullProfile is the composite assembled by the resolver. Absent satellite
// records stay nil and render as null.
type FullProfile struct {
	Profile
	Company *Company `json:"company"`

	AIContext             *AIContext               `json:"ai_context"`
	KeyInsights           []AIKeyInsight           `json:"key_insights"`
	StrategicImplications []AIStrategicImplication `json:"strategic_implications"`

	DEIPosture         *DEIPosture         `json:"dei_posture"`
	CDORole            *CDORole            `json:"cdo_role"`
	ReportingPractices *ReportingPractices `json:"reporting_practices"`
	SupplierDiversity  *SupplierDiversity  `json:"supplier_diversity"`
	RiskAssessment     *RiskAssessment     `json:"risk_assessment"`
	DataQualityFlags   *DataQualityFlags   `json:"data_quality_flags"`

	Commitments   []Commitment  `json:"commitments"`
	Controversies []Controversy `json:"controversies"`
	Events        []Event       `json:"events"`
	Sources       []DataSource  `json:"sources"`

	ControversyCount int `json:"controversy_count"`
	EventCount       int `json:"event_count"`
}
