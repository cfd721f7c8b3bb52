package models

import "gorm.io/datatypes"

// One-to-one facets of a profile, keyed by profile_id.

type AIContext struct {
	ProfileID                string  `json:"profile_id" gorm:"primaryKey"`
	ExecutiveSummary         *string `json:"executive_summary"`
	TrendAnalysis            *string `json:"trend_analysis"`
	ComparativeContext       *string `json:"comparative_context"`
	CommitmentStrengthRating *int    `json:"commitment_strength_rating"`
	TransparencyRating       *int    `json:"transparency_rating"`
	Recommendation           *string `json:"recommendation"`

	// AIContext, RiskAssessment and DataQualityFlags store no citations;
	// their supporting_sources is always an empty list.
	SupportingSources []SourceRef `json:"supporting_sources" gorm:"-"`
}

func (AIContext) TableName() string { return "ai_contexts" }

// AIKeyInsight and AIStrategicImplication are ordered by their explicit
// order column, which is positive and unique within a profile.
type AIKeyInsight struct {
	ID           string `json:"id" gorm:"primaryKey"`
	ProfileID    string `json:"profile_id" gorm:"index"`
	InsightText  string `json:"insight_text"`
	InsightOrder int    `json:"insight_order"`
}

func (AIKeyInsight) TableName() string { return "ai_key_insights" }

type AIStrategicImplication struct {
	ID               string `json:"id" gorm:"primaryKey"`
	ProfileID        string `json:"profile_id" gorm:"index"`
	ImplicationText  string `json:"implication_text"`
	ImplicationOrder int    `json:"implication_order"`
}

func (AIStrategicImplication) TableName() string { return "ai_strategic_implications" }

type DEIPosture struct {
	ProfileID        string          `json:"profile_id" gorm:"primaryKey"`
	Status           string          `json:"status"`
	EvidenceSummary  *string         `json:"evidence_summary"`
	LastVerifiedDate *datatypes.Date `json:"last_verified_date"`
	Evidence

	SupportingSources []SourceRef `json:"supporting_sources" gorm:"-"`
}

func (DEIPosture) TableName() string { return "dei_postures" }

type CDORole struct {
	ProfileID       string          `json:"profile_id" gorm:"primaryKey"`
	Exists          bool            `json:"exists" gorm:"column:cdo_exists"`
	Name            *string         `json:"name"`
	Title           *string         `json:"title"`
	ReportsTo       *string         `json:"reports_to"`
	AppointmentDate *datatypes.Date `json:"appointment_date"`
	CSuiteMember    bool            `json:"c_suite_member" gorm:"column:c_suite_member"`
	Evidence

	SupportingSources []SourceRef `json:"supporting_sources" gorm:"-"`
}

func (CDORole) TableName() string { return "cdo_roles" }

type ReportingPractices struct {
	ProfileID           string          `json:"profile_id" gorm:"primaryKey"`
	StandaloneDEIReport bool            `json:"standalone_dei_report" gorm:"column:standalone_dei_report"`
	DEIInESGReport      bool            `json:"dei_in_esg_report" gorm:"column:dei_in_esg_report"`
	DEIInAnnualReport   bool            `json:"dei_in_annual_report" gorm:"column:dei_in_annual_report"`
	ReportingFrequency  *string         `json:"reporting_frequency"`
	LastReportDate      *datatypes.Date `json:"last_report_date"`
	ReportURL           *string         `json:"report_url" gorm:"column:report_url"`
	Evidence

	SupportingSources []SourceRef `json:"supporting_sources" gorm:"-"`
}

func (ReportingPractices) TableName() string { return "reporting_practices" }

type SupplierDiversity struct {
	ProfileID         string  `json:"profile_id" gorm:"primaryKey"`
	ProgramExists     bool    `json:"program_exists"`
	ProgramStatus     *string `json:"program_status"`
	SpendingDisclosed bool    `json:"spending_disclosed"`
	Evidence

	SupportingSources []SourceRef     `json:"supporting_sources" gorm:"-"`
	Company           *CompanySummary `json:"company,omitempty" gorm:"-"`
}

func (SupplierDiversity) TableName() string { return "supplier_diversity" }

type RiskAssessment struct {
	ProfileID        string `json:"profile_id" gorm:"primaryKey"`
	OverallRiskScore *int   `json:"overall_risk_score"`
	RiskLevel        string `json:"risk_level"`
	OngoingLawsuits  int    `json:"ongoing_lawsuits"`
	SettledCases     int    `json:"settled_cases"`
	NegativeEvents   int    `json:"negative_events"`
	HighImpactEvents int    `json:"high_impact_events"`

	SupportingSources []SourceRef `json:"supporting_sources" gorm:"-"`
}

func (RiskAssessment) TableName() string { return "risk_assessments" }

type DataQualityFlags struct {
	ProfileID           string                      `json:"profile_id" gorm:"primaryKey"`
	IncompleteData      bool                        `json:"incomplete_data"`
	ConflictingSources  bool                        `json:"conflicting_sources"`
	OutdatedInformation bool                        `json:"outdated_information"`
	VerificationNeeded  datatypes.JSONSlice[string] `json:"verification_needed"`

	SupportingSources []SourceRef `json:"supporting_sources" gorm:"-"`
}

func (DataQualityFlags) TableName() string { return "data_quality_flags" }
