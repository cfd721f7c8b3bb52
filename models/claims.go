package models

import (
	"time"

	"gorm.io/datatypes"
)

// Commitment is a pledge or initiative. PreviousStatus and StatusChangedAt
// record the single most recent status transition.
type Commitment struct {
	ID              string     `json:"id" gorm:"primaryKey"`
	ProfileID       string     `json:"profile_id" gorm:"index"`
	CommitmentName  string     `json:"commitment_name"`
	CommitmentType  string     `json:"commitment_type"`
	CurrentStatus   string     `json:"current_status"`
	PreviousStatus  *string    `json:"previous_status"`
	StatusChangedAt *time.Time `json:"status_changed_at"`
	Evidence

	Company *CompanySummary `json:"company,omitempty" gorm:"-"`
	Sources []SourceRef     `json:"sources" gorm:"-"`
}

func (Commitment) TableName() string { return "commitments" }

const StatusActive = "active"

// Controversy is a lawsuit or incident record.
type Controversy struct {
	ID             string          `json:"id" gorm:"primaryKey"`
	ProfileID      string          `json:"profile_id" gorm:"index"`
	Date           *datatypes.Date `json:"date"`
	Type           string          `json:"type"`
	Status         string          `json:"status"`
	Description    string          `json:"description"`
	CaseName       *string         `json:"case_name"`
	DocketNumber   *string         `json:"docket_number"`
	Court          *string         `json:"court"`
	NLRBCaseID     *string         `json:"nlrb_case_id" gorm:"column:nlrb_case_id"`
	FilingURL      *string         `json:"filing_url" gorm:"column:filing_url"`
	StatusStandard *string         `json:"status_standard"`
	Evidence

	Company *CompanySummary `json:"company,omitempty" gorm:"-"`
	Sources []SourceRef     `json:"sources" gorm:"-"`
}

func (Controversy) TableName() string { return "controversies" }

// Event is a dated timeline entry.
type Event struct {
	ID              string         `json:"id" gorm:"primaryKey"`
	ProfileID       string         `json:"profile_id" gorm:"index"`
	Date            datatypes.Date `json:"date"`
	Headline        *string        `json:"headline"`
	EventType       string         `json:"event_type"`
	Sentiment       *string        `json:"sentiment"`
	Impact          *string        `json:"impact"`
	Summary         *string        `json:"summary"`
	ImpactMagnitude *string        `json:"impact_magnitude"`
	ImpactDirection *string        `json:"impact_direction"`
	EventCategory   *string        `json:"event_category"`
	Evidence

	Company *CompanySummary `json:"company,omitempty" gorm:"-"`
	Sources []SourceRef     `json:"sources" gorm:"-"`
}

func (Event) TableName() string { return "events" }

// Junction rows linking claims to the data sources that support them.

type CommitmentSource struct {
	CommitmentID string `gorm:"primaryKey"`
	DataSourceID string `gorm:"primaryKey"`
}

func (CommitmentSource) TableName() string { return "commitment_sources" }

func (j CommitmentSource) Pair() (owner, source string) { return j.CommitmentID, j.DataSourceID }

type ControversySource struct {
	ControversyID string `gorm:"primaryKey"`
	DataSourceID  string `gorm:"primaryKey"`
}

func (ControversySource) TableName() string { return "controversy_sources" }

func (j ControversySource) Pair() (owner, source string) { return j.ControversyID, j.DataSourceID }

type EventSource struct {
	EventID      string `gorm:"primaryKey"`
	DataSourceID string `gorm:"primaryKey"`
}

func (EventSource) TableName() string { return "event_sources" }

func (j EventSource) Pair() (owner, source string) { return j.EventID, j.DataSourceID }
