package models

import "gorm.io/datatypes"

const (
	MinReliability = 1
	MaxReliability = 5

	// ReliabilityOutOfRange marks a stored score outside [1,5]. The score is
	// returned untouched so the bad value stays visible.
	ReliabilityOutOfRange = "out_of_range"
)

// DataSource is a cited piece of evidence owned by one profile.
type DataSource struct {
	ID               string          `json:"id" gorm:"primaryKey"`
	ProfileID        string          `json:"profile_id" gorm:"index"`
	SourceID         string          `json:"source_id"`
	SourceType       string          `json:"source_type"`
	Publisher        *string         `json:"publisher"`
	Author           *string         `json:"author"`
	URL              *string         `json:"url" gorm:"column:url"`
	Date             *datatypes.Date `json:"date"`
	Title            *string         `json:"title"`
	ReliabilityScore *int            `json:"reliability_score"`
	DocType          *string         `json:"doc_type"`
	Notes            *string         `json:"notes"`

	ReliabilityFlag string          `json:"reliability_flag,omitempty" gorm:"-"`
	Company         *CompanySummary `json:"company,omitempty" gorm:"-"`
}

func (DataSource) TableName() string { return "data_sources" }

// ValidReliability reports whether score lies in [1,5].
func ValidReliability(score int) bool {
	return score >= MinReliability && score <= MaxReliability
}

// FlagReliability sets ReliabilityFlag when the stored score is out of range.
func (s *DataSource) FlagReliability() {
	if s.ReliabilityScore != nil && !ValidReliability(*s.ReliabilityScore) {
		s.ReliabilityFlag = ReliabilityOutOfRange
	} else {
		s.ReliabilityFlag = ""
	}
}

// SourceRef is the compact source shape nested under claims.
type SourceRef struct {
	ID               string          `json:"id"`
	SourceID         string          `json:"source_id"`
	SourceType       string          `json:"source_type"`
	Title            *string         `json:"title"`
	URL              *string         `json:"url"`
	Date             *datatypes.Date `json:"date"`
	ReliabilityScore *int            `json:"reliability_score"`
	ReliabilityFlag  string          `json:"reliability_flag,omitempty"`
}

func (s DataSource) Ref() SourceRef {
	s.FlagReliability()
	return SourceRef{
		ID:               s.ID,
		SourceID:         s.SourceID,
		SourceType:       s.SourceType,
		Title:            s.Title,
		URL:              s.URL,
		Date:             s.Date,
		ReliabilityScore: s.ReliabilityScore,
		ReliabilityFlag:  s.ReliabilityFlag,
	}
}
