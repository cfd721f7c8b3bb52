package models

import (
	"strings"
	"time"
)

type Company struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	Ticker    string    `json:"ticker" gorm:"uniqueIndex"`
	Name      string    `json:"name"`
	CIK       *string   `json:"cik" gorm:"column:cik"`
	Industry  *string   `json:"industry"`
	HQCity    *string   `json:"hq_city" gorm:"column:hq_city"`
	HQState   *string   `json:"hq_state" gorm:"column:hq_state"`
	HQCountry *string   `json:"hq_country" gorm:"column:hq_country"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Company) TableName() string { return "companies" }

// CompanySummary is the minimal company shape attached to child records.
type CompanySummary struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Ticker   string  `json:"ticker"`
	Industry *string `json:"industry"`
}

func (c Company) Summary() *CompanySummary {
	return &CompanySummary{ID: c.ID, Name: c.Name, Ticker: c.Ticker, Industry: c.Industry}
}

// NormalizeTicker trims and uppercases a ticker symbol.
func NormalizeTicker(t string) string {
	return strings.ToUpper(strings.TrimSpace(t))
}
