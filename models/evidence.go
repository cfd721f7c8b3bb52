package models

import (
	"bytes"
	"encoding/json"
	"strings"

	"dei-tracker/apperr"

	"gorm.io/datatypes"
)

// Quote is a verbatim excerpt backing a claim. Older rows store quotes as
// bare strings, newer ones as objects; both decode into this shape.
type Quote struct {
	Text            string `json:"quote_text"`
	SourceReference string `json:"source_reference,omitempty"`
}

func (q *Quote) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*q = Quote{Text: s}
		return nil
	case len(data) > 0 && data[0] == '{':
		var raw struct {
			Text            string `json:"quote_text"`
			Quote           string `json:"quote"`
			SourceReference string `json:"source_reference"`
			SourceID        string `json:"source_id"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		q.Text = raw.Text
		if q.Text == "" {
			q.Text = raw.Quote
		}
		q.SourceReference = raw.SourceReference
		if q.SourceReference == "" {
			q.SourceReference = raw.SourceID
		}
		if strings.TrimSpace(q.Text) == "" {
			return apperr.DataIntegrity("quote object without text")
		}
		return nil
	default:
		return apperr.DataIntegrity("quote must be a string or an object, got %s", truncate(data, 32))
	}
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}

// Evidence is the quote and provenance pair carried by commitments,
// controversies, events and most satellite records.
type Evidence struct {
	Quotes        datatypes.JSONSlice[Quote]  `json:"quotes" gorm:"column:quotes"`
	ProvenanceIDs datatypes.JSONSlice[string] `json:"provenance_ids" gorm:"column:provenance_ids"`
}

// References returns every source_id this evidence points at, provenance
// ids first, without duplicates.
func (e Evidence) References() []string {
	seen := make(map[string]struct{}, len(e.ProvenanceIDs)+len(e.Quotes))
	var out []string
	add := func(id string) {
		id = strings.TrimSpace(id)
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, id := range e.ProvenanceIDs {
		add(id)
	}
	for _, q := range e.Quotes {
		add(q.SourceReference)
	}
	return out
}
