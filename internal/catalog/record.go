package catalog

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Record is one scraped product listing, already extracted from the
// source by the scraping layer. Consumed once per run.
type Record struct {
	Name         string   `json:"name"`
	Brand        *string  `json:"brand,omitempty"`
	Category     *string  `json:"category,omitempty"`
	THC          *float64 `json:"thc,omitempty"`
	CBD          *float64 `json:"cbd,omitempty"`
	Price        *float64 `json:"price,omitempty"`
	WeightText   *string  `json:"weight_text,omitempty"`
	InStock      bool     `json:"in_stock"`
	SourceURL    *string  `json:"source_url,omitempty"`
	DispensaryID string   `json:"dispensary_id"`
}

// Validate rejects records the engine cannot process at all.
func (r Record) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: name is empty", ErrInput)
	}
	if strings.TrimSpace(r.DispensaryID) == "" {
		return fmt.Errorf("%w: dispensary_id is empty", ErrInput)
	}
	return nil
}

// BrandValue returns the trimmed brand or "".
func (r Record) BrandValue() string {
	if r.Brand == nil {
		return ""
	}
	return strings.TrimSpace(*r.Brand)
}

// Snapshot serializes the original scraped fields for storage on a
// review flag.
func (r Record) Snapshot() (json.RawMessage, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal record snapshot: %w", err)
	}
	return raw, nil
}

// RecordFromSnapshot restores the scraped record stored on a flag.
func RecordFromSnapshot(raw json.RawMessage) (Record, error) {
	var record Record
	if len(raw) == 0 {
		return record, fmt.Errorf("%w: flag has no snapshot", ErrInput)
	}
	if err := json.Unmarshal(raw, &record); err != nil {
		return record, fmt.Errorf("%w: decode flag snapshot: %v", ErrInput, err)
	}
	return record, nil
}
