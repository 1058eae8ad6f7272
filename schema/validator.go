package payloadschema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed scraped_listing.schema.json
var scrapedListingSchemaJSON string

// ScrapedListing is the canonical v1 payload emitted by the scraping
// layer for a single dispensary product listing.
type ScrapedListing struct {
	PayloadVersion string   `json:"payload_version"`
	DispensaryID   string   `json:"dispensary_id"`
	Name           string   `json:"name"`
	Brand          *string  `json:"brand,omitempty"`
	Category       *string  `json:"category,omitempty"`
	THC            *float64 `json:"thc,omitempty"`
	CBD            *float64 `json:"cbd,omitempty"`
	Price          *float64 `json:"price,omitempty"`
	WeightText     *string  `json:"weight_text,omitempty"`
	InStock        bool     `json:"in_stock"`
	SourceURL      *string  `json:"source_url,omitempty"`
	ScrapedAt      *string  `json:"scraped_at,omitempty"`
}

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

func ValidateScrapedListingPayload(payload json.RawMessage) (*ScrapedListing, error) {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("decode payload JSON: %w", err)
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize payload JSON: %w", err)
	}

	var listing ScrapedListing
	if err := json.Unmarshal(normalized, &listing); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}

	if err := validateSemantics(&listing); err != nil {
		return nil, err
	}

	return &listing, nil
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true

		if err := compiler.AddResource("scraped_listing.schema.json", strings.NewReader(scrapedListingSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile("scraped_listing.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}

		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}

	return value, nil
}

func validateSemantics(listing *ScrapedListing) error {
	if listing == nil {
		return fmt.Errorf("payload is nil")
	}

	if strings.TrimSpace(listing.PayloadVersion) != "v1" {
		return fmt.Errorf("payload_version must be v1")
	}
	if strings.TrimSpace(listing.DispensaryID) == "" {
		return fmt.Errorf("dispensary_id must not be empty")
	}

	if listing.SourceURL != nil {
		trimmed := strings.TrimSpace(*listing.SourceURL)
		if trimmed == "" {
			return fmt.Errorf("source_url must not be empty")
		}
		if _, err := url.ParseRequestURI(trimmed); err != nil {
			return fmt.Errorf("source_url is not a valid URI: %w", err)
		}
	}
	if listing.ScrapedAt != nil {
		if _, err := time.Parse(time.RFC3339, strings.TrimSpace(*listing.ScrapedAt)); err != nil {
			return fmt.Errorf("scraped_at must be RFC3339: %w", err)
		}
	}
	if listing.THC != nil && *listing.THC < 0 {
		return fmt.Errorf("thc must not be negative")
	}
	if listing.CBD != nil && *listing.CBD < 0 {
		return fmt.Errorf("cbd must not be negative")
	}

	return nil
}
