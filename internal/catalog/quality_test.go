package catalog

import (
	"slices"
	"testing"
)

func floatPtr(v float64) *float64 { return &v }

func strPtr(v string) *string { return &v }

func TestCheckQualityCleanRecord(t *testing.T) {
	t.Parallel()

	record := Record{
		Name:         "Blue Dream 3.5g",
		Brand:        strPtr("Tryke"),
		Price:        floatPtr(45),
		DispensaryID: "disp-a",
	}
	report := CheckQuality(record, CleanName(record.Name))
	if report.Dirty {
		t.Fatalf("expected clean record, got issues %v", report.Issues)
	}
}

func TestCheckQualityAllThreeIssues(t *testing.T) {
	t.Parallel()

	record := Record{
		Name:         "Unknown Strain XYZ <b>50% off</b>",
		Price:        floatPtr(0),
		DispensaryID: "disp-a",
	}
	report := CheckQuality(record, CleanName(record.Name))
	if !report.Dirty {
		t.Fatalf("expected dirty record")
	}
	want := []string{IssueJunkInName, IssueMissingPrice, IssueUnknownBrand}
	if !slices.Equal(report.Issues, want) {
		t.Fatalf("unexpected issues: %v", report.Issues)
	}
}

func TestCheckQualityStoplistedBrand(t *testing.T) {
	t.Parallel()

	record := Record{
		Name:         "Gelato",
		Brand:        strPtr("N/A"),
		Price:        floatPtr(30),
		DispensaryID: "disp-a",
	}
	report := CheckQuality(record, CleanName(record.Name))
	if !report.Dirty || !slices.Contains(report.Issues, IssueUnknownBrand) {
		t.Fatalf("expected unknown brand issue, got %v", report.Issues)
	}
}

func TestCheckQualityMissingWeightAndCategoryAreFine(t *testing.T) {
	t.Parallel()

	record := Record{
		Name:         "Wedding Cake",
		Brand:        strPtr("Cookies"),
		Price:        floatPtr(55),
		DispensaryID: "disp-a",
	}
	report := CheckQuality(record, CleanName(record.Name))
	if report.Dirty {
		t.Fatalf("missing weight or category must not be dirty, got %v", report.Issues)
	}
}

func TestCheckQualityExcessiveRemoval(t *testing.T) {
	t.Parallel()

	// Markup plus heavy removal: cleaning strips well over 30% of the
	// raw characters.
	record := Record{
		Name:         "OG <i><b><u>Kush</u></b></i>",
		Brand:        strPtr("Cookies"),
		Price:        floatPtr(40),
		DispensaryID: "disp-a",
	}
	report := CheckQuality(record, CleanName(record.Name))
	if !slices.Contains(report.Issues, IssueJunkInName) {
		t.Fatalf("expected junk name issue, got %v", report.Issues)
	}
}
