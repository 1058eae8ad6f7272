package catalog

import "strings"

// Issue tags form a fixed vocabulary; the checker never invents new ones.
const (
	IssueJunkInName   = "junk_in_name"
	IssueMissingPrice = "missing_price"
	IssueUnknownBrand = "unknown_brand"
)

// junkRemovalRatio is the share of characters cleaning may remove from
// a name before the name itself counts as junk.
const junkRemovalRatio = 0.30

// brandStoplist holds pseudo-brands sources emit when they have no
// real brand on file.
var brandStoplist = map[string]struct{}{
	"unknown":  {},
	"n/a":      {},
	"na":       {},
	"none":     {},
	"misc":     {},
	"house":    {},
	"generic":  {},
	"no brand": {},
}

// QualityReport classifies a scraped record as clean or dirty. Dirty
// records are never published unsupervised.
type QualityReport struct {
	Dirty  bool
	Issues []string
}

// CheckQuality runs the three independent issue checks against a raw
// record and its cleaned name. Pure: the result is a union, so check
// order never matters. Missing weight and missing category are
// explicitly not issues.
func CheckQuality(record Record, cleanedName string) QualityReport {
	var issues []string

	if hasJunkName(record.Name, cleanedName) {
		issues = append(issues, IssueJunkInName)
	}
	if record.Price == nil || *record.Price <= 0 {
		issues = append(issues, IssueMissingPrice)
	}
	if isUnknownBrand(record.BrandValue()) {
		issues = append(issues, IssueUnknownBrand)
	}

	return QualityReport{
		Dirty:  len(issues) > 0,
		Issues: issues,
	}
}

func hasJunkName(raw, cleaned string) bool {
	if ContainsMarkup(raw) {
		return true
	}

	rawLen := len([]rune(strings.TrimSpace(raw)))
	if rawLen == 0 {
		return false
	}
	removed := rawLen - len([]rune(cleaned))
	return float64(removed)/float64(rawLen) > junkRemovalRatio
}

func isUnknownBrand(brand string) bool {
	if brand == "" {
		return true
	}
	_, stoplisted := brandStoplist[strings.ToLower(brand)]
	return stoplisted
}
