package catalog

import (
	"regexp"
	"strconv"
	"strings"
)

const gramsPerOunce = 28.3495

// Weight is a parsed package size: the label as printed in the listing
// name and its normalized gram equivalent.
type Weight struct {
	Label string
	Grams float64
}

// Recognized suffix shapes, in priority order. Every pattern requires
// a non-empty name before the weight, which is what makes parsing
// idempotent: a bare label ("3.5g", "1/8 oz") never re-extracts.
var (
	parenWeightRe = regexp.MustCompile(`(?i)^(.*\S)\s*\(\s*((\d+(?:\.\d+)?)\s*(milligrams?|mg|grams?|g|ounces?|oz|ml))\s*\)$`)
	bareWeightRe  = regexp.MustCompile(`(?i)^(.*\S)\s+((\d+(?:\.\d+)?)\s*(milligrams?|mg|grams?|g|ounces?|oz|ml))$`)
	fractionOzRe  = regexp.MustCompile(`(?i)^(.*\S)\s+((\d+)\s*/\s*(\d+)\s*(ounces?|oz))$`)
)

// ParseWeight extracts a weight suffix from a listing name. It returns
// the parsed weight and the name with the suffix stripped, or nil and
// the name unchanged when no suffix is recognized. No match is not an
// error: plenty of listings simply have no printed size.
func ParseWeight(name string) (*Weight, string) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, trimmed
	}

	for _, re := range []*regexp.Regexp{parenWeightRe, bareWeightRe} {
		m := re.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		value, err := strconv.ParseFloat(m[3], 64)
		if err != nil {
			continue
		}
		grams, ok := toGrams(value, m[4])
		if !ok {
			continue
		}
		return &Weight{Label: strings.TrimSpace(m[2]), Grams: grams}, strings.TrimSpace(m[1])
	}

	if m := fractionOzRe.FindStringSubmatch(trimmed); m != nil {
		numerator, errN := strconv.ParseFloat(m[3], 64)
		denominator, errD := strconv.ParseFloat(m[4], 64)
		if errN == nil && errD == nil && denominator != 0 {
			return &Weight{
				Label: strings.TrimSpace(m[2]),
				Grams: numerator / denominator * gramsPerOunce,
			}, strings.TrimSpace(m[1])
		}
	}

	return nil, trimmed
}

// ParseWeightLabel parses a standalone label ("3.5g", "1/8 oz") with
// no product name in front of it.
func ParseWeightLabel(label string) (*Weight, bool) {
	weight, base := ParseWeight("x " + strings.TrimSpace(label))
	if weight == nil || base != "x" {
		return nil, false
	}
	return weight, true
}

func toGrams(value float64, unit string) (float64, bool) {
	switch u := strings.ToLower(strings.TrimSpace(unit)); {
	case u == "mg" || strings.HasPrefix(u, "milligram"):
		return value / 1000, true
	case u == "g" || strings.HasPrefix(u, "gram"):
		return value, true
	case u == "oz" || strings.HasPrefix(u, "ounce"):
		return value * gramsPerOunce, true
	case u == "ml":
		// Liquids are labeled at unit density; treated as grams.
		return value, true
	default:
		return 0, false
	}
}
