package catalog

// levenshtein computes the edit distance between two strings by rune.
func levenshtein(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := 0; j <= len(rb); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// similarityRatio maps edit distance into [0, 1]; identical strings
// score 1.
func similarityRatio(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(a, b))/float64(longest)
}

// tokenJaccard measures word-set overlap between two normalized keys.
func tokenJaccard(a, b string) float64 {
	left := tokenSet(a)
	right := tokenSet(b)
	if len(left) == 0 || len(right) == 0 {
		return 0
	}

	intersection := 0
	for token := range left {
		if _, ok := right[token]; ok {
			intersection++
		}
	}
	if intersection == 0 {
		return 0
	}

	union := len(left) + len(right) - intersection
	return float64(intersection) / float64(union)
}

func tokenSet(key string) map[string]struct{} {
	set := make(map[string]struct{})
	start := -1
	for i, r := range key {
		if r == ' ' {
			if start >= 0 {
				set[key[start:i]] = struct{}{}
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		set[key[start:]] = struct{}{}
	}
	return set
}

// nameSimilarity blends edit-distance ratio with token overlap so a
// reordered name ("OG Kush Indica" vs "Indica OG Kush") is not
// punished as hard as a genuinely different one.
func nameSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	return max(similarityRatio(a, b), tokenJaccard(a, b))
}

// brandSimilarity is neutral (0.5) when either side has no brand, so
// absent data neither boosts nor sinks a match.
func brandSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0.5
	}
	return similarityRatio(a, b)
}
