// Package matching provides the string-similarity primitives behind
// candidate suggestion scoring. All functions are pure; given the same
// inputs they always return the same score, which keeps suggestion
// output reproducible for a fixed registry snapshot.
package matching

// Weights controls how the component similarities blend into the
// combined score. Values are normalized before use, so any positive
// pair works.
type Weights struct {
	JaroWinkler  float64 `yaml:"jaro_winkler"`
	TokenJaccard float64 `yaml:"token_jaccard"`
}

// DefaultWeights favors character-level similarity slightly, which
// copes better with the single-letter spelling variance typical of
// transliterated names.
func DefaultWeights() Weights {
	return Weights{JaroWinkler: 0.6, TokenJaccard: 0.4}
}

// normalized returns the weights scaled to sum to 1. Degenerate input
// (zero or negative sum) falls back to the defaults.
func (w Weights) normalized() Weights {
	sum := w.JaroWinkler + w.TokenJaccard
	if sum <= 0 {
		return DefaultWeights()
	}
	return Weights{JaroWinkler: w.JaroWinkler / sum, TokenJaccard: w.TokenJaccard / sum}
}

// Combined blends Jaro-Winkler over the full keys with Jaccard over the
// token sets. Result is in [0, 1].
func Combined(key1, key2 string, tokens1, tokens2 []string, w Weights) float64 {
	w = w.normalized()
	return w.JaroWinkler*JaroWinkler(key1, key2) + w.TokenJaccard*TokenJaccard(tokens1, tokens2)
}

// JaroWinkler returns the Jaro-Winkler similarity of two strings in
// [0, 1]. Equal strings score 1; if either is empty the score is 0.
func JaroWinkler(s1, s2 string) float64 {
	j := jaro(s1, s2)
	if j == 0 {
		return 0
	}

	// Common prefix bonus, capped at 4 runes per Winkler.
	r1, r2 := []rune(s1), []rune(s2)
	prefix := 0
	for prefix < len(r1) && prefix < len(r2) && prefix < 4 && r1[prefix] == r2[prefix] {
		prefix++
	}

	const scaling = 0.1
	return j + float64(prefix)*scaling*(1-j)
}

func jaro(s1, s2 string) float64 {
	r1, r2 := []rune(s1), []rune(s2)
	if len(r1) == 0 || len(r2) == 0 {
		return 0
	}
	if string(r1) == string(r2) {
		return 1
	}

	window := max(len(r1), len(r2))/2 - 1
	if window < 0 {
		window = 0
	}

	matched1 := make([]bool, len(r1))
	matched2 := make([]bool, len(r2))

	matches := 0
	for i := range r1 {
		lo := i - window
		if lo < 0 {
			lo = 0
		}
		hi := i + window + 1
		if hi > len(r2) {
			hi = len(r2)
		}
		for j := lo; j < hi; j++ {
			if matched2[j] || r1[i] != r2[j] {
				continue
			}
			matched1[i] = true
			matched2[j] = true
			matches++
			break
		}
	}
	if matches == 0 {
		return 0
	}

	transpositions := 0
	k := 0
	for i := range r1 {
		if !matched1[i] {
			continue
		}
		for !matched2[k] {
			k++
		}
		if r1[i] != r2[k] {
			transpositions++
		}
		k++
	}

	m := float64(matches)
	t := float64(transpositions) / 2
	return (m/float64(len(r1)) + m/float64(len(r2)) + (m-t)/m) / 3
}

// TokenJaccard returns the Jaccard index of two token sets in [0, 1].
// Two empty sets score 0 rather than 1 so garbage never matches.
func TokenJaccard(tokens1, tokens2 []string) float64 {
	if len(tokens1) == 0 || len(tokens2) == 0 {
		return 0
	}

	set1 := make(map[string]bool, len(tokens1))
	for _, tok := range tokens1 {
		set1[tok] = true
	}

	intersection := 0
	set2 := make(map[string]bool, len(tokens2))
	for _, tok := range tokens2 {
		if set2[tok] {
			continue
		}
		set2[tok] = true
		if set1[tok] {
			intersection++
		}
	}

	union := len(set1) + len(set2) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
