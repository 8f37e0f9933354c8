package textutil

import (
	"cmp"
	"regexp"
	"slices"
	"strings"

	"github.com/antzucaro/matchr"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.Trim(name, " \n\t")
	name = whitespaceRegex.ReplaceAllString(name, "")
	return name
}

type Match struct {
	Candidate string
	Score     float64
}

// Closest returns the candidates whose normalized form is most similar to
// name (Jaro-Winkler), best first, keeping only scores >= threshold.
func Closest(name string, candidates []string, threshold float64, limit int) []Match {
	normalized := NormalizeName(name)
	var out []Match
	for _, c := range candidates {
		score := matchr.JaroWinkler(normalized, NormalizeName(c), false)
		if score < threshold {
			continue
		}
		out = append(out, Match{Candidate: c, Score: score})
	}
	// ties keep the candidate order
	slices.SortStableFunc(out, func(a, b Match) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
