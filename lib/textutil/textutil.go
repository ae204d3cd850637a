package textutil

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/antzucaro/matchr"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeName lowercases and trims a name and collapses inner whitespace.
func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.TrimSpace(name)
	name = whitespaceRegex.ReplaceAllString(name, " ")
	return name
}

// FormatCount renders n with comma thousands separators, 1234567 -> "1,234,567".
func FormatCount(n int) string {
	if n < 0 {
		return "-" + FormatCount(-n)
	}
	digits := strconv.Itoa(n)
	if len(digits) <= 3 {
		return digits
	}

	var out strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		out.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if out.Len() > 0 {
			out.WriteByte(',')
		}
		out.WriteString(digits[i : i+3])
	}
	return out.String()
}

// ParseCount is the inverse of FormatCount, it tolerates surrounding whitespace.
func ParseCount(s string) (int, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	n, err := strconv.Atoi(cleaned)
	if err != nil {
		return 0, fmt.Errorf("invalid count %q: %w", s, err)
	}
	return n, nil
}

// ClosestMatch returns the candidate most similar to name by Jaro-Winkler
// distance. It returns false when there are no candidates.
func ClosestMatch(name string, candidates []string) (string, float64, bool) {
	normalized := NormalizeName(name)
	best := ""
	bestSimilarity := -1.0
	for _, candidate := range candidates {
		similarity := matchr.JaroWinkler(normalized, NormalizeName(candidate), false)
		if similarity > bestSimilarity {
			bestSimilarity = similarity
			best = candidate
		}
	}
	if bestSimilarity < 0 {
		return "", 0, false
	}
	return best, bestSimilarity, true
}
