package fuzzy

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// LevenshteinDistance is the number of single-rune insertions, deletions or
// substitutions needed to turn s1 into s2, after normalization.
func LevenshteinDistance(s1, s2 string) int {
	r1 := []rune(normalize(s1))
	r2 := []rune(normalize(s2))
	if len(r1) == 0 {
		return len(r2)
	}
	if len(r2) == 0 {
		return len(r1)
	}

	// two rolling rows
	prev := make([]int, len(r2)+1)
	cur := make([]int, len(r2)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(r1); i++ {
		cur[0] = i
		for j := 1; j <= len(r2); j++ {
			cost := 1
			if r1[i-1] == r2[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(r2)]
}

// Threshold is the typo tolerance for a query of the given length.
func Threshold(query string) int {
	n := len([]rune(normalize(query)))
	switch {
	case n <= 3:
		return 1
	case n >= 8:
		return 3
	default:
		return 2
	}
}

// Match reports whether query matches text as a substring, a word prefix, or
// a word within threshold edits.
func Match(query, text string, threshold int) bool {
	query = normalize(query)
	text = normalize(text)
	if query == "" {
		return true
	}
	if strings.Contains(text, query) {
		return true
	}
	for _, word := range strings.Fields(text) {
		if strings.HasPrefix(word, query) || LevenshteinDistance(query, word) <= threshold {
			return true
		}
	}
	return false
}

// MatchTask checks the title, then the first 500 runes of the notes.
func MatchTask(query, title, notes string) bool {
	threshold := Threshold(query)
	if Match(query, title, threshold) {
		return true
	}
	if r := []rune(notes); len(r) > 500 {
		notes = string(r[:500])
	}
	return notes != "" && Match(query, notes, threshold)
}

// Score ranks how well a task matches query. Title hits outweigh notes hits.
func Score(query, title, notes string) float64 {
	query = normalize(query)
	if query == "" {
		return 0
	}
	return fieldScore(query, normalize(title), 100, 50) + fieldScore(query, normalize(notes), 40, 20)
}

func fieldScore(query, text string, exact, fuzzy float64) float64 {
	if text == "" {
		return 0
	}
	if strings.Contains(text, query) {
		if containsWord(text, query) {
			return exact * 1.5
		}
		return exact
	}

	score := 0.0
	for _, word := range strings.Fields(text) {
		if strings.HasPrefix(word, query) {
			score += fuzzy * 0.8
		}
		if dist := LevenshteinDistance(query, word); dist <= 2 {
			score += fuzzy - float64(dist)*fuzzy*0.3
		}
	}
	return score
}

// normalize lowercases, strips diacritics and collapses whitespace.
func normalize(s string) string {
	s = strings.ToLower(s)
	s = removeAccents(s)
	return strings.Join(strings.Fields(s), " ")
}

func containsWord(text, query string) bool {
	for _, word := range strings.Fields(text) {
		if word == query {
			return true
		}
	}
	return false
}

func removeAccents(s string) string {
	// chains hold state, so each call builds its own
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return strings.ReplaceAll(out, "đ", "d")
}
