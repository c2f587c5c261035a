package fuzzy

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// LevenshteinDistance calculates the edit distance between two strings after
// normalization (case, whitespace and diacritics are ignored).
func LevenshteinDistance(s1, s2 string) int {
	r1 := []rune(Normalize(s1))
	r2 := []rune(Normalize(s2))

	if len(r1) == 0 {
		return len(r2)
	}
	if len(r2) == 0 {
		return len(r1)
	}

	// two rolling rows are enough
	prev := make([]int, len(r2)+1)
	curr := make([]int, len(r2)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(r1); i++ {
		curr[0] = i
		for j := 1; j <= len(r2); j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(r2)]
}

// Threshold is the edit distance tolerated for a phrase of the given length.
func Threshold(s string) int {
	n := len([]rune(Normalize(s)))
	switch {
	case n <= 5:
		return 1
	case n < 12:
		return 2
	default:
		return 3
	}
}

// SameTopic reports whether two topic names refer to the same thing:
// equal after normalization, one a whole-word prefix of the other
// ("Billing" / "Billing issues"), or within edit distance of each other.
func SameTopic(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	if hasWordPrefix(na, nb) || hasWordPrefix(nb, na) {
		return true
	}

	shorter := a
	if len(nb) < len(na) {
		shorter = b
	}
	return LevenshteinDistance(na, nb) <= Threshold(shorter)
}

// Normalize lowercases s, strips diacritics and punctuation and collapses whitespace.
func Normalize(s string) string {
	s = removeAccents(strings.ToLower(s))

	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func hasWordPrefix(text, prefix string) bool {
	return strings.HasPrefix(text, prefix+" ")
}

// removeAccents decomposes s and drops the combining marks.
func removeAccents(s string) string {
	var result strings.Builder
	for _, r := range norm.NFD.String(s) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		switch r {
		case 'đ':
			result.WriteRune('d')
		case 'ø':
			result.WriteRune('o')
		case 'ß':
			result.WriteString("ss")
		default:
			result.WriteRune(r)
		}
	}
	return result.String()
}
