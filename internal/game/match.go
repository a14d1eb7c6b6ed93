package game

import (
	"strings"
	"unicode"
)

// Answer text grading: fold, then compare with a small edit-distance
// tolerance so "Dont Stop Beliving" still matches "Don't Stop Believin'".

var accentFolder = strings.NewReplacer(
	"à", "a", "â", "a", "ä", "a", "á", "a", "ã", "a",
	"ç", "c",
	"é", "e", "è", "e", "ê", "e", "ë", "e",
	"î", "i", "ï", "i", "í", "i",
	"ô", "o", "ö", "o", "ó", "o", "õ", "o",
	"û", "u", "ü", "u", "ù", "u", "ú", "u",
	"ñ", "n",
	"œ", "oe", "æ", "ae",
	"ß", "ss",
	"ÿ", "y",
)

// foldText lowercases, strips accents and punctuation, and collapses
// whitespace.
func foldText(s string) string {
	s = accentFolder.Replace(strings.ToLower(s))
	var b strings.Builder
	lastSpace := true
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case !lastSpace:
			b.WriteRune(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(min(cur[j-1]+1, prev[j]+1), prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

// matchTexts reports whether a folded guess is close enough to a folded
// target. The allowed distance grows with target length; extra widens it
// (configurable tolerance, see Config.MatchTolerance).
func matchTexts(guess, target string, extra int) bool {
	g, t := foldText(guess), foldText(target)
	if t == "" {
		return false
	}
	if g == t {
		return true
	}
	n := len([]rune(t))
	if n <= 3 {
		return false // too short for fuzz, exact only
	}
	allowed := 1
	if n > 8 {
		allowed = 2
	}
	allowed += extra
	return levenshtein(g, t) <= allowed
}

// matchParts grades a free-text guess against title and artist, including
// the combined "artist title" form in either order.
func matchParts(guess, title, artist string, extra int) (titleOK, artistOK bool) {
	titleOK = matchTexts(guess, title, extra)
	artistOK = matchTexts(guess, artist, extra)
	if !titleOK || !artistOK {
		if matchTexts(guess, artist+" "+title, extra) || matchTexts(guess, title+" "+artist, extra) {
			titleOK, artistOK = true, true
		}
	}
	return titleOK, artistOK
}

// maskTitle keeps the first letter of each word, hiding the rest. Used for
// the half-time hint.
func maskTitle(title string) string {
	words := strings.Fields(title)
	for i, w := range words {
		runes := []rune(w)
		for j := 1; j < len(runes); j++ {
			if unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) {
				runes[j] = '_'
			}
		}
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
