// Package segment splits raw section text into sentences and counts words.
package segment

import (
	"regexp"
	"strings"
	"unicode"
)

// paragraphSep matches one or more blank lines between paragraphs.
var paragraphSep = regexp.MustCompile(`\n{2,}`)

// abbreviations that end in a period but do not terminate a sentence.
var abbreviations = map[string]bool{
	"Sr.":   true,
	"Sra.":  true,
	"Dr.":   true,
	"Dra.":  true,
	"etc.":  true,
	"No.":   true,
	"Nº":    true,
	"Nº.":   true,
}

// Split turns raw text into an ordered sequence of sentences.
//
// Text is first split into paragraphs on blank lines. Within a paragraph a
// sentence ends at '.', '!' or '?' followed by whitespace and an uppercase
// letter, unless the token before the period is a known abbreviation or an
// initial. A paragraph with no terminal punctuation yields one sentence.
// Whitespace-only fragments are dropped. Split is pure: pagination and
// narration both re-derive sentences from the same text and must agree.
func Split(text string) []string {
	var sentences []string
	for _, p := range paragraphSep.Split(text, -1) {
		sentences = append(sentences, splitParagraph(p)...)
	}
	return sentences
}

func splitParagraph(p string) []string {
	var out []string
	runes := []rune(p)
	start := 0

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}

		// Boundary requires whitespace after the terminator...
		j := i + 1
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		if j == i+1 || j >= len(runes) {
			continue
		}
		// ...and then an uppercase letter.
		if !isSentenceStart(runes[j]) {
			continue
		}
		if r == '.' && isAbbreviation(runes[start:i+1]) {
			continue
		}

		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			out = append(out, s)
		}
		start = j
		i = j - 1
	}

	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		out = append(out, tail)
	}
	return out
}

// isSentenceStart reports whether r can open a sentence: ASCII uppercase or
// the Spanish accented capitals.
func isSentenceStart(r rune) bool {
	if r >= 'A' && r <= 'Z' {
		return true
	}
	switch r {
	case 'Á', 'É', 'Í', 'Ó', 'Ú', 'Ñ':
		return true
	}
	return false
}

// isAbbreviation checks the last whitespace-delimited token of prefix
// (which ends in a period) against the abbreviation list and the initial
// pattern, e.g. "J." or "Sr.".
func isAbbreviation(prefix []rune) bool {
	end := len(prefix)
	begin := end
	for begin > 0 && !unicode.IsSpace(prefix[begin-1]) {
		begin--
	}
	token := string(prefix[begin:end])
	if abbreviations[token] {
		return true
	}
	return isInitial(token)
}

// isInitial matches a capital letter, optionally one lowercase letter, and a
// period: "J." or "Ud.".
func isInitial(token string) bool {
	runes := []rune(token)
	if len(runes) < 2 || len(runes) > 3 || runes[len(runes)-1] != '.' {
		return false
	}
	if !isSentenceStart(runes[0]) {
		return false
	}
	if len(runes) == 3 && !unicode.IsLower(runes[1]) {
		return false
	}
	return true
}

// CountWords counts non-empty whitespace-delimited tokens. Progress
// accounting everywhere in the app uses this one convention.
func CountWords(text string) int {
	return len(strings.Fields(text))
}
